package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/downtify/downtify/internal/config"
	"github.com/downtify/downtify/internal/convert"
	"github.com/downtify/downtify/internal/cookies"
	"github.com/downtify/downtify/internal/fetch"
	"github.com/downtify/downtify/internal/resolve"
	"github.com/downtify/downtify/internal/server"
	"github.com/downtify/downtify/internal/sweep"
	"github.com/downtify/downtify/internal/workspace"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// A .env file is optional; environment variables win either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	for _, dir := range []string{
		cfg.DownloadsDir(),
		cfg.CookiesDir(),
		cfg.ConverterUploadDir(),
		cfg.ConverterOutputDir(),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	allocator := workspace.NewAllocator(cfg.DownloadsDir())

	cookieStore := cookies.NewStore(cfg.CookiesDir(), cookies.NewHTTPProber())
	if err := cookieStore.MaterializeEnv(cfg.CookieContent); err != nil {
		log.Printf("materialize environment cookies: %v", err)
	}

	var resolver resolve.Resolver
	if cfg.HasCatalogCredentials() {
		resolver, err = resolve.NewSpotifyResolver(
			context.Background(), cfg.ClientID, cfg.ClientSecret)
		if err != nil {
			return err
		}
	} else {
		log.Printf("CLIENT_ID/CLIENT_SECRET not set, download requests will be rejected")
	}

	orchestrator := fetch.NewOrchestrator(fetch.NewYTDLPRunner())
	converter := convert.NewService(cfg.ConverterOutputDir())

	sweeper := sweep.New(cfg.SweepInterval, allocator,
		sweep.Area{Name: "downloads", Path: cfg.DownloadsDir(), Window: cfg.DownloadRetention, PerUser: true},
		sweep.Area{Name: "converter uploads", Path: cfg.ConverterUploadDir(), Window: cfg.ConvertRetention},
		sweep.Area{Name: "converter output", Path: cfg.ConverterOutputDir(), Window: cfg.ConvertRetention},
		sweep.Area{Name: "cookies", Path: cfg.CookiesDir(), Window: cfg.CookieRetention},
	)
	sweeper.Start()
	defer sweeper.Stop()

	srv := server.New(cfg, allocator, cookieStore, orchestrator, resolver, converter)
	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Printf("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
