// Package server wires the HTTP front-end: landing page with the download
// form, produced-file listing and streaming, the audio converter, and cookie
// bundle management.
package server

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/downtify/downtify/internal/config"
	"github.com/downtify/downtify/internal/convert"
	"github.com/downtify/downtify/internal/cookies"
	"github.com/downtify/downtify/internal/fetch"
	"github.com/downtify/downtify/internal/resolve"
	"github.com/downtify/downtify/internal/workspace"
)

//go:embed templates/*.html
var templatesFS embed.FS

const sessionName = "downtify"

// Server holds the handler dependencies.
type Server struct {
	cfg          *config.Config
	allocator    *workspace.Allocator
	cookieStore  *cookies.Store
	orchestrator *fetch.Orchestrator
	resolver     resolve.Resolver
	converter    *convert.Service
	limiter      *rate.Limiter
}

// New creates a server. resolver may be nil when the catalog credential
// pair is not configured; fetch requests then fail with a configuration
// error instead of crashing.
func New(
	cfg *config.Config,
	allocator *workspace.Allocator,
	cookieStore *cookies.Store,
	orchestrator *fetch.Orchestrator,
	resolver resolve.Resolver,
	converter *convert.Service,
) *Server {
	return &Server{
		cfg:          cfg,
		allocator:    allocator,
		cookieStore:  cookieStore,
		orchestrator: orchestrator,
		resolver:     resolver,
		converter:    converter,
		limiter:      rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())
	engine.Use(cors.Default())

	store := cookie.NewStore([]byte(s.cfg.SessionSecret))
	engine.Use(sessions.Sessions(sessionName, store))

	engine.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	engine.GET("/", s.handleIndex)
	engine.POST("/", s.handleFetch)
	engine.GET("/downloads", s.handleDownloads)
	engine.GET("/download/:user/:session/:filename", s.handleDownloadFile)
	engine.GET("/converter", s.handleConverterPage)
	engine.POST("/converter", s.handleConvert)
	engine.GET("/converter/status/:id", s.handleConvertStatus)
	engine.GET("/converter/result/:id", s.handleConvertResult)
	engine.GET("/converter/stop/:id", s.handleConvertStop)
	engine.GET("/cookies", s.handleCookiesPage)
	engine.POST("/cookies/upload", s.handleCookieUpload)
	engine.GET("/cookies/delete/:filename", s.handleCookieDelete)

	engine.NoRoute(func(c *gin.Context) {
		c.HTML(http.StatusNotFound, "404.html", gin.H{})
	})

	return engine
}

// flash queues a one-shot message of the given kind (error, warning,
// success) for the next rendered page.
func flash(c *gin.Context, kind, message string) {
	session := sessions.Default(c)
	session.AddFlash(message, kind)
	_ = session.Save()
}

// takeFlashes drains queued messages for every kind.
func takeFlashes(c *gin.Context) map[string][]string {
	session := sessions.Default(c)
	out := make(map[string][]string)
	for _, kind := range []string{"error", "warning", "success"} {
		for _, f := range session.Flashes(kind) {
			if msg, ok := f.(string); ok {
				out[kind] = append(out[kind], msg)
			}
		}
	}
	_ = session.Save()
	return out
}
