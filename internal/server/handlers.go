package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/downtify/downtify/internal/convert"
	"github.com/downtify/downtify/internal/fetch"
	"github.com/downtify/downtify/internal/model"
	"github.com/downtify/downtify/internal/resolve"
)

// handleIndex renders the landing page.
func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Flashes": takeFlashes(c),
	})
}

// handleFetch runs one download request end to end: allocate a workspace,
// resolve the URL, select a cookie bundle, fetch every target, and either
// render the download link or flash the failure and clean up.
func (s *Server) handleFetch(c *gin.Context) {
	rawURL := strings.TrimSpace(c.PostForm("url"))
	if rawURL == "" {
		flash(c, "error", "Please provide a URL.")
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	userLabel := c.PostForm("name")

	if s.resolver == nil {
		flash(c, "error", "Catalog credentials are not configured on this server.")
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	if !s.limiter.Allow() {
		flash(c, "error", "Too many requests, try again shortly.")
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	session, err := s.allocator.Allocate(userLabel)
	if err != nil {
		log.Printf("allocate workspace: %v", err)
		flash(c, "error", "Could not prepare a download workspace.")
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.FetchTimeout)
	defer cancel()

	targets, err := s.resolver.Resolve(ctx, rawURL)
	if err != nil || len(targets) == 0 {
		s.discard(session)
		switch {
		case errors.Is(err, resolve.ErrUnsupportedURL):
			flash(c, "error", "That URL is not a supported track, album, or playlist link.")
		case errors.Is(err, resolve.ErrNoTargets), err == nil:
			flash(c, "warning", "Nothing found for that URL.")
		default:
			log.Printf("resolve %s: %v", rawURL, err)
			flash(c, "error", "Catalog lookup failed, try again later.")
		}
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	selection, err := s.cookieStore.SelectBest(ctx)
	if err != nil {
		log.Printf("cookie selection: %v", err)
	}
	if selection.Warned {
		flash(c, "warning", "No validated cookie bundle available; using the newest one anyway.")
	}

	opts := fetch.Options{ProxyURL: s.cfg.ProxyURL}
	if selection.Bundle != nil {
		opts.CookiePath = selection.Bundle.Path
	}

	batch, err := s.orchestrator.FetchBatch(ctx, session, targets, opts)
	if err != nil {
		s.discard(session)
		if ctx.Err() == context.DeadlineExceeded {
			flash(c, "error", "The download timed out.")
		} else if errors.Is(err, fetch.ErrNothingFetched) {
			flash(c, "error", "Download failed: no files could be fetched.")
		} else {
			log.Printf("fetch batch for session %s: %v", session.ID, err)
			flash(c, "error", "Download failed.")
		}
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	s.allocator.Release(session)
	log.Printf("session %s served %q after %s",
		session.ID, batch.ServedFile, session.Age(time.Now()).Round(time.Millisecond))
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Flashes":      takeFlashes(c),
		"DownloadLink": true,
		"DownloadURL":  downloadURL(session.UserLabel, session.ID, batch.ServedFile),
		"ServedFile":   batch.ServedFile,
		"TargetCount":  len(targets),
	})
}

// downloadURL builds the file-serving link with every segment escaped;
// display names may carry characters like '#' that break raw URLs.
func downloadURL(userLabel, sessionID, filename string) string {
	return fmt.Sprintf("/download/%s/%s/%s",
		url.PathEscape(userLabel), url.PathEscape(sessionID), url.PathEscape(filename))
}

// discard removes a failed session's workspace, logging storage faults.
func (s *Server) discard(session *model.Session) {
	if err := s.allocator.Discard(session); err != nil {
		log.Printf("cleanup: %v", err)
	}
}

// handleDownloads lists produced files grouped by user label, newest first.
func (s *Server) handleDownloads(c *gin.Context) {
	files, err := s.allocator.ListFiles()
	if err != nil {
		log.Printf("list downloads: %v", err)
	}

	type fileRow struct {
		Name    string
		URL     string
		Size    int64
		ModTime time.Time
	}
	type group struct {
		UserLabel string
		Files     []fileRow
	}
	var groups []*group
	index := make(map[string]*group)
	for _, file := range files {
		g, ok := index[file.UserLabel]
		if !ok {
			g = &group{UserLabel: file.UserLabel}
			index[file.UserLabel] = g
			groups = append(groups, g)
		}
		g.Files = append(g.Files, fileRow{
			Name:    file.Name,
			URL:     downloadURL(file.UserLabel, file.SessionID, file.Name),
			Size:    file.Size,
			ModTime: file.ModTime,
		})
	}

	c.HTML(http.StatusOK, "downloads.html", gin.H{
		"Flashes": takeFlashes(c),
		"Groups":  groups,
	})
}

// handleDownloadFile streams one produced file as an attachment.
func (s *Server) handleDownloadFile(c *gin.Context) {
	path, err := s.allocator.ResolveFile(
		c.Param("user"), c.Param("session"), c.Param("filename"))
	if err != nil {
		c.HTML(http.StatusNotFound, "404.html", gin.H{})
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

// handleConverterPage renders the converter form.
func (s *Server) handleConverterPage(c *gin.Context) {
	c.HTML(http.StatusOK, "converter.html", gin.H{
		"Flashes": takeFlashes(c),
		"Formats": convert.Formats(),
	})
}

// handleConvert accepts an uploaded audio file and starts a background
// conversion task; the rendered page links to the task's status and result.
func (s *Server) handleConvert(c *gin.Context) {
	format := c.PostForm("format")
	if !convert.SupportedFormat(format) {
		flash(c, "error", "Unsupported target format.")
		c.Redirect(http.StatusSeeOther, "/converter")
		return
	}

	upload, err := c.FormFile("file")
	if err != nil {
		flash(c, "error", "Please choose a file to convert.")
		c.Redirect(http.StatusSeeOther, "/converter")
		return
	}

	if err := os.MkdirAll(s.cfg.ConverterUploadDir(), 0755); err != nil {
		log.Printf("create upload directory: %v", err)
		flash(c, "error", "Could not store the uploaded file.")
		c.Redirect(http.StatusSeeOther, "/converter")
		return
	}
	inputPath := filepath.Join(s.cfg.ConverterUploadDir(),
		fmt.Sprintf("%d_%s", time.Now().UnixNano(), filepath.Base(upload.Filename)))
	if err := c.SaveUploadedFile(upload, inputPath); err != nil {
		log.Printf("save upload: %v", err)
		flash(c, "error", "Could not store the uploaded file.")
		c.Redirect(http.StatusSeeOther, "/converter")
		return
	}

	task, err := s.converter.Start(inputPath, format)
	if err != nil {
		log.Printf("convert %s to %s: %v", upload.Filename, format, err)
		flash(c, "error", "Could not start the conversion.")
		c.Redirect(http.StatusSeeOther, "/converter")
		return
	}

	c.HTML(http.StatusOK, "converter.html", gin.H{
		"Flashes":   takeFlashes(c),
		"Formats":   convert.Formats(),
		"Task":      task,
		"StatusURL": "/converter/status/" + task.ID,
		"ResultURL": "/converter/result/" + task.ID,
		"StopURL":   "/converter/stop/" + task.ID,
	})
}

// handleConvertStatus reports one task's state and progress as JSON so the
// converter page can poll it.
func (s *Server) handleConvertStatus(c *gin.Context) {
	task, ok := s.converter.GetTask(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown task"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":       task.ID,
		"format":   task.Format,
		"status":   task.Status.String(),
		"progress": task.Progress,
		"active":   task.Status.IsActive(),
		"finished": task.Status.IsFinished(),
		"error":    task.LastError,
	})
}

// handleConvertResult streams a completed task's output as an attachment.
func (s *Server) handleConvertResult(c *gin.Context) {
	task, ok := s.converter.GetTask(c.Param("id"))
	if !ok {
		c.HTML(http.StatusNotFound, "404.html", gin.H{})
		return
	}
	if !task.Status.IsFinished() {
		flash(c, "warning", "Conversion is still running, try again shortly.")
		c.Redirect(http.StatusSeeOther, "/converter")
		return
	}
	if task.Status != model.TaskStatusCompleted {
		flash(c, "error", fmt.Sprintf("Conversion failed: %s", task.LastError))
		c.Redirect(http.StatusSeeOther, "/converter")
		return
	}
	c.FileAttachment(task.OutputPath, filepath.Base(task.OutputPath))
}

// handleConvertStop cancels a running conversion.
func (s *Server) handleConvertStop(c *gin.Context) {
	if err := s.converter.Stop(c.Param("id")); err != nil {
		flash(c, "error", "Could not stop that conversion.")
	} else {
		flash(c, "success", "Conversion stopped.")
	}
	c.Redirect(http.StatusSeeOther, "/converter")
}

// handleCookiesPage lists stored cookie bundles with a fresh validity probe.
func (s *Server) handleCookiesPage(c *gin.Context) {
	bundles, err := s.cookieStore.List(c.Request.Context())
	if err != nil {
		log.Printf("list cookie bundles: %v", err)
	}

	type row struct {
		Name     string
		Source   string
		Uploader string
		Working  bool
		Status   string
		Created  string
	}
	rows := make([]row, 0, len(bundles))
	for _, bundle := range bundles {
		rows = append(rows, row{
			Name:     filepath.Base(bundle.Path),
			Source:   string(bundle.Source),
			Uploader: bundle.Uploader,
			Working:  bundle.Working,
			Status:   bundle.Status,
			Created:  bundle.CreatedAt.Format("2006-01-02 15:04"),
		})
	}

	c.HTML(http.StatusOK, "cookies.html", gin.H{
		"Flashes": takeFlashes(c),
		"Bundles": rows,
	})
}

// handleCookieUpload stores an uploaded bundle and validates it once.
func (s *Server) handleCookieUpload(c *gin.Context) {
	upload, err := c.FormFile("file")
	if err != nil {
		flash(c, "error", "Please choose a cookie file to upload.")
		c.Redirect(http.StatusSeeOther, "/cookies")
		return
	}

	src, err := upload.Open()
	if err != nil {
		flash(c, "error", "Could not read the uploaded file.")
		c.Redirect(http.StatusSeeOther, "/cookies")
		return
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		flash(c, "error", "Could not read the uploaded file.")
		c.Redirect(http.StatusSeeOther, "/cookies")
		return
	}

	path, err := s.cookieStore.SaveUpload(c.PostForm("name"), content)
	if err != nil {
		log.Printf("save cookie upload: %v", err)
		flash(c, "error", "Could not store the cookie file.")
		c.Redirect(http.StatusSeeOther, "/cookies")
		return
	}

	flash(c, "success", fmt.Sprintf("Uploaded %s.", filepath.Base(path)))
	c.Redirect(http.StatusSeeOther, "/cookies")
}

// handleCookieDelete removes a stored bundle by filename.
func (s *Server) handleCookieDelete(c *gin.Context) {
	if err := s.cookieStore.Delete(c.Param("filename")); err != nil {
		flash(c, "error", "Could not delete that cookie file.")
	} else {
		flash(c, "success", "Cookie file deleted.")
	}
	c.Redirect(http.StatusSeeOther, "/cookies")
}
