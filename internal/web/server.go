// Package web serves the contract upload form and its JSON twin.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/mfenderov/contractcheck/internal/analysis"
	"github.com/mfenderov/contractcheck/internal/extract"
	"github.com/mfenderov/contractcheck/internal/report"
)

//go:embed templates/index.html
var templates embed.FS

// Accept lists the extensions offered by the file picker.
const Accept = ".pdf,.docx,.txt,.png,.jpg"

// tempName is the fixed stem every upload is written under.
const tempName = "temp_file"

var errFileTooLarge = errors.New("file exceeds the upload limit")

// Analyzer runs the pipeline on a file on disk.
type Analyzer interface {
	Analyze(ctx context.Context, path string) (*analysis.Result, error)
}

// Config holds server settings.
type Config struct {
	WorkDir        string
	MaxUploadBytes int64
}

// Server handles uploads one at a time: every upload shares the same temp path
// and the same persisted index.
type Server struct {
	analyzer Analyzer
	config   Config
	page     *template.Template
	engine   *gin.Engine
	mu       sync.Mutex
}

// NewServer creates a Server and registers its routes.
func NewServer(analyzer Analyzer, config Config) (*Server, error) {
	if analyzer == nil {
		return nil, errors.New("analyzer is required")
	}
	if config.WorkDir == "" {
		config.WorkDir = "."
	}

	page, err := template.ParseFS(templates, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}

	s := &Server{analyzer: analyzer, config: config, page: page}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(), gzip.Gzip(gzip.DefaultCompression))
	engine.GET("/", s.index)
	engine.POST("/analyze", s.analyzeForm)
	engine.POST("/api/analyze", s.analyzeAPI)
	engine.GET("/health", s.health)
	s.engine = engine

	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	slog.Info("http server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("server stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type pageData struct {
	Accept   string
	Limit    string
	Filename string
	Result   *analysis.Result
	Answer   template.HTML
	Error    string
}

func (s *Server) render(c *gin.Context, status int, data pageData) {
	data.Accept = Accept
	data.Limit = formatUploadLimit(s.config.MaxUploadBytes)

	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(c.Writer, data); err != nil {
		slog.Error("failed to render page", "error", err)
	}
}

func (s *Server) index(c *gin.Context) {
	s.render(c, http.StatusOK, pageData{})
}

func (s *Server) analyzeForm(c *gin.Context) {
	filename, result, status, err := s.handleUpload(c)
	if err != nil {
		s.render(c, status, pageData{Filename: filename, Error: fmt.Sprintf("An error occurred: %v", err)})
		return
	}

	data := pageData{Filename: filename, Result: result}
	if !result.Failed() {
		answer, err := report.RenderHTML(result.Text)
		if err != nil {
			s.render(c, http.StatusInternalServerError, pageData{Filename: filename, Error: fmt.Sprintf("An error occurred: %v", err)})
			return
		}
		data.Answer = answer
	}
	s.render(c, http.StatusOK, data)
}

func (s *Server) analyzeAPI(c *gin.Context) {
	_, result, status, err := s.handleUpload(c)
	if err != nil {
		code := "ANALYSIS_FAILED"
		switch status {
		case http.StatusBadRequest:
			code = "INVALID_FILE"
		case http.StatusRequestEntityTooLarge:
			code = "FILE_TOO_LARGE"
		}
		c.JSON(status, gin.H{
			"success": false,
			"error": gin.H{
				"code":    code,
				"message": err.Error(),
			},
		})
		return
	}

	if result.Failed() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"error": gin.H{
				"code":    strings.ToUpper(string(result.Kind)),
				"message": result.Text,
			},
			"data": result,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleUpload writes the uploaded file to the temp path, analyzes it and
// removes it again. The returned status is only meaningful with an error.
func (s *Server) handleUpload(c *gin.Context) (string, *analysis.Result, int, error) {
	if s.config.MaxUploadBytes > 0 {
		if c.Request.ContentLength > s.config.MaxUploadBytes {
			return "", nil, http.StatusRequestEntityTooLarge, errFileTooLarge
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxUploadBytes)
	}

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, http.StatusRequestEntityTooLarge, fmt.Errorf("%w: limit is %d bytes", errFileTooLarge, tooLarge.Limit)
		}
		return "", nil, http.StatusBadRequest, fmt.Errorf("file is required: %w", err)
	}

	format := extract.Format(filepath.Base(file.Filename))
	if !extract.Supported(format) {
		slog.Info("unsupported upload", "filename", file.Filename, "format", format)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.config.WorkDir, tempName+"."+format)
	if err := c.SaveUploadedFile(file, path); err != nil {
		return file.Filename, nil, http.StatusInternalServerError, fmt.Errorf("failed to save upload: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove temp file", "path", path, "error", err)
		}
	}()

	slog.Debug("upload saved", "filename", file.Filename, "size", file.Size, "path", path)

	result, err := s.analyzer.Analyze(c.Request.Context(), path)
	if err != nil {
		slog.Error("analysis failed", "filename", file.Filename, "error", err)
		return file.Filename, nil, http.StatusInternalServerError, err
	}
	return file.Filename, result, http.StatusOK, nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func formatUploadLimit(bytes int64) string {
	const mb = 1024 * 1024
	if bytes <= 0 {
		return ""
	}
	value := bytes / mb
	if value <= 0 {
		value = 1
	}
	return strconv.FormatInt(value, 10) + "MB"
}
