package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/deploymenttheory/go-batch-runner/internal/common/fsutil"
	"github.com/deploymenttheory/go-batch-runner/internal/common/jsonutil"
	"github.com/deploymenttheory/go-batch-runner/internal/logger"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// ServerConfig configures the relay server
type ServerConfig struct {
	Listen     string
	RunURL     string        // upstream workflow run endpoint
	UploadURL  string        // upstream file upload endpoint
	StorageDir string        // local file store behind /api/upload; empty disables it
	PublicURL  string        // base of returned file URLs; defaults to the request host
	Timeout    time.Duration // upstream timeout; 0 keeps transport defaults
}

// Server proxies workflow runs and uploads to the upstream API, adding the
// caller's bearer credential, and optionally stores uploaded blobs locally.
type Server struct {
	echo     *echo.Echo
	upstream *resty.Client
	cfg      ServerConfig
	logger   *zap.SugaredLogger
}

// NewServer creates a relay server and registers its routes
func NewServer(cfg ServerConfig, log *zap.SugaredLogger) *Server {
	s := &Server{
		echo:     echo.New(),
		upstream: resty.New().SetRetryCount(0),
		cfg:      cfg,
		logger:   logger.Get(log),
	}
	if cfg.Timeout > 0 {
		s.upstream.SetTimeout(cfg.Timeout)
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Infow("Request handled",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency.String(),
			)
			return nil
		},
	}))

	s.echo.GET("/healthz", s.handleHealth)
	s.echo.POST("/api/proxy/run", s.handleRun)
	s.echo.POST("/api/proxy/upload", s.handleProxyUpload)
	if cfg.StorageDir != "" {
		s.echo.POST("/api/upload", s.handleStore)
		s.echo.Static("/files", cfg.StorageDir)
	}

	return s
}

// Handler exposes the router, e.g. for httptest
func (s *Server) Handler() http.Handler {
	return s.echo
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.cfg.StorageDir != "" {
		if err := fsutil.CreateDirIfNotExists(s.cfg.StorageDir); err != nil {
			return err
		}
	}

	server := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.echo,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Infow("Relay server starting", "address", s.cfg.Listen, "upstream", s.cfg.RunURL)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("relay server: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("Shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Errorw("Relay server shutdown error", "error", err)
			return server.Close()
		}
		s.logger.Info("Relay server stopped gracefully")
		return nil
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleRun forwards a workflow run. A string data field holding a JSON
// object is decoded for the caller and the original text kept in raw_data.
func (s *Server) handleRun(c echo.Context) error {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if auth == "" {
		return c.JSON(http.StatusUnauthorized, errorBody("Missing Authorization"))
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Unreadable request body"))
	}

	var in RunRequest
	if err := jsonutil.Decode(body, &in); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid JSON body"))
	}
	if strings.TrimSpace(in.WorkflowID) == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Missing workflow_id"))
	}
	if in.Parameters == nil {
		in.Parameters = map[string]interface{}{}
	}

	resp, err := s.upstream.R().
		SetContext(c.Request().Context()).
		SetHeader(echo.HeaderAuthorization, auth).
		SetHeader(echo.HeaderContentType, echo.MIMEApplicationJSON).
		SetBody(in).
		Post(s.cfg.RunURL)
	if err != nil {
		s.logger.Errorw("Upstream run failed", "workflow_id", in.WorkflowID, "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("Run failed"))
	}

	result := map[string]interface{}{}
	if err := jsonutil.Decode(resp.Body(), &result); err != nil {
		if resp.IsError() {
			return c.JSON(resp.StatusCode(), errorBody("Run failed"))
		}
		return c.JSON(http.StatusBadGateway, errorBody("Invalid upstream response"))
	}
	if resp.IsError() {
		return c.JSON(resp.StatusCode(), result)
	}

	if raw, ok := result["data"].(string); ok {
		if strings.HasPrefix(strings.TrimSpace(raw), "{") {
			var parsed interface{}
			if err := jsonutil.Decode([]byte(raw), &parsed); err == nil {
				result["data"] = parsed
			}
		}
		result["raw_data"] = raw
	}

	return c.JSON(http.StatusOK, result)
}

// handleProxyUpload forwards a multipart upload to the upstream file API
func (s *Server) handleProxyUpload(c echo.Context) error {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if auth == "" {
		return c.JSON(http.StatusUnauthorized, errorBody("Missing Authorization"))
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid multipart body"))
	}
	if len(form.File) == 0 {
		return c.JSON(http.StatusBadRequest, errorBody("Missing file"))
	}

	req := s.upstream.R().
		SetContext(c.Request().Context()).
		SetHeader(echo.HeaderAuthorization, auth).
		SetFormDataFromValues(url.Values(form.Value))

	for field, headers := range form.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return c.JSON(http.StatusBadRequest, errorBody("Unreadable file"))
			}
			defer f.Close()
			req.SetMultipartField(field, fh.Filename, fh.Header.Get(echo.HeaderContentType), f)
		}
	}

	resp, err := req.Post(s.cfg.UploadURL)
	if err != nil {
		s.logger.Errorw("Upstream upload failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("Upload failed"))
	}

	result := map[string]interface{}{}
	if err := jsonutil.Decode(resp.Body(), &result); err != nil {
		status := resp.StatusCode()
		if !resp.IsError() {
			status = http.StatusBadGateway
		}
		return c.JSON(status, errorBody("Upload failed"))
	}
	if resp.IsError() {
		return c.JSON(resp.StatusCode(), result)
	}

	if code, ok := result["code"]; ok && code != nil && !isZero(code) {
		msg, _ := result["msg"].(string)
		if msg == "" {
			msg = "Upload failed"
		}
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"code": code, "msg": msg})
	}

	data := result["data"]
	if isFalsy(data) {
		data = result
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"code": 0, "data": data})
}

// handleStore saves the "file" form field under StorageDir and returns
// {"url": ...} pointing at the static file route
func (s *Server) handleStore(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Missing file field"))
	}

	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Unreadable file"))
	}
	defer src.Close()

	name := uuid.NewString()[:8] + "-" + safeFilename(fh.Filename)
	if err := fsutil.CreateDirIfNotExists(s.cfg.StorageDir); err != nil {
		s.logger.Errorw("Storage directory unavailable", "dir", s.cfg.StorageDir, "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("Upload failed"))
	}

	dst, err := os.Create(filepath.Join(s.cfg.StorageDir, name))
	if err != nil {
		s.logger.Errorw("Could not create stored file", "name", name, "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("Upload failed"))
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		s.logger.Errorw("Could not write stored file", "name", name, "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("Upload failed"))
	}

	base := strings.TrimRight(s.cfg.PublicURL, "/")
	if base == "" {
		base = c.Scheme() + "://" + c.Request().Host
	}
	return c.JSON(http.StatusOK, map[string]string{"url": base + "/files/" + url.PathEscape(name)})
}

func safeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}

func isZero(v interface{}) bool {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return err == nil && f == 0
	case float64:
		return n == 0
	default:
		return false
	}
}

func isFalsy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case json.Number:
		f, err := x.Float64()
		return err == nil && f == 0
	default:
		return false
	}
}
