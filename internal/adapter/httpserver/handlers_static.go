package httpserver

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/radiocast/internal/platform/errors"
)

const (
	homePage       = "home/index.html"
	controllerPage = "controller/index.html"
)

var contentTypes = map[string]string{
	".html": echo.MIMETextHTMLCharsetUTF8,
	".css":  "text/css; charset=utf-8",
	".js":   echo.MIMEApplicationJavaScriptCharsetUTF8,
	".json": echo.MIMEApplicationJSONCharsetUTF8,
	".svg":  "image/svg+xml",
	".png":  "image/png",
	".ico":  "image/x-icon",
}

func (s *Server) registerStaticRoutes() {
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/home", s.servePage(homePage))
	s.echo.GET("/controller", s.servePage(controllerPage))
	s.echo.GET("/*", s.handleStatic)
}

func (s *Server) handleRoot(c echo.Context) error {
	if err := c.Redirect(http.StatusFound, "/home"); err != nil {
		return fmt.Errorf("failed to redirect: %w", err)
	}
	return nil
}

func (s *Server) servePage(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return s.serveFile(c, name)
	}
}

func (s *Server) handleStatic(c echo.Context) error {
	name := strings.TrimPrefix(path.Clean("/"+c.Param("*")), "/")
	if name == "" {
		return apperrors.NotFoundError("file not found")
	}
	return s.serveFile(c, name)
}

func (s *Server) serveFile(c echo.Context, name string) error {
	info, err := fs.Stat(s.static, name)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) || (err == nil && info.IsDir()) {
		return apperrors.NotFoundError("file not found").WithContext("file", name)
	}
	if err != nil {
		return apperrors.InternalError("failed to stat static file", err).WithContext("file", name)
	}

	data, err := fs.ReadFile(s.static, name)
	if err != nil {
		return apperrors.InternalError("failed to read static file", err).WithContext("file", name)
	}

	contentType, ok := contentTypes[path.Ext(name)]
	if !ok {
		contentType = echo.MIMEOctetStream
	}
	if err := c.Blob(http.StatusOK, contentType, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
