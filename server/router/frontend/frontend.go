// Package frontend serves the chat page and its static assets.
package frontend

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

//go:embed templates/index.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// PageConfig is what the index page shows about the deployment.
type PageConfig struct {
	ModelName        string
	MaxHistoryLength int
	TokenBudget      int
}

// FrontendService renders the chat page.
type FrontendService struct {
	config PageConfig
	index  *template.Template
}

// NewFrontendService parses the embedded page template.
func NewFrontendService(config PageConfig) (*FrontendService, error) {
	index, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, err
	}
	return &FrontendService{config: config, index: index}, nil
}

// Serve registers GET / and GET /static/*.
func (s *FrontendService) Serve(e *echo.Echo) error {
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return err
	}
	e.Group("/static", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=3600")
			return next(c)
		}
	}).Use(middleware.StaticWithConfig(middleware.StaticConfig{
		Filesystem: http.FS(static),
	}))

	e.GET("/", s.serveIndex)
	return nil
}

func (s *FrontendService) serveIndex(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return s.index.Execute(c.Response(), s.config)
}
