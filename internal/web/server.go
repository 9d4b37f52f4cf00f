// Package web serves the three pages and the form endpoints behind them.
package web

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/harrylevesque/bloodscan/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pages = []string{"home.html", "login.html", "finger.html"}

// Server renders pages for the views held in its registry.
type Server struct {
	registry  *session.Registry
	logger    log.FieldLogger
	maxUpload int64
	templates map[string]*template.Template
	static    http.Handler
}

type Options struct {
	Registry       *session.Registry
	Logger         log.FieldLogger
	MaxUploadBytes int64
}

func NewServer(opts Options) (*Server, error) {
	if opts.Registry == nil {
		return nil, errors.New("web: registry is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}

	funcs := template.FuncMap{
		"pct": func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
	}
	tmpl := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		t, err := template.New(page).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", page)
		}
		tmpl[page] = t
	}

	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, errors.Wrap(err, "static assets")
	}

	return &Server{
		registry:  opts.Registry,
		logger:    opts.Logger,
		maxUpload: opts.MaxUploadBytes,
		templates: tmpl,
		static:    http.StripPrefix("/static/", http.FileServer(http.FS(sub))),
	}, nil
}

func (s *Server) render(w http.ResponseWriter, page string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates[page].ExecuteTemplate(w, "layout", data); err != nil {
		s.logger.WithError(err).WithField("page", page).Error("render failed")
	}
}
