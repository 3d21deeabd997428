package handlers

import (
	"context"
	"html/template"
	"iter"
	"log/slog"
	"net/http"
	"sync"
	"time"

	ideagen "github.com/MegaGrindStone/idea-generator"
	"github.com/MegaGrindStone/idea-generator/internal/models"
	"github.com/MegaGrindStone/idea-generator/internal/stream"
)

// Generator represents a large language model that produces an idea for a prompt. It returns an
// iterator that yields response chunks and potential errors.
type Generator interface {
	Generate(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// Identity is the identity collaborator: it resolves viewer sessions, issues short-lived bearer
// credentials and authenticates requests carrying them.
type Identity interface {
	Session(r *http.Request) models.Session
	SessionFromToken(ctx context.Context, token string) models.Session
	SessionTTL() time.Duration
	Token(ctx context.Context, userID string) (string, error)
	Authenticate(r *http.Request) (models.Session, error)
}

// Renderer turns accumulated idea text into HTML.
type Renderer interface {
	Render(text string) template.HTML
}

// Config holds the handler settings that come from the configuration file.
type Config struct {
	IdeaPrompt string
	PaywallURL string
}

// Main serves the product page, the browser-facing stream of rendered ideas and the idea endpoint
// itself.
type Main struct {
	templates *template.Template

	identity  Identity
	generator Generator
	source    stream.Source
	renderer  Renderer
	cfg       Config

	shutdown     chan struct{}
	shutdownOnce *sync.Once

	logger *slog.Logger
}

const (
	errLoggerKey = "err"

	// DefaultIdeaPrompt is sent to the generator when the configuration doesn't set one.
	DefaultIdeaPrompt = "Come up with a new business idea for AI Agents. " +
		"Format it with headings, sub-headings and bullet points."
	// DefaultPaywallURL is where the paywall's subscribe button leads.
	DefaultPaywallURL = "https://dashboard.clerk.com"
)

// NewMain creates a new Main instance. The source is used by every generator view to reach the idea
// endpoint. It parses the required HTML templates from the embedded filesystem.
func NewMain(
	identity Identity,
	generator Generator,
	source stream.Source,
	renderer Renderer,
	cfg Config,
	logger *slog.Logger,
) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		ideagen.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	if cfg.IdeaPrompt == "" {
		cfg.IdeaPrompt = DefaultIdeaPrompt
	}
	if cfg.PaywallURL == "" {
		cfg.PaywallURL = DefaultPaywallURL
	}

	return Main{
		templates:    tmpl,
		identity:     identity,
		generator:    generator,
		source:       source,
		renderer:     renderer,
		cfg:          cfg,
		shutdown:     make(chan struct{}),
		shutdownOnce: &sync.Once{},
		logger:       logger.With(slog.String("module", "main")),
	}, nil
}

// Shutdown ends every open stream so that the HTTP server can drain its connections. It is safe to
// call more than once.
func (m Main) Shutdown(context.Context) error {
	m.shutdownOnce.Do(func() {
		close(m.shutdown)
	})
	return nil
}
