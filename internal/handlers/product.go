package handlers

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"sync"

	"github.com/MegaGrindStone/idea-generator/internal/gate"
	"github.com/MegaGrindStone/idea-generator/internal/models"
	"github.com/MegaGrindStone/idea-generator/internal/stream"
	"github.com/tmaxmax/go-sse"
)

type productPageData struct {
	View       string
	UserName   string
	PaywallURL string

	SubscriptionKey string
	PremiumTier     string

	Idea ideaView
}

type ideaView struct {
	Loading bool
	Notice  string
	HTML    template.HTML
}

// ideaPublisher renders every accumulator state into the "idea" partial and sends it to the browser.
type ideaPublisher struct {
	mu      sync.Mutex
	session *sse.Session

	templates *template.Template
	renderer  Renderer

	logger *slog.Logger
}

// SSE event types sent to the generator view.
var (
	ideaSSEType = sse.Type("idea")
	doneSSEType = sse.Type("done")
)

// HandleProduct renders the product page behind the access gate. Signed-out viewers are redirected to
// the landing page, viewers without a subscription get the paywall, and subscribers get the generator
// view, which opens the idea stream on load.
func (m Main) HandleProduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s := m.identity.Session(r)

	navigated := false
	g := gate.New(gate.NavigatorFunc(func(path string) {
		navigated = true
		http.Redirect(w, r, path, http.StatusSeeOther)
	}))
	view := g.Render(s)
	if navigated {
		return
	}

	data := productPageData{
		View:            view.String(),
		UserName:        s.User.Name,
		PaywallURL:      m.cfg.PaywallURL,
		SubscriptionKey: models.SubscriptionMetadataKey,
		PremiumTier:     string(models.TierPremium),
		Idea:            ideaView{Loading: true},
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := m.templates.ExecuteTemplate(w, "product.html", data); err != nil {
		m.logger.Error("Failed to render product page", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleIdeaSSE streams a freshly generated idea to a generator view. Each connection owns one
// accumulator that reaches the idea endpoint with a short-lived credential; every fragment it receives
// is rendered and pushed as an "idea" event. The accumulator is stopped when the browser disconnects,
// and a "done" event is sent if it finishes first.
func (m Main) HandleIdeaSSE(w http.ResponseWriter, r *http.Request) {
	s := m.identity.Session(r)
	if gate.Decide(s) != models.ViewGenerator {
		m.logger.Warn("Idea stream refused", slog.String("view", gate.Decide(s).String()))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	sess, err := sse.Upgrade(w, r)
	if err != nil {
		m.logger.Error("Failed to upgrade to SSE", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	pub := &ideaPublisher{
		session:   sess,
		templates: m.templates,
		renderer:  m.renderer,
		logger:    m.logger,
	}

	userID := s.User.ID
	tokens := stream.TokenFunc(func(ctx context.Context) (string, error) {
		return m.identity.Token(ctx, userID)
	})

	acc := stream.New(tokens, m.source, pub, m.logger.With(slog.String("userID", userID)))
	if err := acc.Start(r.Context()); err != nil {
		m.logger.Error("Failed to start accumulator", slog.String(errLoggerKey, err.Error()))
		return
	}
	defer acc.Stop()

	select {
	case <-r.Context().Done():
	case <-m.shutdown:
	case <-acc.Done():
		pub.done()
	}
}

func (p *ideaPublisher) Publish(idea models.Idea) {
	var v ideaView
	switch idea.Status {
	case models.IdeaStatusLoading:
		v.Loading = true
	case models.IdeaStatusAuthRequired:
		v.Notice = models.AuthRequiredText
	case models.IdeaStatusContent:
		v.HTML = p.renderer.Render(idea.Text)
	}

	var buf bytes.Buffer
	if err := p.templates.ExecuteTemplate(&buf, "idea", v); err != nil {
		p.logger.Error("Failed to render idea", slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := &sse.Message{Type: ideaSSEType}
	msg.AppendData(buf.String())
	p.send(msg)
}

func (p *ideaPublisher) done() {
	msg := &sse.Message{Type: doneSSEType}
	// We send data because events without data are never dispatched by browsers
	msg.AppendData("bye")
	p.send(msg)
}

func (p *ideaPublisher) send(msg *sse.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.session.Send(msg); err != nil {
		p.logger.Debug("Failed to send event", slog.String(errLoggerKey, err.Error()))
		return
	}
	if err := p.session.Flush(); err != nil {
		p.logger.Debug("Failed to flush event", slog.String(errLoggerKey, err.Error()))
	}
}
