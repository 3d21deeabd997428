// Package stream accumulates text fragments delivered by a server-streaming connection and republishes
// the growing text after every fragment.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/MegaGrindStone/idea-generator/internal/models"
)

// TokenSource obtains a short-lived credential for the streaming endpoint. An empty token means no
// credential is available.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to the TokenSource interface.
type TokenFunc func(ctx context.Context) (string, error)

// Source opens one server-streaming connection authorized by token and calls onFragment for every
// message it receives, in arrival order and from a single goroutine. Reconnects happen inside the
// Source and are invisible to the caller. Stream blocks until ctx is done, the server ends the
// stream, or the Source gives up.
type Source interface {
	Stream(ctx context.Context, token string, onFragment func(string)) error
}

// Publisher receives every state an Accumulator produces.
type Publisher interface {
	Publish(idea models.Idea)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(idea models.Idea)

// Accumulator owns one streaming session: it fetches a credential, opens a single connection, appends
// fragments to its buffer and publishes the buffer after each one. Its lifetime is bounded by Start
// and Stop.
type Accumulator struct {
	tokens    TokenSource
	source    Source
	publisher Publisher
	logger    *slog.Logger

	mu      sync.Mutex
	buf     strings.Builder
	state   models.Idea
	started bool
	stopped bool

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

const errLoggerKey = "err"

var (
	// ErrAlreadyStarted is returned when Start is called more than once.
	ErrAlreadyStarted = errors.New("accumulator already started")
	// ErrStopped is returned when Start is called after Stop.
	ErrStopped = errors.New("accumulator stopped")
)

// Token calls f(ctx).
func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Publish calls f(idea).
func (f PublisherFunc) Publish(idea models.Idea) {
	f(idea)
}

// New creates an Accumulator. Nothing happens until Start is called.
func New(tokens TokenSource, source Source, publisher Publisher, logger *slog.Logger) *Accumulator {
	return &Accumulator{
		tokens:    tokens,
		source:    source,
		publisher: publisher,
		logger:    logger.With(slog.String("module", "accumulator")),
		state:     models.LoadingIdea(),
		done:      make(chan struct{}),
	}
}

// Start publishes the loading state and begins streaming in the background. The stream is bound to
// ctx as well as to Stop.
func (a *Accumulator) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return ErrStopped
	}
	if a.started {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	a.started = true
	ctx, a.cancel = context.WithCancel(ctx)
	a.mu.Unlock()

	a.publish(models.LoadingIdea())

	go a.run(ctx)
	return nil
}

// Stop aborts the connection, waits for the background goroutine and discards the buffer. It is safe
// to call more than once and from any goroutine. No state is published after Stop returns.
// Publisher is called without holding the lock; Stop waits for a publish in flight to return.
func (a *Accumulator) Stop() {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		a.stopped = true
		started := a.started
		if a.cancel != nil {
			a.cancel()
		}
		a.buf.Reset()
		a.state = models.LoadingIdea()
		a.mu.Unlock()

		if started {
			<-a.done
		}
	})
}

// Done is closed when the background goroutine has finished, whether because the stream ended, no
// credential was available, or Stop was called.
func (a *Accumulator) Done() <-chan struct{} {
	return a.done
}

// State returns the last published state.
func (a *Accumulator) State() models.Idea {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Accumulator) run(ctx context.Context) {
	defer close(a.done)
	defer a.cancel()

	token, err := a.tokens.Token(ctx)
	if err != nil || token == "" {
		if err != nil {
			a.logger.Info("No credential available", slog.String(errLoggerKey, err.Error()))
		}
		a.publish(models.AuthRequiredIdea())
		return
	}

	err = a.source.Stream(ctx, token, a.append)
	switch {
	case err == nil:
		a.logger.Debug("Stream ended")
	case errors.Is(err, context.Canceled):
		a.logger.Debug("Stream canceled")
	default:
		a.logger.Warn("Stream gave up", slog.String(errLoggerKey, err.Error()))
	}
}

func (a *Accumulator) append(fragment string) {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.buf.WriteString(fragment)
	idea := models.ContentIdea(a.buf.String())
	a.state = idea
	a.mu.Unlock()

	a.publisher.Publish(idea)
}

// publish records idea as the current state and hands it to the publisher unless Stop was called.
func (a *Accumulator) publish(idea models.Idea) {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.state = idea
	a.mu.Unlock()

	a.publisher.Publish(idea)
}
