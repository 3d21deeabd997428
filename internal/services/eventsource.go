package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/tmaxmax/go-sse"
)

// EventSourceOptions configures the request method and the reconnect policy of an EventSource. Zero
// values fall back to defaults; retries are always bounded.
type EventSourceOptions struct {
	Method          string
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      int
	MaxElapsedTime  time.Duration

	HTTPClient *http.Client
}

// EventSource opens server-sent-events streams against the idea endpoint. Transport errors are never
// returned to the caller while retries remain: they are logged and the connection is re-established
// with exponential backoff.
type EventSource struct {
	url  string
	opts EventSourceOptions

	logger *slog.Logger
}

// EndEventType is the event a server sends once the stream is complete. It carries no fragment.
const EndEventType = "end"

// NewEventSource creates an EventSource for url.
func NewEventSource(url string, opts EventSourceOptions, logger *slog.Logger) EventSource {
	if opts.Method == "" {
		opts.Method = http.MethodGet
	}
	if opts.InitialInterval == 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	if opts.MaxInterval == 0 {
		opts.MaxInterval = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 10
	}
	if opts.MaxElapsedTime == 0 {
		opts.MaxElapsedTime = 5 * time.Minute
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}

	return EventSource{
		url:    url,
		opts:   opts,
		logger: logger.With(slog.String("module", "eventsource")),
	}
}

// Stream connects with token as bearer credential and calls onFragment with the fragment of every
// message event. Fragments are JSON strings on the wire; data that isn't one is passed through as is.
//
// A lost connection is retried, whether it broke or the server closed it without sending the end
// event. The retry budget covers the whole call: go-sse restarts its own count after every successful
// response, so a server that keeps accepting and dropping connections would otherwise be retried
// forever. Stream returns nil when the server ends the stream, ctx's error when ctx is done, and the
// last connection error when retries are exhausted.
func (e EventSource) Stream(parent context.Context, token string, onFragment func(string)) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, e.opts.Method, e.url, http.NoBody)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var (
		mu       sync.Mutex
		ended    bool
		retries  int
		giveUp   error
		deadline = time.Now().Add(e.opts.MaxElapsedTime)
	)

	client := &sse.Client{
		HTTPClient: e.opts.HTTPClient,
		OnRetry: func(err error, wait time.Duration) {
			mu.Lock()
			defer mu.Unlock()

			retries++
			if retries > e.opts.MaxRetries || time.Now().Add(wait).After(deadline) {
				giveUp = err
				cancel()
				return
			}
			e.logger.Warn("Stream interrupted, reconnecting",
				slog.Int("retry", retries),
				slog.Duration("wait", wait),
				slog.String(errLoggerKey, err.Error()))
		},
		Backoff: sse.Backoff{
			InitialInterval: e.opts.InitialInterval,
			Multiplier:      1.5,
			Jitter:          0.5,
			MaxInterval:     e.opts.MaxInterval,
			MaxRetries:      e.opts.MaxRetries,
			MaxElapsedTime:  e.opts.MaxElapsedTime,
		},
	}
	conn := client.NewConnection(req)

	removeMessages := conn.SubscribeMessages(func(ev sse.Event) {
		onFragment(decodeFragment(ev.Data))
	})
	defer removeMessages()

	removeEnd := conn.SubscribeEvent(EndEventType, func(sse.Event) {
		mu.Lock()
		ended = true
		mu.Unlock()
		cancel()
	})
	defer removeEnd()

	err = conn.Connect()

	mu.Lock()
	defer mu.Unlock()
	switch {
	case ended:
		return nil
	case parent.Err() != nil:
		return parent.Err()
	case giveUp != nil:
		return fmt.Errorf("stream failed after %d retries: %w", retries-1, giveUp)
	case err == nil:
		return nil
	default:
		return fmt.Errorf("stream failed: %w", err)
	}
}

func decodeFragment(data string) string {
	var fragment string
	if err := json.Unmarshal([]byte(data), &fragment); err != nil {
		return data
	}
	return fragment
}
