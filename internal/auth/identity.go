// Package auth is the identity collaborator of the product page: it reads sessions from requests,
// issues short-lived bearer credentials and verifies them on the idea endpoint.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MegaGrindStone/idea-generator/internal/models"
)

// UserStore looks up users by ID. It returns models.ErrUserNotFound for unknown IDs.
type UserStore interface {
	User(ctx context.Context, id string) (models.User, error)
}

// Options tunes token lifetimes and the user lookup deadline. Zero values fall back to defaults.
type Options struct {
	SessionTTL    time.Duration
	TokenTTL      time.Duration
	LookupTimeout time.Duration
}

// Identity resolves sessions and credentials against a UserStore.
type Identity struct {
	issuer Issuer
	store  UserStore
	opts   Options

	logger *slog.Logger
}

// SessionCookie is the name of the cookie carrying the session token.
const SessionCookie = "__session"

const errLoggerKey = "err"

// ErrNoToken is returned by Token when no credential can be issued for the user.
var ErrNoToken = errors.New("no token available")

// NewIdentity creates an Identity.
func NewIdentity(issuer Issuer, store UserStore, opts Options, logger *slog.Logger) Identity {
	if opts.SessionTTL == 0 {
		opts.SessionTTL = 30 * 24 * time.Hour
	}
	if opts.TokenTTL == 0 {
		opts.TokenTTL = time.Minute
	}
	if opts.LookupTimeout == 0 {
		opts.LookupTimeout = 2 * time.Second
	}
	return Identity{
		issuer: issuer,
		store:  store,
		opts:   opts,
		logger: logger.With(slog.String("module", "identity")),
	}
}

// Session reads the session cookie of r. A missing cookie yields a loaded, signed-out session; see
// SessionFromToken for the rest.
func (i Identity) Session(r *http.Request) models.Session {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return models.Session{Loaded: true}
	}
	return i.SessionFromToken(r.Context(), c.Value)
}

// SessionFromToken resolves a session token. An invalid token or an unknown user yields a loaded,
// signed-out session. If the user lookup fails for any other reason the identity check has not
// completed, and the session is returned with Loaded unset.
func (i Identity) SessionFromToken(ctx context.Context, token string) models.Session {
	userID, err := i.issuer.Verify(token, KindSession)
	if err != nil {
		i.logger.Debug("Rejected session token", slog.String(errLoggerKey, err.Error()))
		return models.Session{Loaded: true}
	}

	ctx, cancel := context.WithTimeout(ctx, i.opts.LookupTimeout)
	defer cancel()

	user, err := i.store.User(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return models.Session{Loaded: true}
		}
		i.logger.Error("Failed to look up user",
			slog.String("userID", userID),
			slog.String(errLoggerKey, err.Error()))
		return models.Session{}
	}

	return models.Session{
		Loaded:       true,
		SignedIn:     true,
		User:         user,
		Capabilities: models.CapabilitiesFor(user),
	}
}

// IssueSession creates a session token for userID, suitable for the session cookie.
func (i Identity) IssueSession(ctx context.Context, userID string) (string, error) {
	if _, err := i.store.User(ctx, userID); err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	return i.issuer.Generate(userID, KindSession, i.opts.SessionTTL)
}

// SessionTTL reports how long issued session tokens stay valid.
func (i Identity) SessionTTL() time.Duration {
	return i.opts.SessionTTL
}

// Token issues a short-lived bearer credential for userID. It returns ErrNoToken when the user does
// not exist.
func (i Identity) Token(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", ErrNoToken
	}
	if _, err := i.store.User(ctx, userID); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	return i.issuer.Generate(userID, KindAPI, i.opts.TokenTTL)
}

// Authenticate verifies the bearer credential of r and returns the session of its user.
func (i Identity) Authenticate(r *http.Request) (models.Session, error) {
	token, err := extractBearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return models.Session{}, err
	}

	userID, err := i.issuer.Verify(token, KindAPI)
	if err != nil {
		return models.Session{}, err
	}

	user, err := i.store.User(r.Context(), userID)
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to look up user: %w", err)
	}

	return models.Session{
		Loaded:       true,
		SignedIn:     true,
		User:         user,
		Capabilities: models.CapabilitiesFor(user),
	}, nil
}
