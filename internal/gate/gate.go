// Package gate decides which rendering of the product page a viewer may see.
package gate

import (
	"sync"

	"github.com/MegaGrindStone/idea-generator/internal/models"
)

// RootPath is where signed-out viewers are sent.
const RootPath = "/"

// Navigator moves the viewer to another path.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(path string)

// Gate wraps Decide with the single side effect of the access gate: navigating signed-out viewers to
// the root path. The navigation fires once per transition into the signed-out state, no matter how
// many times Render is called while the viewer stays there.
type Gate struct {
	nav Navigator

	mu         sync.Mutex
	redirected bool
}

// Navigate calls f(path).
func (f NavigatorFunc) Navigate(path string) {
	f(path)
}

// New creates a Gate that navigates through nav.
func New(nav Navigator) *Gate {
	return &Gate{nav: nav}
}

// Decide maps a session to the view it is allowed to see. It has no side effects.
func Decide(s models.Session) models.View {
	switch {
	case !s.Loaded, !s.SignedIn:
		return models.ViewLoading
	case !s.Can(models.CapabilityGenerate):
		return models.ViewPaywall
	default:
		return models.ViewGenerator
	}
}

// Render returns Decide(s) and triggers the redirect for loaded, signed-out sessions.
func (g *Gate) Render(s models.Session) models.View {
	signedOut := s.Loaded && !s.SignedIn

	g.mu.Lock()
	fire := signedOut && !g.redirected
	g.redirected = signedOut
	g.mu.Unlock()

	if fire {
		g.nav.Navigate(RootPath)
	}
	return Decide(s)
}
