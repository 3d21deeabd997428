package models

import (
	"errors"
	"time"
)

// User represents an account known to the identity collaborator. PublicMetadata carries arbitrary
// key-value data attached to the account; the subscription flag is one of those keys.
type User struct {
	ID             string
	Name           string
	PublicMetadata map[string]any
	CreatedAt      time.Time
}

// Tier is the subscription tier stored in a user's public metadata.
type Tier string

// Capability is a typed permission resolved by the identity collaborator from a user's metadata.
type Capability string

// Session is the identity state of a single viewer. Loaded reports whether the identity check has
// completed; until it has, SignedIn and User carry no meaning.
type Session struct {
	Loaded   bool
	SignedIn bool
	User     User

	Capabilities []Capability
}

const (
	// SubscriptionMetadataKey is the public metadata key holding the user's Tier.
	SubscriptionMetadataKey = "subscription"

	// TierPremium is the only tier that unlocks the idea generator.
	TierPremium Tier = "premium_subscription"

	// CapabilityGenerate allows a session to open the idea generator and call the idea endpoint.
	CapabilityGenerate Capability = "generate"
)

// ErrUserNotFound is returned by user stores when no user has the requested ID.
var ErrUserNotFound = errors.New("user not found")

// Subscription returns the tier stored in the user's public metadata, or an empty Tier when the key
// is missing or not a string.
func (u User) Subscription() Tier {
	v, ok := u.PublicMetadata[SubscriptionMetadataKey].(string)
	if !ok {
		return ""
	}
	return Tier(v)
}

// Can reports whether the session holds the given capability.
func (s Session) Can(c Capability) bool {
	for _, have := range s.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// CapabilitiesFor resolves the capabilities granted to a user.
func CapabilitiesFor(u User) []Capability {
	if u.Subscription() == TierPremium {
		return []Capability{CapabilityGenerate}
	}
	return nil
}
