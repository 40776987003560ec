// Package visitor defines the entities and repository interfaces for the
// visitor identity store and the immutable touch log. These repositories
// abstract the data persistence details, ensuring the attribution core is
// clean and decoupled from the database.
package visitor

import "time"

// TouchSnapshot captures the marketing metadata of a single touch. Nil
// fields mean "direct/none" rather than missing data.
type TouchSnapshot struct {
	Source   *string `json:"source"`
	Medium   *string `json:"medium"`
	Campaign *string `json:"campaign"`
}

// IsDirect reports whether the snapshot carries no marketing source.
func (s TouchSnapshot) IsDirect() bool {
	return s.Source == nil || *s.Source == ""
}

// Identity represents an anonymous browser/device tracked for a tenant.
// The first-touch snapshot is fixed at creation time and never recomputed,
// even when the first touch turns out to be direct.
type Identity struct {
	ID          string        `json:"id"`
	Email       *string       `json:"email,omitempty"` // lowercase, monotonic-set
	Fingerprint string        `json:"fingerprint"`     // derived from visitor key, immutable
	FirstTouch  TouchSnapshot `json:"firstTouch"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Touch represents one inbound visit/session tied to a visitor identity.
// Touches are append-only and never mutated.
type Touch struct {
	ID          string    `json:"id"`
	VisitorID   string    `json:"visitorId"`
	Source      *string   `json:"source,omitempty"`
	Medium      *string   `json:"medium,omitempty"`
	Campaign    *string   `json:"campaign,omitempty"`
	Referrer    *string   `json:"referrer,omitempty"`
	LandingPage string    `json:"landingPage"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Snapshot returns the touch's marketing metadata as a snapshot.
func (t *Touch) Snapshot() TouchSnapshot {
	return TouchSnapshot{
		Source:   t.Source,
		Medium:   t.Medium,
		Campaign: t.Campaign,
	}
}

// IdentityRepository defines the operations for persisting visitor identities.
type IdentityRepository interface {
	FindByID(id string) (*Identity, error)
	// FindByEmail matches case-insensitively; when multiple identities share
	// an email (re-identification after cookie loss) the most recently
	// updated one is returned.
	FindByEmail(email string) (*Identity, error)
	FindByFingerprint(fingerprint string) (*Identity, error)
	Create(identity *Identity) error
	// SetEmail records a captured email. Implementations only overwrite a
	// null email; an existing different address is left untouched.
	SetEmail(id, email string, at time.Time) error
	MarkUpdated(id string, at time.Time) error
	Count() (int, error)
}

// TouchRepository defines the operations for the append-only touch log.
type TouchRepository interface {
	Create(touch *Touch) error
	// FindByVisitorID returns all touches for a visitor ordered by recorded
	// timestamp ascending. Callers must not assume strict ordering across
	// clock skew; attribution re-sorts.
	FindByVisitorID(visitorID string) ([]*Touch, error)
	FindInRange(since, until time.Time) ([]*Touch, error)
	CountByVisitorID(visitorID string) (int, error)
}
