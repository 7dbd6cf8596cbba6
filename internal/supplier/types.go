package supplier

import (
	"strings"
	"time"
)

// Status is the supplier application state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Business holds the supplier's business fields. Only meaningful once the
// profile is approved.
type Business struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
}

// Profile is a supplier application, one-to-one with an identity.
type Profile struct {
	ID              string    `json:"id"`
	IdentityID      string    `json:"identity_id"`
	Status          Status    `json:"status"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	Business        Business  `json:"business"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Document is a file submitted alongside an application. Immutable after
// creation except for deletion cascading with its profile.
type Document struct {
	ID          string    `json:"id"`
	ProfileID   string    `json:"profile_id"`
	FileName    string    `json:"file_name"`
	Location    string    `json:"-"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

// Upload describes an already-persisted file blob to be attached to a new
// application.
type Upload struct {
	FileName    string
	ContentType string
	Location    string
	SizeBytes   int64
}

// BusinessUpdate carries optional business field changes.
type BusinessUpdate struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
	City    *string `json:"city"`
	State   *string `json:"state"`
	Zip     *string `json:"zip"`
}

// Apply overwrites the set fields of b, trimming whitespace.
func (u BusinessUpdate) Apply(b *Business) {
	if u.Name != nil {
		b.Name = strings.TrimSpace(*u.Name)
	}
	if u.Address != nil {
		b.Address = strings.TrimSpace(*u.Address)
	}
	if u.City != nil {
		b.City = strings.TrimSpace(*u.City)
	}
	if u.State != nil {
		b.State = strings.TrimSpace(*u.State)
	}
	if u.Zip != nil {
		b.Zip = strings.TrimSpace(*u.Zip)
	}
}
