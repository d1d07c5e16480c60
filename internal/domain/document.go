package domain

import (
	"time"

	"github.com/google/uuid"
)

// DocumentStatus is the lifecycle state of a permit or other regulatory
// document. Readiness rules care only whether a document is active.
type DocumentStatus string

const (
	DocumentStatusActive      DocumentStatus = "active"
	DocumentStatusExpired     DocumentStatus = "expired"
	DocumentStatusSuspended   DocumentStatus = "suspended"
	DocumentStatusSurrendered DocumentStatus = "surrendered"
	DocumentStatusSuperseded  DocumentStatus = "superseded"
)

// IsActive reports whether the document is in force.
func (s DocumentStatus) IsActive() bool {
	return s == DocumentStatusActive
}

// Document is a read-only view of a permit or similar regulatory document.
// CRUD management of documents is external; the engine only reads them for
// readiness checks and pack assembly.
type Document struct {
	ID           uuid.UUID
	SiteID       uuid.UUID
	Title        string
	DocumentType string // "permit", "consent", "exemption", ...
	Reference    string // regulator reference, e.g. "EPR/AB1234CD"
	Status       DocumentStatus
	IssuedDate   time.Time
}
