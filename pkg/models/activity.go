package models

import (
	"time"

	"github.com/google/uuid"
)

// Canonical activity rows. Every field here is on the ingestion allow-list;
// nothing else from a connector payload survives normalization. Names,
// emails and full addresses never reach these types - geography is reduced
// to a lower-cased city slug and a postal prefix.

// EstimateStatus is the canonical status set for estimates.
type EstimateStatus string

const (
	EstimateStatusDraft     EstimateStatus = "draft"
	EstimateStatusSent      EstimateStatus = "sent"
	EstimateStatusAccepted  EstimateStatus = "accepted"
	EstimateStatusDeclined  EstimateStatus = "declined"
	EstimateStatusConverted EstimateStatus = "converted"
	EstimateStatusUnknown   EstimateStatus = "unknown"
)

// MeaningfulEstimateStatuses are the statuses that count toward the
// minimum-data gate. Drafts and unknowns carry no demand signal.
var MeaningfulEstimateStatuses = map[EstimateStatus]bool{
	EstimateStatusSent:      true,
	EstimateStatusAccepted:  true,
	EstimateStatusConverted: true,
}

// InvoiceStatus is the canonical status set for invoices.
type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "draft"
	InvoiceStatusSent    InvoiceStatus = "sent"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
	InvoiceStatusVoid    InvoiceStatus = "void"
	InvoiceStatusUnknown InvoiceStatus = "unknown"
)

// InvoiceStatusOrder fixes the order of the invoice status distribution in
// bucket output. The set is closed; the bucketer iterates this slice.
var InvoiceStatusOrder = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusSent,
	InvoiceStatusPaid,
	InvoiceStatusOverdue,
	InvoiceStatusVoid,
	InvoiceStatusUnknown,
}

// JobStatus is the canonical status set for jobs.
type JobStatus string

const (
	JobStatusScheduled  JobStatus = "scheduled"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusComplete   JobStatus = "complete"
	JobStatusCancelled  JobStatus = "cancelled"
	JobStatusUnknown    JobStatus = "unknown"
)

// ClientStatus is the canonical status set for clients.
type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusArchived ClientStatus = "archived"
	ClientStatusUnknown  ClientStatus = "unknown"
)

// PaymentStatus is the canonical status set for payments.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusUnknown   PaymentStatus = "unknown"
)

// EstimateRow is one normalized estimate.
type EstimateRow struct {
	NaturalID    string         `json:"natural_id"`
	SourceID     uuid.UUID      `json:"source_id"`
	CreatedAt    time.Time      `json:"created_at"`
	ClosedAt     *time.Time     `json:"closed_at,omitempty"` // accepted/declined time, if any
	Amount       float64        `json:"amount"`
	Status       EstimateStatus `json:"status"`
	JobType      string         `json:"job_type"`
	City         string         `json:"city"`
	PostalPrefix string         `json:"postal_prefix"`
}

// InvoiceRow is one normalized invoice.
type InvoiceRow struct {
	NaturalID  string        `json:"natural_id"`
	SourceID   uuid.UUID     `json:"source_id"`
	CreatedAt  time.Time     `json:"created_at"`
	Amount     float64       `json:"amount"`
	Status     InvoiceStatus `json:"status"`
	EstimateID string        `json:"estimate_id,omitempty"` // natural id of the source estimate, if linked
}

// JobRow is one normalized job.
type JobRow struct {
	NaturalID string    `json:"natural_id"`
	SourceID  uuid.UUID `json:"source_id"`
	CreatedAt time.Time `json:"created_at"`
	Status    JobStatus `json:"status"`
	JobType   string    `json:"job_type"`
}

// ClientRow is one normalized client. Amounts and identities are absent by
// design; clients contribute volume and geography only.
type ClientRow struct {
	NaturalID    string       `json:"natural_id"`
	SourceID     uuid.UUID    `json:"source_id"`
	CreatedAt    time.Time    `json:"created_at"`
	Status       ClientStatus `json:"status"`
	City         string       `json:"city"`
	PostalPrefix string       `json:"postal_prefix"`
}

// PaymentRow is one normalized payment.
type PaymentRow struct {
	NaturalID string        `json:"natural_id"`
	SourceID  uuid.UUID     `json:"source_id"`
	CreatedAt time.Time     `json:"created_at"`
	Amount    float64       `json:"amount"`
	Status    PaymentStatus `json:"status"`
	InvoiceID string        `json:"invoice_id,omitempty"`
}
