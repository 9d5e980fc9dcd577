package models

import (
	"time"

	"github.com/google/uuid"
)

// SourceStatus represents the pipeline position of one connector import.
// State machine:
//
//	pending → ingested → bucketed → snapshot_generated
//	                             └→ insufficient_data
//
// Status only moves forward; an auto-created source whose normalization
// fails is deleted rather than rolled back.
type SourceStatus string

const (
	SourceStatusPending           SourceStatus = "pending"
	SourceStatusIngested          SourceStatus = "ingested"
	SourceStatusBucketed          SourceStatus = "bucketed"
	SourceStatusSnapshotGenerated SourceStatus = "snapshot_generated"
	SourceStatusInsufficientData  SourceStatus = "insufficient_data"
)

// ValidSourceStatuses contains all valid source status values.
var ValidSourceStatuses = []SourceStatus{
	SourceStatusPending,
	SourceStatusIngested,
	SourceStatusBucketed,
	SourceStatusSnapshotGenerated,
	SourceStatusInsufficientData,
}

// sourceStatusRank orders statuses for forward-only transitions. The two
// terminal statuses share a rank: a source lands on exactly one of them.
var sourceStatusRank = map[SourceStatus]int{
	SourceStatusPending:           0,
	SourceStatusIngested:          1,
	SourceStatusBucketed:          2,
	SourceStatusSnapshotGenerated: 3,
	SourceStatusInsufficientData:  3,
}

// IsValidSourceStatus checks if the given status is valid.
func IsValidSourceStatus(s SourceStatus) bool {
	_, ok := sourceStatusRank[s]
	return ok
}

// CanAdvanceSource reports whether a source may move from one status to
// another. Only strictly forward transitions are allowed.
func CanAdvanceSource(from, to SourceStatus) bool {
	fromRank, ok := sourceStatusRank[from]
	if !ok {
		return false
	}
	toRank, ok := sourceStatusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// Source is one connector import attempt, exclusively owned by one
// installation.
type Source struct {
	ID             uuid.UUID    `json:"id"`
	InstallationID uuid.UUID    `json:"installation_id"`
	Kind           string       `json:"kind"` // connector kind, e.g. "jobber", "housecall"
	Status         SourceStatus `json:"status"`
	// AutoCreated marks sources created implicitly by an ingest call.
	// They are deleted if normalization fails, leaving no empty shells.
	AutoCreated bool      `json:"auto_created"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
