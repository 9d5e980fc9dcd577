package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SnapshotStatus represents one report generation attempt's lifecycle.
// State machine:
//
//	created → queued → running → complete
//	                          └→ failed
//
// Terminal states are final; re-running a terminal snapshot is a no-op.
type SnapshotStatus string

const (
	SnapshotStatusCreated  SnapshotStatus = "created"
	SnapshotStatusQueued   SnapshotStatus = "queued"
	SnapshotStatusRunning  SnapshotStatus = "running"
	SnapshotStatusComplete SnapshotStatus = "complete"
	SnapshotStatusFailed   SnapshotStatus = "failed"
)

// IsTerminalSnapshotStatus reports whether a status is final.
func IsTerminalSnapshotStatus(s SnapshotStatus) bool {
	return s == SnapshotStatusComplete || s == SnapshotStatusFailed
}

// SnapshotErrorKind classifies persisted snapshot failures.
type SnapshotErrorKind string

const (
	SnapshotErrorValidation  SnapshotErrorKind = "validation"
	SnapshotErrorPersistence SnapshotErrorKind = "persistence"
	SnapshotErrorTimeout     SnapshotErrorKind = "timeout"
	SnapshotErrorInternal    SnapshotErrorKind = "internal"
)

// SnapshotError is the structured error captured on a failed snapshot.
// Messages are coarse by design: no stack traces, no third-party bodies.
type SnapshotError struct {
	Kind    SnapshotErrorKind `json:"kind"`
	Message string            `json:"message"`
}

// Snapshot is one report generation attempt and its persisted lifecycle.
type Snapshot struct {
	ID              uuid.UUID       `json:"id"`
	SourceID        uuid.UUID       `json:"source_id"`
	Status          SnapshotStatus  `json:"status"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level,omitempty"`
	Report          *Report         `json:"report,omitempty"`
	Error           *SnapshotError  `json:"error,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// ConfidenceLevel is the fixed confidence enumeration.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// IsValidConfidence checks a confidence level against the closed set.
func IsValidConfidence(c ConfidenceLevel) bool {
	return c == ConfidenceLow || c == ConfidenceMedium || c == ConfidenceHigh
}

// ReportKind distinguishes the two report variants.
type ReportKind string

const (
	ReportKindSnapshot         ReportKind = "snapshot"
	ReportKindInsufficientData ReportKind = "insufficient_data"
)

// DemandTrend is the weekly-volume trend classification.
type DemandTrend string

const (
	TrendUp   DemandTrend = "up"
	TrendDown DemandTrend = "down"
	TrendFlat DemandTrend = "flat"
)

// ReportSignals carries the raw signals a snapshot report was scored from.
type ReportSignals struct {
	EstimateCount int         `json:"estimate_count"`
	InvoiceCount  int         `json:"invoice_count"`
	DemandTrend   DemandTrend `json:"demand_trend"`
}

// ReportScores are the four integer scores, each clamped to [0,100].
type ReportScores struct {
	DemandSignal     int             `json:"demand_signal"`
	CashSignal       int             `json:"cash_signal"`
	DecisionLatency  int             `json:"decision_latency"`
	CapacityPressure int             `json:"capacity_pressure"`
	Confidence       ConfidenceLevel `json:"confidence"`
}

// ReportFound carries the counts behind an insufficient_data verdict.
type ReportFound struct {
	Estimates int `json:"estimates"`
	Invoices  int `json:"invoices"`
}

// Report is the locked output schema. Both scoring paths - deterministic
// and externally assisted - must produce a value that passes
// ValidateReport; an assisted response that does not is discarded and
// recomputed deterministically.
type Report struct {
	Kind        ReportKind `json:"kind"`
	WindowDays  int        `json:"window_days"`
	Disclaimers []string   `json:"disclaimers"`

	// snapshot variant
	Signals   *ReportSignals `json:"signals,omitempty"`
	Scores    *ReportScores  `json:"scores,omitempty"`
	Findings  []string       `json:"findings,omitempty"`
	NextSteps []string       `json:"next_steps,omitempty"`

	// insufficient_data variant
	RequiredMinimum  int             `json:"required_minimum,omitempty"`
	Found            *ReportFound    `json:"found,omitempty"`
	WhatYouCanDoNext []string        `json:"what_you_can_do_next,omitempty"`
	Confidence       ConfidenceLevel `json:"confidence,omitempty"`
}

// FindingsCount is the fixed number of findings a snapshot report carries:
// demand rhythm, deal-size mix, decision speed, job-mix signal.
const FindingsCount = 4

// ValidateReport checks a report against the locked schema. Used on both
// the deterministic output (as a self-check in tests) and on every
// external reasoning response before it is accepted.
func ValidateReport(r *Report) error {
	if r == nil {
		return fmt.Errorf("report is nil")
	}
	if r.WindowDays <= 0 {
		return fmt.Errorf("window_days must be positive, got %d", r.WindowDays)
	}
	if len(r.Disclaimers) == 0 {
		return fmt.Errorf("disclaimers must not be empty")
	}

	switch r.Kind {
	case ReportKindSnapshot:
		if r.Signals == nil {
			return fmt.Errorf("snapshot report missing signals")
		}
		if r.Signals.EstimateCount < 0 || r.Signals.InvoiceCount < 0 {
			return fmt.Errorf("signal counts must be non-negative")
		}
		switch r.Signals.DemandTrend {
		case TrendUp, TrendDown, TrendFlat:
		default:
			return fmt.Errorf("unknown demand trend %q", r.Signals.DemandTrend)
		}
		if r.Scores == nil {
			return fmt.Errorf("snapshot report missing scores")
		}
		for name, v := range map[string]int{
			"demand_signal":     r.Scores.DemandSignal,
			"cash_signal":       r.Scores.CashSignal,
			"decision_latency":  r.Scores.DecisionLatency,
			"capacity_pressure": r.Scores.CapacityPressure,
		} {
			if v < 0 || v > 100 {
				return fmt.Errorf("score %s out of range: %d", name, v)
			}
		}
		if !IsValidConfidence(r.Scores.Confidence) {
			return fmt.Errorf("invalid confidence %q", r.Scores.Confidence)
		}
		if len(r.Findings) != FindingsCount {
			return fmt.Errorf("snapshot report must carry %d findings, got %d", FindingsCount, len(r.Findings))
		}
		if len(r.NextSteps) == 0 {
			return fmt.Errorf("next_steps must not be empty")
		}

	case ReportKindInsufficientData:
		if r.RequiredMinimum <= 0 {
			return fmt.Errorf("required_minimum must be positive, got %d", r.RequiredMinimum)
		}
		if r.Found == nil {
			return fmt.Errorf("insufficient_data report missing found counts")
		}
		if r.Found.Estimates < 0 || r.Found.Invoices < 0 {
			return fmt.Errorf("found counts must be non-negative")
		}
		if len(r.WhatYouCanDoNext) == 0 {
			return fmt.Errorf("what_you_can_do_next must not be empty")
		}
		if r.Confidence != ConfidenceLow {
			return fmt.Errorf("insufficient_data confidence must be low, got %q", r.Confidence)
		}

	default:
		return fmt.Errorf("unknown report kind %q", r.Kind)
	}

	return nil
}

// ReportConfidence returns the confidence level regardless of variant.
func (r *Report) ReportConfidence() ConfidenceLevel {
	if r.Kind == ReportKindSnapshot && r.Scores != nil {
		return r.Scores.Confidence
	}
	return r.Confidence
}
