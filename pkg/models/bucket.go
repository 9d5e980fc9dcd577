package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Fixed band labels. The band sets are closed: aggregates always carry
// exactly four counts per band family, in this order.
var (
	PriceBandLabels         = [4]string{"<500", "500-1500", "1500-5000", "5000+"}
	LatencyBandLabels       = [4]string{"0-2d", "3-7d", "8-21d", "22+d"}
	TimeToInvoiceBandLabels = [4]string{"0-7d", "8-14d", "15-30d", "31+d"}
)

// WeekCount is one point of the sparse weekly volume series, keyed by ISO
// week ("2026-W35"). Only weeks with at least one row appear.
type WeekCount struct {
	Week  string `json:"week"`
	Count int    `json:"count"`
}

// TypeCount is one entry of the job-type distribution.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// StatusCount is one entry of the invoice status distribution.
type StatusCount struct {
	Status InvoiceStatus `json:"status"`
	Count  int           `json:"count"`
}

// EstimateBucket is the fixed-shape aggregate of one source's estimates.
type EstimateBucket struct {
	Total           int         `json:"total"`
	Meaningful      int         `json:"meaningful"`
	PriceBands      [4]int      `json:"price_bands"`
	LatencyBands    [4]int      `json:"latency_bands"`
	WeeklyVolume    []WeekCount `json:"weekly_volume"`
	JobTypes        []TypeCount `json:"job_types"`
	LatencySampled  int         `json:"latency_sampled"` // rows with a closure timestamp
}

// InvoiceBucket is the fixed-shape aggregate of one source's invoices.
type InvoiceBucket struct {
	Total              int           `json:"total"`
	PriceBands         [4]int        `json:"price_bands"`
	StatusCounts       []StatusCount `json:"status_counts"`
	TimeToInvoiceBands [4]int        `json:"time_to_invoice_bands"`
	LinkedToEstimate   int           `json:"linked_to_estimate"`
}

// Bucket is the aggregated record for one source, upserted as a whole.
type Bucket struct {
	SourceID  uuid.UUID      `json:"source_id"`
	Estimates EstimateBucket `json:"estimates"`
	Invoices  InvoiceBucket  `json:"invoices"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Aggregates is the validated input to both scoring paths. It is built
// from a persisted Bucket, never handed raw rows.
type Aggregates struct {
	WindowDays         int         `json:"window_days"`
	EstimateCount      int         `json:"estimate_count"`
	MeaningfulCount    int         `json:"meaningful_count"`
	InvoiceCount       int         `json:"invoice_count"`
	PriceBands         [4]int      `json:"price_bands"`
	LatencyBands       [4]int      `json:"latency_bands"`
	LatencySampled     int         `json:"latency_sampled"`
	WeeklyVolume       []WeekCount `json:"weekly_volume"`
	JobTypes           []TypeCount `json:"job_types"`
	InvoiceStatuses    []StatusCount `json:"invoice_statuses"`
	TimeToInvoiceBands [4]int      `json:"time_to_invoice_bands"`
}

// Ceilings for the sparse series. A 90-day window holds at most 14 ISO
// weeks; job types beyond 50 indicate a connector that defeated
// canonicalization upstream.
const (
	maxWeeklyPoints = 60
	maxJobTypes     = 50
)

// ValidateAggregates rejects malformed aggregates before they reach either
// scoring path. Malformed input is fatal to the snapshot attempt - it is
// never silently coerced.
func ValidateAggregates(a *Aggregates) error {
	if a == nil {
		return fmt.Errorf("aggregates are nil")
	}
	if a.WindowDays <= 0 {
		return fmt.Errorf("window_days must be positive, got %d", a.WindowDays)
	}
	if a.EstimateCount < 0 || a.InvoiceCount < 0 || a.MeaningfulCount < 0 || a.LatencySampled < 0 {
		return fmt.Errorf("counts must be non-negative")
	}
	if a.MeaningfulCount > a.EstimateCount {
		return fmt.Errorf("meaningful_count %d exceeds estimate_count %d", a.MeaningfulCount, a.EstimateCount)
	}
	bandSum := 0
	for i, n := range a.PriceBands {
		if n < 0 {
			return fmt.Errorf("price band %d is negative", i)
		}
		bandSum += n
	}
	if bandSum != a.EstimateCount {
		return fmt.Errorf("price bands sum to %d, estimate_count is %d", bandSum, a.EstimateCount)
	}
	for i, n := range a.LatencyBands {
		if n < 0 {
			return fmt.Errorf("latency band %d is negative", i)
		}
	}
	for i, n := range a.TimeToInvoiceBands {
		if n < 0 {
			return fmt.Errorf("time-to-invoice band %d is negative", i)
		}
	}
	if len(a.WeeklyVolume) > maxWeeklyPoints {
		return fmt.Errorf("weekly volume has %d points, ceiling is %d", len(a.WeeklyVolume), maxWeeklyPoints)
	}
	for _, w := range a.WeeklyVolume {
		if w.Week == "" || w.Count < 1 {
			return fmt.Errorf("weekly volume point %+v is malformed", w)
		}
	}
	if len(a.JobTypes) > maxJobTypes {
		return fmt.Errorf("job-type distribution has %d entries, ceiling is %d", len(a.JobTypes), maxJobTypes)
	}
	for _, jt := range a.JobTypes {
		if jt.Type == "" || jt.Count < 1 {
			return fmt.Errorf("job-type entry %+v is malformed", jt)
		}
	}
	for _, sc := range a.InvoiceStatuses {
		if sc.Count < 0 {
			return fmt.Errorf("invoice status %q has negative count", sc.Status)
		}
	}
	return nil
}

// BuildAggregates converts a persisted bucket into scorer input.
func BuildAggregates(b *Bucket, windowDays int) *Aggregates {
	return &Aggregates{
		WindowDays:         windowDays,
		EstimateCount:      b.Estimates.Total,
		MeaningfulCount:    b.Estimates.Meaningful,
		InvoiceCount:       b.Invoices.Total,
		PriceBands:         b.Estimates.PriceBands,
		LatencyBands:       b.Estimates.LatencyBands,
		LatencySampled:     b.Estimates.LatencySampled,
		WeeklyVolume:       b.Estimates.WeeklyVolume,
		JobTypes:           b.Estimates.JobTypes,
		InvoiceStatuses:    b.Invoices.StatusCounts,
		TimeToInvoiceBands: b.Invoices.TimeToInvoiceBands,
	}
}
