package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joblens-inc/joblens-engine/pkg/config"
	"github.com/joblens-inc/joblens-engine/pkg/models"
)

func testScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		Mode:             config.ModeAuto,
		MinEstimates:     15,
		MinTrackedEvents: 10,
		MaxFallbackRate:  0.20,
	}
}

// spreadAggregates builds aggregates with count estimates spread evenly
// across the four price bands and a flat weekly series.
func spreadAggregates(count int) *models.Aggregates {
	agg := &models.Aggregates{
		WindowDays:      90,
		EstimateCount:   count,
		MeaningfulCount: count,
		InvoiceCount:    count / 2,
	}
	for i := 0; i < count; i++ {
		agg.PriceBands[i%4]++
	}
	weeks := []string{"2026-W25", "2026-W26", "2026-W27", "2026-W28", "2026-W29", "2026-W30"}
	per := count / len(weeks)
	if per < 1 {
		per = 1
	}
	for _, w := range weeks {
		agg.WeeklyVolume = append(agg.WeeklyVolume, models.WeekCount{Week: w, Count: per})
	}
	agg.JobTypes = []models.TypeCount{{Type: "plumbing", Count: count}}
	return agg
}

func TestScoreSnapshotMediumConfidence(t *testing.T) {
	agg := spreadAggregates(55)

	report := Score(agg, testScoringConfig())
	require.NoError(t, models.ValidateReport(report))

	assert.Equal(t, models.ReportKindSnapshot, report.Kind)
	assert.Equal(t, models.ConfidenceMedium, report.Scores.Confidence)
	assert.Equal(t, models.TrendFlat, report.Signals.DemandTrend)
	assert.Equal(t, 55, report.Signals.EstimateCount)
	assert.Len(t, report.Findings, models.FindingsCount)
	assert.NotEmpty(t, report.NextSteps)
	assert.NotEmpty(t, report.Disclaimers)
}

func TestScoreConfidenceBoundaries(t *testing.T) {
	tests := []struct {
		count int
		want  models.ConfidenceLevel
	}{
		{39, models.ConfidenceLow},
		{40, models.ConfidenceMedium},
		{60, models.ConfidenceMedium},
		{61, models.ConfidenceHigh},
		{65, models.ConfidenceHigh},
	}
	for _, tt := range tests {
		report := Score(spreadAggregates(tt.count), testScoringConfig())
		require.Equal(t, models.ReportKindSnapshot, report.Kind, "count %d", tt.count)
		assert.Equal(t, tt.want, report.Scores.Confidence, "count %d", tt.count)
	}
}

func TestScoreInsufficientData(t *testing.T) {
	agg := spreadAggregates(10)
	agg.InvoiceCount = 3

	report := Score(agg, testScoringConfig())
	require.NoError(t, models.ValidateReport(report))

	assert.Equal(t, models.ReportKindInsufficientData, report.Kind)
	assert.Equal(t, 15, report.RequiredMinimum)
	assert.Equal(t, 10, report.Found.Estimates)
	assert.Equal(t, 3, report.Found.Invoices)
	assert.Equal(t, models.ConfidenceLow, report.Confidence)
	assert.NotEmpty(t, report.WhatYouCanDoNext)
	assert.Nil(t, report.Scores)
}

func TestScoreInsufficientGateUsesMeaningfulCount(t *testing.T) {
	// Plenty of rows, but almost all drafts: the gate reads the meaningful
	// count, not the raw total.
	agg := spreadAggregates(50)
	agg.MeaningfulCount = 5

	report := Score(agg, testScoringConfig())
	assert.Equal(t, models.ReportKindInsufficientData, report.Kind)
	assert.Equal(t, 50, report.Found.Estimates)
}

func TestDemandTrend(t *testing.T) {
	flat := func(counts ...int) []models.WeekCount {
		out := make([]models.WeekCount, len(counts))
		for i, c := range counts {
			out[i] = models.WeekCount{Week: "w", Count: c}
		}
		return out
	}

	tests := []struct {
		name   string
		weekly []models.WeekCount
		want   models.DemandTrend
	}{
		{"no history", nil, models.TrendFlat},
		{"too short for a prior", flat(3, 3, 3, 3), models.TrendFlat},
		{"recent above prior", flat(2, 2, 4, 4, 4, 4), models.TrendUp},
		{"recent below prior", flat(6, 6, 2, 2, 2, 2), models.TrendDown},
		{"within the dead band", flat(4, 4, 4, 4, 4, 4), models.TrendFlat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, demandTrend(tt.weekly))
		})
	}
}

func TestDemandSignalTrendAdjustment(t *testing.T) {
	// 60 estimates → base 100; up caps at 100, down lands at 90.
	assert.Equal(t, 100, demandSignal(60, models.TrendUp))
	assert.Equal(t, 90, demandSignal(60, models.TrendDown))
	// 30 estimates → base 50.
	assert.Equal(t, 60, demandSignal(30, models.TrendUp))
	assert.Equal(t, 40, demandSignal(30, models.TrendDown))
	assert.Equal(t, 50, demandSignal(30, models.TrendFlat))
}

func TestCashSignal(t *testing.T) {
	agg := &models.Aggregates{EstimateCount: 40, InvoiceCount: 10}
	assert.Equal(t, 25, cashSignal(agg))

	assert.Zero(t, cashSignal(&models.Aggregates{EstimateCount: 40}))

	// Zero estimates falls back to a denominator of 1, then clamps.
	assert.Equal(t, 100, cashSignal(&models.Aggregates{InvoiceCount: 10}))
}

func TestDecisionLatency(t *testing.T) {
	agg := &models.Aggregates{LatencyBands: [4]int{3, 2, 4, 1}}
	// fast = 5 of 10.
	assert.Equal(t, 50, decisionLatency(agg))

	assert.Zero(t, decisionLatency(&models.Aggregates{}))
}

func TestScoresAlwaysInRange(t *testing.T) {
	// A pathological series with a huge recent spike must still clamp.
	agg := spreadAggregates(60)
	agg.WeeklyVolume = []models.WeekCount{
		{Week: "2026-W20", Count: 1},
		{Week: "2026-W21", Count: 1},
		{Week: "2026-W27", Count: 40},
		{Week: "2026-W28", Count: 40},
		{Week: "2026-W29", Count: 40},
		{Week: "2026-W30", Count: 40},
	}

	report := Score(agg, testScoringConfig())
	require.NoError(t, models.ValidateReport(report))
	assert.Equal(t, 100, report.Scores.CapacityPressure)
	assert.Equal(t, models.TrendUp, report.Signals.DemandTrend)
}

func TestFindingsWithoutClosuresOrJobTypes(t *testing.T) {
	agg := spreadAggregates(45)
	agg.LatencySampled = 0
	agg.LatencyBands = [4]int{}
	agg.JobTypes = []models.TypeCount{{Type: "unknown", Count: 45}}

	report := Score(agg, testScoringConfig())
	require.NoError(t, models.ValidateReport(report))
	assert.Contains(t, report.Findings[2], "Not enough closed estimates")
	assert.Contains(t, report.Findings[3], "not labeled")
}
