package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSnapshotReport() *Report {
	return &Report{
		Kind:       ReportKindSnapshot,
		WindowDays: 90,
		Signals:    &ReportSignals{EstimateCount: 50, InvoiceCount: 20, DemandTrend: TrendFlat},
		Scores: &ReportScores{
			DemandSignal:     83,
			CashSignal:       40,
			DecisionLatency:  75,
			CapacityPressure: 50,
			Confidence:       ConfidenceMedium,
		},
		Findings:    []string{"a", "b", "c", "d"},
		NextSteps:   []string{"review open estimates"},
		Disclaimers: []string{"aggregate view only"},
	}
}

func validInsufficientReport() *Report {
	return &Report{
		Kind:             ReportKindInsufficientData,
		WindowDays:       90,
		RequiredMinimum:  15,
		Found:            &ReportFound{Estimates: 10, Invoices: 3},
		WhatYouCanDoNext: []string{"connect more history"},
		Confidence:       ConfidenceLow,
		Disclaimers:      []string{"aggregate view only"},
	}
}

func TestValidateReportSnapshot(t *testing.T) {
	require.NoError(t, ValidateReport(validSnapshotReport()))

	tests := []struct {
		name    string
		mutate  func(*Report)
		wantErr string
	}{
		{name: "nil signals", mutate: func(r *Report) { r.Signals = nil }, wantErr: "missing signals"},
		{name: "nil scores", mutate: func(r *Report) { r.Scores = nil }, wantErr: "missing scores"},
		{name: "score above 100", mutate: func(r *Report) { r.Scores.DemandSignal = 104 }, wantErr: "out of range"},
		{name: "negative score", mutate: func(r *Report) { r.Scores.CashSignal = -3 }, wantErr: "out of range"},
		{name: "bad confidence", mutate: func(r *Report) { r.Scores.Confidence = "certain" }, wantErr: "invalid confidence"},
		{name: "three findings", mutate: func(r *Report) { r.Findings = r.Findings[:3] }, wantErr: "4 findings"},
		{name: "no next steps", mutate: func(r *Report) { r.NextSteps = nil }, wantErr: "next_steps"},
		{name: "no disclaimers", mutate: func(r *Report) { r.Disclaimers = nil }, wantErr: "disclaimers"},
		{name: "bad trend", mutate: func(r *Report) { r.Signals.DemandTrend = "sideways" }, wantErr: "demand trend"},
		{name: "zero window", mutate: func(r *Report) { r.WindowDays = 0 }, wantErr: "window_days"},
		{name: "unknown kind", mutate: func(r *Report) { r.Kind = "forecast" }, wantErr: "unknown report kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validSnapshotReport()
			tt.mutate(r)
			err := ValidateReport(r)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateReportInsufficientData(t *testing.T) {
	require.NoError(t, ValidateReport(validInsufficientReport()))

	tests := []struct {
		name    string
		mutate  func(*Report)
		wantErr string
	}{
		{name: "zero minimum", mutate: func(r *Report) { r.RequiredMinimum = 0 }, wantErr: "required_minimum"},
		{name: "nil found", mutate: func(r *Report) { r.Found = nil }, wantErr: "found"},
		{name: "empty next actions", mutate: func(r *Report) { r.WhatYouCanDoNext = nil }, wantErr: "what_you_can_do_next"},
		{name: "medium confidence", mutate: func(r *Report) { r.Confidence = ConfidenceMedium }, wantErr: "must be low"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validInsufficientReport()
			tt.mutate(r)
			err := ValidateReport(r)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReportConfidence(t *testing.T) {
	assert.Equal(t, ConfidenceMedium, validSnapshotReport().ReportConfidence())
	assert.Equal(t, ConfidenceLow, validInsufficientReport().ReportConfidence())
}

func TestIsTerminalSnapshotStatus(t *testing.T) {
	assert.True(t, IsTerminalSnapshotStatus(SnapshotStatusComplete))
	assert.True(t, IsTerminalSnapshotStatus(SnapshotStatusFailed))
	assert.False(t, IsTerminalSnapshotStatus(SnapshotStatusRunning))
	assert.False(t, IsTerminalSnapshotStatus(SnapshotStatusQueued))
	assert.False(t, IsTerminalSnapshotStatus(SnapshotStatusCreated))
}
