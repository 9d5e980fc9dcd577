package scoring

import (
	"fmt"
	"math"

	"github.com/jinzhu/inflection"

	"github.com/joblens-inc/joblens-engine/pkg/config"
	"github.com/joblens-inc/joblens-engine/pkg/models"
)

// Disclaimers attached to every report, both variants and both paths.
var reportDisclaimers = []string{
	"Scores are directional indicators computed from a rolling 90-day window, not accounting figures.",
	"Aggregates never include customer names, contact details or full addresses.",
}

var snapshotNextSteps = []string{
	"Follow up on estimates that have been open longer than a week.",
	"Compare this snapshot against next month's to spot a shift early.",
	"Connect additional tools to widen the activity window.",
}

var insufficientNextActions = []string{
	"Keep sending estimates through your connected tools.",
	"Connect another data source to add history.",
	"Check back once more activity has accumulated.",
}

// Score is the deterministic path: a pure function from validated
// aggregates to a report. It never fails; malformed aggregates are the
// caller's problem and must be rejected before this point.
func Score(agg *models.Aggregates, cfg config.ScoringConfig) *models.Report {
	if agg.MeaningfulCount < cfg.MinEstimates {
		return insufficientReport(agg, cfg)
	}

	trend := demandTrend(agg.WeeklyVolume)

	scores := &models.ReportScores{
		DemandSignal:     demandSignal(agg.EstimateCount, trend),
		CashSignal:       cashSignal(agg),
		DecisionLatency:  decisionLatency(agg),
		CapacityPressure: capacityPressure(agg),
		Confidence:       confidenceLevel(agg.EstimateCount),
	}

	return &models.Report{
		Kind:       models.ReportKindSnapshot,
		WindowDays: agg.WindowDays,
		Signals: &models.ReportSignals{
			EstimateCount: agg.EstimateCount,
			InvoiceCount:  agg.InvoiceCount,
			DemandTrend:   trend,
		},
		Scores:      scores,
		Findings:    findings(agg, trend, scores),
		NextSteps:   snapshotNextSteps,
		Disclaimers: reportDisclaimers,
	}
}

func insufficientReport(agg *models.Aggregates, cfg config.ScoringConfig) *models.Report {
	return &models.Report{
		Kind:            models.ReportKindInsufficientData,
		WindowDays:      agg.WindowDays,
		RequiredMinimum: cfg.MinEstimates,
		Found: &models.ReportFound{
			Estimates: agg.EstimateCount,
			Invoices:  agg.InvoiceCount,
		},
		WhatYouCanDoNext: insufficientNextActions,
		Confidence:       models.ConfidenceLow,
		Disclaimers:      reportDisclaimers,
	}
}

// confidenceLevel buckets the estimate count: low below 40, high above 60,
// medium between.
func confidenceLevel(count int) models.ConfidenceLevel {
	switch {
	case count < 40:
		return models.ConfidenceLow
	case count > 60:
		return models.ConfidenceHigh
	default:
		return models.ConfidenceMedium
	}
}

// demandTrend compares the mean of the last four weekly points against the
// mean of everything before them. Without prior history the trend is flat.
func demandTrend(weekly []models.WeekCount) models.DemandTrend {
	if len(weekly) <= 4 {
		return models.TrendFlat
	}

	split := len(weekly) - 4
	prior := mean(weekly[:split])
	recent := mean(weekly[split:])

	switch {
	case recent > prior*1.15:
		return models.TrendUp
	case recent < prior*0.85:
		return models.TrendDown
	default:
		return models.TrendFlat
	}
}

func mean(points []models.WeekCount) float64 {
	if len(points) == 0 {
		return 0
	}
	sum := 0
	for _, p := range points {
		sum += p.Count
	}
	return float64(sum) / float64(len(points))
}

func demandSignal(count int, trend models.DemandTrend) int {
	score := int(math.Round(float64(count) / 60 * 100))
	switch trend {
	case models.TrendUp:
		score += 10
	case models.TrendDown:
		score -= 10
	}
	return clamp(score)
}

func cashSignal(agg *models.Aggregates) int {
	if agg.InvoiceCount == 0 {
		return 0
	}
	denom := agg.EstimateCount
	if denom < 1 {
		denom = 1
	}
	return clamp(int(math.Round(float64(agg.InvoiceCount) / float64(denom) * 100)))
}

func decisionLatency(agg *models.Aggregates) int {
	total := 0
	for _, n := range agg.LatencyBands {
		total += n
	}
	if total == 0 {
		return 0
	}
	fast := agg.LatencyBands[0] + agg.LatencyBands[1]
	return clamp(int(math.Round(float64(fast) / float64(total) * 100)))
}

func capacityPressure(agg *models.Aggregates) int {
	recent, prior := weeklySplit(agg.WeeklyVolume)
	if prior < 1 {
		prior = 1
	}
	score := int(math.Round(recent / prior * 50))
	if highValueDominates(agg) {
		score += 10
	}
	return clamp(score)
}

// weeklySplit returns the recent (last 4 points) and prior averages of the
// weekly volume series.
func weeklySplit(weekly []models.WeekCount) (recent, prior float64) {
	if len(weekly) <= 4 {
		return mean(weekly), 0
	}
	split := len(weekly) - 4
	return mean(weekly[split:]), mean(weekly[:split])
}

// highValueDominates reports whether the two upper price bands hold more
// rows than the two lower ones.
func highValueDominates(agg *models.Aggregates) bool {
	return agg.PriceBands[2]+agg.PriceBands[3] > agg.PriceBands[0]+agg.PriceBands[1]
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// findings renders the four fixed-topic statements: demand rhythm,
// deal-size mix, decision speed, job-mix signal. Threshold-driven wording,
// never free-form.
func findings(agg *models.Aggregates, trend models.DemandTrend, scores *models.ReportScores) []string {
	return []string{
		demandFinding(agg, trend),
		dealSizeFinding(agg),
		decisionSpeedFinding(agg, scores.DecisionLatency),
		jobMixFinding(agg),
	}
}

func demandFinding(agg *models.Aggregates, trend models.DemandTrend) string {
	noun := inflection.Plural("estimate")
	if agg.EstimateCount == 1 {
		noun = "estimate"
	}
	switch trend {
	case models.TrendUp:
		return fmt.Sprintf("Demand is picking up: %d %s in the window, with recent weeks ahead of the earlier pace.", agg.EstimateCount, noun)
	case models.TrendDown:
		return fmt.Sprintf("Demand is cooling: %d %s in the window, with recent weeks behind the earlier pace.", agg.EstimateCount, noun)
	default:
		return fmt.Sprintf("Demand is steady: %d %s in the window at a consistent weekly pace.", agg.EstimateCount, noun)
	}
}

func dealSizeFinding(agg *models.Aggregates) string {
	if highValueDominates(agg) {
		return fmt.Sprintf("Larger jobs dominate: %d of %d estimates sit above the %s mark.",
			agg.PriceBands[2]+agg.PriceBands[3], agg.EstimateCount, models.PriceBandLabels[2])
	}
	return fmt.Sprintf("Smaller jobs dominate: %d of %d estimates sit below the %s band.",
		agg.PriceBands[0]+agg.PriceBands[1], agg.EstimateCount, models.PriceBandLabels[2])
}

func decisionSpeedFinding(agg *models.Aggregates, latencyScore int) string {
	if agg.LatencySampled == 0 {
		return "Not enough closed estimates yet to read decision speed."
	}
	if latencyScore >= 50 {
		return fmt.Sprintf("Customers decide quickly: %d%% of closed estimates resolve within a week.", latencyScore)
	}
	return fmt.Sprintf("Decisions take time: only %d%% of closed estimates resolve within a week.", latencyScore)
}

func jobMixFinding(agg *models.Aggregates) string {
	if len(agg.JobTypes) == 0 || agg.JobTypes[0].Type == "unknown" {
		return "Job types are not labeled in the source data, so no mix signal is available."
	}
	top := agg.JobTypes[0]
	kinds := inflection.Plural("kind")
	if len(agg.JobTypes) == 1 {
		kinds = "kind"
	}
	return fmt.Sprintf("Work concentrates in %s (%d of %d estimates) across %d job %s.",
		top.Type, top.Count, agg.EstimateCount, len(agg.JobTypes), kinds)
}
