package domain

// RiskLevel is the per-day three-level risk classification.
type RiskLevel string

const (
	RiskSafe    RiskLevel = "safe"
	RiskCaution RiskLevel = "caution"
	RiskHigh    RiskLevel = "high"
)

// Confidence classifies how well the industry-event catalog covers the
// analysis's active filters.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
	ConfidenceNone   Confidence = "NONE"
)

// Ladder thresholds over the date-unfiltered tracked-event count. Static
// business constants; part of the output contract.
const (
	confidenceHighMin   = 50
	confidenceMediumMin = 10
)

// ClassifyDay derives the day's risk level. The ordering is a strict
// priority, not a score: a holiday in the target region itself always
// dominates because it directly blocks the event; everything below it is
// advisory.
func ClassifyDay(rec *DayRecord, hubs HubSet, watchlistConflict bool) RiskLevel {
	if rec == nil {
		return RiskSafe
	}

	globalImpact := false
	for _, h := range rec.Holidays {
		if h.GlobalImpact(hubs) {
			globalImpact = true
			continue
		}
		return RiskHigh
	}

	if globalImpact || watchlistConflict || rec.SchoolHoliday != "" || len(rec.IndustryEvents) > 0 {
		return RiskCaution
	}
	return RiskSafe
}

// ClassifyConfidence maps the total tracked industry-event count (matching
// the active filters, not the date range) onto the fixed confidence ladder.
func ClassifyConfidence(totalTracked int) Confidence {
	switch {
	case totalTracked >= confidenceHighMin:
		return ConfidenceHigh
	case totalTracked >= confidenceMediumMin:
		return ConfidenceMedium
	case totalTracked > 0:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}
