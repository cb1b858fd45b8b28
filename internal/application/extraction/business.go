package extraction

import (
	"github.com/turtacn/deadline-agent/internal/domain/deadline"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

// MetricsAssumptions are the inputs of the business value estimate.
type MetricsAssumptions struct {
	ManualMinutesPerDoc float64 `json:"manual_minutes_per_doc" mapstructure:"manual_minutes_per_doc"`
	AIMinutesPerDoc     float64 `json:"ai_minutes_per_doc" mapstructure:"ai_minutes_per_doc"`
	HourlyRate          float64 `json:"hourly_rate" mapstructure:"hourly_rate"`
	MissedDeadlineRate  float64 `json:"missed_deadline_rate" mapstructure:"missed_deadline_rate"`
	PenaltyPerMiss      float64 `json:"penalty_per_miss" mapstructure:"penalty_per_miss"`
	WeeksPerYear        int     `json:"weeks_per_year" mapstructure:"weeks_per_year"`
}

// DefaultMetricsAssumptions returns the reference figures: 15 minutes of
// manual review against 2 with the agent, 75 EUR/h, 15% of deadlines missed
// manually at 500 EUR each, 52 weeks.
func DefaultMetricsAssumptions() MetricsAssumptions {
	return MetricsAssumptions{
		ManualMinutesPerDoc: 15,
		AIMinutesPerDoc:     2,
		HourlyRate:          75,
		MissedDeadlineRate:  0.15,
		PenaltyPerMiss:      500,
		WeeksPerYear:        52,
	}
}

// withDefaults fills zero fields from DefaultMetricsAssumptions.
func (a MetricsAssumptions) withDefaults() MetricsAssumptions {
	d := DefaultMetricsAssumptions()
	if a.ManualMinutesPerDoc == 0 {
		a.ManualMinutesPerDoc = d.ManualMinutesPerDoc
	}
	if a.AIMinutesPerDoc == 0 {
		a.AIMinutesPerDoc = d.AIMinutesPerDoc
	}
	if a.HourlyRate == 0 {
		a.HourlyRate = d.HourlyRate
	}
	if a.MissedDeadlineRate == 0 {
		a.MissedDeadlineRate = d.MissedDeadlineRate
	}
	if a.PenaltyPerMiss == 0 {
		a.PenaltyPerMiss = d.PenaltyPerMiss
	}
	if a.WeeksPerYear == 0 {
		a.WeeksPerYear = d.WeeksPerYear
	}
	return a
}

func (a MetricsAssumptions) Validate() error {
	switch {
	case a.ManualMinutesPerDoc < 0, a.AIMinutesPerDoc < 0, a.HourlyRate < 0, a.PenaltyPerMiss < 0, a.WeeksPerYear < 0:
		return errors.InvalidParam("metric assumptions must not be negative")
	case a.MissedDeadlineRate < 0 || a.MissedDeadlineRate > 1:
		return errors.InvalidParam("missed deadline rate must be within [0, 1]")
	}
	return nil
}

// BusinessMetrics estimates the value of a processing run.
type BusinessMetrics struct {
	TotalDocuments            int     `json:"total_documents"`
	SuccessfulExtractions     int     `json:"successful_extractions"`
	SuccessRate               float64 `json:"success_rate"`
	TimeSavedHours            float64 `json:"time_saved_hours"`
	CostSavings               float64 `json:"cost_savings"`
	MissedDeadlinesPrevented  float64 `json:"missed_deadlines_prevented"`
	RiskReductionValue        float64 `json:"risk_reduction_value"`
	TotalValue                float64 `json:"total_value"`
	ProcessingCapacityPerHour float64 `json:"processing_capacity_per_hour"`
	AnnualValueProjection     float64 `json:"annual_value_projection"`
}

// CalculateBusinessMetrics derives BusinessMetrics from a set of results.
// Zero assumption fields take the defaults.
func CalculateBusinessMetrics(results []*deadline.Result, a MetricsAssumptions) (*BusinessMetrics, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	a = a.withDefaults()

	m := &BusinessMetrics{TotalDocuments: len(results)}
	for _, r := range results {
		if r.Succeeded() {
			m.SuccessfulExtractions++
		}
	}
	if m.TotalDocuments > 0 {
		m.SuccessRate = float64(m.SuccessfulExtractions) / float64(m.TotalDocuments) * 100
	}

	savedPerDoc := a.ManualMinutesPerDoc - a.AIMinutesPerDoc
	m.TimeSavedHours = float64(m.TotalDocuments) * savedPerDoc / 60
	m.CostSavings = m.TimeSavedHours * a.HourlyRate
	m.MissedDeadlinesPrevented = float64(m.SuccessfulExtractions) * a.MissedDeadlineRate
	m.RiskReductionValue = m.MissedDeadlinesPrevented * a.PenaltyPerMiss
	m.TotalValue = m.CostSavings + m.RiskReductionValue
	m.ProcessingCapacityPerHour = 60 / a.AIMinutesPerDoc
	m.AnnualValueProjection = m.TotalValue * float64(a.WeeksPerYear)
	return m, nil
}

// SummaryResults flattens a folder summary into its results.
func SummaryResults(s *BatchSummary) []*deadline.Result {
	if s == nil {
		return nil
	}
	out := make([]*deadline.Result, 0, len(s.Results))
	for _, dr := range s.Results {
		if dr != nil {
			out = append(out, dr.Result)
		}
	}
	return out
}
