package usecase

import (
	"context"
	"time"
)

// MetricsSummary represents aggregated registration insights.
type MetricsSummary struct {
	TotalRegistrations   int64      `json:"total_registrations"`
	RegistrationsLastDay int64      `json:"registrations_last_day"`
	Universities         int64      `json:"universities"`
	LatestRegistrationAt *time.Time `json:"latest_registration_at,omitempty"`
}

// GetMetricsSummary aggregates registration metrics from persisted users.
func (uc *RegistrationUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := uc.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	return &MetricsSummary{
		TotalRegistrations:   aggregation.TotalCount,
		RegistrationsLastDay: aggregation.LastDayCount,
		Universities:         aggregation.UniversityCount,
		LatestRegistrationAt: aggregation.LatestAt,
	}, nil
}
