package service

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

type availabilityUpstream interface {
	AvailableTeachers(ctx context.Context, date string, periodID int64) ([]models.Teacher, error)
	TeacherWorkload(ctx context.Context, teacherID int64) (*models.TeacherWorkload, error)
}

// AvailabilityQuery selects the cell to find substitutes for.
type AvailabilityQuery struct {
	Date             string
	Day              models.Day
	PeriodID         int64
	ExcludeTeacherID int64
}

// AvailabilityService ranks free teachers for a (date, period) by load.
type AvailabilityService struct {
	upstream    availabilityUpstream
	concurrency int
	logger      *zap.Logger
}

// NewAvailabilityService constructs an AvailabilityService. concurrency bounds
// the number of workload lookups in flight.
func NewAvailabilityService(upstream availabilityUpstream, concurrency int, logger *zap.Logger) *AvailabilityService {
	if concurrency <= 0 {
		concurrency = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{upstream: upstream, concurrency: concurrency, logger: logger}
}

// Resolve lists free teachers, least loaded first. When the availability
// lookup itself fails the result is marked unknown and carries no
// candidates. A failed workload lookup keeps the candidate with zero load.
func (s *AvailabilityService) Resolve(ctx context.Context, q AvailabilityQuery) models.AvailabilityResult {
	result := models.AvailabilityResult{
		Date:       q.Date,
		Day:        q.Day,
		PeriodID:   q.PeriodID,
		Status:     models.AvailabilityUnknown,
		Candidates: []models.AvailabilityCandidate{},
	}

	teachers, err := s.upstream.AvailableTeachers(ctx, q.Date, q.PeriodID)
	if err != nil {
		s.logger.Warn("available teachers lookup failed",
			zap.String("date", q.Date),
			zap.Int64("period_id", q.PeriodID),
			zap.Error(err),
		)
		return result
	}

	candidates := make([]models.AvailabilityCandidate, 0, len(teachers))
	for _, t := range teachers {
		if t.UserID == q.ExcludeTeacherID {
			continue
		}
		candidates = append(candidates, models.AvailabilityCandidate{TeacherID: t.UserID, Name: t.Name})
	}

	// Each goroutine writes only its own slot; failures never cancel siblings.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range candidates {
		i := i
		g.Go(func() error {
			workload, err := s.upstream.TeacherWorkload(gctx, candidates[i].TeacherID)
			if err != nil || workload == nil {
				s.logger.Debug("teacher workload lookup failed",
					zap.Int64("teacher_id", candidates[i].TeacherID),
					zap.Error(err),
				)
				return nil
			}
			candidates[i].WeeklyWorkload = workload.Weekly
			candidates[i].DayWorkload = workload.Daily[q.Day]
			candidates[i].WorkloadKnown = true
			return nil
		})
	}
	_ = g.Wait()

	RankCandidates(candidates)
	result.Status = models.AvailabilityResolved
	result.Candidates = candidates
	return result
}

// RankCandidates sorts by weekly workload, then by workload on the selected
// day. Equal candidates keep their upstream order.
func RankCandidates(candidates []models.AvailabilityCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].WeeklyWorkload != candidates[j].WeeklyWorkload {
			return candidates[i].WeeklyWorkload < candidates[j].WeeklyWorkload
		}
		return candidates[i].DayWorkload < candidates[j].DayWorkload
	})
}
