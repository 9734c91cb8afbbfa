package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/archgov-inc/archgov-engine/pkg/models"
	"github.com/archgov-inc/archgov-engine/pkg/repositories"
)

// Health score deductions. The score starts at 100 and each applicable
// deduction subtracts; the result clamps to [0, 100].
const (
	deductionDeprecated    = 50
	deductionDraft         = 30
	deductionLowUsage      = 10
	deductionStaleReview   = 20
	deductionAncientReview = 30
	deductionNoDocs        = 10

	lowUsageThreshold    = 5
	staleReviewDays      = 180
	ancientReviewDays    = 365
	defaultReviewAgeDays = 365
)

// HealthService scores individual assets and aggregates catalog-wide
// governance health.
type HealthService interface {
	// CalculateHealthScore recomputes the asset's health score from its
	// current attributes and persists it. The computation is a pure
	// function of the record; rerunning it without changes yields the
	// same score.
	CalculateHealthScore(ctx context.Context, id string) (int, error)
	// AssessPortfolioHealth scans the full catalog read-only and
	// returns the aggregate rollup. An empty catalog yields zeroed
	// aggregates, not an error.
	AssessPortfolioHealth(ctx context.Context) (*models.PortfolioHealth, error)
}

type healthService struct {
	repo   repositories.AssetRepository
	logger *zap.Logger
	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewHealthService creates a new health service.
func NewHealthService(repo repositories.AssetRepository, logger *zap.Logger) HealthService {
	return &healthService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

var _ HealthService = (*healthService)(nil)

// ScoreAsset computes the health score for an asset as of the given
// time. Exported so callers can preview a score without persisting it.
func ScoreAsset(asset *models.ArchitectureAsset, now time.Time) int {
	score := 100

	switch asset.Status {
	case models.StatusDeprecated:
		score -= deductionDeprecated
	case models.StatusDraft:
		score -= deductionDraft
	}

	if asset.UsageCount < lowUsageThreshold {
		score -= deductionLowUsage
	}

	reviewAgeDays := float64(defaultReviewAgeDays)
	if asset.ReviewDate != nil {
		reviewAgeDays = now.Sub(*asset.ReviewDate).Hours() / 24
	}
	if reviewAgeDays > staleReviewDays {
		score -= deductionStaleReview
	}
	if reviewAgeDays > ancientReviewDays {
		score -= deductionAncientReview
	}

	if asset.DocumentationURL == "" {
		score -= deductionNoDocs
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func (s *healthService) CalculateHealthScore(ctx context.Context, id string) (int, error) {
	var score int
	err := withConflictRetry(ctx, s.repo, id, func(asset *models.ArchitectureAsset) (bool, error) {
		score = ScoreAsset(asset, s.now())
		if asset.HealthScore == score {
			return false, nil
		}
		asset.HealthScore = score
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	return score, nil
}

func (s *healthService) AssessPortfolioHealth(ctx context.Context) (*models.PortfolioHealth, error) {
	assets, err := s.repo.List(ctx, repositories.AssetFilter{})
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := &models.PortfolioHealth{
		TotalAssets:   len(assets),
		ByStatus:      map[string]int{},
		ByDomain:      map[string]int{},
		Underutilized: []string{},
		NeedsReview:   []string{},
	}

	if len(assets) == 0 {
		return result, nil
	}

	scoreSum := 0
	for _, asset := range assets {
		result.ByStatus[asset.Status]++
		result.ByDomain[asset.Domain]++
		scoreSum += asset.HealthScore

		if asset.Status == models.StatusDeprecated {
			result.DeprecatedCount++
		}
		if asset.UsageCount < lowUsageThreshold && asset.Status == models.StatusApproved {
			result.Underutilized = append(result.Underutilized, asset.ID)
		}
		if asset.ReviewDate != nil && asset.ReviewDate.Before(now) {
			result.NeedsReview = append(result.NeedsReview, asset.ID)
		}
	}

	result.AvgHealthScore = float64(scoreSum) / float64(len(assets))
	return result, nil
}
