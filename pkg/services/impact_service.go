package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/archgov-inc/archgov-engine/pkg/apperrors"
	"github.com/archgov-inc/archgov-engine/pkg/models"
	"github.com/archgov-inc/archgov-engine/pkg/repositories"
)

// ImpactService classifies the blast radius of a proposed change to an
// asset and produces the governance policy's recommended actions.
type ImpactService interface {
	AnalyzeImpact(ctx context.Context, id, changeType string) (*models.ImpactAnalysis, error)
}

type impactService struct {
	repo   repositories.AssetRepository
	logger *zap.Logger
}

// NewImpactService creates a new impact service.
func NewImpactService(repo repositories.AssetRepository, logger *zap.Logger) ImpactService {
	return &impactService{repo: repo, logger: logger}
}

var _ ImpactService = (*impactService)(nil)

// AnalyzeImpact walks every transitive dependent of the asset (cycle
// safe, depth unbounded), partitions them into direct and indirect, and
// applies the fixed risk and recommendation policy. changeType is open
// ended; only "breaking" carries special weight.
func (s *impactService) AnalyzeImpact(ctx context.Context, id, changeType string) (*models.ImpactAnalysis, error) {
	if changeType == "" {
		return nil, fmt.Errorf("%w: change_type is required", apperrors.ErrValidation)
	}

	root, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	affected := []string{}
	direct := []string{}
	indirect := []string{}

	visited := map[string]bool{root.ID: true}
	frontier := append([]string{}, root.UsedBy...)

	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]

		if visited[current] {
			continue
		}
		visited[current] = true

		dependent, err := s.repo.Get(ctx, current)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				s.logger.Warn("Dangling dependent reference during impact analysis",
					zap.String("asset_id", id),
					zap.String("dependent_id", current))
				continue
			}
			return nil, err
		}

		affected = append(affected, dependent.ID)
		if containsID(dependent.DependsOn, id) {
			direct = append(direct, dependent.ID)
		} else {
			indirect = append(indirect, dependent.ID)
		}

		frontier = append(frontier, dependent.UsedBy...)
	}

	return &models.ImpactAnalysis{
		AssetID:            id,
		ChangeType:         changeType,
		Affected:           affected,
		DirectlyAffected:   direct,
		IndirectlyAffected: indirect,
		RiskLevel:          classifyRisk(changeType, len(affected)),
		Recommendations:    recommendations(changeType, len(affected)),
	}, nil
}

// classifyRisk applies the deterministic precedence order: critical for
// a breaking change or more than 10 affected assets, then high, medium,
// low by shrinking thresholds.
func classifyRisk(changeType string, affectedCount int) string {
	switch {
	case changeType == models.ChangeTypeBreaking || affectedCount > 10:
		return models.RiskCritical
	case affectedCount > 5:
		return models.RiskHigh
	case affectedCount > 2:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// recommendations emits the fixed policy rules in their defined order.
// An empty result means nothing is affected and the change is not
// breaking.
func recommendations(changeType string, affectedCount int) []string {
	recs := []string{}

	if affectedCount > 0 {
		recs = append(recs,
			fmt.Sprintf("notify %d dependent owners", affectedCount),
			"schedule impact assessment",
		)
	}
	if changeType == models.ChangeTypeBreaking {
		recs = append(recs,
			"create migration guide",
			"provide deprecation timeline",
			"consider backward compatibility",
		)
	}
	if affectedCount > 5 {
		recs = append(recs,
			"phase the rollout",
			"implement feature flags",
		)
	}

	return recs
}
