package handlers

import (
	"context"

	"github.com/archgov-inc/archgov-engine/pkg/models"
	"github.com/archgov-inc/archgov-engine/pkg/services"
)

// Function-field stubs so each test configures only the calls it expects.

type stubAssetService struct {
	RegisterFunc    func(ctx context.Context, asset *models.ArchitectureAsset) (*models.ArchitectureAsset, error)
	GetFunc         func(ctx context.Context, id string) (*models.ArchitectureAsset, error)
	UpdateFunc      func(ctx context.Context, id string, patch *services.AssetPatch) (*models.ArchitectureAsset, error)
	FindFunc        func(ctx context.Context, criteria services.FindCriteria) ([]*models.ArchitectureAsset, error)
	RecordUsageFunc func(ctx context.Context, id string) (*models.ArchitectureAsset, error)
}

var _ services.AssetService = (*stubAssetService)(nil)

func (s *stubAssetService) Register(ctx context.Context, asset *models.ArchitectureAsset) (*models.ArchitectureAsset, error) {
	return s.RegisterFunc(ctx, asset)
}

func (s *stubAssetService) Get(ctx context.Context, id string) (*models.ArchitectureAsset, error) {
	return s.GetFunc(ctx, id)
}

func (s *stubAssetService) Update(ctx context.Context, id string, patch *services.AssetPatch) (*models.ArchitectureAsset, error) {
	return s.UpdateFunc(ctx, id, patch)
}

func (s *stubAssetService) Find(ctx context.Context, criteria services.FindCriteria) ([]*models.ArchitectureAsset, error) {
	return s.FindFunc(ctx, criteria)
}

func (s *stubAssetService) RecordUsage(ctx context.Context, id string) (*models.ArchitectureAsset, error) {
	return s.RecordUsageFunc(ctx, id)
}

type stubRelationshipService struct {
	LinkFunc   func(ctx context.Context, sourceID, targetID, relation string) error
	UnlinkFunc func(ctx context.Context, sourceID, targetID, relation string) error
}

var _ services.RelationshipService = (*stubRelationshipService)(nil)

func (s *stubRelationshipService) Link(ctx context.Context, sourceID, targetID, relation string) error {
	return s.LinkFunc(ctx, sourceID, targetID, relation)
}

func (s *stubRelationshipService) Unlink(ctx context.Context, sourceID, targetID, relation string) error {
	return s.UnlinkFunc(ctx, sourceID, targetID, relation)
}

type stubDependencyService struct {
	NeighborsFunc func(ctx context.Context, id, relation, direction string) ([]string, error)
	GraphFunc     func(ctx context.Context, id string, maxDepth int) (*models.DependencyGraph, error)
}

var _ services.DependencyService = (*stubDependencyService)(nil)

func (s *stubDependencyService) Neighbors(ctx context.Context, id, relation, direction string) ([]string, error) {
	return s.NeighborsFunc(ctx, id, relation, direction)
}

func (s *stubDependencyService) Graph(ctx context.Context, id string, maxDepth int) (*models.DependencyGraph, error) {
	return s.GraphFunc(ctx, id, maxDepth)
}

type stubImpactService struct {
	AnalyzeImpactFunc func(ctx context.Context, id, changeType string) (*models.ImpactAnalysis, error)
}

var _ services.ImpactService = (*stubImpactService)(nil)

func (s *stubImpactService) AnalyzeImpact(ctx context.Context, id, changeType string) (*models.ImpactAnalysis, error) {
	return s.AnalyzeImpactFunc(ctx, id, changeType)
}

type stubHealthService struct {
	CalculateHealthScoreFunc  func(ctx context.Context, id string) (int, error)
	AssessPortfolioHealthFunc func(ctx context.Context) (*models.PortfolioHealth, error)
}

var _ services.HealthService = (*stubHealthService)(nil)

func (s *stubHealthService) CalculateHealthScore(ctx context.Context, id string) (int, error) {
	return s.CalculateHealthScoreFunc(ctx, id)
}

func (s *stubHealthService) AssessPortfolioHealth(ctx context.Context) (*models.PortfolioHealth, error) {
	return s.AssessPortfolioHealthFunc(ctx)
}
