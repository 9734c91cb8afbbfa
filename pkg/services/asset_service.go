package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/archgov-inc/archgov-engine/pkg/apperrors"
	"github.com/archgov-inc/archgov-engine/pkg/models"
	"github.com/archgov-inc/archgov-engine/pkg/repositories"
	"github.com/archgov-inc/archgov-engine/pkg/retry"
	"github.com/archgov-inc/archgov-engine/pkg/search"
)

// conflictRetries bounds how often a single-asset write is replayed
// after losing an optimistic-concurrency race.
const conflictRetries = 3

// AssetPatch carries the fields an update may change. Nil pointers mean
// "leave as is". Relationship arrays are deliberately absent; edges are
// managed through the relationship service so the used_by mirror can
// never drift.
type AssetPatch struct {
	Name             *string            `json:"name,omitempty"`
	Description      *string            `json:"description,omitempty"`
	AssetType        *string            `json:"asset_type,omitempty"`
	Domain           *string            `json:"domain,omitempty"`
	Layer            *string            `json:"layer,omitempty"`
	Status           *string            `json:"status,omitempty"`
	Version          *string            `json:"version,omitempty"`
	Owner            *string            `json:"owner,omitempty"`
	Steward          *string            `json:"steward,omitempty"`
	ApprovedBy       *[]string          `json:"approved_by,omitempty"`
	ApprovalDate     *time.Time         `json:"approval_date,omitempty"`
	ReviewDate       *time.Time         `json:"review_date,omitempty"`
	Tags             *map[string]string `json:"tags,omitempty"`
	DocumentationURL *string            `json:"documentation_url,omitempty"`
	SourceRepository *string            `json:"source_repository,omitempty"`
	AssetData        json.RawMessage    `json:"asset_data,omitempty"`
}

// IsEmpty reports whether the patch carries no changes at all.
func (p *AssetPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.AssetType == nil &&
		p.Domain == nil && p.Layer == nil && p.Status == nil && p.Version == nil &&
		p.Owner == nil && p.Steward == nil && p.ApprovedBy == nil &&
		p.ApprovalDate == nil && p.ReviewDate == nil && p.Tags == nil &&
		p.DocumentationURL == nil && p.SourceRepository == nil && len(p.AssetData) == 0
}

// FindCriteria is the caller-facing query surface for Find. All present
// criteria must match (conjunction).
type FindCriteria struct {
	Domain    string
	Layer     string
	Status    string
	AssetType string
	Tags      map[string]string
}

// AssetService governs the catalog of architecture assets: registration
// with invariant enforcement, reads, partial updates with lifecycle
// checks, and usage accounting.
type AssetService interface {
	Register(ctx context.Context, asset *models.ArchitectureAsset) (*models.ArchitectureAsset, error)
	Get(ctx context.Context, id string) (*models.ArchitectureAsset, error)
	Update(ctx context.Context, id string, patch *AssetPatch) (*models.ArchitectureAsset, error)
	Find(ctx context.Context, criteria FindCriteria) ([]*models.ArchitectureAsset, error)
	RecordUsage(ctx context.Context, id string) (*models.ArchitectureAsset, error)
}

type assetService struct {
	repo     repositories.AssetRepository
	notifier *search.Notifier
	logger   *zap.Logger
	retryCfg *retry.Config
}

// NewAssetService creates a new asset service.
func NewAssetService(repo repositories.AssetRepository, notifier *search.Notifier, logger *zap.Logger) AssetService {
	return &assetService{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		retryCfg: retry.DefaultConfig(),
	}
}

var _ AssetService = (*assetService)(nil)

// Register validates and persists a new asset, mirrors its declared
// depends_on edges onto the targets' used_by arrays, and notifies the
// search indexer. Indexing is best effort and never fails the write.
func (s *assetService) Register(ctx context.Context, asset *models.ArchitectureAsset) (*models.ArchitectureAsset, error) {
	if asset.Status == "" {
		asset.Status = models.StatusDraft
	}
	// health_score and used_by are derived fields and cannot be
	// authored. A fresh registration starts from a full score with no
	// dependents attached.
	asset.HealthScore = 100
	asset.UsedBy = nil

	if err := asset.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, asset); err != nil {
		return nil, err
	}

	if err := s.mirrorDeclaredDependencies(ctx, asset); err != nil {
		return nil, err
	}

	created, err := s.repo.Get(ctx, asset.ID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.Notify(created)
	}

	return created, nil
}

// mirrorDeclaredDependencies adds the new asset to used_by on every
// target its depends_on declares. Unknown targets are logged and
// skipped. Any other write failure surfaces after transient errors are
// retried, so a successful registration always leaves the used_by
// mirror consistent.
func (s *assetService) mirrorDeclaredDependencies(ctx context.Context, asset *models.ArchitectureAsset) error {
	for _, targetID := range asset.DependsOn {
		err := retry.DoIfRetryable(ctx, s.retryCfg, func() error {
			return withConflictRetry(ctx, s.repo, targetID, func(target *models.ArchitectureAsset) (bool, error) {
				if containsID(target.UsedBy, asset.ID) {
					return false, nil
				}
				target.UsedBy = append(target.UsedBy, asset.ID)
				return true, nil
			})
		})
		if err == nil {
			continue
		}
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("Declared dependency target does not exist, skipping used_by mirror",
				zap.String("asset_id", asset.ID),
				zap.String("target_id", targetID))
			continue
		}
		s.logger.Error("Failed to mirror declared dependency",
			zap.String("asset_id", asset.ID),
			zap.String("target_id", targetID),
			zap.Error(err))
		return fmt.Errorf("failed to mirror dependency onto %q: %w", targetID, err)
	}
	return nil
}

func (s *assetService) Get(ctx context.Context, id string) (*models.ArchitectureAsset, error) {
	return s.repo.Get(ctx, id)
}

// Update merges only the supplied fields. An empty patch is a no-op
// that performs no storage write. A status change that moves backward
// in the lifecycle is rejected.
func (s *assetService) Update(ctx context.Context, id string, patch *AssetPatch) (*models.ArchitectureAsset, error) {
	asset, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch == nil || patch.IsEmpty() {
		return asset, nil
	}

	if err := applyPatch(asset, patch); err != nil {
		return nil, err
	}
	if err := asset.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, asset); err != nil {
		return nil, err
	}

	return asset, nil
}

func applyPatch(asset *models.ArchitectureAsset, patch *AssetPatch) error {
	if patch.Status != nil && *patch.Status != asset.Status {
		if !models.CanTransition(asset.Status, *patch.Status) {
			return fmt.Errorf("%w: status cannot move from %q to %q",
				apperrors.ErrValidation, asset.Status, *patch.Status)
		}
		asset.Status = *patch.Status
	}

	if patch.Name != nil {
		asset.Name = *patch.Name
	}
	if patch.Description != nil {
		asset.Description = *patch.Description
	}
	if patch.AssetType != nil {
		asset.AssetType = *patch.AssetType
	}
	if patch.Domain != nil {
		asset.Domain = *patch.Domain
	}
	if patch.Layer != nil {
		asset.Layer = *patch.Layer
	}
	if patch.Version != nil {
		asset.Version = *patch.Version
	}
	if patch.Owner != nil {
		asset.Owner = *patch.Owner
	}
	if patch.Steward != nil {
		asset.Steward = *patch.Steward
	}
	if patch.ApprovedBy != nil {
		asset.ApprovedBy = *patch.ApprovedBy
	}
	if patch.ApprovalDate != nil {
		asset.ApprovalDate = patch.ApprovalDate
	}
	if patch.ReviewDate != nil {
		asset.ReviewDate = patch.ReviewDate
	}
	if patch.Tags != nil {
		asset.Tags = *patch.Tags
	}
	if patch.DocumentationURL != nil {
		asset.DocumentationURL = *patch.DocumentationURL
	}
	if patch.SourceRepository != nil {
		asset.SourceRepository = *patch.SourceRepository
	}
	if len(patch.AssetData) > 0 {
		asset.AssetData = patch.AssetData
	}
	return nil
}

// Find returns every asset matching the conjunction of the supplied
// criteria, ordered by id. No matches is an empty result, not an error.
func (s *assetService) Find(ctx context.Context, criteria FindCriteria) ([]*models.ArchitectureAsset, error) {
	if criteria.Domain != "" && !models.ValidDomain(criteria.Domain) {
		return nil, fmt.Errorf("%w: unknown domain %q", apperrors.ErrValidation, criteria.Domain)
	}
	if criteria.Layer != "" && !models.ValidLayer(criteria.Layer) {
		return nil, fmt.Errorf("%w: unknown layer %q", apperrors.ErrValidation, criteria.Layer)
	}
	if criteria.Status != "" && !models.ValidStatus(criteria.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, criteria.Status)
	}
	if criteria.AssetType != "" && !models.ValidAssetType(criteria.AssetType) {
		return nil, fmt.Errorf("%w: unknown asset_type %q", apperrors.ErrValidation, criteria.AssetType)
	}

	assets, err := s.repo.List(ctx, repositories.AssetFilter{
		Domain:    criteria.Domain,
		Layer:     criteria.Layer,
		Status:    criteria.Status,
		AssetType: criteria.AssetType,
		Tags:      criteria.Tags,
	})
	if err != nil {
		return nil, err
	}
	if assets == nil {
		assets = []*models.ArchitectureAsset{}
	}
	return assets, nil
}

// RecordUsage bumps the usage counter and stamps last_used, retrying if
// a concurrent writer got there first.
func (s *assetService) RecordUsage(ctx context.Context, id string) (*models.ArchitectureAsset, error) {
	var result *models.ArchitectureAsset
	err := withConflictRetry(ctx, s.repo, id, func(asset *models.ArchitectureAsset) (bool, error) {
		now := time.Now().UTC()
		asset.UsageCount++
		asset.LastUsed = &now
		result = asset
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// withConflictRetry re-reads the asset and replays mutate until the
// version-guarded write succeeds or the retry budget is exhausted.
// mutate returns false to signal there is nothing to write.
func withConflictRetry(ctx context.Context, repo repositories.AssetRepository, id string, mutate func(*models.ArchitectureAsset) (bool, error)) error {
	var lastErr error
	for attempt := 0; attempt <= conflictRetries; attempt++ {
		asset, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}

		changed, err := mutate(asset)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		err = repo.Update(ctx, asset)
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperrors.ErrConflict) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
