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

// RelationshipService maintains the directed edges between assets.
// depends_on and used_by are inverse views of the same edge; the mirror
// is applied inside Link/Unlink themselves, never left to a separate
// pass, so the bidirectional invariant holds after every call.
type RelationshipService interface {
	// Link adds a directed edge. Idempotent: linking an existing edge
	// changes nothing and returns nil.
	Link(ctx context.Context, sourceID, targetID, relation string) error
	// Unlink removes a directed edge. Idempotent: removing an absent
	// edge is a no-op, not an error.
	Unlink(ctx context.Context, sourceID, targetID, relation string) error
}

type relationshipService struct {
	repo   repositories.AssetRepository
	logger *zap.Logger
}

// NewRelationshipService creates a new relationship service.
func NewRelationshipService(repo repositories.AssetRepository, logger *zap.Logger) RelationshipService {
	return &relationshipService{repo: repo, logger: logger}
}

var _ RelationshipService = (*relationshipService)(nil)

func (s *relationshipService) Link(ctx context.Context, sourceID, targetID, relation string) error {
	return s.apply(ctx, sourceID, targetID, relation, true)
}

func (s *relationshipService) Unlink(ctx context.Context, sourceID, targetID, relation string) error {
	return s.apply(ctx, sourceID, targetID, relation, false)
}

// apply adds or removes one edge, mirroring used_by for depends_on
// edges in the same logical operation. Both sides of a mirrored edge
// are written in one transaction; version conflicts replay the whole
// read-modify-write.
func (s *relationshipService) apply(ctx context.Context, sourceID, targetID, relation string, add bool) error {
	if !models.ValidRelation(relation) {
		return fmt.Errorf("%w: unknown relation %q", apperrors.ErrValidation, relation)
	}
	if relation == models.RelationUsedBy {
		return fmt.Errorf("%w: used_by is derived from depends_on and cannot be authored directly",
			apperrors.ErrValidation)
	}
	if sourceID == targetID {
		return fmt.Errorf("%w: asset cannot be linked to itself", apperrors.ErrValidation)
	}

	var lastErr error
	for attempt := 0; attempt <= conflictRetries; attempt++ {
		source, err := s.repo.Get(ctx, sourceID)
		if err != nil {
			return err
		}
		target, err := s.repo.Get(ctx, targetID)
		if err != nil {
			return err
		}

		sourceChanged := mutateEdge(source, relation, targetID, add)

		targetChanged := false
		if relation == models.RelationDependsOn {
			targetChanged = mutateEdge(target, models.RelationUsedBy, sourceID, add)
		}

		var writeErr error
		switch {
		case sourceChanged && targetChanged:
			writeErr = s.repo.UpdatePair(ctx, source, target)
		case sourceChanged:
			writeErr = s.repo.Update(ctx, source)
		case targetChanged:
			writeErr = s.repo.Update(ctx, target)
		default:
			// Edge already in the requested state.
			return nil
		}

		if writeErr == nil {
			return nil
		}
		if !errors.Is(writeErr, apperrors.ErrConflict) {
			return writeErr
		}
		lastErr = writeErr
		s.logger.Debug("Relationship write lost a version race, retrying",
			zap.String("source_id", sourceID),
			zap.String("target_id", targetID),
			zap.String("relation", relation))
	}
	return lastErr
}

// mutateEdge adds or removes id in the asset's relation array and
// reports whether anything changed.
func mutateEdge(asset *models.ArchitectureAsset, relation, id string, add bool) bool {
	current := asset.RelationSet(relation)
	if add {
		if containsID(current, id) {
			return false
		}
		asset.SetRelationSet(relation, append(current, id))
		return true
	}

	filtered := current[:0:0]
	for _, existing := range current {
		if existing != id {
			filtered = append(filtered, existing)
		}
	}
	if len(filtered) == len(current) {
		return false
	}
	asset.SetRelationSet(relation, filtered)
	return true
}
