package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/archgov-inc/archgov-engine/pkg/apperrors"
	"github.com/archgov-inc/archgov-engine/pkg/models"
)

func newTestRelationshipService(repo *mockAssetRepo) RelationshipService {
	return NewRelationshipService(repo, zap.NewNop())
}

func seedPair(repo *mockAssetRepo) {
	repo.seed(draftAsset("web-app"))
	repo.seed(draftAsset("api-gateway"))
}

func TestLink_DependsOnMaintainsClosure(t *testing.T) {
	repo := newMockAssetRepo()
	svc := newTestRelationshipService(repo)
	ctx := context.Background()
	seedPair(repo)

	require.NoError(t, svc.Link(ctx, "web-app", "api-gateway", models.RelationDependsOn))

	source := repo.stored("web-app")
	target := repo.stored("api-gateway")
	assert.Equal(t, []string{"api-gateway"}, source.DependsOn)
	assert.Equal(t, []string{"web-app"}, target.UsedBy, "used_by mirror must be applied in the same operation")
}

func TestLink_Idempotent(t *testing.T) {
	repo := newMockAssetRepo()
	svc := newTestRelationshipService(repo)
	ctx := context.Background()
	seedPair(repo)

	require.NoError(t, svc.Link(ctx, "web-app", "api-gateway", models.RelationDependsOn))
	writesAfterFirst := repo.updateCalls

	require.NoError(t, svc.Link(ctx, "web-app", "api-gateway", models.RelationDependsOn))
	assert.Equal(t, writesAfterFirst, repo.updateCalls, "repeated link must not write")

	source := repo.stored("web-app")
	assert.Equal(t, []string{"api-gateway"}, source.DependsOn, "exactly one edge")
}

func TestLink_SelfReferenceRejected(t *testing.T) {
	repo := newMockAssetRepo()
	svc := newTestRelationshipService(repo)
	seedPair(repo)

	err := svc.Link(context.Background(), "web-app", "web-app", models.RelationDependsOn)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestLink_UnknownAsset(t *testing.T) {
	repo := newMockAssetRepo()
	svc := newTestRelationshipService(repo)
	seedPair(repo)

	err := svc.Link(context.Background(), "web-app", "nope", models.RelationDependsOn)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = svc.Link(context.Background(), "nope", "web-app", models.RelationDependsOn)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLink_UsedByCannotBeAuthored(t *testing.T) {
	repo := newMockAssetRepo()
	svc := newTestRelationshipService(repo)
	seedPair(repo)

	err := svc.Link(context.Background(), "web-app", "api-gateway", models.RelationUsedBy)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestLink_UnknownRelation(t *testing.T) {
	repo := newMockAssetRepo()
	svc := newTestRelationshipService(repo)
	seedPair(repo)

	err := svc.Link(context.Background(), "web-app", "api-gateway", "contains")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestLink_OneSidedRelations(t *testing.T) {
	repo := newMockAssetRepo()
	svc := newTestRelationshipService(repo)
	ctx := context.Background()
	seedPair(repo)

	require.NoError(t, svc.Link(ctx, "web-app", "api-gateway", models.RelationImplements))

	source := repo.stored("web-app")
	target := repo.stored("api-gateway")
	assert.Equal(t, []string{"api-gateway"}, source.Implements)
	assert.Empty(t, target.UsedBy, "implements has no maintained inverse")
}

func TestUnlink_RemovesBothSides(t *testing.T) {
	repo := newMockAssetRepo()
	svc := newTestRelationshipService(repo)
	ctx := context.Background()
	seedPair(repo)

	require.NoError(t, svc.Link(ctx, "web-app", "api-gateway", models.RelationDependsOn))
	require.NoError(t, svc.Unlink(ctx, "web-app", "api-gateway", models.RelationDependsOn))

	source := repo.stored("web-app")
	target := repo.stored("api-gateway")
	assert.Empty(t, source.DependsOn)
	assert.Empty(t, target.UsedBy)
}

func TestUnlink_MissingEdgeIsNoop(t *testing.T) {
	repo := newMockAssetRepo()
	svc := newTestRelationshipService(repo)
	ctx := context.Background()
	seedPair(repo)

	writesBefore := repo.updateCalls
	require.NoError(t, svc.Unlink(ctx, "web-app", "api-gateway", models.RelationDependsOn))
	assert.Equal(t, writesBefore, repo.updateCalls)
}

func TestLink_RepairsHalfMirroredEdge(t *testing.T) {
	repo := newMockAssetRepo()
	svc := newTestRelationshipService(repo)
	ctx := context.Background()

	// Source already carries the edge but the mirror is missing, the
	// drift the closure duty exists to prevent.
	source := draftAsset("web-app")
	source.DependsOn = []string{"api-gateway"}
	repo.seed(source)
	repo.seed(draftAsset("api-gateway"))

	require.NoError(t, svc.Link(ctx, "web-app", "api-gateway", models.RelationDependsOn))

	target := repo.stored("api-gateway")
	assert.Equal(t, []string{"web-app"}, target.UsedBy)
}

func TestLink_RetriesVersionRace(t *testing.T) {
	repo := newMockAssetRepo()
	svc := newTestRelationshipService(repo)
	ctx := context.Background()
	seedPair(repo)

	repo.failUpdatesWithConflict = 1
	require.NoError(t, svc.Link(ctx, "web-app", "api-gateway", models.RelationRelatedTo))

	source := repo.stored("web-app")
	assert.Equal(t, []string{"api-gateway"}, source.RelatedTo)
}
