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

func newTestDependencyService(repo *mockAssetRepo) DependencyService {
	return NewDependencyService(repo, zap.NewNop())
}

// seedChain stores a linear depends_on chain a -> b -> c -> ... with
// used_by mirrors in place.
func seedChain(repo *mockAssetRepo, ids ...string) {
	assets := make(map[string]*models.ArchitectureAsset, len(ids))
	for _, id := range ids {
		assets[id] = draftAsset(id)
	}
	for i := 0; i+1 < len(ids); i++ {
		assets[ids[i]].DependsOn = append(assets[ids[i]].DependsOn, ids[i+1])
		assets[ids[i+1]].UsedBy = append(assets[ids[i+1]].UsedBy, ids[i])
	}
	for _, asset := range assets {
		repo.seed(asset)
	}
}

func TestNeighbors_ForwardAndReverse(t *testing.T) {
	repo := newMockAssetRepo()
	svc := newTestDependencyService(repo)
	ctx := context.Background()
	seedChain(repo, "a", "b", "c")

	forward, err := svc.Neighbors(ctx, "b", models.RelationDependsOn, DirectionForward)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, forward)

	// Reverse of depends_on is answered from the used_by mirror.
	reverse, err := svc.Neighbors(ctx, "b", models.RelationDependsOn, DirectionReverse)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, reverse)
}

func TestNeighbors_ReverseScanForUnmirroredRelations(t *testing.T) {
	repo := newMockAssetRepo()
	svc := newTestDependencyService(repo)
	ctx := context.Background()

	standard := draftAsset("api-standard")
	impl := draftAsset("payments-api")
	impl.Implements = []string{"api-standard"}
	repo.seed(standard)
	repo.seed(impl)

	ids, err := svc.Neighbors(ctx, "api-standard", models.RelationImplements, DirectionReverse)
	require.NoError(t, err)
	assert.Equal(t, []string{"payments-api"}, ids)
}

func TestNeighbors_UnknownAsset(t *testing.T) {
	repo := newMockAssetRepo()
	svc := newTestDependencyService(repo)

	_, err := svc.Neighbors(context.Background(), "nope", models.RelationDependsOn, DirectionForward)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestNeighbors_BadArguments(t *testing.T) {
	repo := newMockAssetRepo()
	svc := newTestDependencyService(repo)
	repo.seed(draftAsset("a"))

	_, err := svc.Neighbors(context.Background(), "a", "contains", DirectionForward)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.Neighbors(context.Background(), "a", models.RelationDependsOn, "sideways")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestGraph_DepthAnnotatedExpansion(t *testing.T) {
	repo := newMockAssetRepo()
	svc := newTestDependencyService(repo)
	ctx := context.Background()
	seedChain(repo, "a", "b", "c", "d")

	graph, err := svc.Graph(ctx, "a", 5)
	require.NoError(t, err)

	require.Len(t, graph.Dependencies, 3)
	depths := map[string]int{}
	for _, node := range graph.Dependencies {
		depths[node.AssetID] = node.Depth
	}
	assert.Equal(t, map[string]int{"b": 1, "c": 2, "d": 3}, depths)
	assert.Empty(t, graph.Dependents, "a has no dependents")

	// From the middle both directions are populated.
	graph, err = svc.Graph(ctx, "c", 5)
	require.NoError(t, err)
	require.Len(t, graph.Dependents, 2)
	depths = map[string]int{}
	for _, node := range graph.Dependents {
		depths[node.AssetID] = node.Depth
	}
	assert.Equal(t, map[string]int{"b": 1, "a": 2}, depths)
}

func TestGraph_MaxDepthBoundsExpansion(t *testing.T) {
	repo := newMockAssetRepo()
	svc := newTestDependencyService(repo)
	ctx := context.Background()
	seedChain(repo, "a", "b", "c", "d", "e")

	graph, err := svc.Graph(ctx, "a", 2)
	require.NoError(t, err)
	require.Len(t, graph.Dependencies, 2)
	for _, node := range graph.Dependencies {
		assert.LessOrEqual(t, node.Depth, 2)
	}
}

func TestGraph_CycleSafety(t *testing.T) {
	repo := newMockAssetRepo()
	svc := newTestDependencyService(repo)
	ctx := context.Background()

	// a -> b -> a
	a := draftAsset("a")
	b := draftAsset("b")
	a.DependsOn = []string{"b"}
	a.UsedBy = []string{"b"}
	b.DependsOn = []string{"a"}
	b.UsedBy = []string{"a"}
	repo.seed(a)
	repo.seed(b)

	graph, err := svc.Graph(ctx, "a", 5)
	require.NoError(t, err)

	// b appears exactly once; a is never revisited.
	require.Len(t, graph.Dependencies, 1)
	assert.Equal(t, "b", graph.Dependencies[0].AssetID)
	require.Len(t, graph.Dependents, 1)
	assert.Equal(t, "b", graph.Dependents[0].AssetID)
}

func TestGraph_DanglingReferenceBecomesLeaf(t *testing.T) {
	repo := newMockAssetRepo()
	svc := newTestDependencyService(repo)
	ctx := context.Background()

	a := draftAsset("a")
	a.DependsOn = []string{"vanished"}
	repo.seed(a)

	graph, err := svc.Graph(ctx, "a", 3)
	require.NoError(t, err)
	require.Len(t, graph.Dependencies, 1)
	assert.Equal(t, "vanished", graph.Dependencies[0].AssetID)
	assert.Empty(t, graph.Dependencies[0].Name)
}

func TestGraph_DepthDefaultsAndCap(t *testing.T) {
	repo := newMockAssetRepo()
	svc := newTestDependencyService(repo)
	ctx := context.Background()
	repo.seed(draftAsset("a"))

	graph, err := svc.Graph(ctx, "a", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultGraphDepth, graph.MaxDepth)

	graph, err = svc.Graph(ctx, "a", 99)
	require.NoError(t, err)
	assert.Equal(t, MaxGraphDepth, graph.MaxDepth)
}

func TestGraph_UnknownAsset(t *testing.T) {
	repo := newMockAssetRepo()
	svc := newTestDependencyService(repo)

	_, err := svc.Graph(context.Background(), "nope", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
