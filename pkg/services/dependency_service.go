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

// Traversal directions for Neighbors.
const (
	DirectionForward = "forward"
	DirectionReverse = "reverse"
)

const (
	// DefaultGraphDepth is used when a caller does not cap the
	// dependency graph expansion.
	DefaultGraphDepth = 3
	// MaxGraphDepth caps the expansion regardless of what the caller
	// asks for; asset-scale graphs never need more.
	MaxGraphDepth = 10
)

// DependencyService answers traversal queries over the relationship
// graph. All traversals are cycle safe: a node already visited along
// the expansion is never expanded again.
type DependencyService interface {
	// Neighbors returns the one-hop set for an asset in the requested
	// relation and direction.
	Neighbors(ctx context.Context, id, relation, direction string) ([]string, error)
	// Graph returns the bounded expansion around an asset: transitive
	// dependencies over depends_on and transitive dependents over
	// used_by, each annotated with its hop count.
	Graph(ctx context.Context, id string, maxDepth int) (*models.DependencyGraph, error)
}

type dependencyService struct {
	repo   repositories.AssetRepository
	logger *zap.Logger
}

// NewDependencyService creates a new dependency service.
func NewDependencyService(repo repositories.AssetRepository, logger *zap.Logger) DependencyService {
	return &dependencyService{repo: repo, logger: logger}
}

var _ DependencyService = (*dependencyService)(nil)

func (s *dependencyService) Neighbors(ctx context.Context, id, relation, direction string) ([]string, error) {
	if !models.ValidRelation(relation) {
		return nil, fmt.Errorf("%w: unknown relation %q", apperrors.ErrValidation, relation)
	}

	switch direction {
	case DirectionForward:
		asset, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return copyIDs(asset.RelationSet(relation)), nil

	case DirectionReverse:
		// depends_on and used_by mirror each other, so the reverse of
		// one is the forward of the other and costs a single read.
		if inverse := models.InverseRelation(relation); inverse != "" {
			asset, err := s.repo.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			return copyIDs(asset.RelationSet(inverse)), nil
		}
		return s.reverseScan(ctx, id, relation)

	default:
		return nil, fmt.Errorf("%w: unknown direction %q", apperrors.ErrValidation, direction)
	}
}

// reverseScan finds every asset whose relation array contains id. Used
// for the relation kinds without a maintained inverse.
func (s *dependencyService) reverseScan(ctx context.Context, id, relation string) ([]string, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}

	assets, err := s.repo.List(ctx, repositories.AssetFilter{})
	if err != nil {
		return nil, err
	}

	result := []string{}
	for _, asset := range assets {
		if containsID(asset.RelationSet(relation), id) {
			result = append(result, asset.ID)
		}
	}
	return result, nil
}

func (s *dependencyService) Graph(ctx context.Context, id string, maxDepth int) (*models.DependencyGraph, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultGraphDepth
	}
	if maxDepth > MaxGraphDepth {
		maxDepth = MaxGraphDepth
	}

	root, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	dependencies, err := s.expand(ctx, root, models.RelationDependsOn, maxDepth)
	if err != nil {
		return nil, err
	}
	dependents, err := s.expand(ctx, root, models.RelationUsedBy, maxDepth)
	if err != nil {
		return nil, err
	}

	return &models.DependencyGraph{
		AssetID:      id,
		MaxDepth:     maxDepth,
		Dependencies: dependencies,
		Dependents:   dependents,
	}, nil
}

// expand runs a bounded breadth-first traversal from root over one
// relation kind. The visited set breaks cycles; maxDepth caps work even
// on an acyclic but deep graph. Assets referenced but not present in
// the catalog become leaf nodes without a name.
func (s *dependencyService) expand(ctx context.Context, root *models.ArchitectureAsset, relation string, maxDepth int) ([]models.GraphNode, error) {
	type frontierEntry struct {
		id    string
		depth int
	}

	visited := map[string]bool{root.ID: true}
	frontier := []frontierEntry{}
	nodes := []models.GraphNode{}

	for _, id := range root.RelationSet(relation) {
		frontier = append(frontier, frontierEntry{id: id, depth: 1})
	}

	for len(frontier) > 0 {
		entry := frontier[0]
		frontier = frontier[1:]

		if visited[entry.id] {
			continue
		}
		visited[entry.id] = true

		asset, err := s.repo.Get(ctx, entry.id)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				// Dangling reference; keep the id visible but stop there.
				nodes = append(nodes, models.GraphNode{AssetID: entry.id, Depth: entry.depth})
				continue
			}
			return nil, err
		}

		nodes = append(nodes, models.GraphNode{
			AssetID: asset.ID,
			Name:    asset.Name,
			Depth:   entry.depth,
		})

		if entry.depth >= maxDepth {
			continue
		}
		for _, next := range asset.RelationSet(relation) {
			if !visited[next] {
				frontier = append(frontier, frontierEntry{id: next, depth: entry.depth + 1})
			}
		}
	}

	return nodes, nil
}

func copyIDs(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
