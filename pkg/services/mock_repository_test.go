package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/archgov-inc/archgov-engine/pkg/apperrors"
	"github.com/archgov-inc/archgov-engine/pkg/models"
	"github.com/archgov-inc/archgov-engine/pkg/repositories"
)

// mockAssetRepo is an in-memory AssetRepository with the same
// version-guard semantics as the PostgreSQL implementation. Get returns
// a deep copy, like a real row materialization would.
type mockAssetRepo struct {
	mu     sync.Mutex
	assets map[string]*models.ArchitectureAsset

	createErr error
	getErr    error
	updateErr error
	listErr   error

	// failUpdatesWithConflict makes the next N updates lose the version
	// race regardless of the supplied version.
	failUpdatesWithConflict int
	// failUpdatesWith makes the next N updates fail with the given error
	// before touching the store.
	failUpdates     int
	failUpdatesWith error
	updateCalls     int
}

func newMockAssetRepo() *mockAssetRepo {
	return &mockAssetRepo{assets: make(map[string]*models.ArchitectureAsset)}
}

var _ repositories.AssetRepository = (*mockAssetRepo)(nil)

func (m *mockAssetRepo) Create(ctx context.Context, asset *models.ArchitectureAsset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.assets[asset.ID]; exists {
		return fmt.Errorf("%w: asset %q already exists", apperrors.ErrConflict, asset.ID)
	}

	now := time.Now().UTC()
	asset.CreatedAt = now
	asset.UpdatedAt = now
	asset.RecordVersion = 1
	m.assets[asset.ID] = cloneAsset(asset)
	return nil
}

func (m *mockAssetRepo) Get(ctx context.Context, id string) (*models.ArchitectureAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	asset, exists := m.assets[id]
	if !exists {
		return nil, fmt.Errorf("%w: asset %q", apperrors.ErrNotFound, id)
	}
	return cloneAsset(asset), nil
}

func (m *mockAssetRepo) Update(ctx context.Context, asset *models.ArchitectureAsset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(asset)
}

func (m *mockAssetRepo) updateLocked(asset *models.ArchitectureAsset) error {
	if m.updateErr != nil {
		return m.updateErr
	}

	m.updateCalls++
	if m.failUpdatesWithConflict > 0 {
		m.failUpdatesWithConflict--
		return fmt.Errorf("%w: simulated version race", apperrors.ErrConflict)
	}
	if m.failUpdates > 0 {
		m.failUpdates--
		return m.failUpdatesWith
	}

	stored, exists := m.assets[asset.ID]
	if !exists {
		return fmt.Errorf("%w: asset %q", apperrors.ErrNotFound, asset.ID)
	}
	if stored.RecordVersion != asset.RecordVersion {
		return fmt.Errorf("%w: asset %q was modified concurrently", apperrors.ErrConflict, asset.ID)
	}

	asset.RecordVersion++
	asset.UpdatedAt = time.Now().UTC()
	m.assets[asset.ID] = cloneAsset(asset)
	return nil
}

func (m *mockAssetRepo) UpdatePair(ctx context.Context, first, second *models.ArchitectureAsset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check both version guards up front so a failure leaves neither
	// side applied, matching the transactional implementation.
	for _, asset := range []*models.ArchitectureAsset{first, second} {
		stored, exists := m.assets[asset.ID]
		if !exists {
			return fmt.Errorf("%w: asset %q", apperrors.ErrNotFound, asset.ID)
		}
		if stored.RecordVersion != asset.RecordVersion {
			return fmt.Errorf("%w: asset %q was modified concurrently", apperrors.ErrConflict, asset.ID)
		}
	}

	if err := m.updateLocked(first); err != nil {
		return err
	}
	return m.updateLocked(second)
}

func (m *mockAssetRepo) List(ctx context.Context, filter repositories.AssetFilter) ([]*models.ArchitectureAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, m.listErr
	}

	ids := make([]string, 0, len(m.assets))
	for id := range m.assets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var result []*models.ArchitectureAsset
	for _, id := range ids {
		asset := m.assets[id]
		if filter.Domain != "" && asset.Domain != filter.Domain {
			continue
		}
		if filter.Layer != "" && asset.Layer != filter.Layer {
			continue
		}
		if filter.Status != "" && asset.Status != filter.Status {
			continue
		}
		if filter.AssetType != "" && asset.AssetType != filter.AssetType {
			continue
		}
		tagMatch := true
		for k, v := range filter.Tags {
			if asset.Tags[k] != v {
				tagMatch = false
				break
			}
		}
		if !tagMatch {
			continue
		}
		result = append(result, cloneAsset(asset))
	}
	return result, nil
}

// seed stores an asset directly, bypassing Create-time stamping.
func (m *mockAssetRepo) seed(asset *models.ArchitectureAsset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if asset.RecordVersion == 0 {
		asset.RecordVersion = 1
	}
	m.assets[asset.ID] = cloneAsset(asset)
}

// stored returns the stored record without copying, for assertions.
func (m *mockAssetRepo) stored(id string) *models.ArchitectureAsset {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assets[id]
}

func cloneAsset(asset *models.ArchitectureAsset) *models.ArchitectureAsset {
	clone := *asset
	clone.ApprovedBy = append([]string(nil), asset.ApprovedBy...)
	clone.DependsOn = append([]string(nil), asset.DependsOn...)
	clone.RelatedTo = append([]string(nil), asset.RelatedTo...)
	clone.Implements = append([]string(nil), asset.Implements...)
	clone.UsedBy = append([]string(nil), asset.UsedBy...)
	if asset.Tags != nil {
		clone.Tags = make(map[string]string, len(asset.Tags))
		for k, v := range asset.Tags {
			clone.Tags[k] = v
		}
	}
	if asset.AssetData != nil {
		clone.AssetData = append(json.RawMessage(nil), asset.AssetData...)
	}
	return &clone
}
