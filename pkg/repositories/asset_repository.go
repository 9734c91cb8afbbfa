package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/archgov-inc/archgov-engine/pkg/apperrors"
	"github.com/archgov-inc/archgov-engine/pkg/database"
	"github.com/archgov-inc/archgov-engine/pkg/models"
)

// AssetFilter is a conjunction of optional criteria for List. Zero-value
// fields match everything.
type AssetFilter struct {
	Domain    string
	Layer     string
	Status    string
	AssetType string
	// Tags must all be present with exactly these values.
	Tags map[string]string
}

// AssetRepository defines the persistence contract for architecture
// assets: one row per asset in engine_assets, list and map valued
// fields encoded as jsonb, all statements parameterized.
type AssetRepository interface {
	Create(ctx context.Context, asset *models.ArchitectureAsset) error
	Get(ctx context.Context, id string) (*models.ArchitectureAsset, error)
	// Update writes the full row guarded by the asset's RecordVersion.
	// A version mismatch on an existing row returns apperrors.ErrConflict.
	Update(ctx context.Context, asset *models.ArchitectureAsset) error
	// UpdatePair applies two version-guarded updates in one transaction,
	// so a link/unlink touching both sides is never left half-applied.
	UpdatePair(ctx context.Context, first, second *models.ArchitectureAsset) error
	List(ctx context.Context, filter AssetFilter) ([]*models.ArchitectureAsset, error)
}

// assetRepository implements AssetRepository using PostgreSQL.
type assetRepository struct {
	db *database.DB
}

// NewAssetRepository creates a new asset repository over the given
// database handle.
func NewAssetRepository(db *database.DB) AssetRepository {
	return &assetRepository{db: db}
}

var _ AssetRepository = (*assetRepository)(nil)

const assetColumns = `id, name, description, asset_type, domain, layer, status, version,
	owner, steward, approved_by, approval_date, review_date,
	depends_on, related_to, implements, used_by,
	tags, documentation_url, source_repository,
	usage_count, last_used, health_score, asset_data,
	record_version, created_at, updated_at`

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// execer is satisfied by both the pool and a pgx.Tx, so single-row and
// transactional updates share one code path.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *assetRepository) Create(ctx context.Context, asset *models.ArchitectureAsset) error {
	now := time.Now().UTC()
	asset.CreatedAt = now
	asset.UpdatedAt = now
	asset.RecordVersion = 1

	enc, err := encodeAsset(asset)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO engine_assets (` + assetColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)`

	_, err = r.db.Exec(ctx, query,
		asset.ID, asset.Name, asset.Description, asset.AssetType, asset.Domain, asset.Layer,
		asset.Status, asset.Version,
		asset.Owner, asset.Steward, enc.approvedBy, asset.ApprovalDate, asset.ReviewDate,
		enc.dependsOn, enc.relatedTo, enc.implements, enc.usedBy,
		enc.tags, asset.DocumentationURL, asset.SourceRepository,
		asset.UsageCount, asset.LastUsed, asset.HealthScore, enc.assetData,
		asset.RecordVersion, asset.CreatedAt, asset.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: asset %q already exists", apperrors.ErrConflict, asset.ID)
		}
		return fmt.Errorf("%w: failed to insert asset: %v", apperrors.ErrStorage, err)
	}

	return nil
}

func (r *assetRepository) Get(ctx context.Context, id string) (*models.ArchitectureAsset, error) {
	query := `SELECT ` + assetColumns + ` FROM engine_assets WHERE id = $1`

	asset, err := scanAsset(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: asset %q", apperrors.ErrNotFound, id)
		}
		return nil, err
	}
	return asset, nil
}

func (r *assetRepository) Update(ctx context.Context, asset *models.ArchitectureAsset) error {
	return r.updateOne(ctx, r.db, asset)
}

// updateOne writes the full row, guarded by the record_version the
// caller read. On success the asset's RecordVersion and UpdatedAt are
// advanced in place to match the stored row.
func (r *assetRepository) updateOne(ctx context.Context, conn execer, asset *models.ArchitectureAsset) error {
	enc, err := encodeAsset(asset)
	if err != nil {
		return err
	}

	updatedAt := time.Now().UTC()

	query := `
		UPDATE engine_assets SET
			name = $3, description = $4, asset_type = $5, domain = $6, layer = $7,
			status = $8, version = $9, owner = $10, steward = $11,
			approved_by = $12, approval_date = $13, review_date = $14,
			depends_on = $15, related_to = $16, implements = $17, used_by = $18,
			tags = $19, documentation_url = $20, source_repository = $21,
			usage_count = $22, last_used = $23, health_score = $24, asset_data = $25,
			record_version = record_version + 1, updated_at = $26
		WHERE id = $1 AND record_version = $2`

	tag, err := conn.Exec(ctx, query,
		asset.ID, asset.RecordVersion,
		asset.Name, asset.Description, asset.AssetType, asset.Domain, asset.Layer,
		asset.Status, asset.Version, asset.Owner, asset.Steward,
		enc.approvedBy, asset.ApprovalDate, asset.ReviewDate,
		enc.dependsOn, enc.relatedTo, enc.implements, enc.usedBy,
		enc.tags, asset.DocumentationURL, asset.SourceRepository,
		asset.UsageCount, asset.LastUsed, asset.HealthScore, enc.assetData,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to update asset: %v", apperrors.ErrStorage, err)
	}

	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a concurrent writer winning.
		var exists bool
		if err := conn.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM engine_assets WHERE id = $1)`, asset.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("%w: failed to check asset existence: %v", apperrors.ErrStorage, err)
		}
		if !exists {
			return fmt.Errorf("%w: asset %q", apperrors.ErrNotFound, asset.ID)
		}
		return fmt.Errorf("%w: asset %q was modified concurrently", apperrors.ErrConflict, asset.ID)
	}

	asset.RecordVersion++
	asset.UpdatedAt = updatedAt
	return nil
}

func (r *assetRepository) UpdatePair(ctx context.Context, first, second *models.ArchitectureAsset) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", apperrors.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := r.updateOne(ctx, tx, first); err != nil {
		return err
	}
	if err := r.updateOne(ctx, tx, second); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", apperrors.ErrStorage, err)
	}
	return nil
}

func (r *assetRepository) List(ctx context.Context, filter AssetFilter) ([]*models.ArchitectureAsset, error) {
	query := `SELECT ` + assetColumns + ` FROM engine_assets`

	var clauses []string
	var args []any
	addClause := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	addClause("domain", filter.Domain)
	addClause("layer", filter.Layer)
	addClause("status", filter.Status)
	addClause("asset_type", filter.AssetType)

	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY id"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query assets: %v", apperrors.ErrStorage, err)
	}
	defer rows.Close()

	var assets []*models.ArchitectureAsset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		if !matchesTags(asset.Tags, filter.Tags) {
			continue
		}
		assets = append(assets, asset)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating assets: %v", apperrors.ErrStorage, err)
	}

	return assets, nil
}

// matchesTags reports whether want is an exact-match subset of have.
func matchesTags(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

// encodedAsset holds the jsonb column payloads for one asset row.
type encodedAsset struct {
	approvedBy []byte
	dependsOn  []byte
	relatedTo  []byte
	implements []byte
	usedBy     []byte
	tags       []byte
	assetData  []byte
}

// encodeAsset serializes the collection-valued fields for storage. Nil
// slices and maps encode as empty collections so decoded records never
// distinguish nil from empty.
func encodeAsset(asset *models.ArchitectureAsset) (*encodedAsset, error) {
	enc := &encodedAsset{}
	var err error

	if enc.approvedBy, err = encodeStringSlice(asset.ApprovedBy); err != nil {
		return nil, err
	}
	if enc.dependsOn, err = encodeStringSlice(asset.DependsOn); err != nil {
		return nil, err
	}
	if enc.relatedTo, err = encodeStringSlice(asset.RelatedTo); err != nil {
		return nil, err
	}
	if enc.implements, err = encodeStringSlice(asset.Implements); err != nil {
		return nil, err
	}
	if enc.usedBy, err = encodeStringSlice(asset.UsedBy); err != nil {
		return nil, err
	}

	tags := asset.Tags
	if tags == nil {
		tags = map[string]string{}
	}
	if enc.tags, err = json.Marshal(tags); err != nil {
		return nil, fmt.Errorf("%w: failed to marshal tags: %v", apperrors.ErrStorage, err)
	}

	if len(asset.AssetData) > 0 {
		enc.assetData = asset.AssetData
	}

	return enc, nil
}

func encodeStringSlice(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal string list: %v", apperrors.ErrStorage, err)
	}
	return data, nil
}

// scanAsset materializes one row, decoding the jsonb columns into
// native collections.
func scanAsset(row rowScanner) (*models.ArchitectureAsset, error) {
	var (
		asset      models.ArchitectureAsset
		approvedBy []byte
		dependsOn  []byte
		relatedTo  []byte
		implements []byte
		usedBy     []byte
		tags       []byte
		assetData  []byte
	)

	err := row.Scan(
		&asset.ID, &asset.Name, &asset.Description, &asset.AssetType, &asset.Domain, &asset.Layer,
		&asset.Status, &asset.Version,
		&asset.Owner, &asset.Steward, &approvedBy, &asset.ApprovalDate, &asset.ReviewDate,
		&dependsOn, &relatedTo, &implements, &usedBy,
		&tags, &asset.DocumentationURL, &asset.SourceRepository,
		&asset.UsageCount, &asset.LastUsed, &asset.HealthScore, &assetData,
		&asset.RecordVersion, &asset.CreatedAt, &asset.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: failed to scan asset: %v", apperrors.ErrStorage, err)
	}

	if err := decodeStringSlice(approvedBy, &asset.ApprovedBy); err != nil {
		return nil, err
	}
	if err := decodeStringSlice(dependsOn, &asset.DependsOn); err != nil {
		return nil, err
	}
	if err := decodeStringSlice(relatedTo, &asset.RelatedTo); err != nil {
		return nil, err
	}
	if err := decodeStringSlice(implements, &asset.Implements); err != nil {
		return nil, err
	}
	if err := decodeStringSlice(usedBy, &asset.UsedBy); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tags, &asset.Tags); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal tags: %v", apperrors.ErrStorage, err)
	}
	if len(assetData) > 0 {
		asset.AssetData = json.RawMessage(assetData)
	}

	return &asset, nil
}

func decodeStringSlice(data []byte, dest *[]string) error {
	if len(data) == 0 {
		*dest = []string{}
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: failed to unmarshal string list: %v", apperrors.ErrStorage, err)
	}
	return nil
}
