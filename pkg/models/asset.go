package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/archgov-inc/archgov-engine/pkg/apperrors"
)

// Asset type values.
const (
	AssetTypeBlueprint = "blueprint"
	AssetTypeTemplate  = "template"
	AssetTypePattern   = "pattern"
	AssetTypeStandard  = "standard"
	AssetTypeADR       = "adr"
	AssetTypeComponent = "component"
	AssetTypeService   = "service"
)

// Architecture domain values.
const (
	DomainBusiness    = "business"
	DomainApplication = "application"
	DomainData        = "data"
	DomainTechnology  = "technology"
	DomainSecurity    = "security"
	DomainIntegration = "integration"
)

// Architecture layer values.
const (
	LayerStrategy       = "strategy"
	LayerCapability     = "capability"
	LayerLogical        = "logical"
	LayerPhysical       = "physical"
	LayerImplementation = "implementation"
)

// Asset lifecycle status values. The only legal transitions are
// draft->approved, approved->deprecated, deprecated->retired, and the
// escape hatches draft->retired and approved->retired. Nothing leaves
// retired.
const (
	StatusDraft      = "draft"
	StatusApproved   = "approved"
	StatusDeprecated = "deprecated"
	StatusRetired    = "retired"
)

// Relation kinds between assets. UsedBy is the derived inverse of
// DependsOn and is maintained by the relationship service, never
// authored directly.
const (
	RelationDependsOn  = "depends_on"
	RelationRelatedTo  = "related_to"
	RelationImplements = "implements"
	RelationUsedBy     = "used_by"
)

var (
	validAssetTypes = map[string]bool{
		AssetTypeBlueprint: true,
		AssetTypeTemplate:  true,
		AssetTypePattern:   true,
		AssetTypeStandard:  true,
		AssetTypeADR:       true,
		AssetTypeComponent: true,
		AssetTypeService:   true,
	}
	validDomains = map[string]bool{
		DomainBusiness:    true,
		DomainApplication: true,
		DomainData:        true,
		DomainTechnology:  true,
		DomainSecurity:    true,
		DomainIntegration: true,
	}
	validLayers = map[string]bool{
		LayerStrategy:       true,
		LayerCapability:     true,
		LayerLogical:        true,
		LayerPhysical:       true,
		LayerImplementation: true,
	}
	validRelations = map[string]bool{
		RelationDependsOn:  true,
		RelationRelatedTo:  true,
		RelationImplements: true,
		RelationUsedBy:     true,
	}

	// statusRank orders the lifecycle so a backward move can be
	// rejected with a single comparison.
	statusRank = map[string]int{
		StatusDraft:      0,
		StatusApproved:   1,
		StatusDeprecated: 2,
		StatusRetired:    3,
	}
)

// ArchitectureAsset is a cataloged architecture artifact (blueprint,
// pattern, standard, ADR, component, or service) together with its
// governance metadata and directed relationships to other assets.
// Stored in the engine_assets table, one row per asset.
type ArchitectureAsset struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	AssetType   string `json:"asset_type"`
	Domain      string `json:"domain"`
	Layer       string `json:"layer"`
	Status      string `json:"status"`
	Version     string `json:"version,omitempty"`

	Owner        string     `json:"owner,omitempty"`
	Steward      string     `json:"steward,omitempty"`
	ApprovedBy   []string   `json:"approved_by,omitempty"`
	ApprovalDate *time.Time `json:"approval_date,omitempty"`
	ReviewDate   *time.Time `json:"review_date,omitempty"`

	// Relationship arrays are ordered sets of asset ids. UsedBy mirrors
	// the DependsOn edges pointing at this asset.
	DependsOn  []string `json:"depends_on,omitempty"`
	RelatedTo  []string `json:"related_to,omitempty"`
	Implements []string `json:"implements,omitempty"`
	UsedBy     []string `json:"used_by,omitempty"`

	Tags             map[string]string `json:"tags,omitempty"`
	DocumentationURL string            `json:"documentation_url,omitempty"`
	SourceRepository string            `json:"source_repository,omitempty"`

	UsageCount  int        `json:"usage_count"`
	LastUsed    *time.Time `json:"last_used,omitempty"`
	HealthScore int        `json:"health_score"`

	// AssetData is an opaque payload carried through the catalog
	// without interpretation.
	AssetData json.RawMessage `json:"asset_data,omitempty"`

	// RecordVersion guards writes against concurrent clobbering.
	// Bumped by the repository on every successful update.
	RecordVersion int64 `json:"record_version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidAssetType reports whether t is a recognized asset type.
func ValidAssetType(t string) bool { return validAssetTypes[t] }

// ValidDomain reports whether d is a recognized architecture domain.
func ValidDomain(d string) bool { return validDomains[d] }

// ValidLayer reports whether l is a recognized architecture layer.
func ValidLayer(l string) bool { return validLayers[l] }

// ValidStatus reports whether s is a recognized lifecycle status.
func ValidStatus(s string) bool { _, ok := statusRank[s]; return ok }

// ValidRelation reports whether r is a recognized relation kind.
func ValidRelation(r string) bool { return validRelations[r] }

// CanTransition reports whether the lifecycle allows moving from one
// status to another. Staying put is always allowed.
func CanTransition(from, to string) bool {
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	if from == to {
		return true
	}
	if from == StatusRetired {
		return false
	}
	// deprecated may only advance to retired; every earlier status may
	// skip ahead, but never move backward.
	return toRank > fromRank
}

// Validate checks enum membership and relationship hygiene for a fully
// populated asset. It returns an error wrapping apperrors.ErrValidation
// describing the first violation found.
func (a *ArchitectureAsset) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("%w: id is required", apperrors.ErrValidation)
	}
	if a.Name == "" {
		return fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}
	if !ValidAssetType(a.AssetType) {
		return fmt.Errorf("%w: unknown asset_type %q", apperrors.ErrValidation, a.AssetType)
	}
	if !ValidDomain(a.Domain) {
		return fmt.Errorf("%w: unknown domain %q", apperrors.ErrValidation, a.Domain)
	}
	if !ValidLayer(a.Layer) {
		return fmt.Errorf("%w: unknown layer %q", apperrors.ErrValidation, a.Layer)
	}
	if !ValidStatus(a.Status) {
		return fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, a.Status)
	}
	if a.UsageCount < 0 {
		return fmt.Errorf("%w: usage_count must not be negative", apperrors.ErrValidation)
	}

	for relation, ids := range map[string][]string{
		RelationDependsOn:  a.DependsOn,
		RelationRelatedTo:  a.RelatedTo,
		RelationImplements: a.Implements,
		RelationUsedBy:     a.UsedBy,
	} {
		if err := validateRelationSet(a.ID, relation, ids); err != nil {
			return err
		}
	}
	return nil
}

// validateRelationSet rejects self-references and duplicate entries in
// a relationship array.
func validateRelationSet(ownID, relation string, ids []string) error {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == ownID {
			return fmt.Errorf("%w: %s contains the asset's own id", apperrors.ErrValidation, relation)
		}
		if seen[id] {
			return fmt.Errorf("%w: %s contains duplicate entry %q", apperrors.ErrValidation, relation, id)
		}
		seen[id] = true
	}
	return nil
}

// RelationSet returns the relationship array for the named relation
// kind. Unknown kinds return nil.
func (a *ArchitectureAsset) RelationSet(relation string) []string {
	switch relation {
	case RelationDependsOn:
		return a.DependsOn
	case RelationRelatedTo:
		return a.RelatedTo
	case RelationImplements:
		return a.Implements
	case RelationUsedBy:
		return a.UsedBy
	}
	return nil
}

// SetRelationSet replaces the relationship array for the named relation
// kind. Unknown kinds are ignored.
func (a *ArchitectureAsset) SetRelationSet(relation string, ids []string) {
	switch relation {
	case RelationDependsOn:
		a.DependsOn = ids
	case RelationRelatedTo:
		a.RelatedTo = ids
	case RelationImplements:
		a.Implements = ids
	case RelationUsedBy:
		a.UsedBy = ids
	}
}

// InverseRelation returns the derived inverse of a relation kind, or
// empty when the kind has no maintained inverse.
func InverseRelation(relation string) string {
	switch relation {
	case RelationDependsOn:
		return RelationUsedBy
	case RelationUsedBy:
		return RelationDependsOn
	}
	return ""
}
