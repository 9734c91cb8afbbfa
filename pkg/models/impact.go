package models

// Change type values for impact analysis. The set is open ended; only
// ChangeTypeBreaking carries special policy weight, anything else is
// treated like a non-breaking change.
const (
	ChangeTypeBreaking      = "breaking"
	ChangeTypeNonBreaking   = "non-breaking"
	ChangeTypeInformational = "informational"
)

// Risk level values, in increasing severity.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// ImpactAnalysis is the result of analyzing a proposed change to an
// asset: which dependents are affected, how severely, and what the
// governance policy recommends.
type ImpactAnalysis struct {
	AssetID            string   `json:"asset_id"`
	ChangeType         string   `json:"change_type"`
	Affected           []string `json:"affected"`
	DirectlyAffected   []string `json:"directly_affected"`
	IndirectlyAffected []string `json:"indirectly_affected"`
	RiskLevel          string   `json:"risk_level"`
	Recommendations    []string `json:"recommendations"`
}
