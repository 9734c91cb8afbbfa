package models

// PortfolioHealth is the catalog-wide governance rollup produced by a
// full read-only scan. An empty catalog yields zeroed counts and empty
// collections, never an error.
type PortfolioHealth struct {
	TotalAssets     int            `json:"total_assets"`
	ByStatus        map[string]int `json:"by_status"`
	ByDomain        map[string]int `json:"by_domain"`
	DeprecatedCount int            `json:"deprecated_count"`
	AvgHealthScore  float64        `json:"avg_health_score"`
	Underutilized   []string       `json:"underutilized"`
	NeedsReview     []string       `json:"needs_review"`
}
