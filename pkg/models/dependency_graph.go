package models

// GraphNode is a single asset reached during a dependency traversal,
// annotated with the hop count from the root.
type GraphNode struct {
	AssetID string `json:"asset_id"`
	Name    string `json:"name,omitempty"`
	Depth   int    `json:"depth"`
}

// DependencyGraph is the bounded neighborhood of one asset: what it
// depends on (forward over depends_on) and what depends on it (forward
// over used_by), each to at most MaxDepth hops.
type DependencyGraph struct {
	AssetID      string      `json:"asset_id"`
	MaxDepth     int         `json:"max_depth"`
	Dependencies []GraphNode `json:"dependencies"`
	Dependents   []GraphNode `json:"dependents"`
}
