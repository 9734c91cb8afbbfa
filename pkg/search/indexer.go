package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/archgov-inc/archgov-engine/pkg/config"
	"github.com/archgov-inc/archgov-engine/pkg/models"
)

// Indexer receives the full asset record after a successful write so an
// external search index can stay current. No delivery guarantee is
// promised to callers.
type Indexer interface {
	Index(ctx context.Context, asset *models.ArchitectureAsset) error
}

// httpIndexer posts asset records to a search indexer endpoint.
type httpIndexer struct {
	endpoint string
	client   *http.Client
}

// NewHTTPIndexer creates an Indexer that POSTs asset records to the
// configured endpoint. Returns nil if no endpoint is configured;
// callers treat a nil Indexer as indexing disabled.
func NewHTTPIndexer(cfg *config.SearchConfig) Indexer {
	if cfg.IndexerURL == "" {
		return nil
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &httpIndexer{
		endpoint: cfg.IndexerURL,
		client:   &http.Client{Timeout: timeout},
	}
}

func (i *httpIndexer) Index(ctx context.Context, asset *models.ArchitectureAsset) error {
	body, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("failed to marshal asset for indexing: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build index request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("index request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("indexer returned HTTP %d", resp.StatusCode)
	}
	return nil
}
