package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sdsc-ordes/debates-analytics/internal/config"
	"github.com/sdsc-ordes/debates-analytics/pkg/log"
)

// Client talks to one Solr core over its JSON API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Solr client for the configured core URL,
// e.g. http://localhost:8983/solr/debates.
func NewClient(cfg config.SolrConfig) *Client {
	return &Client{
		baseURL: cfg.URL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

// selectResponse mirrors the parts of Solr's select response we consume.
type selectResponse struct {
	Response struct {
		NumFound int        `json:"numFound"`
		Docs     []Document `json:"docs"`
	} `json:"response"`
	FacetCounts struct {
		// Solr returns each facet field as a flat [label, count, ...] list.
		FacetFields map[string][]json.RawMessage `json:"facet_fields"`
	} `json:"facet_counts"`
	Highlighting map[string]Highlight `json:"highlighting"`
}

func (c *Client) doSelect(ctx context.Context, params url.Values) (*selectResponse, error) {
	params.Set("wt", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/select?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build select request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("solr select: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read select response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("solr select returned %d: %s", resp.StatusCode, body)
	}

	var parsed selectResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode select response: %w", err)
	}
	return &parsed, nil
}

// doUpdate posts one JSON payload to the update handler with an immediate
// commit. The payload is either a document array (add) or a command object
// (delete, atomic update).
func (c *Client) doUpdate(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode update payload: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/update?commit=true",
		bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("build update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("solr update: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("solr update returned %d: %s", resp.StatusCode, respBody)
	}
	return nil
}

// Add indexes a batch of documents.
func (c *Client) Add(ctx context.Context, docs []any) error {
	if len(docs) == 0 {
		return nil
	}
	if err := c.doUpdate(ctx, docs); err != nil {
		return err
	}
	log.Info("Indexed %d documents", len(docs))
	return nil
}

// DeleteByQuery removes every document matching the query.
func (c *Client) DeleteByQuery(ctx context.Context, query string) error {
	log.Info("Deleting documents for query: %s", query)
	return c.doUpdate(ctx, map[string]any{
		"delete": map[string]string{"query": query},
	})
}

// selectIDs fetches the unique ids of all documents matching the query.
func (c *Client) selectIDs(ctx context.Context, query string) ([]string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("fl", "id")
	params.Set("rows", "10000")

	resp, err := c.doSelect(ctx, params)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.Response.Docs))
	for _, doc := range resp.Response.Docs {
		ids = append(ids, doc.ID)
	}
	return ids, nil
}
