// Package searchstore talks to an Elasticsearch-compatible search engine over
// HTTP. It owns the two per-deployment indices (<prefix>_chunks and
// <prefix>_sections), the bulk write protocol, and the query shapes used by
// the search API.
package searchstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client communicates with the search engine HTTP API.
type Client struct {
	baseURL    string
	prefix     string
	httpClient *http.Client
}

func NewClient(baseURL, indexPrefix string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		prefix:  indexPrefix,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ChunksIndex returns the name of the chunk-level index.
func (c *Client) ChunksIndex() string { return c.prefix + "_chunks" }

// SectionsIndex returns the name of the section-level index.
func (c *Client) SectionsIndex() string { return c.prefix + "_sections" }

// Ping checks that the engine is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RetryableError{Op: "ping", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping: status %d", resp.StatusCode)
	}
	return nil
}

// EnsureIndices drops and recreates both indices with their mappings.
// Existing data in them is lost.
func (c *Client) EnsureIndices(ctx context.Context) error {
	for _, ix := range []struct {
		name    string
		mapping string
	}{
		{c.ChunksIndex(), chunksMapping},
		{c.SectionsIndex(), sectionsMapping},
	} {
		if err := c.recreateIndex(ctx, ix.name, ix.mapping); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) recreateIndex(ctx context.Context, name, mapping string) error {
	del, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/"+name, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(del)
	if err != nil {
		return &RetryableError{Op: "delete index " + name, Err: err}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	// 404 just means the index did not exist yet.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete index %s: status %d", name, resp.StatusCode)
	}

	put, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/"+name, strings.NewReader(mapping))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	put.Header.Set("Content-Type", "application/json")
	resp, err = c.httpClient.Do(put)
	if err != nil {
		return &RetryableError{Op: "create index " + name, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("create index %s: status %d: %s", name, resp.StatusCode, string(respBody))
	}
	return nil
}

// BulkDoc is one document in a bulk upsert, addressed by its global id.
type BulkDoc struct {
	ID   string
	Body any
}

// FailedItem reports one document the engine rejected during a bulk write.
type FailedItem struct {
	ID     string `json:"id"`
	Status int    `json:"status"`
	Reason string `json:"reason"`
}

// Retryable reports whether the rejection is transient.
func (f FailedItem) Retryable() bool { return retryableStatus(f.Status) }

// BulkResult summarizes one bulk request. Failed carries the per-item
// rejections so the caller can retry or report them individually.
type BulkResult struct {
	Succeeded int
	Failed    []FailedItem
}

// BulkUpsert writes docs to index in one NDJSON bulk request. A non-nil
// error means the whole request failed; per-item rejections come back in
// the result instead.
func (c *Client) BulkUpsert(ctx context.Context, index string, docs []BulkDoc) (*BulkResult, error) {
	if len(docs) == 0 {
		return &BulkResult{}, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, d := range docs {
		action := map[string]map[string]string{
			"index": {"_index": index, "_id": d.ID},
		}
		if err := enc.Encode(action); err != nil {
			return nil, fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(d.Body); err != nil {
			return nil, fmt.Errorf("encode bulk doc %s: %w", d.ID, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/_bulk", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RetryableError{Op: "bulk upsert", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("bulk upsert: status %d: %s", resp.StatusCode, string(respBody))
		if retryableStatus(resp.StatusCode) {
			return nil, &RetryableError{Op: "bulk upsert", Status: resp.StatusCode, Err: err}
		}
		return nil, err
	}

	var body struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode bulk response: %w", err)
	}

	res := &BulkResult{}
	for _, item := range body.Items {
		for _, op := range item {
			if op.Error != nil || op.Status >= 400 {
				reason := ""
				if op.Error != nil {
					reason = op.Error.Reason
				}
				res.Failed = append(res.Failed, FailedItem{ID: op.ID, Status: op.Status, Reason: reason})
			} else {
				res.Succeeded++
			}
		}
	}
	return res, nil
}

// UpsertOne writes a single document, used by the per-item retry path.
func (c *Client) UpsertOne(ctx context.Context, index, id string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal doc %s: %w", id, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+"/"+index+"/_doc/"+url.PathEscape(id), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RetryableError{Op: "upsert " + id, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("upsert %s: status %d: %s", id, resp.StatusCode, string(respBody))
		if retryableStatus(resp.StatusCode) {
			return &RetryableError{Op: "upsert " + id, Status: resp.StatusCode, Err: err}
		}
		return err
	}
	return nil
}

// GetByGlobalID fetches one document by its global id. Returns nil when the
// document does not exist.
func (c *Client) GetByGlobalID(ctx context.Context, index, id string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/"+index+"/_doc/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RetryableError{Op: "get " + id, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("get %s: status %d: %s", id, resp.StatusCode, string(respBody))
	}

	var body struct {
		Source json.RawMessage `json:"_source"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode doc %s: %w", id, err)
	}
	return body.Source, nil
}

// DeleteByDocID removes every record of one document from index. Returns
// the number of records deleted.
func (c *Client) DeleteByDocID(ctx context.Context, index, docID string) (int, error) {
	query := map[string]any{
		"query": map[string]any{
			"term": map[string]any{"doc_id": docID},
		},
	}
	payload, err := json.Marshal(query)
	if err != nil {
		return 0, fmt.Errorf("marshal delete query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+index+"/_delete_by_query", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &RetryableError{Op: "delete by doc_id", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("delete by doc_id %s: status %d: %s", docID, resp.StatusCode, string(respBody))
	}

	var body struct {
		Deleted int `json:"deleted"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode delete response: %w", err)
	}
	return body.Deleted, nil
}

// SearchRequest narrows a full-text query. Zero-valued filters are omitted.
type SearchRequest struct {
	Query      string
	DocID      string // exact doc filter
	PathPrefix string // structural subtree filter, e.g. "002.003"
	Size       int
	From       int
}

// Hit is one search result with its relevance score and highlighted
// fragments keyed by field name.
type Hit struct {
	GlobalID   string              `json:"global_id"`
	Score      float64             `json:"score"`
	Source     json.RawMessage     `json:"source"`
	Highlights map[string][]string `json:"highlights,omitempty"`
}

// SearchResult is one page of hits plus the engine's total match count.
type SearchResult struct {
	Total int   `json:"total"`
	Hits  []Hit `json:"hits"`
}

// SearchChunks runs a full-text query against the chunk index with content
// highlighting.
func (c *Client) SearchChunks(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	body := searchBody(req, map[string]any{
		"match": map[string]any{"content": req.Query},
	}, []string{"content"})
	return c.search(ctx, c.ChunksIndex(), body)
}

// SearchSections runs a full-text query against the section index. Heading
// matches are boosted over body matches.
func (c *Client) SearchSections(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	body := searchBody(req, map[string]any{
		"multi_match": map[string]any{
			"query":  req.Query,
			"fields": []string{"heading^2.0", "content"},
		},
	}, []string{"heading", "content"})
	return c.search(ctx, c.SectionsIndex(), body)
}

func searchBody(req SearchRequest, match map[string]any, highlightFields []string) map[string]any {
	boolQuery := map[string]any{
		"must": []any{match},
	}
	var filters []any
	if req.DocID != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{"doc_id": req.DocID},
		})
	}
	if req.PathPrefix != "" {
		filters = append(filters, map[string]any{
			"prefix": map[string]any{"path": req.PathPrefix},
		})
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	fields := make(map[string]any, len(highlightFields))
	for _, f := range highlightFields {
		fields[f] = map[string]any{}
	}

	size := req.Size
	if size <= 0 {
		size = 10
	}
	return map[string]any{
		"query":     map[string]any{"bool": boolQuery},
		"highlight": map[string]any{"fields": fields},
		"size":      size,
		"from":      req.From,
	}
}

func (c *Client) search(ctx context.Context, index string, body map[string]any) (*SearchResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+index+"/_search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RetryableError{Op: "search " + index, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("search %s: status %d: %s", index, resp.StatusCode, string(respBody))
		if retryableStatus(resp.StatusCode) {
			return nil, &RetryableError{Op: "search " + index, Status: resp.StatusCode, Err: err}
		}
		return nil, err
	}

	var raw struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID        string              `json:"_id"`
				Score     float64             `json:"_score"`
				Source    json.RawMessage     `json:"_source"`
				Highlight map[string][]string `json:"highlight"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	res := &SearchResult{Total: raw.Hits.Total.Value}
	for _, h := range raw.Hits.Hits {
		res.Hits = append(res.Hits, Hit{
			GlobalID:   h.ID,
			Score:      h.Score,
			Source:     h.Source,
			Highlights: h.Highlight,
		})
	}
	return res, nil
}

// Close releases any resources (currently a no-op).
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
