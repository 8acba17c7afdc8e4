// Package azsearch is a minimal REST client to Azure AI Search
// implementing the IndexStore contract: batched upserts keyed by chunk
// ID, hybrid (lexical + vector) search, source facets and deletes.
package azsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"docq/internal/domain"
)

var _ domain.IndexStore = (*Store)(nil)

// DefaultAPIVersion is the Azure AI Search REST API version.
const DefaultAPIVersion = "2023-11-01"

// deleteBatchSize bounds one documents-index action payload.
const deleteBatchSize = 100

// scanPageSize is how many documents one scan request fetches.
const scanPageSize = 1000

// Config contains connection details for an Azure AI Search index.
type Config struct {
	Endpoint   string
	APIKey     string
	Index      string
	APIVersion string
	Timeout    time.Duration
}

// Store talks to one search index. Fusion of lexical and vector scores
// happens service-side; this client never re-ranks.
type Store struct {
	endpoint   string
	apiKey     string
	index      string
	apiVersion string
	client     *http.Client
}

func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &Store{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		index:      cfg.Index,
		apiVersion: apiVersion,
		client:     &http.Client{Timeout: timeout},
	}
}

// document is the wire shape of one indexed chunk.
type document struct {
	Action     string    `json:"@search.action,omitempty"`
	ID         string    `json:"id"`
	Content    string    `json:"content,omitempty"`
	Vector     []float64 `json:"content_vector,omitempty"`
	Source     string    `json:"source,omitempty"`
	Page       int       `json:"page,omitempty"`
	IngestedAt string    `json:"ingested_at,omitempty"`
}

type vectorQuery struct {
	Kind   string    `json:"kind"`
	Vector []float64 `json:"vector"`
	K      int       `json:"k"`
	Fields string    `json:"fields"`
}

type searchRequest struct {
	Search        string        `json:"search,omitempty"`
	VectorQueries []vectorQuery `json:"vectorQueries,omitempty"`
	Filter        string        `json:"filter,omitempty"`
	Select        string        `json:"select,omitempty"`
	Facets        []string      `json:"facets,omitempty"`
	Top           *int          `json:"top,omitempty"`
	Skip          *int          `json:"skip,omitempty"`
	Count         bool          `json:"count,omitempty"`
}

type searchResponse struct {
	Count  *int                     `json:"@odata.count,omitempty"`
	Facets map[string][]facetBucket `json:"@search.facets,omitempty"`
	Value  []searchHit              `json:"value"`
}

type searchHit struct {
	Score   float64 `json:"@search.score"`
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Page    int     `json:"page"`
}

type facetBucket struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Exists reports whether the index has been provisioned.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	status, err := s.do(ctx, http.MethodGet, s.indexURL(), nil, nil)
	if err != nil {
		return false, err
	}
	switch {
	case status == http.StatusNotFound:
		return false, nil
	case status >= 300:
		return false, fmt.Errorf("azsearch: get index: status %d", status)
	}
	return true, nil
}

// EnsureIndex creates the index with the expected schema when it does
// not exist yet. An already-provisioned index is left untouched.
func (s *Store) EnsureIndex(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("azsearch: invalid vector dimension")
	}
	exists, err := s.Exists(ctx)
	if err != nil || exists {
		return err
	}
	schema := indexSchema(s.index, dimension)
	status, err := s.do(ctx, http.MethodPut, s.indexURL(), schema, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("azsearch: create index: status %d", status)
	}
	return nil
}

// UpsertBatch uploads one batch with mergeOrUpload actions. Identical
// chunk IDs overwrite in place, which is what makes re-ingestion safe.
func (s *Store) UpsertBatch(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]document, len(chunks))
	for i, ch := range chunks {
		docs[i] = document{
			Action:     "mergeOrUpload",
			ID:         ch.ID,
			Content:    ch.Content,
			Vector:     ch.Vector,
			Source:     ch.Source,
			Page:       ch.Page,
			IngestedAt: ch.IngestedAt.UTC().Format(time.RFC3339),
		}
	}
	return s.postActions(ctx, docs)
}

// Search runs one hybrid query. Lexical matching uses q.Text, vector
// matching uses q.Vector; either half may be absent. Empty results are
// a normal outcome, not an error.
func (s *Store) Search(ctx context.Context, q domain.Query) ([]domain.RetrievalResult, error) {
	topK := q.TopK
	if topK <= 0 {
		topK = 5
	}
	req := searchRequest{
		Search: q.Text,
		Select: "content,page,source",
		Top:    &topK,
	}
	if len(q.Vector) > 0 {
		req.VectorQueries = []vectorQuery{{
			Kind:   "vector",
			Vector: q.Vector,
			K:      topK,
			Fields: "content_vector",
		}}
	}
	if q.Source != "" {
		req.Filter = sourceFilter(q.Source)
	}
	var resp searchResponse
	if err := s.search(ctx, req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.RetrievalResult, 0, len(resp.Value))
	for _, hit := range resp.Value {
		results = append(results, domain.RetrievalResult{
			Content: hit.Content,
			Source:  hit.Source,
			Page:    hit.Page,
			Score:   hit.Score,
		})
	}
	return results, nil
}

// Count returns the number of indexed chunks. An absent index counts as
// zero rather than failing.
func (s *Store) Count(ctx context.Context) (int, error) {
	exists, err := s.Exists(ctx)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}
	zero := 0
	req := searchRequest{Search: "*", Top: &zero, Count: true}
	var resp searchResponse
	if err := s.search(ctx, req, &resp); err != nil {
		return 0, err
	}
	if resp.Count == nil {
		return 0, nil
	}
	return *resp.Count, nil
}

// FacetBySource enumerates indexed documents without scanning chunks.
func (s *Store) FacetBySource(ctx context.Context) ([]domain.SourceCount, error) {
	zero := 0
	req := searchRequest{
		Search: "*",
		Facets: []string{"source,count:1000"},
		Top:    &zero,
	}
	var resp searchResponse
	if err := s.search(ctx, req, &resp); err != nil {
		return nil, err
	}
	buckets := resp.Facets["source"]
	out := make([]domain.SourceCount, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, domain.SourceCount{Source: b.Value, Chunks: b.Count})
	}
	return out, nil
}

// HasSource reports whether any chunk of the given source is indexed.
func (s *Store) HasSource(ctx context.Context, source string) (bool, error) {
	one := 1
	req := searchRequest{
		Filter: sourceFilter(source),
		Select: "id",
		Top:    &one,
	}
	var resp searchResponse
	if err := s.search(ctx, req, &resp); err != nil {
		return false, err
	}
	return len(resp.Value) > 0, nil
}

// DeleteBySource removes every chunk of one document and reports how
// many went away. A source that was never indexed deletes zero chunks.
func (s *Store) DeleteBySource(ctx context.Context, source string) (int, error) {
	return s.deleteMatching(ctx, sourceFilter(source))
}

// DeleteAll clears the whole index, reporting the number of chunks removed.
func (s *Store) DeleteAll(ctx context.Context) (int, error) {
	return s.deleteMatching(ctx, "")
}

// deleteMatching collects the full id set first, then deletes it in
// batches. Interleaving searches with deletes would revisit documents
// the service has not purged from query results yet and over-count.
func (s *Store) deleteMatching(ctx context.Context, filter string) (int, error) {
	ids, err := s.collectIDs(ctx, filter)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for start := 0; start < len(ids); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := make([]document, 0, end-start)
		for _, id := range ids[start:end] {
			batch = append(batch, document{Action: "delete", ID: id})
		}
		if err := s.postActions(ctx, batch); err != nil {
			return deleted, err
		}
		deleted += len(batch)
	}
	return deleted, nil
}

// collectIDs pages through every document id matching the filter.
func (s *Store) collectIDs(ctx context.Context, filter string) ([]string, error) {
	page := scanPageSize
	seen := make(map[string]struct{})
	var ids []string
	for skip := 0; ; skip += page {
		offset := skip
		req := searchRequest{Search: "*", Filter: filter, Select: "id", Top: &page, Skip: &offset}
		var resp searchResponse
		if err := s.search(ctx, req, &resp); err != nil {
			return nil, err
		}
		for _, hit := range resp.Value {
			if _, ok := seen[hit.ID]; ok {
				continue
			}
			seen[hit.ID] = struct{}{}
			ids = append(ids, hit.ID)
		}
		if len(resp.Value) < page {
			return ids, nil
		}
	}
}

// ListAll pages through every indexed chunk with its content. Meant
// for administrative scans, not retrieval.
func (s *Store) ListAll(ctx context.Context) ([]domain.ChunkRef, error) {
	page := scanPageSize
	var out []domain.ChunkRef
	for skip := 0; ; skip += page {
		offset := skip
		req := searchRequest{Search: "*", Select: "id,content,source,page", Top: &page, Skip: &offset}
		var resp searchResponse
		if err := s.search(ctx, req, &resp); err != nil {
			return nil, err
		}
		for _, hit := range resp.Value {
			out = append(out, domain.ChunkRef{
				ID:      hit.ID,
				Content: hit.Content,
				Source:  hit.Source,
				Page:    hit.Page,
			})
		}
		if len(resp.Value) < page {
			return out, nil
		}
	}
}

func (s *Store) postActions(ctx context.Context, docs []document) error {
	body := map[string]any{"value": docs}
	var resp struct {
		Value []struct {
			Key          string `json:"key"`
			Status       bool   `json:"status"`
			ErrorMessage string `json:"errorMessage"`
		} `json:"value"`
	}
	status, err := s.do(ctx, http.MethodPost, s.docsURL("index"), body, &resp)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("azsearch: index actions: status %d", status)
	}
	for _, r := range resp.Value {
		if !r.Status {
			return fmt.Errorf("azsearch: action failed for key %s: %s", r.Key, r.ErrorMessage)
		}
	}
	return nil
}

// search posts one query. A NotFound index reads as empty: counting,
// faceting, scanning or deleting against an index that was never
// provisioned are all zero-effect outcomes.
func (s *Store) search(ctx context.Context, req searchRequest, out *searchResponse) error {
	status, err := s.do(ctx, http.MethodPost, s.docsURL("search"), req, out)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		*out = searchResponse{}
		return nil
	}
	if status >= 300 {
		return fmt.Errorf("azsearch: search: status %d", status)
	}
	return nil
}

func (s *Store) indexURL() string {
	return fmt.Sprintf("%s/indexes/%s?api-version=%s", s.endpoint, s.index, s.apiVersion)
}

func (s *Store) docsURL(op string) string {
	return fmt.Sprintf("%s/indexes/%s/docs/%s?api-version=%s", s.endpoint, s.index, op, s.apiVersion)
}

// do sends one request with the api-key header and decodes the response
// into out when provided. The HTTP status is returned for the caller to
// interpret; transport errors are the only errors raised here.
func (s *Store) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", s.apiKey)
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("azsearch: decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// sourceFilter builds an OData equality filter, doubling single quotes
// so file names containing them cannot break out of the literal.
func sourceFilter(source string) string {
	return fmt.Sprintf("source eq '%s'", strings.ReplaceAll(source, "'", "''"))
}

// indexSchema is the index definition: chunk ID as key, lexical content,
// a cosine HNSW vector profile, and filterable source/page/ingested_at.
func indexSchema(name string, dimension int) map[string]any {
	return map[string]any{
		"name": name,
		"fields": []map[string]any{
			{"name": "id", "type": "Edm.String", "key": true, "filterable": true},
			{"name": "content", "type": "Edm.String", "searchable": true},
			{
				"name":                "content_vector",
				"type":                "Collection(Edm.Single)",
				"searchable":          true,
				"dimensions":          dimension,
				"vectorSearchProfile": "vector-profile",
			},
			{"name": "source", "type": "Edm.String", "filterable": true, "facetable": true},
			{"name": "page", "type": "Edm.Int32", "filterable": true},
			{"name": "ingested_at", "type": "Edm.DateTimeOffset", "filterable": true, "sortable": true},
		},
		"vectorSearch": map[string]any{
			"algorithms": []map[string]any{
				{
					"name": "hnsw-algo",
					"kind": "hnsw",
					"hnswParameters": map[string]any{
						"m":              4,
						"efConstruction": 400,
						"efSearch":       500,
						"metric":         "cosine",
					},
				},
			},
			"profiles": []map[string]any{
				{"name": "vector-profile", "algorithm": "hnsw-algo"},
			},
		},
	}
}
