package azsearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docq/internal/domain"
)

func newTestStore(t *testing.T, handler http.HandlerFunc) *Store {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewStore(Config{Endpoint: srv.URL, APIKey: "search-key", Index: "docs"})
}

func TestEnsureIndexCreatesWhenMissing(t *testing.T) {
	var created map[string]any
	st := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "search-key", r.Header.Get("api-key"))
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			w.WriteHeader(http.StatusCreated)
		}
	})

	require.NoError(t, st.EnsureIndex(context.Background(), 1536))
	require.NotNil(t, created)
	assert.Equal(t, "docs", created["name"])
	fields := created["fields"].([]any)
	assert.Len(t, fields, 6)
}

func TestEnsureIndexNoopWhenPresent(t *testing.T) {
	puts := 0
	st := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			puts++
		}
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, st.EnsureIndex(context.Background(), 1536))
	assert.Zero(t, puts)
}

func TestUpsertBatch(t *testing.T) {
	var body struct {
		Value []map[string]any `json:"value"`
	}
	st := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/indexes/docs/docs/index", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{{"key": "c1", "status": true}},
		})
	})

	chunk := domain.Chunk{
		ID:         "c1",
		Content:    "some text",
		Source:     "a.pdf",
		Page:       2,
		Vector:     []float64{0.1, 0.2},
		IngestedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, st.UpsertBatch(context.Background(), []domain.Chunk{chunk}))
	require.Len(t, body.Value, 1)
	assert.Equal(t, "mergeOrUpload", body.Value[0]["@search.action"])
	assert.Equal(t, "c1", body.Value[0]["id"])
	assert.Equal(t, "2026-03-01T12:00:00Z", body.Value[0]["ingested_at"])
}

func TestUpsertBatchReportsActionFailure(t *testing.T) {
	st := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMultiStatus)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{
				{"key": "c1", "status": true},
				{"key": "c2", "status": false, "errorMessage": "quota"},
			},
		})
	})

	err := st.UpsertBatch(context.Background(), []domain.Chunk{{ID: "c1"}, {ID: "c2"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "c2")
}

func TestSearchHybrid(t *testing.T) {
	var req searchRequest
	st := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/indexes/docs/docs/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{
				{"@search.score": 2.5, "content": "passage", "source": "a.pdf", "page": 3},
			},
		})
	})

	results, err := st.Search(context.Background(), domain.Query{
		Text:   "what is X",
		Vector: []float64{0.5, 0.5},
		Source: "a.pdf",
		TopK:   5,
	})
	require.NoError(t, err)

	assert.Equal(t, "what is X", req.Search)
	require.Len(t, req.VectorQueries, 1)
	assert.Equal(t, "vector", req.VectorQueries[0].Kind)
	assert.Equal(t, "content_vector", req.VectorQueries[0].Fields)
	assert.Equal(t, 5, req.VectorQueries[0].K)
	assert.Equal(t, "source eq 'a.pdf'", req.Filter)
	assert.Equal(t, "content,page,source", req.Select)

	require.Len(t, results, 1)
	assert.Equal(t, domain.RetrievalResult{Content: "passage", Source: "a.pdf", Page: 3, Score: 2.5}, results[0])
}

func TestSearchEmptyIsNotError(t *testing.T) {
	st := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"value": []any{}})
	})

	results, err := st.Search(context.Background(), domain.Query{Text: "anything", TopK: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCountAbsentIndexIsZero(t *testing.T) {
	st := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	n, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCount(t *testing.T) {
	st := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusOK)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"@odata.count": 42, "value": []any{}})
	})

	n, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestFacetBySource(t *testing.T) {
	st := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"source,count:1000"}, req.Facets)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"@search.facets": map[string]any{
				"source": []map[string]any{
					{"value": "a.pdf", "count": 12},
					{"value": "b.pdf", "count": 7},
				},
			},
			"value": []any{},
		})
	})

	facets, err := st.FacetBySource(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.SourceCount{{Source: "a.pdf", Chunks: 12}, {Source: "b.pdf", Chunks: 7}}, facets)
}

func TestDeleteBySource(t *testing.T) {
	searches := 0
	var deleted []string
	st := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/indexes/docs/docs/search":
			searches++
			var req searchRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "source eq 'o''brien.pdf'", req.Filter)
			if searches == 1 {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"value": []map[string]any{{"id": "c1"}, {"id": "c2"}},
				})
			} else {
				_ = json.NewEncoder(w).Encode(map[string]any{"value": []any{}})
			}
		case "/indexes/docs/docs/index":
			var body struct {
				Value []document `json:"value"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			for _, d := range body.Value {
				assert.Equal(t, "delete", d.Action)
				deleted = append(deleted, d.ID)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"value": []any{}})
		}
	})

	n, err := st.DeleteBySource(context.Background(), "o'brien.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"c1", "c2"}, deleted)
}

func TestDeleteBySourceCollectsIDsBeforeDeleting(t *testing.T) {
	// The service keeps serving just-deleted documents until its replica
	// catches up. The id set must be fixed before any delete goes out,
	// or the count inflates and the loop spins.
	searches := 0
	deletes := 0
	var deleted []string
	st := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/indexes/docs/docs/search":
			searches++
			_ = json.NewEncoder(w).Encode(map[string]any{
				"value": []map[string]any{{"id": "c1"}, {"id": "c2"}},
			})
		case "/indexes/docs/docs/index":
			deletes++
			var body struct {
				Value []document `json:"value"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			for _, d := range body.Value {
				deleted = append(deleted, d.ID)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"value": []any{}})
		}
	})

	n, err := st.DeleteBySource(context.Background(), "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"c1", "c2"}, deleted)
	assert.Equal(t, 1, searches)
	assert.Equal(t, 1, deletes)
}

func TestAdminPathsOnAbsentIndex(t *testing.T) {
	// Nothing provisioned yet: every read or delete is a zero-effect
	// outcome, never a 404 error.
	st := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	ctx := context.Background()

	facets, err := st.FacetBySource(ctx)
	require.NoError(t, err)
	assert.Empty(t, facets)

	has, err := st.HasSource(ctx, "a.pdf")
	require.NoError(t, err)
	assert.False(t, has)

	n, err := st.DeleteBySource(ctx, "a.pdf")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = st.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	chunks, err := st.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestListAllPaginates(t *testing.T) {
	var skips []int
	st := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.Skip)
		skips = append(skips, *req.Skip)
		assert.Equal(t, "id,content,source,page", req.Select)

		page := make([]map[string]any, 0, scanPageSize)
		if *req.Skip == 0 {
			for i := 0; i < scanPageSize; i++ {
				page = append(page, map[string]any{"id": "c", "content": "t", "source": "a.pdf", "page": 1})
			}
		} else {
			page = append(page, map[string]any{"id": "last", "content": "t", "source": "a.pdf", "page": 2})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"value": page})
	})

	chunks, err := st.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, chunks, scanPageSize+1)
	assert.Equal(t, []int{0, scanPageSize}, skips)
	assert.Equal(t, "last", chunks[scanPageSize].ID)
}

func TestDeleteBySourceNothingToDelete(t *testing.T) {
	st := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"value": []any{}})
	})

	n, err := st.DeleteBySource(context.Background(), "ghost.pdf")
	require.NoError(t, err)
	assert.Zero(t, n)
}
