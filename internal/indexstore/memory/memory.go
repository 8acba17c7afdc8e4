// Package memory is an in-memory IndexStore used by tests and offline
// runs. Hybrid scoring is brute force: cosine similarity on vectors plus
// token-overlap (Ochiai) on content, summed.
package memory

import (
	"context"
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"docq/internal/domain"
)

var _ domain.IndexStore = (*Store)(nil)

type Store struct {
	mu        sync.RWMutex
	dimension int
	chunks    map[string]domain.Chunk
	order     []string // insertion order, for stable iteration
}

func NewStore() *Store {
	return &Store{chunks: make(map[string]domain.Chunk)}
}

func (s *Store) EnsureIndex(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("memory: invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	return nil
}

// UpsertBatch overwrites by chunk ID, so identical IDs never duplicate.
func (s *Store) UpsertBatch(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range chunks {
		if s.dimension > 0 && len(ch.Vector) > 0 && len(ch.Vector) != s.dimension {
			return errors.New("memory: vector dimension mismatch")
		}
		if _, ok := s.chunks[ch.ID]; !ok {
			s.order = append(s.order, ch.ID)
		}
		s.chunks[ch.ID] = ch
	}
	return nil
}

func (s *Store) DeleteBySource(_ context.Context, source string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	kept := s.order[:0]
	for _, id := range s.order {
		if s.chunks[id].Source == source {
			delete(s.chunks, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return deleted, nil
}

func (s *Store) DeleteAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := len(s.chunks)
	s.chunks = make(map[string]domain.Chunk)
	s.order = nil
	return deleted, nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

func (s *Store) FacetBySource(_ context.Context) ([]domain.SourceCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[string]int{}
	var sources []string
	for _, id := range s.order {
		src := s.chunks[id].Source
		if _, ok := counts[src]; !ok {
			sources = append(sources, src)
		}
		counts[src]++
	}
	sort.Strings(sources)
	out := make([]domain.SourceCount, 0, len(sources))
	for _, src := range sources {
		out = append(out, domain.SourceCount{Source: src, Chunks: counts[src]})
	}
	return out, nil
}

func (s *Store) HasSource(_ context.Context, source string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.chunks {
		if ch.Source == source {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListAll(_ context.Context) ([]domain.ChunkRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ChunkRef, 0, len(s.order))
	for _, id := range s.order {
		ch := s.chunks[id]
		out = append(out, domain.ChunkRef{ID: ch.ID, Content: ch.Content, Source: ch.Source, Page: ch.Page})
	}
	return out, nil
}

func (s *Store) Search(_ context.Context, q domain.Query) ([]domain.RetrievalResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	topK := q.TopK
	if topK <= 0 {
		topK = 5
	}
	qset := toTokenSet(q.Text)
	type scored struct {
		id    string
		score float64
	}
	var candidates []scored
	for _, id := range s.order {
		ch := s.chunks[id]
		if q.Source != "" && ch.Source != q.Source {
			continue
		}
		score := 0.0
		if len(q.Vector) > 0 && len(ch.Vector) > 0 {
			score += cosine(q.Vector, ch.Vector)
		}
		if len(qset) > 0 {
			score += overlapOchiai(qset, ch.Content)
		}
		candidates = append(candidates, scored{id, score})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if topK > len(candidates) {
		topK = len(candidates)
	}
	results := make([]domain.RetrievalResult, 0, topK)
	for _, c := range candidates[:topK] {
		ch := s.chunks[c.id]
		results = append(results, domain.RetrievalResult{
			Content: ch.Content,
			Source:  ch.Source,
			Page:    ch.Page,
			Score:   c.score,
		})
	}
	return results, nil
}

var unicodeWordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// overlapOchiai scores token overlap: |A∩B| / sqrt(|A|·|B|).
func overlapOchiai(qset map[string]struct{}, text string) float64 {
	toks := unicodeWordRe.FindAllString(strings.ToLower(text), -1)
	seen := make(map[string]struct{}, len(toks))
	inter := 0
	for _, t := range toks {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	if len(qset) == 0 || len(seen) == 0 {
		return 0
	}
	return float64(inter) / math.Sqrt(float64(len(qset))*float64(len(seen)))
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
