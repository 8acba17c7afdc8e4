package chunker

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"docq/internal/domain"
)

// noiseThreshold is the minimum stripped length (in runes) a window must
// exceed to become a chunk. Shorter windows are page-break debris.
const noiseThreshold = 50

// idPrefixRunes is how much of the window participates in the chunk ID.
const idPrefixRunes = 20

// WindowChunker slides a fixed-size character window with overlap across
// each page independently, so no chunk ever crosses a page boundary.
type WindowChunker struct {
	chunkSize int
	overlap   int
}

// New validates the window geometry up front. An overlap outside
// [0, chunkSize) would either duplicate work or loop forever, so it is
// rejected before any document is touched.
func New(chunkSize, overlap int) (*WindowChunker, error) {
	if chunkSize <= 0 || overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("chunk_size=%d overlap=%d: %w", chunkSize, overlap, domain.ErrBadGeometry)
	}
	return &WindowChunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// Chunk cuts the given page texts into chunks. Pages are numbered from 1
// in the order given. Windows whose stripped length does not exceed the
// noise threshold are dropped. The result carries no vectors; embedding
// happens later.
func (c *WindowChunker) Chunk(source string, pages []string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	step := c.chunkSize - c.overlap
	for i, text := range pages {
		page := i + 1
		runes := []rune(text)
		for off := 0; off < len(runes); off += step {
			end := off + c.chunkSize
			if end > len(runes) {
				end = len(runes)
			}
			window := string(runes[off:end])
			if utf8.RuneCountInString(strings.TrimSpace(window)) <= noiseThreshold {
				continue
			}
			chunks = append(chunks, domain.Chunk{
				ID:      ChunkID(source, page, off, window),
				Content: window,
				Source:  source,
				Page:    page,
			})
		}
	}
	return chunks, nil
}

// ChunkID derives the content-addressed identifier for a window: the md5
// of (source, page, start offset, first 20 runes of the window) as a
// 32-char hex string. It is a pure function, so re-ingesting identical
// input reproduces identical IDs and upserts overwrite instead of
// duplicating. The prefix is counted in runes to keep multibyte text
// stable across encodings.
func ChunkID(source string, page, offset int, window string) string {
	prefix := window
	if r := []rune(window); len(r) > idPrefixRunes {
		prefix = string(r[:idPrefixRunes])
	}
	sum := md5.Sum([]byte(fmt.Sprintf("%s_%d_%d_%s", source, page, offset, prefix)))
	return hex.EncodeToString(sum[:])
}
