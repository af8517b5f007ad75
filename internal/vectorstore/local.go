package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/marketmatch/marketmatch/internal/domain"
	applog "github.com/marketmatch/marketmatch/internal/logger"
)

// localIndexVersion guards the on-disk format.
const localIndexVersion = 1

type localEntry struct {
	ID       string                `json:"id"`
	Vector   []float32             `json:"vector"`
	Content  string                `json:"content"`
	Metadata domain.VectorMetadata `json:"metadata"`
}

type localIndexFile struct {
	Version    int          `json:"version"`
	Dimensions int          `json:"dimensions"`
	Entries    []localEntry `json:"entries"`
}

// LocalStore is a brute-force cosine-similarity index held in memory
// and persisted as JSON. It exists so the system keeps working with no
// external vector database; exact search over the full index is
// acceptable at the collection sizes this serves.
type LocalStore struct {
	mu         sync.RWMutex
	path       string
	dimensions int
	entries    map[string]localEntry
}

// NewLocalStore opens (or creates) the index file at path. A missing
// file yields an empty store seeded with the placeholder. An unreadable
// or mismatched file returns ErrIndexCorrupt; callers typically discard
// the file and rebuild from the relational store.
func NewLocalStore(path string, dimensions int) (*LocalStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("invalid dimensions %d", dimensions)
	}

	s := &LocalStore{
		path:       path,
		dimensions: dimensions,
		entries:    make(map[string]localEntry),
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		s.seedPlaceholder()
		if err := s.save(); err != nil {
			return nil, err
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}

	var file localIndexFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	if file.Version != localIndexVersion {
		return nil, fmt.Errorf("%w: unsupported index version %d", ErrIndexCorrupt, file.Version)
	}
	if file.Dimensions != dimensions {
		return nil, fmt.Errorf("%w: index dimension %d, expected %d", ErrIndexCorrupt, file.Dimensions, dimensions)
	}
	for _, entry := range file.Entries {
		if len(entry.Vector) != dimensions {
			return nil, fmt.Errorf("%w: entry %s has dimension %d, expected %d", ErrIndexCorrupt, entry.ID, len(entry.Vector), dimensions)
		}
		s.entries[entry.ID] = entry
	}
	if len(s.entries) == 0 {
		s.seedPlaceholder()
	}
	return s, nil
}

// Kind identifies the backend.
func (s *LocalStore) Kind() string { return KindLocal }

// Upsert inserts or replaces items and persists the index.
func (s *LocalStore) Upsert(_ context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		if len(item.Vector) != s.dimensions {
			return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(item.Vector), s.dimensions)
		}
	}
	for _, item := range items {
		s.entries[item.ID] = localEntry{
			ID:       item.ID,
			Vector:   item.Vector,
			Content:  item.Content,
			Metadata: item.Metadata,
		}
	}
	return s.save()
}

// SimilaritySearch scans every entry and returns the top k by cosine
// similarity, placeholder excluded.
func (s *LocalStore) SimilaritySearch(_ context.Context, vector []float32, k int) ([]domain.Match, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(vector) != s.dimensions {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vector), s.dimensions)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.Match, 0, len(s.entries))
	for _, entry := range s.entries {
		if entry.Metadata.ChunkID == PlaceholderChunkID {
			continue
		}
		matches = append(matches, domain.Match{
			Content:  entry.Content,
			Metadata: entry.Metadata,
			Score:    cosineSimilarity(vector, entry.Vector),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// DeleteAll clears the index, re-seeds the placeholder, and persists.
func (s *LocalStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]localEntry)
	s.seedPlaceholder()
	return s.save()
}

// Stats reports the entry count excluding the placeholder.
func (s *LocalStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, entry := range s.entries {
		if entry.Metadata.ChunkID == PlaceholderChunkID {
			continue
		}
		count++
	}
	return Stats{Kind: KindLocal, Count: count, Dimensions: s.dimensions}, nil
}

// Close is a no-op; the index is persisted on every mutation.
func (s *LocalStore) Close() error { return nil }

// seedPlaceholder adds the placeholder entry. Caller holds the lock or
// has exclusive access.
func (s *LocalStore) seedPlaceholder() {
	item := placeholderItem(s.dimensions)
	s.entries[item.ID] = localEntry{
		ID:       item.ID,
		Vector:   item.Vector,
		Content:  item.Content,
		Metadata: item.Metadata,
	}
}

// save writes the index atomically: temp file then rename. Caller
// holds the write lock.
func (s *LocalStore) save() error {
	if s.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	file := localIndexFile{
		Version:    localIndexVersion,
		Dimensions: s.dimensions,
		Entries:    make([]localEntry, 0, len(s.entries)),
	}
	for _, entry := range s.entries {
		file.Entries = append(file.Entries, entry)
	}
	sort.Slice(file.Entries, func(i, j int) bool {
		return file.Entries[i].ID < file.Entries[j].ID
	})

	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write index file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace index file: %w", err)
	}
	return nil
}

func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// RemoveIndexFile deletes the on-disk index. Used when the file is
// corrupt and a rebuild is about to run.
func RemoveIndexFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		applog.Warn("Failed to remove index file %s: %v", path, err)
	}
}
