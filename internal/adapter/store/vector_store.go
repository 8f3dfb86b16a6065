package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"

	"docrag/internal/domain"
	"docrag/internal/port"
)

const (
	flatVectorFile   = "vectors.db"
	flatMetadataFile = "metadata.json"
)

var (
	bucketVectors    = []byte("vectors")
	bucketVectorMeta = []byte("vector_meta")
	keyDimension     = []byte("dimension")
)

// FlatVectorStore is an exact brute-force index. Vectors live in a bbolt file
// and metadata in a JSON sidecar; both are mirrored in memory for search.
type FlatVectorStore struct {
	db        *bbolt.DB
	metaPath  string
	dimension int
	mu        sync.RWMutex
	vectors   map[int64]vectorEntry
}

type vectorEntry struct {
	vector   []float32
	metadata domain.Metadata
}

// OpenFlatVectorStore loads the index in dir when both files exist, and
// otherwise starts an empty one.
func OpenFlatVectorStore(dir string, dimension int) (*FlatVectorStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid vector dimension %d", dimension)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index dir: %w", err)
	}

	vecPath := filepath.Join(dir, flatVectorFile)
	metaPath := filepath.Join(dir, flatMetadataFile)
	vecExists, metaExists := fileExists(vecPath), fileExists(metaPath)

	if vecExists != metaExists {
		log.Warn().Str("dir", dir).Bool("vectors", vecExists).Bool("metadata", metaExists).
			Msg("incomplete vector index on disk, starting fresh")
	}

	db, err := openBolt(vecPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector db: %w", err)
	}

	s := &FlatVectorStore{
		db:        db,
		metaPath:  metaPath,
		dimension: dimension,
		vectors:   make(map[int64]vectorEntry),
	}

	if vecExists && metaExists {
		err = s.load()
	} else {
		err = s.reset()
	}
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Debug().Str("dir", dir).Int("vectors", len(s.vectors)).Int("dimension", dimension).Msg("flat vector index ready")
	return s, nil
}

func (s *FlatVectorStore) load() error {
	metadata := make(map[string]domain.Metadata)
	data, err := os.ReadFile(s.metaPath)
	if err != nil {
		return fmt.Errorf("failed to read metadata sidecar: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return fmt.Errorf("%w: metadata sidecar: %v", domain.ErrIndexCorrupt, err)
	}

	err = s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketVectorMeta)
		b := tx.Bucket(bucketVectors)
		if meta == nil || b == nil {
			return fmt.Errorf("%w: missing buckets", domain.ErrIndexCorrupt)
		}

		stored, err := strconv.Atoi(string(meta.Get(keyDimension)))
		if err != nil {
			return fmt.Errorf("%w: unreadable dimension", domain.ErrIndexCorrupt)
		}
		if stored != s.dimension {
			return fmt.Errorf("%w: index has %d, embedder produces %d", domain.ErrDimensionMismatch, stored, s.dimension)
		}

		return b.ForEach(func(k, v []byte) error {
			id := decodeID(k)
			var vec []float32
			if err := json.Unmarshal(v, &vec); err != nil {
				return fmt.Errorf("%w: vector %d: %v", domain.ErrIndexCorrupt, id, err)
			}
			md, ok := metadata[strconv.FormatInt(id, 10)]
			if !ok {
				return fmt.Errorf("%w: vector %d has no metadata", domain.ErrIndexCorrupt, id)
			}
			s.vectors[id] = vectorEntry{vector: vec, metadata: md}
			return nil
		})
	})
	if err != nil {
		return err
	}

	if len(s.vectors) != len(metadata) {
		return fmt.Errorf("%w: %d vectors but %d metadata entries", domain.ErrIndexCorrupt, len(s.vectors), len(metadata))
	}
	return nil
}

func (s *FlatVectorStore) reset() error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketVectors, bucketVectorMeta} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
		}
		if _, err := tx.CreateBucket(bucketVectors); err != nil {
			return err
		}
		meta, err := tx.CreateBucket(bucketVectorMeta)
		if err != nil {
			return err
		}
		return meta.Put(keyDimension, []byte(strconv.Itoa(s.dimension)))
	})
	if err != nil {
		return fmt.Errorf("failed to initialise vector db: %w", err)
	}
	return s.writeSidecar(s.vectors)
}

// Upsert adds or replaces vectors. A surrogate id already held by a different
// string id is rejected.
func (s *FlatVectorStore) Upsert(ctx context.Context, items []port.VectorItem) error {
	if len(items) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		if len(item.Vector) != s.dimension {
			return fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, s.dimension, len(item.Vector))
		}
	}
	err := checkSurrogates(items, func(id int64) (string, bool) {
		existing, ok := s.vectors[id]
		return existing.metadata.StringID, ok
	})
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		for _, item := range items {
			data, err := json.Marshal(item.Vector)
			if err != nil {
				return err
			}
			if err := b.Put(encodeID(item.SurrogateID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store vectors: %w", err)
	}

	for _, item := range items {
		s.vectors[item.SurrogateID] = vectorEntry{vector: item.Vector, metadata: item.Metadata}
	}
	return s.writeSidecar(s.vectors)
}

// checkSurrogates rejects items whose surrogate id is held by a different
// string id, either in the store (owner) or earlier in the same batch.
func checkSurrogates(items []port.VectorItem, owner func(id int64) (string, bool)) error {
	batch := make(map[int64]string, len(items))
	for _, item := range items {
		held, seen := batch[item.SurrogateID]
		if !seen {
			held, seen = owner(item.SurrogateID)
		}
		if seen && held != item.Metadata.StringID {
			return fmt.Errorf("%w: %d held by %s, wanted by %s", domain.ErrSurrogateCollision, item.SurrogateID, held, item.Metadata.StringID)
		}
		batch[item.SurrogateID] = item.Metadata.StringID
	}
	return nil
}

// Search returns the k nearest vectors by squared Euclidean distance.
func (s *FlatVectorStore) Search(ctx context.Context, query []float32, k int) ([]port.VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", domain.ErrDimensionMismatch, len(query), s.dimension)
	}
	if len(s.vectors) == 0 || k <= 0 {
		return nil, nil
	}

	scores := make([]port.VectorResult, 0, len(s.vectors))
	for id, entry := range s.vectors {
		scores = append(scores, port.VectorResult{
			SurrogateID: id,
			Distance:    squaredL2(query, entry.vector),
			Metadata:    entry.metadata,
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Distance != scores[j].Distance {
			return scores[i].Distance < scores[j].Distance
		}
		return scores[i].SurrogateID < scores[j].SurrogateID
	})

	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], nil
}

// DeleteWhere rebuilds the vector bucket from the cached survivors, so
// nothing is re-embedded.
func (s *FlatVectorStore) DeleteWhere(ctx context.Context, filter domain.Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	survivors := make(map[int64]vectorEntry, len(s.vectors))
	for id, entry := range s.vectors {
		if !entry.metadata.Matches(filter) {
			survivors[id] = entry
		}
	}
	removed := len(s.vectors) - len(survivors)
	if removed == 0 {
		return 0, nil
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketVectors); err != nil {
			return err
		}
		b, err := tx.CreateBucket(bucketVectors)
		if err != nil {
			return err
		}
		for id, entry := range survivors {
			data, err := json.Marshal(entry.vector)
			if err != nil {
				return err
			}
			if err := b.Put(encodeID(id), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to rebuild vectors: %w", err)
	}

	s.vectors = survivors
	if err := s.writeSidecar(survivors); err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *FlatVectorStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}

func (s *FlatVectorStore) Dimension() int {
	return s.dimension
}

func (s *FlatVectorStore) Name() string {
	return "flat"
}

func (s *FlatVectorStore) Close() error {
	return s.db.Close()
}

// writeSidecar replaces the metadata file through a rename.
func (s *FlatVectorStore) writeSidecar(vectors map[int64]vectorEntry) error {
	metadata := make(map[string]domain.Metadata, len(vectors))
	for id, entry := range vectors {
		metadata[strconv.FormatInt(id, 10)] = entry.metadata
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return err
	}

	tmp := s.metaPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata sidecar: %w", err)
	}
	if err := os.Rename(tmp, s.metaPath); err != nil {
		return fmt.Errorf("failed to replace metadata sidecar: %w", err)
	}
	return nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func encodeID(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

func decodeID(key []byte) int64 {
	return int64(binary.BigEndian.Uint64(key))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
