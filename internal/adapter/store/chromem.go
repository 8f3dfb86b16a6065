package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"

	"docrag/internal/domain"
	"docrag/internal/port"
)

const chromemManifest = "manifest.json"

// ChromemVectorStore keeps vectors in a persistent chromem-go collection.
// Documents are keyed by surrogate id; the string id lives in metadata.
// chromem ranks by cosine similarity over normalized vectors, which orders
// hits the same way as squared L2; distances are reported as 2-2*cos.
type ChromemVectorStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	name       string
	dimension  int
}

type chromemManifestFile struct {
	Dimension  int    `json:"dimension"`
	Collection string `json:"collection"`
}

func precomputedOnly(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("chromem store expects precomputed embeddings")
}

func OpenChromemVectorStore(dir, collection string, dimension int, compress bool) (*ChromemVectorStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index dir: %w", err)
	}
	if err := checkManifest(filepath.Join(dir, chromemManifest), collection, dimension); err != nil {
		return nil, err
	}

	db, err := chromem.NewPersistentDB(dir, compress)
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem db: %w", err)
	}
	coll, err := db.GetOrCreateCollection(collection, map[string]string{"dimension": strconv.Itoa(dimension)}, precomputedOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}

	return &ChromemVectorStore{db: db, collection: coll, name: collection, dimension: dimension}, nil
}

func checkManifest(path, collection string, dimension int) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		data, err = json.Marshal(chromemManifestFile{Dimension: dimension, Collection: collection})
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0644)
	}
	if err != nil {
		return fmt.Errorf("failed to read chromem manifest: %w", err)
	}

	var m chromemManifestFile
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: chromem manifest: %v", domain.ErrIndexCorrupt, err)
	}
	if m.Dimension != dimension {
		return fmt.Errorf("%w: index has %d, embedder produces %d", domain.ErrDimensionMismatch, m.Dimension, dimension)
	}
	return nil
}

func (s *ChromemVectorStore) Upsert(ctx context.Context, items []port.VectorItem) error {
	docs := make([]chromem.Document, 0, len(items))
	for _, item := range items {
		if len(item.Vector) != s.dimension {
			return fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, s.dimension, len(item.Vector))
		}
	}
	err := checkSurrogates(items, func(id int64) (string, bool) {
		doc, err := s.collection.GetByID(ctx, strconv.FormatInt(id, 10))
		if err != nil {
			return "", false
		}
		return doc.Metadata[domain.FilterStringID], true
	})
	if err != nil {
		return err
	}

	for _, item := range items {
		docs = append(docs, chromem.Document{
			ID:        strconv.FormatInt(item.SurrogateID, 10),
			Content:   item.Metadata.Text,
			Metadata:  chromemMetadata(item),
			Embedding: item.Vector,
		})
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func (s *ChromemVectorStore) Search(ctx context.Context, query []float32, k int) ([]port.VectorResult, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", domain.ErrDimensionMismatch, len(query), s.dimension)
	}
	n := s.collection.Count()
	if n == 0 || k <= 0 {
		return nil, nil
	}
	if k > n {
		k = n
	}

	hits, err := s.collection.QueryEmbedding(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	results := make([]port.VectorResult, 0, len(hits))
	for _, h := range hits {
		md, id := fromChromemMetadata(h.Metadata)
		md.Text = h.Content
		results = append(results, port.VectorResult{
			SurrogateID: id,
			Distance:    2 * (1 - float64(h.Similarity)),
			Metadata:    md,
		})
	}
	return results, nil
}

func (s *ChromemVectorStore) DeleteWhere(ctx context.Context, filter domain.Filter) (int, error) {
	before := s.collection.Count()
	if len(filter) == 0 {
		if err := s.db.DeleteCollection(s.name); err != nil {
			return 0, fmt.Errorf("failed to drop collection: %w", err)
		}
		coll, err := s.db.GetOrCreateCollection(s.name, map[string]string{"dimension": strconv.Itoa(s.dimension)}, precomputedOnly)
		if err != nil {
			return 0, fmt.Errorf("failed to recreate collection: %w", err)
		}
		s.collection = coll
		return before, nil
	}

	where := make(map[string]string, len(filter))
	for k, v := range filter {
		where[k] = v
	}
	if err := s.collection.Delete(ctx, where, nil); err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}
	return before - s.collection.Count(), nil
}

func (s *ChromemVectorStore) Count(ctx context.Context) (int, error) {
	return s.collection.Count(), nil
}

func (s *ChromemVectorStore) Dimension() int {
	return s.dimension
}

func (s *ChromemVectorStore) Name() string {
	return "chromem"
}

// Close is a no-op; chromem persists on every write.
func (s *ChromemVectorStore) Close() error {
	return nil
}

func chromemMetadata(item port.VectorItem) map[string]string {
	md := item.Metadata
	return map[string]string{
		domain.FilterDocumentID: strconv.FormatInt(md.DocumentID, 10),
		domain.FilterPageNumber: strconv.Itoa(md.PageNumber),
		domain.FilterChunkIndex: strconv.Itoa(md.ChunkIndex),
		domain.FilterTokenCount: strconv.Itoa(md.TokenCount),
		domain.FilterStringID:   md.StringID,
		"surrogate_id":          strconv.FormatInt(item.SurrogateID, 10),
	}
}

func fromChromemMetadata(m map[string]string) (domain.Metadata, int64) {
	docID, _ := strconv.ParseInt(m[domain.FilterDocumentID], 10, 64)
	page, _ := strconv.Atoi(m[domain.FilterPageNumber])
	idx, _ := strconv.Atoi(m[domain.FilterChunkIndex])
	tokens, _ := strconv.Atoi(m[domain.FilterTokenCount])
	surrogate, _ := strconv.ParseInt(m["surrogate_id"], 10, 64)
	return domain.Metadata{
		DocumentID: docID,
		PageNumber: page,
		ChunkIndex: idx,
		TokenCount: tokens,
		StringID:   m[domain.FilterStringID],
	}, surrogate
}
