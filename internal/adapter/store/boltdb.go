package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"docrag/internal/domain"
)

var (
	bucketDocs          = []byte("docs")
	bucketDocChunks     = []byte("doc_chunks")
	bucketConversations = []byte("conversations")
	bucketTurns         = []byte("turns")
	bucketStats         = []byte("stats")
)

// BoltStore persists documents, chunk records and conversations in one bbolt
// file. Chunks and turns live in nested buckets keyed by their parent id.
type BoltStore struct {
	db *bbolt.DB
}

// lockTimeout bounds the wait for another process's lock on a bbolt file.
var lockTimeout = 2 * time.Second

func openBolt(path string) (*bbolt.DB, error) {
	return bbolt.Open(path, 0600, &bbolt.Options{Timeout: lockTimeout})
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := openBolt(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketDocs, bucketDocChunks, bucketConversations, bucketTurns, bucketStats}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocs)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		doc.ID = int64(seq)
		if doc.UploadedAt.IsZero() {
			doc.UploadedAt = time.Now().UTC()
		}
		return putJSON(b, encodeID(doc.ID), doc)
	})
}

func (s *BoltStore) GetDocument(ctx context.Context, id int64) (domain.Document, error) {
	var doc domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket(bucketDocs), encodeID(id), &doc)
	})
	if err != nil {
		return domain.Document{}, fmt.Errorf("document %d: %w", id, err)
	}
	return doc, nil
}

func (s *BoltStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			var doc domain.Document
			if err := json.Unmarshal(v, &doc); err != nil {
				return err
			}
			docs = append(docs, doc)
			return nil
		})
	})
	return docs, err
}

func (s *BoltStore) MarkProcessed(ctx context.Context, id int64, pageCount int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocs)
		var doc domain.Document
		if err := getJSON(b, encodeID(id), &doc); err != nil {
			return fmt.Errorf("document %d: %w", id, err)
		}
		doc.Processed = true
		doc.PageCount = pageCount
		return putJSON(b, encodeID(id), doc)
	})
}

// SaveChunks replaces every chunk record stored for the document.
func (s *BoltStore) SaveChunks(ctx context.Context, docID int64, chunks []domain.ChunkRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		parent := tx.Bucket(bucketDocChunks)
		key := encodeID(docID)
		if err := parent.DeleteBucket(key); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		b, err := parent.CreateBucket(key)
		if err != nil {
			return err
		}
		for i, c := range chunks {
			if err := putJSON(b, encodeID(int64(i)), c); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) ListChunks(ctx context.Context, docID int64) ([]domain.ChunkRecord, error) {
	var chunks []domain.ChunkRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocChunks).Bucket(encodeID(docID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var c domain.ChunkRecord
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			chunks = append(chunks, c)
			return nil
		})
	})
	return chunks, err
}

func (s *BoltStore) DeleteDocument(ctx context.Context, id int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		docs := tx.Bucket(bucketDocs)
		key := encodeID(id)
		if docs.Get(key) == nil {
			return fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
		}
		if err := docs.Delete(key); err != nil {
			return err
		}
		err := tx.Bucket(bucketDocChunks).DeleteBucket(key)
		if err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		return nil
	})
}

func (s *BoltStore) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketConversations)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		conv.ID = int64(seq)
		conv.CreatedAt, conv.UpdatedAt = now, now
		return putJSON(b, encodeID(conv.ID), conv)
	})
}

func (s *BoltStore) GetConversation(ctx context.Context, id int64) (domain.Conversation, error) {
	var conv domain.Conversation
	err := s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket(bucketConversations), encodeID(id), &conv)
	})
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("conversation %d: %w", id, err)
	}
	return conv, nil
}

func (s *BoltStore) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	var convs []domain.Conversation
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketConversations).ForEach(func(k, v []byte) error {
			var c domain.Conversation
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			convs = append(convs, c)
			return nil
		})
	})
	return convs, err
}

func (s *BoltStore) AppendTurns(ctx context.Context, conversationID int64, turns ...domain.Turn) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		convs := tx.Bucket(bucketConversations)
		key := encodeID(conversationID)
		var conv domain.Conversation
		if err := getJSON(convs, key, &conv); err != nil {
			return fmt.Errorf("conversation %d: %w", conversationID, err)
		}

		b, err := tx.Bucket(bucketTurns).CreateBucketIfNotExists(key)
		if err != nil {
			return err
		}
		for _, t := range turns {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			if t.CreatedAt.IsZero() {
				t.CreatedAt = time.Now().UTC()
			}
			if err := putJSON(b, encodeID(int64(seq)), t); err != nil {
				return err
			}
		}

		conv.UpdatedAt = time.Now().UTC()
		return putJSON(convs, key, conv)
	})
}

func (s *BoltStore) RecentTurns(ctx context.Context, conversationID int64, n int) ([]domain.Turn, error) {
	var turns []domain.Turn
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTurns).Bucket(encodeID(conversationID))
		if b == nil || n <= 0 {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(turns) < n; k, v = c.Prev() {
			var t domain.Turn
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			turns = append(turns, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *BoltStore) Turns(ctx context.Context, conversationID int64) ([]domain.Turn, error) {
	var turns []domain.Turn
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTurns).Bucket(encodeID(conversationID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var t domain.Turn
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			turns = append(turns, t)
			return nil
		})
	})
	return turns, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func putJSON(b *bbolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

func getJSON(b *bbolt.Bucket, key []byte, v any) error {
	data := b.Get(key)
	if data == nil {
		return domain.ErrNotFound
	}
	return json.Unmarshal(data, v)
}
