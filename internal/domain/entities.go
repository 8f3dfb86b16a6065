package domain

import (
	"strconv"
	"time"
)

type Page struct {
	Number int
	Text   string
}

type Chunk struct {
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
	PageNumber int    `json:"page_number"`
	ChunkIndex int    `json:"chunk_index"`
	DocumentID int64  `json:"document_id"`
}

// ChunkRecord is a chunk after indexing, carrying the id the embedding index issued for it.
type ChunkRecord struct {
	Chunk
	EmbeddingID string `json:"embedding_id"`
}

type Document struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	PageCount  int       `json:"page_count"`
	FileSize   int64     `json:"file_size"`
	UploadedAt time.Time `json:"uploaded_at"`
	Processed  bool      `json:"processed"`
	Tags       []string  `json:"tags,omitempty"`
}

// Metadata is stored next to every vector so search hits are self-contained.
type Metadata struct {
	DocumentID int64  `json:"document_id"`
	PageNumber int    `json:"page_number"`
	ChunkIndex int    `json:"chunk_index"`
	TokenCount int    `json:"token_count"`
	Text       string `json:"text"`
	StringID   string `json:"string_id"`
}

// Filter keys match the JSON names of Metadata fields; values are compared as strings.
type Filter map[string]string

const (
	FilterDocumentID = "document_id"
	FilterPageNumber = "page_number"
	FilterChunkIndex = "chunk_index"
	FilterTokenCount = "token_count"
	FilterStringID   = "string_id"
)

func DocumentFilter(id int64) Filter {
	return Filter{FilterDocumentID: strconv.FormatInt(id, 10)}
}

func (m Metadata) Field(key string) (string, bool) {
	switch key {
	case FilterDocumentID:
		return strconv.FormatInt(m.DocumentID, 10), true
	case FilterPageNumber:
		return strconv.Itoa(m.PageNumber), true
	case FilterChunkIndex:
		return strconv.Itoa(m.ChunkIndex), true
	case FilterTokenCount:
		return strconv.Itoa(m.TokenCount), true
	case FilterStringID:
		return m.StringID, true
	case "text":
		return m.Text, true
	}
	return "", false
}

// Matches reports whether every pair in f is present in m. An empty filter matches everything.
func (m Metadata) Matches(f Filter) bool {
	for k, want := range f {
		got, ok := m.Field(k)
		if !ok || got != want {
			return false
		}
	}
	return true
}

func (m Metadata) Chunk() Chunk {
	return Chunk{
		Text:       m.Text,
		TokenCount: m.TokenCount,
		PageNumber: m.PageNumber,
		ChunkIndex: m.ChunkIndex,
		DocumentID: m.DocumentID,
	}
}

type SearchResult struct {
	ID       string   `json:"id"`
	Distance float64  `json:"distance"`
	Metadata Metadata `json:"metadata"`
	Text     string   `json:"text"`
	// Relevance is the lexical overlap score assigned during rerank.
	Relevance float64 `json:"relevance,omitempty"`
}

type Stats struct {
	TotalVectors int    `json:"total_vectors"`
	Dimension    int    `json:"dimension"`
	Backend      string `json:"backend"`
}

const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

type Turn struct {
	Sender    string         `json:"sender"`
	Text      string         `json:"text"`
	Citations []int          `json:"citations,omitempty"`
	Chunks    []SearchResult `json:"chunks,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type Conversation struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	DocumentID *int64    `json:"document_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type PackedContext struct {
	Context     string `json:"context"`
	Citations   []int  `json:"citations"`
	UsedWords   int    `json:"used_words"`
	BudgetWords int    `json:"budget_words"`
	Included    int    `json:"included"`
}
