package port

import "docrag/internal/domain"

type FileWalker interface {
	Walk(root string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}

// PageLoader extracts page-level text from a source file.
type PageLoader interface {
	Load(path string) ([]domain.Page, error)
}
