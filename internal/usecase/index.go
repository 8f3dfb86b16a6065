package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// IndexUseCase turns files into indexed, persisted documents.
type IndexUseCase struct {
	docs    port.DocumentStore
	walker  port.FileWalker
	loader  port.PageLoader
	chunker port.Chunker
	engine  *RetrieveUseCase
	workers int
}

func NewIndexUseCase(
	docs port.DocumentStore,
	walker port.FileWalker,
	loader port.PageLoader,
	chunker port.Chunker,
	engine *RetrieveUseCase,
	workers int,
) *IndexUseCase {
	if workers <= 0 {
		workers = 1
	}
	return &IndexUseCase{
		docs:    docs,
		walker:  walker,
		loader:  loader,
		chunker: chunker,
		engine:  engine,
		workers: workers,
	}
}

// IngestResult describes one file's ingestion.
type IngestResult struct {
	Path     string
	Document domain.Document
	Chunks   int
	Err      error
}

// IndexResult contains the results of an indexing operation.
type IndexResult struct {
	FilesIndexed  int
	FilesSkipped  int
	ChunksCreated int
	Errors        []string
}

// IngestFile loads, chunks and indexes one file as a new document. On
// failure nothing of the document is left behind.
func (u *IndexUseCase) IngestFile(ctx context.Context, file port.FileInfo) IngestResult {
	res := IngestResult{Path: file.Path}
	start := time.Now()

	pages, err := u.loader.Load(file.Path)
	if err != nil {
		res.Err = err
		return res
	}

	doc := domain.Document{
		Name:     filepath.Base(file.Path),
		Path:     file.Path,
		FileSize: file.Size,
	}
	if err := u.docs.CreateDocument(ctx, &doc); err != nil {
		res.Err = fmt.Errorf("failed to create document: %w", err)
		return res
	}

	chunks := u.chunker.ChunkDocument(pages)
	for i := range chunks {
		chunks[i].DocumentID = doc.ID
	}

	if err := u.store(ctx, doc.ID, chunks, len(pages)); err != nil {
		u.rollback(ctx, doc.ID)
		res.Err = err
		return res
	}

	doc.Processed = true
	doc.PageCount = len(pages)
	res.Document = doc
	res.Chunks = len(chunks)
	log.Info().
		Int64("document_id", doc.ID).
		Str("path", file.Path).
		Int("pages", len(pages)).
		Int("chunks", len(chunks)).
		Dur("elapsed", time.Since(start)).
		Msg("document ingested")
	return res
}

func (u *IndexUseCase) store(ctx context.Context, docID int64, chunks []domain.Chunk, pageCount int) error {
	ids, err := u.engine.AddDocumentToIndex(ctx, docID, chunks)
	if err != nil {
		return err
	}
	records := make([]domain.ChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = domain.ChunkRecord{Chunk: c, EmbeddingID: ids[i]}
	}
	if err := u.docs.SaveChunks(ctx, docID, records); err != nil {
		return fmt.Errorf("failed to save chunks: %w", err)
	}
	if err := u.docs.MarkProcessed(ctx, docID, pageCount); err != nil {
		return fmt.Errorf("failed to mark document processed: %w", err)
	}
	return nil
}

func (u *IndexUseCase) rollback(ctx context.Context, docID int64) {
	if _, err := u.engine.RemoveDocumentFromIndex(ctx, docID); err != nil {
		log.Warn().Err(err).Int64("document_id", docID).Msg("rollback: index cleanup failed")
	}
	if err := u.docs.DeleteDocument(ctx, docID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		log.Warn().Err(err).Int64("document_id", docID).Msg("rollback: document cleanup failed")
	}
}

// RemoveDocument drops a document from the index and then from the store.
func (u *IndexUseCase) RemoveDocument(ctx context.Context, id int64) error {
	if _, err := u.docs.GetDocument(ctx, id); err != nil {
		return err
	}
	if _, err := u.engine.RemoveDocumentFromIndex(ctx, id); err != nil {
		return err
	}
	return u.docs.DeleteDocument(ctx, id)
}

// Index walks paths and ingests every matching file through an IngestQueue.
// Files already indexed and not modified since are skipped; modified ones
// are replaced. A failing file is reported in the result and does not stop
// the others. progress may be nil.
func (u *IndexUseCase) Index(ctx context.Context, paths []string, progress func(processed, total int, currentFile string)) (*IndexResult, error) {
	result := &IndexResult{}

	var files []port.FileInfo
	for _, p := range paths {
		found, err := u.walker.Walk(p)
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
		files = append(files, found...)
	}

	existing, err := u.docs.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	byPath := make(map[string]domain.Document, len(existing))
	for _, d := range existing {
		byPath[d.Path] = d
	}

	var pending []port.FileInfo
	for _, f := range files {
		if d, ok := byPath[f.Path]; ok {
			if d.Processed && d.UploadedAt.Unix() >= f.ModTime {
				result.FilesSkipped++
				continue
			}
			if err := u.RemoveDocument(ctx, d.ID); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("failed to replace %s: %v", f.Path, err))
				continue
			}
		}
		pending = append(pending, f)
	}

	u.run(ctx, pending, result, progress)
	return result, nil
}

// Reindex removes every given document and ingests its file again. Documents
// whose file is gone are removed and reported.
func (u *IndexUseCase) Reindex(ctx context.Context, docs []domain.Document, progress func(processed, total int, currentFile string)) (*IndexResult, error) {
	result := &IndexResult{}
	var pending []port.FileInfo
	for _, d := range docs {
		if err := u.RemoveDocument(ctx, d.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		info, err := os.Stat(d.Path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("dropped %s: %v", d.Path, err))
			continue
		}
		pending = append(pending, port.FileInfo{Path: d.Path, ModTime: info.ModTime().Unix(), Size: info.Size()})
	}
	u.run(ctx, pending, result, progress)
	return result, nil
}

func (u *IndexUseCase) run(ctx context.Context, files []port.FileInfo, result *IndexResult, progress func(processed, total int, currentFile string)) {
	var mu sync.Mutex
	processed := 0
	q := NewIngestQueue(ctx, u.workers, u.IngestFile, func(r IngestResult) {
		mu.Lock()
		defer mu.Unlock()
		processed++
		if r.Err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to index %s: %v", r.Path, r.Err))
			log.Warn().Err(r.Err).Str("path", r.Path).Msg("ingestion failed")
		} else {
			result.FilesIndexed++
			result.ChunksCreated += r.Chunks
		}
		if progress != nil {
			progress(processed, len(files), r.Path)
		}
	})
	for _, f := range files {
		q.Submit(f)
	}
	q.Wait()
}

// IngestQueue runs ingestion jobs in the background with bounded
// concurrency. Submit never blocks the caller.
type IngestQueue struct {
	ctx    context.Context
	sem    chan struct{}
	wg     sync.WaitGroup
	ingest func(context.Context, port.FileInfo) IngestResult
	onDone func(IngestResult)
}

// NewIngestQueue runs at most workers ingestions at once. onDone is called
// once per finished job, from the worker goroutine; it may be nil.
func NewIngestQueue(ctx context.Context, workers int, ingest func(context.Context, port.FileInfo) IngestResult, onDone func(IngestResult)) *IngestQueue {
	if workers <= 0 {
		workers = 1
	}
	return &IngestQueue{
		ctx:    ctx,
		sem:    make(chan struct{}, workers),
		ingest: ingest,
		onDone: onDone,
	}
}

func (q *IngestQueue) Submit(file port.FileInfo) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()

		var res IngestResult
		select {
		case q.sem <- struct{}{}:
			res = q.ingest(q.ctx, file)
			<-q.sem
		case <-q.ctx.Done():
			res = IngestResult{Path: file.Path, Err: q.ctx.Err()}
		}
		if q.onDone != nil {
			q.onDone(res)
		}
	}()
}

// Wait blocks until every submitted job has finished.
func (q *IngestQueue) Wait() {
	q.wg.Wait()
}
