package kb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/inkwell-tools/inkwell/internal/chunk"
	"github.com/inkwell-tools/inkwell/internal/gateway"
)

// ErrNotFound is returned for an unknown knowledge base ID.
var ErrNotFound = errors.New("knowledge base not found")

// Document is a source document handed to ingestion: path plus the already
// extracted plain text. Format parsing (.docx, .pdf, ...) happens upstream.
type Document struct {
	Path string
	Text string
}

// IngestStats summarizes one ingestion run.
type IngestStats struct {
	Documents         int
	Fragments         int
	EmbeddingFailures int
}

// Store is the in-memory knowledge base catalog backed by a SQLite file.
// All mutations go through the store so that the version counter, the
// persisted copy, and the in-memory catalog stay in step.
//
// Search may run concurrently with other searches; ingestion into a
// knowledge base must not overlap with searches against that same base
// (the fragment list is read without locks during the parallel phase).
type Store struct {
	mu      sync.RWMutex
	db      *sql.DB
	path    string
	lock    *flock.Flock
	kbs     map[string]*KnowledgeBase
	watcher *catalogWatcher

	// onExternalChange runs after the catalog is reloaded because another
	// process rewrote the database. Used to evict engine-side index caches.
	onExternalChange func()
}

// Open opens (creating if necessary) the catalog database at path and loads
// all knowledge bases into memory.
func Open(path string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:   db,
		path: path,
		lock: flock.New(path + ".lock"),
		kbs:  make(map[string]*KnowledgeBase),
	}
	if err := s.loadAll(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close stops the watcher, if any, and closes the database.
func (s *Store) Close() error {
	if s.watcher != nil {
		s.watcher.stop()
	}
	return s.db.Close()
}

// Create adds an empty knowledge base to the catalog and persists it.
func (s *Store) Create(name string, typ Type) (*KnowledgeBase, error) {
	if name == "" {
		return nil, errors.New("knowledge base name is empty")
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("invalid knowledge base type %q", typ)
	}

	now := time.Now()
	k := &KnowledgeBase{
		ID:        uuid.NewString(),
		Name:      name,
		Type:      typ,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(k); err != nil {
		return nil, err
	}
	s.kbs[k.ID] = k
	return k, nil
}

// Get returns the knowledge base with the given ID.
func (s *Store) Get(id string) (*KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.kbs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return k, nil
}

// List returns all knowledge bases ordered by creation time.
func (s *Store) List() []*KnowledgeBase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*KnowledgeBase, 0, len(s.kbs))
	for _, k := range s.kbs {
		out = append(out, k)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out
}

// Delete removes a knowledge base from the catalog and the database.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.kbs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := s.deleteRow(id); err != nil {
		return err
	}
	delete(s.kbs, id)
	return nil
}

// SetPromptIDs updates the prompt references of a knowledge base and
// persists the change.
func (s *Store) SetPromptIDs(id, polishID, predictionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.kbs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	k.SetPromptIDs(polishID, predictionID)
	return s.persist(k)
}

// Ingest chunks the documents, embeds the chunks in batches, and appends
// the resulting fragments to the knowledge base in source order. A chunk
// whose embedding fails is kept with an empty embedding, so it stays
// eligible for keyword search, and counted in the returned stats.
func (s *Store) Ingest(ctx context.Context, id string, docs []Document, embedder gateway.Embedder, chunker *chunk.Chunker) (*IngestStats, error) {
	k, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if chunker == nil {
		chunker = chunk.New(0, 0)
	}

	type pending struct {
		path        string
		chunkIndex  int
		totalChunks int
	}
	var texts []string
	var meta []pending

	for _, doc := range docs {
		chunks := chunker.Split(doc.Text)
		for i, c := range chunks {
			texts = append(texts, c)
			meta = append(meta, pending{path: doc.Path, chunkIndex: i, totalChunks: len(chunks)})
		}
	}
	if len(texts) == 0 {
		return &IngestStats{Documents: len(docs)}, nil
	}

	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed fragments: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(texts))
	}

	now := time.Now()
	frags := make([]*Fragment, 0, len(texts))
	failures := 0
	for i, text := range texts {
		if len(vectors[i]) == 0 {
			failures++
		}
		frags = append(frags, &Fragment{
			ID:          FragmentID(text, meta[i].path),
			SourcePath:  meta[i].path,
			Content:     text,
			Embedding:   vectors[i],
			ChunkIndex:  meta[i].chunkIndex,
			TotalChunks: meta[i].totalChunks,
			CreatedAt:   now,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	k.AppendFragments(frags...)
	if err := s.persist(k); err != nil {
		return nil, err
	}

	if failures > 0 {
		slog.Warn("some fragments have no embedding, keyword search only",
			slog.String("kb", k.ID),
			slog.Int("failed", failures),
			slog.Int("total", len(frags)))
	}
	return &IngestStats{
		Documents:         len(docs),
		Fragments:         len(frags),
		EmbeddingFailures: failures,
	}, nil
}

// OnExternalChange registers a callback invoked after the catalog is
// reloaded due to an external database modification.
func (s *Store) OnExternalChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExternalChange = fn
}

// Dir returns the directory holding the catalog database.
func (s *Store) Dir() string {
	return filepath.Dir(s.path)
}
