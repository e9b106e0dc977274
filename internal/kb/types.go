// Package kb defines knowledge bases and their fragments, and provides the
// catalog store that owns them. A knowledge base is an ordered list of text
// fragments extracted from a writing corpus (history chapters, outlines,
// character sheets); the order mirrors the source documents and is
// load-bearing for recency boosting and context assembly.
package kb

import (
	"crypto/md5"
	"encoding/hex"
	"time"
)

// Type categorizes a knowledge base by the kind of corpus it indexes.
type Type string

const (
	TypeHistory   Type = "history"
	TypeOutline   Type = "outline"
	TypeCharacter Type = "character"
)

// Valid reports whether t is a known knowledge base type.
func (t Type) Valid() bool {
	switch t {
	case TypeHistory, TypeOutline, TypeCharacter:
		return true
	}
	return false
}

// Fragment is an immutable chunk of source text with its embedding.
// Embedding may be empty when the embedding call failed at ingest time;
// such fragments are excluded from vector search but still participate
// in keyword search.
type Fragment struct {
	ID          string    `json:"id"`
	SourcePath  string    `json:"source_path"`
	Content     string    `json:"content"`
	Embedding   []float32 `json:"embedding,omitempty"`
	ChunkIndex  int       `json:"chunk_index"`
	TotalChunks int       `json:"total_chunks"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasEmbedding reports whether the fragment carries a usable embedding.
func (f *Fragment) HasEmbedding() bool {
	return len(f.Embedding) > 0
}

// FragmentID derives the content-addressed fragment identifier.
// Same content at the same path always yields the same ID.
func FragmentID(content, sourcePath string) string {
	sum := md5.Sum([]byte(content + sourcePath))
	return hex.EncodeToString(sum[:])
}

// KnowledgeBase is an ordered collection of fragments plus catalog metadata.
// Fragments are appended by ingestion and never reordered; the position of a
// fragment within Fragments is the recency proxy used at search time.
//
// Version is bumped on every mutation and keys derived-index caches, so a
// cached BM25 index built for (ID, Version) can never serve stale fragments.
type KnowledgeBase struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	Type               Type        `json:"kb_type"`
	Fragments          []*Fragment `json:"fragments"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
	PolishPromptID     string      `json:"polish_prompt_id,omitempty"`
	PredictionPromptID string      `json:"prediction_prompt_id,omitempty"`

	// Version counts mutations since load. Not persisted: a fresh load is a
	// fresh cache generation.
	Version uint64 `json:"-"`
}

// AppendFragments appends fragments in source order and bumps the version.
func (k *KnowledgeBase) AppendFragments(frags ...*Fragment) {
	if len(frags) == 0 {
		return
	}
	k.Fragments = append(k.Fragments, frags...)
	k.touch()
}

// SetPromptIDs updates the prompt references attached to this knowledge base.
func (k *KnowledgeBase) SetPromptIDs(polishID, predictionID string) {
	k.PolishPromptID = polishID
	k.PredictionPromptID = predictionID
	k.touch()
}

func (k *KnowledgeBase) touch() {
	k.Version++
	k.UpdatedAt = time.Now()
}

// PositionOf returns the position of the fragment with the given ID within
// the fragment list, or -1 if it is not part of this knowledge base.
func (k *KnowledgeBase) PositionOf(fragmentID string) int {
	for i, f := range k.Fragments {
		if f.ID == fragmentID {
			return i
		}
	}
	return -1
}

// Positions returns a fragment-ID to position map for the whole list.
// Used by the recency booster to avoid repeated linear scans.
func (k *KnowledgeBase) Positions() map[string]int {
	m := make(map[string]int, len(k.Fragments))
	for i, f := range k.Fragments {
		m[f.ID] = i
	}
	return m
}
