package kb

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS knowledge_bases (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	kb_type              TEXT NOT NULL,
	polish_prompt_id     TEXT NOT NULL DEFAULT '',
	prediction_prompt_id TEXT NOT NULL DEFAULT '',
	created_at           INTEGER NOT NULL,
	updated_at           INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS fragments (
	kb_id        TEXT NOT NULL REFERENCES knowledge_bases(id) ON DELETE CASCADE,
	position     INTEGER NOT NULL,
	id           TEXT NOT NULL,
	source_path  TEXT NOT NULL,
	content      TEXT NOT NULL,
	embedding    BLOB,
	chunk_index  INTEGER NOT NULL,
	total_chunks INTEGER NOT NULL,
	created_at   INTEGER NOT NULL,
	PRIMARY KEY (kb_id, position)
);
`

func openDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply catalog schema: %w", err)
	}
	return db, nil
}

// loadAll replaces the in-memory catalog with the database contents.
// Fragments are loaded in their persisted position order, which is the
// ingestion order the recency boost depends on.
func (s *Store) loadAll() error {
	rows, err := s.db.Query(`SELECT id, name, kb_type, polish_prompt_id, prediction_prompt_id, created_at, updated_at
		FROM knowledge_bases`)
	if err != nil {
		return fmt.Errorf("load knowledge bases: %w", err)
	}
	defer rows.Close()

	kbs := make(map[string]*KnowledgeBase)
	for rows.Next() {
		var k KnowledgeBase
		var created, updated int64
		if err := rows.Scan(&k.ID, &k.Name, &k.Type, &k.PolishPromptID, &k.PredictionPromptID, &created, &updated); err != nil {
			return fmt.Errorf("scan knowledge base row: %w", err)
		}
		k.CreatedAt = time.Unix(created, 0)
		k.UpdatedAt = time.Unix(updated, 0)
		kbs[k.ID] = &k
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, k := range kbs {
		frags, err := s.loadFragments(k.ID)
		if err != nil {
			return err
		}
		k.Fragments = frags
		k.Version = 1
	}
	s.kbs = kbs
	return nil
}

func (s *Store) loadFragments(kbID string) ([]*Fragment, error) {
	rows, err := s.db.Query(`SELECT id, source_path, content, embedding, chunk_index, total_chunks, created_at
		FROM fragments WHERE kb_id = ? ORDER BY position`, kbID)
	if err != nil {
		return nil, fmt.Errorf("load fragments for %s: %w", kbID, err)
	}
	defer rows.Close()

	var frags []*Fragment
	for rows.Next() {
		var f Fragment
		var blob []byte
		var created int64
		if err := rows.Scan(&f.ID, &f.SourcePath, &f.Content, &blob, &f.ChunkIndex, &f.TotalChunks, &created); err != nil {
			return nil, fmt.Errorf("scan fragment row: %w", err)
		}
		f.CreatedAt = time.Unix(created, 0)
		f.Embedding, err = decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decode embedding for fragment %s: %w", f.ID, err)
		}
		frags = append(frags, &f)
	}
	return frags, rows.Err()
}

// persist writes one knowledge base and all of its fragments inside a single
// transaction, replacing the previous fragment rows. The file lock keeps
// concurrent processes from interleaving their transactions' WAL writes.
// Caller holds s.mu.
func (s *Store) persist(k *KnowledgeBase) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("acquire catalog lock: %w", err)
	}
	defer s.lock.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO knowledge_bases (id, name, kb_type, polish_prompt_id, prediction_prompt_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kb_type = excluded.kb_type,
			polish_prompt_id = excluded.polish_prompt_id,
			prediction_prompt_id = excluded.prediction_prompt_id,
			updated_at = excluded.updated_at`,
		k.ID, k.Name, string(k.Type), k.PolishPromptID, k.PredictionPromptID,
		k.CreatedAt.Unix(), k.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("persist knowledge base %s: %w", k.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM fragments WHERE kb_id = ?`, k.ID); err != nil {
		return fmt.Errorf("clear fragments for %s: %w", k.ID, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO fragments (kb_id, position, id, source_path, content, embedding, chunk_index, total_chunks, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for pos, f := range k.Fragments {
		if _, err := stmt.Exec(k.ID, pos, f.ID, f.SourcePath, f.Content,
			encodeVector(f.Embedding), f.ChunkIndex, f.TotalChunks, f.CreatedAt.Unix()); err != nil {
			return fmt.Errorf("persist fragment %s: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

// deleteRow removes a knowledge base row; fragments cascade. Caller holds s.mu.
func (s *Store) deleteRow(id string) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("acquire catalog lock: %w", err)
	}
	defer s.lock.Unlock()

	_, err := s.db.Exec(`DELETE FROM knowledge_bases WHERE id = ?`, id)
	return err
}

// encodeVector packs an embedding as little-endian float32s. A nil or empty
// vector encodes as NULL so that missing embeddings survive a round trip.
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(blob))
	}
	v := make([]float32, len(blob)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[4*i:]))
	}
	return v, nil
}
