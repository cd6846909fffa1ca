package database

import (
	"context"

	"github.com/pgvector/pgvector-go"
)

// FileMatch is one result of a vector similarity search over indexed code.
type FileMatch struct {
	Path    string
	Content string
	Score   float64 // cosine similarity, 1.0 = identical
}

// UpsertFile stores or refreshes one indexed source file and its embedding.
func (db *DB) UpsertFile(ctx context.Context, path, content string, embedding []float32) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO code_files (path, content, embedding)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (path) DO UPDATE
		 SET content = EXCLUDED.content, embedding = EXCLUDED.embedding, updated_at = now()`,
		path, content, pgvector.NewVector(embedding),
	)
	return err
}

// SearchFiles returns the indexed files closest to the query embedding,
// best first, dropping matches below the similarity threshold.
func (db *DB) SearchFiles(ctx context.Context, embedding []float32, limit int, threshold float64) ([]FileMatch, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := db.pool.Query(ctx,
		`SELECT path, content, 1 - (embedding <=> $1) AS score
		 FROM code_files
		 WHERE embedding IS NOT NULL
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		pgvector.NewVector(embedding), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []FileMatch
	for rows.Next() {
		var m FileMatch
		if err := rows.Scan(&m.Path, &m.Content, &m.Score); err != nil {
			return nil, err
		}
		if m.Score < threshold {
			continue
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// DeleteFile removes one file from the index.
func (db *DB) DeleteFile(ctx context.Context, path string) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM code_files WHERE path = $1`, path)
	return err
}

// CountFiles returns the number of indexed files.
func (db *DB) CountFiles(ctx context.Context) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM code_files`).Scan(&count)
	return count, err
}
