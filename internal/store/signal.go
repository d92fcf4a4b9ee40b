package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/live-neon/neon-soul-sub008/internal/domain"
	pgvector "github.com/pgvector/pgvector-go"
)

// SignalArchive is the append-only Postgres record of every signal ever
// submitted, independent of the soul files. It exists for audit and
// similarity search; synthesis itself never reads from it.
type SignalArchive struct {
	db *pgxpool.Pool
}

func NewSignalArchive(db *pgxpool.Pool) *SignalArchive {
	return &SignalArchive{db: db}
}

// ArchivedSignal is a signal row joined with its archive metadata.
type ArchivedSignal struct {
	domain.Signal
	SoulID     uuid.UUID `json:"soul_id"`
	Similarity float32   `json:"similarity,omitempty"`
}

// Record inserts one signal. Re-recording an id is a no-op: the archive
// is append-only and signal ids are globally unique. A nil embedding
// stores NULL.
func (s *SignalArchive) Record(ctx context.Context, soulID uuid.UUID, sig domain.Signal, embedding []float32) error {
	var vec *pgvector.Vector
	if len(embedding) > 0 {
		v := pgvector.NewVector(embedding)
		vec = &v
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO signals (id, soul_id, text, provenance, stance, dimension, source_ref, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		sig.ID, soulID, sig.Text, sig.Provenance, sig.Stance, sig.Dimension, sig.SourceRef, vec,
	)
	if err != nil {
		return fmt.Errorf("archive signal %s: %w", sig.ID, err)
	}
	return nil
}

// RecordBatch archives a run's signals in one transaction. Embeddings is
// indexed in step with signals; a short or nil slice stores NULL for the
// remainder.
func (s *SignalArchive) RecordBatch(ctx context.Context, soulID uuid.UUID, signals []domain.Signal, embeddings [][]float32) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("archive batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, sig := range signals {
		var vec *pgvector.Vector
		if i < len(embeddings) && len(embeddings[i]) > 0 {
			v := pgvector.NewVector(embeddings[i])
			vec = &v
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO signals (id, soul_id, text, provenance, stance, dimension, source_ref, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO NOTHING`,
			sig.ID, soulID, sig.Text, sig.Provenance, sig.Stance, sig.Dimension, sig.SourceRef, vec,
		); err != nil {
			return fmt.Errorf("archive signal %s: %w", sig.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// GetByID returns one archived signal.
func (s *SignalArchive) GetByID(ctx context.Context, id uuid.UUID) (*ArchivedSignal, error) {
	var row ArchivedSignal
	err := s.db.QueryRow(ctx,
		`SELECT id, soul_id, text, provenance, stance, dimension, source_ref
		 FROM signals WHERE id = $1`,
		id,
	).Scan(&row.ID, &row.SoulID, &row.Text, &row.Provenance, &row.Stance, &row.Dimension, &row.SourceRef)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// ListBySoul returns up to limit signals for a soul, newest first.
func (s *SignalArchive) ListBySoul(ctx context.Context, soulID uuid.UUID, limit int) ([]ArchivedSignal, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, soul_id, text, provenance, stance, dimension, source_ref
		 FROM signals WHERE soul_id = $1
		 ORDER BY recorded_at DESC
		 LIMIT $2`,
		soulID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArchivedSignal
	for rows.Next() {
		var row ArchivedSignal
		if err := rows.Scan(&row.ID, &row.SoulID, &row.Text, &row.Provenance, &row.Stance, &row.Dimension, &row.SourceRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// SearchSimilar returns the topK archived signals nearest to the query
// embedding by cosine distance.
func (s *SignalArchive) SearchSimilar(ctx context.Context, soulID uuid.UUID, embedding []float32, topK int) ([]ArchivedSignal, error) {
	if topK <= 0 {
		topK = 10
	}
	vec := pgvector.NewVector(embedding)

	rows, err := s.db.Query(ctx,
		`SELECT id, soul_id, text, provenance, stance, dimension, source_ref,
		        1 - (embedding <=> $2) AS similarity
		 FROM signals
		 WHERE soul_id = $1 AND embedding IS NOT NULL
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		soulID, vec, topK,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArchivedSignal
	for rows.Next() {
		var row ArchivedSignal
		if err := rows.Scan(&row.ID, &row.SoulID, &row.Text, &row.Provenance, &row.Stance, &row.Dimension, &row.SourceRef, &row.Similarity); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// CountBySoul returns the number of archived signals for a soul.
func (s *SignalArchive) CountBySoul(ctx context.Context, soulID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM signals WHERE soul_id = $1`, soulID,
	).Scan(&count)
	return count, err
}
