package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CycleLog records one row per completed synthesis run for audit.
type CycleLog struct {
	db *pgxpool.Pool
}

func NewCycleLog(db *pgxpool.Pool) *CycleLog {
	return &CycleLog{db: db}
}

// CycleRecord is one logged synthesis run.
type CycleRecord struct {
	ID             uuid.UUID `json:"id"`
	SoulID         uuid.UUID `json:"soul_id"`
	CycleCount     int       `json:"cycle_count"`
	Mode           string    `json:"mode"`
	Reason         string    `json:"reason"`
	SignalCount    int       `json:"signal_count"`
	AxiomCount     int       `json:"axiom_count"`
	PrincipleCount int       `json:"principle_count"`
	RecordedAt     time.Time `json:"recorded_at"`
}

func (l *CycleLog) Record(ctx context.Context, rec *CycleRecord) error {
	err := l.db.QueryRow(ctx,
		`INSERT INTO cycle_runs (soul_id, cycle_count, mode, reason, signal_count, axiom_count, principle_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, recorded_at`,
		rec.SoulID, rec.CycleCount, rec.Mode, rec.Reason, rec.SignalCount, rec.AxiomCount, rec.PrincipleCount,
	).Scan(&rec.ID, &rec.RecordedAt)
	if err != nil {
		return fmt.Errorf("record cycle run: %w", err)
	}
	return nil
}

// ListBySoul returns up to limit runs for a soul, newest first.
func (l *CycleLog) ListBySoul(ctx context.Context, soulID uuid.UUID, limit int) ([]CycleRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.db.Query(ctx,
		`SELECT id, soul_id, cycle_count, mode, reason, signal_count, axiom_count, principle_count, recorded_at
		 FROM cycle_runs WHERE soul_id = $1
		 ORDER BY recorded_at DESC
		 LIMIT $2`,
		soulID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CycleRecord
	for rows.Next() {
		var rec CycleRecord
		if err := rows.Scan(&rec.ID, &rec.SoulID, &rec.CycleCount, &rec.Mode, &rec.Reason,
			&rec.SignalCount, &rec.AxiomCount, &rec.PrincipleCount, &rec.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
