package sync

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// The history journal records pass outcomes for the control plane's history
// endpoint. It is observational only: reconciliation never consults it - the
// filesystem remains the sole source of local state.
const historySchema = `
CREATE TABLE IF NOT EXISTS sync_passes (
	id TEXT PRIMARY KEY,
	trigger_kind TEXT NOT NULL,
	outcome TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	actions_total INTEGER NOT NULL DEFAULT 0,
	actions_failed INTEGER NOT NULL DEFAULT 0,
	started_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sync_passes_started ON sync_passes(started_at DESC);
`

// PassRecord is one settled sync pass.
type PassRecord struct {
	ID            string    `db:"id" json:"id"`
	Trigger       Trigger   `db:"trigger_kind" json:"trigger"`
	Outcome       Outcome   `db:"outcome" json:"outcome"`
	Message       string    `db:"message" json:"message"`
	ActionsTotal  int       `db:"actions_total" json:"actions_total"`
	ActionsFailed int       `db:"actions_failed" json:"actions_failed"`
	StartedAt     time.Time `db:"started_at" json:"started_at"`
	FinishedAt    time.Time `db:"finished_at" json:"finished_at"`
}

type History struct {
	db *sqlx.DB
}

func NewHistory(db *sqlx.DB) (*History, error) {
	if _, err := db.Exec(historySchema); err != nil {
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &History{db: db}, nil
}

// Record inserts one settled pass.
func (h *History) Record(rec *PassRecord) error {
	_, err := h.db.NamedExec(`
		INSERT INTO sync_passes (id, trigger_kind, outcome, message, actions_total, actions_failed, started_at, finished_at)
		VALUES (:id, :trigger_kind, :outcome, :message, :actions_total, :actions_failed, :started_at, :finished_at)`,
		rec,
	)
	if err != nil {
		return fmt.Errorf("record pass %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns the latest passes, newest first.
func (h *History) Recent(limit int) ([]*PassRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []*PassRecord
	err := h.db.Select(&records, `
		SELECT id, trigger_kind, outcome, message, actions_total, actions_failed, started_at, finished_at
		FROM sync_passes ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("load pass history: %w", err)
	}
	return records, nil
}

func (h *History) Close() error {
	return h.db.Close()
}
