package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"vigil/internal/types"
)

type ledgerRow struct {
	Handle        string `db:"handle"`
	CandidateID   string `db:"candidate_id"`
	Kind          string `db:"kind"`
	ScheduledAtMs int64  `db:"scheduled_at_ms"`
	SubjectAtMs   int64  `db:"subject_at_ms"`
	Title         string `db:"title"`
	Body          string `db:"body"`
}

func (r ledgerRow) record() types.ScheduledNotificationRecord {
	return types.ScheduledNotificationRecord{
		Handle:      r.Handle,
		CandidateID: r.CandidateID,
		Kind:        types.NotificationKind(r.Kind),
		ScheduledAt: fromMillis(r.ScheduledAtMs),
		SubjectAt:   fromMillis(r.SubjectAtMs),
		Title:       r.Title,
		Body:        r.Body,
	}
}

// LoadLedger returns the persisted ledger ordered by trigger time.
func (s *SQLiteStore) LoadLedger(ctx context.Context) ([]types.ScheduledNotificationRecord, error) {
	var rows []ledgerRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT handle, candidate_id, kind, scheduled_at_ms, subject_at_ms, title, body
		FROM ledger ORDER BY scheduled_at_ms, candidate_id`)
	if err != nil {
		return nil, persistenceError("load ledger", err)
	}
	out := make([]types.ScheduledNotificationRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

// ReplaceLedger atomically replaces the whole ledger with records.
func (s *SQLiteStore) ReplaceLedger(ctx context.Context, records []types.ScheduledNotificationRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return persistenceError("begin ledger replace", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM ledger"); err != nil {
		return persistenceError("clear ledger", err)
	}

	if len(records) > 0 {
		stmt, err := tx.PreparexContext(ctx, `
			INSERT INTO ledger (handle, candidate_id, kind, scheduled_at_ms, subject_at_ms, title, body)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return persistenceError("prepare ledger insert", err)
		}
		defer stmt.Close()

		for _, r := range records {
			_, err := stmt.ExecContext(ctx,
				r.Handle, r.CandidateID, string(r.Kind),
				toMillis(r.ScheduledAt), toMillis(r.SubjectAt), r.Title, r.Body)
			if err != nil {
				return persistenceError("insert ledger record "+r.CandidateID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return persistenceError("commit ledger replace", err)
	}
	return nil
}

// RemoveLedgerRecords deletes the records with the given handles.
func (s *SQLiteStore) RemoveLedgerRecords(ctx context.Context, handles []string) error {
	if len(handles) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM ledger WHERE handle IN (?)", handles)
	if err != nil {
		return persistenceError("build ledger delete", err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return persistenceError("remove ledger records", err)
	}
	return nil
}
