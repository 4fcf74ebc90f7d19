// Package store persists draft sessions and picks to Postgres. Persistence is
// write-through from the session App; the in-memory state stays authoritative
// and a write failure never blocks a draft.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/mcdev12/draftroom/go/internal/sqlutil"
)

// Store implements the session App's Repository against Postgres via lib/pq.
type Store struct {
	db *sql.DB
}

// NewStore creates a Postgres-backed session store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertSession writes a newly created session row. Teams are stored as JSONB
// since nothing queries them relationally.
func (s *Store) InsertSession(ctx context.Context, session *models.DraftSession) error {
	teams, err := json.Marshal(session.Teams)
	if err != nil {
		return fmt.Errorf("marshal teams: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO draft_sessions (
			id, team_count, total_rounds, user_slot, sync_mode, status,
			current_pick, teams, sync_error_reason, created_at, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		session.ID,
		session.TeamCount,
		session.TotalRounds,
		session.UserSlot,
		string(session.SyncMode),
		string(session.Status),
		session.CurrentPick,
		teams,
		sqlutil.ToSqlString(session.SyncErrorReason),
		session.CreatedAt,
		sqlutil.ToSqlTime(session.StartedAt),
		sqlutil.ToSqlTime(session.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// UpdateSessionState syncs the mutable columns after a status or pointer
// change.
func (s *Store) UpdateSessionState(ctx context.Context, session *models.DraftSession) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE draft_sessions
		SET status = $2,
		    current_pick = $3,
		    sync_error_reason = $4,
		    started_at = $5,
		    completed_at = $6
		WHERE id = $1`,
		session.ID,
		string(session.Status),
		session.CurrentPick,
		sqlutil.ToSqlString(session.SyncErrorReason),
		sqlutil.ToSqlTime(session.StartedAt),
		sqlutil.ToSqlTime(session.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("update session state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session state rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update session state: session %s not found", session.ID)
	}
	return nil
}

// InsertPick writes the pick and the session's advanced pointer in one
// transaction so the ledger and pointer cannot diverge on disk.
func (s *Store) InsertPick(ctx context.Context, session *models.DraftSession, pick models.Pick) error {
	return sqlutil.Run(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO draft_picks (
				session_id, pick_number, round, player_id, player_name,
				player_position, source, recorded_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			session.ID,
			pick.Number,
			pick.Round,
			pick.Player.ID,
			pick.Player.Name,
			pick.Player.Position,
			string(pick.Source),
			pick.RecordedAt,
		)
		if err != nil {
			return fmt.Errorf("insert pick: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE draft_sessions
			SET status = $2, current_pick = $3, completed_at = $4
			WHERE id = $1`,
			session.ID,
			string(session.Status),
			session.CurrentPick,
			sqlutil.ToSqlTime(session.CompletedAt),
		)
		if err != nil {
			return fmt.Errorf("advance session: %w", err)
		}
		return nil
	})
}
