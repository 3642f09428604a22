/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Seednode/spotduel/games/spotdiff"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const schema = `CREATE TABLE IF NOT EXISTS round_results (
	id         BIGSERIAL PRIMARY KEY,
	room_id    TEXT        NOT NULL,
	level      INTEGER     NOT NULL,
	reason     TEXT        NOT NULL,
	scores     JSONB       NOT NULL,
	winners    TEXT        NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	ended_at   TIMESTAMPTZ NOT NULL
)`

const insertRow = `INSERT INTO round_results
	(room_id, level, reason, scores, winners, started_at, ended_at)
	VALUES (:room_id, :level, :reason, :scores, :winners, :started_at, :ended_at)`

// Row is one stored round.
type Row struct {
	ID        int64     `db:"id"`
	RoomID    string    `db:"room_id"`
	Level     int       `db:"level"`
	Reason    string    `db:"reason"`
	Scores    string    `db:"scores"`
	Winners   string    `db:"winners"`
	StartedAt time.Time `db:"started_at"`
	EndedAt   time.Time `db:"ended_at"`
}

// NewRow flattens a round result. Scores become a JSON object and winners a
// comma separated list.
func NewRow(result spotdiff.RoundResult) (Row, error) {
	scores := result.Scores
	if scores == nil {
		scores = map[string]int{}
	}

	data, err := json.Marshal(scores)
	if err != nil {
		return Row{}, err
	}

	return Row{
		RoomID:    result.RoomID,
		Level:     result.Level,
		Reason:    result.Reason,
		Scores:    string(data),
		Winners:   strings.Join(result.Winners, ","),
		StartedAt: result.StartedAt.UTC(),
		EndedAt:   result.EndedAt.UTC(),
	}, nil
}

type Store struct {
	db *sqlx.DB
}

// Open connects to Postgres and creates the results table if needed.
func Open(ctx context.Context, url string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Insert(ctx context.Context, row Row) error {
	_, err := s.db.NamedExecContext(ctx, insertRow, row)

	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
