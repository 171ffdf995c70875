package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"verdict-cli/internal/model"
	"verdict-cli/internal/rows"
)

// Snapshot is the last known state of a topic: its parents in canonical order and their
// cached variants.
type Snapshot struct {
	ID            string
	Topic         string
	SavedAt       time.Time
	Parents       []rows.Parent
	Perturbations map[string][]model.Perturbation
}

// SaveSnapshot replaces the stored snapshot of topic.
func (s Store) SaveSnapshot(ctx context.Context, topic string, parents []rows.Parent, cache *rows.Cache) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return errors.New("save snapshot: missing topic")
	}
	db, err := s.openSQLite(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range []string{"tests", "perturbations"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+t+` WHERE topic = ?`, topic); err != nil {
			return err
		}
	}
	for i, p := range parents {
		raw, err := json.Marshal(p.Test())
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO tests(topic, id, seq, json) VALUES(?, ?, ?, ?)`,
			topic, p.ID, i, string(raw)); err != nil {
			return err
		}
	}
	for parentID, perts := range cache.Snapshot() {
		for i, pt := range perts {
			raw, err := json.Marshal(pt)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO perturbations(topic, parent_id, type, seq, json) VALUES(?, ?, ?, ?, ?)`,
				topic, parentID, strings.TrimSpace(pt.Type), i, string(raw)); err != nil {
				return err
			}
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO snapshots(topic, id, saved_at_unixms) VALUES(?, ?, ?)`,
		topic, uuid.NewString(), time.Now().UTC().UnixMilli()); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadSnapshot returns the stored snapshot of topic; ok is false when none exists.
func (s Store) LoadSnapshot(ctx context.Context, topic string) (snap Snapshot, ok bool, err error) {
	topic = strings.TrimSpace(topic)
	db, err := s.openSQLite(ctx)
	if err != nil {
		return Snapshot{}, false, err
	}
	defer db.Close()

	var savedMs int64
	err = db.QueryRowContext(ctx, `SELECT id, saved_at_unixms FROM snapshots WHERE topic = ?`, topic).Scan(&snap.ID, &savedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	snap.Topic = topic
	snap.SavedAt = time.UnixMilli(savedMs).UTC()

	tests, err := queryJSON[model.Test](ctx, db, `SELECT json FROM tests WHERE topic = ? ORDER BY seq, id`, topic)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("load snapshot tests: %w", err)
	}
	snap.Parents = rows.ParentsFromTests(tests)

	perts, err := queryJSON[model.Perturbation](ctx, db, `SELECT json FROM perturbations WHERE topic = ? ORDER BY parent_id, seq`, topic)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("load snapshot perturbations: %w", err)
	}
	snap.Perturbations = rows.Group(perts)
	return snap, true, nil
}

func queryJSON[T any](ctx context.Context, db *sql.DB, q string, args ...any) ([]T, error) {
	rs, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	var out []T
	for rs.Next() {
		var raw string
		if err := rs.Scan(&raw); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rs.Err()
}

// ForgetTests removes deleted tests (and their variants and rank) from the stored topic.
func (s Store) ForgetTests(ctx context.Context, topic string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	db, err := s.openSQLite(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tests WHERE topic = ? AND id = ?`, topic, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM perturbations WHERE topic = ? AND parent_id = ?`, topic, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM ranks WHERE topic = ? AND id = ?`, topic, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s Store) SaveTopics(ctx context.Context, topics []model.Topic) error {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM topics`); err != nil {
		return err
	}
	for i, t := range topics {
		raw, err := json.Marshal(t)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO topics(name, seq, json) VALUES(?, ?, ?)`, t.Name, i, string(raw)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s Store) LoadTopics(ctx context.Context) ([]model.Topic, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	out, err := queryJSON[model.Topic](ctx, db, `SELECT json FROM topics ORDER BY seq, name`)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Topic{}
	}
	return out, nil
}

// LoadRanks returns the local manual-order ranks of topic keyed by test id.
func (s Store) LoadRanks(ctx context.Context, topic string) (map[string]string, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rs, err := db.QueryContext(ctx, `SELECT id, rank FROM ranks WHERE topic = ?`, topic)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	out := map[string]string{}
	for rs.Next() {
		var id, rank string
		if err := rs.Scan(&id, &rank); err != nil {
			return nil, err
		}
		out[id] = rank
	}
	return out, rs.Err()
}

// SaveRanks upserts ranks for topic; ids absent from byID keep their rank.
func (s Store) SaveRanks(ctx context.Context, topic string, byID map[string]string) error {
	if len(byID) == 0 {
		return nil
	}
	db, err := s.openSQLite(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for id, rank := range byID {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO ranks(topic, id, rank) VALUES(?, ?, ?)`, topic, id, normalizeRank(rank)); err != nil {
			return err
		}
	}
	return tx.Commit()
}
