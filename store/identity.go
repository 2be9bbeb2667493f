package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"
)

// GetOrCreateUserID resolves a (channel, senderID) pair to a stable user id,
// creating the user and identity rows on first sight.
//
// The second return value is false when the store is disabled or a storage
// error occurred; errors are logged here and never propagated.
//
// Creation is conflict-safe: the identity insert relies on the
// (channel, sender_id) primary key with ON CONFLICT DO NOTHING, so two
// concurrent first-time resolutions of the same pair converge on one row.
func (d *DB) GetOrCreateUserID(ctx context.Context, channel, senderID string) (int64, bool) {
	c := d.conn()
	if c == nil {
		return 0, false
	}

	id, err := lookupUserID(ctx, c, channel, senderID)
	if err == nil {
		return id, true
	}
	if !errors.Is(err, sql.ErrNoRows) {
		slog.Error("store: identity lookup failed", "channel", channel, "sender", senderID, "err", err)
		return 0, false
	}

	id, err = d.createUserID(ctx, channel, senderID)
	if err != nil {
		slog.Error("store: identity create failed", "channel", channel, "sender", senderID, "err", err)
		return 0, false
	}
	return id, true
}

func lookupUserID(ctx context.Context, c *sql.DB, channel, senderID string) (int64, error) {
	var id int64
	err := c.QueryRowContext(ctx,
		"SELECT user_id FROM user_identities WHERE channel = ? AND sender_id = ?",
		channel, senderID,
	).Scan(&id)
	return id, err
}

// createUserID inserts a user row and its identity row in one transaction.
// When the identity insert hits the primary-key conflict (a concurrent
// resolver won the race), the transaction is rolled back and the winner's
// user id is returned instead.
func (d *DB) createUserID(ctx context.Context, channel, senderID string) (int64, error) {
	c := d.conn()
	if c == nil {
		return 0, errors.New("store disabled")
	}

	tx, err := c.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var userID int64
	err = tx.QueryRowContext(ctx,
		"INSERT INTO users (created_at) VALUES (?) RETURNING id",
		time.Now().UnixMilli(),
	).Scan(&userID)
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO user_identities (user_id, channel, sender_id) VALUES (?, ?, ?)
		 ON CONFLICT(channel, sender_id) DO NOTHING`,
		userID, channel, senderID,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		// Lost the race: drop our orphan user row and return the winner's id.
		tx.Rollback()
		return lookupUserID(ctx, c, channel, senderID)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	slog.Info("store: created user", "userID", userID, "channel", channel, "sender", senderID)
	return userID, nil
}
