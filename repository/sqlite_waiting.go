package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/halkadev/halka/database"
	"github.com/halkadev/halka/models"
	"github.com/halkadev/halka/pkg"
)

// sqliteWaitingRepo, WaitingRepository interface'inin SQLite implementasyonu.
//
// Diğer repository'lerden farklı olarak *sql.DB alır (TxQuerier değil) —
// ApproveAndJoin kendi transaction'ını database.WithTx ile başlatır ve
// bunun için pool'a ihtiyaç duyar.
type sqliteWaitingRepo struct {
	db *sql.DB
}

// NewSQLiteWaitingRepo, constructor.
func NewSQLiteWaitingRepo(db *sql.DB) WaitingRepository {
	return &sqliteWaitingRepo{db: db}
}

func (r *sqliteWaitingRepo) CreatePending(ctx context.Context, entry *models.WaitingEntry) error {
	query := `
		INSERT INTO waiting_entries (id, room_id, user_id, status)
		VALUES (lower(hex(randomblob(8))), ?, ?, 'pending')
		RETURNING id, status, requested_at`

	err := r.db.QueryRowContext(ctx, query, entry.RoomID, entry.UserID).
		Scan(&entry.ID, &entry.Status, &entry.RequestedAt)

	if err != nil {
		// Partial unique index (room_id, user_id) WHERE status='pending'
		// ihlali → kullanıcının zaten bekleyen isteği var.
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: join request already pending", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create waiting entry: %w", err)
	}

	return nil
}

func (r *sqliteWaitingRepo) GetByID(ctx context.Context, id string) (*models.WaitingEntry, error) {
	query := `
		SELECT id, room_id, user_id, status, requested_at, reviewed_by, reviewed_at
		FROM waiting_entries WHERE id = ?`

	entry := &models.WaitingEntry{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&entry.ID, &entry.RoomID, &entry.UserID, &entry.Status,
		&entry.RequestedAt, &entry.ReviewedBy, &entry.ReviewedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get waiting entry: %w", err)
	}

	return entry, nil
}

func (r *sqliteWaitingRepo) GetPending(ctx context.Context, roomID, userID string) (*models.WaitingEntry, error) {
	query := `
		SELECT id, room_id, user_id, status, requested_at, reviewed_by, reviewed_at
		FROM waiting_entries
		WHERE room_id = ? AND user_id = ? AND status = 'pending'`

	entry := &models.WaitingEntry{}
	err := r.db.QueryRowContext(ctx, query, roomID, userID).Scan(
		&entry.ID, &entry.RoomID, &entry.UserID, &entry.Status,
		&entry.RequestedAt, &entry.ReviewedBy, &entry.ReviewedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending entry: %w", err)
	}

	return entry, nil
}

func (r *sqliteWaitingRepo) ApproveAndJoin(ctx context.Context, entryID, reviewerID string) (*models.WaitingEntry, error) {
	entry := &models.WaitingEntry{}
	now := time.Now().UTC()

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		// status = 'pending' koşulu kararı atomik yapar: iki eşzamanlı
		// approve'dan sadece biri satırı günceller, diğeri ErrNotFound alır.
		err := tx.QueryRowContext(ctx, `
			UPDATE waiting_entries
			SET status = 'approved', reviewed_by = ?, reviewed_at = ?
			WHERE id = ? AND status = 'pending'
			RETURNING id, room_id, user_id, status, requested_at, reviewed_by, reviewed_at`,
			reviewerID, now, entryID,
		).Scan(
			&entry.ID, &entry.RoomID, &entry.UserID, &entry.Status,
			&entry.RequestedAt, &entry.ReviewedBy, &entry.ReviewedAt,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return pkg.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to approve waiting entry: %w", err)
		}

		// INSERT OR IGNORE: kullanıcı bu arada başka bir yoldan üye
		// olduysa approve yine başarılıdır.
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO participants (room_id, user_id) VALUES (?, ?)`,
			entry.RoomID, entry.UserID,
		); err != nil {
			return fmt.Errorf("failed to add approved participant: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

func (r *sqliteWaitingRepo) MarkDenied(ctx context.Context, entryID, reviewerID string) (*models.WaitingEntry, error) {
	entry := &models.WaitingEntry{}
	now := time.Now().UTC()

	err := r.db.QueryRowContext(ctx, `
		UPDATE waiting_entries
		SET status = 'denied', reviewed_by = ?, reviewed_at = ?
		WHERE id = ? AND status = 'pending'
		RETURNING id, room_id, user_id, status, requested_at, reviewed_by, reviewed_at`,
		reviewerID, now, entryID,
	).Scan(
		&entry.ID, &entry.RoomID, &entry.UserID, &entry.Status,
		&entry.RequestedAt, &entry.ReviewedBy, &entry.ReviewedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to deny waiting entry: %w", err)
	}

	return entry, nil
}

func (r *sqliteWaitingRepo) ListPendingByRoom(ctx context.Context, roomID string) ([]models.WaitingEntryWithUser, error) {
	query := `
		SELECT w.id, w.room_id, w.user_id, w.status, w.requested_at, w.reviewed_by, w.reviewed_at,
		       u.username, u.display_name, u.avatar_url
		FROM waiting_entries w
		JOIN users u ON u.id = w.user_id
		WHERE w.room_id = ? AND w.status = 'pending'
		ORDER BY w.requested_at, w.id`

	rows, err := r.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending entries: %w", err)
	}
	defer rows.Close()

	// nil slice yerine boş slice — JSON'da null değil [] dönsün.
	entries := []models.WaitingEntryWithUser{}
	for rows.Next() {
		var e models.WaitingEntryWithUser
		if err := rows.Scan(
			&e.ID, &e.RoomID, &e.UserID, &e.Status,
			&e.RequestedAt, &e.ReviewedBy, &e.ReviewedAt,
			&e.Username, &e.DisplayName, &e.AvatarURL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan waiting entry row: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating waiting entry rows: %w", err)
	}

	return entries, nil
}
