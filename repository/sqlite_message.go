package repository

import (
	"context"
	"fmt"

	"github.com/halkadev/halka/database"
	"github.com/halkadev/halka/models"
)

// sqliteMessageRepo, MessageRepository interface'inin SQLite implementasyonu.
type sqliteMessageRepo struct {
	db database.TxQuerier
}

// NewSQLiteMessageRepo, constructor.
func NewSQLiteMessageRepo(db database.TxQuerier) MessageRepository {
	return &sqliteMessageRepo{db: db}
}

func (r *sqliteMessageRepo) Create(ctx context.Context, message *models.Message) error {
	query := `
		INSERT INTO messages (id, room_id, user_id, body)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		message.RoomID,
		message.UserID,
		message.Body,
	).Scan(&message.ID, &message.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

func (r *sqliteMessageRepo) ListRecent(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	// Son N mesajı almak için önce DESC ile kes, sonra dışta ASC'e çevir.
	// LEFT JOIN: gönderen silinmişse mesaj yine listelenir (sender nil kalır).
	query := `
		SELECT m.id, m.room_id, m.user_id, m.body, m.is_read, m.created_at,
		       u.id, u.username, u.display_name, u.avatar_url, u.status, u.created_at
		FROM (
			SELECT id, room_id, user_id, body, is_read, created_at
			FROM messages
			WHERE room_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		) m
		LEFT JOIN users u ON u.id = m.user_id
		ORDER BY m.created_at, m.id`

	rows, err := r.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var m models.Message
		// LEFT JOIN yüzünden user kolonları NULL olabilir — pointer'lara scan et.
		var uID, uUsername *string
		var uDisplayName, uAvatarURL *string
		var uStatus *models.UserStatus
		var uCreatedAt *string

		if err := rows.Scan(
			&m.ID, &m.RoomID, &m.UserID, &m.Body, &m.IsRead, &m.CreatedAt,
			&uID, &uUsername, &uDisplayName, &uAvatarURL, &uStatus, &uCreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}

		if uID != nil && uUsername != nil {
			m.Sender = &models.User{
				ID:          *uID,
				Username:    *uUsername,
				DisplayName: uDisplayName,
				AvatarURL:   uAvatarURL,
			}
			if uStatus != nil {
				m.Sender.Status = *uStatus
			}
		}

		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	return messages, nil
}

func (r *sqliteMessageRepo) MarkRead(ctx context.Context, roomID, readerID string) error {
	// Kullanıcının kendi mesajları zaten "okunmuş" sayılır — sadece
	// başkalarının mesajları işaretlenir.
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET is_read = 1
		WHERE room_id = ? AND user_id != ? AND is_read = 0`,
		roomID, readerID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}
