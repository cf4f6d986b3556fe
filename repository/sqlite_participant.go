package repository

import (
	"context"
	"fmt"

	"github.com/halkadev/halka/database"
	"github.com/halkadev/halka/models"
	"github.com/halkadev/halka/pkg"
)

// sqliteParticipantRepo, ParticipantRepository interface'inin SQLite implementasyonu.
type sqliteParticipantRepo struct {
	db database.TxQuerier
}

// NewSQLiteParticipantRepo, constructor.
func NewSQLiteParticipantRepo(db database.TxQuerier) ParticipantRepository {
	return &sqliteParticipantRepo{db: db}
}

func (r *sqliteParticipantRepo) Create(ctx context.Context, p *models.Participant) error {
	query := `
		INSERT INTO participants (room_id, user_id)
		VALUES (?, ?)
		RETURNING joined_at`

	err := r.db.QueryRowContext(ctx, query, p.RoomID, p.UserID).Scan(&p.JoinedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: already a member", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to add participant: %w", err)
	}

	return nil
}

func (r *sqliteParticipantRepo) Delete(ctx context.Context, roomID, userID string) error {
	// RowsAffected kontrolü yok — üye olmayan kullanıcı için leave no-op'tur.
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM participants WHERE room_id = ? AND user_id = ?`, roomID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}
	return nil
}

func (r *sqliteParticipantRepo) Exists(ctx context.Context, roomID, userID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participants WHERE room_id = ? AND user_id = ?`,
		roomID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	return count > 0, nil
}

func (r *sqliteParticipantRepo) CountByRoom(ctx context.Context, roomID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participants WHERE room_id = ?`, roomID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

func (r *sqliteParticipantRepo) ListByRoom(ctx context.Context, roomID string) ([]models.RoomMember, error) {
	query := `
		SELECT p.room_id, p.user_id, p.joined_at, u.username, u.display_name, u.avatar_url
		FROM participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.room_id = ?
		ORDER BY p.joined_at, p.user_id`

	rows, err := r.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var members []models.RoomMember
	for rows.Next() {
		var m models.RoomMember
		if err := rows.Scan(
			&m.RoomID, &m.UserID, &m.JoinedAt,
			&m.Username, &m.DisplayName, &m.AvatarURL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", err)
		}
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participant rows: %w", err)
	}

	return members, nil
}
