package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/halkadev/halka/database"
	"github.com/halkadev/halka/models"
	"github.com/halkadev/halka/pkg"
)

// sqliteRoomRepo, RoomRepository interface'inin SQLite implementasyonu.
type sqliteRoomRepo struct {
	db database.TxQuerier
}

// NewSQLiteRoomRepo, constructor.
func NewSQLiteRoomRepo(db database.TxQuerier) RoomRepository {
	return &sqliteRoomRepo{db: db}
}

func (r *sqliteRoomRepo) Create(ctx context.Context, room *models.Room) error {
	query := `
		INSERT INTO rooms (id, name, kind, visibility, creator_id, admission_policy, capacity)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		room.Name,
		room.Kind,
		room.Visibility,
		room.CreatorID,
		room.Policy,
		room.Capacity,
	).Scan(&room.ID, &room.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	return nil
}

func (r *sqliteRoomRepo) GetByID(ctx context.Context, id string) (*models.Room, error) {
	query := `
		SELECT id, name, kind, visibility, creator_id, admission_policy, capacity, created_at
		FROM rooms WHERE id = ?`

	room := &models.Room{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&room.ID, &room.Name, &room.Kind, &room.Visibility,
		&room.CreatorID, &room.Policy, &room.Capacity, &room.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room by id: %w", err)
	}

	return room, nil
}

func (r *sqliteRoomRepo) ListVisible(ctx context.Context, userID string) ([]models.Room, error) {
	// Public odalar herkese görünür; private odalar sadece üyelere.
	// Oda kurucusu participants'ta her zaman vardır (oluşturma sırasında eklenir).
	query := `
		SELECT DISTINCT r.id, r.name, r.kind, r.visibility, r.creator_id, r.admission_policy, r.capacity, r.created_at
		FROM rooms r
		LEFT JOIN participants p ON p.room_id = r.id AND p.user_id = ?
		WHERE r.visibility = 'public' OR p.user_id IS NOT NULL
		ORDER BY r.created_at, r.id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		var room models.Room
		if err := rows.Scan(
			&room.ID, &room.Name, &room.Kind, &room.Visibility,
			&room.CreatorID, &room.Policy, &room.Capacity, &room.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan room row: %w", err)
		}
		rooms = append(rooms, room)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating room rows: %w", err)
	}

	return rooms, nil
}

func (r *sqliteRoomRepo) Update(ctx context.Context, room *models.Room) error {
	// kind kasıtlı olarak güncellenmez — oda tipi oluşturma sonrası değişmez.
	query := `
		UPDATE rooms SET name = ?, visibility = ?, admission_policy = ?, capacity = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		room.Name, room.Visibility, room.Policy, room.Capacity, room.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return pkg.ErrNotFound
	}

	return nil
}

func (r *sqliteRoomRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return pkg.ErrNotFound
	}

	return nil
}
