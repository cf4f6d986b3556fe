package repository

import (
	"context"

	"github.com/halkadev/halka/models"
)

// RoomRepository, oda veritabanı işlemleri için interface.
type RoomRepository interface {
	Create(ctx context.Context, room *models.Room) error
	GetByID(ctx context.Context, id string) (*models.Room, error)
	// ListVisible, kullanıcının görebileceği odaları döner:
	// tüm public odalar + kullanıcının üye olduğu private odalar.
	ListVisible(ctx context.Context, userID string) ([]models.Room, error)
	Update(ctx context.Context, room *models.Room) error
	// Delete, odayı siler. FK cascade ile katılımcılar, bekleme kayıtları
	// ve mesajlar da silinir.
	Delete(ctx context.Context, id string) error
}
