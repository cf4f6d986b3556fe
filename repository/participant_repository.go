package repository

import (
	"context"

	"github.com/halkadev/halka/models"
)

// ParticipantRepository, oda üyelik kayıtları için veritabanı işlemleri.
type ParticipantRepository interface {
	// Create, kullanıcıyı odaya ekler. Kullanıcı zaten üyeyse
	// pkg.ErrAlreadyExists döner (PK çakışması).
	Create(ctx context.Context, p *models.Participant) error
	// Delete, kullanıcıyı odadan çıkarır. Üye değilse no-op — leave
	// işlemi idempotenttir.
	Delete(ctx context.Context, roomID, userID string) error
	Exists(ctx context.Context, roomID, userID string) (bool, error)
	CountByRoom(ctx context.Context, roomID string) (int, error)
	// ListByRoom, oda üyelerini kullanıcı görünüm bilgileriyle döner
	// (katılım sırasına göre).
	ListByRoom(ctx context.Context, roomID string) ([]models.RoomMember, error)
}
