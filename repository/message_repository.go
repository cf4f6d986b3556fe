package repository

import (
	"context"

	"github.com/halkadev/halka/models"
)

// MessageRepository, mesaj veritabanı işlemleri için interface.
type MessageRepository interface {
	// Create, mesajı kaydeder. ID ve CreatedAt DB tarafından atanır ve
	// message üzerine geri yazılır.
	Create(ctx context.Context, message *models.Message) error
	// ListRecent, odanın son `limit` mesajını kronolojik sırada
	// (created_at, id) döner — gönderen bilgisi JOIN ile doludur.
	ListRecent(ctx context.Context, roomID string, limit int) ([]models.Message, error)
	// MarkRead, odadaki başka kullanıcılara ait mesajları okundu işaretler.
	MarkRead(ctx context.Context, roomID, readerID string) error
}
