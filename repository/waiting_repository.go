package repository

import (
	"context"

	"github.com/halkadev/halka/models"
)

// WaitingRepository, bekleme odası (waiting room) kayıtları için
// veritabanı işlemleri.
//
// Durum makinesi: pending → approved / denied. approved ve denied
// kayıtlar geçmiş olarak tutulur; teklik sadece pending için zorlanır
// (partial unique index).
type WaitingRepository interface {
	// CreatePending, yeni bir bekleyen katılım isteği oluşturur.
	// Aynı (room, user) için zaten pending kayıt varsa pkg.ErrAlreadyExists döner.
	CreatePending(ctx context.Context, entry *models.WaitingEntry) error
	GetByID(ctx context.Context, id string) (*models.WaitingEntry, error)
	// GetPending, kullanıcının odadaki bekleyen isteğini döner (yoksa ErrNotFound).
	GetPending(ctx context.Context, roomID, userID string) (*models.WaitingEntry, error)
	// ApproveAndJoin, entry'yi approved yapar VE kullanıcıyı participants'a
	// ekler — ikisi tek transaction'da çalışır. Entry pending değilse
	// pkg.ErrNotFound döner (karar zaten verilmiş).
	ApproveAndJoin(ctx context.Context, entryID, reviewerID string) (*models.WaitingEntry, error)
	// MarkDenied, entry'yi denied yapar. Entry pending değilse pkg.ErrNotFound döner.
	MarkDenied(ctx context.Context, entryID, reviewerID string) (*models.WaitingEntry, error)
	// ListPendingByRoom, odadaki bekleyen istekleri istek sırasına göre döner.
	ListPendingByRoom(ctx context.Context, roomID string) ([]models.WaitingEntryWithUser, error)
}
