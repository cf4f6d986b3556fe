package room

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/halkadev/halka/models"
	"github.com/halkadev/halka/pkg"
	"github.com/halkadev/halka/pkg/email"
	"github.com/halkadev/halka/realtime"
)

// ParticipantStore, admission controller'ın üyelik kayıtları için
// ihtiyaç duyduğu minimal yüzey (repository.ParticipantRepository karşılar).
type ParticipantStore interface {
	Create(ctx context.Context, p *models.Participant) error
	Delete(ctx context.Context, roomID, userID string) error
	Exists(ctx context.Context, roomID, userID string) (bool, error)
	CountByRoom(ctx context.Context, roomID string) (int, error)
}

// WaitingStore, bekleme odası kayıtları için minimal yüzey
// (repository.WaitingRepository karşılar).
type WaitingStore interface {
	CreatePending(ctx context.Context, entry *models.WaitingEntry) error
	GetPending(ctx context.Context, roomID, userID string) (*models.WaitingEntry, error)
	ApproveAndJoin(ctx context.Context, entryID, reviewerID string) (*models.WaitingEntry, error)
	MarkDenied(ctx context.Context, entryID, reviewerID string) (*models.WaitingEntry, error)
	ListPendingByRoom(ctx context.Context, roomID string) ([]models.WaitingEntryWithUser, error)
}

// AdmissionController, oda üyeliği ve bekleme odası akışını yönetir.
//
// Pipeline'ın aksine iyimser değildir: her operasyon store onayını
// bekler ve sonucu ondan sonra yansıtır — üyelik güvenlik sınırıdır,
// yanlış iyimser gösterim kabul edilemez.
type AdmissionController struct {
	participants ParticipantStore
	waiting      WaitingStore
	users        UserLookup
	bus          realtime.Bus
	mailer       email.EmailSender // nil olabilir — email opsiyonel
}

// NewAdmissionController, constructor. mailer nil geçilebilir; bu
// durumda karar email'leri atlanır.
func NewAdmissionController(
	participants ParticipantStore,
	waiting WaitingStore,
	users UserLookup,
	bus realtime.Bus,
	mailer email.EmailSender,
) *AdmissionController {
	return &AdmissionController{
		participants: participants,
		waiting:      waiting,
		users:        users,
		bus:          bus,
		mailer:       mailer,
	}
}

// MembershipStatus, kullanıcının odayla ilişkisini döner.
// Oda kurucusu participant satırı olmasa bile member sayılır.
func (a *AdmissionController) MembershipStatus(ctx context.Context, room *models.Room, userID string) (models.MembershipState, error) {
	if room.CreatorID == userID {
		return models.MembershipMember, nil
	}

	exists, err := a.participants.Exists(ctx, room.ID, userID)
	if err != nil {
		return "", fmt.Errorf("failed to check membership: %w", err)
	}
	if exists {
		return models.MembershipMember, nil
	}

	_, err = a.waiting.GetPending(ctx, room.ID, userID)
	if err == nil {
		return models.MembershipPending, nil
	}
	if !errors.Is(err, pkg.ErrNotFound) {
		return "", fmt.Errorf("failed to check pending request: %w", err)
	}

	return models.MembershipNotJoined, nil
}

// RequestJoin, katılım isteğini odanın politikasına göre işler.
//
// open: kullanıcı anında üye olur (joined).
// requires_approval: bekleme kaydı oluşur (pending), kurucu karar verir.
//
// İdempotenttir: zaten üye olan kullanıcı joined, zaten bekleyen
// kullanıcı pending alır — tekrar istek hata değildir. Kapasitesi dolu
// odaya katılım ErrForbidden ile reddedilir.
func (a *AdmissionController) RequestJoin(ctx context.Context, room *models.Room, userID string) (models.JoinResult, error) {
	status, err := a.MembershipStatus(ctx, room, userID)
	if err != nil {
		return "", err
	}
	switch status {
	case models.MembershipMember:
		return models.JoinResultJoined, nil
	case models.MembershipPending:
		return models.JoinResultPending, nil
	}

	if err := a.checkCapacity(ctx, room); err != nil {
		return "", err
	}

	if room.Policy == models.AdmissionRequiresApproval {
		entry := &models.WaitingEntry{RoomID: room.ID, UserID: userID}
		if err := a.waiting.CreatePending(ctx, entry); err != nil {
			// Eşzamanlı çift istek: partial unique index ihlali —
			// mevcut pending kayıt geçerlidir, hata değil.
			if errors.Is(err, pkg.ErrAlreadyExists) {
				return models.JoinResultPending, nil
			}
			return "", err
		}
		a.bus.Publish(room.ID, realtime.Change{
			Table: realtime.TableWaitingEntries, Op: realtime.OpInsert, Row: entry,
		})
		return models.JoinResultPending, nil
	}

	p := &models.Participant{RoomID: room.ID, UserID: userID}
	if err := a.participants.Create(ctx, p); err != nil {
		if errors.Is(err, pkg.ErrAlreadyExists) {
			return models.JoinResultJoined, nil
		}
		return "", err
	}
	a.bus.Publish(room.ID, realtime.Change{
		Table: realtime.TableParticipants, Op: realtime.OpInsert, Row: p,
	})
	return models.JoinResultJoined, nil
}

// Approve, bekleyen isteği onaylar: entry approved olur VE kullanıcı
// participant olarak eklenir — ikisi store katmanında tek transaction'da
// çalışır, "onaylandı ama üye değil" ara durumu oluşamaz.
//
// Sadece oda kurucusu onaylayabilir. Entry zaten karara bağlanmışsa
// ErrNotFound döner.
func (a *AdmissionController) Approve(ctx context.Context, room *models.Room, entryID, reviewerID string) (*models.WaitingEntry, error) {
	if room.CreatorID != reviewerID {
		return nil, fmt.Errorf("%w: only the room creator can approve requests", pkg.ErrForbidden)
	}

	if err := a.checkCapacity(ctx, room); err != nil {
		return nil, err
	}

	entry, err := a.waiting.ApproveAndJoin(ctx, entryID, reviewerID)
	if err != nil {
		return nil, err
	}

	a.bus.Publish(room.ID, realtime.Change{
		Table: realtime.TableWaitingEntries, Op: realtime.OpUpdate, Row: entry,
	})
	a.bus.Publish(room.ID, realtime.Change{
		Table: realtime.TableParticipants, Op: realtime.OpInsert,
		Row: &models.Participant{RoomID: entry.RoomID, UserID: entry.UserID},
	})

	a.notifyDecision(entry.UserID, room.Name, true)
	return entry, nil
}

// Deny, bekleyen isteği reddeder. Sadece oda kurucusu reddedebilir.
func (a *AdmissionController) Deny(ctx context.Context, room *models.Room, entryID, reviewerID string) (*models.WaitingEntry, error) {
	if room.CreatorID != reviewerID {
		return nil, fmt.Errorf("%w: only the room creator can deny requests", pkg.ErrForbidden)
	}

	entry, err := a.waiting.MarkDenied(ctx, entryID, reviewerID)
	if err != nil {
		return nil, err
	}

	a.bus.Publish(room.ID, realtime.Change{
		Table: realtime.TableWaitingEntries, Op: realtime.OpUpdate, Row: entry,
	})

	a.notifyDecision(entry.UserID, room.Name, false)
	return entry, nil
}

// Leave, kullanıcıyı odadan çıkarır. Üye olmayan kullanıcı için
// no-op'tur — ayrılma her zaman başarılıdır.
func (a *AdmissionController) Leave(ctx context.Context, room *models.Room, userID string) error {
	if err := a.participants.Delete(ctx, room.ID, userID); err != nil {
		return err
	}
	a.bus.Publish(room.ID, realtime.Change{
		Table: realtime.TableParticipants, Op: realtime.OpDelete,
		Row: &models.Participant{RoomID: room.ID, UserID: userID},
	})
	return nil
}

// ListPending, odanın bekleyen isteklerini istek sırasına göre döner.
// Sadece oda kurucusu görebilir.
func (a *AdmissionController) ListPending(ctx context.Context, room *models.Room, callerID string) ([]models.WaitingEntryWithUser, error) {
	if room.CreatorID != callerID {
		return nil, fmt.Errorf("%w: only the room creator can view pending requests", pkg.ErrForbidden)
	}
	return a.waiting.ListPendingByRoom(ctx, room.ID)
}

// checkCapacity, oda dolu mu kontrol eder. Capacity 0 → sınırsız.
func (a *AdmissionController) checkCapacity(ctx context.Context, room *models.Room) error {
	if room.Capacity <= 0 {
		return nil
	}
	count, err := a.participants.CountByRoom(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("failed to count participants: %w", err)
	}
	if count >= room.Capacity {
		return fmt.Errorf("%w: room is full", pkg.ErrForbidden)
	}
	return nil
}

// notifyDecision, karar email'ini best-effort gönderir: kullanıcının
// email'i yoksa veya gönderim başarısızsa sadece loglanır — karar
// zaten store'a yazılmıştır, email ikincil kanaldır.
func (a *AdmissionController) notifyDecision(userID, roomName string, approved bool) {
	if a.mailer == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		user, err := a.users.GetByID(ctx, userID)
		if err != nil || user.Email == nil {
			return
		}

		if err := a.mailer.SendAdmissionDecision(ctx, *user.Email, roomName, approved); err != nil {
			log.Printf("[admission] failed to send decision email to %s: %v", userID, err)
		}
	}()
}
