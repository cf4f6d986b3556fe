package services

import (
	"context"
	"fmt"

	"github.com/halkadev/halka/models"
	"github.com/halkadev/halka/pkg"
	"github.com/halkadev/halka/realtime"
	"github.com/halkadev/halka/repository"
	"github.com/halkadev/halka/room"
)

// MessageService, mesaj operasyonlarının dışa açık API'si.
//
// İstemci tarafındaki iyimser pipeline (room.Pipeline) store'a bu
// service üzerinden değil doğrudan repository üzerinden gider; bu
// service HTTP istemcileri için üyelik kontrolü ve bus yayınını sarar.
type MessageService interface {
	// List, odanın son mesajlarını kronolojik sırada döner. Üye olmayan
	// kullanıcı okuyamaz.
	List(ctx context.Context, roomID, userID string, limit int) ([]models.Message, error)
	// Create, mesajı kaydeder ve odanın bus kanalında yayınlar.
	Create(ctx context.Context, roomID, userID string, req *models.CreateMessageRequest) (*models.Message, error)
	// MarkRead, odadaki başkalarına ait mesajları okundu işaretler.
	MarkRead(ctx context.Context, roomID, userID string) error
}

// messageService, MessageService implementasyonu.
type messageService struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	roomRepo    repository.RoomRepository
	admission   *room.AdmissionController
	bus         realtime.Bus
}

// NewMessageService, constructor.
func NewMessageService(
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	roomRepo repository.RoomRepository,
	admission *room.AdmissionController,
	bus realtime.Bus,
) MessageService {
	return &messageService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		roomRepo:    roomRepo,
		admission:   admission,
		bus:         bus,
	}
}

func (s *messageService) List(ctx context.Context, roomID, userID string, limit int) ([]models.Message, error) {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.messageRepo.ListRecent(ctx, roomID, limit)
}

func (s *messageService) Create(ctx context.Context, roomID, userID string, req *models.CreateMessageRequest) (*models.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}

	message := &models.Message{
		RoomID: roomID,
		UserID: userID,
		Body:   req.Body,
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}

	// Gönderen bilgisi event'e gömülür — aboneler ikinci lookup yapmaz.
	if sender, err := s.userRepo.GetByID(ctx, userID); err == nil {
		sender.PasswordHash = ""
		message.Sender = sender
	}

	s.bus.Publish(roomID, realtime.Change{
		Table: realtime.TableMessages, Op: realtime.OpInsert, Row: message,
	})

	return message, nil
}

func (s *messageService) MarkRead(ctx context.Context, roomID, userID string) error {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return err
	}
	return s.messageRepo.MarkRead(ctx, roomID, userID)
}

func (s *messageService) requireMember(ctx context.Context, roomID, userID string) error {
	r, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	status, err := s.admission.MembershipStatus(ctx, r, userID)
	if err != nil {
		return err
	}
	if status != models.MembershipMember {
		return fmt.Errorf("%w: not a member of this room", pkg.ErrForbidden)
	}
	return nil
}
