package services

import (
	"context"
	"fmt"
	"log"

	"github.com/halkadev/halka/models"
	"github.com/halkadev/halka/pkg"
	"github.com/halkadev/halka/realtime"
	"github.com/halkadev/halka/repository"
	"github.com/halkadev/halka/room"
)

// RoomService, oda CRUD'u ve üyelik akışının dışa açık API'si.
// Üyelik/bekleme odası kuralları room.AdmissionController'da yaşar —
// bu service onları oda lookup'ı ve görünürlük kontrolüyle sarar.
type RoomService interface {
	Create(ctx context.Context, creatorID string, req *models.CreateRoomRequest) (*models.Room, error)
	// Get, odayı ve çağıranın üyelik durumunu döner. Private odalar
	// üye olmayanlara ErrNotFound olarak görünür — varlıkları sızdırılmaz.
	Get(ctx context.Context, roomID, userID string) (*models.Room, models.MembershipState, error)
	List(ctx context.Context, userID string) ([]models.Room, error)
	Update(ctx context.Context, roomID, userID string, req *models.UpdateRoomRequest) (*models.Room, error)
	Delete(ctx context.Context, roomID, userID string) error

	Join(ctx context.Context, roomID, userID string) (models.JoinResult, error)
	Leave(ctx context.Context, roomID, userID string) error
	Members(ctx context.Context, roomID, userID string) ([]models.RoomMember, error)
	PendingEntries(ctx context.Context, roomID, callerID string) ([]models.WaitingEntryWithUser, error)
	Approve(ctx context.Context, roomID, entryID, reviewerID string) (*models.WaitingEntry, error)
	Deny(ctx context.Context, roomID, entryID, reviewerID string) (*models.WaitingEntry, error)
}

// roomService, RoomService implementasyonu.
type roomService struct {
	roomRepo        repository.RoomRepository
	participantRepo repository.ParticipantRepository
	admission       *room.AdmissionController
	bus             realtime.Bus
}

// NewRoomService, constructor.
func NewRoomService(
	roomRepo repository.RoomRepository,
	participantRepo repository.ParticipantRepository,
	admission *room.AdmissionController,
	bus realtime.Bus,
) RoomService {
	return &roomService{
		roomRepo:        roomRepo,
		participantRepo: participantRepo,
		admission:       admission,
		bus:             bus,
	}
}

// Create, yeni oda oluşturur. Kurucu otomatik olarak üye yapılır —
// kendi odasının bekleme odasında beklemek anlamsızdır.
func (s *roomService) Create(ctx context.Context, creatorID string, req *models.CreateRoomRequest) (*models.Room, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	r := &models.Room{
		Name:       req.Name,
		Kind:       req.Kind,
		Visibility: req.Visibility,
		CreatorID:  creatorID,
		Policy:     req.Policy,
		Capacity:   req.Capacity,
	}

	if err := s.roomRepo.Create(ctx, r); err != nil {
		return nil, err
	}

	p := &models.Participant{RoomID: r.ID, UserID: creatorID}
	if err := s.participantRepo.Create(ctx, p); err != nil {
		// Oda oluştu ama kurucu eklenemedi — kurucu zaten member
		// sayıldığından (creator kuralı) akış bozulmaz, logla ve devam et.
		log.Printf("[room] failed to add creator as participant: %v", err)
	}

	log.Printf("[room] created room %s (%s) by %s", r.ID, r.Kind, creatorID)
	return r, nil
}

func (s *roomService) Get(ctx context.Context, roomID, userID string) (*models.Room, models.MembershipState, error) {
	r, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, "", err
	}

	status, err := s.admission.MembershipStatus(ctx, r, userID)
	if err != nil {
		return nil, "", err
	}

	if r.Visibility == models.RoomVisibilityPrivate && status == models.MembershipNotJoined {
		return nil, "", pkg.ErrNotFound
	}

	return r, status, nil
}

func (s *roomService) List(ctx context.Context, userID string) ([]models.Room, error) {
	rooms, err := s.roomRepo.ListVisible(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []models.Room{}
	}
	return rooms, nil
}

// Update, oda ayarlarını günceller. Sadece kurucu değiştirebilir;
// oda tipi (kind) değişmez.
func (s *roomService) Update(ctx context.Context, roomID, userID string, req *models.UpdateRoomRequest) (*models.Room, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	r, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if r.CreatorID != userID {
		return nil, fmt.Errorf("%w: only the room creator can update settings", pkg.ErrForbidden)
	}

	if req.Name != nil {
		r.Name = *req.Name
	}
	if req.Visibility != nil {
		r.Visibility = *req.Visibility
	}
	if req.Policy != nil {
		r.Policy = *req.Policy
	}
	if req.Capacity != nil {
		r.Capacity = *req.Capacity
	}

	if err := s.roomRepo.Update(ctx, r); err != nil {
		return nil, err
	}

	s.bus.Publish(r.ID, realtime.Change{
		Table: realtime.TableRooms, Op: realtime.OpUpdate, Row: r,
	})
	return r, nil
}

// Delete, odayı siler. Sadece kurucu silebilir; mesajlar, katılımcılar
// ve bekleme kayıtları FK cascade ile birlikte gider.
func (s *roomService) Delete(ctx context.Context, roomID, userID string) error {
	r, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if r.CreatorID != userID {
		return fmt.Errorf("%w: only the room creator can delete the room", pkg.ErrForbidden)
	}

	if err := s.roomRepo.Delete(ctx, roomID); err != nil {
		return err
	}

	s.bus.Publish(roomID, realtime.Change{
		Table: realtime.TableRooms, Op: realtime.OpDelete, Row: r,
	})
	log.Printf("[room] deleted room %s by %s", roomID, userID)
	return nil
}

func (s *roomService) Join(ctx context.Context, roomID, userID string) (models.JoinResult, error) {
	r, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return "", err
	}
	return s.admission.RequestJoin(ctx, r, userID)
}

func (s *roomService) Leave(ctx context.Context, roomID, userID string) error {
	r, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	return s.admission.Leave(ctx, r, userID)
}

func (s *roomService) Members(ctx context.Context, roomID, userID string) ([]models.RoomMember, error) {
	r, status, err := s.Get(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if status != models.MembershipMember {
		return nil, fmt.Errorf("%w: not a member of this room", pkg.ErrForbidden)
	}

	members, err := s.participantRepo.ListByRoom(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []models.RoomMember{}
	}
	return members, nil
}

func (s *roomService) PendingEntries(ctx context.Context, roomID, callerID string) ([]models.WaitingEntryWithUser, error) {
	r, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return s.admission.ListPending(ctx, r, callerID)
}

func (s *roomService) Approve(ctx context.Context, roomID, entryID, reviewerID string) (*models.WaitingEntry, error) {
	r, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return s.admission.Approve(ctx, r, entryID, reviewerID)
}

func (s *roomService) Deny(ctx context.Context, roomID, entryID, reviewerID string) (*models.WaitingEntry, error) {
	r, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return s.admission.Deny(ctx, r, entryID, reviewerID)
}
