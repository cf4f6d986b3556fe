package room_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/halkadev/halka/models"
	"github.com/halkadev/halka/pkg"
	"github.com/halkadev/halka/room"
)

// ─── MessageStore fake ───

// fakeMessageStore, in-memory mesaj store'u. failCreate set edilirse
// Create hata döner — başarısız gönderim senaryoları için.
type fakeMessageStore struct {
	mu         sync.Mutex
	messages   []models.Message
	nextID     int
	failCreate error
	createWait chan struct{} // nil değilse Create bu kanal kapanana kadar bekler
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{}
}

func (s *fakeMessageStore) Create(ctx context.Context, message *models.Message) error {
	if s.createWait != nil {
		<-s.createWait
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failCreate != nil {
		return s.failCreate
	}

	s.nextID++
	message.ID = fmt.Sprintf("msg-%d", s.nextID)
	message.CreatedAt = time.Now().UTC()
	s.messages = append(s.messages, *message)
	return nil
}

func (s *fakeMessageStore) ListRecent(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Message
	for _, m := range s.messages {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// ─── UserLookup fake ───

type fakeUserLookup struct {
	mu    sync.Mutex
	users map[string]*models.User
	calls int
}

func newFakeUserLookup(users ...*models.User) *fakeUserLookup {
	m := make(map[string]*models.User)
	for _, u := range users {
		m[u.ID] = u
	}
	return &fakeUserLookup{users: m}
}

func (f *fakeUserLookup) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("%w: user not found", pkg.ErrNotFound)
}

// ─── ParticipantStore fake ───

type fakeParticipantStore struct {
	mu      sync.Mutex
	members map[string]map[string]bool // roomID → userID set
}

func newFakeParticipantStore() *fakeParticipantStore {
	return &fakeParticipantStore{members: make(map[string]map[string]bool)}
}

func (s *fakeParticipantStore) Create(ctx context.Context, p *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.members[p.RoomID] == nil {
		s.members[p.RoomID] = make(map[string]bool)
	}
	if s.members[p.RoomID][p.UserID] {
		return fmt.Errorf("%w: already a member", pkg.ErrAlreadyExists)
	}
	s.members[p.RoomID][p.UserID] = true
	p.JoinedAt = time.Now().UTC()
	return nil
}

func (s *fakeParticipantStore) Delete(ctx context.Context, roomID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members[roomID], userID)
	return nil
}

func (s *fakeParticipantStore) Exists(ctx context.Context, roomID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[roomID][userID], nil
}

func (s *fakeParticipantStore) CountByRoom(ctx context.Context, roomID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members[roomID]), nil
}

func (s *fakeParticipantStore) ListByRoom(ctx context.Context, roomID string) ([]models.RoomMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.RoomMember{}
	for userID := range s.members[roomID] {
		out = append(out, models.RoomMember{
			Participant: models.Participant{RoomID: roomID, UserID: userID},
			Username:    userID,
		})
	}
	return out, nil
}

// ─── WaitingStore fake ───

// fakeWaitingStore, bekleme kayıtlarını in-memory tutar ve store
// katmanının atomiklik sözleşmesini taklit eder: ApproveAndJoin hem
// kaydı günceller hem katılımcı ekler, karara bağlanmış kayıt
// ikinci kez karara bağlanamaz.
type fakeWaitingStore struct {
	mu           sync.Mutex
	entries      map[string]*models.WaitingEntry
	participants *fakeParticipantStore
	nextID       int
}

func newFakeWaitingStore(participants *fakeParticipantStore) *fakeWaitingStore {
	return &fakeWaitingStore{
		entries:      make(map[string]*models.WaitingEntry),
		participants: participants,
	}
}

func (s *fakeWaitingStore) CreatePending(ctx context.Context, entry *models.WaitingEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.RoomID == entry.RoomID && e.UserID == entry.UserID && e.Status == models.WaitingPending {
			return fmt.Errorf("%w: join request already pending", pkg.ErrAlreadyExists)
		}
	}

	s.nextID++
	entry.ID = fmt.Sprintf("wait-%d", s.nextID)
	entry.Status = models.WaitingPending
	entry.RequestedAt = time.Now().UTC()
	stored := *entry
	s.entries[entry.ID] = &stored
	return nil
}

func (s *fakeWaitingStore) GetPending(ctx context.Context, roomID, userID string) (*models.WaitingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.RoomID == roomID && e.UserID == userID && e.Status == models.WaitingPending {
			copied := *e
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: no pending request", pkg.ErrNotFound)
}

func (s *fakeWaitingStore) ApproveAndJoin(ctx context.Context, entryID, reviewerID string) (*models.WaitingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[entryID]
	if !ok || e.Status != models.WaitingPending {
		return nil, fmt.Errorf("%w: waiting entry not found or already decided", pkg.ErrNotFound)
	}

	now := time.Now().UTC()
	e.Status = models.WaitingApproved
	e.ReviewedBy = &reviewerID
	e.ReviewedAt = &now

	if s.participants.members[e.RoomID] == nil {
		s.participants.members[e.RoomID] = make(map[string]bool)
	}
	s.participants.members[e.RoomID][e.UserID] = true

	copied := *e
	return &copied, nil
}

func (s *fakeWaitingStore) MarkDenied(ctx context.Context, entryID, reviewerID string) (*models.WaitingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[entryID]
	if !ok || e.Status != models.WaitingPending {
		return nil, fmt.Errorf("%w: waiting entry not found or already decided", pkg.ErrNotFound)
	}

	now := time.Now().UTC()
	e.Status = models.WaitingDenied
	e.ReviewedBy = &reviewerID
	e.ReviewedAt = &now

	copied := *e
	return &copied, nil
}

func (s *fakeWaitingStore) ListPendingByRoom(ctx context.Context, roomID string) ([]models.WaitingEntryWithUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.WaitingEntryWithUser{}
	for _, e := range s.entries {
		if e.RoomID == roomID && e.Status == models.WaitingPending {
			out = append(out, models.WaitingEntryWithUser{
				WaitingEntry: *e,
				Username:     e.UserID,
			})
		}
	}
	return out, nil
}

// ─── Device provider fake ───

// fakeTrack, CaptureTrack implementasyonu. Altta gerçek bir pion
// track'i taşır — AddPeer/SwitchDevice gerçek RTPSender'larla çalışır.
type fakeTrack struct {
	mu       sync.Mutex
	id       string
	kind     room.TrackKind
	deviceID string
	enabled  bool
	stopped  bool
	local    webrtc.TrackLocal
}

func (t *fakeTrack) ID() string          { return t.id }
func (t *fakeTrack) Kind() room.TrackKind { return t.kind }
func (t *fakeTrack) DeviceID() string    { return t.deviceID }

func (t *fakeTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *fakeTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *fakeTrack) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	return nil
}

func (t *fakeTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *fakeTrack) Local() webrtc.TrackLocal { return t.local }

// fakeProvider, DeviceProvider implementasyonu. failKinds'taki track
// tipleri için OpenTrack hata döner.
type fakeProvider struct {
	mu        sync.Mutex
	devices   []room.DeviceInfo
	failKinds map[room.TrackKind]error
	opened    []*fakeTrack
	nextID    int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		devices: []room.DeviceInfo{
			{ID: "mic-1", Kind: room.DeviceAudioInput, Label: "Built-in Microphone"},
			{ID: "mic-2", Kind: room.DeviceAudioInput, Label: "USB Microphone"},
			{ID: "cam-1", Kind: room.DeviceVideoInput, Label: "Built-in Camera"},
		},
		failKinds: make(map[room.TrackKind]error),
	}
}

func (p *fakeProvider) EnumerateDevices(ctx context.Context) ([]room.DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]room.DeviceInfo, len(p.devices))
	copy(out, p.devices)
	return out, nil
}

func (p *fakeProvider) OpenTrack(ctx context.Context, kind room.TrackKind, deviceID string) (room.CaptureTrack, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.failKinds[kind]; err != nil {
		return nil, err
	}

	if deviceID == "" {
		switch kind {
		case room.TrackAudio:
			deviceID = "mic-1"
		case room.TrackVideo:
			deviceID = "cam-1"
		}
	}

	p.nextID++
	id := fmt.Sprintf("track-%d", p.nextID)

	mimeType := webrtc.MimeTypeOpus
	if kind == room.TrackVideo {
		mimeType = webrtc.MimeTypeVP8
	}
	local, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: mimeType}, id, "halka")
	if err != nil {
		return nil, err
	}

	track := &fakeTrack{
		id:       id,
		kind:     kind,
		deviceID: deviceID,
		enabled:  true,
		local:    local,
	}
	p.opened = append(p.opened, track)
	return track, nil
}

// openedTracks, provider'dan o ana kadar açılmış tüm track'leri döner.
func (p *fakeProvider) openedTracks() []*fakeTrack {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*fakeTrack, len(p.opened))
	copy(out, p.opened)
	return out
}

// ─── Test yardımcıları ───

func strPtr(s string) *string { return &s }

func testUser(id string) *models.User {
	return &models.User{
		ID:       id,
		Username: id,
		Email:    strPtr(id + "@example.com"),
	}
}

func testRoom(creatorID string, kind models.RoomKind, policy models.AdmissionPolicy) *models.Room {
	return &models.Room{
		ID:        "room-1",
		Name:      "test room",
		Kind:      kind,
		CreatorID: creatorID,
		Policy:    policy,
	}
}
