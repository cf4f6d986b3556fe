package room

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/halkadev/halka/models"
	"github.com/halkadev/halka/pkg"
	"github.com/halkadev/halka/realtime"
)

// RosterStore, üye listesini okumak için minimal yüzey
// (repository.ParticipantRepository karşılar).
type RosterStore interface {
	ListByRoom(ctx context.Context, roomID string) ([]models.RoomMember, error)
}

// Notifier, kullanıcıya gösterilecek geçici (dismissible) hata
// mesajları için callback. Controller hiçbir hata için panic atmaz —
// kullanıcıya dokunan her sorun buradan akar.
type Notifier func(message string)

// refreshTimeout: bus callback'lerinden tetiklenen store okumaları
// için üst sınır — pump goroutine'i süresiz bloklanmasın.
const refreshTimeout = 10 * time.Second

// Controller, tek bir oda ziyaretini uçtan uca yönetir: üyelik
// çözümü, bekleme durumu, mesaj pipeline'ı, üye listesi ve medya
// oturumu. Her ziyaret için yeni bir Controller oluşturulur ve
// ziyaret bitince Close çağrılır.
type Controller struct {
	mu         sync.Mutex
	room       *models.Room
	self       *models.User
	admission  *AdmissionController
	pipeline   *Pipeline
	media      *MediaSession
	roster     RosterStore
	bus        realtime.Bus
	notify     Notifier
	stunURLs   []string
	membership models.MembershipState
	members    []models.RoomMember
	pending    []models.WaitingEntryWithUser
	unsub      func()
	entered    bool
	closed     bool
}

// NewController, oda ziyareti için yeni bir controller oluşturur.
//
// provider nil olabilir (text odası veya medyasız istemci) — bu
// durumda medya oturumu hiç kurulmaz. notify nil ise bildirimler
// sadece loglanır.
func NewController(
	room *models.Room,
	self *models.User,
	admission *AdmissionController,
	store MessageStore,
	users UserLookup,
	roster RosterStore,
	bus realtime.Bus,
	provider DeviceProvider,
	stunURLs []string,
	notify Notifier,
) *Controller {
	if notify == nil {
		notify = func(msg string) { log.Printf("[controller] notice: %s", msg) }
	}

	c := &Controller{
		room:      room,
		self:      self,
		admission: admission,
		pipeline:  NewPipeline(room.ID, self, store, users, bus),
		roster:    roster,
		bus:       bus,
		notify:    notify,
		stunURLs:  stunURLs,
	}
	if provider != nil && room.Kind != models.RoomKindText {
		c.media = NewMediaSession(provider)
	}
	return c
}

// Enter, ziyareti başlatır: üyelik çözülür ve duruma göre ya tam oda
// görünümü kurulur, ya bekleme durumuna geçilir, ya da (açık politikalı
// odalarda) otomatik katılım denenir.
//
// Bekleme durumundaki ziyaret sadece bekleme kaydı değişikliklerine
// tepki verir — mesaj yüklenmez, medya kurulmaz. Onay geldiğinde
// controller bus event'i üzerinden kendiliğinden tam görünüme geçer.
func (c *Controller) Enter(ctx context.Context) error {
	status, err := c.admission.MembershipStatus(ctx, c.room, c.self.ID)
	if err != nil {
		return err
	}

	if status == models.MembershipNotJoined {
		result, err := c.admission.RequestJoin(ctx, c.room, c.self.ID)
		if err != nil {
			return err
		}
		if result == models.JoinResultJoined {
			status = models.MembershipMember
		} else {
			status = models.MembershipPending
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("%w: controller is closed", pkg.ErrBadRequest)
	}
	c.membership = status
	if c.unsub == nil {
		c.unsub = c.bus.Subscribe(c.room.ID, c.handleChange)
	}
	c.mu.Unlock()

	if status == models.MembershipPending {
		return nil // bekleme durumu — onay bus'tan gelecek
	}

	return c.activate(ctx)
}

// activate, tam oda görünümünü kurar: son mesajlar, üye listesi,
// (kurucuysa) bekleme kuyruğu ve text dışı odalarda medya oturumu.
func (c *Controller) activate(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil // geç kalan aktivasyon — ziyaret bitti, sonuç çöpe
	}
	if c.entered {
		c.mu.Unlock()
		return nil
	}
	c.entered = true
	c.membership = models.MembershipMember
	media := c.media
	c.mu.Unlock()

	if err := c.pipeline.LoadRecent(ctx, 100); err != nil {
		// Yükleme hatası ziyareti iptal etmez: boş liste + bildirim,
		// otomatik retry yok.
		c.notify("Messages could not be loaded.")
		log.Printf("[controller] load recent failed for room %s: %v", c.room.ID, err)
	}

	c.refreshRoster(ctx)
	if c.room.CreatorID == c.self.ID {
		c.refreshPending(ctx)
	}

	if media != nil {
		if err := media.Initialize(ctx, c.room.Kind, "", ""); err != nil {
			// Medya hatası oda görünümünü bloklamaz — mesajlaşma çalışır.
			c.notify("Microphone or camera could not be accessed.")
		}
	}

	return nil
}

// handleChange, odanın bus aboneliğinden gelen tüm event'leri üç
// tipe ayırır (demultiplex): mesajlar pipeline'a, bekleme kayıtları
// kabul görünümüne, üyelik kayıtları roster'a.
func (c *Controller) handleChange(change realtime.Change) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	membership := c.membership
	isCreator := c.room.CreatorID == c.self.ID
	c.mu.Unlock()

	switch change.Table {
	case realtime.TableMessages:
		if membership == models.MembershipMember {
			c.pipeline.OnRemoteInsert(change)
		}

	case realtime.TableWaitingEntries:
		entry, ok := change.Row.(*models.WaitingEntry)
		if !ok {
			return
		}
		// Bekleyen ziyaretçi: kendi kaydı karara bağlandı mı?
		if membership == models.MembershipPending && entry.UserID == c.self.ID {
			switch entry.Status {
			case models.WaitingApproved:
				ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
				if err := c.activate(ctx); err != nil {
					log.Printf("[controller] activation after approval failed: %v", err)
				}
				cancel()
			case models.WaitingDenied:
				c.notify("Your request to join was declined.")
			}
			return
		}
		// Kurucu: bekleme kuyruğunu tazele.
		if isCreator {
			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			c.refreshPending(ctx)
			cancel()
		}

	case realtime.TableParticipants:
		if membership != models.MembershipMember {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		c.refreshRoster(ctx)
		cancel()
		// Ayrılan katılımcının medya bağlantısı kapatılır.
		if change.Op == realtime.OpDelete {
			if p, ok := change.Row.(*models.Participant); ok && c.media != nil {
				c.media.RemovePeer(p.UserID)
			}
		}
	}
}

// SendMessage, mesajı pipeline üzerinden gönderir. Üye olmayan
// (bekleyen) ziyaretçi gönderemez.
func (c *Controller) SendMessage(ctx context.Context, body string) error {
	c.mu.Lock()
	if c.closed || c.membership != models.MembershipMember {
		c.mu.Unlock()
		return fmt.Errorf("%w: not a member of this room", pkg.ErrForbidden)
	}
	c.mu.Unlock()

	return c.pipeline.Send(ctx, body)
}

// ApprovePending, bekleyen isteği onaylar (sadece kurucu) ve kuyruğu tazeler.
func (c *Controller) ApprovePending(ctx context.Context, entryID string) error {
	if _, err := c.admission.Approve(ctx, c.room, entryID, c.self.ID); err != nil {
		return err
	}
	c.refreshPending(ctx)
	return nil
}

// DenyPending, bekleyen isteği reddeder (sadece kurucu) ve kuyruğu tazeler.
func (c *Controller) DenyPending(ctx context.Context, entryID string) error {
	if _, err := c.admission.Deny(ctx, c.room, entryID, c.self.ID); err != nil {
		return err
	}
	c.refreshPending(ctx)
	return nil
}

// LeaveRoom, odadan ayrılır ve ziyareti kapatır. Üyelik silme
// başarısız olsa bile yerel kaynaklar (abonelik, medya) temizlenir.
func (c *Controller) LeaveRoom(ctx context.Context) error {
	err := c.admission.Leave(ctx, c.room, c.self.ID)
	c.Close()
	return err
}

// ConnectPeer, uzak katılımcıya giden yeni bir peer bağlantısı açar:
// bağlantı yapılandırılmış STUN sunucularıyla kurulur ve tüm yerel
// track'ler sender olarak eklenir. Offer/answer/ICE alışverişi ws
// katmanının signal relay'i üzerinden yürür — burada sadece bağlantı
// oluşturma ve medya bağlama yapılır.
func (c *Controller) ConnectPeer(peerID string) (*webrtc.PeerConnection, error) {
	c.mu.Lock()
	closed := c.closed
	stunURLs := c.stunURLs
	c.mu.Unlock()

	if closed {
		return nil, fmt.Errorf("%w: controller is closed", pkg.ErrBadRequest)
	}
	if c.media == nil {
		return nil, fmt.Errorf("%w: room has no media session", pkg.ErrBadRequest)
	}

	pc, err := NewPeerConnection(stunURLs)
	if err != nil {
		return nil, err
	}
	if err := c.media.AddPeer(peerID, pc); err != nil {
		_ = pc.Close()
		return nil, err
	}
	return pc, nil
}

// HangUp, medya oturumunu sonlandırır ama odada kalır — sesli/görüntülü
// görüşmeden çıkıp mesajlaşmaya devam etme akışı.
func (c *Controller) HangUp() {
	if c.media != nil {
		c.media.Teardown()
	}
}

// Membership, mevcut üyelik durumunu döner.
func (c *Controller) Membership() models.MembershipState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.membership
}

// Messages, mesaj listesinin anlık görünümünü döner.
func (c *Controller) Messages() []Entry {
	return c.pipeline.Entries()
}

// Roster, üye listesinin anlık kopyasını döner.
func (c *Controller) Roster() []models.RoomMember {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.RoomMember, len(c.members))
	copy(out, c.members)
	return out
}

// PendingQueue, bekleme kuyruğunun anlık kopyasını döner (kurucu görünümü).
func (c *Controller) PendingQueue() []models.WaitingEntryWithUser {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.WaitingEntryWithUser, len(c.pending))
	copy(out, c.pending)
	return out
}

// Media, medya oturumunu döner (text odalarında nil).
func (c *Controller) Media() *MediaSession {
	return c.media
}

// Close, ziyareti sonlandırır. İdempotenttir ve iki temizlik adımı
// birbirinden bağımsız garanti edilir: abonelik iptali panic'lese
// bile medya teardown'u çalışır (defer). Close sonrası gelen geç
// store sonuçları ve bus event'leri sessizce düşer.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsub := c.unsub
	c.unsub = nil
	c.mu.Unlock()

	defer func() {
		if c.media != nil {
			c.media.Teardown()
		}
		c.pipeline.Close()
	}()

	if unsub != nil {
		unsub()
	}
}

func (c *Controller) refreshRoster(ctx context.Context) {
	members, err := c.roster.ListByRoom(ctx, c.room.ID)
	if err != nil {
		log.Printf("[controller] roster refresh failed for room %s: %v", c.room.ID, err)
		return
	}
	c.mu.Lock()
	if !c.closed {
		c.members = members
	}
	c.mu.Unlock()
}

func (c *Controller) refreshPending(ctx context.Context) {
	entries, err := c.admission.ListPending(ctx, c.room, c.self.ID)
	if err != nil {
		log.Printf("[controller] pending refresh failed for room %s: %v", c.room.ID, err)
		return
	}
	c.mu.Lock()
	if !c.closed {
		c.pending = entries
	}
	c.mu.Unlock()
}
