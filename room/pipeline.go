package room

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/halkadev/halka/models"
	"github.com/halkadev/halka/pkg"
	"github.com/halkadev/halka/pkg/cache"
	"github.com/halkadev/halka/realtime"
)

// DeliveryState, pipeline'daki bir mesaj girdisinin teslim durumu.
//
// pending: iyimser (optimistic) yerel girdi — store onayı bekliyor.
// confirmed: store tarafından kabul edildi, kalıcı id atandı.
// failed: store reddetti — girdi listeden çıkarılmadan hemen önce
// bu duruma geçer, eşzamanlı snapshot'lar yarım durum görmez.
type DeliveryState string

const (
	StatePending   DeliveryState = "pending"
	StateConfirmed DeliveryState = "confirmed"
	StateFailed    DeliveryState = "failed"
)

// Entry, pipeline'ın dışa verdiği görünüm: mesaj + teslim durumu.
type Entry struct {
	Message models.Message `json:"message"`
	State   DeliveryState  `json:"state"`
}

// pipelineEntry, iç temsil. provisionalID, store onayından sonra da
// saklanır — Send ve echo handler'ı aynı girdiyi bulabilsin diye.
type pipelineEntry struct {
	msg           models.Message
	state         DeliveryState
	provisionalID string
}

// MessageStore, pipeline'ın gateway'den ihtiyaç duyduğu minimal yüzey
// (Interface Segregation — repository.MessageRepository bunu karşılar).
type MessageStore interface {
	Create(ctx context.Context, message *models.Message) error
	ListRecent(ctx context.Context, roomID string, limit int) ([]models.Message, error)
}

// UserLookup, gönderen görünüm bilgilerini çözmek için minimal yüzey.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// senderCacheTTL: realtime event'ler gönderen bilgisi taşımayabilir —
// ikincil lookup sonucu kısa süre cache'lenir, art arda gelen
// mesajlarda DB'ye tekrar gidilmez.
const senderCacheTTL = 5 * time.Minute

// Pipeline, tek bir oda ziyaretinin mesaj listesini yönetir:
// iyimser yerel ekleme, store onayıyla yerinde uzlaştırma (reconcile)
// ve realtime event'lerin dedup'lu entegrasyonu.
//
// Sıralama görünüm sırasıdır: iyimser girdiler gönderildikleri anda
// sona eklenir ve onay geldiğinde konumları DEĞİŞMEZ — id ve timestamp
// yerinde güncellenir.
type Pipeline struct {
	mu      sync.Mutex
	roomID  string
	self    *models.User
	store   MessageStore
	users   UserLookup
	bus     realtime.Bus
	senders *cache.TTLCache[string, *models.User]
	entries []*pipelineEntry
	seen    map[string]bool // kalıcı (store) id'ler — dedup için
}

// NewPipeline, verilen oda ve kullanıcı için boş bir pipeline oluşturur.
// bus nil olabilir — bu durumda gönderilen mesajlar yayınlanmaz,
// sadece yerel liste güncellenir (salt-okur/test senaryoları).
func NewPipeline(roomID string, self *models.User, store MessageStore, users UserLookup, bus realtime.Bus) *Pipeline {
	return &Pipeline{
		roomID:  roomID,
		self:    self,
		store:   store,
		users:   users,
		bus:     bus,
		senders: cache.New[string, *models.User](senderCacheTTL, time.Minute),
		seen:    make(map[string]bool),
	}
}

// LoadRecent, odanın son mesajlarını yükler ve yerel listeyi bunlarla
// değiştirir. Sıralama (created_at, id) — store garantiler. Hata
// durumunda mevcut liste korunur ve hata döner; otomatik retry yok.
func (p *Pipeline) LoadRecent(ctx context.Context, limit int) error {
	if limit <= 0 {
		limit = 100
	}

	messages, err := p.store.ListRecent(ctx, p.roomID, limit)
	if err != nil {
		return fmt.Errorf("failed to load recent messages: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries = make([]*pipelineEntry, 0, len(messages))
	p.seen = make(map[string]bool, len(messages))
	for _, msg := range messages {
		p.entries = append(p.entries, &pipelineEntry{msg: msg, state: StateConfirmed})
		p.seen[msg.ID] = true
	}

	return nil
}

// Send, mesajı iyimser olarak yerel listeye ekler ve store'a yazar.
//
// Girdi store yanıtı BEKLENMEDEN, geçici bir uuid ve yerel timestamp
// ile listeye girer — kullanıcı mesajını anında görür. Store onayı
// gelince girdi yerinde uzlaştırılır: kalıcı id ve sunucu timestamp'i
// yazılır, konum korunur. Store reddederse girdi listeden çıkarılır ve
// hata döner — çağıran, compose içeriğini geri yükleyip kullanıcıya
// yeniden gönderme şansı verir.
func (p *Pipeline) Send(ctx context.Context, body string) error {
	req := models.CreateMessageRequest{Body: body}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err)
	}

	provisionalID := uuid.New().String()
	provisional := &pipelineEntry{
		msg: models.Message{
			ID:        provisionalID,
			RoomID:    p.roomID,
			UserID:    p.self.ID,
			Body:      req.Body,
			CreatedAt: time.Now().UTC(),
			Sender:    p.self,
		},
		state:         StatePending,
		provisionalID: provisionalID,
	}

	p.mu.Lock()
	p.entries = append(p.entries, provisional)
	p.mu.Unlock()

	stored := &models.Message{
		RoomID: p.roomID,
		UserID: p.self.ID,
		Body:   req.Body,
	}
	if err := p.store.Create(ctx, stored); err != nil {
		p.removeProvisional(provisionalID)
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.mu.Lock()
	entry := p.findByProvisionalID(provisionalID)
	switch {
	case entry == nil:
		// Olmamalı — ama girdi kaybolduysa en azından dedup kaydı tut.
		p.seen[stored.ID] = true
	case entry.state == StateConfirmed:
		// Echo, store yanıtından önce geldi ve girdiyi zaten uzlaştırdı.
	default:
		entry.msg.ID = stored.ID
		entry.msg.CreatedAt = stored.CreatedAt
		entry.state = StateConfirmed
		p.seen[stored.ID] = true
	}
	p.mu.Unlock()

	// Insert, odanın kanalında yayınlanır — diğer katılımcıların
	// pipeline'ları ve ws hub'ı mesajı buradan alır. Kendi echo'muz
	// seen üzerinden düşer.
	p.publishInsert(stored)

	return nil
}

// publishInsert, kalıcı mesajı odanın bus kanalında duyurur. Gönderen
// bilgisi event'e gömülür — aboneler ikincil lookup yapmaz.
func (p *Pipeline) publishInsert(msg *models.Message) {
	if p.bus == nil {
		return
	}

	published := *msg
	published.Sender = p.self
	p.bus.Publish(p.roomID, realtime.Change{
		Table: realtime.TableMessages, Op: realtime.OpInsert, Row: &published,
	})
}

// OnRemoteInsert, bus'tan gelen mesaj insert event'ini işler.
//
// Dedup kalıcı id üzerindendir: bu id daha önce görüldüyse event
// sessizce düşer (kendi mesajımızın echo'su dahil). Kendi mesajımızın
// echo'su uzlaştırmadan ÖNCE gelirse, aynı gövdeli en eski pending
// girdi bulunur ve yerinde uzlaştırılır — geçici bir çift görüntü
// oluşmaz.
func (p *Pipeline) OnRemoteInsert(change realtime.Change) {
	if change.Table != realtime.TableMessages || change.Op != realtime.OpInsert {
		return
	}
	msg, ok := change.Row.(*models.Message)
	if !ok {
		log.Printf("[pipeline] unexpected row type in %s insert event", change.Table)
		return
	}

	p.mu.Lock()

	if p.seen[msg.ID] {
		p.mu.Unlock()
		return
	}

	if msg.UserID == p.self.ID {
		if entry := p.findPendingByBody(msg.Body); entry != nil {
			entry.msg.ID = msg.ID
			entry.msg.CreatedAt = msg.CreatedAt
			entry.state = StateConfirmed
			p.seen[msg.ID] = true
			p.mu.Unlock()
			return
		}
	}

	p.seen[msg.ID] = true
	entry := &pipelineEntry{msg: *msg, state: StateConfirmed}
	p.entries = append(p.entries, entry)
	needSender := msg.Sender == nil
	p.mu.Unlock()

	// Gönderen bilgisi event'te yoksa ikincil lookup — cache öncelikli.
	if needSender {
		if sender := p.resolveSender(msg.UserID); sender != nil {
			p.mu.Lock()
			entry.msg.Sender = sender
			p.mu.Unlock()
		}
	}
}

// Entries, mesaj listesinin anlık kopyasını görünüm sırasıyla döner.
func (p *Pipeline) Entries() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Entry, len(p.entries))
	for i, e := range p.entries {
		out[i] = Entry{Message: e.msg, State: e.state}
	}
	return out
}

// resolveSender, gönderen görünüm bilgilerini TTL cache üzerinden çözer.
// Lookup hatası mesajı düşürmez — sender nil kalır, liste yine akar.
func (p *Pipeline) resolveSender(userID string) *models.User {
	if cached, ok := p.senders.Get(userID); ok {
		return cached
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user, err := p.users.GetByID(ctx, userID)
	if err != nil {
		log.Printf("[pipeline] failed to resolve sender %s: %v", userID, err)
		return nil
	}

	p.senders.Set(userID, user)
	return user
}

// Close, pipeline kaynaklarını (sender cache'i) serbest bırakır.
func (p *Pipeline) Close() {
	p.senders.Close()
}

func (p *Pipeline) findByProvisionalID(id string) *pipelineEntry {
	for _, e := range p.entries {
		if e.provisionalID == id {
			return e
		}
	}
	return nil
}

func (p *Pipeline) findPendingByBody(body string) *pipelineEntry {
	for _, e := range p.entries {
		if e.state == StatePending && e.msg.Body == body {
			return e
		}
	}
	return nil
}

// removeProvisional, başarısız gönderimin girdisini listeden çıkarır.
// Girdi önce failed durumuna geçer — kilidi o an almış bir Entries()
// çağrısı tutarlı bir durum görür.
func (p *Pipeline) removeProvisional(provisionalID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, e := range p.entries {
		if e.provisionalID == provisionalID {
			e.state = StateFailed
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return
		}
	}
}
