// Package realtime, oda bazlı değişiklik event'lerinin dağıtımını sağlar.
//
// Bus, gateway'e yazılan her değişikliğin (insert/update/delete) odayı
// dinleyen tüm abonelere ulaşmasını sağlar — mesaj pipeline'ı, bekleme
// odası ekranı ve websocket hub'ı hep aynı kanaldan beslenir.
//
// MemoryBus tek process içinde çalışır. Birden fazla instance'a
// ölçeklenirken aynı interface'in Redis pub/sub implementasyonu
// yazılabilir — tüketiciler Bus interface'ine bağımlıdır.
package realtime

import (
	"log"
	"sync"
)

// Operation, satır değişikliğinin tipi.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Event'lerin kaynak tabloları. Handler'lar Change.Table'a göre demultiplex yapar.
const (
	TableMessages       = "messages"
	TableParticipants   = "participants"
	TableWaitingEntries = "waiting_entries"
	TableRooms          = "rooms"
)

// Change, tek bir satır değişikliğini temsil eder.
// Row, tablonun model tipidir (*models.Message, *models.Participant, ...).
// Delete operasyonunda Row silinen satırın son halini taşır.
type Change struct {
	Table string    `json:"table"`
	Op    Operation `json:"op"`
	Row   any       `json:"row"`
}

// Handler, bir Change aldığında çağrılan callback.
// Bus'ın pump goroutine'inden çağrılır — bloklamamalıdır.
type Handler func(change Change)

// Bus, oda bazlı event dağıtım interface'i.
type Bus interface {
	// Subscribe, odadaki değişiklikleri dinlemeye başlar.
	// Dönen cancel fonksiyonu aboneliği sonlandırır — idempotenttir.
	Subscribe(roomID string, h Handler) (cancel func())
	// Publish, değişikliği odanın tüm abonelerine iletir. Bloklamaz.
	Publish(roomID string, change Change)
	// Close, tüm abonelikleri sonlandırır.
	Close()
}

// sendBufferSize, abone başına event buffer boyutu.
// Buffer dolarsa abone yavaş demektir — event düşürülür (drop),
// publisher asla bloklanmaz.
const sendBufferSize = 256

// subscriber, tek bir aboneliği temsil eder.
type subscriber struct {
	roomID    string
	handler   Handler
	ch        chan Change
	done      chan struct{}
	closeOnce sync.Once
}

// stop, pump goroutine'ini sonlandırır. Hem cancel hem Close buradan
// geçer — done channel'ı iki yoldan da sadece bir kez kapanır.
func (s *subscriber) stop() {
	s.closeOnce.Do(func() { close(s.done) })
}

// MemoryBus, Bus interface'inin process içi implementasyonu.
//
// Her abone kendi buffered channel'ı ve pump goroutine'i ile çalışır —
// bir abonenin yavaşlığı diğerlerini etkilemez.
type MemoryBus struct {
	mu     sync.RWMutex
	rooms  map[string]map[*subscriber]bool
	closed bool
}

// NewMemoryBus, yeni bir in-process bus oluşturur.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		rooms: make(map[string]map[*subscriber]bool),
	}
}

func (b *MemoryBus) Subscribe(roomID string, h Handler) (cancel func()) {
	sub := &subscriber{
		roomID:  roomID,
		handler: h,
		ch:      make(chan Change, sendBufferSize),
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	if b.rooms[roomID] == nil {
		b.rooms[roomID] = make(map[*subscriber]bool)
	}
	b.rooms[roomID][sub] = true
	b.mu.Unlock()

	go sub.pump()

	return func() {
		b.remove(sub)
		sub.stop()
	}
}

func (b *MemoryBus) Publish(roomID string, change Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.rooms[roomID] {
		select {
		case sub.ch <- change:
		default:
			// Buffer dolu — event düşür, publisher'ı bloklama.
			log.Printf("[realtime] slow subscriber on room %s, dropping %s/%s event",
				roomID, change.Table, change.Op)
		}
	}
}

func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, subs := range b.rooms {
		for sub := range subs {
			sub.stop()
		}
	}
	b.rooms = make(map[string]map[*subscriber]bool)
}

func (b *MemoryBus) remove(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.rooms[sub.roomID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.rooms, sub.roomID)
		}
	}
}

// pump, abonenin channel'ından event okuyup handler'ı çağırır.
// Handler'ın tek goroutine'den çağrılması event sırasını korur.
func (s *subscriber) pump() {
	for {
		select {
		case change := <-s.ch:
			s.handler(change)
		case <-s.done:
			return
		}
	}
}
