package ws

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"

	"github.com/halkadev/halka/realtime"
)

// EventPublisher, diğer katmanların client'lara doğrudan event
// göndermek için kullandığı interface.
//
// Dependency Inversion: tüketiciler Hub'ın concrete struct'ına değil,
// bu interface'e bağımlıdır — testlerde mock kullanılabilir.
type EventPublisher interface {
	BroadcastToAll(event Event)
	BroadcastToUser(userID string, event Event)
	GetOnlineUserIDs() []string
}

// RoomAccessChecker, bir kullanıcının oda kanalını dinleme yetkisini
// kontrol eder. Pratikte RoomService üyelik kontrolü yapar — ws
// paketinin services'a bağımlılığını kırmak için burada tanımlanır.
type RoomAccessChecker func(userID, roomID string) bool

// roomSub, hub'ın bir oda için tuttuğu bus aboneliği ve o odayı
// dinleyen client seti.
type roomSub struct {
	cancel  func()
	clients map[*Client]bool
}

// Hub, tüm WebSocket bağlantılarını yöneten merkezi yapıdır ve
// realtime bus ile client'lar arasındaki köprüdür.
//
// Oda aboneliği lazy'dir: bir odayı dinleyen ilk client geldiğinde
// hub bus'a abone olur, son client ayrıldığında abonelik iptal edilir.
// Böylece kimsenin bakmadığı odalar için event taşınmaz.
type Hub struct {
	// clients: userID → Client set (bir kullanıcının birden fazla tab'ı olabilir).
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	// rooms: roomID → bus aboneliği + dinleyen client'lar.
	rooms  map[string]*roomSub
	roomMu sync.Mutex

	bus         realtime.Bus
	checkAccess RoomAccessChecker

	register   chan *Client
	unregister chan *Client

	// seq: Her outbound event'e verilen artan sayaç.
	seq atomic.Int64
}

// NewHub, yeni bir Hub oluşturur. checkAccess nil ise tüm abonelik
// istekleri kabul edilir (test kolaylığı).
func NewHub(bus realtime.Bus, checkAccess RoomAccessChecker) *Hub {
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		rooms:       make(map[string]*roomSub),
		bus:         bus,
		checkAccess: checkAccess,
		register:    make(chan *Client),
		unregister:  make(chan *Client),
	}
}

// Run, Hub'ın ana event loop'udur. main.go'da `go hub.Run()` ile başlatılır.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true

	log.Printf("[ws] client connected: user=%s (total connections for user: %d)",
		client.userID, len(h.clients[client.userID]))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if clients, ok := h.clients[client.userID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			close(client.send)

			if len(clients) == 0 {
				delete(h.clients, client.userID)
				log.Printf("[ws] user fully disconnected: %s", client.userID)
			}
		}
	}
	h.mu.Unlock()

	// Client'ın oda aboneliklerini temizle.
	h.roomMu.Lock()
	for roomID, sub := range h.rooms {
		if sub.clients[client] {
			delete(sub.clients, client)
			if len(sub.clients) == 0 {
				sub.cancel()
				delete(h.rooms, roomID)
			}
		}
	}
	h.roomMu.Unlock()
}

// subscribeRoom, client'ı odanın dinleyici setine ekler. Odanın ilk
// dinleyicisiyse bus aboneliği burada açılır.
func (h *Hub) subscribeRoom(client *Client, roomID string) {
	if h.checkAccess != nil && !h.checkAccess(client.userID, roomID) {
		log.Printf("[ws] room subscribe denied: user=%s room=%s", client.userID, roomID)
		return
	}

	h.roomMu.Lock()
	defer h.roomMu.Unlock()

	sub, ok := h.rooms[roomID]
	if !ok {
		sub = &roomSub{clients: make(map[*Client]bool)}
		sub.cancel = h.bus.Subscribe(roomID, func(change realtime.Change) {
			h.broadcastRoomChange(roomID, change)
		})
		h.rooms[roomID] = sub
	}
	sub.clients[client] = true
}

// unsubscribeRoom, client'ı odanın dinleyici setinden çıkarır.
// Son dinleyiciyse bus aboneliği de iptal edilir.
func (h *Hub) unsubscribeRoom(client *Client, roomID string) {
	h.roomMu.Lock()
	defer h.roomMu.Unlock()

	sub, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(sub.clients, client)
	if len(sub.clients) == 0 {
		sub.cancel()
		delete(h.rooms, roomID)
	}
}

// broadcastRoomChange, bus'tan gelen değişikliği odanın tüm ws
// dinleyicilerine iletir. Bus'ın pump goroutine'inden çağrılır.
func (h *Hub) broadcastRoomChange(roomID string, change realtime.Change) {
	event := Event{
		Op:   OpRoomChange,
		Data: RoomChangeData{RoomID: roomID, Change: change},
		Seq:  h.seq.Add(1),
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal room change event: %v", err)
		return
	}

	h.roomMu.Lock()
	sub, ok := h.rooms[roomID]
	if !ok {
		h.roomMu.Unlock()
		return
	}
	targets := make([]*Client, 0, len(sub.clients))
	for client := range sub.clients {
		targets = append(targets, client)
	}
	h.roomMu.Unlock()

	for _, client := range targets {
		select {
		case client.send <- data:
		default:
			// Buffer dolu — bu client yavaş, kapat
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

// BroadcastToAll, tüm bağlı client'lara event gönderir.
func (h *Hub) BroadcastToAll(event Event) {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal broadcast event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, clients := range h.clients {
		for client := range clients {
			select {
			case client.send <- data:
			default:
				go func(c *Client) { h.unregister <- c }(client)
			}
		}
	}
}

// BroadcastToUser, belirli bir kullanıcının tüm bağlantılarına event gönderir.
func (h *Hub) BroadcastToUser(userID string, event Event) {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal user event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.clients[userID]; ok {
		for client := range clients {
			select {
			case client.send <- data:
			default:
				go func(c *Client) { h.unregister <- c }(client)
			}
		}
	}
}

// GetOnlineUserIDs, bağlı olan tüm kullanıcı ID'lerini döner.
func (h *Hub) GetOnlineUserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.clients))
	for userID := range h.clients {
		ids = append(ids, userID)
	}
	return ids
}

// Shutdown, tüm bağlantıları ve oda aboneliklerini kapatır (graceful shutdown).
func (h *Hub) Shutdown() {
	h.roomMu.Lock()
	for roomID, sub := range h.rooms {
		sub.cancel()
		delete(h.rooms, roomID)
	}
	h.roomMu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			close(client.send)
		}
	}
	h.clients = make(map[string]map[*Client]bool)
	log.Println("[ws] hub shut down, all connections closed")
}
