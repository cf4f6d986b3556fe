// Package ws, WebSocket bağlantı yönetimi ve gerçek zamanlı event dağıtımını sağlar.
//
// Mimari:
// - Hub: Tüm bağlantıları yöneten merkezi yapı (Observer pattern)
// - Client: Her WebSocket bağlantısını temsil eder
// - Event: Client-server arası iletilen mesaj formatı
//
// Event akışı:
// 1. Kullanıcı mesaj gönderir → HTTP POST → Service → DB kayıt
// 2. Service, değişikliği realtime bus'ta yayınlar
// 3. Hub'ın oda aboneliği event'i yakalar ve o odaya abone client'lara iletir
// 4. Her client'ın WritePump'ı event'i WebSocket'e yazar
// 5. Frontend event'i alır ve yerel pipeline'ını günceller
package ws

import "github.com/halkadev/halka/realtime"

// Event, WebSocket üzerinden iletilen bir mesajı temsil eder.
//
// Op (operation): Event türü — "room_change", "heartbeat" vb.
// Data: Event'e özgü payload.
// Seq (sequence number): Her outbound event'e verilen artan sayı.
//   Frontend eksik event tespit etmek için seq'i takip eder.
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// Client → Server operasyonları
const (
	OpHeartbeat       = "heartbeat"        // Client her 30sn'de gönderir — "hâlâ bağlıyım" sinyali
	OpRoomSubscribe   = "room_subscribe"   // Odanın realtime kanalını dinlemeye başla
	OpRoomUnsubscribe = "room_unsubscribe" // Oda kanalını bırak
	OpSignal          = "signal"           // WebRTC SDP/ICE signaling relay (oda içi)
)

// Server → Client operasyonları
const (
	OpReady        = "ready"         // Bağlantı kurulduğunda ilk gönderilen
	OpHeartbeatAck = "heartbeat_ack" // Heartbeat'e yanıt — "seni duydum"
	OpRoomChange   = "room_change"   // Abone olunan odada satır değişikliği
)

// ReadyData, bağlantı kurulduğunda client'a gönderilen ilk event'in payload'ı.
type ReadyData struct {
	OnlineUserIDs []string `json:"online_user_ids"`
}

// RoomSubscribeData, room_subscribe/room_unsubscribe payload'ı.
type RoomSubscribeData struct {
	RoomID string `json:"room_id"`
}

// RoomChangeData, room_change event'inin payload'ı: değişikliğin
// geldiği oda ve bus'taki haliyle değişiklik.
type RoomChangeData struct {
	RoomID string          `json:"room_id"`
	Change realtime.Change `json:"change"`
}

// SignalData, signal event'inin payload'ı.
// WebRTC SDP offer/answer veya ICE candidate taşır.
// Server bunu doğrudan hedef kullanıcıya relay eder — içeriğine bakmaz.
type SignalData struct {
	RoomID    string `json:"room_id"`
	TargetID  string `json:"target_id"`           // relay hedefi (alıcı kullanıcı)
	FromID    string `json:"from_id,omitempty"`   // server tarafından doldurulur
	Type      string `json:"type"`                // "offer", "answer", "ice-candidate"
	SDP       string `json:"sdp,omitempty"`       // SDP metni (offer/answer için)
	Candidate any    `json:"candidate,omitempty"` // RTCIceCandidateInit (ICE için)
}
