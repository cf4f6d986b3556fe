package room

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/halkadev/halka/models"
	"github.com/halkadev/halka/pkg"
)

// MediaState, medya oturumunun yaşam döngüsü durumu.
//
// Geçişler:
//
//	uninitialized → acquiring → active
//	acquiring → error            (cihaz/izin hatası; otomatik retry yok)
//	herhangi bir durum → torn_down
type MediaState string

const (
	MediaUninitialized MediaState = "uninitialized"
	MediaAcquiring     MediaState = "acquiring"
	MediaActive        MediaState = "active"
	MediaError         MediaState = "error"
	MediaTornDown      MediaState = "torn_down"
)

// trackSender, bir peer bağlantısına eklenmiş tek bir sender'ı,
// taşıdığı track tipiyle birlikte tutar — SwitchDevice doğru
// sender'ları bulabilsin diye.
type trackSender struct {
	kind   TrackKind
	sender *webrtc.RTPSender
}

// peerLink, tek bir uzak katılımcıya giden bağlantıyı temsil eder.
type peerLink struct {
	pc      *webrtc.PeerConnection
	senders []trackSender
}

// MediaSession, bir oda ziyaretinin medya oturumunu yönetir:
// yerel capture track'leri, peer bağlantıları ve cihaz seçimi.
//
// Tüm metodlar mutex ile korunur — bus callback'leri ve kullanıcı
// aksiyonları farklı goroutine'lerden gelebilir.
type MediaSession struct {
	mu       sync.Mutex
	provider DeviceProvider
	state    MediaState
	lastErr  error
	tracks   []CaptureTrack
	peers    map[string]*peerLink
}

// NewMediaSession, uninitialized durumda yeni bir oturum oluşturur.
func NewMediaSession(provider DeviceProvider) *MediaSession {
	return &MediaSession{
		provider: provider,
		state:    MediaUninitialized,
		peers:    make(map[string]*peerLink),
	}
}

// State, mevcut yaşam döngüsü durumunu döner.
func (m *MediaSession) State() MediaState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err, error durumuna geçilmesine neden olan hatayı döner (yoksa nil).
func (m *MediaSession) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Tracks, açık track'lerin anlık kopyasını döner.
func (m *MediaSession) Tracks() []CaptureTrack {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CaptureTrack, len(m.tracks))
	copy(out, m.tracks)
	return out
}

// Initialize, oda tipine göre yerel cihazları açar:
// audio → sadece mikrofon, video → mikrofon + kamera.
// Text odaları medya kullanmaz — çağrı hatadır.
//
// audioDev/videoDev boş geçilirse provider varsayılan (ilk) cihazı seçer.
// Herhangi bir cihaz açılamazsa oturum error durumuna geçer ve o ana
// kadar açılan track'ler kapatılır — otomatik retry yapılmaz, kullanıcı
// açıkça yeniden deneyebilir.
func (m *MediaSession) Initialize(ctx context.Context, kind models.RoomKind, audioDev, videoDev string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if kind == models.RoomKindText {
		return fmt.Errorf("%w: text rooms have no media session", pkg.ErrBadRequest)
	}
	if m.state == MediaTornDown {
		return fmt.Errorf("%w: media session is torn down", pkg.ErrBadRequest)
	}
	if m.state == MediaActive || m.state == MediaAcquiring {
		return nil // zaten kurulmuş / kuruluyor
	}

	m.state = MediaAcquiring
	m.lastErr = nil

	wanted := []struct {
		track  TrackKind
		device string
	}{{TrackAudio, audioDev}}
	if kind == models.RoomKindVideo {
		wanted = append(wanted, struct {
			track  TrackKind
			device string
		}{TrackVideo, videoDev})
	}

	var opened []CaptureTrack
	for _, w := range wanted {
		track, err := m.provider.OpenTrack(ctx, w.track, w.device)
		if err != nil {
			for _, t := range opened {
				_ = t.Stop()
			}
			m.state = MediaError
			m.lastErr = err
			log.Printf("[media] failed to open %s track: %v", w.track, err)
			return fmt.Errorf("failed to open %s track: %w", w.track, err)
		}
		opened = append(opened, track)
	}

	m.tracks = opened
	m.state = MediaActive
	log.Printf("[media] session active with %d track(s)", len(opened))
	return nil
}

// ToggleMute, ilk audio track'in enabled bayrağını tersine çevirir.
// Dönen değer yeni mute durumudur (true = sessiz). Audio track yoksa
// no-op'tur ve false döner. Track yeniden açılmaz — sadece bayrak değişir.
func (m *MediaSession) ToggleMute() bool {
	return m.toggleKind(TrackAudio)
}

// ToggleVideo, ilk video track'in enabled bayrağını tersine çevirir.
// Dönen değer yeni kapalılık durumudur (true = video kapalı).
func (m *MediaSession) ToggleVideo() bool {
	return m.toggleKind(TrackVideo)
}

func (m *MediaSession) toggleKind(kind TrackKind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tracks {
		if t.Kind() == kind {
			t.SetEnabled(!t.Enabled())
			return !t.Enabled()
		}
	}
	return false
}

// AddPeer, uzak bir katılımcıya giden peer bağlantısını oturuma bağlar:
// tüm yerel track'ler sender olarak eklenir. Aynı peerID ile ikinci
// çağrıda önceki bağlantı kapatılır (reconnect).
func (m *MediaSession) AddPeer(peerID string, pc *webrtc.PeerConnection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != MediaActive {
		return fmt.Errorf("%w: media session not active", pkg.ErrBadRequest)
	}

	if old, ok := m.peers[peerID]; ok {
		_ = old.pc.Close()
		delete(m.peers, peerID)
	}

	link := &peerLink{pc: pc}
	for _, t := range m.tracks {
		sender, err := pc.AddTrack(t.Local())
		if err != nil {
			return fmt.Errorf("failed to add %s track for peer %s: %w", t.Kind(), peerID, err)
		}
		link.senders = append(link.senders, trackSender{kind: t.Kind(), sender: sender})
	}

	m.peers[peerID] = link
	return nil
}

// RemovePeer, katılımcının bağlantısını kapatır ve oturumdan çıkarır.
// Bilinmeyen peerID no-op'tur.
func (m *MediaSession) RemovePeer(peerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if link, ok := m.peers[peerID]; ok {
		_ = link.pc.Close()
		delete(m.peers, peerID)
	}
}

// PeerCount, bağlı peer sayısını döner.
func (m *MediaSession) PeerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.peers)
}

// SwitchDevice, aynı tipteki aktif track'i yeni cihazdan açılan track
// ile yerinde değiştirir.
//
// Değişim renegotiation gerektirmez: her peer bağlantısındaki ilgili
// sender üzerinde ReplaceTrack çağrılır — bağlantı kimliği korunur.
// Herhangi bir adım başarısız olursa o ana kadar değiştirilen
// sender'lar eski track'e geri alınır: eski cihaz aktif kalır, yarım
// geçiş olmaz. Eski track ancak tüm sender'lar başarıyla geçtikten
// sonra durdurulur.
func (m *MediaSession) SwitchDevice(ctx context.Context, kind TrackKind, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != MediaActive {
		return fmt.Errorf("%w: media session not active", pkg.ErrBadRequest)
	}

	oldIdx := -1
	for i, t := range m.tracks {
		if t.Kind() == kind {
			oldIdx = i
			break
		}
	}
	if oldIdx == -1 {
		return fmt.Errorf("%w: no active %s track to switch", pkg.ErrBadRequest, kind)
	}
	oldTrack := m.tracks[oldIdx]

	newTrack, err := m.provider.OpenTrack(ctx, kind, deviceID)
	if err != nil {
		return fmt.Errorf("failed to open %s device %s: %w", kind, deviceID, err)
	}

	// Mute durumu cihaz değişiminde korunur.
	newTrack.SetEnabled(oldTrack.Enabled())

	var replaced []*webrtc.RTPSender
	for _, link := range m.peers {
		for _, ts := range link.senders {
			if ts.kind != kind {
				continue
			}
			if err := ts.sender.ReplaceTrack(newTrack.Local()); err != nil {
				// Rollback: değiştirilmiş sender'ları eski track'e döndür.
				for _, s := range replaced {
					_ = s.ReplaceTrack(oldTrack.Local())
				}
				_ = newTrack.Stop()
				log.Printf("[media] switch to %s device %s failed, keeping previous device: %v", kind, deviceID, err)
				return fmt.Errorf("failed to replace %s track: %w", kind, err)
			}
			replaced = append(replaced, ts.sender)
		}
	}

	m.tracks[oldIdx] = newTrack
	_ = oldTrack.Stop()
	log.Printf("[media] switched %s track to device %s", kind, deviceID)
	return nil
}

// Teardown, oturumu kapatır: tüm track'ler durdurulur, tüm peer
// bağlantıları kapatılır, durum torn_down olur.
//
// İdempotenttir — hang-up, odadan ayrılma ve ekran kapanışı hepsi
// buraya düşer; ikinci ve sonraki çağrılar no-op'tur. Hatalar loglanır
// ama yutulur: teardown asla navigasyonu bloklamaz.
func (m *MediaSession) Teardown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == MediaTornDown {
		return
	}

	for _, t := range m.tracks {
		if err := t.Stop(); err != nil {
			log.Printf("[media] error stopping track %s: %v", t.ID(), err)
		}
	}
	m.tracks = nil

	for peerID, link := range m.peers {
		if err := link.pc.Close(); err != nil {
			log.Printf("[media] error closing peer connection %s: %v", peerID, err)
		}
	}
	m.peers = make(map[string]*peerLink)

	m.state = MediaTornDown
	log.Println("[media] session torn down")
}

// NewPeerConnection, verilen STUN sunucularıyla yeni bir pion peer
// bağlantısı oluşturur. Controller ve testler için ortak yardımcı.
func NewPeerConnection(stunURLs []string) (*webrtc.PeerConnection, error) {
	cfg := webrtc.Configuration{}
	if len(stunURLs) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: stunURLs}}
	}

	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}
	return pc, nil
}
