// Package room, oda ziyaretinin çekirdek koordinasyonunu içerir:
// kabul kontrolü (admission), mesaj pipeline'ı, medya oturumu ve
// bunları birleştiren controller.
//
// Bu paket HTTP katmanından bağımsızdır — handler'lar ve testler
// aynı API'yi kullanır. Dış dünya (store, bus, cihazlar) interface
// olarak enjekte edilir.
package room

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// DeviceKind, medya cihazının tipini belirler.
// Tarayıcıdaki MediaDeviceInfo.kind değerleriyle aynı isimlendirme.
type DeviceKind string

const (
	DeviceAudioInput  DeviceKind = "audioinput"
	DeviceVideoInput  DeviceKind = "videoinput"
	DeviceAudioOutput DeviceKind = "audiooutput"
)

// TrackKind, yakalanan medya track'inin tipi.
type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// DeviceInfo, enumerasyondan dönen tek bir cihazı tanımlar.
type DeviceInfo struct {
	ID    string     `json:"id"`
	Kind  DeviceKind `json:"kind"`
	Label string     `json:"label"`
}

// CaptureTrack, açılmış bir yerel medya track'ini temsil eder.
//
// Enabled bayrağı mute/video-off için kullanılır — track yeniden
// açılmaz, sadece bayrak değişir. Stop track'i kalıcı olarak kapatır.
// Local(), peer bağlantısına eklenecek pion track'ini döner.
type CaptureTrack interface {
	ID() string
	Kind() TrackKind
	DeviceID() string
	Enabled() bool
	SetEnabled(enabled bool)
	Stop() error
	Local() webrtc.TrackLocal
}

// DeviceProvider, medya cihazlarına erişimi soyutlar.
//
// Gerçek implementasyon platforma bağlıdır (tarayıcı getUserMedia,
// native capture); testler fake provider kullanır. İzin reddi veya
// cihaz yokluğu OpenTrack'ten error olarak döner.
type DeviceProvider interface {
	// EnumerateDevices, erişilebilir cihazları listeler. Liste,
	// cihaz tak/çıkar olaylarıyla zaman içinde değişebilir.
	EnumerateDevices(ctx context.Context) ([]DeviceInfo, error)
	// OpenTrack, verilen cihazdan tek bir capture track açar.
	// deviceID boşsa provider varsayılan cihazı seçer.
	OpenTrack(ctx context.Context, kind TrackKind, deviceID string) (CaptureTrack, error)
}
