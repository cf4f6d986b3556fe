package room_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halkadev/halka/models"
	"github.com/halkadev/halka/pkg"
	"github.com/halkadev/halka/room"
)

func TestMediaSession_InitializeAudioRoom(t *testing.T) {
	provider := newFakeProvider()
	session := room.NewMediaSession(provider)
	assert.Equal(t, room.MediaUninitialized, session.State())

	require.NoError(t, session.Initialize(context.Background(), models.RoomKindAudio, "", ""))
	assert.Equal(t, room.MediaActive, session.State())

	// Audio oda → sadece mikrofon.
	tracks := session.Tracks()
	require.Len(t, tracks, 1)
	assert.Equal(t, room.TrackAudio, tracks[0].Kind())
	assert.Equal(t, "mic-1", tracks[0].DeviceID())
}

func TestMediaSession_InitializeVideoRoom(t *testing.T) {
	provider := newFakeProvider()
	session := room.NewMediaSession(provider)

	require.NoError(t, session.Initialize(context.Background(), models.RoomKindVideo, "mic-2", ""))

	// Video oda → mikrofon + kamera, seçilen cihaz korunur.
	tracks := session.Tracks()
	require.Len(t, tracks, 2)
	assert.Equal(t, room.TrackAudio, tracks[0].Kind())
	assert.Equal(t, "mic-2", tracks[0].DeviceID())
	assert.Equal(t, room.TrackVideo, tracks[1].Kind())
}

func TestMediaSession_TextRoomHasNoMedia(t *testing.T) {
	session := room.NewMediaSession(newFakeProvider())

	err := session.Initialize(context.Background(), models.RoomKindText, "", "")
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
	assert.Equal(t, room.MediaUninitialized, session.State())
}

func TestMediaSession_DeviceFailureEntersErrorState(t *testing.T) {
	provider := newFakeProvider()
	provider.failKinds[room.TrackVideo] = errors.New("permission denied")
	session := room.NewMediaSession(provider)

	err := session.Initialize(context.Background(), models.RoomKindVideo, "", "")
	require.Error(t, err)
	assert.Equal(t, room.MediaError, session.State())
	assert.Error(t, session.Err())

	// Kamera açılamadıysa o ana kadar açılan mikrofon da kapatılır.
	opened := provider.openedTracks()
	require.Len(t, opened, 1)
	assert.True(t, opened[0].Stopped())
}

func TestMediaSession_InitializeIsIdempotentWhileActive(t *testing.T) {
	provider := newFakeProvider()
	session := room.NewMediaSession(provider)

	require.NoError(t, session.Initialize(context.Background(), models.RoomKindAudio, "", ""))
	require.NoError(t, session.Initialize(context.Background(), models.RoomKindAudio, "", ""))

	// İkinci çağrı yeni track açmaz.
	assert.Len(t, provider.openedTracks(), 1)
}

func TestMediaSession_ToggleMute(t *testing.T) {
	session := room.NewMediaSession(newFakeProvider())
	require.NoError(t, session.Initialize(context.Background(), models.RoomKindAudio, "", ""))

	// true = sessiz
	assert.True(t, session.ToggleMute())
	assert.False(t, session.Tracks()[0].Enabled())

	assert.False(t, session.ToggleMute())
	assert.True(t, session.Tracks()[0].Enabled())
}

func TestMediaSession_ToggleVideoWithoutTrackIsNoop(t *testing.T) {
	session := room.NewMediaSession(newFakeProvider())
	require.NoError(t, session.Initialize(context.Background(), models.RoomKindAudio, "", ""))

	// Audio odada video track yok — toggle no-op, false döner.
	assert.False(t, session.ToggleVideo())
}

func TestMediaSession_AddAndRemovePeer(t *testing.T) {
	session := room.NewMediaSession(newFakeProvider())
	require.NoError(t, session.Initialize(context.Background(), models.RoomKindVideo, "", ""))
	defer session.Teardown()

	pc, err := room.NewPeerConnection(nil)
	require.NoError(t, err)

	require.NoError(t, session.AddPeer("peer-1", pc))
	assert.Equal(t, 1, session.PeerCount())
	// Her yerel track için bir sender eklendi.
	assert.Len(t, pc.GetSenders(), 2)

	session.RemovePeer("peer-1")
	assert.Equal(t, 0, session.PeerCount())

	// Bilinmeyen peer no-op.
	session.RemovePeer("peer-1")
	assert.Equal(t, 0, session.PeerCount())
}

func TestMediaSession_AddPeerRequiresActiveSession(t *testing.T) {
	session := room.NewMediaSession(newFakeProvider())

	pc, err := room.NewPeerConnection(nil)
	require.NoError(t, err)
	defer pc.Close()

	err = session.AddPeer("peer-1", pc)
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
}

func TestMediaSession_SwitchDeviceReplacesTrack(t *testing.T) {
	provider := newFakeProvider()
	session := room.NewMediaSession(provider)
	require.NoError(t, session.Initialize(context.Background(), models.RoomKindAudio, "mic-1", ""))
	defer session.Teardown()

	pc, err := room.NewPeerConnection(nil)
	require.NoError(t, err)
	require.NoError(t, session.AddPeer("peer-1", pc))

	oldTrack := provider.openedTracks()[0]

	require.NoError(t, session.SwitchDevice(context.Background(), room.TrackAudio, "mic-2"))

	tracks := session.Tracks()
	require.Len(t, tracks, 1)
	assert.Equal(t, "mic-2", tracks[0].DeviceID())
	// Eski track ancak geçiş tamamlanınca durdurulur.
	assert.True(t, oldTrack.Stopped())
	// Peer bağlantısı korunur — renegotiation yok.
	assert.Equal(t, 1, session.PeerCount())
}

func TestMediaSession_SwitchDevicePreservesMute(t *testing.T) {
	provider := newFakeProvider()
	session := room.NewMediaSession(provider)
	require.NoError(t, session.Initialize(context.Background(), models.RoomKindAudio, "", ""))
	defer session.Teardown()

	session.ToggleMute() // sessize al

	require.NoError(t, session.SwitchDevice(context.Background(), room.TrackAudio, "mic-2"))

	// Yeni cihaz da sessiz başlar.
	assert.False(t, session.Tracks()[0].Enabled())
}

func TestMediaSession_SwitchDeviceFailureKeepsOldDevice(t *testing.T) {
	provider := newFakeProvider()
	session := room.NewMediaSession(provider)
	require.NoError(t, session.Initialize(context.Background(), models.RoomKindAudio, "mic-1", ""))
	defer session.Teardown()

	oldTrack := provider.openedTracks()[0]

	provider.failKinds[room.TrackAudio] = errors.New("device unplugged")
	err := session.SwitchDevice(context.Background(), room.TrackAudio, "mic-2")
	require.Error(t, err)

	// Eski cihaz aktif kalır.
	tracks := session.Tracks()
	require.Len(t, tracks, 1)
	assert.Equal(t, "mic-1", tracks[0].DeviceID())
	assert.False(t, oldTrack.Stopped())
	assert.Equal(t, room.MediaActive, session.State())
}

func TestMediaSession_TeardownIsIdempotent(t *testing.T) {
	provider := newFakeProvider()
	session := room.NewMediaSession(provider)
	require.NoError(t, session.Initialize(context.Background(), models.RoomKindVideo, "", ""))

	pc, err := room.NewPeerConnection(nil)
	require.NoError(t, err)
	require.NoError(t, session.AddPeer("peer-1", pc))

	session.Teardown()
	assert.Equal(t, room.MediaTornDown, session.State())
	assert.Empty(t, session.Tracks())
	assert.Equal(t, 0, session.PeerCount())
	for _, track := range provider.openedTracks() {
		assert.True(t, track.Stopped())
	}

	// İkinci teardown no-op.
	session.Teardown()
	assert.Equal(t, room.MediaTornDown, session.State())

	// Teardown sonrası yeniden kurulum yok.
	err = session.Initialize(context.Background(), models.RoomKindVideo, "", "")
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
}
