package room_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halkadev/halka/models"
	"github.com/halkadev/halka/pkg"
	"github.com/halkadev/halka/realtime"
	"github.com/halkadev/halka/room"
)

func newPipeline(store *fakeMessageStore, users *fakeUserLookup) *room.Pipeline {
	return room.NewPipeline("room-1", testUser("self"), store, users, nil)
}

func messageInsert(msg *models.Message) realtime.Change {
	return realtime.Change{Table: realtime.TableMessages, Op: realtime.OpInsert, Row: msg}
}

func TestPipeline_SendConfirmsInPlace(t *testing.T) {
	store := newFakeMessageStore()
	p := newPipeline(store, newFakeUserLookup())
	defer p.Close()

	require.NoError(t, p.Send(context.Background(), "first"))
	require.NoError(t, p.Send(context.Background(), "second"))

	entries := p.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Message.Body)
	assert.Equal(t, "second", entries[1].Message.Body)
	assert.Equal(t, room.StateConfirmed, entries[0].State)
	assert.Equal(t, room.StateConfirmed, entries[1].State)
	// Store'un atadığı kalıcı id'ler yerine oturmuş olmalı.
	assert.Equal(t, "msg-1", entries[0].Message.ID)
	assert.Equal(t, "msg-2", entries[1].Message.ID)
}

func TestPipeline_SendFailureRemovesEntry(t *testing.T) {
	store := newFakeMessageStore()
	store.failCreate = errors.New("db down")
	p := newPipeline(store, newFakeUserLookup())
	defer p.Close()

	err := p.Send(context.Background(), "doomed")
	require.Error(t, err)

	// Başarısız girdi listeden çıkarılır — kullanıcı yeniden gönderebilir.
	assert.Empty(t, p.Entries())
}

func TestPipeline_SendRejectsInvalidBody(t *testing.T) {
	p := newPipeline(newFakeMessageStore(), newFakeUserLookup())
	defer p.Close()

	err := p.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
	assert.Empty(t, p.Entries())
}

func TestPipeline_RemoteInsertAppends(t *testing.T) {
	p := newPipeline(newFakeMessageStore(), newFakeUserLookup())
	defer p.Close()

	sender := testUser("other")
	p.OnRemoteInsert(messageInsert(&models.Message{
		ID: "msg-9", RoomID: "room-1", UserID: "other", Body: "hello",
		CreatedAt: time.Now().UTC(), Sender: sender,
	}))

	entries := p.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].Message.Body)
	assert.Equal(t, room.StateConfirmed, entries[0].State)
}

func TestPipeline_RemoteInsertDeduplicates(t *testing.T) {
	p := newPipeline(newFakeMessageStore(), newFakeUserLookup())
	defer p.Close()

	msg := &models.Message{
		ID: "msg-9", RoomID: "room-1", UserID: "other", Body: "hello",
		CreatedAt: time.Now().UTC(), Sender: testUser("other"),
	}
	p.OnRemoteInsert(messageInsert(msg))
	p.OnRemoteInsert(messageInsert(msg))

	assert.Len(t, p.Entries(), 1)
}

func TestPipeline_OwnEchoAfterConfirmationIsDropped(t *testing.T) {
	store := newFakeMessageStore()
	p := newPipeline(store, newFakeUserLookup())
	defer p.Close()

	require.NoError(t, p.Send(context.Background(), "hello"))

	// Kendi mesajımızın echo'su store onayından SONRA gelirse kalıcı
	// id zaten biliniyor — event düşer, çift görüntü oluşmaz.
	p.OnRemoteInsert(messageInsert(&models.Message{
		ID: "msg-1", RoomID: "room-1", UserID: "self", Body: "hello",
		CreatedAt: time.Now().UTC(),
	}))

	assert.Len(t, p.Entries(), 1)
}

func TestPipeline_OwnEchoBeforeConfirmationReconciles(t *testing.T) {
	store := newFakeMessageStore()
	store.createWait = make(chan struct{})
	p := newPipeline(store, newFakeUserLookup())
	defer p.Close()

	sendDone := make(chan error, 1)
	go func() { sendDone <- p.Send(context.Background(), "hello") }()

	// Gönderim pending'e düşene kadar bekle.
	require.Eventually(t, func() bool {
		entries := p.Entries()
		return len(entries) == 1 && entries[0].State == room.StatePending
	}, time.Second, 5*time.Millisecond)

	// Echo, store yanıtından önce ulaşır — pending girdi yerinde uzlaşır.
	p.OnRemoteInsert(messageInsert(&models.Message{
		ID: "msg-1", RoomID: "room-1", UserID: "self", Body: "hello",
		CreatedAt: time.Now().UTC(),
	}))

	entries := p.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, room.StateConfirmed, entries[0].State)
	assert.Equal(t, "msg-1", entries[0].Message.ID)

	// Store yanıtı gelince ikinci bir girdi OLUŞMAMALI.
	close(store.createWait)
	require.NoError(t, <-sendDone)
	assert.Len(t, p.Entries(), 1)
}

func TestPipeline_OptimisticPositionSurvivesRemoteTraffic(t *testing.T) {
	store := newFakeMessageStore()
	store.createWait = make(chan struct{})
	p := newPipeline(store, newFakeUserLookup())
	defer p.Close()

	sendDone := make(chan error, 1)
	go func() { sendDone <- p.Send(context.Background(), "mine") }()

	require.Eventually(t, func() bool {
		return len(p.Entries()) == 1
	}, time.Second, 5*time.Millisecond)

	// Onay beklenirken başka bir kullanıcının mesajı gelir.
	p.OnRemoteInsert(messageInsert(&models.Message{
		ID: "msg-50", RoomID: "room-1", UserID: "other", Body: "theirs",
		CreatedAt: time.Now().UTC(), Sender: testUser("other"),
	}))

	close(store.createWait)
	require.NoError(t, <-sendDone)

	// İyimser girdi gönderildiği konumda kalır — onay onu taşımaz.
	entries := p.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "mine", entries[0].Message.Body)
	assert.Equal(t, "theirs", entries[1].Message.Body)
}

func TestPipeline_ResolvesSenderWithCache(t *testing.T) {
	users := newFakeUserLookup(testUser("other"))
	p := newPipeline(newFakeMessageStore(), users)
	defer p.Close()

	// Sender alanı boş iki event — lookup bir kez yapılır, ikincisi cache'ten.
	p.OnRemoteInsert(messageInsert(&models.Message{
		ID: "msg-1", RoomID: "room-1", UserID: "other", Body: "one",
		CreatedAt: time.Now().UTC(),
	}))
	p.OnRemoteInsert(messageInsert(&models.Message{
		ID: "msg-2", RoomID: "room-1", UserID: "other", Body: "two",
		CreatedAt: time.Now().UTC(),
	}))

	entries := p.Entries()
	require.Len(t, entries, 2)
	require.NotNil(t, entries[0].Message.Sender)
	assert.Equal(t, "other", entries[0].Message.Sender.Username)
	assert.Equal(t, 1, users.calls)
}

func TestPipeline_SenderLookupFailureKeepsMessage(t *testing.T) {
	p := newPipeline(newFakeMessageStore(), newFakeUserLookup()) // boş lookup
	defer p.Close()

	p.OnRemoteInsert(messageInsert(&models.Message{
		ID: "msg-1", RoomID: "room-1", UserID: "ghost", Body: "hi",
		CreatedAt: time.Now().UTC(),
	}))

	// Lookup başarısız — mesaj yine listede, sender nil kalır.
	entries := p.Entries()
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].Message.Sender)
}

func TestPipeline_LoadRecentReplacesList(t *testing.T) {
	store := newFakeMessageStore()
	p := newPipeline(store, newFakeUserLookup())
	defer p.Close()

	require.NoError(t, p.Send(context.Background(), "old local"))

	store.mu.Lock()
	store.messages = []models.Message{
		{ID: "msg-a", RoomID: "room-1", UserID: "other", Body: "from store", CreatedAt: time.Now().UTC()},
	}
	store.mu.Unlock()

	require.NoError(t, p.LoadRecent(context.Background(), 50))

	entries := p.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "from store", entries[0].Message.Body)

	// Yüklenen mesajlar dedup setine girer — echo'ları düşer.
	p.OnRemoteInsert(messageInsert(&models.Message{
		ID: "msg-a", RoomID: "room-1", UserID: "other", Body: "from store",
		CreatedAt: time.Now().UTC(),
	}))
	assert.Len(t, p.Entries(), 1)
}

func TestPipeline_SendPublishesToBus(t *testing.T) {
	store := newFakeMessageStore()
	users := newFakeUserLookup(testUser("self"))
	bus := realtime.NewMemoryBus()
	defer bus.Close()

	var mu sync.Mutex
	var received []realtime.Change
	bus.Subscribe("room-1", func(change realtime.Change) {
		mu.Lock()
		received = append(received, change)
		mu.Unlock()
	})

	p := room.NewPipeline("room-1", testUser("self"), store, users, bus)
	require.NoError(t, p.Send(context.Background(), "hello"))

	// Kalıcı mesaj bus'ta duyurulur — diğer katılımcılar buradan görür.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	change := received[0]
	mu.Unlock()

	assert.Equal(t, realtime.TableMessages, change.Table)
	assert.Equal(t, realtime.OpInsert, change.Op)
	msg, ok := change.Row.(*models.Message)
	require.True(t, ok)
	assert.Equal(t, "msg-1", msg.ID)
	assert.Equal(t, "hello", msg.Body)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "self", msg.Sender.ID)

	// Kendi yayınımızın echo'su ikinci girdi oluşturmaz.
	p.OnRemoteInsert(messageInsert(msg))
	assert.Len(t, p.Entries(), 1)
}
