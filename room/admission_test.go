package room_test

import (
	"context"
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

func newAdmissionFixture() (*room.AdmissionController, *fakeParticipantStore, *fakeWaitingStore, *realtime.MemoryBus) {
	participants := newFakeParticipantStore()
	waiting := newFakeWaitingStore(participants)
	users := newFakeUserLookup(testUser("creator"), testUser("visitor"))
	bus := realtime.NewMemoryBus()
	ctrl := room.NewAdmissionController(participants, waiting, users, bus, nil)
	return ctrl, participants, waiting, bus
}

func TestAdmission_OpenRoomJoinsImmediately(t *testing.T) {
	ctrl, participants, _, bus := newAdmissionFixture()
	defer bus.Close()
	rm := testRoom("creator", models.RoomKindText, models.AdmissionOpen)

	result, err := ctrl.RequestJoin(context.Background(), rm, "visitor")
	require.NoError(t, err)
	assert.Equal(t, models.JoinResultJoined, result)

	exists, err := participants.Exists(context.Background(), rm.ID, "visitor")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAdmission_JoinIsIdempotent(t *testing.T) {
	ctrl, _, _, bus := newAdmissionFixture()
	defer bus.Close()
	rm := testRoom("creator", models.RoomKindText, models.AdmissionOpen)

	_, err := ctrl.RequestJoin(context.Background(), rm, "visitor")
	require.NoError(t, err)

	// İkinci istek hata değil — mevcut durum döner.
	result, err := ctrl.RequestJoin(context.Background(), rm, "visitor")
	require.NoError(t, err)
	assert.Equal(t, models.JoinResultJoined, result)
}

func TestAdmission_ApprovalRoomCreatesPendingEntry(t *testing.T) {
	ctrl, participants, _, bus := newAdmissionFixture()
	defer bus.Close()
	rm := testRoom("creator", models.RoomKindText, models.AdmissionRequiresApproval)

	result, err := ctrl.RequestJoin(context.Background(), rm, "visitor")
	require.NoError(t, err)
	assert.Equal(t, models.JoinResultPending, result)

	// Henüz üye değil.
	exists, err := participants.Exists(context.Background(), rm.ID, "visitor")
	require.NoError(t, err)
	assert.False(t, exists)

	status, err := ctrl.MembershipStatus(context.Background(), rm, "visitor")
	require.NoError(t, err)
	assert.Equal(t, models.MembershipPending, status)

	// Tekrarlı istek pending olarak kalır.
	result, err = ctrl.RequestJoin(context.Background(), rm, "visitor")
	require.NoError(t, err)
	assert.Equal(t, models.JoinResultPending, result)
}

func TestAdmission_ApproveMakesMember(t *testing.T) {
	ctrl, participants, waiting, bus := newAdmissionFixture()
	defer bus.Close()
	rm := testRoom("creator", models.RoomKindText, models.AdmissionRequiresApproval)

	_, err := ctrl.RequestJoin(context.Background(), rm, "visitor")
	require.NoError(t, err)

	pending, err := waiting.GetPending(context.Background(), rm.ID, "visitor")
	require.NoError(t, err)

	entry, err := ctrl.Approve(context.Background(), rm, pending.ID, "creator")
	require.NoError(t, err)
	assert.Equal(t, models.WaitingApproved, entry.Status)
	require.NotNil(t, entry.ReviewedBy)
	assert.Equal(t, "creator", *entry.ReviewedBy)

	// Onay atomiktir: kayıt approved VE kullanıcı üye.
	exists, err := participants.Exists(context.Background(), rm.ID, "visitor")
	require.NoError(t, err)
	assert.True(t, exists)

	// Karara bağlanmış kayıt ikinci kez onaylanamaz.
	_, err = ctrl.Approve(context.Background(), rm, pending.ID, "creator")
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestAdmission_DenyDoesNotJoin(t *testing.T) {
	ctrl, participants, waiting, bus := newAdmissionFixture()
	defer bus.Close()
	rm := testRoom("creator", models.RoomKindText, models.AdmissionRequiresApproval)

	_, err := ctrl.RequestJoin(context.Background(), rm, "visitor")
	require.NoError(t, err)

	pending, err := waiting.GetPending(context.Background(), rm.ID, "visitor")
	require.NoError(t, err)

	entry, err := ctrl.Deny(context.Background(), rm, pending.ID, "creator")
	require.NoError(t, err)
	assert.Equal(t, models.WaitingDenied, entry.Status)

	exists, err := participants.Exists(context.Background(), rm.ID, "visitor")
	require.NoError(t, err)
	assert.False(t, exists)

	// Reddedilen kullanıcı yeniden istek atabilir.
	result, err := ctrl.RequestJoin(context.Background(), rm, "visitor")
	require.NoError(t, err)
	assert.Equal(t, models.JoinResultPending, result)
}

func TestAdmission_OnlyCreatorDecides(t *testing.T) {
	ctrl, _, waiting, bus := newAdmissionFixture()
	defer bus.Close()
	rm := testRoom("creator", models.RoomKindText, models.AdmissionRequiresApproval)

	_, err := ctrl.RequestJoin(context.Background(), rm, "visitor")
	require.NoError(t, err)

	pending, err := waiting.GetPending(context.Background(), rm.ID, "visitor")
	require.NoError(t, err)

	_, err = ctrl.Approve(context.Background(), rm, pending.ID, "visitor")
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	_, err = ctrl.Deny(context.Background(), rm, pending.ID, "visitor")
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	_, err = ctrl.ListPending(context.Background(), rm, "visitor")
	assert.ErrorIs(t, err, pkg.ErrForbidden)
}

func TestAdmission_FullRoomRejectsJoin(t *testing.T) {
	ctrl, _, _, bus := newAdmissionFixture()
	defer bus.Close()
	rm := testRoom("creator", models.RoomKindText, models.AdmissionOpen)
	rm.Capacity = 1

	_, err := ctrl.RequestJoin(context.Background(), rm, "visitor")
	require.NoError(t, err)

	_, err = ctrl.RequestJoin(context.Background(), rm, "late-visitor")
	assert.ErrorIs(t, err, pkg.ErrForbidden)
}

func TestAdmission_CreatorIsAlwaysMember(t *testing.T) {
	ctrl, _, _, bus := newAdmissionFixture()
	defer bus.Close()
	rm := testRoom("creator", models.RoomKindText, models.AdmissionRequiresApproval)

	// Kurucunun participant satırı yok ama yine de üye sayılır.
	status, err := ctrl.MembershipStatus(context.Background(), rm, "creator")
	require.NoError(t, err)
	assert.Equal(t, models.MembershipMember, status)
}

func TestAdmission_LeaveIsIdempotent(t *testing.T) {
	ctrl, participants, _, bus := newAdmissionFixture()
	defer bus.Close()
	rm := testRoom("creator", models.RoomKindText, models.AdmissionOpen)

	_, err := ctrl.RequestJoin(context.Background(), rm, "visitor")
	require.NoError(t, err)

	require.NoError(t, ctrl.Leave(context.Background(), rm, "visitor"))

	exists, err := participants.Exists(context.Background(), rm.ID, "visitor")
	require.NoError(t, err)
	assert.False(t, exists)

	// Üye olmayanın ayrılması da başarılıdır.
	require.NoError(t, ctrl.Leave(context.Background(), rm, "visitor"))
}

func TestAdmission_PublishesChanges(t *testing.T) {
	ctrl, _, waiting, bus := newAdmissionFixture()
	defer bus.Close()
	rm := testRoom("creator", models.RoomKindText, models.AdmissionRequiresApproval)

	var mu sync.Mutex
	var changes []realtime.Change
	cancel := bus.Subscribe(rm.ID, func(c realtime.Change) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})
	defer cancel()

	_, err := ctrl.RequestJoin(context.Background(), rm, "visitor")
	require.NoError(t, err)

	pending, err := waiting.GetPending(context.Background(), rm.ID, "visitor")
	require.NoError(t, err)

	_, err = ctrl.Approve(context.Background(), rm, pending.ID, "creator")
	require.NoError(t, err)

	// waiting insert + waiting update + participant insert
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) == 3
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, realtime.TableWaitingEntries, changes[0].Table)
	assert.Equal(t, realtime.OpInsert, changes[0].Op)
	assert.Equal(t, realtime.TableWaitingEntries, changes[1].Table)
	assert.Equal(t, realtime.OpUpdate, changes[1].Op)
	assert.Equal(t, realtime.TableParticipants, changes[2].Table)
	assert.Equal(t, realtime.OpInsert, changes[2].Op)
}
