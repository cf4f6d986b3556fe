package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/halkadev/halka/models"
	"github.com/halkadev/halka/pkg"
	"github.com/halkadev/halka/services"
)

// RoomHandler, oda CRUD'u ve üyelik/bekleme odası endpoint'lerini yönetir.
type RoomHandler struct {
	roomService services.RoomService
}

// NewRoomHandler, constructor.
func NewRoomHandler(roomService services.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// Create godoc
// POST /api/rooms
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	var req models.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	room, err := h.roomService.Create(r.Context(), user.ID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, room)
}

// List godoc
// GET /api/rooms
// Public odalar + kullanıcının üye olduğu private odalar.
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	rooms, err := h.roomService.List(r.Context(), user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, rooms)
}

// Get godoc
// GET /api/rooms/{id}
// Response'ta çağıranın üyelik durumu da döner — frontend buna göre
// "katıl" butonu mu, bekleme ekranı mı, oda içeriği mi göstereceğine karar verir.
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	room, membership, err := h.roomService.Get(r.Context(), r.PathValue("id"), user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]any{
		"room":       room,
		"membership": membership,
	})
}

// Update godoc
// PUT /api/rooms/{id}
// Sadece oda kurucusu güncelleyebilir.
func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	var req models.UpdateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	room, err := h.roomService.Update(r.Context(), r.PathValue("id"), user.ID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, room)
}

// Delete godoc
// DELETE /api/rooms/{id}
func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	if err := h.roomService.Delete(r.Context(), r.PathValue("id"), user.ID); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "room deleted"})
}

// Join godoc
// POST /api/rooms/{id}/join
//
// Odanın admission policy'sine göre iki sonuç mümkün:
// - "joined":  kullanıcı doğrudan üye oldu
// - "pending": onay bekleyen bir kayıt oluştu (ya da zaten vardı)
// Aynı isteğin tekrarı hata değildir — mevcut durum döner.
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	result, err := h.roomService.Join(r.Context(), r.PathValue("id"), user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]any{"result": result})
}

// Leave godoc
// POST /api/rooms/{id}/leave
func (h *RoomHandler) Leave(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	if err := h.roomService.Leave(r.Context(), r.PathValue("id"), user.ID); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "left room"})
}

// Members godoc
// GET /api/rooms/{id}/members
// Sadece üyeler görebilir.
func (h *RoomHandler) Members(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	members, err := h.roomService.Members(r.Context(), r.PathValue("id"), user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, members)
}

// Pending godoc
// GET /api/rooms/{id}/waiting
// Bekleme odası kuyruğu — sadece oda kurucusu görebilir.
func (h *RoomHandler) Pending(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	entries, err := h.roomService.PendingEntries(r.Context(), r.PathValue("id"), user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, entries)
}

// Approve godoc
// POST /api/rooms/{id}/waiting/{entryId}/approve
func (h *RoomHandler) Approve(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	entry, err := h.roomService.Approve(r.Context(), r.PathValue("id"), r.PathValue("entryId"), user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, entry)
}

// Deny godoc
// POST /api/rooms/{id}/waiting/{entryId}/deny
func (h *RoomHandler) Deny(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	entry, err := h.roomService.Deny(r.Context(), r.PathValue("id"), r.PathValue("entryId"), user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, entry)
}
