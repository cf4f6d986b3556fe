package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/halkadev/halka/models"
	"github.com/halkadev/halka/pkg"
	"github.com/halkadev/halka/pkg/ratelimit"
	"github.com/halkadev/halka/services"
)

// MessageHandler, mesaj endpoint'lerini yöneten struct.
type MessageHandler struct {
	messageService services.MessageService
	uploadService  services.UploadService
	limiter        *ratelimit.MessageRateLimiter
	maxUploadSize  int64
}

// NewMessageHandler, constructor.
// limiter: Mesaj flood koruması. nil ise rate limiting devre dışı kalır.
func NewMessageHandler(
	messageService services.MessageService,
	uploadService services.UploadService,
	limiter *ratelimit.MessageRateLimiter,
	maxUploadSize int64,
) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		uploadService:  uploadService,
		limiter:        limiter,
		maxUploadSize:  maxUploadSize,
	}
}

// List godoc
// GET /api/rooms/{id}/messages?limit=50
// Odanın son mesajlarını kronolojik sırada döner.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	messages, err := h.messageService.List(r.Context(), r.PathValue("id"), user.ID, limit)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, messages)
}

// Create godoc
// POST /api/rooms/{id}/messages
// Body: { "body": "mesaj metni" }
//
// Rate limiting: kullanıcı bazlı flood koruması.
// Limit aşıldığında 429 Too Many Requests döner.
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	if h.limiter != nil && !h.limiter.Allow(user.ID) {
		pkg.ErrorWithMessage(w, http.StatusTooManyRequests,
			"you are sending messages too fast, slow down")
		return
	}

	var req models.CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message, err := h.messageService.Create(r.Context(), r.PathValue("id"), user.ID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, message)
}

// MarkRead godoc
// POST /api/rooms/{id}/read
// Odadaki başkalarına ait okunmamış mesajları okundu işaretler.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	if err := h.messageService.MarkRead(r.Context(), r.PathValue("id"), user.ID); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "marked as read"})
}

// Upload godoc
// POST /api/upload
// Bağımsız dosya yükleme endpoint'i. Yüklenen dosyanın URL'i döner —
// istemci bu URL'i mesaj body'sinde kullanır.
func (h *MessageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(r); !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	// ParseMultipartForm: body'yi multipart form olarak parse eder.
	// maxUploadSize bellek limitidir — aşan dosyalar geçici dosyaya yazılır.
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	object, err := h.uploadService.Upload(file, header)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, object)
}
