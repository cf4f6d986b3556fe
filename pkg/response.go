package pkg

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

// APIResponse, tüm HTTP yanıtlarının ortak zarfı. Başarıda Data,
// hatada Error dolu olur — client iki alana bakarak ayrıştırır.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JSON, başarılı yanıtı verilen status ile yazar.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, APIResponse{Success: true, Data: data})
}

// Error, domain hatasını HTTP yanıtına çevirir. Status, hata
// zincirindeki sentinel'e göre seçilir — wrap edilmiş hatalar da
// errors.Is ile doğru eşleşir.
func Error(w http.ResponseWriter, err error) {
	write(w, statusFor(err), APIResponse{Success: false, Error: err.Error()})
}

// ErrorWithMessage, sentinel eşlemesinden bağımsız, sabit mesajlı hata
// yanıtı yazar — decode hataları gibi domain'e girmeyen durumlar için.
func ErrorWithMessage(w http.ResponseWriter, status int, message string) {
	write(w, status, APIResponse{Success: false, Error: message})
}

func write(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		// Status satırı çoktan gitti — geriye sadece loglamak kalır.
		log.Printf("[response] failed to encode response: %v", err)
	}
}

// statusFor, sentinel hataları HTTP status code'larına eşler.
// Zincirde sentinel yoksa 500 döner — iç hata detayı yine de
// Error() üzerinden mesaja yazılır.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
