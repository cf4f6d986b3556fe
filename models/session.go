package models

import "time"

// Session, JWT refresh token oturumunu temsil eder.
//
// Neden refresh token ayrı tabloda?
// Access token kısa ömürlü — sık sık yenilenir.
// Refresh token uzun ömürlü — access token yenilemek için kullanılır.
// Refresh token'ları DB'de tutarak:
//   - Çalınan token'ı iptal edebiliriz (revoke)
//   - Logout'ta sadece ilgili oturumu silebiliriz
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	RefreshToken string    `json:"-"` // API'ye gönderilmez
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}
