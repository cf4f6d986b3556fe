package models

import "time"

// WaitingStatus, bekleme odası kaydının durumu.
// Geçişler tek yönlüdür: pending → approved veya pending → denied.
// Karar verilmiş bir kayıt bir daha değişmez.
type WaitingStatus string

const (
	WaitingPending  WaitingStatus = "pending"
	WaitingApproved WaitingStatus = "approved"
	WaitingDenied   WaitingStatus = "denied"
)

// WaitingEntry, onay gerektiren bir odaya yapılmış katılım isteğini temsil eder.
//
// Bir kullanıcının aynı oda için aynı anda en fazla bir pending kaydı
// olabilir (DB'de partial unique index ile zorlanır). Tekrarlanan istek
// hata değildir — mevcut pending kayıt geçerli sayılır (idempotent join).
type WaitingEntry struct {
	ID          string        `json:"id"`
	RoomID      string        `json:"room_id"`
	UserID      string        `json:"user_id"`
	Status      WaitingStatus `json:"status"`
	RequestedAt time.Time     `json:"requested_at"`
	ReviewedBy  *string       `json:"reviewed_by"` // kararı veren kullanıcı (pending'de nil)
	ReviewedAt  *time.Time    `json:"reviewed_at"`
}

// WaitingEntryWithUser, bekleme kaydını istek sahibinin görünüm
// bilgileriyle birleştirir — kurucunun onay ekranı için.
type WaitingEntryWithUser struct {
	WaitingEntry
	Username    string  `json:"username"`
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
}
