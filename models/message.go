package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Message, bir odadaki tek bir mesajı temsil eder.
// DB'deki "messages" tablosunun Go karşılığı.
//
// ID sunucu tarafından atanır ve sabittir; sıralama (created_at, id)
// çiftine göre yapılır. Mesaj içeriği oluşturulduktan sonra değişmez —
// sadece okundu bayrağı (is_read) güncellenir.
//
// Sender alanı JOIN ile doldurulur — DB'de ayrı tablodadır ama API
// response'unda ve realtime event'lerinde mesajla birlikte taşınır,
// böylece alıcı taraf ikinci bir lookup yapmadan göndereni gösterebilir.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Body      string    `json:"body"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
	Sender    *User     `json:"sender,omitempty"` // JOIN ile gelen gönderen bilgisi
}

// CreateMessageRequest, yeni mesaj gönderme isteği.
type CreateMessageRequest struct {
	Body string `json:"body"`
}

// Validate, CreateMessageRequest kontrolü. İçerik 1-2000 karakter arası olmalı.
func (r *CreateMessageRequest) Validate() error {
	r.Body = strings.TrimSpace(r.Body)
	bodyLen := utf8.RuneCountInString(r.Body)
	if bodyLen < 1 {
		return fmt.Errorf("message body is required")
	}
	if bodyLen > 2000 {
		return fmt.Errorf("message body must be at most 2000 characters")
	}
	return nil
}
