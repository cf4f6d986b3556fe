package models

import "time"

// Participant, bir kullanıcının bir odadaki üyeliğini temsil eder.
// (room_id, user_id) çifti primary key'dir — bir kullanıcı bir odaya
// en fazla bir kez üye olabilir.
type Participant struct {
	RoomID   string    `json:"room_id"`
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// RoomMember, üyelik kaydını kullanıcı görünüm bilgileriyle birleştirir.
// Üye listesi endpoint'i ve realtime katılım event'leri bu tipi kullanır.
type RoomMember struct {
	Participant
	Username    string  `json:"username"`
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
}
