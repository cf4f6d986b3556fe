package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// RoomKind, odanın iletişim tipini belirler.
// Tip oda oluşturulurken seçilir ve sonradan değiştirilemez — kind
// medya oturumunun nasıl kurulacağını belirler (text: medya yok,
// audio: sadece mikrofon, video: mikrofon + kamera).
type RoomKind string

const (
	RoomKindText  RoomKind = "text"
	RoomKindAudio RoomKind = "audio"
	RoomKindVideo RoomKind = "video"
)

// RoomVisibility, odanın keşfedilebilirliğini belirler.
type RoomVisibility string

const (
	RoomVisibilityPublic  RoomVisibility = "public"
	RoomVisibilityPrivate RoomVisibility = "private"
)

// AdmissionPolicy, odaya katılımın nasıl işlediğini belirler.
//
// open: istek anında üyelik verilir.
// requires_approval: istek bekleme odasına düşer, oda kurucusu onaylar.
type AdmissionPolicy string

const (
	AdmissionOpen             AdmissionPolicy = "open"
	AdmissionRequiresApproval AdmissionPolicy = "requires_approval"
)

// Room, bir sohbet/görüşme odasını temsil eder.
// Capacity 0 → sınırsız.
type Room struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Kind       RoomKind        `json:"kind"`
	Visibility RoomVisibility  `json:"visibility"`
	CreatorID  string          `json:"creator_id"`
	Policy     AdmissionPolicy `json:"admission_policy"`
	Capacity   int             `json:"capacity"`
	CreatedAt  time.Time       `json:"created_at"`
}

// MembershipState, kullanıcının bir odayla ilişkisini özetler.
// Frontend bu değere göre "gir" / "bekleniyor" / "katıl" gösterir.
type MembershipState string

const (
	MembershipMember    MembershipState = "member"
	MembershipPending   MembershipState = "pending"
	MembershipNotJoined MembershipState = "not_joined"
)

// JoinResult, katılım isteğinin anlık sonucu.
// joined: kullanıcı üye oldu. pending: istek bekleme odasına düştü.
type JoinResult string

const (
	JoinResultJoined  JoinResult = "joined"
	JoinResultPending JoinResult = "pending"
)

// CreateRoomRequest, yeni oda oluşturma isteği.
type CreateRoomRequest struct {
	Name       string          `json:"name"`
	Kind       RoomKind        `json:"kind"`
	Visibility RoomVisibility  `json:"visibility"`
	Policy     AdmissionPolicy `json:"admission_policy"`
	Capacity   int             `json:"capacity"`
}

// Validate, CreateRoomRequest kontrolü. Boş bırakılan alanlar için
// varsayılanlar atanır: visibility → public, policy → open.
func (r *CreateRoomRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	nameLen := utf8.RuneCountInString(r.Name)
	if nameLen < 1 {
		return fmt.Errorf("room name is required")
	}
	if nameLen > 100 {
		return fmt.Errorf("room name must be at most 100 characters")
	}

	switch r.Kind {
	case RoomKindText, RoomKindAudio, RoomKindVideo:
	case "":
		r.Kind = RoomKindText
	default:
		return fmt.Errorf("invalid room kind: %s", r.Kind)
	}

	switch r.Visibility {
	case RoomVisibilityPublic, RoomVisibilityPrivate:
	case "":
		r.Visibility = RoomVisibilityPublic
	default:
		return fmt.Errorf("invalid room visibility: %s", r.Visibility)
	}

	switch r.Policy {
	case AdmissionOpen, AdmissionRequiresApproval:
	case "":
		r.Policy = AdmissionOpen
	default:
		return fmt.Errorf("invalid admission policy: %s", r.Policy)
	}

	if r.Capacity < 0 {
		return fmt.Errorf("capacity cannot be negative")
	}

	return nil
}

// UpdateRoomRequest, oda güncelleme isteği. Pointer field'lar partial
// update sağlar: nil → alan değişmez. Kind kasıtlı olarak yok — oda
// tipi oluşturma sonrası değişmez.
type UpdateRoomRequest struct {
	Name       *string          `json:"name"`
	Visibility *RoomVisibility  `json:"visibility"`
	Policy     *AdmissionPolicy `json:"admission_policy"`
	Capacity   *int             `json:"capacity"`
}

// Validate, UpdateRoomRequest kontrolü — sadece gönderilen alanlar denetlenir.
func (r *UpdateRoomRequest) Validate() error {
	if r.Name != nil {
		trimmed := strings.TrimSpace(*r.Name)
		nameLen := utf8.RuneCountInString(trimmed)
		if nameLen < 1 {
			return fmt.Errorf("room name cannot be empty")
		}
		if nameLen > 100 {
			return fmt.Errorf("room name must be at most 100 characters")
		}
		*r.Name = trimmed
	}

	if r.Visibility != nil {
		switch *r.Visibility {
		case RoomVisibilityPublic, RoomVisibilityPrivate:
		default:
			return fmt.Errorf("invalid room visibility: %s", *r.Visibility)
		}
	}

	if r.Policy != nil {
		switch *r.Policy {
		case AdmissionOpen, AdmissionRequiresApproval:
		default:
			return fmt.Errorf("invalid admission policy: %s", *r.Policy)
		}
	}

	if r.Capacity != nil && *r.Capacity < 0 {
		return fmt.Errorf("capacity cannot be negative")
	}

	return nil
}
