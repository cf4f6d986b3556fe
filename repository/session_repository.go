package repository

import (
	"context"

	"github.com/halkadev/halka/models"
)

// SessionRepository, refresh token session'ları için veritabanı işlemleri.
// Access token'lar stateless JWT'dir — DB'de sadece refresh session tutulur.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByRefreshToken(ctx context.Context, token string) (*models.Session, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) error
}
