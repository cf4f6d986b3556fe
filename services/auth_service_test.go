package services_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halkadev/halka/models"
	"github.com/halkadev/halka/pkg"
	"github.com/halkadev/halka/services"
)

// ─── Fake Repositories ───
//
// AuthService'in DB'ye ihtiyacı yok — interface'ler sayesinde
// in-memory fake'lerle test edilir.

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*models.User // ID → user
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return fmt.Errorf("%w: username already taken", pkg.ErrAlreadyExists)
		}
	}
	r.nextID++
	user.ID = "user-" + strconv.Itoa(r.nextID)
	user.CreatedAt = time.Now()
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user", pkg.ErrNotFound)
	}
	clone := *u
	return &clone, nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("%w: user", pkg.ErrNotFound)
}

func (r *fakeUserRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			clone := *u
			out[id] = &clone
		}
	}
	return out, nil
}

func (r *fakeUserRepo) UpdateStatus(ctx context.Context, userID string, status models.UserStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("%w: user", pkg.ErrNotFound)
	}
	u.Status = status
	return nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.Session // ID → session
	nextID   int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*models.Session)}
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	session.ID = "sess-" + strconv.Itoa(r.nextID)
	session.CreatedAt = time.Now()
	clone := *session
	r.sessions[session.ID] = &clone
	return nil
}

func (r *fakeSessionRepo) GetByRefreshToken(ctx context.Context, token string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.RefreshToken == token {
			clone := *s
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("%w: session", pkg.ErrNotFound)
}

func (r *fakeSessionRepo) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *fakeSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, id)
		}
	}
	return nil
}

func (r *fakeSessionRepo) DeleteExpired(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for id, s := range r.sessions {
		if s.ExpiresAt.Before(now) {
			delete(r.sessions, id)
		}
	}
	return nil
}

func (r *fakeSessionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *fakeSessionRepo) expireAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.ExpiresAt = time.Now().Add(-time.Minute)
	}
}

// ─── Fixture ───

func newAuthFixture() (services.AuthService, *fakeUserRepo, *fakeSessionRepo) {
	users := newFakeUserRepo()
	sessions := newFakeSessionRepo()
	svc := services.NewAuthService(users, sessions, "test-secret", 15, 7)
	return svc, users, sessions
}

func registerReq(username string) *models.CreateUserRequest {
	return &models.CreateUserRequest{
		Username: username,
		Password: "correct-horse",
	}
}

// ─── Tests ───

func TestAuth_RegisterReturnsTokensAndUser(t *testing.T) {
	svc, _, sessions := newAuthFixture()
	ctx := context.Background()

	tokens, err := svc.Register(ctx, registerReq("ayse"))
	require.NoError(t, err)

	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, "ayse", tokens.User.Username)
	assert.Equal(t, models.UserStatusOnline, tokens.User.Status)
	// Hash response'a sızmamalı.
	assert.Empty(t, tokens.User.PasswordHash)
	assert.Equal(t, 1, sessions.count())

	claims, err := svc.ValidateAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, tokens.User.ID, claims.UserID)
	assert.Equal(t, "ayse", claims.Username)
}

func TestAuth_RegisterRejectsInvalidRequest(t *testing.T) {
	svc, _, _ := newAuthFixture()

	_, err := svc.Register(context.Background(), &models.CreateUserRequest{
		Username: "ab", // çok kısa
		Password: "correct-horse",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkg.ErrBadRequest))
}

func TestAuth_RegisterRejectsDuplicateUsername(t *testing.T) {
	svc, _, _ := newAuthFixture()
	ctx := context.Background()

	_, err := svc.Register(ctx, registerReq("ayse"))
	require.NoError(t, err)

	_, err = svc.Register(ctx, registerReq("ayse"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkg.ErrAlreadyExists))
}

func TestAuth_LoginWithCorrectPassword(t *testing.T) {
	svc, users, _ := newAuthFixture()
	ctx := context.Background()

	reg, err := svc.Register(ctx, registerReq("ayse"))
	require.NoError(t, err)
	require.NoError(t, users.UpdateStatus(ctx, reg.User.ID, models.UserStatusOffline))

	tokens, err := svc.Login(ctx, &models.LoginRequest{Username: "ayse", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, tokens.User.ID)
	assert.Equal(t, models.UserStatusOnline, tokens.User.Status)
	assert.Empty(t, tokens.User.PasswordHash)
}

func TestAuth_LoginFailuresAreIndistinguishable(t *testing.T) {
	// Yanlış şifre ile bilinmeyen kullanıcı aynı hatayı dönmeli —
	// hangi kullanıcı adlarının kayıtlı olduğu sızdırılmaz.
	svc, _, _ := newAuthFixture()
	ctx := context.Background()

	_, err := svc.Register(ctx, registerReq("ayse"))
	require.NoError(t, err)

	_, wrongPass := svc.Login(ctx, &models.LoginRequest{Username: "ayse", Password: "wrong-password"})
	_, unknownUser := svc.Login(ctx, &models.LoginRequest{Username: "ghost", Password: "correct-horse"})

	require.Error(t, wrongPass)
	require.Error(t, unknownUser)
	assert.True(t, errors.Is(wrongPass, pkg.ErrUnauthorized))
	assert.True(t, errors.Is(unknownUser, pkg.ErrUnauthorized))
	assert.Equal(t, wrongPass.Error(), unknownUser.Error())
}

func TestAuth_RefreshRotatesToken(t *testing.T) {
	svc, _, sessions := newAuthFixture()
	ctx := context.Background()

	reg, err := svc.Register(ctx, registerReq("ayse"))
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(ctx, reg.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, reg.RefreshToken, refreshed.RefreshToken)
	assert.Equal(t, reg.User.ID, refreshed.User.ID)
	// Eski session silinmiş, yenisi eklenmiş olmalı.
	assert.Equal(t, 1, sessions.count())

	// Kullanılmış refresh token artık geçersiz (rotation).
	_, err = svc.RefreshToken(ctx, reg.RefreshToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkg.ErrUnauthorized))
}

func TestAuth_RefreshRejectsExpiredSession(t *testing.T) {
	svc, _, sessions := newAuthFixture()
	ctx := context.Background()

	reg, err := svc.Register(ctx, registerReq("ayse"))
	require.NoError(t, err)

	sessions.expireAll()

	_, err = svc.RefreshToken(ctx, reg.RefreshToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkg.ErrUnauthorized))
	// Süresi dolan session temizlenmiş olmalı.
	assert.Equal(t, 0, sessions.count())
}

func TestAuth_LogoutRevokesSessionAndMarksOffline(t *testing.T) {
	svc, users, sessions := newAuthFixture()
	ctx := context.Background()

	reg, err := svc.Register(ctx, registerReq("ayse"))
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, reg.RefreshToken))
	assert.Equal(t, 0, sessions.count())

	user, err := users.GetByID(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusOffline, user.Status)

	// Bilinmeyen token no-op'tur.
	require.NoError(t, svc.Logout(ctx, "not-a-real-token"))
}

func TestAuth_ValidateRejectsForeignSignature(t *testing.T) {
	svc, users, sessions := newAuthFixture()
	ctx := context.Background()

	reg, err := svc.Register(ctx, registerReq("ayse"))
	require.NoError(t, err)

	// Aynı kullanıcı, farklı secret ile imzalanmış token.
	other := services.NewAuthService(users, sessions, "another-secret", 15, 7)
	_, err = other.ValidateAccessToken(reg.AccessToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkg.ErrUnauthorized))

	_, err = svc.ValidateAccessToken("garbage.token.value")
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkg.ErrUnauthorized))
}
