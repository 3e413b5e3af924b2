package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/backtrackers-api/internal/models"
	"github.com/noah-isme/backtrackers-api/internal/repository"
	appErrors "github.com/noah-isme/backtrackers-api/pkg/errors"
)

type mockAuthRepo struct {
	users     map[string]*models.User
	createErr error
	auditLogs []*models.AuditLog
}

func newMockAuthRepo(users ...*models.User) *mockAuthRepo {
	m := &mockAuthRepo{users: map[string]*models.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, err := m.FindByEmail(ctx, user.Email); err == nil {
		return repository.ErrDuplicate
	}
	user.ID = fmt.Sprintf("u%d", len(m.users)+1)
	m.users[user.ID] = user
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newTestAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "backtrackers-test",
		BcryptCost:        bcrypt.MinCost,
	})
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthServiceRegisterDefaultsToMember(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)

	res, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    " Alice@Example.com ",
		Password: "password",
		FullName: "Alice",
	}, nil, "10.0.0.1", "test")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, models.RoleMember, res.User.Role)
	assert.Equal(t, "alice@example.com", res.User.Email)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionRegister, repo.auditLogs[0].Action)

	stored := repo.users[res.User.ID]
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("password")))
}

func TestAuthServiceRegisterAdminRequiresAdminCaller(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)
	req := models.RegisterRequest{Email: "root@example.com", Password: "password", FullName: "Root", Role: models.RoleAdmin}

	_, err := svc.Register(context.Background(), req, nil, "", "")
	assertCode(t, err, appErrors.ErrForbidden)

	_, err = svc.Register(context.Background(), req, member("m1"), "", "")
	assertCode(t, err, appErrors.ErrForbidden)

	res, err := svc.Register(context.Background(), req, admin("a1"), "", "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, res.User.Role)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "bob@example.com", Role: models.RoleMember})
	svc := newTestAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "bob@example.com", Password: "password", FullName: "Bob"}, nil, "", "")
	assertCode(t, err, appErrors.ErrConflict)
}

func TestAuthServiceRegisterValidation(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo())
	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "not-an-email", Password: "123", FullName: ""}, nil, "", "")
	assertCode(t, err, appErrors.ErrValidation)
}

func TestAuthServiceLogin(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "user@example.com", PasswordHash: hashed(t, "password"), FullName: "User", Role: models.RoleAdmin})
	svc := newTestAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "USER@example.com", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, "u1", res.User.ID)

	claims, err := svc.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.True(t, claims.IsAdmin())
	assert.Equal(t, "backtrackers-test", claims.Issuer)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "wrong"})
	assertCode(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "password"})
	assertCode(t, err, appErrors.ErrInvalidCredentials)
}

func TestValidateTokenRejectsTamperedAndExpired(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "user@example.com", PasswordHash: hashed(t, "password"), Role: models.RoleMember})
	svc := newTestAuthService(repo)
	issued := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(res.Token)
	require.NoError(t, err)

	_, err = svc.ValidateToken(res.Token + "x")
	assertCode(t, err, appErrors.ErrUnauthorized)

	other := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "other"})
	other.now = svc.now
	_, err = other.ValidateToken(res.Token)
	assertCode(t, err, appErrors.ErrUnauthorized)

	svc.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = svc.ValidateToken(res.Token)
	assertCode(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceMe(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "user@example.com", FullName: "User", Phone: "555", Role: models.RoleMember})
	svc := newTestAuthService(repo)

	info, err := svc.Me(context.Background(), member("u1"))
	require.NoError(t, err)
	assert.Equal(t, "555", info.Phone)

	_, err = svc.Me(context.Background(), member("gone"))
	assertCode(t, err, appErrors.ErrUnauthorized)

	_, err = svc.Me(context.Background(), nil)
	assertCode(t, err, appErrors.ErrUnauthorized)
}
