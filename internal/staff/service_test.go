package staff

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	pkgauth "github.com/mateovaldes/idp-registry-backend/pkg/auth"
	"github.com/mateovaldes/idp-registry-backend/pkg/config"
	"github.com/mateovaldes/idp-registry-backend/pkg/db/models"
	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
	pkgerrors "github.com/mateovaldes/idp-registry-backend/pkg/errors"
	"github.com/mateovaldes/idp-registry-backend/pkg/security"
)

type stubStaffRepo struct {
	byEmail map[string]*models.StaffUser
	byID    map[uuid.UUID]*models.StaffUser
}

func (s *stubStaffRepo) FindByEmail(ctx context.Context, email string) (*models.StaffUser, error) {
	user, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (s *stubStaffRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.StaffUser, error) {
	user, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

type stubSessions struct {
	generated []string
	revoked   []string
	rotateErr error
}

func (s *stubSessions) Generate(ctx context.Context, accessID string) (string, error) {
	s.generated = append(s.generated, accessID)
	return "refresh-" + accessID, nil
}

func (s *stubSessions) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	if s.rotateErr != nil {
		return "", "", s.rotateErr
	}
	newID := "rotated-" + oldAccessID
	return newID, "refresh-" + newID, nil
}

func (s *stubSessions) Revoke(ctx context.Context, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	return nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "idp-registry",
		ExpirationMinutes: 15,
		SessionTTLMinutes: 43200,
	}
}

func testPasswordConfig() config.PasswordConfig {
	// small argon2 parameters keep the fixture cheap
	return config.PasswordConfig{
		ArgonMemoryKB:    8192,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func newStaffFixture(t *testing.T, active bool) (Service, *stubStaffRepo, *stubSessions, *models.StaffUser) {
	t.Helper()

	hash, err := security.HashPassword("s3cure-pass", testPasswordConfig())
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	user := &models.StaffUser{
		ID:           uuid.New(),
		Email:        "clerk@example.com",
		PasswordHash: hash,
		FullName:     "Test Clerk",
		Role:         enums.StaffRoleClerk,
		Active:       active,
	}
	repo := &stubStaffRepo{
		byEmail: map[string]*models.StaffUser{user.Email: user},
		byID:    map[uuid.UUID]*models.StaffUser{user.ID: user},
	}
	sessions := &stubSessions{}

	svc, err := NewService(ServiceParams{Repo: repo, SessionManager: sessions, JWTConfig: testJWTConfig()})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, repo, sessions, user
}

func TestLoginSuccess(t *testing.T) {
	t.Parallel()

	svc, _, sessions, user := newStaffFixture(t, true)

	res, err := svc.Login(context.Background(), LoginRequest{Email: " Clerk@Example.com ", Password: "s3cure-pass"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.User.ID != user.ID || res.User.Role != enums.StaffRoleClerk {
		t.Fatalf("unexpected profile %+v", res.User)
	}
	if len(sessions.generated) != 1 {
		t.Fatalf("expected one stored session, got %d", len(sessions.generated))
	}
	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), res.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.StaffID != user.ID || claims.ID != sessions.generated[0] {
		t.Fatalf("token claims mismatch: %+v", claims)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newStaffFixture(t, true)

	_, err := svc.Login(context.Background(), LoginRequest{Email: "clerk@example.com", Password: "wrong"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLoginInactiveUserRejected(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newStaffFixture(t, false)

	_, err := svc.Login(context.Background(), LoginRequest{Email: "clerk@example.com", Password: "s3cure-pass"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized for inactive user, got %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newStaffFixture(t, true)

	_, err := svc.Login(context.Background(), LoginRequest{Email: "ghost@example.com", Password: "s3cure-pass"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	t.Parallel()

	svc, _, sessions, _ := newStaffFixture(t, true)

	if err := svc.Logout(context.Background(), "access-id"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(sessions.revoked) != 1 || sessions.revoked[0] != "access-id" {
		t.Fatalf("expected revoked session, got %v", sessions.revoked)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	t.Parallel()

	svc, _, sessions, user := newStaffFixture(t, true)

	login, err := svc.Login(context.Background(), LoginRequest{Email: "clerk@example.com", Password: "s3cure-pass"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	res, err := svc.Refresh(context.Background(), login.AccessToken, login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), res.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.StaffID != user.ID {
		t.Fatalf("rotated token must carry the same staff id, got %s", claims.StaffID)
	}
	wantJTI := "rotated-" + sessions.generated[0]
	if claims.ID != wantJTI {
		t.Fatalf("expected rotated session id %q, got %q", wantJTI, claims.ID)
	}
}

func TestRefreshDeactivatedUserRejected(t *testing.T) {
	t.Parallel()

	svc, repo, _, user := newStaffFixture(t, true)

	login, err := svc.Login(context.Background(), LoginRequest{Email: "clerk@example.com", Password: "s3cure-pass"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	repo.byID[user.ID].Active = false

	_, err = svc.Refresh(context.Background(), login.AccessToken, login.RefreshToken)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized for deactivated user, got %v", err)
	}
}

func TestRefreshGarbageTokenRejected(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newStaffFixture(t, true)

	_, err := svc.Refresh(context.Background(), "not-a-token", "refresh")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
