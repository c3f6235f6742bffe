package auth_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	pgrepo "github.com/nikitagusev/learnhub/backend/internal/repo/postgres"
	redrepo "github.com/nikitagusev/learnhub/backend/internal/repo/redis"
	authsvc "github.com/nikitagusev/learnhub/backend/internal/services/auth"
)

type fakeUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]pgrepo.UserRecord
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]pgrepo.UserRecord{}}
}

func (s *fakeUserStore) Create(_ context.Context, name, email, passwordHash, role string) (pgrepo.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.ToLower(email)
	if _, exists := s.users[email]; exists {
		return pgrepo.UserRecord{}, pgrepo.ErrEmailTaken
	}

	s.nextID++
	record := pgrepo.UserRecord{
		ID:           s.nextID,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	s.users[email] = record
	return record, nil
}

func (s *fakeUserStore) FindByEmail(_ context.Context, email string) (pgrepo.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.users[strings.ToLower(email)]
	if !ok {
		return pgrepo.UserRecord{}, pgrepo.ErrUserNotFound
	}
	return record, nil
}

func (s *fakeUserStore) FindByID(_ context.Context, userID int64) (pgrepo.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.users {
		if record.ID == userID {
			return record, nil
		}
	}
	return pgrepo.UserRecord{}, pgrepo.ErrUserNotFound
}

func (s *fakeUserStore) UpdateProfile(_ context.Context, userID int64, name string, photoKey *string) (pgrepo.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for email, record := range s.users {
		if record.ID == userID {
			record.Name = name
			if photoKey != nil {
				record.PhotoKey = photoKey
			}
			record.UpdatedAt = time.Now().UTC()
			s.users[email] = record
			return record, nil
		}
	}
	return pgrepo.UserRecord{}, pgrepo.ErrUserNotFound
}

func newAuthServiceForTest(t *testing.T) *authsvc.Service {
	t.Helper()

	mini := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := authsvc.NewService(authsvc.Dependencies{
		JWT:      authsvc.NewJWTManager("test-secret", 15*time.Minute),
		Users:    newFakeUserStore(),
		Sessions: redrepo.NewSessionRepo(client),
	}, 45*24*time.Hour)

	return svc
}

func registerStudent(t *testing.T, svc *authsvc.Service, email string) authsvc.AuthResult {
	t.Helper()

	res, err := svc.Register(context.Background(), authsvc.RegisterInput{
		Name:     "Test Student",
		Email:    email,
		Password: "hunter22",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return res
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newAuthServiceForTest(t)
	ctx := context.Background()

	registered := registerStudent(t, svc, "alice@example.com")
	if registered.Me.Role != authsvc.RoleStudent {
		t.Fatalf("expected default student role, got %q", registered.Me.Role)
	}
	if registered.AccessToken == "" || registered.RefreshToken == "" {
		t.Fatalf("expected tokens on register, got %+v", registered)
	}

	loggedIn, err := svc.Login(ctx, authsvc.LoginInput{Email: "ALICE@example.com", Password: "hunter22"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loggedIn.Me.ID != registered.Me.ID {
		t.Fatalf("login resolved a different user: %+v", loggedIn.Me)
	}

	if _, err := svc.Login(ctx, authsvc.LoginInput{Email: "alice@example.com", Password: "wrong"}); !errors.Is(err, authsvc.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := svc.Login(ctx, authsvc.LoginInput{Email: "nobody@example.com", Password: "hunter22"}); !errors.Is(err, authsvc.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := newAuthServiceForTest(t)
	ctx := context.Background()

	registerStudent(t, svc, "bob@example.com")

	_, err := svc.Register(ctx, authsvc.RegisterInput{
		Name:     "Other Bob",
		Email:    "bob@example.com",
		Password: "hunter22",
	})
	if !errors.Is(err, authsvc.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	svc := newAuthServiceForTest(t)
	ctx := context.Background()

	cases := []authsvc.RegisterInput{
		{Name: "", Email: "a@b.c", Password: "hunter22"},
		{Name: "A", Email: "not-an-email", Password: "hunter22"},
		{Name: "A", Email: "a@b.c", Password: "short"},
		{Name: "A", Email: "a@b.c", Password: "hunter22", Role: "admin"},
	}
	for i, input := range cases {
		if _, err := svc.Register(ctx, input); !errors.Is(err, authsvc.ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestRegisterInstructorRole(t *testing.T) {
	svc := newAuthServiceForTest(t)

	res, err := svc.Register(context.Background(), authsvc.RegisterInput{
		Name:     "Prof",
		Email:    "prof@example.com",
		Password: "hunter22",
		Role:     "instructor",
	})
	if err != nil {
		t.Fatalf("register instructor: %v", err)
	}
	if res.Me.Role != authsvc.RoleInstructor {
		t.Fatalf("expected instructor role, got %q", res.Me.Role)
	}

	claims, err := svc.ValidateAccessToken(context.Background(), res.AccessToken)
	if err != nil {
		t.Fatalf("validate access token: %v", err)
	}
	if claims.Role != authsvc.RoleInstructor {
		t.Fatalf("claims carry role %q", claims.Role)
	}
}

func TestRefreshRotation(t *testing.T) {
	svc := newAuthServiceForTest(t)
	ctx := context.Background()

	loginRes := registerStudent(t, svc, "carol@example.com")

	refreshRes, err := svc.Refresh(ctx, loginRes.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if refreshRes.RefreshToken == loginRes.RefreshToken {
		t.Fatalf("refresh token was not rotated")
	}

	if _, err := svc.Refresh(ctx, loginRes.RefreshToken); !errors.Is(err, authsvc.ErrUnauthorized) {
		t.Fatalf("old refresh token should be unauthorized, got err=%v", err)
	}

	if _, err := svc.ValidateAccessToken(ctx, refreshRes.AccessToken); err != nil {
		t.Fatalf("new access token validation failed: %v", err)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	svc := newAuthServiceForTest(t)
	ctx := context.Background()

	loginRes := registerStudent(t, svc, "dave@example.com")

	claims, err := svc.ValidateAccessToken(ctx, loginRes.AccessToken)
	if err != nil {
		t.Fatalf("validate access token before logout: %v", err)
	}

	if err := svc.Logout(ctx, claims.SID); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if _, err := svc.ValidateAccessToken(ctx, loginRes.AccessToken); !errors.Is(err, authsvc.ErrUnauthorized) {
		t.Fatalf("access token should be unauthorized after logout, got err=%v", err)
	}
}

func TestLogoutAllInvalidatesEverySession(t *testing.T) {
	svc := newAuthServiceForTest(t)
	ctx := context.Background()

	first := registerStudent(t, svc, "erin@example.com")
	second, err := svc.Login(ctx, authsvc.LoginInput{Email: "erin@example.com", Password: "hunter22"})
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	if err := svc.LogoutAll(ctx, first.Me.ID); err != nil {
		t.Fatalf("logout all: %v", err)
	}

	for i, token := range []string{first.AccessToken, second.AccessToken} {
		if _, err := svc.ValidateAccessToken(ctx, token); !errors.Is(err, authsvc.ErrUnauthorized) {
			t.Fatalf("session %d survived logout all: %v", i, err)
		}
	}
}

func TestUpdateProfile(t *testing.T) {
	svc := newAuthServiceForTest(t)
	ctx := context.Background()

	res := registerStudent(t, svc, "frank@example.com")

	photoKey := "photos/1/avatar.png"
	me, err := svc.UpdateProfile(ctx, res.Me.ID, authsvc.ProfileUpdateInput{
		Name:     "Frank Ocean",
		PhotoKey: &photoKey,
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if me.Name != "Frank Ocean" {
		t.Fatalf("name not updated: %+v", me)
	}
	if me.PhotoKey == nil || *me.PhotoKey != photoKey {
		t.Fatalf("photo key not updated: %+v", me)
	}

	me, err = svc.UpdateProfile(ctx, res.Me.ID, authsvc.ProfileUpdateInput{Name: "Frank"})
	if err != nil {
		t.Fatalf("update name only: %v", err)
	}
	if me.PhotoKey == nil || *me.PhotoKey != photoKey {
		t.Fatalf("nil photo key must keep the stored photo: %+v", me)
	}

	if _, err := svc.UpdateProfile(ctx, res.Me.ID, authsvc.ProfileUpdateInput{Name: "  "}); !errors.Is(err, authsvc.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank name, got %v", err)
	}
	if _, err := svc.UpdateProfile(ctx, 9999, authsvc.ProfileUpdateInput{Name: "Ghost"}); !errors.Is(err, authsvc.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown user, got %v", err)
	}
}

func TestValidateAccessTokenRejectsGarbage(t *testing.T) {
	svc := newAuthServiceForTest(t)

	for _, raw := range []string{"", "not.a.jwt", fmt.Sprintf("%s.%s.%s", "a", "b", "c")} {
		if _, err := svc.ValidateAccessToken(context.Background(), raw); !errors.Is(err, authsvc.ErrUnauthorized) {
			t.Fatalf("token %q should be unauthorized, got %v", raw, err)
		}
	}
}
