package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"possettle/backend/internal/domain"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func plainAdminStore() *userStoreStub {
	return &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      RoleAdmin,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	store := plainAdminStore()

	manager := NewAuthManager("test-secret", time.Hour, "123456", store)
	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if !strings.HasPrefix(users[0].Password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", users[0].Password)
	}
	if store.updates == 0 {
		t.Fatalf("expected upgraded hash to be written back")
	}
}

func TestLoginTokenRoundTrip(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "123456", plainAdminStore())

	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: " Admin ", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.Username != "admin" || actor.Role != RoleAdmin {
		t.Fatalf("unexpected actor %+v", actor)
	}

	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "wrong"}); err == nil {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestParseTokenRejectsForeignTokens(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "123456", nil)

	foreign := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "admin",
			Issuer:    "someone-else",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: RoleAdmin,
	})
	signed, err := foreign.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := manager.ParseToken(signed); err == nil {
		t.Fatalf("expected token from another issuer to be rejected")
	}

	expired, err := manager.sign("admin", RoleAdmin, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := manager.ParseToken(expired); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}

	unknownRole, err := manager.sign("admin", "root", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := manager.ParseToken(unknownRole); err == nil {
		t.Fatalf("expected unknown role to be rejected")
	}
}

func TestCreateCashierStoresPasswordHash(t *testing.T) {
	store := plainAdminStore()

	manager := NewAuthManager("test-secret", time.Hour, "123456", store)
	cashier, err := manager.CreateCashier(context.Background(), domain.CashierCreateRequest{
		Username: "kasirbaru",
		Password: "pass1234",
	})
	if err != nil {
		t.Fatalf("create cashier failed: %v", err)
	}
	if cashier.Username != "kasirbaru" || cashier.Role != RoleCashier {
		t.Fatalf("unexpected cashier %+v", cashier)
	}

	found, ok := store.users["kasirbaru"]
	if !ok {
		t.Fatalf("expected cashier to be saved")
	}
	if !strings.HasPrefix(found.Password, "$2") {
		t.Fatalf("expected bcrypt hash prefix, got %s", found.Password)
	}

	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "kasirbaru", Password: "pass1234"}); err != nil {
		t.Fatalf("login with hashed cashier failed: %v", err)
	}
	if _, err := manager.CreateCashier(context.Background(), domain.CashierCreateRequest{Username: "kasirbaru", Password: "pass1234"}); err == nil {
		t.Fatalf("expected duplicate cashier to fail")
	}

	cashiers := manager.ListCashiers(context.Background())
	if len(cashiers) != 1 || cashiers[0].Username != "kasirbaru" {
		t.Fatalf("unexpected cashier list %+v", cashiers)
	}
}

func TestInactiveAccountCannotLogin(t *testing.T) {
	store := plainAdminStore()
	admin := store.users["admin"]
	admin.Active = false
	store.users["admin"] = admin

	manager := NewAuthManager("test-secret", time.Hour, "123456", store)
	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"}); err == nil {
		t.Fatalf("expected inactive account to be rejected")
	}
}

func TestManagerPINIsHashedAndStillValidates(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "654321", &userStoreStub{users: map[string]domain.UserAccount{}})

	if manager.managerPIN == "654321" {
		t.Fatalf("expected manager pin to be stored as hash, got plain-text")
	}
	if !manager.ValidateManagerPIN("654321") {
		t.Fatalf("expected manager pin validation to succeed")
	}
	if manager.ValidateManagerPIN("111111") {
		t.Fatalf("expected wrong manager pin to fail")
	}
}
