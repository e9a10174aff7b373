package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/untoldlabs/untold/backend/internal/authz"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Account{}); err != nil {
		t.Fatalf("failed to migrate account schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database:   db,
		BcryptCost: bcrypt.MinCost,
		Clock: func() time.Time {
			return time.Unix(1700000000, 0)
		},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

func TestRegisterCreatesUserAccount(t *testing.T) {
	service := newTestService(t)

	account, err := service.Register(context.Background(), "alice", "hunter2")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if account.AccountID == "" {
		t.Fatalf("expected generated account id")
	}
	if account.Role != string(authz.RoleUser) {
		t.Fatalf("expected USER role, got %q", account.Role)
	}
	if account.PasswordHash == "hunter2" || account.PasswordHash == "" {
		t.Fatalf("expected hashed password, got %q", account.PasswordHash)
	}
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	service := newTestService(t)

	if _, err := service.Register(context.Background(), "alice", "hunter2"); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	_, err := service.Register(context.Background(), "alice", "different")
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("expected duplicate username error, got %v", err)
	}

	var count int64
	if err := service.db.Model(&Account{}).Where("username = ?", "alice").Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one account row, got %d", count)
	}
}

func TestRegisterRejectsEmptyInput(t *testing.T) {
	service := newTestService(t)

	if _, err := service.Register(context.Background(), "", "hunter2"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
	if _, err := service.Register(context.Background(), "alice", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestCreateAdminAssignsAdminRole(t *testing.T) {
	service := newTestService(t)

	account, err := service.CreateAdmin(context.Background(), "root", "swordfish")
	if err != nil {
		t.Fatalf("create admin failed: %v", err)
	}
	if account.Role != string(authz.RoleAdmin) {
		t.Fatalf("expected ADMIN role, got %q", account.Role)
	}
}

func TestAuthenticateVerifiesPassword(t *testing.T) {
	service := newTestService(t)

	if _, err := service.Register(context.Background(), "alice", "hunter2"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	account, err := service.Authenticate(context.Background(), "alice", "hunter2")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if account.Username != "alice" {
		t.Fatalf("unexpected username %q", account.Username)
	}

	if _, err := service.Authenticate(context.Background(), "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for wrong password, got %v", err)
	}
	if _, err := service.Authenticate(context.Background(), "nobody", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown username, got %v", err)
	}
}
