package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/untoldlabs/untold/backend/internal/authz"
)

var (
	// ErrDuplicateUsername indicates a registration attempt with a taken username.
	ErrDuplicateUsername = errors.New("accounts: username already taken")
	// ErrInvalidCredentials indicates an unknown username or a wrong password.
	ErrInvalidCredentials = errors.New("accounts: invalid credentials")
	// ErrInvalidInput indicates an empty username or password.
	ErrInvalidInput = errors.New("accounts: username and password required")

	errMissingDatabase = errors.New("accounts: database handle is required")
	noOpLogger         = zap.NewNop()
)

// ServiceConfig describes the dependencies for the credential store.
type ServiceConfig struct {
	Database   *gorm.DB
	BcryptCost int
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service manages account registration and authentication.
type Service struct {
	db     *gorm.DB
	cost   int
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the credential store.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, cost: cost, clock: clock, logger: logger}, nil
}

// Register creates a new USER account. The username must be unique; the
// unique index on the username column is the authority, the pre-insert
// lookup only gives a clean error on the common path.
func (s *Service) Register(ctx context.Context, username, password string) (Account, error) {
	return s.create(ctx, username, password, authz.RoleUser)
}

// CreateAdmin provisions a moderator account. Reachable only from the
// operator CLI, never from the HTTP surface.
func (s *Service) CreateAdmin(ctx context.Context, username, password string) (Account, error) {
	return s.create(ctx, username, password, authz.RoleAdmin)
}

func (s *Service) create(ctx context.Context, username, password string, role authz.Role) (Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Account{}, ErrInvalidInput
	}

	var existing Account
	err := s.db.WithContext(ctx).Where("username = ?", username).Take(&existing).Error
	if err == nil {
		return Account{}, ErrDuplicateUsername
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, fmt.Errorf("accounts: lookup failed: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Account{}, fmt.Errorf("accounts: password hashing failed: %w", err)
	}

	account := Account{
		AccountID:    uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         string(role),
		CreatedAt:    s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		// Concurrent registrations race past the lookup; the unique
		// index settles it.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Account{}, ErrDuplicateUsername
		}
		return Account{}, fmt.Errorf("accounts: insert failed: %w", err)
	}

	s.logger.Info("account registered",
		zap.String("account_id", account.AccountID),
		zap.String("role", account.Role))
	return account, nil
}

// Authenticate verifies a username/password pair and returns the matching
// account. Unknown usernames and wrong passwords report the same error.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Account{}, ErrInvalidCredentials
	}

	var account Account
	err := s.db.WithContext(ctx).Where("username = ?", username).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, fmt.Errorf("accounts: lookup failed: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}

	return account, nil
}
