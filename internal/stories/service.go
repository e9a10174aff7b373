package stories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates the requested story id does not exist.
	ErrNotFound = errors.New("stories: story not found")

	errMissingDatabase    = errors.New("database handle is required")
	errMissingIDProvider  = errors.New("id provider is required")
	errMissingAuthorToken = errors.New("author token is required")
	noOpLogger            = zap.NewNop()
)

// ServiceError carries an operation-scoped failure code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew   = "stories.service.new"
	opList         = "stories.list"
	opSearch       = "stories.search"
	opListByAuthor = "stories.list_by_author"
	opGet          = "stories.get"
	opSave         = "stories.save"
	opDelete       = "stories.delete"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies for the story store.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// IDProvider issues identifiers for newly inserted stories.
type IDProvider interface {
	NewID() (string, error)
}

// Service owns the story table. It performs no hashing and no authorization:
// callers supply ready-made author tokens and must gate delete/update
// themselves.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the story store.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// List returns one page of all stories, newest first, with bodies truncated
// for list rendering.
func (s *Service) List(ctx context.Context, page PageRequest) (StoryPage, error) {
	return s.pageQuery(ctx, opList, page, true, func(tx *gorm.DB) *gorm.DB {
		return tx
	})
}

// ListRaw returns one page of all stories with untruncated bodies. Backs
// the administrative data view only.
func (s *Service) ListRaw(ctx context.Context, page PageRequest) (StoryPage, error) {
	return s.pageQuery(ctx, opList, page, false, func(tx *gorm.DB) *gorm.DB {
		return tx
	})
}

// Search returns one page of stories whose subject contains the given text,
// matched case-insensitively, newest first, truncated.
func (s *Service) Search(ctx context.Context, subject string, page PageRequest) (StoryPage, error) {
	pattern := "%" + subject + "%"
	return s.pageQuery(ctx, opSearch, page, true, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("subject LIKE ? COLLATE NOCASE", pattern)
	})
}

// ListByAuthorToken returns one page of stories carrying the exact opaque
// author token, newest first, truncated. This backs the "my stories" view;
// the caller must already have derived the token from the authenticated
// identity.
func (s *Service) ListByAuthorToken(ctx context.Context, token string, page PageRequest) (StoryPage, error) {
	if token == "" {
		return StoryPage{}, newServiceError(opListByAuthor, "missing_author_token", errMissingAuthorToken)
	}
	return s.pageQuery(ctx, opListByAuthor, page, true, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("author_token = ?", token)
	})
}

func (s *Service) pageQuery(ctx context.Context, operation string, page PageRequest, preview bool, scope func(*gorm.DB) *gorm.DB) (StoryPage, error) {
	if page.Size <= 0 {
		return StoryPage{}, newServiceError(operation, "invalid_page_size", fmt.Errorf("page size %d", page.Size))
	}
	if page.Index < 0 {
		page.Index = 0
	}

	var total int64
	if err := scope(s.db.WithContext(ctx).Model(&Story{})).Count(&total).Error; err != nil {
		s.logError(operation, "count_failed", err)
		return StoryPage{}, newServiceError(operation, "count_failed", err)
	}

	var records []Story
	err := scope(s.db.WithContext(ctx)).
		Order("created_at_s DESC").
		Offset(page.offset()).
		Limit(page.Size).
		Find(&records).Error
	if err != nil {
		s.logError(operation, "query_failed", err)
		return StoryPage{}, newServiceError(operation, "query_failed", err)
	}

	if preview {
		for i := range records {
			records[i].Body = Truncate(records[i].Body, PreviewLimit)
		}
	}

	totalPages := int((total + int64(page.Size) - 1) / int64(page.Size))
	return StoryPage{Stories: records, TotalPages: totalPages, PageIndex: page.Index}, nil
}

// GetByID returns the full story, body untruncated.
func (s *Service) GetByID(ctx context.Context, id string) (Story, error) {
	var story Story
	err := s.db.WithContext(ctx).Where("story_id = ?", id).Take(&story).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Story{}, ErrNotFound
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.String("story_id", id))
		return Story{}, newServiceError(opGet, "query_failed", err)
	}
	return story, nil
}

// Save inserts the story when its id is empty, assigning the id and creation
// timestamp server-side, and otherwise updates the existing row in place.
// Updates keep the original creation time so listings stay in submission
// order. The author token must already be set; the store never hashes.
func (s *Service) Save(ctx context.Context, story Story) (Story, error) {
	if story.AuthorToken == "" {
		return Story{}, newServiceError(opSave, "missing_author_token", errMissingAuthorToken)
	}

	if story.StoryID == "" {
		id, err := s.idProvider.NewID()
		if err != nil {
			s.logError(opSave, "id_generation_failed", err)
			return Story{}, newServiceError(opSave, "id_generation_failed", err)
		}
		story.StoryID = id
		story.CreatedAtSeconds = s.clock().UTC().Unix()
		if err := s.db.WithContext(ctx).Create(&story).Error; err != nil {
			s.logError(opSave, "insert_failed", err, zap.String("story_id", story.StoryID))
			return Story{}, newServiceError(opSave, "insert_failed", err)
		}
		return story, nil
	}

	var existing Story
	err := s.db.WithContext(ctx).Where("story_id = ?", story.StoryID).Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Story{}, ErrNotFound
	}
	if err != nil {
		s.logError(opSave, "select_failed", err, zap.String("story_id", story.StoryID))
		return Story{}, newServiceError(opSave, "select_failed", err)
	}

	story.CreatedAtSeconds = existing.CreatedAtSeconds
	if err := s.db.WithContext(ctx).Save(&story).Error; err != nil {
		s.logError(opSave, "update_failed", err, zap.String("story_id", story.StoryID))
		return Story{}, newServiceError(opSave, "update_failed", err)
	}
	return story, nil
}

// DeleteByID removes the story unconditionally. Authorization is the
// caller's responsibility.
func (s *Service) DeleteByID(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("story_id = ?", id).Delete(&Story{})
	if result.Error != nil {
		s.logError(opDelete, "delete_failed", result.Error, zap.String("story_id", id))
		return newServiceError(opDelete, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("stories service error", attrs...)
}
