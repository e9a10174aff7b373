package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/untoldlabs/untold/backend/internal/accounts"
	"github.com/untoldlabs/untold/backend/internal/auth"
	"github.com/untoldlabs/untold/backend/internal/authz"
	"github.com/untoldlabs/untold/backend/internal/hashing"
	"github.com/untoldlabs/untold/backend/internal/stories"
)

const (
	principalContextKey = "untold_principal"
	loginPath           = "/auth/login"

	defaultPageSize = 4
)

var (
	errMissingSessions        = errors.New("session manager dependency required")
	errMissingAccountsService = errors.New("accounts service dependency required")
	errMissingStoriesService  = errors.New("stories service dependency required")
	errMissingHasher          = errors.New("hasher dependency required")
	errMissingCookieName      = errors.New("session cookie name required")
)

// SessionManager issues and validates session tokens for the router.
type SessionManager interface {
	IssueSession(username string, role authz.Role) (string, int64, error)
	ValidateSession(token string) (auth.SessionClaims, error)
}

// Dependencies wires the HTTP layer to its collaborators.
type Dependencies struct {
	Sessions   SessionManager
	Accounts   *accounts.Service
	Stories    *stories.Service
	Hasher     *hashing.Hasher
	Logger     *zap.Logger
	CookieName string
	PageSize   int
}

// NewHTTPHandler builds the Gin router for the story API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessions
	}
	if deps.Accounts == nil {
		return nil, errMissingAccountsService
	}
	if deps.Stories == nil {
		return nil, errMissingStoriesService
	}
	if deps.Hasher == nil {
		return nil, errMissingHasher
	}
	if deps.CookieName == "" {
		return nil, errMissingCookieName
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	handler := &httpHandler{
		sessions:   deps.Sessions,
		accounts:   deps.Accounts,
		stories:    deps.Stories,
		hasher:     deps.Hasher,
		logger:     logger,
		cookieName: deps.CookieName,
		pageSize:   pageSize,
	}

	router.POST("/auth/register", handler.handleRegister)
	router.POST("/auth/login", handler.handleLogin)
	router.POST("/auth/logout", handler.handleLogout)

	public := router.Group("/", handler.resolvePrincipal)
	public.GET("/stories", handler.handleListStories)
	public.GET("/search", handler.handleSearchStories)
	public.GET("/stories/:id", handler.handleStoryDetail)
	public.DELETE("/stories/:id", handler.requireAction(authz.ActionDelete), handler.handleDeleteStory)

	me := router.Group("/me", handler.resolvePrincipal, handler.requireAction(authz.ActionSubmit))
	me.GET("/stories", handler.handleDashboard)
	me.POST("/stories", handler.handleSubmitStory)
	me.PUT("/stories/:id", handler.handleEditStory)

	admin := router.Group("/admin", handler.resolvePrincipal, handler.requireAction(authz.ActionModerate))
	admin.GET("/stories", handler.handleAdminStories)

	return router, nil
}

type httpHandler struct {
	sessions   SessionManager
	accounts   *accounts.Service
	stories    *stories.Service
	hasher     *hashing.Hasher
	logger     *zap.Logger
	cookieName string
	pageSize   int
}

// resolvePrincipal attaches the session principal when a valid cookie is
// present. Missing or invalid cookies leave the request anonymous; the
// policy decides later whether that is acceptable.
func (h *httpHandler) resolvePrincipal(c *gin.Context) {
	token, err := c.Cookie(h.cookieName)
	if err != nil || token == "" {
		c.Next()
		return
	}
	claims, err := h.sessions.ValidateSession(token)
	if err != nil {
		h.logger.Info("session validation failed", zap.Error(err))
		c.Next()
		return
	}
	c.Set(principalContextKey, claims.Principal())
	c.Next()
}

// requireAction gates a route on the policy's role table. Ownership checks
// happen in the handlers once the target story is loaded.
func (h *httpHandler) requireAction(action authz.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := principalFrom(c)
		if !principal.Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":    "authentication_required",
				"redirect": loginPath,
			})
			return
		}
		if !authz.CanPerform(principal.Role, action) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func principalFrom(c *gin.Context) authz.Principal {
	value, ok := c.Get(principalContextKey)
	if !ok {
		return authz.Principal{}
	}
	principal, ok := value.(authz.Principal)
	if !ok {
		return authz.Principal{}
	}
	return principal
}

// parsePageIndex reads the zero-based page query parameter, treating
// garbage and negative values as the first page.
func parsePageIndex(c *gin.Context) int {
	raw := c.DefaultQuery("page", "0")
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		return 0
	}
	return index
}

func (h *httpHandler) respondAuthzError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, authz.ErrAuthenticationRequired):
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":    "authentication_required",
			"redirect": loginPath,
		})
	case errors.Is(err, authz.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	default:
		h.logger.Error("authorization decision failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
