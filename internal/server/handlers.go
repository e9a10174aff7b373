package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/untoldlabs/untold/backend/internal/accounts"
	"github.com/untoldlabs/untold/backend/internal/authz"
	"github.com/untoldlabs/untold/backend/internal/stories"
)

type credentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type storyInputPayload struct {
	Subject  string `json:"subject"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Positive bool   `json:"is_positive"`
}

func (p storyInputPayload) valid() bool {
	return strings.TrimSpace(p.Subject) != "" &&
		strings.TrimSpace(p.Title) != "" &&
		strings.TrimSpace(p.Body) != ""
}

type storyPayload struct {
	StoryID          string `json:"story_id"`
	Subject          string `json:"subject"`
	Title            string `json:"title"`
	Body             string `json:"body"`
	Positive         bool   `json:"is_positive"`
	CreatedAtSeconds int64  `json:"created_at_s"`
	CanEdit          bool   `json:"can_edit,omitempty"`
	CanDelete        bool   `json:"can_delete,omitempty"`
}

type storyListPayload struct {
	Stories     []storyPayload `json:"stories"`
	TotalPages  int            `json:"total_pages"`
	CurrentPage int            `json:"current_page"`
	IsAdmin     bool           `json:"is_admin,omitempty"`
}

type adminStoryPayload struct {
	StoryID          string `json:"story_id"`
	Subject          string `json:"subject"`
	AuthorToken      string `json:"author_token"`
	Title            string `json:"title"`
	Body             string `json:"body"`
	Positive         bool   `json:"is_positive"`
	CreatedAtSeconds int64  `json:"created_at_s"`
}

type adminStoryListPayload struct {
	Stories     []adminStoryPayload `json:"stories"`
	TotalPages  int                 `json:"total_pages"`
	CurrentPage int                 `json:"current_page"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	account, err := h.accounts.Register(c.Request.Context(), request.Username, request.Password)
	if err != nil {
		switch {
		case errors.Is(err, accounts.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		case errors.Is(err, accounts.ErrDuplicateUsername):
			c.JSON(http.StatusConflict, gin.H{"error": "duplicate_username"})
		default:
			h.logger.Error("registration failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration_failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"account_id": account.AccountID,
		"username":   account.Username,
	})
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	account, err := h.accounts.Authenticate(c.Request.Context(), request.Username, request.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
			return
		}
		h.logger.Error("authentication failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication_failed"})
		return
	}

	token, expiresIn, err := h.sessions.IssueSession(account.Username, authz.ParseRole(account.Role))
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_issue_failed"})
		return
	}

	c.SetCookie(h.cookieName, token, int(expiresIn), "/", "", false, true)
	c.JSON(http.StatusOK, sessionResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	c.SetCookie(h.cookieName, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListStories(c *gin.Context) {
	principal := principalFrom(c)
	pageIndex := parsePageIndex(c)

	page, err := h.stories.List(c.Request.Context(), stories.PageRequest{Index: pageIndex, Size: h.pageSize})
	if err != nil {
		h.logger.Error("failed to list stories", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	if page.OutOfRange() {
		c.Redirect(http.StatusFound, fmt.Sprintf("/stories?page=%d", page.LastPageIndex()))
		return
	}

	c.JSON(http.StatusOK, h.listPayload(principal, page))
}

func (h *httpHandler) handleSearchStories(c *gin.Context) {
	principal := principalFrom(c)
	query := c.Query("q")
	if strings.TrimSpace(query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	pageIndex := parsePageIndex(c)

	page, err := h.stories.Search(c.Request.Context(), query, stories.PageRequest{Index: pageIndex, Size: h.pageSize})
	if err != nil {
		h.logger.Error("failed to search stories", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search_failed"})
		return
	}
	if page.OutOfRange() {
		c.Redirect(http.StatusFound, fmt.Sprintf("/search?page=%d&q=%s", page.LastPageIndex(), url.QueryEscape(query)))
		return
	}

	c.JSON(http.StatusOK, h.listPayload(principal, page))
}

func (h *httpHandler) handleStoryDetail(c *gin.Context) {
	principal := principalFrom(c)

	story, err := h.stories.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, stories.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		h.logger.Error("failed to load story", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load_failed"})
		return
	}

	owns := h.ownsStory(principal, story)
	c.JSON(http.StatusOK, storyPayload{
		StoryID:          story.StoryID,
		Subject:          story.Subject,
		Title:            story.Title,
		Body:             story.Body,
		Positive:         story.Positive,
		CreatedAtSeconds: story.CreatedAtSeconds,
		CanEdit:          authz.Authorize(principal, authz.ActionEdit, owns) == nil,
		CanDelete:        authz.Authorize(principal, authz.ActionDelete, owns) == nil,
	})
}

func (h *httpHandler) handleDashboard(c *gin.Context) {
	principal := principalFrom(c)
	pageIndex := parsePageIndex(c)

	token := h.hasher.Hash(principal.Username)
	page, err := h.stories.ListByAuthorToken(c.Request.Context(), token, stories.PageRequest{Index: pageIndex, Size: h.pageSize})
	if err != nil {
		h.logger.Error("failed to list own stories", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	if page.OutOfRange() {
		c.Redirect(http.StatusFound, fmt.Sprintf("/me/stories?page=%d", page.LastPageIndex()))
		return
	}

	payload := h.listPayload(principal, page)
	for i := range payload.Stories {
		payload.Stories[i].CanEdit = true
		payload.Stories[i].CanDelete = true
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleSubmitStory(c *gin.Context) {
	principal := principalFrom(c)

	var request storyInputPayload
	if err := c.ShouldBindJSON(&request); err != nil || !request.valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if err := authz.Authorize(principal, authz.ActionSubmit, false); err != nil {
		h.respondAuthzError(c, err)
		return
	}

	// Identifier, timestamp, and author token are assigned server-side;
	// nothing author-related is trusted from the client.
	story, err := h.stories.Save(c.Request.Context(), stories.Story{
		Subject:     request.Subject,
		Title:       request.Title,
		Body:        request.Body,
		Positive:    request.Positive,
		AuthorToken: h.hasher.Hash(principal.Username),
	})
	if err != nil {
		h.logger.Error("failed to save story", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save_failed"})
		return
	}

	c.JSON(http.StatusCreated, storyPayload{
		StoryID:          story.StoryID,
		Subject:          story.Subject,
		Title:            story.Title,
		Body:             story.Body,
		Positive:         story.Positive,
		CreatedAtSeconds: story.CreatedAtSeconds,
	})
}

func (h *httpHandler) handleEditStory(c *gin.Context) {
	principal := principalFrom(c)

	existing, err := h.stories.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, stories.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		h.logger.Error("failed to load story", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load_failed"})
		return
	}

	if err := authz.Authorize(principal, authz.ActionEdit, h.ownsStory(principal, existing)); err != nil {
		h.respondAuthzError(c, err)
		return
	}

	var request storyInputPayload
	if err := c.ShouldBindJSON(&request); err != nil || !request.valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	existing.Subject = request.Subject
	existing.Title = request.Title
	existing.Body = request.Body
	existing.Positive = request.Positive

	updated, err := h.stories.Save(c.Request.Context(), existing)
	if err != nil {
		h.logger.Error("failed to update story", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save_failed"})
		return
	}

	c.JSON(http.StatusOK, storyPayload{
		StoryID:          updated.StoryID,
		Subject:          updated.Subject,
		Title:            updated.Title,
		Body:             updated.Body,
		Positive:         updated.Positive,
		CreatedAtSeconds: updated.CreatedAtSeconds,
	})
}

func (h *httpHandler) handleDeleteStory(c *gin.Context) {
	principal := principalFrom(c)

	story, err := h.stories.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, stories.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		h.logger.Error("failed to load story", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load_failed"})
		return
	}

	if err := authz.Authorize(principal, authz.ActionDelete, h.ownsStory(principal, story)); err != nil {
		h.respondAuthzError(c, err)
		return
	}

	if err := h.stories.DeleteByID(c.Request.Context(), story.StoryID); err != nil {
		h.logger.Error("failed to delete story", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete_failed"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleAdminStories(c *gin.Context) {
	pageIndex := parsePageIndex(c)

	page, err := h.stories.ListRaw(c.Request.Context(), stories.PageRequest{Index: pageIndex, Size: h.pageSize})
	if err != nil {
		h.logger.Error("failed to list stories for moderation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	if page.OutOfRange() {
		c.Redirect(http.StatusFound, fmt.Sprintf("/admin/stories?page=%d", page.LastPageIndex()))
		return
	}

	payload := adminStoryListPayload{
		Stories:     make([]adminStoryPayload, 0, len(page.Stories)),
		TotalPages:  page.TotalPages,
		CurrentPage: page.PageIndex,
	}
	for _, story := range page.Stories {
		payload.Stories = append(payload.Stories, adminStoryPayload{
			StoryID:          story.StoryID,
			Subject:          story.Subject,
			AuthorToken:      story.AuthorToken,
			Title:            story.Title,
			Body:             story.Body,
			Positive:         story.Positive,
			CreatedAtSeconds: story.CreatedAtSeconds,
		})
	}
	c.JSON(http.StatusOK, payload)
}

// ownsStory recomputes the author token from the authenticated identity and
// compares it to the stored value. Client-supplied author fields never
// participate.
func (h *httpHandler) ownsStory(principal authz.Principal, story stories.Story) bool {
	if !principal.Authenticated() {
		return false
	}
	return h.hasher.Hash(principal.Username) == story.AuthorToken
}

func (h *httpHandler) listPayload(principal authz.Principal, page stories.StoryPage) storyListPayload {
	payload := storyListPayload{
		Stories:     make([]storyPayload, 0, len(page.Stories)),
		TotalPages:  page.TotalPages,
		CurrentPage: page.PageIndex,
		IsAdmin:     authz.CanPerform(principal.EffectiveRole(), authz.ActionModerate),
	}
	for _, story := range page.Stories {
		payload.Stories = append(payload.Stories, storyPayload{
			StoryID:          story.StoryID,
			Subject:          story.Subject,
			Title:            story.Title,
			Body:             story.Body,
			Positive:         story.Positive,
			CreatedAtSeconds: story.CreatedAtSeconds,
		})
	}
	return payload
}
