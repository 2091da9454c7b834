package rest

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/oshokin/uwb-tracker/internal/config"
	domain "github.com/oshokin/uwb-tracker/internal/domain/tracking"
	"github.com/oshokin/uwb-tracker/internal/engine"
	"github.com/oshokin/uwb-tracker/internal/logger"
	"github.com/oshokin/uwb-tracker/internal/repository/roster"
)

const (
	// SessionCookie is the name of the session cookie.
	SessionCookie = "session"

	// DefaultDebugLimit is how many debug entries are returned without ?limit.
	DefaultDebugLimit = 50
)

// Reader serves published tracking state.
type Reader interface {
	Positions() []domain.Position
	Anchors() []domain.Anchor
}

// DebugSource serves recent inbound messages.
type DebugSource interface {
	Entries(limit int) []engine.DebugEntry
}

// Reloader is asked to reload the roster after an edit.
type Reloader interface {
	Trigger()
}

// Dependencies are the collaborators of the HTTP API.
type Dependencies struct {
	Reader   Reader
	Debug    DebugSource
	Roster   roster.Repository
	Reloader Reloader
	Auth     config.Auth
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// Handler holds HTTP handlers.
type Handler struct {
	deps     Dependencies
	sessions *Sessions
	validate *validator.Validate
}

var errInvalidID = errors.New("invalid id")

// NewRouter builds the gin engine with every route registered.
func NewRouter(ctx context.Context, deps Dependencies) *gin.Engine {
	h := &Handler{
		deps:     deps,
		sessions: NewSessions(deps.Auth.SessionTTL),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger.WithName(ctx, "http")))

	api := router.Group("/api")
	api.GET("/positions", h.listPositions)
	api.GET("/anchors", h.listAnchors)
	api.POST("/auth/login", h.login)
	api.POST("/auth/logout", h.logout)

	protected := api.Group("", h.requireSession)
	protected.GET("/debug/messages", h.listDebug)
	protected.GET("/workers", h.listTags)
	protected.POST("/workers", h.createTag)
	protected.PUT("/workers/:id", h.updateTag)
	protected.DELETE("/workers/:id", h.deleteTag)
	protected.POST("/anchors", h.createAnchor)
	protected.PUT("/anchors/:id", h.updateAnchor)
	protected.DELETE("/anchors/:id", h.deleteAnchor)

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	return router
}

// requestLogger logs one line per request.
func requestLogger(ctx context.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.DebugKV(ctx, "HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start).String())
	}
}

func (h *Handler) requireSession(c *gin.Context) {
	if !h.deps.Auth.Enabled() {
		c.Next()
		return
	}

	token, _ := c.Cookie(SessionCookie)
	if !h.sessions.Valid(token) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "login required"})
		return
	}

	c.Next()
}

func (h *Handler) login(c *gin.Context) {
	if !h.deps.Auth.Enabled() {
		c.JSON(http.StatusNotFound, errorResponse{Error: "authentication is not configured"})
		return
	}

	var creds credentials
	if !h.bind(c, &creds) {
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(creds.Username), []byte(h.deps.Auth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(creds.Password), []byte(h.deps.Auth.Password)) == 1

	if !userOK || !passOK {
		logger.WarnKV(c.Request.Context(), "Rejected login", "username", creds.Username, "remote", c.ClientIP())
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})

		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, h.sessions.Issue(), int(h.sessions.TTL().Seconds()), "/", "", false, true)
	c.Status(http.StatusNoContent)
}

func (h *Handler) logout(c *gin.Context) {
	if token, err := c.Cookie(SessionCookie); err == nil {
		h.sessions.Revoke(token)
	}

	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

func (h *Handler) listPositions(c *gin.Context) {
	c.JSON(http.StatusOK, toPositionViews(h.deps.Reader.Positions()))
}

func (h *Handler) listAnchors(c *gin.Context) {
	c.JSON(http.StatusOK, toAnchorViews(h.deps.Reader.Anchors()))
}

func (h *Handler) listDebug(c *gin.Context) {
	limit := DefaultDebugLimit

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}

		limit = n
	}

	c.JSON(http.StatusOK, toDebugViews(h.deps.Debug.Entries(limit)))
}

func (h *Handler) listTags(c *gin.Context) {
	tags, err := h.deps.Roster.Tags(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, tags)
}

func (h *Handler) createTag(c *gin.Context) {
	var tag domain.Tag
	if !h.bind(c, &tag) {
		return
	}

	h.mutate(c, http.StatusCreated, tag, h.deps.Roster.CreateTag(c.Request.Context(), tag))
}

func (h *Handler) updateTag(c *gin.Context) {
	tagID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errInvalidID.Error()})
		return
	}

	var tag domain.Tag
	if !h.bind(c, &tag) {
		return
	}

	tag.TagID = tagID
	h.mutate(c, http.StatusOK, tag, h.deps.Roster.UpdateTag(c.Request.Context(), tag))
}

func (h *Handler) deleteTag(c *gin.Context) {
	tagID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errInvalidID.Error()})
		return
	}

	h.mutate(c, http.StatusNoContent, nil, h.deps.Roster.DeleteTag(c.Request.Context(), tagID))
}

func (h *Handler) createAnchor(c *gin.Context) {
	var anchor domain.AnchorSite
	if !h.bind(c, &anchor) {
		return
	}

	h.mutate(c, http.StatusCreated, anchor, h.deps.Roster.CreateAnchor(c.Request.Context(), anchor))
}

func (h *Handler) updateAnchor(c *gin.Context) {
	var anchor domain.AnchorSite

	// Path id wins, the body may omit it.
	if err := c.ShouldBindJSON(&anchor); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	anchor.AnchorID = c.Param("id")
	if err := h.validate.Struct(anchor); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	h.mutate(c, http.StatusOK, anchor, h.deps.Roster.UpdateAnchor(c.Request.Context(), anchor))
}

func (h *Handler) deleteAnchor(c *gin.Context) {
	h.mutate(c, http.StatusNoContent, nil, h.deps.Roster.DeleteAnchor(c.Request.Context(), c.Param("id")))
}

// bind decodes and validates the JSON body, writing 400 on failure.
func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return false
	}

	return true
}

// mutate answers a roster edit and triggers a reload when it succeeded.
func (h *Handler) mutate(c *gin.Context, code int, body any, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}

	if h.deps.Reloader != nil {
		h.deps.Reloader.Trigger()
	}

	if body == nil {
		c.Status(code)
		return
	}

	c.JSON(code, body)
}

// fail maps repository errors to status codes.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, roster.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, roster.ErrAlreadyExists):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		logger.ErrorKV(c.Request.Context(), "Roster operation failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
