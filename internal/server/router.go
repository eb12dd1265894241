package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/yearsync/internal/auth"
	"github.com/MarcoPoloResearchLab/yearsync/internal/cloudsync"
	"github.com/MarcoPoloResearchLab/yearsync/internal/preferences"
)

const userIDContextKey = "yearsync_user_id"

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingSyncEngine       = errors.New("sync engine dependency required")
	errMissingStores           = errors.New("preference stores dependency required")
	errMissingConnectivity     = errors.New("connectivity monitor dependency required")
	errMissingStatusStream     = errors.New("status broadcaster dependency required")
)

// SessionValidator authenticates calls from the year view frontend.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.Session, error)
}

// GrantHolder receives the remote-storage grant obtained by the frontend.
type GrantHolder interface {
	Set(grant auth.Grant) error
	Revoke()
	Scopes() []string
	HasRemoteStoragePermission() bool
}

// SyncEngine is the orchestrator surface exposed over HTTP.
type SyncEngine interface {
	State() cloudsync.State
	LoadFromCloud(ctx context.Context) cloudsync.Outcome
	SyncNow(ctx context.Context) cloudsync.Outcome
	EnableSync(ctx context.Context) cloudsync.Outcome
	DisableSync(ctx context.Context) cloudsync.Outcome
	DeleteCloudData(ctx context.Context) cloudsync.Outcome
	PermissionChanged()
}

type Dependencies struct {
	Sessions     SessionValidator
	Grants       GrantHolder
	Sync         SyncEngine
	Stores       *preferences.Stores
	Connectivity *cloudsync.ConnectivityMonitor
	Status       *StatusBroadcaster
	// AllowedOrigins lists origins allowed to call with credentials. Empty allows any origin.
	AllowedOrigins []string
	Clock          func() time.Time
	Logger         *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Sync == nil {
		return nil, errMissingSyncEngine
	}
	if deps.Stores == nil {
		return nil, errMissingStores
	}
	if deps.Connectivity == nil {
		return nil, errMissingConnectivity
	}
	if deps.Status == nil {
		return nil, errMissingStatusStream
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		sessions:     deps.Sessions,
		grants:       deps.Grants,
		sync:         deps.Sync,
		stores:       deps.Stores,
		connectivity: deps.Connectivity,
		status:       deps.Status,
		clock:        clock,
		logger:       logger,
	}

	router.GET("/healthz", handler.handleHealth)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)

	if deps.Grants != nil {
		protected.POST("/auth/grant", handler.handleSetGrant)
		protected.DELETE("/auth/grant", handler.handleRevokeGrant)
	}

	protected.GET("/sync/status", handler.handleSyncStatus)
	protected.GET("/sync/events", handler.handleSyncEvents)
	protected.POST("/sync/enable", handler.handleEnableSync)
	protected.POST("/sync/disable", handler.handleDisableSync)
	protected.POST("/sync/load", handler.handleLoadFromCloud)
	protected.POST("/sync/retry", handler.handleSyncNow)
	protected.DELETE("/sync/cloud-data", handler.handleDeleteCloudData)
	protected.POST("/connectivity", handler.handleConnectivity)

	protected.GET("/preferences/filters", handler.handleListFilters)
	protected.POST("/preferences/filters", handler.handleAddFilter)
	protected.DELETE("/preferences/filters/:id", handler.handleRemoveFilter)
	protected.GET("/preferences/categories", handler.handleListCategories)
	protected.POST("/preferences/categories", handler.handleCreateCategory)
	protected.PUT("/preferences/categories/:id", handler.handleUpdateCategory)
	protected.DELETE("/preferences/categories/:id", handler.handleRemoveCategory)
	protected.GET("/preferences/calendars/disabled", handler.handleListDisabledCalendars)
	protected.PUT("/preferences/calendars/disabled", handler.handleSetDisabledCalendars)
	protected.PUT("/preferences/calendars/:id", handler.handleToggleCalendar)
	protected.GET("/preferences/display", handler.handleGetDisplay)
	protected.PUT("/preferences/display", handler.handleUpdateDisplay)

	return router, nil
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Last-Event-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	return cors.New(cfg)
}

type httpHandler struct {
	sessions     SessionValidator
	grants       GrantHolder
	sync         SyncEngine
	stores       *preferences.Stores
	connectivity *cloudsync.ConnectivityMonitor
	status       *StatusBroadcaster
	clock        func() time.Time
	logger       *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	session, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrExpiredSessionToken), errors.Is(err, auth.ErrMissingSessionToken):
			h.logger.Info("session validation failed", zap.Error(err))
		default:
			h.logger.Warn("session validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, session.UserID)
	c.Next()
}

type grantRequestPayload struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	ExpiresIn   int64  `json:"expires_in"`
}

type grantResponsePayload struct {
	Scopes                     []string        `json:"scopes"`
	HasRemoteStoragePermission bool            `json:"has_remote_storage_permission"`
	State                      cloudsync.State `json:"state"`
}

func (h *httpHandler) handleSetGrant(c *gin.Context) {
	var request grantRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.AccessToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	grant := auth.Grant{
		AccessToken: request.AccessToken,
		TokenType:   request.TokenType,
		Scopes:      strings.Fields(request.Scope),
	}
	if request.ExpiresIn > 0 {
		grant.ExpiresAt = h.clock().Add(time.Duration(request.ExpiresIn) * time.Second)
	}
	if err := h.grants.Set(grant); err != nil {
		h.logger.Warn("remote storage grant rejected", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_grant"})
		return
	}
	h.sync.PermissionChanged()
	c.JSON(http.StatusOK, h.grantResponse())
}

func (h *httpHandler) handleRevokeGrant(c *gin.Context) {
	h.grants.Revoke()
	h.sync.PermissionChanged()
	c.JSON(http.StatusOK, h.grantResponse())
}

func (h *httpHandler) grantResponse() grantResponsePayload {
	scopes := h.grants.Scopes()
	if scopes == nil {
		scopes = []string{}
	}
	return grantResponsePayload{
		Scopes:                     scopes,
		HasRemoteStoragePermission: h.grants.HasRemoteStoragePermission(),
		State:                      h.sync.State(),
	}
}

type outcomeResponsePayload struct {
	Outcome cloudsync.Outcome `json:"outcome"`
	State   cloudsync.State   `json:"state"`
}

func (h *httpHandler) handleSyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.sync.State())
}

func (h *httpHandler) handleEnableSync(c *gin.Context) {
	h.respondOutcome(c, h.sync.EnableSync(c.Request.Context()))
}

func (h *httpHandler) handleDisableSync(c *gin.Context) {
	h.respondOutcome(c, h.sync.DisableSync(c.Request.Context()))
}

func (h *httpHandler) handleLoadFromCloud(c *gin.Context) {
	h.respondOutcome(c, h.sync.LoadFromCloud(c.Request.Context()))
}

func (h *httpHandler) handleSyncNow(c *gin.Context) {
	h.respondOutcome(c, h.sync.SyncNow(c.Request.Context()))
}

func (h *httpHandler) handleDeleteCloudData(c *gin.Context) {
	h.respondOutcome(c, h.sync.DeleteCloudData(c.Request.Context()))
}

func (h *httpHandler) respondOutcome(c *gin.Context, outcome cloudsync.Outcome) {
	c.JSON(outcomeStatusCode(outcome), outcomeResponsePayload{
		Outcome: outcome,
		State:   h.sync.State(),
	})
}

// outcomeStatusCode keeps skips at 200 so the frontend can treat them as no-ops.
func outcomeStatusCode(outcome cloudsync.Outcome) int {
	if outcome.Status != cloudsync.OutcomeFailed {
		return http.StatusOK
	}
	switch outcome.Reason {
	case cloudsync.ReasonOffline:
		return http.StatusServiceUnavailable
	case cloudsync.ReasonNeedsConsent:
		return http.StatusForbidden
	case cloudsync.ReasonBusy, cloudsync.ReasonAlreadySyncing:
		return http.StatusConflict
	case cloudsync.ReasonRemoteError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *httpHandler) handleSyncEvents(c *gin.Context) {
	stream, cleanup := h.status.Subscribe(c.Request.Context())
	defer cleanup()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.SSEvent(StatusEventName, h.sync.State())
	c.Writer.Flush()

	heartbeat := time.NewTicker(statusHeartbeatPeriod)
	defer heartbeat.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case message := <-stream:
			c.SSEvent(StatusEventName, message.State)
			return true
		case tick := <-heartbeat.C:
			c.SSEvent(statusEventHeartbeat, gin.H{"timestamp": tick.UTC().UnixMilli()})
			return true
		}
	})
}

type connectivityRequestPayload struct {
	Online *bool `json:"online"`
}

func (h *httpHandler) handleConnectivity(c *gin.Context) {
	var request connectivityRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Online == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	h.connectivity.Set(*request.Online)
	c.JSON(http.StatusOK, h.sync.State())
}

type filterRequestPayload struct {
	Pattern string `json:"pattern"`
}

func (h *httpHandler) handleListFilters(c *gin.Context) {
	filters, err := h.stores.Filters.Get(c.Request.Context())
	if err != nil {
		h.respondPreferenceError(c, "list filters", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"filters": nonNil(filters)})
}

func (h *httpHandler) handleAddFilter(c *gin.Context) {
	var request filterRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	filter, err := h.stores.Filters.Add(c.Request.Context(), request.Pattern)
	if err != nil {
		h.respondPreferenceError(c, "add filter", err)
		return
	}
	c.JSON(http.StatusCreated, filter)
}

func (h *httpHandler) handleRemoveFilter(c *gin.Context) {
	if err := h.stores.Filters.Remove(c.Request.Context(), c.Param("id")); err != nil {
		h.respondPreferenceError(c, "remove filter", err)
		return
	}
	c.Status(http.StatusNoContent)
}

type categoryRequestPayload struct {
	Label     string   `json:"label"`
	Color     string   `json:"color"`
	Keywords  []string `json:"keywords"`
	MatchMode string   `json:"matchMode"`
}

func (p categoryRequestPayload) toCategory(categoryID string) (preferences.Category, error) {
	category := preferences.Category{
		ID:       categoryID,
		Label:    p.Label,
		Color:    p.Color,
		Keywords: p.Keywords,
	}
	if strings.TrimSpace(p.MatchMode) != "" {
		mode, err := preferences.ParseMatchMode(p.MatchMode)
		if err != nil {
			return preferences.Category{}, err
		}
		category.MatchMode = mode
	}
	return category, nil
}

func (h *httpHandler) handleListCategories(c *gin.Context) {
	categories, err := h.stores.Categories.Get(c.Request.Context())
	if err != nil {
		h.respondPreferenceError(c, "list categories", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": nonNil(categories)})
}

func (h *httpHandler) handleCreateCategory(c *gin.Context) {
	h.saveCategory(c, "", http.StatusCreated)
}

func (h *httpHandler) handleUpdateCategory(c *gin.Context) {
	h.saveCategory(c, c.Param("id"), http.StatusOK)
}

func (h *httpHandler) saveCategory(c *gin.Context, categoryID string, successStatus int) {
	var request categoryRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	category, err := request.toCategory(categoryID)
	if err != nil {
		h.respondPreferenceError(c, "save category", err)
		return
	}
	saved, err := h.stores.Categories.Save(c.Request.Context(), category)
	if err != nil {
		h.respondPreferenceError(c, "save category", err)
		return
	}
	c.JSON(successStatus, saved)
}

func (h *httpHandler) handleRemoveCategory(c *gin.Context) {
	if err := h.stores.Categories.Remove(c.Request.Context(), c.Param("id")); err != nil {
		h.respondPreferenceError(c, "remove category", err)
		return
	}
	c.Status(http.StatusNoContent)
}

type disabledCalendarsPayload struct {
	CalendarIDs []string `json:"calendarIds"`
}

type calendarTogglePayload struct {
	Enabled *bool `json:"enabled"`
}

func (h *httpHandler) handleListDisabledCalendars(c *gin.Context) {
	calendarIDs, err := h.stores.Calendars.Get(c.Request.Context())
	if err != nil {
		h.respondPreferenceError(c, "list disabled calendars", err)
		return
	}
	c.JSON(http.StatusOK, disabledCalendarsPayload{CalendarIDs: nonNil(calendarIDs)})
}

func (h *httpHandler) handleSetDisabledCalendars(c *gin.Context) {
	var request disabledCalendarsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.stores.Calendars.SetDisabledCalendars(c.Request.Context(), request.CalendarIDs); err != nil {
		h.respondPreferenceError(c, "set disabled calendars", err)
		return
	}
	h.handleListDisabledCalendars(c)
}

func (h *httpHandler) handleToggleCalendar(c *gin.Context) {
	var request calendarTogglePayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Enabled == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.stores.Calendars.SetCalendarEnabled(c.Request.Context(), c.Param("id"), *request.Enabled); err != nil {
		h.respondPreferenceError(c, "toggle calendar", err)
		return
	}
	h.handleListDisabledCalendars(c)
}

func (h *httpHandler) handleGetDisplay(c *gin.Context) {
	settings, err := h.stores.Display.Get(c.Request.Context())
	if err != nil {
		h.respondPreferenceError(c, "get display settings", err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *httpHandler) handleUpdateDisplay(c *gin.Context) {
	var request preferences.DisplaySettings
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.stores.Display.Update(c.Request.Context(), request); err != nil {
		h.respondPreferenceError(c, "update display settings", err)
		return
	}
	c.JSON(http.StatusOK, request)
}

func (h *httpHandler) respondPreferenceError(c *gin.Context, action string, err error) {
	status, code := preferenceErrorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("preference request failed", zap.String("action", action), zap.Error(err))
	} else {
		h.logger.Debug("preference request rejected", zap.String("action", action), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": code})
}

func preferenceErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, preferences.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, preferences.ErrDuplicateFilter):
		return http.StatusConflict, "duplicate_filter"
	case errors.Is(err, preferences.ErrInvalidFilter),
		errors.Is(err, preferences.ErrInvalidCategory),
		errors.Is(err, preferences.ErrInvalidDisplaySettings):
		return http.StatusBadRequest, "invalid_request"
	}
	var serviceErr *preferences.ServiceError
	if errors.As(err, &serviceErr) && strings.HasSuffix(serviceErr.Code(), ".invalid_input") {
		return http.StatusBadRequest, "invalid_request"
	}
	return http.StatusInternalServerError, "internal_error"
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}
