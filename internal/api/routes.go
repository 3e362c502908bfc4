package api

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/satriahrh/lifeline/domain/entities"
	"github.com/satriahrh/lifeline/internal/auth"
	"github.com/satriahrh/lifeline/internal/websocket"
	"github.com/satriahrh/lifeline/usecase"
)

// Dependencies are the services the routes are served from
type Dependencies struct {
	Emergency *usecase.EmergencyService
	Hub       *websocket.Hub
	Auth      *auth.Authenticator
	// RateLimit is the per-client request rate of the API group. Zero disables it.
	RateLimit float64
	Logger    *zap.Logger
}

type handler struct {
	emergency *usecase.EmergencyService
	hub       *websocket.Hub
	logger    *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies) {
	h := &handler{emergency: deps.Emergency, hub: deps.Hub, logger: deps.Logger}
	requireUser := deps.Auth.RequireUser(deps.Logger)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "lifeline-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")
	if deps.RateLimit > 0 {
		v1.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(deps.RateLimit))))
	}

	// Reference data and public proxies
	v1.GET("/protocols", h.listProtocols)
	v1.GET("/protocols/:key", h.getProtocol)
	v1.POST("/classify", h.classify)
	v1.POST("/speech", h.synthesize)

	// Side-effect gateways and session history
	v1.POST("/calls", h.callContact, requireUser)
	v1.POST("/notifications", h.notifyContacts, requireUser)
	v1.GET("/sessions/:id", h.getSession, requireUser)
	v1.GET("/sessions/:id/call-script", h.getCallScript, requireUser)

	v1.GET("/profile", h.getProfile, requireUser)
	v1.PUT("/profile", h.putProfile, requireUser)

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return h.hub.ServeWS(c, auth.UserID(c))
	}, requireUser)
}

func (h *handler) listProtocols(c echo.Context) error {
	registry := h.emergency.Registry()
	out := make([]ProtocolSummary, 0, len(registry.Keys()))
	for _, key := range registry.Keys() {
		p, _ := registry.Lookup(key)
		out = append(out, ProtocolSummary{Key: p.Key, Name: p.Name})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *handler) getProtocol(c echo.Context) error {
	p, ok := h.emergency.Registry().Lookup(c.Param("key"))
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "protocol_not_found",
			Message: "No protocol registered for " + c.Param("key"),
		})
	}
	return c.JSON(http.StatusOK, p)
}

func (h *handler) classify(c echo.Context) error {
	var req ClassifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	// Classification never fails the request; the client falls back on "unknown"
	return c.JSON(http.StatusOK, ClassifyResponse{
		Prediction: h.emergency.Classify(c.Request().Context(), req.Text),
	})
}

func (h *handler) synthesize(c echo.Context) error {
	var req SpeechRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	texts := make([]string, 0, len(req.Texts))
	for _, t := range req.Texts {
		if strings.TrimSpace(t) != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Missing or invalid 'texts' array in request body",
		})
	}

	audio, err := h.emergency.Synthesize(c.Request().Context(), texts)
	if err != nil {
		if errors.Is(err, entities.ErrUnauthorized) {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "unauthorized",
				Message: "Speech service rejected the credentials",
			})
		}
		h.logger.Error("Speech synthesis failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "synthesis_failed",
			Message: "Failed to generate speech audio",
		})
	}

	return c.JSON(http.StatusOK, SpeechResponse{AudioBase64: base64.StdEncoding.EncodeToString(audio)})
}

func bindSessionAction(c echo.Context) (string, *ErrorResponse) {
	var req SessionActionRequest
	if err := c.Bind(&req); err != nil {
		return "", &ErrorResponse{Error: "invalid_request", Message: "Invalid request format"}
	}
	if req.SessionID == "" {
		return "", &ErrorResponse{Error: "missing_fields", Message: "sessionId is required"}
	}
	return req.SessionID, nil
}

func (h *handler) callContact(c echo.Context) error {
	sessionID, bad := bindSessionAction(c)
	if bad != nil {
		return c.JSON(http.StatusBadRequest, bad)
	}

	res, err := h.emergency.Call(c.Request().Context(), auth.UserID(c), sessionID)
	if err != nil {
		return h.gatewayError(c, "call", sessionID, err)
	}

	h.logger.Info("Emergency contact called",
		zap.String("sessionID", sessionID),
		zap.String("callSid", res.CallSID))

	return c.JSON(http.StatusOK, CallResponse{Message: res.Message, CallSID: res.CallSID})
}

func (h *handler) notifyContacts(c echo.Context) error {
	sessionID, bad := bindSessionAction(c)
	if bad != nil {
		return c.JSON(http.StatusBadRequest, bad)
	}

	res, err := h.emergency.Notify(c.Request().Context(), auth.UserID(c), sessionID)
	if err != nil {
		return h.gatewayError(c, "notify", sessionID, err)
	}

	return c.JSON(http.StatusOK, NotifyResponse{Message: res.Message})
}

// gatewayError maps gateway failures: bad contact data is the caller's
// problem (400), an unknown session is 404, the provider failing is 502.
func (h *handler) gatewayError(c echo.Context, action, sessionID string, err error) error {
	switch {
	case errors.Is(err, entities.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "session_not_found",
			Message: "Session not found",
		})
	case errors.Is(err, entities.ErrInvalidPhoneNumber), errors.Is(err, entities.ErrProfileNotFound):
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_contact",
			Message: err.Error(),
		})
	case errors.Is(err, entities.ErrGatewayRejected):
		h.logger.Error("Gateway request failed",
			zap.String("action", action),
			zap.String("sessionID", sessionID),
			zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "gateway_error",
			Message: err.Error(),
		})
	default:
		h.logger.Error("Gateway request failed",
			zap.String("action", action),
			zap.String("sessionID", sessionID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Internal server error",
		})
	}
}

func (h *handler) getSession(c echo.Context) error {
	session, err := h.emergency.GetSession(c.Request().Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		return h.sessionError(c, err)
	}

	registry := h.emergency.Registry()
	transcript := make([]MessageView, 0, len(session.Transcript))
	for _, m := range session.Transcript {
		view := MessageView{Message: m}
		if m.AssetKey != "" {
			view.AssetURL, _ = registry.AssetURL(m.AssetKey)
		}
		transcript = append(transcript, view)
	}

	return c.JSON(http.StatusOK, SessionResponse{
		ID:            session.ID,
		EmergencyType: session.EmergencyType,
		Description:   session.Description,
		Status:        session.Status,
		ProtocolKey:   session.ProtocolKey,
		Transcript:    transcript,
		CreatedAt:     session.CreatedAt,
		UpdatedAt:     session.UpdatedAt,
		ClosedAt:      session.ClosedAt,
	})
}

func (h *handler) getCallScript(c echo.Context) error {
	script, err := h.emergency.CallScript(c.Request().Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		return h.sessionError(c, err)
	}
	return c.JSON(http.StatusOK, CallScriptResponse{Script: script})
}

func (h *handler) sessionError(c echo.Context, err error) error {
	if errors.Is(err, entities.ErrSessionNotFound) {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "session_not_found",
			Message: "Session not found",
		})
	}
	h.logger.Error("Failed to load session", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Failed to load session",
	})
}

func (h *handler) getProfile(c echo.Context) error {
	profile, err := h.emergency.GetProfile(c.Request().Context(), auth.UserID(c))
	if err != nil {
		if errors.Is(err, entities.ErrProfileNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "profile_not_found",
				Message: "Profile not found",
			})
		}
		h.logger.Error("Failed to load profile", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to load profile",
		})
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *handler) putProfile(c echo.Context) error {
	var req ProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	profile := &entities.Profile{
		FullName:              req.FullName,
		EmergencyContactName:  req.EmergencyContactName,
		EmergencyContactPhone: req.EmergencyContactPhone,
		FamilyMembers:         req.FamilyMembers,
	}
	if err := h.emergency.UpsertProfile(c.Request().Context(), auth.UserID(c), profile); err != nil {
		if errors.Is(err, entities.ErrInvalidProfile) {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_profile",
				Message: err.Error(),
			})
		}
		h.logger.Error("Failed to save profile", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to save profile",
		})
	}

	return c.JSON(http.StatusOK, profile)
}
