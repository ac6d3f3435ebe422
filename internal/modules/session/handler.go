package session

import (
	"errors"
	"net/http"
	"time"

	"authsession/internal/domain"
	"authsession/internal/pkg/jwt"
	"authsession/internal/pkg/response"
	"authsession/internal/pkg/validator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(service *Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{service: service, log: log}
}

func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup) {
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/refresh", h.Refresh)
	}
}

// RegisterProtectedRoutes expects the bearer middleware to have set
// subject_id and token_id.
func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	authGroup := protected.Group("/auth")
	{
		authGroup.POST("/logout", h.Logout)
		authGroup.POST("/logout-all", h.LogoutAll)
		authGroup.GET("/sessions", h.ListSessions)
		authGroup.DELETE("/sessions/:device", h.RevokeDevice)
	}
}

func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", errs)
		return
	}

	device := domain.DeviceMetadata{
		DeviceLabel:   req.DeviceLabel,
		UserAgent:     c.Request.UserAgent(),
		SourceAddress: c.ClientIP(),
	}
	result, err := h.service.Renew(c.Request.Context(), req.RefreshToken, device)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

func (h *Handler) Logout(c *gin.Context) {
	var req LogoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
			return
		}
	}

	err := h.service.Logout(c.Request.Context(), c.GetInt64("subject_id"), c.GetString("token_id"), req.RefreshToken)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}

func (h *Handler) LogoutAll(c *gin.Context) {
	n, err := h.service.RevokeAllForSubject(c.Request.Context(), c.GetInt64("subject_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"revoked": n})
}

func (h *Handler) ListSessions(c *gin.Context) {
	tokens, err := h.service.ListSessions(c.Request.Context(), c.GetInt64("subject_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	current := c.GetString("token_id")
	views := make([]SessionView, 0, len(tokens))
	for _, t := range tokens {
		d := t.Device()
		views = append(views, SessionView{
			TokenID:       t.TokenID,
			Kind:          string(t.Kind),
			DeviceLabel:   d.DeviceLabel,
			UserAgent:     d.UserAgent,
			SourceAddress: d.SourceAddress,
			CreatedAt:     t.CreatedAt.UTC().Format(time.RFC3339),
			ExpiresAt:     t.ExpiresAt.UTC().Format(time.RFC3339),
			Current:       t.TokenID == current,
		})
	}

	response.Success(c, http.StatusOK, gin.H{"sessions": views})
}

func (h *Handler) RevokeDevice(c *gin.Context) {
	n, err := h.service.RevokeDevice(c.Request.Context(), c.GetInt64("subject_id"), c.Param("device"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"revoked": n})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrStoreUnavailable):
		h.log.Error("session store unavailable", zap.Error(err))
		response.Error(c, http.StatusServiceUnavailable, "SESSION_STORE_UNAVAILABLE", "Session store unavailable")
	case errors.Is(err, jwt.ErrTokenExpired):
		response.Error(c, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token expired")
	case errors.Is(err, ErrRefreshTokenRevoked), errors.Is(err, ErrTokenRevoked):
		response.Error(c, http.StatusUnauthorized, "TOKEN_REVOKED", "Token has been revoked")
	case errors.Is(err, ErrRefreshTokenInvalid):
		response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid refresh token")
	case errors.Is(err, ErrDeviceLabelRequired):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Device label is required")
	default:
		h.log.Error("session operation failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "SESSION_FAILED", "Failed to process session request")
	}
}
