package otp

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"authsession/internal/pkg/response"
	"authsession/internal/pkg/validator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler exposes the OTP engine over HTTP. Codes only ever leave through
// the Mailer.
type Handler struct {
	engine *Engine
	mailer Mailer
	log    *zap.Logger
}

func NewHandler(engine *Engine, mailer Mailer, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{engine: engine, mailer: mailer, log: log}
}

func (h *Handler) RegisterRoutes(v1 *gin.RouterGroup) {
	g := v1.Group("/otp")
	{
		g.POST("/request", h.RequestCode)
		g.POST("/verify", h.VerifyCode)
		g.GET("/status", h.Status)
	}
}

func (h *Handler) RequestCode(c *gin.Context) {
	var req RequestCodeDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", errs)
		return
	}

	res, err := h.engine.Issue(c.Request.Context(), req.Identifier)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if err := h.mailer.SendCode(c.Request.Context(), req.Identifier, res.Code, time.Duration(res.ExpiresIn)*time.Second); err != nil {
		h.log.Error("otp delivery failed", zap.String("identifier", req.Identifier), zap.Error(err))
		if cancelErr := h.engine.Cancel(c.Request.Context(), req.Identifier); cancelErr != nil {
			h.log.Error("otp cancel failed", zap.String("identifier", req.Identifier), zap.Error(cancelErr))
		}
		response.Error(c, http.StatusBadGateway, "OTP_DELIVERY_FAILED", "Failed to deliver code")
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{
		"status":     "sent",
		"expires_in": res.ExpiresIn,
	})
}

func (h *Handler) VerifyCode(c *gin.Context) {
	var req VerifyCodeDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", errs)
		return
	}

	if err := h.engine.Verify(c.Request.Context(), req.Identifier, req.Code); err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"verified": true})
}

func (h *Handler) Status(c *gin.Context) {
	identifier := c.Query("identifier")
	status, err := h.engine.Peek(c.Request.Context(), identifier)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if status == nil {
		resend, err := h.engine.CanResend(c.Request.Context(), identifier)
		if err != nil {
			h.writeError(c, err)
			return
		}
		response.Success(c, http.StatusOK, gin.H{
			"active":     false,
			"can_resend": resend.Allowed,
			"resend_in":  resend.SecondsLeft,
		})
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"active":        true,
		"expires_in":    status.ExpiresIn,
		"attempts_left": status.AttemptsLeft,
		"can_resend":    status.CanResend,
		"resend_in":     status.ResendIn,
	})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var cooldown *CooldownError
	var invalid *InvalidCodeError

	switch {
	case errors.As(err, &cooldown):
		c.Header("Retry-After", strconv.Itoa(cooldown.SecondsLeft))
		response.ErrorWithDetails(c, http.StatusTooManyRequests, "OTP_RESEND_TOO_SOON", "Please wait before requesting a new code",
			gin.H{"seconds_left": cooldown.SecondsLeft})
	case errors.As(err, &invalid):
		response.ErrorWithDetails(c, http.StatusBadRequest, "OTP_INVALID", "Code is incorrect",
			gin.H{"attempts_left": invalid.AttemptsLeft})
	case errors.Is(err, ErrOtpMaxAttemptsExceeded):
		response.Error(c, http.StatusTooManyRequests, "OTP_MAX_ATTEMPTS", "Too many attempts, request a new code")
	case errors.Is(err, ErrOtpExpired):
		response.Error(c, http.StatusGone, "OTP_EXPIRED", "Code expired or not found")
	case errors.Is(err, ErrInvalidIdentifier):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Identifier is required")
	default:
		h.log.Error("otp operation failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "OTP_FAILED", "Failed to process code")
	}
}
