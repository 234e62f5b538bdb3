package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"andromeda-healthcare/internal/app"
	"andromeda-healthcare/internal/config"
	"andromeda-healthcare/internal/metrics"
	"andromeda-healthcare/internal/model"
	"andromeda-healthcare/internal/transport/http/response"
)

const (
	MsgRegistered      = "User registered successfully!"
	MsgLoggedIn        = "Login successful!"
	MsgInvalidPayload  = "Invalid request payload"
	MsgEmailExists     = "Email already in use"
	MsgUsernameExists  = "Username already taken"
	MsgBadCredentials  = "Invalid email or password"
	MsgUserNotFound    = "User not found"
	MsgInvalidPassword = "Invalid password"
	MsgTooManyAttempts = "Too many failed login attempts, try again later"
	MsgRegisterFailed  = "Registration failed"
	MsgLoginFailed     = "Login failed"
)

type AuthService interface {
	Register(ctx context.Context, input app.RegisterInput) (*model.User, error)
	Login(ctx context.Context, input app.LoginInput) (*model.User, error)
}

// AuthRecorder receives one outcome per auth attempt.
type AuthRecorder interface {
	RecordAuth(operation, outcome string)
}

type AuthHandler struct {
	authService AuthService
	legacy      bool
	recorder    AuthRecorder
	log         *slog.Logger
}

type RegisterRequest struct {
	FullName string `json:"fullName" binding:"required,max=128"`
	Email    string `json:"email" binding:"required,max=128"`
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required,max=72"`
}

// NewAuthHandler builds the register/login handlers. errorMode selects the
// status/message mapping; recorder may be nil.
func NewAuthHandler(authService AuthService, errorMode string, recorder AuthRecorder, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		authService: authService,
		legacy:      errorMode == config.ErrorModeLegacy,
		recorder:    recorder,
		log:         log,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, "register", h.bindFailure(err))
		return
	}

	user, err := h.authService.Register(c.Request.Context(), app.RegisterInput{
		FullName:   req.FullName,
		Email:      req.Email,
		Username:   req.Username,
		Password:   req.Password,
		RemoteAddr: c.ClientIP(),
	})
	if err != nil {
		h.fail(c, "register", h.registerFailure(err))
		return
	}

	h.record("register", metrics.OutcomeSuccess)
	response.OK(c, MsgRegistered, user.ID)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, "login", h.bindFailure(err))
		return
	}

	user, err := h.authService.Login(c.Request.Context(), app.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		RemoteAddr: c.ClientIP(),
	})
	if err != nil {
		h.fail(c, "login", h.loginFailure(err))
		return
	}

	h.record("login", metrics.OutcomeSuccess)
	response.OK(c, MsgLoggedIn, user.ID)
}

type failure struct {
	status  int
	message string
	outcome string
	err     error
}

func (h *AuthHandler) fail(c *gin.Context, operation string, f failure) {
	h.record(operation, f.outcome)
	if f.outcome == metrics.OutcomeError {
		h.log.ErrorContext(c.Request.Context(), operation+" failed", slog.Any("error", f.err))
	} else {
		h.log.DebugContext(c.Request.Context(), operation+" rejected",
			slog.String("outcome", f.outcome),
			slog.String("reason", f.err.Error()),
		)
	}
	response.Error(c, h.status(f.status), f.message)
}

// status collapses every failure to 400 in legacy mode.
func (h *AuthHandler) status(strict int) int {
	if h.legacy {
		return http.StatusBadRequest
	}
	return strict
}

func (h *AuthHandler) record(operation, outcome string) {
	if h.recorder != nil {
		h.recorder.RecordAuth(operation, outcome)
	}
}

func (h *AuthHandler) bindFailure(err error) failure {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return failure{http.StatusUnprocessableEntity, fieldMessage(verrs[0]), metrics.OutcomeInvalid, err}
	}
	return failure{http.StatusBadRequest, MsgInvalidPayload, metrics.OutcomeInvalid, err}
}

func (h *AuthHandler) registerFailure(err error) failure {
	var verr *app.ValidationError
	switch {
	case errors.As(err, &verr):
		return failure{http.StatusUnprocessableEntity, verr.Message, metrics.OutcomeInvalid, err}
	case errors.Is(err, app.ErrEmailExists):
		return failure{http.StatusConflict, MsgEmailExists, metrics.OutcomeConflict, err}
	case errors.Is(err, app.ErrUsernameExists):
		return failure{http.StatusConflict, MsgUsernameExists, metrics.OutcomeConflict, err}
	default:
		return failure{http.StatusInternalServerError, MsgRegisterFailed, metrics.OutcomeError, err}
	}
}

func (h *AuthHandler) loginFailure(err error) failure {
	var verr *app.ValidationError
	switch {
	case errors.As(err, &verr):
		return failure{http.StatusUnprocessableEntity, verr.Message, metrics.OutcomeInvalid, err}
	case errors.Is(err, app.ErrTooManyAttempts):
		return failure{http.StatusTooManyRequests, MsgTooManyAttempts, metrics.OutcomeLocked, err}
	case errors.Is(err, app.ErrInvalidCredentials):
		msg := MsgBadCredentials
		if h.legacy {
			msg = MsgInvalidPassword
			if errors.Is(err, app.ErrUserNotFound) {
				msg = MsgUserNotFound
			}
		}
		return failure{http.StatusUnauthorized, msg, metrics.OutcomeDenied, err}
	default:
		return failure{http.StatusInternalServerError, MsgLoginFailed, metrics.OutcomeError, err}
	}
}

var fieldLabels = map[string]string{
	"FullName": "Full name",
	"Email":    "Email",
	"Username": "Username",
	"Password": "Password",
}

func fieldMessage(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	default:
		return strings.TrimSpace(label + " is invalid")
	}
}
