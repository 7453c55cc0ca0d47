package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskdesk/internal/service/auth"
	"taskdesk/internal/service/user"
	"taskdesk/pkg/logger"
)

type AdminHandler struct {
	auth   *auth.Service
	users  *user.Service
	logger *zap.Logger
}

func NewAdminHandler(authService *auth.Service, userService *user.Service, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{auth: authService, users: userService, logger: logger}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// bindJSON decodes the body into req. An empty body leaves req zeroed.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return false
	}
	return true
}

// Signup POST /api/admin/signup
func (h *AdminHandler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindJSON(c, &req) {
		return
	}
	log := logger.WithTrace(c.Request.Context(), h.logger)

	token, err := h.auth.Signup(c.Request.Context(), req.Name, req.Email, req.Password)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"token": token})
	case errors.Is(err, auth.ErrAdminExists):
		log.Info("Signup: email already registered", zap.String("email", req.Email))
		c.JSON(http.StatusOK, gin.H{"message": "Admin already exists with this email"})
	case errors.Is(err, auth.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name, email and password are required"})
	case errors.Is(err, auth.ErrPasswordTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at most 72 bytes"})
	default:
		log.Error("Signup failed", zap.String("email", req.Email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign up"})
	}
}

// Signin POST /api/admin/signin
func (h *AdminHandler) Signin(c *gin.Context) {
	var req signinRequest
	if !bindJSON(c, &req) {
		return
	}
	log := logger.WithTrace(c.Request.Context(), h.logger)

	ctx := auth.ContextWithClientIP(c.Request.Context(), c.ClientIP())
	token, err := h.auth.Signin(ctx, req.Email, req.Password)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"token": token})
	case errors.Is(err, auth.ErrAdminNotFound):
		c.JSON(http.StatusOK, gin.H{"message": "No admin with this email"})
	case errors.Is(err, auth.ErrInvalidPassword):
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid email or password"})
	case errors.Is(err, auth.ErrTooManyAttempts):
		log.Warn("Signin throttled", zap.String("email", req.Email), zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many failed attempts, try again later"})
	case errors.Is(err, auth.ErrMissingEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email is required"})
	default:
		log.Error("Signin failed", zap.String("email", req.Email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign in"})
	}
}

// CreateUser POST /api/admin/create-user
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if !bindJSON(c, &req) {
		return
	}
	log := logger.WithTrace(c.Request.Context(), h.logger)
	log.Info("CreateUser request received",
		zap.String("email", req.Email),
		zap.String("admin_id", c.GetString(ContextAdminID)),
	)

	u, err := h.users.Create(c.Request.Context(), req.Name, req.Email)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"id": u.ID})
	case errors.Is(err, user.ErrUserExists):
		c.JSON(http.StatusOK, gin.H{"message": "User already exists with this email"})
	case errors.Is(err, user.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name and email are required"})
	default:
		log.Error("CreateUser: failed to create user", zap.String("email", req.Email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
	}
}

// ListUsers GET /api/admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Error("ListUsers: failed to fetch users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}
	c.JSON(http.StatusOK, users)
}
