package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"donation-platform/internal/middleware"
)

const defaultTokenTTL = 12 * time.Hour

// AuthHandler issues operator tokens for the admin endpoints. There is a
// single operator account, configured by username and bcrypt hash.
type AuthHandler struct {
	Username     string
	PasswordHash []byte
	JwtSecret    string
	TokenTTL     time.Duration
	log          *zap.Logger
	now          func() time.Time
}

func NewAuthHandler(username, passwordHash, jwtSecret string, ttl time.Duration, log *zap.Logger) *AuthHandler {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &AuthHandler{
		Username:     username,
		PasswordHash: []byte(passwordHash),
		JwtSecret:    jwtSecret,
		TokenTTL:     ttl,
		log:          log,
		now:          time.Now,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) createJWT(subject string) (string, time.Time, error) {
	now := h.now()
	expires := now.Add(h.TokenTTL)
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": middleware.OperatorRole,
		"iat":  now.Unix(),
		"exp":  expires.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(h.JwtSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expires, nil
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if h.Username == "" || len(h.PasswordHash) == 0 || h.JwtSecret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Operator login is not configured."})
		return
	}

	// Always run bcrypt so a wrong username costs the same as a wrong password.
	passErr := bcrypt.CompareHashAndPassword(h.PasswordHash, []byte(req.Password))
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.Username)) == 1
	if !userOK || passErr != nil {
		h.log.Info("operator login rejected", zap.String("username", req.Username))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password."})
		return
	}

	tokenString, expires, err := h.createJWT(h.Username)
	if err != nil {
		h.log.Error("failed to create JWT", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Login successful.",
		"token":      tokenString,
		"expires_at": expires.UTC(),
	})
}
