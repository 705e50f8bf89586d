package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-agent/internal/model"
	"github.com/stemsi/exstem-agent/internal/response"
)

const (
	// ContextKeyClaims is the Gin context key for attempt token claims.
	ContextKeyClaims = "attempt_claims"
	// ContextKeyToken is the Gin context key for the raw attempt token.
	ContextKeyToken = "attempt_token"
)

// AttemptClaims are embedded in the attempt token the platform issues
// when a candidate joins a test. The agent derives the entire session
// configuration from them; nothing timing- or policy-related is
// accepted from the local UI.
type AttemptClaims struct {
	jwt.RegisteredClaims
	TestID             string    `json:"test_id"`
	AttemptID          uuid.UUID `json:"attempt_id"`
	StudentID          int       `json:"student_id"`
	DurationMinutes    int       `json:"duration_minutes"`
	ViolationLimit     int       `json:"violation_limit"`
	RequireAllAnswered bool      `json:"require_all_answered"`
	RequireFullscreen  bool      `json:"require_fullscreen"`
	AllowNavigation    bool      `json:"allow_navigation"`
}

// SessionConfig converts the claims into the controller configuration,
// keeping the raw token for the submission call.
func (cl *AttemptClaims) SessionConfig(rawToken string) model.SessionConfig {
	return model.SessionConfig{
		TestID:             cl.TestID,
		AttemptID:          cl.AttemptID,
		StudentID:          cl.StudentID,
		DurationMinutes:    cl.DurationMinutes,
		ViolationLimit:     cl.ViolationLimit,
		RequireAllAnswered: cl.RequireAllAnswered,
		RequireFullscreen:  cl.RequireFullscreen,
		AllowNavigation:    cl.AllowNavigation,
		AttemptToken:       rawToken,
	}
}

// ParseAttemptToken validates an attempt token against the shared
// platform secret and returns its claims.
func ParseAttemptToken(secret, tokenStr string) (*AttemptClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AttemptClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse attempt token: %w", err)
	}

	claims, ok := token.Claims.(*AttemptClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid attempt token claims")
	}
	if claims.TestID == "" {
		return nil, errors.New("attempt token missing test_id")
	}
	if claims.DurationMinutes <= 0 {
		return nil, errors.New("attempt token missing duration")
	}
	return claims, nil
}

// RequireAttemptToken validates the attempt token from the
// Authorization header, falling back to the ?token= query parameter
// for WebSocket upgrade requests.
func RequireAttemptToken(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ""

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				tokenStr = parts[1]
			}
		}
		if tokenStr == "" {
			tokenStr = c.Query("token")
		}
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := ParseAttemptToken(secret, tokenStr)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenExpired)
				return
			}
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Set(ContextKeyToken, tokenStr)
		c.Next()
	}
}

// GetAttemptClaims retrieves the attempt claims from the Gin context.
func GetAttemptClaims(c *gin.Context) *AttemptClaims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*AttemptClaims)
	if !ok {
		return nil
	}
	return claims
}

// GetAttemptToken retrieves the raw attempt token from the Gin context.
func GetAttemptToken(c *gin.Context) string {
	val, exists := c.Get(ContextKeyToken)
	if !exists {
		return ""
	}
	token, _ := val.(string)
	return token
}
