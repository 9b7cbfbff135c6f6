package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"receiptcsv/internal/config"
	"receiptcsv/internal/domain"
	"receiptcsv/internal/session"
)

const (
	ContextKeySessionID = "session_id"

	// SessionTokenHeader returns the session token to API clients that do not keep cookies.
	SessionTokenHeader = "X-Session-Token"
)

// Session returns Gin middleware that resolves the browser session from the
// session cookie or a Bearer token. A missing, invalid or expired token starts
// a new session and issues a fresh cookie.
func Session(tokens *session.TokenManager, cfg *config.SessionConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := ""
		if token := sessionToken(c, cfg.CookieName); token != "" {
			id, err := tokens.Parse(token)
			if err == nil {
				sessionID = id
			} else {
				log.Debug().Err(err).Msg("discarding session token")
			}
		}

		if sessionID == "" {
			sessionID = uuid.New().String()
			token, err := tokens.Issue(sessionID)
			if err != nil {
				log.Error().Err(err).Msg("issuing session token failed")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error":   gin.H{"code": "INTERNAL_ERROR", "message": "could not start session"},
				})
				return
			}
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cfg.CookieName, token, int(tokens.TTL().Seconds()), "/", "", cfg.SecureCookie, true)
			c.Header(SessionTokenHeader, token)
		}

		c.Set(ContextKeySessionID, sessionID)
		c.Next()
	}
}

func sessionToken(c *gin.Context, cookieName string) string {
	if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if cookie, err := c.Cookie(cookieName); err == nil {
		return cookie
	}
	return ""
}

// GetSessionID extracts the session ID from the Gin context.
func GetSessionID(c *gin.Context) (string, error) {
	val, exists := c.Get(ContextKeySessionID)
	if !exists {
		return "", domain.ErrSessionNotFound
	}
	return val.(string), nil
}
