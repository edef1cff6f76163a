package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
)

// UserAuth requires a valid user token and stores the opaque user id under
// UserIDKey.
func UserAuth(secret string) gin.HandlerFunc {
	return userAuth(secret, false)
}

// OptionalUserAuth lets requests without an Authorization header through as
// guests. A header that is present must still be valid.
func OptionalUserAuth(secret string) gin.HandlerFunc {
	return userAuth(secret, true)
}

func userAuth(secret string, optional bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := bearerClaims(c, secret)
		if errors.Is(err, errMissingToken) {
			if optional {
				c.Next()
				return
			}
			log.Println("[AUTH] [ERROR] missing token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		if err != nil {
			log.Println("[AUTH] [ERROR] token validation failed:", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		userID := subject(claims)
		if userID == "" {
			log.Println("[AUTH] [ERROR] userId claim missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

func subject(claims jwt.MapClaims) string {
	if v, ok := claims["userId"].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if sub, err := claims.GetSubject(); err == nil {
		return strings.TrimSpace(sub)
	}
	return ""
}

// UserID returns the id set by UserAuth or OptionalUserAuth, or "" for guests.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
