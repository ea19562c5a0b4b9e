package middleware

import (
	"net/http"
	"strings"

	"payment-reconciler/clients"

	"github.com/gin-gonic/gin"
)

const CredentialsContextKey = "credentials"

// AuthMiddleware extracts the bearer token and the business/outlet scope
// headers the backend requires. This service never mints tokens; it forwards
// the caller's credentials on every backend request.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if auth == "" || token == auth {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		c.Set(CredentialsContextKey, clients.Credentials{
			Token:      token,
			BusinessID: c.GetHeader("X-Business-Id"),
			OutletID:   c.GetHeader("X-Outlet-Id"),
		})
		c.Next()
	}
}

// GetCredentials returns the credentials attached by AuthMiddleware.
func GetCredentials(c *gin.Context) clients.Credentials {
	if val, ok := c.Get(CredentialsContextKey); ok {
		if creds, ok := val.(clients.Credentials); ok {
			return creds
		}
	}
	return clients.Credentials{}
}
