package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const principalKey = "principal"

// Principal is the authenticated caller. It is the only request-scoped auth
// state handlers may read; nothing else is attached to the context.
type Principal struct {
	UserID primitive.ObjectID
	Email  string
	Role   string
}

// IsAdmin reports whether the caller holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == "admin"
}

// PrincipalFrom returns the authenticated caller set by RequireAuth.
func PrincipalFrom(c *gin.Context) (Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	principal, ok := value.(Principal)
	return principal, ok
}

// RequireAuth validates the Bearer token and stores the Principal on the
// context. When allowedRoles is non-empty the caller's role must match one.
func RequireAuth(secret string, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := parseBearer(c.GetHeader("Authorization"), secret)
		if err != nil {
			log.Println("[AUTH] [ERROR] token validation failed:", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
			return
		}

		if len(allowedRoles) > 0 {
			match := false
			for _, role := range allowedRoles {
				if principal.Role == role {
					match = true
					break
				}
			}
			if !match {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "forbidden"})
				return
			}
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// RequireAdmin is RequireAuth restricted to the admin role.
func RequireAdmin(secret string) gin.HandlerFunc {
	return RequireAuth(secret, "admin")
}

func parseBearer(header, secret string) (Principal, error) {
	raw := strings.TrimSpace(header)
	if raw == "" {
		return Principal{}, errors.New("missing token")
	}

	parts := strings.Split(raw, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return Principal{}, errors.New("invalid token format")
	}

	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return Principal{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, errors.New("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok || strings.TrimSpace(sub) == "" {
		return Principal{}, errors.New("sub claim missing")
	}

	userID, err := primitive.ObjectIDFromHex(sub)
	if err != nil {
		return Principal{}, errors.New("invalid sub claim")
	}

	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)

	return Principal{UserID: userID, Email: email, Role: role}, nil
}
