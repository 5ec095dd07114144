package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"watchlog/internal/logging"
)

const CtxClaimsKey = "auth_claims"

// AuthMiddleware requires a valid bearer token. With a repo it also rejects
// tokens whose version no longer matches the user's row.
func AuthMiddleware(tokens TokenService, repo *Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(strings.ToLower(h), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		raw := strings.TrimSpace(h[len("Bearer "):])
		claims, err := tokens.Parse(raw)
		if err != nil {
			logging.Ctx(c.Request.Context()).Debug().Err(err).Msg("rejected token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if repo != nil {
			version, found, err := repo.GetTokenVersion(c.Request.Context(), claims.UserID)
			if err != nil || !found || version != claims.TokenVersion {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
		}

		c.Set(CtxClaimsKey, claims)
		c.Next()
	}
}

func MustGetClaims(c *gin.Context) *Claims {
	v, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}
