package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-training/internal/auth"
	"github.com/suPer8Hu/ai-training/internal/common"
)

const UserIDKey = "user_id"

// AuthRequired validates the Bearer token and stores the uint64 user id
// under UserIDKey.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(h, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			common.Abort(c, http.StatusUnauthorized, 40100, "missing bearer token")
			return
		}

		uid, err := auth.ParseJWT(strings.TrimSpace(token), secret)
		if err != nil {
			common.Abort(c, http.StatusUnauthorized, 40101, "unauthorized")
			return
		}

		c.Set(UserIDKey, uid)
		c.Next()
	}
}
