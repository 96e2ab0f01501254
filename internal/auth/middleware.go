package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lore-anchor/protect/internal/utils"
)

// OwnerIDKey is the gin.Context key the middleware sets on success.
const OwnerIDKey = "owner_id"

// Middleware validates the Authorization bearer token and sets the
// owning user's ID into the request context (spec §6: every image and
// task endpoint authenticates this way; handlers scope every Catalog
// query to this owner_id).
func Middleware(verifier *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.SendError(c, http.StatusUnauthorized, "unauthorized: missing token", nil)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			utils.SendError(c, http.StatusUnauthorized, "unauthorized: invalid header format", nil)
			return
		}

		ownerID, err := verifier.VerifyToken(parts[1])
		if err != nil {
			utils.SendError(c, http.StatusUnauthorized, "unauthorized: invalid token", err)
			return
		}

		c.Set(OwnerIDKey, ownerID)
		c.Next()
	}
}

// OwnerID reads the authenticated owner_id set by Middleware. Handlers
// call this after Middleware has run; the empty-string case only arises
// if a route forgets to mount the middleware.
func OwnerID(c *gin.Context) string {
	v, _ := c.Get(OwnerIDKey)
	ownerID, _ := v.(string)
	return ownerID
}
