package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

// adminAuth accepts HS256 bearer tokens signed with signingKey and issued by issuer.
func adminAuth(signingKey []byte, issuer string) gin.HandlerFunc {
	keyFunc := func(*jwt.Token) (any, error) { return signingKey, nil }
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing bearer token"))
			return
		}
		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(
			strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)),
			claims,
			keyFunc,
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
		)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid bearer token"))
			return
		}
		ctx.Set(adminSubjectContext, claims.Subject)
		ctx.Next()
	}
}
