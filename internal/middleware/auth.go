package middleware

import (
	"errors"
	"net/http"
	"strings"

	"washly/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const ClaimsKey = "claims"

// Token types carried in the "typ" claim. A refresh token is never accepted as
// a bearer token and vice versa.
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

var errWrongTokenType = errors.New("wrong token type")

// JWTClaims are the custom claims embedded in every token.
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Rol      string `json:"rol"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

// Actor returns the parsed user id; ParseToken guarantees it is valid.
func (c *JWTClaims) Actor() uuid.UUID {
	id, _ := uuid.Parse(c.UserID)
	return id
}

// ParseToken verifies an HS256 token of the wanted type and returns its claims.
func ParseToken(secret, raw, wantType string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.Type != wantType {
		return nil, errWrongTokenType
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, err
	}
	return claims, nil
}

// JWTAuth validates the Bearer access token on every protected route.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New(apierror.KindUnauthorized, "Autenticacion requerida"))
			return
		}

		claims, err := ParseToken(secret, strings.TrimPrefix(header, "Bearer "), TokenAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New(apierror.KindUnauthorized, "Token invalido o expirado"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireRole rejects requests whose JWT role is not in the allowed list.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil || !allowed[claims.Rol] {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.New(apierror.KindForbidden, "Permisos insuficientes"))
			return
		}
		c.Next()
	}
}

// GetClaims returns the claims stored by JWTAuth, nil on unauthenticated routes.
func GetClaims(c *gin.Context) *JWTClaims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*JWTClaims)
	return claims
}

// ActorID is the acting user of the request, uuid.Nil when the route is not
// behind JWTAuth.
func ActorID(c *gin.Context) uuid.UUID {
	claims := GetClaims(c)
	if claims == nil {
		return uuid.Nil
	}
	return claims.Actor()
}
