package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/moweilong/univadmin/pkg/jwt"
)

// HeaderAuthorizationKey http header authorization key, value is "Bearer token"
const HeaderAuthorizationKey = "Authorization"

const claimsKey = "claims"

// ExtraVerifyFn extra verify function, e.g. checking that the session was not revoked
type ExtraVerifyFn = func(claims *jwt.Claims, c *gin.Context) error

// AuthOption set the auth options.
type AuthOption func(*authOptions)

type authOptions struct {
	signKey       []byte
	extraVerifyFn ExtraVerifyFn
}

func (o *authOptions) apply(opts ...AuthOption) {
	for _, opt := range opts {
		opt(o)
	}
}

// WithSignKey set jwt sign key
func WithSignKey(key []byte) AuthOption {
	return func(o *authOptions) {
		o.signKey = key
	}
}

// WithExtraVerify set extra verify function
func WithExtraVerify(fn ExtraVerifyFn) AuthOption {
	return func(o *authOptions) {
		o.extraVerifyFn = fn
	}
}

// unauthorized answers the way the backend does, a 401 with a detail message.
func unauthorized(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"detail": detail,
		"code":   "token_not_valid",
	})
}

// Auth checks the bearer access token and stores its claims in the context.
func Auth(opts ...AuthOption) gin.HandlerFunc {
	o := &authOptions{}
	o.apply(opts...)

	return func(c *gin.Context) {
		authorization := c.GetHeader(HeaderAuthorizationKey)
		tokenString, ok := strings.CutPrefix(authorization, "Bearer ")
		if !ok || tokenString == "" {
			unauthorized(c, "Authentication credentials were not provided.")
			return
		}

		claims, err := jwt.ValidateToken(tokenString,
			jwt.WithValidateTokenSignKey(o.signKey), jwt.WithValidateTokenType(jwt.TypeAccess))
		if err != nil {
			unauthorized(c, "Given token not valid for any token type")
			return
		}
		if o.extraVerifyFn != nil {
			if err = o.extraVerifyFn(claims, c); err != nil {
				unauthorized(c, err.Error())
				return
			}
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// GetClaims get jwt claims from gin context.
func GetClaims(c *gin.Context) (*jwt.Claims, bool) {
	claims, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}
	jwtClaims, ok := claims.(*jwt.Claims)
	return jwtClaims, ok
}
