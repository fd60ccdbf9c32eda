// Package jwt signs and parses the access/refresh token pair of a session.
package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token types stored in the "typ" field, a refresh token is never accepted as an access token.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

func init() {
	// sub-second iat, an access token refreshed within the second it was issued must differ from it
	jwt.TimePrecision = time.Microsecond
}

// Claims universal claims
type Claims struct {
	UID    string                 `json:"uid,omitempty"`    // user id
	Type   string                 `json:"typ,omitempty"`    // access or refresh
	Fields map[string]interface{} `json:"fields,omitempty"` // custom fields
	jwt.RegisteredClaims
}

// Get custom field value by key, if not found, return false
func (c *Claims) Get(key string) (val interface{}, isExist bool) {
	if c.Fields == nil {
		return nil, false
	}
	val, isExist = c.Fields[key]
	return val, isExist
}

// GetString custom field value by key, if not found, return false
func (c *Claims) GetString(key string) (string, bool) {
	val, isExist := c.Get(key)
	if isExist {
		str, ok := val.(string)
		return str, ok
	}
	return "", false
}

// GetInt custom field value by key, if not found, return false
func (c *Claims) GetInt(key string) (int, bool) {
	val, isExist := c.Get(key)
	if isExist {
		if v, ok := val.(float64); ok {
			return int(v), true
		}
		if v, ok := val.(int); ok {
			return v, true
		}
	}
	return 0, false
}

// ExpiresIn returns the time left before the token expires, negative once expired.
func (c *Claims) ExpiresIn(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}

// NewToken create new token with claims, duration, signing method and signing key
func (c *Claims) NewToken(d time.Duration, signMethod jwt.SigningMethod, signKey []byte) (string, error) {
	now := time.Now()
	c.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(d))
	c.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)
	token := jwt.NewWithClaims(signMethod, c)
	return token.SignedString(signKey)
}

// GetClaimsUnverified get claims from token, not verifying signature
func GetClaimsUnverified(tokenString string) (*Claims, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errClaims
	}
	return claims, nil
}

// ValidateToken validate token, return error if token is invalid
func ValidateToken(tokenString string, opts ...ValidateTokenOption) (*Claims, error) {
	_, claims, err := verifyToken(tokenString, opts...)
	return claims, err
}

func verifyToken(tokenString string, opts ...ValidateTokenOption) (string, *Claims, error) {
	o := defaultValidateTokenOptions()
	o.apply(opts...)

	alg := ""
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		alg, _ = token.Header["alg"].(string)
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %s", alg)
		}
		return o.signKey, nil
	})
	if err != nil {
		return "", nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return "", nil, errClaims
	}
	if o.tokenType != "" && claims.Type != o.tokenType {
		return "", nil, errTokenType
	}
	return alg, claims, nil
}

// --------------------------------- two tokens ---------------------------------

// Tokens is a signed access/refresh pair sharing one jwt id.
type Tokens struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
	JwtID        string `json:"-"` // shared by both tokens, identifies the session
}

// GenerateTwoTokens create accessToken and refreshToken
func GenerateTwoTokens(uid string, opts ...GenerateTwoTokensOption) (*Tokens, error) {
	o := defaultGenerateTwoTokensOptions()
	o.apply(opts...)

	// forced id consistency
	o.accessTokenClaimsOptions.registeredClaims.ID = o.refreshTokenClaimsOptions.registeredClaims.ID

	claims := Claims{UID: uid, Type: TypeAccess, Fields: o.fields, RegisteredClaims: o.accessTokenClaimsOptions.registeredClaims}
	accessTokenStr, err := jwt.NewWithClaims(o.signMethod, claims).SignedString(o.signKey)
	if err != nil {
		return nil, err
	}

	claims.Type = TypeRefresh
	claims.RegisteredClaims = o.refreshTokenClaimsOptions.registeredClaims
	refreshTokenStr, err := jwt.NewWithClaims(o.signMethod, claims).SignedString(o.signKey)
	if err != nil {
		return nil, err
	}

	return &Tokens{
		AccessToken:  accessTokenStr,
		RefreshToken: refreshTokenStr,
		JwtID:        o.refreshTokenClaimsOptions.registeredClaims.ID,
	}, nil
}

// RefreshAccessToken verifies refreshToken and signs a new access token for the same session.
// if return err wraps ErrTokenExpired, you need to login again to get token.
func RefreshAccessToken(refreshToken string, opts ...RefreshAccessTokenOption) (string, *Claims, error) {
	o := defaultRefreshAccessTokenOptions()
	o.apply(opts...)

	alg, refreshClaims, err := verifyToken(refreshToken,
		WithValidateTokenSignKey(o.signKey), WithValidateTokenType(TypeRefresh))
	if err != nil {
		return "", nil, err
	}

	signMethod, err := getAlg(alg)
	if err != nil {
		return "", nil, err
	}

	accessClaims := &Claims{
		UID:    refreshClaims.UID,
		Type:   TypeAccess,
		Fields: refreshClaims.Fields,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       refreshClaims.ID,
			Issuer:   refreshClaims.Issuer,
			Subject:  refreshClaims.Subject,
			Audience: refreshClaims.Audience,
		},
	}
	accessToken, err := accessClaims.NewToken(o.accessTokenExpire, signMethod, o.signKey)
	if err != nil {
		return "", nil, err
	}
	return accessToken, accessClaims, nil
}
