package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type SigningMethodHMAC = jwt.SigningMethodHMAC

var (
	HS256 = jwt.SigningMethodHS256
	HS384 = jwt.SigningMethodHS384
	HS512 = jwt.SigningMethodHS512
)

var (
	defaultSigningKey    = []byte("sT9kVq2LwX4mE7bN1cR8yH3uJ6pA0dFg") // default key
	defaultSigningMethod = HS256                                     // default HS256

	defaultAccessTokenExpire  = 5 * time.Minute
	defaultRefreshTokenExpire = 24 * time.Hour
)

var (
	// ErrTokenExpired is returned, wrapped, when a token is past its exp claim.
	ErrTokenExpired = jwt.ErrTokenExpired

	errClaims    = errors.New("claims is not match")
	errTokenType = errors.New("token type is not match")
)

// ------------------------------------------------------------------------------------------

type registeredClaimsOptions struct {
	registeredClaims jwt.RegisteredClaims
}

func defaultRegisteredClaimsOptions(expire time.Duration, id string) *registeredClaimsOptions {
	now := time.Now()
	return &registeredClaimsOptions{
		registeredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expire)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        id,
		},
	}
}

// RegisteredClaimsOption set the registered claims options.
type RegisteredClaimsOption func(*registeredClaimsOptions)

func (o *registeredClaimsOptions) apply(opts ...RegisteredClaimsOption) {
	for _, opt := range opts {
		opt(o)
	}
}

// WithIssuer set issuer (iss) value
func WithIssuer(issuer string) RegisteredClaimsOption {
	return func(o *registeredClaimsOptions) {
		o.registeredClaims.Issuer = issuer
	}
}

// WithExpires set expires (exp) value
func WithExpires(d time.Duration) RegisteredClaimsOption {
	return func(o *registeredClaimsOptions) {
		o.registeredClaims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(d))
	}
}

// WithDeadline set expires (exp) value
func WithDeadline(expiresAt time.Time) RegisteredClaimsOption {
	return func(o *registeredClaimsOptions) {
		o.registeredClaims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	}
}

// WithJwtID set jwt id (jti) value
func WithJwtID(id string) RegisteredClaimsOption {
	return func(o *registeredClaimsOptions) {
		if id == "" {
			return
		}
		o.registeredClaims.ID = id
	}
}

// ------------------------------------------------------------------------------------

type validateTokenOptions struct {
	signKey   []byte
	tokenType string
}

func defaultValidateTokenOptions() *validateTokenOptions {
	return &validateTokenOptions{
		signKey: defaultSigningKey,
	}
}

// ValidateTokenOption set parse token options.
type ValidateTokenOption func(*validateTokenOptions)

func (o *validateTokenOptions) apply(opts ...ValidateTokenOption) {
	for _, opt := range opts {
		opt(o)
	}
}

// WithValidateTokenSignKey set sign key value
func WithValidateTokenSignKey(key []byte) ValidateTokenOption {
	return func(o *validateTokenOptions) {
		if len(key) == 0 {
			return
		}
		o.signKey = key
	}
}

// WithValidateTokenType only accepts tokens of the given type (TypeAccess or TypeRefresh).
func WithValidateTokenType(typ string) ValidateTokenOption {
	return func(o *validateTokenOptions) {
		o.tokenType = typ
	}
}

// ------------------------------------------------------------------------------------------

type generateTwoTokensOptions struct {
	signMethod jwt.SigningMethod
	signKey    []byte

	fields map[string]interface{} // custom fields

	accessTokenClaimsOptions  *registeredClaimsOptions
	refreshTokenClaimsOptions *registeredClaimsOptions
}

func defaultGenerateTwoTokensOptions() *generateTwoTokensOptions {
	id := uuid.NewString()
	return &generateTwoTokensOptions{
		accessTokenClaimsOptions:  defaultRegisteredClaimsOptions(defaultAccessTokenExpire, id),
		refreshTokenClaimsOptions: defaultRegisteredClaimsOptions(defaultRefreshTokenExpire, id),

		signKey:    defaultSigningKey,
		signMethod: defaultSigningMethod,
	}
}

// GenerateTwoTokensOption set the jwt options.
type GenerateTwoTokensOption func(*generateTwoTokensOptions)

func (o *generateTwoTokensOptions) apply(opts ...GenerateTwoTokensOption) {
	for _, opt := range opts {
		opt(o)
	}
}

// WithGenerateTwoTokensSignMethod set sign method value
func WithGenerateTwoTokensSignMethod(sm jwt.SigningMethod) GenerateTwoTokensOption {
	return func(o *generateTwoTokensOptions) {
		o.signMethod = sm
	}
}

// WithGenerateTwoTokensSignKey set sign key value
func WithGenerateTwoTokensSignKey(key []byte) GenerateTwoTokensOption {
	return func(o *generateTwoTokensOptions) {
		if len(key) == 0 {
			return
		}
		o.signKey = key
	}
}

// WithGenerateTwoTokensFields set custom fields value
func WithGenerateTwoTokensFields(fields map[string]interface{}) GenerateTwoTokensOption {
	return func(o *generateTwoTokensOptions) {
		o.fields = fields
	}
}

// WithGenerateTwoTokensAccessTokenClaims set Access token claims value
func WithGenerateTwoTokensAccessTokenClaims(opts ...RegisteredClaimsOption) GenerateTwoTokensOption {
	return func(o *generateTwoTokensOptions) {
		o.accessTokenClaimsOptions.apply(opts...)
	}
}

// WithGenerateTwoTokensRefreshTokenClaims set refresh token claims value
func WithGenerateTwoTokensRefreshTokenClaims(opts ...RegisteredClaimsOption) GenerateTwoTokensOption {
	return func(o *generateTwoTokensOptions) {
		o.refreshTokenClaimsOptions.apply(opts...)
	}
}

// -------------------------------------------------------------------------------------

type refreshAccessTokenOptions struct {
	signKey           []byte
	accessTokenExpire time.Duration
}

func defaultRefreshAccessTokenOptions() *refreshAccessTokenOptions {
	return &refreshAccessTokenOptions{
		signKey:           defaultSigningKey,
		accessTokenExpire: defaultAccessTokenExpire,
	}
}

// RefreshAccessTokenOption set refresh options.
type RefreshAccessTokenOption func(*refreshAccessTokenOptions)

func (o *refreshAccessTokenOptions) apply(opts ...RefreshAccessTokenOption) {
	for _, opt := range opts {
		opt(o)
	}
}

// WithRefreshSignKey set sign key value
func WithRefreshSignKey(key []byte) RefreshAccessTokenOption {
	return func(o *refreshAccessTokenOptions) {
		if len(key) == 0 {
			return
		}
		o.signKey = key
	}
}

// WithRefreshAccessTokenExpires set access token expire value
func WithRefreshAccessTokenExpires(d time.Duration) RefreshAccessTokenOption {
	return func(o *refreshAccessTokenOptions) {
		o.accessTokenExpire = d
	}
}

func getAlg(alg string) (jwt.SigningMethod, error) {
	switch alg {
	case "HS256":
		return HS256, nil
	case "HS384":
		return HS384, nil
	case "HS512":
		return HS512, nil
	default:
		return nil, errors.New("unsupported signing method: " + alg)
	}
}
