package mockserver

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	jwtstore "github.com/moweilong/univadmin/pkg/jwt/store"
)

// Account is a user that can log in to the mock backend.
type Account struct {
	Password  string `json:"-" mapstructure:"password"`
	ID        int    `json:"id" mapstructure:"id"`
	Username  string `json:"username" mapstructure:"username"`
	Email     string `json:"email,omitempty" mapstructure:"email"`
	FirstName string `json:"first_name,omitempty" mapstructure:"first-name"`
	LastName  string `json:"last_name,omitempty" mapstructure:"last-name"`
	Role      string `json:"role,omitempty" mapstructure:"role"`

	hash []byte
}

func (a *Account) checkPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(a.hash, []byte(password)) == nil
}

// DefaultAccounts are the accounts available when none are configured.
func DefaultAccounts() []Account {
	return []Account{
		{Password: "admin", ID: 1, Username: "admin", Email: "admin@univ.example", FirstName: "Admin", LastName: "Scolarité", Role: "admin"},
		{Password: "secret", ID: 7, Username: "scolarite", Email: "scolarite@univ.example", FirstName: "Awa", LastName: "Diop", Role: "staff"},
	}
}

// Config contains the mock backend configuration.
type Config struct {
	Addr string
	// JWTKey signs access and refresh tokens.
	JWTKey string
	// AccessTTL is short on purpose, expiring access tokens is what the client must survive.
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// RotateRefresh makes the refresh endpoint return a new refresh token too.
	RotateRefresh bool
	// PageSize of list endpoints, 0 returns bare arrays.
	PageSize int
	// CORSOrigins allowed, empty allows every origin.
	CORSOrigins []string

	Accounts []Account
	// Sessions keeps refresh sessions, in memory when nil.
	Sessions jwtstore.TokenStore
	Logger   *zap.Logger
}

// NewConfig returns a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Addr:       "127.0.0.1:8000",
		JWTKey:     "univadmin-mock-signing-key",
		AccessTTL:  5 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		PageSize:   20,
		Accounts:   DefaultAccounts(),
	}
}

func (c *Config) complete() error {
	if len(c.JWTKey) < 6 {
		return errors.New("jwt key must be at least 6 characters long")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	if len(c.Accounts) == 0 {
		c.Accounts = DefaultAccounts()
	}
	for i := range c.Accounts {
		if c.Accounts[i].hash != nil {
			continue
		}
		// mock accounts, the lowest cost keeps tests fast
		hash, err := bcrypt.GenerateFromPassword([]byte(c.Accounts[i].Password), bcrypt.MinCost)
		if err != nil {
			return fmt.Errorf("hash password of %s: %w", c.Accounts[i].Username, err)
		}
		c.Accounts[i].hash = hash
		c.Accounts[i].Password = ""
	}
	if c.Sessions == nil {
		c.Sessions = jwtstore.NewMemoryStore()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return nil
}
