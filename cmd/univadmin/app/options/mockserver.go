package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/moweilong/univadmin/internal/mockserver"
)

// MockServerOptions contains the options of the mock-server command.
type MockServerOptions struct {
	Addr          string        `json:"addr" mapstructure:"addr"`
	JWTKey        string        `json:"jwt-key" mapstructure:"jwt-key"`
	AccessTTL     time.Duration `json:"access-ttl" mapstructure:"access-ttl"`
	RefreshTTL    time.Duration `json:"refresh-ttl" mapstructure:"refresh-ttl"`
	RotateRefresh bool          `json:"rotate-refresh" mapstructure:"rotate-refresh"`
	PageSize      int           `json:"page-size" mapstructure:"page-size"`
	// RedisAddr keeps refresh sessions in redis when set.
	RedisAddr string `json:"redis-addr" mapstructure:"redis-addr"`
}

// NewMockServerOptions creates a MockServerOptions instance with default values.
func NewMockServerOptions() *MockServerOptions {
	cfg := mockserver.NewConfig()
	return &MockServerOptions{
		Addr:       cfg.Addr,
		JWTKey:     cfg.JWTKey,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
		PageSize:   cfg.PageSize,
	}
}

// AddFlags binds the options in MockServerOptions to command-line flags.
func (o *MockServerOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Addr, "addr", o.Addr, "Address to listen on.")
	fs.StringVar(&o.JWTKey, "jwt-key", o.JWTKey, "JWT signing key. Must be at least 6 characters long.")
	fs.DurationVar(&o.AccessTTL, "access-ttl", o.AccessTTL, "Lifetime of access tokens.")
	fs.DurationVar(&o.RefreshTTL, "refresh-ttl", o.RefreshTTL, "Lifetime of refresh tokens.")
	fs.BoolVar(&o.RotateRefresh, "rotate-refresh", o.RotateRefresh, "Issue a new refresh token on every refresh.")
	fs.IntVar(&o.PageSize, "page-size", o.PageSize, "Page size of list endpoints, 0 returns plain arrays.")
	fs.StringVar(&o.RedisAddr, "redis-addr", o.RedisAddr, "Keep refresh sessions in the redis at this address.")
}

// Validate checks whether the options in MockServerOptions are valid.
func (o *MockServerOptions) Validate() error {
	errs := []error{}
	if len(o.JWTKey) < 6 {
		errs = append(errs, errors.New("JWTKey must be at least 6 characters long"))
	}
	if o.AccessTTL <= 0 || o.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if o.AccessTTL > o.RefreshTTL {
		errs = append(errs, errors.New("access-ttl must not exceed refresh-ttl"))
	}
	if o.PageSize < 0 {
		errs = append(errs, errors.New("page-size must not be negative"))
	}
	return utilerrors.NewAggregate(errs)
}

// Config builds a mockserver.Config based on MockServerOptions.
func (o *MockServerOptions) Config() *mockserver.Config {
	cfg := mockserver.NewConfig()
	cfg.Addr = o.Addr
	cfg.JWTKey = o.JWTKey
	cfg.AccessTTL = o.AccessTTL
	cfg.RefreshTTL = o.RefreshTTL
	cfg.RotateRefresh = o.RotateRefresh
	cfg.PageSize = o.PageSize
	return cfg
}
