// nolint: err113
package options

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/moweilong/univadmin/pkg/credstore"
	"github.com/moweilong/univadmin/pkg/log"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// ClientOptions contains the configuration options of the command line client.
type ClientOptions struct {
	// Server is the base url of the backend, e.g. https://api.univ.example.
	Server string `json:"server" mapstructure:"server"`
	// Timeout bounds every request.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	// LoginPath and RefreshPath locate the auth endpoints of the backend.
	LoginPath   string `json:"login-path" mapstructure:"login-path"`
	RefreshPath string `json:"refresh-path" mapstructure:"refresh-path"`
	// CacheTTL of reference data lists (departments, programs, rooms), 0 disables the cache.
	CacheTTL time.Duration `json:"cache-ttl" mapstructure:"cache-ttl"`
	// Format of command output, table, json or yaml.
	Format  string `json:"format" mapstructure:"format"`
	NoColor bool   `json:"no-color" mapstructure:"no-color"`
	// Credentials selects where the session is kept between invocations.
	Credentials *credstore.Config `json:"credentials" mapstructure:"credentials"`
	// Log used to specify the log options.
	Log *log.Options `json:"log" mapstructure:"log"`
}

// NewClientOptions creates a ClientOptions instance with default values.
func NewClientOptions() *ClientOptions {
	logOpts := log.NewOptions()
	logOpts.Level = "warn"

	return &ClientOptions{
		Server:      "http://127.0.0.1:8000",
		Timeout:     30 * time.Second,
		LoginPath:   "/auth/login/",
		RefreshPath: "/auth/token/refresh/",
		CacheTTL:    10 * time.Minute,
		Format:      FormatTable,
		Credentials: &credstore.Config{
			Type:  credstore.FileType,
			Redis: credstore.DefaultRedisConfig(),
		},
		Log: logOpts,
	}
}

// AddFlags binds the options in ClientOptions to command-line flags.
func (o *ClientOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Server, "server", "s", o.Server, "Base `URL` of the university backend.")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "Timeout of a single request.")
	fs.StringVar(&o.LoginPath, "login-path", o.LoginPath, "Path of the login endpoint.")
	fs.StringVar(&o.RefreshPath, "refresh-path", o.RefreshPath, "Path of the token refresh endpoint.")
	fs.DurationVar(&o.CacheTTL, "cache-ttl", o.CacheTTL, "How long reference data lists are cached, 0 disables the cache.")
	fs.StringVar(&o.Format, "format", o.Format, "Output `FORMAT`, table, json or yaml.")
	fs.BoolVar(&o.NoColor, "no-color", o.NoColor, "Disable colored output.")

	fs.StringVar((*string)(&o.Credentials.Type), "credentials.type", string(o.Credentials.Type),
		"Where the session is kept: memory, file or redis.")
	fs.StringVar(&o.Credentials.Dir, "credentials.dir", o.Credentials.Dir,
		"Directory of the file credential store, defaults to ~/.univadmin/credentials.")
	fs.StringVar(&o.Credentials.Redis.Addr, "credentials.redis.addr", o.Credentials.Redis.Addr, "Redis address of the redis credential store.")
	fs.StringVar(&o.Credentials.Redis.Password, "credentials.redis.password", o.Credentials.Redis.Password, "Redis password.")
	fs.IntVar(&o.Credentials.Redis.DB, "credentials.redis.db", o.Credentials.Redis.DB, "Redis database number.")
	fs.DurationVar(&o.Credentials.Redis.TTL, "credentials.redis.ttl", o.Credentials.Redis.TTL, "Lifetime of a session kept in redis, 0 keeps it forever.")

	o.Log.AddFlags(fs)
}

// Complete completes all the required options.
func (o *ClientOptions) Complete() error {
	o.Server = strings.TrimRight(strings.TrimSpace(o.Server), "/")
	if o.Credentials == nil {
		o.Credentials = credstore.DefaultConfig()
	}
	if o.Credentials.Type == credstore.FileType && o.Credentials.Dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("locate credentials directory: %w", err)
		}
		o.Credentials.Dir = filepath.Join(home, ".univadmin", "credentials")
	}
	if o.Credentials.Type == credstore.RedisType && o.Credentials.Redis == nil {
		o.Credentials.Redis = credstore.DefaultRedisConfig()
	}
	if o.Log == nil {
		o.Log = log.NewOptions()
	}
	return nil
}

// Validate checks whether the options in ClientOptions are valid.
func (o *ClientOptions) Validate() error {
	errs := []error{}

	u, err := url.Parse(o.Server)
	switch {
	case o.Server == "":
		errs = append(errs, errors.New("server must not be empty"))
	case err != nil:
		errs = append(errs, fmt.Errorf("invalid server url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https", u.Host == "":
		errs = append(errs, fmt.Errorf("server %q must be an absolute http or https url", o.Server))
	}
	if o.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if o.CacheTTL < 0 {
		errs = append(errs, errors.New("cache-ttl must not be negative"))
	}
	switch o.Format {
	case FormatTable, FormatJSON, FormatYAML:
	default:
		errs = append(errs, fmt.Errorf("invalid format %q, must be table, json or yaml", o.Format))
	}
	if o.Credentials != nil {
		switch o.Credentials.Type {
		case credstore.MemoryType, credstore.FileType, credstore.RedisType, "":
		default:
			errs = append(errs, fmt.Errorf("unsupported credentials type %q", o.Credentials.Type))
		}
	}
	if o.Log != nil {
		errs = append(errs, o.Log.Validate()...)
	}

	// Aggregate all errors and return them.
	return utilerrors.NewAggregate(errs)
}
