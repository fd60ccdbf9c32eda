package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/moweilong/univadmin/cmd/univadmin/app/options"
	"github.com/moweilong/univadmin/internal/mockserver"
	jwtstore "github.com/moweilong/univadmin/pkg/jwt/store"
	"github.com/moweilong/univadmin/pkg/log"
)

func (a *app) newMockServerCommand() *cobra.Command {
	opts := options.NewMockServerOptions()

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run an in-memory backend for local development",
		Long: `Run an in-memory stand-in for the university backend.

Accounts: admin/admin and scolarite/secret. POST /_mock/expire-tokens/ expires every
access token issued so far, to watch the client refresh them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.v.UnmarshalKey("mock-server", opts); err != nil {
				return fmt.Errorf("failed to unmarshal configuration: %w", err)
			}
			if err := opts.Validate(); err != nil {
				return fmt.Errorf("invalid options: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runMockServer(ctx, opts)
		},
	}

	opts.AddFlags(cmd.Flags())
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		cobra.CheckErr(a.v.BindPFlag("mock-server."+f.Name, f))
	})
	return cmd
}

// runMockServer contains the main logic for initializing and running the mock backend.
func runMockServer(ctx context.Context, opts *options.MockServerOptions) error {
	gin.SetMode(gin.ReleaseMode)
	cfg := opts.Config()
	cfg.Logger = log.Default().Zap()

	if opts.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis %s: %w", opts.RedisAddr, err)
		}
		cfg.Sessions = jwtstore.NewRedisStore(client, "")
	}

	server, err := mockserver.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	log.Infow("mock backend ready", "addr", cfg.Addr, "access-ttl", cfg.AccessTTL.String())
	return server.Run(ctx)
}
