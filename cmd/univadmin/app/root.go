package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/moweilong/univadmin/cmd/univadmin/app/options"
	"github.com/moweilong/univadmin/pkg/apiclient"
	"github.com/moweilong/univadmin/pkg/cache"
	"github.com/moweilong/univadmin/pkg/credstore"
	"github.com/moweilong/univadmin/pkg/errorsx"
	"github.com/moweilong/univadmin/pkg/log"
	"github.com/moweilong/univadmin/pkg/univ"
)

const (
	// defaultHomeDir defines the default directory to store the configuration of univadmin.
	defaultHomeDir = ".univadmin"

	// defaultConfigName specifies the default configuration file name.
	defaultConfigName = "univadmin.yaml"

	envPrefix = "UNIVADMIN"
)

// app carries the state shared by the commands of one invocation.
type app struct {
	v          *viper.Viper
	configFile string
	opts       *options.ClientOptions
	errOut     io.Writer

	client *apiclient.Client
	store  credstore.Store
	svc    *univ.Service
	cache  *cache.MemoryCache
}

// NewUnivAdminCommand creates the root *cobra.Command of univadmin.
func NewUnivAdminCommand() *cobra.Command {
	a := &app{v: viper.New(), opts: options.NewClientOptions()}

	cmd := &cobra.Command{
		Use:   "univadmin",
		Short: "Manage the university administration backend from the command line",
		Long: fmt.Sprintf(`univadmin logs in to the university administration backend and manages
its students, teachers, courses, library, attendance and documents.

The session survives between invocations, expired access tokens are refreshed
transparently. Config: %s`, color.HiCyanString(filePath())),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.errOut = cmd.ErrOrStderr()
			return a.complete()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", filePath(), "Path to the univadmin configuration file.")
	a.opts.AddFlags(cmd.PersistentFlags())
	cobra.CheckErr(a.v.BindPFlags(cmd.PersistentFlags()))

	cmd.AddCommand(
		a.newLoginCommand(),
		a.newLogoutCommand(),
		a.newWhoAmICommand(),
		a.newResourcesCommand(),
		a.newListCommand(),
		a.newGetCommand(),
		a.newCreateCommand(),
		a.newUpdateCommand(),
		a.newDeleteCommand(),
		a.newDownloadCommand(),
		a.newGenerateCommand(),
		a.newMockServerCommand(),
	)
	return cmd
}

// complete loads the configuration and validates the options.
func (a *app) complete() error {
	onInitialize(a.v, a.configFile, envPrefix, searchDirs(), defaultConfigName)

	// Unmarshal the configuration from viper into opts
	if err := a.v.Unmarshal(a.opts); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := a.opts.Complete(); err != nil {
		return err
	}
	if err := a.opts.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	if a.opts.NoColor {
		color.NoColor = true
	}
	log.Init(a.opts.Log)
	return nil
}

// service builds the api client on first use.
func (a *app) service(ctx context.Context) (*univ.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}

	store, err := credstore.NewStore(ctx, a.opts.Credentials, a.opts.Server)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	a.store = store

	a.client, err = apiclient.New(a.opts.Server, credstore.NewCredentials(store),
		apiclient.WithTimeout(a.opts.Timeout),
		apiclient.WithLoginPath(a.opts.LoginPath),
		apiclient.WithRefreshPath(a.opts.RefreshPath),
		apiclient.WithLogger(log.Default()),
		apiclient.WithSessionExpiredHandler(func(context.Context, *errorsx.Error) {
			fmt.Fprintln(a.errOut, color.YellowString("Your session has expired, please log in again: univadmin login"))
		}),
	)
	if err != nil {
		return nil, err
	}

	var svcOpts []univ.Option
	if a.opts.CacheTTL > 0 {
		if a.cache, err = cache.NewMemoryCache("univadmin"); err != nil {
			return nil, err
		}
		svcOpts = append(svcOpts, univ.WithCache(a.cache, a.opts.CacheTTL))
	}
	a.svc = univ.NewService(a.client, svcOpts...)
	return a.svc, nil
}

func (a *app) close() {
	if a.cache != nil {
		a.cache.Close()
	}
	if c, ok := a.store.(credstore.Closer); ok {
		_ = c.Close()
	}
	log.Sync()
}

// searchDirs returns the default directories to search for the configuration file.
func searchDirs() []string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return []string{"."}
	}
	return []string{filepath.Join(homeDir, defaultHomeDir), "."}
}

// filePath retrieves the full path to the default configuration file.
func filePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(home, defaultHomeDir, defaultConfigName)
}
