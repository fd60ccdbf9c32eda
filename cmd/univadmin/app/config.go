package app

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/spf13/viper"

	"github.com/moweilong/univadmin/pkg/log"
)

// onInitialize points v at the configuration file and the environment.
// A missing configuration file is not an error, flags and defaults apply.
func onInitialize(v *viper.Viper, configFile, envPrefix string, loadDirs []string, defaultConfigName string) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		for _, dir := range loadDirs {
			v.AddConfigPath(dir)
		}
		v.SetConfigType("yaml")
		v.SetConfigName(strings.TrimSuffix(defaultConfigName, ".yaml"))
	}

	// UNIVADMIN_CREDENTIALS_TYPE overrides credentials.type
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return
		}
		log.Warnw("failed to read configuration file", "file", v.ConfigFileUsed(), "err", err)
		return
	}
	log.Debugw("using configuration file", "file", v.ConfigFileUsed())
}
