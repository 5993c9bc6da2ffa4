package config

import (
	"os"
	"path/filepath"

	"github.com/go-fcnet/go-fcnet/lib/util/logger"
	"github.com/spf13/viper"
)

var (
	CfgFile string
	log     = logger.GetLogger()
)

const FCNET_BASE_DIR = ".fcnet"

// InitConfig loads configuration from the file pointed at by CfgFile, or
// from $HOME/.fcnet/config.yaml, creating the file with defaults when it
// does not exist yet.
func InitConfig() {
	if CfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(CfgFile)
	} else {
		viper.AddConfigPath(BuildFcnetDirPath())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	setDefaults()

	handleConfigFile()
}

func setDefaults() {
	viper.SetDefault("router.private_key", "")

	viper.SetDefault("session_manager.max_buffered_messages", DefaultSessionManagerConfig.MaxBufferedMessages)
	viper.SetDefault("session_manager.metric_halflife_ms", DefaultSessionManagerConfig.MetricHalflifeMilliseconds)
}

func handleConfigFile() {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.WithFields(logger.Fields{
				"at":   "handleConfigFile",
				"path": BuildFcnetDirPath(),
			}).Debug("no config file found, using defaults")
			createDefaultConfig()
		} else {
			log.WithError(err).Error("failed to read config file")
		}
	}
}

func createDefaultConfig() {
	dir := BuildFcnetDirPath()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.WithError(err).Error("failed to create config directory")
		return
	}
	path := filepath.Join(dir, "config.yaml")
	if err := viper.SafeWriteConfigAs(path); err != nil {
		log.WithError(err).Debug("failed to write default config file")
		return
	}
	log.WithFields(logger.Fields{
		"at":   "createDefaultConfig",
		"path": path,
	}).Debug("default config file written")
}

// BuildFcnetDirPath returns the configuration directory, $HOME/.fcnet.
func BuildFcnetDirPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.WithError(err).Error("failed to resolve home directory")
		return FCNET_BASE_DIR
	}
	return filepath.Join(home, FCNET_BASE_DIR)
}

// NewSessionManagerConfigFromViper creates a SessionManagerConfig from the
// current viper settings. This is the preferred way to get config instead
// of using the package defaults directly.
func NewSessionManagerConfigFromViper() *SessionManagerConfig {
	return &SessionManagerConfig{
		MaxBufferedMessages:        viper.GetInt("session_manager.max_buffered_messages"),
		MetricHalflifeMilliseconds: viper.GetInt("session_manager.metric_halflife_ms"),
	}
}

// PrivateKey returns the configured long-term private key as a hex string.
func PrivateKey() string {
	return viper.GetString("router.private_key")
}
