// Package configpkg provides parsing functionality for environment variables.
package configpkg

import (
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
//
// The values are read by viper from a config file or environment variables.
type Config struct {
	ServerAddress      string        `mapstructure:"SERVER_ADDRESS"`
	LedgerBaseURL      string        `mapstructure:"LEDGER_BASE_URL"`
	LedgerTimeout      time.Duration `mapstructure:"LEDGER_TIMEOUT"`
	LedgerServiceToken string        `mapstructure:"LEDGER_SERVICE_TOKEN"`
	TokenSymmetricKey  string        `mapstructure:"TOKEN_SYMMETRIC_KEY"`
	DefaultCurrency    string        `mapstructure:"DEFAULT_CURRENCY"`
	DefaultLocale      string        `mapstructure:"DEFAULT_LOCALE"`
	Environment        string        `mapstructure:"GO_ENV"`
}

// Load reads configuration from file or environment variables.
func Load(path string) (Config, error) {
	var c Config

	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		return c, err
	}

	err = viper.Unmarshal(&c)
	if err != nil {
		return c, err
	}

	return c, nil
}
