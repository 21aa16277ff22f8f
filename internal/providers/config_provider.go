package providers

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"stride/internal/structures"
)

func setConfigDefaults() {
	viper.SetDefault("store.loadLimit", 1000)
	viper.SetDefault("outbox.bufferSize", 256)
	viper.SetDefault("outbox.maxAttempts", 5)
	viper.SetDefault("outbox.baseDelay", 200*time.Millisecond)
	viper.SetDefault("outbox.maxDelay", 5*time.Second)
	viper.SetDefault("sampler.mode", "device")
	viper.SetDefault("sampler.interval", 2*time.Second)
	viper.SetDefault("cache.ttl", 10*time.Second)
}

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(flags.ConfigPath)
	viper.AddConfigPath(filepath.Dir(flags.ConfigPath))
	viper.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	viper.SetConfigType("yaml")

	setConfigDefaults()

	viper.BindEnv("logger.level", "STRIDE_LOG_LEVEL")
	viper.BindEnv("store.driver", "STRIDE_STORE_DRIVER")
	viper.BindEnv("store.dsn", "STRIDE_STORE_DSN")
	viper.BindEnv("persistence.saveInterval", "STRIDE_SAVE_INTERVAL")
	viper.BindEnv("sampler.mode", "STRIDE_SAMPLER_MODE")
	viper.BindEnv("cache.enabled", "STRIDE_CACHE_ENABLED")
	viper.BindEnv("cache.size", "STRIDE_CACHE_SIZE")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "StrideRunDaemon"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
