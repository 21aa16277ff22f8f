package structures

import "time"

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

// StoreConfig selects the record store driver. DSN is a file path for
// sqlite and file drivers and a connection URL for postgres.
type StoreConfig struct {
	Driver    string `yaml:"driver" validate:"required|in:sqlite,postgres,file"`
	DSN       string `yaml:"dsn" validate:"required"`
	LoadLimit int    `yaml:"loadLimit"`
}

type Persistence struct {
	SaveInterval time.Duration `yaml:"saveInterval" validate:"required|min:1"`
}

type OutboxConfig struct {
	BufferSize  int           `yaml:"bufferSize"`
	MaxAttempts uint          `yaml:"maxAttempts"`
	BaseDelay   time.Duration `yaml:"baseDelay"`
	MaxDelay    time.Duration `yaml:"maxDelay"`
}

type SamplerConfig struct {
	Mode      string        `yaml:"mode" validate:"in:device,simulated"`
	Interval  time.Duration `yaml:"interval"`
	OriginLat float64       `yaml:"originLat"`
	OriginLon float64       `yaml:"originLon"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName     string
	Debug       bool
	Path        string
	WebServer   Server        `yaml:"webServer"`
	Logger      LoggerConfig  `yaml:"logger"`
	Store       StoreConfig   `yaml:"store"`
	Persistence Persistence   `yaml:"persistence"`
	Outbox      OutboxConfig  `yaml:"outbox"`
	Sampler     SamplerConfig `yaml:"sampler"`
	Cache       CacheConfig   `yaml:"cache"`
	Metrics     MetricsConfig `yaml:"metrics"`
}
