package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Ollama    OllamaConfig
	News      NewsConfig
	Gazetteer GazetteerConfig
	Rights    RightsConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CacheConfig struct {
	TTLMinutes int
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// OllamaConfig describes the local model server and how to bring it up.
type OllamaConfig struct {
	Host             string
	Port             int
	Model            string
	GeneratePath     string
	TimeoutSec       int
	StartCommand     []string
	ReadyAttempts    int
	ReadyBackoffMs   int
	ProbeTimeoutMs   int
	ProbeIntervalSec int
}

func (o OllamaConfig) Address() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}

func (o OllamaConfig) GenerateURL() string {
	return fmt.Sprintf("http://%s%s", o.Address(), o.GeneratePath)
}

type NewsConfig struct {
	BatchDir string
}

type GazetteerConfig struct {
	Path string
}

type RightsConfig struct {
	Seed []string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path, or from the default search paths
// when path is empty.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/rights-monitor")
	}

	v.SetEnvPrefix("RIGHTS_MONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 600)
	v.SetDefault("server.bodyLimit", 52428800)

	v.SetDefault("sqlite.path", "./data/rights.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.ttlMinutes", 1440)

	v.SetDefault("ollama.host", "127.0.0.1")
	v.SetDefault("ollama.port", 11434)
	v.SetDefault("ollama.model", "gemma2:9b")
	v.SetDefault("ollama.generatePath", "/api/generate")
	v.SetDefault("ollama.timeoutSec", 300)
	v.SetDefault("ollama.startCommand", []string{"ollama", "serve"})
	v.SetDefault("ollama.readyAttempts", 10)
	v.SetDefault("ollama.readyBackoffMs", 1000)
	v.SetDefault("ollama.probeTimeoutMs", 1000)
	v.SetDefault("ollama.probeIntervalSec", 30)

	v.SetDefault("news.batchDir", "./data/news")

	v.SetDefault("gazetteer.path", "")

	v.SetDefault("rights.seed", []string{
		"derecho a la vida",
		"derecho a la salud",
		"derecho a la educación",
		"derecho a la libertad de expresión",
		"derecho a la integridad personal",
		"derecho a la vivienda",
		"derecho al trabajo",
		"derecho a un medio ambiente sano",
		"derecho de acceso a la justicia",
		"derechos de la niñez y adolescencia",
	})

	v.SetDefault("rateLimit.requestsPerMinute", 60)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
