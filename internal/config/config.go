package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      App      `mapstructure:"app"`
	Telegram Telegram `mapstructure:"telegram"`
	LLM      LLM      `mapstructure:"llm"`
	Cache    Cache    `mapstructure:"cache"`
	Feeds    Feeds    `mapstructure:"feeds"`
	Pipeline Pipeline `mapstructure:"pipeline"`
	Taxonomy Taxonomy `mapstructure:"taxonomy"`
	Render   Render   `mapstructure:"render"`
	Logging  Logging  `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	Debug      bool   `mapstructure:"debug"`
	DataDir    string `mapstructure:"data_dir"`
	ConfigFile string `mapstructure:"config_file"`
}

// Telegram holds bot configuration
type Telegram struct {
	BotToken      string `mapstructure:"bot_token"`
	PollTimeout   int    `mapstructure:"poll_timeout"`
	MessageLimit  int    `mapstructure:"message_limit"`
	DefaultStyle  string `mapstructure:"default_style"`
	SearchResults int    `mapstructure:"search_results"`
}

// LLM holds the chat-completion endpoint configuration
type LLM struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RateLimit   time.Duration `mapstructure:"rate_limit"` // Minimum interval between calls (token bucket refill)
	MaxRetries  int           `mapstructure:"max_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

// Cache holds cache configuration
type Cache struct {
	Directory string `mapstructure:"directory"`
}

// Feeds holds RSS source configuration
type Feeds struct {
	Sources      []string      `mapstructure:"sources"`
	MaxPerFeed   int           `mapstructure:"max_per_feed"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	MinTextChars int           `mapstructure:"min_text_chars"`
	UserAgent    string        `mapstructure:"user_agent"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// Pipeline holds agent behavior configuration
type Pipeline struct {
	MaxArticles  int      `mapstructure:"max_articles"`
	ParseRetries int      `mapstructure:"parse_retries"`
	SpamMarkers  []string `mapstructure:"spam_markers"`
	NSFWMarkers  []string `mapstructure:"nsfw_markers"`
}

// Taxonomy holds taxonomy store configuration
type Taxonomy struct {
	Path             string `mapstructure:"path"`
	ProposeThreshold int    `mapstructure:"propose_threshold"`
}

// Render holds render agent configuration
type Render struct {
	Tone          string `mapstructure:"tone"`
	Format        string `mapstructure:"format"`
	SummaryMarkup string `mapstructure:"summary_markup"` // plain, inline or linebreaks
	UserAgent     string `mapstructure:"user_agent"`     // Device heuristic input, empty means desktop
}

// Logging holds logging configuration
type Logging struct {
	Level string `mapstructure:"level"`
}

var globalConfig *Config

// Load reads configuration from file, environment, and defaults.
// Priority: env vars > config file > defaults.
func Load(configFile string) (*Config, error) {
	// Load .env first so the bindings below can see its values
	_ = godotenv.Load()

	viper.Reset()
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".newshive")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	bindEnvironmentVariables()
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// SetConfigFile bypasses ConfigFileNotFoundError, check for a plain missing file
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	config.App.ConfigFile = viper.ConfigFileUsed()

	if err := postProcessConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", ".newshive")

	viper.SetDefault("telegram.poll_timeout", 30)
	viper.SetDefault("telegram.message_limit", 4096)
	viper.SetDefault("telegram.default_style", "brief")
	viper.SetDefault("telegram.search_results", 3)

	viper.SetDefault("llm.base_url", "https://openrouter.ai/api/v1/chat/completions")
	viper.SetDefault("llm.model", "deepseek/deepseek-chat")
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.max_tokens", 1024)
	viper.SetDefault("llm.timeout", "45s")
	viper.SetDefault("llm.rate_limit", "2s")
	viper.SetDefault("llm.max_retries", 3)
	viper.SetDefault("llm.retry_delay", "1s")

	viper.SetDefault("cache.directory", ".newshive")

	viper.SetDefault("feeds.max_per_feed", 3)
	viper.SetDefault("feeds.max_age", "24h")
	viper.SetDefault("feeds.min_text_chars", 10)
	viper.SetDefault("feeds.user_agent", "NewsHive/1.0")
	viper.SetDefault("feeds.timeout", "30s")

	viper.SetDefault("pipeline.max_articles", 5)
	viper.SetDefault("pipeline.parse_retries", 3)
	viper.SetDefault("pipeline.spam_markers", []string{"buy now", "click here", "limited offer", "casino"})
	viper.SetDefault("pipeline.nsfw_markers", []string{"nsfw", "18+", "xxx"})

	viper.SetDefault("taxonomy.path", "data/tags_taxonomy.json")
	viper.SetDefault("taxonomy.propose_threshold", 3)

	viper.SetDefault("render.tone", "neutral")
	viper.SetDefault("render.format", "telegram")
	viper.SetDefault("render.summary_markup", "plain")

	viper.SetDefault("logging.level", "info")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("telegram.bot_token", []string{"TELEGRAM_BOT_TOKEN"})
	bindEnvKeys("llm.api_key", []string{"OPENROUTER_API_KEY", "LLM_API_KEY"})
	bindEnvKeys("llm.model", []string{"OPENROUTER_MODEL"})
	bindEnvKeys("llm.base_url", []string{"OPENROUTER_URL"})
}

// bindEnvKeys binds a config key to multiple possible environment variables
func bindEnvKeys(configKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(configKey, value)
			return
		}
	}
}

// postProcessConfig normalizes derived values after unmarshaling
func postProcessConfig(config *Config) error {
	if config.Cache.Directory == "" {
		config.Cache.Directory = config.App.DataDir
	}
	if !filepath.IsAbs(config.Taxonomy.Path) && config.Taxonomy.Path != "" {
		// Keep relative paths relative to the working directory, as given
		config.Taxonomy.Path = filepath.Clean(config.Taxonomy.Path)
	}
	if config.Telegram.MessageLimit <= 0 {
		config.Telegram.MessageLimit = 4096
	}
	return nil
}

// ValidateForServe checks the settings required to run the bot
func (c *Config) ValidateForServe() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token is required. Set TELEGRAM_BOT_TOKEN or telegram.bot_token in config")
	}
	return c.ValidateForPipeline()
}

// ValidateForPipeline checks the settings required to run the agent pipeline
func (c *Config) ValidateForPipeline() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key is required. Set OPENROUTER_API_KEY or llm.api_key in config")
	}
	if len(c.Feeds.Sources) == 0 {
		return fmt.Errorf("at least one RSS source is required. Set feeds.sources in config")
	}
	return nil
}
