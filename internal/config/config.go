package config

import (
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const EnvPrefix = "NUTRIBOT"

const (
	BackendHTTP   = "http"
	BackendOpenAI = "openai"
	BackendMock   = "mock"
)

type Config struct {
	Backend        string
	WelcomeMessage string
	MetricsAddr    string

	Advice   AdviceConfig
	OpenAI   OpenAIConfig
	Telegram TelegramConfig
	Log      LogConfig
}

type AdviceConfig struct {
	URL     string
	Timeout time.Duration
	// MockDelay slows the mock backend down so the typing indicator shows.
	MockDelay time.Duration
}

type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	MaxTokens    int
	ContextLimit int
}

type TelegramConfig struct {
	Token          string
	AdminUserIDs   []int64
	AllowedUserIDs []int64
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

// SetDefaults registers every key with its default and the legacy
// environment variable names next to the prefixed ones.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendHTTP)
	// empty welcome message and system prompt fall back to the built-in texts
	v.SetDefault("welcome_message", "")
	v.SetDefault("metrics.addr", "")

	v.SetDefault("advice.url", "http://localhost:8000/diet")
	v.SetDefault("advice.timeout", 60*time.Second)
	v.SetDefault("advice.mock_delay", 800*time.Millisecond)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gemma2-9b-it")
	v.SetDefault("openai.system_prompt", "")
	v.SetDefault("openai.max_tokens", 1024)
	v.SetDefault("openai.context_limit", 20)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_user_ids", "")
	v.SetDefault("telegram.allowed_user_ids", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
	v.SetDefault("log.file", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("openai.api_key", EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY", "GROQ_API_KEY")
	_ = v.BindEnv("telegram.token", EnvPrefix+"_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("telegram.admin_user_ids", EnvPrefix+"_TELEGRAM_ADMIN_USER_IDS", "ADMIN_USER_IDS")
	_ = v.BindEnv("telegram.allowed_user_ids", EnvPrefix+"_TELEGRAM_ALLOWED_USER_IDS", "ALLOWED_TELEGRAM_USER_IDS")
}

// Load reads envPath into the environment (existing variables win), then
// the optional YAML configFile, and resolves the configuration from v.
func Load(v *viper.Viper, envPath, configFile string) (Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", envPath).Msg("could not read .env")
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config file %s", configFile)
		}
	}

	cfg := Config{
		Backend:        strings.ToLower(strings.TrimSpace(v.GetString("backend"))),
		WelcomeMessage: v.GetString("welcome_message"),
		MetricsAddr:    v.GetString("metrics.addr"),
		Advice: AdviceConfig{
			URL:       v.GetString("advice.url"),
			Timeout:   v.GetDuration("advice.timeout"),
			MockDelay: v.GetDuration("advice.mock_delay"),
		},
		OpenAI: OpenAIConfig{
			APIKey:       v.GetString("openai.api_key"),
			BaseURL:      v.GetString("openai.base_url"),
			Model:        v.GetString("openai.model"),
			SystemPrompt: v.GetString("openai.system_prompt"),
			MaxTokens:    v.GetInt("openai.max_tokens"),
			ContextLimit: v.GetInt("openai.context_limit"),
		},
		Telegram: TelegramConfig{
			Token:          v.GetString("telegram.token"),
			AdminUserIDs:   parseIDs(strings.Join(v.GetStringSlice("telegram.admin_user_ids"), ",")),
			AllowedUserIDs: parseIDs(strings.Join(v.GetStringSlice("telegram.allowed_user_ids"), ",")),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			File:   v.GetString("log.file"),
		},
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendHTTP:
		if strings.TrimSpace(c.Advice.URL) == "" {
			return errors.New("advice.url is required for the http backend")
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return errors.New("openai.api_key is required for the openai backend")
		}
		if c.OpenAI.Model == "" {
			return errors.New("openai.model is required for the openai backend")
		}
	case BackendMock:
	default:
		return errors.Errorf("unknown backend %q (want %s, %s or %s)", c.Backend, BackendHTTP, BackendOpenAI, BackendMock)
	}
	if c.Advice.Timeout < 0 {
		return errors.New("advice.timeout must not be negative")
	}
	return nil
}

func (c Config) ValidateTelegram() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram.token is required")
	}
	return nil
}

func parseIDs(raw string) []int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			log.Warn().Err(err).Str("id", p).Msg("skipping user id")
			continue
		}
		ids = append(ids, v)
	}
	return ids
}
