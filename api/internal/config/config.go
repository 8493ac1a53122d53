package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"image-check/api/internal/imagecheck"
	"image-check/api/internal/sign"
)

type Config struct {
	SecretID        string        `mapstructure:"secret_id"`
	SecretKey       string        `mapstructure:"secret_key"`
	BusinessID      string        `mapstructure:"business_id"`
	SignatureMethod string        `mapstructure:"signature_method"`
	Endpoint        string        `mapstructure:"endpoint"`
	Timeout         time.Duration `mapstructure:"timeout"`

	Port string `mapstructure:"port"`

	// optional: report flagged images to a Telegram chat
	TelegramToken  string `mapstructure:"telegram_token"`
	TelegramChatID int64  `mapstructure:"telegram_chat_id"`
}

func (c *Config) Credentials() imagecheck.Credentials {
	return imagecheck.Credentials{SecretID: c.SecretID, SecretKey: c.SecretKey, BusinessID: c.BusinessID}
}

func (c *Config) Method() (sign.Method, error) {
	return sign.ParseMethod(c.SignatureMethod)
}

// ClientOptions maps the config onto imagecheck options.
func (c *Config) ClientOptions() ([]imagecheck.Option, error) {
	m, err := c.Method()
	if err != nil {
		return nil, err
	}
	opts := []imagecheck.Option{imagecheck.WithSignatureMethod(m)}
	if c.Endpoint != "" {
		opts = append(opts, imagecheck.WithEndpoint(c.Endpoint))
	}
	if c.Timeout > 0 {
		opts = append(opts, imagecheck.WithTimeout(c.Timeout))
	}
	return opts, nil
}

const EnvPrefix = "DUN"

var defaults = map[string]any{
	"secret_id":        "",
	"secret_key":       "",
	"business_id":      "",
	"signature_method": string(sign.MD5),
	"endpoint":         imagecheck.APIURL,
	"timeout":          imagecheck.DefaultTimeout,
	"port":             "8000",
	"telegram_token":   "",
	"telegram_chat_id": int64(0),
}

// Load reads .env (when present), then an optional YAML file, then DUN_* env vars.
// An empty file path skips the YAML step.
func Load(file string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
		cfg.Port = p
	}
	return &cfg, nil
}

// Validate checks what every command needs: credentials and a known signature method.
func (c *Config) Validate() error {
	if err := c.Credentials().Validate(); err != nil {
		return err
	}
	if _, err := c.Method(); err != nil {
		return err
	}
	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		return errors.New("telegram_chat_id is required when telegram_token is set")
	}
	return nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
