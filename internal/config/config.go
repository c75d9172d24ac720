package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Tokenizer TokenizerConfig `mapstructure:"tokenizer"`
	Store     StoreConfig     `mapstructure:"store"`
	Server    ServerConfig    `mapstructure:"server"`
	LogLevel  string          `mapstructure:"log_level"`
}

type TokenizerConfig struct {
	Lowercase     bool   `mapstructure:"lowercase"`
	LearnOnEncode bool   `mapstructure:"learn_on_encode"`
	PadToken      string `mapstructure:"pad_token"`
	UnkToken      string `mapstructure:"unk_token"`
	BosToken      string `mapstructure:"bos_token"`
	EosToken      string `mapstructure:"eos_token"`
}

type StoreConfig struct {
	Backend       string `mapstructure:"backend"`
	Path          string `mapstructure:"path"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisKey      string `mapstructure:"redis_key"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	MaxTextBytes    int    `mapstructure:"max_text_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Tokenizer: TokenizerConfig{
			Lowercase:     true,
			LearnOnEncode: true,
			PadToken:      "[PAD]",
			UnkToken:      "[UNK]",
			BosToken:      "[BOS]",
			EosToken:      "[EOS]",
		},
		Store: StoreConfig{
			Backend:   StoreFile,
			Path:      "vocab.json",
			RedisAddr: "localhost:6379",
			RedisDB:   0,
			RedisKey:  "dyntok:vocab",
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			MaxTextBytes:    1 << 20,
			RequestTimeout:  30,
			ShutdownTimeout: 10,
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.Bool("tokenizer-lowercase", defaults.Tokenizer.Lowercase, "Lowercase input text before tokenizing")
	fs.Bool("tokenizer-learn-on-encode", defaults.Tokenizer.LearnOnEncode, "Add unseen tokens to the vocabulary while encoding")
	fs.String("tokenizer-pad-token", defaults.Tokenizer.PadToken, "Surface string of the PAD token")
	fs.String("tokenizer-unk-token", defaults.Tokenizer.UnkToken, "Surface string of the UNK token")
	fs.String("tokenizer-bos-token", defaults.Tokenizer.BosToken, "Surface string of the BOS token")
	fs.String("tokenizer-eos-token", defaults.Tokenizer.EosToken, "Surface string of the EOS token")
	fs.String("store-backend", defaults.Store.Backend, "Vocabulary store (file|redis|memory)")
	fs.String("store-path", defaults.Store.Path, "Vocabulary file for the file store")
	fs.String("store-redis-addr", defaults.Store.RedisAddr, "Redis address for the redis store")
	fs.String("store-redis-password", defaults.Store.RedisPassword, "Redis password for the redis store")
	fs.Int("store-redis-db", defaults.Store.RedisDB, "Redis database number for the redis store")
	fs.String("store-redis-key", defaults.Store.RedisKey, "Redis key holding the vocabulary snapshot")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("server-max-text-bytes", defaults.Server.MaxTextBytes, "Maximum request text size in bytes")
	fs.Int("server-request-timeout", defaults.Server.RequestTimeout, "Per-request timeout in seconds")
	fs.Int("server-shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout in seconds")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("DYNTOK")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("store.redis_addr", "DYNTOK_STORE_REDIS_ADDR", "REDIS_ADDR"); err != nil {
		return Config{}, fmt.Errorf("bind redis env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("dyntok")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	backend, err := NormalizeStoreBackend(cfg.Store.Backend)
	if err != nil {
		return Config{}, err
	}
	cfg.Store.Backend = backend

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("tokenizer.lowercase", c.Tokenizer.Lowercase)
	v.SetDefault("tokenizer.learn_on_encode", c.Tokenizer.LearnOnEncode)
	v.SetDefault("tokenizer.pad_token", c.Tokenizer.PadToken)
	v.SetDefault("tokenizer.unk_token", c.Tokenizer.UnkToken)
	v.SetDefault("tokenizer.bos_token", c.Tokenizer.BosToken)
	v.SetDefault("tokenizer.eos_token", c.Tokenizer.EosToken)
	v.SetDefault("store.backend", c.Store.Backend)
	v.SetDefault("store.path", c.Store.Path)
	v.SetDefault("store.redis_addr", c.Store.RedisAddr)
	v.SetDefault("store.redis_password", c.Store.RedisPassword)
	v.SetDefault("store.redis_db", c.Store.RedisDB)
	v.SetDefault("store.redis_key", c.Store.RedisKey)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("log_level", c.LogLevel)
}

// flagKeys maps each flag registered by RegisterFlags to its config key.
var flagKeys = map[string]string{
	"tokenizer-lowercase":       "tokenizer.lowercase",
	"tokenizer-learn-on-encode": "tokenizer.learn_on_encode",
	"tokenizer-pad-token":       "tokenizer.pad_token",
	"tokenizer-unk-token":       "tokenizer.unk_token",
	"tokenizer-bos-token":       "tokenizer.bos_token",
	"tokenizer-eos-token":       "tokenizer.eos_token",
	"store-backend":             "store.backend",
	"store-path":                "store.path",
	"store-redis-addr":          "store.redis_addr",
	"store-redis-password":      "store.redis_password",
	"store-redis-db":            "store.redis_db",
	"store-redis-key":           "store.redis_key",
	"server-listen-addr":        "server.listen_addr",
	"server-max-text-bytes":     "server.max_text_bytes",
	"server-request-timeout":    "server.request_timeout",
	"server-shutdown-timeout":   "server.shutdown_timeout",
	"log-level":                 "log_level",
}

// bindFlags binds every known flag present in fs under its nested config key,
// so a flag only wins over env and config file values when it was set.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}
