// Package config loads flowtree settings from defaults, an optional .env
// file, an optional YAML file and FLOWTREE_* environment variables, in
// increasing order of precedence.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

//go:embed schema.cue
var schemaSource string

// EnvPrefix prefixes every environment override, e.g. FLOWTREE_HTTP_PORT.
const EnvPrefix = "FLOWTREE"

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendPebble = "pebble"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// Lock modes.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Config is the resolved process configuration.
type Config struct {
	Backend         string        `mapstructure:"backend" json:"backend"`
	Database        string        `mapstructure:"database" json:"database"`
	HTTP            HTTPConfig    `mapstructure:"http" json:"http"`
	Log             LogConfig     `mapstructure:"log" json:"log"`
	Lock            LockConfig    `mapstructure:"lock" json:"lock"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`
	Archive         ArchiveConfig `mapstructure:"archive" json:"archive"`
}

type HTTPConfig struct {
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`
}

// Addr returns host:port for net.Listen.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}

type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// LockConfig selects the lock implementation. The Redis fields are only
// read in redis mode.
type LockConfig struct {
	Mode      string        `mapstructure:"mode" json:"mode"`
	RedisAddr string        `mapstructure:"redis_addr" json:"redis_addr"`
	RedisDB   int           `mapstructure:"redis_db" json:"redis_db"`
	TTL       time.Duration `mapstructure:"ttl" json:"ttl"`
	Wait      time.Duration `mapstructure:"wait" json:"wait"`
	Prefix    string        `mapstructure:"prefix" json:"prefix"`
}

type ArchiveConfig struct {
	// Bucket is a gocloud blob URL (file:///var/backups, mem://).
	Bucket string `mapstructure:"bucket" json:"bucket"`
}

var defaults = map[string]any{
	"backend":          BackendSQLite,
	"database":         "flowtree.db",
	"http.host":        "127.0.0.1",
	"http.port":        8080,
	"log.level":        "info",
	"log.format":       "text",
	"lock.mode":        LockLocal,
	"lock.redis_addr":  "",
	"lock.redis_db":    0,
	"lock.ttl":         30 * time.Second,
	"lock.wait":        10 * time.Second,
	"lock.prefix":      "flowtree:lock:",
	"shutdown_timeout": 10 * time.Second,
	"archive.bucket":   "",
}

// Default returns the built-in configuration.
func Default() Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("config: defaults do not decode: %v", err))
	}
	return cfg
}

// Options tunes Load. The zero value loads ./.env if present.
type Options struct {
	// EnvFile is the dotenv file to load. Empty means ".env".
	EnvFile string

	// SkipEnvFile disables dotenv loading.
	SkipEnvFile bool
}

// Load resolves the configuration. path names an optional YAML file; an
// empty path skips it, a missing named file is an error. Variables from
// the dotenv file never override ones already set in the environment.
func Load(path string, opts Options) (Config, error) {
	if !opts.SkipEnvFile {
		envFile := opts.EnvFile
		if envFile == "" {
			envFile = ".env"
		}
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := newViper()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Backend = strings.ToLower(cfg.Backend)
	cfg.Lock.Mode = strings.ToLower(cfg.Lock.Mode)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	return cfg, nil
}

// Validate checks cfg against the embedded CUE schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := ctx.Encode(c)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Problems: problems(err)}
	}
	return nil
}

// ValidationError lists every schema constraint the configuration breaks.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

func problems(err error) []string {
	var out []string
	for _, e := range cueerrors.Errors(err) {
		path := strings.Join(e.Path(), ".")
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if path != "" {
			msg = path + ": " + msg
		}
		out = append(out, msg)
	}
	return out
}
