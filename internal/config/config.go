// Package config provides functionality for managing configuration options
// for the client and the server using command-line flags, a JSON config file
// and environment variables.
//
// Sources are applied in order: flags first, then the config file, then the
// environment, each overriding what came before.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Duration is a time.Duration written as "10s" in the config file and the
// environment.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// Set implements flag.Value.
func (d *Duration) Set(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// UnmarshalText lets env parse durations.
func (d *Duration) UnmarshalText(b []byte) error {
	return d.Set(string(b))
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return d.Set(s)
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid duration %s", b)
	}
	*d = Duration(n)
	return nil
}

// ClientOptions holds the configuration values for the client shell.
type ClientOptions struct {
	// BaseURL is the catalog API root.
	BaseURL string `json:"base_url" env:"GOPHSHOP_BASE_URL"`

	// CAFile is an extra CA certificate to trust, for a self-signed server.
	CAFile string `json:"ca_file" env:"GOPHSHOP_CA_FILE"`

	// DataDir holds the encrypted store.
	DataDir string `json:"data_dir" env:"GOPHSHOP_DATA_DIR"`

	// Passphrase unlocks the encrypted store. It is never read from the file.
	Passphrase string `json:"-" env:"GOPHSHOP_PASSPHRASE"`

	// BackupDir holds the secure items used when the encrypted store is unavailable.
	BackupDir string `json:"backup_dir" env:"GOPHSHOP_BACKUP_DIR"`

	AutoLockTimeout Duration `json:"auto_lock_timeout" env:"GOPHSHOP_AUTO_LOCK_TIMEOUT"`
	StaleTime       Duration `json:"stale_time" env:"GOPHSHOP_STALE_TIME"`
	RequestTimeout  Duration `json:"request_timeout" env:"GOPHSHOP_REQUEST_TIMEOUT"`

	// Biometrics tells whether the terminal biometric stand-in is enrolled.
	Biometrics bool `json:"biometrics" env:"GOPHSHOP_BIOMETRICS"`

	LogLevel string `json:"log_level" env:"LOG_LEVEL"`

	// Config is the path to the config file.
	Config string `json:"-" env:"CONFIG"`
}

// ServerOptions holds the configuration values for the catalog server.
type ServerOptions struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"port" env:"SERVER_ADDRESS"`

	// DatabaseDSN holds the database connection string.
	DatabaseDSN string `json:"database_dsn" env:"DATABASE_DSN"`

	// JWTSecret signs bearer tokens.
	JWTSecret string `json:"-" env:"JWT_SECRET"`
	TokenTTL  Duration `json:"token_ttl" env:"TOKEN_TTL"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `json:"tls_cert" env:"TLS_CERT"`
	TLSKey  string `json:"tls_key" env:"TLS_KEY"`

	// LoginRateLimit is the number of login attempts allowed per IP per minute.
	LoginRateLimit int `json:"login_rate_limit" env:"LOGIN_RATE_LIMIT"`

	// Retention is how long soft-deleted products are kept; PurgeInterval is
	// how often they are purged.
	Retention     Duration `json:"retention" env:"RETENTION"`
	PurgeInterval Duration `json:"purge_interval" env:"PURGE_INTERVAL"`

	LogLevel string `json:"log_level" env:"LOG_LEVEL"`

	// Config is the path to the config file.
	Config string `json:"-" env:"CONFIG"`
}

// ParseClient parses args (without the program name), the config file and
// the environment.
func ParseClient(args []string) (*ClientOptions, error) {
	opts := &ClientOptions{
		AutoLockTimeout: Duration(10 * time.Second),
		StaleTime:       Duration(5 * time.Minute),
		RequestTimeout:  Duration(10 * time.Second),
	}

	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.BaseURL, "a", "https://dummyjson.com", "catalog API base URL")
	fs.StringVar(&opts.CAFile, "ca", "", "extra CA certificate to trust")
	fs.StringVar(&opts.DataDir, "data", ".gophshop", "directory of the encrypted store")
	fs.StringVar(&opts.BackupDir, "backup", ".gophshop/secure", "directory of the secure item store")
	fs.Var(&opts.AutoLockTimeout, "lock", "auto-lock timeout")
	fs.Var(&opts.StaleTime, "stale", "product list stale time")
	fs.Var(&opts.RequestTimeout, "timeout", "HTTP request timeout")
	fs.BoolVar(&opts.Biometrics, "biometrics", true, "biometric stand-in is enrolled")
	fs.StringVar(&opts.LogLevel, "log", "warn", "log level")
	fs.StringVar(&opts.Config, "config", "", "path to config file")
	fs.StringVar(&opts.Config, "c", "", "path to config file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := load(opts, &opts.Config); err != nil {
		return nil, err
	}
	return opts, nil
}

// ParseServer parses args (without the program name), the config file and
// the environment.
func ParseServer(args []string) (*ServerOptions, error) {
	opts := &ServerOptions{
		TokenTTL:      Duration(24 * time.Hour),
		Retention:     Duration(30 * 24 * time.Hour),
		PurgeInterval: Duration(time.Hour),
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.Port, "a", "localhost:8080", "run on ip:port server")
	fs.StringVar(&opts.DatabaseDSN, "d", "", "db address")
	fs.StringVar(&opts.JWTSecret, "k", "", "JWT signing secret")
	fs.Var(&opts.TokenTTL, "ttl", "token lifetime")
	fs.StringVar(&opts.TLSCert, "cert", "", "TLS certificate file")
	fs.StringVar(&opts.TLSKey, "key", "", "TLS key file")
	fs.IntVar(&opts.LoginRateLimit, "rate", 10, "login attempts per minute per IP")
	fs.Var(&opts.Retention, "retention", "how long soft-deleted products are kept")
	fs.Var(&opts.PurgeInterval, "purge", "purge interval")
	fs.StringVar(&opts.LogLevel, "log", "info", "log level")
	fs.StringVar(&opts.Config, "config", "config.json", "path to config file")
	fs.StringVar(&opts.Config, "c", "config.json", "path to config file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := load(opts, &opts.Config); err != nil {
		return nil, err
	}
	if opts.JWTSecret == "" {
		return nil, errors.New("JWT secret is required (-k or JWT_SECRET)")
	}
	return opts, nil
}

// load applies the config file named by *path, then the environment, to opts.
// A missing file is not an error.
func load(opts any, path *string) error {
	if p := os.Getenv("CONFIG"); p != "" {
		*path = p
	}
	if *path != "" {
		if _, err := os.Stat(*path); err == nil {
			data, err := os.ReadFile(*path)
			if err != nil {
				return fmt.Errorf("error while reading config file: %w", err)
			}
			if err := json.Unmarshal(data, opts); err != nil {
				return fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}
	if err := env.Parse(opts); err != nil {
		return fmt.Errorf("config: failed to parse environment variables: %w", err)
	}
	return nil
}
