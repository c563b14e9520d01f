// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

// Package config loads and validates server configuration. Values are
// layered: defaults, then a YAML file, then environment variables, then
// command-line flags, each overriding the previous layer.
package config

import (
	"crypto/rsa"
	"encoding/base64"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the fully validated server configuration. Token keys are
// decoded from base64-encoded PEM at load time.
type Config struct {
	HTTPAddr    string
	MetricsAddr string
	DatabaseURL string
	RedisURL    string
	LogFormat   string

	AccessPrivateKey  *rsa.PrivateKey
	AccessPublicKey   *rsa.PublicKey
	RefreshPrivateKey *rsa.PrivateKey
	RefreshPublicKey  *rsa.PublicKey
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
}

// raw mirrors the flat configuration keys before key decoding.
type raw struct {
	HTTPAddr               string        `koanf:"http_addr"`
	MetricsAddr            string        `koanf:"metrics_addr"`
	DatabaseURL            string        `koanf:"database_url"`
	RedisURL               string        `koanf:"redis_url"`
	LogFormat              string        `koanf:"log_format"`
	AccessTokenPrivateKey  string        `koanf:"access_token_private_key"`
	AccessTokenPublicKey   string        `koanf:"access_token_public_key"`
	RefreshTokenPrivateKey string        `koanf:"refresh_token_private_key"`
	RefreshTokenPublicKey  string        `koanf:"refresh_token_public_key"`
	AccessTokenTTL         time.Duration `koanf:"access_token_ttl"`
	RefreshTokenTTL        time.Duration `koanf:"refresh_token_ttl"`
}

func defaults() raw {
	return raw{
		HTTPAddr:        ":8000",
		MetricsAddr:     ":9090",
		LogFormat:       "text",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}
}

// envKeys lists the environment variables recognized as overrides.
// Names follow the deployment convention: DATABASE_URL, REDIS_URL,
// ACCESS_TOKEN_PRIVATE_KEY, and so on.
var envKeys = map[string]struct{}{
	"HTTP_ADDR":                 {},
	"METRICS_ADDR":              {},
	"DATABASE_URL":              {},
	"REDIS_URL":                 {},
	"LOG_FORMAT":                {},
	"ACCESS_TOKEN_PRIVATE_KEY":  {},
	"ACCESS_TOKEN_PUBLIC_KEY":   {},
	"REFRESH_TOKEN_PRIVATE_KEY": {},
	"REFRESH_TOKEN_PUBLIC_KEY":  {},
	"ACCESS_TOKEN_TTL":          {},
	"REFRESH_TOKEN_TTL":         {},
}

// Load builds the configuration from the optional YAML file at path,
// the environment, and the given flag set (flags may be nil).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		if _, ok := envKeys[s]; !ok {
			return ""
		}
		return strings.ToLower(s)
	}), nil); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	r := defaults()
	if err := k.Unmarshal("", &r); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	return r.build()
}

func (r raw) build() (*Config, error) {
	cfg := &Config{
		HTTPAddr:    r.HTTPAddr,
		MetricsAddr: r.MetricsAddr,
		DatabaseURL: r.DatabaseURL,
		RedisURL:    r.RedisURL,
		LogFormat:   r.LogFormat,
		AccessTTL:   r.AccessTokenTTL,
		RefreshTTL:  r.RefreshTokenTTL,
	}

	if cfg.DatabaseURL == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("database_url is required")
	}
	if cfg.RedisURL == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("redis_url is required")
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("log_format must be text or json, got %q", cfg.LogFormat)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, oops.Code("CONFIG_INVALID").Errorf("token TTLs must be positive")
	}

	var err error
	if cfg.AccessPrivateKey, err = decodePrivateKey(r.AccessTokenPrivateKey); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("key", "access_token_private_key").Wrap(err)
	}
	if cfg.AccessPublicKey, err = decodePublicKey(r.AccessTokenPublicKey); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("key", "access_token_public_key").Wrap(err)
	}
	if cfg.RefreshPrivateKey, err = decodePrivateKey(r.RefreshTokenPrivateKey); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("key", "refresh_token_private_key").Wrap(err)
	}
	if cfg.RefreshPublicKey, err = decodePublicKey(r.RefreshTokenPublicKey); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("key", "refresh_token_public_key").Wrap(err)
	}

	return cfg, nil
}

// decodePrivateKey decodes a base64-encoded PEM RSA private key.
func decodePrivateKey(encoded string) (*rsa.PrivateKey, error) {
	if encoded == "" {
		return nil, oops.Errorf("key is required")
	}
	pemBytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, oops.With("operation", "base64 decode").Wrap(err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, oops.With("operation", "parse PEM").Wrap(err)
	}
	return key, nil
}

// decodePublicKey decodes a base64-encoded PEM RSA public key.
func decodePublicKey(encoded string) (*rsa.PublicKey, error) {
	if encoded == "" {
		return nil, oops.Errorf("key is required")
	}
	pemBytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, oops.With("operation", "base64 decode").Wrap(err)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes)
	if err != nil {
		return nil, oops.With("operation", "parse PEM").Wrap(err)
	}
	return key, nil
}
