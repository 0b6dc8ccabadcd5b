package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/randalmurphal/eventipc/pkg/eventipc/codec"
	"github.com/randalmurphal/eventipc/pkg/eventipc/crypto"
)

// Settings is the typed view of an eventipc configuration file.
type Settings struct {
	URL            string        // endpoint.url
	Port           int           // endpoint.port
	MaxRetries     int           // connect.max_retries
	RetryDelay     time.Duration // connect.retry_delay
	RequestTimeout time.Duration // request_timeout, zero waits forever
	Cipher         string        // encryption.cipher
	Key            string        // encryption.key, hex
	Serializer     string        // serializer
	JournalPath    string        // journal.path, empty keeps incidents in memory
	LogLevel       string        // logging.level
	LogFormat      string        // logging.format
	Metrics        bool          // metrics
	Tracing        bool          // tracing
}

// Defaults returns the settings used for every missing key.
func Defaults() Settings {
	return Settings{
		URL:        "tcp://localhost",
		Port:       57239,
		MaxRetries: 5,
		RetryDelay: time.Second,
		Cipher:     crypto.CipherNone,
		Serializer: codec.SerializerJSON,
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// SettingsFrom extracts Settings from c, falling back to Defaults.
func SettingsFrom(c Config) Settings {
	d := Defaults()
	return Settings{
		URL:            c.String("endpoint.url", d.URL),
		Port:           c.Int("endpoint.port", d.Port),
		MaxRetries:     c.Int("connect.max_retries", d.MaxRetries),
		RetryDelay:     c.Duration("connect.retry_delay", d.RetryDelay),
		RequestTimeout: c.Duration("request_timeout", d.RequestTimeout),
		Cipher:         c.String("encryption.cipher", d.Cipher),
		Key:            c.String("encryption.key", d.Key),
		Serializer:     c.String("serializer", d.Serializer),
		JournalPath:    c.String("journal.path", d.JournalPath),
		LogLevel:       c.String("logging.level", d.LogLevel),
		LogFormat:      c.String("logging.format", d.LogFormat),
		Metrics:        c.Bool("metrics", d.Metrics),
		Tracing:        c.Bool("tracing", d.Tracing),
	}
}

// LoadSettings reads, parses and validates a configuration file.
// An empty path yields validated defaults.
func LoadSettings(path string) (Settings, error) {
	if path == "" {
		s := Defaults()
		return s, s.Validate()
	}

	c, err := FromFile(path)
	if err != nil {
		return Settings{}, err
	}

	s := SettingsFrom(c)
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("validating config: %w", err)
	}
	return s, nil
}

// Validate reports every invalid field.
func (s Settings) Validate() error {
	var errs []error

	if s.URL == "" {
		errs = append(errs, errors.New("endpoint.url is required"))
	}
	// The request handle binds port+1.
	if s.Port < 1 || s.Port > 65534 {
		errs = append(errs, fmt.Errorf("endpoint.port %d out of range 1-65534", s.Port))
	}
	if s.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("connect.max_retries must be at least 1, got %d", s.MaxRetries))
	}
	if s.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("connect.retry_delay must not be negative, got %s", s.RetryDelay))
	}
	if s.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("request_timeout must not be negative, got %s", s.RequestTimeout))
	}

	switch strings.ToLower(s.Cipher) {
	case "", crypto.CipherNone:
	case crypto.CipherAESGCM, crypto.CipherXChaCha20Poly1305:
		if s.Key == "" {
			errs = append(errs, fmt.Errorf("encryption.key is required for cipher %s", s.Cipher))
		}
	default:
		errs = append(errs, fmt.Errorf("encryption.cipher %q is not one of none, %s, %s",
			s.Cipher, crypto.CipherAESGCM, crypto.CipherXChaCha20Poly1305))
	}

	if _, err := codec.SerializerByName(s.Serializer); err != nil {
		errs = append(errs, fmt.Errorf("serializer: %w", err))
	}

	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", s.LogLevel))
	}
	switch strings.ToLower(s.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not one of text, json", s.LogFormat))
	}

	return errors.Join(errs...)
}
