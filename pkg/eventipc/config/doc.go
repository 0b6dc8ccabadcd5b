/*
Package config loads eventipc settings from YAML, JSON or TOML files.

# Overview

Config wraps a map[string]any and provides typed accessor methods that
handle missing keys and type mismatches by returning default values.
Dotted keys address nested sections:

	cfg, err := config.FromFile("eventipc.yaml")
	port := cfg.Int("endpoint.port", 57239)
	delay := cfg.Duration("connect.retry_delay", time.Second)

# Settings

Settings is the typed view agents and the CLI consume:

	endpoint:
	  url: tcp://localhost
	  port: 57239
	connect:
	  max_retries: 5
	  retry_delay: 1s
	request_timeout: 5s
	encryption:
	  cipher: aes-256-gcm
	  key: ${EVENTIPC_KEY}
	serializer: json
	journal:
	  path: ./incidents.db
	logging:
	  level: info
	  format: text
	metrics: false
	tracing: false

${VAR} references are expanded from the environment before parsing, so
keys need not be written to disk. LoadSettings applies Defaults for
missing keys and runs Validate.

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
