package collabclient

import (
	"net/http"
	"time"

	"letscollab-be/internal/pkg/logger"
	"letscollab-be/pkg/reconcile"
)

const (
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultReconnectDelay    = time.Second
	DefaultReconnectMaxDelay = 5 * time.Second
	DefaultReconnectAttempts = 5
)

// Config describes how to reach a letscollab server. BaseURL is the HTTP root
// ("http://localhost:3000"); the socket URL is derived from it.
type Config struct {
	BaseURL     string
	Token       string
	DisplayName string

	HTTPClient        *http.Client
	HandshakeTimeout  time.Duration
	ReconnectDelay    time.Duration
	ReconnectMaxDelay time.Duration
	ReconnectAttempts uint

	Reconcile reconcile.Config
	Logger    logger.ILogger
}

func (c Config) withDefaults() Config {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.ReconnectAttempts == 0 {
		c.ReconnectAttempts = DefaultReconnectAttempts
	}
	if c.Logger == nil {
		c.Logger = logger.NewNopLogger()
	}
	return c
}
