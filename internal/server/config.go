package server

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Defaults applied by Config.WithDefaults.
const (
	DefaultHostname     = "localhost"
	DefaultPort         = 4840
	DefaultPollInterval = 100 * time.Millisecond
)

// Config is consumed once by Configure.
type Config struct {
	Hostname       string
	Port           int
	MinimalProfile bool
	PollInterval   time.Duration
}

// WithDefaults fills zero fields with their defaults.
func (c Config) WithDefaults() Config {
	if c.Hostname == "" {
		c.Hostname = DefaultHostname
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// Validate checks the hostname and port.
func (c Config) Validate() error {
	if c.Hostname == "" {
		return errors.New("hostname is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll interval must not be negative, got %s", c.PollInterval)
	}
	return nil
}

// Addr returns the host:port the transport binds.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Hostname, strconv.Itoa(c.Port))
}

// Endpoint returns the advertised endpoint URL.
func (c Config) Endpoint() string {
	return fmt.Sprintf("opc.tcp://%s/", c.Addr())
}
