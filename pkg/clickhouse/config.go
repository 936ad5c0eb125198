package clickhouse

import "time"

// ClientOption configures Client.
type ClientOption func(*ClientConfig)

// ClientConfig holds connection and per-query settings. Zero durations leave
// the driver default in place.
type ClientConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	UseHTTP  bool

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// query settings sent with every statement
	MaxExecTime  time.Duration
	AsyncInsert  bool
	WaitForAsync bool
}

// WithEndpoint sets host, port and default database. HTTP selects the
// http interface (usually port 8123) instead of the native protocol.
func WithEndpoint(host string, port int, database string, http bool) ClientOption {
	return func(c *ClientConfig) {
		c.Host = host
		c.Port = port
		c.Database = database
		c.UseHTTP = http
	}
}

// WithCredentials sets username and password.
func WithCredentials(user, password string) ClientOption {
	return func(c *ClientConfig) {
		c.User = user
		c.Password = password
	}
}

// WithPool sizes the database/sql pool.
func WithPool(maxOpen, maxIdle int, lifetime time.Duration) ClientOption {
	return func(c *ClientConfig) {
		if maxOpen > 0 {
			c.MaxOpenConns = maxOpen
		}
		if maxIdle >= 0 {
			c.MaxIdleConns = maxIdle
		}
		if lifetime > 0 {
			c.ConnMaxLifetime = lifetime
		}
	}
}

func WithTimeouts(dial, read, write time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.DialTimeout = dial
		c.ReadTimeout = read
		c.WriteTimeout = write
	}
}

// WithQuerySettings sets max_execution_time and the async insert mode used
// by verdict writes.
func WithQuerySettings(maxExec time.Duration, asyncInsert, waitForAsync bool) ClientOption {
	return func(c *ClientConfig) {
		c.MaxExecTime = maxExec
		c.AsyncInsert = asyncInsert
		c.WaitForAsync = waitForAsync
	}
}
