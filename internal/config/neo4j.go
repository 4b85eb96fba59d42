package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	neo4jconfig "github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
	neo4jlog "github.com/neo4j/neo4j-go-driver/v5/neo4j/log"

	"neo4j-graphql/internal/tlscert"
)

// Supported values for neo4j.auth_scheme.
const (
	AuthSchemeBasic  = "basic"
	AuthSchemeBearer = "bearer"
	AuthSchemeNone   = "none"
)

// driverLogLevels maps neo4j.driver_log_level to the slog level forwarded.
// "off" maps to a level above every driver message.
var driverLogLevels = map[string]slog.Level{
	"off":   slog.LevelError + 4,
	"error": slog.LevelError,
	"warn":  slog.LevelWarn,
	"info":  slog.LevelInfo,
	"debug": slog.LevelDebug,
}

// AuthToken returns the driver credentials for the configured scheme.
func (n *Neo4jConfig) AuthToken() (neo4j.AuthToken, error) {
	switch n.AuthScheme {
	case AuthSchemeBasic, "":
		return neo4j.BasicAuth(n.Username, n.Password, ""), nil
	case AuthSchemeBearer:
		return neo4j.BearerAuth(n.BearerToken), nil
	case AuthSchemeNone:
		return neo4j.NoAuth(), nil
	default:
		return neo4j.AuthToken{}, fmt.Errorf("unsupported neo4j auth scheme %q", n.AuthScheme)
	}
}

// DriverLogSlogLevel returns the minimum level of driver messages to forward.
func (n *Neo4jConfig) DriverLogSlogLevel() slog.Level {
	if level, ok := driverLogLevels[strings.ToLower(n.DriverLogLevel)]; ok {
		return level
	}
	return slog.LevelWarn
}

// DriverConfigurer returns a function applying pool, retry and TLS trust
// settings to the driver config. A nil logger leaves the driver's logging
// untouched.
func (n *Neo4jConfig) DriverConfigurer(logger neo4jlog.Logger) (func(*neo4jconfig.Config), error) {
	roots, err := tlscert.RootPool(n.CAFile)
	if err != nil {
		return nil, fmt.Errorf("neo4j trust: %w", err)
	}

	return func(c *neo4jconfig.Config) {
		if n.Pool.MaxSize > 0 {
			c.MaxConnectionPoolSize = n.Pool.MaxSize
		}
		if n.Pool.MaxLifetime > 0 {
			c.MaxConnectionLifetime = n.Pool.MaxLifetime
		}
		if n.Pool.AcquisitionTimeout > 0 {
			c.ConnectionAcquisitionTimeout = n.Pool.AcquisitionTimeout
		}
		if n.MaxTransactionRetryTime > 0 {
			c.MaxTransactionRetryTime = n.MaxTransactionRetryTime
		}
		if roots != nil {
			c.RootCAs = roots
		}
		if logger != nil {
			c.Log = logger
		}
		c.UserAgent = "neo4j-graphql"
	}, nil
}

// RedactedURI returns the URI with any embedded credentials removed, for logs.
func (n *Neo4jConfig) RedactedURI() string {
	scheme, rest, ok := strings.Cut(n.URI, "://")
	if !ok {
		return n.URI
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = rest[at+1:]
	}
	return scheme + "://" + rest
}
