package config

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// EnvPrefix prefixes environment overrides, e.g. NEO4J_GRAPHQL_NEO4J_URI.
const EnvPrefix = "NEO4J_GRAPHQL"

var defineFlagsOnce sync.Once

// Load loads configuration from multiple sources with the following precedence:
// 1. Explicit overrides (v.Set) – secrets read from files or the terminal
// 2. Command line flags
// 3. Environment variables
// 4. Config file
// 5. Default values
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	defineFlags()
	if !pflag.Parsed() {
		pflag.Parse()
	}

	cfgPath, _ := pflag.CommandLine.GetString("config")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("neo4j-graphql")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/neo4j-graphql/")
		v.AddConfigPath("$HOME/.neo4j-graphql")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgPath != "" {
			return nil, fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Canonical keys: dot + snake_case
	// Env vars: NEO4J_GRAPHQL_NEO4J_POOL_MAX_SIZE
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	bindChangedFlagsToViper(v)
	if err := validateSingleStdinFileSource(v); err != nil {
		return nil, err
	}

	if err := resolveSecrets(v); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.UnmarshalExact(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToStringSliceHookFunc(","),
		),
	)
}

// secretFile pairs a secret key with the key naming a file it may be read from.
type secretFile struct {
	key      string
	fileKey  string
	label    string
	nonEmpty bool
}

var secretFiles = []secretFile{
	{key: "neo4j.password", fileKey: "neo4j.password_file", label: "neo4j password"},
	{key: "neo4j.bearer_token", fileKey: "neo4j.bearer_token_file", label: "neo4j bearer token", nonEmpty: true},
	{key: "server.auth.jwt_secret", fileKey: "server.auth.jwt_secret_file", label: "jwt secret", nonEmpty: true},
	{key: "server.admin.auth_token", fileKey: "server.admin.auth_token_file", label: "admin auth token", nonEmpty: true},
}

// resolveSecrets fills secrets from their companion files, then prompts for
// the database password when asked to.
func resolveSecrets(v *viper.Viper) error {
	for _, s := range secretFiles {
		if v.GetString(s.key) != "" {
			continue
		}
		path := v.GetString(s.fileKey)
		if path == "" {
			continue
		}
		value, err := readSecretFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s file: %w", s.label, err)
		}
		if s.nonEmpty && value == "" {
			return fmt.Errorf("%s file %q is empty", s.label, path)
		}
		v.Set(s.key, value)
	}

	if v.GetString("neo4j.password") == "" && v.GetBool("neo4j.password_prompt") {
		pwd, err := promptPassword()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		v.Set("neo4j.password", pwd)
	}
	return nil
}

// bindChangedFlagsToViper copies only explicitly-set flags into Viper,
// preserving precedence: flags > env > file > defaults.
func bindChangedFlagsToViper(v *viper.Viper) {
	pflag.CommandLine.Visit(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "version" {
			return
		}

		switch f.Value.Type() {
		case "string":
			val, _ := pflag.CommandLine.GetString(f.Name)
			v.Set(f.Name, val)
		case "int":
			val, _ := pflag.CommandLine.GetInt(f.Name)
			v.Set(f.Name, val)
		case "bool":
			val, _ := pflag.CommandLine.GetBool(f.Name)
			v.Set(f.Name, val)
		case "float64":
			val, _ := pflag.CommandLine.GetFloat64(f.Name)
			v.Set(f.Name, val)
		case "duration":
			val, _ := pflag.CommandLine.GetDuration(f.Name)
			v.Set(f.Name, val)
		case "stringSlice":
			val, _ := pflag.CommandLine.GetStringSlice(f.Name)
			v.Set(f.Name, val)
		default:
			v.Set(f.Name, f.Value.String())
		}
	})
}

// defineFlags defines all command line flags using canonical snake_case keys.
func defineFlags() {
	defineFlagsOnce.Do(func() {
		// Neo4j connection flags
		pflag.String("neo4j.uri", "", "Neo4j URI (neo4j://, neo4j+s://, bolt://, bolt+s://)")
		pflag.String("neo4j.auth_scheme", "", "Neo4j auth scheme (basic, bearer, none)")
		pflag.String("neo4j.username", "", "Neo4j user")
		pflag.String("neo4j.password", "", "Neo4j password")
		pflag.String("neo4j.password_file", "", "Path to file containing Neo4j password (use @- for stdin)")
		pflag.Bool("neo4j.password_prompt", false, "Prompt for Neo4j password securely")
		pflag.String("neo4j.bearer_token_file", "", "Path to file containing Neo4j bearer token (use @- for stdin)")
		pflag.String("neo4j.database", "", "Target database (empty = server default)")
		pflag.String("neo4j.ca_file", "", "Path to CA bundle trusted for encrypted connections")
		pflag.Int("neo4j.pool.max_size", 0, "Maximum connections in the driver pool")
		pflag.Duration("neo4j.pool.max_lifetime", 0, "Connection max lifetime (e.g. 1h)")
		pflag.Duration("neo4j.pool.acquisition_timeout", 0, "Max wait for a pooled connection")
		pflag.Duration("neo4j.max_transaction_retry_time", 0, "Upper bound on managed transaction retries")
		pflag.Duration("neo4j.connection_timeout", 0, "Max time to wait for Neo4j on startup (0 = fail immediately)")
		pflag.Duration("neo4j.connection_retry_interval", 0, "Initial interval between connection retries")
		pflag.String("neo4j.driver_log_level", "", "Driver log level (off, error, warn, info, debug)")

		// Schema flags
		pflag.String("schema.typedefs_file", "", "Path to GraphQL type definitions")
		pflag.Duration("schema.refresh_min_interval", 0, "Minimum interval between type definition checks")
		pflag.Duration("schema.refresh_max_interval", 0, "Maximum interval between type definition checks")

		// Translation flags
		pflag.Int("translation.max_depth", 0, "Maximum GraphQL query depth")
		pflag.Int("translation.max_complexity", 0, "Maximum GraphQL query complexity")
		pflag.Int("translation.max_rows", 0, "Maximum estimated rows per request")
		pflag.Int("translation.default_list_limit", 0, "Default page size for connection fields")
		pflag.Int("translation.max_mutation_depth", 0, "Maximum nesting of mutation input")
		pflag.Int("translation.max_concurrency", 0, "Maximum root query fields executed in parallel")
		pflag.Bool("translation.subscription_events", false, "Emit change events from mutations")

		// Server flags
		pflag.Int("server.port", 0, "HTTP server port")
		pflag.String("server.graphql_path", "", "HTTP path serving GraphQL")
		pflag.Bool("server.auth.oidc_enabled", false, "Enable OIDC/JWKS authentication middleware")
		pflag.String("server.auth.oidc_issuer_url", "", "OIDC issuer URL (for discovery and JWKS)")
		pflag.String("server.auth.oidc_audience", "", "Expected JWT audience (client ID)")
		pflag.Duration("server.auth.oidc_clock_skew", 0, "Allowed JWT clock skew (e.g. 2m)")
		pflag.String("server.auth.oidc_ca_file", "", "Path to CA bundle trusted for the OIDC issuer")
		pflag.Bool("server.auth.jwt_enabled", false, "Enable shared-secret JWT authentication")
		pflag.String("server.auth.jwt_secret_file", "", "Path to file containing the JWT secret (use @- for stdin)")
		pflag.String("server.auth.jwt_issuer", "", "Expected JWT issuer")
		pflag.String("server.auth.jwt_audience", "", "Expected JWT audience")
		pflag.Duration("server.auth.jwt_clock_skew", 0, "Allowed JWT clock skew (e.g. 2m)")
		pflag.Bool("server.auth.allow_anonymous", false, "Serve requests without a bearer token")
		pflag.Bool("server.auth.impersonation_enabled", false, "Run queries as the database user named in a token claim")
		pflag.String("server.auth.impersonation_claim", "", "JWT claim naming the database user (default: neo4j_user)")
		pflag.StringSlice("server.auth.impersonation_allowed_users", nil, "Database users that may be impersonated (empty = any)")
		pflag.Bool("server.admin.schema_reload_enabled", false, "Enable /admin/reload-schema endpoint")
		pflag.String("server.admin.auth_token", "", "Shared secret required in X-Admin-Token header when admin endpoint is enabled without bearer auth")
		pflag.String("server.admin.auth_token_file", "", "Path to file containing admin auth token (use @- for stdin)")
		pflag.Bool("server.rate_limit_enabled", false, "Enable global rate limiting for all HTTP endpoints")
		pflag.Float64("server.rate_limit_rps", 0, "Global rate limit requests per second")
		pflag.Int("server.rate_limit_burst", 0, "Global rate limit burst size")
		pflag.Bool("server.cors_enabled", false, "Enable CORS (Cross-Origin Resource Sharing)")
		pflag.StringSlice("server.cors_allowed_origins", nil, "Allowed CORS origins (comma-separated or repeated)")
		pflag.StringSlice("server.cors_allowed_methods", nil, "Allowed CORS methods (comma-separated or repeated)")
		pflag.StringSlice("server.cors_allowed_headers", nil, "Allowed CORS headers (comma-separated or repeated)")
		pflag.StringSlice("server.cors_expose_headers", nil, "CORS headers to expose to browser (comma-separated or repeated)")
		pflag.Bool("server.cors_allow_credentials", false, "Allow credentials in CORS requests")
		pflag.Int("server.cors_max_age", 0, "CORS preflight cache duration (seconds)")
		pflag.Duration("server.read_timeout", 0, "HTTP server read timeout")
		pflag.Duration("server.write_timeout", 0, "HTTP server write timeout")
		pflag.Duration("server.idle_timeout", 0, "HTTP server idle timeout")
		pflag.Duration("server.shutdown_timeout", 0, "HTTP server graceful shutdown timeout")
		pflag.Duration("server.health_check_timeout", 0, "Health check timeout")

		// TLS flags
		pflag.String("server.tls_mode", "", "TLS mode: off, auto (self-signed), file (default: off)")
		pflag.String("server.tls_cert_file", "", "Path to TLS certificate file (for file mode)")
		pflag.String("server.tls_key_file", "", "Path to TLS private key file (for file mode)")
		pflag.String("server.tls_auto_cert_dir", "", "Directory for auto-generated certificates (default: .tls)")

		// Observability flags
		pflag.String("observability.service_name", "", "Service name for observability")
		pflag.String("observability.service_version", "", "Service version for observability")
		pflag.String("observability.environment", "", "Environment name (dev, staging, prod)")
		pflag.Bool("observability.metrics_enabled", false, "Enable metrics collection")
		pflag.Bool("observability.tracing_enabled", false, "Enable distributed tracing")
		pflag.Float64("observability.trace_sample_ratio", 0, "Trace sampling ratio from 0.0 to 1.0")

		pflag.String("observability.logging.level", "", "Log level (debug, info, warn, error)")
		pflag.String("observability.logging.format", "", "Log format (json, text)")
		pflag.Bool("observability.logging.exports_enabled", false, "Enable OTLP log export")

		pflag.String("observability.otlp.endpoint", "", "OTLP endpoint for all signals (e.g., localhost:4317)")
		pflag.String("observability.otlp.protocol", "", "OTLP protocol for all signals (grpc, http/protobuf)")
		pflag.Bool("observability.otlp.insecure", false, "Use insecure connection (no TLS)")
		pflag.String("observability.otlp.tls_cert_file", "", "Path to TLS certificate file for server verification")
		pflag.String("observability.otlp.tls_client_cert_file", "", "Path to client certificate file for mTLS")
		pflag.String("observability.otlp.tls_client_key_file", "", "Path to client key file for mTLS")
		pflag.Duration("observability.otlp.timeout", 0, "OTLP export timeout")
		pflag.String("observability.otlp.compression", "", "OTLP compression (none, gzip)")
		pflag.Bool("observability.otlp.retry_enabled", false, "Enable retry on transient errors")
		pflag.Int("observability.otlp.retry_max_attempts", 0, "Maximum retry attempts")

		pflag.String("observability.traces.endpoint", "", "OTLP endpoint for traces only")
		pflag.String("observability.traces.protocol", "", "OTLP protocol for traces (grpc, http/protobuf)")
		pflag.Bool("observability.traces.insecure", false, "Use insecure connection for traces")
		pflag.Duration("observability.traces.timeout", 0, "Timeout for trace exports")

		pflag.String("observability.logs.endpoint", "", "OTLP endpoint for logs only")
		pflag.String("observability.logs.protocol", "", "OTLP protocol for logs (grpc, http/protobuf)")
		pflag.Bool("observability.logs.insecure", false, "Use insecure connection for logs")
		pflag.Duration("observability.logs.timeout", 0, "Timeout for log exports")

		pflag.String("observability.metrics.endpoint", "", "OTLP endpoint for metrics only")
		pflag.Bool("observability.metrics.insecure", false, "Use insecure connection for metrics")
		pflag.Duration("observability.metrics.timeout", 0, "Timeout for metric exports")

		pflag.StringP("config", "c", "", "Config file path")
	})
}

// setDefaults sets default values (lowest precedence).
func setDefaults(v *viper.Viper) {
	v.SetDefault("neo4j.uri", "neo4j://localhost:7687")
	v.SetDefault("neo4j.auth_scheme", AuthSchemeBasic)
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "")
	v.SetDefault("neo4j.password_file", "")
	v.SetDefault("neo4j.password_prompt", false)
	v.SetDefault("neo4j.bearer_token", "")
	v.SetDefault("neo4j.bearer_token_file", "")
	v.SetDefault("neo4j.database", "")
	v.SetDefault("neo4j.ca_file", "")
	v.SetDefault("neo4j.pool.max_size", 100)
	v.SetDefault("neo4j.pool.max_lifetime", time.Hour)
	v.SetDefault("neo4j.pool.acquisition_timeout", time.Minute)
	v.SetDefault("neo4j.max_transaction_retry_time", 30*time.Second)
	v.SetDefault("neo4j.connection_timeout", 60*time.Second)
	v.SetDefault("neo4j.connection_retry_interval", 2*time.Second)
	v.SetDefault("neo4j.driver_log_level", "warn")

	v.SetDefault("schema.typedefs_file", "schema.graphql")
	v.SetDefault("schema.refresh_min_interval", 30*time.Second)
	v.SetDefault("schema.refresh_max_interval", 5*time.Minute)

	v.SetDefault("translation.max_depth", 10)
	v.SetDefault("translation.max_complexity", 0)
	v.SetDefault("translation.max_rows", 0)
	v.SetDefault("translation.default_list_limit", 0)
	v.SetDefault("translation.max_mutation_depth", 16)
	v.SetDefault("translation.max_concurrency", 8)
	v.SetDefault("translation.subscription_events", false)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.graphql_path", "/graphql")
	v.SetDefault("server.auth.oidc_enabled", false)
	v.SetDefault("server.auth.oidc_issuer_url", "")
	v.SetDefault("server.auth.oidc_audience", "")
	v.SetDefault("server.auth.oidc_clock_skew", 2*time.Minute)
	v.SetDefault("server.auth.oidc_ca_file", "")
	v.SetDefault("server.auth.jwt_enabled", false)
	v.SetDefault("server.auth.jwt_secret", "")
	v.SetDefault("server.auth.jwt_secret_file", "")
	v.SetDefault("server.auth.jwt_issuer", "")
	v.SetDefault("server.auth.jwt_audience", "")
	v.SetDefault("server.auth.jwt_clock_skew", 2*time.Minute)
	v.SetDefault("server.auth.allow_anonymous", false)
	v.SetDefault("server.auth.impersonation_enabled", false)
	v.SetDefault("server.auth.impersonation_claim", "neo4j_user")
	v.SetDefault("server.auth.impersonation_allowed_users", []string{})
	v.SetDefault("server.admin.schema_reload_enabled", false)
	v.SetDefault("server.admin.auth_token", "")
	v.SetDefault("server.admin.auth_token_file", "")
	v.SetDefault("server.rate_limit_enabled", false)
	v.SetDefault("server.rate_limit_rps", 0.0)
	v.SetDefault("server.rate_limit_burst", 0)
	v.SetDefault("server.cors_enabled", false)
	v.SetDefault("server.cors_allowed_origins", []string{})
	v.SetDefault("server.cors_allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("server.cors_allowed_headers", []string{"Content-Type", "Authorization"})
	v.SetDefault("server.cors_expose_headers", []string{})
	v.SetDefault("server.cors_allow_credentials", false)
	v.SetDefault("server.cors_max_age", 86400)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.health_check_timeout", 2*time.Second)

	v.SetDefault("server.tls_mode", "off")
	v.SetDefault("server.tls_cert_file", "")
	v.SetDefault("server.tls_key_file", "")
	v.SetDefault("server.tls_auto_cert_dir", ".tls")

	v.SetDefault("observability.service_name", "neo4j-graphql")
	v.SetDefault("observability.service_version", "")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("observability.metrics_enabled", true)
	v.SetDefault("observability.tracing_enabled", false)
	v.SetDefault("observability.trace_sample_ratio", 1.0)

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.logging.exports_enabled", false)

	v.SetDefault("observability.otlp.endpoint", "localhost:4317")
	v.SetDefault("observability.otlp.protocol", "grpc")
	v.SetDefault("observability.otlp.insecure", false)
	v.SetDefault("observability.otlp.tls_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_key_file", "")
	v.SetDefault("observability.otlp.timeout", 10*time.Second)
	v.SetDefault("observability.otlp.compression", "gzip")
	v.SetDefault("observability.otlp.retry_enabled", true)
	v.SetDefault("observability.otlp.retry_max_attempts", 3)

	v.SetDefault("naming.plural_overrides", map[string]string{})
}

// promptPassword prompts the user for a password without echoing to terminal.
func promptPassword() (string, error) {
	fmt.Print("Enter Neo4j password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(bytePassword), nil
}

func readSecretFile(path string) (string, error) {
	var data []byte
	var err error

	if path == "@-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func validateSingleStdinFileSource(v *viper.Viper) error {
	var configured []string
	for _, s := range secretFiles {
		if strings.TrimSpace(v.GetString(s.fileKey)) == "@-" {
			configured = append(configured, s.fileKey)
		}
	}

	if len(configured) > 1 {
		return fmt.Errorf(
			"multiple stdin-backed file settings use @- (%s); only one @- source is allowed",
			strings.Join(configured, ", "),
		)
	}

	return nil
}

func stringToStringSliceHookFunc(sep string) mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
			return data, nil
		}

		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return []string{}, nil
		}

		parts := strings.Split(raw, sep)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
}
