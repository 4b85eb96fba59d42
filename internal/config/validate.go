package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"neo4j-graphql/internal/naming"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.Neo4j.validate(result)
	c.Schema.validate(result)
	c.Translation.validate(result)
	c.Server.validate(result)
	c.Observability.validate(result)
	validateNamingConfig(result, c.Naming)

	return result
}

var pascalCaseTypePattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)

func validateNamingConfig(result *ValidationResult, cfg naming.Config) {
	for typeName, plural := range cfg.PluralOverrides {
		typeName = strings.TrimSpace(typeName)
		plural = strings.TrimSpace(plural)
		if typeName == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "naming.plural_overrides",
				Message: "type name cannot be empty",
			})
			continue
		}
		if !pascalCaseTypePattern.MatchString(typeName) {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "naming.plural_overrides",
				Message: fmt.Sprintf("type name %q must be PascalCase", typeName),
			})
			continue
		}
		if plural == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "naming.plural_overrides",
				Message: fmt.Sprintf("plural override for type %q cannot be empty", typeName),
			})
			continue
		}
		if !pascalCaseTypePattern.MatchString(naming.UpperFirst(plural)) {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "naming.plural_overrides",
				Message: fmt.Sprintf("plural override %q for type %q is not a valid GraphQL name", plural, typeName),
			})
		}
	}
}

var neo4jSchemes = map[string]bool{
	"neo4j": true, "neo4j+s": true, "neo4j+ssc": true,
	"bolt": true, "bolt+s": true, "bolt+ssc": true,
}

func (n *Neo4jConfig) validate(result *ValidationResult) {
	parsed, err := url.Parse(n.URI)
	switch {
	case strings.TrimSpace(n.URI) == "":
		result.Errors = append(result.Errors, ValidationError{
			Field:   "neo4j.uri",
			Message: "uri is required",
			Hint:    "e.g. neo4j://localhost:7687",
		})
	case err != nil:
		result.Errors = append(result.Errors, ValidationError{
			Field:   "neo4j.uri",
			Message: fmt.Sprintf("invalid uri: %v", err),
		})
	case !neo4jSchemes[parsed.Scheme]:
		result.Errors = append(result.Errors, ValidationError{
			Field:   "neo4j.uri",
			Message: fmt.Sprintf("unsupported scheme %q", parsed.Scheme),
			Hint:    "valid schemes are: neo4j, neo4j+s, neo4j+ssc, bolt, bolt+s, bolt+ssc",
		})
	case parsed.Host == "":
		result.Errors = append(result.Errors, ValidationError{
			Field:   "neo4j.uri",
			Message: "uri has no host",
		})
	default:
		if strings.HasSuffix(parsed.Scheme, "+ssc") {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "neo4j.uri",
				Message: "+ssc schemes do not verify server certificates",
				Hint:    "use +s with neo4j.ca_file in production",
			})
		}
		if n.CAFile != "" && !strings.HasSuffix(parsed.Scheme, "+s") {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "neo4j.ca_file",
				Message: "ca_file is only used with +s schemes",
			})
		}
	}

	switch n.AuthScheme {
	case AuthSchemeBasic:
		if n.Username == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "neo4j.username",
				Message: "username is required for basic auth",
			})
		}
		if n.Password == "" {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "neo4j.password",
				Message: "password is empty",
				Hint:    "set neo4j.password_file or neo4j.password_prompt",
			})
		}
	case AuthSchemeBearer:
		if n.BearerToken == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "neo4j.bearer_token",
				Message: "bearer token is required for bearer auth",
				Hint:    "set neo4j.bearer_token_file",
			})
		}
	case AuthSchemeNone:
		if n.Password != "" || n.BearerToken != "" {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "neo4j.auth_scheme",
				Message: "credentials are set but auth_scheme is none",
			})
		}
	default:
		result.Errors = append(result.Errors, ValidationError{
			Field:   "neo4j.auth_scheme",
			Message: fmt.Sprintf("invalid auth scheme %q", n.AuthScheme),
			Hint:    "valid values are: basic, bearer, none",
		})
	}

	if n.Pool.MaxSize < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "neo4j.pool.max_size",
			Message: "max_size cannot be negative",
		})
	}
	if n.Pool.MaxLifetime < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "neo4j.pool.max_lifetime",
			Message: "max_lifetime cannot be negative",
		})
	}
	if n.Pool.AcquisitionTimeout < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "neo4j.pool.acquisition_timeout",
			Message: "acquisition_timeout cannot be negative",
		})
	}

	if _, ok := driverLogLevels[strings.ToLower(n.DriverLogLevel)]; !ok {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "neo4j.driver_log_level",
			Message: fmt.Sprintf("invalid driver log level %q", n.DriverLogLevel),
			Hint:    "valid values are: off, error, warn, info, debug",
		})
	}

	if n.ConnectionTimeout > 0 && n.ConnectionRetryInterval > n.ConnectionTimeout {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "neo4j.connection_retry_interval",
			Message: "connection_retry_interval is greater than connection_timeout",
			Hint:    "only one connection attempt will be made",
		})
	}
	if n.ConnectionRetryInterval < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "neo4j.connection_retry_interval",
			Message: "connection_retry_interval cannot be negative",
		})
	}
	if n.ConnectionTimeout > 0 && n.ConnectionRetryInterval == 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "neo4j.connection_retry_interval",
			Message: "connection_retry_interval must be greater than 0 when connection_timeout is set",
			Hint:    "set a retry interval such as 2s, or set connection_timeout to 0 to disable retries",
		})
	}
	if n.ConnectionTimeout < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "neo4j.connection_timeout",
			Message: "connection_timeout cannot be negative",
		})
	}
}

func (s *SchemaConfig) validate(result *ValidationResult) {
	if strings.TrimSpace(s.TypeDefsFile) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "schema.typedefs_file",
			Message: "typedefs_file is required",
			Hint:    "point it at the GraphQL type definitions to serve",
		})
	}
	if s.RefreshMinInterval < 0 || s.RefreshMaxInterval < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "schema.refresh_min_interval",
			Message: "refresh intervals cannot be negative",
		})
	}
	if s.RefreshMaxInterval > 0 && s.RefreshMinInterval > s.RefreshMaxInterval {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "schema.refresh_max_interval",
			Message: "refresh_max_interval must not be less than refresh_min_interval",
		})
	}
}

func (t *TranslationConfig) validate(result *ValidationResult) {
	nonNegative := []struct {
		field string
		value int
	}{
		{"translation.max_depth", t.MaxDepth},
		{"translation.max_complexity", t.MaxComplexity},
		{"translation.max_rows", t.MaxRows},
		{"translation.default_list_limit", t.DefaultListLimit},
		{"translation.max_mutation_depth", t.MaxMutationDepth},
		{"translation.max_concurrency", t.MaxConcurrency},
	}
	for _, n := range nonNegative {
		if n.value < 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   n.field,
				Message: fmt.Sprintf("%s cannot be negative", strings.TrimPrefix(n.field, "translation.")),
			})
		}
	}
	if t.MaxDepth == 0 && t.MaxComplexity == 0 {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "translation.max_depth",
			Message: "neither query depth nor complexity is bounded",
			Hint:    "set translation.max_depth or translation.max_complexity",
		})
	}
}

func (s *ServerConfig) validate(result *ValidationResult) {
	if s.Port < 1 || s.Port > 65535 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port %d is out of valid range (1-65535)", s.Port),
		})
	}

	if !strings.HasPrefix(s.GraphQLPath, "/") {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.graphql_path",
			Message: fmt.Sprintf("graphql_path %q must start with /", s.GraphQLPath),
		})
	}

	if s.RateLimitEnabled {
		if s.RateLimitRPS <= 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.rate_limit_rps",
				Message: "rate_limit_rps must be greater than 0 when rate limiting is enabled",
			})
		}
		if s.RateLimitBurst <= 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.rate_limit_burst",
				Message: "rate_limit_burst must be greater than 0 when rate limiting is enabled",
			})
		}
	}

	if !s.RateLimitEnabled && (s.RateLimitRPS > 0 || s.RateLimitBurst > 0) {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "server.rate_limit_enabled",
			Message: "rate limit values are set but rate limiting is disabled",
			Hint:    "enable server.rate_limit_enabled to apply rate limits",
		})
	}

	if s.CORSEnabled {
		if len(s.CORSAllowedOrigins) == 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.cors_allowed_origins",
				Message: "CORS enabled but no allowed origins configured",
				Hint:    "set cors_allowed_origins or disable CORS",
			})
		}

		hasWildcard := false
		for _, origin := range s.CORSAllowedOrigins {
			if strings.TrimSpace(origin) == "*" {
				hasWildcard = true
				break
			}
		}

		if hasWildcard && s.CORSAllowCredentials {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.cors_allowed_origins",
				Message: "wildcard origin (*) cannot be used with credentials",
				Hint:    "use specific origins with credentials, or wildcard without credentials",
			})
		}

		if hasWildcard {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "server.cors_allowed_origins",
				Message: "CORS wildcard origin enabled",
				Hint:    "use specific origins in production for better security",
			})
		}
	}

	tlsEnabled := s.TLSMode != "" && s.TLSMode != "off"
	if s.CORSEnabled && tlsEnabled && len(s.CORSAllowedOrigins) > 0 {
		onlyHTTP := true
		for _, origin := range s.CORSAllowedOrigins {
			origin = strings.TrimSpace(origin)
			if !strings.HasPrefix(origin, "http://") {
				onlyHTTP = false
				break
			}
		}
		if onlyHTTP {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "server.cors_allowed_origins",
				Message: "CORS allowed origins are http:// only while TLS is enabled",
				Hint:    "use https:// origins when serving over TLS",
			})
		}
	}

	s.Auth.validate(result)

	validTLSModes := map[string]bool{"": true, "off": true, "auto": true, "file": true}
	if !validTLSModes[s.TLSMode] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.tls_mode",
			Message: fmt.Sprintf("invalid TLS mode %q", s.TLSMode),
			Hint:    "valid values are: off, auto, file",
		})
	}

	if s.TLSMode == "file" {
		if s.TLSCertFile == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.tls_cert_file",
				Message: "TLS cert file required when tls_mode is 'file'",
			})
		}
		if s.TLSKeyFile == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.tls_key_file",
				Message: "TLS key file required when tls_mode is 'file'",
			})
		}
	}

	if s.Admin.SchemaReloadEnabled && s.Admin.AuthToken == "" && !s.Auth.OIDCEnabled && !s.Auth.JWTEnabled {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.admin.auth_token",
			Message: "schema reload endpoint requires bearer auth or an admin token",
			Hint:    "set server.admin.auth_token_file or enable OIDC/JWT auth",
		})
	}
}

func (a *AuthConfig) validate(result *ValidationResult) {
	if a.OIDCEnabled && a.JWTEnabled {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.auth.jwt_enabled",
			Message: "OIDC and shared-secret JWT authentication are mutually exclusive",
			Hint:    "enable only one of server.auth.oidc_enabled and server.auth.jwt_enabled",
		})
	}

	if a.OIDCEnabled {
		if a.OIDCIssuerURL == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.auth.oidc_issuer_url",
				Message: "issuer URL is required when OIDC is enabled",
			})
		} else if parsed, err := url.Parse(a.OIDCIssuerURL); err != nil || parsed.Scheme != "https" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.auth.oidc_issuer_url",
				Message: fmt.Sprintf("issuer URL %q must be an https URL", a.OIDCIssuerURL),
			})
		}
		if a.OIDCAudience == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.auth.oidc_audience",
				Message: "audience is required when OIDC is enabled",
			})
		}
	}

	if a.JWTEnabled && len(a.JWTSecret) < 32 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.auth.jwt_secret",
			Message: "jwt secret must be at least 32 bytes when JWT auth is enabled",
			Hint:    "set server.auth.jwt_secret_file",
		})
	}

	if a.AllowAnonymous && !a.OIDCEnabled && !a.JWTEnabled {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "server.auth.allow_anonymous",
			Message: "allow_anonymous has no effect without OIDC or JWT auth",
		})
	}

	if a.ImpersonationEnabled {
		if !a.OIDCEnabled && !a.JWTEnabled {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.auth.impersonation_enabled",
				Message: "impersonation requires OIDC or JWT auth",
				Hint:    "enable server.auth.oidc_enabled or server.auth.jwt_enabled",
			})
		}
		if strings.TrimSpace(a.ImpersonationClaim) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.auth.impersonation_claim",
				Message: "impersonation claim cannot be empty",
			})
		}
		for _, user := range a.ImpersonationAllowedUsers {
			if strings.TrimSpace(user) == "" {
				result.Errors = append(result.Errors, ValidationError{
					Field:   "server.auth.impersonation_allowed_users",
					Message: "allowed user names cannot be empty",
				})
				break
			}
		}
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	// Log level validation
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.level",
			Message: fmt.Sprintf("invalid log level %q", o.Logging.Level),
			Hint:    "valid values are: debug, info, warn, error",
		})
	}

	// Log format validation
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.format",
			Message: fmt.Sprintf("invalid log format %q", o.Logging.Format),
			Hint:    "valid values are: json, text",
		})
	}

	// OTLP protocol validation
	o.OTLP.validate("observability.otlp", result)

	// Signal-specific OTLP validation
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
	if o.Metrics != nil {
		o.Metrics.validate("observability.metrics", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	validProtocols := map[string]bool{"": true, "grpc": true, "http/protobuf": true}
	if !validProtocols[o.Protocol] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".protocol",
			Message: fmt.Sprintf("invalid OTLP protocol %q", o.Protocol),
			Hint:    "valid values are: grpc, http/protobuf",
		})
	}

	if o.Protocol == "http/protobuf" {
		if !validOTLPEndpoint(o.Endpoint) {
			result.Errors = append(result.Errors, ValidationError{
				Field:   prefix + ".endpoint",
				Message: fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint),
				Hint:    "use host:port or a full URL",
			})
		}
	}

	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[o.Compression] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".compression",
			Message: fmt.Sprintf("invalid OTLP compression %q", o.Compression),
			Hint:    "valid values are: none, gzip",
		})
	}

	if o.RetryMaxAttempts < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".retry_max_attempts",
			Message: "retry_max_attempts cannot be negative",
		})
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
