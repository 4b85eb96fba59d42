// Package tlscert loads the certificates the server presents over HTTPS and
// the CA pools it trusts when dialing Neo4j over bolt+s or neo4j+s.
package tlscert

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
)

// Mode selects where the server certificate comes from. The values match
// server.tls_mode.
type Mode string

const (
	ModeOff  Mode = "off"
	ModeAuto Mode = "auto"
	ModeFile Mode = "file"
)

// MinVersion is the lowest TLS version the server negotiates.
const MinVersion = tls.VersionTLS13

// DefaultHosts are the names a generated development certificate covers.
var DefaultHosts = []string{"localhost", "127.0.0.1", "::1"}

// Options configures Open.
type Options struct {
	Mode Mode

	// CertFile and KeyFile are read in ModeFile.
	CertFile string
	KeyFile  string

	// Dir holds the generated pair in ModeAuto.
	Dir   string
	Hosts []string
}

// Source serves the certificate for incoming TLS handshakes.
type Source struct {
	mode        Mode
	description string
	getCert     func(*tls.ClientHelloInfo) (*tls.Certificate, error)
}

// Open prepares the certificate source for opts. It returns nil for
// ModeOff or an empty mode.
func Open(opts Options, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch opts.Mode {
	case "", ModeOff:
		return nil, nil
	case ModeFile:
		pair, err := newFilePair(opts.CertFile, opts.KeyFile, logger)
		if err != nil {
			return nil, err
		}
		return &Source{
			mode:        ModeFile,
			description: fmt.Sprintf("file (cert=%s, key=%s)", opts.CertFile, opts.KeyFile),
			getCert:     pair.certificate,
		}, nil
	case ModeAuto:
		hosts := opts.Hosts
		if len(hosts) == 0 {
			hosts = DefaultHosts
		}
		cert, certPath, err := ensureDevCertificate(opts.Dir, hosts, logger)
		if err != nil {
			return nil, err
		}
		return &Source{
			mode:        ModeAuto,
			description: fmt.Sprintf("generated development certificate (cert=%s)", certPath),
			getCert: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
				return cert, nil
			},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported tls mode %q (valid modes: off, auto, file)", opts.Mode)
	}
}

// Mode reports which source is in use.
func (s *Source) Mode() Mode { return s.mode }

// Description is logged at startup.
func (s *Source) Description() string { return s.description }

// ServerConfig returns the tls.Config for an http.Server.
func (s *Source) ServerConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     MinVersion,
		GetCertificate: s.getCert,
	}
}

// RootPool returns the system pool extended with the PEM certificates in
// caFile. An empty caFile returns nil, leaving the caller's default trust.
func RootPool(caFile string) (*x509.CertPool, error) {
	if caFile == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read ca file: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("ca file %q contains no certificates", caFile)
	}
	return pool, nil
}
