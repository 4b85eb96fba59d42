package tlscert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"slices"
	"time"
)

const (
	devCertName  = "server.crt"
	devKeyName   = "server.key"
	devCertValid = 90 * 24 * time.Hour
	// Certificates expiring sooner than this are regenerated at startup.
	devCertRenewBefore = 7 * 24 * time.Hour
)

// ensureDevCertificate loads the ECDSA pair in dir, generating a new one
// when it is missing, unreadable, close to expiry or issued for other hosts.
func ensureDevCertificate(dir string, hosts []string, logger *slog.Logger) (*tls.Certificate, string, error) {
	if dir == "" {
		dir = ".tls"
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, "", fmt.Errorf("create certificate directory: %w", err)
	}
	certPath := filepath.Join(dir, devCertName)
	keyPath := filepath.Join(dir, devKeyName)

	if cert, err := tls.LoadX509KeyPair(certPath, keyPath); err == nil && devCertUsable(&cert, hosts, time.Now()) {
		logger.Info("using existing development certificate", slog.String("cert_path", certPath))
		return &cert, certPath, nil
	}

	logger.Warn("generating self-signed development certificate, not for production use",
		slog.String("cert_path", certPath),
		slog.Any("hosts", hosts))
	certPEM, keyPEM, err := generateDevCertificate(hosts, time.Now())
	if err != nil {
		return nil, "", err
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return nil, "", fmt.Errorf("write key: %w", err)
	}
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return nil, "", fmt.Errorf("write certificate: %w", err)
	}
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, "", fmt.Errorf("load generated certificate: %w", err)
	}
	return &cert, certPath, nil
}

func devCertUsable(cert *tls.Certificate, hosts []string, now time.Time) bool {
	if len(cert.Certificate) == 0 {
		return false
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return false
	}
	if now.Before(leaf.NotBefore) || now.Add(devCertRenewBefore).After(leaf.NotAfter) {
		return false
	}
	var dns, ips []string
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			ips = append(ips, ip.String())
		} else {
			dns = append(dns, h)
		}
	}
	leafIPs := make([]string, len(leaf.IPAddresses))
	for i, ip := range leaf.IPAddresses {
		leafIPs[i] = ip.String()
	}
	return sameSet(dns, leaf.DNSNames) && sameSet(ips, leafIPs)
}

func sameSet(a, b []string) bool {
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(slices.Compact(a), slices.Compact(b))
}

func generateDevCertificate(hosts []string, now time.Time) (certPEM, keyPEM []byte, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("generate serial: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"neo4j-graphql development"},
			CommonName:   hosts[0],
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(devCertValid),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal key: %w", err)
	}
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}
