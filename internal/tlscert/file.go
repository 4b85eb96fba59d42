package tlscert

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// filePair serves a certificate loaded from disk and reloads it when either
// file's modification time changes, so rotated certificates are picked up
// without a restart. A failed reload keeps serving the previous pair.
type filePair struct {
	certFile string
	keyFile  string
	logger   *slog.Logger

	mu       sync.Mutex
	cert     *tls.Certificate
	certTime time.Time
	keyTime  time.Time
}

func newFilePair(certFile, keyFile string, logger *slog.Logger) (*filePair, error) {
	if certFile == "" || keyFile == "" {
		return nil, errors.New("tls_cert_file and tls_key_file are required when tls_mode=file")
	}
	keyInfo, err := statRegular(keyFile)
	if err != nil {
		return nil, fmt.Errorf("key file: %w", err)
	}
	if perm := keyInfo.Mode().Perm(); perm&0o077 != 0 {
		return nil, fmt.Errorf("key file %s is accessible by group or others (mode %o, want 0600 or 0400)", keyFile, perm)
	}
	if _, err := statRegular(certFile); err != nil {
		return nil, fmt.Errorf("certificate file: %w", err)
	}

	p := &filePair{certFile: certFile, keyFile: keyFile, logger: logger}
	if err := p.reload(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *filePair) certificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.changed() {
		if err := p.reload(); err != nil {
			p.logger.Error("failed to reload tls certificate, serving previous one",
				slog.String("cert_file", p.certFile),
				slog.String("error", err.Error()))
		}
	}
	return p.cert, nil
}

func (p *filePair) changed() bool {
	certInfo, err := os.Stat(p.certFile)
	if err != nil {
		return false
	}
	keyInfo, err := os.Stat(p.keyFile)
	if err != nil {
		return false
	}
	return !certInfo.ModTime().Equal(p.certTime) || !keyInfo.ModTime().Equal(p.keyTime)
}

func (p *filePair) reload() error {
	certInfo, err := os.Stat(p.certFile)
	if err != nil {
		return fmt.Errorf("certificate file: %w", err)
	}
	keyInfo, err := os.Stat(p.keyFile)
	if err != nil {
		return fmt.Errorf("key file: %w", err)
	}
	cert, err := tls.LoadX509KeyPair(p.certFile, p.keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	p.cert = &cert
	p.certTime = certInfo.ModTime()
	p.keyTime = keyInfo.ModTime()
	return nil
}

func statRegular(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}
	return info, nil
}
