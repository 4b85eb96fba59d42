package tlscert

import (
	"crypto/tls"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenOffReturnsNil(t *testing.T) {
	for _, mode := range []Mode{"", ModeOff} {
		src, err := Open(Options{Mode: mode}, nil)
		require.NoError(t, err)
		assert.Nil(t, src)
	}
}

func TestOpenRejectsUnknownMode(t *testing.T) {
	_, err := Open(Options{Mode: "acme"}, nil)
	require.ErrorContains(t, err, "unsupported tls mode")
}

func TestAutoModeGeneratesAndReusesCertificate(t *testing.T) {
	dir := t.TempDir()
	src, err := Open(Options{Mode: ModeAuto, Dir: dir}, slog.Default())
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, ModeAuto, src.Mode())

	cfg := src.ServerConfig()
	assert.Equal(t, uint16(tls.VersionTLS13), cfg.MinVersion)
	first, err := cfg.GetCertificate(nil)
	require.NoError(t, err)
	require.NoError(t, first.Leaf.VerifyHostname("localhost"))

	keyInfo, err := os.Stat(filepath.Join(dir, devKeyName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), keyInfo.Mode().Perm())

	again, err := Open(Options{Mode: ModeAuto, Dir: dir}, slog.Default())
	require.NoError(t, err)
	second, err := again.ServerConfig().GetCertificate(nil)
	require.NoError(t, err)
	assert.Equal(t, first.Certificate[0], second.Certificate[0], "existing certificate should be reused")

	regenerated, err := Open(Options{Mode: ModeAuto, Dir: dir, Hosts: []string{"graph.local"}}, slog.Default())
	require.NoError(t, err)
	third, err := regenerated.ServerConfig().GetCertificate(nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.Certificate[0], third.Certificate[0], "host change should regenerate")
}

func TestDevCertUsableRejectsExpiring(t *testing.T) {
	now := time.Now()
	certPEM, keyPEM, err := generateDevCertificate(DefaultHosts, now.Add(-devCertValid+24*time.Hour))
	require.NoError(t, err)
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)
	assert.False(t, devCertUsable(&cert, DefaultHosts, now))

	certPEM, keyPEM, err = generateDevCertificate(DefaultHosts, now)
	require.NoError(t, err)
	cert, err = tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)
	assert.True(t, devCertUsable(&cert, DefaultHosts, now))
	assert.True(t, devCertUsable(&cert, []string{"::1", "localhost", "127.0.0.1"}, now))
	assert.False(t, devCertUsable(&cert, []string{"localhost"}, now))
}

func writePair(t *testing.T, dir string, now time.Time) (string, string) {
	t.Helper()
	certPEM, keyPEM, err := generateDevCertificate(DefaultHosts, now)
	require.NoError(t, err)
	certFile := filepath.Join(dir, "tls.crt")
	keyFile := filepath.Join(dir, "tls.key")
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o644))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o600))
	return certFile, keyFile
}

func TestFileModeReloadsRotatedCertificate(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writePair(t, dir, time.Now())

	src, err := Open(Options{Mode: ModeFile, CertFile: certFile, KeyFile: keyFile}, slog.Default())
	require.NoError(t, err)
	assert.Contains(t, src.Description(), certFile)
	getCert := src.ServerConfig().GetCertificate

	first, err := getCert(nil)
	require.NoError(t, err)

	writePair(t, dir, time.Now())
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(certFile, later, later))
	require.NoError(t, os.Chtimes(keyFile, later, later))

	second, err := getCert(nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.Certificate[0], second.Certificate[0])

	require.NoError(t, os.WriteFile(certFile, []byte("garbage"), 0o644))
	evenLater := later.Add(time.Minute)
	require.NoError(t, os.Chtimes(certFile, evenLater, evenLater))
	third, err := getCert(nil)
	require.NoError(t, err)
	assert.Equal(t, second.Certificate[0], third.Certificate[0], "broken rotation keeps the previous pair")
}

func TestFileModeValidation(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writePair(t, dir, time.Now())

	_, err := Open(Options{Mode: ModeFile, CertFile: certFile}, nil)
	require.ErrorContains(t, err, "required")

	require.NoError(t, os.Chmod(keyFile, 0o644))
	_, err = Open(Options{Mode: ModeFile, CertFile: certFile, KeyFile: keyFile}, nil)
	require.ErrorContains(t, err, "group or others")

	require.NoError(t, os.Chmod(keyFile, 0o600))
	_, err = Open(Options{Mode: ModeFile, CertFile: filepath.Join(dir, "missing.crt"), KeyFile: keyFile}, nil)
	require.ErrorContains(t, err, "certificate file")
}

func TestRootPool(t *testing.T) {
	pool, err := RootPool("")
	require.NoError(t, err)
	assert.Nil(t, pool)

	dir := t.TempDir()
	certFile, _ := writePair(t, dir, time.Now())
	pool, err = RootPool(certFile)
	require.NoError(t, err)
	assert.NotNil(t, pool)

	empty := filepath.Join(dir, "empty.pem")
	require.NoError(t, os.WriteFile(empty, []byte("no pem here"), 0o600))
	_, err = RootPool(empty)
	require.ErrorContains(t, err, "contains no certificates")

	_, err = RootPool(filepath.Join(dir, "missing.pem"))
	require.ErrorContains(t, err, "read ca file")
}
