package nats

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTLSConfig(t *testing.T) {
	conf, err := Config{URL: "nats://x"}.tlsConfig()
	require.NoError(t, err)
	assert.Nil(t, conf, "plain connections carry no TLS config")

	_, err = Config{CertFile: "client.pem"}.tlsConfig()
	assert.ErrorContains(t, err, "both a certificate and a key")

	_, err = Config{CAFile: filepath.Join(t.TempDir(), "missing.pem")}.tlsConfig()
	assert.ErrorContains(t, err, "failed to read CA file")

	bad := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a certificate"), 0o600))
	_, err = Config{CAFile: bad}.tlsConfig()
	assert.ErrorContains(t, err, "failed to parse CA certificate")
}
