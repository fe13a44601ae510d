package bus

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
)

// ServerTLSConfig builds the server-side TLS configuration for the
// cert_dir-gated authenticated transport (spec §6: "cert_dir (nullable,
// enables authenticated transport)"). certDir must contain server.crt,
// server.key, and ca.crt; client certificates signed by ca.crt are
// required for every connection — the spec names only the on/off
// contract, not a specific trust policy, so mutual TLS is the strictest
// reading and the one SPEC_FULL §C.3 commits to.
func ServerTLSConfig(certDir string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(
		filepath.Join(certDir, "server.crt"),
		filepath.Join(certDir, "server.key"),
	)
	if err != nil {
		return nil, fmt.Errorf("bus: loading server certificate: %w", err)
	}

	caPEM, err := os.ReadFile(filepath.Join(certDir, "ca.crt"))
	if err != nil {
		return nil, fmt.Errorf("bus: loading CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("bus: no valid certificates found in %s", filepath.Join(certDir, "ca.crt"))
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
