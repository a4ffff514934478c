package bambu

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// LoadCA reads the pinned printer CA certificate(s) from a PEM file.
func LoadCA(path string) (*x509.CertPool, error) {
	if path == "" {
		return nil, errors.New("no printer CA certificate configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading printer CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}

// newTLSConfig returns a client config that sends deviceID as the SNI server
// name and accepts only certificates issued for deviceID by roots.
//
// Printers route and validate by device id, not by address. Their
// certificates name the device only in the subject common name, which
// crypto/tls no longer matches, so the chain and name are checked in
// VerifyConnection instead of by the default verifier.
func newTLSConfig(deviceID string, roots *x509.CertPool) *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         deviceID,
		InsecureSkipVerify: true,
		VerifyConnection: func(cs tls.ConnectionState) error {
			return verifyPrinterCertificate(cs, deviceID, roots)
		},
	}
}

func verifyPrinterCertificate(cs tls.ConnectionState, deviceID string, roots *x509.CertPool) error {
	if len(cs.PeerCertificates) == 0 {
		return errors.New("printer presented no certificate")
	}
	leaf := cs.PeerCertificates[0]
	intermediates := x509.NewCertPool()
	for _, cert := range cs.PeerCertificates[1:] {
		intermediates.AddCert(cert)
	}
	if _, err := leaf.Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
	}); err != nil {
		return fmt.Errorf("verifying printer certificate: %w", err)
	}
	if leaf.Subject.CommonName != deviceID && leaf.VerifyHostname(deviceID) != nil {
		return fmt.Errorf("printer certificate is for %q, expected %q", leaf.Subject.CommonName, deviceID)
	}
	return nil
}
