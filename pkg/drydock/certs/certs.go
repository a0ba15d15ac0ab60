// Package certs generates the bundle's TLS material in process: one
// self-signed certificate for the site apex and one wildcard covering the
// routed virtual hosts under it. Generating in process keeps openssl off
// the assembler's required-tool list.
//
// These are the only bundle artifacts that intentionally differ between
// otherwise identical builds; every run mints fresh keys.
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"time"
)

// Validity is how long generated certificates last. Offline sites have no
// renewal path, so the material is minted long-lived.
const Validity = 10 * 365 * 24 * time.Hour

// Pair is one generated certificate and its private key, PEM-encoded.
type Pair struct {
	CertPEM []byte
	KeyPEM  []byte

	// Fingerprint is the hex sha256 of the certificate in DER form,
	// recorded in the bundle manifest.
	Fingerprint string
}

// Material is the full TLS output of one assembly run.
type Material struct {
	// General covers the bare site domain.
	General Pair

	// Wildcard covers *.domain plus the domain itself.
	Wildcard Pair
}

// Generate mints the general and wildcard pairs for domain using ECDSA
// P-256 keys from crypto/rand.
func Generate(domain string) (*Material, error) {
	general, err := selfSigned(domain, []string{domain})
	if err != nil {
		return nil, fmt.Errorf("generate certificate for %s: %w", domain, err)
	}

	wildcard, err := selfSigned("*."+domain, []string{"*." + domain, domain})
	if err != nil {
		return nil, fmt.Errorf("generate wildcard certificate for %s: %w", domain, err)
	}

	return &Material{General: general, Wildcard: wildcard}, nil
}

func selfSigned(commonName string, dnsNames []string) (Pair, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return Pair{}, fmt.Errorf("generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return Pair{}, fmt.Errorf("generate serial: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: commonName,
		},
		DNSNames:              dnsNames,
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(Validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return Pair{}, fmt.Errorf("create certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return Pair{}, fmt.Errorf("marshal key: %w", err)
	}

	sum := sha256.Sum256(der)

	return Pair{
		CertPEM:     pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		KeyPEM:      pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}),
		Fingerprint: hex.EncodeToString(sum[:]),
	}, nil
}

// Write stores the pair on disk. The certificate is world-readable; the
// key is operator-only.
func (p Pair) Write(certPath, keyPath string) error {
	if err := os.WriteFile(certPath, p.CertPEM, 0o644); err != nil {
		return fmt.Errorf("write certificate %s: %w", certPath, err)
	}
	if err := os.WriteFile(keyPath, p.KeyPEM, 0o600); err != nil {
		return fmt.Errorf("write key %s: %w", keyPath, err)
	}
	return nil
}
