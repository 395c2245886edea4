package identity

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrBadKey is returned for keystore aliases that cannot be used as file names.
var ErrBadKey = errors.New("identity: invalid key alias")

// certificateLifetime is the validity of generated certificates.
const certificateLifetime = 5 * 365 * 24 * time.Hour

// Keystore resolves a key alias to a certificate and its private key.
type Keystore interface {
	Certificate(key string) (*tls.Certificate, error)
}

// FileKeystore stores key pairs as PEM files: <dir>/<key>.crt and <dir>/<key>.key.
type FileKeystore struct {
	Dir string
}

var _ Keystore = (*FileKeystore)(nil)

func (k *FileKeystore) paths(key string) (string, string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", "", fmt.Errorf("%w: %q", ErrBadKey, key)
	}
	base := filepath.Join(k.Dir, key)
	return base + ".crt", base + ".key", nil
}

// Certificate loads the key pair stored under key.
func (k *FileKeystore) Certificate(key string) (*tls.Certificate, error) {
	certFile, keyFile, err := k.paths(key)
	if err != nil {
		return nil, err
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("identity: load %q: %w", key, err)
	}
	return &cert, nil
}

// Generate creates a self-signed client certificate under key.
func (k *FileKeystore) Generate(key, commonName string) (*tls.Certificate, error) {
	certFile, keyFile, err := k.paths(key)
	if err != nil {
		return nil, err
	}
	certPEM, keyPEM, err := GenerateSelfSigned(commonName, certificateLifetime)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(k.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("identity: create keystore: %w", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		return nil, fmt.Errorf("identity: write key: %w", err)
	}
	if err := os.WriteFile(certFile, certPEM, 0o644); err != nil {
		return nil, fmt.Errorf("identity: write certificate: %w", err)
	}
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("identity: parse generated pair: %w", err)
	}
	return &cert, nil
}

// Delete removes the key pair stored under key. Missing files are ignored.
func (k *FileKeystore) Delete(key string) error {
	certFile, keyFile, err := k.paths(key)
	if err != nil {
		return err
	}
	for _, name := range []string{certFile, keyFile} {
		if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("identity: delete %q: %w", key, err)
		}
	}
	return nil
}

// GenerateSelfSigned returns PEM encoded certificate and private key for an
// ECDSA P-256 self-signed certificate. The certificate is valid for both
// client and server authentication, with commonName as DNS name too.
func GenerateSelfSigned(commonName string, lifetime time.Duration) (certPEM, keyPEM []byte, err error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("identity: generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("identity: generate serial: %w", err)
	}
	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(lifetime),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
	}
	if commonName != "" {
		tmpl.DNSNames = []string{commonName}
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		return nil, nil, fmt.Errorf("identity: create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("identity: encode key: %w", err)
	}
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}

// SelfSignedPair is GenerateSelfSigned returning a ready tls.Certificate.
func SelfSignedPair(commonName string) (tls.Certificate, error) {
	certPEM, keyPEM, err := GenerateSelfSigned(commonName, certificateLifetime)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.X509KeyPair(certPEM, keyPEM)
}
