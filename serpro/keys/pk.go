package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/youmark/pkcs8"
	"golang.org/x/crypto/pkcs12"
)

// LoadClientCertificate reads a client certificate for mutual TLS.
// .p12/.pfx files are decoded as PKCS#12; anything else is treated as PEM,
// in which case keyPath must point at an ENCRYPTED PRIVATE KEY (it may be
// the same file as certPath).
func LoadClientCertificate(certPath, keyPath string, password []byte) (tls.Certificate, error) {
	b, err := os.ReadFile(certPath)
	if err != nil {
		return tls.Certificate{}, errors.Wrap(err, "read certificate file")
	}

	switch strings.ToLower(filepath.Ext(certPath)) {
	case ".p12", ".pfx":
		return ParsePKCS12(b, string(password))
	}

	keyPEM := b
	if keyPath != "" && keyPath != certPath {
		if keyPEM, err = os.ReadFile(keyPath); err != nil {
			return tls.Certificate{}, errors.Wrap(err, "read key file")
		}
	}
	return ParsePEM(b, keyPEM, password)
}

// ParsePKCS12 converts a PKCS#12 bundle into a tls.Certificate (leaf first, chain preserved).
func ParsePKCS12(data []byte, password string) (tls.Certificate, error) {
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return tls.Certificate{}, errors.Wrap(err, "decode PKCS#12")
	}

	var pemData []byte
	for _, b := range blocks {
		pemData = append(pemData, pem.EncodeToMemory(b)...)
	}

	cert, err := tls.X509KeyPair(pemData, pemData)
	if err != nil {
		return tls.Certificate{}, errors.Wrap(err, "build key pair from PKCS#12")
	}
	return cert, nil
}

// ParsePEM builds a tls.Certificate from PEM certificate blocks and an encrypted PKCS#8 key.
func ParsePEM(certPEM, keyPEM, password []byte) (tls.Certificate, error) {
	var cert tls.Certificate
	for rest := certPEM; len(rest) > 0; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			cert.Certificate = append(cert.Certificate, block.Bytes)
		}
	}
	if len(cert.Certificate) == 0 {
		return tls.Certificate{}, errors.New("no CERTIFICATE block found in PEM")
	}

	signer, err := LoadEncryptedPKCS8SignerFromPEM(keyPEM, password)
	if err != nil {
		return tls.Certificate{}, err
	}
	cert.PrivateKey = signer

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return tls.Certificate{}, errors.Wrap(err, "parse x509")
	}
	cert.Leaf = leaf
	return cert, nil
}

// LoadEncryptedPKCS8SignerFromPEM loads the first ENCRYPTED PRIVATE KEY block found.
func LoadEncryptedPKCS8SignerFromPEM(pemBytes []byte, password []byte) (crypto.Signer, error) {
	if len(password) == 0 {
		return nil, errors.New("password is required for ENCRYPTED PRIVATE KEY")
	}

	for len(pemBytes) > 0 {
		var block *pem.Block
		block, pemBytes = pem.Decode(pemBytes)
		if block == nil {
			break
		}
		if block.Type != "ENCRYPTED PRIVATE KEY" {
			continue
		}

		keyAny, err := pkcs8.ParsePKCS8PrivateKey(block.Bytes, password)
		if err != nil {
			return nil, errors.Wrap(err, "decrypt PKCS#8 encrypted private key")
		}

		switch k := keyAny.(type) {
		case *rsa.PrivateKey:
			return k, nil
		case *ecdsa.PrivateKey:
			return k, nil
		default:
			return nil, errors.Errorf("unsupported key type in PKCS#8: %T (expected RSA or ECDSA)", keyAny)
		}
	}

	return nil, errors.New("no ENCRYPTED PRIVATE KEY block found in PEM")
}
