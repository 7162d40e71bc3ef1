package utils

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// BuildBaseString joins the values of keys, in order, with "|".
// Absent and empty values are skipped.
func BuildBaseString(params map[string]string, keys []string) string {
	values := make([]string, 0, len(keys))
	for _, key := range keys {
		if v, ok := params[key]; ok && v != "" {
			values = append(values, v)
		}
	}
	return strings.Join(values, "|")
}

// SignSHA1 signs data with RSA PKCS#1 v1.5 over SHA-1 and returns it base64 encoded
func SignSHA1(data string, key *rsa.PrivateKey) (string, error) {
	if key == nil {
		return "", errors.New("private key is required")
	}

	digest := sha1.Sum([]byte(data))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA1, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign data: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifySHA1 verifies a base64 encoded RSA-SHA1 signature over data
func VerifySHA1(data, signature string, key *rsa.PublicKey) error {
	if key == nil {
		return errors.New("public key is required")
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("failed to decode signature: %w", err)
	}

	digest := sha1.Sum([]byte(data))
	if err := rsa.VerifyPKCS1v15(key, crypto.SHA1, digest[:], sig); err != nil {
		return fmt.Errorf("failed to verify signature: %w", err)
	}
	return nil
}

// ParsePrivateKey decodes a PEM encoded RSA private key. PKCS#1 and PKCS#8
// are accepted, as well as legacy passphrase-encrypted PEM blocks.
func ParsePrivateKey(pemBytes []byte, passphrase string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found in private key")
	}

	der := block.Bytes
	//nolint:staticcheck // the gateway issues keys in the legacy encrypted format
	if x509.IsEncryptedPEMBlock(block) {
		if passphrase == "" {
			return nil, errors.New("private key is encrypted but no passphrase was given")
		}
		decrypted, err := x509.DecryptPEMBlock(block, []byte(passphrase)) //nolint:staticcheck
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt private key: %w", err)
		}
		der = decrypted
	}

	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not an RSA key")
	}
	return key, nil
}

// ParsePublicKey decodes a PEM encoded RSA public key or certificate
func ParsePublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found in public key")
	}

	var parsed interface{}
	switch block.Type {
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate: %w", err)
		}
		parsed = cert.PublicKey
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		parsed = key
	default:
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		parsed = key
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not an RSA key")
	}
	return key, nil
}
