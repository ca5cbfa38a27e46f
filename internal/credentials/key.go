package credentials

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"

	"snowadmin/pkg/errors"
)

// DecodePrivateKey parses an unencrypted PEM private key and returns it as
// PKCS#8 DER. PKCS#8, PKCS#1, and SEC1 bodies are accepted regardless of the
// block label.
func DecodePrivateKey(pemBytes []byte) ([]byte, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.KeyParseError("Private key is not a valid PEM document", nil)
	}
	if block.Type == "ENCRYPTED PRIVATE KEY" || strings.Contains(block.Headers["Proc-Type"], "ENCRYPTED") {
		return nil, errors.KeyParseError("Private key is encrypted; only passphrase-less keys are supported", nil).
			WithContext("pem_type", block.Type)
	}

	key, err := parsePrivateKey(block.Bytes, block.Type)
	if err != nil {
		return nil, errors.KeyParseError("Failed to parse private key", err).
			WithContext("pem_type", block.Type)
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, errors.KeyParseError("Failed to encode private key as PKCS#8", err)
	}
	return der, nil
}

// parseDER treats data as a bare DER key. Used when a stored secret has PEM
// markers that could not be repaired.
func parseDER(data []byte) ([]byte, error) {
	key, err := parsePrivateKey(data, "PRIVATE KEY")
	if err != nil {
		return nil, errors.KeyParseError("Private key is neither repairable PEM nor DER", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, errors.KeyParseError("Failed to encode private key as PKCS#8", err)
	}
	return der, nil
}

func parsePrivateKey(der []byte, pemType string) (any, error) {
	pkcs8 := func(b []byte) (any, error) { return x509.ParsePKCS8PrivateKey(b) }
	pkcs1 := func(b []byte) (any, error) { return x509.ParsePKCS1PrivateKey(b) }
	sec1 := func(b []byte) (any, error) { return x509.ParseECPrivateKey(b) }

	var order []func([]byte) (any, error)
	switch pemType {
	case "RSA PRIVATE KEY":
		order = append(order, pkcs1, pkcs8, sec1)
	case "EC PRIVATE KEY":
		order = append(order, sec1, pkcs8, pkcs1)
	default:
		order = append(order, pkcs8, pkcs1, sec1)
	}

	var firstErr error
	for _, parse := range order {
		key, err := parse(der)
		if err == nil {
			return key, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// RSAKey parses bundle key bytes into the RSA key the Snowflake driver signs
// its login JWT with.
func RSAKey(der []byte) (*rsa.PrivateKey, error) {
	key, err := parsePrivateKey(der, "PRIVATE KEY")
	if err != nil {
		return nil, errors.KeyParseError("Failed to parse private key bytes", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.KeyParseError(fmt.Sprintf("Snowflake key-pair authentication requires an RSA key, got %T", key), nil)
	}
	return rsaKey, nil
}

// Fingerprint returns "SHA256:<base64>" of the public key, the same value
// Snowflake reports as RSA_PUBLIC_KEY_FP for the user.
func Fingerprint(der []byte) (string, error) {
	key, err := parsePrivateKey(der, "PRIVATE KEY")
	if err != nil {
		return "", errors.KeyParseError("Failed to parse private key bytes", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return "", errors.KeyParseError(fmt.Sprintf("Unsupported key type %T", key), nil)
	}
	pub, err := x509.MarshalPKIXPublicKey(signer.Public())
	if err != nil {
		return "", errors.KeyParseError("Failed to encode public key", err)
	}
	sum := sha256.Sum256(pub)
	return "SHA256:" + base64.StdEncoding.EncodeToString(sum[:]), nil
}
