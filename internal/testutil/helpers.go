package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"database/sql"
	"encoding/pem"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"snowadmin/internal/common"
)

// TestHelper provides common test utilities
type TestHelper struct {
	t *testing.T
}

// NewTestHelper creates a new test helper
func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{t: t}
}

// WriteFile writes content to a file in the given directory
func (h *TestHelper) WriteFile(dir, filename, content string) string {
	h.t.Helper()
	path := filepath.Join(dir, filename)

	if err := os.MkdirAll(filepath.Dir(path), common.DirPermissionNormal); err != nil {
		h.t.Fatalf("Failed to create directories: %v", err)
	}

	if err := os.WriteFile(path, []byte(content), common.FilePermissionSecure); err != nil {
		h.t.Fatalf("Failed to write file %s: %v", path, err)
	}

	return path
}

// MockDB returns a sqlmock-backed database that is closed with the test.
func (h *TestHelper) MockDB() (*sql.DB, sqlmock.Sqlmock) {
	h.t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		h.t.Fatalf("Failed to create sqlmock: %v", err)
	}
	h.t.Cleanup(func() { db.Close() })
	return db, mock
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
	keyErr  error
)

// RSAKey returns a process-wide 2048-bit test key.
func RSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		testKey, keyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	if keyErr != nil {
		t.Fatalf("Failed to generate RSA key: %v", keyErr)
	}
	return testKey
}

// PKCS8DER returns the test key as unencrypted PKCS#8 DER.
func PKCS8DER(t *testing.T) []byte {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(RSAKey(t))
	if err != nil {
		t.Fatalf("Failed to marshal PKCS#8: %v", err)
	}
	return der
}

// PKCS8PEM returns the test key as a canonical "PRIVATE KEY" PEM document.
func PKCS8PEM(t *testing.T) string {
	t.Helper()
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: PKCS8DER(t)}))
}

// PKCS1PEM returns the test key as a canonical "RSA PRIVATE KEY" PEM document.
func PKCS1PEM(t *testing.T) string {
	t.Helper()
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(RSAKey(t)),
	}))
}

// CorruptPEM mimics a key that went through a lossy copy: line breaks become
// single spaces and extra spaces land inside the base64 body.
func CorruptPEM(doc string) string {
	lines := strings.Split(strings.TrimSpace(doc), "\n")
	for i, line := range lines {
		if i > 0 && i < len(lines)-1 && len(line) > 20 {
			lines[i] = line[:10] + "  " + line[10:20] + " " + line[20:]
		}
	}
	return strings.Join(lines, " ")
}
