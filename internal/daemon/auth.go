package daemon

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"polyvis/internal/paths"
)

const (
	// TokenPrefix marks polyvis daemon tokens so they are recognizable
	// in env files and shell history.
	TokenPrefix = "pv_sk_" // #nosec G101 -- prefix pattern, not a credential

	tokenBytes = 32
	bcryptCost = 12
)

// GenerateToken mints a new bearer token. The raw token is shown once;
// only its bcrypt hash is stored on disk.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return TokenPrefix + hex.EncodeToString(buf), nil
}

// HashToken bcrypt-hashes the secret part of a token.
func HashToken(token string) (string, error) {
	secret := strings.TrimPrefix(token, TokenPrefix)
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(hash), nil
}

// VerifyToken checks a presented token against a stored hash.
func VerifyToken(token, hash string) bool {
	secret := strings.TrimPrefix(token, TokenPrefix)
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// IsValidTokenFormat reports whether a string looks like a token this
// daemon minted.
func IsValidTokenFormat(token string) bool {
	if !strings.HasPrefix(token, TokenPrefix) {
		return false
	}
	secret := strings.TrimPrefix(token, TokenPrefix)
	if len(secret) != tokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(secret)
	return err == nil
}

// MaskToken renders a token safe for logs: prefix and first few hex
// characters only.
func MaskToken(token string) string {
	const visible = 8
	if len(token) < len(TokenPrefix)+visible {
		return "****"
	}
	return token[:len(TokenPrefix)+visible] + "****...****"
}

// SaveTokenHash writes the hash beside the PID file, owner-readable
// only.
func SaveTokenHash(hash string) error {
	if _, err := paths.EnsureDaemonDir(); err != nil {
		return err
	}
	path, err := paths.GetTokenFilePath()
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(hash+"\n"), 0o600)
}

// LoadTokenHash reads the stored hash. A missing file means auth is
// disabled and returns empty without error.
func LoadTokenHash() (string, error) {
	path, err := paths.GetTokenFilePath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// withAuth enforces bearer auth when a token hash is configured.
// Without one the endpoint stays open, which is the default for a
// loopback-only daemon.
func (d *Daemon) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d.tokenHash == "" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			d.writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			d.writeError(w, http.StatusUnauthorized, "expected Bearer scheme")
			return
		}
		if !VerifyToken(token, d.tokenHash) {
			d.writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
