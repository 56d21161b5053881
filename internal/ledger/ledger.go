// Package ledger persists the content-hash to locus-id mapping in a
// sqlite side file. Ids are minted once per hash and never reassigned,
// so re-ingesting unchanged content always lands on the same node.
package ledger

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"polyvis/internal/errors"
	"polyvis/internal/logging"
)

// Ledger is an append-only map from content hash to locus id.
type Ledger struct {
	conn   *sql.DB
	logger *logging.Logger
	path   string
}

// Hash returns the md5 hex digest of text after trimming surrounding
// whitespace. Trimming is the only canonicalization: two boxes that
// differ in inner whitespace are different loci.
func Hash(text string) string {
	sum := md5.Sum([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

// Open opens or creates the ledger database at path.
func Open(path string, logger *logging.Logger) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(errors.StoreOpenFailed, "failed to create ledger directory", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.StoreOpenFailed, "failed to open ledger database", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, errors.Wrap(errors.StoreOpenFailed, fmt.Sprintf("failed to apply %s", pragma), err)
		}
	}

	if _, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS loci (
			hash       TEXT PRIMARY KEY,
			id         TEXT NOT NULL,
			created_at TEXT NOT NULL
		)
	`); err != nil {
		conn.Close()
		return nil, errors.Wrap(errors.StoreOpenFailed, "failed to create loci table", err)
	}

	logger.Debug("ledger opened", logging.Fields{"path": path})

	return &Ledger{conn: conn, logger: logger, path: path}, nil
}

// GetOrMint returns the locus id for contentHash, minting and
// persisting a fresh UUIDv4 on first sight. Safe under concurrent
// callers: the hash primary key arbitrates races and losers re-read
// the winner's id.
func (l *Ledger) GetOrMint(contentHash string) (string, error) {
	if contentHash == "" {
		return "", errors.New(errors.LedgerCorrupt, "empty content hash")
	}

	id, err := l.lookup(contentHash)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", errors.Wrap(errors.LedgerCorrupt, "ledger lookup failed", err)
	}

	minted := uuid.NewString()
	_, err = l.conn.Exec(`
		INSERT OR IGNORE INTO loci (hash, id, created_at)
		VALUES (?, ?, ?)
	`, contentHash, minted, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", errors.Wrap(errors.LedgerCorrupt, "ledger insert failed", err)
	}

	// Re-read instead of trusting the mint: a concurrent caller may
	// have won the insert.
	id, err = l.lookup(contentHash)
	if err != nil {
		return "", errors.Wrap(errors.LedgerCorrupt, "ledger re-read failed", err)
	}
	return id, nil
}

func (l *Ledger) lookup(contentHash string) (string, error) {
	var id string
	err := l.conn.QueryRow("SELECT id FROM loci WHERE hash = ?", contentHash).Scan(&id)
	return id, err
}

// Count returns the number of minted loci.
func (l *Ledger) Count() (int, error) {
	var count int
	if err := l.conn.QueryRow("SELECT COUNT(*) FROM loci").Scan(&count); err != nil {
		return 0, errors.Wrap(errors.LedgerCorrupt, "ledger count failed", err)
	}
	return count, nil
}

// Path returns the ledger database file path.
func (l *Ledger) Path() string {
	return l.path
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.conn.Close()
}
