package storage

import (
	"database/sql"
	"fmt"

	"polyvis/internal/errors"
	"polyvis/internal/logging"
)

// currentSchemaVersion is the version a fully migrated store reports
// via PRAGMA user_version.
const currentSchemaVersion = 3

type migration struct {
	version int
	name    string
	apply   func(tx *sql.Tx) error
}

// Migrations are forward-only and run in order inside transactions.
// v1 is the base graph schema, v2 added content hashes for change
// detection, v3 added the meta column and reindexed FTS over it.
var migrations = []migration{
	{1, "base nodes, edges, and search index", migrateV1},
	{2, "content hash column", migrateV2},
	{3, "meta column with search reindex", migrateV3},
}

func (s *Store) migrate() error {
	version, err := s.schemaVersion()
	if err != nil {
		return errors.Wrap(errors.MigrationFailed, "failed to read schema version", err)
	}

	// Databases created before version tracking report 0. Detect their
	// real version from the columns they carry.
	if version == 0 {
		legacy, err := s.detectLegacyVersion()
		if err != nil {
			return errors.Wrap(errors.MigrationFailed, "failed to inspect legacy schema", err)
		}
		if legacy > 0 {
			if _, err := s.conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", legacy)); err != nil {
				return errors.Wrap(errors.MigrationFailed, "failed to stamp legacy schema version", err)
			}
			version = legacy
			s.logger.Info("detected legacy schema", logging.Fields{"version": legacy})
		}
	}

	if version > currentSchemaVersion {
		return errors.New(errors.MigrationFailed,
			fmt.Sprintf("store schema version %d is newer than this build supports (%d)", version, currentSchemaVersion))
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}

		s.logger.Info("applying schema migration", logging.Fields{
			"version": m.version,
			"name":    m.name,
		})

		err := s.WithTx(func(tx *sql.Tx) error {
			if err := m.apply(tx); err != nil {
				return err
			}
			// user_version lives in the database header and commits
			// with the transaction.
			_, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version))
			return err
		})
		if err != nil {
			return errors.Wrap(errors.MigrationFailed,
				fmt.Sprintf("migration %d (%s) failed", m.version, m.name), err)
		}
	}

	return nil
}

// SchemaVersion reports the store's current schema version.
func (s *Store) SchemaVersion() (int, error) {
	return s.schemaVersion()
}

func (s *Store) schemaVersion() (int, error) {
	var version int
	if err := s.conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

// detectLegacyVersion infers the schema version of a pre-tracking
// database from which columns the nodes table carries.
func (s *Store) detectLegacyVersion() (int, error) {
	var name string
	err := s.conn.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='nodes'
	`).Scan(&name)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	cols, err := s.tableColumns("nodes")
	if err != nil {
		return 0, err
	}

	switch {
	case cols["hash"] && cols["meta"]:
		return 3, nil
	case cols["hash"]:
		return 2, nil
	default:
		return 1, nil
	}
}

func (s *Store) tableColumns(table string) (map[string]bool, error) {
	rows, err := s.conn.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

func migrateV1(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			title TEXT,
			content TEXT,
			domain TEXT,
			layer TEXT,
			embedding BLOB,
			created_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create nodes table: %w", err)
	}

	// No foreign keys on edges: weavers may emit edges whose targets
	// never became nodes, and the validator reports those as orphans.
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS edges (
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			type TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (source, target, type)
		)
	`); err != nil {
		return fmt.Errorf("failed to create edges table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source)",
		"CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target)",
		"CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(type)",
		"CREATE INDEX IF NOT EXISTS idx_nodes_domain ON nodes(domain)",
	}
	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if err := createSearchIndex(tx, false); err != nil {
		return err
	}
	return createSearchTriggers(tx, false)
}

func migrateV2(tx *sql.Tx) error {
	if _, err := tx.Exec("ALTER TABLE nodes ADD COLUMN hash TEXT"); err != nil {
		return fmt.Errorf("failed to add hash column: %w", err)
	}
	return nil
}

func migrateV3(tx *sql.Tx) error {
	if _, err := tx.Exec("ALTER TABLE nodes ADD COLUMN meta TEXT"); err != nil {
		return fmt.Errorf("failed to add meta column: %w", err)
	}

	// The search index gains the meta column, so rebuild it.
	if err := dropSearchIndex(tx); err != nil {
		return err
	}
	if err := createSearchIndex(tx, true); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO nodes_fts(id, title, content, meta)
		SELECT id, title, content, meta FROM nodes
	`); err != nil {
		return fmt.Errorf("failed to repopulate search index: %w", err)
	}
	return createSearchTriggers(tx, true)
}

func createSearchIndex(tx *sql.Tx, withMeta bool) error {
	columns := "id UNINDEXED, title, content"
	if withMeta {
		columns += ", meta"
	}
	stmt := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS nodes_fts USING fts5(
			%s,
			tokenize='porter unicode61'
		)
	`, columns)
	if _, err := tx.Exec(stmt); err != nil {
		return fmt.Errorf("failed to create nodes_fts table: %w", err)
	}
	return nil
}

func createSearchTriggers(tx *sql.Tx, withMeta bool) error {
	cols, vals := "id, title, content", "new.id, new.title, new.content"
	if withMeta {
		cols += ", meta"
		vals += ", new.meta"
	}

	triggers := []string{
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS nodes_fts_ai AFTER INSERT ON nodes BEGIN
			INSERT INTO nodes_fts(%s) VALUES (%s);
		END`, cols, vals),

		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS nodes_fts_au AFTER UPDATE ON nodes BEGIN
			DELETE FROM nodes_fts WHERE id = old.id;
			INSERT INTO nodes_fts(%s) VALUES (%s);
		END`, cols, vals),

		`CREATE TRIGGER IF NOT EXISTS nodes_fts_ad AFTER DELETE ON nodes BEGIN
			DELETE FROM nodes_fts WHERE id = old.id;
		END`,
	}

	for _, trigger := range triggers {
		if _, err := tx.Exec(trigger); err != nil {
			return fmt.Errorf("failed to create trigger: %w", err)
		}
	}
	return nil
}

func dropSearchIndex(tx *sql.Tx) error {
	stmts := []string{
		"DROP TRIGGER IF EXISTS nodes_fts_ai",
		"DROP TRIGGER IF EXISTS nodes_fts_au",
		"DROP TRIGGER IF EXISTS nodes_fts_ad",
		"DROP TABLE IF EXISTS nodes_fts",
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to drop search index: %w", err)
		}
	}
	return nil
}
