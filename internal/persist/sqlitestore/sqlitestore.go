// Package sqlitestore is an optional structured secondary sink for cluster
// dumps (§6): the plain-text stanza format remains the lossless format of
// record, but a model's dump can also be mirrored into a queryable SQLite
// database for `pclean load --format sqlite`.
package sqlitestore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pclean-go/pclean/internal/obslog"
	"github.com/pclean-go/pclean/internal/persist"
)

var log = obslog.GetLogger("sqlitestore")

const schema = `
CREATE TABLE IF NOT EXISTS domain_partitions (
	domain TEXT NOT NULL,
	table_id INTEGER NOT NULL,
	entity_id INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_domain_partitions_domain ON domain_partitions(domain);

CREATE TABLE IF NOT EXISTS outer_partitions (
	table_id INTEGER NOT NULL,
	relation_name TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outer_partitions_table ON outer_partitions(table_id);
`

// Store is a SQLite-backed cluster dump sink.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at path and ensures
// its schema exists, mirroring the teacher's Database.Open/InitSchema
// pattern.
func Open(path string) (*Store, error) {
	log.Info("opening cluster dump store", "path", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("sqlitestore: creating directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: ping %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: initializing schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying connection.
func (st *Store) Close() error { return st.db.Close() }

// Save replaces the store's contents with d.
func (st *Store) Save(d *persist.ClusterDump) error {
	tx, err := st.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlitestore: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM domain_partitions`); err != nil {
		return fmt.Errorf("sqlitestore: clearing domain_partitions: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM outer_partitions`); err != nil {
		return fmt.Errorf("sqlitestore: clearing outer_partitions: %w", err)
	}

	for _, p := range d.Domains {
		for _, entity := range p.Entities {
			if _, err := tx.Exec(
				`INSERT INTO domain_partitions (domain, table_id, entity_id) VALUES (?, ?, ?)`,
				p.Domain, p.Table, entity,
			); err != nil {
				return fmt.Errorf("sqlitestore: inserting domain partition: %w", err)
			}
		}
	}

	for table, names := range d.Outer {
		for _, name := range names {
			if _, err := tx.Exec(
				`INSERT INTO outer_partitions (table_id, relation_name) VALUES (?, ?)`,
				table, name,
			); err != nil {
				return fmt.Errorf("sqlitestore: inserting outer partition: %w", err)
			}
		}
	}

	return tx.Commit()
}

// Load reconstructs a ClusterDump from the store's current contents.
func (st *Store) Load() (*persist.ClusterDump, error) {
	d := &persist.ClusterDump{Outer: make(map[int][]string)}

	partitions := make(map[string]*persist.DomainPartition)
	var order []string

	rows, err := st.db.Query(`SELECT domain, table_id, entity_id FROM domain_partitions ORDER BY domain, table_id, entity_id`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: querying domain_partitions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var domain string
		var table, entity int
		if err := rows.Scan(&domain, &table, &entity); err != nil {
			return nil, fmt.Errorf("sqlitestore: scanning domain_partitions: %w", err)
		}
		key := fmt.Sprintf("%s/%d", domain, table)
		p, ok := partitions[key]
		if !ok {
			p = &persist.DomainPartition{Domain: domain, Table: table}
			partitions[key] = p
			order = append(order, key)
		}
		p.Entities = append(p.Entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: %w", err)
	}
	for _, key := range order {
		d.Domains = append(d.Domains, *partitions[key])
	}

	outerRows, err := st.db.Query(`SELECT table_id, relation_name FROM outer_partitions ORDER BY table_id, relation_name`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: querying outer_partitions: %w", err)
	}
	defer outerRows.Close()
	for outerRows.Next() {
		var table int
		var name string
		if err := outerRows.Scan(&table, &name); err != nil {
			return nil, fmt.Errorf("sqlitestore: scanning outer_partitions: %w", err)
		}
		d.Outer[table] = append(d.Outer[table], name)
	}
	if err := outerRows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: %w", err)
	}

	return d, nil
}
