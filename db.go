package main

import (
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	mysql "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	dialectMySQL  = "mysql"
	dialectSQLite = "sqlite"
)

// sqlKV stores collections as rows of a single key-value table.
type sqlKV struct {
	db      *sql.DB
	dialect string
}

// ensureTable creates the key-value table if it doesn't exist.
func ensureTable(db *sql.DB, dialect string) error {
	ddl := `CREATE TABLE IF NOT EXISTS kv_store (
        k TEXT PRIMARY KEY,
        v TEXT NOT NULL,
        updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    )`
	if dialect == dialectMySQL {
		ddl = `CREATE TABLE IF NOT EXISTS kv_store (
        k VARCHAR(64) PRIMARY KEY,
        v LONGTEXT NOT NULL,
        updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
    )`
	}
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create kv_store: %w", err)
	}
	return nil
}

func newSQLKV(db *sql.DB, dialect string) (*sqlKV, error) {
	if err := ensureTable(db, dialect); err != nil {
		return nil, err
	}
	return &sqlKV{db: db, dialect: dialect}, nil
}

func (s *sqlKV) Get(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow("SELECT v FROM kv_store WHERE k = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select %s: %w", key, err)
	}
	return v, true, nil
}

func (s *sqlKV) Set(key, value string) error {
	q := `INSERT INTO kv_store (k, v, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(k) DO UPDATE SET v = excluded.v, updated_at = CURRENT_TIMESTAMP`
	if s.dialect == dialectMySQL {
		q = `INSERT INTO kv_store (k, v) VALUES (?, ?)
        ON DUPLICATE KEY UPDATE v = VALUES(v)`
	}
	if _, err := s.db.Exec(q, key, value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (s *sqlKV) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM kv_store WHERE k = ?", key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// openSQLite opens (creating if needed) the database file at path.
func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open(dialectSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one writer keeps SQLITE_BUSY away
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return db, nil
}

// openMySQL opens dsn, registering the "tidb" TLS profile when the DSN asks for it.
func openMySQL(dsn, caPath string, log *zap.Logger) (*sql.DB, error) {
	if strings.Contains(dsn, "tls=tidb") {
		registerTiDBTLS(caPath, log)
	}
	db, err := sql.Open(dialectMySQL, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

func registerTiDBTLS(caPath string, log *zap.Logger) {
	pool := x509.NewCertPool()
	b, err := os.ReadFile(caPath)
	switch {
	case err != nil:
		log.Warn("could not read CA file, falling back to InsecureSkipVerify", zap.String("path", caPath), zap.Error(err))
		mysql.RegisterTLSConfig("tidb", &tls.Config{InsecureSkipVerify: true})
	case !pool.AppendCertsFromPEM(b):
		log.Warn("could not parse CA file, falling back to InsecureSkipVerify", zap.String("path", caPath))
		mysql.RegisterTLSConfig("tidb", &tls.Config{InsecureSkipVerify: true})
	default:
		mysql.RegisterTLSConfig("tidb", &tls.Config{RootCAs: pool})
	}
}

// openKV picks the storage backend for cfg. The returned close func is never nil.
func openKV(cfg Config, log *zap.Logger) (KV, func() error, error) {
	noop := func() error { return nil }
	if cfg.DevMode {
		log.Info("DEV_MODE=true: keeping state in memory")
		return newMemoryKV(), noop, nil
	}

	var (
		db      *sql.DB
		dialect string
		err     error
	)
	if cfg.MySQLDSN != "" {
		dialect = dialectMySQL
		db, err = openMySQL(cfg.MySQLDSN, cfg.TiDBCA, log)
	} else {
		dialect = dialectSQLite
		db, err = openSQLite(cfg.DBPath)
	}
	if err != nil {
		return nil, noop, err
	}
	kv, err := newSQLKV(db, dialect)
	if err != nil {
		db.Close()
		return nil, noop, fmt.Errorf("ensure table: %w", err)
	}
	log.Info("storage ready", zap.String("dialect", dialect))
	return kv, db.Close, nil
}
