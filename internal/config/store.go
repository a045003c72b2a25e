package config

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// globalScope is the instance id used for config rows that apply to every
// instance, matching spec.md §6's "DB (global '*')" layer.
const globalScope = "*"

// Store is the DB-backed override layer sitting above env/TOML in the
// precedence chain (DB instance > DB global '*' > env > TOML). It mirrors
// the teacher's settings.Repository: string-valued rows, INSERT ... ON
// CONFLICT DO UPDATE, with typed getters layered on top.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStore creates a new config store.
func NewStore(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log.With().Str("component", "config_store").Logger()}
}

// EnsureSchema creates the config_store and config_store_history tables.
func (s *Store) EnsureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS config_store (
			instance_id TEXT NOT NULL,
			key         TEXT NOT NULL,
			value       TEXT NOT NULL,
			updated_at  INTEGER NOT NULL,
			PRIMARY KEY (instance_id, key)
		);
		CREATE TABLE IF NOT EXISTS config_store_history (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			instance_id TEXT NOT NULL,
			key         TEXT NOT NULL,
			value       TEXT NOT NULL,
			set_at      INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure config schema: %w", err)
	}
	return nil
}

// Set writes a key for instanceID (use globalScope via SetGlobal for '*'
// rows) and appends an audit row to config_store_history.
func (s *Store) Set(instanceID, key, value string) error {
	now := time.Now().Unix()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin config set: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO config_store (instance_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(instance_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, instanceID, key, value, now); err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}

	if _, err := tx.Exec(`
		INSERT INTO config_store_history (instance_id, key, value, set_at)
		VALUES (?, ?, ?, ?)
	`, instanceID, key, value, now); err != nil {
		return fmt.Errorf("record config history %s: %w", key, err)
	}

	return tx.Commit()
}

// SetGlobal writes a '*'-scoped key, visible to every instance that does
// not have its own override.
func (s *Store) SetGlobal(key, value string) error {
	return s.Set(globalScope, key, value)
}

// Resolve looks up key with the full precedence: instance row, then global
// row, then the fallback supplied by the caller (the env/TOML layer).
func (s *Store) Resolve(instanceID, key, fallback string) (string, error) {
	if v, ok, err := s.lookup(instanceID, key); err != nil {
		return "", err
	} else if ok {
		return v, nil
	}

	if instanceID != globalScope {
		if v, ok, err := s.lookup(globalScope, key); err != nil {
			return "", err
		} else if ok {
			return v, nil
		}
	}

	return fallback, nil
}

// ResolveFloat is Resolve with float64 parsing; parse failures fall back to
// the default rather than erroring, since a malformed override should not
// stop a scheduled tick (spec.md §7: persistence failures are best-effort).
func (s *Store) ResolveFloat(instanceID, key string, fallback float64) float64 {
	raw, err := s.Resolve(instanceID, key, strconv.FormatFloat(fallback, 'f', -1, 64))
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("config resolve failed, using fallback")
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		s.log.Warn().Str("key", key).Str("value", raw).Msg("config value not a float, using fallback")
		return fallback
	}
	return parsed
}

func (s *Store) lookup(instanceID, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM config_store WHERE instance_id = ? AND key = ?`, instanceID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup config %s/%s: %w", instanceID, key, err)
	}
	return value, true, nil
}
