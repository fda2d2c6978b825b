package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists tiers in a single SQLite file, one row per client.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and migrates it.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore wraps an existing connection, migrating on creation.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS rulesets (
        client TEXT PRIMARY KEY,
        static_rules JSON,
        dynamic_rules JSON,
        session_rules JSON,
        updated_at DATETIME
    );`
	_, err := s.db.ExecContext(context.Background(), query)
	if err != nil {
		return fmt.Errorf("migrate rulesets table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveTiers(ctx context.Context, client string, tiers Tiers) error {
	staticJSON, dynamicJSON, sessionJSON, err := marshalTiers(tiers)
	if err != nil {
		return err
	}

	query := `
    INSERT INTO rulesets (client, static_rules, dynamic_rules, session_rules, updated_at)
    VALUES (?, ?, ?, ?, ?)
    ON CONFLICT (client) DO UPDATE SET
        static_rules = excluded.static_rules,
        dynamic_rules = excluded.dynamic_rules,
        session_rules = excluded.session_rules,
        updated_at = excluded.updated_at`
	_, err = s.db.ExecContext(ctx, query,
		client, staticJSON, dynamicJSON, sessionJSON, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save tiers for %s: %w", client, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteClient(ctx context.Context, client string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM rulesets WHERE client = ?", client)
	if err != nil {
		return fmt.Errorf("delete tiers for %s: %w", client, err)
	}
	return nil
}

func (s *SQLiteStore) LoadAll(ctx context.Context) (map[string]Tiers, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT client, static_rules, dynamic_rules, session_rules FROM rulesets")
	if err != nil {
		return nil, fmt.Errorf("load rulesets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]Tiers)
	for rows.Next() {
		var (
			client                                string
			staticJSON, dynamicJSON, sessionJSON sql.NullString
		)
		if err := rows.Scan(&client, &staticJSON, &dynamicJSON, &sessionJSON); err != nil {
			return nil, fmt.Errorf("scan ruleset row: %w", err)
		}
		tiers, err := unmarshalTiers(staticJSON, dynamicJSON, sessionJSON)
		if err != nil {
			return nil, fmt.Errorf("decode tiers for %s: %w", client, err)
		}
		out[client] = tiers
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rulesets: %w", err)
	}
	return out, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func marshalTiers(tiers Tiers) (staticJSON, dynamicJSON, sessionJSON string, err error) {
	enc := func(rules any) (string, error) {
		b, err := json.Marshal(rules)
		if err != nil {
			return "", fmt.Errorf("encode tier: %w", err)
		}
		return string(b), nil
	}
	if staticJSON, err = enc(tiers.Static); err != nil {
		return
	}
	if dynamicJSON, err = enc(tiers.Dynamic); err != nil {
		return
	}
	sessionJSON, err = enc(tiers.Session)
	return
}

func unmarshalTiers(staticJSON, dynamicJSON, sessionJSON sql.NullString) (Tiers, error) {
	var tiers Tiers
	dec := func(raw sql.NullString, into any) error {
		if !raw.Valid || raw.String == "" || raw.String == "null" {
			return nil
		}
		return json.Unmarshal([]byte(raw.String), into)
	}
	if err := dec(staticJSON, &tiers.Static); err != nil {
		return Tiers{}, err
	}
	if err := dec(dynamicJSON, &tiers.Dynamic); err != nil {
		return Tiers{}, err
	}
	if err := dec(sessionJSON, &tiers.Session); err != nil {
		return Tiers{}, err
	}
	return tiers, nil
}
