package persist

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore persists tiers in Postgres, one row per client.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects with the given DSN and migrates.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps an existing connection without migrating, for
// callers that manage schema themselves (and for tests over sqlmock).
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS rulesets (
        client TEXT PRIMARY KEY,
        static_rules JSONB,
        dynamic_rules JSONB,
        session_rules JSONB,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`
	_, err := s.db.ExecContext(context.Background(), query)
	if err != nil {
		return fmt.Errorf("migrate rulesets table: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveTiers(ctx context.Context, client string, tiers Tiers) error {
	staticJSON, dynamicJSON, sessionJSON, err := marshalTiers(tiers)
	if err != nil {
		return err
	}

	query := `
    INSERT INTO rulesets (client, static_rules, dynamic_rules, session_rules, updated_at)
    VALUES ($1, $2, $3, $4, NOW())
    ON CONFLICT (client) DO UPDATE SET
        static_rules = EXCLUDED.static_rules,
        dynamic_rules = EXCLUDED.dynamic_rules,
        session_rules = EXCLUDED.session_rules,
        updated_at = EXCLUDED.updated_at`
	_, err = s.db.ExecContext(ctx, query, client, staticJSON, dynamicJSON, sessionJSON)
	if err != nil {
		return fmt.Errorf("save tiers for %s: %w", client, err)
	}
	return nil
}

func (s *PostgresStore) DeleteClient(ctx context.Context, client string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM rulesets WHERE client = $1", client)
	if err != nil {
		return fmt.Errorf("delete tiers for %s: %w", client, err)
	}
	return nil
}

func (s *PostgresStore) LoadAll(ctx context.Context) (map[string]Tiers, error) {
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
