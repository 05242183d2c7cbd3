package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults and runs migrations.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{Client: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS companies (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT UNIQUE NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS persons (
		id            BIGSERIAL PRIMARY KEY,
		company_id    BIGINT NOT NULL REFERENCES companies(id),
		name          TEXT NOT NULL,
		national_id   TEXT NOT NULL,
		title         TEXT NOT NULL DEFAULT '',
		photo         BYTEA,
		face_enrolled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (company_id, national_id)
	);

	CREATE TABLE IF NOT EXISTS attendance_records (
		id          UUID PRIMARY KEY,
		person_id   BIGINT NOT NULL REFERENCES persons(id),
		company_id  BIGINT NOT NULL REFERENCES companies(id),
		day         DATE NOT NULL,
		entry_at    TIMESTAMPTZ NOT NULL,
		exit_at     TIMESTAMPTZ,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (person_id, company_id, day)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_company_day ON attendance_records(company_id, day);

	CREATE TABLE IF NOT EXISTS devices (
		device_id   TEXT PRIMARY KEY,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS refresh_tokens (
		token       TEXT PRIMARY KEY,
		device_id   TEXT NOT NULL REFERENCES devices(device_id),
		expires_at  TIMESTAMPTZ NOT NULL,
		revoked     BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
