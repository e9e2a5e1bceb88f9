package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres stores records in the uploads table.
type Postgres struct {
	db *sql.DB
}

// OpenDB opens a PostgreSQL connection pool using DATABASE_URL. The initial
// ping gives up after 2s or when ctx is done.
func OpenDB(ctx context.Context, databaseURL string) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	// One insert per upload; a small pool is plenty.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Validate connectivity immediately.
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// OpenPostgres migrates the schema and opens the pool.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	db, err := OpenDB(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := RunMigrations(ctx, databaseURL); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Record(ctx context.Context, rec Record) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO uploads (id, stored_name, original_name, size_bytes, sha256_hex, content_type, remote_ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.StoredName, rec.OriginalName, rec.SizeBytes, rec.SHA256, rec.ContentType, nullString(rec.RemoteIP), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert upload %s: %w", rec.StoredName, err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, storedName string) (Record, error) {
	var (
		rec      Record
		remoteIP sql.NullString
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT id, stored_name, original_name, size_bytes, sha256_hex, content_type, remote_ip, created_at
		FROM uploads
		WHERE stored_name = $1
	`, storedName).Scan(&rec.ID, &rec.StoredName, &rec.OriginalName, &rec.SizeBytes, &rec.SHA256, &rec.ContentType, &remoteIP, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("select upload %s: %w", storedName, err)
	}
	rec.RemoteIP = remoteIP.String
	return rec, nil
}

func (p *Postgres) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM uploads`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count uploads: %w", err)
	}
	return n, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// nullString helper for nullable strings
func nullString(s string) sql.NullString {
	return sql.NullString{
		String: s,
		Valid:  s != "",
	}
}
