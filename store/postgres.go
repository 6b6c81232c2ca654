package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"commitwatch/logger"
	"commitwatch/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresStore keeps the cursor state in a single table, one row per
// repository/branch pair.
type PostgresStore struct {
	conn *sqlx.DB
}

const cursorSchema = `
	CREATE TABLE IF NOT EXISTS cursors (
		repository TEXT NOT NULL,
		branch     TEXT NOT NULL,
		commit_id  TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (repository, branch)
	)
`

// NewPostgresStore connects to PostgreSQL and ensures the cursor table exists.
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	dsn := fmt.Sprintf(
		"user=%s password=%s dbname=%s port=%s host=%s sslmode=disable",
		cfg.User,
		cfg.Password,
		cfg.DBName,
		cfg.Port,
		cfg.Host,
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseConnection, err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &PostgresStore{conn: db}
	if _, err := db.Exec(cursorSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create cursors table: %w", err)
	}

	logger.Info("Database connection established",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.DBName))

	return s, nil
}

// Load reads all cursor rows into a Cursor mapping.
func (s *PostgresStore) Load(ctx context.Context) (models.Cursor, error) {
	var rows []struct {
		Repository string `db:"repository"`
		Branch     string `db:"branch"`
		CommitID   string `db:"commit_id"`
	}

	query := `SELECT repository, branch, commit_id FROM cursors`
	if err := s.conn.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load cursor state: %w", err)
	}

	cursor := models.Cursor{}
	for _, row := range rows {
		cursor.Set(row.Repository, row.Branch, row.CommitID)
	}
	return cursor, nil
}

// Save replaces the stored state in a single transaction. Rows are written
// in sorted key order.
func (s *PostgresStore) Save(ctx context.Context, cursor models.Cursor) error {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cursors`); err != nil {
		return fmt.Errorf("failed to clear cursor state: %w", err)
	}

	query := `
		INSERT INTO cursors (repository, branch, commit_id, updated_at)
		VALUES ($1, $2, $3, now())
	`
	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare cursor insert statement: %w", err)
	}
	defer stmt.Close()

	for _, repoKey := range slices.Sorted(maps.Keys(cursor)) {
		branches := cursor[repoKey]
		for _, branch := range slices.Sorted(maps.Keys(branches)) {
			if _, err := stmt.ExecContext(ctx, repoKey, branch, branches[branch]); err != nil {
				return fmt.Errorf("failed to insert cursor for %s@%s: %w", repoKey, branch, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.conn.Close()
}
