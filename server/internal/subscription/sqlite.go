package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// SQLiteRegistry stores subscribers in a sqlite table.
type SQLiteRegistry struct {
	db        *sql.DB
	tableName string
	now       func() time.Time
}

type SQLiteOpt func(*SQLiteRegistry)

// WithTableName overrides the default "subscribers" table.
func WithTableName(name string) SQLiteOpt {
	return func(r *SQLiteRegistry) {
		r.tableName = name
	}
}

// NewSQLiteRegistry opens (or creates) the database at path.
func NewSQLiteRegistry(ctx context.Context, path string, opts ...SQLiteOpt) (*SQLiteRegistry, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("subscription: open sqlite %q: %w", path, err)
	}

	r := &SQLiteRegistry{
		db:        db,
		tableName: "subscribers",
		now:       time.Now,
	}
	for _, o := range opts {
		o(r)
	}

	if err := r.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRegistry) init(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`
	create table if not exists %s (
		id text primary key,
		callback_url text not null unique,
		kind text not null,
		created_at integer not null
	);`, r.tableName))
	if err != nil {
		return fmt.Errorf("subscription: create table: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}

func (r *SQLiteRegistry) Subscribe(ctx context.Context, s Subscriber) (string, error) {
	if err := validate(&s); err != nil {
		return "", err
	}
	s.ID = uuid.NewString()

	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		insert into %s (id, callback_url, kind, created_at) values (?, ?, ?, ?);
	`, r.tableName), s.ID, s.CallbackURL, string(s.Kind), r.now().UnixNano())

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return "", ErrDuplicateURL
	}
	if err != nil {
		return "", fmt.Errorf("subscription: insert: %w", err)
	}
	return s.ID, nil
}

func (r *SQLiteRegistry) Unsubscribe(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`delete from %s where id = ?;`, r.tableName), id)
	if err != nil {
		return fmt.Errorf("subscription: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("subscription: delete: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRegistry) List(ctx context.Context) ([]Subscriber, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		select id, callback_url, kind, created_at from %s order by created_at, rowid;
	`, r.tableName))
	if err != nil {
		return nil, fmt.Errorf("subscription: list: %w", err)
	}
	defer rows.Close()

	var out []Subscriber
	for rows.Next() {
		var (
			s       Subscriber
			kind    string
			created int64
		)
		if err := rows.Scan(&s.ID, &s.CallbackURL, &kind, &created); err != nil {
			return nil, fmt.Errorf("subscription: scan: %w", err)
		}
		s.Kind = Kind(kind)
		s.CreatedAt = time.Unix(0, created)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRegistry) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`select count(*) from %s;`, r.tableName)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("subscription: count: %w", err)
	}
	return n, nil
}
