package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "vaultbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const searchLimit = 50

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &sqliteStore{db: db, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- users ----

func (s *sqliteStore) EnsureUser(ctx context.Context, id int64, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id, name, premium, banned, joined_at) VALUES(?,?,0,0,?)
		 ON CONFLICT(id) DO NOTHING`,
		id, name, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) User(ctx context.Context, id int64) (User, error) {
	var u User
	var premium, banned int
	var joined string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, premium, banned, joined_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &premium, &banned, &joined)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.Premium = premium != 0
	u.Banned = banned != 0
	u.JoinedAt, _ = time.Parse(time.RFC3339Nano, joined)
	return u, nil
}

func (s *sqliteStore) SetBanned(ctx context.Context, id int64, banned bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET banned = ? WHERE id = ?`, boolInt(banned), id)
	return err
}

func (s *sqliteStore) DeleteUser(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}

func (s *sqliteStore) SetPremium(ctx context.Context, id int64, premium bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET premium = ? WHERE id = ?`, boolInt(premium), id)
	return err
}

func (s *sqliteStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (s *sqliteStore) UserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ---- file index ----

func (s *sqliteStore) SaveFile(ctx context.Context, f File) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO files(msg_id, name, code, size, indexed_at) VALUES(?,?,?,?,?)
		 ON CONFLICT(code) DO NOTHING`,
		f.MsgID, f.Name, f.Code, f.Size, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) CountFiles(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&n)
	return n, err
}

func (s *sqliteStore) SearchFiles(ctx context.Context, query string) ([]File, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT msg_id, name, code, size, indexed_at FROM files
		 WHERE name LIKE ? ESCAPE '\' COLLATE NOCASE
		 ORDER BY indexed_at DESC LIMIT ?`,
		pattern, searchLimit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		var f File
		var indexed string
		if err := rows.Scan(&f.MsgID, &f.Name, &f.Code, &f.Size, &indexed); err != nil {
			return nil, err
		}
		f.IndexedAt, _ = time.Parse(time.RFC3339Nano, indexed)
		out = append(out, f)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ---- batches ----

const (
	batchIDLen      = 8
	batchIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	batchIDRetries  = 5
)

func newBatchID() (string, error) {
	buf := make([]byte, batchIDLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = batchIDAlphabet[int(b)%len(batchIDAlphabet)]
	}
	return string(buf), nil
}

func (s *sqliteStore) CreateBatch(ctx context.Context, firstID, lastID int) (string, error) {
	if lastID < firstID {
		return "", fmt.Errorf("invalid batch range [%d,%d]", firstID, lastID)
	}
	// The id space is small enough that collisions are conceivable over the
	// lifetime of a database; distinctness is verified at insert by retrying
	// on the primary-key constraint.
	for attempt := 0; attempt < batchIDRetries; attempt++ {
		id, err := newBatchID()
		if err != nil {
			return "", err
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO batches(id, first_id, last_id, created_at) VALUES(?,?,?,?)`,
			id, firstID, lastID, time.Now().UTC().Format(time.RFC3339Nano),
		)
		if err == nil {
			return id, nil
		}
		if !isUniqueViolation(err) {
			return "", err
		}
		s.log.Warn("batch id collision, regenerating", logx.String("id", id))
	}
	return "", errors.New("could not generate a distinct batch id")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *sqliteStore) Batch(ctx context.Context, id string) (Batch, error) {
	var b Batch
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, first_id, last_id, created_at FROM batches WHERE id = ?`, id,
	).Scan(&b.ID, &b.FirstID, &b.LastID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Batch{}, ErrNotFound
	}
	if err != nil {
		return Batch{}, err
	}
	b.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return b, nil
}

func (s *sqliteStore) PruneBatches(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM batches WHERE created_at < ?`,
		olderThan.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
