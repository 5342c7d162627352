// Package sqlstore persists tasks with sqlx over SQLite (modernc.org/sqlite) or
// PostgreSQL (pgx).
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/crawler"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/task"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"

	timeLayout = time.RFC3339Nano
)

var ErrUnsupportedDriver = errors.New("unsupported store driver")

const schema = `CREATE TABLE IF NOT EXISTS crawl_tasks (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	domain TEXT NOT NULL,
	status TEXT NOT NULL,
	progress INTEGER NOT NULL,
	pages_scanned INTEGER NOT NULL,
	estimated_total_pages INTEGER NOT NULL,
	start_time TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	urls TEXT NOT NULL,
	pages TEXT NOT NULL,
	error TEXT NOT NULL,
	is_large_site BOOLEAN NOT NULL,
	estimated_url_count INTEGER NOT NULL
)`

const columns = `id, url, domain, status, progress, pages_scanned, estimated_total_pages,
	start_time, updated_at, urls, pages, error, is_large_site, estimated_url_count`

// Store is a task.Store backed by a SQL database.
type Store struct {
	db *sqlx.DB
}

type row struct {
	ID                  string `db:"id"`
	URL                 string `db:"url"`
	Domain              string `db:"domain"`
	Status              string `db:"status"`
	Progress            int    `db:"progress"`
	PagesScanned        int    `db:"pages_scanned"`
	EstimatedTotalPages int    `db:"estimated_total_pages"`
	StartTime           string `db:"start_time"`
	UpdatedAt           string `db:"updated_at"`
	URLs                string `db:"urls"`
	Pages               string `db:"pages"`
	Error               string `db:"error"`
	IsLargeSite         bool   `db:"is_large_site"`
	EstimatedURLCount   int    `db:"estimated_url_count"`
}

// Open connects to dsn with driver ("sqlite" or "pgx") and creates the schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	if driver == DriverSQLite && strings.Contains(dsn, ":memory:") {
		// Every connection to :memory: opens a separate database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, t *task.Task) error {
	r, err := toRow(t)
	if err != nil {
		return err
	}

	var exists int
	err = s.db.GetContext(ctx, &exists, s.db.Rebind(`SELECT COUNT(*) FROM crawl_tasks WHERE id = ?`), t.ID)
	if err != nil {
		return fmt.Errorf("check task %s: %w", t.ID, err)
	}
	if exists > 0 {
		return task.ErrExists
	}

	_, err = s.db.NamedExecContext(ctx, `INSERT INTO crawl_tasks (`+columns+`) VALUES (
		:id, :url, :domain, :status, :progress, :pages_scanned, :estimated_total_pages,
		:start_time, :updated_at, :urls, :pages, :error, :is_large_site, :estimated_url_count)`, r)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", t.ID, err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*task.Task, error) {
	var r row
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT `+columns+` FROM crawl_tasks WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, task.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}

	return fromRow(r)
}

func (s *Store) Update(ctx context.Context, t *task.Task) error {
	r, err := toRow(t)
	if err != nil {
		return err
	}

	result, err := s.db.NamedExecContext(ctx, `UPDATE crawl_tasks SET
		url = :url, domain = :domain, status = :status, progress = :progress,
		pages_scanned = :pages_scanned, estimated_total_pages = :estimated_total_pages,
		start_time = :start_time, updated_at = :updated_at, urls = :urls, pages = :pages,
		error = :error, is_large_site = :is_large_site, estimated_url_count = :estimated_url_count
		WHERE id = :id`, r)
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}

	return requireAffected(result, t.ID)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM crawl_tasks WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}

	return requireAffected(result, id)
}

func (s *Store) List(ctx context.Context) ([]*task.Task, error) {
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+columns+` FROM crawl_tasks`); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	tasks := make([]*task.Task, 0, len(rows))
	for _, r := range rows {
		t, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}

	task.SortByStart(tasks)

	return tasks, nil
}

func requireAffected(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for task %s: %w", id, err)
	}
	if affected == 0 {
		return task.ErrNotFound
	}

	return nil
}

func toRow(t *task.Task) (row, error) {
	urls, err := json.Marshal(nonNil(t.URLs))
	if err != nil {
		return row{}, fmt.Errorf("encode urls of task %s: %w", t.ID, err)
	}

	pages := t.Pages
	if pages == nil {
		pages = []crawler.PageDetail{}
	}
	pagesJSON, err := json.Marshal(pages)
	if err != nil {
		return row{}, fmt.Errorf("encode pages of task %s: %w", t.ID, err)
	}

	return row{
		ID:                  t.ID,
		URL:                 t.URL,
		Domain:              t.Domain,
		Status:              string(t.Status),
		Progress:            t.Progress,
		PagesScanned:        t.PagesScanned,
		EstimatedTotalPages: t.EstimatedTotalPages,
		StartTime:           t.StartTime.UTC().Format(timeLayout),
		UpdatedAt:           t.UpdatedAt.UTC().Format(timeLayout),
		URLs:                string(urls),
		Pages:               string(pagesJSON),
		Error:               t.Error,
		IsLargeSite:         t.IsLargeSite,
		EstimatedURLCount:   t.EstimatedURLCount,
	}, nil
}

func fromRow(r row) (*task.Task, error) {
	startTime, err := time.Parse(timeLayout, r.StartTime)
	if err != nil {
		return nil, fmt.Errorf("decode start_time of task %s: %w", r.ID, err)
	}
	updatedAt, err := time.Parse(timeLayout, r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("decode updated_at of task %s: %w", r.ID, err)
	}

	t := &task.Task{
		ID:                  r.ID,
		URL:                 r.URL,
		Domain:              r.Domain,
		Status:              task.Status(r.Status),
		Progress:            r.Progress,
		PagesScanned:        r.PagesScanned,
		EstimatedTotalPages: r.EstimatedTotalPages,
		StartTime:           startTime,
		UpdatedAt:           updatedAt,
		Error:               r.Error,
		IsLargeSite:         r.IsLargeSite,
		EstimatedURLCount:   r.EstimatedURLCount,
	}

	if err := json.Unmarshal([]byte(r.URLs), &t.URLs); err != nil {
		return nil, fmt.Errorf("decode urls of task %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Pages), &t.Pages); err != nil {
		return nil, fmt.Errorf("decode pages of task %s: %w", r.ID, err)
	}
	if len(t.Pages) == 0 {
		t.Pages = nil
	}

	return t, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}

	return values
}
