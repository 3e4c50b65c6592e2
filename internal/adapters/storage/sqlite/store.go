package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/PabloGalante/resq-agent/internal/domain"
)

// Store keeps cases in a local SQLite file.
type Store struct {
	DB *sql.DB
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

const caseColumns = `id,emergency,name,location,number,transcript,priority,method,status,in_progress,
coordinates,city,district,state,country,created_at,resolved_at`

// UpsertCase replaces the live fields of an open case. created_at is kept from
// the first insert and a resolved row is never touched.
func (s *Store) UpsertCase(ctx context.Context, c *domain.Case) error {
	coords, err := encodeCoordinates(c.Coordinates)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `INSERT INTO cases(`+caseColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,NULL)
ON CONFLICT(id) DO UPDATE SET
  emergency=excluded.emergency,
  name=excluded.name,
  location=excluded.location,
  number=excluded.number,
  transcript=excluded.transcript,
  priority=excluded.priority,
  method=excluded.method,
  in_progress=excluded.in_progress,
  coordinates=excluded.coordinates,
  city=excluded.city,
  district=excluded.district,
  state=excluded.state,
  country=excluded.country
WHERE cases.status <> 'resolved'`,
		string(c.ID), c.Emergency, c.Name, c.Location, c.Number, c.Transcript,
		int(c.Priority), string(c.Method), string(domain.StatusOpen), c.InProgress,
		coords, c.Region.City, c.Region.District, c.Region.State, c.Region.Country,
		formatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert case %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) GetCase(ctx context.Context, id domain.CaseID) (*domain.Case, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE id=?`, string(id))
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCaseNotFound
	}
	return c, err
}

func (s *Store) ListOpenCases(ctx context.Context) ([]*domain.Case, error) {
	return s.list(ctx, domain.StatusOpen)
}

func (s *Store) ListResolvedCases(ctx context.Context) ([]*domain.Case, error) {
	return s.list(ctx, domain.StatusResolved)
}

func (s *Store) ResolveCase(ctx context.Context, id domain.CaseID, at time.Time) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `UPDATE cases SET status=?, in_progress=0, resolved_at=? WHERE id=?`,
		string(domain.StatusResolved), formatTime(at), string(id))
	if err != nil {
		return false, fmt.Errorf("resolve case %s: %w", id, err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

func (s *Store) list(ctx context.Context, status domain.CaseStatus) ([]*domain.Case, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE status=? ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list %s cases: %w", status, err)
	}
	defer rows.Close()

	var out []*domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCase(row scanner) (*domain.Case, error) {
	var (
		c          domain.Case
		id         string
		priority   int
		method     string
		status     string
		coords     sql.NullString
		createdAt  string
		resolvedAt sql.NullString
	)
	err := row.Scan(&id, &c.Emergency, &c.Name, &c.Location, &c.Number, &c.Transcript,
		&priority, &method, &status, &c.InProgress, &coords,
		&c.Region.City, &c.Region.District, &c.Region.State, &c.Region.Country,
		&createdAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	c.ID = domain.CaseID(id)
	c.Priority = domain.Priority(priority)
	c.Method = domain.ClassificationMethod(method)
	c.Status = domain.CaseStatus(status)

	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		at, err := parseTime(resolvedAt.String)
		if err != nil {
			return nil, err
		}
		c.ResolvedAt = &at
	}
	if coords.Valid && coords.String != "" {
		var v domain.Coordinates
		if err := json.Unmarshal([]byte(coords.String), &v); err != nil {
			return nil, fmt.Errorf("decode coordinates for %s: %w", id, err)
		}
		c.Coordinates = &v
	}
	return &c, nil
}

func encodeCoordinates(c *domain.Coordinates) (any, error) {
	if c == nil {
		return nil, nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode coordinates: %w", err)
	}
	return string(b), nil
}

// Times are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
