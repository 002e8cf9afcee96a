package devapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/security"
)

var errNotFound = errors.New("not found")

// Record kinds. Every sales entity is stored as a JSON document keyed by
// kind and numeric id.
const (
	kindProjects     = "proyectos"
	kindProspects    = "prospectos"
	kindReservations = "reservas"
	kindContracts    = "contratos"
	kindExtensions   = "prorrogas"
	kindTeams        = "equipos"
)

type userRecord struct {
	ID       int64
	Email    string
	Hash     string
	Nombre   string
	Apellido string
	Rol      string
	Telefono string
	EquipoID int64
}

func (u userRecord) backendID() backend.ID { return idOf(u.ID) }

func (u userRecord) fullName() string {
	return strings.TrimSpace(u.Nombre + " " + u.Apellido)
}

func (u userRecord) isAdmin() bool {
	switch strings.ToLower(u.Rol) {
	case "admin", "superadmin":
		return true
	}
	return false
}

// Store persists users and sales records in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema(ctx context.Context) error {
	statements := []string{
		`PRAGMA foreign_keys = ON;`,
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			nombre TEXT NOT NULL,
			apellido TEXT NOT NULL DEFAULT '',
			rol TEXT NOT NULL,
			telefono TEXT NOT NULL DEFAULT '',
			equipo_id INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS records (
			kind TEXT NOT NULL,
			id INTEGER NOT NULL,
			body TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY(kind, id)
		);`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}
	}
	return nil
}

// ensureUser creates the user or resets its password and profile.
func (s *Store) ensureUser(ctx context.Context, u userRecord, password string) (int64, error) {
	hash, err := security.HashPassword(password)
	if err != nil {
		return 0, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, nombre, apellido, rol, telefono, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email)
		DO UPDATE SET password_hash = excluded.password_hash, nombre = excluded.nombre,
			apellido = excluded.apellido, rol = excluded.rol, telefono = excluded.telefono;
	`, strings.ToLower(u.Email), hash, u.Nombre, u.Apellido, u.Rol, u.Telefono, time.Now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("ensure user %s: %w", u.Email, err)
	}
	got, err := s.userByEmail(ctx, u.Email)
	if err != nil {
		return 0, err
	}
	return got.ID, nil
}

const userColumns = `id, email, password_hash, nombre, apellido, rol, telefono, equipo_id`

func scanUser(row interface{ Scan(...any) error }) (userRecord, error) {
	var u userRecord
	err := row.Scan(&u.ID, &u.Email, &u.Hash, &u.Nombre, &u.Apellido, &u.Rol, &u.Telefono, &u.EquipoID)
	return u, err
}

func (s *Store) userByEmail(ctx context.Context, email string) (userRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?;`, strings.ToLower(strings.TrimSpace(email)))
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return userRecord{}, errNotFound
	}
	return u, err
}

func (s *Store) userByID(ctx context.Context, id int64) (userRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?;`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return userRecord{}, errNotFound
	}
	return u, err
}

func (s *Store) listUsers(ctx context.Context) ([]userRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []userRecord
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// setTeam assigns every user in ids to team, or clears the team when team is 0.
func (s *Store) setTeam(ctx context.Context, team int64, ids []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE users SET equipo_id = ? WHERE id = ?;`, team, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) clearTeam(ctx context.Context, team int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET equipo_id = 0 WHERE equipo_id = ?;`, team)
	return err
}

func (s *Store) count(ctx context.Context, kind string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE kind = ?;`, kind).Scan(&n)
	return n, err
}

// listRecords decodes every record of kind into T, ordered by id.
func listRecords[T any](ctx context.Context, s *Store, kind string) ([]T, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM records WHERE kind = ? ORDER BY id;`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(body), &v); err != nil {
			return nil, fmt.Errorf("decode %s record: %w", kind, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func getRecord[T any](ctx context.Context, s *Store, kind string, id backend.ID) (T, error) {
	var v T
	n, ok := parseID(id)
	if !ok {
		return v, errNotFound
	}
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM records WHERE kind = ? AND id = ?;`, kind, n).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return v, errNotFound
	}
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return v, fmt.Errorf("decode %s record: %w", kind, err)
	}
	return v, nil
}

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// inTx runs fn in a transaction and commits when it returns nil. fn must
// only use tx: the pool holds a single connection.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// insertRecord allocates the next id for kind and stores build(id).
func insertRecord[T any](ctx context.Context, s *Store, kind string, build func(id backend.ID) T) (backend.ID, error) {
	var id backend.ID
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = insertRecordTx(ctx, tx, kind, build)
		return err
	})
	return id, err
}

func insertRecordTx[T any](ctx context.Context, tx *sql.Tx, kind string, build func(id backend.ID) T) (backend.ID, error) {
	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM records WHERE kind = ?;`, kind).Scan(&next); err != nil {
		return "", err
	}
	id := idOf(next)
	body, err := json.Marshal(build(id))
	if err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO records (kind, id, body, updated_at) VALUES (?, ?, ?, ?);`,
		kind, next, string(body), time.Now().UTC().Unix()); err != nil {
		return "", err
	}
	return id, nil
}

func putRecord(ctx context.Context, s *Store, kind string, id backend.ID, v any) error {
	return putRecordTx(ctx, s.db, kind, id, v)
}

func putRecordTx(ctx context.Context, db dbtx, kind string, id backend.ID, v any) error {
	n, ok := parseID(id)
	if !ok {
		return errNotFound
	}
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `UPDATE records SET body = ?, updated_at = ? WHERE kind = ? AND id = ?;`,
		string(body), time.Now().UTC().Unix(), kind, n)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return errNotFound
	}
	return nil
}

func deleteRecord(ctx context.Context, s *Store, kind string, id backend.ID) error {
	n, ok := parseID(id)
	if !ok {
		return errNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE kind = ? AND id = ?;`, kind, n)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return errNotFound
	}
	return nil
}

func idOf(n int64) backend.ID { return backend.ID(strconv.FormatInt(n, 10)) }

func parseID(id backend.ID) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(string(id)), 10, 64)
	return n, err == nil && n > 0
}
