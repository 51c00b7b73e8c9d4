// Package journal persists editing sessions and their placement stacks so a
// session can be resumed after a reconnect or restart.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lawnchairsociety/cliffbrush/internal/history"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var (
	ErrSessionNotFound = errors.New("journal: session not found")
	ErrUnknownDriver   = errors.New("journal: unknown driver")
	ErrNegativeSeq     = errors.New("journal: negative sequence number")
)

const truncateQuery = `DELETE FROM placements WHERE session_id = ? AND seq >= ?`

// Journal wraps the database connection.
type Journal struct {
	db      *sql.DB
	dialect Dialect
	qb      *QueryBuilder
}

// SessionRecord describes one journaled session.
type SessionRecord struct {
	ID         string
	TileSet    string
	StartedAt  time.Time
	EndedAt    *time.Time
	Placements int
}

// Open opens or creates the SQLite journal at the given path.
func Open(path string) (*Journal, error) {
	return OpenWithConfig(DefaultConfig(path))
}

// OpenWithConfig connects to the configured driver and creates the schema.
func OpenWithConfig(cfg Config) (*Journal, error) {
	var (
		dialect Dialect
		dsn     string
	)

	switch DialectType(cfg.Driver) {
	case DialectSQLite, "":
		dialect = NewDialect(DialectSQLite)
		dir := filepath.Dir(cfg.SQLitePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
		dsn = cfg.SQLitePath
	case DialectPostgres:
		dialect = NewDialect(DialectPostgres)
		dsn = cfg.Postgres.DSN()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if _, ok := dialect.(*PostgresDialect); ok {
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
	} else {
		// PRAGMAs are per connection
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	for _, stmt := range dialect.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize journal (%s): %w", stmt, err)
		}
	}

	j := &Journal{db: db, dialect: dialect, qb: NewQueryBuilder(dialect)}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Dialect returns the SQL dialect in use.
func (j *Journal) Dialect() Dialect {
	return j.dialect
}

// migrate creates the database schema if it doesn't exist.
func (j *Journal) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			tile_set TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ended_at TIMESTAMP
		)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS placements (
			id %s,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			tile_set TEXT NOT NULL,
			tile_index INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			UNIQUE(session_id, seq)
		)`, j.dialect.SerialPrimaryKey()),

		`CREATE INDEX IF NOT EXISTS idx_placements_session_id ON placements(session_id)`,
	}

	for _, m := range migrations {
		if _, err := j.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

func (j *Journal) exec(query string, args ...any) (sql.Result, error) {
	return j.db.Exec(j.qb.Build(query), args...)
}

// StartSession creates the session row, or reopens it when the id is already
// journaled. Reopening with an empty tile set keeps the journaled one.
func (j *Journal) StartSession(id, tileSet string) error {
	_, err := j.exec(`
		INSERT INTO sessions (id, tile_set) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET
			tile_set = COALESCE(NULLIF(excluded.tile_set, ''), sessions.tile_set),
			ended_at = NULL`,
		id, tileSet)
	if err != nil {
		return fmt.Errorf("failed to start session %s: %w", id, err)
	}
	return nil
}

// EndSession stamps the session as ended. Its placements are kept.
func (j *Journal) EndSession(id string) error {
	result, err := j.exec(`UPDATE sessions SET ended_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to end session %s: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// AppendPlacement stores tile at position seq of the session's stack. Any
// entries at seq or above are replaced, so the journal always mirrors the stack.
func (j *Journal) AppendPlacement(id string, seq int, tile history.PlacedTile) error {
	if seq < 0 {
		return ErrNegativeSeq
	}

	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(j.qb.Build(truncateQuery), id, seq); err != nil {
		return fmt.Errorf("failed to clear placements: %w", err)
	}

	_, err = tx.Exec(j.qb.Build(`
		INSERT INTO placements (session_id, seq, tile_set, tile_index, x, y)
		VALUES (?, ?, ?, ?, ?, ?)`),
		id, seq, tile.Tile.TileSet, tile.Tile.Index, tile.Coords.X, tile.Coords.Y)
	if err != nil {
		if j.dialect.IsForeignKeyError(err) {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return fmt.Errorf("failed to insert placement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// TruncatePlacements removes every placement with a sequence number of seq or more.
func (j *Journal) TruncatePlacements(id string, seq int) error {
	if seq < 0 {
		return ErrNegativeSeq
	}
	if _, err := j.exec(truncateQuery, id, seq); err != nil {
		return fmt.Errorf("failed to truncate placements: %w", err)
	}
	return nil
}

// LoadPlacements returns the session's stack, oldest first.
func (j *Journal) LoadPlacements(id string) ([]history.PlacedTile, error) {
	rows, err := j.db.Query(j.qb.Build(`
		SELECT tile_set, tile_index, x, y
		FROM placements
		WHERE session_id = ?
		ORDER BY seq`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query placements: %w", err)
	}
	defer rows.Close()

	var placements []history.PlacedTile
	for rows.Next() {
		var p history.PlacedTile
		if err := rows.Scan(&p.Tile.TileSet, &p.Tile.Index, &p.Coords.X, &p.Coords.Y); err != nil {
			return nil, fmt.Errorf("failed to scan placement: %w", err)
		}
		placements = append(placements, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read placements: %w", err)
	}
	return placements, nil
}

// GetSession returns the session row and its placement count.
func (j *Journal) GetSession(id string) (*SessionRecord, error) {
	var (
		rec     SessionRecord
		endedAt sql.NullTime
	)
	err := j.db.QueryRow(j.qb.Build(`
		SELECT s.id, s.tile_set, s.started_at, s.ended_at,
		       (SELECT COUNT(*) FROM placements p WHERE p.session_id = s.id)
		FROM sessions s
		WHERE s.id = ?`), id).Scan(&rec.ID, &rec.TileSet, &rec.StartedAt, &endedAt, &rec.Placements)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	if endedAt.Valid {
		rec.EndedAt = &endedAt.Time
	}
	return &rec, nil
}

// SessionTileSet returns the tile set journaled for id, or "" when the
// session is unknown.
func (j *Journal) SessionTileSet(id string) (string, error) {
	rec, err := j.GetSession(id)
	if errors.Is(err, ErrSessionNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return rec.TileSet, nil
}

// DeleteSession removes a session and its placements.
func (j *Journal) DeleteSession(id string) error {
	result, err := j.exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// ListSessions returns every journaled session, oldest first.
func (j *Journal) ListSessions() ([]SessionRecord, error) {
	rows, err := j.db.Query(`
		SELECT s.id, s.tile_set, s.started_at, s.ended_at,
		       (SELECT COUNT(*) FROM placements p WHERE p.session_id = s.id)
		FROM sessions s
		ORDER BY s.started_at, s.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var (
			rec     SessionRecord
			endedAt sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.TileSet, &rec.StartedAt, &endedAt, &rec.Placements); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if endedAt.Valid {
			rec.EndedAt = &endedAt.Time
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}
	return records, nil
}
