package journal

import (
	"fmt"
	"time"

	"github.com/lawnchairsociety/cliffbrush/internal/history"
)

// CopyStats counts the rows a copy wrote, or would write on a dry run.
type CopyStats struct {
	Sessions   int64
	Placements int64
}

// CopyTo copies every session and its placements into dst, replacing any
// session dst already holds under the same id. Timestamps are preserved.
// With dryRun set nothing is written.
func (j *Journal) CopyTo(dst *Journal, dryRun bool) (CopyStats, error) {
	var stats CopyStats

	records, err := j.ListSessions()
	if err != nil {
		return stats, err
	}

	for _, rec := range records {
		placements, err := j.LoadPlacements(rec.ID)
		if err != nil {
			return stats, err
		}
		if !dryRun {
			if err := dst.importSession(rec, placements); err != nil {
				return stats, fmt.Errorf("session %s: %w", rec.ID, err)
			}
		}
		stats.Sessions++
		stats.Placements += int64(len(placements))
	}
	return stats, nil
}

// importSession writes one session and its whole stack in a transaction.
func (j *Journal) importSession(rec SessionRecord, placements []history.PlacedTile) error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(j.qb.Build(`DELETE FROM sessions WHERE id = ?`), rec.ID); err != nil {
		return fmt.Errorf("failed to replace session: %w", err)
	}

	var endedAt *time.Time
	if rec.EndedAt != nil {
		t := rec.EndedAt.UTC()
		endedAt = &t
	}
	_, err = tx.Exec(j.qb.Build(`INSERT INTO sessions (id, tile_set, started_at, ended_at) VALUES (?, ?, ?, ?)`),
		rec.ID, rec.TileSet, rec.StartedAt.UTC(), endedAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	insert := j.qb.Build(`
		INSERT INTO placements (session_id, seq, tile_set, tile_index, x, y)
		VALUES (?, ?, ?, ?, ?, ?)`)
	for seq, p := range placements {
		if _, err := tx.Exec(insert, rec.ID, seq, p.Tile.TileSet, p.Tile.Index, p.Coords.X, p.Coords.Y); err != nil {
			return fmt.Errorf("failed to insert placement %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
