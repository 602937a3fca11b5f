package store

import (
	"context"
	"fmt"

	"github.com/starford/feedwise/internal/apperr"
	"github.com/starford/feedwise/internal/models"
)

// Export returns a read-only snapshot of every profile.
func (db *DB) Export(ctx context.Context) (models.Snapshot, error) {
	profiles, err := db.List(ctx)
	if err != nil {
		return models.Snapshot{}, err
	}
	return models.Snapshot{
		Profiles:   profiles,
		ExportDate: db.now().UTC(),
		Version:    models.SnapshotVersion,
	}, nil
}

// Import atomically replaces every stored profile with the snapshot's
// profiles, preserving their ids where present. The payload is validated
// first; then a single transaction clears the table and inserts the records
// that carry an id before the ones that do not, so an assigned id never
// takes one that is still to be inserted.
// If any step fails the transaction is rolled back and the previous profiles
// remain. An empty snapshot clears the store.
func (db *DB) Import(ctx context.Context, snap models.Snapshot) error {
	type record struct {
		pos int
		p   models.Profile
	}
	seen := make(map[int64]struct{}, len(snap.Profiles))
	var keyed, fresh []record
	for i, p := range snap.Profiles {
		p.MealTimes = models.ParseMealTimes(p.MealTimes...)
		if err := p.Validate(); err != nil {
			return fmt.Errorf("store: import profile #%d: %w", i, err)
		}
		if p.ID > 0 {
			if _, dup := seen[p.ID]; dup {
				return apperr.InvalidFormat(fmt.Sprintf("duplicate profile id %d", p.ID), nil)
			}
			seen[p.ID] = struct{}{}
			keyed = append(keyed, record{pos: i, p: p})
			continue
		}
		fresh = append(fresh, record{pos: i, p: p})
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Persistence("begin import", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM profiles`); err != nil {
		return apperr.Persistence("clear profiles", err)
	}
	for _, r := range append(keyed, fresh...) {
		if _, err := insertProfile(ctx, tx, r.p); err != nil {
			return fmt.Errorf("store: import profile #%d: %w", r.pos, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.Persistence("commit import", err)
	}
	return nil
}
