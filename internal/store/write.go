package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/polystore/internal/entity"
	"github.com/roach88/polystore/internal/snapshot"
)

// Save replaces the stored catalog with snap's contents.
//
// Generations must be saved in increasing order; saving a generation that is
// not newer than the last saved one fails and leaves the store unchanged.
// Save satisfies catalog.Persister.
func (s *Store) Save(ctx context.Context, snap *snapshot.Snapshot) error {
	digest, err := snap.Digest()
	if err != nil {
		return fmt.Errorf("save generation %d: %w", snap.Generation(), err)
	}
	contents := snap.Contents()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(generation) FROM generations`).Scan(&last); err != nil {
		return fmt.Errorf("read last generation: %w", err)
	}
	if last.Valid && contents.Generation <= last.Int64 {
		return fmt.Errorf("save generation %d: store already holds generation %d", contents.Generation, last.Int64)
	}

	for _, stmt := range []string{`DELETE FROM entities`, `DELETE FROM namespaces`, `DELETE FROM adapters`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear catalog: %w", err)
		}
	}

	for _, a := range contents.Adapters {
		payload, err := entity.MarshalAdapter(a)
		if err != nil {
			return fmt.Errorf("marshal adapter %d: %w", a.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO adapters (id, name, payload) VALUES (?, ?, ?)`,
			a.ID, a.Name, string(payload),
		); err != nil {
			return fmt.Errorf("insert adapter %d: %w", a.ID, err)
		}
	}

	var count int
	for _, nc := range contents.Namespaces {
		payload, err := entity.MarshalNamespace(nc.Namespace)
		if err != nil {
			return fmt.Errorf("marshal namespace %d: %w", nc.Namespace.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO namespaces (id, name, payload) VALUES (?, ?, ?)`,
			nc.Namespace.ID, nc.Namespace.Name, string(payload),
		); err != nil {
			return fmt.Errorf("insert namespace %d: %w", nc.Namespace.ID, err)
		}

		for _, e := range namespaceEntities(nc) {
			if err := insertEntity(ctx, tx, e); err != nil {
				return err
			}
			count++
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO generations (generation, digest, entity_count) VALUES (?, ?, ?)`,
		contents.Generation, digest, count,
	); err != nil {
		return fmt.Errorf("insert generation %d: %w", contents.Generation, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit generation %d: %w", contents.Generation, err)
	}
	return nil
}

func insertEntity(ctx context.Context, tx *sql.Tx, e entity.Entity) error {
	payload, err := entity.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO entities (id, layer, namespace_id, payload) VALUES (?, ?, ?, ?)`,
		e.EntityID(), string(e.Layer()), e.Namespace(), string(payload),
	); err != nil {
		return fmt.Errorf("insert entity %d: %w", e.EntityID(), err)
	}
	return nil
}

func namespaceEntities(nc snapshot.NamespaceContents) []entity.Entity {
	out := make([]entity.Entity, 0, len(nc.Logicals)+len(nc.Allocations)+len(nc.Physicals))
	for _, e := range nc.Logicals {
		out = append(out, e)
	}
	for _, e := range nc.Allocations {
		out = append(out, e)
	}
	for _, e := range nc.Physicals {
		out = append(out, e)
	}
	return out
}
