package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/polystore/internal/entity"
	"github.com/roach88/polystore/internal/snapshot"
)

// GenerationRecord is one entry of the commit history.
type GenerationRecord struct {
	Generation  int64
	Digest      string
	EntityCount int
}

// Load returns the latest saved catalog contents.
// The boolean is false when nothing has been saved yet.
func (s *Store) Load(ctx context.Context) (snapshot.Contents, bool, error) {
	var gen int64
	err := s.db.QueryRowContext(ctx,
		`SELECT generation FROM generations ORDER BY generation DESC LIMIT 1`,
	).Scan(&gen)
	if errors.Is(err, sql.ErrNoRows) {
		return snapshot.Contents{}, false, nil
	}
	if err != nil {
		return snapshot.Contents{}, false, fmt.Errorf("read last generation: %w", err)
	}

	contents := snapshot.Contents{Generation: gen}

	adapters, err := queryPayloads(ctx, s.db, `SELECT payload FROM adapters ORDER BY id ASC`)
	if err != nil {
		return snapshot.Contents{}, false, fmt.Errorf("load adapters: %w", err)
	}
	for _, p := range adapters {
		a, err := entity.UnmarshalAdapter([]byte(p))
		if err != nil {
			return snapshot.Contents{}, false, fmt.Errorf("load adapters: %w", err)
		}
		contents.Adapters = append(contents.Adapters, a)
	}

	namespaces, err := queryPayloads(ctx, s.db, `SELECT payload FROM namespaces ORDER BY id ASC`)
	if err != nil {
		return snapshot.Contents{}, false, fmt.Errorf("load namespaces: %w", err)
	}
	index := make(map[int64]int, len(namespaces))
	for _, p := range namespaces {
		ns, err := entity.UnmarshalNamespace([]byte(p))
		if err != nil {
			return snapshot.Contents{}, false, fmt.Errorf("load namespaces: %w", err)
		}
		index[ns.ID] = len(contents.Namespaces)
		contents.Namespaces = append(contents.Namespaces, snapshot.NamespaceContents{Namespace: ns})
	}

	entities, err := queryPayloads(ctx, s.db, `SELECT payload FROM entities ORDER BY id ASC`)
	if err != nil {
		return snapshot.Contents{}, false, fmt.Errorf("load entities: %w", err)
	}
	for _, p := range entities {
		e, err := entity.Unmarshal([]byte(p))
		if err != nil {
			return snapshot.Contents{}, false, fmt.Errorf("load entities: %w", err)
		}
		i, ok := index[e.Namespace()]
		if !ok {
			return snapshot.Contents{}, false, fmt.Errorf("load entities: entity %d references unknown namespace %d", e.EntityID(), e.Namespace())
		}
		nc := &contents.Namespaces[i]
		switch v := e.(type) {
		case entity.Logical:
			nc.Logicals = append(nc.Logicals, v)
		case entity.Allocation:
			nc.Allocations = append(nc.Allocations, v)
		case entity.Physical:
			nc.Physicals = append(nc.Physicals, v)
		}
	}

	return contents, true, nil
}

// History returns every saved generation, oldest first.
func (s *Store) History(ctx context.Context) ([]GenerationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT generation, digest, entity_count FROM generations ORDER BY generation ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query generations: %w", err)
	}
	defer rows.Close()

	// Return empty slice, not nil.
	out := []GenerationRecord{}
	for rows.Next() {
		var r GenerationRecord
		if err := rows.Scan(&r.Generation, &r.Digest, &r.EntityCount); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generations: %w", err)
	}
	return out, nil
}

func queryPayloads(ctx context.Context, db *sql.DB, query string) ([]string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
