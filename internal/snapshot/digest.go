package snapshot

import (
	"fmt"

	"github.com/roach88/polystore/internal/codec"
	"github.com/roach88/polystore/internal/entity"
)

// Digest returns a content hash of the snapshot.
//
// The generation number is not part of the hash: two snapshots holding the
// same namespaces, entities and adapters have the same digest.
func (s *Snapshot) Digest() (string, error) {
	namespaces := make(codec.Array, 0, len(s.namespaces))
	for _, ns := range s.Namespaces() {
		view := s.namespaces[ns.ID]
		ents := make(codec.Array, len(view.entities))
		for i, e := range view.entities {
			ents[i] = entity.ToObject(e)
		}
		namespaces = append(namespaces, codec.Object{
			"id":             codec.Int(ns.ID),
			"name":           codec.String(ns.Name),
			"data_model":     codec.String(ns.Model),
			"case_sensitive": codec.Bool(ns.CaseSensitive),
			"entities":       ents,
		})
	}

	adapters := make(codec.Array, 0, len(s.adapters))
	for _, a := range s.Adapters() {
		settings := make(codec.Object, len(a.Settings))
		for k, v := range a.Settings {
			settings[k] = codec.String(v)
		}
		adapters = append(adapters, codec.Object{
			"id":           codec.Int(a.ID),
			"name":         codec.String(a.Name),
			"adapter_type": codec.String(a.Type),
			"convention":   codec.String(a.Convention),
			"settings":     settings,
		})
	}

	d, err := codec.Digest(codec.DomainSnapshot, codec.Object{
		"namespaces": namespaces,
		"adapters":   adapters,
	})
	if err != nil {
		return "", fmt.Errorf("snapshot digest: %w", err)
	}
	return d, nil
}
