package main

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"blogicum/pkg/storage"
)

// seed adds the categories and locations listed in the config file that the
// store does not have yet. Categories are matched by slug, locations by name.
func seed(ctx context.Context, db storage.Storage, cats []storage.Category, locs []storage.Location) error {
	for _, c := range cats {
		_, err := db.CategoryBySlug(ctx, c.Slug)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if _, err := db.AddCategory(ctx, c); err != nil && !errors.Is(err, storage.ErrSlugTaken) {
			return err
		}
		log.Infof("[seed] added category %q", c.Slug)
	}

	existing, err := db.Locations(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, l := range existing {
		known[l.Name] = true
	}
	for _, l := range locs {
		if known[l.Name] {
			continue
		}
		if _, err := db.AddLocation(ctx, l); err != nil {
			return err
		}
		known[l.Name] = true
		log.Infof("[seed] added location %q", l.Name)
	}

	return nil
}
