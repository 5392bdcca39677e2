// Package repositories assembles the Postgres implementation of the engine's store.
package repositories

import (
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/matcher/internal/repositories/attribute"
	"github.com/Ramsey-B/matcher/internal/repositories/link"
	"github.com/Ramsey-B/matcher/internal/repositories/object"
	"github.com/Ramsey-B/matcher/internal/repositories/relation"
	"github.com/Ramsey-B/matcher/internal/repositories/scrap"
	"github.com/Ramsey-B/matcher/pkg/database"
	"github.com/Ramsey-B/matcher/pkg/store"
)

func NewStore(db database.DB, logger ectologger.Logger) *store.Store {
	return &store.Store{
		Tx:         db,
		Objects:    object.NewRepository(db, logger),
		Links:      link.NewRepository(db, logger),
		Attributes: attribute.NewRepository(db, logger),
		Relations:  relation.NewRepository(db, logger),
		Scraps:     scrap.NewRepository(db, logger),
	}
}
