package processor

import (
	"context"

	merrors "github.com/Ramsey-B/matcher/pkg/errors"
	"github.com/Ramsey-B/matcher/pkg/models"
)

// RelationObserver is notified of every typed edge a scrap run writes, after it is
// committed. Observers passed to NewProcessor that implement it receive edges too.
type RelationObserver interface {
	ObserveEdge(ctx context.Context, scrap models.Scrap, edge models.Edge)
}

// applyRelations writes the typed edges and person data carried by a resolved link.
// Targets are other records of the same platform; a target that was never resolved, or
// whose type does not fit the edge, is logged and skipped. The owner is read through the
// link because a later merge may have folded the object it was resolved to.
func (r *run) applyRelations(ctx context.Context, link models.RawLink) error {
	if !r.resolved[link.ExternalID] {
		return nil
	}
	st := r.processor.store

	var written []models.Edge
	err := r.withTimeout(ctx, func(ctx context.Context) error {
		written = written[:0]
		return st.Tx.WithinTx(ctx, func(ctx context.Context) error {
			ownerLink, err := st.Links.FindByKey(ctx, r.scrap.PlatformID, link.ExternalID)
			if err != nil {
				return err
			}
			owner, err := st.Objects.Get(ctx, ownerLink.ObjectID)
			if err != nil {
				return err
			}

			if link.Gender != nil {
				if owner.Type == models.ObjectTypePerson {
					if err := st.Relations.UpsertPerson(ctx, models.Person{ObjectID: owner.ID, Gender: *link.Gender}); err != nil {
						return err
					}
				} else {
					r.log.WithField("external_id", link.ExternalID).Warn("Ignoring gender on a non-person link")
				}
			}

			for _, rel := range link.Relations {
				edge, err := r.applyRelation(ctx, owner, rel)
				if err != nil {
					return err
				}
				if edge != nil {
					written = append(written, *edge)
				}
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	for _, edge := range written {
		for _, o := range r.processor.observers {
			if ro, ok := o.(RelationObserver); ok {
				ro.ObserveEdge(ctx, r.scrap, edge)
			}
		}
	}
	return nil
}

func (r *run) applyRelation(ctx context.Context, owner *models.CanonicalObject, rel models.RawRelation) (*models.Edge, error) {
	st := r.processor.store
	log := r.log.WithFields(map[string]any{
		"object_id":  owner.ID,
		"relation":   rel.Kind,
		"target_ref": rel.ExternalID,
	})

	targetLink, err := st.Links.FindByKey(ctx, r.scrap.PlatformID, rel.ExternalID)
	if err != nil {
		if merrors.IsNotFound(err) {
			log.Warn("Relation target is not resolved, skipping")
			return nil, nil
		}
		return nil, err
	}
	target, err := st.Objects.Get(ctx, targetLink.ObjectID)
	if err != nil {
		return nil, err
	}

	switch rel.Kind {
	case models.RelationSeasonOf:
		if owner.Type != models.ObjectTypeEpisode || target.Type != models.ObjectTypeSeason {
			break
		}
		edge := &models.Edge{Kind: rel.Kind, FromID: owner.ID, ToID: target.ID, Number: rel.Number}
		return edge, st.Relations.UpsertEpisode(ctx, models.Episode{ObjectID: owner.ID, SeasonID: &target.ID, Number: rel.Number})

	case models.RelationSerieOf:
		if owner.Type != models.ObjectTypeSeason || target.Type != models.ObjectTypeSerie {
			break
		}
		edge := &models.Edge{Kind: rel.Kind, FromID: owner.ID, ToID: target.ID, Number: rel.Number}
		return edge, st.Relations.UpsertSeason(ctx, models.Season{ObjectID: owner.ID, SerieID: &target.ID, Number: rel.Number})

	case models.RelationRole:
		person, work := owner, target
		if target.Type == models.ObjectTypePerson {
			person, work = target, owner
		}
		if person.Type != models.ObjectTypePerson || !isWork(work.Type) {
			break
		}
		role := models.RoleTypeActor
		if rel.Role != nil {
			role = *rel.Role
		}
		edge := &models.Edge{Kind: rel.Kind, FromID: person.ID, ToID: work.ID, Role: &role}
		return edge, st.Relations.UpsertRole(ctx, models.Role{PersonID: person.ID, ObjectID: work.ID, Role: role})
	}

	log.WithFields(map[string]any{
		"object_type": owner.Type.String(),
		"target_type": target.Type.String(),
	}).Warn("Relation does not fit the object types, skipping")
	return nil, nil
}

func isWork(t models.ObjectType) bool {
	return t == models.ObjectTypeMovie || t == models.ObjectTypeSerie || t == models.ObjectTypeEpisode
}
