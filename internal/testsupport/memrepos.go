package testsupport

import (
	"context"
	"sort"
	"time"

	merrors "github.com/Ramsey-B/matcher/pkg/errors"
	"github.com/Ramsey-B/matcher/pkg/models"
)

// Operation names accepted by FailNext, Delay and Race.
const (
	OpObjectsCreate        = "objects.create"
	OpObjectsGet           = "objects.get"
	OpObjectsLock          = "objects.lock"
	OpObjectsDelete        = "objects.delete"
	OpObjectsExisting      = "objects.existing"
	OpObjectsListByType    = "objects.list_by_type"
	OpLinksFindByKey       = "links.find_by_key"
	OpLinksCreate          = "links.create"
	OpLinksUpsertWorkMeta  = "links.upsert_work_meta"
	OpLinksList            = "links.list"
	OpLinksCount           = "links.count"
	OpLinksReassign        = "links.reassign"
	OpAttributesList       = "attributes.list"
	OpAttributesAppend     = "attributes.append"
	OpAttributesReassign   = "attributes.reassign"
	OpAttributesCandidates = "attributes.find_candidates"
	OpRelationsUpsert      = "relations.upsert"
	OpRelationsReassign    = "relations.reassign"
	OpScrapsCreate         = "scraps.create"
	OpScrapsAddRawLinks    = "scraps.add_raw_links"
	OpScrapsGet            = "scraps.get"
	OpScrapsLatest         = "scraps.latest"
	OpScrapsClaim          = "scraps.claim"
	OpScrapsFinish         = "scraps.finish"
	OpScrapsListRawLinks   = "scraps.list_raw_links"
	OpScrapsAttachLink     = "scraps.attach_link"
	OpScrapsNuke           = "scraps.nuke"
)

type memObjects struct{ m *MemStore }

func (r memObjects) Create(ctx context.Context, objectType models.ObjectType) (*models.CanonicalObject, error) {
	release, err := r.m.begin(ctx, OpObjectsCreate)
	if err != nil {
		return nil, err
	}
	defer release()

	obj := models.CanonicalObject{ID: r.m.data.next(), Type: objectType, CreatedAt: r.m.Now()}
	r.m.data.objects[obj.ID] = obj
	return &obj, nil
}

func (r memObjects) Get(ctx context.Context, id int64) (*models.CanonicalObject, error) {
	release, err := r.m.begin(ctx, OpObjectsGet)
	if err != nil {
		return nil, err
	}
	defer release()

	obj, ok := r.m.data.objects[id]
	if !ok {
		return nil, merrors.NewNotFoundError("object", id)
	}
	obj.Links = r.m.linksOf(id)
	obj.Attributes = r.m.attributesOf(id)
	return &obj, nil
}

func (r memObjects) Lock(ctx context.Context, ids []int64) ([]models.CanonicalObject, error) {
	release, err := r.m.begin(ctx, OpObjectsLock)
	if err != nil {
		return nil, err
	}
	defer release()

	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	r.m.faultMu.Lock()
	r.m.lockLog = append(r.m.lockLog, sorted)
	r.m.faultMu.Unlock()

	var out []models.CanonicalObject
	for _, id := range sorted {
		if obj, ok := r.m.data.objects[id]; ok {
			out = append(out, obj)
		}
	}
	return out, nil
}

func (r memObjects) Delete(ctx context.Context, id int64) error {
	release, err := r.m.begin(ctx, OpObjectsDelete)
	if err != nil {
		return err
	}
	defer release()

	if _, ok := r.m.data.objects[id]; !ok {
		return merrors.NewNotFoundError("object", id)
	}
	delete(r.m.data.objects, id)
	delete(r.m.data.episodes, id)
	delete(r.m.data.seasons, id)
	delete(r.m.data.persons, id)
	for role := range r.m.data.roles {
		if role.PersonID == id || role.ObjectID == id {
			delete(r.m.data.roles, role)
		}
	}
	return nil
}

func (r memObjects) ExistingIDs(ctx context.Context, ids []int64) ([]int64, error) {
	release, err := r.m.begin(ctx, OpObjectsExisting)
	if err != nil {
		return nil, err
	}
	defer release()

	var out []int64
	for _, id := range ids {
		if _, ok := r.m.data.objects[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r memObjects) ListIDsByType(ctx context.Context, objectType models.ObjectType, afterID int64, limit int) ([]int64, error) {
	release, err := r.m.begin(ctx, OpObjectsListByType)
	if err != nil {
		return nil, err
	}
	defer release()

	var ids []int64
	for id, obj := range r.m.data.objects {
		if obj.Type == objectType && id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type memLinks struct{ m *MemStore }

func (r memLinks) FindByKey(ctx context.Context, platformID int64, externalID string) (*models.ObjectLink, error) {
	release, err := r.m.begin(ctx, OpLinksFindByKey)
	if err != nil {
		return nil, err
	}
	defer release()

	id, ok := r.m.data.linkKeys[linkKey{platformID, externalID}]
	if !ok {
		return nil, merrors.NewNotFoundError("object link", externalID)
	}
	link := r.m.data.links[id]
	return &link, nil
}

func (r memLinks) Create(ctx context.Context, link *models.ObjectLink) error {
	release, err := r.m.begin(ctx, OpLinksCreate)
	if err != nil {
		return err
	}
	defer release()

	key := linkKey{link.PlatformID, link.ExternalID}
	if _, ok := r.m.data.linkKeys[key]; ok {
		return merrors.NewConflictError("object_links", "object_links_platform_id_external_id_key", nil)
	}
	if _, ok := r.m.data.objects[link.ObjectID]; !ok {
		return merrors.NewNotFoundError("object", link.ObjectID)
	}
	link.ID = r.m.data.next()
	link.CreatedAt = r.m.Now()
	r.m.data.links[link.ID] = *link
	r.m.data.linkKeys[key] = link.ID
	return nil
}

func (r memLinks) UpsertWorkMeta(ctx context.Context, linkID int64, meta models.WorkMeta) error {
	release, err := r.m.begin(ctx, OpLinksUpsertWorkMeta)
	if err != nil {
		return err
	}
	defer release()

	link, ok := r.m.data.links[linkID]
	if !ok {
		return merrors.NewNotFoundError("object link", linkID)
	}
	link.WorkMeta = &meta
	r.m.data.links[linkID] = link
	return nil
}

func (r memLinks) ListByObject(ctx context.Context, objectID int64) ([]models.ObjectLink, error) {
	release, err := r.m.begin(ctx, OpLinksList)
	if err != nil {
		return nil, err
	}
	defer release()
	return r.m.linksOf(objectID), nil
}

func (r memLinks) CountByObject(ctx context.Context, objectID int64) (int, error) {
	release, err := r.m.begin(ctx, OpLinksCount)
	if err != nil {
		return 0, err
	}
	defer release()
	return len(r.m.linksOf(objectID)), nil
}

func (r memLinks) Reassign(ctx context.Context, fromObjectID, toObjectID int64) (int, error) {
	release, err := r.m.begin(ctx, OpLinksReassign)
	if err != nil {
		return 0, err
	}
	defer release()

	moved := 0
	for id, link := range r.m.data.links {
		if link.ObjectID == fromObjectID {
			link.ObjectID = toObjectID
			r.m.data.links[id] = link
			moved++
		}
	}
	return moved, nil
}

type memAttributes struct{ m *MemStore }

func (r memAttributes) List(ctx context.Context, objectID int64) (models.AttributeSet, error) {
	release, err := r.m.begin(ctx, OpAttributesList)
	if err != nil {
		return nil, err
	}
	defer release()
	return r.m.attributesOf(objectID), nil
}

func (r memAttributes) Append(ctx context.Context, objectID int64, attrs models.AttributeSet) (int, error) {
	release, err := r.m.begin(ctx, OpAttributesAppend)
	if err != nil {
		return 0, err
	}
	defer release()

	if _, ok := r.m.data.objects[objectID]; !ok {
		return 0, merrors.NewNotFoundError("object", objectID)
	}
	added := r.m.attributesOf(objectID).Missing(attrs)
	for _, a := range added {
		a.ID = r.m.data.next()
		a.ObjectID = objectID
		a.CreatedAt = r.m.Now()
		r.m.data.attributes = append(r.m.data.attributes, a)
	}
	return len(added), nil
}

func (r memAttributes) Reassign(ctx context.Context, fromObjectID, toObjectID int64) (int, error) {
	release, err := r.m.begin(ctx, OpAttributesReassign)
	if err != nil {
		return 0, err
	}
	defer release()

	held := r.m.attributesOf(toObjectID)
	moved := 0
	kept := r.m.data.attributes[:0:0]
	for _, a := range r.m.data.attributes {
		if a.ObjectID == fromObjectID {
			if held.Contains(a) {
				continue
			}
			a.ObjectID = toObjectID
			held = append(held, a)
			moved++
		}
		kept = append(kept, a)
	}
	r.m.data.attributes = kept
	return moved, nil
}

func (r memAttributes) FindCandidates(ctx context.Context, objectType models.ObjectType, keys []models.MatchKey, limit int) ([]int64, error) {
	release, err := r.m.begin(ctx, OpAttributesCandidates)
	if err != nil {
		return nil, err
	}
	defer release()

	wanted := make(map[models.MatchKey]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}
	seen := map[int64]struct{}{}
	var ids []int64
	for _, a := range r.m.data.attributes {
		if _, ok := wanted[models.MatchKey{Name: a.Name, Value: a.Normalized}]; !ok {
			continue
		}
		if t, ok := r.m.objectType(a.ObjectID); !ok || t != objectType {
			continue
		}
		if _, ok := seen[a.ObjectID]; ok {
			continue
		}
		seen[a.ObjectID] = struct{}{}
		ids = append(ids, a.ObjectID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type memRelations struct{ m *MemStore }

func (r memRelations) UpsertEpisode(ctx context.Context, episode models.Episode) error {
	release, err := r.m.begin(ctx, OpRelationsUpsert)
	if err != nil {
		return err
	}
	defer release()
	r.m.data.episodes[episode.ObjectID] = episode
	return nil
}

func (r memRelations) UpsertSeason(ctx context.Context, season models.Season) error {
	release, err := r.m.begin(ctx, OpRelationsUpsert)
	if err != nil {
		return err
	}
	defer release()
	r.m.data.seasons[season.ObjectID] = season
	return nil
}

func (r memRelations) UpsertRole(ctx context.Context, role models.Role) error {
	release, err := r.m.begin(ctx, OpRelationsUpsert)
	if err != nil {
		return err
	}
	defer release()
	r.m.data.roles[role] = struct{}{}
	return nil
}

func (r memRelations) UpsertPerson(ctx context.Context, person models.Person) error {
	release, err := r.m.begin(ctx, OpRelationsUpsert)
	if err != nil {
		return err
	}
	defer release()
	r.m.data.persons[person.ObjectID] = person
	return nil
}

func (r memRelations) Reassign(ctx context.Context, fromObjectID, toObjectID int64) error {
	release, err := r.m.begin(ctx, OpRelationsReassign)
	if err != nil {
		return err
	}
	defer release()

	d := r.m.data
	if e, ok := d.episodes[fromObjectID]; ok {
		delete(d.episodes, fromObjectID)
		if target, exists := d.episodes[toObjectID]; exists {
			if target.SeasonID == nil {
				target.SeasonID = e.SeasonID
			}
			if target.Number == nil {
				target.Number = e.Number
			}
			d.episodes[toObjectID] = target
		} else {
			e.ObjectID = toObjectID
			d.episodes[toObjectID] = e
		}
	}
	if s, ok := d.seasons[fromObjectID]; ok {
		delete(d.seasons, fromObjectID)
		if target, exists := d.seasons[toObjectID]; exists {
			if target.SerieID == nil {
				target.SerieID = s.SerieID
			}
			if target.Number == nil {
				target.Number = s.Number
			}
			d.seasons[toObjectID] = target
		} else {
			s.ObjectID = toObjectID
			d.seasons[toObjectID] = s
		}
	}
	if p, ok := d.persons[fromObjectID]; ok {
		delete(d.persons, fromObjectID)
		if target, exists := d.persons[toObjectID]; exists {
			if target.Gender == models.GenderNotKnown {
				target.Gender = p.Gender
				d.persons[toObjectID] = target
			}
		} else {
			p.ObjectID = toObjectID
			d.persons[toObjectID] = p
		}
	}
	for id, e := range d.episodes {
		if e.SeasonID != nil && *e.SeasonID == fromObjectID {
			to := toObjectID
			e.SeasonID = &to
			d.episodes[id] = e
		}
	}
	for id, s := range d.seasons {
		if s.SerieID != nil && *s.SerieID == fromObjectID {
			to := toObjectID
			s.SerieID = &to
			d.seasons[id] = s
		}
	}
	for role := range d.roles {
		if role.PersonID != fromObjectID && role.ObjectID != fromObjectID {
			continue
		}
		delete(d.roles, role)
		if role.PersonID == fromObjectID {
			role.PersonID = toObjectID
		}
		if role.ObjectID == fromObjectID {
			role.ObjectID = toObjectID
		}
		d.roles[role] = struct{}{}
	}
	return nil
}

type memScraps struct{ m *MemStore }

func (r memScraps) Create(ctx context.Context, platformID int64) (*models.Scrap, error) {
	release, err := r.m.begin(ctx, OpScrapsCreate)
	if err != nil {
		return nil, err
	}
	defer release()

	now := r.m.Now()
	scrap := models.Scrap{
		ID:         r.m.data.next(),
		PlatformID: platformID,
		Status:     models.ScrapStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.m.data.scraps[scrap.ID] = scrap
	return &scrap, nil
}

func (r memScraps) AddRawLinks(ctx context.Context, scrapID int64, links []models.RawLink) error {
	release, err := r.m.begin(ctx, OpScrapsAddRawLinks)
	if err != nil {
		return err
	}
	defer release()

	if _, ok := r.m.data.scraps[scrapID]; !ok {
		return merrors.NewNotFoundError("scrap", scrapID)
	}
	existing := r.m.data.rawLinks[scrapID]
	for _, link := range links {
		link.ScrapID = scrapID
		link.Position = len(existing)
		existing = append(existing, link)
	}
	r.m.data.rawLinks[scrapID] = existing
	return nil
}

func (r memScraps) Get(ctx context.Context, id int64) (*models.Scrap, error) {
	release, err := r.m.begin(ctx, OpScrapsGet)
	if err != nil {
		return nil, err
	}
	defer release()

	scrap, ok := r.m.data.scraps[id]
	if !ok {
		return nil, merrors.NewNotFoundError("scrap", id)
	}
	return &scrap, nil
}

func (r memScraps) Latest(ctx context.Context) (*models.Scrap, error) {
	release, err := r.m.begin(ctx, OpScrapsLatest)
	if err != nil {
		return nil, err
	}
	defer release()

	var latest *models.Scrap
	for _, s := range r.m.data.scraps {
		if latest == nil || s.ID > latest.ID {
			s := s
			latest = &s
		}
	}
	if latest == nil {
		return nil, merrors.NewNotFoundError("scrap", "latest")
	}
	return latest, nil
}

func (r memScraps) Claim(ctx context.Context, id int64, workerID string, staleAfter time.Duration) (*models.Scrap, error) {
	release, err := r.m.begin(ctx, OpScrapsClaim)
	if err != nil {
		return nil, err
	}
	defer release()

	scrap, ok := r.m.data.scraps[id]
	if !ok {
		return nil, merrors.NewNotFoundError("scrap", id)
	}
	now := r.m.Now()
	stale := scrap.Status == models.ScrapStatusProcessing && scrap.ClaimedAt != nil &&
		staleAfter > 0 && now.Sub(*scrap.ClaimedAt) > staleAfter
	if !scrap.Status.Claimable() && !stale {
		return nil, merrors.NewConflictError("scrap", id, nil)
	}

	scrap.Status = models.ScrapStatusProcessing
	scrap.ClaimedBy = &workerID
	scrap.ClaimedAt = &now
	scrap.FinishedAt = nil
	scrap.Result = nil
	scrap.UpdatedAt = now
	r.m.data.scraps[id] = scrap
	return &scrap, nil
}

func (r memScraps) Finish(ctx context.Context, id int64, workerID string, status models.ScrapStatus, result models.ProcessingResult) error {
	release, err := r.m.begin(ctx, OpScrapsFinish)
	if err != nil {
		return err
	}
	defer release()

	scrap, ok := r.m.data.scraps[id]
	if !ok {
		return merrors.NewNotFoundError("scrap", id)
	}
	if scrap.Status != models.ScrapStatusProcessing || scrap.ClaimedBy == nil || *scrap.ClaimedBy != workerID {
		return merrors.NewConflictError("scrap", id, nil)
	}
	now := r.m.Now()
	scrap.Status = status
	scrap.FinishedAt = &now
	scrap.Result = &result
	scrap.UpdatedAt = now
	r.m.data.scraps[id] = scrap
	return nil
}

func (r memScraps) ListRawLinks(ctx context.Context, scrapID int64) ([]models.RawLink, error) {
	release, err := r.m.begin(ctx, OpScrapsListRawLinks)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, ok := r.m.data.scraps[scrapID]; !ok {
		return nil, merrors.NewNotFoundError("scrap", scrapID)
	}
	return append([]models.RawLink(nil), r.m.data.rawLinks[scrapID]...), nil
}

func (r memScraps) AttachLink(ctx context.Context, scrapID, linkID int64) error {
	release, err := r.m.begin(ctx, OpScrapsAttachLink)
	if err != nil {
		return err
	}
	defer release()

	set, ok := r.m.data.scrapLinks[scrapID]
	if !ok {
		set = map[int64]struct{}{}
		r.m.data.scrapLinks[scrapID] = set
	}
	set[linkID] = struct{}{}
	return nil
}

func (r memScraps) Nuke(ctx context.Context) error {
	release, err := r.m.begin(ctx, OpScrapsNuke)
	if err != nil {
		return err
	}
	defer release()

	seq := r.m.data.seq
	r.m.data = newMemData()
	r.m.data.seq = seq
	return nil
}
