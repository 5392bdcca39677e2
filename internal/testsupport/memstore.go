// Package testsupport provides an in-memory store and loggers for unit tests.
package testsupport

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	merrors "github.com/Ramsey-B/matcher/pkg/errors"
	"github.com/Ramsey-B/matcher/pkg/models"
	"github.com/Ramsey-B/matcher/pkg/store"
)

type txKey struct{}

type linkKey struct {
	platformID int64
	externalID string
}

type fault struct {
	err   error
	times int
	delay time.Duration
	race  func(ctx context.Context) error
}

type memData struct {
	seq        int64
	objects    map[int64]models.CanonicalObject
	links      map[int64]models.ObjectLink
	linkKeys   map[linkKey]int64
	attributes []models.Attribute
	episodes   map[int64]models.Episode
	seasons    map[int64]models.Season
	persons    map[int64]models.Person
	roles      map[models.Role]struct{}
	scraps     map[int64]models.Scrap
	rawLinks   map[int64][]models.RawLink
	scrapLinks map[int64]map[int64]struct{}
}

func newMemData() *memData {
	return &memData{
		objects:    map[int64]models.CanonicalObject{},
		links:      map[int64]models.ObjectLink{},
		linkKeys:   map[linkKey]int64{},
		episodes:   map[int64]models.Episode{},
		seasons:    map[int64]models.Season{},
		persons:    map[int64]models.Person{},
		roles:      map[models.Role]struct{}{},
		scraps:     map[int64]models.Scrap{},
		rawLinks:   map[int64][]models.RawLink{},
		scrapLinks: map[int64]map[int64]struct{}{},
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	c.seq = d.seq
	for k, v := range d.objects {
		c.objects[k] = v
	}
	for k, v := range d.links {
		c.links[k] = v
	}
	for k, v := range d.linkKeys {
		c.linkKeys[k] = v
	}
	c.attributes = append([]models.Attribute(nil), d.attributes...)
	for k, v := range d.episodes {
		c.episodes[k] = v
	}
	for k, v := range d.seasons {
		c.seasons[k] = v
	}
	for k, v := range d.persons {
		c.persons[k] = v
	}
	for k := range d.roles {
		c.roles[k] = struct{}{}
	}
	for k, v := range d.scraps {
		c.scraps[k] = v
	}
	for k, v := range d.rawLinks {
		c.rawLinks[k] = append([]models.RawLink(nil), v...)
	}
	for k, v := range d.scrapLinks {
		set := make(map[int64]struct{}, len(v))
		for id := range v {
			set[id] = struct{}{}
		}
		c.scrapLinks[k] = set
	}
	return c
}

func (d *memData) next() int64 {
	d.seq++
	return d.seq
}

// MemStore is a transactional in-memory store. Transactions are serialized and roll back
// to a snapshot on error. Operations outside a transaction auto-commit.
type MemStore struct {
	txMu      sync.Mutex
	faultMu   sync.Mutex
	data      *memData
	faults    map[string]*fault
	pending   []func(ctx context.Context) error
	lockLog   [][]int64
	Now       func() time.Time
	TxCount   int
	Rollbacks int
}

func NewMemStore() *MemStore {
	return &MemStore{
		data:   newMemData(),
		faults: map[string]*fault{},
		Now:    time.Now,
	}
}

// Store exposes the repositories behind the engine's store contract.
func (m *MemStore) Store() *store.Store {
	return &store.Store{
		Tx:         m,
		Objects:    memObjects{m},
		Links:      memLinks{m},
		Attributes: memAttributes{m},
		Relations:  memRelations{m},
		Scraps:     memScraps{m},
	}
}

func (m *MemStore) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*MemStore)
	return owner == m
}

func (m *MemStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.inTx(ctx) {
		return fn(ctx)
	}

	m.txMu.Lock()
	m.TxCount++
	snapshot := m.data.clone()
	err := fn(context.WithValue(ctx, txKey{}, m))
	if err != nil {
		m.data = snapshot
		m.Rollbacks++
	}
	pending := m.pending
	m.pending = nil
	m.txMu.Unlock()

	for _, fn := range pending {
		if perr := fn(context.Background()); perr != nil {
			return errors.Join(err, perr)
		}
	}
	return err
}

// FailNext makes the next n calls of op return err.
func (m *MemStore) FailNext(op string, err error, n int) {
	m.faultMu.Lock()
	defer m.faultMu.Unlock()
	m.faults[op] = &fault{err: err, times: n}
}

// Delay makes every call of op wait d, honouring the context deadline.
func (m *MemStore) Delay(op string, d time.Duration) {
	m.faultMu.Lock()
	defer m.faultMu.Unlock()
	m.faults[op] = &fault{delay: d, times: -1}
}

// Race simulates a concurrent writer that commits first: the next call of op fails with
// err, and once the interrupted transaction has ended, fn runs in its own transaction.
func (m *MemStore) Race(op string, err error, fn func(ctx context.Context) error) {
	m.faultMu.Lock()
	defer m.faultMu.Unlock()
	m.faults[op] = &fault{err: err, times: 1, race: fn}
}

// ClearFaults removes every injected fault.
func (m *MemStore) ClearFaults() {
	m.faultMu.Lock()
	defer m.faultMu.Unlock()
	m.faults = map[string]*fault{}
}

// LockLog returns the id sets passed to Objects.Lock, in call order.
func (m *MemStore) LockLog() [][]int64 {
	m.faultMu.Lock()
	defer m.faultMu.Unlock()
	return append([][]int64(nil), m.lockLog...)
}

// begin enters op: it checks the context, applies injected faults and, outside a
// transaction, takes the store lock. The returned function releases it.
func (m *MemStore) begin(ctx context.Context, op string) (func(), error) {
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	m.faultMu.Lock()
	f := m.faults[op]
	var delay time.Duration
	var injected error
	var race func(context.Context) error
	if f != nil && f.times != 0 {
		if f.times > 0 {
			f.times--
		}
		delay = f.delay
		injected = f.err
		race = f.race
	}
	m.faultMu.Unlock()

	if race != nil {
		if m.inTx(ctx) {
			m.pending = append(m.pending, race)
		} else if err := race(context.Background()); err != nil {
			return nil, err
		}
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctxErr(ctx, op)
		}
	}
	if injected != nil {
		return nil, injected
	}

	if m.inTx(ctx) {
		return func() {}, nil
	}
	m.txMu.Lock()
	return m.txMu.Unlock, nil
}

func ctxErr(ctx context.Context, op string) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return merrors.NewStoreTimeoutError(op, err)
	default:
		return err
	}
}

func (m *MemStore) objectType(id int64) (models.ObjectType, bool) {
	obj, ok := m.data.objects[id]
	return obj.Type, ok
}

// Snapshot returns every object with its links and attributes, ordered by id.
func (m *MemStore) Snapshot() []models.CanonicalObject {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	out := make([]models.CanonicalObject, 0, len(m.data.objects))
	for _, obj := range m.data.objects {
		obj.Links = m.linksOf(obj.ID)
		obj.Attributes = m.attributesOf(obj.ID)
		out = append(out, obj)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Owner returns the object owning (platformID, externalID), or 0.
func (m *MemStore) Owner(platformID int64, externalID string) int64 {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	id, ok := m.data.linkKeys[linkKey{platformID, externalID}]
	if !ok {
		return 0
	}
	return m.data.links[id].ObjectID
}

// Relations returns the typed edges currently stored.
func (m *MemStore) Relations() (episodes []models.Episode, seasons []models.Season, roles []models.Role, persons []models.Person) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	for _, e := range m.data.episodes {
		episodes = append(episodes, e)
	}
	for _, s := range m.data.seasons {
		seasons = append(seasons, s)
	}
	for r := range m.data.roles {
		roles = append(roles, r)
	}
	for _, p := range m.data.persons {
		persons = append(persons, p)
	}
	sort.Slice(episodes, func(i, j int) bool { return episodes[i].ObjectID < episodes[j].ObjectID })
	sort.Slice(seasons, func(i, j int) bool { return seasons[i].ObjectID < seasons[j].ObjectID })
	sort.Slice(roles, func(i, j int) bool {
		if roles[i].PersonID != roles[j].PersonID {
			return roles[i].PersonID < roles[j].PersonID
		}
		return roles[i].ObjectID < roles[j].ObjectID
	})
	sort.Slice(persons, func(i, j int) bool { return persons[i].ObjectID < persons[j].ObjectID })
	return episodes, seasons, roles, persons
}

// ScrapLinks returns the link ids recorded against a scrap, ascending.
func (m *MemStore) ScrapLinks(scrapID int64) []int64 {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	var ids []int64
	for id := range m.data.scrapLinks[scrapID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *MemStore) linksOf(objectID int64) []models.ObjectLink {
	var out []models.ObjectLink
	for _, l := range m.data.links {
		if l.ObjectID == objectID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemStore) attributesOf(objectID int64) models.AttributeSet {
	var out models.AttributeSet
	for _, a := range m.data.attributes {
		if a.ObjectID == objectID {
			out = append(out, a)
		}
	}
	return out
}
