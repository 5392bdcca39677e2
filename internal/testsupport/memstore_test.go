package testsupport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	merrors "github.com/Ramsey-B/matcher/pkg/errors"
	"github.com/Ramsey-B/matcher/pkg/models"
)

func TestMemStore_RollsBackOnError(t *testing.T) {
	mem := NewMemStore()
	s := mem.Store()
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		obj, err := s.Objects.Create(ctx, models.ObjectTypeMovie)
		require.NoError(t, err)
		require.NoError(t, s.Links.Create(ctx, &models.ObjectLink{ObjectID: obj.ID, PlatformID: 1, ExternalID: "a"}))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, mem.Snapshot())
	assert.Equal(t, 1, mem.Rollbacks)
}

func TestMemStore_LinkUniqueness(t *testing.T) {
	mem := NewMemStore()
	s := mem.Store()
	ctx := context.Background()

	obj, err := s.Objects.Create(ctx, models.ObjectTypeMovie)
	require.NoError(t, err)
	require.NoError(t, s.Links.Create(ctx, &models.ObjectLink{ObjectID: obj.ID, PlatformID: 1, ExternalID: "a"}))

	err = s.Links.Create(ctx, &models.ObjectLink{ObjectID: obj.ID, PlatformID: 1, ExternalID: "a"})
	assert.True(t, merrors.IsConflict(err))
	assert.Equal(t, obj.ID, mem.Owner(1, "a"))
}

func TestMemStore_DeadlineBecomesStoreTimeout(t *testing.T) {
	mem := NewMemStore()
	mem.Delay(OpLinksFindByKey, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := mem.Store().Links.FindByKey(ctx, 1, "a")
	assert.True(t, merrors.IsStoreTimeout(err))
}

func TestMemStore_RaceCommitsAfterInterruptedTx(t *testing.T) {
	mem := NewMemStore()
	s := mem.Store()
	ctx := context.Background()

	conflict := merrors.NewConflictError("object_links", "key", nil)
	mem.Race(OpLinksCreate, conflict, func(ctx context.Context) error {
		obj, err := s.Objects.Create(ctx, models.ObjectTypeMovie)
		if err != nil {
			return err
		}
		return s.Links.Create(ctx, &models.ObjectLink{ObjectID: obj.ID, PlatformID: 1, ExternalID: "a"})
	})

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		obj, err := s.Objects.Create(ctx, models.ObjectTypeMovie)
		require.NoError(t, err)
		return s.Links.Create(ctx, &models.ObjectLink{ObjectID: obj.ID, PlatformID: 1, ExternalID: "a"})
	})
	assert.True(t, merrors.IsConflict(err))

	objects := mem.Snapshot()
	require.Len(t, objects, 1)
	assert.Equal(t, objects[0].ID, mem.Owner(1, "a"))
}

func TestMemStore_ClaimLifecycle(t *testing.T) {
	mem := NewMemStore()
	s := mem.Store()
	ctx := context.Background()

	scrap, err := s.Scraps.Create(ctx, 1)
	require.NoError(t, err)

	_, err = s.Scraps.Claim(ctx, scrap.ID, "w1", time.Minute)
	require.NoError(t, err)

	_, err = s.Scraps.Claim(ctx, scrap.ID, "w2", time.Minute)
	assert.True(t, merrors.IsConflict(err))

	err = s.Scraps.Finish(ctx, scrap.ID, "w2", models.ScrapStatusDone, models.ProcessingResult{})
	assert.True(t, merrors.IsConflict(err))

	require.NoError(t, s.Scraps.Finish(ctx, scrap.ID, "w1", models.ScrapStatusDone, models.ProcessingResult{Created: 1}))

	mem.Now = func() time.Time { return time.Now().Add(time.Hour) }
	claimed, err := s.Scraps.Claim(ctx, scrap.ID, "w2", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, models.ScrapStatusProcessing, claimed.Status)
}

func TestMemStore_StaleClaimIsReclaimable(t *testing.T) {
	mem := NewMemStore()
	s := mem.Store()
	ctx := context.Background()

	scrap, err := s.Scraps.Create(ctx, 1)
	require.NoError(t, err)
	_, err = s.Scraps.Claim(ctx, scrap.ID, "w1", time.Minute)
	require.NoError(t, err)

	mem.Now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	claimed, err := s.Scraps.Claim(ctx, scrap.ID, "w2", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "w2", *claimed.ClaimedBy)
}

func TestMemStore_ReassignFillsTargetGaps(t *testing.T) {
	mem := NewMemStore()
	s := mem.Store()
	ctx := context.Background()

	from, err := s.Objects.Create(ctx, models.ObjectTypePerson)
	require.NoError(t, err)
	to, err := s.Objects.Create(ctx, models.ObjectTypePerson)
	require.NoError(t, err)
	require.NoError(t, s.Relations.UpsertPerson(ctx, models.Person{ObjectID: from.ID, Gender: models.GenderFemale}))
	require.NoError(t, s.Relations.UpsertPerson(ctx, models.Person{ObjectID: to.ID, Gender: models.GenderNotKnown}))

	require.NoError(t, s.Relations.Reassign(ctx, from.ID, to.ID))

	_, _, _, persons := mem.Relations()
	require.Len(t, persons, 1)
	assert.Equal(t, to.ID, persons[0].ObjectID)
	assert.Equal(t, models.GenderFemale, persons[0].Gender)
}
