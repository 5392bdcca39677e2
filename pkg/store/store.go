// Package store declares the persistence contract consumed by the matching engine.
package store

import (
	"context"
	"time"

	"github.com/Ramsey-B/matcher/pkg/models"
)

// Transactor runs fn inside one isolated transaction. Repository calls made with the
// context passed to fn join that transaction; nested calls reuse it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ObjectRepository interface {
	Create(ctx context.Context, objectType models.ObjectType) (*models.CanonicalObject, error)
	Get(ctx context.Context, id int64) (*models.CanonicalObject, error)
	// Lock takes exclusive row locks in ascending id order and returns the objects that
	// still exist.
	Lock(ctx context.Context, ids []int64) ([]models.CanonicalObject, error)
	Delete(ctx context.Context, id int64) error
	ExistingIDs(ctx context.Context, ids []int64) ([]int64, error)
	// ListIDsByType pages through object ids of one type in ascending order, starting
	// after afterID.
	ListIDsByType(ctx context.Context, objectType models.ObjectType, afterID int64, limit int) ([]int64, error)
}

type LinkRepository interface {
	FindByKey(ctx context.Context, platformID int64, externalID string) (*models.ObjectLink, error)
	// Create returns a ConflictError when (platform, external id) is already owned.
	Create(ctx context.Context, link *models.ObjectLink) error
	UpsertWorkMeta(ctx context.Context, linkID int64, meta models.WorkMeta) error
	ListByObject(ctx context.Context, objectID int64) ([]models.ObjectLink, error)
	CountByObject(ctx context.Context, objectID int64) (int, error)
	Reassign(ctx context.Context, fromObjectID, toObjectID int64) (int, error)
}

type AttributeRepository interface {
	List(ctx context.Context, objectID int64) (models.AttributeSet, error)
	// Append stores the attributes not already held by the object and returns how many
	// were written.
	Append(ctx context.Context, objectID int64, attrs models.AttributeSet) (int, error)
	// Reassign moves attributes to another object, dropping facts it already holds.
	Reassign(ctx context.Context, fromObjectID, toObjectID int64) (int, error)
	FindCandidates(ctx context.Context, objectType models.ObjectType, keys []models.MatchKey, limit int) ([]int64, error)
}

type RelationRepository interface {
	UpsertEpisode(ctx context.Context, episode models.Episode) error
	UpsertSeason(ctx context.Context, season models.Season) error
	UpsertRole(ctx context.Context, role models.Role) error
	UpsertPerson(ctx context.Context, person models.Person) error
	// Reassign moves every typed edge of fromObjectID onto toObjectID.
	Reassign(ctx context.Context, fromObjectID, toObjectID int64) error
}

type ScrapRepository interface {
	Create(ctx context.Context, platformID int64) (*models.Scrap, error)
	AddRawLinks(ctx context.Context, scrapID int64, links []models.RawLink) error
	Get(ctx context.Context, id int64) (*models.Scrap, error)
	Latest(ctx context.Context) (*models.Scrap, error)
	// Claim atomically moves a claimable scrap, or one whose claim is older than
	// staleAfter, to processing. A scrap claimed by someone else yields a ConflictError.
	Claim(ctx context.Context, id int64, workerID string, staleAfter time.Duration) (*models.Scrap, error)
	Finish(ctx context.Context, id int64, workerID string, status models.ScrapStatus, result models.ProcessingResult) error
	ListRawLinks(ctx context.Context, scrapID int64) ([]models.RawLink, error)
	AttachLink(ctx context.Context, scrapID, linkID int64) error
	// Nuke deletes all catalog and scrap data, keeping platforms.
	Nuke(ctx context.Context) error
}

// Store groups the repositories the engine works against.
type Store struct {
	Tx         Transactor
	Objects    ObjectRepository
	Links      LinkRepository
	Attributes AttributeRepository
	Relations  RelationRepository
	Scraps     ScrapRepository
}
