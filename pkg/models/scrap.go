package models

import "time"

// ScrapStatus is the processing state of a scrap.
type ScrapStatus string

const (
	ScrapStatusPending    ScrapStatus = "pending"
	ScrapStatusProcessing ScrapStatus = "processing"
	ScrapStatusDone       ScrapStatus = "done"
	ScrapStatusFailed     ScrapStatus = "failed"
)

var scrapStatuses = newEnumTable("scrap status",
	enumPair[ScrapStatus]{ScrapStatusPending, "pending"},
	enumPair[ScrapStatus]{ScrapStatusProcessing, "processing"},
	enumPair[ScrapStatus]{ScrapStatusDone, "done"},
	enumPair[ScrapStatus]{ScrapStatusFailed, "failed"},
)

func ScrapStatusFromName(name string) (ScrapStatus, bool) {
	return scrapStatuses.fromName(name)
}

// ClaimableStatuses are the states a worker may move to processing.
// Done is included so that a finished scrap can be re-run idempotently.
var ClaimableStatuses = []ScrapStatus{ScrapStatusPending, ScrapStatusFailed, ScrapStatusDone}

func (s ScrapStatus) Claimable() bool {
	for _, c := range ClaimableStatuses {
		if s == c {
			return true
		}
	}
	return false
}

// Scrap is one ingestion batch produced by one platform.
type Scrap struct {
	ID         int64             `json:"id" db:"id"`
	PlatformID int64             `json:"platform_id" db:"platform_id"`
	Status     ScrapStatus       `json:"status" db:"status"`
	ClaimedBy  *string           `json:"claimed_by,omitempty" db:"claimed_by"`
	ClaimedAt  *time.Time        `json:"claimed_at,omitempty" db:"claimed_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty" db:"finished_at"`
	Result     *ProcessingResult `json:"result,omitempty" db:"-"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at" db:"updated_at"`
}

// RelationKind names a typed edge carried by a raw link.
type RelationKind string

const (
	RelationSeasonOf RelationKind = "season_of"
	RelationSerieOf  RelationKind = "serie_of"
	RelationRole     RelationKind = "role"
)

// RawRelation points from a raw link to another record of the same platform.
type RawRelation struct {
	Kind       RelationKind `json:"kind" validate:"required,oneof=season_of serie_of role"`
	ExternalID string       `json:"external_id" validate:"required"`
	Number     *int         `json:"number,omitempty"`
	Role       *RoleType    `json:"role,omitempty"`
}

// RawLink is one platform-native record of a scrap, in declared order.
type RawLink struct {
	ScrapID    int64         `json:"scrap_id" db:"scrap_id"`
	Position   int           `json:"position" db:"position"`
	ExternalID string        `json:"external_id" validate:"required"`
	Type       ObjectType    `json:"type" validate:"required,object_type"`
	Attributes AttributeSet  `json:"attributes,omitempty" validate:"dive"`
	WorkMeta   *WorkMeta     `json:"work_meta,omitempty"`
	Gender     *Gender       `json:"gender,omitempty"`
	Relations  []RawRelation `json:"relations,omitempty" validate:"dive"`
}

// ProcessingResult counts the outcome of one scrap run.
type ProcessingResult struct {
	Created  int                `json:"created"`
	Attached int                `json:"attached"`
	Merged   int                `json:"merged"`
	Skipped  int                `json:"skipped"`
	Failure  *ProcessingFailure `json:"failure,omitempty"`
}

// ProcessingFailure describes the link that aborted a scrap.
type ProcessingFailure struct {
	Position   int    `json:"position"`
	ExternalID string `json:"external_id"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}
