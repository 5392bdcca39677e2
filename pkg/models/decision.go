package models

// DecisionKind is the outcome of resolving one raw link.
type DecisionKind string

const (
	DecisionAttach DecisionKind = "attach"
	DecisionMerge  DecisionKind = "merge"
	DecisionCreate DecisionKind = "create"
	// DecisionDeferred marks a link left for the second pass.
	DecisionDeferred DecisionKind = "deferred"
)

var decisionKinds = newEnumTable("decision",
	enumPair[DecisionKind]{DecisionAttach, "attach"},
	enumPair[DecisionKind]{DecisionMerge, "merge"},
	enumPair[DecisionKind]{DecisionCreate, "create"},
	enumPair[DecisionKind]{DecisionDeferred, "deferred"},
)

func DecisionKindFromName(name string) (DecisionKind, bool) {
	return decisionKinds.fromName(name)
}

// CandidateScore is the comparator verdict for one candidate object.
type CandidateScore struct {
	ObjectID   int64   `json:"object_id"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

// Decision is what the resolver did with one raw link.
// For a merge, ObjectID is the survivor and Losers the objects folded into it.
type Decision struct {
	Kind       DecisionKind     `json:"kind"`
	ObjectID   int64            `json:"object_id"`
	ObjectType ObjectType       `json:"object_type"`
	Losers     []int64          `json:"losers,omitempty"`
	LinkID     int64            `json:"link_id,omitempty"`
	PlatformID int64            `json:"platform_id"`
	ExternalID string           `json:"external_id"`
	Exact      bool             `json:"exact,omitempty"`
	Score      float64          `json:"score,omitempty"`
	Confidence float64          `json:"confidence,omitempty"`
	Candidates []CandidateScore `json:"candidates,omitempty"`
}

// Affected lists every object id touched by the decision, survivor first.
func (d *Decision) Affected() []int64 {
	ids := []int64{d.ObjectID}
	return append(ids, d.Losers...)
}
