package models

import "time"

// SimilarityEdge is a cached, rebuildable score between two objects of the same type.
type SimilarityEdge struct {
	SubjectID   int64     `json:"subject_id"`
	CandidateID int64     `json:"candidate_id"`
	Score       float64   `json:"score"`
	ComputedAt  time.Time `json:"computed_at"`
}

// Similar is one entry of a ranked similarity list.
type Similar struct {
	TargetID int64   `json:"target_id"`
	Score    float64 `json:"score"`
}
