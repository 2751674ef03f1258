package core

import "time"

// CandidateStatus is the outcome of one candidate in a dashboard run.
type CandidateStatus string

const (
	StatusOK       CandidateStatus = "ok"
	StatusDiverged CandidateStatus = "diverged"
	StatusFailed   CandidateStatus = "failed"
)

// CandidateSummary is the compact, persisted form of one candidate result.
type CandidateSummary struct {
	Name          string          `json:"name"`
	Status        CandidateStatus `json:"status"`
	HeadlineValue float64         `json:"headlineValue"`
	Divergence    float64         `json:"divergence"`
	MismatchCount int             `json:"mismatchCount"`
	Failure       string          `json:"failure,omitempty"`
}

// RunSummary describes one dashboard run for history and notifications.
type RunSummary struct {
	ID              string             `json:"id"`
	GeneratedAt     time.Time          `json:"generatedAt"`
	ReferenceEngine string             `json:"referenceEngine"`
	HeadlineMetric  string             `json:"headlineMetric"`
	ReferenceValue  float64            `json:"referenceValue"`
	Candidates      []CandidateSummary `json:"candidates"`
}

// Clean reports whether every candidate matched the reference.
func (r RunSummary) Clean() bool {
	for _, c := range r.Candidates {
		if c.Status != StatusOK {
			return false
		}
	}
	return true
}
