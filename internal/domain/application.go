package domain

// Status of a tracked application.
type Status string

const (
	StatusApplied   Status = "applied"
	StatusInterview Status = "interview"
	StatusOffer     Status = "offer"
	StatusRejected  Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusApplied, StatusInterview, StatusOffer, StatusRejected:
		return true
	}
	return false
}

// ApplicationRecord is one tracked job application. The id is assigned at
// creation and never reused.
type ApplicationRecord struct {
	ID          string `json:"id"`
	Company     string `json:"company"`
	Position    string `json:"position"`
	Status      Status `json:"status"`
	Location    string `json:"location"`
	AppliedDate string `json:"appliedDate"` // ISO date, 2006-01-02
	Notes       string `json:"notes,omitempty"`
}
