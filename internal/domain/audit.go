package domain

import "time"

// AuditEntry is one immutable record of a lifecycle transition. The
// audit log never participates in guards; it is written after the
// aggregate mutation commits.
type AuditEntry struct {
	ID           string     `json:"id"`
	ProposalID   string     `json:"proposalId"`
	Transition   Transition `json:"transition"`
	Actor        string     `json:"actor"`
	ActorRole    Role       `json:"actorRole"`
	StatusBefore Status     `json:"statusBefore"`
	StatusAfter  Status     `json:"statusAfter"`
	Note         string     `json:"note,omitempty"`
	At           time.Time  `json:"at"`
}

// ListFilter selects proposals for the list read path.
type ListFilter struct {
	Status        *Status
	FinancialYear *string
	Agency        *string
	CreatedBy     *string
	Limit         int
	Offset        int
}
