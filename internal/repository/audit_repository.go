package repository

import (
	"context"

	"github.com/civicworks/be-pw-proposals/internal/database"
	"github.com/civicworks/be-pw-proposals/internal/domain"
	"github.com/civicworks/be-pw-proposals/internal/errors"
)

// AuditRepository manages the append-only lifecycle audit log.
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts one audit entry. Entries are never updated or deleted.
func (r *AuditRepository) Append(ctx context.Context, e *domain.AuditEntry) error {
	query := `
		INSERT INTO proposal_audit_log
		    (id, proposal_id, transition, actor, actor_role,
		     status_before, status_after, note, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		e.ID, e.ProposalID, e.Transition, e.Actor, e.ActorRole,
		e.StatusBefore, e.StatusAfter, e.Note, e.At,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append audit entry")
	}
	return nil
}

// ListByProposal returns the audit trail for one proposal, oldest first.
func (r *AuditRepository) ListByProposal(ctx context.Context, proposalID string) ([]*domain.AuditEntry, error) {
	query := `
		SELECT id, proposal_id, transition, actor, actor_role,
		       status_before, status_after, note, at
		FROM proposal_audit_log
		WHERE proposal_id = $1
		ORDER BY at, id
	`

	rows, err := r.db.Query(ctx, query, proposalID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list audit entries")
	}
	defer rows.Close()

	entries := make([]*domain.AuditEntry, 0)
	for rows.Next() {
		e := &domain.AuditEntry{}
		err := rows.Scan(
			&e.ID, &e.ProposalID, &e.Transition, &e.Actor, &e.ActorRole,
			&e.StatusBefore, &e.StatusAfter, &e.Note, &e.At,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan audit entry")
		}
		entries = append(entries, e)
	}
	return entries, nil
}
