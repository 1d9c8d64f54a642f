package repository

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/civicworks/be-pw-proposals/internal/database"
	"github.com/civicworks/be-pw-proposals/internal/domain"
	"github.com/civicworks/be-pw-proposals/internal/errors"
)

// ProposalRepository persists the proposal aggregate as a single row:
// scalar identity and descriptive columns plus JSONB stage records and
// ledger, with a version column for optimistic concurrency.
type ProposalRepository struct {
	db *database.DB
}

// NewProposalRepository creates a new proposal repository.
func NewProposalRepository(db *database.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

const proposalColumns = `
	id, serial_number, work_type, name, agency, scheme, description,
	financial_year, work_department, user_department, approving_department,
	district, block, location, proposed_amount, requires_dpr, requires_tender,
	status, created_by, completion_date, final_cost,
	technical_approval, administrative_approval, tender_process, work_order, ledger,
	version, created_at, updated_at, last_status_change_at`

// Create inserts a new aggregate. Version starts at 1.
func (r *ProposalRepository) Create(ctx context.Context, p *domain.Proposal) error {
	query := `
		INSERT INTO proposals (id, serial_number, work_type, name, agency, scheme, description,
		                       financial_year, work_department, user_department, approving_department,
		                       district, block, location, proposed_amount, requires_dpr, requires_tender,
		                       status, created_by, completion_date, final_cost, work_order_number,
		                       technical_approval, administrative_approval, tender_process, work_order, ledger,
		                       version, created_at, updated_at, last_status_change_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7,
		        $8, $9, $10, $11,
		        $12, $13, $14, $15, $16, $17,
		        $18, $19, $20, $21, NULLIF($22, ''),
		        $23, $24, $25, $26, $27,
		        $28, $29, $30, $31)
	`

	p.Version = 1
	_, err := r.db.Exec(ctx, query,
		p.ID, p.SerialNumber, p.WorkType, p.Name, p.Agency, p.Scheme, p.Description,
		p.FinancialYear, p.WorkDepartment, p.UserDepartment, p.ApprovingDepartment,
		p.District, p.Block, p.Location, p.ProposedAmount, p.RequiresDPR, p.RequiresTender,
		p.Status, p.CreatedBy, p.CompletionDate, p.FinalCost, p.WorkOrder.OrderNumber,
		p.Technical, p.Administrative, p.Tender, p.WorkOrder, p.Ledger,
		p.Version, p.CreatedAt, p.UpdatedAt, p.LastStatusChangeAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.New(errors.ErrCodeConflict, "proposal serial number already exists")
		}
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create proposal")
	}
	return nil
}

// GetByID retrieves an aggregate by its internal id.
func (r *ProposalRepository) GetByID(ctx context.Context, id string) (*domain.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = $1`

	p, err := scanProposal(r.db.QueryRow(ctx, query, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("proposal", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get proposal")
	}
	return p, nil
}

// Update writes the whole aggregate back, guarded by the version the
// caller loaded. A stale version fails with CONFLICT and no mutation;
// on success p.Version is advanced.
func (r *ProposalRepository) Update(ctx context.Context, p *domain.Proposal, expectedVersion int64) error {
	query := `
		UPDATE proposals
		SET status = $3,
		    completion_date = $4,
		    final_cost = $5,
		    work_order_number = NULLIF($6, ''),
		    technical_approval = $7,
		    administrative_approval = $8,
		    tender_process = $9,
		    work_order = $10,
		    ledger = $11,
		    version = version + 1,
		    updated_at = $12,
		    last_status_change_at = $13
		WHERE id = $1 AND version = $2
		RETURNING version
	`

	err := r.db.QueryRow(ctx, query,
		p.ID, expectedVersion,
		p.Status, p.CompletionDate, p.FinalCost, p.WorkOrder.OrderNumber,
		p.Technical, p.Administrative, p.Tender, p.WorkOrder, p.Ledger,
		p.UpdatedAt, p.LastStatusChangeAt,
	).Scan(&p.Version)

	if stderrors.Is(err, pgx.ErrNoRows) {
		// Distinguish a missing row from a stale version.
		var exists bool
		if checkErr := r.db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM proposals WHERE id = $1)`, p.ID).Scan(&exists); checkErr == nil && !exists {
			return errors.NotFound("proposal", p.ID)
		}
		return errors.New(errors.ErrCodeConflict, "proposal was modified concurrently")
	}
	if err != nil {
		if isUniqueViolation(err) {
			return errors.New(errors.ErrCodeConflict, "work order number already in use")
		}
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update proposal")
	}
	return nil
}

// Delete removes an aggregate. The lifecycle engine enforces who may
// delete and from which state.
func (r *ProposalRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM proposals WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete proposal")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("proposal", id)
	}
	return nil
}

// List retrieves proposals with filtering and pagination.
func (r *ProposalRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Proposal, int64, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM proposals WHERE 1=1`

	args := []any{}
	argCount := 1

	addFilter := func(clause string, value any) {
		cond := fmt.Sprintf(" AND %s = $%d", clause, argCount)
		query += cond
		countQuery += cond
		args = append(args, value)
		argCount++
	}

	if filter.Status != nil {
		addFilter("status", *filter.Status)
	}
	if filter.FinancialYear != nil {
		addFilter("financial_year", *filter.FinancialYear)
	}
	if filter.Agency != nil {
		addFilter("agency", *filter.Agency)
	}
	if filter.CreatedBy != nil {
		addFilter("created_by", *filter.CreatedBy)
	}

	query += " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1)
	queryArgs := append(args, filter.Limit, filter.Offset)

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to count proposals")
	}

	rows, err := r.db.Query(ctx, query, queryArgs...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to list proposals")
	}
	defer rows.Close()

	proposals := make([]*domain.Proposal, 0)
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan proposal")
		}
		proposals = append(proposals, p)
	}
	return proposals, total, nil
}

// WorkOrderNumberExists reports whether another proposal already uses
// the given work-order number.
func (r *ProposalRepository) WorkOrderNumberExists(ctx context.Context, number, excludeProposalID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM proposals WHERE work_order_number = $1 AND id <> $2)`,
		number, excludeProposalID).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "failed to check work order number")
	}
	return exists, nil
}

// NextSerial atomically increments and returns the per-year sequence
// used for serial numbers. One statement, no count-then-use race.
func (r *ProposalRepository) NextSerial(ctx context.Context, year int) (int, error) {
	var seq int
	err := r.db.QueryRow(ctx, `
		INSERT INTO proposal_serials (year, seq)
		VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET seq = proposal_serials.seq + 1
		RETURNING seq
	`, year).Scan(&seq)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to allocate serial number")
	}
	return seq, nil
}

// ── scan helpers ─────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row rowScanner) (*domain.Proposal, error) {
	p := &domain.Proposal{}
	err := row.Scan(
		&p.ID, &p.SerialNumber, &p.WorkType, &p.Name, &p.Agency, &p.Scheme, &p.Description,
		&p.FinancialYear, &p.WorkDepartment, &p.UserDepartment, &p.ApprovingDepartment,
		&p.District, &p.Block, &p.Location, &p.ProposedAmount, &p.RequiresDPR, &p.RequiresTender,
		&p.Status, &p.CreatedBy, &p.CompletionDate, &p.FinalCost,
		&p.Technical, &p.Administrative, &p.Tender, &p.WorkOrder, &p.Ledger,
		&p.Version, &p.CreatedAt, &p.UpdatedAt, &p.LastStatusChangeAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == "23505"
}
