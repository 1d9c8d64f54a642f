// Package handler exposes the lifecycle engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/civicworks/be-pw-proposals/internal/client"
	"github.com/civicworks/be-pw-proposals/internal/domain"
	"github.com/civicworks/be-pw-proposals/internal/errors"
	"github.com/civicworks/be-pw-proposals/internal/logger"
	"github.com/civicworks/be-pw-proposals/internal/service"
)

// HTTPHandler handles HTTP requests.
type HTTPHandler struct {
	service  *service.ProposalService
	identity *client.IdentityClient
	log      *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler. identity may be nil, in
// which case caller context is read from the X-User-* headers.
func NewHTTPHandler(svc *service.ProposalService, identity *client.IdentityClient, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{service: svc, identity: identity, log: log}
}

// proposalResponse wraps the aggregate with the display status derived
// at read time; the display form is never stored.
type proposalResponse struct {
	*domain.Proposal
	StatusDisplay string `json:"statusDisplay"`
}

func toResponse(p *domain.Proposal) proposalResponse {
	return proposalResponse{Proposal: p, StatusDisplay: p.Status.Display()}
}

// caller resolves the caller context: via the identity service when
// configured and a bearer token is present, from headers otherwise.
func (h *HTTPHandler) caller(ctx context.Context, r *http.Request) (domain.Caller, error) {
	if h.identity != nil {
		auth := r.Header.Get("Authorization")
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok && token != "" {
			return h.identity.Resolve(ctx, token)
		}
	}

	c := domain.Caller{
		ID:         r.Header.Get("X-User-ID"),
		Role:       domain.Role(r.Header.Get("X-User-Role")),
		Department: r.Header.Get("X-User-Department"),
	}
	if c.ID == "" || c.Role == "" {
		return domain.Caller{}, errors.Forbidden("caller identity is required")
	}
	return c, nil
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	var e *errors.Error
	if !stderrors.As(err, &e) {
		e = errors.New(errors.ErrCodeInternal, "internal error")
	}
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("request failed")
	}
	h.writeJSON(w, status, map[string]any{"error": e})
}

// idPayload is the id carried by every transition body.
type idPayload struct {
	ID string `json:"id"`
}

// decide is the shared plumbing for transition endpoints: resolve the
// caller, decode a flat body carrying "id" plus the payload fields, and
// run the engine operation.
func decide[Req any](h *HTTPHandler, w http.ResponseWriter, r *http.Request,
	apply func(ctx context.Context, id string, req *Req, caller domain.Caller) (*domain.Proposal, error)) {

	caller, err := h.caller(r.Context(), r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, errors.New(errors.ErrCodeValidation, "invalid request body"))
		return
	}

	var idp idPayload
	if err := json.Unmarshal(body, &idp); err != nil || idp.ID == "" {
		h.writeError(w, errors.InvalidInput("id", "proposal id is required"))
		return
	}

	var req Req
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, errors.New(errors.ErrCodeValidation, "invalid request body"))
		return
	}

	p, err := apply(r.Context(), idp.ID, &req, caller)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toResponse(p))
}

// CreateProposal handles proposal submission.
func (h *HTTPHandler) CreateProposal(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r.Context(), r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req service.CreateProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.New(errors.ErrCodeValidation, "invalid request body"))
		return
	}

	p, err := h.service.Submit(r.Context(), &req, caller)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toResponse(p))
}

// GetProposal handles proposal reads.
func (h *HTTPHandler) GetProposal(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		h.writeError(w, errors.InvalidInput("id", "proposal id is required"))
		return
	}

	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toResponse(p))
}

// ListProposals handles the filtered list read path.
func (h *HTTPHandler) ListProposals(w http.ResponseWriter, r *http.Request) {
	filter := domain.ListFilter{}

	if v := r.URL.Query().Get("status"); v != "" {
		status := domain.Status(v)
		if !status.Valid() {
			h.writeError(w, errors.InvalidInput("status", "unknown status"))
			return
		}
		filter.Status = &status
	}
	if v := r.URL.Query().Get("financial_year"); v != "" {
		filter.FinancialYear = &v
	}
	if v := r.URL.Query().Get("agency"); v != "" {
		filter.Agency = &v
	}
	if v := r.URL.Query().Get("created_by"); v != "" {
		filter.CreatedBy = &v
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	proposals, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	items := make([]proposalResponse, 0, len(proposals))
	for _, p := range proposals {
		items = append(items, toResponse(p))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"proposals": items,
		"total":     total,
		"page":      page,
		"pageSize":  pageSize,
	})
}

// DeleteProposal handles proposal deletion.
func (h *HTTPHandler) DeleteProposal(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r.Context(), r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		h.writeError(w, errors.InvalidInput("id", "proposal id is required"))
		return
	}

	if err := h.service.Delete(r.Context(), id, caller); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DecideTechnical handles technical approval decisions.
func (h *HTTPHandler) DecideTechnical(w http.ResponseWriter, r *http.Request) {
	decide(h, w, r, h.service.DecideTechnical)
}

// DecideAdministrative handles administrative approval decisions.
func (h *HTTPHandler) DecideAdministrative(w http.ResponseWriter, r *http.Request) {
	decide(h, w, r, h.service.DecideAdministrative)
}

// StartTender handles tender opening.
func (h *HTTPHandler) StartTender(w http.ResponseWriter, r *http.Request) {
	decide(h, w, r, h.service.StartTender)
}

// AdvanceTender handles tender stage advancement.
func (h *HTTPHandler) AdvanceTender(w http.ResponseWriter, r *http.Request) {
	decide(h, w, r, h.service.AdvanceTender)
}

// AwardTender handles tender award.
func (h *HTTPHandler) AwardTender(w http.ResponseWriter, r *http.Request) {
	decide(h, w, r, h.service.AwardTender)
}

// CancelTender handles tender cancellation.
func (h *HTTPHandler) CancelTender(w http.ResponseWriter, r *http.Request) {
	decide(h, w, r, h.service.CancelTender)
}

// CreateWorkOrder handles work-order issuance.
func (h *HTTPHandler) CreateWorkOrder(w http.ResponseWriter, r *http.Request) {
	decide(h, w, r, h.service.CreateWorkOrder)
}

// UpdateWorkOrder handles work-order revision.
func (h *HTTPHandler) UpdateWorkOrder(w http.ResponseWriter, r *http.Request) {
	decide(h, w, r, h.service.UpdateWorkOrder)
}

// StartWork moves the proposal into execution.
func (h *HTTPHandler) StartWork(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r.Context(), r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req idPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		h.writeError(w, errors.InvalidInput("id", "proposal id is required"))
		return
	}

	p, err := h.service.StartWork(r.Context(), req.ID, caller)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toResponse(p))
}

// UpdateProgress handles progress reports.
func (h *HTTPHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	decide(h, w, r, h.service.UpdateProgress)
}

// AddInstallment handles fund releases.
func (h *HTTPHandler) AddInstallment(w http.ResponseWriter, r *http.Request) {
	caller, err := h.caller(r.Context(), r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, errors.New(errors.ErrCodeValidation, "invalid request body"))
		return
	}

	var idp idPayload
	if err := json.Unmarshal(body, &idp); err != nil || idp.ID == "" {
		h.writeError(w, errors.InvalidInput("id", "proposal id is required"))
		return
	}

	var req service.AddInstallmentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, errors.New(errors.ErrCodeValidation, "invalid request body"))
		return
	}

	result, err := h.service.AddInstallment(r.Context(), idp.ID, &req, caller)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

// CompleteWork handles work completion.
func (h *HTTPHandler) CompleteWork(w http.ResponseWriter, r *http.Request) {
	decide(h, w, r, h.service.CompleteWork)
}

// CancelWork handles the override-only work cancellation.
func (h *HTTPHandler) CancelWork(w http.ResponseWriter, r *http.Request) {
	decide(h, w, r, h.service.CancelWork)
}

// AuditTrail returns the transition history for one proposal.
func (h *HTTPHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		h.writeError(w, errors.InvalidInput("id", "proposal id is required"))
		return
	}

	entries, err := h.service.AuditTrail(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
