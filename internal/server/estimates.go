package server

import (
	"errors"
	"net/http"
	"strings"

	"estimator/internal/calc"
	"estimator/internal/submission"
	"estimator/pkg/types"
)

type calculateRequest struct {
	Items                 []types.DraftLineItem `json:"items"`
	ContingencyPercentage float64               `json:"contingencyPercentage"`
}

type calculateResponse struct {
	Summary calc.Summary       `json:"summary"`
	Lines   []calc.LineFigures `json:"lines"`
}

func (s *Service) handlePostCalculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := calc.Validate(req.Items, req.ContingencyPercentage); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	lines := make([]calc.LineFigures, len(req.Items))
	for i, item := range req.Items {
		lines[i] = calc.ForItem(item)
	}

	s.writeJSON(w, http.StatusOK, calculateResponse{
		Summary: calc.Summarize(req.Items, req.ContingencyPercentage),
		Lines:   lines,
	})
}

type submitRequest struct {
	Draft  types.DraftEstimate  `json:"draft"`
	Status types.EstimateStatus `json:"status"`
}

func (s *Service) handlePostEstimate(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Status == "" {
		req.Status = types.EstimateStatusDraft
	}

	// the cookie is authoritative for the draft identity
	if handle, ok := s.draftHandle(r); ok {
		req.Draft.Handle = handle
	}

	result, err := s.submitter.Submit(r.Context(), req.Draft, nil, req.Status)
	if err != nil {
		var verr *types.ValidationError
		var serr *submission.SubmitError
		switch {
		case errors.As(err, &verr):
			s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid draft", Fields: verr.Fields})
		case errors.As(err, &serr):
			s.writeJSON(w, http.StatusInternalServerError, errorResponse{
				Error:  serr.UserMessage(),
				Stage:  string(serr.Stage),
				Detail: result,
			})
		default:
			s.logger.WithError(err).Error("unexpected submission error")
			s.internalServerError(w)
		}
		return
	}

	if result.Duplicate {
		s.writeError(w, http.StatusConflict, "This estimate is already being submitted.")
		return
	}

	s.clearDraftHandle(w)
	s.writeJSON(w, http.StatusCreated, result)
}

type estimateResponse struct {
	Estimate  *types.Estimate           `json:"estimate"`
	Revisions []*types.EstimateRevision `json:"revisions"`
	Revision  *types.EstimateRevision   `json:"revision,omitempty"`
	Items     []*types.LineItem         `json:"items"`
}

// handleGetEstimate reads a submitted estimate back together with the items
// of the revision selected for view.
func (s *Service) handleGetEstimate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	estimateID := strings.TrimSpace(r.PathValue("estimateID"))
	if estimateID == "" {
		s.writeError(w, http.StatusNotFound, "estimate not found")
		return
	}

	estimate, err := s.estimates.EstimateByID(ctx, estimateID)
	if err != nil {
		if errors.Is(err, types.ErrEstimateNotFound) {
			s.writeError(w, http.StatusNotFound, "estimate not found")
			return
		}
		s.logger.WithError(err).WithField("estimate_id", estimateID).Error("failed to load estimate")
		s.internalServerError(w)
		return
	}

	revisions, err := s.estimates.RevisionsByEstimateID(ctx, estimateID)
	if err != nil {
		s.logger.WithError(err).WithField("estimate_id", estimateID).Error("failed to load estimate revisions")
		s.internalServerError(w)
		return
	}

	resp := estimateResponse{Estimate: estimate, Revisions: revisions, Items: []*types.LineItem{}}

	resp.Revision = selectedRevision(revisions)
	if resp.Revision != nil {
		resp.Items, err = s.estimates.LineItemsByRevisionID(ctx, resp.Revision.ID)
		if err != nil {
			s.logger.WithError(err).WithField("revision_id", resp.Revision.ID).Error("failed to load line items")
			s.internalServerError(w)
			return
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// selectedRevision prefers the revision flagged for view and falls back to
// the highest version.
func selectedRevision(revisions []*types.EstimateRevision) *types.EstimateRevision {
	var latest *types.EstimateRevision
	for _, rev := range revisions {
		if rev.IsSelectedForView {
			return rev
		}
		if latest == nil || rev.Version > latest.Version {
			latest = rev
		}
	}
	return latest
}
