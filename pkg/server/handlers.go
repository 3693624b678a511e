package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/openwis/form-registry/pkg/datastore"
	"github.com/openwis/form-registry/pkg/forms"
	"github.com/openwis/form-registry/pkg/schema"
	"github.com/openwis/form-registry/pkg/submission"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeFailure maps domain errors to HTTP statuses: validation and
// specification mistakes become 4xx, everything else 500.
func writeFailure(w http.ResponseWriter, err error) {
	var verr *submission.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, forms.ErrTableNotFound),
		errors.Is(err, forms.ErrViewNotFound),
		errors.Is(err, submission.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, forms.ErrTableExists),
		errors.Is(err, forms.ErrViewExists),
		errors.Is(err, submission.ErrNotEmpty),
		errors.Is(err, submission.ErrCheckedOut),
		errors.Is(err, submission.ErrNotDraft),
		errors.Is(err, submission.ErrInactive):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, forms.ErrReservedName),
		errors.Is(err, forms.ErrDuplicateName),
		errors.Is(err, forms.ErrUnknownType),
		errors.Is(err, forms.ErrMissingChoices),
		errors.Is(err, forms.ErrMissingSubForm),
		errors.Is(err, forms.ErrDuplicateChoice):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// userID extracts the acting user from the X-User-Id header. The identity
// layer in front of the registry is expected to set it.
func userID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-User-Id"), 10, 64)
	return id
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return id, nil
}

func (s *Server) createFormHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var spec schema.CreateForm
		if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if spec.UserID == 0 {
			spec.UserID = userID(r)
		}
		def, err := s.builder.Build(r.Context(), &spec)
		if err != nil {
			writeFailure(w, err)
			return
		}
		s.invalidateForm(r, def.Name)
		writeJSON(w, http.StatusCreated, map[string]any{"id": def.ID, "name": def.Name})
	}
}

func (s *Server) getFormHandler(withView bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		var (
			fs  *forms.FormSchema
			err error
		)
		if withView {
			fs, err = s.reader.ReadFormView(r.Context(), name)
		} else {
			fs, err = s.reader.ReadForm(r.Context(), name)
		}
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, fs)
	}
}

func (s *Server) createViewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		var spec schema.CreateFormView
		if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		view, err := s.builder.CreateTableView(r.Context(), name, &spec, userID(r))
		if err != nil {
			writeFailure(w, err)
			return
		}
		s.invalidateForm(r, name)
		writeJSON(w, http.StatusCreated, view)
	}
}

func (s *Server) copyViewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "view")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		view, err := s.builder.CopyTableView(r.Context(), id, userID(r))
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)
	}
}

func (s *Server) createViewRevisionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "view")
		created, err := s.builder.CreateViewRevision(r.Context(), name, userID(r))
		if err != nil {
			writeFailure(w, err)
			return
		}
		if created == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no view named %q", name))
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func (s *Server) activateViewRevisionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "view")
		rev, err := strconv.Atoi(chi.URLParam(r, "revision"))
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid revision: %v", err))
			return
		}
		if err := s.builder.SetActiveViewRevision(r.Context(), name, rev); err != nil {
			writeFailure(w, err)
			return
		}
		s.cacheManager.InvalidateAll()
		writeJSON(w, http.StatusOK, map[string]any{"name": name, "revision": rev, "active": true})
	}
}

type createSubmissionRequest struct {
	TableViewID int64          `json:"table_view_id"`
	Name        string         `json:"name,omitempty"`
	Values      map[string]any `json:"values,omitempty"`
}

func (s *Server) createSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSubmissionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		obj, err := s.manager.Create(r.Context(), req.TableViewID, req.Values, userID(r), req.Name)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, obj)
	}
}

func (s *Server) getSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sub, err := s.manager.Load(r.Context(), id)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"submission": sub.Obj,
			"values":     sub.Values,
		})
	}
}

type updateSubmissionRequest struct {
	Values map[string]any `json:"values"`
}

func (s *Server) updateSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		var req updateSubmissionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if err := s.manager.Update(r.Context(), id, req.Values, userID(r)); err != nil {
			writeFailure(w, err)
			return
		}
		s.invalidateSubmission(r, id)
		writeJSON(w, http.StatusOK, map[string]any{"id": id})
	}
}

type reviseSubmissionRequest struct {
	NewValues        map[string]any    `json:"new_values"`
	Restatements     map[string]string `json:"restatements,omitempty"`
	CreateSubmission bool              `json:"create_submission"`
	Status           string            `json:"status,omitempty"`
}

func (s *Server) reviseSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		var req reviseSubmissionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		obj, err := s.revisions.Update(r.Context(), id, submission.UpdateRequest{
			NewValues:        req.NewValues,
			Restatements:     req.Restatements,
			CreateSubmission: req.CreateSubmission,
			Status:           datastore.SubmissionStatus(req.Status),
		}, userID(r))
		if err != nil {
			writeFailure(w, err)
			return
		}
		s.invalidateSubmission(r, id)
		writeJSON(w, http.StatusCreated, obj)
	}
}

type rollbackRequest struct {
	TargetID int64 `json:"target_id"`
}

func (s *Server) rollbackSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		var req rollbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		obj, err := s.revisions.Rollback(r.Context(), id, req.TargetID, userID(r))
		if err != nil {
			writeFailure(w, err)
			return
		}
		s.invalidateSubmission(r, id)
		writeJSON(w, http.StatusCreated, obj)
	}
}

func (s *Server) listRevisionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		objs, err := s.manager.Revisions(r.Context(), name)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, objs)
	}
}

func (s *Server) listRestatementsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		rows, err := s.revisions.Restatements(r.Context(), id)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func (s *Server) checkoutHandler(out bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.manager.CheckOut(r.Context(), id, out); err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "checked_out": out})
	}
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
