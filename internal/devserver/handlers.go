package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jonathan/hireops/internal/types"
)

// Pagination limits for list endpoints.
const (
	defaultPageSize = 50
	maxPageSize     = 100
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid form body")
		return
	}
	req := types.LoginRequest{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}
	if err := req.Validate(); err != nil {
		s.errorFor(w, &ErrValidation{Messages: types.ValidationMessages(err)})
		return
	}

	user, err := s.repo.UserByUsername(r.Context(), req.Username)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.errorFor(w, err)
		return
	}
	if user == nil || !s.hasher.Verify(req.Password, user.PasswordHash) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		s.errorResponse(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}
	if !user.IsActive {
		s.errorResponse(w, http.StatusBadRequest, "Inactive user")
		return
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Username)
	if err != nil {
		s.errorFor(w, err)
		return
	}
	s.logger.Info("user logged in", "username", user.Username)
	s.jsonResponse(w, http.StatusOK, types.Token{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	user, err := s.repo.UserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.errorResponse(w, http.StatusUnauthorized, "User not found")
			return
		}
		s.errorFor(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, user)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.repo.ListJobs(r.Context())
	if err != nil {
		s.errorFor(w, err)
		return
	}
	writePage(s, w, r, jobs)
}

func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := s.repo.ListCandidates(r.Context())
	if err != nil {
		s.errorFor(w, err)
		return
	}
	writePage(s, w, r, candidates)
}

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := s.repo.ListApplications(r.Context())
	if err != nil {
		s.errorFor(w, err)
		return
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := types.ParseStatus(raw)
		if err != nil {
			s.errorFor(w, &ErrValidation{Messages: []string{err.Error()}})
			return
		}
		filtered := apps[:0]
		for _, app := range apps {
			if app.Status == status {
				filtered = append(filtered, app)
			}
		}
		apps = filtered
	}
	writePage(s, w, r, apps)
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	app, err := s.repo.GetApplication(r.Context(), id)
	if err != nil {
		s.errorFor(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, app)
}

func (s *Server) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	var req types.CreateApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		s.errorFor(w, &ErrValidation{Messages: types.ValidationMessages(err)})
		return
	}

	app, err := s.repo.CreateApplication(r.Context(), req)
	if err != nil {
		s.errorFor(w, err)
		return
	}
	s.logger.Info("application created", "id", app.ID, "job_id", app.JobID, "candidate_id", app.CandidateID)
	s.jsonResponse(w, http.StatusCreated, app)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if code, fail := s.takeFailure(); fail {
		s.logger.Warn("injected status update failure", "id", id, "status", code)
		s.errorResponse(w, code, http.StatusText(code))
		return
	}

	var req types.StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		s.errorFor(w, &ErrValidation{Messages: types.ValidationMessages(err)})
		return
	}

	userID, _ := UserIDFromContext(r.Context())
	change := StatusChange{Status: req.Status, Reason: req.Reason, Notes: req.Notes, ChangedBy: userID}
	app, err := s.repo.UpdateStatus(r.Context(), id, change, func(from types.Status) error {
		return s.checkTransition(from, req.Status)
	})
	if err != nil {
		s.errorFor(w, err)
		return
	}
	s.logger.Info("status updated", "id", id, "status", app.Status, "changed_by", userID)
	s.jsonResponse(w, http.StatusOK, app)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	entries, err := s.repo.StatusHistory(r.Context(), id)
	if err != nil {
		s.errorFor(w, err)
		return
	}
	if entries == nil {
		entries = []types.StatusHistoryEntry{}
	}
	s.jsonResponse(w, http.StatusOK, entries)
}

// checkTransition applies the server's business rules to a status change.
func (s *Server) checkTransition(from, to types.Status) error {
	if from == to {
		return &ErrRejected{Detail: "Application is already in the specified status"}
	}
	if !s.strict || allowedTransition(from, to) {
		return nil
	}
	return &ErrRejected{Detail: fmt.Sprintf("Invalid status transition from %s to %s", from, to)}
}

// allowedTransition reports whether to is the next stage after from, or a
// rejection of an open application.
func allowedTransition(from, to types.Status) bool {
	if from == types.StatusHired || from == types.StatusRejected {
		return false
	}
	if to == types.StatusRejected {
		return true
	}
	return to.Index() == from.Index()+1
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		s.errorResponse(w, http.StatusUnprocessableEntity, "Invalid application id")
		return 0, false
	}
	return id, true
}

// writePage slices items by the page and size query parameters and writes
// the paginated envelope.
func writePage[T any](s *Server, w http.ResponseWriter, r *http.Request, items []T) {
	page, size := 1, defaultPageSize
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(q.Get("size")); err == nil && v > 0 {
		size = min(v, maxPageSize)
	}

	total := len(items)
	start := min((page-1)*size, total)
	end := min(start+size, total)
	pageItems := items[start:end]
	if pageItems == nil {
		pageItems = []T{}
	}

	s.jsonResponse(w, http.StatusOK, types.Page[T]{
		Items: pageItems,
		Total: total,
		Page:  page,
		Size:  size,
		Pages: (total + size - 1) / size,
	})
}
