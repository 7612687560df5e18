package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"vendorhub/pkg/domain"
	"vendorhub/services/marketplace/internal/app"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// auth handlers
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.signupLimiter, s.ipKey(r), "too many signup attempts") {
		s.audit(r, "marketplace.signup", "rate_limited")
		return
	}
	var req app.SignUpInput
	if !decodeJSON(w, r, &req) {
		s.audit(r, "marketplace.signup", "fail", "reason", "invalid_json")
		return
	}
	user, token, err := s.app.SignUp(r.Context(), req)
	if err != nil {
		s.audit(r, "marketplace.signup", "fail", "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "marketplace.signup", "success", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.loginLimiter, s.ipKey(r), "too many login attempts") {
		s.audit(r, "marketplace.login", "rate_limited")
		return
	}
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		s.audit(r, "marketplace.login", "fail", "reason", "invalid_json")
		return
	}
	user, token, err := s.app.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.audit(r, "marketplace.login", "fail", "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "marketplace.login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, user domain.User) {
	token, _ := bearerToken(r)
	if err := s.app.Logout(token); err != nil {
		s.audit(r, "marketplace.logout", "fail", "user_id", user.ID, "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "marketplace.logout", "success", "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, user domain.User) {
	writeJSON(w, http.StatusOK, user)
}

// shortlists

// handleAddShortlist answers 201 for both a new entry and an existing one so
// retries look the same to clients.
func (s *Server) handleAddShortlist(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.ShortlistInput
	if !decodeJSON(w, r, &req) {
		return
	}
	item, _, err := s.app.AddShortlist(r.Context(), user, req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleListShortlists(w http.ResponseWriter, r *http.Request, user domain.User) {
	items, err := s.app.ListShortlists(r.Context(), user)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleIsShortlisted(w http.ResponseWriter, r *http.Request, user domain.User) {
	ok, err := s.app.IsShortlisted(r.Context(), user, chi.URLParam(r, "userId"), chi.URLParam(r, "vendorId"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"shortlisted": ok})
}

func (s *Server) handleRemoveShortlist(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.RemoveShortlist(r.Context(), user, chi.URLParam(r, "userId"), chi.URLParam(r, "vendorId")); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// tasks

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request, user domain.User) {
	items, err := s.app.ListTasks(r.Context(), user)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.TaskInput
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := s.app.CreateTask(r.Context(), user, req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.TaskPatch
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := s.app.UpdateTask(r.Context(), user, chi.URLParam(r, "id"), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.DeleteTask(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// timeline

func (s *Server) handleListTimeline(w http.ResponseWriter, r *http.Request, user domain.User) {
	items, err := s.app.ListTimelineEvents(r.Context(), user)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateTimelineEvent(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.TimelineInput
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := s.app.CreateTimelineEvent(r.Context(), user, req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleUpdateTimelineEvent(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.TimelinePatch
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := s.app.UpdateTimelineEvent(r.Context(), user, chi.URLParam(r, "id"), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteTimelineEvent(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.DeleteTimelineEvent(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
