package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"vendorhub/pkg/domain"
	"vendorhub/services/marketplace/internal/app"
)

// reviews

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !s.allowRate(w, r, s.reviewLimiter, "review|"+user.ID, "too many reviews") {
		s.audit(r, "marketplace.review.create", "rate_limited", "user_id", user.ID)
		return
	}
	var req app.ReviewInput
	if !decodeJSON(w, r, &req) {
		return
	}
	review, _, err := s.app.CreateReview(r.Context(), user, req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.ListReviews(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) handleReplyToReview(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.ReplyInput
	if !decodeJSON(w, r, &req) {
		return
	}
	review, err := s.app.ReplyToReview(r.Context(), user, chi.URLParam(r, "id"), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (s *Server) handleModerateReview(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.ModerationInput
	if !decodeJSON(w, r, &req) {
		return
	}
	review, err := s.app.ModerateReview(r.Context(), user, chi.URLParam(r, "id"), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "marketplace.review.moderate", "success", "user_id", user.ID, "review_id", review.ID, "status", review.Status)
	writeJSON(w, http.StatusOK, review)
}

// messaging

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request, user domain.User) {
	items, err := s.app.ListConversations(r.Context(), user)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleStartConversation(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.ConversationInput
	if !decodeJSON(w, r, &req) {
		return
	}
	c, created, err := s.app.StartConversation(r.Context(), user, req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, c)
}

func (s *Server) handleUpdateConversation(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.ConversationPatch
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := s.app.SetConversationStatus(r.Context(), user, chi.URLParam(r, "id"), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request, user domain.User) {
	items, err := s.app.ListMessages(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.MessageInput
	if !decodeJSON(w, r, &req) {
		return
	}
	msg, err := s.app.SendMessage(r.Context(), user, chi.URLParam(r, "id"), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request, user domain.User) {
	n, err := s.app.MarkRead(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

// admin

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.CampaignInput
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := s.app.CreateCampaign(r.Context(), user, req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "marketplace.campaign.create", "success", "user_id", user.ID, "campaign_id", c.ID, "recipients", c.RecipientCount)
	writeJSON(w, http.StatusAccepted, c)
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request, user domain.User) {
	items, err := s.app.ListCampaigns(r.Context(), user)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
