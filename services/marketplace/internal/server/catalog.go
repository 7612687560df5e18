package server

import (
	"bufio"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"vendorhub/internal/validation"
	"vendorhub/pkg/domain"
	"vendorhub/pkg/store"
	"vendorhub/services/marketplace/internal/app"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.ListCategories(r.Context()))
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	c, err := s.app.GetCategoryBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.CategoryInput
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := s.app.CreateCategory(r.Context(), user, req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// handleSearchVendors answers GET /vendors. Set filters accept repeated
// parameters or comma-separated values.
func (s *Server) handleSearchVendors(w http.ResponseWriter, r *http.Request) {
	q, err := parseVendorQuery(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	vendors, err := s.app.SearchVendors(r.Context(), q)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vendors)
}

func parseVendorQuery(r *http.Request) (store.VendorQuery, error) {
	values := r.URL.Query()
	q := store.VendorQuery{
		Search:     values.Get("search"),
		CategoryID: values.Get("categoryId"),
		Location:   values.Get("location"),
		PriceRange: values.Get("priceRange"),
		Dietary:    listParam(values["dietary"]),
		Cuisine:    listParam(values["cuisine"]),
		Theme:      listParam(values["theme"]),
	}
	var err error
	if q.Page, err = intParam(values.Get("page"), "page"); err != nil {
		return q, err
	}
	if q.Limit, err = intParam(values.Get("limit"), "limit"); err != nil {
		return q, err
	}
	return q, nil
}

func listParam(raw []string) []string {
	var out []string
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func intParam(raw, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, validation.Field(field, "number", field+" must be a non-negative integer")
	}
	return n, nil
}

func timeParam(raw, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, validation.Field(field, "datetime", field+" must be an RFC 3339 timestamp")
	}
	return t, nil
}

func (s *Server) handleGetVendor(w http.ResponseWriter, r *http.Request) {
	v, err := s.app.GetVendor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleCreateVendor(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.VendorInput
	if !decodeJSON(w, r, &req) {
		return
	}
	v, err := s.app.CreateVendor(r.Context(), user, req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleUpdateVendor(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.VendorPatch
	if !decodeJSON(w, r, &req) {
		return
	}
	v, err := s.app.UpdateVendor(r.Context(), user, chi.URLParam(r, "id"), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDeleteVendor(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.DeleteVendor(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "marketplace.vendor.delete", "success", "user_id", user.ID, "vendor_id", chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChangeSubscription(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.SubscriptionInput
	if !decodeJSON(w, r, &req) {
		return
	}
	v, err := s.app.ChangeSubscription(r.Context(), user, chi.URLParam(r, "id"), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "marketplace.subscription.change", "success", "user_id", user.ID, "vendor_id", v.ID, "tier", v.SubscriptionTier)
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleListPhotos(w http.ResponseWriter, r *http.Request) {
	photos, err := s.app.ListPhotos(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, photos)
}

func (s *Server) handleUploadPhoto(w http.ResponseWriter, r *http.Request, user domain.User) {
	r.Body = http.MaxBytesReader(w, r.Body, s.app.MaxPhotoBytes()+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_form", "invalid form data or file too large")
		return
	}
	defer r.MultipartForm.RemoveAll()
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_form", "file is required (field: file)")
		return
	}
	defer file.Close()

	body := bufio.NewReader(file)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		head, _ := body.Peek(512)
		contentType = http.DetectContentType(head)
	}
	photo, err := s.app.UploadPhoto(r.Context(), user, chi.URLParam(r, "id"), app.PhotoUpload{
		Reader:      body,
		Size:        header.Size,
		ContentType: contentType,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, photo)
}

func (s *Server) handleDeletePhoto(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.DeletePhoto(r.Context(), user, chi.URLParam(r, "id"), chi.URLParam(r, "photoId")); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCalendar(w http.ResponseWriter, r *http.Request) {
	from, err := timeParam(r.URL.Query().Get("from"), "from")
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	to, err := timeParam(r.URL.Query().Get("to"), "to")
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	items, err := s.app.ListCalendar(r.Context(), chi.URLParam(r, "id"), from, to)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateCalendarEvent(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.CalendarInput
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := s.app.CreateCalendarEvent(r.Context(), user, chi.URLParam(r, "id"), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleDeleteCalendarEvent(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.DeleteCalendarEvent(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVendorAnalytics(w http.ResponseWriter, r *http.Request, user domain.User) {
	days, err := intParam(r.URL.Query().Get("days"), "days")
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	dash, err := s.app.VendorAnalytics(r.Context(), user, chi.URLParam(r, "id"), days)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}
