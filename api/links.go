package api

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	linkstash "github.com/zombar/linkstash"
	"github.com/zombar/linkstash/metrics"
	"github.com/zombar/linkstash/models"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// SaveLinkRequest is the save-link request body.
type SaveLinkRequest struct {
	URL string `json:"url"`
}

// handleSaveLink runs the ingestion pipeline:
// validate → duplicate pre-check → extract → enrich → persist.
// Everything after validation is best-effort: a dead page or model outage
// degrades the stored metadata but never fails the save.
func (s *Server) handleSaveLink(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req SaveLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		respondError(w, http.StatusBadRequest, "URL is required")
		return
	}
	if err := linkstash.ValidateURL(req.URL); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid URL format")
		return
	}

	// Pre-check before any costly I/O; the UNIQUE constraint catches the
	// race where two saves of the same URL pass this check concurrently.
	exists, err := s.store.LinkExists(user.ID, req.URL)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if exists {
		respondError(w, http.StatusBadRequest, "Link already saved")
		return
	}

	meta, _ := s.extractor.ExtractMetadata(r.Context(), req.URL)
	enrichment := s.enricher.Enrich(r.Context(), meta, req.URL)

	link := &models.Link{
		UserID:      user.ID,
		URL:         req.URL,
		Title:       meta.Title,
		Description: meta.Description,
		Image:       meta.Image,
		Domain:      meta.Domain,
		Tags:        enrichment.Tags,
	}
	if err := s.store.CreateLink(link); err != nil {
		if isDuplicate(err) {
			respondError(w, http.StatusBadRequest, "Link already saved")
			return
		}
		respondStoreError(w, err)
		return
	}

	outcome := "enriched"
	if enrichment.Degraded {
		outcome = "degraded"
	}
	metrics.LinksSavedTotal.WithLabelValues(outcome).Inc()

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Link saved successfully",
		"link": models.LinkWithSummary{
			Link:    *link,
			Summary: enrichment.Summary,
		},
	})
}

// pageParams parses page/limit query parameters with defaults and bounds.
func pageParams(r *http.Request) (page, limit int) {
	page = defaultPage
	limit = defaultLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

// paginationFor computes the pagination block for a page of results.
func paginationFor(page, limit, totalLinks int) models.Pagination {
	totalPages := int(math.Ceil(float64(totalLinks) / float64(limit)))
	return models.Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalLinks:  totalLinks,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

// handleListLinks lists the user's links newest first.
func (s *Server) handleListLinks(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	page, limit := pageParams(r)

	totalLinks, err := s.store.CountLinks(user.ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	links, err := s.store.ListLinks(user.ID, limit, (page-1)*limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if links == nil {
		links = []*models.Link{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"links":      links,
		"pagination": paginationFor(page, limit, totalLinks),
	})
}

// handleSearchLinks searches the user's links by substring and tag.
func (s *Server) handleSearchLinks(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	page, limit := pageParams(r)
	query := r.URL.Query().Get("q")
	tag := r.URL.Query().Get("tags")

	totalLinks, err := s.store.CountSearchLinks(user.ID, query, tag)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	links, err := s.store.SearchLinks(user.ID, query, tag, limit, (page-1)*limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if links == nil {
		links = []*models.Link{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"links":       links,
		"pagination":  paginationFor(page, limit, totalLinks),
		"searchQuery": query,
		"tagFilter":   tag,
	})
}

// linkID validates the {id} path parameter.
func linkID(r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// handleLinkDetails returns a stored link with a freshly generated summary.
// The summary is recomputed on every view against the live page and is never
// persisted; any failure along the way degrades it to the fallback string.
func (s *Server) handleLinkDetails(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	id, ok := linkID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid link ID")
		return
	}

	link, err := s.store.GetLinkByID(user.ID, id)
	if err != nil {
		if isNotFound(err) {
			respondError(w, http.StatusNotFound, "Link not found")
			return
		}
		respondStoreError(w, err)
		return
	}

	// Fresh page text, stored title/description: the stored fields are what
	// the user has been shown, the live text keeps the summary current.
	fresh, _ := s.extractor.ExtractMetadata(r.Context(), link.URL)
	summary := s.enricher.Summarize(r.Context(), &models.PageMetadata{
		Title:       link.Title,
		Description: link.Description,
		PageText:    fresh.PageText,
	})

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"link": models.LinkWithSummary{
			Link:    *link,
			Summary: summary,
		},
	})
}

// handleDeleteLink removes a link owned by the caller.
func (s *Server) handleDeleteLink(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	id, ok := linkID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid link ID")
		return
	}

	if err := s.store.DeleteLink(user.ID, id); err != nil {
		if isNotFound(err) {
			respondError(w, http.StatusNotFound, "Link not found")
			return
		}
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Link deleted successfully",
	})
}
