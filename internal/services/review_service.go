package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lillerent/backend/internal/models"
)

// ReviewService exposes the admin moderation queue. Approval is the gate
// for monetization: leads cannot be unlocked and listings cannot be
// promoted or publicly listed until approved.
type ReviewService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewReviewService(db *sql.DB) *ReviewService {
	return &ReviewService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

type reviewRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
	Note   string `json:"note" validate:"max=500"`
}

// Summary reports pending moderation counts.
// @Summary Moderation queue summary
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{pendingLeads=int,pendingListings=int}
// @Router /admin/review/summary [get]
func (s *ReviewService) Summary(w http.ResponseWriter, r *http.Request) {
	var pendingLeads, pendingListings int
	err := s.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM leads WHERE review_status = 'pending'),
			(SELECT COUNT(*) FROM listings WHERE review_status = 'pending')`).
		Scan(&pendingLeads, &pendingListings)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch summary", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{
		"pendingLeads":    pendingLeads,
		"pendingListings": pendingListings,
	})
}

// ListLeadsForReview returns leads in a given review status, unredacted:
// moderators see the real contact details.
// @Summary Leads pending moderation
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Review status (default pending)"
// @Success 200 {object} object{leads=[]models.Lead,count=int}
// @Router /admin/review/leads [get]
func (s *ReviewService) ListLeadsForReview(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.ReviewPending
	}
	if status != models.ReviewPending && status != models.ReviewApproved && status != models.ReviewRejected {
		SendErrorResponse(w, "Invalid status", http.StatusBadRequest, nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT id, listing_id, requirement, COALESCE(budget, ''), move_in_date,
		       wechat_id, COALESCE(phone, ''), COALESCE(email, ''),
		       review_status, COALESCE(review_note, ''), reviewed_at, reviewed_by, created_at
		FROM leads
		WHERE review_status = $1
		ORDER BY created_at ASC`, status)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch leads", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	leads := []models.Lead{}
	for rows.Next() {
		var l models.Lead
		var listingID, reviewedBy sql.NullInt64
		if err := rows.Scan(&l.ID, &listingID, &l.Requirement, &l.Budget, &l.MoveInDate,
			&l.WechatID, &l.Phone, &l.Email,
			&l.ReviewStatus, &l.ReviewNote, &l.ReviewedAt, &reviewedBy, &l.CreatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch leads", http.StatusInternalServerError, nil)
			return
		}
		if listingID.Valid {
			id := int(listingID.Int64)
			l.ListingID = &id
		}
		if reviewedBy.Valid {
			id := int(reviewedBy.Int64)
			l.ReviewedBy = &id
		}
		leads = append(leads, l)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"leads": leads,
		"count": len(leads),
	})
}

// ListListingsForReview returns listings in a given review status.
// @Summary Listings pending moderation
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Review status (default pending)"
// @Success 200 {object} object{listings=[]models.Listing,count=int}
// @Router /admin/review/listings [get]
func (s *ReviewService) ListListingsForReview(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.ReviewPending
	}
	if status != models.ReviewPending && status != models.ReviewApproved && status != models.ReviewRejected {
		SendErrorResponse(w, "Invalid status", http.StatusBadRequest, nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT `+listingColumns+`
		FROM listings
		WHERE review_status = $1
		ORDER BY created_at ASC`, status)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch listings", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	listings := []models.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			SendErrorResponse(w, "Failed to fetch listings", http.StatusInternalServerError, nil)
			return
		}
		listings = append(listings, l)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"listings": listings,
		"count":    len(listings),
	})
}

// ReviewLead approves or rejects a lead.
// @Summary Review a lead
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Lead ID"
// @Param request body services.reviewRequest true "Verdict"
// @Success 200 {object} object{id=int,reviewStatus=string}
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/review/leads/{id} [patch]
func (s *ReviewService) ReviewLead(w http.ResponseWriter, r *http.Request) {
	s.review(w, r, "leads")
}

// ReviewListing approves or rejects a listing.
// @Summary Review a listing
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Listing ID"
// @Param request body services.reviewRequest true "Verdict"
// @Success 200 {object} object{id=int,reviewStatus=string}
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/review/listings/{id} [patch]
func (s *ReviewService) ReviewListing(w http.ResponseWriter, r *http.Request) {
	s.review(w, r, "listings")
}

// review applies a verdict to a row in the given table. The table name is
// one of two compile-time constants, never caller input.
func (s *ReviewService) review(w http.ResponseWriter, r *http.Request, table string) {
	adminID, _, ok := landlordFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	resourceID := chi.URLParam(r, "id")

	var req reviewRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var id int
	err := s.db.QueryRow(`
		UPDATE `+table+`
		SET review_status = $1, review_note = $2, reviewed_at = NOW(), reviewed_by = $3
		WHERE id = $4
		RETURNING id`,
		req.Status, req.Note, adminID, resourceID).Scan(&id)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[REVIEW] Failed to review %s %s: %v", table, resourceID, err)
		SendErrorResponse(w, "Failed to apply review", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[REVIEW] Admin %d set %s %d to %s", adminID, table, id, req.Status)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":           id,
		"reviewStatus": req.Status,
	})
}
