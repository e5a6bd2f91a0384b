package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/lillerent/backend/internal/models"
)

// UnlockCostCents is the flat price for revealing a lead's contact details.
const UnlockCostCents = 100

// LeadService handles tenant contact requests: public submission, the
// redacted landlord-facing list, and the paid unlock.
type LeadService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewLeadService(db *sql.DB) *LeadService {
	return &LeadService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

type createLeadRequest struct {
	ListingID   *int   `json:"listingId"`
	Requirement string `json:"requirement" validate:"required,min=5,max=2000"`
	Budget      string `json:"budget" validate:"max=100"`
	MoveInDate  string `json:"moveInDate" validate:"omitempty,datetime=2006-01-02"`
	WechatID    string `json:"wechatId" validate:"required,min=2,max=100"`
	Phone       string `json:"phone" validate:"omitempty,max=30"`
	Email       string `json:"email" validate:"omitempty,email"`
}

// CreateLead accepts a tenant enquiry from the public site. Nothing is
// visible to landlords until moderation approves it.
// @Summary Submit a tenant enquiry
// @Tags leads
// @Accept json
// @Produce json
// @Param request body services.createLeadRequest true "Enquiry"
// @Success 201 {object} object{id=int,reviewStatus=string}
// @Failure 400 {object} services.ErrorResponse
// @Router /leads [post]
func (s *LeadService) CreateLead(w http.ResponseWriter, r *http.Request) {
	var req createLeadRequest

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
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

	if req.ListingID != nil {
		var exists bool
		err := s.db.QueryRow(`
			SELECT EXISTS(SELECT 1 FROM listings WHERE id = $1 AND is_active = TRUE)`,
			*req.ListingID).Scan(&exists)
		if err != nil || !exists {
			SendErrorResponse(w, "Listing not found", http.StatusBadRequest, nil)
			return
		}
	}

	var moveIn *time.Time
	if req.MoveInDate != "" {
		t, _ := time.Parse("2006-01-02", req.MoveInDate)
		moveIn = &t
	}

	var leadID int
	err := s.db.QueryRow(`
		INSERT INTO leads (listing_id, requirement, budget, move_in_date, wechat_id, phone, email, review_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', NOW())
		RETURNING id`,
		req.ListingID, req.Requirement, req.Budget, moveIn, req.WechatID, req.Phone, req.Email).Scan(&leadID)
	if err != nil {
		log.Printf("[LEADS] Failed to create lead: %v", err)
		SendErrorResponse(w, "Failed to create enquiry", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[LEADS] Lead %d created (pending review)", leadID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"id":           leadID,
		"reviewStatus": models.ReviewPending,
	})
}

// ListLeads returns approved leads for the authenticated landlord. Contact
// fields are redacted unless this landlord has unlocked the lead; the redaction
// happens here, never client-side.
// @Summary List approved leads
// @Tags leads
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{leads=[]models.Lead,count=int}
// @Router /leads [get]
func (s *LeadService) ListLeads(w http.ResponseWriter, r *http.Request) {
	landlordID, _, ok := landlordFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT l.id, l.listing_id, l.requirement, COALESCE(l.budget, ''), l.move_in_date,
		       l.wechat_id, COALESCE(l.phone, ''), COALESCE(l.email, ''),
		       l.review_status, l.created_at,
		       (u.lead_id IS NOT NULL) AS unlocked
		FROM leads l
		LEFT JOIN lead_unlocks u ON u.lead_id = l.id AND u.landlord_id = $1
		WHERE l.review_status = 'approved'
		ORDER BY l.created_at DESC`, landlordID)
	if err != nil {
		log.Printf("[LEADS] Failed to list leads for landlord %d: %v", landlordID, err)
		SendErrorResponse(w, "Failed to fetch leads", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	leads := []models.Lead{}
	for rows.Next() {
		var l models.Lead
		var listingID sql.NullInt64
		if err := rows.Scan(&l.ID, &listingID, &l.Requirement, &l.Budget, &l.MoveInDate,
			&l.WechatID, &l.Phone, &l.Email, &l.ReviewStatus, &l.CreatedAt, &l.IsUnlocked); err != nil {
			SendErrorResponse(w, "Failed to fetch leads", http.StatusInternalServerError, nil)
			return
		}
		if listingID.Valid {
			id := int(listingID.Int64)
			l.ListingID = &id
		}
		if !l.IsUnlocked {
			l.Redact()
		}
		leads = append(leads, l)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"leads": leads,
		"count": len(leads),
	})
}

// UnlockLead debits the flat unlock fee and reveals a lead's contact
// details.
// @Summary Unlock a lead's contact details
// @Tags leads
// @Produce json
// @Security BearerAuth
// @Param id path int true "Lead ID"
// @Success 200 {object} object{lead=models.Lead,balance=float64}
// @Failure 402 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /leads/{id}/unlock [post]
func (s *LeadService) UnlockLead(w http.ResponseWriter, r *http.Request) {
	landlordID, _, ok := landlordFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	leadID := chi.URLParam(r, "id")
	if leadID == "" {
		SendErrorResponse(w, "Missing lead ID", http.StatusBadRequest, nil)
		return
	}

	lead, balance, err := s.unlock(landlordID, leadID)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		SendErrorResponse(w, "Lead not found", http.StatusNotFound, nil)
		return
	case errors.Is(err, ErrNotEligible):
		SendErrorResponse(w, "Lead pending review, cannot unlock yet", http.StatusForbidden, nil)
		return
	case errors.Is(err, ErrAlreadyUnlocked):
		SendErrorResponse(w, "Lead already unlocked", http.StatusConflict, nil)
		return
	case errors.Is(err, ErrInsufficientBalance):
		SendCodedErrorResponse(w, "Insufficient balance. Please top up.", CodeInsufficientBalance, http.StatusPaymentRequired)
		return
	default:
		log.Printf("[LEADS] Unlock failed: landlord=%d lead=%s: %v", landlordID, leadID, err)
		SendErrorResponse(w, "Failed to unlock lead", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[LEADS] Landlord %d unlocked lead %d (-%d cents)", landlordID, lead.ID, UnlockCostCents)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"lead":    lead,
		"balance": float64(balance) / 100,
	})
}

// unlock runs the purchase in one transaction: precondition checks, the
// guarded balance debit, the unlock record and the ledger entry. The
// conditional UPDATE means two concurrent unlocks can never overdraw; the
// lead_unlocks primary key backstops the duplicate check.
func (s *LeadService) unlock(landlordID int, leadID string) (models.Lead, int64, error) {
	var lead models.Lead

	tx, err := s.db.Begin()
	if err != nil {
		return lead, 0, err
	}
	defer tx.Rollback()

	var listingID sql.NullInt64
	err = tx.QueryRow(`
		SELECT id, listing_id, requirement, COALESCE(budget, ''), move_in_date,
		       wechat_id, COALESCE(phone, ''), COALESCE(email, ''), review_status, created_at
		FROM leads WHERE id = $1`, leadID).Scan(
		&lead.ID, &listingID, &lead.Requirement, &lead.Budget, &lead.MoveInDate,
		&lead.WechatID, &lead.Phone, &lead.Email, &lead.ReviewStatus, &lead.CreatedAt)
	if err == sql.ErrNoRows {
		return lead, 0, ErrNotFound
	}
	if err != nil {
		return lead, 0, err
	}
	if listingID.Valid {
		id := int(listingID.Int64)
		lead.ListingID = &id
	}

	if lead.ReviewStatus != models.ReviewApproved {
		return lead, 0, ErrNotEligible
	}

	var alreadyUnlocked bool
	if err := tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM lead_unlocks WHERE lead_id = $1 AND landlord_id = $2)`,
		lead.ID, landlordID).Scan(&alreadyUnlocked); err != nil {
		return lead, 0, err
	}
	if alreadyUnlocked {
		return lead, 0, ErrAlreadyUnlocked
	}

	result, err := tx.Exec(`
		UPDATE landlords SET balance_cents = balance_cents - $1
		WHERE id = $2 AND balance_cents >= $1`,
		UnlockCostCents, landlordID)
	if err != nil {
		return lead, 0, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return lead, 0, err
	}
	if rowsAffected == 0 {
		return lead, 0, ErrInsufficientBalance
	}

	if _, err := tx.Exec(`
		INSERT INTO lead_unlocks (lead_id, landlord_id, created_at) VALUES ($1, $2, NOW())`,
		lead.ID, landlordID); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return lead, 0, ErrAlreadyUnlocked
		}
		return lead, 0, err
	}

	if _, err := tx.Exec(`
		INSERT INTO ledger_entries (id, landlord_id, amount_cents, currency, kind, status, target_id, created_at)
		VALUES ($1, $2, $3, 'EUR', 'unlock_lead', 'completed', $4, NOW())`,
		uuid.NewString(), landlordID, int64(-UnlockCostCents), lead.ID); err != nil {
		return lead, 0, err
	}

	var balance int64
	if err := tx.QueryRow(`SELECT balance_cents FROM landlords WHERE id = $1`, landlordID).Scan(&balance); err != nil {
		return lead, 0, err
	}

	if err := tx.Commit(); err != nil {
		return lead, 0, err
	}

	lead.IsUnlocked = true
	return lead, balance, nil
}
