package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/lillerent/backend/internal/models"
)

// PromoteDefaultPriceEuros buys PromoteDefaultDays of promoted placement.
const (
	PromoteDefaultPriceEuros = 10
	PromoteDefaultDays       = 7
	promoteMaxDays           = 90
)

// ListingService manages rental advertisements: owner CRUD, the public
// promoted-first feed with its lazy expiry sweep, and paid promotion.
type ListingService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewListingService(db *sql.DB) *ListingService {
	return &ListingService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

const listingColumns = `
	id, landlord_id, title, COALESCE(description, ''), price, location, COALESCE(address, ''),
	images, tags, review_status, COALESCE(review_note, ''), is_active, is_promoted, promoted_until, created_at`

func scanListing(row interface{ Scan(...any) error }) (models.Listing, error) {
	var l models.Listing
	err := row.Scan(&l.ID, &l.LandlordID, &l.Title, &l.Description, &l.Price, &l.Location, &l.Address,
		&l.Images, &l.Tags, &l.ReviewStatus, &l.ReviewNote, &l.IsActive, &l.IsPromoted, &l.PromotedUntil, &l.CreatedAt)
	return l, err
}

// ListPublicListings returns active approved listings, promoted first. The
// expiry sweep runs as a single guarded UPDATE before the read so a lapsed
// promotion can never surface, regardless of how stale it is.
// @Summary Public listing feed
// @Tags listings
// @Produce json
// @Success 200 {object} object{listings=[]models.Listing,count=int}
// @Router /listings [get]
func (s *ListingService) ListPublicListings(w http.ResponseWriter, r *http.Request) {
	if _, err := s.db.Exec(`
		UPDATE listings SET is_promoted = FALSE, promoted_until = NULL
		WHERE is_promoted = TRUE AND promoted_until IS NOT NULL AND promoted_until <= NOW()`); err != nil {
		log.Printf("[LISTINGS] Promotion expiry sweep failed: %v", err)
	}

	rows, err := s.db.Query(`
		SELECT ` + listingColumns + `
		FROM listings
		WHERE is_active = TRUE AND review_status = 'approved'
		ORDER BY is_promoted DESC, created_at DESC`)
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

// GetListing returns one listing. Unapproved listings are visible only to
// their owner and admins; everyone else gets 404 rather than 403 so that
// pending listings are not enumerable.
// @Summary Get a listing
// @Tags listings
// @Produce json
// @Param id path int true "Listing ID"
// @Success 200 {object} object{listing=models.Listing}
// @Failure 404 {object} services.ErrorResponse
// @Router /listings/{id} [get]
func (s *ListingService) GetListing(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "id")

	row := s.db.QueryRow(`SELECT `+listingColumns+` FROM listings WHERE id = $1`, listingID)
	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Listing not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to fetch listing", http.StatusInternalServerError, nil)
		return
	}

	if l.ReviewStatus != models.ReviewApproved {
		viewerID, _, _ := landlordFromContext(r)
		isOwner := viewerID == l.LandlordID
		isAdmin := roleFromContext(r) == models.RoleAdmin
		if !isOwner && !isAdmin {
			SendErrorResponse(w, "Listing not found", http.StatusNotFound, nil)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"listing": l})
}

// ListMyListings returns every listing of the authenticated landlord,
// including pending and rejected ones.
// @Summary My listings
// @Tags listings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{listings=[]models.Listing,count=int}
// @Router /listings/mine [get]
func (s *ListingService) ListMyListings(w http.ResponseWriter, r *http.Request) {
	landlordID, _, ok := landlordFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT `+listingColumns+`
		FROM listings
		WHERE landlord_id = $1
		ORDER BY created_at DESC`, landlordID)
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

type listingRequest struct {
	Title       string   `json:"title" validate:"required,min=2,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	Price       float64  `json:"price" validate:"required,gt=0"`
	Location    string   `json:"location" validate:"required,max=200"`
	Address     string   `json:"address" validate:"max=300"`
	Images      []string `json:"images" validate:"max=20,dive,max=500"`
	Tags        []string `json:"tags" validate:"max=20,dive,max=50"`
}

// CreateListing creates a listing owned by the caller, entering moderation
// as pending.
// @Summary Create a listing
// @Tags listings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.listingRequest true "Listing"
// @Success 201 {object} object{listing=models.Listing}
// @Failure 400 {object} services.ErrorResponse
// @Router /listings [post]
func (s *ListingService) CreateListing(w http.ResponseWriter, r *http.Request) {
	landlordID, _, ok := landlordFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	req, ok := s.decodeListing(w, r)
	if !ok {
		return
	}

	row := s.db.QueryRow(`
		INSERT INTO listings (landlord_id, title, description, price, location, address, images, tags, review_status, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', TRUE, NOW())
		RETURNING `+listingColumns,
		landlordID, req.Title, req.Description, req.Price, req.Location, req.Address,
		pq.Array(req.Images), pq.Array(req.Tags))
	l, err := scanListing(row)
	if err != nil {
		log.Printf("[LISTINGS] Failed to create listing for landlord %d: %v", landlordID, err)
		SendErrorResponse(w, "Failed to create listing", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[LISTINGS] Listing %d created by landlord %d (pending review)", l.ID, landlordID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"listing": l})
}

// UpdateListing replaces the editable fields of an owned listing and resets
// it to pending review, since edited content needs re-approval.
// @Summary Update a listing
// @Tags listings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Listing ID"
// @Param request body services.listingRequest true "Listing"
// @Success 200 {object} object{listing=models.Listing}
// @Failure 404 {object} services.ErrorResponse
// @Router /listings/{id} [put]
func (s *ListingService) UpdateListing(w http.ResponseWriter, r *http.Request) {
	landlordID, _, ok := landlordFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	listingID := chi.URLParam(r, "id")
	req, ok := s.decodeListing(w, r)
	if !ok {
		return
	}

	row := s.db.QueryRow(`
		UPDATE listings
		SET title = $1, description = $2, price = $3, location = $4, address = $5,
		    images = $6, tags = $7, review_status = 'pending'
		WHERE id = $8 AND landlord_id = $9
		RETURNING `+listingColumns,
		req.Title, req.Description, req.Price, req.Location, req.Address,
		pq.Array(req.Images), pq.Array(req.Tags), listingID, landlordID)
	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Listing not found or not yours", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to update listing", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"listing": l})
}

// DeleteListing removes an owned listing.
// @Summary Delete a listing
// @Tags listings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Listing ID"
// @Success 200 {object} object{deleted=bool}
// @Failure 404 {object} services.ErrorResponse
// @Router /listings/{id} [delete]
func (s *ListingService) DeleteListing(w http.ResponseWriter, r *http.Request) {
	landlordID, _, ok := landlordFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	listingID := chi.URLParam(r, "id")
	result, err := s.db.Exec(`DELETE FROM listings WHERE id = $1 AND landlord_id = $2`, listingID, landlordID)
	if err != nil {
		SendErrorResponse(w, "Failed to delete listing", http.StatusInternalServerError, nil)
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		SendErrorResponse(w, "Listing not found or not yours", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"deleted": true})
}

// PromoteListing debits the promotion fee and marks an owned, approved
// listing as promoted until now+days. Re-promoting before expiry extends
// from now, not from the previous expiry. Debit, listing mutation and
// ledger entry commit in one transaction.
// @Summary Promote a listing
// @Tags listings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Listing ID"
// @Param request body object{days=int,price=float64} false "Defaults: 7 days, 10 EUR"
// @Success 200 {object} object{listing=models.Listing,balance=float64}
// @Failure 400 {object} services.ErrorResponse
// @Failure 402 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Router /listings/{id}/promote [post]
func (s *ListingService) PromoteListing(w http.ResponseWriter, r *http.Request) {
	landlordID, _, ok := landlordFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	listingID := chi.URLParam(r, "id")

	days := PromoteDefaultDays
	price := float64(PromoteDefaultPriceEuros)
	if r.Body != nil {
		var req struct {
			Days  *int     `json:"days"`
			Price *float64 `json:"price"`
		}
		// An absent body keeps the defaults; a body that fails to decode is
		// rejected before any debit.
		err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req)
		if err != nil && err != io.EOF {
			SendErrorResponse(w, "Invalid days or price", http.StatusBadRequest, nil)
			return
		}
		if req.Days != nil {
			days = *req.Days
		}
		if req.Price != nil {
			price = *req.Price
		}
	}

	l, balance, err := s.promote(landlordID, listingID, days, price)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidArgument):
		SendErrorResponse(w, "Invalid days or price", http.StatusBadRequest, nil)
		return
	case errors.Is(err, ErrNotFound):
		SendErrorResponse(w, "Listing not found or not yours", http.StatusNotFound, nil)
		return
	case errors.Is(err, ErrNotEligible):
		SendErrorResponse(w, "Listing pending review, cannot promote yet", http.StatusForbidden, nil)
		return
	case errors.Is(err, ErrInsufficientBalance):
		SendCodedErrorResponse(w, "Insufficient balance. Please top up.", CodeInsufficientBalance, http.StatusPaymentRequired)
		return
	default:
		log.Printf("[LISTINGS] Promote failed: landlord=%d listing=%s: %v", landlordID, listingID, err)
		SendErrorResponse(w, "Failed to promote listing", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[LISTINGS] Listing %d promoted by landlord %d for %d days", l.ID, landlordID, days)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"listing": l,
		"balance": float64(balance) / 100,
	})
}

// promote validates the terms, then runs debit, listing mutation and
// ledger entry in one transaction. Re-promoting extends from now rather
// than stacking on the previous expiry.
func (s *ListingService) promote(landlordID int, listingID string, days int, price float64) (models.Listing, int64, error) {
	var l models.Listing

	if days <= 0 || days > promoteMaxDays {
		return l, 0, ErrInvalidArgument
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return l, 0, ErrInvalidArgument
	}
	priceCents := EurosToCents(price)

	tx, err := s.db.Begin()
	if err != nil {
		return l, 0, err
	}
	defer tx.Rollback()

	var reviewStatus string
	var id int
	err = tx.QueryRow(`
		SELECT id, review_status FROM listings WHERE id = $1 AND landlord_id = $2`,
		listingID, landlordID).Scan(&id, &reviewStatus)
	if err == sql.ErrNoRows {
		return l, 0, ErrNotFound
	}
	if err != nil {
		return l, 0, err
	}
	if reviewStatus != models.ReviewApproved {
		return l, 0, ErrNotEligible
	}

	result, err := tx.Exec(`
		UPDATE landlords SET balance_cents = balance_cents - $1
		WHERE id = $2 AND balance_cents >= $1`,
		priceCents, landlordID)
	if err != nil {
		return l, 0, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return l, 0, err
	}
	if rowsAffected == 0 {
		return l, 0, ErrInsufficientBalance
	}

	until := time.Now().Add(time.Duration(days) * 24 * time.Hour)
	row := tx.QueryRow(`
		UPDATE listings SET is_promoted = TRUE, promoted_until = $1
		WHERE id = $2
		RETURNING `+listingColumns, until, id)
	l, err = scanListing(row)
	if err != nil {
		return l, 0, err
	}

	if _, err := tx.Exec(`
		INSERT INTO ledger_entries (id, landlord_id, amount_cents, currency, kind, status, target_id, created_at)
		VALUES ($1, $2, $3, 'EUR', 'promote_listing', 'completed', $4, NOW())`,
		uuid.NewString(), landlordID, -priceCents, id); err != nil {
		return l, 0, err
	}

	var balance int64
	if err := tx.QueryRow(`SELECT balance_cents FROM landlords WHERE id = $1`, landlordID).Scan(&balance); err != nil {
		return l, 0, err
	}

	if err := tx.Commit(); err != nil {
		return l, 0, err
	}

	return l, balance, nil
}

func (s *ListingService) decodeListing(w http.ResponseWriter, r *http.Request) (listingRequest, bool) {
	var req listingRequest

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return req, false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return req, false
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return req, false
	}
	return req, true
}
