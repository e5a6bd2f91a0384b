package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/lillerent/backend/internal/models"
)

var listingCols = []string{"id", "landlord_id", "title", "description", "price", "location", "address",
	"images", "tags", "review_status", "review_note", "is_active", "is_promoted", "promoted_until", "created_at"}

func listingRow(rows *sqlmock.Rows, id int, promoted bool) *sqlmock.Rows {
	return rows.AddRow(id, 1, fmt.Sprintf("Listing %d", id), "Bright and quiet", 750.0, "Lille", "12 Rue Solférino",
		"{}", "{}", "approved", "", true, promoted, nil, testTime())
}

func TestListingService_ListPublicListings(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewListingService(db)

	// Expiry sweep runs before the read.
	dbMock.ExpectExec("UPDATE listings SET is_promoted = FALSE").
		WillReturnResult(sqlmock.NewResult(0, 2))

	rows := sqlmock.NewRows(listingCols)
	listingRow(rows, 2, true)
	listingRow(rows, 1, false)
	dbMock.ExpectQuery("SELECT(.|\n)+FROM listings").
		WillReturnRows(rows)

	r := httptest.NewRequest("GET", "/listings", nil)
	w := httptest.NewRecorder()

	service.ListPublicListings(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Count    int              `json:"count"`
		Listings []models.Listing `json:"listings"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, 2, resp.Count)
	assert.True(t, resp.Listings[0].IsPromoted)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestListingService_GetListing(t *testing.T) {
	t.Run("approved listing is public", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewListingService(db)

		rows := sqlmock.NewRows(listingCols)
		listingRow(rows, 3, false)
		dbMock.ExpectQuery("SELECT(.|\n)+FROM listings WHERE id").
			WithArgs("3").
			WillReturnRows(rows)

		r := withURLParam(httptest.NewRequest("GET", "/listings/3", nil), "id", "3")
		w := httptest.NewRecorder()

		service.GetListing(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("pending listing hidden from strangers", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewListingService(db)

		dbMock.ExpectQuery("SELECT(.|\n)+FROM listings WHERE id").
			WithArgs("3").
			WillReturnRows(sqlmock.NewRows(listingCols).
				AddRow(3, 1, "Pending flat", "", 750.0, "Lille", "",
					"{}", "{}", "pending", "", true, false, nil, testTime()))

		r := withURLParam(httptest.NewRequest("GET", "/listings/3", nil), "id", "3")
		w := httptest.NewRecorder()

		service.GetListing(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("pending listing visible to its owner", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewListingService(db)

		dbMock.ExpectQuery("SELECT(.|\n)+FROM listings WHERE id").
			WithArgs("3").
			WillReturnRows(sqlmock.NewRows(listingCols).
				AddRow(3, 1, "Pending flat", "", 750.0, "Lille", "",
					"{}", "{}", "pending", "", true, false, nil, testTime()))

		r := asLandlord(withURLParam(httptest.NewRequest("GET", "/listings/3", nil), "id", "3"), 1)
		w := httptest.NewRecorder()

		service.GetListing(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestListingService_CreateListing(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewListingService(db)

	t.Run("creates pending listing", func(t *testing.T) {
		rows := sqlmock.NewRows(listingCols).
			AddRow(7, 1, "T2 near metro", "Renovated", 680.0, "Lille", "",
				"{}", "{}", "pending", "", true, false, nil, testTime())
		dbMock.ExpectQuery("INSERT INTO listings").
			WillReturnRows(rows)

		body, _ := json.Marshal(map[string]any{
			"title":    "T2 near metro",
			"price":    680.0,
			"location": "Lille",
		})
		r := asLandlord(httptest.NewRequest("POST", "/listings", bytes.NewBuffer(body)), 1)
		w := httptest.NewRecorder()

		service.CreateListing(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp struct {
			Listing models.Listing `json:"listing"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, "pending", resp.Listing.ReviewStatus)
	})

	t.Run("rejects missing price", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"title": "No price", "location": "Lille"})
		r := asLandlord(httptest.NewRequest("POST", "/listings", bytes.NewBuffer(body)), 1)
		w := httptest.NewRecorder()

		service.CreateListing(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestListingService_PromoteListing(t *testing.T) {
	promoteReq := func(t *testing.T, listingID string, body any, landlordID int) *http.Request {
		t.Helper()
		var buf bytes.Buffer
		if body != nil {
			json.NewEncoder(&buf).Encode(body)
		}
		r := httptest.NewRequest("POST", "/listings/"+listingID+"/promote", &buf)
		return asLandlord(withURLParam(r, "id", listingID), landlordID)
	}

	t.Run("invalid terms rejected without touching the database", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewListingService(db)

		for _, body := range []map[string]any{
			{"days": 0},
			{"days": 91},
			{"price": 0},
			{"price": -5},
		} {
			w := httptest.NewRecorder()
			service.PromoteListing(w, promoteReq(t, "3", body, 1))
			assert.Equal(t, http.StatusBadRequest, w.Code, "body %v", body)
		}
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("malformed body rejected without debit", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewListingService(db)

		for _, raw := range []string{`{"days":"abc"}`, `{"price":"ten"}`, `not json`} {
			r := asLandlord(withURLParam(
				httptest.NewRequest("POST", "/listings/3/promote", bytes.NewBufferString(raw)), "id", "3"), 1)
			w := httptest.NewRecorder()
			service.PromoteListing(w, r)
			assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", raw)
		}
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("successful promotion with defaults", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewListingService(db)

		dbMock.ExpectBegin()
		dbMock.ExpectQuery("SELECT id, review_status FROM listings").
			WithArgs("3", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "review_status"}).AddRow(3, "approved"))
		dbMock.ExpectExec("UPDATE landlords").
			WithArgs(int64(1000), 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		promoted := sqlmock.NewRows(listingCols).
			AddRow(3, 1, "T2 near metro", "", 680.0, "Lille", "",
				"{}", "{}", "approved", "", true, true, testTime().AddDate(0, 0, 7), testTime())
		dbMock.ExpectQuery("UPDATE listings SET is_promoted = TRUE").
			WillReturnRows(promoted)
		dbMock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), 1, int64(-1000), 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectQuery("SELECT balance_cents").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"balance_cents"}).AddRow(0))
		dbMock.ExpectCommit()

		w := httptest.NewRecorder()
		service.PromoteListing(w, promoteReq(t, "3", nil, 1))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Listing models.Listing `json:"listing"`
			Balance float64        `json:"balance"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.True(t, resp.Listing.IsPromoted)
		assert.Equal(t, float64(0), resp.Balance)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("unapproved listing cannot be promoted", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewListingService(db)

		dbMock.ExpectBegin()
		dbMock.ExpectQuery("SELECT id, review_status FROM listings").
			WithArgs("3", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "review_status"}).AddRow(3, "pending"))
		dbMock.ExpectRollback()

		w := httptest.NewRecorder()
		service.PromoteListing(w, promoteReq(t, "3", nil, 1))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("insufficient balance", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewListingService(db)

		dbMock.ExpectBegin()
		dbMock.ExpectQuery("SELECT id, review_status FROM listings").
			WithArgs("3", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "review_status"}).AddRow(3, "approved"))
		dbMock.ExpectExec("UPDATE landlords").
			WithArgs(int64(1000), 1).
			WillReturnResult(sqlmock.NewResult(0, 0))
		dbMock.ExpectRollback()

		w := httptest.NewRecorder()
		service.PromoteListing(w, promoteReq(t, "3", nil, 1))

		assert.Equal(t, http.StatusPaymentRequired, w.Code)
		var resp ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, CodeInsufficientBalance, resp.Code)
	})

	t.Run("listing of another landlord", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewListingService(db)

		dbMock.ExpectBegin()
		dbMock.ExpectQuery("SELECT id, review_status FROM listings").
			WithArgs("3", 2).
			WillReturnRows(sqlmock.NewRows([]string{"id", "review_status"}))
		dbMock.ExpectRollback()

		w := httptest.NewRecorder()
		service.PromoteListing(w, promoteReq(t, "3", nil, 2))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestListingService_DeleteListing(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewListingService(db)

	t.Run("deletes owned listing", func(t *testing.T) {
		dbMock.ExpectExec("DELETE FROM listings").
			WithArgs("3", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		r := asLandlord(withURLParam(httptest.NewRequest("DELETE", "/listings/3", nil), "id", "3"), 1)
		w := httptest.NewRecorder()

		service.DeleteListing(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("not found when not owner", func(t *testing.T) {
		dbMock.ExpectExec("DELETE FROM listings").
			WithArgs("3", 2).
			WillReturnResult(sqlmock.NewResult(0, 0))

		r := asLandlord(withURLParam(httptest.NewRequest("DELETE", "/listings/3", nil), "id", "3"), 2)
		w := httptest.NewRecorder()

		service.DeleteListing(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
