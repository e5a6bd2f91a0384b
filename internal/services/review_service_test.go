package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestReviewService_Summary(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewReviewService(db)

	dbMock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"leads", "listings"}).AddRow(3, 7))

	r := asAdmin(httptest.NewRequest("GET", "/admin/review/summary", nil), 2)
	w := httptest.NewRecorder()

	service.Summary(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]int
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, 3, resp["pendingLeads"])
	assert.Equal(t, 7, resp["pendingListings"])
}

func TestReviewService_ReviewLead(t *testing.T) {
	t.Run("approves a pending lead", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewReviewService(db)

		dbMock.ExpectQuery("UPDATE leads").
			WithArgs("approved", "looks legit", 2, "10").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))

		body, _ := json.Marshal(map[string]string{"status": "approved", "note": "looks legit"})
		r := asAdmin(withURLParam(httptest.NewRequest("PATCH", "/admin/review/leads/10", bytes.NewBuffer(body)), "id", "10"), 2)
		w := httptest.NewRecorder()

		service.ReviewLead(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, "approved", resp["reviewStatus"])
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("rejects bad verdict", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewReviewService(db)

		body, _ := json.Marshal(map[string]string{"status": "maybe"})
		r := asAdmin(withURLParam(httptest.NewRequest("PATCH", "/admin/review/leads/10", bytes.NewBuffer(body)), "id", "10"), 2)
		w := httptest.NewRecorder()

		service.ReviewLead(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown lead", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewReviewService(db)

		dbMock.ExpectQuery("UPDATE leads").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		body, _ := json.Marshal(map[string]string{"status": "rejected"})
		r := asAdmin(withURLParam(httptest.NewRequest("PATCH", "/admin/review/leads/99", bytes.NewBuffer(body)), "id", "99"), 2)
		w := httptest.NewRecorder()

		service.ReviewLead(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestReviewService_ListLeadsForReview(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewReviewService(db)

	t.Run("moderators see unredacted contact fields", func(t *testing.T) {
		cols := []string{"id", "listing_id", "requirement", "budget", "move_in_date",
			"wechat_id", "phone", "email", "review_status", "review_note", "reviewed_at", "reviewed_by", "created_at"}
		dbMock.ExpectQuery("SELECT id, listing_id").
			WithArgs("pending").
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow(10, nil, "3-room flat", "1200", nil, "wx_tenant", "0601020304", "", "pending", "", nil, nil, testTime()))

		r := asAdmin(httptest.NewRequest("GET", "/admin/review/leads", nil), 2)
		w := httptest.NewRecorder()

		service.ListLeadsForReview(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "wx_tenant")
		assert.Contains(t, w.Body.String(), "0601020304")
	})

	t.Run("invalid status filter", func(t *testing.T) {
		r := asAdmin(httptest.NewRequest("GET", "/admin/review/leads?status=bogus", nil), 2)
		w := httptest.NewRecorder()

		service.ListLeadsForReview(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
