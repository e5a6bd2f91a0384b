package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func setupAuthConfig() {
	viper.Set("argon2.salt_length", 16)
	viper.Set("argon2.time", 1)
	viper.Set("argon2.memory", 64*1024)
	viper.Set("argon2.threads", 4)
	viper.Set("argon2.key_length", 32)
	viper.Set("jwt.secret_key", "test-secret")
	viper.Set("jwt.expiry_hours", 24)
}

func TestAuthService_Register(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	setupAuthConfig()
	service := NewAuthService(db, nil)

	t.Run("successful registration credits signup bonus", func(t *testing.T) {
		dbMock.ExpectBegin()
		dbMock.ExpectQuery("INSERT INTO landlords").
			WithArgs("wang@example.com", sqlmock.AnyArg(), "Wang Wei", "wangwei_88", SignupBonusCents).
			WillReturnRows(sqlmock.NewRows([]string{"id", "role", "email", "name", "wechat_id", "balance_cents", "created_at"}).
				AddRow(1, "landlord", "wang@example.com", "Wang Wei", "wangwei_88", SignupBonusCents, testTime()))
		dbMock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), 1, int64(SignupBonusCents)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectCommit()

		body, _ := json.Marshal(RegisterRequest{
			Email:    "Wang@example.com",
			Password: "password123",
			Name:     "Wang Wei",
			WechatID: "wangwei_88",
		})
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp AuthResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "wang@example.com", resp.Landlord.Email)
		assert.Equal(t, int64(SignupBonusCents), resp.Landlord.BalanceCents)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("duplicate email", func(t *testing.T) {
		dbMock.ExpectBegin()
		dbMock.ExpectQuery("INSERT INTO landlords").
			WillReturnError(assert.AnError)
		dbMock.ExpectRollback()

		body, _ := json.Marshal(RegisterRequest{
			Email:    "wang@example.com",
			Password: "password123",
			Name:     "Wang Wei",
		})
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("invalid request body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewBufferString("invalid"))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("short password rejected", func(t *testing.T) {
		body, _ := json.Marshal(RegisterRequest{
			Email:    "wang@example.com",
			Password: "123",
			Name:     "Wang Wei",
		})
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthService_Login(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	setupAuthConfig()
	service := NewAuthService(db, nil)

	loginCols := []string{"id", "role", "email", "name", "wechat_id", "password", "balance_cents", "membership", "membership_expires_at", "created_at"}

	t.Run("successful login", func(t *testing.T) {
		hashedPassword, err := hashPassword("password123")
		assert.NoError(t, err)

		dbMock.ExpectQuery("SELECT id, role, email").
			WithArgs("wang@example.com").
			WillReturnRows(sqlmock.NewRows(loginCols).
				AddRow(1, "landlord", "wang@example.com", "Wang Wei", "wangwei_88", hashedPassword, int64(1000), "free", nil, testTime()))

		body, _ := json.Marshal(LoginRequest{Email: "wang@example.com", Password: "password123"})
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp AuthResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, 1, resp.Landlord.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		hashedPassword, _ := hashPassword("password123")

		dbMock.ExpectQuery("SELECT id, role, email").
			WithArgs("wang@example.com").
			WillReturnRows(sqlmock.NewRows(loginCols).
				AddRow(1, "landlord", "wang@example.com", "Wang Wei", "", hashedPassword, int64(1000), "free", nil, testTime()))

		body, _ := json.Marshal(LoginRequest{Email: "wang@example.com", Password: "wrong-password"})
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown email", func(t *testing.T) {
		dbMock.ExpectQuery("SELECT id, role, email").
			WithArgs("nobody@example.com").
			WillReturnRows(sqlmock.NewRows(loginCols))

		body, _ := json.Marshal(LoginRequest{Email: "nobody@example.com", Password: "password123"})
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestPasswordHashing(t *testing.T) {
	setupAuthConfig()

	hashed, err := hashPassword("correct horse battery staple")
	assert.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hashed)

	assert.True(t, verifyPassword("correct horse battery staple", hashed))
	assert.False(t, verifyPassword("wrong", hashed))
	assert.False(t, verifyPassword("correct horse battery staple", "malformed-hash"))

	// Same password hashes differently thanks to the random salt.
	hashed2, err := hashPassword("correct horse battery staple")
	assert.NoError(t, err)
	assert.NotEqual(t, hashed, hashed2)
}

func TestAuthService_Me(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	setupAuthConfig()
	service := NewAuthService(db, nil)

	t.Run("returns account with balance in euros", func(t *testing.T) {
		dbMock.ExpectQuery("SELECT id, role, email").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "role", "email", "name", "wechat_id", "balance_cents", "membership", "membership_expires_at", "created_at"}).
				AddRow(1, "landlord", "wang@example.com", "Wang Wei", "", int64(1250), "free", nil, testTime()))

		r := asLandlord(httptest.NewRequest("GET", "/auth/me", nil), 1)
		w := httptest.NewRecorder()

		service.Me(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, 12.5, resp["balance"])
	})

	t.Run("unauthenticated", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/auth/me", nil)
		w := httptest.NewRecorder()

		service.Me(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
