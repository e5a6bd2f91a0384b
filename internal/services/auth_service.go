package services

import (
	"context"
	cryptorand "crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"

	"github.com/lillerent/backend/internal/models"
)

// SignupBonusCents is credited to every new account as a completed deposit
// ledger entry, so the audit trail covers the free balance too.
const SignupBonusCents = 1000

// AuthService handles landlord registration, login, logout and profile.
type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	validator *ValidationHelper
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"landlord@example.com"`
	Password string `json:"password" validate:"required,min=6" example:"password123"`
}

// RegisterRequest represents the registration request payload
// @Description Registration request structure
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email" example:"landlord@example.com"`
	Password string `json:"password" validate:"required,min=6" example:"password123"`
	Name     string `json:"name" validate:"required,min=2,max=100" example:"Wang Wei"`
	WechatID string `json:"wechatId" validate:"omitempty,min=2,max=100" example:"wangwei_88"`
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token    string          `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	Landlord models.Landlord `json:"landlord"`
}

func NewAuthService(db *sql.DB, redisClient *redis.Client) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		validator: NewValidationHelper(),
	}
}

// Register creates a landlord account and credits the signup bonus. The
// account row and the bonus ledger entry commit in one transaction.
// @Summary Register a new landlord
// @Description Register with email, password and display name
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 201 {object} AuthResponse "Registration successful"
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /auth/register [post]
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Registration attempt from IP: %s", r.RemoteAddr)

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req RegisterRequest
	if err := dec.Decode(&req); err != nil {
		log.Printf("[AUTH] Registration failed - invalid request: %v", err)
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		log.Printf("[AUTH] Registration validation failed: %v", err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	hashedPassword, err := hashPassword(req.Password)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	var landlord models.Landlord
	err = tx.QueryRow(`
		INSERT INTO landlords (email, password, name, wechat_id, role, balance_cents, created_at)
		VALUES ($1, $2, $3, $4, 'landlord', $5, NOW())
		RETURNING id, role, email, name, COALESCE(wechat_id, ''), balance_cents, created_at`,
		strings.ToLower(req.Email), hashedPassword, req.Name, req.WechatID, SignupBonusCents).Scan(
		&landlord.ID, &landlord.Role, &landlord.Email, &landlord.Name, &landlord.WechatID,
		&landlord.BalanceCents, &landlord.CreatedAt)
	if err != nil {
		log.Printf("[AUTH] Landlord creation failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Email Already Exists", http.StatusConflict, nil)
		return
	}

	if _, err := tx.Exec(`
		INSERT INTO ledger_entries (id, landlord_id, amount_cents, currency, kind, status, external_id, created_at)
		VALUES ($1, $2, $3, 'EUR', 'deposit', 'completed', 'signup_bonus', NOW())`,
		uuid.NewString(), landlord.ID, int64(SignupBonusCents)); err != nil {
		log.Printf("[AUTH] Signup bonus entry failed for landlord %d: %v", landlord.ID, err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	token, err := generateJWT(landlord.ID, landlord.Email, landlord.Role)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for landlord %d: %v", landlord.ID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Landlord %d registered (%s), bonus %d cents", landlord.ID, landlord.Email, SignupBonusCents)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(AuthResponse{Token: token, Landlord: landlord})
}

// Login authenticates a landlord with email and password.
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse "Login successful"
// @Failure 401 {object} services.ErrorResponse
// @Router /auth/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req LoginRequest
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

	var landlord models.Landlord
	var hashedPassword string
	err := s.db.QueryRow(`
		SELECT id, role, email, name, COALESCE(wechat_id, ''), password, balance_cents, membership, membership_expires_at, created_at
		FROM landlords WHERE email = $1`,
		strings.ToLower(req.Email)).Scan(
		&landlord.ID, &landlord.Role, &landlord.Email, &landlord.Name, &landlord.WechatID,
		&hashedPassword, &landlord.BalanceCents, &landlord.Membership, &landlord.MembershipExpiresAt, &landlord.CreatedAt)
	if err != nil {
		log.Printf("[AUTH] Login failed - no account for %s", req.Email)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	if !verifyPassword(req.Password, hashedPassword) {
		log.Printf("[AUTH] Invalid password for %s", req.Email)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	token, err := generateJWT(landlord.ID, landlord.Email, landlord.Role)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for landlord %d: %v", landlord.ID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Login successful for landlord %d", landlord.ID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Token: token, Landlord: landlord})
}

// Logout blacklists the presented token until its natural expiry.
// @Summary Logout
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string "Logout successful"
// @Router /auth/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if token != "" && len(token) > 7 {
		token = token[7:] // Remove "Bearer " prefix

		if s.redis != nil {
			ctx := context.Background()
			key := fmt.Sprintf("blacklist:%s", token)
			expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
			if err := s.redis.Set(ctx, key, "1", expiry).Err(); err != nil {
				log.Printf("[AUTH] Failed to blacklist token: %v", err)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Logout successful"})
}

// Me returns the authenticated landlord's profile including the current
// balance.
// @Summary Current account
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{landlord=models.Landlord,balance=float64}
// @Failure 401 {object} services.ErrorResponse
// @Router /auth/me [get]
func (s *AuthService) Me(w http.ResponseWriter, r *http.Request) {
	landlordID, _, ok := landlordFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	landlord, err := s.fetchLandlord(landlordID)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[AUTH] Failed to fetch landlord %d: %v", landlordID, err)
		SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"landlord": landlord,
		"balance":  landlord.Balance(),
	})
}

// UpdateMe updates the profile fields a landlord may change themselves.
// Balance, role and membership are never writable here.
// @Summary Update current account
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{name=string,email=string,wechatId=string} true "Profile fields"
// @Success 200 {object} object{landlord=models.Landlord}
// @Router /auth/me [patch]
func (s *AuthService) UpdateMe(w http.ResponseWriter, r *http.Request) {
	landlordID, _, ok := landlordFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Name     string `json:"name" validate:"required,min=2,max=100"`
		Email    string `json:"email" validate:"omitempty,email"`
		WechatID string `json:"wechatId" validate:"omitempty,min=2,max=100"`
	}

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

	if _, err := s.db.Exec(`
		UPDATE landlords
		SET name = $1, wechat_id = $2, email = COALESCE(NULLIF($3, ''), email)
		WHERE id = $4`,
		req.Name, req.WechatID, strings.ToLower(strings.TrimSpace(req.Email)), landlordID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			SendErrorResponse(w, "Email already in use", http.StatusConflict, nil)
			return
		}
		SendErrorResponse(w, "Failed to update account", http.StatusInternalServerError, nil)
		return
	}

	landlord, err := s.fetchLandlord(landlordID)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"landlord": landlord})
}

func (s *AuthService) fetchLandlord(id int) (models.Landlord, error) {
	var landlord models.Landlord
	err := s.db.QueryRow(`
		SELECT id, role, email, name, COALESCE(wechat_id, ''), balance_cents, membership, membership_expires_at, created_at
		FROM landlords WHERE id = $1`, id).Scan(
		&landlord.ID, &landlord.Role, &landlord.Email, &landlord.Name, &landlord.WechatID,
		&landlord.BalanceCents, &landlord.Membership, &landlord.MembershipExpiresAt, &landlord.CreatedAt)
	return landlord, err
}

func generateJWT(landlordID int, email, role string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": landlordID,
		"email":   email,
		"role":    role,
		"exp":     time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return string(hash) == string(computedHash)
}
