package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/viper"

	"github.com/lillerent/backend/internal/gateway"
	"github.com/lillerent/backend/internal/models"
)

// MaxDepositEuros caps a single top-up.
const MaxDepositEuros = 5000

const gatewayCallTimeout = 15 * time.Second

// WalletService owns the balance ledger: deposits via the payment gateway,
// the webhook/confirm/reconcile completion paths, and payment history.
// Every balance credit is driven by a single conditional pending->completed
// update so that the three completion paths converge without double-crediting.
type WalletService struct {
	db        *sql.DB
	gateway   gateway.PaymentGateway
	validator *ValidationHelper
}

func NewWalletService(db *sql.DB, gw gateway.PaymentGateway) *WalletService {
	return &WalletService{
		db:        db,
		gateway:   gw,
		validator: NewValidationHelper(),
	}
}

// EurosToCents converts a 2-decimal EUR amount to integer cents.
func EurosToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CreateDeposit opens a pending deposit ledger entry and a gateway checkout
// session the client is redirected to.
// @Summary Create a deposit checkout session
// @Description Create a pending deposit and a hosted checkout session for it
// @Tags wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=float64} true "Deposit amount in EUR"
// @Success 200 {object} object{url=string,sessionId=string}
// @Failure 400 {object} services.ErrorResponse
// @Router /wallet/deposit [post]
func (s *WalletService) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	landlordID, email, ok := landlordFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Amount float64 `json:"amount" validate:"required,gt=0"`
	}

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
		SendErrorResponse(w, "Invalid amount", http.StatusBadRequest, err)
		return
	}
	if req.Amount > MaxDepositEuros {
		SendErrorResponse(w, "Amount too large", http.StatusBadRequest, nil)
		return
	}

	amountCents := EurosToCents(req.Amount)
	entryID := uuid.NewString()

	_, err := s.db.Exec(`
		INSERT INTO ledger_entries (id, landlord_id, amount_cents, currency, kind, status, created_at)
		VALUES ($1, $2, $3, 'EUR', 'deposit', 'pending', NOW())`,
		entryID, landlordID, amountCents)
	if err != nil {
		log.Printf("[WALLET] Failed to create pending deposit for landlord %d: %v", landlordID, err)
		SendErrorResponse(w, "Failed to create deposit", http.StatusInternalServerError, nil)
		return
	}

	webBase := viper.GetString("web.base_url")
	ctx, cancel := context.WithTimeout(r.Context(), gatewayCallTimeout)
	defer cancel()

	sess, err := s.gateway.CreateCheckoutSession(ctx, gateway.CheckoutRequest{
		AmountCents:       amountCents,
		Currency:          "EUR",
		SuccessURL:        webBase + "/landlord.html?tab=wallet&stripe_session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         webBase + "/landlord.html?tab=wallet&stripe_cancelled=1",
		CustomerEmail:     email,
		ClientReferenceID: strconv.Itoa(landlordID),
		Description:       "账户充值",
		Metadata: map[string]string{
			"paymentId":  entryID,
			"landlordId": strconv.Itoa(landlordID),
			"amount":     fmt.Sprintf("%.2f", req.Amount),
		},
	})
	if err != nil {
		if errors.Is(err, gateway.ErrNotConfigured) {
			SendErrorResponse(w, "Stripe not configured: set STRIPE_SECRET_KEY", http.StatusBadRequest, nil)
			return
		}
		log.Printf("[WALLET] Checkout session creation failed for entry %s: %v", entryID, err)
		SendErrorResponse(w, "Failed to create checkout session", http.StatusBadGateway, nil)
		return
	}

	if _, err := s.db.Exec(`UPDATE ledger_entries SET external_id = $1 WHERE id = $2`, sess.ID, entryID); err != nil {
		log.Printf("[WALLET] Failed to record session id %s on entry %s: %v", sess.ID, entryID, err)
	}

	log.Printf("[WALLET] Deposit intent created: landlord=%d entry=%s session=%s amount=%.2f", landlordID, entryID, sess.ID, req.Amount)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"url":       sess.URL,
		"sessionId": sess.ID,
	})
}

// DepositQR renders the checkout URL of an open session as a QR code so the
// payment page can be opened from a phone.
// @Summary Checkout QR code
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Param session_id query string true "Checkout session ID"
// @Success 200 {object} object{qrImage=string}
// @Router /wallet/deposit/qr [get]
func (s *WalletService) DepositQR(w http.ResponseWriter, r *http.Request) {
	landlordID, _, ok := landlordFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		SendErrorResponse(w, "Missing session_id", http.StatusBadRequest, nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), gatewayCallTimeout)
	defer cancel()

	sess, err := s.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gateway.ErrNotConfigured) {
			SendErrorResponse(w, "Stripe not configured: set STRIPE_SECRET_KEY", http.StatusBadRequest, nil)
			return
		}
		SendErrorResponse(w, "Session not found", http.StatusNotFound, nil)
		return
	}

	if ref := sess.ClientReferenceID; ref != "" && ref != strconv.Itoa(landlordID) {
		SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
		return
	}
	if sess.URL == "" {
		SendErrorResponse(w, "Session is no longer open", http.StatusBadRequest, nil)
		return
	}

	qr, err := qrcode.New(sess.URL, qrcode.Medium)
	if err != nil {
		SendErrorResponse(w, "Failed to generate QR code", http.StatusInternalServerError, nil)
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		SendErrorResponse(w, "Failed to generate QR code", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"qrImage": base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
}

// StripeWebhook is the asynchronous source of truth for deposit crediting.
// It must be mounted on the raw request body: signature verification runs
// over the exact bytes received.
// @Summary Payment gateway webhook
// @Tags wallet
// @Accept json
// @Produce json
// @Success 200 {object} object{received=bool}
// @Failure 400 {string} string "signature verification failed"
// @Router /payments/stripe/webhook [post]
func (s *WalletService) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1_048_576))
	if err != nil {
		http.Error(w, "failed to read payload", http.StatusBadRequest)
		return
	}

	event, err := s.gateway.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, gateway.ErrNotConfigured) {
			http.Error(w, "stripe webhook not configured", http.StatusBadRequest)
			return
		}
		log.Printf("[STRIPE][WEBHOOK] signature verify failed: %v", err)
		http.Error(w, "signature verification failed", http.StatusBadRequest)
		return
	}

	if event.Type == "checkout.session.completed" && event.Session != nil {
		sess := event.Session
		landlordID, _ := strconv.Atoi(sess.ClientReferenceID)

		if sess.Paid() && sess.ID != "" && landlordID > 0 {
			amountCents := resolveAmountCents(sess)
			if amountCents > 0 {
				credited, err := s.completePendingDeposit(sess.Metadata["paymentId"], sess.ID, landlordID, amountCents)
				if err != nil {
					// Transient internal error: 500 so the gateway retries.
					log.Printf("[STRIPE][WEBHOOK] error completing session %s: %v", sess.ID, err)
					http.Error(w, "webhook handler failed", http.StatusInternalServerError)
					return
				}
				if credited {
					log.Printf("[STRIPE][WEBHOOK] credited landlord=%d +%d cents sid=%s", landlordID, amountCents, sess.ID)
				} else {
					log.Printf("[STRIPE][WEBHOOK] ignored (already processed?) landlord=%d sid=%s", landlordID, sess.ID)
				}
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"received": true})
}

// ConfirmDeposit is the client-driven completion path, polled after the
// client returns from the payment page. It performs the same conditional
// transition as the webhook; whichever runs first wins, the other no-ops.
// @Summary Confirm a deposit after checkout
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Param session_id query string true "Checkout session ID"
// @Success 200 {object} object{balance=float64,alreadyConfirmed=bool}
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Router /wallet/deposit/confirm [get]
func (s *WalletService) ConfirmDeposit(w http.ResponseWriter, r *http.Request) {
	landlordID, _, ok := landlordFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		SendErrorResponse(w, "Missing session_id", http.StatusBadRequest, nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), gatewayCallTimeout)
	defer cancel()

	sess, err := s.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gateway.ErrNotConfigured) {
			SendErrorResponse(w, "Stripe not configured: set STRIPE_SECRET_KEY", http.StatusBadRequest, nil)
			return
		}
		SendErrorResponse(w, "Session not found", http.StatusNotFound, nil)
		return
	}

	// The session must belong to the requesting account.
	if ref := sess.ClientReferenceID; ref != "" && ref != strconv.Itoa(landlordID) {
		SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
		return
	}

	if !sess.Paid() {
		SendErrorResponse(w, "Payment not completed", http.StatusBadRequest, nil)
		return
	}

	amountCents := resolveAmountCents(sess)
	if amountCents <= 0 {
		SendErrorResponse(w, "Invalid paid amount", http.StatusBadRequest, nil)
		return
	}

	credited, err := s.completePendingDeposit(sess.Metadata["paymentId"], sess.ID, landlordID, amountCents)
	if err != nil {
		log.Printf("[WALLET] Confirm failed for session %s: %v", sessionID, err)
		SendErrorResponse(w, "Failed to confirm deposit", http.StatusInternalServerError, nil)
		return
	}

	balance, err := s.fetchBalanceCents(landlordID)
	if err != nil {
		log.Printf("[WALLET] Failed to fetch balance for landlord %d: %v", landlordID, err)
		SendErrorResponse(w, "Failed to fetch balance", http.StatusInternalServerError, nil)
		return
	}

	if credited {
		log.Printf("[WALLET] Confirm credited landlord=%d +%d cents sid=%s", landlordID, amountCents, sessionID)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"balance":          float64(balance) / 100,
		"alreadyConfirmed": !credited,
	})
}

// ReconcileDeposits sweeps the caller's pending deposits against the
// gateway: paid sessions are credited, closed-unpaid sessions marked
// failed, everything else (including per-item gateway errors) stays
// pending.
// @Summary Reconcile pending deposits against the gateway
// @Tags wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{limit=int} false "Scan limit (default 50, max 200)"
// @Success 200 {object} object{balance=float64,stats=object}
// @Router /wallet/reconcile [post]
func (s *WalletService) ReconcileDeposits(w http.ResponseWriter, r *http.Request) {
	landlordID, _, ok := landlordFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit := 50
	if r.Body != nil {
		var req struct {
			Limit int `json:"limit"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err == nil && req.Limit > 0 {
			limit = req.Limit
		}
	}
	if limit > 200 {
		limit = 200
	}

	rows, err := s.db.Query(`
		SELECT id, external_id, amount_cents FROM ledger_entries
		WHERE landlord_id = $1 AND kind = 'deposit' AND status = 'pending' AND external_id LIKE 'cs_%'
		ORDER BY created_at DESC
		LIMIT $2`, landlordID, limit)
	if err != nil {
		log.Printf("[STRIPE][RECONCILE] query failed for landlord %d: %v", landlordID, err)
		SendErrorResponse(w, "Failed to load pending deposits", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	type pendingDeposit struct {
		id          string
		sessionID   string
		amountCents int64
	}
	var pendings []pendingDeposit
	for rows.Next() {
		var p pendingDeposit
		if err := rows.Scan(&p.id, &p.sessionID, &p.amountCents); err != nil {
			SendErrorResponse(w, "Failed to load pending deposits", http.StatusInternalServerError, nil)
			return
		}
		pendings = append(pendings, p)
	}

	log.Printf("[STRIPE][RECONCILE] landlord=%d pending=%d", landlordID, len(pendings))

	var credited, failed, stillPending int
	for _, p := range pendings {
		ctx, cancel := context.WithTimeout(r.Context(), gatewayCallTimeout)
		sess, err := s.gateway.RetrieveSession(ctx, p.sessionID)
		cancel()
		if err != nil {
			if errors.Is(err, gateway.ErrNotConfigured) {
				SendErrorResponse(w, "Stripe not configured: set STRIPE_SECRET_KEY", http.StatusBadRequest, nil)
				return
			}
			// One bad session must not abort the sweep.
			stillPending++
			log.Printf("[STRIPE][RECONCILE] error landlord=%d entry=%s: %v", landlordID, p.id, err)
			continue
		}

		if ref := sess.ClientReferenceID; ref != "" && ref != strconv.Itoa(landlordID) {
			stillPending++
			log.Printf("[STRIPE][RECONCILE] skip foreign session landlord=%d sid=%s", landlordID, p.sessionID)
			continue
		}

		switch {
		case sess.Paid():
			amountCents := sess.AmountTotalCents
			if amountCents <= 0 {
				amountCents = p.amountCents
			}
			if amountCents <= 0 {
				stillPending++
				log.Printf("[STRIPE][RECONCILE] invalid amount sid=%s total=%d", p.sessionID, sess.AmountTotalCents)
				continue
			}
			ok, err := s.completePendingDeposit(p.id, p.sessionID, landlordID, amountCents)
			if err != nil {
				stillPending++
				log.Printf("[STRIPE][RECONCILE] credit failed landlord=%d entry=%s: %v", landlordID, p.id, err)
				continue
			}
			if ok {
				credited++
				log.Printf("[STRIPE][RECONCILE] credited landlord=%d +%d cents sid=%s", landlordID, amountCents, p.sessionID)
			}
		case sess.Closed():
			// Closed but never paid: abandoned or expired.
			if _, err := s.db.Exec(`
				UPDATE ledger_entries SET status = 'failed'
				WHERE id = $1 AND status = 'pending'`, p.id); err != nil {
				stillPending++
				continue
			}
			failed++
			log.Printf("[STRIPE][RECONCILE] failed landlord=%d sid=%s status=%s payment_status=%s", landlordID, p.sessionID, sess.Status, sess.PaymentStatus)
		default:
			stillPending++
		}
	}

	balance, err := s.fetchBalanceCents(landlordID)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch balance", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"balance": float64(balance) / 100,
		"stats": map[string]int{
			"scanned":  len(pendings),
			"credited": credited,
			"failed":   failed,
			"pending":  stillPending,
		},
	})
}

// ListPayments returns the caller's recent ledger entries, newest first.
// @Summary Payment history
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{payments=[]models.LedgerEntry,count=int}
// @Router /wallet/payments [get]
func (s *WalletService) ListPayments(w http.ResponseWriter, r *http.Request) {
	landlordID, _, ok := landlordFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT id, landlord_id, amount_cents, currency, kind, status, target_id, COALESCE(external_id, ''), created_at
		FROM ledger_entries
		WHERE landlord_id = $1
		ORDER BY created_at DESC
		LIMIT 200`, landlordID)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch payments", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	payments := []models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		var targetID sql.NullInt64
		if err := rows.Scan(&e.ID, &e.LandlordID, &e.AmountCents, &e.Currency, &e.Kind, &e.Status, &targetID, &e.ExternalID, &e.CreatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch payments", http.StatusInternalServerError, nil)
			return
		}
		if targetID.Valid {
			id := int(targetID.Int64)
			e.TargetID = &id
		}
		payments = append(payments, e)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"payments": payments,
		"count":    len(payments),
	})
}

// completePendingDeposit performs the pending->completed transition and the
// balance credit in one database transaction. The conditional UPDATE is the
// sole trigger for crediting: zero rows affected means another path already
// handled the entry, reported as (false, nil).
func (s *WalletService) completePendingDeposit(entryID, sessionID string, landlordID int, amountCents int64) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var result sql.Result
	if entryID != "" {
		result, err = tx.Exec(`
			UPDATE ledger_entries
			SET status = 'completed', amount_cents = $1, external_id = $2
			WHERE id = $3 AND status = 'pending'`,
			amountCents, sessionID, entryID)
	} else {
		result, err = tx.Exec(`
			UPDATE ledger_entries
			SET status = 'completed', amount_cents = $1
			WHERE external_id = $2 AND status = 'pending'`,
			amountCents, sessionID)
	}
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rowsAffected == 0 {
		return false, nil
	}

	if _, err := tx.Exec(`
		UPDATE landlords SET balance_cents = balance_cents + $1 WHERE id = $2`,
		amountCents, landlordID); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *WalletService) fetchBalanceCents(landlordID int) (int64, error) {
	var balance int64
	err := s.db.QueryRow(`SELECT balance_cents FROM landlords WHERE id = $1`, landlordID).Scan(&balance)
	return balance, err
}

// resolveAmountCents prefers the amount recorded in gateway metadata at
// intent-creation time, then the gateway-reported total. Client-supplied
// figures are never consulted.
func resolveAmountCents(sess *gateway.CheckoutSession) int64 {
	if raw := sess.Metadata["amount"]; raw != "" {
		if euros, err := strconv.ParseFloat(raw, 64); err == nil && euros > 0 {
			return EurosToCents(euros)
		}
	}
	return sess.AmountTotalCents
}
