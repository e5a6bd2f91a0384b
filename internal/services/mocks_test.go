package services

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"

	"github.com/lillerent/backend/internal/gateway"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, req gateway.CheckoutRequest) (*gateway.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.CheckoutSession), args.Error(1)
}

func (m *MockGateway) RetrieveSession(ctx context.Context, sessionID string) (*gateway.CheckoutSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.CheckoutSession), args.Error(1)
}

func (m *MockGateway) VerifyWebhook(payload []byte, signatureHeader string) (*gateway.WebhookEvent, error) {
	args := m.Called(payload, signatureHeader)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.WebhookEvent), args.Error(1)
}

// asLandlord attaches the context values the auth middleware would set.
func asLandlord(r *http.Request, landlordID int) *http.Request {
	ctx := context.WithValue(r.Context(), "userID", strconv.Itoa(landlordID))
	ctx = context.WithValue(ctx, "userEmail", "test@example.com")
	ctx = context.WithValue(ctx, "userRole", "landlord")
	return r.WithContext(ctx)
}

func asAdmin(r *http.Request, adminID int) *http.Request {
	ctx := context.WithValue(r.Context(), "userID", strconv.Itoa(adminID))
	ctx = context.WithValue(ctx, "userEmail", "admin@example.com")
	ctx = context.WithValue(ctx, "userRole", "admin")
	return r.WithContext(ctx)
}

// withURLParam injects a chi route parameter for handlers under test.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
