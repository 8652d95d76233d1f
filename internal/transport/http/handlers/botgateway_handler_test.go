package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/areut/bookmarket/backend/internal/domain/enums"
	"github.com/areut/bookmarket/backend/internal/domain/model"
	pgrepo "github.com/areut/bookmarket/backend/internal/repo/postgres"
	botgatewaysvc "github.com/areut/bookmarket/backend/internal/services/botgateway"
	"github.com/areut/bookmarket/backend/internal/services/currency"
)

type gwPurchaseStore struct {
	byToken map[string]model.Purchase
	err     error
}

func (s *gwPurchaseStore) FindByToken(_ context.Context, token string) (model.Purchase, error) {
	if s.err != nil {
		return model.Purchase{}, s.err
	}
	purchase, ok := s.byToken[token]
	if !ok {
		return model.Purchase{}, pgrepo.ErrPurchaseNotFound
	}
	return purchase, nil
}

type gwConfigStore struct {
	configs []model.PaymentConfig
}

func (s *gwConfigStore) ListActive(context.Context) ([]model.PaymentConfig, error) {
	return s.configs, nil
}

func newGatewayHandler(purchases *gwPurchaseStore) *BotGatewayHandler {
	svc := botgatewaysvc.NewService(botgatewaysvc.Dependencies{
		Secret:    "bot-secret",
		Purchases: purchases,
		Configs: &gwConfigStore{configs: []model.PaymentConfig{
			{ID: 1, ConfigType: enums.PaymentConfigTypeMobileMoney, ProviderName: "Telebirr"},
		}},
		Converter: currency.NewConverter(120, "ETB"),
	})
	return NewBotGatewayHandler(svc)
}

func postPurchaseInfo(handler *BotGatewayHandler, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/bot/purchase-info", strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rr := httptest.NewRecorder()
	handler.PurchaseInfo(rr, req)
	return rr
}

func TestBotPurchaseInfoOK(t *testing.T) {
	store := &gwPurchaseStore{byToken: map[string]model.Purchase{
		"tok-1": {
			ID:       11,
			UserID:   3,
			ItemType: enums.ItemTypeBook,
			ItemID:   7,
			Amount:   decimal.RequireFromString("29.99"),
			Status:   enums.PurchaseStatusPendingInitiation,
		},
	}}
	handler := newGatewayHandler(store)

	rr := postPurchaseInfo(handler, "Bearer bot-secret", `{"token":"tok-1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rr.Code, rr.Body.String())
	}

	var info botgatewaysvc.PurchaseInfo
	if err := json.NewDecoder(rr.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.PurchaseID != 11 || info.Currency != "ETB" {
		t.Fatalf("unexpected payload: %+v", info)
	}
	if !info.Amount.Equal(decimal.RequireFromString("3598.8")) {
		t.Fatalf("expected converted amount, got %s", info.Amount)
	}
	if len(info.PaymentOptions) != 1 {
		t.Fatalf("expected one payment option, got %+v", info.PaymentOptions)
	}
}

func TestBotPurchaseInfoAuth(t *testing.T) {
	handler := newGatewayHandler(&gwPurchaseStore{})

	cases := []string{"", "Bearer wrong", "bot-secret"}
	for _, auth := range cases {
		rr := postPurchaseInfo(handler, auth, `{"token":"tok-1"}`)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("auth %q: status %d, want 401", auth, rr.Code)
		}
		var body struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Code != "UNAUTHORIZED" || body.Error == "" {
			t.Fatalf("unexpected error body: %+v", body)
		}
	}
}

func TestBotPurchaseInfoErrors(t *testing.T) {
	cases := []struct {
		name       string
		store      *gwPurchaseStore
		body       string
		wantStatus int
		wantCode   string
	}{
		{"empty token", &gwPurchaseStore{}, `{"token":""}`, http.StatusBadRequest, "INVALID_TOKEN"},
		{"unknown token", &gwPurchaseStore{byToken: map[string]model.Purchase{}}, `{"token":"stale"}`, http.StatusNotFound, "TOKEN_NOT_FOUND"},
		{"store failure", &gwPurchaseStore{err: errors.New("down")}, `{"token":"tok"}`, http.StatusInternalServerError, "DATABASE_ERROR"},
		{"bad body", &gwPurchaseStore{}, `{"token":`, http.StatusBadRequest, "INVALID_BODY"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newGatewayHandler(tc.store)
			rr := postPurchaseInfo(handler, "Bearer bot-secret", tc.body)
			if rr.Code != tc.wantStatus {
				t.Fatalf("status %d, want %d (body %s)", rr.Code, tc.wantStatus, rr.Body.String())
			}
			var body struct {
				Code string `json:"code"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Code != tc.wantCode {
				t.Fatalf("code %q, want %q", body.Code, tc.wantCode)
			}
		})
	}
}
