package botgateway

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/areut/bookmarket/backend/internal/domain/enums"
	"github.com/areut/bookmarket/backend/internal/domain/model"
	pgrepo "github.com/areut/bookmarket/backend/internal/repo/postgres"
	"github.com/areut/bookmarket/backend/internal/services/currency"
)

type stubPurchaseStore struct {
	byToken map[string]model.Purchase
	err     error
}

func (s *stubPurchaseStore) FindByToken(_ context.Context, token string) (model.Purchase, error) {
	if s.err != nil {
		return model.Purchase{}, s.err
	}
	purchase, ok := s.byToken[token]
	if !ok {
		return model.Purchase{}, pgrepo.ErrPurchaseNotFound
	}
	return purchase, nil
}

type stubConfigStore struct {
	configs []model.PaymentConfig
	err     error
}

func (s *stubConfigStore) ListActive(context.Context) ([]model.PaymentConfig, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.configs, nil
}

type stubUserStore struct {
	users map[int64]model.User
}

func (s *stubUserStore) FindByID(_ context.Context, userID int64) (model.User, error) {
	user, ok := s.users[userID]
	if !ok {
		return model.User{}, pgrepo.ErrUserNotFound
	}
	return user, nil
}

func testPurchase() model.Purchase {
	return model.Purchase{
		ID:                   11,
		UserID:               3,
		ItemType:             enums.ItemTypeBook,
		ItemID:               7,
		Amount:               decimal.RequireFromString("29.99"),
		Status:               enums.PurchaseStatusPendingInitiation,
		TransactionReference: "txn_abc",
		InitiationToken:      "good-token",
	}
}

func newTestService(purchases *stubPurchaseStore, configs *stubConfigStore) *Service {
	return NewService(Dependencies{
		Secret:    "shared-secret",
		Purchases: purchases,
		Configs:   configs,
		Users:     &stubUserStore{users: map[int64]model.User{3: {ID: 3, DisplayName: "Abel"}}},
		Converter: currency.NewConverter(120, "ETB"),
	})
}

func TestValidateBotAuth(t *testing.T) {
	svc := newTestService(&stubPurchaseStore{}, &stubConfigStore{})

	cases := []struct {
		name   string
		header string
		want   bool
	}{
		{"valid", "Bearer shared-secret", true},
		{"missing header", "", false},
		{"wrong secret", "Bearer nope", false},
		{"no bearer prefix", "shared-secret", false},
		{"secret as prefix", "Bearer shared-secret-extra", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := svc.ValidateBotAuth(tc.header); got != tc.want {
				t.Fatalf("ValidateBotAuth(%q) = %v, want %v", tc.header, got, tc.want)
			}
		})
	}
}

func TestValidateBotAuthUnsetSecretFailsClosed(t *testing.T) {
	svc := NewService(Dependencies{Secret: ""})

	if svc.ValidateBotAuth("Bearer ") {
		t.Fatal("empty secret must never authenticate")
	}
}

func TestGetPurchaseInfo(t *testing.T) {
	purchases := &stubPurchaseStore{byToken: map[string]model.Purchase{"good-token": testPurchase()}}
	configs := &stubConfigStore{configs: []model.PaymentConfig{
		{ID: 1, ConfigType: enums.PaymentConfigTypeBankAccount, ProviderName: "CBE", AccountNumber: "1000"},
	}}
	svc := newTestService(purchases, configs)

	info, err := svc.GetPurchaseInfo(context.Background(), "good-token")
	if err != nil {
		t.Fatalf("get purchase info: %v", err)
	}
	if info.PurchaseID != 11 || info.BuyerID != 3 {
		t.Fatalf("unexpected identity: %+v", info)
	}
	if info.BuyerName != "Abel" {
		t.Fatalf("expected enriched buyer name, got %q", info.BuyerName)
	}
	if !info.Amount.Equal(decimal.RequireFromString("3598.8")) {
		t.Fatalf("expected converted amount 3598.8, got %s", info.Amount)
	}
	if info.Currency != "ETB" {
		t.Fatalf("expected display currency, got %q", info.Currency)
	}
	if len(info.PaymentOptions) != 1 || info.PaymentOptions[0].ProviderName != "CBE" {
		t.Fatalf("unexpected payment options: %+v", info.PaymentOptions)
	}
}

func TestGetPurchaseInfoEmptyToken(t *testing.T) {
	svc := newTestService(&stubPurchaseStore{}, &stubConfigStore{})

	if _, err := svc.GetPurchaseInfo(context.Background(), "   "); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestGetPurchaseInfoUnknownToken(t *testing.T) {
	svc := newTestService(&stubPurchaseStore{byToken: map[string]model.Purchase{}}, &stubConfigStore{})

	if _, err := svc.GetPurchaseInfo(context.Background(), "stale"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestGetPurchaseInfoStoreFailure(t *testing.T) {
	svc := newTestService(&stubPurchaseStore{err: errors.New("connection reset")}, &stubConfigStore{})

	if _, err := svc.GetPurchaseInfo(context.Background(), "good-token"); !errors.Is(err, ErrDatabase) {
		t.Fatalf("expected ErrDatabase, got %v", err)
	}
}

func TestPaymentOptionsDegradeToEmpty(t *testing.T) {
	purchases := &stubPurchaseStore{byToken: map[string]model.Purchase{"good-token": testPurchase()}}
	svc := newTestService(purchases, &stubConfigStore{err: errors.New("timeout")})

	info, err := svc.GetPurchaseInfo(context.Background(), "good-token")
	if err != nil {
		t.Fatalf("options failure must not fail the lookup: %v", err)
	}
	if info.PaymentOptions == nil || len(info.PaymentOptions) != 0 {
		t.Fatalf("expected empty options slice, got %+v", info.PaymentOptions)
	}
}
