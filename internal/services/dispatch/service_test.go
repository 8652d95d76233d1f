package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubNotifier struct {
	sent []string
	fail bool
}

func (s *stubNotifier) SendText(_ context.Context, text string) error {
	if s.fail {
		return errors.New("telegram down")
	}
	s.sent = append(s.sent, text)
	return nil
}

func TestRenderKnownTemplates(t *testing.T) {
	cases := []struct {
		templateType string
		data         map[string]string
		want         string
	}{
		{"welcome", map[string]string{"name": "Abel"}, "Abel"},
		{"purchase_receipt", map[string]string{"item_title": "Test Book", "amount": "3598.80", "transaction_ref": "txn_abc"}, "txn_abc"},
		{"purchase_confirmation", map[string]string{"item_title": "Test Book"}, "Test Book"},
		{"password_reset", map[string]string{"reset_link": "https://example.test/reset"}, "https://example.test/reset"},
		{"security_notification", map[string]string{"event": "new login"}, "new login"},
		{"admin_purchase_approval", map[string]string{"purchase_id": "11", "buyer_name": "Abel", "item_title": "Test Book"}, "needs verification"},
	}
	for _, tc := range cases {
		t.Run(tc.templateType, func(t *testing.T) {
			text, err := Render(tc.templateType, tc.data)
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			if !strings.Contains(text, tc.want) {
				t.Fatalf("render missing %q: %s", tc.want, text)
			}
		})
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	if _, err := Render("carrier_pigeon", nil); !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("expected ErrUnknownTemplate, got %v", err)
	}
}

func TestRenderMissingFields(t *testing.T) {
	_, err := Render("purchase_receipt", map[string]string{"item_title": "Test Book"})
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
	for _, field := range []string{"amount", "transaction_ref"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("error should name missing field %q: %v", field, err)
		}
	}

	// whitespace does not satisfy a required field
	if _, err := Render("welcome", map[string]string{"name": "  "}); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField for blank value, got %v", err)
	}
}

func TestRequiredTier(t *testing.T) {
	cases := map[string]Tier{
		"welcome":                 TierAnonymous,
		"password_reset":          TierAnonymous,
		"purchase_receipt":        TierAuthenticated,
		"purchase_confirmation":   TierAuthenticated,
		"security_notification":   TierAuthenticated,
		"admin_purchase_approval": TierAdmin,
	}
	for templateType, want := range cases {
		tier, err := RequiredTier(templateType)
		if err != nil {
			t.Fatalf("%s: %v", templateType, err)
		}
		if tier != want {
			t.Fatalf("%s: tier %v, want %v", templateType, tier, want)
		}
	}

	if _, err := RequiredTier("carrier_pigeon"); !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("expected ErrUnknownTemplate, got %v", err)
	}
}

func TestDispatchDeliversAndMintsID(t *testing.T) {
	notifier := &stubNotifier{}
	svc := NewService(notifier, nil)

	id, err := svc.Dispatch(context.Background(), "welcome", map[string]string{"name": "Abel"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if id == "" {
		t.Fatal("expected a dispatch id")
	}
	if len(notifier.sent) != 1 || !strings.Contains(notifier.sent[0], "Abel") {
		t.Fatalf("unexpected delivery: %+v", notifier.sent)
	}
}

func TestDispatchDeliveryFailure(t *testing.T) {
	svc := NewService(&stubNotifier{fail: true}, nil)

	if _, err := svc.Dispatch(context.Background(), "welcome", map[string]string{"name": "Abel"}); !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
}
