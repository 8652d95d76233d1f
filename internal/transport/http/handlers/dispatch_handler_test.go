package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	authsvc "github.com/areut/bookmarket/backend/internal/services/auth"
	dispatchsvc "github.com/areut/bookmarket/backend/internal/services/dispatch"
)

type recordingNotifier struct {
	sent []string
}

func (s *recordingNotifier) SendText(_ context.Context, text string) error {
	s.sent = append(s.sent, text)
	return nil
}

func postDispatch(handler *DispatchHandler, body string, identity *authsvc.Identity) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/notifications/dispatch", strings.NewReader(body))
	if identity != nil {
		req = req.WithContext(authsvc.WithIdentity(req.Context(), *identity))
	}
	rr := httptest.NewRecorder()
	handler.Dispatch(rr, req)
	return rr
}

func TestDispatchAnonymousTemplate(t *testing.T) {
	notifier := &recordingNotifier{}
	handler := NewDispatchHandler(dispatchsvc.NewService(notifier, nil))

	rr := postDispatch(handler, `{"type":"welcome","data":{"name":"Abel"}}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rr.Code, rr.Body.String())
	}

	var body struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.ID == "" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected one delivery, got %d", len(notifier.sent))
	}
}

func TestDispatchAuthTiers(t *testing.T) {
	handler := NewDispatchHandler(dispatchsvc.NewService(&recordingNotifier{}, nil))
	buyer := &authsvc.Identity{UserID: 3, Role: ""}
	admin := &authsvc.Identity{UserID: 1, Role: authsvc.RoleAdmin}

	receipt := `{"type":"purchase_receipt","data":{"item_title":"Test Book","amount":"3598.80","transaction_ref":"txn_abc"}}`
	approval := `{"type":"admin_purchase_approval","data":{"purchase_id":"11","buyer_name":"Abel","item_title":"Test Book"}}`

	if rr := postDispatch(handler, receipt, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous receipt: status %d, want 401", rr.Code)
	}
	if rr := postDispatch(handler, receipt, buyer); rr.Code != http.StatusOK {
		t.Fatalf("authenticated receipt: status %d, body %s", rr.Code, rr.Body.String())
	}
	if rr := postDispatch(handler, approval, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous admin template: status %d, want 401", rr.Code)
	}
	if rr := postDispatch(handler, approval, buyer); rr.Code != http.StatusForbidden {
		t.Fatalf("buyer admin template: status %d, want 403", rr.Code)
	}
	if rr := postDispatch(handler, approval, admin); rr.Code != http.StatusOK {
		t.Fatalf("admin template: status %d, body %s", rr.Code, rr.Body.String())
	}
}

func TestDispatchValidation(t *testing.T) {
	handler := NewDispatchHandler(dispatchsvc.NewService(&recordingNotifier{}, nil))

	cases := []struct {
		name string
		body string
	}{
		{"unknown type", `{"type":"carrier_pigeon","data":{}}`},
		{"missing fields", `{"type":"welcome","data":{}}`},
		{"bad json", `{"type":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := postDispatch(handler, tc.body, nil)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status %d, want 400 (body %s)", rr.Code, rr.Body.String())
			}
			var body struct {
				Error string `json:"error"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error == "" {
				t.Fatal("expected error message")
			}
		})
	}
}
