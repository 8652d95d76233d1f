package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnknownTemplate = errors.New("unknown notification template")
	ErrMissingField    = errors.New("required template field missing")
	ErrDelivery        = errors.New("notification delivery failed")
)

// Tier is the minimum caller level a template requires.
type Tier int

const (
	TierAnonymous Tier = iota
	TierAuthenticated
	TierAdmin
)

type template struct {
	required []string
	tier     Tier
	render   func(data map[string]string) string
}

// templates is the closed set of dispatchable notifications. Renders are
// pure functions of the validated data map.
var templates = map[string]template{
	"welcome": {
		required: []string{"name"},
		tier:     TierAnonymous,
		render: func(data map[string]string) string {
			return fmt.Sprintf("Welcome to the store, %s!", data["name"])
		},
	},
	"purchase_receipt": {
		required: []string{"item_title", "amount", "transaction_ref"},
		tier:     TierAuthenticated,
		render: func(data map[string]string) string {
			return fmt.Sprintf("Receipt for %s: %s (ref %s)",
				data["item_title"], data["amount"], data["transaction_ref"])
		},
	},
	"purchase_confirmation": {
		required: []string{"item_title"},
		tier:     TierAuthenticated,
		render: func(data map[string]string) string {
			return fmt.Sprintf("Your purchase of %s is confirmed. Happy reading!", data["item_title"])
		},
	},
	"password_reset": {
		required: []string{"reset_link"},
		tier:     TierAnonymous,
		render: func(data map[string]string) string {
			return fmt.Sprintf("Reset your password: %s", data["reset_link"])
		},
	},
	"security_notification": {
		required: []string{"event"},
		tier:     TierAuthenticated,
		render: func(data map[string]string) string {
			return fmt.Sprintf("Security alert on your account: %s", data["event"])
		},
	},
	"admin_purchase_approval": {
		required: []string{"purchase_id", "buyer_name", "item_title"},
		tier:     TierAdmin,
		render: func(data map[string]string) string {
			return fmt.Sprintf("Purchase %s by %s (%s) needs verification",
				data["purchase_id"], data["buyer_name"], data["item_title"])
		},
	},
}

type Notifier interface {
	SendText(ctx context.Context, text string) error
}

type Service struct {
	notifier Notifier
	logger   *zap.Logger
}

func NewService(notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{notifier: notifier, logger: logger}
}

// RequiredTier reports the auth tier a template demands. Unknown templates
// return ErrUnknownTemplate so handlers can 400 before auth checks leak
// template existence.
func RequiredTier(templateType string) (Tier, error) {
	tmpl, ok := templates[templateType]
	if !ok {
		return TierAnonymous, ErrUnknownTemplate
	}
	return tmpl.tier, nil
}

// Render validates the data against the template's required fields and
// produces the message text. Pure; no delivery.
func Render(templateType string, data map[string]string) (string, error) {
	tmpl, ok := templates[templateType]
	if !ok {
		return "", ErrUnknownTemplate
	}

	missing := make([]string, 0)
	for _, field := range tmpl.required {
		if strings.TrimSpace(data[field]) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}

	return tmpl.render(data), nil
}

// Dispatch renders and delivers a notification, returning the dispatch id.
func (s *Service) Dispatch(ctx context.Context, templateType string, data map[string]string) (string, error) {
	text, err := Render(templateType, data)
	if err != nil {
		return "", err
	}
	if s.notifier == nil {
		return "", fmt.Errorf("notifier is not configured")
	}

	id := uuid.NewString()
	if err := s.notifier.SendText(ctx, text); err != nil {
		s.logger.Error("dispatch delivery",
			zap.String("template", templateType),
			zap.String("dispatch_id", id),
			zap.Error(err))
		return "", ErrDelivery
	}

	return id, nil
}
