package enums

type ContactType string

const (
	ContactTypeTelegram ContactType = "telegram"
	ContactTypeWhatsApp ContactType = "whatsapp"
	ContactTypeEmail    ContactType = "email"
)

func (t ContactType) Valid() bool {
	switch t {
	case ContactTypeTelegram, ContactTypeWhatsApp, ContactTypeEmail:
		return true
	default:
		return false
	}
}
