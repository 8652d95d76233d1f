package enums

type PaymentConfigType string

const (
	PaymentConfigTypeBankAccount PaymentConfigType = "bank_account"
	PaymentConfigTypeMobileMoney PaymentConfigType = "mobile_money"
)

func (t PaymentConfigType) Valid() bool {
	return t == PaymentConfigTypeBankAccount || t == PaymentConfigTypeMobileMoney
}
