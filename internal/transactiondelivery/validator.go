package transactiondelivery

import (
	"github.com/go-playground/validator/v10"

	"github.com/streampanel/creditgate/internal/domain"
)

// ValidTransactionType validates whether the transaction type is supported.
var ValidTransactionType validator.Func = func(fl validator.FieldLevel) bool {
	if txType, ok := fl.Field().Interface().(string); ok {
		return domain.IsSupportedTransactionType(txType)
	}

	return false
}
