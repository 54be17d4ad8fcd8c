package accountdelivery

import (
	"github.com/go-playground/validator/v10"

	"github.com/streampanel/creditgate/internal/domain"
)

// ValidRole validates whether the account role is supported.
var ValidRole validator.Func = func(fl validator.FieldLevel) bool {
	if role, ok := fl.Field().Interface().(string); ok {
		return domain.IsSupportedRole(role)
	}

	return false
}
