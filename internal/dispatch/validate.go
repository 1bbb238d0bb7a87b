package dispatch

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/financeai/bff/internal/domain"
)

// WritePayload carries the sanitized transaction fields of a create.
// The userId is set by the handler per the identity substitution rule,
// never taken from the client in trusted deployments.
type WritePayload struct {
	UserID        string  `json:"userId" validate:"required"`
	Name          string  `json:"name" validate:"required"`
	Type          string  `json:"type" validate:"required,oneof=deposit expense investment"`
	Category      string  `json:"category" validate:"required,oneof=education entertainment food health housing other salary transportation utilities"`
	PaymentMethod string  `json:"paymentMethod" validate:"required,oneof=bank_transfer bank_slip cash credit_card debit_card other pix"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	Date          string  `json:"date,omitempty"`
}

// UpdatePayload is a partial patch; only non-nil fields are validated and
// forwarded.
type UpdatePayload struct {
	Name          *string  `json:"name,omitempty" validate:"omitempty,min=1"`
	Type          *string  `json:"type,omitempty" validate:"omitempty,oneof=deposit expense investment"`
	Category      *string  `json:"category,omitempty" validate:"omitempty,oneof=education entertainment food health housing other salary transportation utilities"`
	PaymentMethod *string  `json:"paymentMethod,omitempty" validate:"omitempty,oneof=bank_transfer bank_slip cash credit_card debit_card other pix"`
	Amount        *float64 `json:"amount,omitempty" validate:"omitempty,gt=0"`
	Date          *string  `json:"date,omitempty"`
}

// fields returns the present patch fields keyed by their wire names.
func (p UpdatePayload) fields() map[string]any {
	m := map[string]any{}
	if p.Name != nil {
		m["name"] = *p.Name
	}
	if p.Type != nil {
		m["type"] = *p.Type
	}
	if p.Category != nil {
		m["category"] = *p.Category
	}
	if p.PaymentMethod != nil {
		m["paymentMethod"] = *p.PaymentMethod
	}
	if p.Amount != nil {
		m["amount"] = *p.Amount
	}
	if p.Date != nil {
		m["date"] = *p.Date
	}
	return m
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateCreate(p WritePayload) error {
	if err := validate.Struct(p); err != nil {
		return toValidationError(err)
	}
	if p.Date != "" {
		if _, err := domain.ParseDate(p.Date); err != nil {
			return &domain.ValidationError{Field: "date", Message: "must be RFC3339 or YYYY-MM-DD"}
		}
	}
	return nil
}

func validatePatch(p UpdatePayload) error {
	if len(p.fields()) == 0 {
		return &domain.ValidationError{Field: "patch", Message: "no fields to update"}
	}
	if err := validate.Struct(p); err != nil {
		return toValidationError(err)
	}
	if p.Date != nil {
		if _, err := domain.ParseDate(*p.Date); err != nil {
			return &domain.ValidationError{Field: "date", Message: "must be RFC3339 or YYYY-MM-DD"}
		}
	}
	return nil
}

// toValidationError surfaces the first failing field with its allowed value
// set when the constraint is a closed enum.
func toValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return &domain.ValidationError{Field: "payload", Message: "invalid payload"}
	}
	fe := verrs[0]
	ve := &domain.ValidationError{Field: fe.Field()}
	switch fe.Tag() {
	case "required":
		ve.Message = "is required"
	case "oneof":
		ve.Message = "must be one of the allowed values"
		ve.Allowed = strings.Fields(fe.Param())
	case "gt":
		ve.Message = "must be greater than " + fe.Param()
	case "min":
		ve.Message = "must not be empty"
	default:
		ve.Message = "is invalid"
	}
	return ve
}
