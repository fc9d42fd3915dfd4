package validator

import (
	"errors"
	"fmt"
	"strings"

	"rentpay/pkg/logger"
	"rentpay/pkg/model"

	"github.com/go-playground/validator/v10"
)

const MaxTxRefLength = 255

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type PaymentValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewPaymentValidator(log *logger.Logger) *PaymentValidator {
	v := validator.New()

	log.Info("Payment validator initialized successfully")

	return &PaymentValidator{
		validate: v,
		logger:   log,
	}
}

func (v *PaymentValidator) ValidateInitiate(req *model.InitiatePaymentRequest) error {
	if req == nil {
		return ValidationErrors{ValidationError{Field: "BookingID", Message: "BookingID is required"}}
	}
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

// ValidateTxRef rejects references that could never have been issued.
func (v *PaymentValidator) ValidateTxRef(txRef string) error {
	if err := v.validate.Var(txRef, fmt.Sprintf("required,max=%d,printascii,startswith=booking_", MaxTxRefLength)); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return ValidationErrors{ValidationError{
				Field:   "tx_ref",
				Message: fmt.Sprintf("tx_ref failed %q check", validationErrs[0].Tag()),
			}}
		}
		return err
	}
	return nil
}

func (v *PaymentValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
