package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"slotbook/pkg/logger"
	"slotbook/pkg/model"

	"github.com/go-playground/validator/v10"
)

var (
	timeOfDayRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

	// Naive layouts are read as UTC wall clock.
	slotTimeLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	}
)

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

// Details flattens the errors into a field -> message map for API responses.
func (v ValidationErrors) Details() map[string]any {
	details := make(map[string]any, len(v))
	for _, err := range v {
		details[err.Field] = err.Message
	}
	return details
}

type ReservationValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewReservationValidator(log *logger.Logger) *ReservationValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("slot_time", validateSlotTime); err != nil {
		log.Fatal("Failed to register 'slot_time' validator",
			"error", err,
		)
	}
	if err := v.RegisterValidation("time_of_day", validateTimeOfDay); err != nil {
		log.Fatal("Failed to register 'time_of_day' validator",
			"error", err,
		)
	}

	return &ReservationValidator{
		validate: v,
		logger:   log,
	}
}

// ParseSlotTime reads an RFC 3339 timestamp or a zone-less
// "2006-01-02T15:04:05" one and returns it normalized to UTC seconds.
func ParseSlotTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range slotTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return model.NormalizeTime(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: expected RFC 3339 or 2006-01-02T15:04:05", value)
}

func validateSlotTime(fl validator.FieldLevel) bool {
	_, err := ParseSlotTime(fl.Field().String())
	return err == nil
}

func validateTimeOfDay(fl validator.FieldLevel) bool {
	return timeOfDayRegex.MatchString(fl.Field().String())
}

// ValidateReserve checks a reserve request and returns the requested slot start.
func (v *ReservationValidator) ValidateReserve(req *model.ReserveRequest) (time.Time, error) {
	if err := v.structErr(req); err != nil {
		return time.Time{}, err
	}
	return ParseSlotTime(req.SlotStartTime)
}

// ValidateListQuery checks a listing query and returns its parsed from time.
func (v *ReservationValidator) ValidateListQuery(q *model.ListAvailableQuery) (time.Time, error) {
	if err := v.structErr(q); err != nil {
		return time.Time{}, err
	}
	return ParseSlotTime(q.From)
}

func (v *ReservationValidator) ValidateSlotID(id string) error {
	if err := v.validate.Var(id, "required,max=128,printascii,excludesall=/?#"); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return ValidationErrors{
				ValidationError{Field: "slot_id", Message: "slot_id must be a non-empty identifier of at most 128 characters"},
			}
		}
		return err
	}
	return nil
}

func (v *ReservationValidator) ValidateTemplate(tpl *model.SlotTemplate) error {
	if err := v.structErr(tpl); err != nil {
		return err
	}
	if tpl.EndOfDay <= tpl.StartOfDay {
		return ValidationErrors{
			ValidationError{
				Field:   "end_of_day",
				Message: "end_of_day must be after start_of_day",
			},
		}
	}
	return nil
}

func (v *ReservationValidator) structErr(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *ReservationValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "slot_time":
			message = fmt.Sprintf("%s must be an ISO-8601 date-time such as 2030-01-02T09:00:00", err.Field())
		case "time_of_day":
			message = fmt.Sprintf("%s must be in HH:MM format (00:00-23:59)", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
