package booking

import (
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/robertarktes/court-reservations/internal/domain"
)

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

// validateStruct turns validator failures into a field map keyed by json path.
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return errors.Wrap(err, "validate")
	}
	verr := &domain.ValidationError{}
	for _, fe := range ves {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		verr.Add(ns, describe(fe))
	}
	return verr
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	}
	return "is invalid"
}

func (r BookingRequest) validate(needCourt bool) error {
	verr := &domain.ValidationError{}
	if err := validateStruct(r); err != nil {
		var fields *domain.ValidationError
		if !errors.As(err, &fields) {
			return err
		}
		verr = fields
	}
	if needCourt && r.CourtID <= 0 {
		verr.Add("court_id", "must be greater than 0")
	}
	if r.Date.IsZero() {
		verr.Add("date", "is required")
	}
	if !r.Window.Valid() {
		verr.Add("end", "must be after start")
	}
	return verr.OrNil()
}
