package validation

import (
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with struct-level rules registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterStructValidation(mutationStructValidation, MutationRequest{})

	return v
}

// mutationStructValidation rejects ids made only of whitespace, which pass
// the required tag but can never address an order.
func mutationStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(MutationRequest)
	if req.ID != "" && strings.TrimSpace(string(req.ID)) == "" {
		sl.ReportError(req.ID, "id", "ID", "id_not_blank", "")
	}
}
