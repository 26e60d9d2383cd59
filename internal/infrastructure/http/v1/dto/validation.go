package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	appctx "voltstock/internal/core/context"
)

// RegisterValidators adds the inventory-specific binding tags to v.
//
//	holder_role  a role that can be asked for stock (super-admin or admin)
//
// Field errors are reported under their JSON names.
func RegisterValidators(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	if err := v.RegisterValidation("holder_role", func(fl validator.FieldLevel) bool {
		role := appctx.Role(fl.Field().String())
		return role == appctx.RoleSuperAdmin || role == appctx.RoleAdmin
	}); err != nil {
		return fmt.Errorf("register holder_role: %w", err)
	}
	return nil
}

// FieldErrors flattens validator errors into field -> message.
// Other errors (malformed JSON) come back under "body".
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"body": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[jsonPath(fe)] = describe(fe)
	}
	return out
}

// jsonPath drops the top-level struct name from the namespace.
func jsonPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "ne":
		return "must not be " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "holder_role":
		return "must be super-admin or admin"
	}
	return "failed " + fe.Tag() + " validation"
}
