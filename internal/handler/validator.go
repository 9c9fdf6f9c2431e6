package handler

import (
    "errors"
    "fmt"
    "reflect"
    "strings"

    "github.com/go-playground/validator/v10"
)

// RequestValidator plugs go-playground/validator into echo so handlers
// can call c.Validate on bound request bodies.
type RequestValidator struct {
    v *validator.Validate
}

// NewRequestValidator returns a validator that reports fields by their
// json names.
func NewRequestValidator() *RequestValidator {
    v := validator.New(validator.WithRequiredStructEnabled())
    v.RegisterTagNameFunc(jsonName)
    return &RequestValidator{v: v}
}

// Validate implements echo.Validator.  Failures are flattened into one
// readable message such as "cargo_count must be gt 0".
func (rv *RequestValidator) Validate(i interface{}) error {
    err := rv.v.Struct(i)
    if err == nil {
        return nil
    }
    var verrs validator.ValidationErrors
    if !errors.As(err, &verrs) {
        return err
    }
    msgs := make([]string, 0, len(verrs))
    for _, fe := range verrs {
        msg := fmt.Sprintf("%s must be %s", fe.Field(), fe.Tag())
        if fe.Param() != "" {
            msg += " " + fe.Param()
        }
        msgs = append(msgs, msg)
    }
    return errors.New(strings.Join(msgs, "; "))
}

func jsonName(f reflect.StructField) string {
    name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
    if name == "-" || name == "" {
        return f.Name
    }
    return name
}
