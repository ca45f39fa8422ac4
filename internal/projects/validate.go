package projects

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"marketplace-gateway/middleware/security/sanitize"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Regras por campo, na ordem em que são checadas. min/max em string contam
// runas.
const (
	titleMinTag       = "min=3"
	titleMaxTag       = "max=100"
	descriptionMaxTag = "max=2000"
	priceTag          = "gte=0"
)

// Validate é o validador de entrada do endpoint (POST e PUT). Recebe os
// dados já sanitizados pelo gateway.
//
// description e price só são checados quando presentes e "verdadeiros":
// null, "", 0 e false passam.
func Validate(data sanitize.Value) error {
	if data.Kind() != sanitize.KindObject {
		return errors.New("Invalid data format")
	}

	title, _ := data.Get("title")
	s, ok := title.Str()
	if !ok {
		return errors.New("Title must be at least 3 characters long")
	}
	if err := check(strings.TrimSpace(s), titleMinTag, "Title must be at least 3 characters long"); err != nil {
		return err
	}
	if err := check(s, titleMaxTag, "Title cannot exceed 100 characters"); err != nil {
		return err
	}

	if d, ok := data.Get("description"); ok && truthy(d) {
		s, isStr := d.Str()
		if !isStr {
			return errors.New("Description must be a string")
		}
		if err := check(s, descriptionMaxTag, "Description cannot exceed 2000 characters"); err != nil {
			return err
		}
	}

	if p, ok := data.Get("price"); ok && truthy(p) {
		f, isNum := p.Float64()
		if !isNum {
			return errors.New("Price must be a non-negative number")
		}
		if err := check(f, priceTag, "Price must be a non-negative number"); err != nil {
			return err
		}
	}
	return nil
}

// check roda a regra tag sobre v e troca o erro do validator por msg.
func check(v any, tag, msg string) error {
	if err := validate.Var(v, tag); err != nil {
		return errors.New(msg)
	}
	return nil
}

func truthy(v sanitize.Value) bool {
	switch v.Kind() {
	case sanitize.KindNull:
		return false
	case sanitize.KindBool:
		b, _ := v.Bool()
		return b
	case sanitize.KindString:
		s, _ := v.Str()
		return s != ""
	case sanitize.KindNumber:
		f, _ := v.Float64()
		return f != 0
	default:
		return true
	}
}
