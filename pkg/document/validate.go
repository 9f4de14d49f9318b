package document

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	verrors "github.com/matzehuels/viewgraph/pkg/errors"
)

// validate is the shared validator instance. validator.Validate caches struct
// metadata and is safe for concurrent use.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report field paths the way they appear in the JSON body.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// Validate checks the document's shape: the three entity collections are
// present, every entity and edge endpoint has a usable name, and edge kinds
// are known. It does not check uniqueness or references; those are graph
// properties checked while building the view graph.
func (d *Document) Validate() error {
	if err := validate.Struct(d); err != nil {
		return formatValidationErrors(err)
	}

	for i, in := range d.Inputs {
		if err := verrors.ValidateName(fmt.Sprintf("inputs[%d]", i), in.Name); err != nil {
			return err
		}
	}
	for i, out := range d.Outputs {
		if err := verrors.ValidateName(fmt.Sprintf("outputs[%d]", i), out.Name); err != nil {
			return err
		}
	}
	for i, n := range d.Nodes {
		if err := verrors.ValidateName(fmt.Sprintf("nodes[%d]", i), n.Name); err != nil {
			return err
		}
	}
	return nil
}

// formatValidationErrors converts validator errors into a single
// MALFORMED_INPUT error listing every failing field.
func formatValidationErrors(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return verrors.Wrap(verrors.ErrCodeMalformedInput, err, "invalid document")
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fieldPath(fe), errorMessage(fe)))
	}
	return verrors.New(verrors.ErrCodeMalformedInput, "%s", strings.Join(msgs, "; "))
}

// fieldPath strips the root struct name from the namespace
// ("Document.nodes[0].name" → "nodes[0].name").
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func errorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Kind() == reflect.Slice {
			return "collection is required"
		}
		return "field is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
