package render

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	docs "github.com/nkiryanov/cashbackmart/internal/service/validate"
)

func configureValidator(validate *validator.Validate) {
	_ = validate.RegisterValidation("document", validateDocument)
	validate.RegisterTagNameFunc(useJSONTagNames)
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

// CPF or CNPJ, punctuation allowed
func validateDocument(fl validator.FieldLevel) bool {
	return docs.Document(docs.StripDocument(fl.Field().String())) != docs.Invalid
}
