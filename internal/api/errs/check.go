package errs

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// FieldErrors is a collection of request field failures.
type FieldErrors []Field

// Error implements the error interface.
func (fe FieldErrors) Error() string {
	msgs := make([]string, 0, len(fe))
	for _, f := range fe {
		msgs = append(msgs, f.Name+": "+f.Error)
	}
	return strings.Join(msgs, "; ")
}

var (
	checkOnce  sync.Once
	validate   *validator.Validate
	translator ut.Translator
	checkErr   error
)

func initCheck() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	english := en.New()
	translator, _ = ut.New(english, english).GetTranslator("en")
	checkErr = en_translations.RegisterDefaultTranslations(validate, translator)
}

// Check validates the provided model against its declared tags. Failures are
// returned as FieldErrors keyed by the json name of each field.
func Check(val any) error {
	checkOnce.Do(initCheck)
	if checkErr != nil {
		return checkErr
	}

	if err := validate.Struct(val); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}

		fields := make(FieldErrors, 0, len(verrs))
		for _, verr := range verrs {
			fields = append(fields, Field{
				Name:  verr.Field(),
				Error: verr.Translate(translator),
			})
		}
		return fields
	}

	return nil
}
