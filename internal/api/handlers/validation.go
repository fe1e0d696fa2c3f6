package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxJSONBytes caps JSON request bodies.
const maxJSONBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a JSON body into dst and validates its struct tags. The
// returned message is suitable for a 400 response.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return "Invalid request body", false
	}
	if err := validate.Struct(dst); err != nil {
		return validationMessage(err), false
	}
	return "", true
}

// validationMessage lists the fields that failed validation.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request body"
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	sort.Strings(fields)
	return "Invalid fields: " + strings.Join(fields, ", ")
}
