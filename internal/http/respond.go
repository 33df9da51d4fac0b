package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/andreasstove999/ecommerce-system/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/internal/logging"
	"github.com/andreasstove999/ecommerce-system/internal/order"
)

const maxBodyBytes = 1 << 20

var (
	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	cvvPattern    = regexp.MustCompile(`^\d{3}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("expiry", func(fl validator.FieldLevel) bool {
		return expiryPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("cvv", func(fl validator.FieldLevel) bool {
		return cvvPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("cents", func(fl validator.FieldLevel) bool {
		return order.WholeCents(fl.Field().Float())
	})
	return v
}

// decodeJSON reads a JSON body into v and runs its validate tags.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("Invalid JSON body", err.Error())
	}
	if err := validate.Struct(v); err != nil {
		return apperr.Validation("Validation failed", fieldErrors(err)...)
	}
	return nil
}

func fieldErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as {statusCode, message, details}. Server-side kinds
// are logged with the request logger.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := apperr.ToBody(err)
	if body.StatusCode >= http.StatusInternalServerError {
		logging.FromCtx(r.Context(), nil).Error("request failed", "error", err)
	}
	writeJSON(w, body.StatusCode, body)
}
