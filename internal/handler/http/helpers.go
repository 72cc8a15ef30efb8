package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/boutique-api/internal/admin"
	"github.com/vasiliy-maslov/boutique-api/internal/contact"
	"github.com/vasiliy-maslov/boutique-api/internal/mail"
	"github.com/vasiliy-maslov/boutique-api/internal/order"
	"github.com/vasiliy-maslov/boutique-api/internal/product"
	"github.com/vasiliy-maslov/boutique-api/internal/upload"
)

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

// respondWithError sends {"error": message}.
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("handler: failed to write JSON response")
	}
}

// respondWithServiceError maps err to a status code. Client errors carry the
// sentinel message, anything else gets fallback.
func respondWithServiceError(w http.ResponseWriter, err error, fallback string) {
	code := mapErrorToStatusCode(err)
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", code).Msg(fallback)
	}
	if code == http.StatusInternalServerError {
		respondWithError(w, code, fallback)
		return
	}
	respondWithError(w, code, clientMessage(err))
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, order.ErrProductNotInOrder),
		errors.Is(err, product.ErrProductNotFound),
		errors.Is(err, product.ErrColorNotFound),
		errors.Is(err, admin.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrInvalidProductKey),
		errors.Is(err, order.ErrInvalidProgress),
		errors.Is(err, order.ErrInvalidOrder),
		errors.Is(err, order.ErrInvalidTotal),
		errors.Is(err, order.ErrMissingRecipient),
		errors.Is(err, product.ErrNoColors),
		errors.Is(err, product.ErrInvalidStock),
		errors.Is(err, product.ErrInvalidPrice),
		errors.Is(err, product.ErrInvalidPercentage),
		errors.Is(err, contact.ErrMissingFields),
		errors.Is(err, upload.ErrNoFile),
		errors.Is(err, upload.ErrUnsupportedType):
		return http.StatusBadRequest
	case errors.Is(err, upload.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, admin.ErrMissingToken),
		errors.Is(err, admin.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, admin.ErrInvalidToken),
		errors.Is(err, admin.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, order.ErrDuplicateOrderID),
		errors.Is(err, product.ErrProductInUse),
		errors.Is(err, admin.ErrUsernameExists):
		return http.StatusConflict
	case errors.Is(err, mail.ErrDelivery),
		errors.Is(err, upload.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage unwraps to the first sentinel in the chain so internal
// context never reaches the client.
func clientMessage(err error) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if errors.Unwrap(e) == nil {
			return e.Error()
		}
	}
	return err.Error()
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		if fe.Param() != "" {
			details[fe.Field()] = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
		} else {
			details[fe.Field()] = fe.Tag()
		}
	}
	return details
}

// decodeAndValidate decodes a strict JSON body into dst and validates it. It
// writes the error response itself and reports whether the caller may go on.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		log.Warn().Err(err).Msg("handler: failed to decode request body")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload %v", err))
		return false
	}

	if err := v.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
		} else {
			log.Error().Err(err).Type("validation_error_type", err).Msg("handler: unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return false
	}
	return true
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return uuid.Nil, false
	}
	return id, true
}
