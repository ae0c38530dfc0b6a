package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/nkiryanov/cashbackmart/internal/apperrors"
)

const maxBodyBytes = 1 << 20

const (
	ValidationErrorType = "validation_failed"
	DecodingErrorType   = "decoding_failed"
	ServiceErrorType    = "service_error"
)

var validate = validator.New()

func init() {
	configureValidator(validate)
}

type Struct any

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func JSON(w http.ResponseWriter, data any) {
	jsonWithStatus(w, data, http.StatusOK)
}

func JSONWithStatus(w http.ResponseWriter, data any, code int) {
	jsonWithStatus(w, data, code)
}

type logger interface {
	Error(msg string, args ...any)
}

// Error kinds to response status and machine readable code, first match wins
var appErrors = []struct {
	kind   error
	status int
	code   string
}{
	{apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{apperrors.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{apperrors.ErrDonationRequired, http.StatusPaymentRequired, "donation_required"},
	{apperrors.ErrBelowMinimum, http.StatusPaymentRequired, "below_minimum"},
	{apperrors.ErrInsufficientFunds, http.StatusPaymentRequired, "insufficient_funds"},
	{apperrors.ErrForbidden, http.StatusForbidden, "forbidden"},
	{apperrors.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperrors.ErrOutOfStock, http.StatusConflict, "out_of_stock"},
	{apperrors.ErrConflict, http.StatusConflict, "conflict"},
	{apperrors.ErrExpired, http.StatusGone, "expired"},
	{apperrors.ErrInvalidState, http.StatusUnprocessableEntity, "invalid_state"},
}

// Render error returned by a service
// Known kinds are shown to the client as is, anything else is logged and hidden behind 500
func AppError(w http.ResponseWriter, l logger, err error) {
	var eligibility *apperrors.EligibilityError

	for _, e := range appErrors {
		if !errors.Is(err, e.kind) {
			continue
		}

		message := err.Error()
		if errors.As(err, &eligibility) {
			message = eligibility.Reason
		}

		jsonWithStatus(w, ErrorResponse{Error: ServiceErrorType, Code: e.code, Message: message}, e.status)
		return
	}

	l.Error("Unexpected service error", "error", err)
	ServiceError(w, "Internal server error", http.StatusInternalServerError)
}

// Render ServiceError
func ServiceError(w http.ResponseWriter, error string, code int) {
	response := ErrorResponse{
		Error:   ServiceErrorType,
		Message: error,
	}

	jsonWithStatus(w, response, code)
}

// Render json DecodeError
func DecodeError(w http.ResponseWriter, err error) {
	response := ErrorResponse{
		Error:   DecodingErrorType,
		Message: "",
	}

	// Try to provide more specific error message based on error type
	switch err := err.(type) {
	case *json.UnmarshalTypeError:
		response.Message = fmt.Sprintf("Invalid data type for field '%s'", err.Field)
	default:
		response.Message = fmt.Sprintf("Failed to parse JSON: %s", err.Error())
	}

	jsonWithStatus(w, response, http.StatusBadRequest)
}

// Render ValidationErrors
func ValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	response := ErrorResponse{
		Error:   ValidationErrorType,
		Message: "Request validation failed",
		Fields:  make(map[string]string, len(errs)),
	}

	// Create user-friendly error messages based on validation tag
	for _, fieldError := range errs {
		var message string
		switch fieldError.Tag() {
		case "required":
			message = "This field is required"
		case "min":
			message = fmt.Sprintf("Value is too short (minimum %s)", fieldError.Param())
		case "document":
			message = "Not a valid CPF or CNPJ"
		case "uuid", "uuid4":
			message = "Not a valid id"
		default:
			message = "Invalid value"
		}

		response.Fields[fieldError.Field()] = message
	}

	jsonWithStatus(w, response, http.StatusBadRequest)
}

// BindAndValidate decodes JSON request body into type T and validates it using struct tags.
// Returns the decoded value and writes appropriate error responses for decoding or validation failures.
func BindAndValidate[T Struct](w http.ResponseWriter, r *http.Request) (T, error) {
	return bind[T](w, r, false)
}

// BindOptional is BindAndValidate that treats empty body as zero T
func BindOptional[T Struct](w http.ResponseWriter, r *http.Request) (T, error) {
	return bind[T](w, r, true)
}

func bind[T Struct](w http.ResponseWriter, r *http.Request, optional bool) (T, error) {
	var value T

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(&value)
	if err != nil && !(optional && errors.Is(err, io.EOF)) {
		DecodeError(w, err)
		return value, err
	}

	err = validate.Struct(value)
	if err != nil {
		// pretty sure cast will be ok cause expecting T is valid struct
		errs := err.(validator.ValidationErrors)
		ValidationErrors(w, errs)
		return value, err
	}

	return value, nil
}

// renderJSONWithStatus sends data as json and enforces status code
func jsonWithStatus(w http.ResponseWriter, data any, code int) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)

	if err := enc.Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
