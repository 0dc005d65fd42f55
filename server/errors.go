package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xhad/fullstackgpt/internal/types"
)

// APIError is the JSON body of every failed request.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newBadRequest(message string, cause error) *APIError {
	err := &APIError{Status: http.StatusBadRequest, Code: "BAD_REQUEST", Message: message}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

func newNotFound(resource, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

func newConflict(message string) *APIError {
	return &APIError{Status: http.StatusConflict, Code: "CONFLICT", Message: message}
}

// toAPIError maps the domain error taxonomy onto HTTP statuses.
func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return &APIError{Status: httpErr.Code, Code: "HTTP_ERROR", Message: fmt.Sprintf("%v", httpErr.Message)}
	}

	switch {
	case types.IsLoadError(err):
		return &APIError{Status: http.StatusBadRequest, Code: "LOAD_ERROR", Message: "could not load the input", Details: err.Error()}
	case types.IsSchemaError(err):
		return &APIError{Status: http.StatusUnprocessableEntity, Code: "SCHEMA_ERROR", Message: "could not parse the model reply, try again", Details: err.Error()}
	case types.IsFetchError(err):
		return &APIError{Status: http.StatusBadGateway, Code: "FETCH_ERROR", Message: "a remote page could not be fetched", Details: err.Error()}
	case types.IsModelError(err):
		return &APIError{Status: http.StatusBadGateway, Code: "MODEL_ERROR", Message: "the language model call failed, check the model API key and provider settings", Details: err.Error()}
	default:
		return &APIError{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: "an unexpected error occurred", Details: err.Error()}
	}
}

// ErrorHandler writes every handler error as an APIError.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	apiErr := toAPIError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}
	if err := c.JSON(apiErr.Status, apiErr); err != nil {
		log.Printf("Error sending error response: %v", err)
	}
}
