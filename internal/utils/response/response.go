// Package response provides helpers for writing consistent JSON HTTP
// responses.
//
// Every body carries a boolean "status". Success bodies add "data",
// "message" or list metadata; error bodies add "error" (validation and
// internal failures) or "message" (not found and conflicts):
//
//	{ "status": true,  "data": { ... } }
//	{ "status": false, "error": "field firstName is required" }
//	{ "status": false, "message": "Student not found!" }
package response

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/students-api/internal/query"
)

// Response is the standard envelope.
type Response struct {
	Status  bool   `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// List is the envelope of one page of a collection.
type List struct {
	Status     bool  `json:"status"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
	Data       any   `json:"data"`
}

// WriteJSON writes data as JSON with the given status code.
func WriteJSON(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

// OK wraps data in a success envelope.
func OK(data any) Response {
	return Response{Status: true, Data: data}
}

// Message is a success envelope carrying only a message.
func Message(msg string) Response {
	return Response{Status: true, Message: msg}
}

// Page builds the list envelope for items fetched with p.
func Page(items any, total int64, p query.Params) List {
	return List{
		Status:     true,
		Total:      total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: query.TotalPages(total, p.Limit),
		Data:       items,
	}
}

// GeneralError wraps any Go error into the error envelope.
func GeneralError(err error) Response {
	return Response{Status: false, Error: err.Error()}
}

// Failure is an error envelope whose text goes in "message".
func Failure(msg string) Response {
	return Response{Status: false, Message: msg}
}

// ValidationError converts validator field errors into one readable line.
//
//	{ "status": false, "error": "field firstName is required, field age is invalid" }
func ValidationError(errs validator.ValidationErrors) Response {
	var msgs []string

	for _, e := range errs {
		switch e.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is required", e.Field()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("field %s must be a valid email address", e.Field()))
		case "datetime":
			msgs = append(msgs, fmt.Sprintf("field %s must be a date formatted as %s", e.Field(), e.Param()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("field %s must be at least %s", e.Field(), e.Param()))
		case "lte":
			msgs = append(msgs, fmt.Sprintf("field %s must be at most %s", e.Field(), e.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("field %s must be at most %s characters", e.Field(), e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is invalid", e.Field()))
		}
	}

	return Response{Status: false, Error: strings.Join(msgs, ", ")}
}

// NotFound is shorthand for a 404 with a message envelope.
func NotFound(c *gin.Context, what string) {
	WriteJSON(c, http.StatusNotFound, Failure(what+" not found!"))
}
