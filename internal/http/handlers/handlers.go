// Package handlers holds the request plumbing shared by the resource
// handler packages: body decoding and validation, list parameters,
// storage error mapping and the delete confirmation guard.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/students-api/internal/confirm"
	"github.com/aanand-mishra/students-api/internal/query"
	"github.com/aanand-mishra/students-api/internal/storage"
	"github.com/aanand-mishra/students-api/internal/types"
	"github.com/aanand-mishra/students-api/internal/utils/response"
	"github.com/aanand-mishra/students-api/internal/utils/validate"
)

// ConfirmHeader carries the token issued by a delete-token endpoint.
const ConfirmHeader = "X-Confirm-Token"

// Bind decodes the JSON body into dst, trims input text fields and
// validates the result. On failure it writes a 400 and returns false.
func Bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("request body is empty")
		}
		response.WriteJSON(c, http.StatusBadRequest, response.GeneralError(err))
		return false
	}

	switch in := dst.(type) {
	case *types.StudentInput:
		*in = in.Normalize()
	case *types.MarkInput:
		*in = in.Normalize()
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			response.WriteJSON(c, http.StatusBadRequest, response.ValidationError(verrs))
		} else {
			response.WriteJSON(c, http.StatusBadRequest, response.GeneralError(err))
		}
		return false
	}
	return true
}

// ListParams parses page, limit and search. On failure it writes a 400 and
// returns false.
func ListParams(c *gin.Context, maxLimit int) (query.Params, bool) {
	p, err := query.Parse(c.Request.URL.Query(), maxLimit)
	if err != nil {
		response.WriteJSON(c, http.StatusBadRequest, response.GeneralError(err))
		return query.Params{}, false
	}
	return p, true
}

// StorageError writes the response for an error returned by storage.
// what names the resource for not-found messages, e.g. "Student".
func StorageError(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		response.NotFound(c, what)
	case errors.Is(err, storage.ErrStudentNotFound):
		response.NotFound(c, "Student")
	case errors.Is(err, storage.ErrConflict):
		response.WriteJSON(c, http.StatusBadRequest,
			response.Failure("Email already taken, please use a different email!"))
	default:
		slog.Error("storage failure",
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()))
		response.WriteJSON(c, http.StatusInternalServerError, response.GeneralError(err))
	}
}

// DeleteGuard applies the confirmation token protocol to deletes.
type DeleteGuard struct {
	Tokens *confirm.Service
	// Required rejects deletes without a token. When false a token is
	// optional but still checked if sent.
	Required bool
}

// Check redeems the request's token for subject. On failure it writes a
// 400 (or 500) and returns false.
func (g *DeleteGuard) Check(c *gin.Context, subject string) bool {
	token := c.GetHeader(ConfirmHeader)
	if token == "" && !g.Required {
		return true
	}

	err := g.Tokens.Redeem(c.Request.Context(), token, subject)
	switch {
	case err == nil:
		return true
	case errors.Is(err, confirm.ErrInvalidToken):
		response.WriteJSON(c, http.StatusBadRequest, response.GeneralError(err))
	default:
		slog.Error("redeeming confirmation token", slog.String("error", err.Error()))
		response.WriteJSON(c, http.StatusInternalServerError, response.GeneralError(err))
	}
	return false
}

// Issue writes a new token for subject.
func (g *DeleteGuard) Issue(c *gin.Context, subject string) {
	tok, err := g.Tokens.Issue(c.Request.Context(), subject)
	if err != nil {
		slog.Error("issuing confirmation token", slog.String("error", err.Error()))
		response.WriteJSON(c, http.StatusInternalServerError, response.GeneralError(err))
		return
	}
	response.WriteJSON(c, http.StatusCreated, response.OK(tok))
}
