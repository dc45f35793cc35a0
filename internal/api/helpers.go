package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/charnn/internal/corpus"
)

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, "", "")
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg, "", "")
}

func writeError(c *echo.Context, status int, errType, msg, param, code string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
			Code:    code,
			Param:   param,
		},
	})
}

// writeRequestError maps validation and alphabet errors to 400 responses.
func writeRequestError(c *echo.Context, err error) error {
	var member *corpus.MembershipError
	if errors.As(err, &member) {
		return writeError(c, http.StatusBadRequest, "alphabet_error", err.Error(), "", "symbol_not_in_alphabet")
	}
	var invalid invalidRequestError
	if errors.As(err, &invalid) {
		return writeError(c, http.StatusBadRequest, "invalid_request_error", invalid.msg, invalid.param, "")
	}
	return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

func newSampleID() string {
	return "sample_" + uuid.NewString()
}
