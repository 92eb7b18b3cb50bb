package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	kerr "github.com/harshaverse/karmic/internal/pkg/errors"
	"github.com/harshaverse/karmic/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondServiceError maps the service error taxonomy onto HTTP statuses.
func RespondServiceError(c *gin.Context, err error) {
	ae := classify(err)
	RespondError(c, ae.Status, ae.Code, ae.Err)
}

func classify(err error) *apierr.Error {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, kerr.ErrUnsupportedFormat):
		return apierr.New(http.StatusBadRequest, "unsupported_format", err)
	case errors.Is(err, kerr.ErrCorruptGeometry):
		return apierr.New(http.StatusBadRequest, "corrupt_geometry", err)
	case errors.Is(err, kerr.ErrNonManifoldInput):
		return apierr.New(http.StatusUnprocessableEntity, "non_manifold_input", err)
	case errors.Is(err, kerr.ErrResourceExceeded):
		return apierr.New(http.StatusRequestEntityTooLarge, "resource_exceeded", err)
	case errors.Is(err, kerr.ErrQuotaExceeded):
		return apierr.New(http.StatusInsufficientStorage, "quota_exceeded", err)
	case errors.Is(err, kerr.ErrInvalidState):
		return apierr.New(http.StatusConflict, "invalid_state", err)
	case errors.Is(err, kerr.ErrNotFound):
		return apierr.New(http.StatusNotFound, "not_found", err)
	default:
		return apierr.New(http.StatusInternalServerError, "internal_error", err)
	}
}
