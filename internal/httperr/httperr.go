// Package httperr maps domain errors onto HTTP responses.
package httperr

import (
	"errors"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const (
	MessageUpstream = "service temporarily unavailable, please try again"
	MessageInternal = "internal server error"
)

// Status returns the response status and the message that is safe to show a
// client. Wrapped upstream detail never reaches the message.
func Status(err error) (int, string) {
	var (
		validation *domain.ValidationError
		rejection  *domain.RejectionError
		notFound   *domain.NotFoundError
		upstream   *domain.UpstreamError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Message
	case errors.As(err, &rejection):
		return http.StatusBadRequest, rejection.Reason
	case errors.As(err, &notFound):
		return http.StatusNotFound, notFound.Message
	case errors.As(err, &upstream):
		return http.StatusBadGateway, MessageUpstream
	default:
		return http.StatusInternalServerError, MessageInternal
	}
}

// Logged reports whether err deserves an error log line. Client mistakes and
// business refusals do not.
func Logged(err error) bool {
	status, _ := Status(err)
	return status >= http.StatusInternalServerError
}
