package cti

import "net/http"

// StatusKind maps a non-2xx response from a backing service to a kind.
func StatusKind(code int) Kind {
	switch {
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return KindUnauthorized
	case code == http.StatusConflict:
		return KindAlreadyExists
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return KindInvalidRecord
	default:
		return KindTransient
	}
}

// HTTPStatus maps a kind to the status the API answers with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusForbidden
	case KindAlreadyExists:
		return http.StatusConflict
	case KindInvalidRecord:
		return http.StatusBadRequest
	case KindTransient:
		return http.StatusServiceUnavailable
	case KindResponseFormat:
		return http.StatusBadGateway
	case KindAuthenticationFailure, KindIntegrityViolation, KindMalformedEnvelope, KindInvalidKeySize:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
