package googledrive

import (
	"errors"

	"google.golang.org/api/googleapi"

	"github.com/foldershare/sharer/domain/model"
	"github.com/foldershare/sharer/domain/port"
)

// classifyDriveError maps a googleapi error into the typed ErrorCode
// vocabulary from spec §4.2, so the Engine never inspects error strings.
func classifyDriveError(err error) error {
	return &port.RemoteError{Code: errorCodeFor(err), Message: err.Error()}
}

func classifySheetsError(err error) error {
	return &port.RemoteError{Code: errorCodeFor(err), Message: err.Error()}
}

func errorCodeFor(err error) model.ErrorCode {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return model.ErrorUnknown
	}

	switch apiErr.Code {
	case 403:
		for _, e := range apiErr.Errors {
			if e.Reason == "rateLimitExceeded" || e.Reason == "userRateLimitExceeded" {
				return model.ErrorRateLimited
			}
		}
		return model.ErrorPermissionDenied
	case 404:
		return model.ErrorNotFound
	case 429:
		return model.ErrorRateLimited
	case 400:
		for _, e := range apiErr.Errors {
			if e.Reason == "invalid" || e.Reason == "invalidSharingRequest" {
				return model.ErrorEmailInvalid
			}
		}
		return model.ErrorUnknown
	default:
		return model.ErrorUnknown
	}
}
