package port

import (
	"context"

	"github.com/foldershare/sharer/domain/model"
)

// RemoteClient is the capability over the external document+storage
// service. It is stateless beyond an attached credential, and it never
// retries internally — retry policy belongs to the Engine.
type RemoteClient interface {
	// GrantRead grants read capability on folderID to email without
	// triggering a user-visible notification. Errors carry an ErrorCode.
	GrantRead(ctx context.Context, folderID, email string) (permissionID string, err error)

	// ListSheets lists the sheets (title, id) in the given document.
	ListSheets(ctx context.Context, documentID string) ([]SheetInfo, error)

	// BatchWriteCells writes all updates to the given sheet atomically from
	// the Engine's perspective: either every update lands, or the call
	// fails and the Engine retries on a later run.
	BatchWriteCells(ctx context.Context, documentID, sheetTitle string, updates []model.CellUpdate) error
}

// SheetInfo describes one sheet (tab) within the remote document.
type SheetInfo struct {
	Title   string
	SheetID int64
}

// RemoteError is the error type RemoteClient implementations return so
// callers can branch on Code without string matching.
type RemoteError struct {
	Code    model.ErrorCode
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// CodeOf extracts the ErrorCode from err, defaulting to ErrorUnknown when
// err is not a *RemoteError.
func CodeOf(err error) model.ErrorCode {
	if err == nil {
		return model.ErrorNone
	}
	if re, ok := err.(*RemoteError); ok {
		return re.Code
	}
	return model.ErrorUnknown
}
