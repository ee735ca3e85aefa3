package model

import "time"

// IssueType classifies why a recipient did not receive a successful grant.
type IssueType string

const (
	IssueNone     IssueType = ""
	IssueNoFolder IssueType = "NO_FOLDER"
	IssueGrant    IssueType = "GRANT_FAILED"
)

// ShareResult is produced by a worker (or, for pre-dispatch filtering, by
// the Engine itself) and consumed by the coordinator. The coordinator
// stamps Timestamp on receipt; everything else is set by the producer.
type ShareResult struct {
	Recipient    Recipient
	FolderID     string
	Success      bool
	PermissionID string
	Error        string
	ErrorCode    ErrorCode
	Issue        IssueType
	Timestamp    time.Time
}
