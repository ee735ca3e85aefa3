package control

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// StartRunRequest is the body of POST /runs: the two input artifacts from
// spec §6. Paths are validated for presence only — LoadFolderMap/
// LoadRecipients report any malformed content.
type StartRunRequest struct {
	FolderMapPath      string `json:"folderMapPath" validate:"required"`
	RecipientCachePath string `json:"recipientCachePath" validate:"required"`
}

func (r StartRunRequest) Validate() error {
	return validate.Struct(r)
}

// StartRunResponse is returned immediately; the run continues in the
// background, polled via GET /runs/:id or streamed via GET /ws/runs/:id.
type StartRunResponse struct {
	RunID string `json:"runId"`
}

// RunStatusResponse reports the last-known progress for a run.
type RunStatusResponse struct {
	RunID     string `json:"runId"`
	Status    string `json:"status"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Successful int   `json:"successful"`
	Failed    int    `json:"failed"`
	Errors    int    `json:"errors"`
	Error     string `json:"error,omitempty"`
}
