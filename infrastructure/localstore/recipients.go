package localstore

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/foldershare/sharer/domain/model"
)

// recipientCacheFile mirrors the on-disk recipient-cache shape from §6:
// a timestamped snapshot of every row in the remote tabular document.
type recipientCacheFile struct {
	Timestamp         time.Time            `json:"timestamp"`
	TotalParticipants int                  `json:"totalParticipants"`
	Participants      []recipientCacheItem `json:"participants"`
}

type recipientCacheItem struct {
	Row      int    `json:"row"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	IsShared bool   `json:"isShared"`
	LastLog  string `json:"lastLog"`
}

// LoadRecipients reads the recipient-cache file and converts it into the
// domain's Recipient slice.
func LoadRecipients(path string) ([]model.Recipient, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading recipient cache %s: %w", path, err)
	}

	var cache recipientCacheFile
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("parsing recipient cache %s: %w", path, err)
	}

	recipients := make([]model.Recipient, 0, len(cache.Participants))
	for _, p := range cache.Participants {
		recipients = append(recipients, model.Recipient{
			Row:      p.Row,
			Email:    p.Email,
			Name:     p.Name,
			IsShared: p.IsShared,
			LastLog:  p.LastLog,
		})
	}
	return recipients, nil
}
