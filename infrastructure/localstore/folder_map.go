// Package localstore reads the JSON input artifacts (folder map,
// recipient cache) and writes the final results file from spec §6. None
// of it drives resume — that is HistoryStore's job — these are the
// one-shot inputs and the one-shot summary a run produces.
package localstore

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/foldershare/sharer/domain/model"
)

// LoadFolderMap reads a JSON object mapping folder display name to folder
// id and normalizes every key the same way Matcher expects.
func LoadFolderMap(path string) (model.FolderMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading folder map %s: %w", path, err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing folder map %s: %w", path, err)
	}

	folders := make(model.FolderMap, len(raw))
	for name, id := range raw {
		folders[model.Normalize(name)] = id
	}
	return folders, nil
}
