package positions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"CDPShield/internal/model"
)

// State is the on-disk form of the position store.
type State struct {
	Positions []model.CDPPosition `json:"positions"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// LoadState reads the position state from a JSON file. Returns an empty state if the file doesn't exist.
func LoadState(filePath string) (*State, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", filePath, err)
	}
	return &state, nil
}

// SaveState writes the position state to a JSON file, replacing it atomically.
func SaveState(filePath string, state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filePath)
}
