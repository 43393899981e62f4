package tracker

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"StagePlanner/internal/model"
)

// LoadState reads the tracker state from a JSON file. Returns an empty state if the file doesn't exist.
func LoadState(filePath string) (*model.TrackerState, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &model.TrackerState{Logs: map[string]*model.ExecutionLog{}}, nil
		}
		return nil, err
	}
	var state model.TrackerState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.Logs == nil {
		state.Logs = map[string]*model.ExecutionLog{}
	}
	for symbol, execLog := range state.Logs {
		if execLog == nil {
			delete(state.Logs, symbol)
			continue
		}
		if execLog.Steps == nil {
			execLog.Steps = map[int]*model.StepExecution{}
		}
	}
	return &state, nil
}

// SaveState writes the tracker state to a JSON file, creating its directory if needed.
func SaveState(filePath string, state *model.TrackerState) error {
	state.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filePath)
}
