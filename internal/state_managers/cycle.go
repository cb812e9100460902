package state_managers

import (
	"errors"
	"os"
	"sync"

	"github.com/benmeehan/collar-sync/internal/models"
	"github.com/benmeehan/collar-sync/pkg/file"
	"github.com/rs/zerolog"
)

// CycleStateManager persists cumulative cycle counters and the last report.
type CycleStateManager struct {
	filePath string
	fileOps  file.FileOperations
	logger   zerolog.Logger
	mu       sync.Mutex
}

// NewCycleStateManager initializes a new CycleStateManager
func NewCycleStateManager(filePath string, fileOps file.FileOperations, logger zerolog.Logger) *CycleStateManager {
	return &CycleStateManager{
		filePath: filePath,
		fileOps:  fileOps,
		logger:   logger,
	}
}

// LoadState reads the persisted state. A missing file yields an empty state.
func (sm *CycleStateManager) LoadState() (models.CycleState, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var state models.CycleState
	if err := sm.fileOps.ReadJsonFile(sm.filePath, &state); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.CycleState{}, nil
		}
		sm.logger.Error().Err(err).Str("path", sm.filePath).Msg("Failed to read state file")
		return models.CycleState{}, err
	}
	return state, nil
}

// SaveState writes state to the file
func (sm *CycleStateManager) SaveState(state models.CycleState) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if err := sm.fileOps.WriteJsonFile(sm.filePath, state); err != nil {
		sm.logger.Error().Err(err).Str("path", sm.filePath).Msg("Failed to write state file")
		return err
	}
	return nil
}

// OnCycle saves the counters after every cycle.
func (sm *CycleStateManager) OnCycle(report models.CycleReport, stats models.CycleStats) {
	_ = sm.SaveState(models.CycleState{Stats: stats, LastReport: &report})
}
