package services

import (
	"sort"

	"github.com/benmeehan/collar-sync/internal/models"
)

// ReduceToLatest collapses records to one position per device. A record
// replaces the held one only when its observed_at is strictly later, so on
// equal timestamps the first record in iteration order wins.
func ReduceToLatest(records []models.PositionRecord) map[string]models.Position {
	latest := make(map[string]models.Position)
	for _, record := range records {
		current, ok := latest[record.DeviceID]
		if !ok || record.ObservedAt.After(current.ObservedAt) {
			latest[record.DeviceID] = record.Position()
		}
	}
	return latest
}

// SortedLatest returns the reduced positions ordered by device id.
func SortedLatest(latest map[string]models.Position) []models.Position {
	positions := make([]models.Position, 0, len(latest))
	for _, position := range latest {
		positions = append(positions, position)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].DeviceID < positions[j].DeviceID
	})
	return positions
}
