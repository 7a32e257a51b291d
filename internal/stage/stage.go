// Package stage models the motorized sample stage: named XY positions loaded
// from a Micro-Manager position-list file and the movement collaborator the
// scheduler drives.
package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
)

// Position is one named stage coordinate in micrometers.
type Position struct {
	Name string
	X    float64
	Y    float64
}

// Stage moves the sample to a position. Implementations wrap the real stage
// driver; the core only cares about iteration order and success/failure.
type Stage interface {
	MoveTo(ctx context.Context, p Position) error
}

// Micro-Manager position-list JSON shape. Only the fields the acquisition
// core needs are decoded.
type positionListFile struct {
	Map struct {
		StagePositions struct {
			Array []struct {
				Label struct {
					Scalar string `json:"scalar"`
				} `json:"Label"`
				DevicePositions struct {
					Array []struct {
						PositionUm struct {
							Array []float64 `json:"array"`
						} `json:"Position_um"`
					} `json:"array"`
				} `json:"DevicePositions"`
			} `json:"array"`
		} `json:"StagePositions"`
	} `json:"map"`
}

// LoadPositionList reads a Micro-Manager position-list file and returns the
// ordered positions it names.
func LoadPositionList(path string) ([]Position, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read position list: %w", err)
	}
	var file positionListFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse position list %s: %w", path, err)
	}

	var positions []Position
	for _, sp := range file.Map.StagePositions.Array {
		for _, dp := range sp.DevicePositions.Array {
			xy := dp.PositionUm.Array
			if len(xy) < 2 {
				return nil, fmt.Errorf("position %q has %d coordinates, want 2", sp.Label.Scalar, len(xy))
			}
			positions = append(positions, Position{
				Name: sp.Label.Scalar,
				X:    xy[0],
				Y:    xy[1],
			})
		}
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("position list %s contains no stage positions", path)
	}
	return positions, nil
}

// SeededShuffle returns a shuffle function with its own seeded source, so
// randomized position order is reproducible in tests and survey reruns.
func SeededShuffle(seed int64) func([]Position) {
	rng := rand.New(rand.NewSource(seed))
	return func(ps []Position) {
		rng.Shuffle(len(ps), func(i, j int) {
			ps[i], ps[j] = ps[j], ps[i]
		})
	}
}

// SimStage accepts every move after an optional fixed delay. Used for the
// testing profile and for running without stage hardware.
type SimStage struct {
	Moves []Position
}

// MoveTo records the requested position and succeeds.
func (s *SimStage) MoveTo(_ context.Context, p Position) error {
	s.Moves = append(s.Moves, p)
	return nil
}
