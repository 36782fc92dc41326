// Package classifier evaluates the powdery-mildew risk model: an ensemble of
// decision trees over seven daily weather measurements, combined by
// majority vote.
package classifier

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Feature positions in the input vector.
const (
	TempMax = iota
	TempMin
	TempMean
	HumidityMean
	Precipitation
	WindSpeed
	SunHours

	NumFeatures
)

var FeatureNames = [NumFeatures]string{
	"t_max", "t_min", "t_mean", "rh_mean", "precipitation", "wind_speed", "sun_hours",
}

type Class int

const (
	Low Class = iota
	Medium
	High
)

func (c Class) String() string {
	switch c {
	case Low:
		return "LOW"
	case Medium:
		return "MEDIUM"
	case High:
		return "HIGH"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// Node is a split (Leaf nil) or a leaf. A split sends x[Feature] <= Threshold
// to Left and the rest to Right.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Leaf      *Class  `json:"leaf,omitempty"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

type Model struct {
	Name  string `json:"name"`
	Trees []Tree `json:"trees"`
}

//go:embed default_model.json
var defaultModel []byte

// Load reads a model file; an empty path loads the bundled model.
func Load(path string) (*Model, error) {
	raw := defaultModel
	if path != "" {
		var err error
		if raw, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read risk model: %w", err)
		}
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode risk model: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// validate rejects models that could loop or index out of range. Children
// must come after their parent, which rules out cycles.
func (m *Model) validate() error {
	if len(m.Trees) == 0 {
		return errors.New("risk model has no trees")
	}
	for ti, t := range m.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.Leaf != nil {
				if *n.Leaf < Low || *n.Leaf > High {
					return fmt.Errorf("tree %d node %d: leaf class %d out of range", ti, ni, *n.Leaf)
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= NumFeatures {
				return fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
			for _, child := range []int{n.Left, n.Right} {
				if child <= ni || child >= len(t.Nodes) {
					return fmt.Errorf("tree %d node %d: bad child %d", ti, ni, child)
				}
			}
		}
	}
	return nil
}

func (t Tree) predict(x []float64) Class {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf != nil {
			return *n.Leaf
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Classify returns the majority class of the ensemble. Ties go to the
// higher risk class.
func (m *Model) Classify(features []float64) (Class, error) {
	if len(features) != NumFeatures {
		return Low, fmt.Errorf("expected %d features, got %d", NumFeatures, len(features))
	}
	var votes [High + 1]int
	for _, t := range m.Trees {
		votes[t.predict(features)]++
	}
	best := Low
	for c := Low; c <= High; c++ {
		if votes[c] >= votes[best] {
			best = c
		}
	}
	return best, nil
}
