package mlmodel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// identity-link objectives: the summed margin is the prediction
var supportedObjectives = map[string]bool{
	"":                     true,
	"reg:squarederror":     true,
	"reg:linear":           true,
	"reg:absoluteerror":    true,
	"reg:pseudohubererror": true,
	"reg:quantileerror":    true,
}

// TreeEnsemble evaluates a gradient-boosted regression forest.
type TreeEnsemble struct {
	BaseScore  float64
	NumFeature int
	Trees      []Tree
}

// Tree is one regression tree in XGBoost's flat array layout.
type Tree struct {
	Left       []int
	Right      []int
	Split      []int
	Conditions []float64
	// DefaultLeft routes missing (NaN) values.
	DefaultLeft []bool
}

type xgbDocument struct {
	Learner struct {
		Param struct {
			BaseScore  flexFloat `json:"base_score"`
			NumFeature flexInt   `json:"num_feature"`
		} `json:"learner_model_param"`
		Booster struct {
			Name  string `json:"name"`
			Model struct {
				Trees []struct {
					LeftChildren    []int     `json:"left_children"`
					RightChildren   []int     `json:"right_children"`
					SplitIndices    []int     `json:"split_indices"`
					SplitConditions []float64 `json:"split_conditions"`
					DefaultLeft     flexBools `json:"default_left"`
				} `json:"trees"`
			} `json:"model"`
		} `json:"gradient_booster"`
		Objective struct {
			Name string `json:"name"`
		} `json:"objective"`
	} `json:"learner"`
}

// ParseXGBoostJSON reads a model saved with XGBoost's save_model("*.json").
func ParseXGBoostJSON(raw []byte) (*TreeEnsemble, error) {
	var doc xgbDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode xgboost model: %w", err)
	}
	if name := doc.Learner.Booster.Name; name != "" && name != "gbtree" {
		return nil, fmt.Errorf("unsupported booster %q", name)
	}
	if !supportedObjectives[doc.Learner.Objective.Name] {
		return nil, fmt.Errorf("unsupported objective %q", doc.Learner.Objective.Name)
	}

	ens := &TreeEnsemble{
		BaseScore:  float64(doc.Learner.Param.BaseScore),
		NumFeature: int(doc.Learner.Param.NumFeature),
	}
	for i, t := range doc.Learner.Booster.Model.Trees {
		n := len(t.LeftChildren)
		if n == 0 || len(t.RightChildren) != n || len(t.SplitIndices) != n || len(t.SplitConditions) != n {
			return nil, fmt.Errorf("tree %d: inconsistent node arrays", i)
		}
		defaults := []bool(t.DefaultLeft)
		if len(defaults) == 0 {
			defaults = make([]bool, n)
		}
		if len(defaults) != n {
			return nil, fmt.Errorf("tree %d: default_left has %d entries for %d nodes", i, len(defaults), n)
		}
		ens.Trees = append(ens.Trees, Tree{
			Left:        t.LeftChildren,
			Right:       t.RightChildren,
			Split:       t.SplitIndices,
			Conditions:  t.SplitConditions,
			DefaultLeft: defaults,
		})
	}
	return ens, nil
}

// Predict sums the base score and every tree's leaf for each row.
func (e *TreeEnsemble) Predict(features [][]float64) ([]float64, error) {
	out := make([]float64, len(features))
	for r, row := range features {
		sum := e.BaseScore
		for i := range e.Trees {
			leaf, err := e.Trees[i].leaf(row)
			if err != nil {
				return nil, fmt.Errorf("row %d tree %d: %w", r, i, err)
			}
			sum += leaf
		}
		out[r] = sum
	}
	return out, nil
}

func (t *Tree) leaf(row []float64) (float64, error) {
	node := 0
	for steps := 0; steps <= len(t.Left); steps++ {
		if t.Left[node] == -1 {
			return t.Conditions[node], nil
		}
		idx := t.Split[node]
		if idx < 0 || idx >= len(row) {
			return 0, fmt.Errorf("split feature %d outside row of %d", idx, len(row))
		}
		x := row[idx]
		switch {
		case math.IsNaN(x):
			if t.DefaultLeft[node] {
				node = t.Left[node]
			} else {
				node = t.Right[node]
			}
		case x < t.Conditions[node]:
			node = t.Left[node]
		default:
			node = t.Right[node]
		}
		if node < 0 || node >= len(t.Left) {
			return 0, fmt.Errorf("child index %d out of range", node)
		}
	}
	return 0, fmt.Errorf("tree does not terminate")
}

// flexFloat accepts 0.5, "5E-1" and "[5E-1]".
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	s = strings.Trim(s, "[]")
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse float %s: %w", b, err)
	}
	*f = flexFloat(v)
	return nil
}

// flexInt accepts 3 and "3".
type flexInt int

func (i *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*i = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("parse int %s: %w", b, err)
	}
	*i = flexInt(v)
	return nil
}

// flexBools accepts [0,1] and [false,true].
type flexBools []bool

func (f *flexBools) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*f = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make([]bool, len(raw))
	for i, r := range raw {
		switch strings.TrimSpace(string(r)) {
		case "true", "1":
			out[i] = true
		case "false", "0":
			out[i] = false
		default:
			return fmt.Errorf("default_left[%d]: unexpected value %s", i, r)
		}
	}
	*f = out
	return nil
}
