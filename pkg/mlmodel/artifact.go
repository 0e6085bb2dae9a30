// Package mlmodel loads the frozen forecast correction artifact: training aggregate maps,
// a preprocessing transform and a gradient-boosted tree ensemble exported as XGBoost JSON.
package mlmodel

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	FeatureMapsFile = "feature_maps.json"
	MetaFile        = "meta.json"
	PreprocessFile  = "preprocess.json"
	ModelFile       = "xgb_model.json"
)

// Record is one raw feature row addressed by column name. Values are float64, string or
// time.Time.
type Record interface {
	Value(column string) (any, bool)
}

// Transformer turns raw records into the numeric matrix the regressor was trained on.
type Transformer interface {
	Transform(records []Record) ([][]float64, error)
	Width() int
}

// Regressor predicts one value per feature vector.
type Regressor interface {
	Predict(features [][]float64) ([]float64, error)
}

// FeatureMaps are the training-time aggregates used for cold-start defaults and encodings.
type FeatureMaps struct {
	GlobalMean   float64                       `json:"global_mean"`
	KeyMeanMap   map[string]float64            `json:"key_mean_map"`
	KeyMonthMap  map[string]float64            `json:"key_month_map"`
	MonthGlobMap map[string]float64            `json:"month_glob_map"`
	CatMeanMaps  map[string]map[string]float64 `json:"cat_mean_maps"`
	Columns      []string                      `json:"Xtr_raw_columns"`
}

// Meta describes how the artifact was trained.
type Meta struct {
	DateCol   string   `json:"date_col"`
	KeyCol    string   `json:"key_col"`
	TargetCol string   `json:"target_col"`
	Gamma     *float64 `json:"gamma"`
	Version   string   `json:"version"`
}

// Artifact bundles everything needed to correct a baseline. It is immutable after Load.
type Artifact struct {
	Maps        FeatureMaps
	Meta        Meta
	Transformer Transformer
	Regressor   Regressor
}

// Load reads the four artifact files from dir.
func Load(dir string) (*Artifact, error) {
	var maps FeatureMaps
	if err := readJSON(filepath.Join(dir, FeatureMapsFile), &maps); err != nil {
		return nil, err
	}
	if len(maps.Columns) == 0 {
		return nil, fmt.Errorf("%s: Xtr_raw_columns is empty", FeatureMapsFile)
	}

	var meta Meta
	if err := readJSON(filepath.Join(dir, MetaFile), &meta); err != nil {
		return nil, err
	}

	var layout preprocessSpec
	if err := readJSON(filepath.Join(dir, PreprocessFile), &layout); err != nil {
		return nil, err
	}
	transformer, err := newColumnTransformer(layout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", PreprocessFile, err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, ModelFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ModelFile, err)
	}
	ensemble, err := ParseXGBoostJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ModelFile, err)
	}
	if ensemble.NumFeature > 0 && ensemble.NumFeature != transformer.Width() {
		return nil, fmt.Errorf("model expects %d features, preprocess produces %d", ensemble.NumFeature, transformer.Width())
	}

	return &Artifact{
		Maps:        maps,
		Meta:        meta,
		Transformer: transformer,
		Regressor:   ensemble,
	}, nil
}

// Gamma is the residual scale, 1.0 when the artifact does not set one.
func (a *Artifact) Gamma() float64 {
	if a == nil || a.Meta.Gamma == nil {
		return 1.0
	}
	return *a.Meta.Gamma
}

// Predict runs the transform and the regressor over records.
func (a *Artifact) Predict(records []Record) ([]float64, error) {
	if len(records) == 0 {
		return []float64{}, nil
	}
	features, err := a.Transformer.Transform(records)
	if err != nil {
		return nil, fmt.Errorf("transform features: %w", err)
	}
	return a.Regressor.Predict(features)
}

func readJSON(path string, dst any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
