package mlmodel

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

const (
	kindScale       = "scale"
	kindOneHot      = "onehot"
	kindPassthrough = "passthrough"
)

// preprocessSpec mirrors a fitted column transformer: each step consumes named columns and
// appends its outputs in order. Columns not named by any step are dropped.
type preprocessSpec struct {
	Transformers []transformerSpec `json:"transformers"`
}

type transformerSpec struct {
	Kind       string    `json:"kind"`
	Columns    []string  `json:"columns"`
	Mean       []float64 `json:"mean"`
	Scale      []float64 `json:"scale"`
	Categories [][]any   `json:"categories"`
}

type columnTransformer struct {
	steps []transformerSpec
	// categories[i][j] is the rendered category list for one-hot step i, column j
	categories map[int][][]string
	width      int
}

func newColumnTransformer(layout preprocessSpec) (*columnTransformer, error) {
	if len(layout.Transformers) == 0 {
		return nil, fmt.Errorf("no transformers defined")
	}
	ct := &columnTransformer{steps: layout.Transformers, categories: map[int][][]string{}}
	for i, step := range layout.Transformers {
		if len(step.Columns) == 0 {
			return nil, fmt.Errorf("transformer %d has no columns", i)
		}
		switch step.Kind {
		case kindScale:
			if len(step.Mean) != len(step.Columns) || len(step.Scale) != len(step.Columns) {
				return nil, fmt.Errorf("scale transformer %d: mean/scale length mismatch", i)
			}
			ct.width += len(step.Columns)
		case kindOneHot:
			if len(step.Categories) != len(step.Columns) {
				return nil, fmt.Errorf("onehot transformer %d: categories length mismatch", i)
			}
			rendered := make([][]string, len(step.Categories))
			for j, cats := range step.Categories {
				rendered[j] = make([]string, len(cats))
				for k, c := range cats {
					rendered[j][k] = categoryString(c)
				}
				ct.width += len(cats)
			}
			ct.categories[i] = rendered
		case kindPassthrough:
			ct.width += len(step.Columns)
		default:
			return nil, fmt.Errorf("transformer %d: unknown kind %q", i, step.Kind)
		}
	}
	return ct, nil
}

func (ct *columnTransformer) Width() int { return ct.width }

func (ct *columnTransformer) Transform(records []Record) ([][]float64, error) {
	out := make([][]float64, len(records))
	for r, rec := range records {
		row := make([]float64, 0, ct.width)
		for i, step := range ct.steps {
			for j, col := range step.Columns {
				value, ok := rec.Value(col)
				if !ok {
					return nil, fmt.Errorf("row %d: missing column %q", r, col)
				}
				switch step.Kind {
				case kindScale:
					x, err := numeric(value)
					if err != nil {
						return nil, fmt.Errorf("row %d column %q: %w", r, col, err)
					}
					scale := step.Scale[j]
					if scale == 0 {
						scale = 1
					}
					row = append(row, (x-step.Mean[j])/scale)
				case kindPassthrough:
					x, err := numeric(value)
					if err != nil {
						return nil, fmt.Errorf("row %d column %q: %w", r, col, err)
					}
					row = append(row, x)
				case kindOneHot:
					// unknown categories encode as all zeros
					key := categoryString(value)
					for _, cat := range ct.categories[i][j] {
						if cat == key {
							row = append(row, 1)
						} else {
							row = append(row, 0)
						}
					}
				}
			}
		}
		out[r] = row
	}
	return out, nil
}

func numeric(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case nil:
		return math.NaN(), nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("not numeric: %q", x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported value type %T", v)
	}
}

func categoryString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case time.Time:
		return x.Format("2006-01-02")
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}
