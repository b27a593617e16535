package regressor

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TreeEnsemble evaluates a gradient boosted tree model saved by XGBoost in
// its JSON format (Booster.save_model("model.json")).
type TreeEnsemble struct {
	objective    string
	baseMargin   float64
	logLink      bool
	numFeature   int
	featureNames []string
	trees        []tree
}

type tree struct {
	left      []int
	right     []int
	split     []int
	condition []float32
	defLeft   []bool
}

type xgbModel struct {
	Learner struct {
		FeatureNames    []string `json:"feature_names"`
		GradientBooster struct {
			Name  string `json:"name"`
			Model struct {
				Trees []xgbTree `json:"trees"`
			} `json:"model"`
		} `json:"gradient_booster"`
		LearnerModelParam struct {
			BaseScore  string `json:"base_score"`
			NumFeature string `json:"num_feature"`
			NumClass   string `json:"num_class"`
		} `json:"learner_model_param"`
		Objective struct {
			Name string `json:"name"`
		} `json:"objective"`
	} `json:"learner"`
}

type xgbTree struct {
	LeftChildren    []int     `json:"left_children"`
	RightChildren   []int     `json:"right_children"`
	SplitIndices    []int     `json:"split_indices"`
	SplitConditions []float32 `json:"split_conditions"`
	DefaultLeft     []flag    `json:"default_left"`
}

// flag accepts both 0/1 and true/false, as XGBoost versions differ.
type flag bool

func (f *flag) UnmarshalJSON(b []byte) error {
	switch strings.TrimSpace(string(b)) {
	case "1", "true":
		*f = true
	case "0", "false":
		*f = false
	default:
		return fmt.Errorf("invalid flag %s", b)
	}
	return nil
}

var identityObjectives = map[string]bool{
	"reg:squarederror":     true,
	"reg:linear":           true,
	"reg:absoluteerror":    true,
	"reg:pseudohubererror": true,
	"reg:quantileerror":    true,
}

var logObjectives = map[string]bool{
	"reg:gamma":     true,
	"reg:tweedie":   true,
	"count:poisson": true,
}

// parseScore reads base_score, which newer releases write as "[5E-1]".
func parseScore(s string) (float64, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return 0.5, nil
	}
	return strconv.ParseFloat(s, 64)
}

// DecodeXGBoost parses and validates an XGBoost JSON model.
func DecodeXGBoost(payload []byte) (*TreeEnsemble, error) {
	var m xgbModel
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("%w: xgboost: %v", ErrUnsupportedModel, err)
	}
	l := m.Learner

	if name := l.GradientBooster.Name; name != "" && name != "gbtree" {
		return nil, fmt.Errorf("%w: booster %q", ErrUnsupportedModel, name)
	}
	if nc := strings.TrimSpace(l.LearnerModelParam.NumClass); nc != "" && nc != "0" && nc != "1" {
		return nil, fmt.Errorf("%w: %s classes, want a regressor", ErrUnsupportedModel, nc)
	}

	e := &TreeEnsemble{
		objective:    l.Objective.Name,
		featureNames: l.FeatureNames,
	}
	switch {
	case e.objective == "" || identityObjectives[e.objective]:
	case logObjectives[e.objective]:
		e.logLink = true
	default:
		return nil, fmt.Errorf("%w: objective %q", ErrUnsupportedModel, e.objective)
	}

	base, err := parseScore(l.LearnerModelParam.BaseScore)
	if err != nil {
		return nil, fmt.Errorf("%w: base_score %q", ErrUnsupportedModel, l.LearnerModelParam.BaseScore)
	}
	e.baseMargin = base
	if e.logLink {
		if base <= 0 {
			return nil, fmt.Errorf("%w: base_score %v with log link", ErrUnsupportedModel, base)
		}
		e.baseMargin = math.Log(base)
	}

	if nf := strings.TrimSpace(l.LearnerModelParam.NumFeature); nf != "" {
		if e.numFeature, err = strconv.Atoi(nf); err != nil {
			return nil, fmt.Errorf("%w: num_feature %q", ErrUnsupportedModel, nf)
		}
	}
	if e.numFeature == 0 {
		e.numFeature = len(e.featureNames)
	}

	for i, t := range l.GradientBooster.Model.Trees {
		tr, err := buildTree(t, e.numFeature)
		if err != nil {
			return nil, fmt.Errorf("%w: tree %d: %v", ErrUnsupportedModel, i, err)
		}
		e.trees = append(e.trees, tr)
	}
	if len(e.trees) == 0 {
		return nil, fmt.Errorf("%w: model has no trees", ErrUnsupportedModel)
	}
	return e, nil
}

func buildTree(t xgbTree, numFeature int) (tree, error) {
	n := len(t.LeftChildren)
	if n == 0 {
		return tree{}, fmt.Errorf("empty tree")
	}
	if len(t.RightChildren) != n || len(t.SplitIndices) != n || len(t.SplitConditions) != n {
		return tree{}, fmt.Errorf("node arrays disagree in length")
	}
	tr := tree{
		left:      t.LeftChildren,
		right:     t.RightChildren,
		split:     t.SplitIndices,
		condition: t.SplitConditions,
		defLeft:   make([]bool, n),
	}
	for i := 0; i < n && i < len(t.DefaultLeft); i++ {
		tr.defLeft[i] = bool(t.DefaultLeft[i])
	}
	for i := 0; i < n; i++ {
		if tr.left[i] == -1 {
			continue
		}
		// Children always follow their parent in XGBoost's layout, so this
		// also rules out cycles.
		if tr.left[i] <= i || tr.left[i] >= n || tr.right[i] <= i || tr.right[i] >= n {
			return tree{}, fmt.Errorf("node %d has invalid children", i)
		}
		if tr.split[i] < 0 || (numFeature > 0 && tr.split[i] >= numFeature) {
			return tree{}, fmt.Errorf("node %d splits on feature %d", i, tr.split[i])
		}
	}
	return tr, nil
}

func (t tree) leaf(x []float64) (float64, error) {
	i := 0
	for t.left[i] != -1 {
		f := t.split[i]
		if f >= len(x) {
			return 0, fmt.Errorf("%w: split on feature %d of %d", ErrFeatureMismatch, f, len(x))
		}
		v := x[f]
		switch {
		case math.IsNaN(v):
			if t.defLeft[i] {
				i = t.left[i]
			} else {
				i = t.right[i]
			}
		// XGBoost stores cuts and compares features as float32.
		case float32(v) < t.condition[i]:
			i = t.left[i]
		default:
			i = t.right[i]
		}
	}
	// Leaves store their weight in split_conditions.
	return float64(t.condition[i]), nil
}

func (e *TreeEnsemble) Kind() string { return KindXGBoost }

// FeatureNames is the training column order recorded in the artifact.
func (e *TreeEnsemble) FeatureNames() []string {
	return append([]string(nil), e.featureNames...)
}

// Predict sums the leaf weights on top of the base margin.
func (e *TreeEnsemble) Predict(features []float64) (float64, error) {
	if e.numFeature > 0 && len(features) != e.numFeature {
		return 0, fmt.Errorf("%w: got %d features, want %d", ErrFeatureMismatch, len(features), e.numFeature)
	}
	margin := e.baseMargin
	for _, t := range e.trees {
		w, err := t.leaf(features)
		if err != nil {
			return 0, err
		}
		margin += w
	}
	if e.logLink {
		return math.Exp(margin), nil
	}
	return margin, nil
}

func (e *TreeEnsemble) Info() map[string]interface{} {
	return map[string]interface{}{
		"kind":        KindXGBoost,
		"objective":   e.objective,
		"trees":       len(e.trees),
		"num_feature": e.numFeature,
	}
}
