package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/arnavshah/covers-scheduler-api/pkg/errs"
	"github.com/arnavshah/covers-scheduler-api/pkg/models"
)

// FeatureOrder is the column order the covers model was trained with
var FeatureOrder = []string{"Hour", "Is_Weekend", "Weather_Encoded", "Special_Event_Encoded"}

// Vector maps a feature record onto FeatureOrder
func Vector(rec models.FeatureRecord) []float64 {
	return []float64{float64(rec.Hour), float64(rec.IsWeekend), rec.WeatherEncoded, rec.SpecialEventEncoded}
}

// Predictor turns a feature vector into a covers count
type Predictor interface {
	// Predict returns the non-negative covers predicted for a vector in FeatureOrder.
	Predict(ctx context.Context, features []float64) (int, error)

	// Name returns the name of the predictor implementation.
	Name() string
}

type treeNode struct {
	NodeID         int         `json:"nodeid"`
	Split          string      `json:"split"`
	SplitCondition float64     `json:"split_condition"`
	Yes            int         `json:"yes"`
	No             int         `json:"no"`
	Missing        int         `json:"missing"`
	Leaf           *float64    `json:"leaf"`
	Children       []*treeNode `json:"children"`
}

type compiledNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	yes       int
	no        int
	missing   int
}

type tree map[int]compiledNode

// TreeEnsemble evaluates a gradient-boosted regression model exported as an
// XGBoost JSON dump. The model file is either the bare dump (an array of trees)
// or an object {"base_score": ..., "trees": [...]}.
type TreeEnsemble struct {
	baseScore float64
	trees     []tree
	roots     []int
}

type modelFile struct {
	BaseScore float64     `json:"base_score"`
	Trees     []*treeNode `json:"trees"`
}

// LoadTreeEnsemble reads a model file from disk
func LoadTreeEnsemble(path string) (*TreeEnsemble, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	return ParseTreeEnsemble(b)
}

// ParseTreeEnsemble builds an ensemble from model file contents
func ParseTreeEnsemble(data []byte) (*TreeEnsemble, error) {
	var mf modelFile
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &mf.Trees); err != nil {
			return nil, fmt.Errorf("parse model: %w", err)
		}
	} else if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if len(mf.Trees) == 0 {
		return nil, fmt.Errorf("parse model: no trees")
	}

	ens := &TreeEnsemble{baseScore: mf.BaseScore, trees: make([]tree, 0, len(mf.Trees))}
	for i, root := range mf.Trees {
		t := make(tree)
		if err := compile(root, t); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		if err := t.check(root.NodeID); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		ens.trees = append(ens.trees, t)
		ens.roots = append(ens.roots, root.NodeID)
	}
	return ens, nil
}

func compile(n *treeNode, t tree) error {
	if n == nil {
		return fmt.Errorf("nil node")
	}
	if _, dup := t[n.NodeID]; dup {
		return fmt.Errorf("duplicate node id %d", n.NodeID)
	}
	if n.Leaf != nil {
		t[n.NodeID] = compiledNode{leaf: true, value: *n.Leaf}
		return nil
	}

	feature, err := featureIndex(n.Split)
	if err != nil {
		return fmt.Errorf("node %d: %w", n.NodeID, err)
	}
	t[n.NodeID] = compiledNode{
		feature:   feature,
		threshold: n.SplitCondition,
		yes:       n.Yes,
		no:        n.No,
		missing:   n.Missing,
	}
	for _, child := range n.Children {
		if err := compile(child, t); err != nil {
			return err
		}
	}
	return nil
}

func featureIndex(split string) (int, error) {
	for i, name := range FeatureOrder {
		if split == name {
			return i, nil
		}
	}
	if strings.HasPrefix(split, "f") {
		if i, err := strconv.Atoi(split[1:]); err == nil && i >= 0 && i < len(FeatureOrder) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown split feature %q", split)
}

func (t tree) check(root int) error {
	if _, ok := t[root]; !ok {
		return fmt.Errorf("missing root %d", root)
	}
	for id, n := range t {
		if n.leaf {
			continue
		}
		for _, next := range []int{n.yes, n.no, n.missing} {
			if _, ok := t[next]; !ok {
				return fmt.Errorf("node %d points at missing node %d", id, next)
			}
		}
	}
	return nil
}

func (t tree) eval(root int, x []float64) float64 {
	n := t[root]
	for !n.leaf {
		v := x[n.feature]
		switch {
		case math.IsNaN(v):
			n = t[n.missing]
		case v < n.threshold:
			n = t[n.yes]
		default:
			n = t[n.no]
		}
	}
	return n.value
}

// Raw returns the unrounded model output
func (e *TreeEnsemble) Raw(features []float64) float64 {
	sum := e.baseScore
	for i, t := range e.trees {
		sum += t.eval(e.roots[i], features)
	}
	return sum
}

// Predict implements Predictor. The raw score is truncated toward zero and
// floored at zero covers.
func (e *TreeEnsemble) Predict(ctx context.Context, features []float64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(features) != len(FeatureOrder) {
		return 0, errs.Malformed("expected %d features, got %d", len(FeatureOrder), len(features))
	}
	covers := int(math.Trunc(e.Raw(features)))
	if covers < 0 {
		covers = 0
	}
	return covers, nil
}

// Name implements Predictor
func (e *TreeEnsemble) Name() string {
	return "xgboost-json"
}
