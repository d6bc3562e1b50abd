package badges

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/motivhq/scoring-backend/pkg/enums"
	pkgerrors "github.com/motivhq/scoring-backend/pkg/errors"
)

// Metric names the criteria language can reference.
const (
	MetricLifetimeTotal = "lifetime_total"
	MetricMonthlyTotal  = "monthly_total"
	MetricProjectCount  = "project_count"
	MetricStreakDays    = "streak_days"
)

var validMetrics = map[string]bool{
	MetricLifetimeTotal: true,
	MetricMonthlyTotal:  true,
	MetricProjectCount:  true,
	MetricStreakDays:    true,
}

var validOps = map[string]bool{
	"gte": true,
	"lte": true,
	"gt":  true,
	"lt":  true,
	"eq":  true,
}

// Facts answers the questions a criteria tree can ask about a user. Lookups
// may hit storage or a collaborator, so they can fail.
type Facts interface {
	Metric(ctx context.Context, name string) (int64, error)
	EventCount(ctx context.Context, reason enums.PointReason) (int64, error)
}

// CriteriaNode is one node of a badge's criteria tree. Exactly one field is
// set: a leaf predicate or a boolean combinator.
type CriteriaNode struct {
	Metric     *MetricPredicate     `json:"metric,omitempty"`
	EventCount *EventCountPredicate `json:"event_count,omitempty"`
	All        []CriteriaNode       `json:"all,omitempty"`
	Any        []CriteriaNode       `json:"any,omitempty"`
}

// MetricPredicate compares a named scoring metric against a constant.
type MetricPredicate struct {
	Name  string `json:"name"`
	Op    string `json:"op"`
	Value int64  `json:"value"`
}

// EventCountPredicate requires a minimum number of ledger events of a reason.
type EventCountPredicate struct {
	Reason enums.PointReason `json:"reason"`
	Min    int64             `json:"min"`
}

// ParseCriteria decodes and validates a stored criteria tree.
func ParseCriteria(raw json.RawMessage) (*CriteriaNode, error) {
	if len(raw) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "criteria is empty")
	}
	var node CriteriaNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode criteria")
	}
	if err := node.validate(); err != nil {
		return nil, err
	}
	return &node, nil
}

func (n *CriteriaNode) validate() error {
	set := 0
	if n.Metric != nil {
		set++
	}
	if n.EventCount != nil {
		set++
	}
	if n.All != nil {
		set++
	}
	if n.Any != nil {
		set++
	}
	if set != 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "criteria node must set exactly one of metric, event_count, all, any")
	}

	switch {
	case n.Metric != nil:
		if !validMetrics[n.Metric.Name] {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown metric %q", n.Metric.Name))
		}
		if !validOps[n.Metric.Op] {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown operator %q", n.Metric.Op))
		}
	case n.EventCount != nil:
		if !n.EventCount.Reason.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown reason %q", n.EventCount.Reason))
		}
		if n.EventCount.Min < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "event_count min must be at least 1")
		}
	case n.All != nil:
		if len(n.All) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "all requires at least one child")
		}
		for i := range n.All {
			if err := n.All[i].validate(); err != nil {
				return err
			}
		}
	case n.Any != nil:
		if len(n.Any) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "any requires at least one child")
		}
		for i := range n.Any {
			if err := n.Any[i].validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Eval walks the tree against the supplied facts.
func (n *CriteriaNode) Eval(ctx context.Context, facts Facts) (bool, error) {
	switch {
	case n.Metric != nil:
		actual, err := facts.Metric(ctx, n.Metric.Name)
		if err != nil {
			return false, err
		}
		return compare(actual, n.Metric.Op, n.Metric.Value), nil

	case n.EventCount != nil:
		count, err := facts.EventCount(ctx, n.EventCount.Reason)
		if err != nil {
			return false, err
		}
		return count >= n.EventCount.Min, nil

	case n.All != nil:
		for i := range n.All {
			ok, err := n.All[i].Eval(ctx, facts)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case n.Any != nil:
		for i := range n.Any {
			ok, err := n.Any[i].Eval(ctx, facts)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	return false, pkgerrors.New(pkgerrors.CodeValidation, "empty criteria node")
}

func compare(actual int64, op string, value int64) bool {
	switch op {
	case "gte":
		return actual >= value
	case "lte":
		return actual <= value
	case "gt":
		return actual > value
	case "lt":
		return actual < value
	case "eq":
		return actual == value
	}
	return false
}
