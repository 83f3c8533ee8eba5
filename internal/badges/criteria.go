// Package badges evaluates declarative badge criteria against user
// attributes and orchestrates idempotent awards.
package badges

import (
	"context"
	"regexp"
	"strconv"

	"github.com/marketpulse/listing-insights/internal/models"
	"go.uber.org/zap"
)

// AttributeSource resolves subject attributes lazily, one per predicate.
// An error from any method means the underlying data source is
// unavailable; the predicate then fails closed.
type AttributeSource interface {
	Count(ctx context.Context, userID string, field models.CriteriaField) (int64, error)
	Flag(ctx context.Context, userID string, field models.CriteriaField) (bool, error)
	Rating(ctx context.Context, userID string) (float64, error)
	NumericID(ctx context.Context, userID string) (int64, error)
}

// Evaluator checks criteria documents. It is pure given an attribute
// source: same subject and criteria always yield the same verdict.
type Evaluator struct {
	source     AttributeSource
	collectAll bool
	logger     *zap.Logger
}

// NewEvaluator constructs an Evaluator. collectAll disables the default
// short-circuit so every failing predicate is reported.
func NewEvaluator(source AttributeSource, collectAll bool, logger *zap.Logger) *Evaluator {
	return &Evaluator{source: source, collectAll: collectAll, logger: logger}
}

var userIDRulePattern = regexp.MustCompile(`^(<=|>=|==|<|>)\s*(\d+)$`)

// Evaluate ANDs every predicate in the criteria document. An empty
// document never matches; a badge cannot be earned by omission. failed
// names the predicates that did not hold (all of them in collect-all
// mode, the first otherwise).
func (e *Evaluator) Evaluate(ctx context.Context, userID string, c models.Criteria) (eligible bool, failed []string) {
	if c.Empty() {
		return false, []string{"empty_criteria"}
	}

	eligible = true
	fail := func(name string) bool {
		eligible = false
		failed = append(failed, name)
		return !e.collectAll // short-circuit unless collecting
	}

	for field, min := range c.MinCounts {
		n, err := e.source.Count(ctx, userID, field)
		if err != nil {
			e.logger.Warn("attribute source unavailable",
				zap.String("field", string(field)), zap.Error(err))
			if fail(string(field)) {
				return false, failed
			}
			continue
		}
		if n < min {
			if fail(string(field)) {
				return false, failed
			}
		}
	}

	for field, want := range c.Flags {
		v, err := e.source.Flag(ctx, userID, field)
		if err != nil {
			e.logger.Warn("attribute source unavailable",
				zap.String("field", string(field)), zap.Error(err))
			if fail(string(field)) {
				return false, failed
			}
			continue
		}
		if v != want {
			if fail(string(field)) {
				return false, failed
			}
		}
	}

	if c.MinRating > 0 {
		r, err := e.source.Rating(ctx, userID)
		if err != nil || r < c.MinRating {
			if err != nil {
				e.logger.Warn("attribute source unavailable",
					zap.String("field", string(models.FieldAvgRating)), zap.Error(err))
			}
			if fail(string(models.FieldAvgRating)) {
				return false, failed
			}
		}
	}

	if c.UserIDRule != "" {
		if !e.checkUserIDRule(ctx, userID, c.UserIDRule) {
			if fail(string(models.FieldUserID)) {
				return false, failed
			}
		}
	}

	return eligible, failed
}

// checkUserIDRule applies the "<op> <integer>" constraint on the numeric
// user id. Malformed rules apply no constraint; this leniency is a known
// quirk, logged rather than rejected.
func (e *Evaluator) checkUserIDRule(ctx context.Context, userID, rule string) bool {
	m := userIDRulePattern.FindStringSubmatch(rule)
	if m == nil {
		e.logger.Warn("malformed user_id rule, skipping constraint",
			zap.String("rule", rule))
		return true
	}
	bound, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		e.logger.Warn("malformed user_id rule, skipping constraint",
			zap.String("rule", rule))
		return true
	}

	id, err := e.source.NumericID(ctx, userID)
	if err != nil {
		e.logger.Warn("attribute source unavailable",
			zap.String("field", string(models.FieldUserID)), zap.Error(err))
		return false
	}

	switch m[1] {
	case "<":
		return id < bound
	case ">":
		return id > bound
	case "<=":
		return id <= bound
	case ">=":
		return id >= bound
	case "==":
		return id == bound
	}
	return true
}
