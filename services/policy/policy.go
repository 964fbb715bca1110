package policy

import (
	"fmt"

	"ecopoints-ledger/pkg/celengine"
	"ecopoints-ledger/pkg/config"

	"github.com/google/cel-go/cel"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const PointsPerLevel = 100

var Module = fx.Module("policy",
	fx.Provide(FromConfig),
)

// DefaultBadges is used when ECOPOINTS.BADGES is empty.
var DefaultBadges = []config.BadgeRule{
	{Name: "Welcome", Description: "Joined the EcoPoints community", Expr: `activity_type == "registration"`},
	{Name: "Eco Explorer", Description: "Reached 50 EcoPoints", Expr: `total_points >= 50`},
	{Name: "Eco Warrior", Description: "Reached 200 EcoPoints", Expr: `total_points >= 200`},
	{Name: "Eco Champion", Description: "Reached 500 EcoPoints", Expr: `total_points >= 500`},
	{Name: "Eco Master", Description: "Reached 1000 EcoPoints", Expr: `total_points >= 1000`},
}

type Input struct {
	TotalPoints  int64
	ActivityType string
	// Held holds the names of badges the user already owns.
	Held map[string]bool
}

type Badge struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Outcome struct {
	Level     int     `json:"level"`
	NewBadges []Badge `json:"new_badges"`
}

type rule struct {
	badge Badge
	pred  *celengine.Predicate
}

// Policy is immutable after construction and safe for concurrent use.
type Policy struct {
	rules []rule
}

func FromConfig(cfg *config.Config) (*Policy, error) {
	table := cfg.EcoPoints.Badges
	if len(table) == 0 {
		table = DefaultBadges
	}
	p, err := New(table)
	if err != nil {
		return nil, err
	}
	zap.L().Info("[Policy] badge table loaded", zap.Int("rules", len(p.rules)))
	return p, nil
}

func New(table []config.BadgeRule) (*Policy, error) {
	env, err := celengine.NewEnv(celengine.Variables{
		"total_points":  cel.IntType,
		"activity_type": cel.StringType,
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(table))
	rules := make([]rule, 0, len(table))
	for _, r := range table {
		if r.Name == "" {
			return nil, fmt.Errorf("badge rule with empty name")
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("duplicate badge rule %q", r.Name)
		}
		seen[r.Name] = true

		pred, err := celengine.Compile(env, r.Expr)
		if err != nil {
			return nil, fmt.Errorf("badge %q: %w", r.Name, err)
		}
		rules = append(rules, rule{badge: Badge{Name: r.Name, Description: r.Description}, pred: pred})
	}
	return &Policy{rules: rules}, nil
}

func Level(total int64) int {
	if total < 0 {
		total = 0
	}
	return int(total/PointsPerLevel) + 1
}

// Evaluate returns the level for in.TotalPoints and the badges whose rule
// matches and that are not in in.Held, in table order.
func (p *Policy) Evaluate(in Input) (Outcome, error) {
	out := Outcome{Level: Level(in.TotalPoints)}
	attrs := map[string]any{
		"total_points":  in.TotalPoints,
		"activity_type": in.ActivityType,
	}
	for _, r := range p.rules {
		if in.Held[r.badge.Name] {
			continue
		}
		ok, err := r.pred.Eval(attrs)
		if err != nil {
			return Outcome{}, fmt.Errorf("badge %q: %w", r.badge.Name, err)
		}
		if ok {
			out.NewBadges = append(out.NewBadges, r.badge)
		}
	}
	return out, nil
}

func (p *Policy) Badges() []Badge {
	out := make([]Badge, len(p.rules))
	for i, r := range p.rules {
		out[i] = r.badge
	}
	return out
}
