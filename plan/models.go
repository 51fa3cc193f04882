// Package plan resolves subscription tiers to monthly credit allowances.
package plan

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xraph/credits/types"
)

type Tier string

const (
	TierMonthly Tier = "monthly"
	TierAnnual  Tier = "annual"
)

// Normalize lower-cases and trims a tier name.
func (t Tier) Normalize() Tier {
	return Tier(strings.ToLower(strings.TrimSpace(string(t))))
}

func (t Tier) String() string { return string(t) }

// DefaultAllowances is the stock allowance table.
var DefaultAllowances = map[Tier]types.Credits{
	TierMonthly: 1000,
	TierAnnual:  1250,
}

var ErrInvalidPolicy = errors.New("plan: invalid allowance policy")

// Policy maps a closed set of tiers to a monthly allowance. A Policy is
// immutable after construction and safe for concurrent use.
type Policy struct {
	allowances  map[Tier]types.Credits
	defaultTier Tier
}

// NewPolicy validates an allowance table. Unknown tiers resolve to
// defaultTier, which must be present in the table.
func NewPolicy(allowances map[Tier]types.Credits, defaultTier Tier) (*Policy, error) {
	if len(allowances) == 0 {
		return nil, fmt.Errorf("%w: empty allowance table", ErrInvalidPolicy)
	}
	table := make(map[Tier]types.Credits, len(allowances))
	for tier, amount := range allowances {
		tier = tier.Normalize()
		if tier == "" {
			return nil, fmt.Errorf("%w: empty tier name", ErrInvalidPolicy)
		}
		if amount < 0 {
			return nil, fmt.Errorf("%w: tier %q has negative allowance %d", ErrInvalidPolicy, tier, amount)
		}
		table[tier] = amount
	}
	defaultTier = defaultTier.Normalize()
	if _, ok := table[defaultTier]; !ok {
		return nil, fmt.Errorf("%w: default tier %q not in table", ErrInvalidPolicy, defaultTier)
	}
	return &Policy{allowances: table, defaultTier: defaultTier}, nil
}

// DefaultPolicy returns the stock monthly/annual policy.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultAllowances, TierMonthly)
	if err != nil {
		panic(err)
	}
	return p
}

// Resolve returns the allowance for tier. known is false when the tier is
// not in the table, in which case the default tier's allowance is returned.
func (p *Policy) Resolve(tier Tier) (allowance types.Credits, known bool) {
	if a, ok := p.allowances[tier.Normalize()]; ok {
		return a, true
	}
	return p.allowances[p.defaultTier], false
}

// Canonical returns the tier that Resolve actually used for tier.
func (p *Policy) Canonical(tier Tier) Tier {
	tier = tier.Normalize()
	if _, ok := p.allowances[tier]; ok {
		return tier
	}
	return p.defaultTier
}

func (p *Policy) DefaultTier() Tier { return p.defaultTier }

// Tiers returns the known tiers sorted by name.
func (p *Policy) Tiers() []Tier {
	out := make([]Tier, 0, len(p.allowances))
	for t := range p.allowances {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
