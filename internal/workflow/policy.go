// Package workflow implements the role-gated state machine that governs
// pre-authorization claims: the transition policy, the validator that
// enforces it, the mutator that applies a transition with compare-and-set
// semantics, and the audit/history reader.
package workflow

import (
	"fmt"
	"sort"

	"github.com/spf13/viper"
)

// State is a claim's position in the pre-auth workflow.
type State string

// Role is the acting user's workflow permission class. It is distinct
// from general application authorization: the HTTP layer resolves a
// role and hands it to the core, which only consults the Policy.
type Role string

// Canonical state vocabulary. The Policy is configuration and may carry
// a subset or variant, but every configured name is validated against
// a declared enumeration at construction time.
const (
	StateRegistered             State = "Registered"
	StateNeedMoreInfo           State = "NeedMoreInfo"
	StateInfoSubmitted          State = "InfoSubmitted"
	StateApproved               State = "Approved"
	StateDenied                 State = "Denied"
	StateDischargeSubmitted     State = "DischargeSubmitted"
	StateDischargeNeedMoreInfo  State = "DischargeNeedMoreInfo"
	StateDischargeInfoSubmitted State = "DischargeInfoSubmitted"
	StateDischargeApproved      State = "DischargeApproved"
	StateDischargeDenied        State = "DischargeDenied"
)

const (
	RoleExecutive Role = "executive"
	RoleProcessor Role = "processor"
)

// PolicyConfig is the externally-owned policy artifact: the closed state
// and role enumerations plus the role -> currentState -> nextStates table.
// Keeping it a single injected artifact is what prevents a second
// hand-maintained copy from drifting.
type PolicyConfig struct {
	States      []string                       `mapstructure:"states" yaml:"states"`
	Roles       []string                       `mapstructure:"roles" yaml:"roles"`
	Transitions map[string]map[string][]string `mapstructure:"transitions" yaml:"transitions"`
}

// Policy answers "which next states may this role reach from this state".
// It is immutable after construction and safe for concurrent use.
type Policy struct {
	states      map[State]struct{}
	roles       map[Role]struct{}
	transitions map[Role]map[State][]State
}

// NewPolicy validates the config against its own declared enumerations
// and builds an immutable Policy. Every role and state referenced by the
// transition table must appear in the declared sets.
func NewPolicy(cfg PolicyConfig) (*Policy, error) {
	if len(cfg.States) == 0 {
		return nil, fmt.Errorf("policy: no states declared")
	}
	if len(cfg.Roles) == 0 {
		return nil, fmt.Errorf("policy: no roles declared")
	}

	states := make(map[State]struct{}, len(cfg.States))
	for _, s := range cfg.States {
		if _, dup := states[State(s)]; dup {
			return nil, fmt.Errorf("policy: duplicate state %q", s)
		}
		states[State(s)] = struct{}{}
	}

	roles := make(map[Role]struct{}, len(cfg.Roles))
	for _, r := range cfg.Roles {
		if _, dup := roles[Role(r)]; dup {
			return nil, fmt.Errorf("policy: duplicate role %q", r)
		}
		roles[Role(r)] = struct{}{}
	}

	transitions := make(map[Role]map[State][]State, len(cfg.Transitions))
	for roleName, table := range cfg.Transitions {
		role := Role(roleName)
		if _, ok := roles[role]; !ok {
			return nil, fmt.Errorf("policy: transition table references undeclared role %q", roleName)
		}
		byState := make(map[State][]State, len(table))
		for fromName, nextNames := range table {
			from := State(fromName)
			if _, ok := states[from]; !ok {
				return nil, fmt.Errorf("policy: role %q references undeclared state %q", roleName, fromName)
			}
			seen := make(map[State]struct{}, len(nextNames))
			next := make([]State, 0, len(nextNames))
			for _, nextName := range nextNames {
				to := State(nextName)
				if _, ok := states[to]; !ok {
					return nil, fmt.Errorf("policy: role %q allows undeclared state %q from %q", roleName, nextName, fromName)
				}
				if _, dup := seen[to]; dup {
					continue
				}
				seen[to] = struct{}{}
				next = append(next, to)
			}
			sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
			byState[from] = next
		}
		transitions[role] = byState
	}

	return &Policy{states: states, roles: roles, transitions: transitions}, nil
}

// LoadPolicyFile reads a policy artifact (YAML or JSON) from disk and
// builds a validated Policy from it.
func LoadPolicyFile(path string) (*Policy, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read policy file %s: %w", path, err)
	}

	var cfg PolicyConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal policy file %s: %w", path, err)
	}
	return NewPolicy(cfg)
}

// DefaultPolicy returns the canonical hospital pre-auth workflow: the
// executive registers claims and supplies requested information, the
// processor adjudicates pre-auth and discharge reviews.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultPolicyConfig())
	if err != nil {
		// The built-in table is static; failing to build it is a programming error.
		panic(err)
	}
	return p
}

// DefaultPolicyConfig returns the canonical table as a config value, so
// deployments can start from it and override per hospital.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		States: []string{
			string(StateRegistered),
			string(StateNeedMoreInfo),
			string(StateInfoSubmitted),
			string(StateApproved),
			string(StateDenied),
			string(StateDischargeSubmitted),
			string(StateDischargeNeedMoreInfo),
			string(StateDischargeInfoSubmitted),
			string(StateDischargeApproved),
			string(StateDischargeDenied),
		},
		Roles: []string{string(RoleExecutive), string(RoleProcessor)},
		Transitions: map[string]map[string][]string{
			string(RoleExecutive): {
				string(StateRegistered):            {string(StateNeedMoreInfo), string(StateApproved), string(StateDenied)},
				string(StateNeedMoreInfo):          {string(StateInfoSubmitted)},
				string(StateApproved):              {string(StateDischargeSubmitted)},
				string(StateDischargeNeedMoreInfo): {string(StateDischargeInfoSubmitted)},
			},
			string(RoleProcessor): {
				string(StateRegistered):             {string(StateApproved), string(StateNeedMoreInfo), string(StateDenied)},
				string(StateInfoSubmitted):          {string(StateApproved), string(StateNeedMoreInfo), string(StateDenied)},
				string(StateDischargeSubmitted):     {string(StateDischargeNeedMoreInfo), string(StateDischargeApproved), string(StateDischargeDenied)},
				string(StateDischargeInfoSubmitted): {string(StateDischargeApproved), string(StateDischargeDenied)},
			},
		},
	}
}

// AllowedNextStates returns a sorted copy of the states the role may
// move a claim into from the given state. Unknown roles and states get
// the empty set, never an error.
func (p *Policy) AllowedNextStates(role Role, current State) []State {
	byState, ok := p.transitions[role]
	if !ok {
		return nil
	}
	next, ok := byState[current]
	if !ok {
		return nil
	}
	out := make([]State, len(next))
	copy(out, next)
	return out
}

// KnownState reports whether the state belongs to the policy's enumeration.
func (p *Policy) KnownState(s State) bool {
	_, ok := p.states[s]
	return ok
}

// KnownRole reports whether the role belongs to the policy's enumeration.
func (p *Policy) KnownRole(r Role) bool {
	_, ok := p.roles[r]
	return ok
}

// States returns the declared state enumeration, sorted.
func (p *Policy) States() []State {
	out := make([]State, 0, len(p.states))
	for s := range p.states {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Roles returns the declared role enumeration, sorted.
func (p *Policy) Roles() []Role {
	out := make([]Role, 0, len(p.roles))
	for r := range p.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Terminal reports whether no role can move a claim out of the state.
func (p *Policy) Terminal(s State) bool {
	for _, byState := range p.transitions {
		if len(byState[s]) > 0 {
			return false
		}
	}
	return true
}

// TransitionsFor returns the full transition table for a role, keyed by
// current state. Used by the API to describe a role's reachable moves.
func (p *Policy) TransitionsFor(role Role) map[State][]State {
	byState, ok := p.transitions[role]
	if !ok {
		return map[State][]State{}
	}
	out := make(map[State][]State, len(byState))
	for from, next := range byState {
		cp := make([]State, len(next))
		copy(cp, next)
		out[from] = cp
	}
	return out
}
