package workflow

// Validator decides whether a proposed transition is legal for a role.
// It consults the Policy only and never mutates anything, so a single
// instance is safe to share across requests.
type Validator struct {
	policy *Policy
}

func NewValidator(policy *Policy) *Validator {
	return &Validator{policy: policy}
}

// Validate returns nil when the role may move a claim from current to
// proposed, or a typed error describing why not.
func (v *Validator) Validate(current, proposed State, role Role) error {
	if !v.policy.KnownRole(role) {
		return &UnknownRoleError{Role: role}
	}
	if !v.policy.KnownState(current) {
		return &UnknownStateError{State: current}
	}
	if !v.policy.KnownState(proposed) {
		return &UnknownStateError{State: proposed}
	}

	allowed := v.policy.AllowedNextStates(role, current)
	for _, s := range allowed {
		if s == proposed {
			return nil
		}
	}
	return &IllegalTransitionError{From: current, To: proposed, Role: role, Allowed: allowed}
}

// Policy exposes the validator's policy for components that need the
// allowed-next-states view alongside validation.
func (v *Validator) Policy() *Policy { return v.policy }
