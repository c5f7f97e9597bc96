package workflow

import (
	"errors"
	"reflect"
	"testing"
)

func TestValidate_LegalTransition(t *testing.T) {
	v := NewValidator(DefaultPolicy())

	if err := v.Validate(StateRegistered, StateApproved, RoleExecutive); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := v.Validate(StateDischargeSubmitted, StateDischargeDenied, RoleProcessor); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_UnknownRole(t *testing.T) {
	v := NewValidator(DefaultPolicy())

	err := v.Validate(StateRegistered, StateApproved, Role("auditor"))
	var ur *UnknownRoleError
	if !errors.As(err, &ur) {
		t.Fatalf("expected UnknownRoleError, got %v", err)
	}
	if ur.Role != "auditor" {
		t.Errorf("got role %q", ur.Role)
	}
}

func TestValidate_UnknownState(t *testing.T) {
	v := NewValidator(DefaultPolicy())

	var us *UnknownStateError
	if err := v.Validate(State("Limbo"), StateApproved, RoleExecutive); !errors.As(err, &us) {
		t.Errorf("expected UnknownStateError for current, got %v", err)
	}
	if err := v.Validate(StateRegistered, State("Limbo"), RoleExecutive); !errors.As(err, &us) {
		t.Errorf("expected UnknownStateError for proposed, got %v", err)
	}
}

func TestValidate_IllegalTransitionCarriesAllowedSet(t *testing.T) {
	v := NewValidator(DefaultPolicy())

	err := v.Validate(StateRegistered, StateDischargeApproved, RoleProcessor)
	var it *IllegalTransitionError
	if !errors.As(err, &it) {
		t.Fatalf("expected IllegalTransitionError, got %v", err)
	}
	want := []State{StateApproved, StateDenied, StateNeedMoreInfo}
	if !reflect.DeepEqual(it.Allowed, want) {
		t.Errorf("allowed: got %v, want %v", it.Allowed, want)
	}
}

func TestValidate_TerminalStateRejectsEverything(t *testing.T) {
	p := DefaultPolicy()
	v := NewValidator(p)

	for _, role := range p.Roles() {
		for _, proposed := range p.States() {
			err := v.Validate(StateDenied, proposed, role)
			var it *IllegalTransitionError
			if !errors.As(err, &it) {
				t.Errorf("role %s proposing %s from Denied: expected IllegalTransitionError, got %v", role, proposed, err)
			}
			if len(it.Allowed) != 0 {
				t.Errorf("role %s from Denied: allowed should be empty, got %v", role, it.Allowed)
			}
		}
	}
}

func TestIsValidationError(t *testing.T) {
	if !IsValidationError(&UnknownRoleError{Role: "x"}) {
		t.Error("UnknownRoleError should be a validation error")
	}
	if !IsValidationError(&IllegalTransitionError{}) {
		t.Error("IllegalTransitionError should be a validation error")
	}
	if IsValidationError(ErrConflict) {
		t.Error("ErrConflict is not a validation error")
	}
	if IsValidationError(ErrNotFound) {
		t.Error("ErrNotFound is not a validation error")
	}
}
