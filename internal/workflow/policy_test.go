package workflow

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultPolicy_AllowedNextStates(t *testing.T) {
	p := DefaultPolicy()

	got := p.AllowedNextStates(RoleExecutive, StateRegistered)
	want := []State{StateApproved, StateDenied, StateNeedMoreInfo}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("executive from Registered: got %v, want %v", got, want)
	}

	got = p.AllowedNextStates(RoleProcessor, StateDischargeSubmitted)
	want = []State{StateDischargeApproved, StateDischargeDenied, StateDischargeNeedMoreInfo}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("processor from DischargeSubmitted: got %v, want %v", got, want)
	}
}

func TestPolicy_UnknownRoleAndStateAreEmpty(t *testing.T) {
	p := DefaultPolicy()

	if got := p.AllowedNextStates(Role("auditor"), StateRegistered); len(got) != 0 {
		t.Errorf("unknown role: got %v, want empty", got)
	}
	if got := p.AllowedNextStates(RoleExecutive, State("Limbo")); len(got) != 0 {
		t.Errorf("unknown state: got %v, want empty", got)
	}
	if got := p.AllowedNextStates(RoleProcessor, StateDenied); len(got) != 0 {
		t.Errorf("terminal state: got %v, want empty", got)
	}
}

func TestPolicy_TerminalStates(t *testing.T) {
	p := DefaultPolicy()

	for _, s := range []State{StateDenied, StateDischargeApproved, StateDischargeDenied} {
		if !p.Terminal(s) {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []State{StateRegistered, StateApproved, StateDischargeSubmitted} {
		if p.Terminal(s) {
			t.Errorf("did not expect %s to be terminal", s)
		}
	}
}

func TestPolicy_ApprovedTerminalForProcessorOnly(t *testing.T) {
	p := DefaultPolicy()

	if got := p.AllowedNextStates(RoleProcessor, StateApproved); len(got) != 0 {
		t.Errorf("processor from Approved: got %v, want empty", got)
	}
	got := p.AllowedNextStates(RoleExecutive, StateApproved)
	if !reflect.DeepEqual(got, []State{StateDischargeSubmitted}) {
		t.Errorf("executive from Approved: got %v", got)
	}
}

func TestNewPolicy_RejectsUndeclaredNames(t *testing.T) {
	tests := []struct {
		name string
		cfg  PolicyConfig
	}{
		{
			name: "undeclared role",
			cfg: PolicyConfig{
				States:      []string{"A", "B"},
				Roles:       []string{"executive"},
				Transitions: map[string]map[string][]string{"ghost": {"A": {"B"}}},
			},
		},
		{
			name: "undeclared from state",
			cfg: PolicyConfig{
				States:      []string{"A", "B"},
				Roles:       []string{"executive"},
				Transitions: map[string]map[string][]string{"executive": {"X": {"B"}}},
			},
		},
		{
			name: "undeclared next state",
			cfg: PolicyConfig{
				States:      []string{"A", "B"},
				Roles:       []string{"executive"},
				Transitions: map[string]map[string][]string{"executive": {"A": {"X"}}},
			},
		},
		{
			name: "duplicate state",
			cfg: PolicyConfig{
				States: []string{"A", "A"},
				Roles:  []string{"executive"},
			},
		},
		{
			name: "no roles",
			cfg: PolicyConfig{
				States: []string{"A"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPolicy(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewPolicy_DeduplicatesAndSortsNextStates(t *testing.T) {
	p, err := NewPolicy(PolicyConfig{
		States: []string{"A", "B", "C"},
		Roles:  []string{"executive"},
		Transitions: map[string]map[string][]string{
			"executive": {"A": {"C", "B", "C"}},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := p.AllowedNextStates("executive", "A")
	if !reflect.DeepEqual(got, []State{"B", "C"}) {
		t.Errorf("got %v, want [B C]", got)
	}
}

func TestLoadPolicyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := `states:
  - Registered
  - Approved
  - Denied
roles:
  - processor
transitions:
  processor:
    Registered:
      - Approved
      - Denied
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write policy file: %v", err)
	}

	p, err := LoadPolicyFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := p.AllowedNextStates("processor", "Registered")
	if !reflect.DeepEqual(got, []State{"Approved", "Denied"}) {
		t.Errorf("got %v", got)
	}
	if p.KnownRole("executive") {
		t.Error("executive should be unknown in this policy")
	}
}

func TestLoadPolicyFile_Missing(t *testing.T) {
	if _, err := LoadPolicyFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
