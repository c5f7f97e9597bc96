package preauth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rcm/rcm/internal/workflow"
)

// Service wires the claim repository to the workflow engine. Intake and
// listing are plain repository calls; every status change goes through
// the mutator so the policy gate and compare-and-set apply uniformly.
type Service struct {
	repo    PreauthRepository
	mutator *workflow.Mutator
	reader  *workflow.Reader
	policy  *workflow.Policy
}

func NewService(repo PreauthRepository, policy *workflow.Policy, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		mutator: workflow.NewMutator(repo, workflow.NewValidator(policy), logger),
		reader:  workflow.NewReader(repo, policy),
		policy:  policy,
	}
}

// SetNotifier attaches the fire-and-forget transition notifier.
func (s *Service) SetNotifier(n workflow.Notifier) {
	s.mutator.SetNotifier(n)
}

// WaitNotifications blocks until in-flight notifications drain. Tests
// use it; the server calls it on shutdown.
func (s *Service) WaitNotifications() {
	s.mutator.Wait()
}

// SubmitInput is the intake payload for a new pre-authorization request.
type SubmitInput struct {
	PatientUHID   string     `json:"patient_uhid"`
	PatientName   string     `json:"patient_name"`
	PatientMobile string     `json:"patient_mobile"`
	PatientEmail  string     `json:"patient_email"`
	InsurerName   string     `json:"insurer_name"`
	PolicyNumber  string     `json:"policy_number"`
	Diagnosis     string     `json:"diagnosis"`
	Treatment     string     `json:"proposed_treatment"`
	EstimatedCost float64    `json:"estimated_cost"`
	AdmissionDate *time.Time `json:"admission_date"`
	RoomCategory  *string    `json:"room_category"`
}

// InvalidInputError reports a payload the caller must correct. Handlers
// map it to 400; anything else from intake is a store failure.
type InvalidInputError struct{ Msg string }

func (e *InvalidInputError) Error() string { return e.Msg }

func (in *SubmitInput) validate() error {
	var missing []string
	if in.PatientUHID == "" {
		missing = append(missing, "patient_uhid")
	}
	if in.PatientName == "" {
		missing = append(missing, "patient_name")
	}
	if in.InsurerName == "" {
		missing = append(missing, "insurer_name")
	}
	if in.PolicyNumber == "" {
		missing = append(missing, "policy_number")
	}
	if in.Diagnosis == "" {
		missing = append(missing, "diagnosis")
	}
	if in.Treatment == "" {
		missing = append(missing, "proposed_treatment")
	}
	if len(missing) > 0 {
		return &InvalidInputError{Msg: fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", "))}
	}
	if in.EstimatedCost <= 0 {
		return &InvalidInputError{Msg: "estimated_cost must be positive"}
	}
	return nil
}

// Submit registers a claim in the entry state. Creation is not a
// transition: the history starts empty and grows only when the claim
// moves.
func (s *Service) Submit(ctx context.Context, hospitalID string, in SubmitInput, actor workflow.Actor) (*PreauthRequest, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	p := &PreauthRequest{
		PreauthID:     newPreauthID(),
		HospitalID:    hospitalID,
		PatientUHID:   in.PatientUHID,
		PatientName:   in.PatientName,
		PatientMobile: in.PatientMobile,
		PatientEmail:  in.PatientEmail,
		InsurerName:   in.InsurerName,
		PolicyNumber:  in.PolicyNumber,
		Diagnosis:     in.Diagnosis,
		Treatment:     in.Treatment,
		EstimatedCost: in.EstimatedCost,
		AdmissionDate: in.AdmissionDate,
		RoomCategory:  in.RoomCategory,
		Status:        workflow.StateRegistered,
		CreatedBy:     actor.ID,
		UpdatedBy:     actor.ID,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create preauth request: %w", err)
	}
	return p, nil
}

func newPreauthID() string {
	return "PA-" + strings.ToUpper(uuid.NewString()[:8])
}

// UpdateStatusInput is the payload for a status transition. The outcome
// fields are consumed only by the transition whose target state matches
// them.
type UpdateStatusInput struct {
	NewState workflow.State `json:"new_state"`
	Remarks  string         `json:"remarks"`

	ApprovalReference string  `json:"approval_reference"`
	ApprovedAmount    float64 `json:"approved_amount"`
	RejectionReason   string  `json:"rejection_reason"`
	SettledAmount     float64 `json:"settled_amount"`
}

// annotation builds the typed outcome payload from the fields the
// caller supplied. An amount counts as outcome data even without a
// reference, so a settlement can never be silently dropped; fields
// aimed at a different outcome are rejected by the mutator's
// target-state check.
func (in UpdateStatusInput) annotation() workflow.Annotation {
	switch {
	case in.NewState == workflow.StateDischargeApproved && (in.ApprovalReference != "" || in.SettledAmount != 0):
		return workflow.DischargeApprovalAnnotation{Reference: in.ApprovalReference, SettledAmount: in.SettledAmount}
	case in.ApprovalReference != "" || in.ApprovedAmount != 0:
		return workflow.ApprovalAnnotation{Reference: in.ApprovalReference, ApprovedAmount: in.ApprovedAmount}
	case in.RejectionReason != "":
		return workflow.DenialAnnotation{
			Reason:    in.RejectionReason,
			Discharge: in.NewState == workflow.StateDischargeDenied,
		}
	default:
		return nil
	}
}

// UpdateStatus applies one policy-gated transition. Typed errors flow
// through unchanged so the handler can map them onto status codes.
func (s *Service) UpdateStatus(ctx context.Context, preauthID string, in UpdateStatusInput, actor workflow.Actor) (*workflow.Result, error) {
	ann := in.annotation()
	return s.mutator.Apply(ctx, workflow.Request{
		ClaimID:    preauthID,
		Proposed:   in.NewState,
		Actor:      actor,
		Remarks:    in.Remarks,
		Annotation: ann,
		StateData:  stateDataFor(ann),
	})
}

// DischargeInput is the discharge submission payload.
type DischargeInput struct {
	DischargeDate  time.Time `json:"discharge_date"`
	ActualCost     float64   `json:"actual_cost"`
	Summary        string    `json:"discharge_summary"`
	FinalDiagnosis string    `json:"final_diagnosis"`
	Remarks        string    `json:"remarks"`
}

// SubmitDischarge files the discharge claim: a transition to the
// discharge-review entry state carrying the discharge payload.
func (s *Service) SubmitDischarge(ctx context.Context, preauthID string, in DischargeInput, actor workflow.Actor) (*workflow.Result, error) {
	if in.DischargeDate.IsZero() {
		return nil, &InvalidInputError{Msg: "discharge_date is required"}
	}
	if in.ActualCost <= 0 {
		return nil, &InvalidInputError{Msg: "actual_cost must be positive"}
	}
	ann := workflow.DischargeAnnotation{
		DischargeDate:  in.DischargeDate,
		ActualCost:     in.ActualCost,
		Summary:        in.Summary,
		FinalDiagnosis: in.FinalDiagnosis,
	}
	return s.mutator.Apply(ctx, workflow.Request{
		ClaimID:    preauthID,
		Proposed:   workflow.StateDischargeSubmitted,
		Actor:      actor,
		Remarks:    in.Remarks,
		Annotation: ann,
		StateData:  stateDataFor(ann),
	})
}

// stateDataFor mirrors the annotation onto the history record so an
// auditor can read each transition's payload without joining back to
// the claim row.
func stateDataFor(ann workflow.Annotation) map[string]interface{} {
	switch a := ann.(type) {
	case workflow.ApprovalAnnotation:
		return map[string]interface{}{
			"approval_reference": a.Reference,
			"approved_amount":    a.ApprovedAmount,
		}
	case workflow.DischargeApprovalAnnotation:
		return map[string]interface{}{
			"approval_reference": a.Reference,
			"settled_amount":     a.SettledAmount,
		}
	case workflow.DenialAnnotation:
		return map[string]interface{}{
			"rejection_reason": a.Reason,
		}
	case workflow.DischargeAnnotation:
		return map[string]interface{}{
			"discharge_date":    a.DischargeDate.Format(time.RFC3339),
			"actual_cost":       a.ActualCost,
			"discharge_summary": a.Summary,
			"final_diagnosis":   a.FinalDiagnosis,
		}
	default:
		return nil
	}
}

// Get returns the full claim row.
func (s *Service) Get(ctx context.Context, preauthID string) (*PreauthRequest, error) {
	return s.repo.GetByPreauthID(ctx, preauthID)
}

// StatusHistory returns the claim's transitions oldest first.
func (s *Service) StatusHistory(ctx context.Context, preauthID string) ([]*workflow.TransitionRecord, error) {
	return s.reader.History(ctx, preauthID)
}

// CurrentStatus returns the status plus the moves the role may make.
func (s *Service) CurrentStatus(ctx context.Context, preauthID string, role workflow.Role) (*workflow.StatusView, error) {
	return s.reader.CurrentStatus(ctx, preauthID, role)
}

// List returns claims matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*PreauthRequest, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}

// TransitionsForRole exposes the role's slice of the policy table, for
// clients that render action buttons.
func (s *Service) TransitionsForRole(role workflow.Role) (map[workflow.State][]workflow.State, error) {
	if !s.policy.KnownRole(role) {
		return nil, &workflow.UnknownRoleError{Role: role}
	}
	return s.policy.TransitionsFor(role), nil
}
