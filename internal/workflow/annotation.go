package workflow

import "time"

// Annotation carries the side-effect fields a particular transition
// stamps onto the claim atomically with the status change. Each variant
// is keyed to its target state, so fields belonging to one outcome can
// never be written as a side effect of another.
type Annotation interface {
	TargetState() State
}

// ApprovalAnnotation stamps the payer's approval onto the claim.
type ApprovalAnnotation struct {
	Reference      string  `json:"approval_reference"`
	ApprovedAmount float64 `json:"approved_amount"`
}

func (ApprovalAnnotation) TargetState() State { return StateApproved }

// DischargeApprovalAnnotation stamps the final settlement approval.
type DischargeApprovalAnnotation struct {
	Reference      string  `json:"approval_reference"`
	SettledAmount  float64 `json:"settled_amount"`
}

func (DischargeApprovalAnnotation) TargetState() State { return StateDischargeApproved }

// DenialAnnotation stamps a rejection. Discharge selects between the
// pre-auth denial and the discharge-review denial outcomes.
type DenialAnnotation struct {
	Reason    string `json:"reason"`
	Discharge bool   `json:"discharge"`
}

func (a DenialAnnotation) TargetState() State {
	if a.Discharge {
		return StateDischargeDenied
	}
	return StateDenied
}

// DischargeAnnotation carries the discharge submission payload.
type DischargeAnnotation struct {
	DischargeDate  time.Time `json:"discharge_date"`
	ActualCost     float64   `json:"actual_cost"`
	Summary        string    `json:"discharge_summary"`
	FinalDiagnosis string    `json:"final_diagnosis"`
}

func (DischargeAnnotation) TargetState() State { return StateDischargeSubmitted }
