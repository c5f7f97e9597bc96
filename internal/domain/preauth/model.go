// Package preauth implements the pre-authorization claim lifecycle:
// registration, the role-gated status workflow, discharge settlement,
// and the append-only status history insurers are reconciled against.
package preauth

import (
	"time"

	"github.com/google/uuid"

	"github.com/rcm/rcm/internal/workflow"
)

// PreauthRequest maps to the preauth_requests table. One row per
// admission episode; the approval, rejection, and discharge columns are
// stamped by the transition that reaches the matching state.
type PreauthRequest struct {
	ID         uuid.UUID `db:"id" json:"id"`
	PreauthID  string    `db:"preauth_id" json:"preauth_id"`
	HospitalID string    `db:"hospital_id" json:"hospital_id"`

	PatientUHID   string `db:"patient_uhid" json:"patient_uhid"`
	PatientName   string `db:"patient_name" json:"patient_name"`
	PatientMobile string `db:"patient_mobile" json:"patient_mobile,omitempty"`
	PatientEmail  string `db:"patient_email" json:"patient_email,omitempty"`

	InsurerName   string  `db:"insurer_name" json:"insurer_name"`
	PolicyNumber  string  `db:"policy_number" json:"policy_number"`
	Diagnosis     string  `db:"diagnosis" json:"diagnosis"`
	Treatment     string  `db:"proposed_treatment" json:"proposed_treatment"`
	EstimatedCost float64 `db:"estimated_cost" json:"estimated_cost"`

	AdmissionDate *time.Time `db:"admission_date" json:"admission_date,omitempty"`
	RoomCategory  *string    `db:"room_category" json:"room_category,omitempty"`

	Status workflow.State `db:"status" json:"status"`

	ApprovalReference *string    `db:"approval_reference" json:"approval_reference,omitempty"`
	ApprovedAmount    *float64   `db:"approved_amount" json:"approved_amount,omitempty"`
	ApprovalDate      *time.Time `db:"approval_date" json:"approval_date,omitempty"`

	RejectionReason *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	RejectionDate   *time.Time `db:"rejection_date" json:"rejection_date,omitempty"`

	DischargeDate    *time.Time `db:"discharge_date" json:"discharge_date,omitempty"`
	ActualCost       *float64   `db:"actual_cost" json:"actual_cost,omitempty"`
	DischargeSummary *string    `db:"discharge_summary" json:"discharge_summary,omitempty"`
	FinalDiagnosis   *string    `db:"final_diagnosis" json:"final_diagnosis,omitempty"`

	SettlementReference *string    `db:"settlement_reference" json:"settlement_reference,omitempty"`
	SettledAmount       *float64   `db:"settled_amount" json:"settled_amount,omitempty"`
	SettlementDate      *time.Time `db:"settlement_date" json:"settlement_date,omitempty"`

	CreatedBy string    `db:"created_by" json:"created_by"`
	UpdatedBy string    `db:"updated_by" json:"updated_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Snapshot projects the claim onto the fields the workflow engine needs
// for its compare-and-set decision.
func (p *PreauthRequest) Snapshot() *workflow.Snapshot {
	return &workflow.Snapshot{
		ClaimID:    p.PreauthID,
		HospitalID: p.HospitalID,
		Status:     p.Status,
		UpdatedAt:  p.UpdatedAt,
		UpdatedBy:  p.UpdatedBy,
	}
}
