package preauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rcm/rcm/internal/platform/db"
	"github.com/rcm/rcm/internal/platform/notification"
	"github.com/rcm/rcm/internal/workflow"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type preauthRepoPG struct{ pool *pgxpool.Pool }

func NewPreauthRepoPG(pool *pgxpool.Pool) PreauthRepository {
	return &preauthRepoPG{pool: pool}
}

func (r *preauthRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

// storeErr classifies connectivity-class failures as ErrStoreUnavailable
// so handlers can answer 503 for an outage instead of a generic 500.
// Anything pgx reports as retryable, a network error, or a hit deadline
// counts as an outage; everything else passes through untouched.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) ||
		errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %v: %w", op, err, workflow.ErrStoreUnavailable)
	}
	return err
}

const preauthCols = `id, preauth_id, hospital_id,
	patient_uhid, patient_name, patient_mobile, patient_email,
	insurer_name, policy_number, diagnosis, proposed_treatment, estimated_cost,
	admission_date, room_category, status,
	approval_reference, approved_amount, approval_date,
	rejection_reason, rejection_date,
	discharge_date, actual_cost, discharge_summary, final_diagnosis,
	settlement_reference, settled_amount, settlement_date,
	created_by, updated_by, created_at, updated_at`

func (r *preauthRepoPG) scan(row pgx.Row) (*PreauthRequest, error) {
	var p PreauthRequest
	err := row.Scan(&p.ID, &p.PreauthID, &p.HospitalID,
		&p.PatientUHID, &p.PatientName, &p.PatientMobile, &p.PatientEmail,
		&p.InsurerName, &p.PolicyNumber, &p.Diagnosis, &p.Treatment, &p.EstimatedCost,
		&p.AdmissionDate, &p.RoomCategory, &p.Status,
		&p.ApprovalReference, &p.ApprovedAmount, &p.ApprovalDate,
		&p.RejectionReason, &p.RejectionDate,
		&p.DischargeDate, &p.ActualCost, &p.DischargeSummary, &p.FinalDiagnosis,
		&p.SettlementReference, &p.SettledAmount, &p.SettlementDate,
		&p.CreatedBy, &p.UpdatedBy, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *preauthRepoPG) Create(ctx context.Context, p *PreauthRequest) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO preauth_requests (id, preauth_id, hospital_id,
			patient_uhid, patient_name, patient_mobile, patient_email,
			insurer_name, policy_number, diagnosis, proposed_treatment, estimated_cost,
			admission_date, room_category, status, created_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		p.ID, p.PreauthID, p.HospitalID,
		p.PatientUHID, p.PatientName, p.PatientMobile, p.PatientEmail,
		p.InsurerName, p.PolicyNumber, p.Diagnosis, p.Treatment, p.EstimatedCost,
		p.AdmissionDate, p.RoomCategory, p.Status, p.CreatedBy, p.UpdatedBy)
	return storeErr("create preauth request", err)
}

func (r *preauthRepoPG) GetByPreauthID(ctx context.Context, preauthID string) (*PreauthRequest, error) {
	p, err := r.scan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+preauthCols+` FROM preauth_requests WHERE preauth_id = $1`, preauthID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, workflow.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get preauth request", err)
	}
	return p, nil
}

func (r *preauthRepoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*PreauthRequest, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	n := 0
	if filter.Status != "" {
		n++
		where += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, filter.Status)
	}
	if filter.PatientUHID != "" {
		n++
		where += fmt.Sprintf(" AND patient_uhid = $%d", n)
		args = append(args, filter.PatientUHID)
	}
	if filter.InsurerName != "" {
		n++
		where += fmt.Sprintf(" AND insurer_name = $%d", n)
		args = append(args, filter.InsurerName)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM preauth_requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, storeErr("count preauth requests", err)
	}

	query := `SELECT ` + preauthCols + ` FROM preauth_requests` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, storeErr("list preauth requests", err)
	}
	defer rows.Close()
	var items []*PreauthRequest
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, storeErr("iterate preauth requests", rows.Err())
}

func (r *preauthRepoPG) ContactForClaim(ctx context.Context, preauthID string) (notification.Contact, error) {
	var contact notification.Contact
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT patient_email, patient_mobile FROM preauth_requests WHERE preauth_id = $1`,
		preauthID).Scan(&contact.Email, &contact.Mobile)
	if errors.Is(err, pgx.ErrNoRows) {
		return contact, workflow.ErrNotFound
	}
	return contact, storeErr("contact for claim", err)
}

// -- workflow.ClaimStore --

func (r *preauthRepoPG) Get(ctx context.Context, claimID string) (*workflow.Snapshot, error) {
	p, err := r.GetByPreauthID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	return p.Snapshot(), nil
}

// ConditionalUpdate moves the claim status only if the row still carries
// the expected status. The WHERE clause is the compare-and-set: a lost
// race matches zero rows and surfaces as ErrConflict, never a blind
// overwrite. Annotation columns are stamped in the same statement.
func (r *preauthRepoPG) ConditionalUpdate(ctx context.Context, claimID string, expected workflow.State, patch workflow.Patch) error {
	set := "status = $3, updated_by = $4, updated_at = NOW()"
	args := []interface{}{claimID, expected, patch.NewState, patch.UpdatedBy}

	switch a := patch.Annotation.(type) {
	case nil:
	case workflow.ApprovalAnnotation:
		set += fmt.Sprintf(", approval_reference = $%d, approved_amount = $%d, approval_date = NOW()", len(args)+1, len(args)+2)
		args = append(args, a.Reference, a.ApprovedAmount)
	case workflow.DenialAnnotation:
		set += fmt.Sprintf(", rejection_reason = $%d, rejection_date = NOW()", len(args)+1)
		args = append(args, a.Reason)
	case workflow.DischargeAnnotation:
		set += fmt.Sprintf(", discharge_date = $%d, actual_cost = $%d, discharge_summary = $%d, final_diagnosis = $%d",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4)
		args = append(args, a.DischargeDate, a.ActualCost, a.Summary, a.FinalDiagnosis)
	case workflow.DischargeApprovalAnnotation:
		set += fmt.Sprintf(", settlement_reference = $%d, settled_amount = $%d, settlement_date = NOW()", len(args)+1, len(args)+2)
		args = append(args, a.Reference, a.SettledAmount)
	default:
		return fmt.Errorf("unsupported annotation type %T", patch.Annotation)
	}

	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE preauth_requests SET `+set+`
		WHERE preauth_id = $1 AND status = $2`,
		args...)
	if err != nil {
		return storeErr("conditional update", err)
	}
	if tag.RowsAffected() == 0 {
		// Zero rows means either the claim is gone or another writer won.
		if _, getErr := r.Get(ctx, claimID); getErr != nil {
			return getErr
		}
		return workflow.ErrConflict
	}
	return nil
}

func (r *preauthRepoPG) AppendHistory(ctx context.Context, rec *workflow.TransitionRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	var stateData []byte
	if rec.StateData != nil {
		var err error
		stateData, err = json.Marshal(rec.StateData)
		if err != nil {
			return fmt.Errorf("marshal state data: %w", err)
		}
	}
	// seq and changed_at are store-assigned so ordering survives clock skew.
	if err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO preauth_states (id, preauth_id, hospital_id, previous_state, new_state,
			actor_id, actor_role, remarks, state_data)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING seq, changed_at`,
		rec.ID, rec.ClaimID, rec.HospitalID, rec.PreviousState, rec.NewState,
		rec.ActorID, rec.ActorRole, rec.Remarks, stateData).
		Scan(&rec.Seq, &rec.ChangedAt); err != nil {
		return storeErr("append history", err)
	}
	return nil
}

func (r *preauthRepoPG) History(ctx context.Context, claimID string) ([]*workflow.TransitionRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, seq, preauth_id, hospital_id, previous_state, new_state,
			actor_id, actor_role, remarks, state_data, changed_at
		FROM preauth_states WHERE preauth_id = $1 ORDER BY seq ASC`, claimID)
	if err != nil {
		return nil, storeErr("load history", err)
	}
	defer rows.Close()
	var records []*workflow.TransitionRecord
	for rows.Next() {
		var rec workflow.TransitionRecord
		var stateData []byte
		if err := rows.Scan(&rec.ID, &rec.Seq, &rec.ClaimID, &rec.HospitalID,
			&rec.PreviousState, &rec.NewState, &rec.ActorID, &rec.ActorRole,
			&rec.Remarks, &stateData, &rec.ChangedAt); err != nil {
			return nil, err
		}
		if len(stateData) > 0 {
			if err := json.Unmarshal(stateData, &rec.StateData); err != nil {
				return nil, fmt.Errorf("unmarshal state data: %w", err)
			}
		}
		records = append(records, &rec)
	}
	return records, storeErr("iterate history", rows.Err())
}
