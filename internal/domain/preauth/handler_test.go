package preauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rcm/rcm/internal/platform/auth"
	"github.com/rcm/rcm/internal/platform/db"
	"github.com/rcm/rcm/internal/workflow"
)

func newTestHandler() (*Handler, *Service) {
	svc, _ := newTestService()
	return NewHandler(svc), svc
}

func request(method, path, body, userID, role string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	ctx := req.Context()
	ctx = context.WithValue(ctx, auth.UserIDKey, userID)
	ctx = context.WithValue(ctx, auth.UserRoleKey, role)
	ctx = context.WithValue(ctx, db.HospitalIDKey, "apollo_main")
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func submitClaim(t *testing.T, svc *Service) *PreauthRequest {
	t.Helper()
	p, err := svc.Submit(context.Background(), "apollo_main", validSubmitInput(), executive)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return p
}

func TestHandler_Submit(t *testing.T) {
	h, _ := newTestHandler()

	body := `{
		"patient_uhid": "UHID-1001",
		"patient_name": "Asha Rao",
		"insurer_name": "Star Health",
		"policy_number": "SH-77821",
		"diagnosis": "Cholelithiasis",
		"proposed_treatment": "Laparoscopic cholecystectomy",
		"estimated_cost": 95000
	}`
	c, rec := request(http.MethodPost, "/api/v1/preauth", body, "exec-1", "executive")

	if err := h.Submit(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: %d, body: %s", rec.Code, rec.Body.String())
	}

	var got PreauthRequest
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Status != workflow.StateRegistered {
		t.Errorf("status: %s", got.Status)
	}
	if got.HospitalID != "apollo_main" {
		t.Errorf("hospital: %s", got.HospitalID)
	}
	if got.CreatedBy != "exec-1" {
		t.Errorf("created by: %s", got.CreatedBy)
	}
}

func TestHandler_SubmitMissingFields(t *testing.T) {
	h, _ := newTestHandler()

	c, _ := request(http.MethodPost, "/api/v1/preauth", `{"patient_name":"X"}`, "exec-1", "executive")
	err := h.Submit(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_UpdateStatus(t *testing.T) {
	h, svc := newTestHandler()
	p := submitClaim(t, svc)

	body := `{"new_state":"Approved","approval_reference":"AL-1","approved_amount":90000}`
	c, rec := request(http.MethodPut, "/api/v1/preauth/"+p.PreauthID+"/status", body, "proc-1", "processor")
	c.SetParamNames("id")
	c.SetParamValues(p.PreauthID)

	if err := h.UpdateStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d, body: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["previous_state"] != "Registered" || resp["new_state"] != "Approved" {
		t.Errorf("response: %v", resp)
	}
}

func TestHandler_UpdateStatusIllegalIs422(t *testing.T) {
	h, svc := newTestHandler()
	p := submitClaim(t, svc)

	body := `{"new_state":"DischargeApproved"}`
	c, _ := request(http.MethodPut, "/api/v1/preauth/"+p.PreauthID+"/status", body, "proc-1", "processor")
	c.SetParamNames("id")
	c.SetParamValues(p.PreauthID)

	err := h.UpdateStatus(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %v", err)
	}
}

func TestHandler_UpdateStatusUnknownRoleIs422(t *testing.T) {
	h, svc := newTestHandler()
	p := submitClaim(t, svc)

	body := `{"new_state":"Approved"}`
	c, _ := request(http.MethodPut, "/api/v1/preauth/"+p.PreauthID+"/status", body, "u-1", "auditor")
	c.SetParamNames("id")
	c.SetParamValues(p.PreauthID)

	err := h.UpdateStatus(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %v", err)
	}
}

func TestHandler_UpdateStatusNotFoundIs404(t *testing.T) {
	h, _ := newTestHandler()

	body := `{"new_state":"Approved"}`
	c, _ := request(http.MethodPut, "/api/v1/preauth/PA-NOPE/status", body, "proc-1", "processor")
	c.SetParamNames("id")
	c.SetParamValues("PA-NOPE")

	err := h.UpdateStatus(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_UpdateStatusMissingState(t *testing.T) {
	h, svc := newTestHandler()
	p := submitClaim(t, svc)

	c, _ := request(http.MethodPut, "/api/v1/preauth/"+p.PreauthID+"/status", `{}`, "proc-1", "processor")
	c.SetParamNames("id")
	c.SetParamValues(p.PreauthID)

	err := h.UpdateStatus(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_CurrentStatus(t *testing.T) {
	h, svc := newTestHandler()
	p := submitClaim(t, svc)

	c, rec := request(http.MethodGet, "/api/v1/preauth/"+p.PreauthID+"/status", "", "proc-1", "processor")
	c.SetParamNames("id")
	c.SetParamValues(p.PreauthID)

	if err := h.CurrentStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var view workflow.StatusView
	_ = json.Unmarshal(rec.Body.Bytes(), &view)
	if view.Status != workflow.StateRegistered {
		t.Errorf("status: %s", view.Status)
	}
	if len(view.AllowedNextStates) != 3 {
		t.Errorf("allowed: %v", view.AllowedNextStates)
	}
}

func TestHandler_StatusHistory(t *testing.T) {
	h, svc := newTestHandler()
	p := submitClaim(t, svc)

	if _, err := svc.UpdateStatus(context.Background(), p.PreauthID, UpdateStatusInput{
		NewState: workflow.StateNeedMoreInfo, Remarks: "attach pre-op reports",
	}, processor); err != nil {
		t.Fatalf("update: %v", err)
	}

	c, rec := request(http.MethodGet, "/api/v1/preauth/"+p.PreauthID+"/status-history", "", "exec-1", "executive")
	c.SetParamNames("id")
	c.SetParamValues(p.PreauthID)

	if err := h.StatusHistory(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		PreauthID string                       `json:"preauth_id"`
		History   []*workflow.TransitionRecord `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.History) != 1 {
		t.Fatalf("history: %d", len(resp.History))
	}
	if resp.History[0].Remarks != "attach pre-op reports" {
		t.Errorf("remarks: %q", resp.History[0].Remarks)
	}
}

func TestHandler_List(t *testing.T) {
	h, svc := newTestHandler()
	submitClaim(t, svc)
	submitClaim(t, svc)

	c, rec := request(http.MethodGet, "/api/v1/preauth?status=Registered", "", "exec-1", "executive")
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Total int `json:"total"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 2 {
		t.Errorf("total: %d", resp.Total)
	}
}

func TestHandler_Transitions(t *testing.T) {
	h, _ := newTestHandler()

	c, rec := request(http.MethodGet, "/api/v1/preauth/transitions/executive", "", "exec-1", "executive")
	c.SetParamNames("role")
	c.SetParamValues("executive")

	if err := h.Transitions(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Role        string                            `json:"role"`
		Transitions map[workflow.State][]workflow.State `json:"transitions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Transitions[workflow.StateRegistered]) != 3 {
		t.Errorf("executive at Registered: %v", resp.Transitions[workflow.StateRegistered])
	}

	c, _ = request(http.MethodGet, "/api/v1/preauth/transitions/auditor", "", "exec-1", "executive")
	c.SetParamNames("role")
	c.SetParamValues("auditor")
	err := h.Transitions(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for unknown role, got %v", err)
	}
}

func TestHandler_SubmitDischarge(t *testing.T) {
	h, svc := newTestHandler()
	p := submitClaim(t, svc)
	if _, err := svc.UpdateStatus(context.Background(), p.PreauthID, UpdateStatusInput{
		NewState: workflow.StateApproved, ApprovalReference: "AL-1", ApprovedAmount: 90000,
	}, processor); err != nil {
		t.Fatalf("approve: %v", err)
	}

	body := `{"discharge_date":"2026-08-20T00:00:00Z","actual_cost":87000,"discharge_summary":"recovered","final_diagnosis":"Cholelithiasis"}`
	c, rec := request(http.MethodPost, "/api/v1/preauth/"+p.PreauthID+"/discharge", body, "exec-1", "executive")
	c.SetParamNames("id")
	c.SetParamValues(p.PreauthID)

	if err := h.SubmitDischarge(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d, body: %s", rec.Code, rec.Body.String())
	}

	row, _ := svc.Get(context.Background(), p.PreauthID)
	if row.Status != workflow.StateDischargeSubmitted {
		t.Errorf("status: %s", row.Status)
	}
}

// outageRepo simulates the claim store being unreachable.
type outageRepo struct{ *mockRepo }

func (o *outageRepo) Get(context.Context, string) (*workflow.Snapshot, error) {
	return nil, fmt.Errorf("get preauth request: %w", workflow.ErrStoreUnavailable)
}

func (o *outageRepo) Create(context.Context, *PreauthRequest) error {
	return fmt.Errorf("create preauth request: %w", workflow.ErrStoreUnavailable)
}

const submitBody = `{
	"patient_uhid": "UHID-1001",
	"patient_name": "Asha Rao",
	"insurer_name": "Star Health",
	"policy_number": "SH-77821",
	"diagnosis": "Cholelithiasis",
	"proposed_treatment": "Laparoscopic cholecystectomy",
	"estimated_cost": 95000
}`

func TestHandler_StoreOutageIs503(t *testing.T) {
	repo := &outageRepo{newMockRepo()}
	h := NewHandler(NewService(repo, workflow.DefaultPolicy(), zerolog.Nop()))

	c, _ := request(http.MethodPut, "/api/v1/preauth/PA-1/status", `{"new_state":"Approved"}`, "proc-1", "processor")
	c.SetParamNames("id")
	c.SetParamValues("PA-1")
	err := h.UpdateStatus(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusServiceUnavailable {
		t.Errorf("update during outage: expected 503, got %v", err)
	}

	c, _ = request(http.MethodPost, "/api/v1/preauth", submitBody, "exec-1", "executive")
	err = h.Submit(c)
	he, ok = err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusServiceUnavailable {
		t.Errorf("submit during outage: expected 503, got %v", err)
	}
}

// brokenRepo fails inserts with a non-connectivity error.
type brokenRepo struct{ *mockRepo }

func (b *brokenRepo) Create(context.Context, *PreauthRequest) error {
	return errors.New("duplicate key value violates unique constraint")
}

func TestHandler_SubmitRepoFailureIs500(t *testing.T) {
	repo := &brokenRepo{newMockRepo()}
	h := NewHandler(NewService(repo, workflow.DefaultPolicy(), zerolog.Nop()))

	c, _ := request(http.MethodPost, "/api/v1/preauth", submitBody, "exec-1", "executive")
	err := h.Submit(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for repo failure, got %v", err)
	}
}

func TestHandler_GetNotFound(t *testing.T) {
	h, _ := newTestHandler()

	c, _ := request(http.MethodGet, "/api/v1/preauth/PA-NOPE", "", "exec-1", "executive")
	c.SetParamNames("id")
	c.SetParamValues("PA-NOPE")

	err := h.Get(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}
