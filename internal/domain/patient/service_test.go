package patient

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockPatientRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*Patient
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{rows: make(map[uuid.UUID]*Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	m.rows[p.ID] = p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockPatientRepo) GetByUHID(_ context.Context, uhid string) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.UHID == uhid {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockPatientRepo) GetByMobile(_ context.Context, mobile string) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.Mobile == mobile {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[p.ID]; !ok {
		return ErrNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	m.rows[p.ID] = p
	return nil
}

func (m *mockPatientRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*Patient
	for _, p := range m.rows {
		all = append(all, p)
	}
	total := len(all)
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func TestRegisterPatient_GeneratesUHID(t *testing.T) {
	svc := NewService(newMockPatientRepo())

	p := &Patient{FirstName: "Asha", LastName: "Rao", Mobile: "+919800000001"}
	if err := svc.RegisterPatient(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(p.UHID, "UHID-") {
		t.Errorf("uhid: %q", p.UHID)
	}
	if p.Gender != "unknown" {
		t.Errorf("gender default: %q", p.Gender)
	}
}

func TestRegisterPatient_Validation(t *testing.T) {
	svc := NewService(newMockPatientRepo())

	cases := []struct {
		name string
		p    Patient
	}{
		{"missing first name", Patient{Mobile: "+919800000001"}},
		{"missing mobile", Patient{FirstName: "Asha"}},
		{"bad mobile", Patient{FirstName: "Asha", Mobile: "not-a-number"}},
		{"bad gender", Patient{FirstName: "Asha", Mobile: "+919800000001", Gender: "robot"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := svc.RegisterPatient(context.Background(), &tc.p); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRegisterPatient_DuplicateUHID(t *testing.T) {
	svc := NewService(newMockPatientRepo())

	p1 := &Patient{FirstName: "Asha", Mobile: "+919800000001", UHID: "UHID-X1"}
	if err := svc.RegisterPatient(context.Background(), p1); err != nil {
		t.Fatalf("first register: %v", err)
	}
	p2 := &Patient{FirstName: "Ravi", Mobile: "+919800000002", UHID: "UHID-X1"}
	if err := svc.RegisterPatient(context.Background(), p2); err == nil {
		t.Error("expected duplicate uhid error")
	}
}

func TestGetPatientByMobile(t *testing.T) {
	repo := newMockPatientRepo()
	svc := NewService(repo)

	p := &Patient{FirstName: "Asha", Mobile: "+919800000001"}
	if err := svc.RegisterPatient(context.Background(), p); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := svc.GetPatientByMobile(context.Background(), "+919800000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UHID != p.UHID {
		t.Errorf("uhid: %q", got.UHID)
	}

	if _, err := svc.GetPatientByMobile(context.Background(), "+910000000000"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdatePatient_RejectsBadMobile(t *testing.T) {
	repo := newMockPatientRepo()
	svc := NewService(repo)

	p := &Patient{FirstName: "Asha", Mobile: "+919800000001"}
	if err := svc.RegisterPatient(context.Background(), p); err != nil {
		t.Fatalf("register: %v", err)
	}

	p.Mobile = "nope"
	if err := svc.UpdatePatient(context.Background(), p); err == nil {
		t.Error("expected mobile validation error")
	}
}
