package patient

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	patients PatientRepository
}

func NewService(patients PatientRepository) *Service {
	return &Service{patients: patients}
}

var validGenders = map[string]bool{
	"male":    true,
	"female":  true,
	"other":   true,
	"unknown": true,
}

var mobilePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

func (s *Service) RegisterPatient(ctx context.Context, p *Patient) error {
	if p.FirstName == "" {
		return fmt.Errorf("first_name is required")
	}
	if p.Mobile == "" {
		return fmt.Errorf("mobile is required")
	}
	if !mobilePattern.MatchString(p.Mobile) {
		return fmt.Errorf("invalid mobile number: %s", p.Mobile)
	}
	if p.Gender == "" {
		p.Gender = "unknown"
	}
	if !validGenders[p.Gender] {
		return fmt.Errorf("invalid gender: %s", p.Gender)
	}
	if p.BirthDate != nil && p.BirthDate.After(time.Now()) {
		return fmt.Errorf("birth_date cannot be in the future")
	}
	if p.UHID == "" {
		p.UHID = newUHID()
	}
	if existing, err := s.patients.GetByUHID(ctx, p.UHID); err == nil && existing != nil {
		return fmt.Errorf("patient with uhid %s already exists", p.UHID)
	}
	return s.patients.Create(ctx, p)
}

func newUHID() string {
	return "UHID-" + strings.ToUpper(uuid.NewString()[:8])
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) GetPatientByUHID(ctx context.Context, uhid string) (*Patient, error) {
	return s.patients.GetByUHID(ctx, uhid)
}

func (s *Service) GetPatientByMobile(ctx context.Context, mobile string) (*Patient, error) {
	return s.patients.GetByMobile(ctx, mobile)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if p.Mobile != "" && !mobilePattern.MatchString(p.Mobile) {
		return fmt.Errorf("invalid mobile number: %s", p.Mobile)
	}
	if p.Gender != "" && !validGenders[p.Gender] {
		return fmt.Errorf("invalid gender: %s", p.Gender)
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}
