package preauth

import (
	"context"

	"github.com/rcm/rcm/internal/platform/notification"
	"github.com/rcm/rcm/internal/workflow"
)

// ListFilter narrows the claim listing.
type ListFilter struct {
	Status      workflow.State
	PatientUHID string
	InsurerName string
}

// PreauthRepository persists pre-authorization requests. It doubles as
// the workflow engine's claim store: the engine's conditional write and
// history append run against the same rows.
type PreauthRepository interface {
	workflow.ClaimStore

	Create(ctx context.Context, p *PreauthRequest) error
	GetByPreauthID(ctx context.Context, preauthID string) (*PreauthRequest, error)
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*PreauthRequest, int, error)
	ContactForClaim(ctx context.Context, preauthID string) (notification.Contact, error)
}
