package billing

import (
	"context"

	"github.com/google/uuid"
)

type InvoiceRepository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateStatusByAppointment(ctx context.Context, appointmentID uuid.UUID, status string) error
	MarkPaid(ctx context.Context, id uuid.UUID) error
}
