package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Service is the invoice ledger. The booking engine drives it through the
// create/void/reinstate methods; staff settle invoices through MarkPaid.
type Service struct {
	invoices InvoiceRepository
}

func NewService(invoices InvoiceRepository) *Service {
	return &Service{invoices: invoices}
}

// CreateForAppointment opens an unpaid invoice for a freshly admitted
// appointment.
func (s *Service) CreateForAppointment(ctx context.Context, appointmentID uuid.UUID, amount int64) error {
	if appointmentID == uuid.Nil {
		return fmt.Errorf("appointment_id is required")
	}
	if amount < 0 {
		return fmt.Errorf("invoice amount must not be negative")
	}
	return s.invoices.Create(ctx, &Invoice{
		AppointmentID: appointmentID,
		Amount:        amount,
		Status:        StatusUnpaid,
	})
}

// VoidForAppointment cancels the invoice when its appointment is cancelled.
func (s *Service) VoidForAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	return s.invoices.UpdateStatusByAppointment(ctx, appointmentID, StatusCancelled)
}

// ReinstateForAppointment reopens the invoice when a cancelled appointment
// is restored. A paid invoice stays paid; only the cancelled marker is
// cleared.
func (s *Service) ReinstateForAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	inv, err := s.invoices.GetByAppointment(ctx, appointmentID)
	if err != nil {
		return fmt.Errorf("invoice for appointment %s: %w", appointmentID, err)
	}
	if inv.Status == StatusPaid {
		return nil
	}
	return s.invoices.UpdateStatus(ctx, inv.ID, StatusUnpaid)
}

func (s *Service) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	return s.invoices.GetByAppointment(ctx, appointmentID)
}

// MarkPaid settles an invoice. Cancelled invoices cannot be settled.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID) error {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("invoice %s: %w", id, err)
	}
	switch inv.Status {
	case StatusPaid:
		return nil
	case StatusCancelled:
		return fmt.Errorf("invoice %s is cancelled", id)
	}
	return s.invoices.MarkPaid(ctx, id)
}
