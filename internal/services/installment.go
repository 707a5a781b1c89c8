package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const dueDateLayout = "2006-01-02"

// InstallmentSchedule is the next-due view of a user's installment plan.
type InstallmentSchedule struct {
	FullyPaid         bool   `json:"fullyPaid"`
	InstallmentNumber int    `json:"installmentNumber,omitempty"`
	TotalInstallments int    `json:"totalInstallments"`
	PaidInstallments  int    `json:"paidInstallments"`
	Remaining         int    `json:"remaining"`
	NextDueDate       string `json:"nextDueDate,omitempty"`
}

// InstallmentService derives installment schedules from successful payments.
type InstallmentService struct {
	payments *PaymentStore
}

// NewInstallmentService constructs an InstallmentService.
func NewInstallmentService(payments *PaymentStore) *InstallmentService {
	return &InstallmentService{payments: payments}
}

// NextDue computes the user's next installment. The earliest successful payment
// anchors the schedule and its plan id is the installment count.
func (s *InstallmentService) NextDue(ctx context.Context, userID uuid.UUID) (*InstallmentSchedule, error) {
	paid, err := s.payments.ListSuccessfulByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(paid) == 0 {
		return nil, fmt.Errorf("%w: no successful payments for user", ErrPaymentNotFound)
	}

	anchor := paid[0]
	total, err := strconv.Atoi(strings.TrimSpace(anchor.PlanID))
	if err != nil || total <= 0 {
		return nil, fmt.Errorf("%w: plan %q is not an installment count", ErrValidation, anchor.PlanID)
	}

	n := len(paid)
	if n >= total {
		return &InstallmentSchedule{
			FullyPaid:         true,
			TotalInstallments: total,
			PaidInstallments:  n,
		}, nil
	}

	return &InstallmentSchedule{
		InstallmentNumber: n + 1,
		TotalInstallments: total,
		PaidInstallments:  n,
		Remaining:         total - n,
		NextDueDate:       EndOfMonth(anchor.CreatedAt, n).Format(dueDateLayout),
	}, nil
}

// EndOfMonth returns the last calendar day of the month offset months after t.
func EndOfMonth(t time.Time, offset int) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+time.Month(offset)+1, 0, 0, 0, 0, 0, time.UTC)
}
