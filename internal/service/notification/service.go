// Package notification queues outgoing mail and domain events in the outbox.
// Delivery happens in the outbox processor.
package notification

import (
	"context"
	"fmt"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/repository"
	"github.com/jwalitptl/neuroscan-api/pkg/logger"
)

const (
	subjectConfirmation = "Email Verification Code"
	subjectRejection    = "Account Rejection Notice"
	subjectRecord       = "Your Record"

	rejectionBody = "There is an issue in your background check. Your account has been deleted."
)

type Service interface {
	Enqueue(ctx context.Context, eventType string, payload interface{}) error
	SendConfirmationCode(ctx context.Context, email, code string) error
	SendRejection(ctx context.Context, email string) error
	SendRecord(ctx context.Context, record *model.PatientRecord) error
}

type service struct {
	outbox repository.OutboxRepository
	log    *logger.Logger
}

func NewService(outbox repository.OutboxRepository, l *logger.Logger) Service {
	if l == nil {
		l = logger.FromGlobal()
	}
	return &service{outbox: outbox, log: l.Named("notification")}
}

func (s *service) Enqueue(ctx context.Context, eventType string, payload interface{}) error {
	event, err := model.NewOutboxEvent(eventType, payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", eventType, err)
	}
	if err := s.outbox.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to queue %s event: %w", eventType, err)
	}
	s.log.Debug("Queued outbox event", "event_id", event.ID.String(), "event_type", eventType)
	return nil
}

func (s *service) email(ctx context.Context, to, subject, body string) error {
	return s.Enqueue(ctx, model.EventEmailNotification, model.EmailNotification{
		To:      to,
		Subject: subject,
		Body:    body,
	})
}

func (s *service) SendConfirmationCode(ctx context.Context, email, code string) error {
	return s.email(ctx, email, subjectConfirmation, fmt.Sprintf("Your confirmation code is: %s", code))
}

func (s *service) SendRejection(ctx context.Context, email string) error {
	return s.email(ctx, email, subjectRejection, rejectionBody)
}

// SendRecord mails the patient a plain text summary of the record.
func (s *service) SendRecord(ctx context.Context, r *model.PatientRecord) error {
	return s.email(ctx, r.Email, subjectRecord, RecordSummary(r))
}

func RecordSummary(r *model.PatientRecord) string {
	age := "None"
	if r.Age != nil {
		age = fmt.Sprintf("%d", *r.Age)
	}
	return fmt.Sprintf("Name: %s\nEmail: %s\nAge: %s\nScan: %s\nReport: %s",
		r.Name, r.Email, age, orNone(r.ScanResult), orNone(r.Report))
}

func orNone(s *string) string {
	if s == nil {
		return "None"
	}
	return *s
}
