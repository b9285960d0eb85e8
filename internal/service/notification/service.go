package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/fisioflow/scheduler-api/internal/model"
	"github.com/fisioflow/scheduler-api/pkg/logger"
	"github.com/fisioflow/scheduler-api/pkg/messaging"
)

type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	Recipient string
}

// Service consumes appointment events from the broker and triggers
// downstream messaging. It is fully decoupled from the scheduling path:
// delivery failures are logged and never reach the scheduler.
type Service struct {
	dialer    *gomail.Dialer
	from      string
	recipient string
	logger    *logger.Logger
}

func NewService(cfg SMTPConfig, logger *logger.Logger) *Service {
	return &Service{
		dialer:    gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:      cfg.From,
		recipient: cfg.Recipient,
		logger:    logger,
	}
}

var subscribedEvents = []string{
	model.EventAppointmentCreated,
	model.EventAppointmentMoved,
	model.EventAppointmentCancelled,
}

// Run subscribes to the appointment event channels and dispatches messages
// until the context is cancelled.
func (s *Service) Run(ctx context.Context, broker messaging.Broker) error {
	channels := make(map[string]<-chan []byte, len(subscribedEvents))
	for _, eventType := range subscribedEvents {
		ch, err := broker.Subscribe(ctx, eventType)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", eventType, err)
		}
		channels[eventType] = ch
	}

	s.logger.Info("notification consumer started")

	for eventType, ch := range channels {
		go s.consume(ctx, eventType, ch)
	}

	<-ctx.Done()
	return nil
}

func (s *Service) consume(ctx context.Context, eventType string, ch <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			if err := s.handle(eventType, payload); err != nil {
				s.logger.Error(err, "failed to handle notification", "event_type", eventType)
			}
		}
	}
}

type eventEnvelope struct {
	Appointment *model.Appointment `json:"appointment"`
}

func (s *Service) handle(eventType string, payload []byte) error {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("failed to decode event payload: %w", err)
	}
	if env.Appointment == nil {
		return fmt.Errorf("event payload missing appointment")
	}

	subject, body := s.compose(eventType, env.Appointment)

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.recipient)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	s.logger.Info("notification sent",
		"event_type", eventType,
		"appointment_id", env.Appointment.ID.String())
	return nil
}

func (s *Service) compose(eventType string, a *model.Appointment) (string, string) {
	slot := fmt.Sprintf("%s %s-%s", a.AppointmentDate.Format("2006-01-02"), a.StartTime, a.End())
	switch eventType {
	case model.EventAppointmentCreated:
		return "Appointment booked",
			fmt.Sprintf("Appointment %s booked for %s.", a.ID, slot)
	case model.EventAppointmentMoved:
		return "Appointment rescheduled",
			fmt.Sprintf("Appointment %s moved to %s.", a.ID, slot)
	case model.EventAppointmentCancelled:
		reason := ""
		if a.CancellationReason != nil {
			reason = *a.CancellationReason
		}
		return "Appointment cancelled",
			fmt.Sprintf("Appointment %s on %s was cancelled. Reason: %s", a.ID, slot, reason)
	default:
		return "Appointment update",
			fmt.Sprintf("Appointment %s changed (%s).", a.ID, eventType)
	}
}
