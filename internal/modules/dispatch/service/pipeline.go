package service

import (
	"context"
	"errors"
	"fmt"

	"anoa.com/tutorhub/internal/entity"
	"anoa.com/tutorhub/internal/modules/dispatch/dto"
	dispatchRepo "anoa.com/tutorhub/internal/modules/dispatch/repository"
	notifDto "anoa.com/tutorhub/internal/modules/notification/dto"
	"anoa.com/tutorhub/pkg/apperror"
	"anoa.com/tutorhub/pkg/mailer"
	"anoa.com/tutorhub/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeliveryError reports a notification that was stored but whose mail the
// transport rejected.
type DeliveryError struct {
	NotificationID uuid.UUID
	Err            error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("notification %s stored but mail delivery failed: %v", e.NotificationID, e.Err)
}

func (e *DeliveryError) Unwrap() []error {
	return []error{apperror.ErrDelivery, e.Err}
}

type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
}

type NotificationCreator interface {
	Create(ctx context.Context, in notifDto.CreateInput) (*entity.Notification, error)
}

type Pipeline interface {
	// Deliver renders ev, stores the notification and mails it. On a
	// DeliveryError the stored notification is returned with the error.
	Deliver(ctx context.Context, ev dto.Event) (*entity.Notification, error)
	// NotifyMessage mails an already stored user message to its recipient.
	NotifyMessage(ctx context.Context, n *entity.Notification) error
	// Render produces the document for ev without storing or sending anything.
	Render(ctx context.Context, ev dto.Event) (dto.Document, error)
}

type pipeline struct {
	users         UserFinder
	requests      dispatchRepo.RequestRepository
	notifications NotificationCreator
	sender        mailer.Sender
	appURL        string
	logger        *zap.Logger
}

func NewPipeline(users UserFinder, requests dispatchRepo.RequestRepository, notifications NotificationCreator, sender mailer.Sender, appURL string, logger *zap.Logger) Pipeline {
	return &pipeline{
		users:         users,
		requests:      requests,
		notifications: notifications,
		sender:        sender,
		appURL:        appURL,
		logger:        logger,
	}
}

func (p *pipeline) prepare(ctx context.Context, ev dto.Event) (eventTemplate, dto.Document, error) {
	tpl, ok := templates[ev.Type]
	if !ok {
		return eventTemplate{}, dto.Document{}, apperror.Validation(fmt.Sprintf("unknown event type %q", ev.Type))
	}

	recipient, err := p.users.FindByID(ctx, ev.RecipientID)
	if err != nil {
		return tpl, dto.Document{}, fmt.Errorf("recipient: %w", err)
	}

	var sender *entity.User
	if ev.SenderID != nil {
		sender, err = p.users.FindByID(ctx, *ev.SenderID)
		if err != nil {
			return tpl, dto.Document{}, fmt.Errorf("sender: %w", err)
		}
	}

	if err := tpl.hydrate(ctx, p.requests, &ev); err != nil {
		return tpl, dto.Document{}, err
	}

	doc, err := tpl.render(RenderInput{
		Event:     ev,
		Recipient: *recipient,
		Sender:    sender,
		AppURL:    p.appURL,
	})
	return tpl, doc, err
}

func (p *pipeline) Render(ctx context.Context, ev dto.Event) (dto.Document, error) {
	_, doc, err := p.prepare(ctx, ev)
	return doc, err
}

func (p *pipeline) Deliver(ctx context.Context, ev dto.Event) (*entity.Notification, error) {
	tpl, doc, err := p.prepare(ctx, ev)
	if err != nil {
		p.record(ev.Type, err)
		return nil, err
	}

	input := notifDto.CreateInput{
		RecipientID: ev.RecipientID,
		Title:       doc.Title,
		Body:        doc.Message,
		Type:        tpl.notificationType,
		Metadata:    doc.Metadata,
	}
	if !tpl.systemSender {
		input.SenderID = ev.SenderID
		input.Sanitize = true
	}

	n, err := p.notifications.Create(ctx, input)
	if err != nil {
		p.record(ev.Type, err)
		return nil, err
	}

	if err := p.send(ctx, doc); err != nil {
		derr := &DeliveryError{NotificationID: n.ID, Err: err}
		p.record(ev.Type, derr)
		p.logger.Warn("notification stored but mail failed",
			zap.String("event_type", string(ev.Type)),
			zap.String("notification_id", n.ID.String()),
			zap.Error(err),
		)
		return n, derr
	}

	p.record(ev.Type, nil)
	return n, nil
}

func (p *pipeline) NotifyMessage(ctx context.Context, n *entity.Notification) error {
	recipient := n.Recipient
	if recipient == nil {
		var err error
		recipient, err = p.users.FindByID(ctx, n.RecipientID)
		if err != nil {
			return fmt.Errorf("recipient: %w", err)
		}
	}

	doc, err := renderMessage(RenderInput{
		Event: dto.Event{
			Type:        dto.EventDirectMessage,
			RecipientID: n.RecipientID,
			SenderID:    n.SenderID,
			Message:     &dto.MessagePayload{Title: n.Title, Body: n.Body},
		},
		Recipient: *recipient,
		Sender:    n.Sender,
		AppURL:    p.appURL,
	})
	if err != nil {
		return err
	}

	if err := p.send(ctx, doc); err != nil {
		derr := &DeliveryError{NotificationID: n.ID, Err: err}
		p.record(dto.EventDirectMessage, derr)
		return derr
	}
	p.record(dto.EventDirectMessage, nil)
	return nil
}

func (p *pipeline) send(ctx context.Context, doc dto.Document) error {
	body, err := renderHTML(doc)
	if err != nil {
		return err
	}
	return p.sender.Send(ctx, mailer.Mail{
		To:       doc.RecipientEmail,
		ToName:   doc.RecipientName,
		Subject:  doc.Title,
		HTMLBody: body,
	})
}

func (p *pipeline) record(eventType dto.EventType, err error) {
	status := "sent"
	switch {
	case err == nil:
	case errors.Is(err, apperror.ErrDelivery):
		status = "failed"
	case errors.Is(err, apperror.ErrValidation), errors.Is(err, apperror.ErrNotFound):
		status = "rejected"
	default:
		status = "error"
	}
	label := string(eventType)
	if _, ok := templates[eventType]; !ok {
		label = "unknown"
	}
	metrics.RecordDelivery(label, status)
}
