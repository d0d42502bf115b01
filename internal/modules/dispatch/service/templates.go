package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"anoa.com/tutorhub/internal/entity"
	"anoa.com/tutorhub/internal/modules/dispatch/dto"
	dispatchRepo "anoa.com/tutorhub/internal/modules/dispatch/repository"
	"anoa.com/tutorhub/internal/modules/inbox/roles"
	"anoa.com/tutorhub/pkg/apperror"
)

// RenderInput is everything a template may read.
type RenderInput struct {
	Event     dto.Event
	Recipient entity.User
	Sender    *entity.User
	AppURL    string
}

type eventTemplate struct {
	notificationType entity.NotificationType
	// systemSender stores the notification without a sender.
	systemSender bool
	// hydrate completes the payload from stored requests. It may read, never write.
	hydrate func(ctx context.Context, requests dispatchRepo.RequestRepository, ev *dto.Event) error
	render  func(in RenderInput) (dto.Document, error)
}

type payoutCopy struct {
	title   string
	message string // %[1]s amount, %[2]s payment method
}

var templates = map[dto.EventType]eventTemplate{
	dto.EventPayoutApproved: {
		notificationType: entity.TypePayout,
		systemSender:     true,
		hydrate:          hydratePayout,
		render: renderPayout(dto.EventPayoutApproved, payoutCopy{
			title:   "Payout approved",
			message: "Your payout request of %[1]s has been approved and will be sent to your %[2]s account shortly.",
		}),
	},
	dto.EventPayoutRejected: {
		notificationType: entity.TypePayout,
		systemSender:     true,
		hydrate:          hydratePayout,
		render: renderPayout(dto.EventPayoutRejected, payoutCopy{
			title:   "Payout request declined",
			message: "Your payout request of %[1]s to your %[2]s account was declined.",
		}),
	},
	dto.EventPayoutPaid: {
		notificationType: entity.TypePayout,
		systemSender:     true,
		hydrate:          hydratePayout,
		render: renderPayout(dto.EventPayoutPaid, payoutCopy{
			title:   "Payout sent",
			message: "We have sent %[1]s to your %[2]s account.",
		}),
	},
	dto.EventVerificationScheduled: {
		notificationType: entity.TypeVerification,
		systemSender:     true,
		hydrate:          hydrateVerification,
		render:           renderVerification,
	},
	dto.EventDirectMessage: {
		notificationType: entity.TypeMessage,
		hydrate:          checkMessage,
		render:           renderMessage,
	},
}

// EventTypes lists every event the pipeline can deliver.
func EventTypes() []dto.EventType {
	return []dto.EventType{
		dto.EventPayoutApproved,
		dto.EventPayoutRejected,
		dto.EventPayoutPaid,
		dto.EventVerificationScheduled,
		dto.EventDirectMessage,
	}
}

func hydratePayout(ctx context.Context, requests dispatchRepo.RequestRepository, ev *dto.Event) error {
	if ev.Payout == nil {
		return apperror.Validation("payout payload is required")
	}
	p := *ev.Payout
	ev.Payout = &p

	if p.RequestID != nil {
		req, err := requests.FindPayout(ctx, *p.RequestID)
		if err != nil {
			return err
		}
		if req.TeacherID != ev.RecipientID {
			return apperror.Validation("payout request belongs to another user")
		}
		if p.Amount == 0 {
			p.Amount = req.Amount
		}
		if p.Currency == "" {
			p.Currency = req.Currency
		}
		if p.PaymentMethod == "" {
			p.PaymentMethod = req.PaymentMethod
		}
		if p.RequestDate == nil && !req.RequestDate.IsZero() {
			d := req.RequestDate
			p.RequestDate = &d
		}
		if p.Reason == "" && req.RejectionReason != nil {
			p.Reason = *req.RejectionReason
		}
	}

	if p.Amount <= 0 {
		return apperror.Validation("payout amount must be greater than zero")
	}
	return nil
}

func renderPayout(eventType dto.EventType, text payoutCopy) func(RenderInput) (dto.Document, error) {
	return func(in RenderInput) (dto.Document, error) {
		p := in.Event.Payout
		if p == nil {
			return dto.Document{}, apperror.Validation("payout payload is required")
		}

		currency := currencyOrDefault(p.Currency)
		method := paymentMethodLabel(p.PaymentMethod)
		amount := amountLabel(currency, p.Amount)
		actionURL := payoutActionURL(in.AppURL, in.Recipient.Role, p.RequestID)

		msg := fmt.Sprintf(text.message, amount, method)
		if eventType == dto.EventPayoutRejected && p.Reason != "" {
			msg += " Reason: " + p.Reason
		}

		metadata := entity.Metadata{
			"event":          string(eventType),
			"amount":         p.Amount,
			"currency":       currency,
			"payment_method": method,
			"action_url":     actionURL,
		}
		if p.RequestID != nil {
			metadata["payout_request_id"] = p.RequestID.String()
		}

		return dto.Document{
			Template:         "payout",
			RecipientName:    in.Recipient.Name,
			RecipientEmail:   in.Recipient.Email,
			Title:            text.title,
			Message:          msg,
			NotificationType: entity.TypePayout,
			ActionURL:        actionURL,
			Amount:           p.Amount,
			AmountLabel:      amount,
			Currency:         currency,
			PaymentMethod:    method,
			RequestDate:      formatRequestDate(p.RequestDate),
			Reason:           p.Reason,
			Metadata:         metadata,
		}, nil
	}
}

func hydrateVerification(ctx context.Context, requests dispatchRepo.RequestRepository, ev *dto.Event) error {
	if ev.Verification == nil {
		return apperror.Validation("verification payload is required")
	}
	v := *ev.Verification
	ev.Verification = &v

	if v.RequestID == nil {
		return nil
	}
	req, err := requests.FindVerification(ctx, *v.RequestID)
	if err != nil {
		return err
	}
	if req.TeacherID != ev.RecipientID {
		return apperror.Validation("verification request belongs to another user")
	}
	if v.ScheduledDate == "" && req.ScheduledAt != nil {
		v.ScheduledDate = req.ScheduledAt.UTC().Format(time.RFC3339)
	}
	if v.Platform == "" && req.Platform != nil {
		v.Platform = *req.Platform
	}
	if v.MeetingLink == "" && req.MeetingLink != nil {
		v.MeetingLink = *req.MeetingLink
	}
	if v.Notes == "" && req.Notes != nil {
		v.Notes = *req.Notes
	}
	return nil
}

func renderVerification(in RenderInput) (dto.Document, error) {
	v := in.Event.Verification
	if v == nil {
		return dto.Document{}, apperror.Validation("verification payload is required")
	}

	scheduled, err := parseScheduledDate(v.ScheduledDate)
	if err != nil {
		return dto.Document{}, err
	}
	platform := platformLabel(v.Platform)
	when := formatScheduled(scheduled)

	msg := fmt.Sprintf("Your verification call is scheduled for %s", when)
	if platform != "" {
		msg += " on " + platform
	}
	msg += "."

	actionURL := verificationActionURL(in.AppURL)
	metadata := entity.Metadata{
		"event":          string(dto.EventVerificationScheduled),
		"scheduled_date": scheduled.Format(time.RFC3339),
		"platform":       platform,
		"action_url":     actionURL,
	}
	if v.MeetingLink != "" {
		metadata["meeting_link"] = v.MeetingLink
	}
	if v.RequestID != nil {
		metadata["verification_request_id"] = v.RequestID.String()
	}

	return dto.Document{
		Template:         "verification",
		RecipientName:    in.Recipient.Name,
		RecipientEmail:   in.Recipient.Email,
		Title:            "Verification call scheduled",
		Message:          msg,
		NotificationType: entity.TypeVerification,
		ActionURL:        actionURL,
		PlatformLabel:    platform,
		ScheduledDate:    &scheduled,
		ScheduledText:    when,
		MeetingLink:      v.MeetingLink,
		Notes:            v.Notes,
		Metadata:         metadata,
	}, nil
}

func checkMessage(_ context.Context, _ dispatchRepo.RequestRepository, ev *dto.Event) error {
	if ev.SenderID == nil {
		return apperror.Validation("direct messages need a sender")
	}
	if ev.Message == nil || strings.TrimSpace(ev.Message.Body) == "" {
		return apperror.Validation("message body is required")
	}
	return nil
}

func renderMessage(in RenderInput) (dto.Document, error) {
	m := in.Event.Message
	if m == nil {
		return dto.Document{}, apperror.Validation("message payload is required")
	}

	senderName := "Tutorhub"
	if in.Sender != nil && in.Sender.Name != "" {
		senderName = in.Sender.Name
	}
	title := strings.TrimSpace(m.Title)
	if title == "" {
		title = "New message from " + senderName
	}
	actionURL := baseURL(in.AppURL) + roles.InboxPath(in.Recipient.Role)

	return dto.Document{
		Template:         "message",
		RecipientName:    in.Recipient.Name,
		RecipientEmail:   in.Recipient.Email,
		Title:            title,
		Message:          m.Body,
		NotificationType: entity.TypeMessage,
		ActionURL:        actionURL,
		SenderName:       senderName,
		Metadata: entity.Metadata{
			"event":      string(dto.EventDirectMessage),
			"action_url": actionURL,
		},
	}, nil
}
