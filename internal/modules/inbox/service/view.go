package service

import (
	"fmt"

	"anoa.com/tutorhub/internal/entity"
	"anoa.com/tutorhub/pkg/apperror"
	"github.com/google/uuid"
)

type ViewState int

const (
	Closed ViewState = iota
	Viewing
	Replying
)

func (s ViewState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Viewing:
		return "viewing"
	case Replying:
		return "replying"
	}
	return fmt.Sprintf("ViewState(%d)", int(s))
}

// ErrIllegalTransition is returned for a view transition the current state
// does not allow.
var ErrIllegalTransition = fmt.Errorf("illegal view transition: %w", apperror.ErrValidation)

// ViewSession tracks one viewer looking at one notification. It lives for a
// single request and is never stored.
type ViewSession struct {
	state        ViewState
	viewerID     uuid.UUID
	notification *entity.Notification
}

func NewViewSession(viewerID uuid.UUID) *ViewSession {
	return &ViewSession{viewerID: viewerID}
}

func (v *ViewSession) State() ViewState {
	return v.state
}

func (v *ViewSession) Notification() *entity.Notification {
	return v.notification
}

// CanReply reports whether the viewer may start a reply to the open notification.
func (v *ViewSession) CanReply() bool {
	return v.notification != nil &&
		v.notification.IsParticipant(v.viewerID) &&
		!v.notification.IsSystem()
}

func (v *ViewSession) transition(from, to ViewState) error {
	if v.state != from {
		return fmt.Errorf("%s -> %s: %w", v.state, to, ErrIllegalTransition)
	}
	v.state = to
	return nil
}

// Open moves Closed -> Viewing. Only participants may open a notification.
func (v *ViewSession) Open(n *entity.Notification) error {
	if !n.IsParticipant(v.viewerID) {
		return fmt.Errorf("notification: %w", apperror.ErrForbidden)
	}
	if err := v.transition(Closed, Viewing); err != nil {
		return err
	}
	v.notification = n
	return nil
}

// StartReply moves Viewing -> Replying.
func (v *ViewSession) StartReply() error {
	if v.state == Viewing && !v.CanReply() {
		return apperror.Validation("system notifications cannot be replied to")
	}
	return v.transition(Viewing, Replying)
}

// Cancel abandons a reply: Replying -> Viewing.
func (v *ViewSession) Cancel() error {
	return v.transition(Replying, Viewing)
}

// Submit finishes a reply: Replying -> Closed.
func (v *ViewSession) Submit() error {
	if err := v.transition(Replying, Closed); err != nil {
		return err
	}
	v.notification = nil
	return nil
}

// Close leaves the notification: Viewing -> Closed.
func (v *ViewSession) Close() error {
	if err := v.transition(Viewing, Closed); err != nil {
		return err
	}
	v.notification = nil
	return nil
}
