package service

import (
	"context"
	"fmt"
	"time"

	"anoa.com/tutorhub/internal/entity"
	"anoa.com/tutorhub/internal/modules/inbox/roles"
	notifDto "anoa.com/tutorhub/internal/modules/notification/dto"
	notifService "anoa.com/tutorhub/internal/modules/notification/service"
	"anoa.com/tutorhub/pkg/apperror"
	"anoa.com/tutorhub/pkg/ratelimiter"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Directory answers who a sender is allowed to reach.
type Directory interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.User, error)
	SharesSession(ctx context.Context, guardianID, teacherID uuid.UUID) (bool, error)
}

// Announcer mails a stored user message to its recipient.
type Announcer interface {
	NotifyMessage(ctx context.Context, n *entity.Notification) error
}

// View is a notification as shown to one viewer.
type View struct {
	Notification *entity.Notification
	CanReply     bool
	State        ViewState
}

type InboxService interface {
	CreateForRole(ctx context.Context, role entity.Role, senderID uuid.UUID, req notifDto.CreateNotificationRequest) ([]entity.Notification, error)
	ShowForRole(ctx context.Context, role entity.Role, id, viewerID uuid.UUID) (*View, error)
	ReplyForRole(ctx context.Context, role entity.Role, viewerID uuid.UUID, req notifDto.ReplyRequest) (*entity.Notification, error)
	ListForRole(ctx context.Context, role entity.Role, viewerID uuid.UUID, filter notifDto.ListFilter) ([]entity.Notification, error)
	MarkReadForRole(ctx context.Context, role entity.Role, id, viewerID uuid.UUID) (*entity.Notification, error)
	RespondForRole(ctx context.Context, role entity.Role, id, viewerID uuid.UUID, accept bool) (*entity.Notification, error)
	SearchForRole(ctx context.Context, role entity.Role, viewerID uuid.UUID, query notifDto.SearchQuery) ([]entity.Notification, error)
}

type Option func(*inboxService)

// WithRateLimit applies a per-sender cooldown to new messages and replies.
// A nil client disables it.
func WithRateLimit(rdb *redis.Client, limit time.Duration) Option {
	return func(s *inboxService) {
		s.rdb = rdb
		s.limit = limit
	}
}

type inboxService struct {
	store     notifService.NotificationService
	directory Directory
	announcer Announcer
	rdb       *redis.Client
	limit     time.Duration
	logger    *zap.Logger
}

func NewInboxService(store notifService.NotificationService, directory Directory, announcer Announcer, logger *zap.Logger, opts ...Option) InboxService {
	s := &inboxService{
		store:     store,
		directory: directory,
		announcer: announcer,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func configFor(role entity.Role) (roles.RoleConfig, error) {
	cfg, ok := roles.For(role)
	if !ok {
		return roles.RoleConfig{}, fmt.Errorf("role %q has no inbox: %w", role, apperror.ErrForbidden)
	}
	return cfg, nil
}

// CreateForRole stores one notification per recipient. Recipients are
// stored in order; if a write fails, the ones already stored are kept,
// announced and returned together with the error.
func (s *inboxService) CreateForRole(ctx context.Context, role entity.Role, senderID uuid.UUID, req notifDto.CreateNotificationRequest) ([]entity.Notification, error) {
	cfg, err := configFor(role)
	if err != nil {
		return nil, err
	}

	notifType := entity.NotificationType(req.Type)
	if !notifType.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown notification type %q", req.Type))
	}
	if !cfg.AllowsType(notifType) {
		return nil, fmt.Errorf("%s may not send %s notifications: %w", role, notifType, apperror.ErrForbidden)
	}

	recipients := req.Recipients()
	if len(recipients) == 0 {
		return nil, apperror.Validation("at least one recipient is required")
	}
	if err := s.checkRecipients(ctx, cfg, senderID, recipients); err != nil {
		return nil, err
	}

	release, err := ratelimiter.Guard(ctx, s.rdb, senderID, ratelimiter.ScopeMessage, s.limit)
	if err != nil {
		return nil, err
	}

	sender := senderID
	created := make([]entity.Notification, 0, len(recipients))
	for _, recipientID := range recipients {
		n, err := s.store.Create(ctx, notifDto.CreateInput{
			SenderID:    &sender,
			RecipientID: recipientID,
			Title:       req.Title,
			Body:        req.Body,
			Type:        notifType,
			Metadata:    req.Metadata,
			Sanitize:    true,
		})
		if err != nil {
			if len(created) == 0 {
				release()
				return nil, err
			}
			s.announceAll(ctx, created)
			return created, fmt.Errorf("stored %d of %d notifications: %w", len(created), len(recipients), err)
		}
		created = append(created, *n)
	}

	s.announceAll(ctx, created)
	return created, nil
}

func (s *inboxService) announceAll(ctx context.Context, ns []entity.Notification) {
	for i := range ns {
		s.announce(ctx, &ns[i])
	}
}

// checkRecipients rejects the whole request if any recipient is out of reach.
func (s *inboxService) checkRecipients(ctx context.Context, cfg roles.RoleConfig, senderID uuid.UUID, ids []uuid.UUID) error {
	for _, id := range ids {
		if id == senderID {
			return apperror.Validation("you cannot send a notification to yourself")
		}
	}

	users, err := s.directory.FindByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load recipients: %w", err)
	}
	if len(users) != len(ids) {
		return fmt.Errorf("recipient: %w", apperror.ErrNotFound)
	}
	if cfg.AnyRecipient {
		return nil
	}

	for _, u := range users {
		rule, ok := cfg.RuleFor(u.Role)
		if !ok {
			return fmt.Errorf("%s may not message %s accounts: %w", cfg.Role, u.Role, apperror.ErrForbidden)
		}
		if !rule.Linked {
			continue
		}

		guardianID, teacherID := senderID, u.ID
		if cfg.Role == entity.RoleTeacher {
			guardianID, teacherID = u.ID, senderID
		}
		linked, err := s.directory.SharesSession(ctx, guardianID, teacherID)
		if err != nil {
			return fmt.Errorf("failed to check session link: %w", err)
		}
		if !linked {
			return fmt.Errorf("recipient %s is not linked to you: %w", u.ID, apperror.ErrForbidden)
		}
	}
	return nil
}

func (s *inboxService) announce(ctx context.Context, n *entity.Notification) {
	if s.announcer == nil {
		return
	}
	if err := s.announcer.NotifyMessage(ctx, n); err != nil {
		s.logger.Warn("failed to announce message",
			zap.String("notification_id", n.ID.String()),
			zap.Error(err),
		)
	}
}

// open loads id and opens it for viewerID. Non-participants are forbidden
// whatever their role.
func (s *inboxService) open(ctx context.Context, role entity.Role, id, viewerID uuid.UUID) (*ViewSession, error) {
	if _, err := configFor(role); err != nil {
		return nil, err
	}
	n, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	session := NewViewSession(viewerID)
	if err := session.Open(n); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *inboxService) ShowForRole(ctx context.Context, role entity.Role, id, viewerID uuid.UUID) (*View, error) {
	session, err := s.open(ctx, role, id, viewerID)
	if err != nil {
		return nil, err
	}

	n := session.Notification()
	if n.RecipientID == viewerID && !n.IsRead() {
		if n, err = s.store.MarkRead(ctx, id, viewerID); err != nil {
			return nil, err
		}
	}

	return &View{
		Notification: n,
		CanReply:     session.CanReply(),
		State:        session.State(),
	}, nil
}

func (s *inboxService) ReplyForRole(ctx context.Context, role entity.Role, viewerID uuid.UUID, req notifDto.ReplyRequest) (*entity.Notification, error) {
	session, err := s.open(ctx, role, req.ParentID, viewerID)
	if err != nil {
		return nil, err
	}
	if err := session.StartReply(); err != nil {
		return nil, err
	}

	release, err := ratelimiter.Guard(ctx, s.rdb, viewerID, ratelimiter.ScopeMessage, s.limit)
	if err != nil {
		_ = session.Cancel()
		return nil, err
	}

	reply, err := s.store.Reply(ctx, req.ParentID, viewerID, req.Body)
	if err != nil {
		release()
		_ = session.Cancel()
		return nil, err
	}
	if err := session.Submit(); err != nil {
		return nil, err
	}

	s.announce(ctx, reply)
	return reply, nil
}

func (s *inboxService) ListForRole(ctx context.Context, role entity.Role, viewerID uuid.UUID, filter notifDto.ListFilter) ([]entity.Notification, error) {
	if _, err := configFor(role); err != nil {
		return nil, err
	}
	return s.store.ListForUser(ctx, viewerID, filter)
}

func (s *inboxService) MarkReadForRole(ctx context.Context, role entity.Role, id, viewerID uuid.UUID) (*entity.Notification, error) {
	session, err := s.open(ctx, role, id, viewerID)
	if err != nil {
		return nil, err
	}
	n := session.Notification()
	if n.RecipientID != viewerID {
		return nil, apperror.Validation("only the recipient can mark a notification as read")
	}
	return s.store.MarkRead(ctx, id, viewerID)
}

func (s *inboxService) RespondForRole(ctx context.Context, role entity.Role, id, viewerID uuid.UUID, accept bool) (*entity.Notification, error) {
	if _, err := s.open(ctx, role, id, viewerID); err != nil {
		return nil, err
	}
	return s.store.Respond(ctx, id, viewerID, accept)
}

func (s *inboxService) SearchForRole(ctx context.Context, role entity.Role, viewerID uuid.UUID, query notifDto.SearchQuery) ([]entity.Notification, error) {
	if _, err := configFor(role); err != nil {
		return nil, err
	}
	return s.store.Search(ctx, viewerID, query.Query, query.Limit)
}
