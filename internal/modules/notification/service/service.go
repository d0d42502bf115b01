package service

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"anoa.com/tutorhub/internal/entity"
	"anoa.com/tutorhub/internal/modules/notification/dto"
	notifRepo "anoa.com/tutorhub/internal/modules/notification/repository"
	"anoa.com/tutorhub/pkg/apperror"
	"anoa.com/tutorhub/pkg/metrics"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

const defaultListLimit = 50

// Broadcaster pushes a freshly stored notification to live listeners.
type Broadcaster interface {
	Publish(ctx context.Context, n *entity.Notification) error
}

// Indexer keeps the message search index in step with the store.
type Indexer interface {
	IndexNotification(ctx context.Context, n *entity.Notification) error
	SearchIDs(ctx context.Context, userID uuid.UUID, query string, limit int) ([]uuid.UUID, error)
}

type NotificationService interface {
	Create(ctx context.Context, in dto.CreateInput) (*entity.Notification, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Notification, error)
	MarkRead(ctx context.Context, id, viewerID uuid.UUID) (*entity.Notification, error)
	Reply(ctx context.Context, parentID, senderID uuid.UUID, body string) (*entity.Notification, error)
	ListForUser(ctx context.Context, userID uuid.UUID, filter dto.ListFilter) ([]entity.Notification, error)
	Respond(ctx context.Context, id, viewerID uuid.UUID, accept bool) (*entity.Notification, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	Search(ctx context.Context, userID uuid.UUID, query string, limit int) ([]entity.Notification, error)
}

type Option func(*notificationService)

func WithBroadcaster(b Broadcaster) Option {
	return func(s *notificationService) { s.broadcaster = b }
}

func WithIndexer(i Indexer) Option {
	return func(s *notificationService) { s.indexer = i }
}

func WithClock(now func() time.Time) Option {
	return func(s *notificationService) { s.now = now }
}

const maxSanitizePasses = 4

type notificationService struct {
	repo        notifRepo.NotificationRepository
	broadcaster Broadcaster
	indexer     Indexer
	sanitizer   *bluemonday.Policy
	logger      *zap.Logger
	now         func() time.Time
}

func NewNotificationService(repo notifRepo.NotificationRepository, logger *zap.Logger, opts ...Option) NotificationService {
	s := &notificationService{
		repo:      repo,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *notificationService) clean(text string, sanitize bool) string {
	text = strings.TrimSpace(text)
	if !sanitize {
		return text
	}
	// Decoding can turn escaped markup into live markup, so sanitize again
	// until decoding no longer changes the text.
	for range maxSanitizePasses {
		next := html.UnescapeString(s.sanitizer.Sanitize(text))
		if next == text {
			return strings.TrimSpace(text)
		}
		text = next
	}
	return strings.TrimSpace(s.sanitizer.Sanitize(text))
}

func (s *notificationService) Create(ctx context.Context, in dto.CreateInput) (*entity.Notification, error) {
	in.Title = s.clean(in.Title, in.Sanitize)
	in.Body = s.clean(in.Body, in.Sanitize)

	if err := validateCreate(in); err != nil {
		return nil, err
	}

	now := s.now()
	n := &entity.Notification{
		SenderID:    in.SenderID,
		RecipientID: in.RecipientID,
		Title:       in.Title,
		Body:        in.Body,
		Type:        in.Type,
		Metadata:    in.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Type == entity.TypeRequest {
		status := entity.StatusPending
		n.Status = &status
	}

	return s.persist(ctx, n)
}

func (s *notificationService) persist(ctx context.Context, n *entity.Notification) (*entity.Notification, error) {
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to store notification: %w", err)
	}
	metrics.RecordNotificationCreated(string(n.Type))

	stored, err := s.repo.FindByID(ctx, n.ID)
	if err != nil {
		return nil, err
	}

	s.fanOut(ctx, stored)
	return stored, nil
}

// fanOut is best-effort: the stored row is the source of truth.
func (s *notificationService) fanOut(ctx context.Context, n *entity.Notification) {
	if s.broadcaster != nil {
		if err := s.broadcaster.Publish(ctx, n); err != nil {
			s.logger.Warn("failed to publish notification", zap.String("notification_id", n.ID.String()), zap.Error(err))
		}
	}
	if s.indexer != nil {
		if err := s.indexer.IndexNotification(ctx, n); err != nil {
			s.logger.Warn("failed to index notification", zap.String("notification_id", n.ID.String()), zap.Error(err))
		}
	}
}

func (s *notificationService) Get(ctx context.Context, id uuid.UUID) (*entity.Notification, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *notificationService) MarkRead(ctx context.Context, id, viewerID uuid.UUID) (*entity.Notification, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.RecipientID != viewerID {
		return nil, fmt.Errorf("notification: %w", apperror.ErrNotFound)
	}
	if n.IsRead() {
		return n, nil
	}

	if _, err := s.repo.MarkRead(ctx, id, viewerID, s.now()); err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}

	// Re-read so a concurrent viewer's earlier timestamp wins.
	return s.repo.FindByID(ctx, id)
}

func (s *notificationService) Reply(ctx context.Context, parentID, senderID uuid.UUID, body string) (*entity.Notification, error) {
	body = s.clean(body, true)
	if body == "" {
		return nil, apperror.Validation("body is required")
	}

	parent, err := s.repo.FindByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if !parent.IsParticipant(senderID) {
		return nil, fmt.Errorf("notification: %w", apperror.ErrNotFound)
	}
	if parent.IsSystem() {
		return nil, apperror.Validation("system notifications cannot be replied to")
	}

	// A reply never predates its parent, even with clock skew between writers.
	now := s.now()
	if now.Before(parent.CreatedAt) {
		now = parent.CreatedAt
	}

	sender := senderID
	reply := &entity.Notification{
		SenderID:    &sender,
		RecipientID: *parent.Counterpart(senderID),
		ParentID:    &parent.ID,
		ThreadID:    parent.ThreadID,
		Title:       replyTitle(parent.Title),
		Body:        body,
		Type:        parent.Type,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	return s.persist(ctx, reply)
}

func replyTitle(title string) string {
	if strings.HasPrefix(strings.ToLower(title), "re: ") {
		return title
	}
	return "Re: " + title
}

func (s *notificationService) ListForUser(ctx context.Context, userID uuid.UUID, filter dto.ListFilter) ([]entity.Notification, error) {
	if filter.Type != "" && !entity.NotificationType(filter.Type).Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown notification type %q", filter.Type))
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}

	ns, err := s.repo.ListForUser(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return threadOrder(ns), nil
}

// threadOrder takes rows sorted newest first and keeps each thread at the
// position of its newest row, with the thread's own rows in creation order.
func threadOrder(ns []entity.Notification) []entity.Notification {
	var order []uuid.UUID
	groups := make(map[uuid.UUID][]entity.Notification)
	for _, n := range ns {
		if _, ok := groups[n.ThreadID]; !ok {
			order = append(order, n.ThreadID)
		}
		groups[n.ThreadID] = append(groups[n.ThreadID], n)
	}

	out := make([]entity.Notification, 0, len(ns))
	for _, threadID := range order {
		g := groups[threadID]
		for i := len(g) - 1; i >= 0; i-- {
			out = append(out, g[i])
		}
	}
	return out
}

func (s *notificationService) Respond(ctx context.Context, id, viewerID uuid.UUID, accept bool) (*entity.Notification, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.RecipientID != viewerID {
		return nil, fmt.Errorf("notification: %w", apperror.ErrNotFound)
	}
	if n.Type != entity.TypeRequest || n.Status == nil {
		return nil, apperror.Validation("only requests can be accepted or declined")
	}
	if *n.Status != entity.StatusPending {
		return nil, apperror.Validation("request has already been answered")
	}

	status := entity.StatusDeclined
	if accept {
		status = entity.StatusAccepted
	}

	changed, err := s.repo.UpdateStatus(ctx, id, viewerID, status, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to update request status: %w", err)
	}
	if changed == 0 {
		return nil, apperror.Validation("request has already been answered")
	}

	return s.repo.FindByID(ctx, id)
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID, s.now())
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

var errSearchDisabled = apperror.New(http.StatusServiceUnavailable, "search is not available", apperror.ErrInternal)

func (s *notificationService) Search(ctx context.Context, userID uuid.UUID, query string, limit int) ([]entity.Notification, error) {
	if s.indexer == nil {
		return nil, errSearchDisabled
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []entity.Notification{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	ids, err := s.indexer.SearchIDs(ctx, userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search notifications: %w", err)
	}
	// The index is only a hint; participation is re-checked against the store.
	return s.repo.FindByIDsForUser(ctx, ids, userID)
}
