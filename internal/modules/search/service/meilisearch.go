package service

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"anoa.com/tutorhub/internal/entity"
	"github.com/google/uuid"
	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

const messagesIndex = "messages"

type MessageSearch interface {
	IndexNotification(ctx context.Context, n *entity.Notification) error
	SearchIDs(ctx context.Context, userID uuid.UUID, query string, limit int) ([]uuid.UUID, error)
}

type meiliMessageSearch struct {
	client    meilisearch.ServiceManager
	sanitizer *bluemonday.Policy
	logger    *zap.Logger
}

func NewMeiliMessageSearch(client meilisearch.ServiceManager, logger *zap.Logger) MessageSearch {
	s := &meiliMessageSearch{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
	}
	s.initIndex()
	return s
}

func (s *meiliMessageSearch) initIndex() {
	filterableAttrs := []string{"participants", "type"}
	filterableInterface := make([]any, len(filterableAttrs))
	for i, v := range filterableAttrs {
		filterableInterface[i] = v
	}
	if _, err := s.client.Index(messagesIndex).UpdateFilterableAttributes(&filterableInterface); err != nil {
		s.logger.Warn("failed to update messages filterable attributes", zap.Error(err))
	}

	sortableAttrs := []string{"created_at"}
	if _, err := s.client.Index(messagesIndex).UpdateSortableAttributes(&sortableAttrs); err != nil {
		s.logger.Warn("failed to update messages sortable attributes", zap.Error(err))
	}
}

type meiliMessageDoc struct {
	ID           string   `json:"id"`
	ThreadID     string   `json:"thread_id"`
	Title        string   `json:"title"`
	Body         string   `json:"body"`
	Type         string   `json:"type"`
	Participants []string `json:"participants"`
	CreatedAt    int64    `json:"created_at"`
}

func (s *meiliMessageSearch) cleanContentForIndex(content string) string {
	content = strings.ReplaceAll(content, "</p>", " ")
	content = strings.ReplaceAll(content, "<br>", " ")

	cleanText := html.UnescapeString(s.sanitizer.Sanitize(content))
	return strings.Join(strings.Fields(cleanText), " ")
}

func messageDoc(n *entity.Notification, clean func(string) string) meiliMessageDoc {
	participants := []string{n.RecipientID.String()}
	if n.SenderID != nil && *n.SenderID != n.RecipientID {
		participants = append(participants, n.SenderID.String())
	}
	return meiliMessageDoc{
		ID:           n.ID.String(),
		ThreadID:     n.ThreadID.String(),
		Title:        clean(n.Title),
		Body:         clean(n.Body),
		Type:         string(n.Type),
		Participants: participants,
		CreatedAt:    n.CreatedAt.Unix(),
	}
}

func (s *meiliMessageSearch) IndexNotification(_ context.Context, n *entity.Notification) error {
	doc := messageDoc(n, s.cleanContentForIndex)
	task, err := s.client.Index(messagesIndex).AddDocuments([]meiliMessageDoc{doc}, strPtr("id"))
	if err != nil {
		return err
	}
	s.logger.Debug("indexed notification", zap.String("notification_id", doc.ID), zap.Int64("task_uid", task.TaskUID))
	return nil
}

type searchHits struct {
	Hits []struct {
		ID string `json:"id"`
	} `json:"hits"`
}

func (s *meiliMessageSearch) SearchIDs(_ context.Context, userID uuid.UUID, query string, limit int) ([]uuid.UUID, error) {
	raw, err := s.client.Index(messagesIndex).SearchRaw(query, &meilisearch.SearchRequest{
		Filter:               fmt.Sprintf("participants = '%s'", userID.String()),
		AttributesToRetrieve: []string{"id"},
		Limit:                int64(limit),
	})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var res searchHits
	if err := json.Unmarshal(*raw, &res); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := uuid.Parse(h.ID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func strPtr(s string) *string {
	return &s
}
