package service

import (
	"context"
	"encoding/json"
	"fmt"

	"anoa.com/tutorhub/internal/entity"
	"anoa.com/tutorhub/internal/modules/notification/dto"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func ChannelFor(userID uuid.UUID) string {
	return fmt.Sprintf("user_notifications:%s", userID.String())
}

type redisBroadcaster struct {
	client *redis.Client
}

func NewRedisBroadcaster(client *redis.Client) Broadcaster {
	return &redisBroadcaster{client: client}
}

func (b *redisBroadcaster) Publish(ctx context.Context, n *entity.Notification) error {
	payload, err := json.Marshal(dto.ToResponse(n))
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, ChannelFor(n.RecipientID), payload).Err()
}
