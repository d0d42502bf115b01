package service

import (
	"fmt"
	"strings"

	"anoa.com/tutorhub/internal/entity"
	"anoa.com/tutorhub/internal/modules/notification/dto"
	"anoa.com/tutorhub/pkg/apperror"
	"github.com/google/uuid"
)

func validateCreate(in dto.CreateInput) error {
	if !in.Type.Valid() {
		names := make([]string, 0, len(entity.NotificationTypes()))
		for _, t := range entity.NotificationTypes() {
			names = append(names, string(t))
		}
		return apperror.Validation(fmt.Sprintf("type must be one of: %s", strings.Join(names, ", ")))
	}
	if in.RecipientID == uuid.Nil {
		return apperror.Validation("recipient is required")
	}
	if in.Title == "" {
		return apperror.Validation("title is required")
	}

	switch in.Type {
	case entity.TypePayment:
		amount, ok := in.Metadata.Number("amount")
		if !ok {
			return apperror.Validation("payment notifications require metadata.amount")
		}
		if amount <= 0 {
			return apperror.Validation("metadata.amount must be greater than zero")
		}
	case entity.TypeMessage, entity.TypeRequest:
		if in.Body == "" {
			return apperror.Validation("body is required")
		}
	}
	return nil
}
