package dto

import (
	"time"

	"lendmark/internal/domain/notification"

	"github.com/google/uuid"
)

type NotificationResponse struct {
	ID        uuid.UUID  `json:"id"`
	Kind      string     `json:"kind"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	OfferID   *uuid.UUID `json:"offer_id"`
	IsRead    bool       `json:"is_read"`
	CreatedAt time.Time  `json:"created_at"`
}

func NewNotificationResponse(n notification.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Kind:      string(n.Kind),
		Title:     n.Title,
		Body:      n.Body,
		OfferID:   n.OfferID,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

func NewNotificationListResponse(items []notification.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, NewNotificationResponse(n))
	}
	return out
}

// NotificationEvent is the websocket frame pushed to live clients.
type NotificationEvent struct {
	Type         string               `json:"type"`
	Notification NotificationResponse `json:"notification"`
}

func NewNotificationEvent(n notification.Notification) NotificationEvent {
	return NotificationEvent{Type: "notification", Notification: NewNotificationResponse(n)}
}
