package models

import "time"

type NotificationType string

const (
	NotificationDeadlineSoon   NotificationType = "deadline_soon"
	NotificationOverdue        NotificationType = "overdue"
	NotificationApprovalResult NotificationType = "approval_result"
)

// Notification is a durable per-user record, written alongside every
// best-effort live push so disconnected users can catch up later.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Content   string           `json:"content"`
	RelatedID string           `json:"relatedId,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	IsRead    bool             `json:"isRead"`
}
