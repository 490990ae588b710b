package services

import (
	"fmt"

	"indicator-project/tracking-service/models"
	"indicator-project/tracking-service/repositories"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// NotificationService writes and reads durable notification records. All
// store calls go through a circuit breaker so a struggling notification
// store degrades to log-and-continue instead of slowing down the lifecycle
// operations that fan out to it.
type NotificationService struct {
	store   repositories.NotificationStore
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

func NewNotificationService(store repositories.NotificationStore, logger *logrus.Logger) *NotificationService {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notifications-cb",
		MaxRequests: 1,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Infof("Event ID: CIRCUIT_BREAKER_STATE_CHANGE, Description: Circuit Breaker '%s' changed from '%s' to '%s'", name, from.String(), to.String())
		},
	})
	return &NotificationService{store: store, breaker: breaker, logger: logger}
}

// Notify appends a durable record. Failures are returned so callers decide
// whether they matter; lifecycle callers log and move on.
func (ns *NotificationService) Notify(userID string, typ models.NotificationType, title, content, relatedID string) error {
	if userID == "" || title == "" {
		return models.InvalidInputf("userID and title are required for a notification")
	}
	_, err := ns.breaker.Execute(func() (interface{}, error) {
		return nil, ns.store.Create(&models.Notification{
			UserID:    userID,
			Type:      typ,
			Title:     title,
			Content:   content,
			RelatedID: relatedID,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to record notification for %s: %v", userID, err)
	}
	return nil
}

func (ns *NotificationService) ListForUser(userID string, limit, skip int, unreadOnly bool) ([]models.Notification, error) {
	fetch := limit
	if fetch > 0 && skip > 0 {
		fetch = limit + skip
	}
	result, err := ns.breaker.Execute(func() (interface{}, error) {
		return ns.store.ListForUser(userID, fetch, unreadOnly)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications for %s: %v", userID, err)
	}
	notifications := result.([]models.Notification)
	if skip >= len(notifications) {
		return []models.Notification{}, nil
	}
	return notifications[skip:], nil
}

func (ns *NotificationService) MarkRead(userID, notificationID string) error {
	_, err := ns.breaker.Execute(func() (interface{}, error) {
		return nil, ns.store.MarkRead(userID, notificationID)
	})
	return err
}

func (ns *NotificationService) Delete(userID, notificationID string) error {
	_, err := ns.breaker.Execute(func() (interface{}, error) {
		return nil, ns.store.Delete(userID, notificationID)
	})
	return err
}
