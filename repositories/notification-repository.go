package repositories

import (
	"fmt"
	"time"

	"indicator-project/tracking-service/models"

	"github.com/gocql/gocql"
	"github.com/sirupsen/logrus"
)

// NotificationStore persists per-user notification records so users who
// missed the live push can catch up.
type NotificationStore interface {
	Create(notification *models.Notification) error
	ListForUser(userID string, limit int, unreadOnly bool) ([]models.Notification, error)
	MarkRead(userID, notificationID string) error
	Delete(userID, notificationID string) error
}

type CassandraNotificationStore struct {
	session *gocql.Session
	logger  *logrus.Logger
}

// NewCassandraNotificationStore connects to the cluster, creates the
// keyspace and table if missing, and returns a ready store.
func NewCassandraNotificationStore(host string, logger *logrus.Logger) (*CassandraNotificationStore, error) {
	cluster := gocql.NewCluster(host)
	cluster.Keyspace = "system"
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Cassandra: %v", err)
	}

	err = session.Query(
		`CREATE KEYSPACE IF NOT EXISTS notifications
         WITH replication = {
             'class': 'SimpleStrategy',
             'replication_factor': 1
         }`).Exec()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to create keyspace: %v", err)
	}
	session.Close()

	cluster.Keyspace = "notifications"
	cluster.Consistency = gocql.One
	session, err = cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to notifications keyspace: %v", err)
	}

	store := &CassandraNotificationStore{session: session, logger: logger}
	if err := store.createTable(); err != nil {
		session.Close()
		return nil, err
	}

	logger.Info("Event ID: CASSANDRA_CONNECTED, Description: Connected to Cassandra notifications keyspace.")
	return store, nil
}

func (s *CassandraNotificationStore) Close() {
	s.session.Close()
	s.logger.Info("Event ID: CASSANDRA_CLOSED, Description: Cassandra session closed.")
}

func (s *CassandraNotificationStore) createTable() error {
	err := s.session.Query(
		`CREATE TABLE IF NOT EXISTS notifications (
			id UUID,
			user_id TEXT,
			type TEXT,
			title TEXT,
			content TEXT,
			related_id TEXT,
			created_at TIMESTAMP,
			is_read BOOLEAN,
			PRIMARY KEY ((user_id), created_at, id)
		) WITH CLUSTERING ORDER BY (created_at DESC, id ASC)`).Exec()
	if err != nil {
		return fmt.Errorf("failed to create notifications table: %v", err)
	}
	return nil
}

func (s *CassandraNotificationStore) Create(notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = gocql.TimeUUID().String()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}

	err := s.session.Query(
		`INSERT INTO notifications (id, user_id, type, title, content, related_id, created_at, is_read)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		notification.ID, notification.UserID, string(notification.Type), notification.Title,
		notification.Content, notification.RelatedID, notification.CreatedAt, notification.IsRead,
	).Exec()
	if err != nil {
		return fmt.Errorf("failed to create notification: %v", err)
	}
	return nil
}

func (s *CassandraNotificationStore) ListForUser(userID string, limit int, unreadOnly bool) ([]models.Notification, error) {
	query := `SELECT id, user_id, type, title, content, related_id, created_at, is_read
			  FROM notifications WHERE user_id = ?`

	iter := s.session.Query(query, userID).Iter()
	var notifications []models.Notification
	var n models.Notification
	var typ string

	for iter.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Content, &n.RelatedID, &n.CreatedAt, &n.IsRead) {
		n.Type = models.NotificationType(typ)
		if unreadOnly && n.IsRead {
			continue
		}
		notifications = append(notifications, n)
		if limit > 0 && len(notifications) >= limit {
			break
		}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %v", err)
	}
	return notifications, nil
}

// findRow resolves the clustering key for a notification id so single-row
// updates and deletes can address it.
func (s *CassandraNotificationStore) findRow(userID, notificationID string) (gocql.UUID, time.Time, error) {
	uuid, err := gocql.ParseUUID(notificationID)
	if err != nil {
		return gocql.UUID{}, time.Time{}, models.InvalidInputf("invalid notification id format: %s", notificationID)
	}

	iter := s.session.Query(
		`SELECT id, created_at FROM notifications WHERE user_id = ?`, userID).Iter()
	var rowID gocql.UUID
	var createdAt time.Time
	for iter.Scan(&rowID, &createdAt) {
		if rowID == uuid {
			if err := iter.Close(); err != nil {
				return gocql.UUID{}, time.Time{}, err
			}
			return rowID, createdAt, nil
		}
	}
	if err := iter.Close(); err != nil {
		return gocql.UUID{}, time.Time{}, fmt.Errorf("failed to look up notification: %v", err)
	}
	return gocql.UUID{}, time.Time{}, models.NotFoundf("notification %s not found for user %s", notificationID, userID)
}

func (s *CassandraNotificationStore) MarkRead(userID, notificationID string) error {
	uuid, createdAt, err := s.findRow(userID, notificationID)
	if err != nil {
		return err
	}

	err = s.session.Query(
		`UPDATE notifications SET is_read = true WHERE user_id = ? AND created_at = ? AND id = ?`,
		userID, createdAt, uuid).Exec()
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %v", err)
	}
	return nil
}

func (s *CassandraNotificationStore) Delete(userID, notificationID string) error {
	uuid, createdAt, err := s.findRow(userID, notificationID)
	if err != nil {
		return err
	}

	err = s.session.Query(
		`DELETE FROM notifications WHERE user_id = ? AND created_at = ? AND id = ?`,
		userID, createdAt, uuid).Exec()
	if err != nil {
		return fmt.Errorf("failed to delete notification: %v", err)
	}
	return nil
}
