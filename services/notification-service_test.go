package services

import (
	"fmt"
	"testing"

	"indicator-project/tracking-service/models"
	"indicator-project/tracking-service/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNotificationService() (*NotificationService, *repositories.InMemoryNotificationStore) {
	store := repositories.NewInMemoryNotificationStore()
	return NewNotificationService(store, quietLogger()), store
}

func TestNotifyValidation(t *testing.T) {
	ns, _ := newNotificationService()

	err := ns.Notify("", models.NotificationOverdue, "title", "", "")
	assert.True(t, models.IsKind(err, models.KindInvalidInput))

	err = ns.Notify("u1", models.NotificationOverdue, "", "", "")
	assert.True(t, models.IsKind(err, models.KindInvalidInput))
}

func TestNotifyAndList(t *testing.T) {
	ns, _ := newNotificationService()

	for i := 0; i < 5; i++ {
		require.NoError(t, ns.Notify("u1", models.NotificationDeadlineSoon, fmt.Sprintf("n%d", i), "body", "item"))
	}
	require.NoError(t, ns.Notify("u2", models.NotificationOverdue, "other", "", ""))

	all, err := ns.ListForUser("u1", 0, 0, false)
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, "n4", all[0].Title, "newest first")

	page, err := ns.ListForUser("u1", 2, 2, false)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "n2", page[0].Title)
	assert.Equal(t, "n1", page[1].Title)

	empty, err := ns.ListForUser("u1", 2, 10, false)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMarkReadFiltersUnread(t *testing.T) {
	ns, store := newNotificationService()
	require.NoError(t, ns.Notify("u1", models.NotificationOverdue, "a", "", ""))
	require.NoError(t, ns.Notify("u1", models.NotificationOverdue, "b", "", ""))

	all, err := store.ListForUser("u1", 0, false)
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, ns.MarkRead("u1", all[0].ID))

	unread, err := ns.ListForUser("u1", 0, 0, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.NotEqual(t, all[0].ID, unread[0].ID)

	err = ns.MarkRead("u2", all[0].ID)
	assert.Error(t, err, "records belong to their user")
}

func TestDeleteNotification(t *testing.T) {
	ns, store := newNotificationService()
	require.NoError(t, ns.Notify("u1", models.NotificationApprovalResult, "a", "", ""))

	all, err := store.ListForUser("u1", 0, false)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, ns.Delete("u1", all[0].ID))

	remaining, err := ns.ListForUser("u1", 0, 0, false)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

type failingStore struct{}

func (failingStore) Create(*models.Notification) error { return fmt.Errorf("store down") }
func (failingStore) ListForUser(string, int, bool) ([]models.Notification, error) {
	return nil, fmt.Errorf("store down")
}
func (failingStore) MarkRead(string, string) error { return fmt.Errorf("store down") }
func (failingStore) Delete(string, string) error   { return fmt.Errorf("store down") }

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	ns := NewNotificationService(failingStore{}, quietLogger())

	for i := 0; i < 4; i++ {
		err := ns.Notify("u1", models.NotificationOverdue, "t", "", "")
		assert.Error(t, err)
	}

	// The breaker is open now; the store is no longer reached.
	err := ns.Notify("u1", models.NotificationOverdue, "t", "", "")
	assert.Error(t, err)
}
