package services

import (
	"testing"
	"time"

	"indicator-project/tracking-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateIndicatorValidation(t *testing.T) {
	f := newFixture("creator")

	_, err := f.indicatorSvc.CreateIndicator(ctx(), user("creator"), "   ", "", in(time.Hour), "")
	assert.True(t, models.IsKind(err, models.KindInvalidInput))

	_, err = f.indicatorSvc.CreateIndicator(ctx(), user("creator"), "Q3 goals", "", in(-time.Hour), "")
	assert.True(t, models.IsKind(err, models.KindInvalidInput))
}

func TestRefreshOverdue(t *testing.T) {
	f := newFixture("creator")
	stale := f.mustCreateIndicator(t, user("creator"), in(30*24*time.Hour))
	active := f.mustCreateIndicator(t, user("creator"), in(60*24*time.Hour))

	stored, err := f.indicators.FindByID(ctx(), stale.ID)
	require.NoError(t, err)
	stored.EndDate = in(-time.Hour)
	require.NoError(t, f.indicators.Save(ctx(), stored))

	flipped, err := f.indicatorSvc.RefreshOverdue(ctx())
	require.NoError(t, err)
	assert.Equal(t, 1, flipped)

	reloaded, err := f.indicators.FindByID(ctx(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IndicatorOverdue, reloaded.Status)

	untouched, err := f.indicators.FindByID(ctx(), active.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IndicatorActive, untouched.Status)
}

func TestIndicatorStateGatesNewTasks(t *testing.T) {
	f := newFixture("creator", "leader", "s1")
	indicator := f.mustCreateIndicator(t, user("creator"), in(30*24*time.Hour))

	stored, err := f.indicators.FindByID(ctx(), indicator.ID)
	require.NoError(t, err)
	stored.EndDate = in(-time.Hour)
	require.NoError(t, f.indicators.Save(ctx(), stored))

	// The inline refresh flips the indicator, but an overdue indicator still
	// accepts tasks; only a completed one refuses them.
	task, err := f.taskSvc.CreateTask(ctx(), user("creator"), CreateTaskInput{
		IndicatorID:  indicator.ID,
		Title:        "late start",
		EndDate:      in(time.Hour),
		LeaderID:     "leader",
		SupporterIDs: []string{"s1"},
	}, nil, "")
	require.NoError(t, err)
	assert.NotNil(t, task)

	reloaded, err := f.indicators.FindByID(ctx(), indicator.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IndicatorOverdue, reloaded.Status)

	stored, err = f.indicators.FindByID(ctx(), indicator.ID)
	require.NoError(t, err)
	stored.Status = models.IndicatorCompleted
	require.NoError(t, f.indicators.Save(ctx(), stored))

	_, err = f.taskSvc.CreateTask(ctx(), user("creator"), CreateTaskInput{
		IndicatorID:  indicator.ID,
		Title:        "too late",
		EndDate:      in(time.Hour),
		LeaderID:     "leader",
		SupporterIDs: []string{"s1"},
	}, nil, "")
	assert.True(t, models.IsKind(err, models.KindInvalidState))
}

func TestApproveReplacement(t *testing.T) {
	f := newFixture("creator")
	original := f.mustCreateIndicator(t, user("creator"), in(30*24*time.Hour))
	replacement := f.mustCreateIndicator(t, user("creator"), in(90*24*time.Hour))

	stored, err := f.indicators.FindByID(ctx(), original.ID)
	require.NoError(t, err)
	stored.Status = models.IndicatorOverdue
	require.NoError(t, f.indicators.Save(ctx(), stored))

	t.Run("requires an elevated principal", func(t *testing.T) {
		_, err := f.indicatorSvc.ApproveReplacement(ctx(), user("creator"), original.ID, replacement.ID)
		assert.True(t, models.IsKind(err, models.KindForbidden))
	})

	t.Run("original must be overdue", func(t *testing.T) {
		_, err := f.indicatorSvc.ApproveReplacement(ctx(), admin("boss"), replacement.ID, original.ID)
		assert.True(t, models.IsKind(err, models.KindInvalidState))
	})

	t.Run("director position is elevated", func(t *testing.T) {
		completed, err := f.indicatorSvc.ApproveReplacement(ctx(), director("dir"), original.ID, replacement.ID)
		require.NoError(t, err)
		assert.Equal(t, models.IndicatorCompleted, completed.Status)
		require.NotNil(t, completed.ReplacedBy)
		assert.Equal(t, replacement.ID, *completed.ReplacedBy)
	})

	t.Run("completed original cannot be replaced twice", func(t *testing.T) {
		_, err := f.indicatorSvc.ApproveReplacement(ctx(), admin("boss"), original.ID, replacement.ID)
		assert.True(t, models.IsKind(err, models.KindInvalidState))
	})
}

func TestApproveReplacementRequiresActiveReplacement(t *testing.T) {
	f := newFixture("creator")
	original := f.mustCreateIndicator(t, user("creator"), in(30*24*time.Hour))
	replacement := f.mustCreateIndicator(t, user("creator"), in(90*24*time.Hour))

	stored, err := f.indicators.FindByID(ctx(), original.ID)
	require.NoError(t, err)
	stored.Status = models.IndicatorOverdue
	require.NoError(t, f.indicators.Save(ctx(), stored))

	stored, err = f.indicators.FindByID(ctx(), replacement.ID)
	require.NoError(t, err)
	stored.Status = models.IndicatorOverdue
	require.NoError(t, f.indicators.Save(ctx(), stored))

	_, err = f.indicatorSvc.ApproveReplacement(ctx(), admin("boss"), original.ID, replacement.ID)
	assert.True(t, models.IsKind(err, models.KindInvalidState))
}

func TestDeleteIndicatorCascades(t *testing.T) {
	f := newFixture("creator", "leader", "s1")
	indicator := f.mustCreateIndicator(t, user("creator"), in(30*24*time.Hour))
	root := f.mustCreateRootTask(t, user("creator"), indicator.ID, "leader", []string{"s1"}, in(14*24*time.Hour))
	f.mustSubmit(t, user("s1"), root.ID, nil)

	t.Run("outsider is forbidden", func(t *testing.T) {
		f.users.Add("outsider")
		err := f.indicatorSvc.DeleteIndicator(ctx(), user("outsider"), indicator.ID)
		assert.True(t, models.IsKind(err, models.KindForbidden))
	})

	require.NoError(t, f.indicatorSvc.DeleteIndicator(ctx(), user("creator"), indicator.ID))

	gone, err := f.indicators.FindByID(ctx(), indicator.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	tasks, err := f.tasks.FindByIndicator(ctx(), indicator.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.NotEmpty(t, f.store.deleted, "submission files go with the tasks")
}

func TestHierarchy(t *testing.T) {
	f := newFixture("creator", "leader", "s1", "subleader", "worker")
	first := f.mustCreateIndicator(t, user("creator"), in(30*24*time.Hour))
	second := f.mustCreateIndicator(t, user("creator"), in(60*24*time.Hour))
	root := f.mustCreateRootTask(t, user("creator"), first.ID, "leader", []string{"s1"}, in(14*24*time.Hour))
	f.mustCreateSubtask(t, user("leader"), root.ID, "subleader", "worker", in(7*24*time.Hour))

	nodes, err := f.indicatorSvc.Hierarchy(ctx())
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	byID := map[string]HierarchyNode{}
	for _, node := range nodes {
		byID[node.Indicator.ID.Hex()] = node
	}
	require.Len(t, byID[first.ID.Hex()].Tasks, 1)
	assert.Len(t, byID[first.ID.Hex()].Tasks[0].SubTasks, 1)
	assert.Empty(t, byID[second.ID.Hex()].Tasks)
}
