package services

import "indicator-project/tracking-service/models"

// Approval predicates differ between root tasks and subtasks: a root task
// accepts the task leader or any elevated principal, a subtask accepts only
// its own leader, with no admin override. The asymmetry is the recorded
// behavior of the workflow and is kept as-is.

func canApproveRootTask(p models.Principal, task *models.Task) bool {
	return p.Elevated() || p.ID == task.LeaderID
}

func canApproveSubtask(p models.Principal, subtask *models.Subtask) bool {
	return p.ID == subtask.LeaderID
}

// canManageTask gates structural changes to a root task: creating subtasks,
// editing, deleting.
func canManageTask(p models.Principal, task *models.Task) bool {
	if p.Elevated() || p.ID == task.LeaderID || p.ID == task.IndicatorCreator {
		return true
	}
	for _, supporter := range task.SupporterIDs {
		if supporter == p.ID {
			return true
		}
	}
	return false
}
