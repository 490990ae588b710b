package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type IndicatorStatus string

const (
	IndicatorActive    IndicatorStatus = "active"
	IndicatorOverdue   IndicatorStatus = "overdue"
	IndicatorCompleted IndicatorStatus = "completed"
)

// Indicator is a top-level goal with a deadline and owning creator. Active
// indicators past their end date flip to overdue; an overdue indicator is
// completed when an elevated principal approves a replacement for it.
type Indicator struct {
	ID              primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	Name            string              `json:"name" bson:"name"`
	Description     string              `json:"description,omitempty" bson:"description,omitempty"`
	EndDate         time.Time           `json:"endDate" bson:"endDate"`
	Status          IndicatorStatus     `json:"status" bson:"status"`
	CreatorID       string              `json:"creatorId" bson:"creatorId"`
	DepartmentID    string              `json:"departmentId,omitempty" bson:"departmentId,omitempty"`
	ReplacedBy      *primitive.ObjectID `json:"replacedBy,omitempty" bson:"replacedBy,omitempty"`
	OverdueNotified bool                `json:"overdueNotified" bson:"overdueNotified"`
	CreatedAt       time.Time           `json:"createdAt" bson:"createdAt"`
}
