package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog captures auditable panel mutations performed by teachers.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    uint              `gorm:"index;not null" json:"actor_id"`
	ActorRole  string            `gorm:"size:32;not null" json:"actor_role"`
	Action     string            `gorm:"size:64;not null" json:"action"`
	EntityType string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID   *uint             `json:"entity_id"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}

// TableName keeps audit rows apart from the platform's own tables.
func (ActivityLog) TableName() string {
	return "panel_activity_logs"
}

// All lists every model for development migrations.
func All() []interface{} {
	return []interface{}{
		&Course{},
		&Section{},
		&User{},
		&Problem{},
		&Submission{},
		&Test{},
		&TestSubmission{},
		&ActivityLog{},
	}
}
