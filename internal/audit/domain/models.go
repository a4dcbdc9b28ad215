package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/techwallet/pkg/db/pagination"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeSystem     ActorType = "SYSTEM"
	ActorTypeAdmin      ActorType = "ADMIN"
	ActorTypeTechnician ActorType = "TECHNICIAN"
	ActorTypePlatform   ActorType = "PLATFORM"
)

// AuditLog is one immutable audit trail entry.
type AuditLog struct {
	ID         snowflake.ID      `json:"id"`
	ActorType  string            `json:"actor_type"`
	ActorID    *string           `json:"actor_id,omitempty"`
	Action     string            `json:"action"`
	TargetType string            `json:"target_type"`
	TargetID   *string           `json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `json:"metadata"`
	IPAddress  *string           `json:"ip_address,omitempty"`
	UserAgent  *string           `json:"user_agent,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	After      *pagination.Keyset
	Limit      int
}
