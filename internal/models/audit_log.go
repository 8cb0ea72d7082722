package models

// Audit sources distinguish REST calls, assistant tool calls and
// scheduled repricing runs.
const (
	AuditSourceAPI      = "api"
	AuditSourceAgent    = "agent"
	AuditSourcePipeline = "pipeline"
)

// AuditLog records goal and asset mutations per user.
type AuditLog struct {
	Base
	UserID       string `gorm:"not null;index" json:"user_id"`
	Action       string `gorm:"not null" json:"action"`
	ResourceType string `gorm:"not null" json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	Source       string `gorm:"not null;default:'api'" json:"source"`
	IPAddress    string `json:"ip_address,omitempty"`
	Changes      string `json:"changes,omitempty"`
}
