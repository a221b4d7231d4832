package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
)

// Notification is an in-app message. A nil RecipientID with the admins
// audience reaches every staff user.
type Notification struct {
	ID          uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	Audience    enums.NotificationAudience `gorm:"column:audience;type:text;not null"`
	RecipientID *uuid.UUID                 `gorm:"column:recipient_id;type:uuid"`
	Type        enums.NotificationType     `gorm:"column:type;type:text;not null"`
	Title       string                     `gorm:"column:title;type:text;not null"`
	Message     string                     `gorm:"column:message;type:text;not null"`
	Link        *string                    `gorm:"column:link;type:text"`
	ReadAt      *time.Time                 `gorm:"column:read_at"`
	CreatedAt   time.Time                  `gorm:"column:created_at;autoCreateTime"`
}
