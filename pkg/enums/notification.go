package enums

import "slices"

// NotificationAudience scopes who can read a notification.
type NotificationAudience string

const (
	AudienceAdmins NotificationAudience = "admins"
	AudienceVendor NotificationAudience = "vendor"
	AudienceClient NotificationAudience = "client"
)

func (a NotificationAudience) IsValid() bool {
	switch a {
	case AudienceAdmins, AudienceVendor, AudienceClient:
		return true
	}
	return false
}

// NotificationType maps to notifications.type.
type NotificationType string

const (
	NotificationOrderCreated  NotificationType = "order_created"
	NotificationOrderUpdated  NotificationType = "order_updated"
	NotificationOrderDeleted  NotificationType = "order_deleted"
	NotificationDemandCreated NotificationType = "demand_created"
	NotificationDemandUpdated NotificationType = "demand_updated"
	NotificationLowStock      NotificationType = "low_stock"
)

var validNotificationTypes = []NotificationType{
	NotificationOrderCreated,
	NotificationOrderUpdated,
	NotificationOrderDeleted,
	NotificationDemandCreated,
	NotificationDemandUpdated,
	NotificationLowStock,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	return slices.Contains(validNotificationTypes, n)
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	return parse(value, validNotificationTypes, "notification type")
}
