package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorcrm-backend/pkg/auth"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/outbox"
	"github.com/angelmondragon/vendorcrm-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/vendorcrm-backend/pkg/pagination"
)

// Service persists notifications and serves them back per audience.
type Service interface {
	Notify(ctx context.Context, tx *gorm.DB, input NotifyInput) (*models.Notification, error)
	List(ctx context.Context, principal auth.Principal, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, principal auth.Principal, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, principal auth.Principal) (int64, error)
}

// Recipient addresses a notification audience, optionally narrowed to one id.
type Recipient struct {
	Audience enums.NotificationAudience
	ID       *uuid.UUID
}

// Admins addresses every staff user.
func Admins() Recipient {
	return Recipient{Audience: enums.AudienceAdmins}
}

// Vendor addresses a single vendor.
func Vendor(vendorID uuid.UUID) Recipient {
	return Recipient{Audience: enums.AudienceVendor, ID: &vendorID}
}

// Client addresses a single client user.
func Client(userID uuid.UUID) Recipient {
	return Recipient{Audience: enums.AudienceClient, ID: &userID}
}

// RecipientFor maps the reading principal onto the rows it may see.
func RecipientFor(principal auth.Principal) (Recipient, error) {
	switch p := principal.(type) {
	case auth.AdminPrincipal:
		id := p.UserID
		return Recipient{Audience: enums.AudienceAdmins, ID: &id}, nil
	case auth.VendorPrincipal:
		return Vendor(p.VendorID), nil
	case auth.ClientPrincipal:
		return Client(p.UserID), nil
	}
	return Recipient{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
}

// NotifyInput describes one notification to persist and push.
type NotifyInput struct {
	Recipient Recipient
	Type      enums.NotificationType
	Title     string
	Message   string
	Link      *string
	Actor     *outbox.ActorRef
}

type ListParams struct {
	Limit      int
	Cursor     string
	UnreadOnly bool
}

type ListResult struct {
	Items       []NotificationDTO `json:"items"`
	NextCursor  string            `json:"nextCursor,omitempty"`
	UnreadCount int64             `json:"unreadCount"`
}

type NotificationDTO struct {
	ID        uuid.UUID                  `json:"id"`
	Audience  enums.NotificationAudience `json:"audience"`
	Type      enums.NotificationType     `json:"type"`
	Title     string                     `json:"title"`
	Message   string                     `json:"message"`
	Link      *string                    `json:"link,omitempty"`
	Read      bool                       `json:"read"`
	ReadAt    *time.Time                 `json:"readAt,omitempty"`
	CreatedAt time.Time                  `json:"createdAt"`
}

type service struct {
	repo   Repository
	outbox outbox.Emitter
	now    func() time.Time
}

// NewService wires notifications dependencies.
func NewService(repo Repository, emitter outbox.Emitter) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if emitter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	return &service{repo: repo, outbox: emitter, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Notify stores the notification inside tx and queues its live push.
func (s *service) Notify(ctx context.Context, tx *gorm.DB, input NotifyInput) (*models.Notification, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if !input.Recipient.Audience.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid notification audience")
	}
	if input.Recipient.Audience != enums.AudienceAdmins && input.Recipient.ID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid notification type")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification title required")
	}

	row := &models.Notification{
		Audience:    input.Recipient.Audience,
		RecipientID: input.Recipient.ID,
		Type:        input.Type,
		Title:       title,
		Message:     strings.TrimSpace(input.Message),
		Link:        input.Link,
	}
	if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventNotificationPush,
		AggregateType: enums.AggregateNotification,
		AggregateID:   row.ID,
		Actor:         input.Actor,
		Data: payloads.NotificationPushEvent{
			NotificationID: row.ID,
			Audience:       row.Audience,
			RecipientID:    row.RecipientID,
			Type:           row.Type,
			Title:          row.Title,
			Message:        row.Message,
			Link:           row.Link,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue notification push")
	}
	return row, nil
}

func (s *service) List(ctx context.Context, principal auth.Principal, params ListParams) (*ListResult, error) {
	recipient, err := RecipientFor(principal)
	if err != nil {
		return nil, err
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.List(ctx, listNotificationsParams{
		Recipient:  recipient,
		Limit:      params.Limit,
		Cursor:     cursor,
		UnreadOnly: params.UnreadOnly,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	unread, err := s.repo.CountUnread(ctx, recipient)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}

	page := pagination.Build(rows, params.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	items := make([]NotificationDTO, 0, len(page.Items))
	for _, n := range page.Items {
		items = append(items, toDTO(n))
	}
	return &ListResult{Items: items, NextCursor: page.NextCursor, UnreadCount: unread}, nil
}

func (s *service) MarkRead(ctx context.Context, principal auth.Principal, notificationID uuid.UUID) error {
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	recipient, err := RecipientFor(principal)
	if err != nil {
		return err
	}

	result, err := s.repo.MarkRead(ctx, recipient, notificationID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, principal auth.Principal) (int64, error) {
	recipient, err := RecipientFor(principal)
	if err != nil {
		return 0, err
	}
	count, err := s.repo.MarkAllRead(ctx, recipient, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

func toDTO(n models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        n.ID,
		Audience:  n.Audience,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		Read:      n.ReadAt != nil,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}
