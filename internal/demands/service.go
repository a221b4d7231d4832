package demands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorcrm-backend/internal/notifications"
	"github.com/angelmondragon/vendorcrm-backend/pkg/auth"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db/models"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
	"github.com/angelmondragon/vendorcrm-backend/pkg/outbox"
	"github.com/angelmondragon/vendorcrm-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/vendorcrm-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindActiveByItemNumber(ctx context.Context, itemNumber string) (*models.Product, error)
}

type notifier interface {
	Notify(ctx context.Context, tx *gorm.DB, input notifications.NotifyInput) (*models.Notification, error)
}

// Service handles client demands and the pending demand report.
type Service interface {
	CreateDemand(ctx context.Context, principal auth.Principal, input CreateDemandInput) (*DemandDTO, error)
	ListDemands(ctx context.Context, principal auth.Principal, input ListDemandsInput) (*DemandListResult, error)
	UpdateStatus(ctx context.Context, principal auth.Principal, id uuid.UUID, status enums.DemandStatus) (*DemandDTO, error)
	Report(ctx context.Context, principal auth.Principal) (*Report, error)
}

type service struct {
	repo     Repository
	products productLookup
	tx       txRunner
	outbox   outbox.Emitter
	notifier notifier
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(repo Repository, products productLookup, tx txRunner, emitter outbox.Emitter, notifier notifier, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("demands repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:     repo,
		products: products,
		tx:       tx,
		outbox:   emitter,
		notifier: notifier,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) CreateDemand(ctx context.Context, principal auth.Principal, input CreateDemandInput) (*DemandDTO, error) {
	client, ok := principal.(auth.ClientPrincipal)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only clients can create demands")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.Validation("invalid demand", pkgerrors.FieldError{Field: "quantity", Message: "must be greater than zero"})
	}

	demand := &models.Demand{
		ClientID: client.UserID,
		Quantity: input.Quantity,
		Notes:    trimmed(input.Notes),
		Status:   enums.DemandStatusPending,
	}
	if err := s.resolveProduct(ctx, demand, input); err != nil {
		return nil, err
	}

	clientName, err := s.repo.ClientName(ctx, client.UserID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load client")
	}

	actor := outbox.ActorFrom(principal)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, demand); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create demand")
		}
		if err := s.emit(ctx, tx, enums.EventDemandCreated, demand, clientName, actor); err != nil {
			return err
		}
		link := "/demands"
		who := clientName
		if who == "" {
			who = "A client"
		}
		_, err := s.notifier.Notify(ctx, tx, notifications.NotifyInput{
			Recipient: notifications.Admins(),
			Type:      enums.NotificationDemandCreated,
			Title:     "New demand for " + demand.ItemNumber,
			Message:   fmt.Sprintf("%s requested %d x %s", who, demand.Quantity, demand.ProductName),
			Link:      &link,
			Actor:     actor,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	dto := toDTO(*demand)
	return &dto, nil
}

// resolveProduct fills the product snapshot. A known product wins; an
// unknown item number is kept as free text.
func (s *service) resolveProduct(ctx context.Context, demand *models.Demand, input CreateDemandInput) error {
	if input.ProductID != nil && *input.ProductID != uuid.Nil {
		product, err := s.products.FindByID(ctx, *input.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Validation("unknown product", pkgerrors.FieldError{Field: "productId", Message: "product not found"})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		demand.ProductID = &product.ID
		demand.ItemNumber = product.ItemNumber
		demand.ProductName = product.Name
		return nil
	}

	itemNumber := strings.TrimSpace(input.ItemNumber)
	if itemNumber == "" {
		return pkgerrors.Validation("invalid demand", pkgerrors.FieldError{Field: "itemNumber", Message: "productId or itemNumber is required"})
	}
	demand.ItemNumber = itemNumber
	demand.ProductName = strings.TrimSpace(input.ProductName)

	product, err := s.products.FindActiveByItemNumber(ctx, itemNumber)
	switch {
	case err == nil:
		demand.ProductID = &product.ID
		demand.ProductName = product.Name
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if demand.ProductName == "" {
		demand.ProductName = itemNumber
	}
	return nil
}

func (s *service) ListDemands(ctx context.Context, principal auth.Principal, input ListDemandsInput) (*DemandListResult, error) {
	query := demandListQuery{Status: input.Status, Limit: input.Pagination.Limit}
	switch p := principal.(type) {
	case auth.AdminPrincipal:
	case auth.ClientPrincipal:
		clientID := p.UserID
		query.ClientID = &clientID
	case nil:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "demands are not available to vendors")
	}

	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	query.Cursor = cursor
	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list demands")
	}
	page := pagination.Build(rows, query.Limit, func(d models.Demand) pagination.Cursor {
		return pagination.Cursor{CreatedAt: d.CreatedAt, ID: d.ID}
	})
	result := &DemandListResult{Items: make([]DemandDTO, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, d := range page.Items {
		result.Items = append(result.Items, toDTO(d))
	}
	return result, nil
}

// UpdateStatus records the staff decision and tells the client.
func (s *service) UpdateStatus(ctx context.Context, principal auth.Principal, id uuid.UUID, status enums.DemandStatus) (*DemandDTO, error) {
	staff, ok := principal.(auth.AdminPrincipal)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only staff can decide demands")
	}
	if status != enums.DemandStatusConfirmed && status != enums.DemandStatusRejected {
		return nil, pkgerrors.Validation("invalid status", pkgerrors.FieldError{Field: "status", Message: "must be confirmed or rejected"})
	}

	actor := outbox.ActorFrom(principal)
	var demand *models.Demand
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		demand, err = repo.FindForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "demand not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load demand")
		}

		now := s.now()
		deciderID := staff.UserID
		demand.Status = status
		demand.DecidedBy = &deciderID
		demand.DecidedAt = &now
		if err := repo.Save(ctx, demand); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update demand")
		}
		if err := s.emit(ctx, tx, enums.EventDemandUpdated, demand, "", actor); err != nil {
			return err
		}
		link := "/demands"
		_, err = s.notifier.Notify(ctx, tx, notifications.NotifyInput{
			Recipient: notifications.Client(demand.ClientID),
			Type:      enums.NotificationDemandUpdated,
			Title:     "Demand " + string(status),
			Message:   fmt.Sprintf("Your request for %d x %s was %s", demand.Quantity, demand.ProductName, status),
			Link:      &link,
			Actor:     actor,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	dto := toDTO(*demand)
	return &dto, nil
}

// Report summarizes pending demand and queues it for WhatsApp delivery.
func (s *service) Report(ctx context.Context, principal auth.Principal) (*Report, error) {
	if _, ok := principal.(auth.AdminPrincipal); !ok {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only staff can send demand reports")
	}
	rows, err := s.repo.PendingSummary(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize demands")
	}
	report := &Report{GeneratedAt: s.now(), Lines: make([]payloads.DemandReportLine, 0, len(rows))}
	for _, row := range rows {
		report.Lines = append(report.Lines, payloads.DemandReportLine{
			ItemNumber:  row.ItemNumber,
			ProductName: row.ProductName,
			Quantity:    row.Quantity,
			Requests:    row.Requests,
		})
		report.TotalQuantity += row.Quantity
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDemandReport,
			AggregateType: enums.AggregateDemand,
			AggregateID:   uuid.New(),
			Actor:         outbox.ActorFrom(principal),
			Data:          *report,
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue demand report")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"lines": len(report.Lines), "total_quantity": report.TotalQuantity}), "demands.report_queued")
	return report, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, demand *models.Demand, clientName string, actor *outbox.ActorRef) error {
	var notes string
	if demand.Notes != nil {
		notes = *demand.Notes
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateDemand,
		AggregateID:   demand.ID,
		Actor:         actor,
		Data: payloads.DemandEvent{
			DemandID:    demand.ID,
			ClientID:    demand.ClientID,
			ClientName:  clientName,
			ItemNumber:  demand.ItemNumber,
			ProductName: demand.ProductName,
			Quantity:    demand.Quantity,
			Notes:       notes,
			Status:      demand.Status,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit demand event")
	}
	return nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
