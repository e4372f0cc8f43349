package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"erp-sync-service/internal/clients"
	"erp-sync-service/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ImportOutcome classifies the result of importing one external order.
type ImportOutcome string

const (
	ImportCreated ImportOutcome = "CREATED"
	ImportUpdated ImportOutcome = "UPDATED"
	ImportSkipped ImportOutcome = "SKIPPED"
)

// OrderSyncService drives one external order through resolution and
// persistence: items first, then customer, then the order aggregate. An
// order is created exactly once per external code; later syncs of the same
// code only reconcile status and cancellations.
type OrderSyncService struct {
	orders OrderStore
	mapper *UpsertMapper
	logger *zap.Logger
}

// NewOrderSyncService creates a new order sync service.
func NewOrderSyncService(orders OrderStore, mapper *UpsertMapper, logger *zap.Logger) *OrderSyncService {
	return &OrderSyncService{orders: orders, mapper: mapper, logger: logger}
}

// ImportOrder imports or reconciles one external order. Errors specific to
// this order (IncompleteSourceDataError, UnresolvedItemError) are returned
// for the caller to log and skip; they must not abort the batch.
func (s *OrderSyncService) ImportOrder(ctx context.Context, integration *models.IntegrationConnection, client clients.PlatformClient, ext *clients.ExternalOrder) (ImportOutcome, error) {
	if err := validateOrder(ext); err != nil {
		return ImportSkipped, err
	}

	existing, err := s.orders.GetByExternalCode(ctx, integration.ID, ext.Code)
	if err == nil {
		outcome, rerr := s.reconcileExisting(ctx, existing, ext)
		if rerr == nil && outcome == ImportSkipped {
			s.logger.Info("order already exists, skipped", zap.String("externalCode", ext.Code))
		}
		return outcome, rerr
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return ImportSkipped, err
	}

	itemKeys, err := s.resolveItems(ctx, integration, client, ext)
	if err != nil {
		return ImportSkipped, err
	}

	customerID, err := s.resolveCustomer(ctx, ext)
	if err != nil {
		return ImportSkipped, err
	}

	order := &models.OrderRecord{
		IntegrationID:  integration.ID,
		ExternalCode:   ext.Code,
		Status:         mapExternalStatus(ext.Status, ext.CancelledAt),
		CustomerID:     customerID,
		Currency:       ext.Currency,
		TotalAmount:    ext.TotalAmount,
		TaxAmount:      ext.TaxAmount,
		ShippingAmount: ext.ShippingAmount,
		OrderDate:      ext.CreatedAt,
	}
	if ext.CancelledAt != nil {
		order.CancelledAt = ext.CancelledAt
	}
	for _, line := range ext.LineItems {
		order.Lines = append(order.Lines, models.OrderLine{
			ExternalLineID: line.LineID,
			SKU:            line.SKU,
			ItemKey:        itemKeys[line.SKU],
			WarehouseID:    integration.WarehouseID,
			Quantity:       line.Quantity,
			UnitPrice:      line.UnitPrice,
			Cancelled:      line.Cancelled,
		})
	}

	if err := s.orders.Create(ctx, order); err != nil {
		// A concurrent worker imported the same code first. The order
		// exists, which is the outcome we wanted.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			s.logger.Info("order already exists, skipped", zap.String("externalCode", ext.Code))
			return ImportSkipped, nil
		}
		return ImportSkipped, err
	}

	return ImportCreated, nil
}

// resolveItems maps every line item SKU to an internal item, importing
// unmapped products from the platform first. One unresolvable line aborts
// the whole order: partial orders are never created.
func (s *OrderSyncService) resolveItems(ctx context.Context, integration *models.IntegrationConnection, client clients.PlatformClient, ext *clients.ExternalOrder) (map[string]uuid.UUID, error) {
	itemKeys := make(map[string]uuid.UUID, len(ext.LineItems))

	for _, line := range ext.LineItems {
		if line.SKU == "" {
			return nil, &IncompleteSourceDataError{ExternalCode: ext.Code, Missing: []string{"line item sku"}}
		}
		if _, ok := itemKeys[line.SKU]; ok {
			continue
		}

		sku := line.SKU
		spec := LinkSpec{
			IntegrationID: integration.ID,
			EntityType:    models.EntityItem,
			ExternalCode:  line.SKU,
			VariantID:     line.VariantID,
			SKU:           &sku,
		}
		link, _, err := s.mapper.Resolve(ctx, spec, func(ctx context.Context) (uuid.UUID, error) {
			return s.importProduct(ctx, client, line)
		})
		if err != nil {
			return nil, &UnresolvedItemError{ExternalCode: ext.Code, SKU: line.SKU, Cause: err}
		}
		itemKeys[line.SKU] = link.InternalKey
	}

	return itemKeys, nil
}

// importProduct is the product-import sub-flow: reuse an internal item with
// the same SKU when one exists, otherwise fetch the product from the
// platform and materialize it.
func (s *OrderSyncService) importProduct(ctx context.Context, client clients.PlatformClient, line clients.ExternalLineItem) (uuid.UUID, error) {
	item, err := s.orders.FindItemBySKU(ctx, line.SKU)
	if err == nil {
		return item.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, err
	}

	product, err := client.FetchProduct(ctx, line.SKU)
	if err != nil {
		return uuid.Nil, err
	}

	name := product.Title
	if name == "" {
		name = line.Title
	}
	if name == "" {
		name = line.SKU
	}

	newItem := &models.Item{SKU: line.SKU, Name: name}
	if err := s.orders.CreateItem(ctx, newItem); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, ferr := s.orders.FindItemBySKU(ctx, line.SKU)
			if ferr != nil {
				return uuid.Nil, ferr
			}
			return existing.ID, nil
		}
		return uuid.Nil, err
	}
	return newItem.ID, nil
}

// resolveCustomer reuses an existing customer only on an exact match of the
// name and every address field. Any difference, however trivial, creates a
// new customer.
func (s *OrderSyncService) resolveCustomer(ctx context.Context, ext *clients.ExternalOrder) (uuid.UUID, error) {
	if ext.Customer == nil || ext.Customer.Name == "" {
		return uuid.Nil, &IncompleteSourceDataError{ExternalCode: ext.Code, Missing: []string{"customer name"}}
	}

	candidate := &models.Customer{
		Name:  ext.Customer.Name,
		Email: ext.Customer.Email,
		Phone: ext.Customer.Phone,
	}
	if ext.Address != nil {
		candidate.Address1 = ext.Address.Address1
		candidate.Address2 = ext.Address.Address2
		candidate.City = ext.Address.City
		candidate.State = ext.Address.State
		candidate.PostalCode = ext.Address.PostalCode
		candidate.Country = ext.Address.Country
	}

	existing, err := s.orders.FindCustomersByName(ctx, candidate.Name)
	if err != nil {
		return uuid.Nil, err
	}
	for i := range existing {
		if existing[i].AddressMatches(candidate) {
			return existing[i].ID, nil
		}
	}

	if err := s.orders.CreateCustomer(ctx, candidate); err != nil {
		return uuid.Nil, err
	}
	return candidate.ID, nil
}

// reconcileExisting applies status and cancellation changes from the
// external order to an already-imported one. Status moves are monotonic;
// line-level edits happen only while the order is still mutable.
func (s *OrderSyncService) reconcileExisting(ctx context.Context, order *models.OrderRecord, ext *clients.ExternalOrder) (ImportOutcome, error) {
	changed := false

	extLines := make(map[string]clients.ExternalLineItem, len(ext.LineItems))
	for _, line := range ext.LineItems {
		key := line.LineID
		if key == "" {
			key = line.SKU
		}
		extLines[key] = line
	}

	allCancelled := ext.CancelledAt != nil
	if !allCancelled && len(ext.LineItems) > 0 {
		allCancelled = true
		for _, line := range ext.LineItems {
			if !line.Cancelled {
				allCancelled = false
				break
			}
		}
	}

	if allCancelled {
		// Full cancellation only while nothing downstream exists; an
		// invoiced or fulfilled order keeps its state.
		if order.IsMutable() && order.Status.CanTransitionTo(models.OrderStatusCancelled) {
			if err := s.orders.UpdateStatus(ctx, order.ID, models.OrderStatusCancelled, time.Now()); err != nil {
				return ImportSkipped, err
			}
			return ImportUpdated, nil
		}
		return ImportSkipped, nil
	}

	if order.IsMutable() {
		anyCancelled := false
		for i := range order.Lines {
			internal := &order.Lines[i]
			key := internal.ExternalLineID
			if key == "" {
				key = internal.SKU
			}
			extLine, ok := extLines[key]
			if !ok {
				continue
			}

			if extLine.Cancelled && !internal.Cancelled {
				if err := s.orders.CancelLine(ctx, internal.ID); err != nil {
					return ImportSkipped, err
				}
				anyCancelled = true
				changed = true
			} else if !extLine.Cancelled && extLine.Quantity != internal.Quantity {
				if err := s.orders.UpdateLineQuantity(ctx, internal.ID, extLine.Quantity); err != nil {
					return ImportSkipped, err
				}
				changed = true
			}
			if internal.Cancelled {
				anyCancelled = true
			}
		}

		if anyCancelled && order.Status.CanTransitionTo(models.OrderStatusPartiallyCancelled) && order.Status != models.OrderStatusPartiallyCancelled {
			if err := s.orders.UpdateStatus(ctx, order.ID, models.OrderStatusPartiallyCancelled, time.Now()); err != nil {
				return ImportSkipped, err
			}
			// Keep the in-memory status current so the generic move below
			// stays monotonic against what was just written.
			order.Status = models.OrderStatusPartiallyCancelled
			changed = true
		}
	}

	next := mapExternalStatus(ext.Status, ext.CancelledAt)
	if next != order.Status && order.Status.CanTransitionTo(next) {
		if err := s.orders.UpdateStatus(ctx, order.ID, next, time.Now()); err != nil {
			return ImportSkipped, err
		}
		changed = true
	}

	if changed {
		return ImportUpdated, nil
	}
	return ImportSkipped, nil
}

func validateOrder(ext *clients.ExternalOrder) error {
	var missing []string
	if ext.Code == "" {
		missing = append(missing, "external code")
	}
	if len(ext.LineItems) == 0 {
		missing = append(missing, "line items")
	}
	if len(missing) > 0 {
		return &IncompleteSourceDataError{ExternalCode: ext.Code, Missing: missing}
	}
	return nil
}

// mapExternalStatus normalizes platform status strings onto the internal
// status machine.
func mapExternalStatus(status string, cancelledAt *time.Time) models.OrderStatus {
	if cancelledAt != nil {
		return models.OrderStatusCancelled
	}
	switch strings.ToUpper(status) {
	case "CANCELLED", "CANCELED":
		return models.OrderStatusCancelled
	case "SHIPPED", "FULFILLED", "COMPLETE", "DISPATCHED", "DELIVERED":
		return models.OrderStatusFulfilled
	case "INVOICED", "PAID", "UNSHIPPED", "PROCESSING":
		return models.OrderStatusInvoiced
	default:
		return models.OrderStatusPending
	}
}
