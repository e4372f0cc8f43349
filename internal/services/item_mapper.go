package services

import (
	"context"
	"errors"

	"erp-sync-service/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LinkSpec identifies one external entity to be linked to an internal record.
type LinkSpec struct {
	IntegrationID uuid.UUID
	EntityType    models.EntityType
	ExternalCode  string
	VariantID     string
	SKU           *string
}

// UpsertMapper resolves external identities to internal records exactly once
// per identity, no matter how many concurrent syncs race on the same entity.
// Resolution order: existing link by (external code, variant), then existing
// link by SKU, then materialize a new internal record and insert the link.
// A lost insert race falls back to reading the winner's link; the database
// unique constraints are the arbiter, not application locks.
type UpsertMapper struct {
	links LinkStore
}

// NewUpsertMapper creates a new upsert mapper.
func NewUpsertMapper(links LinkStore) *UpsertMapper {
	return &UpsertMapper{links: links}
}

// Resolve returns the link for spec, creating the internal record via
// materialize only when no link exists yet. The boolean reports whether this
// call created the internal record.
func (m *UpsertMapper) Resolve(ctx context.Context, spec LinkSpec, materialize func(ctx context.Context) (uuid.UUID, error)) (*models.SyncLinkRecord, bool, error) {
	link, err := m.links.FindByExternal(ctx, spec.IntegrationID, spec.EntityType, spec.ExternalCode, spec.VariantID)
	if err == nil {
		return link, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	if spec.SKU != nil && *spec.SKU != "" {
		link, err = m.links.FindBySKU(ctx, spec.IntegrationID, spec.EntityType, *spec.SKU)
		if err == nil {
			return link, false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, err
		}
	}

	internalKey, err := materialize(ctx)
	if err != nil {
		return nil, false, err
	}

	candidate := &models.SyncLinkRecord{
		IntegrationID: spec.IntegrationID,
		EntityType:    spec.EntityType,
		ExternalCode:  spec.ExternalCode,
		VariantID:     spec.VariantID,
		SKU:           spec.SKU,
		InternalKey:   internalKey,
	}

	if err := m.links.Create(ctx, candidate); err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, false, err
		}
		// Losing the race leaves this call's internal record orphaned; the
		// winner's record is authoritative from here on.
		winner, ferr := m.readWinner(ctx, spec)
		if ferr != nil {
			return nil, false, ferr
		}
		return winner, false, nil
	}
	return candidate, true, nil
}

// readWinner re-reads the link a concurrent writer inserted first. The
// collision may have fired on either unique index: external identity or SKU,
// so a miss on the first read falls through to the second.
func (m *UpsertMapper) readWinner(ctx context.Context, spec LinkSpec) (*models.SyncLinkRecord, error) {
	link, err := m.links.FindByExternal(ctx, spec.IntegrationID, spec.EntityType, spec.ExternalCode, spec.VariantID)
	if err == nil {
		return link, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if spec.SKU == nil || *spec.SKU == "" {
		return nil, err
	}
	return m.links.FindBySKU(ctx, spec.IntegrationID, spec.EntityType, *spec.SKU)
}
