package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"AdvisoryDispatch/internal/compliance"
	"AdvisoryDispatch/internal/domain"
	"AdvisoryDispatch/internal/ports"
	"AdvisoryDispatch/internal/rules"
)

// CatalogManager applies append-only rule catalog updates. Each applied
// update produces a new snapshot, installs it on the validator, and records
// the change through the store for the audit surface.
type CatalogManager struct {
	mu        sync.Mutex
	current   *rules.Catalog
	validator *compliance.Validator
	store     ports.DeliveryStore
	logger    *slog.Logger
}

// NewCatalogManager starts from the snapshot the validator was built with.
func NewCatalogManager(initial *rules.Catalog, validator *compliance.Validator, store ports.DeliveryStore, logger *slog.Logger) *CatalogManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogManager{
		current:   initial,
		validator: validator,
		store:     store,
		logger:    logger,
	}
}

// Apply appends one update. The audit record is persisted before the new
// snapshot goes live; a store failure leaves the running catalog unchanged.
func (m *CatalogManager) Apply(ctx context.Context, u rules.Update) (domain.CatalogUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, record, err := m.current.Append(u)
	if err != nil {
		return domain.CatalogUpdate{}, fmt.Errorf("append catalog update: %w", err)
	}

	if m.store != nil {
		if err := m.store.AppendCatalogUpdate(ctx, record); err != nil {
			return domain.CatalogUpdate{}, fmt.Errorf("persist catalog update: %w", err)
		}
	}

	m.current = next
	if m.validator != nil {
		m.validator.ReplaceCatalog(next)
	}

	m.logger.Info("rule catalog updated",
		"version", record.Version, "kind", record.Kind, "rule", record.RuleCode)
	return record, nil
}

// Version reports the live snapshot version.
func (m *CatalogManager) Version() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Version
}
