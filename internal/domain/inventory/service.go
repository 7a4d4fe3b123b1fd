package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pharmd/pharmd/pkg/errs"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

var validCategories = map[string]bool{
	CategoryPrescription: true, CategoryOTC: true, CategoryControlled: true,
	CategoryRefrigerated: true, CategorySpecialty: true,
}

var validSchedules = map[string]bool{
	"I": true, "II": true, "III": true, "IV": true, "V": true,
}

// ListFilter extends the repository filter with the derived status filters,
// which can only be applied after computing status.
type ListFilter struct {
	Query        string
	Category     string
	StockStatus  string
	ExpiryStatus string
}

func (s *Service) Add(ctx context.Context, item *Item) error {
	if item.MedicationName == "" {
		return errs.Validationf("medication_name is required")
	}
	if item.RegistryCode == "" {
		return errs.Validationf("registry_code is required")
	}
	if item.PharmacistID == uuid.Nil {
		return errs.Validationf("pharmacist_id is required")
	}
	if item.Category == "" {
		item.Category = CategoryPrescription
	}
	if !validCategories[item.Category] {
		return errs.Validationf("invalid category: %s", item.Category)
	}
	if item.Category == CategoryControlled {
		if item.ControlledSchedule == nil || !validSchedules[*item.ControlledSchedule] {
			return errs.Validationf("controlled items require a schedule I-V")
		}
	}
	if item.CurrentStock < 0 {
		return errs.Validationf("current_stock cannot be negative")
	}
	if item.MinimumStock < 0 {
		return errs.Validationf("minimum_stock cannot be negative")
	}
	if item.MinimumStock == 0 {
		item.MinimumStock = 10
	}
	if item.MaximumStock > 0 && item.MaximumStock < item.MinimumStock {
		return errs.Validationf("maximum_stock must be greater than minimum_stock")
	}
	if item.UnitPrice < 0 || item.CostPrice < 0 {
		return errs.Validationf("prices cannot be negative")
	}
	if item.ExpiryDate.IsZero() || item.ManufacturingDate.IsZero() {
		return errs.Validationf("manufacturing_date and expiry_date are required")
	}
	if !item.ExpiryDate.After(item.ManufacturingDate) {
		return errs.Validationf("expiry_date must be after manufacturing_date")
	}
	item.Active = true
	if err := s.repo.Create(ctx, item); err != nil {
		return err
	}
	item.ApplyStatus(time.Now())
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Item, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	item.ApplyStatus(time.Now())
	return item, nil
}

func (s *Service) Restock(ctx context.Context, id uuid.UUID, qty int) error {
	if qty <= 0 {
		return errs.Validationf("restock quantity must be positive")
	}
	return s.repo.Restock(ctx, id, qty)
}

func (s *Service) Deduct(ctx context.Context, id uuid.UUID, qty int) error {
	if qty <= 0 {
		return errs.Validationf("deduct quantity must be positive")
	}
	return s.repo.Deduct(ctx, id, qty)
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.Deactivate(ctx, id)
}

// Search lists active items matching the filter. The derived stock and expiry
// status filters are applied after the query, since status is computed, not
// stored; the returned total reflects the stored-column filters only.
func (s *Service) Search(ctx context.Context, filter ListFilter, limit, offset int) ([]*Item, int, error) {
	items, total, err := s.repo.Search(ctx, SearchFilter{
		Query:    filter.Query,
		Category: filter.Category,
	}, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	now := time.Now()
	for _, item := range items {
		item.ApplyStatus(now)
	}

	if filter.StockStatus == "" && filter.ExpiryStatus == "" {
		return items, total, nil
	}
	filtered := items[:0]
	for _, item := range items {
		if filter.StockStatus != "" && item.StockStatus != filter.StockStatus {
			continue
		}
		if filter.ExpiryStatus != "" && item.ExpiryStatus != filter.ExpiryStatus {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered, total, nil
}

// Alerts returns the active items that currently need attention: at or below
// minimum stock, or within 30 days of expiry.
func (s *Service) Alerts(ctx context.Context) ([]*Item, error) {
	items, err := s.repo.AlertCandidates(ctx, 30)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	alerts := items[:0]
	for _, item := range items {
		item.ApplyStatus(now)
		if item.LowStockAlert || item.NearExpiryAlert {
			alerts = append(alerts, item)
		}
	}
	return alerts, nil
}
