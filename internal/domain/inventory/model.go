package inventory

import (
	"time"

	"github.com/google/uuid"
)

// Item maps to the medication_inventory table.
type Item struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	PharmacistID       uuid.UUID  `db:"pharmacist_id" json:"pharmacist_id"`
	MedicationName     string     `db:"medication_name" json:"medication_name"`
	GenericName        *string    `db:"generic_name" json:"generic_name,omitempty"`
	BrandName          *string    `db:"brand_name" json:"brand_name,omitempty"`
	Manufacturer       *string    `db:"manufacturer" json:"manufacturer,omitempty"`
	RegistryCode       string     `db:"registry_code" json:"registry_code"`
	DosageForm         string     `db:"dosage_form" json:"dosage_form"`
	Strength           string     `db:"strength" json:"strength"`
	BatchNumber        string     `db:"batch_number" json:"batch_number"`
	ManufacturingDate  time.Time  `db:"manufacturing_date" json:"manufacturing_date"`
	ExpiryDate         time.Time  `db:"expiry_date" json:"expiry_date"`
	CurrentStock       int        `db:"current_stock" json:"current_stock"`
	MinimumStock       int        `db:"minimum_stock" json:"minimum_stock"`
	MaximumStock       int        `db:"maximum_stock" json:"maximum_stock"`
	UnitPrice          float64    `db:"unit_price" json:"unit_price"`
	CostPrice          float64    `db:"cost_price" json:"cost_price"`
	StorageConditions  *string    `db:"storage_conditions" json:"storage_conditions,omitempty"`
	Category           string     `db:"category" json:"category"`
	ControlledSchedule *string    `db:"controlled_schedule" json:"controlled_schedule,omitempty"`
	Active             bool       `db:"active" json:"active"`
	LastRestocked      *time.Time `db:"last_restocked" json:"last_restocked,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`

	// Derived fields, computed on read. Never persisted.
	StockStatus    string `db:"-" json:"stock_status,omitempty"`
	ExpiryStatus   string `db:"-" json:"expiry_status,omitempty"`
	LowStockAlert  bool   `db:"-" json:"low_stock_alert"`
	NearExpiryAlert bool  `db:"-" json:"near_expiry_alert"`
}

// Inventory categories.
const (
	CategoryPrescription = "prescription"
	CategoryOTC          = "otc"
	CategoryControlled   = "controlled"
	CategoryRefrigerated = "refrigerated"
	CategorySpecialty    = "specialty"
)

// Stock status values.
const (
	StockOut   = "out-of-stock"
	StockLow   = "low-stock"
	StockIn    = "in-stock"
	StockOver  = "overstock"
)

// Expiry status values.
const (
	ExpiryExpired = "expired"
	ExpirySoon    = "expiring-soon"
	ExpiryWarning = "expiring-warning"
	ExpiryValid   = "valid"
)

// Status holds the derived stock and expiry state of an item at a point in time.
type Status struct {
	StockStatus     string
	ExpiryStatus    string
	LowStockAlert   bool
	NearExpiryAlert bool
}

// ComputeStatus derives the stock and expiry status of an item relative to
// now. It is a pure function of the item's persisted quantities and dates:
// recomputing never changes stored state.
func ComputeStatus(item *Item, now time.Time) Status {
	var st Status

	switch {
	case item.CurrentStock == 0:
		st.StockStatus = StockOut
	case item.CurrentStock <= item.MinimumStock:
		st.StockStatus = StockLow
	case item.MaximumStock > 0 && item.CurrentStock >= item.MaximumStock:
		st.StockStatus = StockOver
	default:
		st.StockStatus = StockIn
	}
	st.LowStockAlert = item.CurrentStock <= item.MinimumStock

	days := int(item.ExpiryDate.Sub(now).Hours() / 24)
	switch {
	case days < 0:
		st.ExpiryStatus = ExpiryExpired
	case days <= 30:
		st.ExpiryStatus = ExpirySoon
	case days <= 90:
		st.ExpiryStatus = ExpiryWarning
	default:
		st.ExpiryStatus = ExpiryValid
	}
	st.NearExpiryAlert = days >= 0 && days <= 30

	return st
}

// ApplyStatus fills the derived fields on the item from a computed status.
func (i *Item) ApplyStatus(now time.Time) {
	st := ComputeStatus(i, now)
	i.StockStatus = st.StockStatus
	i.ExpiryStatus = st.ExpiryStatus
	i.LowStockAlert = st.LowStockAlert
	i.NearExpiryAlert = st.NearExpiryAlert
}
