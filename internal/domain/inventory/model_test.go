package inventory

import (
	"testing"
	"time"
)

func day(n int) time.Time {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, n)
}

func TestComputeStatus_Stock(t *testing.T) {
	now := day(0)
	tests := []struct {
		name    string
		current int
		min     int
		max     int
		want    string
		alert   bool
	}{
		{"zero stock", 0, 10, 100, StockOut, true},
		{"at minimum", 10, 10, 100, StockLow, true},
		{"below minimum", 5, 10, 100, StockLow, true},
		{"normal", 50, 10, 100, StockIn, false},
		{"at maximum", 100, 10, 100, StockOver, false},
		{"above maximum", 150, 10, 100, StockOver, false},
		{"no maximum configured", 9999, 10, 0, StockIn, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &Item{
				CurrentStock: tt.current,
				MinimumStock: tt.min,
				MaximumStock: tt.max,
				ExpiryDate:   day(365),
			}
			st := ComputeStatus(item, now)
			if st.StockStatus != tt.want {
				t.Errorf("stock status = %s, want %s", st.StockStatus, tt.want)
			}
			if st.LowStockAlert != tt.alert {
				t.Errorf("low stock alert = %v, want %v", st.LowStockAlert, tt.alert)
			}
		})
	}
}

func TestComputeStatus_Expiry(t *testing.T) {
	now := day(0)
	tests := []struct {
		name       string
		expiry     time.Time
		want       string
		nearExpiry bool
	}{
		{"expired yesterday", day(-1), ExpiryExpired, false},
		{"expires today", day(0), ExpirySoon, true},
		{"expires in 30 days", day(30), ExpirySoon, true},
		{"expires in 31 days", day(31), ExpiryWarning, false},
		{"expires in 90 days", day(90), ExpiryWarning, false},
		{"expires in 91 days", day(91), ExpiryValid, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &Item{CurrentStock: 50, MinimumStock: 10, ExpiryDate: tt.expiry}
			st := ComputeStatus(item, now)
			if st.ExpiryStatus != tt.want {
				t.Errorf("expiry status = %s, want %s", st.ExpiryStatus, tt.want)
			}
			if st.NearExpiryAlert != tt.nearExpiry {
				t.Errorf("near expiry alert = %v, want %v", st.NearExpiryAlert, tt.nearExpiry)
			}
		})
	}
}

func TestComputeStatus_Idempotent(t *testing.T) {
	now := day(0)
	item := &Item{CurrentStock: 5, MinimumStock: 10, MaximumStock: 100, ExpiryDate: day(20)}

	first := ComputeStatus(item, now)
	second := ComputeStatus(item, now)

	if first != second {
		t.Errorf("recomputation changed status: %+v vs %+v", first, second)
	}
	// Applying the derived fields must not change the persisted quantities.
	item.ApplyStatus(now)
	if item.CurrentStock != 5 || item.MinimumStock != 10 {
		t.Error("applying status mutated persisted stock quantities")
	}
}
