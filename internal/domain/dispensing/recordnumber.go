package dispensing

import (
	"fmt"
	"math/rand"
	"time"
)

// NewRecordNumber builds the regulatory record number: RX, the millisecond
// timestamp, and three random digits to separate records created in the same
// millisecond.
func NewRecordNumber(now time.Time) string {
	return fmt.Sprintf("RX%d%03d", now.UnixMilli(), rand.Intn(1000))
}
