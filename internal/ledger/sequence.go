package ledger

import (
	"fmt"
	"time"
)

// Reference prefixes consumed by downstream reconciliation. The formats are
// stable and must not change while historic data interoperates.
const (
	PrefixSales    = "SO.BK"
	PrefixPurchase = "PO.BK"
	PrefixOrder    = "RO.BK"
	PrefixGeneral  = "JRN.BK"
)

// referenceDateLayout renders DDMMYYYY.
const referenceDateLayout = "02012006"

// FormatReference builds `{PREFIX}.{DDMMYYYY}.{userID}.{%07d}`.
func FormatReference(prefix string, date time.Time, userID int64, seq int) string {
	return fmt.Sprintf("%s.%s.%d.%07d", prefix, date.Format(referenceDateLayout), userID, seq)
}

// ChildCode builds an account code under a group prefix, e.g. "10100-003".
func ChildCode(groupCode string, suffix int) string {
	return fmt.Sprintf("%s-%03d", groupCode, suffix)
}

// ReferencePrefix maps a source type to its invoice prefix.
func ReferencePrefix(source SourceType) string {
	switch source {
	case SourceSales:
		return PrefixSales
	case SourcePurchase:
		return PrefixPurchase
	default:
		return PrefixGeneral
	}
}
