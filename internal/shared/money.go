package shared

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer groups thousands the way the ERP frontend displays rupiah amounts
// (1.234.567). Amounts are integers in minor currency units everywhere.
var printer = message.NewPrinter(language.Indonesian)

// FormatAmount renders a minor-unit amount with thousand separators for
// activity descriptions and report payloads.
func FormatAmount(amount int64) string {
	return printer.Sprintf("%d", amount)
}
