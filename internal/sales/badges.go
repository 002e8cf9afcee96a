package sales

import "strings"

// Payment methods accepted by the sign and wall forms.
var PaymentMethods = []string{"Efectivo", "Transferencia", "Tarjeta", "Depósito", "Cheque"}

func validPaymentMethod(method string) bool {
	for _, m := range PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

var badgeByState = map[string]string{
	"aprobado":  "success",
	"rechazado": "warning",
	"pendiente": "info",
	"reciente":  "primary",
	"antiguo":   "warning",
	"firmado":   "success",
	"activa":    "info",
	"nuevo":     "success",
	"expirado":  "danger",
}

// BadgeClass is the badge color for prospect, extension and contract states.
func BadgeClass(estado string) string {
	if class, ok := badgeByState[strings.ToLower(strings.TrimSpace(estado))]; ok {
		return class
	}
	return "secondary"
}

// Capitalize upper-cases the first letter, for state labels.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
