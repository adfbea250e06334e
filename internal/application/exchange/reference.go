package exchange

import "fmt"

// referencePrefix prefijo de las referencias de intercambio.
const referencePrefix = "ECH"

// FormatReference arma la referencia legible de un intercambio a partir del
// año y el consecutivo anual: ECH-2026-000042. La referencia se emite una
// sola vez al crear el borrador y nunca se reutiliza, aunque el borrador se
// elimine después.
func FormatReference(year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%06d", referencePrefix, year, seq)
}
