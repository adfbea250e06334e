package entity

import "time"

// Tipos de establecimiento.
const (
	EstablishmentTypePharmacy  = "pharmacy"
	EstablishmentTypeWholesale = "wholesale"
	EstablishmentTypeClinic    = "clinic"
)

// Establishment representa una farmacia u otro establecimiento del directorio.
// Un colega "vinculado" tiene cuenta propia en el sistema (LinkedAccountRef) y
// participa del flujo de aceptación; un colega "manual" es solo una referencia
// externa y el intercambio salta directo a la liquidación al enviarse.
//
// "Mi establecimiento" nunca se marca aquí: es el establishment_id del token
// JWT del llamador, pasado explícitamente a cada caso de uso.
type Establishment struct {
	ID               string
	Name             string
	Type             string
	Address          string
	Phone            string
	LinkedAccountRef *string // nil = colega manual, sin cuenta recíproca
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsManualPartner indica si el establecimiento es un contacto manual.
func (e *Establishment) IsManualPartner() bool {
	return e.LinkedAccountRef == nil
}
