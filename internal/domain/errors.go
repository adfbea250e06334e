package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound            = errors.New("recurso no encontrado")
	ErrUserNotFound        = errors.New("usuario no encontrado")
	ErrEmailAlreadyExists  = errors.New("el email ya está registrado")
	ErrInvalidInput        = errors.New("entrada inválida")
	ErrDuplicate           = errors.New("recurso duplicado")
	ErrUnauthorized        = errors.New("no autorizado")
	ErrForbidden           = errors.New("acceso denegado")
	ErrInvalidTransition   = errors.New("acción no permitida en el estado actual")
	ErrInsufficientStock   = errors.New("stock insuficiente en el lote")
	ErrAmountExceedsDue    = errors.New("el monto excede el saldo pendiente")
	ErrConcurrencyConflict = errors.New("el intercambio fue modificado por otra operación")
)
