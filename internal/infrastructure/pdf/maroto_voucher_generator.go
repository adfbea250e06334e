// Package pdf implementa la generación del comprobante imprimible de un
// intercambio entre establecimientos.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Establecimiento iniciador  │  Referencia + Fecha   │
//	│  ─────────────────────────────────────────────────────────  │
//	│  COLEGA: Nombre + dirección + teléfono                      │
//	│  ESTADO: estado actual + dirección del intercambio          │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Cant | Producto | Lote | Vence | P.Unit | Total     │
//	│  ─────────────────────────────────────────────────────────  │
//	│  LIQUIDACIÓN: Valor estimado / Pagado / Saldo               │
//	│  HISTORIAL DE PAGOS: fecha | método | monto                 │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	appexchange "github.com/dfarias/farmacia-api/internal/application/exchange"
	"github.com/dfarias/farmacia-api/internal/domain/entity"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 16, Green: 94, Blue: 74}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// Etiquetas legibles por estado del intercambio.
var statusLabels = map[entity.ExchangeStatus]string{
	entity.StatusDraft:             "Borrador",
	entity.StatusPendingAcceptance: "Pendiente de aceptación",
	entity.StatusAccepted:          "Aceptado",
	entity.StatusPendingPayment:    "Pendiente de pago",
	entity.StatusPaymentConfirmed:  "Pago confirmado",
	entity.StatusClosed:            "Cerrado",
	entity.StatusRefused:           "Rechazado",
	entity.StatusCancelled:         "Anulado",
}

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoVoucherGenerator implementa exchange.VoucherGenerator usando Maroto v2.
type MarotoVoucherGenerator struct{}

var _ appexchange.VoucherGenerator = (*MarotoVoucherGenerator)(nil)

// NewMarotoVoucherGenerator construye el generador.
func NewMarotoVoucherGenerator() *MarotoVoucherGenerator { return &MarotoVoucherGenerator{} }

// GenerateVoucher genera el comprobante y devuelve sus bytes.
func (g *MarotoVoucherGenerator) GenerateVoucher(
	_ context.Context,
	ex *entity.Exchange,
	initiator, partner *entity.Establishment,
	payments []*entity.ExchangePayment,
) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Comprobante de intercambio "+ex.Reference, true).
		WithAuthor(initiator.Name, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(ex, initiator))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(partnerRow(partner))
	m.AddRows(statusRow(ex))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	for _, r := range tableLineRows(ex.Lines) {
		m.AddRows(r)
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(settlementRow(ex))

	if len(payments) > 0 {
		m.AddRows(line.NewRow(3))
		for _, r := range paymentRows(payments) {
			m.AddRows(r)
		}
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar comprobante: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: iniciador (izq) y referencia + fecha (der).
func headerRow(ex *entity.Exchange, initiator *entity.Establishment) core.Row {
	return row.New(18).Add(
		col.New(7).Add(
			text.New(initiator.Name, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New(nonEmpty(initiator.Address, "—"), props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("COMPROBANTE DE INTERCAMBIO", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(ex.Reference, props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New("Fecha: "+ex.CreatedAt.Format("02/01/2006"), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

// partnerRow: datos del establecimiento colega.
func partnerRow(partner *entity.Establishment) core.Row {
	kind := "colega vinculado"
	if partner.IsManualPartner() {
		kind = "contacto manual"
	}
	return row.New(14).Add(
		col.New(12).Add(
			text.New("ESTABLECIMIENTO COLEGA ("+kind+")", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(partner.Name, props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(fmt.Sprintf("Dirección: %s   |   Tel: %s",
				nonEmpty(partner.Address, "—"),
				nonEmpty(partner.Phone, "—"),
			), props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

// statusRow: estado actual y dirección del intercambio.
func statusRow(ex *entity.Exchange) core.Row {
	direction := "Salida (yo entrego)"
	if ex.Direction == entity.DirectionIncoming {
		direction = "Entrada (yo recibo)"
	}
	status := statusLabels[ex.Status]
	if status == "" {
		status = ex.Status.String()
	}
	return row.New(8).Add(
		col.New(12).Add(
			text.New(fmt.Sprintf("Estado: %s   |   Dirección: %s   |   Motivo: %s",
				status, direction, nonEmpty(ex.Reason, "—"),
			), props.Text{Size: 8, Top: 2, Color: colorGray}),
		),
	)
}

// tableHeaderRow: cabecera de la tabla de líneas.
func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Cant.", 1, align.Center),
		h("Producto", 4, align.Left),
		h("Lote", 2, align.Center),
		h("Vence", 1, align.Center),
		h("P.Unit.", 2, align.Right),
		h("Total", 2, align.Right),
	)
}

// tableLineRows: una fila por línea del intercambio.
func tableLineRows(lines []entity.ExchangeLine) []core.Row {
	result := make([]core.Row, 0, len(lines))
	for i := range lines {
		l := &lines[i]
		expiry := "—"
		if l.ExpirationDate != nil {
			expiry = l.ExpirationDate.Format("01/2006")
		}
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(
				fmt.Sprintf("%d", l.Quantity),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(4).Add(text.New(
				l.ProductName,
				props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1},
			)),
			col.New(2).Add(text.New(
				nonEmpty(deref(l.LotNumber), "—"),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(1).Add(text.New(
				expiry,
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(2).Add(text.New(
				l.UnitPrice.StringFixed(2),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(2).Add(text.New(
				l.LineTotal.StringFixed(2),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
		))
	}
	return result
}

// settlementRow: bloque de liquidación alineado a la derecha.
func settlementRow(ex *entity.Exchange) core.Row {
	label := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2,
		})
	}
	value := func(s string) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1})
	}
	grandLabel := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 2,
		})
	}
	grandValue := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 1,
		})
	}

	return row.New(26).Add(
		col.New(3),
		col.New(3).Add(
			label("Valor estimado:"),
			label("Pagado:"),
			grandLabel("SALDO:"),
		),
		col.New(3).Add(
			value(ex.EstimatedValue.StringFixed(2)),
			value(ex.AmountPaid.StringFixed(2)),
			grandValue(ex.RemainingDue().StringFixed(2)),
		),
		col.New(3),
	)
}

// paymentRows: historial de pagos en orden cronológico.
func paymentRows(payments []*entity.ExchangePayment) []core.Row {
	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("HISTORIAL DE PAGOS", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
		)),
	}
	for _, p := range payments {
		rows = append(rows, row.New(5).Add(
			col.New(3).Add(text.New(
				p.CreatedAt.Format("02/01/2006 15:04"),
				props.Text{Size: 8, Top: 1, Color: colorGray},
			)),
			col.New(3).Add(text.New(
				p.Method,
				props.Text{Size: 8, Top: 1, Align: align.Center},
			)),
			col.New(3).Add(text.New(
				p.Amount.StringFixed(2),
				props.Text{Size: 8, Top: 1, Align: align.Right, Right: 1},
			)),
			col.New(3),
		))
	}
	return rows
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
