package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Venta struct {
	ID            int64           `gorm:"primaryKey;autoIncrement"`
	ConsolaID     int64           `gorm:"index;not null"`
	NombreCliente string          `gorm:"size:140"`
	PrecioVenta   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	GastosExtra   decimal.Decimal `gorm:"type:decimal(12,2);default:0"`
	FechaVenta    time.Time       `gorm:"type:date;index"`
	DetallesVenta string          `gorm:"type:text"`
	GananciaBruta decimal.Decimal `gorm:"type:decimal(12,2)"`
	Consola       *Consola
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CalcularGanancia es la única fuente de la fórmula de ganancia bruta:
//
//	precio de venta - (costo de adquisición + gastos extra de compra + gastos extra de venta)
//
// Se invoca al registrar la venta y cada vez que se edita alguno de los cuatro
// valores; la pérdida (resultado negativo) es un resultado válido.
func CalcularGanancia(costo, gastosAdquisicion, precio, gastosVenta decimal.Decimal) decimal.Decimal {
	return precio.Sub(costo.Add(gastosAdquisicion).Add(gastosVenta))
}
