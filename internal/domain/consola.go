package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Consola es una unidad del inventario. Estado true significa disponible,
// false significa vendida.
type Consola struct {
	ID                     int64           `gorm:"primaryKey;autoIncrement"`
	Nombre                 string          `gorm:"size:180;not null"`
	Descripcion            string          `gorm:"type:text"`
	Proveedor              string          `gorm:"size:140"`
	CostoAdquisicion       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	GastosExtraAdquisicion decimal.Decimal `gorm:"type:decimal(12,2);default:0"`
	FechaAdquisicion       time.Time       `gorm:"type:date"`
	Estado                 bool            `gorm:"default:true;index"`
	Fotos                  []Foto
	Ventas                 []Venta
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Venta devuelve la venta asociada si existe. El esquema permite varias filas
// pero el dominio garantiza a lo sumo una por consola.
func (c *Consola) Venta() *Venta {
	if len(c.Ventas) == 0 {
		return nil
	}
	return &c.Ventas[0]
}

// FechaActividad es la fecha de venta si la consola se vendió, si no la de
// adquisición. Define el orden del inventario.
func (c *Consola) FechaActividad() time.Time {
	if v := c.Venta(); v != nil {
		return v.FechaVenta
	}
	return c.FechaAdquisicion
}

// InversionTotal es costo de adquisición más gastos extra de compra.
func (c *Consola) InversionTotal() decimal.Decimal {
	return c.CostoAdquisicion.Add(c.GastosExtraAdquisicion)
}

type Foto struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	ConsolaID int64  `gorm:"index;not null"`
	URLFoto   string `gorm:"size:255"`
	Orden     int    `gorm:"default:0"`
	CreatedAt time.Time
}
