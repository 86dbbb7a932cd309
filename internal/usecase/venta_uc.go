package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FingerSpinx7/consola-admin/internal/domain"
)

type VentaUC struct {
	Ventas   domain.VentaRepo
	Consolas domain.ConsolaRepo
}

// Disponibles trae las consolas con estado true, recién consultadas al abrir
// el formulario de venta.
func (uc *VentaUC) Disponibles(ctx context.Context) ([]domain.Consola, error) {
	return uc.Consolas.List(ctx, domain.ConsolaFilter{SoloDisponibles: true})
}

type NuevaVenta struct {
	ConsolaID     int64
	NombreCliente string
	PrecioVenta   decimal.Decimal
	GastosExtra   decimal.Decimal
	FechaVenta    time.Time
	Detalles      string
}

// ErrEstadoNoActualizado se devuelve cuando la venta quedó registrada pero el
// update del estado de la consola falló; no hay rollback, queda una consola
// marcada disponible con una venta asociada hasta que se corrija a mano.
type ErrEstadoNoActualizado struct {
	VentaID int64
	Err     error
}

func (e *ErrEstadoNoActualizado) Error() string {
	return fmt.Sprintf("venta %d registrada pero la consola sigue marcada disponible: %v", e.VentaID, e.Err)
}

func (e *ErrEstadoNoActualizado) Unwrap() error { return e.Err }

// Registrar busca la consola elegida dentro de la lista de disponibles que ya
// tenía cargada el formulario (no la vuelve a consultar), calcula la ganancia,
// crea la venta y recién después marca la consola como vendida.
func (uc *VentaUC) Registrar(ctx context.Context, disponibles []domain.Consola, nv NuevaVenta) (*domain.Venta, error) {
	if strings.TrimSpace(nv.NombreCliente) == "" {
		return nil, fmt.Errorf("%w: el cliente es obligatorio", domain.ErrValidation)
	}
	if nv.FechaVenta.IsZero() {
		return nil, fmt.Errorf("%w: la fecha de venta es obligatoria", domain.ErrValidation)
	}
	var elegida *domain.Consola
	for i := range disponibles {
		if disponibles[i].ID == nv.ConsolaID {
			elegida = &disponibles[i]
			break
		}
	}
	if elegida == nil {
		return nil, domain.ErrNotFound
	}
	ganancia := domain.CalcularGanancia(elegida.CostoAdquisicion, elegida.GastosExtraAdquisicion, nv.PrecioVenta, nv.GastosExtra)
	v := &domain.Venta{
		ConsolaID:     elegida.ID,
		NombreCliente: nv.NombreCliente,
		PrecioVenta:   nv.PrecioVenta,
		GastosExtra:   nv.GastosExtra,
		FechaVenta:    nv.FechaVenta,
		DetallesVenta: nv.Detalles,
		GananciaBruta: ganancia,
	}
	if err := uc.Ventas.Create(ctx, v); err != nil {
		return nil, err
	}
	if err := uc.Consolas.MarcarVendida(ctx, elegida.ID); err != nil {
		return v, &ErrEstadoNoActualizado{VentaID: v.ID, Err: err}
	}
	return v, nil
}

type Reporte struct {
	Ventas []domain.Venta
	Total  decimal.Decimal
}

// TotalFormateado devuelve la ganancia total con dos decimales para mostrar.
func (r *Reporte) TotalFormateado() string { return r.Total.StringFixed(2) }

// Reporte lista las ventas dentro del rango (ambos límites inclusivos y
// opcionales) junto con el nombre de la consola, más recientes primero, y suma
// la ganancia bruta del conjunto filtrado.
func (uc *VentaUC) Reporte(ctx context.Context, rango domain.RangoFechas) (*Reporte, error) {
	list, err := uc.Ventas.ListInRange(ctx, rango)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, v := range list {
		total = total.Add(v.GananciaBruta)
	}
	return &Reporte{Ventas: list, Total: total}, nil
}
