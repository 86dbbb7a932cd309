package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/FingerSpinx7/consola-admin/internal/domain"
)

type ConsolaUC struct {
	Consolas domain.ConsolaRepo
	Ventas   domain.VentaRepo
	Storage  domain.FileStorage
}

// FotoUpload es un archivo recibido en el formulario, todavía sin subir.
type FotoUpload struct {
	Nombre string
	Data   []byte
}

func (uc *ConsolaUC) Crear(ctx context.Context, c *domain.Consola, fotos []FotoUpload) error {
	if strings.TrimSpace(c.Nombre) == "" {
		return fmt.Errorf("%w: el nombre es obligatorio", domain.ErrValidation)
	}
	if c.FechaAdquisicion.IsZero() {
		return fmt.Errorf("%w: la fecha de adquisición es obligatoria", domain.ErrValidation)
	}
	if c.CostoAdquisicion.IsNegative() || c.GastosExtraAdquisicion.IsNegative() {
		return fmt.Errorf("%w: los costos no pueden ser negativos", domain.ErrValidation)
	}
	if len(fotos) == 0 {
		return fmt.Errorf("%w: subí al menos una foto", domain.ErrValidation)
	}
	c.ID = 0
	c.Estado = true
	if err := uc.Consolas.Save(ctx, c); err != nil {
		return err
	}
	urls, err := uc.subirFotos(ctx, fotos)
	if err != nil {
		return err
	}
	rows := make([]domain.Foto, 0, len(urls))
	for i, u := range urls {
		rows = append(rows, domain.Foto{ConsolaID: c.ID, URLFoto: u, Orden: i + 1})
	}
	return uc.Consolas.AddFotos(ctx, c.ID, rows)
}

// subirFotos sube todos los archivos en paralelo y recién devuelve las URLs
// cuando terminaron todos; el primero que falla corta el resto.
func (uc *ConsolaUC) subirFotos(ctx context.Context, fotos []FotoUpload) ([]string, error) {
	urls := make([]string, len(fotos))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range fotos {
		i, f := i, f
		g.Go(func() error {
			u, err := uc.Storage.SaveImage(gctx, f.Nombre, f.Data)
			if err != nil {
				return err
			}
			urls[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

func (uc *ConsolaUC) Listar(ctx context.Context) ([]domain.Consola, error) {
	list, err := uc.Consolas.List(ctx, domain.ConsolaFilter{ConFotos: true, ConVenta: true})
	if err != nil {
		return nil, err
	}
	OrdenarPorActividad(list)
	return list, nil
}

// OrdenarPorActividad ordena el inventario por fecha de actividad descendente
// (fecha de venta si se vendió, si no la de adquisición) y desempata por ID
// descendente. El orden es total y determinístico.
func OrdenarPorActividad(list []domain.Consola) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].FechaActividad(), list[j].FechaActividad()
		if !a.Equal(b) {
			return a.After(b)
		}
		return list[i].ID > list[j].ID
	})
}

func (uc *ConsolaUC) Detalle(ctx context.Context, id int64) (*domain.Consola, error) {
	return uc.Consolas.FindByID(ctx, id)
}

// ConsolaEdit son los campos editables de la consola.
type ConsolaEdit struct {
	Nombre                 string
	Descripcion            string
	Proveedor              string
	CostoAdquisicion       decimal.Decimal
	GastosExtraAdquisicion decimal.Decimal
	FechaAdquisicion       time.Time
}

// VentaEdit son los campos editables de la venta asociada.
type VentaEdit struct {
	NombreCliente string
	PrecioVenta   decimal.Decimal
	GastosExtra   decimal.Decimal
	Detalles      string
}

// Actualizar escribe los campos de la consola y, si existe una venta asociada,
// recalcula la ganancia con los valores recién editados de ambos lados y
// actualiza la venta. Las fotos nuevas se insertan con orden alto para que
// queden después de las existentes. Los tres pasos son independientes: un
// fallo posterior no deshace los anteriores.
func (uc *ConsolaUC) Actualizar(ctx context.Context, id int64, edit ConsolaEdit, ventaEdit *VentaEdit, fotos []FotoUpload) error {
	if strings.TrimSpace(edit.Nombre) == "" {
		return fmt.Errorf("%w: el nombre es obligatorio", domain.ErrValidation)
	}
	if edit.CostoAdquisicion.IsNegative() || edit.GastosExtraAdquisicion.IsNegative() {
		return fmt.Errorf("%w: los costos no pueden ser negativos", domain.ErrValidation)
	}
	c, err := uc.Consolas.FindByID(ctx, id)
	if err != nil {
		return err
	}
	c.Nombre = edit.Nombre
	c.Descripcion = edit.Descripcion
	c.Proveedor = edit.Proveedor
	c.CostoAdquisicion = edit.CostoAdquisicion
	c.GastosExtraAdquisicion = edit.GastosExtraAdquisicion
	if !edit.FechaAdquisicion.IsZero() {
		c.FechaAdquisicion = edit.FechaAdquisicion
	}
	c.Fotos = nil
	c.Ventas = nil
	if err := uc.Consolas.Save(ctx, c); err != nil {
		return err
	}

	v, err := uc.Ventas.FindByConsolaID(ctx, id)
	switch {
	case err == nil:
		if ventaEdit != nil {
			v.NombreCliente = ventaEdit.NombreCliente
			v.PrecioVenta = ventaEdit.PrecioVenta
			v.GastosExtra = ventaEdit.GastosExtra
			v.DetallesVenta = ventaEdit.Detalles
		}
		v.GananciaBruta = domain.CalcularGanancia(c.CostoAdquisicion, c.GastosExtraAdquisicion, v.PrecioVenta, v.GastosExtra)
		v.Consola = nil
		if err := uc.Ventas.Update(ctx, v); err != nil {
			return err
		}
	case errors.Is(err, domain.ErrNotFound):
		// consola sin vender, nada que recalcular
	default:
		return err
	}

	if len(fotos) == 0 {
		return nil
	}
	urls, err := uc.subirFotos(ctx, fotos)
	if err != nil {
		return err
	}
	rows := make([]domain.Foto, 0, len(urls))
	for i, u := range urls {
		rows = append(rows, domain.Foto{ConsolaID: id, URLFoto: u, Orden: 1000 + i})
	}
	return uc.Consolas.AddFotos(ctx, id, rows)
}

// QuitarFoto borra la fila y devuelve la URL para que el llamador limpie el
// archivo local si corresponde.
func (uc *ConsolaUC) QuitarFoto(ctx context.Context, fotoID int64) (string, error) {
	return uc.Consolas.DeleteFoto(ctx, fotoID)
}
