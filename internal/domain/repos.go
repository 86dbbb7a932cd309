package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("no encontrado")
	ErrValidation = errors.New("datos inválidos")
)

type ConsolaFilter struct {
	SoloDisponibles bool
	ConFotos        bool
	ConVenta        bool
}

type ConsolaRepo interface {
	Save(ctx context.Context, c *Consola) error
	FindByID(ctx context.Context, id int64) (*Consola, error)
	List(ctx context.Context, f ConsolaFilter) ([]Consola, error)
	MarcarVendida(ctx context.Context, id int64) error
	AddFotos(ctx context.Context, consolaID int64, fotos []Foto) error
	DeleteFoto(ctx context.Context, fotoID int64) (string, error)
}

// RangoFechas filtra por fecha de venta con límites inclusivos; un puntero nil
// deja ese lado abierto.
type RangoFechas struct {
	Desde *time.Time
	Hasta *time.Time
}

type VentaRepo interface {
	Create(ctx context.Context, v *Venta) error
	Update(ctx context.Context, v *Venta) error
	FindByConsolaID(ctx context.Context, consolaID int64) (*Venta, error)
	ListInRange(ctx context.Context, r RangoFechas) ([]Venta, error)
}

type FileStorage interface {
	SaveImage(ctx context.Context, name string, data []byte) (string, error)
	Remove(ctx context.Context, publicURL string) error
}
