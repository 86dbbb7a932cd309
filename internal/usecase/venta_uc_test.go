package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/FingerSpinx7/consola-admin/internal/adapters/repo/postgres"
	"github.com/FingerSpinx7/consola-admin/internal/domain"
	"github.com/FingerSpinx7/consola-admin/internal/usecase"
)

func newVentaUC(t *testing.T) (*usecase.VentaUC, *postgres.ConsolaRepo) {
	t.Helper()
	db := testDB(t)
	consolas := postgres.NewConsolaRepo(db)
	return &usecase.VentaUC{Ventas: postgres.NewVentaRepo(db), Consolas: consolas}, consolas
}

func sembrarConsola(t *testing.T, repo *postgres.ConsolaRepo, nombre, costo, gastos string) *domain.Consola {
	t.Helper()
	c := &domain.Consola{
		Nombre:                 nombre,
		CostoAdquisicion:       dec(costo),
		GastosExtraAdquisicion: dec(gastos),
		FechaAdquisicion:       fecha("2024-01-05"),
		Estado:                 true,
	}
	if err := repo.Save(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRegistrarVenta(t *testing.T) {
	uc, consolas := newVentaUC(t)
	ctx := context.Background()
	c := sembrarConsola(t, consolas, "PS1", "1000", "50")

	disponibles, err := uc.Disponibles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(disponibles) != 1 {
		t.Fatalf("disponibles = %d, esperaba 1", len(disponibles))
	}

	v, err := uc.Registrar(ctx, disponibles, usecase.NuevaVenta{
		ConsolaID:     c.ID,
		NombreCliente: "Carla",
		PrecioVenta:   dec("1500"),
		GastosExtra:   dec("20"),
		FechaVenta:    fecha("2024-02-15"),
	})
	if err != nil {
		t.Fatalf("registrar: %v", err)
	}
	if !v.GananciaBruta.Equal(dec("430")) {
		t.Fatalf("ganancia = %s, esperaba 430", v.GananciaBruta)
	}

	// la consola vendida desaparece de los disponibles
	disponibles, err = uc.Disponibles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(disponibles) != 0 {
		t.Fatalf("disponibles después de vender = %d, esperaba 0", len(disponibles))
	}

	got, err := consolas.FindByID(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Estado {
		t.Fatal("la consola tendría que quedar marcada vendida")
	}
	if got.Venta() == nil {
		t.Fatal("la consola tendría que tener la venta asociada")
	}
}

func TestRegistrarVentaConsolaInexistente(t *testing.T) {
	uc, consolas := newVentaUC(t)
	ctx := context.Background()
	sembrarConsola(t, consolas, "PSP", "500", "0")

	disponibles, _ := uc.Disponibles(ctx)
	_, err := uc.Registrar(ctx, disponibles, usecase.NuevaVenta{
		ConsolaID:     9999,
		NombreCliente: "Bruno",
		PrecioVenta:   dec("800"),
		FechaVenta:    fecha("2024-02-15"),
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, esperaba ErrNotFound", err)
	}

	// abortó antes de escribir nada
	rep, err := uc.Reporte(ctx, domain.RangoFechas{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Ventas) != 0 {
		t.Fatal("no tendría que haber ventas")
	}
}

func TestRegistrarVentaValidacion(t *testing.T) {
	uc, consolas := newVentaUC(t)
	ctx := context.Background()
	c := sembrarConsola(t, consolas, "Xbox", "900", "0")
	disponibles, _ := uc.Disponibles(ctx)

	_, err := uc.Registrar(ctx, disponibles, usecase.NuevaVenta{
		ConsolaID:   c.ID,
		PrecioVenta: dec("1200"),
		FechaVenta:  fecha("2024-02-15"),
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("sin cliente: err = %v, esperaba ErrValidation", err)
	}

	_, err = uc.Registrar(ctx, disponibles, usecase.NuevaVenta{
		ConsolaID:     c.ID,
		NombreCliente: "Ana",
		PrecioVenta:   dec("1200"),
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("sin fecha: err = %v, esperaba ErrValidation", err)
	}
}

func registrar(t *testing.T, uc *usecase.VentaUC, c *domain.Consola, precio, fechaVenta string) {
	t.Helper()
	ctx := context.Background()
	disponibles, err := uc.Disponibles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := uc.Registrar(ctx, disponibles, usecase.NuevaVenta{
		ConsolaID:     c.ID,
		NombreCliente: "Cliente",
		PrecioVenta:   dec(precio),
		FechaVenta:    fecha(fechaVenta),
	}); err != nil {
		t.Fatalf("registrar %s: %v", c.Nombre, err)
	}
}

func TestReporteFiltraPorRango(t *testing.T) {
	uc, consolas := newVentaUC(t)
	ctx := context.Background()

	c1 := sembrarConsola(t, consolas, "GBA", "100", "0")
	c2 := sembrarConsola(t, consolas, "DS", "200", "0")
	c3 := sembrarConsola(t, consolas, "3DS", "300", "0")
	registrar(t, uc, c1, "250", "2024-01-20")
	registrar(t, uc, c2, "400", "2024-02-15")
	registrar(t, uc, c3, "500", "2024-03-01")

	desde := fecha("2024-02-01")
	hasta := fecha("2024-02-28")
	rep, err := uc.Reporte(ctx, domain.RangoFechas{Desde: &desde, Hasta: &hasta})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Ventas) != 1 {
		t.Fatalf("ventas en rango = %d, esperaba 1", len(rep.Ventas))
	}
	if rep.Ventas[0].Consola == nil || rep.Ventas[0].Consola.Nombre != "DS" {
		t.Fatalf("venta filtrada incorrecta: %+v", rep.Ventas[0])
	}
	// total sólo del conjunto filtrado: 400 - 200
	if rep.TotalFormateado() != "200.00" {
		t.Fatalf("total = %s, esperaba 200.00", rep.TotalFormateado())
	}

	// sin límite superior entran febrero y marzo
	rep, err = uc.Reporte(ctx, domain.RangoFechas{Desde: &desde})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Ventas) != 2 {
		t.Fatalf("ventas desde febrero = %d, esperaba 2", len(rep.Ventas))
	}
	// más recientes primero
	if !rep.Ventas[0].FechaVenta.After(rep.Ventas[1].FechaVenta) {
		t.Fatal("el reporte tiene que venir ordenado por fecha descendente")
	}
}

func TestReporteVacio(t *testing.T) {
	uc, _ := newVentaUC(t)
	desde := fecha("2030-01-01")
	rep, err := uc.Reporte(context.Background(), domain.RangoFechas{Desde: &desde})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Ventas) != 0 {
		t.Fatal("esperaba reporte vacío")
	}
	if rep.TotalFormateado() != "0.00" {
		t.Fatalf("total vacío = %s, esperaba 0.00", rep.TotalFormateado())
	}
}

func TestReporteSinRangoTraeTodo(t *testing.T) {
	uc, consolas := newVentaUC(t)

	c1 := sembrarConsola(t, consolas, "Vita", "150", "0")
	c2 := sembrarConsola(t, consolas, "Switch", "350", "0")
	registrar(t, uc, c1, "300", "2023-11-11")
	registrar(t, uc, c2, "700", "2024-06-06")

	rep, err := uc.Reporte(context.Background(), domain.RangoFechas{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Ventas) != 2 {
		t.Fatalf("ventas = %d, esperaba 2", len(rep.Ventas))
	}
	// (300-150) + (700-350)
	if rep.TotalFormateado() != "500.00" {
		t.Fatalf("total = %s, esperaba 500.00", rep.TotalFormateado())
	}
}
