package service_test

import (
	"context"
	"testing"

	"forneria/internal/dto"
	"forneria/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluarStockBajo(t *testing.T) {
	env := newTestEnv()
	p := env.crearProducto("Pan de masa madre", 3500, 5, lote(30, 3)) // 3 ≤ mínimo 5
	ctx := context.Background()

	resumen, err := env.alerta.Evaluar(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resumen.NuevasAlertas)

	abiertas, err := env.alerta.ListarAbiertas(ctx, model.AlertaStockBajo)
	require.NoError(t, err)
	require.Len(t, abiertas, 1)
	require.NotNil(t, abiertas[0].ProductoID)
	assert.Equal(t, p.ID.String(), *abiertas[0].ProductoID)
}

func TestEvaluarEsIdempotente(t *testing.T) {
	env := newTestEnv()
	env.crearProducto("Croissant", 1800, 10, lote(30, 2))
	ctx := context.Background()

	primero, err := env.alerta.Evaluar(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, primero.NuevasAlertas)

	// Same state, second sweep: nothing new, nothing resolved.
	segundo, err := env.alerta.Evaluar(ctx)
	require.NoError(t, err)
	assert.Zero(t, segundo.NuevasAlertas)
	assert.Zero(t, segundo.AlertasResueltas)
	assert.Equal(t, 1, segundo.AlertasAbiertas)
}

func TestAlertaStockBajoSeResuelveTrasIngreso(t *testing.T) {
	env := newTestEnv()
	p := env.crearProducto("Leche", 1300, 5, lote(30, 2))
	ctx := context.Background()

	_, err := env.alerta.Evaluar(ctx)
	require.NoError(t, err)

	// Intake lifts the stock above the minimum; the next sweep resolves.
	_, err = env.stock.IngresarLote(ctx, dto.IngresoLoteRequest{
		ProductoID:       p.ID.String(),
		FechaVencimiento: "2030-06-01",
		Cantidad:         20,
		CostoUnitario:    decimal.NewFromInt(850),
	})
	require.NoError(t, err)

	resumen, err := env.alerta.Evaluar(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resumen.AlertasResueltas)

	abiertas, _ := env.alerta.ListarAbiertas(ctx, model.AlertaStockBajo)
	assert.Empty(t, abiertas)
}

func TestAlertaStockBajoSeResuelveAlDesactivarProducto(t *testing.T) {
	env := newTestEnv()
	p := env.crearProducto("Descontinuado", 900, 5, lote(30, 2))
	ctx := context.Background()

	_, err := env.alerta.Evaluar(ctx)
	require.NoError(t, err)
	abiertas, _ := env.alerta.ListarAbiertas(ctx, model.AlertaStockBajo)
	require.Len(t, abiertas, 1)

	// Deactivated products leave the sweep; their open alert must not
	// linger forever.
	env.productos.mu.Lock()
	env.productos.productos[p.ID].Activo = false
	env.productos.mu.Unlock()

	resumen, err := env.alerta.Evaluar(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resumen.AlertasResueltas)

	abiertas, _ = env.alerta.ListarAbiertas(ctx, model.AlertaStockBajo)
	assert.Empty(t, abiertas)
}

func TestEvaluarVencimientoProximo(t *testing.T) {
	env := newTestEnv()
	proximo := lote(3, 6) // dentro del horizonte de 7 días
	lejano := lote(60, 6) // fuera del horizonte
	env.crearProducto("Queso", 4200, 1, proximo, lejano)
	ctx := context.Background()

	resumen, err := env.alerta.Evaluar(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resumen.NuevasAlertas)

	abiertas, err := env.alerta.ListarAbiertas(ctx, model.AlertaVencimiento)
	require.NoError(t, err)
	require.Len(t, abiertas, 1)
	require.NotNil(t, abiertas[0].LoteID)
	assert.Equal(t, proximo.ID.String(), *abiertas[0].LoteID)
}

func TestAlertaVencimientoSeResuelveAlConsumirLote(t *testing.T) {
	env := newTestEnv()
	l := lote(2, 4)
	p := env.crearProducto("Empanada", 2800, 1, l)
	ctx := context.Background()

	_, err := env.alerta.Evaluar(ctx)
	require.NoError(t, err)
	abiertas, _ := env.alerta.ListarAbiertas(ctx, model.AlertaVencimiento)
	require.Len(t, abiertas, 1)

	// Drain the lot: it no longer carries stock, so the breach clears.
	_, err = env.stock.Asignar(ctx, p.ID, 4, "Venta V000001", "pos")
	require.NoError(t, err)

	resumen, err := env.alerta.Evaluar(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resumen.AlertasResueltas)

	abiertas, _ = env.alerta.ListarAbiertas(ctx, model.AlertaVencimiento)
	assert.Empty(t, abiertas)
}
