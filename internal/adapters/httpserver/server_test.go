package httpserver_test

import (
	"bytes"
	"context"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/FingerSpinx7/consola-admin/internal/adapters/httpserver"
	"github.com/FingerSpinx7/consola-admin/internal/adapters/repo/postgres"
	"github.com/FingerSpinx7/consola-admin/internal/domain"
	"github.com/FingerSpinx7/consola-admin/internal/usecase"
	"github.com/FingerSpinx7/consola-admin/internal/views"
)

type memStorage struct{ saved []string }

func (m *memStorage) SaveImage(_ context.Context, name string, _ []byte) (string, error) {
	u := "/uploads/" + name
	m.saved = append(m.saved, u)
	return u, nil
}

func (m *memStorage) Remove(_ context.Context, _ string) error { return nil }

func newTestServer(t *testing.T) (http.Handler, *gorm.DB) {
	t.Helper()
	t.Setenv("ADMIN_USER", "admin")
	t.Setenv("ADMIN_PASS", "admin123")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Consola{}, &domain.Foto{}, &domain.Venta{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	funcMap := template.FuncMap{
		"money": func(d decimal.Decimal) string { return "$" + d.StringFixed(2) },
	}
	tmpl, err := template.New("layout").Funcs(funcMap).ParseFS(views.FS, "*.html")
	if err != nil {
		t.Fatalf("templates: %v", err)
	}

	consolaRepo := postgres.NewConsolaRepo(db)
	ventaRepo := postgres.NewVentaRepo(db)
	st := &memStorage{}
	cuc := &usecase.ConsolaUC{Consolas: consolaRepo, Ventas: ventaRepo, Storage: st}
	vuc := &usecase.VentaUC{Ventas: ventaRepo, Consolas: consolaRepo}
	return httpserver.New(tmpl, cuc, vuc, st, nil), db
}

func login(t *testing.T, h http.Handler) *http.Cookie {
	t.Helper()
	form := url.Values{"user": {"admin"}, "pass": {"admin123"}}
	req := httptest.NewRequest(http.MethodPost, "/admin/auth", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 302 {
		t.Fatalf("login status = %d, esperaba 302", rr.Code)
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == "admin_token" && c.Value != "" {
			return c
		}
	}
	t.Fatal("no se emitió la cookie de sesión")
	return nil
}

func sembrar(t *testing.T, db *gorm.DB, nombre string, costo string) *domain.Consola {
	t.Helper()
	cd, _ := decimal.NewFromString(costo)
	c := &domain.Consola{
		Nombre:           nombre,
		CostoAdquisicion: cd,
		FechaAdquisicion: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		Estado:           true,
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRedireccionSinSesion(t *testing.T) {
	h, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 302 {
		t.Fatalf("status = %d, esperaba 302", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/admin/auth" {
		t.Fatalf("location = %s", loc)
	}
}

func TestLoginCredencialesInvalidas(t *testing.T) {
	h, _ := newTestServer(t)
	form := url.Values{"user": {"admin"}, "pass": {"nope"}}
	req := httptest.NewRequest(http.MethodPost, "/admin/auth", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "credenciales inválidas") {
		t.Fatalf("status = %d body = %.80s", rr.Code, rr.Body.String())
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == "admin_token" && c.Value != "" {
			t.Fatal("no tendría que emitir cookie con credenciales malas")
		}
	}
}

func TestInventarioConSesion(t *testing.T) {
	h, db := newTestServer(t)
	sembrar(t, db, "Mega Drive", "500")
	cookie := login(t, h)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Mega Drive") {
		t.Fatal("el inventario no muestra la consola")
	}
}

func TestAgregarConsolaMultipart(t *testing.T) {
	h, db := newTestServer(t)
	cookie := login(t, h)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("nombre", "Game Gear")
	_ = mw.WriteField("costo_adquisicion", "350.00")
	_ = mw.WriteField("fecha_adquisicion", "2024-04-01")
	fw, _ := mw.CreateFormFile("fotos", "frente.jpg")
	_, _ = io.Copy(fw, bytes.NewReader([]byte("jpegdata")))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/agregar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 302 {
		t.Fatalf("status = %d body = %.200s", rr.Code, rr.Body.String())
	}

	var count int64
	db.Model(&domain.Consola{}).Where("nombre = ?", "Game Gear").Count(&count)
	if count != 1 {
		t.Fatal("la consola no se guardó")
	}
	var fotos int64
	db.Model(&domain.Foto{}).Count(&fotos)
	if fotos != 1 {
		t.Fatal("la foto no se guardó")
	}
}

func TestAgregarConsolaSinFoto(t *testing.T) {
	h, db := newTestServer(t)
	cookie := login(t, h)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("nombre", "Saturn")
	_ = mw.WriteField("costo_adquisicion", "900")
	_ = mw.WriteField("fecha_adquisicion", "2024-04-01")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/agregar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "al menos una foto") {
		t.Fatalf("status = %d body = %.200s", rr.Code, rr.Body.String())
	}
	var count int64
	db.Model(&domain.Consola{}).Count(&count)
	if count != 0 {
		t.Fatal("la validación no tendría que escribir nada")
	}
}

func TestRegistrarVentaFormulario(t *testing.T) {
	h, db := newTestServer(t)
	c := sembrar(t, db, "PS3", "1000")
	cookie := login(t, h)

	form := url.Values{
		"consola_id":     {strconv.FormatInt(c.ID, 10)},
		"nombre_cliente": {"Raúl"},
		"precio_venta":   {"1500"},
		"gastos_extra":   {"20"},
		"fecha_venta":    {"2024-05-10"},
	}
	req := httptest.NewRequest(http.MethodPost, "/agregar-venta", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 302 || rr.Header().Get("Location") != "/ventas" {
		t.Fatalf("status = %d location = %s body = %.200s", rr.Code, rr.Header().Get("Location"), rr.Body.String())
	}

	var got domain.Consola
	if err := db.First(&got, c.ID).Error; err != nil {
		t.Fatal(err)
	}
	if got.Estado {
		t.Fatal("la consola vendida sigue disponible")
	}
	var v domain.Venta
	if err := db.First(&v, "consola_id = ?", c.ID).Error; err != nil {
		t.Fatal(err)
	}
	want, _ := decimal.NewFromString("480")
	if !v.GananciaBruta.Equal(want) {
		t.Fatalf("ganancia = %s, esperaba 480", v.GananciaBruta)
	}
}

func TestRegistrarVentaSinPrecio(t *testing.T) {
	h, db := newTestServer(t)
	c := sembrar(t, db, "PS4", "2000")
	cookie := login(t, h)

	form := url.Values{
		"consola_id":     {strconv.FormatInt(c.ID, 10)},
		"nombre_cliente": {"Raúl"},
		"fecha_venta":    {"2024-05-10"},
	}
	req := httptest.NewRequest(http.MethodPost, "/agregar-venta", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "el precio de venta es obligatorio") {
		t.Fatalf("status = %d body = %.200s", rr.Code, rr.Body.String())
	}
	var count int64
	db.Model(&domain.Venta{}).Count(&count)
	if count != 0 {
		t.Fatal("no tendría que haber venta")
	}
}

func TestVentaConsolaInexistente(t *testing.T) {
	h, db := newTestServer(t)
	sembrar(t, db, "PS5", "3000")
	cookie := login(t, h)

	form := url.Values{
		"consola_id":     {"4242"},
		"nombre_cliente": {"Raúl"},
		"precio_venta":   {"5000"},
		"fecha_venta":    {"2024-05-10"},
	}
	req := httptest.NewRequest(http.MethodPost, "/agregar-venta", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "consola no encontrada") {
		t.Fatalf("status = %d body = %.200s", rr.Code, rr.Body.String())
	}
}

func TestReporteCSV(t *testing.T) {
	h, db := newTestServer(t)
	c := sembrar(t, db, "NES", "100")
	cookie := login(t, h)

	form := url.Values{
		"consola_id":     {strconv.FormatInt(c.ID, 10)},
		"nombre_cliente": {"Eva"},
		"precio_venta":   {"250"},
		"fecha_venta":    {"2024-02-15"},
	}
	req := httptest.NewRequest(http.MethodPost, "/agregar-venta", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	h.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/ventas?desde=2024-02-01&hasta=2024-02-28&format=csv", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content-type = %s", ct)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "NES") || !strings.Contains(body, "150.00") {
		t.Fatalf("csv incompleto: %s", body)
	}

	// una venta de marzo queda afuera del rango de febrero
	req = httptest.NewRequest(http.MethodGet, "/ventas?desde=2024-03-01&format=csv", nil)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if strings.Contains(rr.Body.String(), "NES") {
		t.Fatal("la venta de febrero no tendría que aparecer desde marzo")
	}
}
