package httpserver

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/oauth2"

	"github.com/FingerSpinx7/consola-admin/internal/domain"
	"github.com/FingerSpinx7/consola-admin/internal/usecase"
)

const fechaLayout = "2006-01-02"

type Server struct {
	mux      *http.ServeMux
	tmpl     *template.Template
	consolas *usecase.ConsolaUC
	ventas   *usecase.VentaUC
	storage  domain.FileStorage
	oauthCfg *oauth2.Config

	adminAllowed map[string]struct{}
	adminSecret  []byte
}

func New(t *template.Template, c *usecase.ConsolaUC, v *usecase.VentaUC, fs domain.FileStorage, oauthCfg *oauth2.Config) http.Handler {
	s := &Server{tmpl: t, consolas: c, ventas: v, storage: fs, oauthCfg: oauthCfg, mux: http.NewServeMux()}

	allowed := map[string]struct{}{}
	if raw := os.Getenv("ADMIN_ALLOWED_EMAILS"); raw != "" {
		for _, e := range strings.Split(raw, ",") {
			e = strings.ToLower(strings.TrimSpace(e))
			if e != "" {
				allowed[e] = struct{}{}
			}
		}
	}
	s.adminAllowed = allowed
	sec := os.Getenv("SESSION_KEY")
	if sec == "" {
		sec = "dev-admin-secret"
	}
	s.adminSecret = []byte(sec)

	s.routes()
	return Chain(s.mux,
		SecurityHeaders,
		RequestID,
		Recovery,
		Logging,
	)
}

func (s *Server) routes() {
	s.mux.Handle("/public/", http.StripPrefix("/public/", http.FileServer(http.Dir("public"))))
	s.mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadsDir()))))

	s.mux.HandleFunc("/", s.handleInventario)
	s.mux.HandleFunc("/consola/", s.handleConsola)
	s.mux.HandleFunc("/agregar", s.handleAgregar)
	s.mux.HandleFunc("/agregar-venta", s.handleAgregarVenta)
	s.mux.HandleFunc("/ventas", s.handleVentas)
	s.mux.HandleFunc("/fotos/delete", s.handleFotoDelete)

	s.mux.HandleFunc("/admin/auth", s.handleAdminAuth)
	s.mux.HandleFunc("/logout", s.handleLogout)
	s.mux.HandleFunc("/auth/google/login", s.handleGoogleLogin)
	s.mux.HandleFunc("/auth/google/callback", s.handleGoogleCallback)
}

func uploadsDir() string {
	if d := os.Getenv("STORAGE_DIR"); d != "" {
		return d
	}
	return "uploads"
}

func (s *Server) handleInventario(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !s.requireSession(w, r) {
		return
	}
	list, err := s.consolas.Listar(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("listar inventario")
		http.Error(w, "err", 500)
		return
	}
	s.render(w, "inventario.html", map[string]any{"Consolas": list})
}

func (s *Server) handleConsola(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/consola/")
	if editar := strings.TrimSuffix(rest, "/editar"); editar != rest {
		s.handleEditar(w, r, editar)
		return
	}
	id, err := strconv.ParseInt(strings.TrimSuffix(rest, "/"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	c, err := s.consolas.Detalle(r.Context(), id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	s.render(w, "consola.html", map[string]any{"Consola": c, "Venta": c.Venta()})
}

func (s *Server) handleAgregar(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}
	if r.Method == http.MethodGet {
		s.render(w, "agregar.html", map[string]any{})
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	if err := r.ParseMultipartForm(25 << 20); err != nil {
		s.render(w, "agregar.html", map[string]any{"Error": "formulario inválido"})
		return
	}
	c := &domain.Consola{
		Nombre:                 strings.TrimSpace(r.FormValue("nombre")),
		Descripcion:            r.FormValue("descripcion"),
		Proveedor:              strings.TrimSpace(r.FormValue("proveedor")),
		CostoAdquisicion:       parseDecimal(r.FormValue("costo_adquisicion")),
		GastosExtraAdquisicion: parseDecimal(r.FormValue("gastos_extra_adquisicion")),
		FechaAdquisicion:       parseFecha(r.FormValue("fecha_adquisicion")),
	}
	fotos := readFotoFiles(r)
	if err := s.consolas.Crear(r.Context(), c, fotos); err != nil {
		log.Warn().Err(err).Msg("agregar consola")
		s.render(w, "agregar.html", map[string]any{"Error": userMessage(err), "Consola": c})
		return
	}
	http.Redirect(w, r, "/", 302)
}

func (s *Server) handleEditar(w http.ResponseWriter, r *http.Request, rawID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	id, err := strconv.ParseInt(strings.TrimSuffix(rawID, "/"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseMultipartForm(25 << 20); err != nil {
		http.Error(w, "multipart", 400)
		return
	}
	edit := usecase.ConsolaEdit{
		Nombre:                 strings.TrimSpace(r.FormValue("nombre")),
		Descripcion:            r.FormValue("descripcion"),
		Proveedor:              strings.TrimSpace(r.FormValue("proveedor")),
		CostoAdquisicion:       parseDecimal(r.FormValue("costo_adquisicion")),
		GastosExtraAdquisicion: parseDecimal(r.FormValue("gastos_extra_adquisicion")),
		FechaAdquisicion:       parseFecha(r.FormValue("fecha_adquisicion")),
	}
	var ventaEdit *usecase.VentaEdit
	if r.FormValue("tiene_venta") == "1" {
		ventaEdit = &usecase.VentaEdit{
			NombreCliente: strings.TrimSpace(r.FormValue("nombre_cliente")),
			PrecioVenta:   parseDecimal(r.FormValue("precio_venta")),
			GastosExtra:   parseDecimal(r.FormValue("gastos_extra")),
			Detalles:      r.FormValue("detalles_venta"),
		}
	}
	fotos := readFotoFiles(r)
	if err := s.consolas.Actualizar(r.Context(), id, edit, ventaEdit, fotos); err != nil {
		log.Error().Err(err).Int64("consola", id).Msg("editar consola")
		c, derr := s.consolas.Detalle(r.Context(), id)
		if derr != nil {
			http.NotFound(w, r)
			return
		}
		s.render(w, "consola.html", map[string]any{"Consola": c, "Venta": c.Venta(), "Error": userMessage(err)})
		return
	}
	http.Redirect(w, r, "/consola/"+rawID, 302)
}

func (s *Server) handleAgregarVenta(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}
	disponibles, err := s.ventas.Disponibles(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("consolas disponibles")
		http.Error(w, "err", 500)
		return
	}
	if r.Method == http.MethodGet {
		s.render(w, "agregar_venta.html", map[string]any{"Disponibles": disponibles})
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "form", 400)
		return
	}
	consolaID, _ := strconv.ParseInt(r.FormValue("consola_id"), 10, 64)
	precioRaw := strings.TrimSpace(r.FormValue("precio_venta"))
	nv := usecase.NuevaVenta{
		ConsolaID:     consolaID,
		NombreCliente: strings.TrimSpace(r.FormValue("nombre_cliente")),
		PrecioVenta:   parseDecimal(precioRaw),
		GastosExtra:   parseDecimal(r.FormValue("gastos_extra")),
		FechaVenta:    parseFecha(r.FormValue("fecha_venta")),
		Detalles:      r.FormValue("detalles_venta"),
	}
	if precioRaw == "" {
		s.render(w, "agregar_venta.html", map[string]any{"Disponibles": disponibles, "Error": "el precio de venta es obligatorio"})
		return
	}
	v, err := s.ventas.Registrar(r.Context(), disponibles, nv)
	var estadoErr *usecase.ErrEstadoNoActualizado
	switch {
	case errors.As(err, &estadoErr):
		// la venta existe, sólo falló el flip de estado
		log.Error().Err(err).Int64("venta", estadoErr.VentaID).Msg("estado de consola sin actualizar")
	case errors.Is(err, domain.ErrNotFound):
		s.render(w, "agregar_venta.html", map[string]any{"Disponibles": disponibles, "Error": "consola no encontrada, recargá la lista"})
		return
	case err != nil:
		log.Error().Err(err).Msg("registrar venta")
		s.render(w, "agregar_venta.html", map[string]any{"Disponibles": disponibles, "Error": userMessage(err)})
		return
	}
	for i := range disponibles {
		if disponibles[i].ID == v.ConsolaID {
			notifyVenta(v, disponibles[i].Nombre)
			break
		}
	}
	http.Redirect(w, r, "/ventas", 302)
}

func (s *Server) handleVentas(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}
	q := r.URL.Query()
	var rango domain.RangoFechas
	if ds := q.Get("desde"); ds != "" {
		if t, err := time.Parse(fechaLayout, ds); err == nil {
			rango.Desde = &t
		}
	}
	if ds := q.Get("hasta"); ds != "" {
		if t, err := time.Parse(fechaLayout, ds); err == nil {
			rango.Hasta = &t
		}
	}
	rep, err := s.ventas.Reporte(r.Context(), rango)
	if err != nil {
		log.Error().Err(err).Msg("reporte ventas")
		http.Error(w, "err", 500)
		return
	}

	switch strings.ToLower(q.Get("format")) {
	case "csv":
		s.writeVentasCSV(w, rep, rango)
		return
	case "xlsx":
		s.writeVentasXLSX(w, rep, rango)
		return
	}

	s.render(w, "ventas.html", map[string]any{
		"Ventas": rep.Ventas,
		"Total":  rep.TotalFormateado(),
		"Desde":  q.Get("desde"),
		"Hasta":  q.Get("hasta"),
	})
}

func exportName(rango domain.RangoFechas, ext string) string {
	desde, hasta := "inicio", "hoy"
	if rango.Desde != nil {
		desde = rango.Desde.Format(fechaLayout)
	}
	if rango.Hasta != nil {
		hasta = rango.Hasta.Format(fechaLayout)
	}
	return fmt.Sprintf("ventas_%s_%s.%s", desde, hasta, ext)
}

func consolaNombre(v *domain.Venta) string {
	if v.Consola != nil {
		return v.Consola.Nombre
	}
	return "Producto eliminado"
}

func (s *Server) writeVentasCSV(w http.ResponseWriter, rep *usecase.Reporte, rango domain.RangoFechas) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+exportName(rango, "csv"))
	fmt.Fprintln(w, "fecha_venta,consola,cliente,precio_venta,gastos_extra,ganancia_bruta")
	for i := range rep.Ventas {
		v := &rep.Ventas[i]
		fmt.Fprintf(w, "%s,%s,%s,%s,%s,%s\n",
			v.FechaVenta.Format(fechaLayout),
			strings.ReplaceAll(consolaNombre(v), ",", " "),
			strings.ReplaceAll(v.NombreCliente, ",", " "),
			v.PrecioVenta.StringFixed(2),
			v.GastosExtra.StringFixed(2),
			v.GananciaBruta.StringFixed(2))
	}
	fmt.Fprintf(w, "total,,,,,%s\n", rep.TotalFormateado())
}

func (s *Server) writeVentasXLSX(w http.ResponseWriter, rep *usecase.Reporte, rango domain.RangoFechas) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "Ventas"
	f.SetSheetName("Sheet1", sheet)
	headers := []string{"Fecha", "Consola", "Cliente", "Precio Venta", "Gastos Extra", "Ganancia Bruta"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	row := 2
	for i := range rep.Ventas {
		v := &rep.Ventas[i]
		vals := []any{v.FechaVenta.Format(fechaLayout), consolaNombre(v), v.NombreCliente,
			v.PrecioVenta.InexactFloat64(), v.GastosExtra.InexactFloat64(), v.GananciaBruta.InexactFloat64()}
		for j, val := range vals {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			_ = f.SetCellValue(sheet, cell, val)
		}
		row++
	}
	totalCell, _ := excelize.CoordinatesToCellName(6, row)
	labelCell, _ := excelize.CoordinatesToCellName(1, row)
	_ = f.SetCellValue(sheet, labelCell, "Total")
	_ = f.SetCellValue(sheet, totalCell, rep.Total.InexactFloat64())

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+exportName(rango, "xlsx"))
	if err := f.Write(w); err != nil {
		log.Error().Err(err).Msg("export xlsx")
	}
}

func (s *Server) handleFotoDelete(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "form", 400)
		return
	}
	fotoID, err := strconv.ParseInt(r.FormValue("foto_id"), 10, 64)
	if err != nil {
		http.Error(w, "foto_id", 400)
		return
	}
	url, err := s.consolas.QuitarFoto(r.Context(), fotoID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "not found", 404)
			return
		}
		log.Error().Err(err).Int64("foto", fotoID).Msg("borrar foto")
		http.Error(w, "err", 500)
		return
	}
	if rmErr := s.storage.Remove(r.Context(), url); rmErr != nil {
		log.Warn().Err(rmErr).Str("url", url).Msg("no se pudo borrar el archivo de la foto")
	}
	if back := r.FormValue("volver"); strings.HasPrefix(back, "/consola/") {
		http.Redirect(w, r, back, 302)
		return
	}
	writeJSON(w, 200, map[string]any{"deleted": fotoID})
}

// readFotoFiles junta los archivos de los campos foto/fotos del multipart.
func readFotoFiles(r *http.Request) []usecase.FotoUpload {
	files := []*multipart.FileHeader{}
	if r.MultipartForm != nil {
		if fhArr, ok := r.MultipartForm.File["foto"]; ok {
			files = append(files, fhArr...)
		}
		if fhArr, ok := r.MultipartForm.File["fotos"]; ok {
			files = append(files, fhArr...)
		}
	}
	out := []usecase.FotoUpload{}
	for _, fh := range files {
		if fh.Size == 0 {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil || len(data) == 0 {
			continue
		}
		out = append(out, usecase.FotoUpload{Nombre: fh.Filename, Data: data})
	}
	return out
}

// parseDecimal trata vacío o ilegible como 0.
func parseDecimal(v string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseFecha(v string) time.Time {
	t, err := time.Parse(fechaLayout, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}
	}
	return t
}

func userMessage(err error) string {
	if errors.Is(err, domain.ErrValidation) {
		msg := err.Error()
		if i := strings.Index(msg, ": "); i >= 0 {
			return msg[i+2:]
		}
		return msg
	}
	if errors.Is(err, domain.ErrNotFound) {
		return "no encontrado"
	}
	return "no se pudo guardar, probá de nuevo"
}

func (s *Server) render(w http.ResponseWriter, name string, data map[string]any) {
	if _, exists := data["Year"]; !exists {
		data["Year"] = time.Now().Year()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		log.Error().Err(err).Str("tpl", name).Msg("render")
		http.Error(w, "tpl", 500)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// --- sesión ---

func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) bool {
	if s.isSession(r) {
		return true
	}
	http.Redirect(w, r, "/admin/auth", 302)
	return false
}

func (s *Server) isSession(r *http.Request) bool {
	c, err := r.Cookie("admin_token")
	if err != nil || c.Value == "" {
		return false
	}
	_, err = s.verifyToken(c.Value)
	return err == nil
}

func (s *Server) handleAdminAuth(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		if s.isSession(r) {
			http.Redirect(w, r, "/", 302)
			return
		}
		s.render(w, "admin_auth.html", map[string]any{"GoogleLogin": s.oauthCfg != nil})
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method", 405)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "form", 400)
		return
	}
	user := strings.TrimSpace(r.FormValue("user"))
	pass := strings.TrimSpace(r.FormValue("pass"))
	cfgUser := os.Getenv("ADMIN_USER")
	cfgPass := os.Getenv("ADMIN_PASS")
	if cfgUser == "" {
		cfgUser = "admin"
	}
	if cfgPass == "" {
		cfgPass = "admin123"
	}
	if !secureCompare(user, cfgUser) || !secureCompare(pass, cfgPass) {
		s.render(w, "admin_auth.html", map[string]any{"Error": "credenciales inválidas", "GoogleLogin": s.oauthCfg != nil})
		return
	}
	s.issueSessionCookie(w, r, user+"@local")
	http.Redirect(w, r, "/", 302)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	secure := r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
	http.SetCookie(w, &http.Cookie{Name: "admin_token", Value: "", Path: "/", MaxAge: -1, HttpOnly: true, Secure: secure, SameSite: http.SameSiteStrictMode})
	http.Redirect(w, r, "/admin/auth", 302)
}

func (s *Server) issueSessionCookie(w http.ResponseWriter, r *http.Request, email string) {
	tok, _ := s.issueToken(email, 12*time.Hour)
	secure := r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
	http.SetCookie(w, &http.Cookie{Name: "admin_token", Value: tok, Path: "/", MaxAge: 60 * 60 * 12, HttpOnly: true, Secure: secure, SameSite: http.SameSiteLaxMode})
}

func (s *Server) issueToken(email string, dur time.Duration) (string, time.Time) {
	head := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	exp := time.Now().Add(dur)
	claims := map[string]any{"sub": email, "email": email, "exp": exp.Unix(), "iat": time.Now().Unix(), "iss": "consola-admin"}
	b, _ := json.Marshal(claims)
	pay := base64.RawURLEncoding.EncodeToString(b)
	unsigned := head + "." + pay
	h := hmac.New(sha256.New, s.adminSecret)
	h.Write([]byte(unsigned))
	sig := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	return unsigned + "." + sig, exp
}

func (s *Server) verifyToken(tok string) (string, error) {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("formato")
	}
	unsigned := parts[0] + "." + parts[1]
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("sig")
	}
	h := hmac.New(sha256.New, s.adminSecret)
	h.Write([]byte(unsigned))
	if !hmac.Equal(sig, h.Sum(nil)) {
		return "", fmt.Errorf("firma")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("payload")
	}
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return "", fmt.Errorf("json")
	}
	email, _ := m["email"].(string)
	expF, _ := m["exp"].(float64)
	if email == "" {
		return "", fmt.Errorf("claims")
	}
	if time.Now().Unix() > int64(expF) {
		return "", fmt.Errorf("exp")
	}
	return email, nil
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := 0; i < len(a); i++ {
		v |= a[i] ^ b[i]
	}
	return v == 0
}

// --- Google OAuth (opcional, depende de GOOGLE_CLIENT_ID/SECRET) ---

func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if s.oauthCfg == nil {
		http.Error(w, "oauth no configurado", 500)
		return
	}
	state := uuid.New().String()
	http.SetCookie(w, &http.Cookie{Name: "oauth_state", Value: state, Path: "/", MaxAge: 300, HttpOnly: true})
	http.Redirect(w, r, s.oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOnline), 302)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauthCfg == nil {
		http.Error(w, "oauth no configurado", 500)
		return
	}
	q := r.URL.Query()
	state := q.Get("state")
	c, _ := r.Cookie("oauth_state")
	if c == nil || c.Value == "" || c.Value != state {
		http.Error(w, "state", 400)
		return
	}
	tok, err := s.oauthCfg.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		log.Error().Err(err).Msg("exchange oauth")
		http.Error(w, "oauth", 400)
		return
	}
	client := s.oauthCfg.Client(r.Context(), tok)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v3/userinfo")
	if err != nil || resp.StatusCode != 200 {
		log.Error().Err(err).Msg("userinfo")
		http.Error(w, "userinfo", 400)
		return
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	var info struct {
		Email string `json:"email"`
	}
	_ = json.Unmarshal(body, &info)
	email := strings.ToLower(strings.TrimSpace(info.Email))
	if email == "" {
		http.Error(w, "email", 400)
		return
	}
	if len(s.adminAllowed) > 0 {
		if _, ok := s.adminAllowed[email]; !ok {
			http.Error(w, "forbidden", 403)
			return
		}
	}
	s.issueSessionCookie(w, r, email)
	http.Redirect(w, r, "/", 302)
}
