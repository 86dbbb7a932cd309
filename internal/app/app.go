package app

import (
	"html/template"
	"net/http"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/FingerSpinx7/consola-admin/internal/adapters/httpserver"
	"github.com/FingerSpinx7/consola-admin/internal/adapters/repo/postgres"
	"github.com/FingerSpinx7/consola-admin/internal/adapters/storage/localfs"
	"github.com/FingerSpinx7/consola-admin/internal/domain"
	"github.com/FingerSpinx7/consola-admin/internal/usecase"
	"github.com/FingerSpinx7/consola-admin/internal/views"
)

type App struct {
	DB          *gorm.DB
	Tmpl        *template.Template
	ConsolaUC   *usecase.ConsolaUC
	VentaUC     *usecase.VentaUC
	Storage     domain.FileStorage
	OAuthConfig *oauth2.Config
}

func NewApp(db *gorm.DB) (*App, error) {
	consolaRepo := postgres.NewConsolaRepo(db)
	ventaRepo := postgres.NewVentaRepo(db)

	storageDir := os.Getenv("STORAGE_DIR")
	if storageDir == "" {
		storageDir = "uploads"
	}
	_ = os.MkdirAll(storageDir, 0755)
	storage := localfs.New(storageDir)

	var oauthCfg *oauth2.Config
	googleID := os.Getenv("GOOGLE_CLIENT_ID")
	googleSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if googleID != "" && googleSecret != "" {
		oauthCfg = &oauth2.Config{
			ClientID:     googleID,
			ClientSecret: googleSecret,
			RedirectURL:  baseURL + "/auth/google/callback",
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}
	}

	app := &App{DB: db, Storage: storage, OAuthConfig: oauthCfg}
	app.ConsolaUC = &usecase.ConsolaUC{Consolas: consolaRepo, Ventas: ventaRepo, Storage: storage}
	app.VentaUC = &usecase.VentaUC{Ventas: ventaRepo, Consolas: consolaRepo}

	funcMap := template.FuncMap{
		"money": func(d decimal.Decimal) string { return "$" + d.StringFixed(2) },
	}

	appEnv := strings.ToLower(os.Getenv("APP_ENV"))
	isDev := appEnv == "" || appEnv == "development" || appEnv == "dev"

	var tmpl *template.Template
	var err error
	if isDev {
		tmpl, err = template.New("layout").Funcs(funcMap).ParseGlob("internal/views/*.html")
	} else {
		tmpl, err = template.New("layout").Funcs(funcMap).ParseFS(views.FS, "*.html")
	}
	if err != nil {
		return nil, err
	}
	app.Tmpl = tmpl

	return app, nil
}

func (a *App) HTTPHandler() http.Handler {
	return httpserver.New(a.Tmpl, a.ConsolaUC, a.VentaUC, a.Storage, a.OAuthConfig)
}

func (a *App) Migrate() error {
	if err := a.DB.AutoMigrate(
		&domain.Consola{}, &domain.Foto{}, &domain.Venta{},
	); err != nil {
		return err
	}

	_ = a.DB.Exec("ALTER TABLE consolas ADD COLUMN IF NOT EXISTS gastos_extra_adquisicion DECIMAL(12,2) DEFAULT 0").Error
	_ = a.DB.Exec("UPDATE consolas SET gastos_extra_adquisicion = 0 WHERE gastos_extra_adquisicion IS NULL").Error
	_ = a.DB.Exec("UPDATE consolas SET estado = true WHERE estado IS NULL").Error

	_ = a.DB.Exec("CREATE INDEX IF NOT EXISTS idx_consolas_estado ON consolas(estado)").Error
	_ = a.DB.Exec("CREATE INDEX IF NOT EXISTS idx_ventas_fecha_venta ON ventas(fecha_venta)").Error
	_ = a.DB.Exec("CREATE INDEX IF NOT EXISTS idx_fotos_consola_id ON fotos(consola_id)").Error

	return nil
}
