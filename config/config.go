package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del pipeline de ajuste.
type Config struct {
	Fit     FitConfig     `yaml:"fit"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// FitConfig controla el preprocesado y el ajuste.
type FitConfig struct {
	Product    string   `yaml:"product"`     // oil | gas
	Window     int      `yaml:"window_size"` // observaciones para estimar el pico inicial
	Wells      []string `yaml:"wells"`       // vacío = todos los pozos
	OnlineFrom string   `yaml:"online_from"` // YYYY-MM-DD, opcional
	OnlineTo   string   `yaml:"online_to"`   // YYYY-MM-DD, opcional
	Workers    int      `yaml:"workers"`     // goroutines de ajuste (0 = NumCPU)

	Bounds BoundsConfig `yaml:"model_bounds"`
	Solver SolverConfig `yaml:"solver"`
}

// BoundsConfig son los topes de la caja de parámetros del ajuste.
// Los ceros usan los defaults del dominio.
type BoundsConfig struct {
	DiMax float64 `yaml:"di_max"` // tope de la tasa de declino (1/día)
	BMin  float64 `yaml:"b_min"`  // piso del exponente b, siempre > 0
	BMax  float64 `yaml:"b_max"`  // tope del exponente b
}

// SolverConfig son las tolerancias del solver. Los ceros usan los defaults.
type SolverConfig struct {
	TolStep       float64 `yaml:"tol_step"`
	TolCost       float64 `yaml:"tol_cost"`
	TolGrad       float64 `yaml:"tol_grad"`
	MaxIterations int     `yaml:"max_iterations"`
	Damping       float64 `yaml:"damping"` // λ inicial
}

// IngestConfig elige y configura la fuente de observaciones.
type IngestConfig struct {
	Source string    `yaml:"source"` // csv | api
	CSV    CSVConfig `yaml:"csv"`
	API    APIConfig `yaml:"api"`
}

// CSVConfig describe el archivo CSV de producción y su mapeo de columnas.
type CSVConfig struct {
	Path    string        `yaml:"path"`
	Columns ColumnsConfig `yaml:"columns"`
}

// ColumnsConfig mapea los encabezados del CSV a los campos del dominio.
type ColumnsConfig struct {
	Entity string `yaml:"entity"` // identificador del pozo
	Date   string `yaml:"date"`   // fecha del reporte
	Oil    string `yaml:"oil"`    // tasa de petróleo
	Gas    string `yaml:"gas"`    // tasa de gas
}

// APIConfig apunta al portal remoto de datos de producción.
type APIConfig struct {
	Base       string  `yaml:"base"`
	PageSize   int     `yaml:"page_size"`
	RatePerSec float64 `yaml:"rate_per_sec"` // límite de requests por segundo
}

// StorageConfig controla dónde se persisten los resultados.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si
// existe. Las variables de entorno sobreescriben al YAML para las keys que
// correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("WELLFIT_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
// Las tolerancias del solver y los topes de caja se quedan en cero aquí:
// sus defaults viven junto a quien los usa.
func setDefaults(cfg *Config) {
	if cfg.Fit.Product == "" {
		cfg.Fit.Product = "oil"
	}
	if cfg.Fit.Window <= 0 {
		cfg.Fit.Window = 3
	}
	if cfg.Ingest.Source == "" {
		cfg.Ingest.Source = "csv"
	}
	if cfg.Ingest.CSV.Path == "" {
		cfg.Ingest.CSV.Path = "production.csv"
	}
	if cfg.Ingest.CSV.Columns.Entity == "" {
		cfg.Ingest.CSV.Columns.Entity = "API_WELLNO"
	}
	if cfg.Ingest.CSV.Columns.Date == "" {
		cfg.Ingest.CSV.Columns.Date = "ReportDate"
	}
	if cfg.Ingest.CSV.Columns.Oil == "" {
		cfg.Ingest.CSV.Columns.Oil = "Oil"
	}
	if cfg.Ingest.CSV.Columns.Gas == "" {
		cfg.Ingest.CSV.Columns.Gas = "Gas"
	}
	if cfg.Ingest.API.Base == "" {
		cfg.Ingest.API.Base = "https://data.dmr.nd.gov/api"
	}
	if cfg.Ingest.API.PageSize <= 0 {
		cfg.Ingest.API.PageSize = 1000
	}
	if cfg.Ingest.API.RatePerSec <= 0 {
		cfg.Ingest.API.RatePerSec = 5
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "wellfit.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
