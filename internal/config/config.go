// internal/config/config.go
package config

import (
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	App        AppConfig
	Cache      CacheConfig
	Simulation SimulationConfig
	Storage    StorageConfig
	Drive      DriveConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	LogLevel       string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// AppConfig locates the four input feeds and the output artifacts.
type AppConfig struct {
	InputDir      string
	DataDir       string
	SalesFile     string
	InventoryFile string
	ROPFile       string
	EOQFile       string
	WriteWorkbook bool
	RunStore      string
	BoltPath      string
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RunTTLSeconds int
}

// SimulationConfig holds the replenishment policy tunables.
type SimulationConfig struct {
	LeadTimeDays        int
	CoverDays           float64
	TruckMinTons        float64
	TruckMaxTons        float64
	Interactive         bool
	StripToken          string
	FallbackStart       string
	FallbackEnd         string
	ScenarioParallelism int
}

// StorageConfig configures the S3-compatible bucket for inputs and artifacts.
type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	Prefix    string
}

type DriveConfig struct {
	CredentialsJSON string
	FolderID        string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		v := viper.GetViper()
		SetDefaults(v)

		// Read from environment variables
		v.AutomaticEnv()

		instance = FromViper(v)

		// Ensure input and data directories exist
		ensureDir(instance.App.InputDir)
		ensureDir(instance.App.DataDir)
	})

	return instance
}

// SetDefaults registers every documented default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 120)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "stocksim")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("APP_INPUT_DIR", "./data")
	v.SetDefault("APP_DATA_DIR", "./data")
	v.SetDefault("APP_SALES_FILE", "AprJun2024.csv")
	v.SetDefault("APP_INVENTORY_FILE", "latest_inventory.csv")
	v.SetDefault("APP_ROP_FILE", "reorder_evaluation.csv")
	v.SetDefault("APP_EOQ_FILE", "eoq_results.csv")
	v.SetDefault("APP_WRITE_WORKBOOK", false)
	v.SetDefault("APP_RUN_STORE", "memory")
	v.SetDefault("APP_BOLT_PATH", "./data/runs.db")

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_RUN_TTL_SECONDS", 3600)

	v.SetDefault("SIM_LEAD_TIME_DAYS", 7)
	v.SetDefault("SIM_COVER_DAYS", 45)
	v.SetDefault("SIM_TRUCK_MIN_TONS", 10)
	v.SetDefault("SIM_TRUCK_MAX_TONS", 12)
	v.SetDefault("SIM_INTERACTIVE", false)
	v.SetDefault("SIM_STRIP_TOKEN", "MDF")
	v.SetDefault("SIM_FALLBACK_START", "2024-04-01")
	v.SetDefault("SIM_FALLBACK_END", "2024-06-30")
	v.SetDefault("SIM_SCENARIO_PARALLELISM", 4)

	v.SetDefault("STORAGE_ENABLED", false)
	v.SetDefault("STORAGE_ENDPOINT", "")
	v.SetDefault("STORAGE_ACCESS_KEY", "")
	v.SetDefault("STORAGE_SECRET_KEY", "")
	v.SetDefault("STORAGE_BUCKET", "")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_USE_SSL", true)
	v.SetDefault("STORAGE_PREFIX", "stocksim")

	v.SetDefault("GOOGLE_DRIVE_CREDENTIALS_JSON", "")
	v.SetDefault("DRIVE_FOLDER_ID", "")
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		App: AppConfig{
			InputDir:      v.GetString("APP_INPUT_DIR"),
			DataDir:       v.GetString("APP_DATA_DIR"),
			SalesFile:     v.GetString("APP_SALES_FILE"),
			InventoryFile: v.GetString("APP_INVENTORY_FILE"),
			ROPFile:       v.GetString("APP_ROP_FILE"),
			EOQFile:       v.GetString("APP_EOQ_FILE"),
			WriteWorkbook: v.GetBool("APP_WRITE_WORKBOOK"),
			RunStore:      v.GetString("APP_RUN_STORE"),
			BoltPath:      v.GetString("APP_BOLT_PATH"),
		},
		Cache: CacheConfig{
			Enabled:       v.GetBool("CACHE_ENABLED"),
			RedisURL:      v.GetString("REDIS_URL"),
			RedisHost:     v.GetString("REDIS_HOST"),
			RedisPort:     v.GetString("REDIS_PORT"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			RunTTLSeconds: v.GetInt("CACHE_RUN_TTL_SECONDS"),
		},
		Simulation: SimulationConfig{
			LeadTimeDays:        v.GetInt("SIM_LEAD_TIME_DAYS"),
			CoverDays:           v.GetFloat64("SIM_COVER_DAYS"),
			TruckMinTons:        v.GetFloat64("SIM_TRUCK_MIN_TONS"),
			TruckMaxTons:        v.GetFloat64("SIM_TRUCK_MAX_TONS"),
			Interactive:         v.GetBool("SIM_INTERACTIVE"),
			StripToken:          v.GetString("SIM_STRIP_TOKEN"),
			FallbackStart:       v.GetString("SIM_FALLBACK_START"),
			FallbackEnd:         v.GetString("SIM_FALLBACK_END"),
			ScenarioParallelism: v.GetInt("SIM_SCENARIO_PARALLELISM"),
		},
		Storage: StorageConfig{
			Enabled:   v.GetBool("STORAGE_ENABLED"),
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			Region:    v.GetString("STORAGE_REGION"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
			Prefix:    v.GetString("STORAGE_PREFIX"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
			FolderID:        v.GetString("DRIVE_FOLDER_ID"),
		},
	}
}

// InputPath resolves a feed file name against the input directory.
// Absolute paths are returned unchanged.
func (a AppConfig) InputPath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(a.InputDir, name)
}

func ensureDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
