package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	BackendDrive  = "drive"
	BackendLocal  = "local"
	BackendSQLite = "sqlite"

	minSessionSecret = 32
)

type Config struct {
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR" env-default:":8080"`
	LogLevel   string `yaml:"log_level"   env:"LOG_LEVEL"   env-default:"info"`
	LogFile    string `yaml:"log_file"    env:"LOG_FILE"`
	LogFormat  string `yaml:"log_format"  env:"LOG_FORMAT"  env-default:"json"`

	// StoreBackend holds the dataset and, unless RecordsBackend is set, the
	// users, companies and labels collections.
	StoreBackend   string `yaml:"store_backend"   env:"STORE_BACKEND"   env-default:"local"`
	RecordsBackend string `yaml:"records_backend" env:"RECORDS_BACKEND"`

	DriveCredentialsFile string `yaml:"gdrive_credentials_file" env:"GDRIVE_CREDENTIALS_FILE"`
	DriveKey             string `yaml:"gdrive_key"              env:"GDRIVE_KEY"`
	DriveRootFolder      string `yaml:"drive_root_folder"       env:"DRIVE_ROOT_FOLDER" env-default:"LabelingAppData"`
	LocalDataPath        string `yaml:"local_data_path"         env:"LOCAL_DATA_PATH"   env-default:"/data/marketlabel"`
	DBPath               string `yaml:"db_path"                 env:"DB_PATH"           env-default:"/data/marketlabel.db"`
	DatasetName          string `yaml:"dataset_name"            env:"DATASET_NAME"      env-default:"Abilene_tx_500mi"`

	SessionSecret   string        `yaml:"session_secret"    env:"SESSION_SECRET"    env-required:"true"`
	SecureCookies   bool          `yaml:"secure_cookies"    env:"SECURE_COOKIES"    env-default:"false"`
	SessionMaxAge   time.Duration `yaml:"session_max_age"   env:"SESSION_MAX_AGE"   env-default:"24h"`
	CatalogCacheTTL time.Duration `yaml:"catalog_cache_ttl" env:"CATALOG_CACHE_TTL" env-default:"5m"`
	ImageCacheTTL   time.Duration `yaml:"image_cache_ttl"   env:"IMAGE_CACHE_TTL"   env-default:"1h"`
	ManagerEnabled  bool          `yaml:"manager_enabled"   env:"MANAGER_ENABLED"   env-default:"true"`
}

// Load reads configuration from an optional YAML file and the environment.
// Priority: ENV > YAML > defaults. The YAML path comes from CONFIG_PATH; when
// it is unset only the environment is read.
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.SessionSecret) < minSessionSecret {
		return fmt.Errorf("session_secret must be at least %d characters (got %d)", minSessionSecret, len(c.SessionSecret))
	}

	if !slices.Contains([]string{BackendDrive, BackendLocal}, c.StoreBackend) {
		return fmt.Errorf("store_backend must be %q or %q (got %q)", BackendDrive, BackendLocal, c.StoreBackend)
	}
	if c.RecordsBackend != "" && c.RecordsBackend != BackendSQLite {
		return fmt.Errorf("records_backend must be empty or %q (got %q)", BackendSQLite, c.RecordsBackend)
	}

	if c.StoreBackend == BackendDrive && c.DriveKey == "" && c.DriveCredentialsFile == "" {
		return fmt.Errorf("drive backend requires gdrive_key or gdrive_credentials_file")
	}
	if c.StoreBackend == BackendDrive && strings.TrimSpace(c.DriveRootFolder) == "" {
		return fmt.Errorf("drive_root_folder is required for the drive backend")
	}
	if c.StoreBackend == BackendLocal && c.LocalDataPath == "" {
		return fmt.Errorf("local_data_path is required for the local backend")
	}
	if c.RecordsBackend == BackendSQLite && c.DBPath == "" {
		return fmt.Errorf("db_path is required for the sqlite records backend")
	}

	if strings.TrimSpace(c.DatasetName) == "" {
		return fmt.Errorf("dataset_name is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("log_format must be json or text (got %q)", c.LogFormat)
	}
	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("session_max_age must be > 0 (got %v)", c.SessionMaxAge)
	}
	if c.CatalogCacheTTL < 0 || c.ImageCacheTTL < 0 {
		return fmt.Errorf("cache ttls must be >= 0")
	}
	return nil
}
