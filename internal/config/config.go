package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/pipemap/internal/crs"
)

// Config holds the full application configuration.
type Config struct {
	Dataset DatasetConfig `yaml:"dataset" mapstructure:"dataset"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// DatasetConfig locates the shapefile and names its key fields.
type DatasetConfig struct {
	Path       string `yaml:"path" mapstructure:"path"`
	IDField    string `yaml:"id_field" mapstructure:"id_field"`
	YearField  string `yaml:"year_field" mapstructure:"year_field"`
	SourceEPSG int    `yaml:"source_epsg" mapstructure:"source_epsg"`
	Encoding   string `yaml:"encoding" mapstructure:"encoding"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string   `yaml:"host" mapstructure:"host"`
	Port            int      `yaml:"port" mapstructure:"port"`
	CORSOrigins     []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	UpdateRateLimit int      `yaml:"update_rate_limit" mapstructure:"update_rate_limit"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PIPEMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("dataset.path", "data/tempMainPipes.shp")
	v.SetDefault("dataset.id_field", "Asset_ID")
	v.SetDefault("dataset.year_field", "Inst_Year")
	v.SetDefault("dataset.source_epsg", 0)
	v.SetDefault("dataset.encoding", "")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.update_rate_limit", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. Every problem is reported in
// one error.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Dataset.Path) == "" {
		problems = append(problems, "dataset.path is required")
	} else if !strings.EqualFold(filepath.Ext(c.Dataset.Path), ".shp") {
		problems = append(problems, "dataset.path must point at a .shp file")
	}
	if strings.TrimSpace(c.Dataset.IDField) == "" {
		problems = append(problems, "dataset.id_field is required")
	}
	if strings.TrimSpace(c.Dataset.YearField) == "" {
		problems = append(problems, "dataset.year_field is required")
	}
	switch {
	case c.Dataset.SourceEPSG < 0:
		problems = append(problems, "dataset.source_epsg must not be negative")
	case c.Dataset.SourceEPSG > 0 && !crs.Supported(c.Dataset.SourceEPSG):
		problems = append(problems, fmt.Sprintf("dataset.source_epsg %d cannot be reprojected; describe it in a .prj instead", c.Dataset.SourceEPSG))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if c.Server.UpdateRateLimit < 0 {
		problems = append(problems, "server.update_rate_limit must not be negative")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
