package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/mcp-pdf-forms/internal/convert"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort            = 8080
	DefaultHost            = "127.0.0.1"
	DefaultLogLevel        = "info"
	DefaultMaxFileSize     = 100 * 1024 * 1024 // 100MB
	DefaultReduceThreshold = 5 * 1024 * 1024   // 5MB
	DefaultRasterDPI       = 110.0
	DefaultJPEGQuality     = 60
	DefaultImageCacheTTL   = 15 * time.Second
	DefaultWorkers         = 4
	DefaultConverterSlots  = 2

	// Directory permissions
	DefaultDirPerm = 0o750

	envPrefix = "PDF_FORMS"
)

// Config holds all configuration for the PDF forms MCP server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Storage configuration
	DataDirectory string

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF file size in bytes
	ConfigFile  string

	// Document processing
	ReduceThreshold int64 // Documents at or above this size are rasterised
	RasterDPI       float64
	JPEGQuality     int
	ImageCacheTTL   time.Duration
	Workers         int
	ConverterSlots  int
	AuditBackground string // Optional PDF drawn behind audit trail pages
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		// Fallback to current directory if working directory cannot be determined
		currentDir = "."
	}

	return &Config{
		Mode:            ModeStdio, // Default to stdio mode for MCP compatibility
		Host:            DefaultHost,
		Port:            DefaultPort,
		DataDirectory:   currentDir,
		Version:         "1.0.0",
		ServerName:      "mcp-pdf-forms",
		LogLevel:        DefaultLogLevel,
		MaxFileSize:     DefaultMaxFileSize,
		ReduceThreshold: DefaultReduceThreshold,
		RasterDPI:       DefaultRasterDPI,
		JPEGQuality:     DefaultJPEGQuality,
		ImageCacheTTL:   DefaultImageCacheTTL,
		Workers:         DefaultWorkers,
		ConverterSlots:  DefaultConverterSlots,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	if err := readConfigFile(); err != nil {
		return nil, err
	}

	populateConfigFromViper(cfg)

	// Expand paths if needed
	if cfg.DataDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.DataDirectory); err == nil {
			cfg.DataDirectory = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	// Set environment variable prefix
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.DataDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("config", "")
	viper.SetDefault("reducethreshold", cfg.ReduceThreshold)
	viper.SetDefault("dpi", cfg.RasterDPI)
	viper.SetDefault("jpegquality", cfg.JPEGQuality)
	viper.SetDefault("imagecachettl", cfg.ImageCacheTTL)
	viper.SetDefault("workers", cfg.Workers)
	viper.SetDefault("converterslots", cfg.ConverterSlots)
	viper.SetDefault("auditbackground", cfg.AuditBackground)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.DataDirectory, "Data directory holding templates, documents and audit trails")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.String("config", "", "Optional configuration file (yaml, json, toml)")
	pflag.Int64("reducethreshold", cfg.ReduceThreshold, "Documents of at least this many bytes are rasterised")
	pflag.Float64("dpi", cfg.RasterDPI, "Resolution of rasterised pages")
	pflag.Int("jpegquality", cfg.JPEGQuality, "JPEG quality of rasterised pages (1-100)")
	pflag.Duration("imagecachettl", cfg.ImageCacheTTL, "Lifetime of cached signature image inventories (0 disables)")
	pflag.Int("workers", cfg.Workers, "Documents processed concurrently by batch operations")
	pflag.Int("converterslots", cfg.ConverterSlots, "Concurrent office to PDF conversions")
	pflag.String("auditbackground", cfg.AuditBackground, "PDF drawn behind audit trail pages")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"mode", "host", "port", "dir", "loglevel", "maxfilesize", "config",
		"reducethreshold", "dpi", "jpegquality", "imagecachettl", "workers",
		"converterslots", "auditbackground",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// readConfigFile merges the file named by --config, if any
func readConfigFile() error {
	path := viper.GetString("config")
	if path == "" {
		return nil
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("cannot read config file %s: %w", path, err)
	}
	return nil
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP PDF Forms - A Model Context Protocol server for PDF form reconciliation\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                         "+
			"# stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/var/lib/forms                    "+
			"# stdio mode with custom data directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --config=forms.yaml      # server mode with config file\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORMS_MODE             Server mode\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORMS_HOST             Server host\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORMS_PORT             Server port\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORMS_DIR              Data directory\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORMS_LOGLEVEL         Log level\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORMS_MAXFILESIZE      Maximum file size\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORMS_REDUCETHRESHOLD  Size reduction threshold\n")
		fmt.Fprintf(os.Stderr, "  PDF_FORMS_WORKERS          Batch workers\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.DataDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.ConfigFile = viper.GetString("config")
	cfg.ReduceThreshold = viper.GetInt64("reducethreshold")
	cfg.RasterDPI = viper.GetFloat64("dpi")
	cfg.JPEGQuality = viper.GetInt("jpegquality")
	cfg.ImageCacheTTL = viper.GetDuration("imagecachettl")
	cfg.Workers = viper.GetInt("workers")
	cfg.ConverterSlots = viper.GetInt("converterslots")
	cfg.AuditBackground = viper.GetString("auditbackground")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// Validate data directory
	if c.DataDirectory == "" {
		return errors.New("data directory cannot be empty")
	}

	// Check if data directory exists, create if it doesn't
	if _, err := os.Stat(c.DataDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.DataDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create data directory %s: %w", c.DataDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access data directory %s: %w", c.DataDirectory, err)
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.ReduceThreshold <= 0 {
		return errors.New("reduce threshold must be positive")
	}
	if c.RasterDPI <= 0 {
		return errors.New("raster DPI must be positive")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("invalid JPEG quality: %d (must be between 1 and 100)", c.JPEGQuality)
	}
	if c.ImageCacheTTL < 0 {
		return errors.New("image cache TTL cannot be negative")
	}
	if c.Workers < 1 {
		return errors.New("workers must be at least 1")
	}
	if c.ConverterSlots < 1 {
		return errors.New("converter slots must be at least 1")
	}

	if c.AuditBackground != "" {
		if _, err := os.Stat(c.AuditBackground); err != nil {
			return fmt.Errorf("cannot access audit background %s: %w", c.AuditBackground, err)
		}
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// ServiceSettings maps the document processing options onto pdf.Settings,
// reading the audit background file when one is configured
func (c *Config) ServiceSettings() (pdf.Settings, error) {
	settings := pdf.Settings{
		Workers:         c.Workers,
		ReduceThreshold: int(c.ReduceThreshold),
		RasterDPI:       c.RasterDPI,
		JPEGQuality:     c.JPEGQuality,
		CacheTTL:        c.ImageCacheTTL,
	}
	if c.AuditBackground != "" {
		data, err := os.ReadFile(c.AuditBackground)
		if err != nil {
			return pdf.Settings{}, fmt.Errorf("cannot read audit background %s: %w", c.AuditBackground, err)
		}
		settings.AuditBackground = data
	}
	return settings, nil
}

// ConverterLimiter returns a limiter with ConverterSlots slots
func (c *Config) ConverterLimiter() *convert.Limiter {
	return convert.NewLimiter(c.ConverterSlots)
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, DataDirectory: %s, LogLevel: %s, MaxFileSize: %d, "+
		"ReduceThreshold: %d, RasterDPI: %g, JPEGQuality: %d, ImageCacheTTL: %s, Workers: %d, ConverterSlots: %d}",
		c.Mode, c.Host, c.Port, c.DataDirectory, c.LogLevel, c.MaxFileSize,
		c.ReduceThreshold, c.RasterDPI, c.JPEGQuality, c.ImageCacheTTL, c.Workers, c.ConverterSlots)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
