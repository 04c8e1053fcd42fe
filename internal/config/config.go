// Package config loads and validates the mysqlkeeper.env configuration file.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/omvtools/mysqlkeeper/internal/types"
	"github.com/omvtools/mysqlkeeper/pkg/utils"
)

var (
	multiValueKeys = map[string]bool{
		"AGE_RECIPIENT": true,
	}

	blockValueKeys = map[string]bool{
		"EXTRA_OPTIONS": true,
	}
)

// Config contains the whole mysqlkeeper configuration.
type Config struct {
	// Service settings
	Enabled     bool
	BindAddress string
	Port        int
	DataDir     string
	ServiceName string
	// OptionFilePath is where the generated server option file is written.
	OptionFilePath string
	// ExtraOptions are appended verbatim to the generated option file.
	ExtraOptions []string

	// Accounts and credential files
	AdminUser                string
	LoginUser                string
	AdHocCredentialsPath     string
	ScheduledCredentialsPath string

	// External tools
	MysqlBin     string
	MysqldumpBin string
	SystemctlBin string

	// Managed dump storage
	SharedFolderRoot     string
	MaxManagedDumps      int
	ManagedRetentionDays int

	// Dump encryption
	EncryptDumps     bool
	AgeRecipients    []string
	AgeRecipientFile string

	// Metrics
	MetricsEnabled bool
	MetricsPath    string

	// Logging
	DebugLevel types.LogLevel
	UseColor   bool
	LogPath    string

	// Security
	AutoFixPermissions bool

	ConfigPath string

	// raw configuration map
	raw map[string]string
}

// LoadConfig reads the mysqlkeeper.env configuration file.
func LoadConfig(configPath string) (*Config, error) {
	if !utils.FileExists(configPath) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	rawValues, err := parseEnvFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ConfigPath: configPath,
		raw:        rawValues,
	}

	// Environment variables take precedence over file values.
	cfg.loadEnvOverrides()

	if err := cfg.parse(); err != nil {
		return nil, fmt.Errorf("error parsing configuration: %w", err)
	}

	return cfg, nil
}

// loadEnvOverrides checks for environment variables and overrides config file values.
func (c *Config) loadEnvOverrides() {
	envKeys := []string{
		"MYSQL_ENABLED", "BIND_ADDRESS", "PORT", "DATA_DIR", "SERVICE_NAME",
		"ADMIN_USER", "LOGIN_USER",
		"ADHOC_CREDENTIALS_PATH", "SCHEDULED_CREDENTIALS_PATH",
		"MYSQL_BIN", "MYSQLDUMP_BIN", "SYSTEMCTL_BIN",
		"SHARED_FOLDER_ROOT", "MAX_MANAGED_DUMPS", "MANAGED_RETENTION_DAYS",
		"ENCRYPT_DUMPS", "AGE_RECIPIENT", "AGE_RECIPIENT_FILE",
		"METRICS_ENABLED", "METRICS_PATH",
		"DEBUG_LEVEL", "USE_COLOR", "LOG_PATH",
		"AUTO_FIX_PERMISSIONS",
	}

	for _, key := range envKeys {
		if envValue := os.Getenv(key); envValue != "" {
			c.raw[key] = envValue
		}
	}
}

// parse interprets the raw configuration values.
func (c *Config) parse() error {
	c.Enabled = c.getBool("MYSQL_ENABLED", false)
	c.BindAddress = c.getString("BIND_ADDRESS", "127.0.0.1")
	c.Port = c.getInt("PORT", 3306)
	c.DataDir = c.getString("DATA_DIR", "/var/lib/mysql")
	c.ServiceName = c.getString("SERVICE_NAME", "mariadb")
	c.OptionFilePath = c.getString("OPTION_FILE_PATH", "/etc/mysql/mariadb.conf.d/60-mysqlkeeper.cnf")
	c.ExtraOptions = c.getLines("EXTRA_OPTIONS")

	c.AdminUser = strings.TrimSpace(c.getString("ADMIN_USER", "omvadmin"))
	c.LoginUser = strings.TrimSpace(c.getString("LOGIN_USER", "root"))
	c.AdHocCredentialsPath = c.getString("ADHOC_CREDENTIALS_PATH", "/root/.cnf")
	c.ScheduledCredentialsPath = c.getString("SCHEDULED_CREDENTIALS_PATH", "/root/.mysqldump.cnf")

	c.MysqlBin = c.getString("MYSQL_BIN", "mysql")
	c.MysqldumpBin = c.getString("MYSQLDUMP_BIN", "mysqldump")
	c.SystemctlBin = c.getString("SYSTEMCTL_BIN", "systemctl")

	c.SharedFolderRoot = c.getString("SHARED_FOLDER_ROOT", "/srv")
	c.MaxManagedDumps = c.getInt("MAX_MANAGED_DUMPS", 0)
	c.ManagedRetentionDays = c.getInt("MANAGED_RETENTION_DAYS", 0)

	c.EncryptDumps = c.getBool("ENCRYPT_DUMPS", false)
	c.AgeRecipients = c.getStringSlice("AGE_RECIPIENT", nil)
	c.AgeRecipientFile = strings.TrimSpace(c.getString("AGE_RECIPIENT_FILE", ""))

	c.MetricsEnabled = c.getBool("METRICS_ENABLED", false)
	c.MetricsPath = c.getString("METRICS_PATH", "/var/lib/prometheus/node-exporter")

	c.DebugLevel = c.getLogLevel("DEBUG_LEVEL", types.LogLevelInfo)
	c.UseColor = c.getBool("USE_COLOR", true)
	c.LogPath = c.getString("LOG_PATH", "")

	c.AutoFixPermissions = c.getBool("AUTO_FIX_PERMISSIONS", false)

	return c.validate()
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d: must be between 1 and 65535", c.Port)
	}
	if c.AdminUser == "" {
		return fmt.Errorf("ADMIN_USER cannot be empty")
	}
	if c.LoginUser == "" {
		return fmt.Errorf("LOGIN_USER cannot be empty")
	}
	if c.AdHocCredentialsPath == c.ScheduledCredentialsPath {
		return fmt.Errorf("ADHOC_CREDENTIALS_PATH and SCHEDULED_CREDENTIALS_PATH must differ")
	}
	if c.EncryptDumps && len(c.AgeRecipients) == 0 && c.AgeRecipientFile == "" {
		return fmt.Errorf("ENCRYPT_DUMPS requires AGE_RECIPIENT or AGE_RECIPIENT_FILE")
	}
	if c.MaxManagedDumps < 0 {
		return fmt.Errorf("MAX_MANAGED_DUMPS cannot be negative")
	}
	if c.ManagedRetentionDays < 0 {
		return fmt.Errorf("MANAGED_RETENTION_DAYS cannot be negative")
	}
	return nil
}

// Raw returns the raw value for a configuration key (empty if absent).
func (c *Config) Raw(key string) string {
	return c.raw[key]
}

func (c *Config) getString(key, defaultValue string) string {
	if value, ok := c.raw[key]; ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func (c *Config) getBool(key string, defaultValue bool) bool {
	if value, ok := c.raw[key]; ok {
		return utils.ParseBool(value)
	}
	return defaultValue
}

func (c *Config) getInt(key string, defaultValue int) int {
	if value, ok := c.raw[key]; ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func (c *Config) getStringSlice(key string, defaultValue []string) []string {
	value, ok := c.raw[key]
	if !ok {
		return defaultValue
	}
	var out []string
	for _, line := range strings.Split(value, "\n") {
		for _, item := range strings.Split(line, ",") {
			item = strings.TrimSpace(item)
			if item != "" {
				out = append(out, item)
			}
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getLines returns a multi-line block value split into trimmed lines.
func (c *Config) getLines(key string) []string {
	value, ok := c.raw[key]
	if !ok {
		return nil
	}
	var out []string
	for _, line := range strings.Split(value, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func (c *Config) getLogLevel(key string, defaultValue types.LogLevel) types.LogLevel {
	value, ok := c.raw[key]
	if !ok {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug", "5":
		return types.LogLevelDebug
	case "info", "4":
		return types.LogLevelInfo
	case "warning", "3":
		return types.LogLevelWarning
	case "error", "2":
		return types.LogLevelError
	case "critical", "1":
		return types.LogLevelCritical
	case "none", "0":
		return types.LogLevelNone
	default:
		return defaultValue
	}
}

func parseEnvFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open config file: %w", err)
	}
	defer file.Close()

	raw := make(map[string]string)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if utils.IsComment(trimmed) {
			continue
		}

		key, value, ok := utils.SplitKeyValue(line)
		if !ok {
			continue
		}

		if blockValueKeys[key] && trimmed == fmt.Sprintf("%s=\"", key) {
			var blockLines []string
			terminated := false
			for scanner.Scan() {
				next := strings.TrimRight(scanner.Text(), "\r")
				if strings.TrimSpace(next) == "\"" {
					terminated = true
					break
				}
				blockLines = append(blockLines, next)
			}
			if !terminated {
				return nil, fmt.Errorf("unterminated multi-line value for %s", key)
			}
			raw[key] = strings.Join(blockLines, "\n")
			continue
		}

		if multiValueKeys[key] {
			if existing, ok := raw[key]; ok && existing != "" {
				raw[key] = existing + "\n" + value
			} else {
				raw[key] = value
			}
		} else {
			raw[key] = value
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return raw, nil
}
