package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DatabaseConfig represents the relational store configuration
type DatabaseConfig struct {
	Type     string `yaml:"type"`     // mysql, postgres, sqlite
	Host     string `yaml:"host"`     // localhost
	Port     int    `yaml:"port"`     // 3306 (for mysql), 5432 (for postgres)
	User     string `yaml:"user"`     // root (for mysql), postgres (for postgres)
	Password string `yaml:"password"` // password
	DBName   string `yaml:"dbname"`   // database name, or file path for sqlite
	SSLMode  string `yaml:"sslmode"`  // disable (for postgres)
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	switch c.Type {
	case "postgres":
		return c.getPostgresDSN()
	case "mysql":
		return c.getMySQLDSN()
	case "sqlite":
		return c.DBName // For SQLite, DBName is the file path
	default:
		return ""
	}
}

// EnsureSQLiteDir creates the directory holding a file-backed SQLite database.
func (c *DatabaseConfig) EnsureSQLiteDir() error {
	if c.Type != "sqlite" || c.DBName == "" || c.DBName == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.DBName), 0755); err != nil {
		return fmt.Errorf("failed to create directory for sqlite database: %w", err)
	}
	return nil
}

// getPostgresDSN returns PostgreSQL connection string
func (c *DatabaseConfig) getPostgresDSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, sslMode)
}

// getMySQLDSN returns MySQL connection string
func (c *DatabaseConfig) getMySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}
