package database

import (
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Settings describe one relational connection pool.
type Settings struct {
	Driver          string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the connection string for the configured driver.
func (s Settings) DSN() (string, error) {
	dialect, err := DialectFor(s.Driver)
	if err != nil {
		return "", err
	}

	switch dialect.DriverName {
	case DriverPostgres:
		port := s.Port
		if port == "" {
			port = "5432"
		}
		sslMode := s.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			s.Host, port, s.User, s.Password, s.Name, sslMode), nil
	case DriverSQLite:
		if s.Name == "" {
			return "", fmt.Errorf("sqlite database requires a file name")
		}
		return s.Name, nil
	default:
		port := s.Port
		if port == "" {
			port = "3306"
		}
		cfg := mysql.NewConfig()
		cfg.User = s.User
		cfg.Passwd = s.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(s.Host, port)
		cfg.DBName = s.Name
		cfg.ParseTime = true
		// RowsAffected counts matched rows so an unchanged UPDATE still reports 1.
		cfg.ClientFoundRows = true
		return cfg.FormatDSN(), nil
	}
}
