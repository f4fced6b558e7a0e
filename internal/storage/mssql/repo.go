// Package mssql registers the SQL Server backend under kind "mssql".
//
// Statements use @pN placeholders, which requires the driver's "sqlserver"
// name. A statement carries at most 2100 parameters; the loader shrinks
// chunks to fit.
package mssql

import (
	"context"
	"net"
	"net/url"
	"strconv"

	_ "github.com/microsoft/go-mssqldb"

	"tabload/internal/ddl"
	"tabload/internal/storage"
)

const defaultPort = 1433

func init() {
	storage.Register("mssql", New)
}

// New opens a SQL Server repository.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	repo, err := storage.OpenSQL(ctx, "sqlserver", DSN(cfg), ddl.MSSQL)
	if err != nil {
		return nil, err
	}
	repo.DB.SetMaxOpenConns(4)
	repo.DB.SetMaxIdleConns(4)
	return repo, nil
}

// DSN returns cfg.DSN, or builds a sqlserver:// URL from the connection fields.
func DSN(cfg storage.Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	u := url.URL{
		Scheme: "sqlserver",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	if cfg.Database != "" {
		q := url.Values{}
		q.Set("database", cfg.Database)
		u.RawQuery = q.Encode()
	}
	return u.String()
}
