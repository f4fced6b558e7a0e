// Package mysql registers the MySQL/MariaDB backend under kind "mysql".
package mysql

import (
	"context"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"tabload/internal/ddl"
	"tabload/internal/storage"
)

const defaultPort = 3306

func init() {
	storage.Register("mysql", New)
}

// New opens a MySQL repository.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	repo, err := storage.OpenSQL(ctx, "mysql", DSN(cfg), ddl.MySQL)
	if err != nil {
		return nil, err
	}
	repo.DB.SetMaxOpenConns(4)
	repo.DB.SetMaxIdleConns(4)
	return repo, nil
}

// DSN returns cfg.DSN, or builds a TCP DSN from the connection fields.
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

	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	mc.DBName = cfg.Database
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}
