package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Params carries what is needed to reach MySQL.
type Params struct {
	User string
	Pass string
	Host string
	Port string
	Name string
}

// DSN renders p as a go-sql-driver DSN.  parseTime=true maps DATETIME to
// time.Time and loc=UTC keeps stored wall clock times in UTC.
func (p Params) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Pass
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%s", p.Host, p.Port)
	cfg.DBName = p.Name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Open connects to MySQL and verifies the connection.
func Open(p Params) (*sql.DB, error) {
	db, err := sql.Open("mysql", p.DSN())
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
