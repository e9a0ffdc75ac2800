// Command stress races many customers for a small stock of one item over a
// local sqlite database and the in-memory queue, then verifies nothing was
// oversold and every distinct request got exactly one outcome.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/uporders-backend/pkg/logger"
)

func main() {
	customers := flag.Int("customers", 200, "distinct customers submitting one order each")
	units := flag.Int("stock", 25, "units of the contested item")
	duplicates := flag.Int("duplicates", 2, "redundant copies published per request")
	concurrency := flag.Int("concurrency", 8, "publisher goroutines and worker concurrency")
	price := flag.String("price", "9.50", "item price")
	dsn := flag.String("db", "", "sqlite DSN; defaults to a private in-memory database")
	level := flag.String("log-level", "warn", "log level")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "stress", Level: *level})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := openSQLite(*dsn)
	if err != nil {
		logg.Error(ctx, "failed to open sqlite", err)
		os.Exit(1)
	}

	rep, err := runScenario(ctx, conn, scenario{
		Customers:   *customers,
		Stock:       *units,
		Duplicates:  *duplicates,
		Concurrency: *concurrency,
		Price:       *price,
		LeaseTTL:    30 * time.Second,
	}, logg)
	if rep != nil {
		out, _ := json.MarshalIndent(rep, "", "  ")
		fmt.Println(string(out))
	}
	if err != nil {
		logg.Error(ctx, "stress run failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "stress run passed")
}

// openSQLite pins the pool to one connection; sqlite serializes writers and
// a shared in-memory database disappears with its last connection.
func openSQLite(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	}
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return conn, nil
}
