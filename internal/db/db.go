package db

import (
	"fmt"
	"log"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a gorm handle for driver ("mysql" or "sqlite").
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = gormsqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER=%q", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// a single writer keeps sqlite from returning SQLITE_BUSY under concurrent submits
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return gdb, nil
}

// Connect is Open plus AutoMigrate of models; it exits the process on failure.
func Connect(driver, dsn string, models ...any) *gorm.DB {
	gdb, err := Open(driver, dsn)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if len(models) > 0 {
		if err := gdb.AutoMigrate(models...); err != nil {
			log.Fatalf("db automigrate: %v", err)
		}
	}
	return gdb
}
