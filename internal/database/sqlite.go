package database

import (
	"fmt"
	"log"
	"reflect"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

var decimalType = reflect.TypeOf(decimal.Decimal{})

// sqliteDialector хранит decimal.Decimal в TEXT колонках.
// Колонка numeric в SQLite получает NUMERIC affinity и превращает дроби в REAL
type sqliteDialector struct {
	sqlite.Dialector
}

func (d sqliteDialector) DataTypeOf(field *schema.Field) string {
	if field.IndirectFieldType == decimalType {
		return "text"
	}
	return d.Dialector.DataTypeOf(field)
}

// Migrator подменяет диалект, чтобы DataTypeOf выше участвовал в миграциях
func (d sqliteDialector) Migrator(db *gorm.DB) gorm.Migrator {
	m := d.Dialector.Migrator(db).(sqlite.Migrator)
	m.Dialector = d
	return m
}

// ConnectSQLite открывает SQLite базу (файл или ":memory:") для локального запуска и тестов
func ConnectSQLite(path string, quiet bool) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("SQLITE_PATH is empty")
	}

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_foreign_keys=on"
	}
	db, err := gorm.Open(sqliteDialector{sqlite.Dialector{DSN: dsn}}, gormConfig(quiet))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// SQLite пишет в один поток; для ":memory:" каждое соединение - отдельная база
	sqlDB.SetMaxOpenConns(1)

	log.Printf("✅ SQLite открыт: %s", path)
	return db, nil
}
