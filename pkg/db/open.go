package db

import (
	"fmt"

	"github.com/clusterops/usage-collector/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Module provides the accounting database connection.
var Module = fx.Provide(Open)

// Open connects to the accounting database. The schema is owned by the
// scheduler's accounting daemon; this process only reads from it.
func Open(cfg config.Config) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open accounting database: %w", err)
	}
	return conn, nil
}
