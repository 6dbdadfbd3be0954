package main

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/clusterops/usage-collector/internal/clock"
	"github.com/clusterops/usage-collector/internal/collector"
	"github.com/clusterops/usage-collector/internal/config"
	"github.com/clusterops/usage-collector/internal/delivery"
	"github.com/clusterops/usage-collector/internal/openstack/thanos"
	"github.com/clusterops/usage-collector/internal/pbs/accountingdb"
	"github.com/clusterops/usage-collector/internal/pbs/qstat"
	"github.com/clusterops/usage-collector/pkg/db"
	"github.com/clusterops/usage-collector/pkg/log"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		log.Module,
		clock.Module,
		db.Module,

		// Collaborators, bound to the collector's interfaces
		fx.Provide(
			func(cfg config.Config, logger *zap.Logger) (collector.InventorySource, error) {
				return thanos.New(cfg.Thanos, logger)
			},
			func(cfg config.Config, logger *zap.Logger) collector.JobSource {
				return qstat.New(cfg.PBS, logger)
			},
			func(conn *gorm.DB, logger *zap.Logger) collector.AccountingSource {
				return accountingdb.New(conn, logger)
			},
			func(cfg config.Config, logger *zap.Logger) (collector.Sender, error) {
				return delivery.New(cfg.Delivery, logger)
			},
		),

		collector.Module,
	)
	app.Run()
}
