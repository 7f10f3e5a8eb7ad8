package database

import (
	"fmt"

	"gorm.io/gorm"

	"merodocs-http-service/internal/domain/models"
	"merodocs-http-service/pkg/logger"
)

// Migrate 按迁移模式处理表结构: "auto"(默认) 只添加新列和新表, "drop" 删除并重建
func Migrate(db *gorm.DB, mode string) error {
	switch mode {
	case "drop":
		logger.Warning("在drop模式下运行，将删除并重建所有表")
		return dropAndRecreateTables(db)
	default:
		logger.Info("在标准模式下运行，将只添加新列和新表")
		return AutoMigrate(db)
	}
}

// AutoMigrate 自动迁移所有模型
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	logger.Info("数据库迁移完成")
	return nil
}

// dropAndRecreateTables 删除并重建所有表
func dropAndRecreateTables(db *gorm.DB) error {
	migrator := db.Migrator()

	// 多对多中间表先删
	for _, table := range []string{"visit_request_flats", "check_in_out_flats"} {
		if err := migrator.DropTable(table); err != nil {
			logger.Warning("删除表 %s 失败: %v", table, err)
		}
	}

	all := models.AllModels()
	for i := len(all) - 1; i >= 0; i-- {
		if err := migrator.DropTable(all[i]); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
	}

	return AutoMigrate(db)
}
