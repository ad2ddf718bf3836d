package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrOptimisticLock = errors.New("乐观锁冲突，请重试")
)

// conn 事务内使用 tx，否则使用默认连接
func conn(tx, db *gorm.DB) *gorm.DB {
	if tx == nil {
		return db
	}
	return tx
}

func page(pageNo, pageSize int) (offset, limit int) {
	if pageNo < 1 {
		pageNo = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return (pageNo - 1) * pageSize, pageSize
}
