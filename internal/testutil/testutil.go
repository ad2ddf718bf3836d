package testutil

import (
	"bytes"
	"crypto/ed25519"
	"path/filepath"
	"testing"

	"guessescrow/internal/address"
	"guessescrow/internal/infrastructure/database"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ProgramID 测试统一使用的程序ID
var ProgramID = address.MustParse("CKWtwTziPzvp7VAVi8tbbBurWbSaG4Fx5icGdbs2n5ck")

// OpenTestDB 在临时目录创建 SQLite 数据库并迁移表结构
func OpenTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "escrow_test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Deriver 绑定测试程序ID的地址派生器
func Deriver(t testing.TB) *address.Deriver {
	t.Helper()
	d, err := address.NewDeriver(ProgramID)
	if err != nil {
		t.Fatalf("deriver: %v", err)
	}
	return d
}

// Key 由单字节种子生成确定的测试私钥
func Key(seed byte) ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
}

// Identity 测试私钥对应的身份
func Identity(seed byte) address.Address {
	var id address.Address
	copy(id[:], Key(seed).Public().(ed25519.PublicKey))
	return id
}
