package models

// All lists every persisted model in dependency order. It backs AutoMigrate
// for SQLite and the in-memory test database.
func All() []interface{} {
	return []interface{}{
		&Goal{},
		&Asset{},
		&StockDetail{},
		&MutualFundDetail{},
		&ETFDetail{},
		&FixedDepositDetail{},
		&AssetPerformance{},
		&AuditLog{},
	}
}
