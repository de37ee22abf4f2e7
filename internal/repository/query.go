package repository

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

const (
	dialectSQLite   = "sqlite"
	dialectPostgres = "postgres"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// dialectOf 当前连接的方言，未知时按 sqlite 处理
func dialectOf(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return dialectSQLite
	}
	switch name := strings.ToLower(strings.TrimSpace(db.Dialector.Name())); name {
	case "postgres", "postgresql":
		return dialectPostgres
	case "":
		return dialectSQLite
	default:
		return name
	}
}

// jsonTextExpr JSON 列中指定 key 的文本表达式
func jsonTextExpr(db *gorm.DB, column, key string) string {
	return jsonTextExprFor(dialectOf(db), column, key)
}

func jsonTextExprFor(dialect, column, key string) string {
	if dialect == dialectPostgres {
		return fmt.Sprintf("(%s::jsonb ->> '%s')", column, key)
	}
	return fmt.Sprintf("json_extract(%s, '$.\"%s\"')", column, key)
}

// likeOperator 大小写不敏感的模糊匹配运算符
func likeOperator(db *gorm.DB) string {
	if dialectOf(db) == dialectPostgres {
		return "ILIKE"
	}
	return "LIKE"
}

// containsPattern 转义通配符后构造包含匹配模式，配合 ESCAPE '\' 使用
func containsPattern(keyword string) string {
	return "%" + likeEscaper.Replace(keyword) + "%"
}

// applyPagination 分页，pageSize 非正时不分页
func applyPagination(query *gorm.DB, page, pageSize int) *gorm.DB {
	if query == nil || pageSize <= 0 {
		return query
	}
	if page < 1 {
		page = 1
	}
	return query.Limit(pageSize).Offset((page - 1) * pageSize)
}
