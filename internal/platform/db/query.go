package db

import (
	"fmt"
	"strings"
)

// Query builds the WHERE clause shared by a list query and its count query.
// Placeholders are numbered in the order clauses are added.
type Query struct {
	from    string
	cols    string
	where   string
	args    []interface{}
	idx     int
	orderBy string
}

// NewQuery starts a query over from (a table or join expression) that is
// always scoped to tenantID through tenantCol.
func NewQuery(from, cols, tenantCol string, tenantID interface{}) *Query {
	q := &Query{from: from, cols: cols, idx: 1}
	q.Add(tenantCol+" = $?", tenantID)
	return q
}

// Idx returns the next available parameter index.
func (q *Query) Idx() int { return q.idx }

// Add appends a clause joined with AND. Each "$?" in clause is replaced by
// the next parameter index, one per arg.
func (q *Query) Add(clause string, args ...interface{}) {
	for range args {
		clause = strings.Replace(clause, "$?", fmt.Sprintf("$%d", q.idx), 1)
		q.idx++
	}
	q.where += " AND " + clause
	q.args = append(q.args, args...)
}

// AddRaw appends a clause that takes no parameters.
func (q *Query) AddRaw(clause string) {
	q.where += " AND " + clause
}

// OrderBy sets the ORDER BY clause (without the "ORDER BY" keyword).
func (q *Query) OrderBy(orderBy string) {
	q.orderBy = orderBy
}

// CountSQL returns the count query SQL.
func (q *Query) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE TRUE%s", q.from, q.where)
}

// CountArgs returns the arguments for the count query.
func (q *Query) CountArgs() []interface{} {
	return q.args
}

// DataSQL returns the data query SQL with ORDER BY and LIMIT/OFFSET.
func (q *Query) DataSQL(limit, offset int) string {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE TRUE%s", q.cols, q.from, q.where)
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", q.idx, q.idx+1)
	return sql
}

// DataArgs returns the arguments for the data query (filter args + limit + offset).
func (q *Query) DataArgs(limit, offset int) []interface{} {
	result := make([]interface{}, len(q.args)+2)
	copy(result, q.args)
	result[len(q.args)] = limit
	result[len(q.args)+1] = offset
	return result
}
