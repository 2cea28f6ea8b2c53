// Package sqllex holds lexical helpers shared by the dialect and query builder.
package sqllex

import "strings"

// oracleReservedWords are the Oracle SQL reserved words that must be double-quoted
// when used as identifiers.
// Source: Oracle Database SQL Language Reference, "Oracle SQL Reserved Words".
var oracleReservedWords = map[string]struct{}{
	"ACCESS": {}, "ADD": {}, "ALL": {}, "ALTER": {}, "AND": {}, "ANY": {}, "AS": {}, "ASC": {},
	"AUDIT": {}, "BEGIN": {}, "BETWEEN": {}, "BY": {}, "CASE": {}, "CHAR": {}, "CHECK": {},
	"CLUSTER": {}, "COLUMN": {}, "COMMENT": {}, "COMPRESS": {}, "CONNECT": {}, "CREATE": {},
	"CURRENT": {}, "DATE": {}, "DECIMAL": {}, "DEFAULT": {}, "DELETE": {}, "DESC": {},
	"DISTINCT": {}, "DROP": {}, "ELSE": {}, "EXCLUSIVE": {}, "EXISTS": {}, "FILE": {},
	"FLOAT": {}, "FOR": {}, "FROM": {}, "GRANT": {}, "GROUP": {}, "HAVING": {},
	"IDENTIFIED": {}, "IMMEDIATE": {}, "IN": {}, "INCREMENT": {}, "INDEX": {}, "INITIAL": {},
	"INSERT": {}, "INTEGER": {}, "INTERSECT": {}, "INTO": {}, "IS": {}, "LEVEL": {},
	"LIKE": {}, "LOCK": {}, "LONG": {}, "MAXEXTENTS": {}, "MINUS": {}, "MODE": {},
	"MODIFY": {}, "NOAUDIT": {}, "NOCOMPRESS": {}, "NOT": {}, "NOWAIT": {}, "NULL": {},
	"NUMBER": {}, "OF": {}, "OFFLINE": {}, "ON": {}, "ONLINE": {}, "OPTION": {}, "OR": {},
	"ORDER": {}, "PCTFREE": {}, "PRIOR": {}, "PUBLIC": {}, "RAW": {}, "RENAME": {},
	"RESOURCE": {}, "REVOKE": {}, "ROW": {}, "ROWID": {}, "ROWNUM": {}, "ROWS": {},
	"SELECT": {}, "SESSION": {}, "SET": {}, "SHARE": {}, "SIZE": {}, "SMALLINT": {},
	"START": {}, "SUCCESSFUL": {}, "SYNONYM": {}, "SYSDATE": {}, "TABLE": {}, "THEN": {},
	"TO": {}, "TRIGGER": {}, "UID": {}, "UNION": {}, "UNIQUE": {}, "UPDATE": {}, "USER": {},
	"VALIDATE": {}, "VALUES": {}, "VARCHAR": {}, "VARCHAR2": {}, "VIEW": {}, "WHENEVER": {},
	"WHERE": {}, "WITH": {},
}

// IsOracleReservedWord reports whether word is reserved, ignoring case.
func IsOracleReservedWord(word string) bool {
	_, ok := oracleReservedWords[strings.ToUpper(word)]
	return ok
}

// QuoteOracleIdentifier double-quotes a reserved identifier in upper case, which
// is how Oracle stores unquoted names. Other identifiers and qualified names
// ("schema.table") are returned unchanged.
func QuoteOracleIdentifier(name string) string {
	if name == "" || strings.ContainsAny(name, `."`) || !IsOracleReservedWord(name) {
		return name
	}
	return `"` + strings.ToUpper(name) + `"`
}
