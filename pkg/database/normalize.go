package database

import (
	"strconv"
	"strings"
)

// Postgres folds unquoted identifiers to lower case. This table restores the names the rest of the
// service expects.
var canonicalColumns = map[string]string{
	"fullname":      "fullName",
	"playertype":    "playerType",
	"teamname":      "teamName",
	"jerseynumber":  "jerseyNumber",
	"socioname":     "socioName",
	"sociodni":      "socioDni",
	"sociophone":    "socioPhone",
	"dniplayerpath": "dniPlayerPath",
	"dnisociopath":  "dniSocioPath",
	"createdat":     "createdAt",
}

// Normalize renames known lower-cased columns and turns count/total values into int64.
// Unknown keys are copied as is, so applying it twice changes nothing.
func Normalize(row Row) Row {
	if row == nil {
		return nil
	}

	mapped := make(Row, len(row))
	for key, value := range row {
		name, ok := canonicalColumns[strings.ToLower(key)]
		if !ok {
			name = key
		}

		if isCountColumn(key) {
			value = toInt64(value)
		}

		mapped[name] = value
	}

	return mapped
}

func isCountColumn(key string) bool {
	return strings.EqualFold(key, "count") || strings.EqualFold(key, "total")
}

// toInt64 accepts the representations drivers use for COUNT(*): int64 from pgx and sqlite, numeric text
// from drivers that return bigint as string. Unparsable text becomes 0.
func toInt64(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return int64(0)
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int16:
		return int64(v)
	case int8:
		return int64(v)
	case uint:
		return int64(v)
	case uint64:
		return int64(v)
	case uint32:
		return int64(v)
	case float64:
		return int64(v)
	case float32:
		return int64(v)
	case []byte:
		return parseCount(string(v))
	case string:
		return parseCount(v)
	default:
		return value
	}
}

func parseCount(s string) int64 {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}
