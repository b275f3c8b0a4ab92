package database

import "strings"

const (
	createPlayersPostgres = `CREATE TABLE IF NOT EXISTS players (
		id SERIAL PRIMARY KEY,
		fullName TEXT,
		dni TEXT,
		phone TEXT,
		email TEXT,
		playerType TEXT,
		teamName TEXT,
		category TEXT,
		jerseyNumber TEXT,
		socioName TEXT,
		socioDni TEXT,
		socioPhone TEXT,
		dniPlayerPath TEXT,
		dniSocioPath TEXT,
		createdAt TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	createPlayersSqlite = `CREATE TABLE IF NOT EXISTS players (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fullName TEXT,
		dni TEXT,
		phone TEXT,
		email TEXT,
		playerType TEXT,
		teamName TEXT,
		category TEXT,
		jerseyNumber TEXT,
		socioName TEXT,
		socioDni TEXT,
		socioPhone TEXT,
		dniPlayerPath TEXT,
		dniSocioPath TEXT,
		createdAt DATETIME DEFAULT CURRENT_TIMESTAMP
	)`
)

// Columns added after the first release. Databases created before them get them on start-up.
var optionalColumns = []string{"dniPlayerPath", "dniSocioPath"}

// isDuplicateColumn recognises the "already exists" answers of both engines to ALTER TABLE ADD COLUMN.
func isDuplicateColumn(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "42701")
}
