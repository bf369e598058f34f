package commands

import (
	"database/sql"
	"fmt"
	"net/url"
)

// maskDatabaseURL hides credentials in a connection URL before printing it
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.UserPassword("***", "***")
	return u.String()
}

// databaseSummary describes the live connection for command output
func databaseSummary(db *sql.DB) string {
	if db == nil {
		return "Not connected"
	}

	var dbName string
	if err := db.QueryRow("SELECT current_database()").Scan(&dbName); err != nil {
		return "Connected (unknown database)"
	}

	var host string
	if err := db.QueryRow("SELECT inet_server_addr()::text").Scan(&host); err != nil {
		return fmt.Sprintf("Connected to %s", dbName)
	}
	return fmt.Sprintf("Connected to %s on %s", dbName, host)
}
