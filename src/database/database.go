package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/cgtfolio/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}
	migrateTransactionsTable()

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		user_agent TEXT,
		client_ip TEXT,
		is_blocked BOOLEAN DEFAULT FALSE,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		source TEXT NOT NULL,
		ticker TEXT NOT NULL,
		transaction_type TEXT NOT NULL,
		transaction_subtype TEXT,
		quantity REAL,
		price_eur REAL,
		amount_eur REAL,
		currency TEXT,
		fx_rate REAL,
		row_ref INTEGER,
		raw_text TEXT,
		hash_id TEXT,
		FOREIGN KEY(user_id) REFERENCES users(id),
		UNIQUE(user_id, hash_id)
	);

	CREATE TABLE IF NOT EXISTS ticker_info (
		ticker TEXT PRIMARY KEY,
		asset_class TEXT NOT NULL,
		currency TEXT,
		active BOOLEAN DEFAULT TRUE,
		delisted_on TEXT,
		merged_into TEXT,
		conversion_ratio REAL,
		withholding_deducted BOOLEAN DEFAULT FALSE,
		domicile TEXT,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

func migrateTransactionsTable() {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='transactions'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			if logger.L != nil {
				logger.L.Info("'transactions' table does not exist, no migration needed as table will be created.")
			} else {
				stdlog.Println("'transactions' table does not exist, no migration needed as table will be created.")
			}
			return
		}
		if logger.L != nil {
			logger.L.Error("Error checking for 'transactions' table", "error", err)
		} else {
			stdlog.Printf("Error checking for 'transactions' table: %v", err)
		}
		return
	}

	rows, err := DB.Query("PRAGMA table_info(transactions)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema for 'transactions'", "error", err)
		} else {
			stdlog.Printf("Error querying table schema for 'transactions': %v", err)
		}
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}

		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info for 'transactions'", "error", err)
			} else {
				stdlog.Printf("Error scanning column info for 'transactions': %v", err)
			}
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info for 'transactions'", "error", err)
		} else {
			stdlog.Printf("Error iterating over column info for 'transactions': %v", err)
		}
		return
	}

	if _, ok := columnExists["row_ref"]; !ok {
		_, err := DB.Exec("ALTER TABLE transactions ADD COLUMN row_ref INTEGER")
		if err != nil {
			logger.L.Error("Error adding 'row_ref' column to 'transactions' table", "error", err)
		} else {
			logger.L.Info("Added 'row_ref' column to 'transactions' table")
		}
	}
	if _, ok := columnExists["raw_text"]; !ok {
		_, err := DB.Exec("ALTER TABLE transactions ADD COLUMN raw_text TEXT")
		if err != nil {
			logger.L.Error("Error adding 'raw_text' column to 'transactions' table", "error", err)
		} else {
			logger.L.Info("Added 'raw_text' column to 'transactions' table")
		}
	}
	if _, ok := columnExists["fx_rate"]; !ok {
		_, err := DB.Exec("ALTER TABLE transactions ADD COLUMN fx_rate REAL")
		if err != nil {
			logger.L.Error("Error adding 'fx_rate' column to 'transactions' table", "error", err)
		} else {
			logger.L.Info("Added 'fx_rate' column to 'transactions' table")
		}
	}
}
