package store

// DropTables clears a journal left behind by an earlier process. Ids restart
// with every store, so old rows would collide with new ones.
const DropTables string = `
	DROP TABLE IF EXISTS "transactions";
	DROP TABLE IF EXISTS "markets";
	DROP TABLE IF EXISTS "users";
`

const CreateTables string = `
	CREATE TABLE IF NOT EXISTS "users" (
		"id"	TEXT NOT NULL UNIQUE,
		"username"	TEXT NOT NULL,
		"createdAt"	INTEGER NOT NULL,
		PRIMARY KEY("id")
	);
	CREATE TABLE IF NOT EXISTS "markets" (
		"id"	TEXT NOT NULL UNIQUE,
		"creatorId"	TEXT NOT NULL,
		"question"	TEXT NOT NULL,
		"createdAt"	INTEGER NOT NULL,
		"closeAt"	INTEGER NOT NULL,
		"outcome"	TEXT,
		"resolvedAt"	INTEGER,
		PRIMARY KEY("id")
	);
	CREATE TABLE IF NOT EXISTS "transactions" (
		"id"	INTEGER NOT NULL,
		"userId"	TEXT,
		"marketId"	TEXT,
		"betId"	TEXT,
		"type"	TEXT NOT NULL,
		"amount"	TEXT NOT NULL,
		"balanceBefore"	TEXT,
		"balanceAfter"	TEXT,
		"date"	INTEGER NOT NULL,
		PRIMARY KEY("id" AUTOINCREMENT)
	);
	`
const CreateIndexes string = `
	CREATE INDEX IF NOT EXISTS "transaction_user_id" ON "transactions" ( "userId" ASC );
	CREATE INDEX IF NOT EXISTS "transaction_market_id" ON "transactions" ( "marketId" ASC );
`
