// Command migrate manages the bot's sqlite schema by hand, outside the
// automatic upgrade the bot performs on startup.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/migrations"
)

const usage = `migrate applies schema migrations to the bot database.

  migrate [-db path] <command>

  up        apply all pending migrations
  up-one    apply the next pending migration
  down      undo the most recent migration
  redo      undo and re-apply the most recent migration
  status    list migrations and their applied state
  version   print the current schema version
  reset     undo everything
`

func main() {
	dbPath := flag.String("db", envOrDefault("DATABASE_PATH", "./data/bot.db"), "sqlite database file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Fatalf("open %s: %v", *dbPath, err)
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		log.Fatalf("set dialect: %v", err)
	}

	if err := run(db, flag.Arg(0)); err != nil {
		log.Fatalf("%s: %v", flag.Arg(0), err)
	}
}

func run(db *sql.DB, cmd string) error {
	switch cmd {
	case "up":
		return goose.Up(db, ".")
	case "up-one":
		return goose.UpByOne(db, ".")
	case "down":
		return goose.Down(db, ".")
	case "redo":
		return goose.Redo(db, ".")
	case "status":
		return goose.Status(db, ".")
	case "version":
		return goose.Version(db, ".")
	case "reset":
		return goose.Reset(db, ".")
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
