package db_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"riddlehub/internal/common/db"

	"github.com/go-sql-driver/mysql"
)

func newTestSQLite(t *testing.T) *db.SQLite {
	t.Helper()
	database, err := db.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})
	return database
}

func TestUniqueViolationMySQL(t *testing.T) {
	dup := &mysql.MySQLError{
		Number:  1062,
		Message: "Duplicate entry '5+1-expression' for key 'problem.uk_question_type'",
	}

	key, ok := db.UniqueViolation(dup)
	if !ok {
		t.Fatal("1062 not recognized as unique violation")
	}
	if key != "problem.uk_question_type" {
		t.Fatalf("key = %q", key)
	}

	// wrapped errors are still recognized
	wrapped := fmt.Errorf("insert failed: %w", dup)
	if _, ok := db.UniqueViolation(wrapped); !ok {
		t.Fatal("wrapped 1062 not recognized")
	}

	syntax := &mysql.MySQLError{Number: 1064, Message: "You have an error in your SQL syntax"}
	if _, ok := db.UniqueViolation(syntax); ok {
		t.Fatal("1064 misclassified as unique violation")
	}

	if _, ok := db.UniqueViolation(nil); ok {
		t.Fatal("nil misclassified as unique violation")
	}
	if _, ok := db.UniqueViolation(errors.New("some other error")); ok {
		t.Fatal("plain error misclassified as unique violation")
	}
}

func TestUniqueViolationSQLite(t *testing.T) {
	ctx := context.Background()
	database := newTestSQLite(t)

	if _, err := database.Exec(ctx, "CREATE TABLE item (name TEXT NOT NULL UNIQUE)"); err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	if _, err := database.Exec(ctx, "INSERT INTO item (name) VALUES (?)", "a"); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	_, err := database.Exec(ctx, "INSERT INTO item (name) VALUES (?)", "a")
	if err == nil {
		t.Fatal("duplicate insert succeeded")
	}

	key, ok := db.UniqueViolation(err)
	if !ok {
		t.Fatalf("duplicate insert error not recognized: %v", err)
	}
	if !strings.Contains(key, "item.name") {
		t.Fatalf("key = %q, want the violated column", key)
	}

	// a non-constraint error is not a unique violation
	_, err = database.Exec(ctx, "INSERT INTO no_such_table (name) VALUES (?)", "a")
	if err == nil {
		t.Fatal("insert into missing table succeeded")
	}
	if _, ok := db.UniqueViolation(err); ok {
		t.Fatal("missing-table error misclassified as unique violation")
	}
}

func TestIsNoRows(t *testing.T) {
	ctx := context.Background()
	database := newTestSQLite(t)

	if _, err := database.Exec(ctx, "CREATE TABLE item (name TEXT NOT NULL)"); err != nil {
		t.Fatalf("create table failed: %v", err)
	}

	var name string
	err := database.QueryRow(ctx, "SELECT name FROM item WHERE name = ?", "missing").Scan(&name)
	if err == nil {
		t.Fatal("scan on empty table succeeded")
	}
	if !db.IsNoRows(err) {
		t.Fatalf("IsNoRows = false for %v", err)
	}
	if db.IsNoRows(errors.New("other")) {
		t.Fatal("IsNoRows = true for unrelated error")
	}
}

func TestGetQuerier(t *testing.T) {
	ctx := context.Background()
	database := newTestSQLite(t)

	if q := db.GetQuerier(database, nil); q != db.Querier(database) {
		t.Fatal("GetQuerier without tx did not return the database")
	}

	tx, err := database.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if q := db.GetQuerier(database, tx); q != db.Querier(tx) {
		t.Fatal("GetQuerier with tx did not return the transaction")
	}
}

func TestProviders(t *testing.T) {
	first := newTestSQLite(t)
	second := newTestSQLite(t)

	static := db.NewStaticProvider(first)
	if got, err := db.CurrentDatabase(static); err != nil || got != db.Database(first) {
		t.Fatalf("static provider returned %v, %v", got, err)
	}

	manager := db.NewManager(first)
	if manager.Current() != db.Database(first) {
		t.Fatal("manager did not return the initial database")
	}
	if displaced := manager.Replace(second); displaced != db.Database(first) {
		t.Fatal("replace did not return the displaced database")
	}
	if manager.Current() != db.Database(second) {
		t.Fatal("manager did not return the replacement database")
	}

	if _, err := db.CurrentDatabase(nil); err == nil {
		t.Fatal("nil provider accepted")
	}
}
