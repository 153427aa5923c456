package postgres

import (
	"context"
	"os"
	"testing"

	"psychebot/logger"
)

func testDatabase(t *testing.T) *Database {
	t.Helper()
	if os.Getenv("POSTGRES_DB_HOST") == "" {
		t.Skip("POSTGRES_DB_HOST not set, skipping database test")
	}
	log := logger.Connect(logger.LoggerConnectProps{Production: false})
	return Connect(context.Background(), DatabaseConnectProps{Logger: log})
}

func TestUserLifecycle(t *testing.T) {
	db := testDatabase(t)
	defer db.Close()
	ctx := context.Background()

	user, err := db.SetupNewUser(ctx, SetupNewUserProps{
		ChatID:    998877,
		Username:  "dana_test",
		FirstName: "Dana",
	})
	if err != nil {
		t.Fatalf("setup user: %v", err)
	}
	if user.ChatID != 998877 {
		t.Errorf("unexpected chat id %d", user.ChatID)
	}

	if _, err := db.AdjustBalance(ctx, user.ChatID, 500); err != nil {
		t.Fatalf("credit balance: %v", err)
	}
	balance, err := db.AdjustBalance(ctx, user.ChatID, -10_000)
	if err != nil {
		t.Fatalf("debit balance: %v", err)
	}
	if balance != 0 {
		t.Errorf("expected balance clamped to 0, got %d", balance)
	}
}

func TestPackageCompletion(t *testing.T) {
	db := testDatabase(t)
	defer db.Close()
	ctx := context.Background()

	user, err := db.SetupNewUser(ctx, SetupNewUserProps{ChatID: 998878, FirstName: "Pat"})
	if err != nil {
		t.Fatalf("setup user: %v", err)
	}

	pkgID, err := db.PurchasePackage(ctx, PurchasePackageProps{
		ChatID:      user.ChatID,
		PackageID:   "starter",
		PackageName: "Starter Bundle",
		TestNames:   []string{"Work Style", "Stress Response"},
	})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}

	tests, err := db.GetPackageTests(ctx, pkgID)
	if err != nil {
		t.Fatalf("list package tests: %v", err)
	}
	if len(tests) != 2 {
		t.Fatalf("expected 2 package tests, got %d", len(tests))
	}

	done, err := db.MarkPackageTestCompleted(ctx, tests[0].ID)
	if err != nil {
		t.Fatalf("complete first test: %v", err)
	}
	if done {
		t.Error("package must not finish with one test remaining")
	}

	done, err = db.MarkPackageTestCompleted(ctx, tests[1].ID)
	if err != nil {
		t.Fatalf("complete second test: %v", err)
	}
	if !done {
		t.Error("package must finish once all tests complete")
	}
}
