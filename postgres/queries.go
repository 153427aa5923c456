package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type UserInfo struct {
	ChatID    int64
	Username  sql.NullString
	FirstName sql.NullString
	LastName  sql.NullString
	Balance   int64
	CreatedAt time.Time
}

type TestResult struct {
	ID        int64
	ChatID    int64
	TestName  string
	Report    string
	Answers   []byte
	PDFPath   sql.NullString
	CreatedAt time.Time
}

type PaymentScreenshot struct {
	ID          int64
	ChatID      int64
	FileID      string
	AmountToman int64
	Status      string
	CreatedAt   time.Time
}

type UserPackage struct {
	ID          int64
	ChatID      int64
	PackageID   string
	PackageName string
	Completed   bool
	PurchasedAt time.Time
}

type PackageTest struct {
	ID            int64
	UserPackageID int64
	TestName      string
	Completed     bool
}

type SetupNewUserProps struct {
	ChatID    int64
	Username  string
	FirstName string
	LastName  string
}

// SetupNewUser inserts the user or refreshes their Telegram profile fields.
// Balance is never touched on conflict.
func (d *Database) SetupNewUser(ctx context.Context, args SetupNewUserProps) (*UserInfo, error) {
	tracer := otel.Tracer("postgres/SetupNewUser")
	ctx, span := tracer.Start(ctx, "SetupNewUser")
	defer span.End()

	row := d.conn.QueryRowContext(ctx, `
		INSERT INTO users (chat_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chat_id) DO UPDATE
			SET username = EXCLUDED.username,
			    first_name = EXCLUDED.first_name,
			    last_name = EXCLUDED.last_name
		RETURNING chat_id, username, first_name, last_name, balance, created_at`,
		args.ChatID, args.Username, args.FirstName, args.LastName)

	var user UserInfo
	if err := row.Scan(&user.ChatID, &user.Username, &user.FirstName, &user.LastName, &user.Balance, &user.CreatedAt); err != nil {
		d.logger.Logger(ctx).Error(
			"[Postgres] Could not setup new user",
			zap.Error(err),
			zap.Int64("chat_id", args.ChatID),
		)
		span.RecordError(err)
		return nil, fmt.Errorf("could not setup new user")
	}

	return &user, nil
}

func (d *Database) GetUser(ctx context.Context, chatID int64) (*UserInfo, error) {
	tracer := otel.Tracer("postgres/GetUser")
	ctx, span := tracer.Start(ctx, "GetUser")
	defer span.End()

	row := d.conn.QueryRowContext(ctx, `
		SELECT chat_id, username, first_name, last_name, balance, created_at
		FROM users WHERE chat_id = $1`, chatID)

	var user UserInfo
	if err := row.Scan(&user.ChatID, &user.Username, &user.FirstName, &user.LastName, &user.Balance, &user.CreatedAt); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("could not get user %d: %w", chatID, err)
	}
	return &user, nil
}

func (d *Database) GetBalance(ctx context.Context, chatID int64) (int64, error) {
	tracer := otel.Tracer("postgres/GetBalance")
	ctx, span := tracer.Start(ctx, "GetBalance")
	defer span.End()

	var balance int64
	err := d.conn.QueryRowContext(ctx, `SELECT balance FROM users WHERE chat_id = $1`, chatID).Scan(&balance)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("could not get balance for %d: %w", chatID, err)
	}
	return balance, nil
}

// AdjustBalance adds delta tokens to the user's balance, clamping the result
// at zero, and returns the new balance.
func (d *Database) AdjustBalance(ctx context.Context, chatID int64, delta int64) (int64, error) {
	tracer := otel.Tracer("postgres/AdjustBalance")
	ctx, span := tracer.Start(ctx, "AdjustBalance")
	defer span.End()

	var balance int64
	err := d.conn.QueryRowContext(ctx, `
		UPDATE users SET balance = GREATEST(balance + $2, 0)
		WHERE chat_id = $1
		RETURNING balance`, chatID, delta).Scan(&balance)
	if err != nil {
		d.logger.Logger(ctx).Error("[Postgres] Could not adjust balance",
			zap.Error(err), zap.Int64("chat_id", chatID), zap.Int64("delta", delta))
		span.RecordError(err)
		return 0, fmt.Errorf("could not adjust balance for %d: %w", chatID, err)
	}
	return balance, nil
}

type SaveTestResultProps struct {
	ChatID   int64
	TestName string
	Report   string
	Answers  []byte
	PDFPath  string
}

func (d *Database) SaveTestResult(ctx context.Context, args SaveTestResultProps) (int64, error) {
	tracer := otel.Tracer("postgres/SaveTestResult")
	ctx, span := tracer.Start(ctx, "SaveTestResult")
	defer span.End()

	var id int64
	err := d.conn.QueryRowContext(ctx, `
		INSERT INTO test_results (chat_id, test_name, report, answers, pdf_path)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING id`,
		args.ChatID, args.TestName, args.Report, args.Answers, args.PDFPath).Scan(&id)
	if err != nil {
		d.logger.Logger(ctx).Error("[Postgres] Could not save test result",
			zap.Error(err), zap.Int64("chat_id", args.ChatID), zap.String("test_name", args.TestName))
		span.RecordError(err)
		return 0, fmt.Errorf("could not save test result: %w", err)
	}
	return id, nil
}

func (d *Database) ListUserResults(ctx context.Context, chatID int64) ([]TestResult, error) {
	tracer := otel.Tracer("postgres/ListUserResults")
	ctx, span := tracer.Start(ctx, "ListUserResults")
	defer span.End()

	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, chat_id, test_name, report, answers, pdf_path, created_at
		FROM test_results WHERE chat_id = $1
		ORDER BY created_at DESC`, chatID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("could not list results for %d: %w", chatID, err)
	}
	defer rows.Close()

	var results []TestResult
	for rows.Next() {
		var r TestResult
		if err := rows.Scan(&r.ID, &r.ChatID, &r.TestName, &r.Report, &r.Answers, &r.PDFPath, &r.CreatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("could not scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (d *Database) GetTestResult(ctx context.Context, id int64, chatID int64) (*TestResult, error) {
	tracer := otel.Tracer("postgres/GetTestResult")
	ctx, span := tracer.Start(ctx, "GetTestResult")
	defer span.End()

	row := d.conn.QueryRowContext(ctx, `
		SELECT id, chat_id, test_name, report, answers, pdf_path, created_at
		FROM test_results WHERE id = $1 AND chat_id = $2`, id, chatID)

	var r TestResult
	if err := row.Scan(&r.ID, &r.ChatID, &r.TestName, &r.Report, &r.Answers, &r.PDFPath, &r.CreatedAt); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("could not get result %d: %w", id, err)
	}
	return &r, nil
}

type SavePaymentScreenshotProps struct {
	ChatID      int64
	FileID      string
	AmountToman int64
}

func (d *Database) SavePaymentScreenshot(ctx context.Context, args SavePaymentScreenshotProps) (int64, error) {
	tracer := otel.Tracer("postgres/SavePaymentScreenshot")
	ctx, span := tracer.Start(ctx, "SavePaymentScreenshot")
	defer span.End()

	var id int64
	err := d.conn.QueryRowContext(ctx, `
		INSERT INTO payment_screenshots (chat_id, file_id, amount_toman)
		VALUES ($1, $2, $3)
		RETURNING id`, args.ChatID, args.FileID, args.AmountToman).Scan(&id)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("could not save payment screenshot: %w", err)
	}
	return id, nil
}

func (d *Database) ResolvePaymentScreenshot(ctx context.Context, id int64, status string) error {
	tracer := otel.Tracer("postgres/ResolvePaymentScreenshot")
	ctx, span := tracer.Start(ctx, "ResolvePaymentScreenshot")
	defer span.End()

	_, err := d.conn.ExecContext(ctx,
		`UPDATE payment_screenshots SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("could not resolve payment screenshot %d: %w", id, err)
	}
	return nil
}

func (d *Database) ListPendingScreenshots(ctx context.Context) ([]PaymentScreenshot, error) {
	tracer := otel.Tracer("postgres/ListPendingScreenshots")
	ctx, span := tracer.Start(ctx, "ListPendingScreenshots")
	defer span.End()

	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, chat_id, file_id, amount_toman, status, created_at
		FROM payment_screenshots WHERE status = 'pending'
		ORDER BY created_at ASC`)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("could not list pending screenshots: %w", err)
	}
	defer rows.Close()

	var shots []PaymentScreenshot
	for rows.Next() {
		var s PaymentScreenshot
		if err := rows.Scan(&s.ID, &s.ChatID, &s.FileID, &s.AmountToman, &s.Status, &s.CreatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("could not scan screenshot: %w", err)
		}
		shots = append(shots, s)
	}
	return shots, rows.Err()
}

type PurchasePackageProps struct {
	ChatID      int64
	PackageID   string
	PackageName string
	TestNames   []string
}

// PurchasePackage records the package and its per-test checklist in one
// transaction.
func (d *Database) PurchasePackage(ctx context.Context, args PurchasePackageProps) (int64, error) {
	tracer := otel.Tracer("postgres/PurchasePackage")
	ctx, span := tracer.Start(ctx, "PurchasePackage")
	defer span.End()

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("could not start purchase: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO user_packages (chat_id, package_id, package_name)
		VALUES ($1, $2, $3)
		RETURNING id`, args.ChatID, args.PackageID, args.PackageName).Scan(&id)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("could not record package purchase: %w", err)
	}

	for _, name := range args.TestNames {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO package_tests (user_package_id, test_name)
			VALUES ($1, $2)`, id, name); err != nil {
			span.RecordError(err)
			return 0, fmt.Errorf("could not record package test %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("could not commit purchase: %w", err)
	}

	d.logger.Logger(ctx).Info("[Postgres] Package purchased",
		zap.Int64("chat_id", args.ChatID), zap.String("package_id", args.PackageID))
	return id, nil
}

func (d *Database) ListUserPackages(ctx context.Context, chatID int64) ([]UserPackage, error) {
	tracer := otel.Tracer("postgres/ListUserPackages")
	ctx, span := tracer.Start(ctx, "ListUserPackages")
	defer span.End()

	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, chat_id, package_id, package_name, completed, purchased_at
		FROM user_packages WHERE chat_id = $1
		ORDER BY purchased_at DESC`, chatID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("could not list packages for %d: %w", chatID, err)
	}
	defer rows.Close()

	var pkgs []UserPackage
	for rows.Next() {
		var p UserPackage
		if err := rows.Scan(&p.ID, &p.ChatID, &p.PackageID, &p.PackageName, &p.Completed, &p.PurchasedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("could not scan package: %w", err)
		}
		pkgs = append(pkgs, p)
	}
	return pkgs, rows.Err()
}

func (d *Database) GetPackageTests(ctx context.Context, userPackageID int64) ([]PackageTest, error) {
	tracer := otel.Tracer("postgres/GetPackageTests")
	ctx, span := tracer.Start(ctx, "GetPackageTests")
	defer span.End()

	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, user_package_id, test_name, completed
		FROM package_tests WHERE user_package_id = $1
		ORDER BY id ASC`, userPackageID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("could not list package tests: %w", err)
	}
	defer rows.Close()

	var tests []PackageTest
	for rows.Next() {
		var t PackageTest
		if err := rows.Scan(&t.ID, &t.UserPackageID, &t.TestName, &t.Completed); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("could not scan package test: %w", err)
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// FindOpenPackageTest returns the oldest unfinished package entry covering
// the given test, so completing a purchased test checks it off exactly once.
func (d *Database) FindOpenPackageTest(ctx context.Context, chatID int64, testName string) (*PackageTest, error) {
	tracer := otel.Tracer("postgres/FindOpenPackageTest")
	ctx, span := tracer.Start(ctx, "FindOpenPackageTest")
	defer span.End()

	row := d.conn.QueryRowContext(ctx, `
		SELECT pt.id, pt.user_package_id, pt.test_name, pt.completed
		FROM package_tests pt
		JOIN user_packages up ON up.id = pt.user_package_id
		WHERE up.chat_id = $1 AND pt.test_name = $2 AND NOT pt.completed
		ORDER BY up.purchased_at ASC
		LIMIT 1`, chatID, testName)

	var t PackageTest
	if err := row.Scan(&t.ID, &t.UserPackageID, &t.TestName, &t.Completed); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("could not find open package test: %w", err)
	}
	return &t, nil
}

// MarkPackageTestCompleted checks off one package test and, when it was the
// last open one, marks the whole package completed. Returns true when the
// package finished with this call.
func (d *Database) MarkPackageTestCompleted(ctx context.Context, packageTestID int64) (bool, error) {
	tracer := otel.Tracer("postgres/MarkPackageTestCompleted")
	ctx, span := tracer.Start(ctx, "MarkPackageTestCompleted")
	defer span.End()

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("could not start completion: %w", err)
	}
	defer tx.Rollback()

	var userPackageID int64
	err = tx.QueryRowContext(ctx, `
		UPDATE package_tests SET completed = TRUE
		WHERE id = $1
		RETURNING user_package_id`, packageTestID).Scan(&userPackageID)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("could not complete package test %d: %w", packageTestID, err)
	}

	var remaining int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM package_tests
		WHERE user_package_id = $1 AND NOT completed`, userPackageID).Scan(&remaining)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("could not count remaining tests: %w", err)
	}

	packageDone := remaining == 0
	if packageDone {
		if _, err := tx.ExecContext(ctx, `
			UPDATE user_packages SET completed = TRUE WHERE id = $1`, userPackageID); err != nil {
			span.RecordError(err)
			return false, fmt.Errorf("could not complete package %d: %w", userPackageID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("could not commit completion: %w", err)
	}
	return packageDone, nil
}

func (d *Database) ListAllUsers(ctx context.Context) ([]UserInfo, error) {
	tracer := otel.Tracer("postgres/ListAllUsers")
	ctx, span := tracer.Start(ctx, "ListAllUsers")
	defer span.End()

	rows, err := d.conn.QueryContext(ctx, `
		SELECT chat_id, username, first_name, last_name, balance, created_at
		FROM users ORDER BY created_at ASC`)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("could not list users: %w", err)
	}
	defer rows.Close()

	var users []UserInfo
	for rows.Next() {
		var u UserInfo
		if err := rows.Scan(&u.ChatID, &u.Username, &u.FirstName, &u.LastName, &u.Balance, &u.CreatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("could not scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
