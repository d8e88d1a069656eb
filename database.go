package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ============================================================================
// Database
// ============================================================================

const (
	MsgDatabaseTableError  = "Failed to create table: %w"
	MsgDatabasePragmaError = "Failed to set pragma %s: %w"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidCatalog    = errors.New("invalid catalog")
)

var DB *sql.DB

func InitDatabase(ctx context.Context, dataSourceName string) error {
	var err error
	DB, err = sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return err
	}

	DB.SetMaxOpenConns(5)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA cache_size=-2000;",
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, p := range pragmas {
		if _, err := DB.ExecContext(initCtx, p); err != nil {
			return fmt.Errorf(MsgDatabasePragmaError, p, err)
		}
	}

	tx, err := DB.BeginTx(initCtx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tableQueries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			discord_id TEXT PRIMARY KEY,
			roblox_id TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS economics (
			discord_id TEXT PRIMARY KEY,
			balance INTEGER NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 1,
			experience INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS fishes (
			uuid TEXT PRIMARY KEY,
			discord_id TEXT NOT NULL,
			type TEXT NOT NULL,
			modifiers TEXT NOT NULL DEFAULT '',
			size REAL NOT NULL,
			caught_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS lastfm_sessions (
			discord_id TEXT PRIMARY KEY,
			session_key TEXT NOT NULL,
			username TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS bot_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fishes_discord_id ON fishes(discord_id)`,
	}

	for _, q := range tableQueries {
		if _, err := tx.ExecContext(initCtx, q); err != nil {
			return fmt.Errorf(MsgDatabaseTableError, err)
		}
	}

	return tx.Commit()
}

func CloseDatabase() {
	if DB != nil {
		DB.Close()
	}
}

// --- Bot Persistence ---

// BotConfig helpers are used by the loader for mode tracking and state.
func GetBotConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := DB.QueryRowContext(ctx, "SELECT value FROM bot_config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func SetBotConfig(ctx context.Context, key, value string) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO bot_config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// --- Users ---

func EnsureUser(ctx context.Context, discordID string) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO users (discord_id) VALUES (?)
		ON CONFLICT(discord_id) DO NOTHING
	`, discordID)
	return err
}

func SetRobloxID(ctx context.Context, discordID, robloxID string) error {
	if err := EnsureUser(ctx, discordID); err != nil {
		return err
	}
	_, err := DB.ExecContext(ctx, "UPDATE users SET roblox_id = ? WHERE discord_id = ?", robloxID, discordID)
	return err
}

func GetRobloxID(ctx context.Context, discordID string) (string, error) {
	var robloxID sql.NullString
	err := DB.QueryRowContext(ctx, "SELECT roblox_id FROM users WHERE discord_id = ?", discordID).Scan(&robloxID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return robloxID.String, nil
}

// --- Economy ---

func EnsureEconomy(ctx context.Context, discordID string) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO economics (discord_id, balance, level, experience) VALUES (?, 0, 1, 0)
		ON CONFLICT(discord_id) DO NOTHING
	`, discordID)
	return err
}

func GetBalance(ctx context.Context, discordID string) (int64, error) {
	if err := EnsureEconomy(ctx, discordID); err != nil {
		return 0, err
	}
	var balance int64
	err := DB.QueryRowContext(ctx, "SELECT balance FROM economics WHERE discord_id = ?", discordID).Scan(&balance)
	return balance, err
}

func AddBalance(ctx context.Context, discordID string, amount int64) error {
	if err := EnsureEconomy(ctx, discordID); err != nil {
		return err
	}
	_, err := DB.ExecContext(ctx, "UPDATE economics SET balance = balance + ? WHERE discord_id = ?", amount, discordID)
	return err
}

// SpendBalance debits amount atomically. The non-negativity invariant is
// enforced at the statement level so concurrent spends cannot overdraw.
func SpendBalance(ctx context.Context, discordID string, amount int64) error {
	if err := EnsureEconomy(ctx, discordID); err != nil {
		return err
	}
	res, err := DB.ExecContext(ctx, `
		UPDATE economics SET balance = balance - ?
		WHERE discord_id = ? AND balance >= ?
	`, amount, discordID, amount)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

func GetLevelAndExperience(ctx context.Context, discordID string) (int64, int64, error) {
	if err := EnsureEconomy(ctx, discordID); err != nil {
		return 0, 0, err
	}
	var level, experience int64
	err := DB.QueryRowContext(ctx, "SELECT level, experience FROM economics WHERE discord_id = ?", discordID).Scan(&level, &experience)
	return level, experience, err
}

func UpdateLevel(ctx context.Context, discordID string, level int64) error {
	if err := EnsureEconomy(ctx, discordID); err != nil {
		return err
	}
	_, err := DB.ExecContext(ctx, "UPDATE economics SET level = ? WHERE discord_id = ?", level, discordID)
	return err
}

func UpdateLevelAndExperience(ctx context.Context, discordID string, level, experience int64) error {
	if err := EnsureEconomy(ctx, discordID); err != nil {
		return err
	}
	_, err := DB.ExecContext(ctx, "UPDATE economics SET level = ?, experience = ? WHERE discord_id = ?", level, experience, discordID)
	return err
}

// --- Leaderboards ---

type EconomyRow struct {
	DiscordID  string
	Balance    int64
	Level      int64
	Experience int64
}

func TopByLevel(ctx context.Context, limit int) ([]EconomyRow, error) {
	rows, err := DB.QueryContext(ctx, `
		SELECT discord_id, balance, level, experience FROM economics
		ORDER BY level DESC, experience DESC, discord_id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEconomyRows(rows)
}

func TopByBalance(ctx context.Context, limit int) ([]EconomyRow, error) {
	rows, err := DB.QueryContext(ctx, `
		SELECT discord_id, balance, level, experience FROM economics
		ORDER BY balance DESC, discord_id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEconomyRows(rows)
}

func scanEconomyRows(rows *sql.Rows) ([]EconomyRow, error) {
	var out []EconomyRow
	for rows.Next() {
		var r EconomyRow
		if err := rows.Scan(&r.DiscordID, &r.Balance, &r.Level, &r.Experience); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LevelRank returns the 1-based position of the account in the level ordering.
// sql.ErrNoRows means the account has no economy row yet.
func LevelRank(ctx context.Context, discordID string) (int64, error) {
	var rank int64
	err := DB.QueryRowContext(ctx, `
		SELECT rank FROM (
			SELECT discord_id, ROW_NUMBER() OVER (ORDER BY level DESC, experience DESC, discord_id ASC) AS rank
			FROM economics
		) WHERE discord_id = ?
	`, discordID).Scan(&rank)
	return rank, err
}

func BalanceRank(ctx context.Context, discordID string) (int64, error) {
	var rank int64
	err := DB.QueryRowContext(ctx, `
		SELECT rank FROM (
			SELECT discord_id, ROW_NUMBER() OVER (ORDER BY balance DESC, discord_id ASC) AS rank
			FROM economics
		) WHERE discord_id = ?
	`, discordID).Scan(&rank)
	return rank, err
}

// --- Fishing ---

type Fish struct {
	UUID      string
	DiscordID string
	Type      string
	Modifiers string
	Size      float64
}

func AddFish(ctx context.Context, f *Fish) error {
	if err := EnsureUser(ctx, f.DiscordID); err != nil {
		return err
	}
	_, err := DB.ExecContext(ctx, `
		INSERT INTO fishes (uuid, discord_id, type, modifiers, size) VALUES (?, ?, ?, ?, ?)
	`, f.UUID, f.DiscordID, f.Type, f.Modifiers, f.Size)
	return err
}

func GetUserFishes(ctx context.Context, discordID string) ([]Fish, error) {
	rows, err := DB.QueryContext(ctx, `
		SELECT uuid, discord_id, type, modifiers, size FROM fishes
		WHERE discord_id = ? ORDER BY caught_at ASC, uuid ASC
	`, discordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Fish
	for rows.Next() {
		var f Fish
		if err := rows.Scan(&f.UUID, &f.DiscordID, &f.Type, &f.Modifiers, &f.Size); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// --- Last.fm ---

type LastfmSession struct {
	DiscordID  string
	SessionKey string
	Username   string
}

func SaveLastfmSession(ctx context.Context, s *LastfmSession) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO lastfm_sessions (discord_id, session_key, username) VALUES (?, ?, ?)
		ON CONFLICT(discord_id) DO UPDATE SET
			session_key = excluded.session_key,
			username = excluded.username,
			created_at = CURRENT_TIMESTAMP
	`, s.DiscordID, s.SessionKey, s.Username)
	return err
}

func GetLastfmSession(ctx context.Context, discordID string) (*LastfmSession, error) {
	var s LastfmSession
	err := DB.QueryRowContext(ctx, `
		SELECT discord_id, session_key, username FROM lastfm_sessions WHERE discord_id = ?
	`, discordID).Scan(&s.DiscordID, &s.SessionKey, &s.Username)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
