// Package registry records provisioned cars and issued feature tokens in
// SQLite, so a car ID is never provisioned twice and tokens can be revoked.
package registry

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/carfob/carfob-go/pkg/feature"
	"github.com/carfob/carfob-go/pkg/wire"
	sqlite3 "github.com/mattn/go-sqlite3"
)

var (
	// ErrDuplicateCar is returned when a car ID is registered twice.
	ErrDuplicateCar = errors.New("car already registered")

	// ErrCarNotFound is returned for operations on an unknown car.
	ErrCarNotFound = errors.New("car not registered")
)

// Car is a registered car.
type Car struct {
	ID           feature.CarID
	PublicKey    []byte
	BuildID      string
	RegisteredAt time.Time
}

// TokenRecord is an issued feature token.
type TokenRecord struct {
	CarID     feature.CarID
	Slot      feature.Slot
	Nonce     [wire.NonceSize]byte
	IssuedAt  time.Time
	RevokedAt *time.Time
}

// Active reports whether the token has not been revoked.
func (r *TokenRecord) Active() bool {
	return r.RevokedAt == nil
}

// Registry provides SQLite persistence for cars and tokens.
type Registry struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the registry at path.
// Use ":memory:" for an in-memory database.
func Open(path string) (*Registry, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	r := &Registry{db: db}

	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return r, nil
}

func (r *Registry) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cars (
		car_id INTEGER PRIMARY KEY,
		public_key TEXT NOT NULL,
		build_id TEXT NOT NULL,
		registered_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		car_id INTEGER NOT NULL REFERENCES cars(car_id) ON DELETE CASCADE,
		slot INTEGER NOT NULL,
		nonce TEXT NOT NULL,
		issued_at DATETIME NOT NULL,
		revoked_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_tokens_car_slot ON tokens(car_id, slot);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (r *Registry) Close() error {
	return r.db.Close()
}

// RegisterCar records a provisioned car.
func (r *Registry) RegisterCar(carID feature.CarID, carPublic []byte, buildID string) error {
	if err := wire.CheckLen("car public key", carPublic, wire.PointSize); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO cars (car_id, public_key, build_id, registered_at)
		VALUES (?, ?, ?, ?)
	`, int64(carID), hex.EncodeToString(carPublic), buildID, time.Now().UTC())

	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %s", ErrDuplicateCar, carID)
	}
	return err
}

// GetCar retrieves a car. It returns nil, nil when the car is unknown.
func (r *Registry) GetCar(carID feature.CarID) (*Car, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		id     int64
		pubHex string
		car    Car
	)
	err := r.db.QueryRow(`
		SELECT car_id, public_key, build_id, registered_at
		FROM cars WHERE car_id = ?
	`, int64(carID)).Scan(&id, &pubHex, &car.BuildID, &car.RegisteredAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	car.ID = feature.CarID(id)
	car.PublicKey, err = hex.DecodeString(pubHex)
	if err != nil {
		return nil, fmt.Errorf("corrupt public key for car %s: %w", car.ID, err)
	}
	return &car, nil
}

// CheckUnregistered returns ErrDuplicateCar if carID is registered.
func (r *Registry) CheckUnregistered(carID feature.CarID) error {
	car, err := r.GetCar(carID)
	if err != nil {
		return err
	}
	if car != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateCar, carID)
	}
	return nil
}

// CheckRegistered returns ErrCarNotFound unless carID is registered.
func (r *Registry) CheckRegistered(carID feature.CarID) error {
	car, err := r.GetCar(carID)
	if err != nil {
		return err
	}
	if car == nil {
		return fmt.Errorf("%w: %s", ErrCarNotFound, carID)
	}
	return nil
}

// RecordToken records an issued token. Any active token for the same slot is
// revoked first, so each slot has at most one active token.
func (r *Registry) RecordToken(carID feature.CarID, slot feature.Slot, nonce []byte) error {
	if !slot.Valid() {
		return fmt.Errorf("%w: %d", feature.ErrInvalidSlot, slot)
	}
	if err := wire.CheckLen("nonce", nonce, wire.NonceSize); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRow(`SELECT COUNT(*) FROM cars WHERE car_id = ?`, int64(carID)).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrCarNotFound, carID)
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(`
		UPDATE tokens SET revoked_at = ?
		WHERE car_id = ? AND slot = ? AND revoked_at IS NULL
	`, now, int64(carID), int(slot)); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO tokens (car_id, slot, nonce, issued_at)
		VALUES (?, ?, ?, ?)
	`, int64(carID), int(slot), hex.EncodeToString(nonce), now); err != nil {
		return err
	}
	return tx.Commit()
}

// RevokeToken revokes the active token in slot. It reports whether a token
// was revoked. Other slots are unaffected.
func (r *Registry) RevokeToken(carID feature.CarID, slot feature.Slot) (bool, error) {
	if !slot.Valid() {
		return false, fmt.Errorf("%w: %d", feature.ErrInvalidSlot, slot)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec(`
		UPDATE tokens SET revoked_at = ?
		WHERE car_id = ? AND slot = ? AND revoked_at IS NULL
	`, time.Now().UTC(), int64(carID), int(slot))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ActiveToken returns the active token in slot, or nil.
func (r *Registry) ActiveToken(carID feature.CarID, slot feature.Slot) (*TokenRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.Query(`
		SELECT car_id, slot, nonce, issued_at, revoked_at
		FROM tokens
		WHERE car_id = ? AND slot = ? AND revoked_at IS NULL
		ORDER BY id DESC LIMIT 1
	`, int64(carID), int(slot))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens, err := scanTokens(rows)
	if err != nil || len(tokens) == 0 {
		return nil, err
	}
	return tokens[0], nil
}

// ListTokens returns every token issued for carID, oldest first.
func (r *Registry) ListTokens(carID feature.CarID) ([]*TokenRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.Query(`
		SELECT car_id, slot, nonce, issued_at, revoked_at
		FROM tokens WHERE car_id = ? ORDER BY id
	`, int64(carID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTokens(rows)
}

func scanTokens(rows *sql.Rows) ([]*TokenRecord, error) {
	var out []*TokenRecord
	for rows.Next() {
		var (
			id       int64
			slot     int
			nonceHex string
			rec      TokenRecord
			revoked  sql.NullTime
		)
		if err := rows.Scan(&id, &slot, &nonceHex, &rec.IssuedAt, &revoked); err != nil {
			return nil, err
		}
		nonce, err := hex.DecodeString(nonceHex)
		if err != nil || len(nonce) != wire.NonceSize {
			return nil, fmt.Errorf("corrupt nonce %q", nonceHex)
		}
		rec.CarID = feature.CarID(id)
		rec.Slot = feature.Slot(slot)
		copy(rec.Nonce[:], nonce)
		if revoked.Valid {
			t := revoked.Time
			rec.RevokedAt = &t
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
