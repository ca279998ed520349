package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// List retrieves all devices in creation order.
	List(ctx context.Context) ([]Device, error)

	// GetByAddress retrieves one device.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByAddress(ctx context.Context, address string) (*Device, error)

	// Save inserts or replaces a device.
	Save(ctx context.Context, device *Device) error

	// Delete removes a device by address.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, address string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with migrations applied.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectDevice = `
	SELECT address, name, type, manufacturer_id, config, metrics,
		last_seen, created_at, updated_at
	FROM devices`

// List retrieves all devices.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, selectDevice+` ORDER BY created_at, address`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// GetByAddress retrieves a device by its address.
func (r *SQLiteRepository) GetByAddress(ctx context.Context, address string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, selectDevice+` WHERE address = ?`, address)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by address: %w", err)
	}
	return d, nil
}

// Save upserts a device. Decode failure counters are runtime-only and are
// not persisted.
func (r *SQLiteRepository) Save(ctx context.Context, d *Device) error {
	configJSON, err := json.Marshal(nonNil(d.Config))
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	metricsJSON, err := json.Marshal(nonNil(d.Metrics))
	if err != nil {
		return fmt.Errorf("marshalling metrics: %w", err)
	}

	var lastSeen sql.NullString
	if d.LastSeen != nil {
		lastSeen = sql.NullString{String: d.LastSeen.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	created := d.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	updated := d.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	query := `
		INSERT INTO devices (address, name, type, manufacturer_id, config, metrics,
			last_seen, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			manufacturer_id = excluded.manufacturer_id,
			config = excluded.config,
			metrics = excluded.metrics,
			last_seen = excluded.last_seen,
			updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		d.Address,
		d.Name,
		d.Type,
		int64(d.ManufacturerID),
		string(configJSON),
		string(metricsJSON),
		lastSeen,
		created.UTC().Format(time.RFC3339Nano),
		updated.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving device: %w", err)
	}
	return nil
}

// Delete removes a device by address.
func (r *SQLiteRepository) Delete(ctx context.Context, address string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE address = ?`, address)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var manufacturerID int64
	var configJSON, metricsJSON string
	var lastSeen sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.Address,
		&d.Name,
		&d.Type,
		&manufacturerID,
		&configJSON,
		&metricsJSON,
		&lastSeen,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if manufacturerID < 0 || manufacturerID > 0xFFFF {
		return nil, fmt.Errorf("manufacturer_id %d out of range", manufacturerID)
	}
	d.ManufacturerID = uint16(manufacturerID)

	if lastSeen.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastSeen.String)
		if err == nil {
			d.LastSeen = &t
		}
	}

	var parseErr error
	d.CreatedAt, parseErr = time.Parse(time.RFC3339Nano, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	d.UpdatedAt, parseErr = time.Parse(time.RFC3339Nano, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	if err := json.Unmarshal([]byte(configJSON), &d.Config); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := json.Unmarshal([]byte(metricsJSON), &d.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshalling metrics: %w", err)
	}
	return &d, nil
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
