package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name     string
		driver   Driver
		query    string
		expected string
	}{
		{
			name:     "sqlite keeps placeholders",
			driver:   DriverSQLite,
			query:    "SELECT * FROM licenses WHERE id = ? AND status = ?",
			expected: "SELECT * FROM licenses WHERE id = ? AND status = ?",
		},
		{
			name:     "postgres numbers placeholders",
			driver:   DriverPostgres,
			query:    "SELECT * FROM licenses WHERE id = ? AND status = ?",
			expected: "SELECT * FROM licenses WHERE id = $1 AND status = $2",
		},
		{
			name:     "postgres skips quoted question marks",
			driver:   DriverPostgres,
			query:    "SELECT '?' AS q FROM licenses WHERE id = ?",
			expected: "SELECT '?' AS q FROM licenses WHERE id = $1",
		},
		{
			name:     "no placeholders",
			driver:   DriverPostgres,
			query:    "SELECT 1",
			expected: "SELECT 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Rebind(tt.driver, tt.query))
		})
	}
}

func TestTimeValue(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 30, 0, 5, time.FixedZone("CET", 3600))

	assert.Equal(t, "2026-03-01T11:30:00.000000005Z", TimeValue(DriverSQLite, at))
	assert.Equal(t, at.UTC(), TimeValue(DriverPostgres, at))
	assert.Nil(t, NullTimeValue(DriverSQLite, nil))
}

func TestTimeValue_SortsAsText(t *testing.T) {
	early := TimeValue(DriverSQLite, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)).(string)
	late := TimeValue(DriverSQLite, time.Date(2026, 1, 1, 0, 0, 0, 1000, time.UTC)).(string)

	assert.Less(t, early, late)
}

func TestNullTime_Scan(t *testing.T) {
	want := time.Date(2026, 3, 1, 11, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		src   any
		valid bool
	}{
		{name: "nil", src: nil, valid: false},
		{name: "time", src: want, valid: true},
		{name: "stored text", src: "2026-03-01T11:30:00.000000000Z", valid: true},
		{name: "rfc3339 bytes", src: []byte("2026-03-01T12:30:00+01:00"), valid: true},
		{name: "sqlite datetime", src: "2026-03-01 11:30:00", valid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n NullTime
			require.NoError(t, n.Scan(tt.src))
			assert.Equal(t, tt.valid, n.Valid)
			if tt.valid {
				assert.True(t, want.Equal(n.Time))
				require.NotNil(t, n.Ptr())
			} else {
				assert.Nil(t, n.Ptr())
			}
		})
	}
}

func TestNullTime_ScanRejectsGarbage(t *testing.T) {
	var n NullTime
	assert.Error(t, n.Scan("yesterday"))
	assert.Error(t, n.Scan(42))
}

func TestDetectDriver(t *testing.T) {
	tests := map[string]Driver{
		"":                                   DriverSQLite,
		"postgres://premium@db:5432/premium": DriverPostgres,
		"postgresql://premium@db/premium":    DriverPostgres,
		"/var/lib/lyce/premium.db":           DriverSQLite,
		"file:premium.db?mode=rwc":           DriverSQLite,
	}
	for url, want := range tests {
		assert.Equal(t, want, DetectDriver(url), url)
	}
}
