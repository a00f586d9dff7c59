package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "test.db")
	cfg, err := Parse([]byte("database:\n  path: " + dbPath + "\n"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "X-Room-Number", cfg.Server.IdentityHeader)
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())
	assert.Equal(t, 15*time.Second, cfg.Cooldown())
	assert.Equal(t, 7, cfg.Laundry.MaxDaysAhead)
	assert.Equal(t, 540, cfg.Laundry.WasherMinutesPerWeek)
	assert.Equal(t, 1080, cfg.Laundry.DryerMinutesPerWeek)
	assert.Equal(t, time.Minute, cfg.CacheTTL())
	assert.Equal(t, 24*time.Hour, cfg.BackupInterval())
	assert.Equal(t, 15*time.Minute, cfg.ReminderLead())
	assert.DirExists(t, filepath.Dir(dbPath))
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_API_KEY", "secret")
	dbPath := filepath.Join(t.TempDir(), "test.db")

	cfg, err := Parse([]byte(`
server:
  api_key: ${TEST_API_KEY}
database:
  path: ` + dbPath + `
laundry:
  cooldown_seconds: 30
admins: ["001", "002"]
`))
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Server.APIKey)
	assert.Equal(t, 30*time.Second, cfg.Cooldown())
	assert.Equal(t, []string{"001", "002"}, cfg.Admins)
}

func TestParse_Invalid(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	tests := []struct {
		name string
		yaml string
	}{
		{"bad timezone", "timezone: Mars/Olympus\n"},
		{"negative cooldown", "laundry:\n  cooldown_seconds: -1\n"},
		{"sheets without spreadsheet", "sheets:\n  enabled: true\n"},
		{"empty admin", "admins: [\"\"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte("database:\n  path: " + dbPath + "\n" + tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestMachinesConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     MachinesConfig
		wantErr bool
	}{
		{"valid", MachinesConfig{Machines: []MachineConfig{{Name: "W1", Type: "WASHER"}, {Name: "D1", Type: "DRYER", SlotDurationMinutes: 180}}}, false},
		{"empty catalog", MachinesConfig{}, false},
		{"missing name", MachinesConfig{Machines: []MachineConfig{{Type: "WASHER"}}}, true},
		{"duplicate name", MachinesConfig{Machines: []MachineConfig{{Name: "W1", Type: "WASHER"}, {Name: "W1", Type: "DRYER"}}}, true},
		{"bad type", MachinesConfig{Machines: []MachineConfig{{Name: "X", Type: "IRON"}}}, true},
		{"bad duration", MachinesConfig{Machines: []MachineConfig{{Name: "W1", Type: "WASHER", SlotDurationMinutes: 1440}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func writeMachines(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestWatchMachines_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machines.yaml")
	writeMachines(t, path, "machines:\n  - name: W1\n    type: WASHER\n")

	var (
		mu      sync.Mutex
		updates []*MachinesConfig
		diffs   []CatalogDiff
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := WatchMachines(ctx, path, 10*time.Millisecond, func(cfg *MachinesConfig, diff CatalogDiff) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, cfg)
		diffs = append(diffs, diff)
	})
	require.NoError(t, err)

	writeMachines(t, path, "machines:\n  - name: W1\n    type: WASHER\n  - name: D1\n    type: DRYER\n")
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(updates) == 2 && len(updates[1].Machines) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"W1"}, diffs[0].Added)
	assert.Equal(t, []string{"D1"}, diffs[1].Added)
}

func TestMachineWatcher_SkipsUnchangedCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machines.yaml")
	writeMachines(t, path, "machines:\n  - name: W1\n    type: WASHER\n")

	calls := 0
	w := &machineWatcher{path: path, onUpdate: func(*MachinesConfig, CatalogDiff) { calls++ }}
	applied, err := w.reload()
	require.NoError(t, err)
	assert.True(t, applied)

	// Same machines, different formatting and a newer mtime.
	writeMachines(t, path, "# laundry room\nmachines:\n  - {name: W1, type: WASHER}\n")
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	applied, err = w.reload()
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 1, calls)

	// An invalid edit keeps the last good catalog.
	writeMachines(t, path, "machines:\n  - name: W1\n    type: IRON\n")
	later := future.Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	_, err = w.reload()
	assert.Error(t, err)
	assert.Equal(t, "W1", w.current.Machines[0].Name)
	assert.Equal(t, "WASHER", w.current.Machines[0].Type)
}

func TestDiffMachines(t *testing.T) {
	prev := &MachinesConfig{Machines: []MachineConfig{
		{Name: "W1", Type: "WASHER"},
		{Name: "W2", Type: "WASHER"},
		{Name: "D1", Type: "DRYER"},
	}}
	next := &MachinesConfig{Machines: []MachineConfig{
		{Name: "W1", Type: "WASHER"},
		{Name: "D1", Type: "DRYER", SlotDurationMinutes: 135},
		{Name: "D2", Type: "DRYER"},
	}}

	d := DiffMachines(prev, next)
	assert.Equal(t, []string{"D2"}, d.Added)
	assert.Equal(t, []string{"D1"}, d.Changed)
	assert.Equal(t, []string{"W2"}, d.Removed)
	assert.False(t, d.Empty())

	assert.True(t, DiffMachines(next, next).Empty())
	assert.Equal(t, []string{"D1", "D2", "W1"}, DiffMachines(nil, next).Added)
}

func TestWatchMachines_InitialLoadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machines.yaml")
	writeMachines(t, path, "machines:\n  - name: W1\n    type: IRON\n")

	err := WatchMachines(context.Background(), path, time.Second, nil)
	assert.Error(t, err)
}
