package config

import (
	"context"
	"os"
	"sort"
	"time"
)

// CatalogDiff lists machine names that differ between two catalogs.
type CatalogDiff struct {
	Added   []string
	Changed []string // type or slot duration differs
	Removed []string
}

// Empty reports whether the catalogs declare the same machines.
func (d CatalogDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Changed) == 0 && len(d.Removed) == 0
}

// DiffMachines compares two catalogs by machine name. A nil catalog is empty.
func DiffMachines(prev, next *MachinesConfig) CatalogDiff {
	before := make(map[string]MachineConfig)
	if prev != nil {
		for _, m := range prev.Machines {
			before[m.Name] = m
		}
	}

	var d CatalogDiff
	seen := make(map[string]bool)
	if next != nil {
		for _, m := range next.Machines {
			seen[m.Name] = true
			old, ok := before[m.Name]
			switch {
			case !ok:
				d.Added = append(d.Added, m.Name)
			case old != m:
				d.Changed = append(d.Changed, m.Name)
			}
		}
	}
	for name := range before {
		if !seen[name] {
			d.Removed = append(d.Removed, name)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Changed)
	sort.Strings(d.Removed)
	return d
}

// machineWatcher remembers the last applied catalog and its file mtime.
type machineWatcher struct {
	path     string
	current  *MachinesConfig
	modified time.Time
	onUpdate func(*MachinesConfig, CatalogDiff)
}

// WatchMachines loads machines.yaml and then polls it every interval until ctx is done.
// onUpdate runs for the initial catalog and afterwards only when a reload declares
// different machines; touching the file or reformatting it does not re-apply the catalog.
// A reload that fails validation keeps the last good catalog.
func WatchMachines(ctx context.Context, path string, interval time.Duration, onUpdate func(*MachinesConfig, CatalogDiff)) error {
	if path == "" {
		path = "configs/machines.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	w := &machineWatcher{path: path, onUpdate: onUpdate}
	if _, err := w.reload(); err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = w.reload()
			}
		}
	}()
	return nil
}

// reload re-reads the catalog when the file is newer than the last applied one
// and reports whether onUpdate was called.
func (w *machineWatcher) reload() (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return false, err
	}
	if w.current != nil && !info.ModTime().After(w.modified) {
		return false, nil
	}

	next, err := LoadMachinesConfig(w.path)
	if err != nil {
		return false, err
	}
	w.modified = info.ModTime()

	diff := DiffMachines(w.current, next)
	first := w.current == nil
	w.current = next
	if !first && diff.Empty() {
		return false, nil
	}
	if w.onUpdate != nil {
		w.onUpdate(next, diff)
	}
	return true, nil
}
