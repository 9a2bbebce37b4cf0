package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/trafficdump/pkg/config"
)

func backends(t *testing.T) map[string]Catalog {
	t.Helper()

	out := map[string]Catalog{"memory": NewMemory()}

	modernc, err := NewSQLite(&SQLiteConfig{Driver: DriverModernc, Path: filepath.Join(t.TempDir(), "captures.db")})
	if err != nil {
		t.Fatalf("NewSQLite(modernc) error = %v", err)
	}
	out["sqlite"] = modernc

	cgo, err := NewSQLite(&SQLiteConfig{Driver: DriverCGO, Path: filepath.Join(t.TempDir(), "captures.db")})
	if err == nil {
		out["sqlite3"] = cgo
	} else if !strings.Contains(err.Error(), "CGO") {
		t.Fatalf("NewSQLite(cgo) error = %v", err)
	}

	t.Cleanup(func() {
		for _, c := range out {
			c.Close()
		}
	})
	return out
}

func TestCatalog_RecordAndList(t *testing.T) {
	base := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			entries := []*Entry{
				{SessionID: "a", ClientAddr: "127.0.0.1", Protocol: "1.1", Path: "127/0000000000000000", Bytes: 100, Transactions: 1, WrittenAt: base},
				{SessionID: "b", ClientAddr: "127.0.0.1", Protocol: "2", Path: "127/0000000000000001", Bytes: 250, Transactions: 3, WrittenAt: base.Add(time.Second)},
				{SessionID: "c", ClientAddr: "10.0.0.7", Protocol: "1.1", Path: "10./0000000000000000", Bytes: 50, Transactions: 1, WrittenAt: base.Add(2 * time.Second)},
			}
			for _, e := range entries {
				if err := c.Record(ctx, e); err != nil {
					t.Fatalf("Record() error = %v", err)
				}
				if e.ID == 0 {
					t.Error("Record() did not assign an ID")
				}
			}

			all, err := c.List(ctx, Query{})
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(all) != 3 || all[0].SessionID != "c" || all[2].SessionID != "a" {
				t.Errorf("expected newest first, got %v", ids(all))
			}
			if !all[0].WrittenAt.Equal(base.Add(2 * time.Second)) {
				t.Errorf("timestamp not preserved: %v", all[0].WrittenAt)
			}

			local, _ := c.List(ctx, Query{ClientAddr: "127.0.0.1"})
			if len(local) != 2 {
				t.Errorf("client filter returned %v", ids(local))
			}

			recent, _ := c.List(ctx, Query{Since: base.Add(time.Second)})
			if len(recent) != 2 {
				t.Errorf("since filter returned %v", ids(recent))
			}

			limited, _ := c.List(ctx, Query{Limit: 1})
			if len(limited) != 1 || limited[0].SessionID != "c" {
				t.Errorf("limit returned %v", ids(limited))
			}

			total, err := c.TotalBytes(ctx)
			if err != nil || total != 400 {
				t.Errorf("TotalBytes() = %d, %v; want 400", total, err)
			}
		})
	}
}

func TestCatalog_TotalBytesEmpty(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			total, err := c.TotalBytes(context.Background())
			if err != nil || total != 0 {
				t.Errorf("TotalBytes() = %d, %v; want 0", total, err)
			}
		})
	}
}

func TestSQLite_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "captures.db")
	ctx := context.Background()

	c, err := NewSQLite(&SQLiteConfig{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	c.Record(ctx, &Entry{SessionID: "x", ClientAddr: "::1", Bytes: 77, WrittenAt: time.Now()})
	c.Close()

	c, err = NewSQLite(&SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer c.Close()

	total, _ := c.TotalBytes(ctx)
	if total != 77 {
		t.Errorf("TotalBytes() after reopen = %d, want 77", total)
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.CatalogConfig
		wantErr bool
	}{
		{name: "memory", cfg: config.CatalogConfig{Driver: "memory"}},
		{name: "sqlite", cfg: config.CatalogConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "c.db")}},
		{name: "unknown", cfg: config.CatalogConfig{Driver: "postgres"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Open(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if c != nil {
				c.Close()
			}
		})
	}
}

func TestStoreError_Unwrap(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := newStoreError("sqlite", "record", cause)

	if !errors.Is(err, cause) {
		t.Error("StoreError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "operation=record") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func ids(entries []*Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.SessionID
	}
	return out
}
