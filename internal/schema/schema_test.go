package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kartoza/laptop-pricer/internal/laptop"
)

func TestDefaultSchema(t *testing.T) {
	s, err := Default()
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}

	if s.Len() != 34 {
		t.Errorf("Expected 34 columns, got %d", s.Len())
	}
	if len(s.Dropped()) != 4 {
		t.Errorf("Expected 4 dropped dummies, got %d", len(s.Dropped()))
	}
	if got := len(s.Categorical()); got != 27 {
		t.Errorf("Expected 27 categorical columns, got %d", got)
	}

	cols := s.Columns()
	if cols[0] != "Ram" || cols[33] != "OpSys_Windows 7" {
		t.Errorf("Unexpected column order: first=%q last=%q", cols[0], cols[33])
	}
}

func TestColumnLookup(t *testing.T) {
	s, err := Default()
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}

	tests := []struct {
		name   string
		group  laptop.Group
		label  string
		column string
		ok     bool
	}{
		{"active", laptop.GroupCPU, "Intel Core i7", "Cpu_Intel Core i7", true},
		{"dropped", laptop.GroupCompany, "Acer", "", true},
		{"dropped with spaces", laptop.GroupTypeName, "2 in 1 Convertible", "", true},
		{"unrepresented", laptop.GroupOpSys, "Linux", "", true},
		{"unknown", laptop.GroupGPU, "Matrox", "", false},
		{"case sensitive", laptop.GroupCompany, "apple", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col, ok := s.Column(tt.group, tt.label)
			if ok != tt.ok || col != tt.column {
				t.Errorf("Column(%s, %q) = %q, %v; want %q, %v", tt.group, tt.label, col, ok, tt.column, tt.ok)
			}
		})
	}
}

func TestGroupColumns(t *testing.T) {
	s, err := Default()
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}

	want := map[laptop.Group]int{
		laptop.GroupCompany:  7,
		laptop.GroupTypeName: 5,
		laptop.GroupCPU:      3,
		laptop.GroupGPU:      4,
		laptop.GroupOpSys:    4,
	}
	for g, n := range want {
		if got := len(s.GroupColumns(g)); got != n {
			t.Errorf("GroupColumns(%s) has %d columns, want %d", g, got, n)
		}
	}
}

func TestNewRejectsDrift(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Definition, laptop.Catalog)
	}{
		{"unknown option", func(_ *Definition, c laptop.Catalog) {
			c[laptop.GroupCompany] = append(c[laptop.GroupCompany], "Razer")
		}},
		{"linux not declared", func(d *Definition, _ laptop.Catalog) {
			d.Unrepresented = nil
		}},
		{"duplicate column", func(d *Definition, _ laptop.Catalog) {
			d.Columns = append(d.Columns, "Ram")
		}},
		{"dropped is column", func(d *Definition, _ laptop.Catalog) {
			d.Dropped = append(d.Dropped, "Company_Apple")
		}},
		{"missing scalar", func(d *Definition, _ laptop.Catalog) {
			d.Scalars = append(d.Scalars, "Battery")
		}},
		{"empty group", func(_ *Definition, c laptop.Catalog) {
			delete(c, laptop.GroupGPU)
		}},
		{"no columns", func(d *Definition, _ laptop.Catalog) {
			d.Columns = nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := DefaultDefinition()
			catalog := laptop.DefaultCatalog()
			tt.mutate(&def, catalog)

			_, err := New(def, catalog)
			if !errors.Is(err, ErrInvalidSchema) {
				t.Errorf("Expected ErrInvalidSchema, got %v", err)
			}
		})
	}
}

func TestAlternateSchema(t *testing.T) {
	def := Definition{
		Scalars: []string{"Ram"},
		Columns: []string{"Ram", "Company_Apple"},
		Dropped: []string{
			"Company_Asus", "Company_Dell", "Company_HP", "Company_Lenovo",
			"Company_MSI", "Company_Toshiba", "Company_Acer",
		},
	}
	catalog := laptop.Catalog{
		laptop.GroupCompany:  laptop.DefaultCatalog()[laptop.GroupCompany],
		laptop.GroupTypeName: {"Gaming"},
		laptop.GroupCPU:      {"AMD"},
		laptop.GroupGPU:      {"AMD"},
		laptop.GroupOpSys:    {"Mac"},
	}
	def.Dropped = append(def.Dropped, "TypeName_Gaming", "Cpu_AMD", "Gpu_AMD", "OpSys_Mac")

	s, err := New(def, catalog)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("Expected 2 columns, got %d", s.Len())
	}
	if col, _ := s.Column(laptop.GroupCompany, "Apple"); col != "Company_Apple" {
		t.Errorf("Expected Company_Apple, got %q", col)
	}
}

func TestLoadDefinition(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	content := "scalars: [Ram]\ncolumns: [Ram, \"Cpu_Intel Core i5\"]\ndropped: [Cpu_AMD]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write schema: %v", err)
	}

	def, err := LoadDefinition(path)
	if err != nil {
		t.Fatalf("LoadDefinition failed: %v", err)
	}
	if len(def.Columns) != 2 || def.Columns[1] != "Cpu_Intel Core i5" {
		t.Errorf("Unexpected columns: %v", def.Columns)
	}

	if _, err := LoadDefinition(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
