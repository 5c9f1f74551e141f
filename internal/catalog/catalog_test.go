package catalog

import (
	"errors"
	"testing"
)

func TestDefault_IsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if len(c.IntegrationTables) != 8 {
		t.Errorf("expected 8 integration tables, got %d", len(c.IntegrationTables))
	}
	if c.Routines.Load.Name != "dbo.SP_Orquestador_INT_to_DW" {
		t.Errorf("unexpected load routine %q", c.Routines.Load.Name)
	}
	if !c.Routines.Load.HasParam() {
		t.Error("load routine should take the reprocess flag")
	}
	if c.Routines.Integrate.HasParam() {
		t.Error("integrate routine should take no parameters")
	}
	if len(c.Staging.Datasets) != 8 {
		t.Errorf("expected 8 staging datasets, got %d", len(c.Staging.Datasets))
	}
}

func TestResetOrder_FactsAndLogsBeforeDimensions(t *testing.T) {
	c := Default()
	order := c.ResetOrder()

	firstDim := -1
	lastNonDim := -1
	dims := make(map[string]bool)
	for _, d := range c.Dimensions {
		dims[d.Name] = true
	}
	for i, table := range order {
		if dims[table.Name] {
			if firstDim == -1 {
				firstDim = i
			}
		} else {
			lastNonDim = i
		}
	}

	if firstDim == -1 || lastNonDim == -1 {
		t.Fatal("reset order should contain facts, logs and dimensions")
	}
	if lastNonDim > firstDim {
		t.Errorf("fact/log table at %d comes after first dimension at %d", lastNonDim, firstDim)
	}
	if order[0].Name != "Fact_Entregas" {
		t.Errorf("expected Fact_Entregas first, got %s", order[0].Name)
	}
}

func TestParse_OverlaysDefault(t *testing.T) {
	data := []byte(`
process_name: nightly
integration_tables: [int_customer, int_sales]
`)
	c, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c.ProcessName != "nightly" {
		t.Errorf("ProcessName = %q, want nightly", c.ProcessName)
	}
	if len(c.IntegrationTables) != 2 {
		t.Errorf("IntegrationTables = %v, want 2 entries", c.IntegrationTables)
	}
	// Не указанные секции берутся из встроенного каталога.
	if c.TimeDimension.Table != "Dim_Tiempo" {
		t.Errorf("TimeDimension.Table = %q, want Dim_Tiempo", c.TimeDimension.Table)
	}
}

func TestParse_DuplicateResetTable(t *testing.T) {
	data := []byte(`
facts:
  - {table: Fact_Ventas}
dimensions:
  - {table: fact_ventas}
`)
	_, err := Parse(data)
	if !errors.Is(err, ErrInvalidCatalog) {
		t.Fatalf("Parse() error = %v, want ErrInvalidCatalog", err)
	}
}

func TestParse_MissingRoutine(t *testing.T) {
	_, err := Parse([]byte("routines:\n  load:\n    name: \"\"\n"))
	if !errors.Is(err, ErrInvalidCatalog) {
		t.Fatalf("Parse() error = %v, want ErrInvalidCatalog", err)
	}
}

func TestDataset_IsDateColumn(t *testing.T) {
	ds := Dataset{DateColumns: []string{"Fecha_Envio", "Fecha_Entrega"}}
	if !ds.IsDateColumn("Fecha_Envio") {
		t.Error("Fecha_Envio should be a date column")
	}
	if ds.IsDateColumn("CodEntrega") {
		t.Error("CodEntrega should not be a date column")
	}
}
