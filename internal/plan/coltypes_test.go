package plan

import (
	"testing"

	"github.com/apache/arrow/go/v12/arrow"

	"github.com/csotherden/wsql/internal/ir"
)

func TestInstallColumnTypesCoercesDecimal128(t *testing.T) {
	p := &PhysicalPlan{Projection: ir.NewColumn(0)}
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "amount", Type: &arrow.Decimal128Type{Precision: 18, Scale: 2}},
	}, nil)

	if err := InstallColumnTypes(p, schema); err != nil {
		t.Fatalf("InstallColumnTypes() error = %v", err)
	}
	if got := p.ColumnTypes[0]; got != ScalarFloat32 {
		t.Fatalf("ColumnTypes[0] = %v, want ScalarFloat32", got)
	}
}

func TestInstallColumnTypesRejectsUnsupportedType(t *testing.T) {
	p := &PhysicalPlan{Projection: ir.NewColumn(0)}
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
	}, nil)

	if err := InstallColumnTypes(p, schema); err == nil {
		t.Fatalf("InstallColumnTypes() error = nil, want ErrUnsupportedColumnType for int64")
	}
}

func TestInstallColumnTypesOnlyChecksUsedColumns(t *testing.T) {
	// Column 1 has an unsupported type but is never referenced, so it
	// should not cause InstallColumnTypes to fail.
	p := &PhysicalPlan{Projection: ir.NewColumn(0)}
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int32},
		{Name: "notes", Type: arrow.BinaryTypes.String},
	}, nil)

	if err := InstallColumnTypes(p, schema); err != nil {
		t.Fatalf("InstallColumnTypes() error = %v, want nil (unused column should be ignored)", err)
	}
	if _, ok := p.ColumnTypes[1]; ok {
		t.Fatalf("ColumnTypes contains unused column 1")
	}
}
