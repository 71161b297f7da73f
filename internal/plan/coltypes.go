package plan

import (
	"github.com/apache/arrow/go/v12/arrow"
	"github.com/pkg/errors"
)

// InstallColumnTypes populates p.ColumnTypes from schema for every column
// referenced by p's projection or filter. Decimal128 columns are coerced
// to ScalarFloat32; any other Arrow type on a referenced column fails with
// ErrUnsupportedColumnType. Columns the query never references are never
// type-checked.
func InstallColumnTypes(p *PhysicalPlan, schema *arrow.Schema) error {
	p.ColumnTypes = make(map[uint32]ScalarType)

	fields := schema.Fields()
	for _, idx := range p.UsedColumns() {
		if int(idx) >= len(fields) {
			return errors.Wrapf(ErrUnsupportedColumnType, "column %d out of range for schema with %d fields", idx, len(fields))
		}
		field := fields[idx]
		st, err := scalarTypeFromArrow(field.Type)
		if err != nil {
			return errors.Wrapf(err, "column %d (%s)", idx, field.Name)
		}
		p.ColumnTypes[idx] = st
	}
	return nil
}

func scalarTypeFromArrow(t arrow.DataType) (ScalarType, error) {
	switch t.ID() {
	case arrow.INT32:
		return ScalarInt32, nil
	case arrow.FLOAT32:
		return ScalarFloat32, nil
	case arrow.DECIMAL128:
		return ScalarFloat32, nil
	default:
		return 0, errors.Wrapf(ErrUnsupportedColumnType, "arrow type %s", t)
	}
}
