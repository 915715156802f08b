package postgres

import (
	"fmt"
	"math"
	"math/big"

	"github.com/cockroachdb/apd"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/hyperdot/hyperdot-node/storage"
)

// UnsupportedTypeError is returned for a result column whose type has no
// JSON mapping.
type UnsupportedTypeError struct {
	Column string
	Type   string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("cannot convert column %q of type %s", e.Column, e.Type)
}

// Element OIDs of the supported array types.
var arrayElems = map[uint32]uint32{
	pgtype.BoolArrayOID:    pgtype.BoolOID,
	pgtype.Int2ArrayOID:    pgtype.Int2OID,
	pgtype.Int4ArrayOID:    pgtype.Int4OID,
	pgtype.Int8ArrayOID:    pgtype.Int8OID,
	pgtype.NumericArrayOID: pgtype.NumericOID,
	pgtype.ByteaArrayOID:   pgtype.ByteaOID,
	pgtype.TextArrayOID:    pgtype.TextOID,
	pgtype.VarcharArrayOID: pgtype.VarcharOID,
	pgtype.BPCharArrayOID:  pgtype.BPCharOID,
	pgtype.NameArrayOID:    pgtype.NameOID,
	pgtype.Float4ArrayOID:  pgtype.Float4OID,
	pgtype.Float8ArrayOID:  pgtype.Float8OID,
}

func isScalar(oid uint32) bool {
	switch oid {
	case pgtype.BoolOID,
		pgtype.Int2OID, pgtype.Int4OID, pgtype.Int8OID,
		pgtype.NumericOID,
		pgtype.ByteaOID,
		pgtype.TextOID, pgtype.VarcharOID, pgtype.BPCharOID, pgtype.NameOID,
		pgtype.Float4OID, pgtype.Float8OID:
		return true
	}
	return false
}

var typeNames = pgtype.NewMap()

func typeName(oid uint32) string {
	if t, ok := typeNames.TypeForOID(oid); ok {
		return t.Name
	}
	return fmt.Sprintf("oid %d", oid)
}

// checkColumns fails on the first column without a JSON mapping, before any
// row is read.
func checkColumns(fields []pgconn.FieldDescription) error {
	for _, f := range fields {
		if isScalar(f.DataTypeOID) {
			continue
		}
		if _, ok := arrayElems[f.DataTypeOID]; ok {
			continue
		}
		return &UnsupportedTypeError{Column: f.Name, Type: typeName(f.DataTypeOID)}
	}
	return nil
}

// collectRows reads every row into JSON-ready values and closes rows.
func collectRows(rows pgx.Rows) (*storage.Rows, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	if err := checkColumns(fields); err != nil {
		return nil, err
	}
	result := &storage.Rows{
		Columns: make([]string, len(fields)),
		Rows:    []map[string]interface{}{},
	}
	for i, f := range fields {
		result.Columns[i] = f.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(fields))
		for i, f := range fields {
			v, err := convertValue(f.DataTypeOID, values[i])
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", f.Name, err)
			}
			row[f.Name] = v
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// convertValue maps one decoded postgres value of type oid to a value that
// encoding/json renders faithfully.
func convertValue(oid uint32, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if elem, ok := arrayElems[oid]; ok {
		items, ok := v.([]interface{})
		if !ok {
			return nil, fmt.Errorf("unexpected %T for %s", v, typeName(oid))
		}
		out := make([]interface{}, len(items))
		for i, item := range items {
			converted, err := convertValue(elem, item)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	}

	switch v := v.(type) {
	case bool, string:
		return v, nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float32:
		return finite(float64(v))
	case float64:
		return finite(v)
	case []byte:
		// Rendered as an array of numbers rather than base64.
		out := make([]int, len(v))
		for i, b := range v {
			out[i] = int(b)
		}
		return out, nil
	case pgtype.Numeric:
		return numericString(v)
	default:
		return nil, fmt.Errorf("unexpected %T for %s", v, typeName(oid))
	}
}

func finite(f float64) (interface{}, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%v has no json representation", f)
	}
	return f, nil
}

// numericString renders a NUMERIC exactly, without exponent notation.
func numericString(n pgtype.Numeric) (interface{}, error) {
	switch {
	case !n.Valid:
		return nil, nil
	case n.NaN:
		return "NaN", nil
	case n.InfinityModifier == pgtype.Infinity:
		return "Infinity", nil
	case n.InfinityModifier == pgtype.NegativeInfinity:
		return "-Infinity", nil
	case n.Int == nil:
		return nil, fmt.Errorf("numeric without coefficient")
	}
	// apd misplaces the sign of negative values below one, so only the
	// magnitude goes through it.
	text := apd.NewWithBigInt(new(big.Int).Abs(n.Int), n.Exp).Text('f')
	if n.Int.Sign() < 0 {
		text = "-" + text
	}
	return text, nil
}
