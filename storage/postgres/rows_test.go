package postgres

import (
	"encoding/json"
	"math"
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"
)

func jsonOf(t *testing.T, oid uint32, v interface{}) string {
	converted, err := convertValue(oid, v)
	require.NoError(t, err)
	out, err := json.Marshal(converted)
	require.NoError(t, err)
	return string(out)
}

func TestConvertScalars(t *testing.T) {
	require.Equal(t, "42", jsonOf(t, pgtype.Int4OID, int32(42)))
	require.Equal(t, "-7", jsonOf(t, pgtype.Int2OID, int16(-7)))
	require.Equal(t, "9007199254740993", jsonOf(t, pgtype.Int8OID, int64(9007199254740993)))
	require.Equal(t, "true", jsonOf(t, pgtype.BoolOID, true))
	require.Equal(t, `"Balances"`, jsonOf(t, pgtype.VarcharOID, "Balances"))
	require.Equal(t, "1.5", jsonOf(t, pgtype.Float4OID, float32(1.5)))
	require.Equal(t, "0.1", jsonOf(t, pgtype.Float8OID, 0.1))
	require.Equal(t, "null", jsonOf(t, pgtype.TextOID, nil))
}

func TestConvertBytea(t *testing.T) {
	require.Equal(t, "[0,255]", jsonOf(t, pgtype.ByteaOID, []byte{0, 255}))
	require.Equal(t, "[]", jsonOf(t, pgtype.ByteaOID, []byte{}))
}

func TestConvertNumeric(t *testing.T) {
	for _, tc := range []struct {
		n        pgtype.Numeric
		expected string
	}{
		{pgtype.Numeric{Int: big.NewInt(1250), Exp: -2, Valid: true}, `"12.50"`},
		{pgtype.Numeric{Int: big.NewInt(-5), Exp: -3, Valid: true}, `"-0.005"`},
		{pgtype.Numeric{Int: big.NewInt(-5), Exp: -1, Valid: true}, `"-0.5"`},
		{pgtype.Numeric{Int: big.NewInt(-1250), Exp: -2, Valid: true}, `"-12.50"`},
		{pgtype.Numeric{Int: big.NewInt(-12), Exp: 3, Valid: true}, `"-12000"`},
		{pgtype.Numeric{Int: big.NewInt(12), Exp: 3, Valid: true}, `"12000"`},
		{pgtype.Numeric{Int: new(big.Int).Lsh(big.NewInt(1), 100), Exp: 0, Valid: true}, `"1267650600228229401496703205376"`},
		{pgtype.Numeric{NaN: true, Valid: true}, `"NaN"`},
		{pgtype.Numeric{InfinityModifier: pgtype.NegativeInfinity, Valid: true}, `"-Infinity"`},
		{pgtype.Numeric{}, "null"},
	} {
		require.Equal(t, tc.expected, jsonOf(t, pgtype.NumericOID, tc.n))
	}
}

// pgx renders finite numerics as text itself; both renderings must agree.
func TestConvertNumericMatchesPgx(t *testing.T) {
	for _, n := range []pgtype.Numeric{
		{Int: big.NewInt(-5), Exp: -3, Valid: true},
		{Int: big.NewInt(-5), Exp: -1, Valid: true},
		{Int: big.NewInt(-123456), Exp: -2, Valid: true},
		{Int: big.NewInt(7), Exp: -4, Valid: true},
		{Int: big.NewInt(1250), Exp: -2, Valid: true},
		{Int: big.NewInt(-3), Exp: 2, Valid: true},
	} {
		converted, err := convertValue(pgtype.NumericOID, n)
		require.NoError(t, err)
		expected, err := n.Value()
		require.NoError(t, err)
		require.Equal(t, expected, converted, "numeric %s e%d", n.Int, n.Exp)
	}
}

func TestConvertArrays(t *testing.T) {
	require.Equal(t, "[1,null,3]", jsonOf(t, pgtype.Int4ArrayOID, []interface{}{int32(1), nil, int32(3)}))
	require.Equal(t, `["a","b"]`, jsonOf(t, pgtype.TextArrayOID, []interface{}{"a", "b"}))
	require.Equal(t, `[[1,2]]`, jsonOf(t, pgtype.ByteaArrayOID, []interface{}{[]byte{1, 2}}))
	require.Equal(t, `["1.0"]`, jsonOf(t, pgtype.NumericArrayOID, []interface{}{
		pgtype.Numeric{Int: big.NewInt(10), Exp: -1, Valid: true},
	}))
	require.Equal(t, "null", jsonOf(t, pgtype.BoolArrayOID, nil))

	_, err := convertValue(pgtype.Int4ArrayOID, int32(1))
	require.Error(t, err)
}

func TestConvertNonFinite(t *testing.T) {
	_, err := convertValue(pgtype.Float8OID, math.NaN())
	require.Error(t, err)
	_, err = convertValue(pgtype.Float4OID, float32(math.Inf(1)))
	require.Error(t, err)
}

func TestCheckColumns(t *testing.T) {
	require.NoError(t, checkColumns([]pgconn.FieldDescription{
		{Name: "number", DataTypeOID: pgtype.Int8OID},
		{Name: "hash_bytes", DataTypeOID: pgtype.ByteaOID},
		{Name: "tags", DataTypeOID: pgtype.TextArrayOID},
	}))

	err := checkColumns([]pgconn.FieldDescription{
		{Name: "number", DataTypeOID: pgtype.Int8OID},
		{Name: "values", DataTypeOID: pgtype.JSONBOID},
	})
	var unsupported *UnsupportedTypeError
	require.ErrorAs(t, err, &unsupported)
	require.Equal(t, "values", unsupported.Column)
	require.Equal(t, "jsonb", unsupported.Type)
	require.EqualError(t, err, `cannot convert column "values" of type jsonb`)

	err = checkColumns([]pgconn.FieldDescription{{Name: "custom", DataTypeOID: 987654}})
	require.ErrorAs(t, err, &unsupported)
	require.Equal(t, "oid 987654", unsupported.Type)
}
