package codec

import "testing"

func TestCodec_EncodeDecodeRoundTrip(t *testing.T) {
	columns := []Column{
		NewColumn(1, 0, "name", Varchar, 6, false),
		NewColumn(1, 1, "address", Varchar, 20, true),
		NewColumn(1, 2, "phone", Char, 5, true),
		NewColumn(1, 3, "age", TinyInt, 0, true),
	}
	c := New(columns)

	rows := [][]Value{
		{StringValue("abc"), StringValue("earth"), StringValue("12345"), I8Value(16)},
		{StringValue("def"), StringValue("moon"), StringValue("45678"), NullValue()},
		{StringValue("abcde"), NullValue(), NullValue(), NullValue()},
	}

	for i, row := range rows {
		encoded, err := c.Encode(row)
		if err != nil {
			t.Fatalf("row %d: Encode() error = %v", i, err)
		}
		decoded, _, err := c.Decode(encoded)
		if err != nil {
			t.Fatalf("row %d: Decode() error = %v", i, err)
		}
		for j := range row {
			if row[j].Kind() != decoded[j].Kind() {
				t.Fatalf("row %d col %d: kind = %v, want %v", i, j, decoded[j].Kind(), row[j].Kind())
			}
			if !row[j].IsNull() && Compare(row[j], decoded[j]) != 0 {
				t.Errorf("row %d col %d: decoded = %v, want %v", i, j, decoded[j], row[j])
			}
		}
	}
}

func TestCodec_EncodeValuesCountMismatch(t *testing.T) {
	c := New([]Column{NewColumn(1, 0, "a", TinyUint, 0, false)})
	if _, err := c.Encode([]Value{U8Value(1), U8Value(2)}); err != ErrValuesCount {
		t.Errorf("Encode() error = %v, want %v", err, ErrValuesCount)
	}
}

func TestCodec_DecodeConsumedLenIncludesHeader(t *testing.T) {
	columns := []Column{
		NewColumn(1, 0, "id", TinyUint, 0, false),
		NewColumn(1, 1, "name", Varchar, 10, true),
	}
	c := New(columns)
	encoded, err := c.Encode([]Value{U8Value(5), StringValue("hi")})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	_, consumed, err := c.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if consumed != len(encoded) {
		t.Errorf("consumed = %d, want %d (full record length)", consumed, len(encoded))
	}
}

func TestCodec_MaxSize(t *testing.T) {
	columns := []Column{
		NewColumn(1, 0, "id", TinyUint, 0, false),
		NewColumn(1, 1, "name", Varchar, 10, false),
	}
	c := New(columns)
	// var_len_area(2) + no bitmap + id(1) + varchar max(10)
	if got, want := c.MaxSize(), 2+1+10; got != want {
		t.Errorf("MaxSize() = %d, want %d", got, want)
	}
}
