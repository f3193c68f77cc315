package codec

// Column describes one column of a relation: enough to encode/decode its
// values and, for meta-relations, to self-describe as a row of the
// `column` catalog relation.
type Column struct {
	TableID  uint32
	Ordinal  int16
	Name     string
	Type     SqlType
	TypeLen  uint16
	Nullable bool
}

// NewColumn constructs a Column descriptor.
func NewColumn(tableID uint32, ordinal int16, name string, sqlType SqlType, typeLen uint16, nullable bool) Column {
	return Column{
		TableID:  tableID,
		Ordinal:  ordinal,
		Name:     name,
		Type:     sqlType,
		TypeLen:  typeLen,
		Nullable: nullable,
	}
}

// maxDataBytes is the worst-case number of data-area bytes this column can
// contribute: its declared type_len for Varchar (the only variable-length
// type), otherwise its fixed width.
func (c Column) maxDataBytes() int {
	if c.Type.IsVariableLength() {
		return int(c.TypeLen)
	}
	return c.Type.FixedWidth(c.TypeLen)
}
