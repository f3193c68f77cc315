// Package catalog defines the fixed set of self-describing meta-relations
// bootstrapped by initdb, mirroring original_source's def::meta module and
// its create_meta_tables/init.rs bootstrap pattern.
package catalog

import "github.com/ryogrid/db0/storage/codec"

// MetaTableID identifies one of the five fixed meta-relations. These
// values double as the TableID component of each relation's FileNode and
// as the key every Table/Column row uses to reference its owner.
const (
	MetaTableTablespace uint32 = iota + 1
	MetaTableDatabase
	MetaTableSchema
	MetaTableTable
	MetaTableColumn
)

// SchemaIDMeta is the single schema id every meta-relation's Table row
// reports as its schema_id; this core does not implement arbitrary DDL
// over schemas, so there is only ever this one.
const SchemaIDMeta uint32 = 0

// DatabaseIDGlobal and TablespaceIDGlobal are the single database and
// tablespace every meta-relation lives under.
const (
	DatabaseIDGlobal   uint32 = 0
	TablespaceIDGlobal uint32 = 0
)

// Tablespace mirrors one row of the tablespace meta-relation.
type Tablespace struct {
	ID   uint32
	Name string
}

// Columns returns the tablespace relation's own column list.
func (Tablespace) Columns() []codec.Column {
	return []codec.Column{
		codec.NewColumn(MetaTableTablespace, 0, "id", codec.Uint, 0, false),
		codec.NewColumn(MetaTableTablespace, 1, "name", codec.Varchar, 50, false),
	}
}

// Row returns the row's values in column order, key column(s) first.
func (t Tablespace) Row() []codec.Value {
	return []codec.Value{codec.U32Value(t.ID), codec.StringValue(t.Name)}
}

// Database mirrors one row of the database meta-relation.
type Database struct {
	ID   uint32
	Name string
}

func (Database) Columns() []codec.Column {
	return []codec.Column{
		codec.NewColumn(MetaTableDatabase, 0, "id", codec.Uint, 0, false),
		codec.NewColumn(MetaTableDatabase, 1, "name", codec.Varchar, 50, false),
	}
}

func (d Database) Row() []codec.Value {
	return []codec.Value{codec.U32Value(d.ID), codec.StringValue(d.Name)}
}

// Schema mirrors one row of the schema meta-relation.
type Schema struct {
	ID         uint32
	DatabaseID uint32
	Name       string
}

func (Schema) Columns() []codec.Column {
	return []codec.Column{
		codec.NewColumn(MetaTableSchema, 0, "id", codec.Uint, 0, false),
		codec.NewColumn(MetaTableSchema, 1, "database_id", codec.Uint, 0, false),
		codec.NewColumn(MetaTableSchema, 2, "name", codec.Varchar, 50, false),
	}
}

func (s Schema) Row() []codec.Value {
	return []codec.Value{codec.U32Value(s.ID), codec.U32Value(s.DatabaseID), codec.StringValue(s.Name)}
}

// Table mirrors one row of the table meta-relation: one per relation this
// core knows about, including the five meta-relations themselves.
type Table struct {
	ID       uint32
	SchemaID uint32
	Name     string
}

func (Table) Columns() []codec.Column {
	return []codec.Column{
		codec.NewColumn(MetaTableTable, 0, "id", codec.Uint, 0, false),
		codec.NewColumn(MetaTableTable, 1, "schema_id", codec.Uint, 0, false),
		codec.NewColumn(MetaTableTable, 2, "name", codec.Varchar, 50, false),
	}
}

func (t Table) Row() []codec.Value {
	return []codec.Value{codec.U32Value(t.ID), codec.U32Value(t.SchemaID), codec.StringValue(t.Name)}
}

// Column mirrors one row of the column meta-relation: one per column of
// every relation this core knows about, including its own columns and
// every other meta-relation's.
type Column struct {
	ID       uint32
	TableID  uint32
	Ordinal  int16
	Name     string
	SqlType  codec.SqlType
	TypeLen  uint16
	Nullable bool
}

func (Column) Columns() []codec.Column {
	return []codec.Column{
		codec.NewColumn(MetaTableColumn, 0, "id", codec.Uint, 0, false),
		codec.NewColumn(MetaTableColumn, 1, "table_id", codec.Uint, 0, false),
		codec.NewColumn(MetaTableColumn, 2, "ordinal", codec.SmallInt, 0, false),
		codec.NewColumn(MetaTableColumn, 3, "name", codec.Varchar, 50, false),
		codec.NewColumn(MetaTableColumn, 4, "sql_type", codec.SmallUint, 0, false),
		codec.NewColumn(MetaTableColumn, 5, "type_len", codec.SmallUint, 0, false),
		codec.NewColumn(MetaTableColumn, 6, "nullable", codec.Boolean, 0, false),
	}
}

func (c Column) Row() []codec.Value {
	return []codec.Value{
		codec.U32Value(c.ID),
		codec.U32Value(c.TableID),
		codec.I16Value(c.Ordinal),
		codec.StringValue(c.Name),
		codec.U16Value(uint16(c.SqlType)),
		codec.U16Value(c.TypeLen),
		codec.BoolValue(c.Nullable),
	}
}

// tableDescriptor names a meta-relation for the table/column bootstrap
// rows: its id, lowercase name, and its own column list (for deriving
// column rows).
type tableDescriptor struct {
	id      uint32
	name    string
	columns []codec.Column
}

// metaTables lists the five meta-relations in dependency order: each
// later one conceptually references earlier ones (no foreign-key
// enforcement exists in this core, so the order only matters for the
// sequence CreateMetaTables builds files in).
func metaTables() []tableDescriptor {
	return []tableDescriptor{
		{MetaTableTablespace, "tablespace", Tablespace{}.Columns()},
		{MetaTableDatabase, "database", Database{}.Columns()},
		{MetaTableSchema, "schema", Schema{}.Columns()},
		{MetaTableTable, "table", Table{}.Columns()},
		{MetaTableColumn, "column", Column{}.Columns()},
	}
}
