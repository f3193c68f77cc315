package catalog

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ryogrid/db0/storage/btree"
	"github.com/ryogrid/db0/storage/buffer"
	"github.com/ryogrid/db0/storage/codec"
	"github.com/ryogrid/db0/storage/file"
)

// metaNodeCapacity bounds every meta-relation's B-link-tree to a small,
// fixed fan-out; none of the five relations ever holds more than a
// handful of rows.
const metaNodeCapacity = 16

// bufferCapacity is the number of frames CreateMetaTables' buffer pool
// allocates; enough to hold every meta-relation's root page at once.
const bufferCapacity = 32

// relationFileNode resolves a meta-relation's file location: the global
// tablespace, database 0, keyed by its MetaTableID.
func relationFileNode(tableID uint32) buffer.FileNode {
	return buffer.NewFileNode(buffer.TablespaceGlobal, DatabaseIDGlobal, tableID)
}

// OpenMetaTable opens an already-bootstrapped meta-relation for reading:
// a BTree keyed by the relation's own first column, backed by manager.
func OpenMetaTable(manager *buffer.Manager, tableID uint32, columns []codec.Column) *btree.BTree {
	keyColumns := columns[:1]
	return btree.New(codec.New(keyColumns), metaNodeCapacity, relationFileNode(tableID), manager)
}

// CreateMetaTables bootstraps the five fixed meta-relations under dataDir:
// tablespace, database, schema, table, column. Each gets its own
// B-link-tree file, keyed by its first column, and is populated with rows
// describing the database's own bootstrap state, mirroring
// original_source's create_meta_tables/initdb pattern — including rows
// for the meta-relations themselves and their own columns, so the
// catalog is self-describing from the first boot.
func CreateMetaTables(dataDir string) error {
	return createMetaTables(dataDir)
}

// createMetaTables is CreateMetaTables with its file.Manager options
// exposed, so tests can swap in an in-memory backend shared with a
// second Manager that reopens the same data.
func createMetaTables(dataDir string, opts ...file.Option) error {
	log := logrus.WithField("component", "catalog").WithField("data_dir", dataDir)
	log.Info("bootstrapping meta tables")

	fm := file.New(dataDir, opts...)
	manager := buffer.New(bufferCapacity, buffer.DefaultPageSize, fm)

	tables := metaTables()
	for _, desc := range tables {
		if err := btree.Init(manager, relationFileNode(desc.id), uint32(metaNodeCapacity)); err != nil {
			return errors.Wrapf(err, "catalog: init %s", desc.name)
		}
	}

	if err := insertRow(manager, MetaTableTablespace, Tablespace{}.Columns(),
		Tablespace{ID: TablespaceIDGlobal, Name: "global"}.Row()); err != nil {
		return err
	}
	if err := insertRow(manager, MetaTableDatabase, Database{}.Columns(),
		Database{ID: DatabaseIDGlobal, Name: "global"}.Row()); err != nil {
		return err
	}
	if err := insertRow(manager, MetaTableSchema, Schema{}.Columns(),
		Schema{ID: SchemaIDMeta, DatabaseID: DatabaseIDGlobal, Name: "meta"}.Row()); err != nil {
		return err
	}

	for _, desc := range tables {
		row := Table{ID: desc.id, SchemaID: SchemaIDMeta, Name: desc.name}.Row()
		if err := insertRow(manager, MetaTableTable, Table{}.Columns(), row); err != nil {
			return err
		}
		for _, col := range desc.columns {
			colRow := Column{
				ID:       col.TableID*1000 + uint32(col.Ordinal),
				TableID:  col.TableID,
				Ordinal:  col.Ordinal,
				Name:     col.Name,
				SqlType:  col.Type,
				TypeLen:  col.TypeLen,
				Nullable: col.Nullable,
			}.Row()
			if err := insertRow(manager, MetaTableColumn, Column{}.Columns(), colRow); err != nil {
				return err
			}
		}
	}

	if err := manager.FlushPages(); err != nil {
		return errors.Wrap(err, "catalog: flush meta tables")
	}

	log.Info("meta tables bootstrapped")
	return nil
}

// insertRow opens relation's tree (keyed by its own first column) and
// inserts one row, splitting key columns from value columns the way
// every B-link-tree entry in this core is split.
func insertRow(manager *buffer.Manager, tableID uint32, columns []codec.Column, row []codec.Value) error {
	keyColumns := columns[:1]
	valueColumns := columns[1:]
	keyCodec := codec.New(keyColumns)
	valueCodec := codec.New(valueColumns)

	tree := btree.New(keyCodec, metaNodeCapacity, relationFileNode(tableID), manager)

	value, err := valueCodec.Encode(row[1:])
	if err != nil {
		return errors.Wrapf(err, "catalog: encode row for table %d", tableID)
	}
	if err := tree.Insert(row[:1], value); err != nil {
		return errors.Wrapf(err, "catalog: insert row for table %d", tableID)
	}
	return nil
}
