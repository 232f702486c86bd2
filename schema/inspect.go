package schema

import (
	"strconv"
	"strings"

	atlas "ariga.io/atlas/sql/schema"
	"github.com/go-openapi/inflect"

	"github.com/syssam/deepview"
)

// InspectOption configures the schema inspection.
type InspectOption func(*inspectConfig)

type inspectConfig struct {
	skip map[string]struct{}
}

// SkipTables excludes the named tables from the derived graph.
func SkipTables(names ...string) InspectOption {
	return func(c *inspectConfig) {
		for _, n := range names {
			c.skip[n] = struct{}{}
		}
	}
}

// Inspect derives a Graph from a database schema description produced
// by atlas inspection. The derivation runs once at startup:
//
//   - every table becomes an entity type named after its singularized,
//     camelized table name;
//   - every single-column foreign key becomes a ToOne relation on the
//     child and a Reverse relation on the parent;
//   - a table consisting solely of two foreign keys is treated as a
//     join table and collapses into a ToMany relation on both sides.
func Inspect(s *atlas.Schema, opts ...InspectOption) (*Graph, error) {
	cfg := &inspectConfig{skip: make(map[string]struct{})}
	for _, opt := range opts {
		opt(cfg)
	}
	var (
		types  []*EntityType
		byName = make(map[string]*EntityType) // table name -> entity
	)
	for _, tbl := range s.Tables {
		if _, ok := cfg.skip[tbl.Name]; ok {
			continue
		}
		if isJoinTable(tbl) {
			continue
		}
		t := &EntityType{
			Name:  inflect.Camelize(inflect.Singularize(tbl.Name)),
			Table: tbl.Name,
		}
		fkCols := foreignKeyColumns(tbl)
		for _, c := range tbl.Columns {
			if c.Name == "id" {
				continue
			}
			if _, ok := fkCols[c.Name]; ok {
				continue
			}
			t.Fields = append(t.Fields, Field{
				Name:     c.Name,
				Type:     columnType(c),
				Optional: c.Type.Null,
				Unique:   uniqueColumn(tbl, c),
			})
		}
		types = append(types, t)
		byName[tbl.Name] = t
	}
	for _, tbl := range s.Tables {
		if _, ok := cfg.skip[tbl.Name]; ok {
			continue
		}
		switch {
		case isJoinTable(tbl):
			if err := addJoinRelations(tbl, byName); err != nil {
				return nil, err
			}
		default:
			if err := addForeignKeyRelations(tbl, byName); err != nil {
				return nil, err
			}
		}
	}
	return NewGraph(types...)
}

// addForeignKeyRelations turns each single-column foreign key of tbl
// into a ToOne relation on the child entity and a Reverse relation on
// the referenced entity.
func addForeignKeyRelations(tbl *atlas.Table, byName map[string]*EntityType) error {
	child := byName[tbl.Name]
	if child == nil {
		return nil
	}
	for _, fk := range tbl.ForeignKeys {
		if len(fk.Columns) != 1 {
			continue
		}
		parent := byName[fk.RefTable.Name]
		if parent == nil {
			return deepview.NewSchemaError(child.Name, "", "foreign key %q references skipped table %q", fk.Symbol, fk.RefTable.Name)
		}
		col := fk.Columns[0].Name
		child.Relations = append(child.Relations, Relation{
			Name:   strings.TrimSuffix(col, "_id"),
			Kind:   ToOne,
			Target: parent.Name,
			Column: col,
		})
		parent.Relations = append(parent.Relations, Relation{
			Name:   reverseName(parent, child),
			Kind:   Reverse,
			Target: child.Name,
			Column: col,
		})
	}
	return nil
}

// addJoinRelations collapses a two-foreign-key join table into ToMany
// relations on both referenced entities.
func addJoinRelations(tbl *atlas.Table, byName map[string]*EntityType) error {
	left := byName[tbl.ForeignKeys[0].RefTable.Name]
	right := byName[tbl.ForeignKeys[1].RefTable.Name]
	if left == nil || right == nil {
		return deepview.NewSchemaError("", "", "join table %q references a skipped table", tbl.Name)
	}
	left.Relations = append(left.Relations, Relation{
		Name:          reverseName(left, right),
		Kind:          ToMany,
		Target:        right.Name,
		Column:        tbl.ForeignKeys[1].Columns[0].Name,
		Through:       tbl.Name,
		ThroughColumn: tbl.ForeignKeys[0].Columns[0].Name,
	})
	if right != left {
		right.Relations = append(right.Relations, Relation{
			Name:          reverseName(right, left),
			Kind:          ToMany,
			Target:        left.Name,
			Column:        tbl.ForeignKeys[0].Columns[0].Name,
			Through:       tbl.Name,
			ThroughColumn: tbl.ForeignKeys[1].Columns[0].Name,
		})
	}
	return nil
}

// reverseName names the back-reference relation from owner to target,
// e.g. User <- posts. A numeric suffix disambiguates multiple foreign
// keys between the same pair of tables.
func reverseName(owner, target *EntityType) string {
	base := inflect.Pluralize(inflect.Underscore(target.Name))
	name := base
	for i := 2; hasRelation(owner, name); i++ {
		name = base + "_" + strconv.Itoa(i)
	}
	return name
}

func hasRelation(t *EntityType, name string) bool {
	for _, r := range t.Relations {
		if r.Name == name {
			return true
		}
	}
	return false
}

// isJoinTable reports whether tbl is a pure association table: exactly
// two single-column foreign keys and no scalar columns of its own.
func isJoinTable(tbl *atlas.Table) bool {
	if len(tbl.ForeignKeys) != 2 {
		return false
	}
	fkCols := foreignKeyColumns(tbl)
	if len(fkCols) != 2 {
		return false
	}
	for _, c := range tbl.Columns {
		if c.Name == "id" {
			continue
		}
		if _, ok := fkCols[c.Name]; !ok {
			return false
		}
	}
	return true
}

// foreignKeyColumns returns the set of column names participating in a
// single-column foreign key of tbl.
func foreignKeyColumns(tbl *atlas.Table) map[string]struct{} {
	cols := make(map[string]struct{})
	for _, fk := range tbl.ForeignKeys {
		if len(fk.Columns) == 1 {
			cols[fk.Columns[0].Name] = struct{}{}
		}
	}
	return cols
}

// uniqueColumn reports whether a single-column unique index covers c.
func uniqueColumn(tbl *atlas.Table, c *atlas.Column) bool {
	for _, idx := range tbl.Indexes {
		if idx.Unique && len(idx.Parts) == 1 && idx.Parts[0].C == c {
			return true
		}
	}
	return false
}

// columnType maps an atlas column type to a schema field type.
func columnType(c *atlas.Column) FieldType {
	switch c.Type.Type.(type) {
	case *atlas.IntegerType:
		return TypeInt
	case *atlas.StringType, *atlas.EnumType:
		return TypeString
	case *atlas.FloatType, *atlas.DecimalType:
		return TypeFloat
	case *atlas.BoolType:
		return TypeBool
	case *atlas.TimeType:
		return TypeTime
	case *atlas.BinaryType:
		return TypeBytes
	case *atlas.JSONType:
		return TypeJSON
	default:
		return TypeString
	}
}
