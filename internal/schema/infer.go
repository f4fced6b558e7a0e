package schema

// IdentityColumn is the preferred name of a synthesized primary key.
const IdentityColumn = "id"

// Infer derives a Schema from rows.
//
// Columns are the union of all row keys (see DiscoverKeys; header, when not
// nil, fixes the order of the keys it names). Each column is typed by
// Stats.Finalize and named by SanitizeName, with _2, _3, ... suffixes on
// collisions.
//
// The primary key is the first column, in column order, that is a unique
// candidate and not nullable. When no column qualifies an INT AUTO_INCREMENT
// identity column is prepended; it never receives values on insert.
//
// Infer is deterministic for identical rows and header.
func Infer(rows []Row, header []string) Schema {
	keys := DiscoverKeys(rows, header)
	stats := Analyze(rows, keys)

	names := newNamer()
	cols := make([]Column, 0, len(stats)+1)
	for i, st := range stats {
		ti := st.Finalize()
		cols = append(cols, Column{
			RawName:   st.RawName,
			Name:      names.take(SanitizeName(st.RawName, "col", i+1)),
			Kind:      ti.Kind,
			SQLType:   ti.SQLType,
			Nullable:  st.Nulls > 0,
			Unique:    st.UniqueCandidate(),
			MaxLength: st.MaxLength,
			Precision: ti.Precision,
			Scale:     ti.Scale,
		})
	}

	for i := range cols {
		if cols[i].Unique && !cols[i].Nullable {
			cols[i].PrimaryKey = true
			return Schema{Columns: cols, PrimaryKeys: []string{cols[i].Name}}
		}
	}

	id := names.take(IdentityColumn)
	identity := Column{
		RawName:       id,
		Name:          id,
		Kind:          KindInteger,
		SQLType:       SQLInt,
		Unique:        true,
		PrimaryKey:    true,
		AutoIncrement: true,
	}
	return Schema{
		Columns:     append([]Column{identity}, cols...),
		PrimaryKeys: []string{id},
	}
}
