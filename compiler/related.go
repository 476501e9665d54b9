package compiler

import (
	"strings"

	"github.com/zoobzio/thibaud/internal/render"
	"github.com/zoobzio/thibaud/internal/types"
)

// maxRelatedDepth bounds recursive eager loading when every relation is
// followed rather than an explicit path list.
const maxRelatedDepth = 5

// KlassInfo maps a contiguous slice of the flat result row back to the
// table it was selected from, so eager-loaded related rows can be decoded.
type KlassInfo struct {
	Relation string // relation path from the base table, "" for the base
	Table    string
	Alias    string
	Offset   int // index of the table's first column in the select list
	Columns  []types.Column
	Parent   int // index of the parent entry, -1 for the base
}

// relatedSelections is a pure expansion of the query's eager-load request:
// it returns the extra select entries and their row-layout descriptors, with
// join creation on the query its only side effect. offset and infoBase
// position the results within the caller's combined select list and info
// slice, so Parent and Offset index into the final layout.
func relatedSelections(w *types.Query, offset, infoBase int) ([]selectEntry, []KlassInfo, error) {
	if w.SelectRelatedAll {
		return relatedAll(w, offset, infoBase)
	}
	if len(w.SelectRelated) == 0 {
		return nil, nil, nil
	}

	var entries []selectEntry
	var infos []KlassInfo
	// Parent lookup by path so "a.b" hangs off "a". The base table sits
	// just before this batch in the combined info slice.
	parentIdx := map[string]int{"": infoBase - 1}

	for _, path := range w.SelectRelated {
		segments := strings.Split(path, ".")
		alias := w.Table
		prefix := ""
		for _, seg := range segments {
			table := w.TableForAlias(alias)
			if _, ok := w.Meta.Relation(table, seg); !ok {
				hint := "unknown relation"
				if _, isCol := w.Meta.Column(table, seg); isCol {
					hint = "not a relational field"
				}
				return nil, nil, render.FieldError{Name: path, Hint: hint + " in eager-load path"}
			}
			next, err := w.JoinFor(segJoinPath(prefix, seg))
			if err != nil {
				return nil, nil, err
			}
			childPath := segJoinPath(prefix, seg)
			if _, done := parentIdx[childPath]; !done {
				cols := w.Meta.Columns(w.TableForAlias(next))
				info := KlassInfo{
					Relation: childPath,
					Table:    w.TableForAlias(next),
					Alias:    next,
					Offset:   offset + len(entries),
					Columns:  cols,
					Parent:   parentIdx[prefix],
				}
				for _, col := range cols {
					w.NoteAlias(next)
					entries = append(entries, selectEntry{expr: &types.Col{Table: next, Name: col.Name, Kind: col.Kind}})
				}
				infos = append(infos, info)
				parentIdx[childPath] = infoBase + len(infos) - 1
			}
			alias = next
			prefix = childPath
		}
	}
	return entries, infos, nil
}

// segJoinPath rebuilds the dotted path for a child segment. JoinFor resolves
// full paths from the base table, reusing joins hop by hop.
func segJoinPath(prefix, seg string) string {
	if prefix == "" {
		return seg
	}
	return prefix + "." + seg
}

// relatedAll follows every relation recursively up to maxRelatedDepth.
func relatedAll(w *types.Query, offset, infoBase int) ([]selectEntry, []KlassInfo, error) {
	var entries []selectEntry
	var infos []KlassInfo

	var walk func(prefix, alias string, parent, depth int) error
	walk = func(prefix, alias string, parent, depth int) error {
		if depth >= maxRelatedDepth {
			return nil
		}
		table := w.TableForAlias(alias)
		for _, rel := range w.Meta.Relations(table) {
			childPath := segJoinPath(prefix, rel.Name)
			next, err := w.JoinFor(childPath)
			if err != nil {
				return err
			}
			cols := w.Meta.Columns(rel.Table)
			info := KlassInfo{
				Relation: childPath,
				Table:    rel.Table,
				Alias:    next,
				Offset:   offset + len(entries),
				Columns:  cols,
				Parent:   parent,
			}
			for _, col := range cols {
				w.NoteAlias(next)
				entries = append(entries, selectEntry{expr: &types.Col{Table: next, Name: col.Name, Kind: col.Kind}})
			}
			infos = append(infos, info)
			if err := walk(childPath, next, infoBase+len(infos)-1, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk("", w.Table, infoBase-1, 0); err != nil {
		return nil, nil, err
	}
	return entries, infos, nil
}
