package types

import (
	"errors"
	"testing"

	"github.com/zoobzio/thibaud/internal/render"
)

// tableMeta is a minimal Meta for resolution tests.
type tableMeta struct {
	columns   map[string][]Column
	relations map[string][]Relation
}

func (m *tableMeta) HasTable(name string) bool {
	_, ok := m.columns[name]
	return ok
}

func (m *tableMeta) Columns(table string) []Column { return m.columns[table] }

func (m *tableMeta) Column(table, name string) (Column, bool) {
	for _, c := range m.columns[table] {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (m *tableMeta) PrimaryKey(string) string { return "id" }

func (m *tableMeta) Relation(table, name string) (Relation, bool) {
	for _, r := range m.relations[table] {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}

func (m *tableMeta) Relations(table string) []Relation { return m.relations[table] }

func ordersMeta() *tableMeta {
	return &tableMeta{
		columns: map[string][]Column{
			"order": {
				{Name: "id", Type: "bigint", Kind: KindInt},
				{Name: "total", Type: "numeric", Kind: KindDecimal},
				{Name: "customer_id", Type: "bigint", Kind: KindInt},
			},
			"customer": {
				{Name: "id", Type: "bigint", Kind: KindInt},
				{Name: "name", Type: "varchar", Kind: KindText},
				{Name: "region_id", Type: "bigint", Kind: KindInt},
			},
			"region": {
				{Name: "id", Type: "bigint", Kind: KindInt},
				{Name: "code", Type: "varchar", Kind: KindText},
			},
		},
		relations: map[string][]Relation{
			"order":    {{Name: "customer", Column: "customer_id", Table: "customer", Nullable: false}},
			"customer": {{Name: "region", Column: "region_id", Table: "region", Nullable: true}},
		},
	}
}

func TestNewQuery_UnknownTable(t *testing.T) {
	_, err := NewQuery(ordersMeta(), "ghost")
	var fe render.FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected FieldError, got %v", err)
	}
}

func TestResolvePath_BaseColumn(t *testing.T) {
	q, err := NewQuery(ordersMeta(), "order")
	if err != nil {
		t.Fatalf("NewQuery failed: %v", err)
	}

	alias, column, kind, err := q.ResolvePath("total", true)
	if err != nil {
		t.Fatalf("ResolvePath failed: %v", err)
	}
	if alias != "order" || column != "total" || kind != KindDecimal {
		t.Errorf("Unexpected resolution: %s.%s %v", alias, column, kind)
	}
	if len(q.Joins()) != 0 {
		t.Errorf("Base column should not join, got %v", q.Joins())
	}
}

func TestResolvePath_RelationHops(t *testing.T) {
	q, err := NewQuery(ordersMeta(), "order")
	if err != nil {
		t.Fatalf("NewQuery failed: %v", err)
	}

	alias, column, kind, err := q.ResolvePath("customer.region.code", true)
	if err != nil {
		t.Fatalf("ResolvePath failed: %v", err)
	}
	if alias != "T3" || column != "code" || kind != KindText {
		t.Errorf("Unexpected resolution: %s.%s %v", alias, column, kind)
	}

	joins := q.Joins()
	if len(joins) != 2 {
		t.Fatalf("Expected 2 joins, got %d", len(joins))
	}
	if joins[0].Alias != "T2" || joins[0].Table != "customer" || joins[0].ParentAlias != "order" {
		t.Errorf("Unexpected first join: %+v", joins[0])
	}
	if joins[1].Alias != "T3" || joins[1].Table != "region" || joins[1].ParentAlias != "T2" {
		t.Errorf("Unexpected second join: %+v", joins[1])
	}
	if joins[0].JoinType() != "INNER JOIN" || joins[1].JoinType() != "LEFT OUTER JOIN" {
		t.Errorf("Unexpected join types: %s, %s", joins[0].JoinType(), joins[1].JoinType())
	}
}

func TestResolvePath_ReusesJoins(t *testing.T) {
	q, err := NewQuery(ordersMeta(), "order")
	if err != nil {
		t.Fatalf("NewQuery failed: %v", err)
	}

	if _, _, _, err := q.ResolvePath("customer.name", true); err != nil {
		t.Fatalf("ResolvePath failed: %v", err)
	}
	if _, _, _, err := q.ResolvePath("customer.region_id", true); err != nil {
		t.Fatalf("ResolvePath failed: %v", err)
	}
	if len(q.Joins()) != 1 {
		t.Errorf("Expected the customer join to be reused, got %v", q.Joins())
	}
}

func TestResolvePath_JoinsForbidden(t *testing.T) {
	q, err := NewQuery(ordersMeta(), "order")
	if err != nil {
		t.Fatalf("NewQuery failed: %v", err)
	}

	_, _, _, err = q.ResolvePath("customer.name", false)
	var fe render.FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected FieldError, got %v", err)
	}
}

func TestResolvePath_TrailingRelation(t *testing.T) {
	q, err := NewQuery(ordersMeta(), "order")
	if err != nil {
		t.Fatalf("NewQuery failed: %v", err)
	}

	alias, column, _, err := q.ResolvePath("customer", true)
	if err != nil {
		t.Fatalf("ResolvePath failed: %v", err)
	}
	if alias != "order" || column != "customer_id" {
		t.Errorf("Trailing relation should address the key column, got %s.%s", alias, column)
	}
}

func TestActiveJoins_PrunesUnreferenced(t *testing.T) {
	q, err := NewQuery(ordersMeta(), "order")
	if err != nil {
		t.Fatalf("NewQuery failed: %v", err)
	}

	if _, _, _, err := q.ResolvePath("customer.region.code", true); err != nil {
		t.Fatalf("ResolvePath failed: %v", err)
	}
	if len(q.ActiveJoins()) != 0 {
		t.Fatal("No alias is referenced yet; nothing should be active")
	}

	// Referencing the leaf alias keeps its parent chain alive.
	q.NoteAlias("T3")
	active := q.ActiveJoins()
	if len(active) != 2 {
		t.Fatalf("Expected 2 active joins, got %d", len(active))
	}
	if active[0].Alias != "T2" || active[1].Alias != "T3" {
		t.Errorf("Unexpected active join order: %+v", active)
	}
}

func TestActiveJoins_SnapshotRollback(t *testing.T) {
	q, err := NewQuery(ordersMeta(), "order")
	if err != nil {
		t.Fatalf("NewQuery failed: %v", err)
	}
	if _, _, _, err := q.ResolvePath("customer.name", true); err != nil {
		t.Fatalf("ResolvePath failed: %v", err)
	}

	snap := q.AliasRefs()
	q.NoteAlias("T2")
	if len(q.ActiveJoins()) != 1 {
		t.Fatal("Expected the join to be active after noting its alias")
	}
	q.SetAliasRefs(snap)
	if len(q.ActiveJoins()) != 0 {
		t.Error("Restoring the snapshot should drop the reference")
	}
}

func TestUsesMultipleTables(t *testing.T) {
	q, err := NewQuery(ordersMeta(), "order")
	if err != nil {
		t.Fatalf("NewQuery failed: %v", err)
	}
	if q.UsesMultipleTables() {
		t.Error("Fresh query should be single-table")
	}
	if _, _, _, err := q.ResolvePath("customer.name", true); err != nil {
		t.Fatalf("ResolvePath failed: %v", err)
	}
	q.NoteAlias("T2")
	if !q.UsesMultipleTables() {
		t.Error("Referenced join alias should mark the query multi-table")
	}
}

func TestClone_Isolation(t *testing.T) {
	q, err := NewQuery(ordersMeta(), "order")
	if err != nil {
		t.Fatalf("NewQuery failed: %v", err)
	}

	cp := q.Clone()
	if _, _, _, err := cp.ResolvePath("customer.name", true); err != nil {
		t.Fatalf("ResolvePath failed: %v", err)
	}
	cp.NoteAlias("T2")

	if len(q.Joins()) != 0 {
		t.Error("Cloned resolution leaked joins into the source query")
	}
	if q.RefCount("T2") != 0 {
		t.Error("Cloned refcounts leaked into the source query")
	}
}

func TestKindOfType(t *testing.T) {
	cases := []struct {
		dbType string
		kind   Kind
	}{
		{"bigint", KindInt},
		{"integer", KindInt},
		{"varchar(255)", KindText},
		{"text", KindText},
		{"numeric(10,2)", KindDecimal},
		{"decimal", KindDecimal},
		{"timestamp with time zone", KindDateTime},
		{"datetime", KindDateTime},
		{"date", KindDate},
		{"time", KindTime},
		{"interval", KindDuration},
		{"boolean", KindBool},
		{"json", KindJSON},
	}
	for _, tc := range cases {
		if got := KindOfType(tc.dbType); got != tc.kind {
			t.Errorf("KindOfType(%q): expected %v, got %v", tc.dbType, tc.kind, got)
		}
	}
}

func TestDispatchCombined_TemporalPairs(t *testing.T) {
	date := &Col{Table: "order", Name: "placed_at", Kind: KindDateTime}
	dur := &Value{V: int64(1000), Kind: KindDuration}

	e, err := dispatchCombined(OpSub, date, date.Clone(), KindUnknown)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if _, ok := e.(*TemporalSubtract); !ok {
		t.Errorf("date - date should subtract temporally, got %T", e)
	}

	e, err = dispatchCombined(OpAdd, date, dur, KindUnknown)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	shift, ok := e.(*DurationShift)
	if !ok {
		t.Fatalf("date + duration should shift, got %T", e)
	}
	if shift.Base != date {
		t.Error("Shift base should be the date operand")
	}

	// duration + date keeps the date as the base.
	e, err = dispatchCombined(OpAdd, dur, date, KindUnknown)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	shift, ok = e.(*DurationShift)
	if !ok {
		t.Fatalf("duration + date should shift, got %T", e)
	}
	if shift.Base != date {
		t.Error("Shift base should be the date operand")
	}

	if _, err := dispatchCombined(OpAdd, date, &Value{V: 1, Kind: KindInt}, KindUnknown); err == nil {
		t.Error("date + int should be rejected")
	}
}

func TestDispatchCombined_NumericPromotion(t *testing.T) {
	i := &Col{Table: "order", Name: "id", Kind: KindInt}
	f := &Value{V: 1.5, Kind: KindFloat}
	d := &Col{Table: "order", Name: "total", Kind: KindDecimal}

	e, err := dispatchCombined(OpAdd, i, f, KindUnknown)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if e.Output() != KindFloat {
		t.Errorf("int + float should promote to float, got %v", e.Output())
	}

	e, err = dispatchCombined(OpMul, f, d, KindUnknown)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if e.Output() != KindDecimal {
		t.Errorf("float * decimal should promote to decimal, got %v", e.Output())
	}
}

func TestDispatchCombined_TextConcat(t *testing.T) {
	l := &Col{Table: "customer", Name: "name", Kind: KindText}
	r := &Value{V: "!", Kind: KindText}

	e, err := dispatchCombined(OpConcat, l, r, KindUnknown)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if _, ok := e.(*Concat); !ok {
		t.Errorf("text || text should concatenate, got %T", e)
	}

	if _, err := dispatchCombined(OpConcat, l, &Value{V: 1, Kind: KindInt}, KindUnknown); err == nil {
		t.Error("text || int should be rejected")
	}
}
