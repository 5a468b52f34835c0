package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(level int, name string) *VariableNode {
	return &VariableNode{Level: level, Name: name}
}

func names(nodes []*VariableNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name)
	}
	return out
}

func TestBuildTree_NestsByLevel(t *testing.T) {
	flat := []*VariableNode{
		entry(1, "REC"),
		entry(5, "PARENT"),
		entry(9, "A"),
		entry(9, "B"),
		entry(88, "B-ON"),
		entry(9, "C"),
		entry(5, "OTHER"),
		entry(1, "REC2"),
	}
	roots := BuildTree(flat)
	require.Len(t, roots, 2)
	assert.Equal(t, []string{"REC", "REC2"}, names(roots))

	rec := roots[0]
	require.Len(t, rec.Children, 2)
	assert.Equal(t, []string{"PARENT", "OTHER"}, names(rec.Children))

	parent := rec.Children[0]
	assert.Equal(t, []string{"A", "B", "C"}, names(parent.Children))
	assert.Equal(t, []string{"B-ON"}, names(parent.Children[1].Children))
}

func TestBuildTree_SpecialLevels(t *testing.T) {
	fd := &VariableNode{Level: LevelFileDescription, Name: "IN-FILE"}
	flat := []*VariableNode{
		fd,
		entry(1, "IN-REC"),
		entry(5, "F1"),
		entry(5, "F2"),
		entry(66, "ALIAS"),
		entry(77, "COUNTER"),
		entry(88, "DONE"),
		entry(1, "WS-REC"),
	}
	roots := BuildTree(flat)
	assert.Equal(t, []string{"IN-FILE", "COUNTER", "WS-REC"}, names(roots))

	require.Len(t, fd.Children, 1)
	inRec := fd.Children[0]
	assert.Equal(t, []string{"F1", "F2", "ALIAS"}, names(inRec.Children))
	assert.Equal(t, []string{"DONE"}, names(roots[1].Children))
}

func TestBuildTree_LevelsWithoutOpenRecord(t *testing.T) {
	roots := BuildTree([]*VariableNode{entry(5, "A"), entry(5, "B"), entry(10, "C")})
	assert.Equal(t, []string{"A", "B"}, names(roots))
	assert.Equal(t, []string{"C"}, names(roots[1].Children))
}

func TestFlattenAndDefinedNames(t *testing.T) {
	rec := entry(1, "rec")
	tbl := entry(5, "TBL")
	tbl.Occurs = []OccursClause{{Min: 3, Indexes: []NameRef{{Name: "tbl-idx"}}}}
	filler := entry(5, "FILLER")
	roots := BuildTree([]*VariableNode{rec, tbl, filler})

	assert.Equal(t, []string{"rec", "TBL", "FILLER"}, names(Flatten(roots)))

	defined := DefinedNames(roots)
	assert.True(t, defined["REC"])
	assert.True(t, defined["TBL"])
	assert.True(t, defined["TBL-IDX"])
	assert.False(t, defined["FILLER"])
}

func TestVariableNode_Kind(t *testing.T) {
	group := entry(1, "G")
	group.AddChild(&VariableNode{Level: 5, Name: "E", Pictures: []string{"X"}})

	cases := []struct {
		node *VariableNode
		want string
	}{
		{&VariableNode{Level: LevelFileDescription}, "file-description"},
		{&VariableNode{Level: LevelFileDescription, SortDescription: true}, "sort-description"},
		{entry(66, "R"), "renames"},
		{entry(77, "S"), "standalone"},
		{entry(88, "C"), "condition"},
		{group, "group"},
		{group.Children[0], "elementary"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.node.Kind(), tc.node.Name)
	}
}
