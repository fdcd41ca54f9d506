package depgraph_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/depgraph"
)

func TestCreationOrderRespectsDependencies(t *testing.T) {
	c := qt.New(t)

	g := depgraph.Build([]depgraph.Node{
		{Name: "posts", DependsOn: []string{"users"}},
		{Name: "users"},
		{Name: "comments", DependsOn: []string{"users", "posts"}},
	})

	order, err := g.CreationOrder()
	c.Assert(err, qt.IsNil)

	pos := indexMap(order)
	c.Assert(pos["users"] < pos["posts"], qt.IsTrue)
	c.Assert(pos["users"] < pos["comments"], qt.IsTrue)
	c.Assert(pos["posts"] < pos["comments"], qt.IsTrue)
}

func TestCreationOrderLexicalTiebreak(t *testing.T) {
	c := qt.New(t)

	g := depgraph.Build([]depgraph.Node{
		{Name: "zebra"},
		{Name: "apple"},
		{Name: "mango"},
	})

	order, err := g.CreationOrder()
	c.Assert(err, qt.IsNil)
	c.Assert(order, qt.DeepEquals, []string{"apple", "mango", "zebra"})
}

func TestCreationOrderExcludesUnknownTables(t *testing.T) {
	c := qt.New(t)

	g := depgraph.Build([]depgraph.Node{
		{Name: "posts", DependsOn: []string{"users", "external_audit_log"}},
	})

	order, err := g.CreationOrder()
	c.Assert(err, qt.IsNil)
	c.Assert(order, qt.DeepEquals, []string{"posts"})
}

func TestCircularDependencyDetected(t *testing.T) {
	c := qt.New(t)

	g := depgraph.Build([]depgraph.Node{
		{Name: "a", DependsOn: []string{"b"}},
		{Name: "b", DependsOn: []string{"a"}},
	})

	_, err := g.CreationOrder()
	c.Assert(err, qt.IsNotNil)
	c.Assert(err.Error(), qt.Contains, "Circular dependency")
}

func TestSwappingIndependentTablesPreservesOrder(t *testing.T) {
	c := qt.New(t)

	g1 := depgraph.Build([]depgraph.Node{{Name: "alpha"}, {Name: "beta"}})
	g2 := depgraph.Build([]depgraph.Node{{Name: "beta"}, {Name: "alpha"}})

	o1, err := g1.CreationOrder()
	c.Assert(err, qt.IsNil)
	o2, err := g2.CreationOrder()
	c.Assert(err, qt.IsNil)

	c.Assert(o1, qt.DeepEquals, o2)
}

func TestOrderMigrationsByTableDependency(t *testing.T) {
	c := qt.New(t)

	order, err := depgraph.OrderMigrations([]depgraph.MigrationCandidate{
		{Name: "0002_add_posts.pssql", DefinedTables: []string{"posts"}, ReferencedTables: []string{"users"}},
		{Name: "0001_add_users.pssql", DefinedTables: []string{"users"}},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(order, qt.DeepEquals, []string{"0001_add_users.pssql", "0002_add_posts.pssql"})
}

func indexMap(names []string) map[string]int {
	m := make(map[string]int, len(names))
	for i, n := range names {
		m[n] = i
	}
	return m
}
