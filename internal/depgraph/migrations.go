package depgraph

import "sort"

// MigrationCandidate is one migration file's contribution to the
// migration-level DAG: the tables it CREATEs and the tables referenced
// by FK from those tables.
type MigrationCandidate struct {
	Name            string
	DefinedTables   []string
	ReferencedTables []string
}

// OrderMigrations groups migrations by the tables they define, builds a
// migration-level DAG (migration A depends on migration B iff A defines
// a table whose FK references a table defined in B, B != A), and
// topologically sorts the groups. Within a group, lexical filename
// order is kept, matching spec §4.3's final paragraph.
func OrderMigrations(candidates []MigrationCandidate) ([]string, error) {
	sorted := make([]MigrationCandidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	definedBy := make(map[string]string, len(sorted)*2)
	for _, m := range sorted {
		for _, t := range m.DefinedTables {
			if _, exists := definedBy[t]; !exists {
				definedBy[t] = m.Name
			}
		}
	}

	nodes := make([]Node, 0, len(sorted))
	for _, m := range sorted {
		depSet := map[string]bool{}
		for _, t := range m.ReferencedTables {
			if owner, ok := definedBy[t]; ok && owner != m.Name {
				depSet[owner] = true
			}
		}
		deps := make([]string, 0, len(depSet))
		for d := range depSet {
			deps = append(deps, d)
		}
		nodes = append(nodes, Node{Name: m.Name, DependsOn: deps})
	}

	g := Build(nodes)
	return g.CreationOrder()
}
