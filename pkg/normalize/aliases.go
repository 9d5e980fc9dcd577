package normalize

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed statuses.yaml
var statusesYAML []byte

// aliasTable maps connector status slugs to canonical statuses for one
// entity. The canonical status itself is always a valid alias of itself.
type aliasTable map[string]string

type aliasFile struct {
	Estimates map[string][]string `yaml:"estimates"`
	Invoices  map[string][]string `yaml:"invoices"`
	Jobs      map[string][]string `yaml:"jobs"`
	Clients   map[string][]string `yaml:"clients"`
	Payments  map[string][]string `yaml:"payments"`
}

var (
	estimateAliases aliasTable
	invoiceAliases  aliasTable
	jobAliases      aliasTable
	clientAliases   aliasTable
	paymentAliases  aliasTable
)

func init() {
	var f aliasFile
	if err := yaml.Unmarshal(statusesYAML, &f); err != nil {
		panic(fmt.Sprintf("normalize: malformed statuses.yaml: %v", err))
	}
	estimateAliases = buildTable(f.Estimates)
	invoiceAliases = buildTable(f.Invoices)
	jobAliases = buildTable(f.Jobs)
	clientAliases = buildTable(f.Clients)
	paymentAliases = buildTable(f.Payments)
}

func buildTable(section map[string][]string) aliasTable {
	table := make(aliasTable)
	for canonical, aliases := range section {
		table[canonical] = canonical
		for _, alias := range aliases {
			table[alias] = canonical
		}
	}
	return table
}

// lookup resolves a sanitized status slug, falling back to "unknown".
func (t aliasTable) lookup(slug string) string {
	if canonical, ok := t[slug]; ok {
		return canonical
	}
	return "unknown"
}
