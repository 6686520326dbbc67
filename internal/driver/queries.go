package driver

import (
	"strings"

	"github.com/agenthands/graphrag/internal/core/model"
)

// EntityLabels are the node labels written by the knowledge graph build.
// Origins are matched on them so each lookup by id can use the per-label
// index created by IndexQueries.
var EntityLabels = []model.EntityType{
	model.TypeGene, model.TypeProtein, model.TypeDrug, model.TypeBiomarker,
	model.TypeDisease, model.TypePhenotype, model.TypePathway, model.TypeMechanism,
	model.TypeTrial, model.TypeCompany, model.TypeTherapyType, model.TypeFluid,
	model.TypeRiskFactor, model.TypeStudy, model.TypeAlzPedia, model.TypeTherapeutic,
}

func labelExpr() string {
	names := make([]string, len(EntityLabels))
	for i, l := range EntityLabels {
		names[i] = string(l)
	}
	return strings.Join(names, "|")
}

// IndexQueries creates an id index per entity label. They are idempotent.
func IndexQueries() []string {
	queries := make([]string, len(EntityLabels))
	for i, l := range EntityLabels {
		queries[i] = "CREATE INDEX entity_id_" + strings.ToLower(string(l)) +
			" IF NOT EXISTS FOR (n:" + string(l) + ") ON (n.id)"
	}
	return queries
}

// NeighborsQuery returns, per origin id, up to $limit incident edges of an
// allowed type in either direction, ordered by neighbor id then type.
var NeighborsQuery = `
		UNWIND $ids AS origin
		CALL {
			WITH origin
			MATCH (n:` + labelExpr() + `)-[r]-(m)
			WHERE n.id = origin AND type(r) IN $types AND m.id IS NOT NULL
			RETURN type(r) AS rel,
				startNode(r) = n AS outgoing,
				properties(r) AS rel_props,
				m.id AS neighbor_id,
				labels(m) AS neighbor_labels,
				coalesce(m.label, m.name, m.id) AS neighbor_name,
				m.synonyms AS neighbor_synonyms,
				properties(m) AS neighbor_props
			ORDER BY neighbor_id, rel
			LIMIT $limit
		}
		RETURN origin, rel, outgoing, rel_props, neighbor_id, neighbor_labels,
			neighbor_name, neighbor_synonyms, neighbor_props
	`

const (
	SearchEntitiesQuery = `
		UNWIND $terms AS term
		MATCH (n)
		WHERE n.id IS NOT NULL
			AND (toLower(coalesce(n.label, n.name, '')) CONTAINS term
				OR toLower(coalesce(n.synonyms, '')) CONTAINS term)
		WITH DISTINCT n
		RETURN n.id AS id,
			labels(n) AS labels,
			coalesce(n.label, n.name, n.id) AS name,
			n.synonyms AS synonyms,
			properties(n) AS props
		ORDER BY id
		LIMIT $limit
	`

	AllEntitiesQuery = `
		MATCH (n)
		WHERE n.id IS NOT NULL
		RETURN n.id AS id,
			labels(n) AS labels,
			coalesce(n.label, n.name) AS name,
			n.synonyms AS synonyms,
			n.gene_symbol AS symbol
		ORDER BY id
	`
)
