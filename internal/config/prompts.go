package config

const DefaultSystemPrompt = `You are a biomedical assistant answering questions about Alzheimer's disease.
Use ONLY the facts in the provided context. Each context line is one fact followed by its source.
If the context does not contain the answer, say "The context is insufficient to answer this question."
Do not invent genes, drugs, biomarkers, trials or numbers that are not in the context.`

const defaultTemplate = `Question type: {intent}

Context:
{context}

Question: {question}

Answer concisely using only the context above.`

// DefaultTemplates returns a fresh copy of the built-in per-intent templates.
// Keys match intent categories; "default" covers anything without its own entry.
func DefaultTemplates() map[string]string {
	return map[string]string{
		"default": defaultTemplate,
		"biomarker": `Question type: {intent}

Context (biomarker facts, with direction and fluid where known):
{context}

Question: {question}

List the relevant biomarkers from the context. Mention the fluid (CSF, plasma/serum) and the direction of change when the context states them.`,
		"biomarker_values": `Question type: {intent}

Context (biomarker measurements matching the requested values):
{context}

Question: {question}

Report the matching measurements exactly as written in the context, including effect sizes and p-values.`,
		"drug_trial": `Question type: {intent}

Context (therapeutics, trials, targets):
{context}

Question: {question}

Summarise the relevant drugs from the context with their trial phase, status and targets when given.`,
		"phenotype": `Question type: {intent}

Context (clinical features):
{context}

Question: {question}

Describe the relevant clinical features from the context.`,
		"pathway": `Question type: {intent}

Context (pathways and mechanisms):
{context}

Question: {question}

Explain the pathways and mechanisms involved, citing only the context.`,
		"gene_protein": `Question type: {intent}

Context (genes, proteins and their associations):
{context}

Question: {question}

Describe the genes and proteins involved and how the context links them.`,
	}
}
