package pipeline

import "strings"

// PromptVariant is one domain-specialized extraction prompt. Selection is a
// pure function of the free-text disease label; misclassification only
// degrades extraction quality, never correctness.
type PromptVariant struct {
	Name   string
	System string
}

const promptSchema = `Return ONLY a JSON object of the form:
{"interactions": [{"mechanism": "...", "source": {"name": "...", "level": "Molecular|Cellular|Tissue|Organ"}, "target": {"name": "...", "level": "..."}, "type": "upregulation|activation|inhibition|downregulation|binding|transport", "details": "...", "confidence": "high|medium|low", "page_ref": "...", "reference_text": "..."}]}
Do not include prose, markdown, or explanations outside the JSON object.`

var genericPrompt = PromptVariant{
	Name: "generic",
	System: `You are a biomedical literature curator. From the provided text,
extract every explicit biological interaction between two named entities
(gene, protein, metabolite, cell type, tissue, or organ). Report the
mechanism in one sentence, copy the exact supporting sentence into
reference_text, and include the page label in page_ref.

` + promptSchema,
}

var promptVariants = []PromptVariant{
	{
		Name: "lung-cancer",
		System: `You are a biomedical literature curator specializing in lung
cancer and thoracic oncology. From the provided text, extract every explicit
interaction relevant to tumor biology: oncogene and tumor suppressor
signaling, immune evasion, angiogenesis, metastasis, and treatment response.
Report the mechanism in one sentence, copy the exact supporting sentence into
reference_text, and include the page label in page_ref.

` + promptSchema,
	},
	{
		Name: "fibrosis",
		System: `You are a biomedical literature curator specializing in
fibrotic disease. From the provided text, extract every explicit interaction
relevant to fibrogenesis: TGF-beta signaling, fibroblast and myofibroblast
activation, extracellular matrix deposition, and epithelial injury responses.
Report the mechanism in one sentence, copy the exact supporting sentence into
reference_text, and include the page label in page_ref.

` + promptSchema,
	},
	{
		Name: "cardiovascular",
		System: `You are a biomedical literature curator specializing in
cardiovascular disease. From the provided text, extract every explicit
interaction relevant to cardiac and vascular biology: hypertrophic signaling,
endothelial function, lipid handling, inflammation, and remodeling.
Report the mechanism in one sentence, copy the exact supporting sentence into
reference_text, and include the page label in page_ref.

` + promptSchema,
	},
	{
		Name: "neurodegeneration",
		System: `You are a biomedical literature curator specializing in
neurodegenerative disease. From the provided text, extract every explicit
interaction relevant to neuronal biology: protein aggregation, synaptic
signaling, neuroinflammation, and cell death pathways.
Report the mechanism in one sentence, copy the exact supporting sentence into
reference_text, and include the page label in page_ref.

` + promptSchema,
	},
}

// promptKeywords maps substrings of the disease label to a variant name.
var promptKeywords = map[string]string{
	"lung cancer":    "lung-cancer",
	"nsclc":          "lung-cancer",
	"carcinoma":      "lung-cancer",
	"fibrosis":       "fibrosis",
	"fibrotic":       "fibrosis",
	"ipf":            "fibrosis",
	"cardio":         "cardiovascular",
	"heart":          "cardiovascular",
	"atheroscler":    "cardiovascular",
	"alzheimer":      "neurodegeneration",
	"parkinson":      "neurodegeneration",
	"neurodegen":     "neurodegeneration",
	"amyotrophic":    "neurodegeneration",
	"multiple scler": "neurodegeneration",
}

// PromptForDomain selects the extraction prompt for a disease label.
// Unrecognized or empty labels get the generic biomedical prompt.
func PromptForDomain(domain string) PromptVariant {
	lowered := strings.ToLower(domain)
	for keyword, name := range promptKeywords {
		if strings.Contains(lowered, keyword) {
			for _, v := range promptVariants {
				if v.Name == name {
					return v
				}
			}
		}
	}
	return genericPrompt
}

const classifyPrompt = `You are a biomedical librarian. Given excerpts from a
document, name the single disease or therapeutic area the document is about.
Answer with a short lowercase label only, for example "lung cancer",
"pulmonary fibrosis", "cardiovascular disease", or "alzheimer disease".
If no disease focus is apparent answer "general biomedicine".`
