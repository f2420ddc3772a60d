package rag

import (
	"fmt"
	"strings"

	"juris-ai/internal/llm"
)

// NoContextResponse is the deterministic insufficient-evidence answer.
const NoContextResponse = "Nuk mund ta konfirmoj këtë nga dokumentet e disponueshme."

// SuggestRephrase is appended when the confidence gate blocks a turn.
const SuggestRephrase = "Provoni të riformuloni pyetjen ose zgjidhni një dokument specifik."

// SystemPrompt instructs the model to answer strictly from the given
// context with mandatory citations. Hallucination suppression is a
// prompt-level contract, not a code-level guarantee.
const SystemPrompt = `Ti je asistent juridik ekspert për legjislacionin shqiptar.
Detyra jote është të japësh përgjigje të sakta, të plota dhe të bazuara
VETËM në fragmentet e dokumenteve që të jepen si KONTEKST.

RREGULLA ABSOLUTE:
1. Përgjigju VETËM nga KONTEKSTI i dhënë. MOS përdor njohuri të tjera.
2. MOS shpik, MOS supozo, MOS gjenero informacion jashtë kontekstit.
3. Nëse përgjigja NUK gjendet qartë në kontekst, thuaj SAKTËSISHT:
   "Nuk mund ta konfirmoj këtë nga dokumentet e disponueshme."
4. Nëse përgjigja gjendet vetëm pjesërisht, jep atë që gjen dhe
   thuaj qartë: "Informacion shtesë për [temën] nuk u gjet në dokumente."

FORMATI I PËRGJIGJES (i detyrueshëm):

**Përgjigja:**
[Përgjigje e drejtpërdrejtë, koncize, 1-3 fjali]

**Arsyetimi juridik:**
[Hap pas hapi, bazuar në kontekstin e gjetur. Cito tekst të shkurtër
në thonjëza kur ndihmon. Përdor numra nenesh/ligjesh nga origjinali.]

**Konflikte (nëse ka):**
[Nëse dokumentet janë kontradiktore, cito TË DY burimet dhe
shpjego ndryshimin. P.sh.: "Sipas Neni X: '...', ndërsa Neni Y: '...'"]

**Burimet:**
- [Titulli], Faqe [X] | Neni [nr]
- [Titulli], Faqe [Y] | Neni [nr]

RREGULLA CITIMI:
- Çdo pretendim DUHET të ketë burim (dokument + faqe/neni).
- Numrat e ligjeve, nenet, datat — gjithmonë në formën origjinale.
- MOS trillo numra ligjesh, nenesh apo datash që NUK janë në kontekst.
- Përdor gjuhë formale juridike shqipe.`

// historyLimit bounds how many prior turns ride along in the prompt.
const historyLimit = 4

// BuildAnswerMessages assembles the message array for answer
// generation: system prompt, trailing chat history, then the context
// block and question. Pure function, no network calls.
func BuildAnswerMessages(context, question string, history []llm.Message) []llm.Message {
	messages := []llm.Message{{Role: "system", Content: SystemPrompt}}

	if n := len(history); n > historyLimit {
		history = history[n-historyLimit:]
	}
	messages = append(messages, history...)

	userMessage := fmt.Sprintf(
		"Bazuar VETËM në fragmentet e mëposhtëm të dokumenteve juridike, "+
			"përgjigju pyetjes duke ndjekur formatin e kërkuar "+
			"(Përgjigja / Arsyetimi juridik / Konflikte / Burimet).\n"+
			"Nëse përgjigja nuk gjendet në kontekst, thuaj saktësisht:\n"+
			"%q\n\n%s\n\n--- PYETJA ---\n%s",
		NoContextResponse, context, question,
	)
	messages = append(messages, llm.Message{Role: "user", Content: userMessage})
	return messages
}

const expansionPromptTemplate = `Ti je një specialist i kërkimit juridik shqiptar.

Detyra: Gjenero variante kërkimi për pyetjen e përdoruesit.
Çdo variant DUHET të ruajë qëllimin e njëjtë — mos e ndrysho pyetjen.

Pyetja origjinale:
"%s"

%s

Gjenero saktësisht këto variante (në shqip):
1. original — pyetja siç është
2. simplified — version i thjeshtëzuar, gjuhë e lehtë
3. synonyms — zëvendëso fjalë kyçe me sinonime shqip
4. keywords — VETËM fjalë kyçe: emra, numra, data, nene, ligje
5. broader — e njëjta temë por më e gjerë
6. narrower — e njëjta temë por më specifike
7. legal_formal — terminologji juridike formale
8. reformulation — reformulo me të njëjtin kuptim

Përgjigju VETËM me JSON: {"variants": ["v1", "v2", ...]}`

// BuildExpansionPrompt renders the query expansion prompt. domainHint
// may be empty when no legal domain was detected.
func BuildExpansionPrompt(question, domainHint string) string {
	return fmt.Sprintf(expansionPromptTemplate, question, domainHint)
}

const coveragePromptTemplate = `Je kontrollues cilësie për përgjigje juridike.

Pyetja origjinale e përdoruesit:
"%s"

Përgjigja aktuale:
"%s"

Detyra: Kontrollo nëse ÇDO pjesë e pyetjes u përgjigj me evidencë.

Analizo:
1. Cilat aspekte të pyetjes u mbuluan plotësisht? (me evidencë)
2. Cilat aspekte NUK u mbuluan ose janë të paqarta?
3. A ka kontradikta në përgjigje?

Përgjigju me JSON:
- Nëse gjithçka u mbulua: {"status": "COMPLETE", "coverage_pct": 100}
- Nëse ka boshllëqe: {"status": "GAPS", "coverage_pct": [0-99],
    "missing_aspects": ["aspekt1", "aspekt2"],
    "gap_queries": ["kërkim1 në shqip", "kërkim2 në shqip"]}

VETËM JSON, pa tekst shtesë.`

// coverageAnswerLimit truncates long answers before judging coverage.
const coverageAnswerLimit = 3000

// BuildCoveragePrompt renders the coverage self-check prompt.
func BuildCoveragePrompt(question, answer string) string {
	return fmt.Sprintf(coveragePromptTemplate, question, truncateRunes(answer, coverageAnswerLimit))
}

// refusalPhrases identify a no-evidence answer. A refusal skips the
// coverage self-check, there is nothing to verify.
var refusalPhrases = []string{
	"nuk mund ta konfirmoj",
	"nuk gjendet",
	"nuk ka informacion",
	"dokumentet e disponueshme",
	"dokumentet e ngarkuara",
}

// IsRefusal reports whether the answer opens as a refusal or
// no-context response.
func IsRefusal(answer string) bool {
	head := strings.ToLower(truncateRunes(answer, 300))
	for _, phrase := range refusalPhrases {
		if strings.Contains(head, phrase) {
			return true
		}
	}
	return false
}
