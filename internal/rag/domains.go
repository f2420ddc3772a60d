package rag

import (
	"sort"
	"strings"

	"juris-ai/internal/albanian"
)

// legalDomain maps a legal field to the trigger words that detect it
// and the corpus search terms injected when it matches. Keeping the
// whole corpus reachable from user phrasing is the point: a question
// about "pushimi vjetor" must reach the labor code even when the
// question never names it.
type legalDomain struct {
	id          string
	triggers    []string
	searchTerms []string
}

var legalDomains = []legalDomain{
	{
		id: "constitutional",
		triggers: []string{
			"kushtetut", "kushtetues", "te drejtat themelore", "liri",
			"barazi", "demokraci", "referendum", "president",
		},
		searchTerms: []string{
			"Kushtetuta e Republikes se Shqiperise",
			"te drejtat dhe lirite themelore kushtetuta",
		},
	},
	{
		id: "civil",
		triggers: []string{
			"civil", "pronesi", "kontrat", "detyrim", "demshperblim",
			"trashegim", "testament", "shitje", "qera",
		},
		searchTerms: []string{
			"Kodi Civil detyrimet kontrata pronesia",
			"trashegimia kontrata Kodi Civil",
		},
	},
	{
		id: "criminal",
		triggers: []string{
			"penal", "krim", "veper penale", "denim", "burg", "gjobe",
			"vjedhje", "vrasje", "korrupsion", "trafik",
		},
		searchTerms: []string{
			"Kodi Penal vepra penale denimet",
			"krim veper penale sanksion",
		},
	},
	{
		id: "criminal_procedure",
		triggers: []string{
			"procedura penale", "hetim", "prokurori", "arrestim",
			"paraburgim", "akuz", "ndjekje penale",
		},
		searchTerms: []string{
			"Kodi Procedures Penale hetimi gjykimi penal",
			"ndjekja penale masa sigurimit",
		},
	},
	{
		id: "civil_procedure",
		triggers: []string{
			"procedura civile", "padi", "gjykim", "apel", "ankim",
			"ekzekutim", "prove", "seance", "arbitrazh",
		},
		searchTerms: []string{
			"Kodi Procedures Civile procedura gjyqesore",
			"padia gjykimi civil ankimi apeli",
		},
	},
	{
		id: "family",
		triggers: []string{
			"familj", "martes", "divorc", "shkurorezim", "femij",
			"biresim", "kujdestar", "alimenta", "bashkeshort",
		},
		searchTerms: []string{
			"Kodi Familjes martesa divorci",
			"alimentat prindi femija kujdestaria",
		},
	},
	{
		id: "labor",
		triggers: []string{
			"pun", "punesim", "punonjes", "punedhenes", "page", "paga",
			"pushim", "sindikat", "grev", "largim", "sigurim shoqeror",
		},
		searchTerms: []string{
			"Kodi Punes marredheniet e punes",
			"kontrata e punes paga pushimet",
		},
	},
	{
		id: "administrative",
		triggers: []string{
			"administrat", "akt administrativ", "organ publik",
			"sherbim publik", "leje", "licenc",
		},
		searchTerms: []string{
			"Kodi Procedurave Administrative",
			"ankimi administrativ organi publik",
		},
	},
	{
		id: "road",
		triggers: []string{
			"rrugor", "trafik", "automjet", "makine", "shofer",
			"patent", "shpejtesi", "aksident",
		},
		searchTerms: []string{
			"Kodi Rrugor rregullat e qarkullimit",
			"siguria rrugore aksidente patenta",
		},
	},
	{
		id: "property",
		triggers: []string{
			"pasuri", "paluajtshm", "prone", "toke", "apartament",
			"shitblerje", "titull pronesi", "kadastr", "regjistrim",
		},
		searchTerms: []string{
			"legjislacioni per pasurite e paluajtshme",
			"titull pronesie regjistrimi kadastra",
		},
	},
	{
		id: "domestic_violence",
		triggers: []string{
			"dhun", "urdher mbrojtje", "viktim", "abuzim",
			"dhuna ne familje",
		},
		searchTerms: []string{
			"ligji kunder dhunes ne familje viktima",
			"urdhri i mbrojtjes masat mbrojtese",
		},
	},
	{
		id: "electoral",
		triggers: []string{
			"zgjedh", "votim", "vot", "kandidat", "parti",
			"komision zgjedhor", "kqz",
		},
		searchTerms: []string{
			"Kodi Zgjedhor zgjedhjet votimi",
			"komisioni qendror zgjedhjeve kandidatet",
		},
	},
}

// detectDomains scores each legal domain against the normalized
// question: full trigger substring hits count double, word-prefix
// overlaps single. Matched domains come back best-first.
func detectDomains(question string) []legalDomain {
	q := albanian.NormalizeQuery(question)
	words := albanian.Keywords(q)

	type scored struct {
		hits   int
		domain legalDomain
	}
	var matches []scored

	for _, domain := range legalDomains {
		hits := 0
		for _, trigger := range domain.triggers {
			t := strings.ToLower(trigger)
			if strings.Contains(q, t) {
				hits += 2
				continue
			}
			for _, w := range words {
				if len(w) >= 3 && (strings.HasPrefix(t, w) || strings.HasPrefix(w, t)) {
					hits++
					break
				}
			}
		}
		if hits > 0 {
			matches = append(matches, scored{hits: hits, domain: domain})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].hits > matches[j].hits
	})

	out := make([]legalDomain, len(matches))
	for i, m := range matches {
		out[i] = m.domain
	}
	return out
}

// domainHint builds the expansion prompt's domain note for the best
// matching domain, or "" when none matched.
func domainHint(domains []legalDomain) string {
	if len(domains) == 0 {
		return ""
	}
	top := domains[0]
	n := len(top.triggers)
	if n > 8 {
		n = 8
	}
	return "Fusha ligjore e zbuluar: " + top.id + ". " +
		"Terma kyç të fushës: " + strings.Join(top.triggers[:n], ", ") + ". " +
		"Sigurohu që disa variante përdorin terminologjinë e kësaj fushe."
}
