package keywords

import (
	"regexp"
	"sort"
	"strings"
)

// Keyword is a candidate term with its relevance score.
type Keyword struct {
	Term      string
	Score     float64
	Category  string // "technical", "action", "domain", "general"
	Frequency int
}

// Scoring bonuses per candidate class.
const (
	actionBonus    = 0.5
	domainBonus    = 0.7
	technicalBonus = 0.3
	lengthBonus    = 0.2
	compoundBonus  = 0.3
)

// stopwords covers common words plus assistant-session noise that would
// otherwise dominate frequency scoring.
var stopwords = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`
		the a an and or but in on at to for of with by from up about into through during
		before after above below between among
		i you he she it we they me him her us them my your his its our their
		this that these those
		is was are were be been being have has had
		do does did will would could should may might must can
		please help how what when where why who which
		agent claude use using need want get make create
		find search look show tell explain describe
		run execute start stop open close save load
		write read edit update delete remove add`) {
		stopwords[w] = true
	}
}

// technicalPatterns match token shapes that indicate technical terms.
var technicalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Z][a-z]+(?:[A-Z][a-z]+)+\b`),              // CamelCase
	regexp.MustCompile(`\b[a-z]+_[a-z]+(?:_[a-z]+)*\b`),                // snake_case
	regexp.MustCompile(`\b[a-z]+-[a-z]+(?:-[a-z]+)*\b`),                // kebab-case
	regexp.MustCompile(`\b\w+\.(?:go|py|js|md|json|yaml|csv|txt|pdf)\b`), // file names
	regexp.MustCompile(`\b[A-Z]{2,}\b`),                                // acronyms
	regexp.MustCompile(`\b\d+\.\d+\b`),                                 // version numbers
}

var technicalShape = regexp.MustCompile(`(^[a-z]+[A-Z])|_|-|\d|(^[A-Z]+$)`)

var actionVerbs = buildSet(`
	analyze analysis analyzing review reviewing examine examining
	implement implementing code coding program programming
	debug debugging fix fixing solve solving
	test testing validate validating verify verifying
	optimize optimizing improve improving enhance enhancing
	research researching study studying investigate investigating
	design designing build building construct constructing
	deploy deploying install installing configure configuring
	migrate migrating upgrade upgrading refactor refactoring
	document documenting tutorial guide`)

// domainTerms maps a domain name to its member terms.
var domainTerms = map[string][]string{
	"ai":       {"ai", "artificial", "intelligence", "machine", "learning", "ml", "deep", "neural", "network", "transformer", "llm"},
	"web":      {"web", "html", "css", "javascript", "js", "react", "vue", "angular", "node", "express", "api", "rest", "graphql"},
	"data":     {"data", "database", "sql", "nosql", "mongodb", "postgres", "mysql", "sqlite", "analytics", "visualization"},
	"cloud":    {"cloud", "aws", "azure", "gcp", "docker", "kubernetes", "k8s", "container", "microservices", "serverless"},
	"mobile":   {"mobile", "ios", "android", "flutter", "swift", "kotlin", "app", "application"},
	"research": {"research", "paper", "literature", "academic", "publication", "journal", "conference", "arxiv", "pubmed"},
	"security": {"security", "encryption", "authentication", "authorization", "ssl", "tls", "vulnerability", "penetration"},
}

// termToDomain is the reverse mapping, built once.
var termToDomain = func() map[string]string {
	m := make(map[string]string)
	for domain, terms := range domainTerms {
		for _, t := range terms {
			m[t] = domain
		}
	}
	return m
}()

var wordPattern = regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9]*\b`)

// Extract returns up to max keywords from text, ranked by score, with a
// minimum score of minScore.
func Extract(text string, max int, minScore float64) []string {
	scored := ExtractScored(text)
	out := make([]string, 0, max)
	for _, kw := range scored {
		if kw.Score < minScore {
			continue
		}
		out = append(out, kw.Term)
		if len(out) == max {
			break
		}
	}
	return out
}

// ExtractScored returns all candidate keywords with metadata, ranked by score
// descending.
func ExtractScored(text string) []Keyword {
	normalized := normalize(text)
	candidates := extractCandidates(text, normalized)
	return scoreCandidates(candidates, normalized)
}

// DomainSummary returns normalized per-domain relevance scores for text.
func DomainSummary(text string) map[string]float64 {
	scores := make(map[string]float64)
	for _, kw := range ExtractScored(text) {
		if domain, ok := termToDomain[kw.Term]; ok {
			scores[domain] += kw.Score
		}
	}
	var maxScore float64
	for _, v := range scores {
		if v > maxScore {
			maxScore = v
		}
	}
	if maxScore > 0 {
		for k := range scores {
			scores[k] /= maxScore
		}
	}
	return scores
}

// Words splits text into a lowercased word set with stopwords retained.
// Used by the query engine for keyword-overlap scoring.
func Words(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = true
	}
	return set
}

func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func extractCandidates(original, normalized string) map[string]bool {
	candidates := make(map[string]bool)

	// Shape-matched technical terms, lowercased
	for _, pattern := range technicalPatterns {
		for _, m := range pattern.FindAllString(original, -1) {
			candidates[strings.ToLower(m)] = true
		}
	}

	// Plain words of length >= 3, stopwords excluded
	for _, w := range wordPattern.FindAllString(normalized, -1) {
		if len(w) >= 3 && !stopwords[w] {
			candidates[w] = true
		}
	}

	// Compound bigrams of non-stopwords
	words := strings.Fields(normalized)
	for i := 0; i+1 < len(words); i++ {
		if !stopwords[words[i]] && !stopwords[words[i+1]] &&
			len(words[i]) >= 3 && len(words[i+1]) >= 3 {
			candidates[words[i]+"_"+words[i+1]] = true
		}
	}

	return candidates
}

func scoreCandidates(candidates map[string]bool, normalized string) []Keyword {
	freq := make(map[string]int)
	allWords := wordPattern.FindAllString(normalized, -1)
	for _, w := range allWords {
		freq[w]++
	}
	total := len(strings.Fields(normalized))

	scored := make([]Keyword, 0, len(candidates))
	for candidate := range candidates {
		f := candidateFrequency(candidate, freq)
		var tf float64
		if total > 0 {
			tf = float64(f) / float64(total)
		}

		score := tf
		category := "general"

		if actionVerbs[candidate] {
			score += actionBonus
			category = "action"
		}
		if _, ok := termToDomain[candidate]; ok {
			score += domainBonus
			category = "domain"
		}
		if technicalShape.MatchString(candidate) {
			score += technicalBonus
			category = "technical"
		}
		if len(candidate) >= 5 {
			score += lengthBonus
		}
		if strings.ContainsAny(candidate, "_-") {
			score += compoundBonus
			category = "technical"
		}

		scored = append(scored, Keyword{
			Term:      candidate,
			Score:     score,
			Category:  category,
			Frequency: f,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Term < scored[j].Term
	})
	return scored
}

// candidateFrequency resolves compound terms to the minimum component frequency.
func candidateFrequency(candidate string, freq map[string]int) int {
	if strings.Contains(candidate, "_") {
		parts := strings.Split(candidate, "_")
		min := -1
		for _, p := range parts {
			if min == -1 || freq[p] < min {
				min = freq[p]
			}
		}
		if min < 0 {
			return 0
		}
		return min
	}
	return freq[candidate]
}

func buildSet(words string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(words) {
		set[w] = true
	}
	return set
}
