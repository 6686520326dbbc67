package linker

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"a", "an", "and", "any", "are", "as", "at", "be", "between", "by", "can",
		"could", "did", "do", "does", "for", "from", "give", "has", "have", "how",
		"i", "in", "is", "it", "its", "list", "me", "of", "on", "or", "show",
		"tell", "than", "that", "the", "their", "there", "these", "this", "those",
		"to", "was", "were", "what", "when", "where", "which", "who", "why",
		"with", "about", "associated", "related", "known", "options", "option",
		"information", "info", "role", "roles", "effect", "effects", "current",
		"currently", "main", "major", "common", "most", "some", "all", "other",
		"please", "explain", "describe", "used", "use",
	} {
		stopwords[w] = struct{}{}
	}
}

// isStopword reports whether a normalized token carries no entity signal.
func isStopword(key string) bool {
	_, ok := stopwords[key]
	return ok
}
