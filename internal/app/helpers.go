package app

import (
	"fmt"
	"hash/fnv"
	"net/http"
	"sort"
	"strings"
)

// RequireMethod validates that the request uses the specified HTTP method
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// RequireAdminMode validates that admin mode is enabled
func RequireAdminMode(w http.ResponseWriter) bool {
	if !AdminMode {
		http.Error(w, ErrAdminModeDisabled, http.StatusForbidden)
		return false
	}
	return true
}

// SortEventsByDate sorts events by date in ascending order. Feed dates are
// ISO-8601-like, so lexicographic order is chronological.
func SortEventsByDate(events []EventRecord) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].Date < events[j].Date
	})
}

// slugReplacer folds the accented letters of pt-BR titles to ASCII so
// slugs keep their letters instead of dropping them.
var slugReplacer = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a", "ä", "a",
	"é", "e", "è", "e", "ê", "e",
	"í", "i", "î", "i",
	"ó", "o", "ô", "o", "õ", "o", "ö", "o",
	"ú", "u", "ü", "u",
	"ç", "c", "ñ", "n",
)

// Slugify lowers a title into a stable identifier for calendar UIDs.
// Titles with no ASCII-representable characters fall back to a hash so
// distinct titles never share an empty slug.
func Slugify(s string) string {
	s = slugReplacer.Replace(strings.ToLower(strings.TrimSpace(s)))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		h := fnv.New32a()
		_, _ = h.Write([]byte(s))
		return fmt.Sprintf("%08x", h.Sum32())
	}
	return slug
}
