package transcribe

import (
	"regexp"
	"strings"
)

var cyrillicRe = regexp.MustCompile(`[а-яА-Я]`)

// PostprocessText filters hallucinated decoder output: lines shorter than
// four runes, lines without Cyrillic, and lines containing a run of three or
// more identical runes are dropped.
func PostprocessText(text string) string {
	var out []string
	for _, ln := range strings.Split(text, "\n") {
		ln = strings.TrimSpace(ln)
		if len([]rune(ln)) < 4 {
			continue
		}
		if !cyrillicRe.MatchString(ln) {
			continue
		}
		if hasTripletRepeat(ln) {
			continue
		}
		out = append(out, ln)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func hasTripletRepeat(s string) bool {
	var last rune
	run := 0
	for _, ch := range s {
		if ch == last {
			run++
			if run >= 3 {
				return true
			}
		} else {
			last = ch
			run = 1
		}
	}
	return false
}
