package dialogue

import "strings"

const maxFallbackSentences = 10

// ParseTranscript extracts dialogue lines from raw model output. The
// primary format is one line per turn prefixed with "Examiner:" or
// "Candidate:" (case-insensitive, leading markup tolerated). When no
// prefixed line is found the text is split into sentences and distributed
// alternately, examiner first, so a free-form completion still yields a
// playable dialogue.
func ParseTranscript(raw string) []Line {
	var lines []Line
	for _, ln := range strings.Split(raw, "\n") {
		ln = strings.TrimSpace(strings.TrimLeft(ln, "*#->• \t"))
		if ln == "" {
			continue
		}
		if text, ok := stripPrefix(ln, "examiner:"); ok {
			if text != "" {
				lines = append(lines, Line{Speaker: RoleExaminer, Text: text})
			}
			continue
		}
		if text, ok := stripPrefix(ln, "candidate:"); ok {
			if text != "" {
				lines = append(lines, Line{Speaker: RoleCandidate, Text: text})
			}
		}
	}
	if len(lines) > 0 {
		return lines
	}
	return alternateSentences(raw)
}

func stripPrefix(line, prefix string) (string, bool) {
	if len(line) < len(prefix) || !strings.EqualFold(line[:len(prefix)], prefix) {
		return "", false
	}
	// markup wrapping the role label ("**Examiner:**") leaves its tail
	// after the colon; trim it along with the surrounding space
	return strings.TrimSpace(strings.TrimLeft(line[len(prefix):], "* ")), true
}

func alternateSentences(raw string) []Line {
	var lines []Line
	sentences := splitSentences(raw)
	for i, sentence := range sentences {
		if i >= maxFallbackSentences {
			break
		}
		speaker := RoleExaminer
		if i%2 == 1 {
			speaker = RoleCandidate
		}
		text := sentence
		if speaker == RoleExaminer && !strings.HasSuffix(text, "?") {
			text = strings.TrimSuffix(text, ".") + "?"
		}
		lines = append(lines, Line{Speaker: speaker, Text: text})
	}
	return lines
}

func splitSentences(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ".") {
		s = strings.TrimSpace(s)
		// very short fragments are noise, not sentences
		if len(s) > 10 {
			out = append(out, s+".")
		}
	}
	return out
}
