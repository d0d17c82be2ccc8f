package chunker

import "strings"

// DefaultSeparators are tried in order: paragraph, line, sentence
// punctuation, whitespace.
var DefaultSeparators = []string{"\n\n", "\n", ". ", "? ", "! ", "; ", " "}

// ChunkRecursive splits text on the first separator whose pieces, greedily
// regrouped up to size words with overlap carried between groups, all fit.
// When none fits it falls back to ChunkFixed.
func ChunkRecursive(text string, size, overlap int, separators []string) ([]string, error) {
	if err := validateWindow(size, overlap); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if CountWords(text) <= size {
		return []string{text}, nil
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	for _, sep := range separators {
		pieces := splitOn(text, sep)
		if len(pieces) < 2 {
			continue
		}
		if groups, ok := regroup(pieces, joinerFor(sep), size, overlap); ok {
			return groups, nil
		}
	}
	return ChunkFixed(text, size)
}

func splitOn(text, sep string) []string {
	if sep == " " {
		return strings.Fields(text)
	}
	var out []string
	for _, p := range strings.SplitAfter(text, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinerFor(sep string) string {
	if strings.TrimSpace(sep) == "" && strings.Contains(sep, "\n") {
		return sep
	}
	return " "
}

func regroup(pieces []string, joiner string, size, overlap int) ([]string, bool) {
	counts := make([]int, len(pieces))
	for i, p := range pieces {
		counts[i] = CountWords(p)
		if counts[i] > size {
			return nil, false
		}
	}
	var (
		groups []string
		cur    []int
		used   int
	)
	for i := range pieces {
		if len(cur) > 0 && used+counts[i] > size {
			groups = append(groups, joinPieces(pieces, cur, joiner))
			// Carry trailing pieces into the next group while they stay
			// within the overlap and leave room for piece i.
			var carried []int
			kept := 0
			for j := len(cur) - 1; j >= 0; j-- {
				n := counts[cur[j]]
				if kept+n > overlap || kept+n+counts[i] > size {
					break
				}
				kept += n
				carried = append([]int{cur[j]}, carried...)
			}
			cur, used = carried, kept
		}
		cur = append(cur, i)
		used += counts[i]
	}
	if len(cur) > 0 {
		groups = append(groups, joinPieces(pieces, cur, joiner))
	}
	return groups, true
}

func joinPieces(pieces []string, idx []int, joiner string) string {
	parts := make([]string, len(idx))
	for k, i := range idx {
		parts[k] = pieces[i]
	}
	return strings.Join(parts, joiner)
}

// ValidateAndResplit re-splits every chunk above maxUnits words with
// ChunkRecursive. Compliant input is returned unchanged.
func ValidateAndResplit(chunks []string, maxUnits int) ([]string, error) {
	if err := validateSize(maxUnits); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if CountWords(c) <= maxUnits {
			out = append(out, c)
			continue
		}
		parts, err := ChunkRecursive(c, maxUnits, 0, DefaultSeparators)
		if err != nil {
			return nil, err
		}
		// Recursive output is bounded by construction; re-check anyway.
		parts, err = ValidateAndResplit(parts, maxUnits)
		if err != nil {
			return nil, err
		}
		out = append(out, parts...)
	}
	return out, nil
}

// Normalize trims text, collapses runs of spaces and tabs, and squeezes
// blank-line runs to a single paragraph break.
func Normalize(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var b strings.Builder
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank = b.Len() > 0
			continue
		}
		if b.Len() > 0 {
			if blank {
				b.WriteString("\n\n")
			} else {
				b.WriteByte('\n')
			}
		}
		b.WriteString(line)
		blank = false
	}
	return b.String()
}
