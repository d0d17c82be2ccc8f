package chunker

import "strings"

// Words tokenizes text into the units every strategy sizes by.
func Words(text string) []string {
	return strings.Fields(text)
}

// CountWords returns the number of units in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// ChunkFixed partitions the words of text into consecutive groups of size.
// The last group may be shorter.
func ChunkFixed(text string, size int) ([]string, error) {
	if err := validateSize(size); err != nil {
		return nil, err
	}
	words := Words(text)
	if len(words) == 0 {
		return nil, nil
	}
	chunks := make([]string, 0, (len(words)+size-1)/size)
	for i := 0; i < len(words); i += size {
		end := i + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks, nil
}

// ChunkSliding returns windows of size words whose starts advance by
// size-overlap. Every word lands in at least one window.
func ChunkSliding(text string, size, overlap int) ([]string, error) {
	if err := validateWindow(size, overlap); err != nil {
		return nil, err
	}
	words := Words(text)
	if len(words) == 0 {
		return nil, nil
	}
	step := size - overlap
	var chunks []string
	for i := 0; i < len(words); i += step {
		end := i + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
		if end >= len(words) {
			break
		}
	}
	return chunks, nil
}
