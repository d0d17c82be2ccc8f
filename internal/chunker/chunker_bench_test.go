package chunker

import (
	"strings"
	"testing"
)

func benchmarkStrategy(b *testing.B, opts Options) {
	c, err := New(opts)
	if err != nil {
		b.Fatal(err)
	}
	text := strings.Repeat("Revenue grew 12% year over year. Operating margin widened to 24%. Free cash flow funded buybacks.\n\n", 200)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Split(text); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSplit_Fixed(b *testing.B) {
	benchmarkStrategy(b, Options{Strategy: Fixed, Size: 200})
}

func BenchmarkSplit_Sentence(b *testing.B) {
	benchmarkStrategy(b, Options{Strategy: Sentence, Size: 5})
}

func BenchmarkSplit_Sliding(b *testing.B) {
	benchmarkStrategy(b, Options{Strategy: Sliding, Size: 200, Overlap: 50})
}

func BenchmarkSplit_Recursive(b *testing.B) {
	benchmarkStrategy(b, Options{Strategy: Recursive, Size: 200, Overlap: 20})
}
