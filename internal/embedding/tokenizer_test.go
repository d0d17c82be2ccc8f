package embedding

import (
	"reflect"
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, types := tok.Tokenize("Revenue: $26.0B", 10)
	if len(ids) != 10 || len(attn) != 10 || len(types) != 10 {
		t.Fatalf("lengths %d %d %d", len(ids), len(attn), len(types))
	}
	if ids[0] != clsTokenID {
		t.Errorf("expected CLS, got %d", ids[0])
	}
	// revenue : $ 26 . 0b -> 6 tokens, then SEP at 7.
	if ids[7] != sepTokenID || attn[7] != 1 || attn[8] != 0 {
		t.Errorf("ids=%v attn=%v", ids, attn)
	}
	for _, id := range ids[1:7] {
		if id < firstWordID || id >= vocabSize {
			t.Errorf("token id %d out of vocabulary", id)
		}
	}
}

func TestSimpleTokenizer_Truncates(t *testing.T) {
	ids, attn, _ := (&SimpleTokenizer{}).Tokenize("a b c d e f g h", 4)
	if ids[3] != sepTokenID {
		t.Errorf("expected SEP in last slot, got %v", ids)
	}
	for _, a := range attn {
		if a != 1 {
			t.Errorf("all slots should attend: %v", attn)
		}
	}
}

func TestPretokenize(t *testing.T) {
	got := pretokenize("Net income, up 18%.")
	want := []string{"net", "income", ",", "up", "18", "%", "."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("pretokenize = %q, want %q", got, want)
	}
}
