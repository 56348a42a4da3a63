package prompt

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseCondition(t *testing.T) {
	tests := []struct {
		in      string
		want    Condition
		wantErr bool
	}{
		{"baseline", Baseline, false},
		{" Abstain_If_Unsure ", AbstainIfUnsure, false},
		{"abstain", AbstainIfUnsure, false},
		{"cite_or_abstain", CiteOrAbstain, false},
		{"chain_of_thought", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCondition(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseConditions(t *testing.T) {
	got, err := ParseConditions(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(All) {
		t.Fatalf("expected all %d conditions, got %d", len(All), len(got))
	}

	got, err = ParseConditions([]string{"cite_or_abstain,baseline", "abstain", "baseline"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Condition{Baseline, AbstainIfUnsure, CiteOrAbstain}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %q, want %q", i, got[i], want[i])
		}
	}

	got, err = ParseConditions([]string{"all"})
	if err != nil || len(got) != 3 {
		t.Fatalf("all: got %v, %v", got, err)
	}

	if _, err := ParseConditions([]string{"baseline,bogus"}); err == nil {
		t.Fatal("expected error for unknown condition")
	}
}

func TestRender(t *testing.T) {
	p := Render(AbstainIfUnsure, "  Who painted the Mona Lisa? ")
	if !strings.HasPrefix(p, "Answer the following question. If you are not sure, say 'I don't know'.") {
		t.Errorf("unexpected prefix: %q", p)
	}
	if !strings.HasSuffix(p, "\n\nQuestion: Who painted the Mona Lisa?") {
		t.Errorf("unexpected suffix: %q", p)
	}
	if !strings.Contains(Render(CiteOrAbstain, "q"), "cite a source type") {
		t.Error("cite_or_abstain instruction missing citation clause")
	}
	if Condition("bogus").Instruction() != Baseline.Instruction() {
		t.Error("unknown condition should fall back to baseline")
	}
}

func TestConditionUnmarshalJSON(t *testing.T) {
	var v struct {
		C Condition `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"c":"abstain"}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.C != AbstainIfUnsure {
		t.Errorf("got %q", v.C)
	}
	if err := json.Unmarshal([]byte(`{"c":"nope"}`), &v); err == nil {
		t.Fatal("expected error for unknown condition")
	}
}

func TestOrder(t *testing.T) {
	if Baseline.Order() != 0 || CiteOrAbstain.Order() != 2 {
		t.Error("unexpected order")
	}
	if Condition("x").Order() != len(All) || Condition("x").Valid() {
		t.Error("unknown condition should sort last and be invalid")
	}
}
