package persona

import (
	"strings"
	"testing"
)

func TestPromptsIncludeData(t *testing.T) {
	cases := []struct {
		name   string
		prompt string
		data   string
	}{
		{"news", NewsPrompt("Rates hold steady", ""), "Rates hold steady"},
		{"market", MarketPrompt("BTC: $64,000", ""), "BTC: $64,000"},
		{"weather", WeatherPrompt("12C, drizzle", ""), "12C, drizzle"},
		{"reply", ReplyPrompt("@enzo what do you think?", ""), "what do you think?"},
	}
	for _, c := range cases {
		if !strings.Contains(c.prompt, c.data) {
			t.Errorf("%s prompt missing data: %q", c.name, c.prompt)
		}
	}
}

func TestJournalSectionOnlyWhenPresent(t *testing.T) {
	without := NewsPrompt("headline", "")
	if strings.Contains(without, "journal") {
		t.Error("journal section should be omitted when empty")
	}
	with := NewsPrompt("headline", "felt bearish this morning")
	if !strings.Contains(with, "felt bearish this morning") {
		t.Error("journal content should appear in the prompt")
	}
}
