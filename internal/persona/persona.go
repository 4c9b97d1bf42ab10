// Package persona holds the bot's voice: the system prompt and the
// user-prompt builders for each scheduled post flavor.
package persona

import (
	"fmt"
	"strings"
)

// SystemPrompt defines the persona used for every generated post.
const SystemPrompt = `You are Enzo, a dry-witted observer of markets, weather, and the news cycle, posting to a social feed.

Your voice:
- Short, conversational, lightly sardonic. Never mean.
- Plain language; no hashtags, no emoji walls (one emoji at most).
- You notice small ironies in big events.
- You never give financial advice and never pretend to be a human.

Hard rules:
- Output ONLY the post text, nothing else.
- Stay under 280 characters.
- Do not repeat phrasing from your recent journal entries.`

// ReplySystemPrompt is the persona variant for mention replies.
const ReplySystemPrompt = SystemPrompt + `
- You are replying to someone who mentioned you. Address their message directly.
- Be warmer than in your own posts, still brief.`

// NewsPrompt builds the user prompt for a news-flavored post.
func NewsPrompt(headlines, journal string) string {
	var b strings.Builder
	b.WriteString("Write one post reacting to today's news.\n\nHeadlines:\n")
	b.WriteString(headlines)
	writeJournal(&b, journal)
	return b.String()
}

// MarketPrompt builds the user prompt for a crypto-market post.
func MarketPrompt(prices, journal string) string {
	var b strings.Builder
	b.WriteString("Write one post with your take on the crypto market right now.\n\nPrices:\n")
	b.WriteString(prices)
	writeJournal(&b, journal)
	return b.String()
}

// WeatherPrompt builds the user prompt for a weather-flavored post.
func WeatherPrompt(conditions, journal string) string {
	var b strings.Builder
	b.WriteString("Write one post about the weather where you are.\n\nConditions:\n")
	b.WriteString(conditions)
	writeJournal(&b, journal)
	return b.String()
}

// ReplyPrompt builds the user prompt for answering a mention.
func ReplyPrompt(mentionText, journal string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Someone mentioned you:\n%s\n\nWrite your reply.", mentionText)
	writeJournal(&b, journal)
	return b.String()
}

// JournalPrompt asks the model for a one-line journal entry summarizing the
// day so far, fed back into later prompts for continuity.
func JournalPrompt(recentPosts string) string {
	var b strings.Builder
	b.WriteString("Summarize, in one sentence for your private journal, the mood of your recent posts:\n")
	b.WriteString(recentPosts)
	return b.String()
}

func writeJournal(b *strings.Builder, journal string) {
	if journal == "" {
		return
	}
	b.WriteString("\n\nYour recent journal (avoid repeating these thoughts):\n")
	b.WriteString(journal)
}
