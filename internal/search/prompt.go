package search

import (
	"fmt"
	"strings"

	"github.com/starford/neuralos/internal/vector"
)

// NoResultsAnswer is returned when no note matches the query.
const NoResultsAnswer = "I couldn't find any notes matching your query. Try saving some notes first, or rephrase your question."

const untitled = "Untitled"

const systemPrompt = `You are an intelligent personal knowledge assistant helping users recall and act on their saved notes and ideas.

Your role is to:
1. Analyze the user's saved notes in relation to their query
2. Provide helpful, actionable insights based on what they've recorded
3. Connect ideas and identify patterns across their notes
4. Suggest concrete next steps or actions they could take

Response Format:
- Start with a brief summary of what you found (1-2 sentences)
- Then provide 3-5 bullet points with specific insights, action items, or connections
- Be encouraging and supportive while being specific and actionable
- If notes are loosely related, still extract useful insights and suggest how they might connect to the query

Remember: These are the user's own thoughts and goals. Help them make progress on what matters to them.`

func titleOf(m vector.Match) string {
	if m.Title == "" {
		return untitled
	}
	return m.Title
}

// buildContext lists every match as a title/content block.
func buildContext(matches []vector.Match) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, fmt.Sprintf("Title: %s\nContent: %s", titleOf(m), m.Text))
	}
	return strings.Join(parts, "\n---\n")
}

func userPrompt(context, query string, bestScore float64) string {
	return fmt.Sprintf("User's saved notes:\n%s\n\nUser's question: \"%s\"\n\nRelevance score of best match: %.0f%%\n\nProvide a helpful analysis with actionable bullet points.",
		context, query, bestScore*100)
}
