package dialogue

import "fmt"

const systemInstruction = "You are an IELTS speaking examiner. Produce a complete " +
	"spoken exam interview as alternating lines prefixed with 'Examiner:' and " +
	"'Candidate:', starting with the examiner. Do not include any other text."

// buildPrompt renders the difficulty-specific generation prompt. Each level
// targets a different band and answer depth.
func buildPrompt(topic string, difficulty Difficulty) string {
	switch difficulty {
	case DifficultyBeginner:
		return fmt.Sprintf(`Generate a simple IELTS Speaking interview about %s for BEGINNER level (IELTS Band 4.0-5.5).

Use simple vocabulary and clear sentences. The candidate gives basic but complete answers of 2-3 sentences.

Create exactly 5 question-answer pairs. The examiner opens with:
Examiner: I'd like you to describe %s. Please tell me about it.

Then cover personal experience, good points, problems, and the future.

Generate the interview:`, topic, topic)
	case DifficultyAdvanced:
		return fmt.Sprintf(`Generate a sophisticated IELTS Speaking interview about %s for ADVANCED level (IELTS Band 7.0-8.5).

Use complex vocabulary and analytical thinking. The candidate gives detailed, nuanced answers of 3-4 sentences.

Create exactly 5 question-answer pairs. The examiner opens with:
Examiner: I'd like you to analyze %s. Please discuss its significance and implications.

Then cover critical perspectives, broader implications, challenges and solutions, and future trends.

Generate the interview:`, topic, topic)
	default:
		return fmt.Sprintf(`Generate a complete IELTS Speaking interview about %s for INTERMEDIATE level (IELTS Band 6.0-6.5).

Use good vocabulary and clear explanations. The candidate gives detailed but accessible answers of 2-3 sentences.

Create exactly 5 question-answer pairs. The examiner opens with:
Examiner: I'd like you to describe %s. You have one minute to prepare and speak for up to two minutes.

Then cover personal experience, advantages, challenges, and recommendations.

Generate the interview:`, topic, topic)
	}
}

// fallbackDialogue is committed when a backend produced text that the
// parser could not turn into a single line. The result is still a valid
// interview opener so the session remains usable.
func fallbackDialogue(topic string) []Line {
	return []Line{
		{Speaker: RoleExaminer, Text: fmt.Sprintf("I'd like you to describe %s. You have one minute to prepare and speak for up to two minutes.", topic)},
		{Speaker: RoleCandidate, Text: fmt.Sprintf("I'd like to talk about %s. This is something I find quite interesting and relevant to my daily life.", topic)},
		{Speaker: RoleExaminer, Text: fmt.Sprintf("Can you tell me about your personal experience with %s?", topic)},
		{Speaker: RoleCandidate, Text: fmt.Sprintf("Well, I have quite a bit of experience with %s. It has been part of my life for several years now.", topic)},
	}
}
