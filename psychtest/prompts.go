package psychtest

import (
	"fmt"
	"strings"
)

const questionWithAckTemplate = `The user (%s) just answered "%s" to the previous question,
which matched with the option: "%s".

We're now on question %d out of %d.
The next question is: '%s'

First, briefly acknowledge their previous answer in a positive way.
Then, transform the question into a friendly, conversational format that feels like a natural chat.
Make it engaging and personal, as if you're having a real conversation with the test-taker.
Keep your response concise (2-3 sentences max).

IMPORTANT: Your response MUST be in English only.`

const firstQuestionTemplate = `We're on question %d out of %d.
Transform this formal question into a friendly, conversational question that feels like a natural chat:
'%s'

Make it engaging and personal, as if you're having a real conversation with the test-taker.

IMPORTANT: Your response MUST be in English only.`

const responseAnalysisTemplate = `Question: %s
Options:
%s
User Response: "%s"

TASK:
1. Semantically analyze if the user's response relates to ANY of the provided options by understanding their intent.
   Consider synonyms, paraphrasing, related concepts, and contextual implications.

2. Provide a concise but in-depth psychological analysis (max 50 words) by:
   - Analyzing this specific response in the context of their previous answers
   - Identifying patterns in communication style, decision-making approach, and emotional tone
   - Connecting this response to broader personality traits and psychological concepts

3. If there's a match, identify which option BEST captures the user's intent, even if their wording is very different.

FORMAT YOUR RESPONSE EXACTLY AS FOLLOWS:
VALID: YES/NO
OPTION: [exact text of matched option, or "NONE" if invalid]
ANALYSIS: [concise but insightful psychological analysis (max 50 words)]
PATTERNS: [brief note on emerging behavioral or thought patterns (max 20 words)]`

const retryFirstAttemptTemplate = `The user (%s) just answered "%s" to:
"%s"
Options were:
%s

This is the user's first failed attempt for this question.

Create a warm, conversational response that:
1. Acknowledges what they said (without introducing yourself again)
2. Gently explains their answer wasn't clear enough to match the options
3. Guides them to try again with an answer that matches one of the options

Keep your tone warm and supportive. NO greeting phrases like "hello" or "hey there".

IMPORTANT: Your response MUST be in English only.`

const retryMultipleAttemptsTemplate = `The user (%s) has made %d attempts to answer:
Question: "%s"
Options:
%s
Latest response: "%s"

The user is having difficulty providing a clear answer. You MUST:
1. Acknowledge their input with empathy
2. EXPLICITLY suggest which option seems closest to what they mean
3. Ask them to confirm with the option number or a clear yes/no

Be very direct but friendly. No hedging language. Help them succeed.

IMPORTANT: Your response MUST be in English only.`

const analysisSummaryTemplate = `You're providing a comprehensive psychological analysis based on this test: '%s'
Here are the user's answers along with individual psychological insights for each response:
%s

The test taker is %s, age %d.

Based on the individual insights and the overall response profile, provide a detailed and personalized analysis
of %s's personality. Include:

1. Key personality traits identified across multiple answers (with specific examples)
2. Deeper psychological insights about their cognitive processing style
3. Communication patterns and interpersonal tendencies
4. Potential strengths based on their response patterns
5. Areas for potential personal growth
6. A positive and encouraging conclusion

Fill in the following report template, keeping its structure and headings:
%s

STYLING REQUIREMENTS:
- Create clear sections with emojis as section markers (use 1 relevant emoji per section)
- Bold or emphasize key insights and important personality traits
- Maintain a balanced, professional yet warm tone

IMPORTANT: Your response MUST be in English only.`

const packageSummaryTemplate = `The user %s (age %d) has completed every test in the '%s' package.
Here are the individual test reports:

%s

Write one integrated report that connects the findings across all tests: shared
themes, contrasts between the individual results, and an overall picture of the
person. Keep the warm, professional tone of the individual reports.

IMPORTANT: Your response MUST be in English only.`

const historySummaryTemplate = `Summarize the following conversation into concise bullet points.
Pay special attention to and retain any explicitly stated personal details by the user, such as their name, age, or profession (if mentioned), or other significant contextual information they provide, as these are important for ongoing personalization and context.
Focus on the main topics discussed and key information exchanged.

Conversation:
%s`

const imagePromptTemplate = `Personality Summary:
%s

Write the image generation prompt now.`

func questionWithAckPrompt(userName, lastResponse, lastOption string, qnum, total int, question string) string {
	return fmt.Sprintf(questionWithAckTemplate, userName, lastResponse, lastOption, qnum, total, question)
}

func firstQuestionPrompt(qnum, total int, question string) string {
	return fmt.Sprintf(firstQuestionTemplate, qnum, total, question)
}

func responseAnalysisPrompt(question string, options []string, userInput string) string {
	return fmt.Sprintf(responseAnalysisTemplate, question, bulletOptions(options), userInput)
}

func retryPrompt(userName, question string, options []string, userInput string, attempts int) string {
	if attempts > 1 {
		return fmt.Sprintf(retryMultipleAttemptsTemplate, userName, attempts, question, bulletOptions(options), userInput)
	}
	return fmt.Sprintf(retryFirstAttemptTemplate, userName, userInput, question, bulletOptions(options))
}

func analysisSummaryPrompt(testName, userName string, userAge int, formattedAnswers, reportTemplate string) string {
	if strings.TrimSpace(reportTemplate) == "" {
		reportTemplate = "(no fixed template; use the section list above as the outline)"
	}
	return fmt.Sprintf(analysisSummaryTemplate, testName, formattedAnswers, userName, userAge, userName, reportTemplate)
}

func packageSummaryPrompt(userName string, userAge int, packageName, formattedResults string) string {
	return fmt.Sprintf(packageSummaryTemplate, userName, userAge, packageName, formattedResults)
}

func historySummaryPrompt(conversation string) string {
	return fmt.Sprintf(historySummaryTemplate, conversation)
}

func imagePrompt(summary string) string {
	return fmt.Sprintf(imagePromptTemplate, summary)
}

// bulletOptions renders option labels as a dash list for oracle prompts.
func bulletOptions(options []string) string {
	var b strings.Builder
	for _, opt := range options {
		b.WriteString("- ")
		b.WriteString(opt)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// numberedOptions renders option labels as the 1-based list shown to users.
func numberedOptions(options []string) string {
	var b strings.Builder
	for i, opt := range options {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(opt))
	}
	return strings.TrimRight(b.String(), "\n")
}
