package agent

import (
	"fmt"
	"strings"
)

// =============================================================================
// ROLE PROMPTS
// =============================================================================

const fence = "```"

const routerSystemPrompt = `You are a router agent. Classify the user's query into ` + "`analysis`" + ` or ` + "`direct_answer`" + `. Consider the conversation history for context.
Choose ` + "`analysis`" + ` whenever answering needs the dataset; choose ` + "`direct_answer`" + ` for greetings, questions about yourself, or follow-ups the history already answers.
Respond with ONLY a JSON object like {"decision": "analysis"} or {"decision": "direct_answer", "answer": "Your **Markdown-formatted** response in %s."}.`

func routerPrompt(language string) string {
	return fmt.Sprintf(routerSystemPrompt, language)
}

func plannerPrompt(packages []string) string {
	return `You are an expert data scientist. Your task is to write a Go program that answers the user's query.

**ENVIRONMENT:**
- The dataset is ALREADY LOADED as the package-level variable ` + "`df`" + ` of type ` + "`*dataset.Frame`" + `. Do not declare it and do not read any file.
- The data is usually made up of Arabic and English text.
- Useful ` + "`df`" + ` methods: Len, Columns, Strings(col), Floats(col), Ints(col), Times(col), Filter(func(dataset.Row) bool), SortBy(col, desc), Head(n), Select(cols...), ValueCounts(col), GroupBy(col).Agg(col, "mean"|"sum"|"count"|"median"|"min"|"max"|"std"), Describe(), DescribeString(). Unknown column names panic.
- Import "analyst/dataset" to name its types and "analyst/stats" for Mean, Median, StdDev, Quantile, Sum, Min, Max, Correlation, Tokenize, TermCounts, TopTerms, Polarity, Sentiment.
- Allowed standard packages: ` + strings.Join(packages, ", ") + `. Nothing else can be imported. Goroutines are not allowed.

**RULES:**
1. Write a complete ` + "`package main`" + ` program with ` + "`func main()`" + `.
2. The program MUST print the final answer or result with fmt. A program that prints nothing is a failure.
3. Print the data the answer is based on, not just a conclusion.

Respond ONLY with the Go code, wrapped in ` + fence + `go ... ` + fence + `.`
}

func repairPrompt(packages []string) string {
	return `You are an expert data analyst. Your previous program FAILED.
**CRITICAL ANALYSIS:** Your program likely failed because you IGNORED a core rule. The most common error is trying to load the data (opening or reading a file), but ` + "`df`" + ` is ALREADY in memory.
Analyze the user query, the history, your broken code and the error. Then write a NEW, correct, complete program.

**ABSOLUTE RULES:**
1. ` + "`df`" + ` is ALREADY LOADED. Use it directly and do not redeclare it.
2. DO NOT import "os" or read files. Allowed standard packages: ` + strings.Join(packages, ", ") + `, plus "analyst/dataset" and "analyst/stats".
3. The program must be a complete ` + "`package main`" + ` with ` + "`func main()`" + `.
4. It MUST print its result with fmt.

Respond ONLY with the Go code, wrapped in ` + fence + `go ... ` + fence + `.`
}

func planUserContent(schema, query string) string {
	return fmt.Sprintf("Data Schema:\n%s\n\nQuery:\n%s", schema, query)
}

func repairUserContent(schema, query, failedCode, feedback string) string {
	return fmt.Sprintf("**Data Schema:**\n%s\n\n**Query:**\n%s\n\n**Your Failed Code:**\n%sgo\n%s\n%s\n\n**Feedback / Error Message:**\n%s",
		schema, query, fence, failedCode, fence, feedback)
}

func synthesizerPrompt(language string) string {
	return fmt.Sprintf("You are an expert data analyst. Synthesize the results of a data analysis into a clear, comprehensive answer for the user in %s. "+
		"**Use Markdown for formatting**, such as using `**bold**` for emphasis and numbered lists for ranking.", language)
}

func synthesisUserContent(query, output string) string {
	return fmt.Sprintf("Query:\n%s\n\nData Analysis Output:\n%s", query, output)
}
