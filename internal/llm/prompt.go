package llm

// AnalysisInstruction asks for exactly three keys and nothing else.
const AnalysisInstruction = `
Analyze the following contract text and provide a JSON object with three keys:
1.  ` + "`key_information`" + `: Extract key information including parties involved, contract dates, monetary amounts, key terms and conditions, and important deadlines.
2.  ` + "`risk_assessment`" + `: Identify potential legal risks, unfavorable terms, and red flags that require attention from legal teams.
3.  ` + "`summary`" + `: Generate a concise executive summary highlighting the most critical points for quick review.

Return ONLY the JSON object.
`

// ComposePrompt joins an instruction block and document text with a blank line.
func ComposePrompt(instruction, text string) string {
	return instruction + "\n\n" + text
}

// BuildPrompt returns the full contract analysis prompt for text.
func BuildPrompt(text string) string {
	return ComposePrompt(AnalysisInstruction, text)
}
