package generator

import (
	"fmt"
	"strings"
)

const (
	temperature = 0.2
	maxTokens   = 4000
)

// SystemInstruction frames every backend as a Pulumi TypeScript author.
const SystemInstruction = "You are an expert in cloud infrastructure and Pulumi. " +
	"Generate valid Pulumi TypeScript code for multi-cloud deployments. " +
	"Include proper error handling, security best practices, and resource tagging."

// UserInstruction wraps the user's description.
func UserInstruction(prompt string) string {
	return fmt.Sprintf("Convert the following infrastructure description to Pulumi TypeScript code "+
		"that works across AWS, Azure, and GCP:\n\n%s\n\n"+
		"Format the response as valid TypeScript code only, with no explanations or markdown.", strings.TrimSpace(prompt))
}

// CombinedInstruction is used by backends without a separate system role.
func CombinedInstruction(prompt string) string {
	return SystemInstruction + "\n\n" + UserInstruction(prompt)
}

// ExtractProgram turns a model answer into bare program text.
func ExtractProgram(s string) (string, error) {
	code := stripMarkdownCodeFences(s)
	if code == "" {
		return "", ErrEmptyResponse
	}
	return code, nil
}

func stripMarkdownCodeFences(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		if strings.HasPrefix(strings.TrimSpace(ln), "```") {
			continue
		}
		out = append(out, ln)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
