package sandbox

import (
	"regexp"
	"strings"
)

// Issues reported by Analyze.
const (
	IssueMissingProviderImport = "Missing cloud provider imports"
	IssueMissingStack          = "Missing Pulumi stack definition"
	IssuePublicAccess          = "Warning: Public access enabled on resources"
	IssuePlaintextPassword     = "Warning: Passwords should be stored in secrets management"
)

// Report is the advisory result of a static scan.
type Report struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues"`
}

var (
	providerImport = regexp.MustCompile(`["'](@pulumi/(aws|azure|azure-native|azuread|gcp|google-native))(/[^"']*)?["']`)

	// A stack, a component, or any top-level export counts as a deployable unit.
	deployableUnit = regexp.MustCompile(`(?m)new\s+pulumi\.(Stack|ComponentResource)\b|^\s*export\s+(const|let|var|default|function|class|async)\b|^\s*exports\.\w+\s*=`)

	publicAccess = regexp.MustCompile(`(?i)publicAccess\s*:\s*(true|"enabled"|'enabled')|acl\s*:\s*["']public-read(-write)?["']|publicNetworkAccess\s*:\s*["']Enabled["']|allUsers`)

	passwordField = regexp.MustCompile(`(?i)password\w*\s*:\s*`)
	secretRouting = regexp.MustCompile(`secretsManager|secretsmanager|keyVault|keyvault|secretmanager|pulumi\.secret\(|requireSecret\(|getSecret\(`)
)

// Analyze scans program text without executing it. It never blocks deployment.
func Analyze(code string) Report {
	issues := []string{}

	if !providerImport.MatchString(code) {
		issues = append(issues, IssueMissingProviderImport)
	}
	if !deployableUnit.MatchString(code) {
		issues = append(issues, IssueMissingStack)
	}
	if publicAccess.MatchString(code) {
		issues = append(issues, IssuePublicAccess)
	}
	if passwordField.MatchString(stripComments(code)) && !secretRouting.MatchString(code) {
		issues = append(issues, IssuePlaintextPassword)
	}

	return Report{Valid: len(issues) == 0, Issues: issues}
}

func stripComments(code string) string {
	var b strings.Builder
	for _, ln := range strings.Split(code, "\n") {
		if strings.HasPrefix(strings.TrimSpace(ln), "//") {
			continue
		}
		b.WriteString(ln)
		b.WriteByte('\n')
	}
	return b.String()
}
