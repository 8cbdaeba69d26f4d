package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const cleanProgram = `import * as pulumi from "@pulumi/pulumi";
import * as aws from "@pulumi/aws";

const bucket = new aws.s3.Bucket("logs", {
    tags: { Environment: pulumi.getStack() },
});

export const bucketName = bucket.id;
`

func TestAnalyzeCleanProgram(t *testing.T) {
	r := Analyze(cleanProgram)
	assert.True(t, r.Valid)
	assert.Empty(t, r.Issues)
}

func TestAnalyzeMissingImportAndUnit(t *testing.T) {
	r := Analyze(`const x = 1;`)
	assert.False(t, r.Valid)
	assert.Equal(t, []string{IssueMissingProviderImport, IssueMissingStack}, r.Issues)
}

func TestAnalyzeAcceptsSubmoduleImportsAndStack(t *testing.T) {
	r := Analyze(`import * as storage from "@pulumi/azure-native/storage";
class App extends pulumi.ComponentResource {}
`)
	assert.NotContains(t, r.Issues, IssueMissingProviderImport)
	assert.NotContains(t, r.Issues, IssueMissingStack)
}

func TestAnalyzePublicAccess(t *testing.T) {
	for _, code := range []string{
		cleanProgram + `new aws.s3.Bucket("site", { acl: "public-read" });`,
		cleanProgram + `const sa = { publicAccess: true };`,
		cleanProgram + `const c = { PublicAccess: "enabled" };`,
	} {
		assert.Contains(t, Analyze(code).Issues, IssuePublicAccess, code)
	}
}

func TestAnalyzePasswords(t *testing.T) {
	plain := cleanProgram + `new aws.rds.Instance("db", { password: "hunter22" });`
	assert.Contains(t, Analyze(plain).Issues, IssuePlaintextPassword)

	routed := cleanProgram + `const cfg = new pulumi.Config();
new aws.rds.Instance("db", { password: cfg.requireSecret("dbPassword") });`
	assert.NotContains(t, Analyze(routed).Issues, IssuePlaintextPassword)

	commented := cleanProgram + "// password: set via console\n"
	assert.NotContains(t, Analyze(commented).Issues, IssuePlaintextPassword)
}
