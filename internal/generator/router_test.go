package generator

import (
	"context"
	"errors"
	"testing"

	appErr "github.com/instanti8/engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBackend struct {
	mock.Mock
	name string
}

func (m *mockBackend) Name() string { return m.name }

func (m *mockBackend) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type gatedBackend struct {
	mockBackend
	available bool
}

func (g *gatedBackend) Available() bool { return g.available }

type backedBackend struct {
	mockBackend
	backup Backend
}

func (b *backedBackend) Backup() Backend { return b.backup }

func TestRouterReturnsFirstSuccess(t *testing.T) {
	first := &mockBackend{name: "azure"}
	second := &mockBackend{name: "vertex"}
	first.On("Generate", mock.Anything, "S3 bucket for logs").Return("```typescript\nimport * as aws from \"@pulumi/aws\";\n```", nil)

	code, err := NewRouter(nil, first, second).Generate(context.Background(), "S3 bucket for logs")
	require.NoError(t, err)
	assert.Equal(t, `import * as aws from "@pulumi/aws";`, code)
	second.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestRouterFallsThroughInOrder(t *testing.T) {
	first := &mockBackend{name: "azure"}
	second := &mockBackend{name: "vertex"}
	third := &mockBackend{name: "bedrock"}
	first.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("quota"))
	second.On("Generate", mock.Anything, mock.Anything).Return("   ", nil)
	third.On("Generate", mock.Anything, mock.Anything).Return("export const ok = true;", nil)

	code, err := NewRouter(nil, first, second, third).Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "export const ok = true;", code)
	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestRouterRetriesBackupOnce(t *testing.T) {
	backup := &mockBackend{name: "azure-backup"}
	backup.On("Generate", mock.Anything, mock.Anything).Return("export const b = 1;", nil).Once()
	primary := &backedBackend{mockBackend: mockBackend{name: "azure"}, backup: backup}
	primary.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("401")).Once()
	next := &mockBackend{name: "vertex"}

	code, err := NewRouter(nil, primary, next).Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "export const b = 1;", code)
	next.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestRouterSkipsUnavailableBackends(t *testing.T) {
	gated := &gatedBackend{mockBackend: mockBackend{name: "bedrock"}, available: false}
	last := &mockBackend{name: "groq"}
	last.On("Generate", mock.Anything, mock.Anything).Return("export const g = 1;", nil)

	_, err := NewRouter(nil, gated, last).Generate(context.Background(), "p")
	require.NoError(t, err)
	gated.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestRouterExhaustedCarriesLastError(t *testing.T) {
	a := &mockBackend{name: "azure"}
	b := &mockBackend{name: "vertex"}
	c := &mockBackend{name: "bedrock"}
	a.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("azure down"))
	b.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("vertex down"))
	c.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("bedrock throttled"))

	_, err := NewRouter(nil, a, b, c).Generate(context.Background(), "p")
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeGenerationExhausted))
	assert.Contains(t, err.Error(), "bedrock throttled")
}

func TestRouterNothingAvailable(t *testing.T) {
	gated := &gatedBackend{mockBackend: mockBackend{name: "bedrock"}}

	_, err := NewRouter(nil, gated).Generate(context.Background(), "p")
	assert.True(t, appErr.IsCode(err, appErr.CodeGenerationExhausted))
	assert.Contains(t, err.Error(), "no generation backend available")
}

func TestExtractProgram(t *testing.T) {
	code, err := ExtractProgram("```ts\r\nconst a = 1;\r\n```\n")
	require.NoError(t, err)
	assert.Equal(t, "const a = 1;", code)

	_, err = ExtractProgram("```\n```")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
