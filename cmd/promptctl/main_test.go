package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SonianW/MetaPrompter/internal/llm"
)

type echoModel struct {
	reply string
	err   error
	got   []llm.Message
}

func (m *echoModel) Invoke(_ context.Context, msgs []llm.Message) (string, error) {
	m.got = msgs
	return m.reply, m.err
}

func run(t *testing.T, m *echoModel, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(func(llm.Config) (llm.ChatModel, error) { return m, nil })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTemplates(t *testing.T) {
	out, err := run(t, &echoModel{}, "", "templates")
	require.NoError(t, err)
	assert.Contains(t, out, "prompt_generation")
	assert.Contains(t, out, "prompt_optimization")
	assert.Contains(t, out, "prompt_evaluation")
	assert.Contains(t, out, "requirement")
}

func TestOptimize_ReadsStdin(t *testing.T) {
	m := &echoModel{reply: "Write a haiku about autumn leaves."}
	out, err := run(t, m, "haiku\n", "optimize", "-")
	require.NoError(t, err)
	assert.Equal(t, "Write a haiku about autumn leaves.\n", out)
	require.NotEmpty(t, m.got)
	assert.Contains(t, m.got[len(m.got)-1].Content, "haiku")
}

func TestGenerate_JoinsArgs(t *testing.T) {
	m := &echoModel{reply: "You are a SQL tutor."}
	out, err := run(t, m, "", "generate", "teach", "SQL")
	require.NoError(t, err)
	assert.Equal(t, "You are a SQL tutor.\n", out)
	assert.Contains(t, m.got[len(m.got)-1].Content, "teach SQL")
}

func TestFailedResultIsAnError(t *testing.T) {
	_, err := run(t, &echoModel{err: errors.New("quota exceeded")}, "", "evaluate", "Describe a cat.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invocation_failed")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestCompare_RequiresTask(t *testing.T) {
	_, err := run(t, &echoModel{reply: "B"}, "", "compare", "a", "b")
	assert.Error(t, err)

	out, err := run(t, &echoModel{reply: "B wins"}, "", "compare", "a", "b", "--task", "summaries")
	require.NoError(t, err)
	assert.Equal(t, "B wins\n", out)
}

func TestToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	user := "4b0c7d3e-5f7a-4e69-9a51-0f4c2f8f6b1d"

	out, err := run(t, &echoModel{}, "", "token", "--user", user)
	require.NoError(t, err)

	parsed, err := jwt.Parse(strings.TrimSpace(out), func(*jwt.Token) (interface{}, error) {
		return []byte("cli-secret"), nil
	})
	require.NoError(t, err)
	sub, err := parsed.Claims.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, user, sub)
}

func TestToken_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := run(t, &echoModel{}, "", "token")
	assert.Error(t, err)
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := run(t, &echoModel{}, "", "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}
