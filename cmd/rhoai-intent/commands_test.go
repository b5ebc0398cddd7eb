package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/rhoai-intent/internal/models"
)

func parse(t *testing.T, args ...string) parseOutput {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{"parse"}, args...))
	require.NoError(t, cmd.Execute())

	var got parseOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	return got
}

func TestParseCmd(t *testing.T) {
	got := parse(t, "Scale", "sentiment-analysis", "to", "5", "replicas")
	assert.Equal(t, models.ActionScaleModel, got.Intent.Action)
	assert.Equal(t, "sentiment-analysis", got.Intent.Parameters.ModelName)
	assert.True(t, got.Intent.RequiresConfirmation)
	assert.Empty(t, got.ValidationError)
}

func TestParseCmd_Context(t *testing.T) {
	got := parse(t, "--context", "The sentiment-analysis model is running with 2 replicas.", "Scale it to 5 replicas")
	assert.Equal(t, "sentiment-analysis", got.Intent.Parameters.ModelName)
}

func TestParseCmd_ValidationError(t *testing.T) {
	got := parse(t, "Delete my model")
	assert.Equal(t, models.ActionDeleteModel, got.Intent.Action)
	assert.Equal(t, "Model deletion requires a model name", got.ValidationError)
}

func TestParseCmd_Empty(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"parse", "  "})
	assert.EqualError(t, cmd.Execute(), "Query cannot be empty")
}
