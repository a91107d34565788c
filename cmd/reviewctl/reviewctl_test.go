package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const agreeingRequest = `{
  "subject": {"repository": "acme/api", "revision": "abc123"},
  "outputs": [
    {"agent_type": "security_analysis", "success": true, "confidence": 0.9, "risk_level": "low", "findings": [], "metadata": {}},
    {"agent_type": "code_quality", "success": true, "confidence": 0.8, "risk_level": "low", "findings": [], "metadata": {}}
  ],
  "conflicts": []
}`

const noSecurityRequest = `{
  "subject": {"repository": "acme/api"},
  "outputs": [
    {"agent_type": "security_analysis", "success": false, "error_message": "timeout", "findings": [], "metadata": {}},
    {"agent_type": "code_quality", "success": true, "confidence": 0.95, "risk_level": "none", "findings": [], "metadata": {}}
  ]
}`

type evaluated struct {
	Escalated      bool   `json:"escalated"`
	Recommendation string `json:"recommendation"`
	Gate           struct {
		Defer bool   `json:"defer"`
		Rule  string `json:"rule"`
	} `json:"gate"`
	Health struct {
		TotalAgents  int    `json:"total_agents"`
		HealthStatus string `json:"health_status"`
	} `json:"health"`
}

func writeRequest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "request.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEvaluate_Agreeing(t *testing.T) {
	out, err := execute(t, "", "evaluate", "-f", writeRequest(t, agreeingRequest))
	require.NoError(t, err)

	var res evaluated
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Escalated)
	assert.False(t, res.Gate.Defer)
	assert.NotEqual(t, "defer", res.Recommendation)
	assert.Equal(t, 2, res.Health.TotalAgents)
}

func TestEvaluate_MissingCriticalDefers(t *testing.T) {
	path := writeRequest(t, noSecurityRequest)

	out, err := execute(t, "", "evaluate", "-f", path)
	require.NoError(t, err)

	var res evaluated
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Escalated)
	assert.Equal(t, "missing_critical_agents", res.Gate.Rule)
	assert.Equal(t, "defer", res.Recommendation)

	_, err = execute(t, "", "evaluate", "-f", path, "--fail-on-defer")
	assert.ErrorIs(t, err, errDeferred)

	// Без security в списке критичных шлюз пропускает
	out, err = execute(t, "", "evaluate", "-f", path, "--critical", "code_quality")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Gate.Defer)
}

func TestEvaluate_ThresholdFromFlag(t *testing.T) {
	out, err := execute(t, "", "evaluate", "-f", writeRequest(t, agreeingRequest), "--threshold", "0.95")
	require.NoError(t, err)

	var res evaluated
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Gate.Defer)
	assert.Equal(t, "low_confidence", res.Gate.Rule)
}

func TestHealth_FromStdin(t *testing.T) {
	out, err := execute(t, noSecurityRequest, "health", "-f", "-")
	require.NoError(t, err)

	var h struct {
		TotalAgents      int `json:"total_agents"`
		SuccessfulAgents int `json:"successful_agents"`
		FailedAgents     int `json:"failed_agents"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &h))
	assert.Equal(t, 2, h.TotalAgents)
	assert.Equal(t, 1, h.SuccessfulAgents)
	assert.Equal(t, 1, h.FailedAgents)
}

func TestErrors(t *testing.T) {
	_, err := execute(t, "", "evaluate")
	assert.Error(t, err, "--file is required")

	_, err = execute(t, "{not json", "evaluate", "-f", "-")
	assert.Error(t, err)

	_, err = execute(t, "", "evaluate", "-f", writeRequest(t, agreeingRequest), "--weights", "security_analysis=abc")
	assert.Error(t, err)

	_, err = execute(t, "", "health", "-f", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
