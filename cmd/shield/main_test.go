package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CDPShield/internal/model"
	"CDPShield/internal/portfolio"
)

func runAnalyze(t *testing.T, args ...string) (*model.AnalysisResult, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs(append([]string{"analyze"}, args...))
	if err := root.Execute(); err != nil {
		return nil, err
	}
	var res model.AnalysisResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	return &res, nil
}

func TestAnalyzeCommand_Demo(t *testing.T) {
	res, err := runAnalyze(t)
	require.NoError(t, err)
	assert.Equal(t, 62, res.HealthScore.Overall)
	assert.Equal(t, 4, res.Insights.PositionCount)
}

func TestAnalyzeCommand_File(t *testing.T) {
	snap := portfolio.Assemble("file-user", nil, portfolio.Holdings{
		Wallet: []model.WalletBalance{{Symbol: "USDC", Amount: "100", Value: 100}},
	}, nil)
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	res, err := runAnalyze(t, "--file", path)
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Insights.TotalValue)

	_, err = runAnalyze(t, "-f", filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "read snapshot")
}

type step struct {
	name  string
	steps *[]string
}

func (s step) Stop() { *s.steps = append(*s.steps, "stop "+s.name) }
func (s step) Wait() { *s.steps = append(*s.steps, "wait "+s.name) }

func TestStopThenWait_StopsProducersFirst(t *testing.T) {
	var steps []string
	stopThenWait(step{"dispatcher", &steps}, step{"scheduler", &steps}, step{"monitor", &steps})
	assert.Equal(t, []string{"stop scheduler", "stop monitor", "wait dispatcher"}, steps)
}
