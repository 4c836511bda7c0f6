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

	"github.com/ja7ad/powerest/pkg/power"
	"github.com/ja7ad/powerest/pkg/types"
)

func fixtureOpts(t *testing.T) opts {
	t.Helper()
	dir := t.TempDir()
	return opts{
		descriptor: filepath.FromSlash("../../testdata/gemini/device.yaml"),
		design:     filepath.FromSlash("../../testdata/gemini/design.yaml"),
		csvPath:    filepath.Join(dir, "out", "rows.csv"),
		jsonPath:   filepath.Join(dir, "out", "report.json"),
		htmlPath:   filepath.Join(dir, "out", "report.html"),
		pretty:     true,
	}
}

func TestRun_WritesReports(t *testing.T) {
	o := fixtureOpts(t)
	var out bytes.Buffer
	require.NoError(t, run(&out, specFlags(&o), o))

	assert.Contains(t, out.String(), "gemini-1vg28")
	assert.Contains(t, out.String(), "Summary")

	csvData, err := os.ReadFile(o.csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	assert.Equal(t, "submodule,name,block_w,interconnect_w,percentage,messages", lines[0])
	assert.Len(t, lines, 1+4+2+2+3+3+4)

	var rep report
	data, err := os.ReadFile(o.jsonPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, "video-pipeline", rep.Design)
	assert.Equal(t, 8.5, rep.Specification.ThetaJA)
	assert.Greater(t, rep.Output.Worst.Total, 0.0)

	html, err := os.ReadFile(o.htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Power Report")
	t.Log(out.String())
}

func TestRun_FlagsOverrideDesignSpecification(t *testing.T) {
	o := fixtureOpts(t)
	o.jsonPath = filepath.Join(t.TempDir(), "r.json")
	o.csvPath, o.htmlPath = "", ""
	o.pretty = false

	fs := specFlags(&o)
	require.NoError(t, fs.Parse([]string{"--theta-ja", "3", "--ambient-worst", "70"}))

	var out bytes.Buffer
	require.NoError(t, run(&out, fs, o))

	var rep report
	data, err := os.ReadFile(o.jsonPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, 3.0, rep.Specification.ThetaJA)
	assert.Equal(t, types.Celsius(70), rep.Specification.AmbientWorst)
	assert.Equal(t, 3.0, rep.Specification.PowerBudget, "unset flags keep the design value")
	assert.Contains(t, out.String(), "# typical total")
}

func TestApplySpecFlags_NoneSet(t *testing.T) {
	var o opts
	fs := specFlags(&o)
	s := power.DefaultSpecification()
	s.ThetaJA = 4
	assert.Equal(t, s, applySpecFlags(fs, o, s))
}

func TestRun_MissingDescriptor(t *testing.T) {
	o := opts{descriptor: "nope.yaml"}
	assert.Error(t, run(&bytes.Buffer{}, specFlags(&o), o))
}
