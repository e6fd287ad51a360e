package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const extract = `Edipi Rank Name From To Type Average
1000000001 SGT ALPHA A 2024 01 01 2024 12 31 AN 3.00
1000000002 SGT BRAVO B 2024 01 01 2024 12 31 AN 5.00
1000000003 CAPT CHARLIE C 2024 02 01 2024 05 31 TR 4.00`

func writeExtract(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "extract.txt")
	require.NoError(t, os.WriteFile(path, []byte(extract), 0o600))
	return path
}

func TestParseFlags(t *testing.T) {
	var stderr bytes.Buffer

	_, err := parseFlags(nil, &stderr)
	assert.ErrorIs(t, err, errUsage)

	_, err = parseFlags([]string{"-format", "xml", "x.txt"}, &stderr)
	assert.Error(t, err)

	o, err := parseFlags([]string{"-adverse-types", "dc, en", "x.txt"}, &stderr)
	require.NoError(t, err)
	assert.Equal(t, "x.txt", o.file)
	assert.Equal(t, []string{"DC", "EN"}, splitTypes(o.adverse))
	assert.InDelta(t, 0.1, o.tolerance, 1e-9)
}

func TestParseFlagsFromEnv(t *testing.T) {
	t.Setenv("FITREP_FORMAT", "json")
	t.Setenv("FITREP_MISMATCH_TOLERANCE", "0.5")

	o, err := parseFlags([]string{"x.txt"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "json", o.format)
	assert.InDelta(t, 0.5, o.tolerance, 1e-9)
}

func TestRunText(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-file", writeExtract(t)}, nil, &stdout, &stderr)
	require.NoError(t, err)

	out := stdout.String()
	assert.Contains(t, out, "imported 3, duplicates 0, skipped 1")
	assert.Contains(t, out, "GRADE")
	assert.Contains(t, out, "E-5")
	assert.Contains(t, out, "O-3")
}

func TestRunJSONFromStdin(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-format", "json", "-"}, strings.NewReader(extract), &stdout, &stderr)
	require.NoError(t, err)

	var got struct {
		Summary struct {
			Imported int      `json:"imported"`
			Grades   []string `json:"grades"`
		} `json:"summary"`
		Cohorts []struct {
			Grade   string  `json:"grade"`
			Members int     `json:"members"`
			Mean    float64 `json:"average"`
		} `json:"cohorts"`
	}
	require.NoError(t, jsoniter.Unmarshal(stdout.Bytes(), &got))
	assert.Equal(t, 3, got.Summary.Imported)
	require.Len(t, got.Cohorts, 2)

	for _, c := range got.Cohorts {
		if c.Grade == "E-5" {
			assert.Equal(t, 2, c.Members)
			assert.InDelta(t, 4.0, c.Mean, 0.01)
		}
	}
}

type cohortOutput struct {
	Summary struct {
		Imported   int `json:"imported"`
		Duplicates int `json:"duplicates"`
	} `json:"summary"`
	Cohorts []struct {
		Grade   string `json:"grade"`
		Members int    `json:"members"`
	} `json:"cohorts"`
}

func runJSON(t *testing.T, args ...string) cohortOutput {
	t.Helper()
	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), append([]string{"-format", "json"}, args...), nil, &stdout, &bytes.Buffer{}))

	var got cohortOutput
	require.NoError(t, jsoniter.Unmarshal(stdout.Bytes(), &got))
	return got
}

func members(out cohortOutput) map[string]int {
	m := map[string]int{}
	for _, c := range out.Cohorts {
		m[c.Grade] = c.Members
	}
	return m
}

func TestRunMergesIntoDataFile(t *testing.T) {
	data := filepath.Join(t.TempDir(), "profiles.json")
	path := writeExtract(t)

	require.NoError(t, run(context.Background(), []string{"-data-file", data, path}, nil, &bytes.Buffer{}, &bytes.Buffer{}))
	_, err := os.Stat(data)
	require.NoError(t, err)

	again := runJSON(t, "-data-file", data, path)
	assert.Equal(t, 0, again.Summary.Imported)
	assert.Equal(t, 3, again.Summary.Duplicates)
	assert.Equal(t, 2, members(again)["E-5"])
	assert.Equal(t, 1, members(again)["O-3"])

	next := filepath.Join(t.TempDir(), "next.txt")
	require.NoError(t, os.WriteFile(next, []byte("1000000004 SGT DELTA D 2025 01 01 2025 12 31 AN 4.00"), 0o600))

	merged := runJSON(t, "-data-file", data, next)
	assert.Equal(t, 1, merged.Summary.Imported)
	assert.Equal(t, 3, members(merged)["E-5"])
	assert.Equal(t, 1, members(merged)["O-3"])
}

func TestRunMissingFile(t *testing.T) {
	err := run(context.Background(), []string{filepath.Join(t.TempDir(), "nope.txt")}, nil, &bytes.Buffer{}, &bytes.Buffer{})
	assert.Error(t, err)
}
