package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/colorfulnotion/witgen/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthRunInspect(t *testing.T) {
	dir := t.TempDir()
	tracePath := filepath.Join(dir, "trace.json")
	storePath := filepath.Join(dir, "store")
	outPath := filepath.Join(dir, "circuits.jsonl")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"synth", "--out", tracePath, "--seed", "9", "--ops", "100"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "wrote")

	out.Reset()
	res, err := runWitgen(context.Background(), &out, runFlags{
		tracePath: tracePath,
		storePath: storePath,
		outPath:   outPath,
		logLevel:  "error",
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), res.RunID)

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()
	recs, err := trace.ReadRecords(f)
	require.NoError(t, err)
	assert.Len(t, recs, res.Circuits())

	out.Reset()
	require.NoError(t, inspect(&out, storePath, ""))
	assert.Equal(t, res.RunID+"\n", out.String())

	out.Reset()
	require.NoError(t, inspect(&out, storePath, res.RunID))
	assert.Contains(t, out.String(), "memory=")

	require.Error(t, inspect(&out, storePath, "missing"))
	require.Error(t, inspect(&out, filepath.Join(dir, "nostore"), ""))
}

func TestRunGeometryFile(t *testing.T) {
	dir := t.TempDir()
	tracePath := filepath.Join(dir, "trace.json")
	geomPath := filepath.Join(dir, "geometry.yaml")

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"synth", "--out", tracePath, "--seed", "2", "--ops", "40"})
	require.NoError(t, root.Execute())

	require.NoError(t, os.WriteFile(geomPath, []byte("bogus_field: 1\n"), 0o644))
	_, err := runWitgen(context.Background(), &bytes.Buffer{}, runFlags{tracePath: tracePath, geometryPath: geomPath, logLevel: "error"})
	require.Error(t, err)

	_, err = runWitgen(context.Background(), &bytes.Buffer{}, runFlags{tracePath: tracePath, logLevel: "loud"})
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "witgen dev")
}

func TestDiffDumps(t *testing.T) {
	dir := t.TempDir()
	tracePath := filepath.Join(dir, "trace.json")
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"synth", "--out", tracePath, "--seed", "4", "--ops", "60"})
	require.NoError(t, root.Execute())

	dump := func(name string) string {
		out := filepath.Join(dir, name+".jsonl")
		_, err := runWitgen(context.Background(), &bytes.Buffer{}, runFlags{tracePath: tracePath, outPath: out, logLevel: "error"})
		require.NoError(t, err)
		return out
	}
	a := dump("a")
	b := dump("b")

	var out bytes.Buffer
	n, err := diffDumps(&out, a, b)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, out.String(), "circuits match")

	_, err = diffDumps(&out, a, filepath.Join(dir, "absent.jsonl"))
	require.Error(t, err)
}
