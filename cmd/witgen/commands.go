package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/colorfulnotion/witgen/log"
	"github.com/colorfulnotion/witgen/storage"
	"github.com/colorfulnotion/witgen/trace"
	"github.com/colorfulnotion/witgen/types"
	"github.com/colorfulnotion/witgen/witness"
	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"
)

type runFlags struct {
	tracePath    string
	geometryPath string
	storePath    string
	outPath      string
	logLevel     string
	logFormat    string
	debug        string
	noCheck      bool
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate circuit witnesses for a trace",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			_, err := runWitgen(ctx, cmd.OutOrStdout(), f)
			return err
		},
	}
	cmd.Flags().StringVarP(&f.tracePath, "trace", "t", "", "Trace file (JSON)")
	cmd.Flags().StringVarP(&f.geometryPath, "geometry", "g", "", "Geometry file (YAML); defaults to the built-in geometry")
	cmd.Flags().StringVar(&f.storePath, "store", "", "Witness store directory; witnesses are not persisted when empty")
	cmd.Flags().StringVarP(&f.outPath, "out", "o", "", "Write circuits as JSON lines to this file")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "text", "Log format (text, json)")
	cmd.Flags().StringVar(&f.debug, "debug", "", "Debug modules to enable (comma separated, or all)")
	cmd.Flags().BoolVar(&f.noCheck, "no-check", false, "Skip the continuity check of chunked queues")
	_ = cmd.MarkFlagRequired("trace")
	return cmd
}

func runWitgen(ctx context.Context, out io.Writer, f runFlags) (*witness.Result, error) {
	if err := log.InitLoggerFormat(os.Stderr, f.logLevel, f.logFormat); err != nil {
		return nil, err
	}
	log.EnableModules(f.debug)

	geometry := types.DefaultGeometry()
	if f.geometryPath != "" {
		g, err := types.LoadGeometry(f.geometryPath)
		if err != nil {
			return nil, err
		}
		geometry = g
	}
	tr, err := trace.ReadTrace(f.tracePath)
	if err != nil {
		return nil, err
	}

	opts := witness.DefaultOptions()
	opts.Check = !f.noCheck
	res, err := witness.RunWithOptions(ctx, tr, geometry, opts)
	if err != nil {
		return nil, err
	}

	if f.storePath != "" {
		s, err := storage.NewWitnessStore(f.storePath, storage.DefaultCacheSize)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		if err := s.PutRun(res); err != nil {
			return nil, err
		}
	}
	if f.outPath != "" {
		w, err := trace.NewJSONLWriterFile(f.outPath)
		if err != nil {
			return nil, err
		}
		if err := w.WriteResult(res); err != nil {
			w.Close()
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	}
	printResult(out, res)
	return res, nil
}

func printResult(out io.Writer, res *witness.Result) {
	fmt.Fprintf(out, "run %s: %d circuits in %s\n", res.RunID, res.Circuits(), res.Elapsed)
	fmt.Fprintf(out, "  deduplicated storage: %d, transient slots: %d, dropped events: %d\n", res.Deduplicated, res.TransientSlots, res.Dropped)
	for _, rr := range res.Resources {
		if rr.Requests == 0 {
			continue
		}
		fmt.Fprintf(out, "  %-18s requests=%-6d circuits=%-4d memory=%s\n", rr.Resource, rr.Requests, len(rr.Circuits), rr.Memory)
	}
	fmt.Fprintf(out, "  memory %s\n", res.Memory)
}

func newSynthCmd() *cobra.Command {
	var (
		outPath string
		seed    uint64
		ops     int
	)
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write a synthetic trace",
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := witness.DemoTrace(seed, ops)
			if err != nil {
				return err
			}
			if err := trace.WriteTrace(outPath, tr); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d events, %d calls, %d decommits\n", outPath, len(tr.Events), len(tr.PrecompileWork), len(tr.Decommits))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "trace.json", "Output trace file")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Random seed")
	cmd.Flags().IntVar(&ops, "ops", 500, "Number of operations")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var (
		storePath string
		runID     string
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List stored runs or show the commitments of one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspect(cmd.OutOrStdout(), storePath, runID)
		},
	}
	cmd.Flags().StringVar(&storePath, "store", "", "Witness store directory")
	cmd.Flags().StringVar(&runID, "run", "", "Run id; lists runs when empty")
	_ = cmd.MarkFlagRequired("store")
	return cmd
}

func inspect(out io.Writer, storePath, runID string) error {
	if _, err := os.Stat(storePath); err != nil {
		return fmt.Errorf("store %s: %w", storePath, err)
	}
	s, err := storage.OpenWitnessStoreReadOnly(storePath)
	if err != nil {
		return err
	}
	defer s.Close()

	if runID == "" {
		runs, err := s.Runs()
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Fprintln(out, r)
		}
		return nil
	}
	rec, ok, err := s.GetRun(runID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("run %s", rec.RunID))
	tree.AddNode(fmt.Sprintf("memory %s", rec.Memory))
	tree.AddNode(fmt.Sprintf("deduplicated=%d dropped=%d", rec.Deduplicated, rec.Dropped))
	resources := tree.AddBranch("resources")
	for _, r := range types.AllResources() {
		c, ok, err := s.GetCommitment(runID, r)
		if err != nil {
			return err
		}
		if !ok || c.Circuits == 0 {
			continue
		}
		br := resources.AddBranch(fmt.Sprintf("%s circuits=%d", r, c.Circuits))
		br.AddNode(fmt.Sprintf("requests %s", c.Requests))
		br.AddNode(fmt.Sprintf("memory %s", c.Memory))
	}
	fmt.Fprint(out, tree.String())
	return nil
}

func newDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <left.jsonl> <right.jsonl>",
		Short: "Compare two circuit dumps",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := diffDumps(cmd.OutOrStdout(), args[0], args[1])
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%d circuits differ", n)
			}
			return nil
		},
	}
}

func readDump(path string) ([]trace.RawCircuitRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return trace.ReadRecords(f)
}

func diffDumps(out io.Writer, left, right string) (int, error) {
	a, err := readDump(left)
	if err != nil {
		return 0, err
	}
	b, err := readDump(right)
	if err != nil {
		return 0, err
	}
	diffs, err := trace.DiffRecords(a, b)
	if err != nil {
		return 0, err
	}
	for _, d := range diffs {
		fmt.Fprintln(out, d)
	}
	if len(diffs) == 0 {
		fmt.Fprintf(out, "%d circuits match\n", len(a))
	}
	return len(diffs), nil
}
