package witness

import (
	"context"
	"time"

	"github.com/colorfulnotion/witgen/chunker"
	"github.com/colorfulnotion/witgen/demux"
	"github.com/colorfulnotion/witgen/log"
	"github.com/colorfulnotion/witgen/precompiles"
	"github.com/colorfulnotion/witgen/queue"
	"github.com/colorfulnotion/witgen/sorter"
	"github.com/colorfulnotion/witgen/types"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ResourceResult is the outcome of one resource queue.
type ResourceResult struct {
	Resource types.Resource     `json:"resource"`
	Requests int                `json:"requests"`
	Queue    queue.State        `json:"queue"`
	Memory   queue.State        `json:"memory"`
	Circuits []chunker.Instance `json:"circuits"`
	Elapsed  time.Duration      `json:"elapsed"`
}

// Result is the outcome of one run. Resources are listed in merge order;
// Memory is the merge of every per-resource memory queue.
type Result struct {
	RunID        string            `json:"run_id"`
	Demux        *demux.Commitment `json:"demux"`
	Deduplicated int               `json:"deduplicated"`
	// TransientSlots counts the (tx, slot) groups of the transient queue.
	TransientSlots int                  `json:"transient_slots"`
	Dropped        int                  `json:"dropped"`
	Resources      []*ResourceResult    `json:"resources"`
	Memory         queue.State          `json:"memory"`
	Elapsed        time.Duration        `json:"elapsed"`
	Geometry       types.GeometryConfig `json:"geometry"`
}

// Circuits returns the number of circuits over every resource.
func (r *Result) Circuits() int {
	n := 0
	for _, rr := range r.Resources {
		n += len(rr.Circuits)
	}
	return n
}

// Resource returns the result of res, nil when the run has none.
func (r *Result) Resource(res types.Resource) *ResourceResult {
	for _, rr := range r.Resources {
		if rr.Resource == res {
			return rr
		}
	}
	return nil
}

// Options tune a run.
type Options struct {
	Sorter sorter.Config
	// Check re-verifies the continuity and pop order of every chunked queue.
	Check bool
}

func DefaultOptions() Options {
	return Options{Sorter: sorter.DefaultConfig(), Check: true}
}

// Run turns a trace into circuit witnesses with the default options.
func Run(ctx context.Context, trace *Trace, geometry types.GeometryConfig) (*Result, error) {
	return RunWithOptions(ctx, trace, geometry, DefaultOptions())
}

// RunWithOptions demultiplexes the log, reconciles the storage queues and
// chunks every resource queue concurrently. The first error aborts the run.
func RunWithOptions(ctx context.Context, trace *Trace, geometry types.GeometryConfig, opts Options) (*Result, error) {
	start := time.Now()
	if err := geometry.Validate(); err != nil {
		return nil, err
	}
	runID := uuid.New().String()
	runLog := log.Root().ForRun(runID)
	runLog.Info(log.WitnessMonitoring, "run started", "events", len(trace.Events),
		"precompile_calls", len(trace.PrecompileWork), "decommits", len(trace.Decommits))

	queues, err := demux.Demux(trace.Events)
	if err != nil {
		return nil, err
	}
	commitment, err := demux.Commit(trace.Events, queues, int(geometry.CyclesPerLogDemuxer))
	if err != nil {
		return nil, err
	}

	reconciler := sorter.NewReconciler(opts.Sorter)
	_, deduplicated, err := reconciler.Reconcile(queues.Storage)
	if err != nil {
		return nil, err
	}
	transient := reconciler.ReconcileTransient(queues.TransientStorage)
	events, err := sorter.ReconcileLogs(queues.Events)
	if err != nil {
		return nil, err
	}
	messages, err := sorter.ReconcileLogs(queues.L1Messages)
	if err != nil {
		return nil, err
	}
	work := trace.precompileWork()

	resources := types.AllResources()
	results := make([]*ResourceResult, len(resources))
	g, gctx := errgroup.WithContext(ctx)
	launch := func(r types.Resource, run func(context.Context) (*ResourceResult, error)) {
		g.Go(func() error {
			rr, err := run(gctx)
			if err != nil {
				return err
			}
			results[r] = rr
			return nil
		})
	}
	limits := func(r types.Resource) chunker.Limits { return chunker.LimitsFor(&geometry, r) }

	launch(types.ResourceStorage, func(ctx context.Context) (*ResourceResult, error) {
		return chunkResource(ctx, precompiles.PassthroughWork(deduplicated), limits(types.ResourceStorage), precompiles.StorageSorter(), opts.Check)
	})
	launch(types.ResourceTransientStorage, func(ctx context.Context) (*ResourceResult, error) {
		return chunkResource(ctx, precompiles.PassthroughWork(transient), limits(types.ResourceTransientStorage), precompiles.TransientSorter(), opts.Check)
	})
	launch(types.ResourceEvents, func(ctx context.Context) (*ResourceResult, error) {
		return chunkResource(ctx, precompiles.PassthroughWork(events), limits(types.ResourceEvents), precompiles.LogSorter(types.ResourceEvents), opts.Check)
	})
	launch(types.ResourceL1Messages, func(ctx context.Context) (*ResourceResult, error) {
		return chunkResource(ctx, precompiles.PassthroughWork(messages), limits(types.ResourceL1Messages), precompiles.LogSorter(types.ResourceL1Messages), opts.Check)
	})
	single := map[types.Resource]chunker.Processor[precompiles.Request, precompiles.CallLog]{
		types.ResourceEcrecover:       precompiles.Ecrecover(),
		types.ResourceSecp256r1Verify: precompiles.Secp256r1Verify(),
		types.ResourceModexp:          precompiles.Modexp(),
		types.ResourceEcadd:           precompiles.Ecadd(),
		types.ResourceEcmul:           precompiles.Ecmul(),
	}
	for r, p := range single {
		launch(r, func(ctx context.Context) (*ResourceResult, error) {
			return chunkPrecompile(ctx, queues.Precompiles[r], work[r], limits(r), p, opts.Check)
		})
	}
	launch(types.ResourceKeccak256, func(ctx context.Context) (*ResourceResult, error) {
		r := types.ResourceKeccak256
		return chunkPrecompile(ctx, queues.Precompiles[r], work[r], limits(r), precompiles.Keccak256(), opts.Check)
	})
	launch(types.ResourceSha256, func(ctx context.Context) (*ResourceResult, error) {
		r := types.ResourceSha256
		return chunkPrecompile(ctx, queues.Precompiles[r], work[r], limits(r), precompiles.Sha256(), opts.Check)
	})
	launch(types.ResourceEcpairing, func(ctx context.Context) (*ResourceResult, error) {
		r := types.ResourceEcpairing
		return chunkPrecompile(ctx, queues.Precompiles[r], work[r], limits(r), precompiles.Ecpairing(), opts.Check)
	})
	launch(types.ResourceCodeDecommitter, func(ctx context.Context) (*ResourceResult, error) {
		return chunkResource(ctx, trace.Decommits, limits(types.ResourceCodeDecommitter), precompiles.CodeDecommitter(), opts.Check)
	})
	if err := g.Wait(); err != nil {
		runLog.Error(log.WitnessMonitoring, "run aborted", "err", err)
		return nil, err
	}

	res := &Result{
		RunID:          runID,
		Demux:          commitment,
		Deduplicated:   len(deduplicated),
		TransientSlots: len(sorter.TransientGroups(transient)),
		Dropped:        queues.Dropped,
		Resources:      results,
		Geometry:       geometry,
	}
	for i, rr := range results {
		if i == 0 {
			res.Memory = rr.Memory
			continue
		}
		res.Memory = queue.MergeStates(res.Memory, rr.Memory)
	}
	res.Elapsed = time.Since(start)

	for _, rr := range results {
		log.Summary(log.WitnessMonitoring, runID, rr.Resource.String(), summary(rr), rr.Elapsed)
	}
	runLog.Info(log.WitnessMonitoring, "run finished", "circuits", res.Circuits(),
		"demux_circuits", commitment.Circuits, "deduplicated", res.Deduplicated, "transient_slots", res.TransientSlots, "dropped", res.Dropped,
		"memory", res.Memory.Length, "elapsed", res.Elapsed)
	return res, nil
}

type resourceSummary struct {
	Resource string `json:"resource"`
	Requests int    `json:"requests"`
	Circuits int    `json:"circuits"`
	Memory   uint32 `json:"memory_queries"`
}

func summary(rr *ResourceResult) resourceSummary {
	return resourceSummary{
		Resource: rr.Resource.String(),
		Requests: rr.Requests,
		Circuits: len(rr.Circuits),
		Memory:   rr.Memory.Length,
	}
}

// chunkPrecompile checks the routed calls against the supplied work before
// chunking; the chunker then checks them one by one.
func chunkPrecompile[S any](ctx context.Context, calls []precompiles.Request, work []precompiles.Work, limits chunker.Limits, p chunker.Processor[precompiles.Request, S], check bool) (*ResourceResult, error) {
	if len(calls) != len(work) {
		log.Warn(log.WitnessMonitoring, "precompile work count mismatch", "resource", p.Resource(), "calls", len(calls), "work", len(work))
	}
	q, err := queue.FromItems(calls)
	if err != nil {
		return nil, err
	}
	return chunkQueue(ctx, q, work, limits, p, check)
}

// chunkResource builds the request queue from the work itself.
func chunkResource[Req comparable, S any](ctx context.Context, work []chunker.Work[Req], limits chunker.Limits, p chunker.Processor[Req, S], check bool) (*ResourceResult, error) {
	q := queue.New[Req]()
	for i := range work {
		if _, err := q.Push(work[i].Request); err != nil {
			return nil, err
		}
	}
	return chunkQueue(ctx, q, work, limits, p, check)
}

func chunkQueue[Req comparable, S any](ctx context.Context, q *queue.Queue[Req], work []chunker.Work[Req], limits chunker.Limits, p chunker.Processor[Req, S], check bool) (*ResourceResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := chunker.Chunk(q, work, limits, p)
	if err != nil {
		return nil, err
	}
	if check {
		if err := chunker.CheckContinuity(res.Witnesses); err != nil {
			return nil, err
		}
		if err := chunker.CheckRequests(res.Witnesses, q); err != nil {
			return nil, err
		}
	}
	return &ResourceResult{
		Resource: p.Resource(),
		Requests: q.Len(),
		Queue:    q.Snapshot(),
		Memory:   res.Memory.Snapshot(),
		Circuits: chunker.Instances(res.Witnesses),
		Elapsed:  time.Since(start),
	}, nil
}
