package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"open-rewrite/src/singleinstance"
)

type stressOptions struct {
	n           int
	mode        string
	deadline    time.Duration
	concurrency int
}

type triggerClient interface {
	Trigger(ctx context.Context, outputToStdout bool) (bool, string, error)
}

type tally struct {
	ok, busy, missed, failed atomic.Int32
}

func (t *tally) String() string {
	return fmt.Sprintf("ok=%d busy=%d missed=%d err=%d", t.ok.Load(), t.busy.Load(), t.missed.Load(), t.failed.Load())
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-trigger",
		Short:         "Stress test trigger delegation to a running resident",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.mode != "std" && opts.mode != "clip" {
				return fmt.Errorf("unknown mode %q, want std or clip", opts.mode)
			}
			_, err := runWithOptions(cmd.Context(), *opts, func() triggerClient { return singleinstance.NewClient() }, cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of clients to launch")
	cmd.Flags().StringVar(&opts.mode, "mode", "std", "std|clip: trigger-stdout or trigger (clipboard)")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "max clients in flight (0 = all at once)")

	return cmd
}

func runWithOptions(ctx context.Context, opts stressOptions, newClient func() triggerClient, out io.Writer) (*tally, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var t tally
	g, gctx := errgroup.WithContext(ctx)
	if opts.concurrency > 0 {
		g.SetLimit(opts.concurrency)
	}

	start := time.Now()
	for i := 0; i < opts.n; i++ {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, opts.deadline)
			defer cancel()
			delegated, _, err := newClient().Trigger(cctx, opts.mode == "std")
			t.record(delegated, err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return &t, err
	}
	fmt.Fprintf(out, "launched=%d %s elapsed=%s\n", opts.n, t.String(), time.Since(start))
	return &t, nil
}

func (t *tally) record(delegated bool, err error) {
	var remote *singleinstance.RemoteError
	switch {
	case errors.As(err, &remote) && strings.Contains(strings.ToLower(remote.Msg), "busy"):
		t.busy.Add(1)
	case err != nil:
		t.failed.Add(1)
	case !delegated:
		t.missed.Add(1)
	default:
		t.ok.Add(1)
	}
}
