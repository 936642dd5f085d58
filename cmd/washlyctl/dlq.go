package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"washly/internal/config"
	"washly/internal/infra"
	"washly/internal/worker"

	"github.com/google/subcommands"
)

type dlqCmd struct {
	n       int64
	requeue int
}

func (*dlqCmd) Name() string     { return "dlq" }
func (*dlqCmd) Synopsis() string { return "shows failed closing-report jobs" }
func (*dlqCmd) Usage() string {
	return `dlq [-n <count>] [-requeue <count>]

Prints the size of the closing-report dead letter queue and its latest entries.
With -requeue, moves that many of the oldest entries back to the job queue
first.
`
}
func (c *dlqCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.n, "n", 10, "How many of the latest entries to print.")
	f.IntVar(&c.requeue, "requeue", 0, "How many of the oldest entries to move back to the job queue.")
}

func (c *dlqCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return subcommands.ExitFailure
	}
	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to redis: %v\n", err)
		return subcommands.ExitFailure
	}
	defer rdb.Close()

	if c.requeue > 0 {
		moved, err := worker.DLQRequeue(ctx, rdb, worker.QueueSessionReports, c.requeue)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error requeueing (moved %d): %v\n", moved, err)
			return subcommands.ExitFailure
		}
		fmt.Printf("requeued %d jobs\n", moved)
	}

	total, err := worker.DLQLength(ctx, rdb, worker.QueueSessionReports)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("%s%s: %d entries\n", worker.DLQPrefix, worker.QueueSessionReports, total)
	if total == 0 || c.n <= 0 {
		return subcommands.ExitSuccess
	}

	entries, err := worker.DLQPeek(ctx, rdb, worker.QueueSessionReports, c.n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	for _, e := range entries {
		fmt.Printf("  %s  session=%s  attempts=%d  %s\n", e.FailedAt.Format(time.RFC3339), e.SessionID(), e.Job.Attempts, e.Reason)
	}
	return subcommands.ExitSuccess
}
