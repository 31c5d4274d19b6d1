package cli

import (
	"context"

	"github.com/calvinalkan/shmtable/pkg/ordhash"

	flag "github.com/spf13/pflag"
)

// CheckCmd returns the check command.
func CheckCmd(sess *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("check", flag.ContinueOnError),
		Usage: "check",
		Short: "Verify table structure",
		Long:  "Walk every slot, chain and list link and report the first inconsistency. Exits 1 on damage.",
		Exec: func(ctx context.Context, io *IO, _ []string) error {
			return sess.withTable(ctx, func(t *ordhash.Table) error {
				err := t.Check()
				if err != nil {
					return err
				}

				io.Println("ok")

				return nil
			})
		},
	}
}

// DumpCmd returns the dump command.
func DumpCmd(sess *session) *Command {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	fs.Bool("slots", false, "Print every slot including free ones")

	return &Command{
		Flags: fs,
		Usage: "dump [flags]",
		Short: "Print the raw table structure",
		Long:  "Print header counters, bucket chains and list order as slot indices. With --slots print every slot's links.",
		Exec: func(ctx context.Context, io *IO, _ []string) error {
			slots, _ := fs.GetBool("slots")

			return sess.withTable(ctx, func(t *ordhash.Table) error {
				if slots {
					return t.DumpSlots(io)
				}

				return t.Dump(io)
			})
		},
	}
}

// BucketsCmd returns the buckets command.
func BucketsCmd(sess *session) *Command {
	fs := flag.NewFlagSet("buckets", flag.ContinueOnError)
	fs.Bool("all", false, "Include empty buckets")

	return &Command{
		Flags: fs,
		Usage: "buckets [flags]",
		Short: "Show chain length per bucket",
		Long:  "Print the number of entries chained in each bucket, then a histogram of chain lengths.",
		Exec: func(ctx context.Context, io *IO, _ []string) error {
			all, _ := fs.GetBool("all")

			return sess.withTable(ctx, func(t *ordhash.Table) error {
				histogram := map[int]int{}
				longest := 0

				for b := range t.BucketCount() {
					n := t.ElemsInBucket(b)
					histogram[n]++
					longest = max(longest, n)

					if n > 0 || all {
						io.Printf("bucket %d: %d\n", b, n)
					}
				}

				io.Println()
				io.Println("# chain length histogram")

				for n := 0; n <= longest; n++ {
					if histogram[n] > 0 {
						io.Printf("len %d: %d buckets\n", n, histogram[n])
					}
				}

				return nil
			})
		},
	}
}
