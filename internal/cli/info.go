package cli

import (
	"context"
	"fmt"

	"github.com/calvinalkan/shmtable/pkg/ordhash"

	flag "github.com/spf13/pflag"
)

// InfoCmd returns the info command.
func InfoCmd(sess *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("info", flag.ContinueOnError),
		Usage: "info",
		Short: "Show segment geometry and occupancy",
		Long:  "Print the geometry recorded in the segment header together with occupancy and chain statistics.",
		Exec: func(ctx context.Context, io *IO, _ []string) error {
			return sess.withTable(ctx, func(t *ordhash.Table) error {
				printInfo(io, sess.cfg.SegmentAbs, t)
				return nil
			})
		},
	}
}

func printInfo(io *IO, path string, t *ordhash.Table) {
	cfg := t.Config()
	stats := t.Stats()

	io.Field("segment", path)
	io.Field("id", t.SegmentID())
	io.Field("key_size", cfg.KeySize)
	io.Field("value_size", cfg.ValueSize)
	io.Field("capacity", cfg.Capacity)
	io.Field("hash", cfg.Hash)
	io.Field("region_bytes", cfg.RegionSize)
	io.Field("size", stats.Size)
	io.Field("lru", onOff(stats.LRU))
	io.Field("generation", stats.Generation)
	io.Field("used_buckets", stats.UsedBuckets)
	io.Field("longest_chain", stats.LongestChain)
	io.Field("mean_chain", fmt.Sprintf("%.2f", stats.MeanChain))
}

func onOff(b bool) string {
	if b {
		return "on"
	}

	return "off"
}
