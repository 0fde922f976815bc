// tinybench fills each configured engine with random entries, reads
// them all back, runs mixed workloads and records per-op latency and
// heap footprint as CSV. With cycles > 1 the on-disk engines are closed
// and reopened between insert rounds, so persistence across restarts is
// exercised too.
package main

import (
	"bytes"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/tinystore-kv/tinystore/dbms/index"
	"github.com/tinystore-kv/tinystore/dbms/index/bolt"
	"github.com/tinystore-kv/tinystore/dbms/index/lsm"
	"github.com/tinystore-kv/tinystore/dbms/index/memindex"
	"github.com/tinystore-kv/tinystore/dbms/index/sqlitekv"
	"github.com/tinystore-kv/tinystore/dbms/index/tiny"
)

func main() {
	cfgPath := flag.String("config", "", "YAML benchmark configuration (optional)")
	flag.Parse()

	cfg, err := LoadConfig(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	f, err := os.Create(cfg.Output)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	w.Write([]string{"Structure", "Config", "TestType", "LatencyNs", "MemMB", "HeapObjects"})

	rng := rand.New(rand.NewSource(cfg.Seed))
	entries := GenEntries(rng, cfg.Entries, cfg.KeyLen, cfg.ValueLen)

	for _, name := range cfg.Engines {
		if err := runSuite(w, name, cfg, entries, rng); err != nil {
			log.Fatalf("%s: %v", name, err)
		}
	}

	w.Flush()
	fmt.Println("Benchmark complete. Data ready for analysis.")
}

func runSuite(w *csv.Writer, name string, cfg *Config, entries []Entry, rng *rand.Rand) error {
	fmt.Printf("Testing %s (%d entries, %d cycles)\n", name, len(entries), cfg.Cycles)
	confStr := fmt.Sprintf("%dk%dv", cfg.KeyLen, cfg.ValueLen)

	dir, err := os.MkdirTemp("", "tinybench-"+name+"-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	// The in-memory engine loses its data on Close, so it runs all
	// cycles on one open handle.
	reopen := name != "mem" && cfg.Cycles > 1

	st, err := openEngine(name, dir)
	if err != nil {
		return err
	}
	closed := false
	defer func() {
		if !closed {
			st.Close()
		}
	}()

	// 1. Insert in cycles, verifying after each one that every entry
	// inserted so far reads back.
	perCycle := len(entries) / cfg.Cycles
	var insertNs int64
	for c := 0; c < cfg.Cycles; c++ {
		lo, hi := c*perCycle, (c+1)*perCycle
		if c == cfg.Cycles-1 {
			hi = len(entries)
		}

		start := time.Now()
		for _, e := range entries[lo:hi] {
			if err := st.Put(e.Key, e.Value); err != nil {
				return fmt.Errorf("put: %w", err)
			}
		}
		insertNs += time.Since(start).Nanoseconds()

		if err := verify(st, entries[:hi]); err != nil {
			return err
		}

		if reopen && c < cfg.Cycles-1 {
			if err := st.Close(); err != nil {
				return fmt.Errorf("close: %w", err)
			}
			if st, err = openEngine(name, dir); err != nil {
				return err
			}
		}
	}

	stats := GetDetailedMem()
	Record(w, BenchResult{
		Name:      name,
		Config:    confStr,
		Operation: "Fill",
		LatencyNs: insertNs / int64(len(entries)),
		MemMB:     stats.AllocMB,
		Objects:   stats.HeapObjects,
	})

	// 2. Point lookups over the full key set.
	start := time.Now()
	if err := verify(st, entries); err != nil {
		return err
	}
	Record(w, BenchResult{name, confStr, "PointQuery",
		time.Since(start).Nanoseconds() / int64(len(entries)), GetDetailedMem().AllocMB, 0})

	// 3. Mixed workloads.
	start = time.Now()
	if err := ExecuteWorkload(st, entries, OLTP, cfg.MixedOps, rng); err != nil {
		return err
	}
	Record(w, BenchResult{name, confStr, "Workload_OLTP",
		time.Since(start).Nanoseconds() / int64(cfg.MixedOps), GetDetailedMem().AllocMB, 0})

	start = time.Now()
	if err := ExecuteWorkload(st, entries, OLAP, cfg.MixedOps, rng); err != nil {
		return err
	}
	Record(w, BenchResult{name, confStr, "Workload_OLAP",
		time.Since(start).Nanoseconds() / int64(cfg.MixedOps), GetDetailedMem().AllocMB, 0})

	closed = true
	return st.Close()
}

// verify reads every entry back and compares the value byte for byte.
func verify(st index.Store, entries []Entry) error {
	for _, e := range entries {
		v, err := st.Get(e.Key)
		if err != nil {
			return fmt.Errorf("get %q: %w", e.Key, err)
		}
		if !bytes.Equal(v, e.Value) {
			return fmt.Errorf("get %q: got %q, want %q", e.Key, v, e.Value)
		}
	}
	return nil
}

func openEngine(name, dir string) (index.Store, error) {
	switch name {
	case "tinystore":
		return tiny.Open(filepath.Join(dir, "tiny.db"))
	case "pebble":
		return lsm.Open(filepath.Join(dir, "pebble"))
	case "bolt":
		return bolt.Open(filepath.Join(dir, "bolt.db"))
	case "sqlite":
		return sqlitekv.Open(filepath.Join(dir, "kv.sqlite"))
	case "mem":
		return memindex.New(), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", name)
	}
}
