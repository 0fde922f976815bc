package main

import (
	"fmt"
	"math/rand"

	"github.com/tinystore-kv/tinystore/dbms/index"
)

// Entry is one key/value pair of the generated workload.
type Entry struct {
	Key   []byte
	Value []byte
}

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func randAlnum(rng *rand.Rand, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphanumeric[rng.Intn(len(alphanumeric))]
	}
	return b
}

// GenEntries produces n entries with unique random alphanumeric keys of
// length kl and values of length vl.
func GenEntries(rng *rand.Rand, n, kl, vl int) []Entry {
	seen := make(map[string]struct{}, n)
	entries := make([]Entry, 0, n)
	for len(entries) < n {
		key := randAlnum(rng, kl)
		if _, dup := seen[string(key)]; dup {
			continue
		}
		seen[string(key)] = struct{}{}
		entries = append(entries, Entry{Key: key, Value: randAlnum(rng, vl)})
	}
	return entries
}

type WorkloadType string

const (
	OLTP WorkloadType = "OLTP (90/10)"
	OLAP WorkloadType = "OLAP (10/90)"
)

// ExecuteWorkload runs a mixed distribution of ops over already
// inserted entries.
func ExecuteWorkload(st index.Store, entries []Entry, wType WorkloadType, ops int, rng *rand.Rand) error {
	for i := 0; i < ops; i++ {
		choice := rng.Intn(100)
		e := entries[rng.Intn(len(entries))]

		read := false
		switch wType {
		case OLTP:
			read = choice < 90
		case OLAP:
			read = choice < 10
		}

		if read {
			if _, err := st.Get(e.Key); err != nil {
				return fmt.Errorf("workload get: %w", err)
			}
		} else {
			if err := st.Put(e.Key, e.Value); err != nil {
				return fmt.Errorf("workload put: %w", err)
			}
		}
	}
	return nil
}
