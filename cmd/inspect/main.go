package main

import (
	"flag"
	"fmt"
	"os"

	"croptalk/pkg/logger"
	"croptalk/pkg/store"
)

// inspect dumps raw keys (and optionally values) from a croptalk store.
// Run it against a closed database only; pebble takes an exclusive lock.
func main() {
	var dbPath string
	var prefix string
	var values bool
	flag.StringVar(&dbPath, "db", "", "path to the pebble database")
	flag.StringVar(&prefix, "prefix", "", "key prefix to list (empty for all)")
	flag.BoolVar(&values, "values", false, "print values alongside keys")
	flag.Parse()

	if dbPath == "" {
		fmt.Fprintln(os.Stderr, "--db required")
		os.Exit(2)
	}

	logger.Init()
	if err := store.Open(dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	keys, err := store.ListKeys(prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list keys: %v\n", err)
		os.Exit(1)
	}
	for _, k := range keys {
		if !values {
			fmt.Println(k)
			continue
		}
		v, err := store.GetKey(k)
		if err != nil {
			fmt.Printf("%s\t<error: %v>\n", k, err)
			continue
		}
		fmt.Printf("%s\t%s\n", k, v)
	}
}
