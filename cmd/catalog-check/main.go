// Command catalog-check loads a catalog source, validates it, and prints
// its fingerprint and entity counts. Use it to verify a catalog database
// before pointing a server at it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/labsense-server/internal/catalog"
)

func main() {
	sqlitePath := flag.String("sqlite", "", "path to a SQLite catalog database (default: builtin catalog)")
	flag.Parse()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	logger.SetFormatter(&logrus.TextFormatter{})

	var source catalog.Source = catalog.BuiltinSource{}
	if *sqlitePath != "" {
		sqliteSource, err := catalog.NewSQLiteSource(*sqlitePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open catalog database: %v\n", err)
			os.Exit(1)
		}
		defer sqliteSource.Close()
		source = sqliteSource
	}

	cat, err := source.Load(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "catalog is invalid: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("fingerprint: %s\n", cat.Fingerprint())

	counts := cat.Counts()
	entities := make([]string, 0, len(counts))
	for entity := range counts {
		entities = append(entities, entity)
	}
	sort.Strings(entities)
	for _, entity := range entities {
		fmt.Printf("%-12s %d\n", entity, counts[entity])
	}
}
