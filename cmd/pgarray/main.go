// Command pgarray checks array-column declarations, renders their DDL, and
// loads or dumps table data through the declared fields.
//
//	pgarray check -c articles.yaml
//	pgarray ddl   -c articles.yaml --kind mysql
//	pgarray load  -c articles.yaml --input articles.csv
//	pgarray dump  -c articles.yaml --output articles.jsonl
package main

import (
	"github.com/spf13/cobra"

	_ "pgarray/internal/storage/all"
)

func main() {
	cobra.CheckErr(newRootCmd().Execute())
}
