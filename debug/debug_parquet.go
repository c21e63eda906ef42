package main

import (
	"fmt"
	"log"
	"os"

	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet/file"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"
)

func main() {
	path := "../examples/output/graph.parquet"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	fmt.Printf("Inspecting graph export %s\n", path)

	// Open the parquet file
	reader, err := file.OpenParquetFile(path, false)
	if err != nil {
		log.Fatalf("Failed to open file: %v", err)
	}

	fmt.Printf("File has %d rows\n", reader.NumRows())
	fmt.Printf("File has %d row groups\n", reader.NumRowGroups())

	// Print schema info
	schema := reader.MetaData().Schema
	fmt.Printf("Schema has %d columns:\n", schema.NumColumns())
	for i := 0; i < schema.NumColumns(); i++ {
		col := schema.Column(i)
		fmt.Printf("  Column %d: %s (%s)\n", i, col.Name(), col.PhysicalType())
	}

	// Create Arrow reader
	arrowReader, err := pqarrow.NewFileReader(reader, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		log.Fatalf("Failed to create arrow reader: %v", err)
	}

	// Get Arrow schema
	arrowSchema, err := arrowReader.Schema()
	if err != nil {
		log.Fatalf("Failed to get arrow schema: %v", err)
	}

	fmt.Printf("Arrow schema has %d fields:\n", len(arrowSchema.Fields()))
	for i := 0; i < len(arrowSchema.Fields()); i++ {
		field := arrowSchema.Field(i)
		fmt.Printf("  Field %d: %s (%s)\n", i, field.Name, field.Type)
	}

	// Try to read all row groups
	for i := 0; i < reader.NumRowGroups(); i++ {
		fmt.Printf("Row group %d has %d rows\n", i, reader.RowGroup(i).NumRows())
	}
}
