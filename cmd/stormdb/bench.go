package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/stormdb/pkg/datastore"
	"github.com/cuemby/stormdb/pkg/relational"
	"github.com/cuemby/stormdb/pkg/sats"
)

// benchTableName's fixture table is shaped (a i32, b u64, c string):
// small scalar, wide scalar, variable-length string, covering the three
// row-cost regimes one table can.
const benchTableName = "bench_data"

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run the built-in microbenchmarks against a scratch database",
	Long: `bench creates a throwaway table shaped (a int32, b uint64, c
string) in the target data directory and measures one of three operations
against it: one-transaction-per-row inserts, one-transaction-for-all-rows
bulk inserts, or an unindexed full-table scan. Each subcommand reports
elapsed wall time and a rows/sec rate.`,
}

var benchInsertCmd = &cobra.Command{
	Use:   "insert ROWS",
	Short: "Insert ROWS rows, each in its own committed transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := parseRowCount(args[0])
		if err != nil {
			return err
		}
		db, schema, err := openBenchTable(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		start := time.Now()
		for i := 0; i < rows; i++ {
			if _, err := db.Insert(schema.ID, benchRow(schema, i)); err != nil {
				return fmt.Errorf("insert row %d: %w", i, err)
			}
		}
		reportRate("insert", rows, time.Since(start))
		return nil
	},
}

var benchInsertBulkCmd = &cobra.Command{
	Use:   "insert-bulk ROWS",
	Short: "Insert ROWS rows in a single committed transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := parseRowCount(args[0])
		if err != nil {
			return err
		}
		db, schema, err := openBenchTable(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		start := time.Now()
		tx, err := db.BeginMutTx(datastore.ExecutionContext{Workload: datastore.WorkloadInternal})
		if err != nil {
			return fmt.Errorf("begin bulk insert: %w", err)
		}
		for i := 0; i < rows; i++ {
			if _, err := tx.Insert(schema.ID, benchRow(schema, i)); err != nil {
				db.RollbackTx(tx)
				return fmt.Errorf("insert row %d: %w", i, err)
			}
		}
		if _, err := db.CommitTx(tx, true); err != nil {
			return fmt.Errorf("commit bulk insert: %w", err)
		}
		reportRate("insert-bulk", rows, time.Since(start))
		return nil
	},
}

var benchSelectCmd = &cobra.Command{
	Use:   "select-no-index",
	Short: "Scan every row of the benchmark table without using an index",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, schema, err := openBenchTable(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		start := time.Now()
		rows, err := db.Iter(schema.ID)
		if err != nil {
			return fmt.Errorf("scan %s: %w", benchTableName, err)
		}
		count := 0
		for range rows {
			count++
		}
		reportRate("select-no-index", count, time.Since(start))
		return nil
	},
}

func init() {
	benchCmd.AddCommand(benchInsertCmd)
	benchCmd.AddCommand(benchInsertBulkCmd)
	benchCmd.AddCommand(benchSelectCmd)
}

// openBenchTable opens (or creates) the benchmark fixture table, reusing
// it across runs against the same --data-dir so repeated runs skip table
// setup.
func openBenchTable(cmd *cobra.Command) (*relational.RelationalDB, datastore.TableSchema, error) {
	db, err := openDB(cmd)
	if err != nil {
		return nil, datastore.TableSchema{}, fmt.Errorf("open database: %w", err)
	}
	for _, t := range db.GetAllTables() {
		if t.Name == benchTableName {
			return db, t, nil
		}
	}
	schema, err := db.CreateTable(benchTableName, []datastore.ColumnDef{
		{Name: "a", Type: sats.Scalar(sats.KindI32)},
		{Name: "b", Type: sats.Scalar(sats.KindU64)},
		{Name: "c", Type: sats.Scalar(sats.KindString)},
	}, nil, datastore.AccessPublic)
	if err != nil {
		db.Close()
		return nil, datastore.TableSchema{}, fmt.Errorf("create %s: %w", benchTableName, err)
	}
	return db, schema, nil
}

// benchRow builds one fixture row in schema's canonical column order:
// CreateTable runs every table through BuildProduct's alignment-then-name
// reordering, so (a, b, c)'s declaration order is not its storage order
// (b and c, both 8-byte aligned, sort before a's 4-byte i32, b before c
// alphabetically).
func benchRow(schema datastore.TableSchema, i int) sats.Value {
	fields := map[string]sats.Value{
		"a": sats.I32Value(int32(i)),
		"b": sats.U64Value(uint64(i)),
		"c": sats.StringValue(fmt.Sprintf("row-%d", i)),
	}
	out := make([]sats.Value, len(schema.Columns))
	for i, c := range schema.Columns {
		out[i] = fields[c.Name]
	}
	return sats.ProductValue(out)
}

func parseRowCount(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n <= 0 {
		return 0, fmt.Errorf("rows must be a positive integer, got %q", s)
	}
	return n, nil
}

func reportRate(op string, rows int, elapsed time.Duration) {
	rate := float64(rows) / elapsed.Seconds()
	fmt.Printf("%s: %d rows in %s (%.0f rows/sec)\n", op, rows, elapsed, rate)
}
