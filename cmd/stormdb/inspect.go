package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cuemby/stormdb/pkg/datastore"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect a database's catalog and tables",
}

var inspectTablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List every table in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		tables := db.GetAllTables()
		fmt.Printf("%-6s %-24s %-10s %-10s %s\n", "ID", "NAME", "ACCESS", "LIFECYCLE", "COLUMNS")
		for _, t := range tables {
			fmt.Printf("%-6d %-24s %-10s %-10s %d\n",
				t.ID, t.Name, accessString(t.Access), lifecycleString(t.Lifecycle), len(t.Columns))
		}
		return nil
	},
}

var inspectSchemaCmd = &cobra.Command{
	Use:   "schema NAME_OR_ID",
	Short: "Show one table's columns and indexes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		schema, err := findTable(db.GetAllTables(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Table: %s (id %d, %s, %s)\n", schema.Name, schema.ID, accessString(schema.Access), lifecycleString(schema.Lifecycle))
		fmt.Println("Columns (canonical order):")
		for i, c := range schema.Columns {
			tags := []string{}
			if c.PrimaryKey {
				tags = append(tags, "primary_key")
			}
			if c.HasSeq {
				tags = append(tags, fmt.Sprintf("sequence(id=%d)", c.SequenceID))
			}
			tagStr := ""
			if len(tags) > 0 {
				tagStr = " [" + strings.Join(tags, ", ") + "]"
			}
			fmt.Printf("  %d: %-20s %s%s\n", i, c.Name, c.Type.Kind, tagStr)
		}
		if len(schema.Indexes) > 0 {
			fmt.Println("Indexes:")
			for _, idx := range schema.Indexes {
				kind := "unique"
				if idx.Kind == datastore.IndexMulti {
					kind = "multi"
				}
				fmt.Printf("  %-20s %-8s columns=%v\n", idx.Name, kind, idx.Columns)
			}
		}
		return nil
	},
}

var inspectRowsCmd = &cobra.Command{
	Use:   "rows NAME_OR_ID",
	Short: "Dump every committed row of one table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		schema, err := findTable(db.GetAllTables(), args[0])
		if err != nil {
			return err
		}

		rows, err := db.Iter(schema.ID)
		if err != nil {
			return fmt.Errorf("iterate %s: %w", schema.Name, err)
		}
		count := 0
		for r := range rows {
			count++
			fields := make([]string, len(r.Value.Product))
			for i, f := range r.Value.Product {
				fields[i] = fmt.Sprintf("%s=%s", schema.Columns[i].Name, scalarString(f))
			}
			fmt.Printf("%s\n", strings.Join(fields, " "))
		}
		fmt.Printf("(%d rows)\n", count)
		return nil
	},
}

func init() {
	inspectCmd.AddCommand(inspectTablesCmd)
	inspectCmd.AddCommand(inspectSchemaCmd)
	inspectCmd.AddCommand(inspectRowsCmd)
}

func accessString(a datastore.Access) string {
	if a == datastore.AccessPrivate {
		return "private"
	}
	return "public"
}

func lifecycleString(l datastore.Lifecycle) string {
	if l == datastore.LifecycleSystem {
		return "system"
	}
	return "user"
}

func findTable(tables []datastore.TableSchema, nameOrID string) (datastore.TableSchema, error) {
	for _, t := range tables {
		if t.Name == nameOrID || fmt.Sprint(t.ID) == nameOrID {
			return t, nil
		}
	}
	return datastore.TableSchema{}, fmt.Errorf("no table named or with id %q", nameOrID)
}
