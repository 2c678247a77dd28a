package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/orneryd/graphkernel/pkg/fixture"
	"github.com/orneryd/graphkernel/pkg/kernel"
	"github.com/orneryd/graphkernel/pkg/storage"
)

func newLoadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load <fixture.yaml>",
		Short: "Load a YAML fixture into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := fixture.LoadFile(a.store, args[0], a.log)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "loaded %d nodes, %d relationships, %d indexes (commit %d)\n",
				len(res.Nodes), len(res.Relationships), len(res.Indexes), res.Sequence)
			return nil
		},
	}
}

func newScanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "scan nodes|relationships",
		Short:     "List visible entity ids",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"nodes", "relationships"},
		RunE: func(cmd *cobra.Command, args []string) error {
			r := a.reader()
			var seq *kernel.IDSequence
			switch args[0] {
			case "nodes":
				if cmd.Flags().Changed("label") {
					label, _ := cmd.Flags().GetInt32("label")
					seq = r.NodesWithLabel(storage.LabelID(label))
				} else {
					seq = r.ScanAllNodes()
				}
			case "relationships":
				seq = r.ScanAllRelationships()
			default:
				return fmt.Errorf("unknown entity kind %q (want nodes or relationships)", args[0])
			}
			return a.printIDs(seq)
		},
	}
	cmd.Flags().Int32("label", 0, "Only nodes carrying this label")
	return cmd
}

func newSeekCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seek",
		Short: "Seek an index with a predicate",
		Long: `Seek an index with a predicate. Predicates:

  exact=<value>        range=[lo,hi) (either bound may be empty; [ ] inclusive, ( ) exclusive)
  prefix=<text>        contains=<text>      suffix=<text>      scan

Values that parse as numbers or booleans are passed as such; quote with
"..." to force a string. range picks a string range when a bound is quoted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := schemaFromFlags(cmd)
			if err != nil {
				return err
			}
			raw, _ := cmd.Flags().GetString("predicate")
			pred, err := parsePredicate(raw)
			if err != nil {
				return err
			}
			seq, err := a.reader().Seek(schema, pred)
			if err != nil {
				return err
			}
			return a.printIDs(seq)
		},
	}
	addSchemaFlags(cmd)
	cmd.Flags().String("predicate", "scan", "Seek predicate")
	return cmd
}

func newUniqueCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unique",
		Short: "Look up one entity through a unique index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := schemaFromFlags(cmd)
			if err != nil {
				return err
			}
			raw, _ := cmd.Flags().GetString("value")
			id, found, err := a.reader().SeekUnique(schema, parseValue(raw))
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintln(a.out, "no match")
				return nil
			}
			fmt.Fprintln(a.out, id)
			return nil
		},
	}
	addSchemaFlags(cmd)
	cmd.Flags().String("value", "", "Value to look up")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func newDegreeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "degree <node-id>",
		Short: "Count a node's relationships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := a.reader()
			c, err := positionNode(r, args[0])
			if err != nil {
				return err
			}
			rawDir, _ := cmd.Flags().GetString("direction")
			dir, err := storage.ParseDirection(rawDir)
			if err != nil {
				return err
			}
			var n int64
			if cmd.Flags().Changed("type") {
				relType, _ := cmd.Flags().GetInt32("type")
				n, err = r.DegreeWithType(c, dir, storage.RelTypeID(relType))
			} else {
				n, err = r.Degree(c, dir)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, n)
			return nil
		},
	}
	cmd.Flags().String("direction", "both", "Direction: outgoing, incoming, both")
	cmd.Flags().Int32("type", 0, "Only relationships of this type")
	return cmd
}

func newTypesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "types <node-id>",
		Short: "List the relationship types a node participates in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := a.reader()
			c, err := positionNode(r, args[0])
			if err != nil {
				return err
			}
			types, err := r.RelationshipTypes(c)
			if err != nil {
				return err
			}
			for _, t := range types.Sorted() {
				fmt.Fprintln(a.out, t)
			}
			return nil
		},
	}
}

func newIndexCmd(a *app) *cobra.Command {
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Index administration",
	}

	indexCmd.AddCommand(storeCmd(&cobra.Command{
		Use:   "list",
		Short: "List index definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := a.catalog.List()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSCHEMA\tUNIQUE\tVALUES\tSTATE")
			for _, d := range defs {
				state := d.State.String()
				if d.Failure != "" {
					state += ": " + d.Failure
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%v\t%s\t%s\n", d.ID, d.Name, d.Schema, d.Unique, d.ValueType, state)
			}
			return tw.Flush()
		},
	}))

	failCmd := storeCmd(&cobra.Command{
		Use:   "fail",
		Short: "Mark an index failed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := schemaFromFlags(cmd)
			if err != nil {
				return err
			}
			reason, _ := cmd.Flags().GetString("reason")
			return a.catalog.MarkFailed(schema, reason)
		},
	})
	addSchemaFlags(failCmd)
	failCmd.Flags().String("reason", "marked failed by operator", "Failure reason")
	indexCmd.AddCommand(failCmd)

	onlineCmd := storeCmd(&cobra.Command{
		Use:   "online",
		Short: "Clear an index failure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := schemaFromFlags(cmd)
			if err != nil {
				return err
			}
			return a.catalog.MarkOnline(schema)
		},
	})
	addSchemaFlags(onlineCmd)
	indexCmd.AddCommand(onlineCmd)

	return indexCmd
}

func addSchemaFlags(cmd *cobra.Command) {
	cmd.Flags().Int32("label", 0, "Node label of the index")
	cmd.Flags().Int32("rel-type", 0, "Relationship type of the index")
	cmd.Flags().Int32("property", 0, "Property key of the index")
	cmd.MarkFlagsMutuallyExclusive("label", "rel-type")
	cmd.MarkFlagsOneRequired("label", "rel-type")
	_ = cmd.MarkFlagRequired("property")
}

func schemaFromFlags(cmd *cobra.Command) (storage.IndexSchema, error) {
	prop, err := cmd.Flags().GetInt32("property")
	if err != nil {
		return storage.IndexSchema{}, err
	}
	if cmd.Flags().Changed("rel-type") {
		relType, _ := cmd.Flags().GetInt32("rel-type")
		return storage.RelationshipIndexSchema(storage.RelTypeID(relType), storage.PropertyKeyID(prop)), nil
	}
	label, _ := cmd.Flags().GetInt32("label")
	return storage.NodeIndexSchema(storage.LabelID(label), storage.PropertyKeyID(prop)), nil
}

func positionNode(r *kernel.Reader, raw string) (*kernel.NodeCursor, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid node id %q", raw)
	}
	c := r.NodeCursor()
	if err := c.Position(storage.EntityID(id)); err != nil {
		return nil, err
	}
	return c, nil
}

func (a *app) printIDs(seq *kernel.IDSequence) error {
	for id, err := range seq.All() {
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, id)
	}
	return nil
}
