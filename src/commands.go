package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"clientdesk/src/directors"
	"clientdesk/src/engine"
	"clientdesk/src/helpers"
	"clientdesk/src/models"
	"clientdesk/src/settings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	whereExpr   string
	pivotAsCSV  bool
	pivotTotals bool
	withFormats bool
)

func registerCommands(root *cobra.Command) {
	modulesCmd := &cobra.Command{
		Use:   "modules",
		Short: "List the tenant's modules",
		Args:  cobra.NoArgs,
		RunE:  runModules,
	}
	defineCmd := &cobra.Command{
		Use:   "define [module] [columns.yaml]",
		Short: "Define a module from a YAML list of column definitions",
		Args:  cobra.ExactArgs(2),
		RunE:  runDefine,
	}
	recordsCmd := &cobra.Command{
		Use:   "records [module]",
		Short: "Print a module's records with computed columns",
		Args:  cobra.ExactArgs(1),
		RunE:  runRecords,
	}
	recordsCmd.Flags().StringVar(&whereExpr, "where", "", `Filter such as 'status == "paid" AND amount > 100'`)

	insertCmd := &cobra.Command{
		Use:   "insert [module] [column=value...]",
		Short: "Insert a record",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runInsert,
	}
	updateCmd := &cobra.Command{
		Use:   "update [module] [id] [column=value...]",
		Short: "Update a record by id, or every record matching --where",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runUpdate,
	}
	updateCmd.Flags().StringVar(&whereExpr, "where", "", "Update every record matching this filter")

	deleteCmd := &cobra.Command{
		Use:   "delete [module] [id]",
		Short: "Delete a record by id, or every record matching --where",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runDelete,
	}
	deleteCmd.Flags().StringVar(&whereExpr, "where", "", "Delete every record matching this filter")

	importCmd := &cobra.Command{
		Use:   "import [module] [file.csv]",
		Short: "Insert one record per line of a CSV file with a header line",
		Args:  cobra.ExactArgs(2),
		RunE:  runImport,
	}
	evalCmd := &cobra.Command{
		Use:   "eval [expression] [column=value...]",
		Short: "Evaluate a formula against the given column values",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runEval,
	}
	aggregateCmd := &cobra.Command{
		Use:   "aggregate [module] [column] [SUM|AVERAGE|COUNT|MIN|MAX] [column=value...]",
		Short: "Aggregate a column, keeping records that match every column=value exactly",
		Args:  cobra.MinimumNArgs(3),
		RunE:  runAggregate,
	}
	lookupCmd := &cobra.Command{
		Use:   "lookup [module] [column]",
		Short: "List the options of a lookup column",
		Args:  cobra.ExactArgs(2),
		RunE:  runLookup,
	}
	pivotCmd := &cobra.Command{
		Use:   "pivot [module] [pivot.yaml]",
		Short: "Pivot a module using a YAML pivot config",
		Args:  cobra.ExactArgs(2),
		RunE:  runPivot,
	}
	pivotCmd.Flags().BoolVar(&pivotAsCSV, "csv", false, "Print CSV instead of JSON")
	pivotCmd.Flags().BoolVar(&pivotTotals, "totals", true, "Append a totals line to CSV output")
	pivotCmd.Flags().StringVar(&whereExpr, "where", "", "Filter records before grouping")

	describeCmd := &cobra.Command{
		Use:   "describe [filter]",
		Short: "Print a filter expression as a sentence in the configured locale",
		Args:  cobra.ExactArgs(1),
		RunE:  runDescribe,
	}
	previewCmd := &cobra.Command{
		Use:   "preview [module] [column=value...]",
		Short: "Compute the computed columns of an unsaved row",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPreview,
	}
	previewCmd.Flags().BoolVar(&withFormats, "formats", false, "Also print the matching conditional formats")

	root.AddCommand(modulesCmd, defineCmd, recordsCmd, insertCmd, updateCmd, deleteCmd,
		importCmd, evalCmd, aggregateCmd, lookupCmd, pivotCmd, describeCmd, previewCmd)
}

func moduleService() *directors.ModuleService {
	return directors.GetServiceManager().ModuleService
}

func tenant() string {
	return settings.GetSettings().Tenant
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseAssignments reads column=value arguments. Values that parse as
// numbers or booleans are typed; quotes are stripped from the rest.
func parseAssignments(args []string) (map[string]interface{}, error) {
	values := make(map[string]interface{}, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected column=value, got %q", arg)
		}
		values[key] = parseScalar(raw)
	}
	return values, nil
}

func parseScalar(raw string) interface{} {
	if helpers.IsQuoted(raw) {
		return helpers.StripQuotes(raw)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

func runModules(cmd *cobra.Command, _ []string) error {
	names, err := moduleService().Modules(cmd.Context(), tenant())
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func runDefine(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("could not read column file: %w", err)
	}
	var columns []models.ColumnDefinition
	if err := yaml.Unmarshal(data, &columns); err != nil {
		return fmt.Errorf("could not parse column file %s: %w", args[1], err)
	}
	return moduleService().DefineModule(cmd.Context(), tenant(), args[0], columns)
}

func runRecords(cmd *cobra.Command, args []string) error {
	records, err := moduleService().QueryRecords(cmd.Context(), tenant(), args[0], whereExpr)
	if err != nil {
		return err
	}
	return printJSON(records)
}

func runInsert(cmd *cobra.Command, args []string) error {
	data, err := parseAssignments(args[1:])
	if err != nil {
		return err
	}
	rec, err := moduleService().InsertRecord(cmd.Context(), tenant(), args[0], data)
	if err != nil {
		return err
	}
	return printJSON(rec)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	svc := moduleService()
	if whereExpr != "" {
		data, err := parseAssignments(args[1:])
		if err != nil {
			return err
		}
		n, err := svc.UpdateWhere(cmd.Context(), tenant(), args[0], whereExpr, data)
		if err != nil {
			return err
		}
		fmt.Printf("updated %d records\n", n)
		return nil
	}
	if len(args) < 2 {
		return fmt.Errorf("update needs a record id or --where")
	}
	data, err := parseAssignments(args[2:])
	if err != nil {
		return err
	}
	rec, err := svc.UpdateRecord(cmd.Context(), tenant(), args[0], args[1], data)
	if err != nil {
		return err
	}
	return printJSON(rec)
}

func runDelete(cmd *cobra.Command, args []string) error {
	svc := moduleService()
	if whereExpr != "" {
		n, err := svc.DeleteWhere(cmd.Context(), tenant(), args[0], whereExpr)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d records\n", n)
		return nil
	}
	if len(args) < 2 {
		return fmt.Errorf("delete needs a record id or --where")
	}
	return svc.DeleteRecord(cmd.Context(), tenant(), args[0], args[1])
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("could not read csv file: %w", err)
	}
	n, err := moduleService().ImportCSV(cmd.Context(), tenant(), args[0], string(data))
	if err != nil {
		return err
	}
	fmt.Printf("imported %d records\n", n)
	return nil
}

func runEval(cmd *cobra.Command, args []string) error {
	values, err := parseAssignments(args[1:])
	if err != nil {
		return err
	}
	v, err := moduleService().Evaluate(cmd.Context(), tenant(), args[0], values)
	if err != nil {
		return err
	}
	if v.IsNull() {
		fmt.Println("null")
		return nil
	}
	fmt.Println(v.AsText())
	return nil
}

func runAggregate(cmd *cobra.Command, args []string) error {
	filter, err := parseAssignments(args[3:])
	if err != nil {
		return err
	}
	op := models.AggregateOperation(strings.ToUpper(args[2]))
	total, err := moduleService().Aggregate(cmd.Context(), tenant(), args[0], args[1], op, filter)
	if err != nil {
		return err
	}
	fmt.Println(strconv.FormatFloat(total, 'f', -1, 64))
	return nil
}

func runLookup(cmd *cobra.Command, args []string) error {
	options, err := moduleService().LookupOptions(cmd.Context(), tenant(), args[0], args[1])
	if err != nil {
		return err
	}
	return printJSON(options)
}

func runPivot(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("could not read pivot file: %w", err)
	}
	var config models.PivotConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("could not parse pivot file %s: %w", args[1], err)
	}
	if whereExpr != "" {
		group, err := engine.ParseFilterExpression(whereExpr)
		if err != nil {
			return err
		}
		config.Filters = &group
	}

	svc := moduleService()
	if pivotAsCSV {
		out, err := svc.PivotCSV(cmd.Context(), tenant(), args[0], config, pivotTotals)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}
	result, err := svc.Pivot(cmd.Context(), tenant(), args[0], config)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runDescribe(_ *cobra.Command, args []string) error {
	group, err := engine.ParseFilterExpression(args[0])
	if err != nil {
		return err
	}
	fmt.Println(moduleService().DescribeFilter(group))
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	values, err := parseAssignments(args[1:])
	if err != nil {
		return err
	}
	svc := moduleService()
	row, err := svc.Preview(cmd.Context(), tenant(), args[0], values)
	if err != nil {
		return err
	}
	out := map[string]interface{}{"data": row}
	if withFormats {
		columns, err := svc.Columns(cmd.Context(), tenant(), args[0])
		if err != nil {
			return err
		}
		out["formats"] = svc.CellFormats(columns, models.Record{Data: row})
	}
	return printJSON(out)
}
