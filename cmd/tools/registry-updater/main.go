// cmd/tools/registry-updater/main.go
package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"brokerage-insights/internal/pipeline/querycache"
	"brokerage-insights/pkg/registry"
)

var registryPath string

var (
	addIntent      string
	addDescription string
	addTriggers    []string
	addRoles       []string
	addScope       string
	addSQL         string
	addTags        []string
)

var rootCmd = &cobra.Command{
	Use:   "registry-updater",
	Short: "Maintain the extra cached-question registry",
	Long: `Lists, validates and edits the JSON file of extra cached questions that the
pipeline loads after its built-in templates.`,
	SilenceUsage: true,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in and registry templates in match order",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the registry file against the schema and scope rules",
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

var addCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Append a template to the registry",
	Example: `  registry-updater add gross_income_agent --intent income --roles agent \
    --scope identity.id --trigger "gross commission" \
    --sql "SELECT COALESCE(SUM(AMOUNT_1099_AM), 0) AS total_income FROM payroll_Queue_Archive WHERE USER_ID = \$1;"`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a template from the registry",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&registryPath, "path", "configs/template-registry.json", "Path to registry file")

	addCmd.Flags().StringVar(&addIntent, "intent", "generic", "Narration intent (income, deal_count, ranking, period, average, headcount, generic)")
	addCmd.Flags().StringVar(&addDescription, "description", "", "Description")
	addCmd.Flags().StringSliceVar(&addTriggers, "trigger", nil, "Trigger phrase (repeatable)")
	addCmd.Flags().StringSliceVar(&addRoles, "roles", nil, "Eligible roles")
	addCmd.Flags().StringVar(&addScope, "scope", registry.ScopeIdentity, "Scope binding (none, identity.id, identity.team_scope_id)")
	addCmd.Flags().StringVar(&addSQL, "sql", "", "Query text using $1 for the scope value")
	addCmd.Flags().StringSliceVar(&addTags, "tag", nil, "Tag (repeatable)")
	_ = addCmd.MarkFlagRequired("trigger")
	_ = addCmd.MarkFlagRequired("roles")
	_ = addCmd.MarkFlagRequired("sql")

	rootCmd.AddCommand(listCmd, validateCmd, addCmd, removeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadOrCreate() (*registry.TemplateRegistry, error) {
	reg, err := registry.LoadRegistry(registryPath)
	if os.IsNotExist(err) {
		return registry.New(), nil
	}
	return reg, err
}

// checkMatcher runs the registry through the same checks the pipeline applies at startup.
func checkMatcher(reg *registry.TemplateRegistry) (*querycache.Matcher, error) {
	extra, err := querycache.FromRegistry(reg)
	if err != nil {
		return nil, err
	}
	return querycache.NewMatcher(extra...)
}

func runList(cmd *cobra.Command, _ []string) error {
	reg, err := loadOrCreate()
	if err != nil {
		return err
	}
	m, err := checkMatcher(reg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tINTENT\tROLES\tSCOPE\tTRIGGERS")
	for _, t := range m.Templates() {
		roles := make([]string, len(t.Roles))
		for i, r := range t.Roles {
			roles[i] = string(r)
		}
		scope := string(t.Scope)
		if scope == "" {
			scope = registry.ScopeNone
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.Name, t.Intent, strings.Join(roles, ","), scope, strings.Join(t.Triggers, " | "))
	}
	return w.Flush()
}

func runValidate(cmd *cobra.Command, _ []string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("registry validation failed: %w", err)
	}
	if _, err := checkMatcher(reg); err != nil {
		return fmt.Errorf("registry validation failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed. Found %d templates.\n", len(reg.Templates))
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	reg, err := loadOrCreate()
	if err != nil {
		return err
	}
	entry := registry.TemplateEntry{
		Name:        args[0],
		Description: addDescription,
		Intent:      addIntent,
		Triggers:    addTriggers,
		Roles:       addRoles,
		Scope:       addScope,
		SQL:         addSQL,
		Tags:        addTags,
	}
	if err := reg.Add(entry); err != nil {
		return err
	}
	if _, err := checkMatcher(reg); err != nil {
		return err
	}
	if err := registry.Save(reg, registryPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added template: %s\n", entry.Name)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return err
	}
	if err := reg.Remove(args[0]); err != nil {
		return err
	}
	if err := registry.Save(reg, registryPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed template: %s\n", args[0])
	return nil
}
