package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/PolarWolf314/cipherdesk/internal/documents"
	"github.com/PolarWolf314/cipherdesk/internal/store"
	"github.com/PolarWolf314/cipherdesk/internal/ui"
	"github.com/PolarWolf314/cipherdesk/internal/utils"
	"github.com/PolarWolf314/cipherdesk/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	resourceType       store.ResourceType
	resourceFields     []string
	resourceStdinField string
	resourcePlain      bool
	resourceJSON       bool
	resourceMatch      string
	resourceMine       bool
	listType           store.ResourceType
)

func resetResourceCommandState() {
	resourceType = store.ResourceProject
	resourceFields = nil
	resourceStdinField = ""
	resourcePlain = false
	resourceJSON = false
	resourceMatch = ""
	resourceMine = false
	listType = ""
}

func init() {
	resourceCreateCmd.Flags().VarP(newResourceTypeValue(&resourceType, store.ResourceProject), "type", "t", "resource type ("+resourceTypeNames()+")")
	resourceCreateCmd.Flags().StringArrayVarP(&resourceFields, "field", "f", nil, "field as name=value (repeatable)")
	resourceCreateCmd.Flags().StringVar(&resourceStdinField, "stdin-field", "", "read this field's value from stdin")
	resourceCreateCmd.Flags().BoolVar(&resourcePlain, "plain", false, "store without encryption")

	resourceSetCmd.Flags().StringArrayVarP(&resourceFields, "field", "f", nil, "field as name=value (repeatable)")
	resourceSetCmd.Flags().StringVar(&resourceStdinField, "stdin-field", "", "read this field's value from stdin")

	resourceShowCmd.Flags().BoolVar(&resourceJSON, "json", false, "output as JSON")

	resourceListCmd.Flags().Var(newResourceTypeValue(&listType, ""), "type", "only list this resource type")
	resourceListCmd.Flags().StringVar(&resourceMatch, "match", "", "only list IDs matching this glob (e.g. 'projects/**')")
	resourceListCmd.Flags().BoolVar(&resourceMine, "mine", false, "only list resources you own")
	resourceListCmd.Flags().BoolVar(&resourceJSON, "json", false, "output as JSON")

	resourceCmd.AddCommand(resourceCreateCmd)
	resourceCmd.AddCommand(resourceShowCmd)
	resourceCmd.AddCommand(resourceListCmd)
	resourceCmd.AddCommand(resourceSetCmd)
	resourceCmd.AddCommand(resourceDeleteCmd)
}

// collectFields merges --field pairs with the --stdin-field value.
func collectFields() (map[string]string, error) {
	fields, err := utils.ParseAssignments(resourceFields)
	if err != nil {
		return nil, err
	}
	if resourceStdinField != "" {
		value, err := utils.ReadFieldFromStdin(resourceStdinField)
		if err != nil {
			return nil, err
		}
		fields[resourceStdinField] = value
	}
	return fields, nil
}

var resourceCmd = &cobra.Command{
	Use:     "resource",
	Aliases: []string{"res"},
	Short:   "Create, read and manage resources",
	Long: `Manages projects, wikis, snippets and task groups.

Resources are sealed by default: every field is encrypted with the
resource's own document key. Use --plain to store one unencrypted.`,
}

var resourceCreateCmd = &cobra.Command{
	Use:   "create [id]",
	Short: "Create a resource",
	Long: `Creates a resource owned by you. Without an ID a random one is assigned.

Examples:
  cipherdesk resource create wiki/onboarding -t wiki -f title=Onboarding --stdin-field body < onboarding.md
  cipherdesk resource create -t snippet -f lang=go -f code='fmt.Println("hi")'
  cipherdesk resource create projects/public -f name=Public --plain`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting resource create command")

		// Read stdin before the spinner starts writing to the terminal.
		fields, err := collectFields()
		if err != nil {
			return Logger.ErrorfAndReturn("invalid fields: %v", err)
		}

		spinner, cleanup := startSpinner("Creating resource...")
		defer cleanup()

		opts := workflows.CreateResourceOptions{
			Type:    resourceType,
			Fields:  fields,
			Plain:   resourcePlain,
			Verbose: verbose,
			Debug:   debug,
		}
		if len(args) == 1 {
			opts.ID = args[0]
		}

		result, err := workflows.CreateResource(context.Background(), opts)
		if err != nil {
			return finishWithError(spinner, err)
		}

		kind := "plain"
		if result.Resource.Encrypted {
			kind = "encrypted"
		}
		spinner.FinalMSG = ui.Success.Sprint("✓") + " Created " + kind + " " + string(result.Resource.Type) + " " +
			ui.Highlight.Sprint(result.Resource.ID) + " " + ui.Muted.Sprintf("%d field(s)", len(result.Resource.Fields))
		return nil
	},
}

var resourceSetCmd = &cobra.Command{
	Use:   "set <id>",
	Short: "Add or overwrite fields on a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting resource set command")

		fields, err := collectFields()
		if err != nil {
			return Logger.ErrorfAndReturn("invalid fields: %v", err)
		}
		if len(fields) == 0 {
			return Logger.ErrorfAndReturn("nothing to set: pass --field or --stdin-field")
		}

		spinner, cleanup := startSpinner("Updating resource...")
		defer cleanup()

		resource, err := workflows.SetFields(context.Background(), workflows.SetFieldsOptions{
			ID:      args[0],
			Fields:  fields,
			Verbose: verbose,
			Debug:   debug,
		})
		if err != nil {
			return finishWithError(spinner, err)
		}

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Updated " + ui.Highlight.Sprint(resource.ID) + ": " +
			strings.Join(sortedNames(fields), ", ")
		return nil
	},
}

type shownResource struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	Owner        string            `json:"owner"`
	Access       string            `json:"access"`
	Fields       map[string]string `json:"fields"`
	FailedFields []string          `json:"failed_fields,omitempty"`
}

var resourceShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a resource, decrypting what you have access to",
	Long: `Shows a resource. Fields you cannot decrypt are shown as placeholders:
the vault is locked, you have no access, or the data failed its integrity
check.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting resource show command")
		spinner, cleanup := startSpinner("Opening resource...")
		defer cleanup()

		doc, err := workflows.ShowResource(context.Background(), workflows.ShowResourceOptions{
			ID:      args[0],
			Verbose: verbose,
			Debug:   debug,
		})
		if err != nil {
			return finishWithError(spinner, err)
		}

		if resourceJSON {
			data, err := json.MarshalIndent(shownResource{
				ID:           doc.ID,
				Type:         string(doc.Type),
				Owner:        doc.OwnerID,
				Access:       doc.Access.String(),
				Fields:       doc.Fields,
				FailedFields: doc.FailedFields,
			}, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal resource to JSON: %w", err)
			}
			spinner.FinalMSG = string(data)
			return nil
		}

		spinner.FinalMSG = formatDocument(doc)
		return nil
	},
}

func formatDocument(doc *documents.OpenedDocument) string {
	var b strings.Builder
	b.WriteString(ui.Highlight.Sprint(doc.ID) + " " + ui.Muted.Sprint(string(doc.Type)) + "\n")
	b.WriteString(ui.KeyValue("Owner", 6, doc.OwnerID) + "\n")
	b.WriteString(ui.KeyValue("Access", 6, formatAccess(doc.Access)) + "\n")

	failed := make(map[string]bool, len(doc.FailedFields))
	for _, name := range doc.FailedFields {
		failed[name] = true
	}

	width := 0
	for _, name := range doc.FieldNames() {
		if len(name) > width {
			width = len(name)
		}
	}
	b.WriteString("\n")
	for _, name := range doc.FieldNames() {
		value := doc.Fields[name]
		if failed[name] || isPlaceholder(value) {
			value = ui.Warning.Sprint(value)
		}
		b.WriteString(ui.KeyValue(name, width, value) + "\n")
	}

	switch doc.Access {
	case documents.AccessLocked:
		b.WriteString(ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("cipherdesk vault unlock") + " to read the encrypted fields\n")
	case documents.AccessNoGrant:
		b.WriteString(ui.Info.Sprint("→") + " Ask the owner to run " + ui.Code.Sprint("cipherdesk share "+doc.ID+" --user <your email>") + "\n")
	}
	if len(doc.FailedFields) > 0 && doc.Access == documents.AccessDecrypted {
		b.WriteString(ui.Warning.Sprint("⚠") + " " + fmt.Sprintf("%d field(s) failed their integrity check", len(doc.FailedFields)) + "\n")
	}
	return b.String()
}

func formatAccess(access documents.Access) string {
	switch access {
	case documents.AccessPlain:
		return ui.Warning.Sprint("not encrypted")
	case documents.AccessDecrypted:
		return ui.Success.Sprint("decrypted")
	default:
		return ui.Sealed.Sprint(access.String())
	}
}

func isPlaceholder(value string) bool {
	switch value {
	case documents.PlaceholderLocked, documents.PlaceholderNoAccess, documents.PlaceholderDecryptFail:
		return true
	}
	return false
}

var resourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List resources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting resource list command")
		spinner, cleanup := startSpinner("Listing resources...")
		defer cleanup()

		summaries, err := workflows.ListResources(context.Background(), workflows.ListResourcesOptions{
			Type:    listType,
			Match:   resourceMatch,
			Mine:    resourceMine,
			Verbose: verbose,
			Debug:   debug,
		})
		if err != nil {
			return finishWithError(spinner, err)
		}

		if resourceJSON {
			if summaries == nil {
				summaries = []workflows.ResourceSummary{}
			}
			data, err := json.MarshalIndent(summaries, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal resources to JSON: %w", err)
			}
			spinner.FinalMSG = string(data)
			return nil
		}

		if len(summaries) == 0 {
			spinner.FinalMSG = ui.Info.Sprint("ℹ") + " No resources found"
			return nil
		}

		var b strings.Builder
		for _, s := range summaries {
			state := ui.Warning.Sprint("plain ")
			if s.Encrypted {
				state = ui.Success.Sprint("sealed")
			}
			access := ""
			switch {
			case s.Owned:
				access = ui.Muted.Sprint("owner")
			case !s.Readable:
				access = ui.Sealed.Sprint("no access")
			}
			b.WriteString(fmt.Sprintf("%s  %-10s  %s  %s\n", state, s.Type, s.ID, access))
		}
		spinner.FinalMSG = b.String()
		return nil
	},
}

var resourceDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a resource you own",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting resource delete command")
		spinner, cleanup := startSpinner("Deleting resource...")
		defer cleanup()

		if err := workflows.DeleteResource(context.Background(), workflows.DeleteResourceOptions{
			ID:      args[0],
			Verbose: verbose,
			Debug:   debug,
		}); err != nil {
			return finishWithError(spinner, err)
		}

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Deleted " + ui.Highlight.Sprint(args[0]) + " and every grant on it"
		return nil
	},
}

func sortedNames(fields map[string]string) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
