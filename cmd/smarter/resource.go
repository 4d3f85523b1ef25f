package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/smarter-sh/smarter/pkg/api"
	"github.com/smarter-sh/smarter/pkg/broker"
	"github.com/smarter-sh/smarter/pkg/client"
	"github.com/smarter-sh/smarter/pkg/manifest"
)

var outputFormat string

func init() {
	for _, cmd := range []*cobra.Command{
		applyCmd, getCmd, describeCmd, deleteCmd, deployCmd,
		undeployCmd, logsCmd, chatCmd, schemaCmd, manifestCmd,
	} {
		cmd.Flags().StringVarP(&outputFormat, "output", "o", "yaml", "Output format: yaml, json or table")
	}

	applyCmd.Flags().StringP("file", "f", "", "Path to the manifest file ('-' for stdin)")
	applyCmd.Flags().String("url", "", "URL of the manifest")
	getCmd.Flags().Bool("all", false, "Return every resource of the kind")
	getCmd.Flags().StringSlice("tags", nil, "Filter by tags")
	chatCmd.Flags().String("prompt", "", "Prompt to send")
	chatCmd.MarkFlagRequired("prompt")
}

func newClient() *client.Client {
	return client.New(viper.GetString("host"), viper.GetString("api_key"))
}

// render prints the envelope in the requested format and maps a failed
// envelope to a non-zero exit.
func render(resp *broker.Response) error {
	switch outputFormat {
	case "table":
		if err := renderTable(resp); err != nil {
			return err
		}
	case "json":
		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	default:
		out, err := yaml.Marshal(resp)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
	}

	if resp.StatusCode() >= 400 {
		return fmt.Errorf("command failed with status %d", resp.StatusCode())
	}
	return nil
}

// renderTable prints a get-style list payload as one row per item,
// columns taken from the envelope's titles.
func renderTable(resp *broker.Response) error {
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return err
	}
	var list struct {
		Items  []map[string]any `json:"items"`
		Titles []string         `json:"titles"`
	}
	if err := json.Unmarshal(raw, &list); err != nil || len(list.Titles) == 0 {
		// Not a list payload; fall back to YAML.
		out, yerr := yaml.Marshal(resp)
		if yerr != nil {
			return yerr
		}
		fmt.Print(string(out))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(list.Titles, "\t")))
	for _, item := range list.Items {
		cells := make([]string, 0, len(list.Titles))
		for _, title := range list.Titles {
			cells = append(cells, fmt.Sprintf("%v", documentField(item, title)))
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return w.Flush()
}

// documentField finds a titled field within a rendered document,
// checking metadata, then spec (one nested section deep), then status.
func documentField(doc map[string]any, key string) any {
	for _, section := range []string{"metadata", "spec", "status"} {
		sub, ok := doc[section].(map[string]any)
		if !ok {
			continue
		}
		if v, ok := sub[key]; ok {
			return v
		}
		if section == "spec" {
			for _, nested := range sub {
				if m, ok := nested.(map[string]any); ok {
					if v, ok := m[key]; ok {
						return v
					}
				}
			}
		}
	}
	return ""
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a resource manifest",
	Long: `Apply a YAML manifest: create the resource if it does not exist,
update it in place if it does. The manifest's kind selects the broker.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		manifestURL, _ := cmd.Flags().GetString("url")

		var text []byte
		switch {
		case file == "-":
			var err error
			if text, err = io.ReadAll(os.Stdin); err != nil {
				return fmt.Errorf("failed to read stdin: %v", err)
			}
		case file != "":
			var err error
			if text, err = os.ReadFile(file); err != nil {
				return fmt.Errorf("failed to read %s: %v", file, err)
			}
		case manifestURL == "":
			return fmt.Errorf("either --file or --url is required")
		}

		// Files and URLs are resolved client-side; the server only ever
		// sees inline manifest text. The kind is parsed here because it
		// routes the request; full validation still happens server-side.
		if len(text) == 0 {
			loader, err := manifest.NewLoader(manifest.Source{URL: manifestURL})
			if err != nil {
				return err
			}
			text = loader.Raw()
		}
		loader, err := manifest.NewLoader(manifest.Source{Manifest: text})
		if err != nil {
			return err
		}
		req := api.CommandRequest{Manifest: string(text)}
		kind := loader.Kind()

		resp, err := newClient().Execute(broker.CommandApply, kind, req)
		if err != nil {
			return err
		}
		return render(resp)
	},
}

var getCmd = &cobra.Command{
	Use:   "get KIND [NAME]",
	Short: "Get resources of a kind",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		tags, _ := cmd.Flags().GetStringSlice("tags")

		req := api.CommandRequest{AllObjects: all, Tags: tags}
		if len(args) == 2 {
			req.Name = args[1]
		} else {
			req.AllObjects = true
		}

		resp, err := newClient().Execute(broker.CommandGet, args[0], req)
		if err != nil {
			return err
		}
		return render(resp)
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe KIND NAME",
	Short: "Describe a single resource in full",
	Args:  cobra.ExactArgs(2),
	RunE:  runNamed(broker.CommandDescribe),
}

var deleteCmd = &cobra.Command{
	Use:   "delete KIND NAME",
	Short: "Delete a resource",
	Args:  cobra.ExactArgs(2),
	RunE:  runNamed(broker.CommandDelete),
}

var deployCmd = &cobra.Command{
	Use:   "deploy KIND NAME",
	Short: "Deploy a resource",
	Args:  cobra.ExactArgs(2),
	RunE:  runNamed(broker.CommandDeploy),
}

var undeployCmd = &cobra.Command{
	Use:   "undeploy KIND NAME",
	Short: "Undeploy a resource",
	Args:  cobra.ExactArgs(2),
	RunE:  runNamed(broker.CommandUndeploy),
}

var logsCmd = &cobra.Command{
	Use:   "logs KIND NAME",
	Short: "Show a resource's activity history",
	Args:  cobra.ExactArgs(2),
	RunE:  runNamed(broker.CommandLogs),
}

var chatCmd = &cobra.Command{
	Use:   "chat KIND NAME --prompt TEXT",
	Short: "Send a prompt to a deployed resource",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt, _ := cmd.Flags().GetString("prompt")
		resp, err := newClient().Execute(broker.CommandChat, args[0], api.CommandRequest{
			Name:   args[1],
			Prompt: prompt,
		})
		if err != nil {
			return err
		}
		return render(resp)
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema KIND",
	Short: "Print the JSON Schema of a kind's manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newClient().Execute(broker.CommandSchema, args[0], api.CommandRequest{})
		if err != nil {
			return err
		}
		return render(resp)
	},
}

var manifestCmd = &cobra.Command{
	Use:   "manifest KIND",
	Short: "Print an example manifest for a kind",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newClient().Execute(broker.CommandExampleManifest, args[0], api.CommandRequest{})
		if err != nil {
			return err
		}
		return render(resp)
	},
}

// runNamed builds the handler shared by commands of the form
// "<command> KIND NAME".
func runNamed(command string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		kind := args[0]
		name := strings.TrimSpace(args[1])
		resp, err := newClient().Execute(command, kind, api.CommandRequest{Name: name})
		if err != nil {
			return err
		}
		return render(resp)
	}
}
