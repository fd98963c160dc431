package main

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/think/internal/api"
	"github.com/kalambet/think/internal/config"
	"github.com/kalambet/think/internal/criteria"
	"github.com/kalambet/think/internal/export"
)

// addCriteriaFlags registers one boolean flag per criterion.
func addCriteriaFlags(cmd *cobra.Command) {
	for _, k := range criteria.Keys {
		cmd.Flags().Bool(string(k), false, criteria.Description(k))
	}
}

func criteriaFromFlags(cmd *cobra.Command) criteria.Set {
	var s criteria.Set
	for _, k := range criteria.Keys {
		v, _ := cmd.Flags().GetBool(string(k))
		s = s.With(k, v)
	}
	return s
}

// --- evaluate / score ---

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [message]",
	Short: "Score a message and save it to history",
	Long: `Score a message against the five questions and save the result.

Pass each criterion the message meets as a flag, e.g.
  think evaluate "You did great today" --true --kind --helpful`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		if text == "" && len(args) > 0 {
			text = strings.Join(args, " ")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/evaluations", api.EvaluateRequest{
			Text:     text,
			Criteria: criteriaFromFlags(cmd),
		})
		if err != nil {
			return err
		}

		var v api.EvaluationView
		if err := decodeJSON(resp, &v); err != nil {
			return err
		}
		renderEvaluation(cmd.OutOrStdout(), v)
		return nil
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Show the verdict for a set of criteria without saving",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/score", api.ScoreRequest{Criteria: criteriaFromFlags(cmd)})
		if err != nil {
			return err
		}

		var v api.ScoreView
		if err := decodeJSON(resp, &v); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), formatVerdict(v.Percentage, v.Message))
		return nil
	},
}

func init() {
	evaluateCmd.Flags().String("text", "", "message text (default: positional arguments)")
	addCriteriaFlags(evaluateCmd)
	addCriteriaFlags(scoreCmd)
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List or manage saved evaluations",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved evaluations, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/evaluations?limit=%d", limit))
		if err != nil {
			return err
		}

		var list []api.EvaluationView
		if err := decodeJSON(resp, &list); err != nil {
			return err
		}
		renderHistory(cmd.OutOrStdout(), list)
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an evaluation older than 14 days",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/evaluations/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var out struct {
			Status      string    `json:"status"`
			DeletableAt time.Time `json:"deletable_at"`
		}
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}

		if out.Status == "protected" {
			printWarning("Evaluation %s is protected until %s", shortID(args[0]), out.DeletableAt.Local().Format("2006-01-02 15:04"))
			return nil
		}
		printSuccess("Deleted evaluation %s", shortID(args[0]))
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every evaluation older than 14 days",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/evaluations/deletion-summary")
		if err != nil {
			return err
		}
		var sum struct {
			Deletable int `json:"deletable"`
			Protected int `json:"protected"`
		}
		if err := decodeJSON(resp, &sum); err != nil {
			return err
		}

		if sum.Deletable == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Nothing to delete (%d protected).\n", sum.Protected)
			return nil
		}
		if !confirm {
			printWarning("This will delete %d evaluations (%d stay protected). Use --confirm to proceed.", sum.Deletable, sum.Protected)
			return nil
		}

		resp, err = client.post(cmd.Context(), "/evaluations/clear", nil)
		if err != nil {
			return err
		}
		var res struct {
			Deleted   int `json:"deleted"`
			Protected int `json:"protected"`
		}
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		printSuccess("Deleted %d evaluations, kept %d protected", res.Deleted, res.Protected)
		return nil
	},
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum number of evaluations to list (0 for all)")
	historyClearCmd.Flags().Bool("confirm", false, "confirm deletion")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)
}

// --- stats / progress ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/stats")
		if err != nil {
			return err
		}

		var v api.StatsView
		if err := decodeJSON(resp, &v); err != nil {
			return err
		}
		renderStats(cmd.OutOrStdout(), v)
		return nil
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show your streak and unlocked tiers",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/progression")
		if err != nil {
			return err
		}

		var v api.ProgressionView
		if err := decodeJSON(resp, &v); err != nil {
			return err
		}
		renderProgression(cmd.OutOrStdout(), v)
		return nil
	},
}

// --- session ---

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show, create or update the local user session",
}

type sessionResponse struct {
	Session struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"session"`
	OnboardingComplete bool `json:"onboarding_complete"`
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/session")
		if err != nil {
			return err
		}

		var s sessionResponse
		if err := decodeJSON(resp, &s); err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if !s.OnboardingComplete {
			fmt.Fprintln(w, `No session yet. Run "think session create --name <name>".`)
			return nil
		}
		fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Name:"), s.Session.Name)
		if s.Session.Email != "" {
			fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Email:"), s.Session.Email)
		}
		return nil
	},
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the local session",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("--name is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/session", api.SessionRequest{Name: name, Email: email})
		if err != nil {
			return err
		}

		var s sessionResponse
		if err := decodeJSON(resp, &s); err != nil {
			return err
		}
		printSuccess("Welcome, %s", s.Session.Name)
		return nil
	},
}

var sessionSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update the name or email of the existing session",
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch api.SessionPatch
		if cmd.Flags().Changed("name") {
			name, _ := cmd.Flags().GetString("name")
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("--name cannot be blank")
			}
			patch.Name = &name
		}
		if cmd.Flags().Changed("email") {
			email, _ := cmd.Flags().GetString("email")
			patch.Email = &email
		}
		if patch.Name == nil && patch.Email == nil {
			return fmt.Errorf("nothing to update: pass --name or --email")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/session", patch)
		if err != nil {
			return err
		}

		var s sessionResponse
		if err := decodeJSON(resp, &s); err != nil {
			return err
		}
		printSuccess("Session updated for %s", s.Session.Name)
		return nil
	},
}

func init() {
	sessionSetCmd.Flags().String("name", "", "new name")
	sessionSetCmd.Flags().String("email", "", "new email; pass an empty value to clear it")
	sessionCmd.AddCommand(sessionSetCmd)

	sessionCreateCmd.Flags().String("name", "", "your name")
	sessionCreateCmd.Flags().String("email", "", "your email (optional)")
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionCreateCmd)
}

// --- data ---

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Export stored data",
}

var dataExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export history and progression as JSONL or YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		format, _ := cmd.Flags().GetString("format")

		f, err := export.ParseFormat(format)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/export?format="+url.QueryEscape(string(f)))
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if output != "" {
			file, err := os.Create(output)
			if err != nil {
				resp.Body.Close()
				return fmt.Errorf("creating output file: %w", err)
			}
			defer file.Close()
			w = file
		}

		if err := copyBody(resp, w); err != nil {
			return err
		}

		if output != "" {
			printSuccess("Data exported to %s", output)
		}
		return nil
	},
}

func init() {
	dataExportCmd.Flags().String("output", "", "output file path (default: stdout)")
	dataExportCmd.Flags().String("format", "jsonl", "export format: jsonl or yaml")
	dataCmd.AddCommand(dataExportCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Reset a configuration value to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}
