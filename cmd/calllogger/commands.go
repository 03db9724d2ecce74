package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/hamzaKhattat/calllog-production-system/internal/calllog"
	"github.com/hamzaKhattat/calllog-production-system/internal/models"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

const version = "1.0.0"

func apiURL(cmd *cobra.Command, path string) string {
	base, _ := cmd.Flags().GetString("api")
	return base + path
}

func apiRequest(method, url string, payload, result interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("service unreachable: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("service returned status %d", resp.StatusCode)
	}
	if result != nil {
		return json.Unmarshal(data, result)
	}
	return nil
}

func createSettingsCommands() *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage auto-log settings",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			var settings models.LoggerSettings
			if err := apiRequest("GET", apiURL(cmd, "/v1/settings"), nil, &settings); err != nil {
				return err
			}

			fmt.Printf("%s\n", bold("Call Logger Settings"))
			fmt.Printf("  Auto-log:       %s\n", onOff(settings.AutoLog))
			fmt.Printf("  Log on ringing: %s\n", onOff(settings.LogOnRinging))
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <autolog|logonringing> <on|off>",
		Short: "Change one setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseOnOff(args[1])
			if err != nil {
				return err
			}

			payload := make(map[string]bool)
			switch args[0] {
			case "autolog":
				payload["autoLog"] = value
			case "logonringing":
				payload["logOnRinging"] = value
			default:
				return fmt.Errorf("unknown setting %q", args[0])
			}

			var settings models.LoggerSettings
			if err := apiRequest("PUT", apiURL(cmd, "/v1/settings"), payload, &settings); err != nil {
				return err
			}

			fmt.Printf("%s Settings updated (autolog=%s, logonringing=%s)\n",
				green("✓"), onOff(settings.AutoLog), onOff(settings.LogOnRinging))
			return nil
		},
	}

	settingsCmd.AddCommand(showCmd, setCmd)
	return settingsCmd
}

func createProvidersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered log providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			var infos []struct {
				Name         string `json:"name"`
				AllowAutoLog bool   `json:"allowAutoLog"`
				Ready        bool   `json:"ready"`
			}
			if err := apiRequest("GET", apiURL(cmd, "/v1/providers"), nil, &infos); err != nil {
				return err
			}

			if len(infos) == 0 {
				fmt.Println("No providers registered")
				return nil
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Name", "Auto-Log", "Status"})
			table.SetBorder(false)
			table.SetAutoWrapText(false)

			for _, p := range infos {
				status := red("Not Ready")
				if p.Ready {
					status = green("Ready")
				}
				autoLog := yellow("manual only")
				if p.AllowAutoLog {
					autoLog = "allowed"
				}
				table.Append([]string{p.Name, autoLog, status})
			}
			table.Render()
			return nil
		},
	}
}

func createCallsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "calls",
		Short: "Show the current reconciled call list",
		RunE: func(cmd *cobra.Command, args []string) error {
			var response struct {
				Version uint64               `json:"version"`
				Calls   []models.LogicalCall `json:"calls"`
			}
			if err := apiRequest("GET", apiURL(cmd, "/v1/calls"), nil, &response); err != nil {
				return err
			}

			if len(response.Calls) == 0 {
				fmt.Println("No current calls")
				return nil
			}

			fmt.Printf("%s (snapshot %d)\n", bold("Current Calls"), response.Version)
			renderCallTable(response.Calls)
			return nil
		},
	}
}

func createLogCommand() *cobra.Command {
	var contactID string

	cmd := &cobra.Command{
		Use:   "log <session-id> <provider>",
		Short: "Manually log one current call to a provider",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{"provider": args[1]}
			if contactID != "" {
				payload["contact"] = models.MatchEntity{ID: contactID}
			}

			url := apiURL(cmd, "/v1/calls/"+args[0]+"/log")
			if err := apiRequest("POST", url, payload, nil); err != nil {
				return err
			}
			fmt.Printf("%s Call %s logged to %s\n", green("✓"), args[0], args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&contactID, "contact", "", "Contact id to attach to the entry")
	return cmd
}

func createContactCommands() *cobra.Command {
	contactCmd := &cobra.Command{
		Use:   "contact",
		Short: "Manage matcher contacts",
	}

	var (
		name        string
		entityType  string
		phoneNumber string
	)
	addCmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Add or update a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity := models.MatchEntity{
				ID:          args[0],
				Type:        entityType,
				Name:        name,
				PhoneNumber: phoneNumber,
			}
			if err := apiRequest("POST", apiURL(cmd, "/v1/contacts"), entity, nil); err != nil {
				return err
			}
			fmt.Printf("%s Contact '%s' stored\n", green("✓"), args[0])
			return nil
		},
	}
	addCmd.Flags().StringVarP(&name, "name", "n", "", "Contact display name")
	addCmd.Flags().StringVarP(&phoneNumber, "number", "p", "", "Contact phone number")
	addCmd.Flags().StringVarP(&entityType, "type", "t", "contact", "Entity type")
	addCmd.MarkFlagRequired("number")

	contactCmd.AddCommand(addCmd)
	return contactCmd
}

// createSimulateCommand runs the reconciliation pipeline over a JSON file of
// raw calls, entirely offline. Useful for inspecting how a captured event
// feed folds into logical calls.
func createSimulateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate <file.json>",
		Short: "Reconcile a raw call list from a file and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			var raw []models.Call
			if err := json.Unmarshal(data, &raw); err != nil {
				return fmt.Errorf("malformed call list: %v", err)
			}

			calls := calllog.Reconcile(raw)
			fmt.Printf("%s %d raw events folded into %d logical calls\n",
				bold("Reconciled:"), len(raw), len(calls))
			renderCallTable(calls)
			return nil
		},
	}
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("calllogger %s\n", version)
		},
	}
}

func renderCallTable(calls []models.LogicalCall) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Session", "Direction", "Status", "From", "To", "Started", "Legs"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	for i := range calls {
		call := &calls[i]

		status := string(call.TelephonyStatus)
		switch call.TelephonyStatus {
		case models.StatusRinging:
			status = yellow(status)
		case models.StatusCallConnected:
			status = green(status)
		case models.StatusNoCall:
			status = red(status)
		}

		started := "-"
		if call.StartTime > 0 {
			started = call.StartedAt().UTC().Format("2006-01-02 15:04:05")
		}

		legs := "1"
		if call.InboundLeg != nil || call.OutboundLeg != nil {
			legs = "2"
		}

		table.Append([]string{
			call.SessionID,
			string(call.Direction),
			status,
			partyLabel(call.From),
			partyLabel(call.To),
			started,
			legs,
		})
	}
	table.Render()
}

func partyLabel(p *models.Party) string {
	if p == nil {
		return "-"
	}
	if p.Name != "" {
		return fmt.Sprintf("%s <%s>", p.Name, p.PhoneNumber)
	}
	if p.PhoneNumber != "" {
		return p.PhoneNumber
	}
	if p.ExtensionNumber != "" {
		return "ext " + p.ExtensionNumber
	}
	return "-"
}

func onOff(v bool) string {
	if v {
		return green("on")
	}
	return red("off")
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return strconv.ParseBool(s)
}
