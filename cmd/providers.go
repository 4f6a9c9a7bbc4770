package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/docpipe/internal/extract"
	"github.com/sells-group/docpipe/internal/provider"
	"github.com/sells-group/docpipe/internal/ratelimit"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show the configured provider fallback chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := provider.Build(cfg)
		orch := extract.NewOrchestrator(reg, ratelimit.NewGovernor())

		type row struct {
			Name         string   `json:"name"`
			Family       string   `json:"family"`
			Model        string   `json:"model"`
			Priority     int      `json:"priority"`
			Enabled      bool     `json:"enabled"`
			Capabilities []string `json:"capabilities"`
			PerMinute    int      `json:"per_minute,omitempty"`
			PerDay       int      `json:"per_day,omitempty"`
			Wired        bool     `json:"wired"`
			Circuit      string   `json:"circuit"`
		}

		var out []row
		for _, d := range reg.Snapshot() {
			_, wired := reg.Caller(d.Family)
			out = append(out, row{
				Name:         d.Name,
				Family:       d.Family,
				Model:        d.Model,
				Priority:     d.Priority,
				Enabled:      d.Enabled,
				Capabilities: d.Capabilities,
				PerMinute:    d.PerMinute,
				PerDay:       d.PerDay,
				Wired:        wired,
				Circuit:      orch.Breakers().State(d.Name).String(),
			})
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
