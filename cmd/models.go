package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// modelsCmd lists the enabled models from the catalog.
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List enabled whisper models from the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}

		rows, err := appInstance.Catalog.ListEnabledModels(ctx)
		if err != nil {
			return fmt.Errorf("failed to list models: %w", err)
		}
		if len(rows) == 0 {
			fmt.Println(color.YellowString("No enabled models in the catalog."))
			return nil
		}

		cached := appInstance.Config.Storage.ModelCacheDir

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"ID", "Name", "Checkpoint"})
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		for _, m := range rows {
			status := color.YellowString("not cached")
			if _, err := os.Stat(checkpointPath(cached, m.Name)); err == nil {
				status = color.GreenString("cached")
			}
			table.Append([]string{strconv.FormatInt(m.ID, 10), m.Name, status})
		}
		table.Render()
		return nil
	},
}

func checkpointPath(cacheDir, model string) string {
	return cacheDir + "/ggml-" + model + ".bin"
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
