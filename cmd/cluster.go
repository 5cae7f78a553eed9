package cmd

import (
	"github.com/spf13/cobra"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Face clustering operations",
	Long:  `Commands for building and inspecting face clusters.`,
}

func init() {
	rootCmd.AddCommand(clusterCmd)
}
