package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "photo-gallery",
	Short: "A personal photo gallery with face clustering",
	Long: `Photo Gallery is a backend for a personal photo collection. It detects
faces in photos, stores their embeddings in PostgreSQL, and groups photos
of the same person using density-based clustering.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
