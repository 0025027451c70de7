package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aind/wandb-results/internal/config"
	"github.com/aind/wandb-results/internal/mlflow"
	"github.com/aind/wandb-results/internal/wandb"
)

var rootCmd = &cobra.Command{
	Use:   "wandb-results",
	Short: "Read client for experiment-tracking results",
	Long: `A command line tool for retrieving experiment-tracking results.
Lists projects and runs, fetches run metadata and metric history, and
downloads run artifacts. All operations are read-only.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("entity", "", "Entity (team or user) owning the projects (overrides WANDB_ENTITY)")
	rootCmd.PersistentFlags().String("project", "", "Default project name (overrides WANDB_PROJECT)")
	rootCmd.PersistentFlags().String("backend", "", "Tracking backend: wandb or mlflow (overrides WANDB_BACKEND)")
	viper.BindPFlag("entity", rootCmd.PersistentFlags().Lookup("entity"))
	viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
	viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
}

func initConfig() {
	// Environment variables
	viper.SetEnvPrefix("WANDB")
	viper.AutomaticEnv()

	// The mlflow backend reuses the conventional MLflow/Databricks variables
	viper.BindEnv("tracking_uri", "MLFLOW_TRACKING_URI")
	viper.BindEnv("databricks_host", "DATABRICKS_HOST")
	viper.BindEnv("databricks_token", "DATABRICKS_TOKEN")

	// Set defaults
	viper.SetDefault("entity", "AIND-disRNN")
	viper.SetDefault("backend", config.BackendWandb)
	viper.SetDefault("base_url", "https://api.wandb.ai")
	viper.SetDefault("artifact_type", "training-output")
	viper.SetDefault("page_size", 50)
	viper.SetDefault("timeout", "30s")
	viper.SetDefault("max_retries", 3)
	viper.SetDefault("concurrency", 4)
}

// newClient builds the client over the configured backend.
func newClient() (*wandb.Client, error) {
	cfg := config.New()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var backend wandb.Backend
	switch cfg.Backend {
	case config.BackendMLflow:
		var err error
		backend, err = mlflow.NewBackend(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create MLflow backend: %w", err)
		}
	default:
		backend = wandb.NewAPIBackend(cfg)
	}

	return wandb.NewClient(cfg, backend)
}

func checkError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
