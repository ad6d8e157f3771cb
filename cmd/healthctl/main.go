package main

import (
	"fmt"
	"os"

	"github.com/benvon/health-chat/cmd/healthctl/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "healthctl",
		Short: "Operator tool for the health chat service",
		Long:  "CLI tool for chatting with the assistant, seeding the knowledge base and inspecting insights",
	}

	rootCmd.AddCommand(commands.NewChatCmd())
	rootCmd.AddCommand(commands.NewKnowledgeCmd())
	rootCmd.AddCommand(commands.NewInsightsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
