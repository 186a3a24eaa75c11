package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dinomatic/media/internal/browser"
	"github.com/dinomatic/media/internal/client"
)

func main() {
	cfg, err := browser.LoadConfig()
	if err != nil {
		fmt.Printf("No media configuration found: %s\n", err)
		fmt.Println("\nCreate a .mediarc file in one of these locations:")
		for _, p := range browser.ConfigPaths() {
			fmt.Printf("  - %s\n", p)
		}
		fmt.Println("\nFormat:")
		fmt.Println("  [default]")
		fmt.Println("  endpoint = http://localhost:8080")
		fmt.Println("  api_key  = <your key>")
		fmt.Println("\nor set MEDIA_ENDPOINT and MEDIA_API_KEY.")
		os.Exit(1)
	}

	api := client.New(cfg.Endpoint, cfg.APIKey)
	model := browser.NewModel(api, fmt.Sprintf("Media: %s", cfg.Endpoint))
	program := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := program.Run(); err != nil {
		fmt.Printf("Error running TUI: %s\n", err)
		os.Exit(1)
	}
}
