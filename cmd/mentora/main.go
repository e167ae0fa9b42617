package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mentora/internal/config"
)

// Version is set at build time via ldflags
var Version = "dev"

const pidFile = "mentorad.pid"

var rootCmd = &cobra.Command{
	Use:   "mentora",
	Short: "Mock interviews and persona-led study sessions",
	Long: `Mentora runs timed mock interviews graded by an LLM and tutoring
conversations with mentor personas. The mentorad daemon serves the API;
this command controls it and talks to it.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("addr", "", "Daemon address (default from config, e.g. http://127.0.0.1:7433)")
	rootCmd.PersistentFlags().String("user", "", "Owner identity sent as X-User-ID (default $USER)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd, doctorCmd, configCmd, providerCmd)
	rootCmd.AddCommand(startCmd, stopCmd, statusCmd, logsCmd)
	rootCmd.AddCommand(interviewsCmd, eventsCmd, knowledgeCmd)
	rootCmd.AddCommand(mcpCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("mentora", Version)
	},
}

// daemonAddr resolves the daemon base URL from --addr or the config.
func daemonAddr(cmd *cobra.Command) string {
	if addr := flagString(cmd, "addr"); addr != "" {
		return addr
	}
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		cfg = config.DefaultLocalConfig()
	}
	return fmt.Sprintf("http://%s:%d", cfg.Daemon.Bind, cfg.Daemon.Port)
}

// ownerID resolves the identity used for owner-scoped calls.
func ownerID(cmd *cobra.Command) string {
	if u := flagString(cmd, "user"); u != "" {
		return u
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}

func newClient(cmd *cobra.Command) *client {
	return newHTTPClient(daemonAddr(cmd), ownerID(cmd))
}

// flagString reads a local or inherited flag.
func flagString(cmd *cobra.Command, name string) string {
	if f := cmd.Flag(name); f != nil {
		return f.Value.String()
	}
	return ""
}
