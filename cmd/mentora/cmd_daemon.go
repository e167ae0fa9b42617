package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mentora/internal/config"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the mentora daemon in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(cmd)
		if c.healthy(cmd.Context()) {
			fmt.Println("✓ Daemon is already running")
			return nil
		}

		mentoraDir, err := config.EnsureMentoraDir()
		if err != nil {
			return fmt.Errorf("setup mentora directory: %w", err)
		}

		mentoradPath, err := findDaemonBinary()
		if err != nil {
			return fmt.Errorf("find daemon binary: %w", err)
		}

		daemon := exec.Command(mentoradPath)
		daemon.Dir = mentoraDir
		configureDaemonProcess(daemon)

		if err := daemon.Start(); err != nil {
			return fmt.Errorf("start daemon: %w", err)
		}

		fmt.Print("Starting daemon...")
		for i := 0; i < 30; i++ {
			time.Sleep(100 * time.Millisecond)
			if c.healthy(cmd.Context()) {
				fmt.Println(" ✓")
				fmt.Printf("Daemon running at %s\n", c.base)
				return nil
			}
			fmt.Print(".")
		}

		fmt.Println(" ✗")
		return fmt.Errorf("daemon failed to start (check logs with 'mentora logs')")
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the mentora daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(cmd)
		if !c.healthy(cmd.Context()) {
			fmt.Println("Daemon is not running")
			return nil
		}

		mentoraDir, err := config.MentoraDir()
		if err != nil {
			return err
		}
		pid, err := readPID(filepath.Join(mentoraDir, pidFile))
		if err != nil {
			return err
		}

		process, err := os.FindProcess(pid)
		if err != nil {
			return fmt.Errorf("find process: %w", err)
		}

		fmt.Print("Stopping daemon...")
		if err := process.Signal(syscall.SIGTERM); err != nil {
			return fmt.Errorf("send signal: %w", err)
		}

		for i := 0; i < 50; i++ {
			time.Sleep(100 * time.Millisecond)
			if !c.healthy(cmd.Context()) {
				fmt.Println(" ✓")
				return nil
			}
			fmt.Print(".")
		}

		fmt.Println(" ✗")
		return fmt.Errorf("daemon did not stop gracefully")
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(cmd)
		if !c.healthy(cmd.Context()) {
			fmt.Println("Status: stopped")
			return nil
		}

		var status struct {
			Status        string   `json:"status"`
			Version       string   `json:"version"`
			UptimeSeconds int      `json:"uptime_seconds"`
			LLMProviders  []string `json:"llm_providers"`
			Storage       string   `json:"storage"`
			EventsQueue   bool     `json:"events_queue"`
		}
		if err := c.do(cmd.Context(), http.MethodGet, "/v1/status", nil, &status); err != nil {
			return fmt.Errorf("get status: %w", err)
		}

		fmt.Printf("Status:    %s\n", status.Status)
		fmt.Printf("Version:   %s\n", status.Version)
		fmt.Printf("Uptime:    %s\n", time.Duration(status.UptimeSeconds)*time.Second)
		fmt.Printf("Storage:   %s\n", status.Storage)
		fmt.Printf("Queue:     %t\n", status.EventsQueue)
		fmt.Printf("Providers: %s\n", strings.Join(status.LLMProviders, ", "))
		fmt.Printf("Address:   %s\n", c.base)
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent daemon logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		mentoraDir, err := config.MentoraDir()
		if err != nil {
			return err
		}

		file, err := os.Open(filepath.Join(mentoraDir, "logs", "mentorad.log"))
		if os.IsNotExist(err) {
			fmt.Println("No log file found. Start the daemon first.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer file.Close()

		// last ~4KB
		info, err := file.Stat()
		if err != nil {
			return err
		}
		offset := max(info.Size()-4096, 0)
		if _, err := file.Seek(offset, 0); err != nil {
			return err
		}

		reader := bufio.NewReader(file)
		if offset > 0 {
			_, _ = reader.ReadString('\n')
		}
		scanner := bufio.NewScanner(reader)
		for scanner.Scan() {
			fmt.Fprintln(cmd.OutOrStdout(), scanner.Text())
		}
		return scanner.Err()
	},
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse PID: %w", err)
	}
	return pid, nil
}

// findDaemonBinary locates the mentorad binary
func findDaemonBinary() (string, error) {
	if path, err := exec.LookPath("mentorad"); err == nil {
		return path, nil
	}

	if self, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(self), "mentorad")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	for _, path := range []string{"/usr/local/bin/mentorad", "./mentorad"} {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("mentorad binary not found (build with 'go build ./cmd/mentorad')")
}
