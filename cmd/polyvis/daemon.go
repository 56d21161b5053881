package main

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"polyvis/internal/daemon"
	"polyvis/internal/embed"
	"polyvis/internal/paths"
)

var (
	daemonPort         int
	daemonBind         string
	daemonForeground   bool
	daemonStatusFormat string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the embedding daemon",
	Long: `The daemon keeps one embedding provider warm behind a loopback HTTP
endpoint so repeated CLI runs skip model startup. Commands probe it
automatically and fall back to the direct provider when it is not
running.`,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the embedding daemon",
	Long: `Starts the daemon in the background by default: the CLI re-executes
itself detached from the terminal and logs to the daemon log file.
--foreground runs it in this process instead (what the background
child does internally).`,
	RunE: runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the embedding daemon",
	RunE:  runDaemonStop,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon state",
	RunE:  runDaemonStatus,
}

var daemonTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a new bearer token for /embed",
	Long: `Generates a fresh token, stores its bcrypt hash beside the PID file,
and prints the raw token once. Clients export it as ` + embed.TokenEnvVar + `;
a running daemon must be restarted to pick up the new hash.`,
	RunE: runDaemonToken,
}

func init() {
	daemonStartCmd.Flags().IntVar(&daemonPort, "port", 0, "Port to bind (default from settings)")
	daemonStartCmd.Flags().StringVar(&daemonBind, "bind", "", "Address to bind (default from settings)")
	daemonStartCmd.Flags().BoolVar(&daemonForeground, "foreground", false, "Run in the foreground instead of detaching")
	daemonStatusCmd.Flags().StringVar(&daemonStatusFormat, "format", "human", "Output format: json or human")

	daemonCmd.AddCommand(daemonStartCmd, daemonStopCmd, daemonStatusCmd, daemonTokenCmd)
	rootCmd.AddCommand(daemonCmd)
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	logger := newLogger("human")
	root := mustProjectRoot()
	cfg := loadConfig(root, logger)

	if running, pid, _ := daemon.IsRunning(); running {
		fmt.Printf("Daemon already running (PID %d).\n", pid)
		return nil
	}

	if daemonForeground {
		d, err := daemon.New(cfg, daemonBind, daemonPort)
		if err != nil {
			return err
		}
		if err := d.Start(); err != nil {
			return err
		}
		fmt.Printf("Daemon running in foreground (PID %d). Ctrl+C to stop.\n", os.Getpid())
		d.Wait()
		return d.Stop()
	}

	return startDaemonBackground()
}

// startDaemonBackground re-executes the CLI detached from the terminal
// with stdout/stderr redirected into the daemon log, then waits briefly
// for the child's PID file to appear.
func startDaemonBackground() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	if _, err := paths.EnsureDaemonDir(); err != nil {
		return err
	}
	logPath, err := paths.GetDaemonLogPath()
	if err != nil {
		return err
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open daemon log: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	childArgs := []string{"daemon", "start", "--foreground"}
	if daemonPort != 0 {
		childArgs = append(childArgs, "--port", strconv.Itoa(daemonPort))
	}
	if daemonBind != "" {
		childArgs = append(childArgs, "--bind", daemonBind)
	}
	if projectFlag != "" {
		childArgs = append(childArgs, "--project", projectFlag)
	}

	child := exec.Command(exe, childArgs...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonSysProcAttr(child)

	if err := child.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	_ = child.Process.Release()

	for i := 0; i < 20; i++ {
		time.Sleep(100 * time.Millisecond)
		if running, pid, _ := daemon.IsRunning(); running {
			fmt.Printf("✅ Daemon started (PID %d)\n", pid)
			fmt.Printf("Log: %s\n", logPath)
			return nil
		}
	}
	return fmt.Errorf("daemon did not come up within 2s; check %s", logPath)
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	if err := daemon.StopRemote(); err != nil {
		return err
	}
	fmt.Println("✅ Daemon stopped")
	return nil
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	logger := newLogger(daemonStatusFormat)
	root := mustProjectRoot()
	cfg := loadConfig(root, logger)

	status := probeDaemon(cfg)
	output, err := FormatResponse(&status, OutputFormat(daemonStatusFormat))
	if err != nil {
		return err
	}
	fmt.Println(output)
	return nil
}

func runDaemonToken(cmd *cobra.Command, args []string) error {
	token, err := daemon.GenerateToken()
	if err != nil {
		return err
	}
	hash, err := daemon.HashToken(token)
	if err != nil {
		return err
	}
	if err := daemon.SaveTokenHash(hash); err != nil {
		return err
	}

	tokenPath, err := paths.GetTokenFilePath()
	if err != nil {
		return err
	}

	fmt.Println("✅ Daemon token minted. It is shown once; store it now.")
	fmt.Println()
	fmt.Printf("  %s\n", token)
	fmt.Println()
	fmt.Printf("Hash stored at: %s\n", tokenPath)
	fmt.Printf("Clients send it via %s or 'Authorization: Bearer <token>'.\n", embed.TokenEnvVar)
	fmt.Println("Restart a running daemon to enforce the new token.")
	return nil
}
