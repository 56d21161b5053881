package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"polyvis/internal/paths"
)

var (
	logFollow bool
	logLines  int
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View daemon logs",
	Long: `View the embedding daemon's log file.

Examples:
  polyvis log          # last 50 lines
  polyvis log -n 200   # last 200 lines
  polyvis log -f       # follow (tail -f)`,
	RunE: runLog,
}

func init() {
	logCmd.Flags().BoolVarP(&logFollow, "follow", "f", false, "Follow log output")
	logCmd.Flags().IntVarP(&logLines, "lines", "n", 50, "Number of lines to show")
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	logPath, err := paths.GetDaemonLogPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Println("No logs yet.")
		fmt.Printf("\nLog file location: %s\n", logPath)
		fmt.Println("The file appears once 'polyvis daemon start' has run.")
		return nil
	}

	if logFollow {
		return followLogFile(logPath)
	}
	return showLogLines(logPath, logLines)
}

func showLogLines(path string, n int) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	// Keep only the last n lines while scanning.
	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}

	for _, line := range lines {
		fmt.Println(line)
	}
	return scanner.Err()
}

func followLogFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, 2); err != nil {
		return err
	}

	fmt.Printf("Following %s (Ctrl+C to stop)\n\n", path)

	ctx, cancel := signalContext()
	defer cancel()

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		fmt.Print(line)
	}
}
