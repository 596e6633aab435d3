// cmd/client/main.go
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/mongoose/internal/client"
	"github.com/jason-s-yu/mongoose/internal/config"
	_ "github.com/joho/godotenv/autoload"
	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const tick = 50 * time.Millisecond

func main() {
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "mongoose [server-addr]",
		Short: "Terminal client for the Mongoose card game",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cfg.ServerAddr = args[0]
			}
			return run(cmd.Context(), cfg)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := rootCmd.Flags()
	f.StringVarP(&cfg.PlayerName, "name", "n", cfg.PlayerName, "name shown to the other players")
	f.DurationVar(&cfg.ConnectTimeout, "timeout", cfg.ConnectTimeout, "how long to wait for the relay")
	f.BoolVar(&cfg.Rules.RetractIllegalPlacement, "retract", cfg.Rules.RetractIllegalPlacement, "return an auto-mongoosed card to its owner")
	f.StringVar(&cfg.LogLevel, "log-level", "warn", "log level")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = logrus.WarnLevel
	}
	logrus.SetLevel(lvl)

	pterm.DefaultHeader.WithFullWidth().Println("Mongoose")
	spinner, _ := pterm.DefaultSpinner.Start("Connecting to " + cfg.ServerAddr)
	c, err := client.Dial(ctx, cfg.ServerAddr, cfg.PlayerName, cfg.ConnectTimeout, cfg.Rules)
	if err != nil {
		spinner.Fail(err.Error())
		return err
	}
	spinner.Success("Connected as " + cfg.PlayerName + ". Waiting for the host to start.")
	defer c.Close()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var feed feedPrinter
	status := c.Status
	for {
		select {
		case <-ctx.Done():
			leave(c)
			return nil

		case line, ok := <-lines:
			if !ok {
				leave(c)
				return nil
			}
			in, err := parseIntent(line)
			if err != nil {
				pterm.Warning.Println(err)
				continue
			}
			quit, err := apply(c, in)
			if quit {
				waitClosed(c)
				return nil
			}
			if err != nil {
				pterm.Warning.Println(err)
				continue
			}
			if in.verb == "pickup" || in.verb == "place" || in.verb == "flip" {
				renderState(c)
			}

		case <-ticker.C:
			if c.Poll() > 0 {
				feed.print(c)
			}
			if c.Status != status {
				status = c.Status
				if status == client.StatusPlaying {
					renderState(c)
				}
			}
			if !c.Connected {
				return disconnectError(c)
			}
		}
	}
}

func leave(c *client.Client) {
	if c.Connected {
		c.Quit()
		waitClosed(c)
	}
}

func waitClosed(c *client.Client) {
	select {
	case <-c.Done():
	case <-time.After(time.Second):
	}
}

func disconnectError(c *client.Client) error {
	if c.Status == client.StatusRejected {
		return errors.New("a game is already running on this relay")
	}
	if c.LastError != nil {
		return fmt.Errorf("disconnected: %w", c.LastError)
	}
	return errors.New("disconnected from relay")
}
