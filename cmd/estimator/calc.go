package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"estimator/internal/calc"
	"estimator/pkg/types"

	"github.com/k0kubun/pp/v3"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var calcCommand = &cli.Command{
	Name:      "calc",
	Usage:     "Calculate totals for a draft estimate JSON file",
	ArgsUsage: "<draft.json | ->",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty print the result instead of JSON",
		},
		&cli.BoolFlag{
			Name:  "stream",
			Usage: "Read newline-delimited change events and run them through the live engine",
		},
		&cli.DurationFlag{
			Name:  "debounce",
			Usage: "Engine debounce for --stream",
			Value: calc.DefaultDebounce,
		},
		&cli.DurationFlag{
			Name:  "min-interval",
			Usage: "Minimum time between recomputations for --stream",
			Value: calc.DefaultMinInterval,
		},
	},
	Action: func(c *cli.Context) error {
		in, closeIn, err := openInput(c.Args().First())
		if err != nil {
			return err
		}
		defer closeIn()

		if c.Bool("stream") {
			cfg := calc.Config{Debounce: c.Duration("debounce"), MinInterval: c.Duration("min-interval")}
			return streamCalc(c.Context, in, os.Stdout, cfg, newLogger(c))
		}

		return calcFile(in, os.Stdout, c.Bool("pretty"))
	},
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}

type calcOutput struct {
	Summary calc.Summary       `json:"summary"`
	Lines   []calc.LineFigures `json:"lines"`
}

func calcFile(in io.Reader, out io.Writer, pretty bool) error {
	var draft types.DraftEstimate
	if err := json.NewDecoder(in).Decode(&draft); err != nil {
		return fmt.Errorf("failed to decode draft: %w", err)
	}

	if err := calc.Validate(draft.Items, draft.ContingencyPercentage); err != nil {
		return err
	}

	result := calcOutput{
		Summary: calc.Summarize(draft.Items, draft.ContingencyPercentage),
		Lines:   make([]calc.LineFigures, len(draft.Items)),
	}
	for i, item := range draft.Items {
		result.Lines[i] = calc.ForItem(item)
	}

	if pretty {
		_, err := pp.Fprintln(out, result)
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// changeEvent is one line of --stream input. Fields that are absent leave
// the corresponding input unchanged; WaitMs pauses before the next line.
type changeEvent struct {
	Items                 *[]types.DraftLineItem `json:"items"`
	ContingencyPercentage *float64               `json:"contingencyPercentage"`
	WaitMs                int                    `json:"waitMs"`
}

func streamCalc(ctx context.Context, in io.Reader, out io.Writer, cfg calc.Config, logger *logrus.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	engine := calc.NewEngine(cfg, logger)

	enc := json.NewEncoder(out)
	engine.OnChange(func(s calc.Snapshot) {
		if err := enc.Encode(s); err != nil {
			logger.WithError(err).Error("failed to write snapshot")
		}
	})

	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var ev changeEvent
		if err := json.Unmarshal([]byte(text), &ev); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		if ev.ContingencyPercentage != nil {
			engine.SetContingency(*ev.ContingencyPercentage)
		}
		if ev.Items != nil {
			engine.SetItems(*ev.Items)
		}
		if ev.WaitMs > 0 {
			time.Sleep(time.Duration(ev.WaitMs) * time.Millisecond)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read events: %w", err)
	}

	waitIdle(ctx, engine, 100*time.Millisecond)
	cancel()
	<-done

	return nil
}

// waitIdle returns once the engine has stayed idle for settle
func waitIdle(ctx context.Context, engine *calc.Engine, settle time.Duration) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	var idleSince time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if engine.State() != calc.StateIdle {
				idleSince = time.Time{}
				continue
			}
			if idleSince.IsZero() {
				idleSince = now
			}
			if now.Sub(idleSince) >= settle {
				return
			}
		}
	}
}
