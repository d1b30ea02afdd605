package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli"

	"github.com/lmarzo/go-dotmatrix/dotmatrix"
	"github.com/lmarzo/go-dotmatrix/dotmatrix/frontend"
)

func main() {
	app := cli.NewApp()
	app.Name = "dotmatrix"
	app.Description = "A Game Boy (DMG) emulator"
	app.Usage = "dotmatrix [options] <ROM file>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rom",
			Usage: "Path to the ROM file",
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "Run without a display",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "Number of frames to run in headless mode",
			Value: 0,
		},
		cli.BoolFlag{
			Name:  "selftest",
			Usage: "Treat the arguments as test ROMs, run each until it reports Passed/Failed",
		},
		cli.IntFlag{
			Name:  "selftest-frames",
			Usage: "Frame budget per self-test ROM before giving up",
			Value: 0,
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	level := slog.LevelInfo
	if c.Bool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	if c.Bool("selftest") {
		return runSelfTests(c)
	}

	romPath := c.String("rom")
	if romPath == "" {
		if c.NArg() > 0 {
			romPath = c.Args().Get(0)
		} else {
			cli.ShowAppHelp(c)
			return errors.New("no ROM path provided")
		}
	}

	machine, err := dotmatrix.NewWithFile(romPath)
	if err != nil {
		return err
	}

	if c.Bool("headless") {
		frames := c.Int("frames")
		if frames <= 0 {
			return errors.New("headless mode requires --frames with a positive value")
		}
		for i := 0; i < frames; i++ {
			machine.RunFrame()
		}
		slog.Info("headless run completed",
			"frames", machine.Frames(),
			"instructions", machine.Instructions())
		return nil
	}

	term, err := frontend.New(machine)
	if err != nil {
		return err
	}
	return term.Run()
}

func runSelfTests(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("selftest mode requires at least one test ROM path")
	}

	paths := make([]string, 0, c.NArg())
	for i := 0; i < c.NArg(); i++ {
		paths = append(paths, c.Args().Get(i))
	}

	results, passed := dotmatrix.RunSelfTests(paths, c.Int("selftest-frames"))

	for _, result := range results {
		status := "FAIL"
		if result.Passed {
			status = "PASS"
		}
		fmt.Printf("%-4s %s\n", status, result.Path)
	}
	fmt.Printf("%d/%d passed\n", passed, len(results))

	if passed != len(results) {
		return fmt.Errorf("%d of %d self-tests failed", len(results)-passed, len(results))
	}
	return nil
}
