package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"qrdrive/internal/config"
	"qrdrive/internal/drive"
	"qrdrive/internal/logging"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to qrdrive.toml")
		savePath   = flag.String("save", "", "encode FILE into a stored frame sequence")
		loadBase   = flag.String("load", "", "decode a sequence stored as BASE.<index>.<ext>")
		outName    = flag.String("name", "", "output name override (source extension is kept on save)")
		outDir     = flag.String("dir", "", "directory for output files")
		preset     = flag.String("preset", "", "layout preset: png, letter, index_card, playing_card")
		byteSize   = flag.Int("bytesize", 0, "explicit chunk size in bytes (0 = planner decides)")
		strength   = flag.String("errorcorrection", "", "error correction strength: L, M, Q or H")
		compress   = flag.Bool("z", false, "compress the payload before encoding")
		force      = flag.Bool("force", false, "keep an explicit bytesize above the legible ceiling")
		foreign    = flag.Bool("foreign", false, "treat the loaded stream as foreign (untagged) input")
		ext        = flag.String("ext", "frame", "stored frame file extension")
	)
	flag.Parse()
	logging.ConfigureRuntime()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}
	if *preset != "" {
		cfg.Preset = *preset
	}
	if *byteSize != 0 {
		cfg.ChunkBytes = *byteSize
	}
	if *strength != "" {
		cfg.Strength = *strength
	}
	if *compress {
		cfg.Compress = true
	}
	if *force {
		cfg.OverrideSafety = true
	}
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *savePath != "":
		err = runSave(ctx, cfg, *savePath, *outName, *ext)
	case *loadBase != "":
		err = runLoad(ctx, cfg, *loadBase, *outName, *ext, *foreign)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func runSave(ctx context.Context, cfg config.Config, path, outName, ext string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	plan, err := cfg.Plan()
	if err != nil {
		return err
	}
	job, err := drive.PrepareJob(drive.EncodeRequest{
		Data:           raw,
		Filename:       path,
		OutputName:     outName,
		Compress:       cfg.Compress,
		Plan:           plan,
		ChunkBytes:     cfg.ChunkBytes,
		OverrideSafety: cfg.OverrideSafety,
		Style: drive.StyleOptions{
			FillColor: cfg.FillColor,
			BackColor: cfg.BackColor,
		},
	})
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d chunk(s) of up to %d byte(s)\n", job.Name, job.ChunkCount(), job.Capacity.ChunkBytes)
	for _, w := range job.Capacity.Warnings {
		fmt.Printf("warning: %s\n", w)
	}

	base := job.Name
	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return err
		}
		base = filepath.Join(cfg.OutputDir, base)
	}
	return job.Render(ctx, &frameFileRenderer{base: base, ext: ext}, nil)
}

func runLoad(ctx context.Context, cfg config.Config, base, outName, ext string, foreign bool) error {
	paths, err := drive.EnumerateStored(base, ext)
	if err != nil {
		return err
	}
	dec := drive.NewDecoder(foreign)
	if err := dec.Run(ctx, &frameFileScanner{paths: paths}); err != nil {
		return err
	}
	name, data, err := dec.Finalize(outName)
	if err != nil {
		return err
	}
	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return err
		}
		name = filepath.Join(cfg.OutputDir, name)
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("recovered %d byte(s) to %s\n", len(data), name)
	return nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "qrdrive: %v\n", err)
	os.Exit(1)
}
