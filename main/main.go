package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/phil-mansfield/gravmag/forward"
	"github.com/phil-mansfield/gravmag/io"
	"github.com/phil-mansfield/gravmag/lith"
	"github.com/phil-mansfield/gravmag/voxel"
)

type FileGroup struct {
	prof *os.File
}

func (fg *FileGroup) Close() {
	if fg.prof != nil {
		pprof.StopCPUProfile()
		err := fg.prof.Close()
		fg.prof = nil
		if err != nil {
			log.Fatal(err.Error())
		}
	}
}

func main() {
	var (
		forwardFile, exampleConfig string
		threads                    int
	)
	vars := map[string]*string{
		"Forward":       &forwardFile,
		"ExampleConfig": &exampleConfig,
	}

	flag.StringVar(
		&forwardFile, "Forward", "",
		"Configuration file for [Forward] mode.",
	)
	flag.StringVar(
		&exampleConfig,
		"ExampleConfig", "", "Prints an example configuration file of the "+
			"specified type to stdout. Accepted arguments are 'Forward' and "+
			"'Lithologies'.",
	)
	flag.IntVar(
		&threads, "Threads", runtime.NumCPU(),
		"Number of goroutines used to evaluate prisms. Overridden by a "+
			"positive 'Threads' value in the configuration file.",
	)

	flag.Parse()

	modeName, err := getModeName(vars)
	if err != nil {
		log.Fatal(err.Error())
	}

	switch modeName {
	case "Forward":
		wrap, err := io.ReadConfig(forwardFile)
		if err != nil {
			log.Fatal(err.Error())
		}
		if err := wrap.Validate(); err != nil {
			log.Fatal(err.Error())
		}
		if wrap.Run.Threads > 0 {
			threads = wrap.Run.Threads
		}
		forwardMain(wrap, threads)

	case "ExampleConfig":
		switch strings.ToLower(exampleConfig) {
		case "forward":
			fmt.Println(io.ExampleConfigFile)
		case "lithologies":
			fmt.Print(lith.ExampleTable)
		default:
			log.Fatalf(
				"'%s' is not a recognized configuration type.", exampleConfig,
			)
		}
	}
}

func getModeName(vars map[string]*string) (string, error) {
	setNames := []string{}

	for name, varPtr := range vars {
		if *varPtr != "" {
			setNames = append(setNames, name)
		}
	}

	if len(setNames) == 0 {
		return "", fmt.Errorf("No flags have been set.")
	}

	if len(setNames) > 1 {
		return "", fmt.Errorf(
			"The following flags were set: %s, but gravmag "+
				"only accepts one flag at a time.",
			strings.Join(setNames, ", "),
		)
	}

	return setNames[0], nil
}

// newLogger builds the logger described by the [Run] section.
func newLogger(con *io.RunConfig) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if con.Mode == "development" {
		cfg = zap.NewDevelopmentConfig()
	}
	if con.ValidLogFile() {
		cfg.OutputPaths = []string{con.LogFile}
		cfg.ErrorOutputPaths = []string{con.LogFile}
	}
	return cfg.Build()
}

func forwardSetupIO(con *io.RunConfig) (*zap.Logger, *FileGroup) {
	fg := &FileGroup{}
	logger, err := newLogger(con)
	if err != nil {
		log.Fatal(err.Error())
	}

	if con.ValidProfileFile() {
		fg.prof, err = os.Create(con.ProfileFile)
		if err != nil {
			log.Fatal(err.Error())
		}
		err = pprof.StartCPUProfile(fg.prof)
		if err != nil {
			log.Fatal(err.Error())
		}
	}

	return logger, fg
}

func forwardMain(wrap *io.GravmagWrapper, threads int) {
	logger, fg := forwardSetupIO(&wrap.Run)
	defer fg.Close()
	defer logger.Sync()

	// fatal closes the profile and flushes the log before exiting.
	fatal := func(msg string, err error) {
		logger.Error(msg, zap.Error(err))
		fg.Close()
		logger.Sync()
		os.Exit(1)
	}

	grid, err := wrap.Model.Grid()
	if err != nil {
		fatal("could not build grid", err)
	}
	reg, err := wrap.Model.Registry()
	if err != nil {
		fatal("could not load lithologies", err)
	}
	fill, err := wrap.Model.FillID(reg)
	if err != nil {
		fatal("unknown Fill lithology", err)
	}
	model, err := voxel.New(grid, reg, fill)
	if err != nil {
		fatal("could not create model", err)
	}
	if err := wrap.ApplyBodies(model); err != nil {
		fatal("could not apply bodies", err)
	}

	pts, err := wrap.Points()
	if err != nil {
		fatal("could not read profiles", err)
	}

	opt, err := wrap.ForwardOptions()
	if err != nil {
		if !opt.Gravity {
			fatal("could not load reference field", err)
		}
		logger.Warn("could not load reference field, magnetics disabled",
			zap.Error(err))
	}
	opt.Workers = threads
	opt.Logger = logger

	asm, err := forward.New(reg, pts, opt)
	if err != nil {
		fatal("could not create assembler", err)
	}

	logger.Info("model ready",
		zap.Int("nx", grid.Nx), zap.Int("ny", grid.Ny), zap.Int("nz", grid.Nz),
		zap.Int("lithologies", reg.Len()), zap.Int("points", len(pts)),
		zap.Int("threads", threads),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	resp, err := asm.Compute(ctx, model.Snapshot())
	if err != nil {
		fatal("forward computation failed", err)
	}

	bad := 0
	for i := range resp.MagErr {
		if resp.MagErr[i] != nil {
			bad++
		}
	}
	if bad > 0 {
		logger.Warn("magnetic response unavailable at some points",
			zap.Int("points", bad), zap.Error(resp.MagErr[firstErr(resp.MagErr)]))
	}

	if err := io.WriteResponseFile(wrap.Run.Output, resp); err != nil {
		fatal("could not write response", err)
	}
	logger.Info("response written", zap.String("output", wrap.Run.Output),
		zap.Duration("elapsed", time.Since(start)))
}

func firstErr(errs []error) int {
	for i, err := range errs {
		if err != nil {
			return i
		}
	}
	return -1
}
