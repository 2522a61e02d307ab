package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/linkpreview/internal/app"
	"github.com/John-Robertt/linkpreview/internal/config"
	"github.com/John-Robertt/linkpreview/internal/domain"
	"github.com/John-Robertt/linkpreview/internal/preview"
	"github.com/John-Robertt/linkpreview/internal/server"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	var code int
	switch args[0] {
	case "fetch":
		code = fetchCmd(args[1:])
	case "serve":
		code = serveCmd(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		code = 2
	}
	if code != 0 {
		os.Exit(code)
	}
}

func fetchCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printFetchUsage()
			return 0
		}
	}

	ca, err := parseArgs(args, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printFetchUsage()
		return 2
	}
	if len(ca.Targets) == 0 {
		fmt.Fprintln(os.Stderr, "参数错误：至少需要一个 url")
		fmt.Fprintln(os.Stderr)
		printFetchUsage()
		return 2
	}

	eff, comps, log, code := setup(ca)
	if code != 0 {
		return code
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx)

	progressW, interactive := pickProgressWriter()

	if len(ca.Targets) == 1 {
		var obs preview.Observer
		if interactive {
			sp := newSpinner(progressW)
			defer sp.Stop()
			obs = sp
		}
		tr := preview.NewTracker(comps.Fetcher, eff.Timeout, obs)
		snap, _ := tr.Load(ctx, ca.Targets[0])
		emitJSON(os.Stdout, snap.Result)
		if snap.State == domain.StateResolved {
			return 0
		}
		return 1
	}

	var onDone func(int, domain.BatchItem)
	if interactive {
		onDone = newBatchProgress(progressW, len(ca.Targets)).OnItemDone
	}
	rr := app.RunBatch(ctx, comps.Fetcher, ca.Targets, eff.Timeout, eff.Concurrency, onDone)
	emitJSON(os.Stdout, rr)
	fmt.Fprintf(os.Stderr, "完成：resolved=%d failed=%d\n", rr.Summary.Resolved, rr.Summary.Failed)
	if rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

func serveCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printServeUsage()
			return 0
		}
	}

	ca, err := parseArgs(args, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printServeUsage()
		return 2
	}

	eff, comps, log, code := setup(ca)
	if code != 0 {
		return code
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pruner, err := app.StartCachePruner(comps.Cache, eff.CachePrune, log)
	if err != nil {
		log.Error().Err(err).Str("schedule", eff.CachePrune).Msg("Failed to start cache pruner")
		return 1
	}
	if pruner != nil {
		defer pruner.Stop()
	}

	srv := server.New(comps.Fetcher, comps.Page, eff.Timeout, log)
	if err := srv.Run(ctx, eff.Listen); err != nil {
		log.Error().Err(err).Str("addr", eff.Listen).Msg("Preview server stopped")
		return 1
	}
	return 0
}

// setup 读取配置、初始化日志并组装依赖（进程内只做一次）。
func setup(ca cliArgs) (config.EffectiveConfig, app.Components, zerolog.Logger, int) {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return config.EffectiveConfig{}, app.Components{}, zerolog.Nop(), 1
	}

	eff, err := config.LoadEffective(cwd, ca.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", config.Code(err), err)
		return config.EffectiveConfig{}, app.Components{}, zerolog.Nop(), 1
	}

	log := newLogger(os.Stderr, eff.LogLevel)
	log.Debug().
		Str("config", eff.File).
		Str("endpoint", eff.Endpoint).
		Strs("sources", eff.Sources).
		Dur("timeout", eff.Timeout).
		Msg("Loaded effective config")

	comps, err := app.Wire(eff)
	if err != nil {
		log.Error().Err(err).Msg("Failed to wire components")
		return config.EffectiveConfig{}, app.Components{}, zerolog.Nop(), 1
	}
	return eff, comps, log, 0
}

// newLogger：交互终端用 ConsoleWriter，否则输出 JSON 行（便于采集）。
func newLogger(w *os.File, level zerolog.Level) zerolog.Logger {
	var out io.Writer = w
	if isTTY(w) {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// emitJSON：stdout 必须且仅输出一个 JSON 文档（日志/进度走 stderr）。
func emitJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度只在交互终端启用，且只写 stderr，不污染 stdout JSON。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	return nil, false
}
