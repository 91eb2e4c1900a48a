package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robottwo/fabcomplete/internal/cache"
	"github.com/robottwo/fabcomplete/internal/completion"
	"github.com/robottwo/fabcomplete/internal/config"
	"github.com/robottwo/fabcomplete/internal/core"
	"github.com/robottwo/fabcomplete/internal/shell"
	"github.com/robottwo/fabcomplete/internal/styles"
	"github.com/robottwo/fabcomplete/internal/tasks"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var BUILD_VERSION = "dev"

var configFile = flag.String("config", "", "read settings from this file instead of the default locations")
var initFlag = flag.Bool("init", false, "print the bash line that registers this completer")
var clearCacheFlag = flag.Bool("clear-cache", false, "clear and rebuild the task cache for the current directory")
var cacheStatusFlag = flag.Bool("cache-status", false, "show the task cache entry for the current directory")

var helpFlag bool
var versionFlag bool

func init() {
	flag.BoolVar(&helpFlag, "h", false, "display help information")
	flag.BoolVar(&helpFlag, "help", false, "display help information")

	flag.BoolVar(&versionFlag, "v", false, "display build version")
	flag.BoolVar(&versionFlag, "version", false, "display build version")

	if err := zap.RegisterSink("zstd", newCompressedSink); err != nil {
		panic(fmt.Sprintf("failed to register zstd sink: %v", err))
	}
}

// main is the entry point of fab-complete. Without flags it answers one bash
// completion request (`complete -C fab-complete fab`) and exits. Bash passes
// the command name, current word and previous word as arguments; they are
// ignored in favour of COMP_LINE and COMP_POINT.
func main() {
	flag.Parse()

	if versionFlag {
		fmt.Println(BUILD_VERSION)
		return
	}

	if helpFlag {
		printUsage()
		return
	}

	completing := !*initFlag && !*clearCacheFlag && !*cacheStatusFlag

	// Without cursor context there is nothing to do, so check it before
	// touching config, logs or the cache.
	var input *shell.Input
	if completing {
		var err error
		input, err = shell.FromEnv(os.LookupEnv)
		if err != nil {
			fatal(err)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		fatal(err)
	}

	if *initFlag {
		exe, err := os.Executable()
		if err != nil {
			fatal(err)
		}
		printInit(os.Stdout, exe, cfg.Runner)
		return
	}

	paths, err := core.ResolvePaths(cfg)
	if err != nil {
		fatal(err)
	}

	logger, closeLog, err := initializeLogger(cfg, paths)
	if err != nil {
		fatal(err)
	}

	store := cache.New(paths.CacheRoot, cfg.Namespace, paths.WorkDir)
	dispatcher := completion.NewDispatcher(store, tasks.NewRunner(cfg.Runner, logger), logger)
	ctx := context.Background()

	switch {
	case *cacheStatusFlag:
		err = printCacheStatus(os.Stdout, store, paths, time.Now())
	case *clearCacheFlag:
		err = runCommand(ctx, os.Stdout, dispatcher, completion.CommandClearCache)
	default:
		logger.Debug("completion request",
			zap.String("line", input.Line),
			zap.Int("point", input.Point),
			zap.String("dir", paths.WorkDir),
		)
		err = runCompletion(ctx, os.Stdout, dispatcher, input)
	}

	if err != nil {
		logger.Error("fab-complete failed", zap.Error(err))
	}
	_ = logger.Sync()
	closeLog()

	if err != nil {
		fatal(err)
	}
}

func loadConfig() (config.Config, error) {
	paths := config.SearchPaths(os.Getenv)
	if *configFile != "" {
		if _, err := os.Stat(*configFile); err != nil {
			return config.Config{}, fmt.Errorf("config file: %w", err)
		}
		paths = []string{*configFile}
	}
	return config.Load(paths, os.Getenv)
}

// runCompletion answers one completion request and renders it for bash.
func runCompletion(ctx context.Context, w io.Writer, dispatcher *completion.Dispatcher, input *shell.Input) error {
	result, err := dispatcher.Complete(ctx, input)
	if err != nil {
		return err
	}
	return shell.Suggest(w, input, result.Notice, result.Candidates)
}

// runCommand runs cmd directly, as selected by a flag instead of a token.
func runCommand(ctx context.Context, w io.Writer, dispatcher *completion.Dispatcher, cmd completion.Command) error {
	result, err := dispatcher.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if result.Notice != "" {
		_, err = fmt.Fprintln(w, result.Notice)
	}
	return err
}

func printCacheStatus(w io.Writer, store *cache.Store, paths core.Paths, now time.Time) error {
	info, err := store.Stat(completion.TasksEntry)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s %s\n", styles.HEADING("Directory:"), styles.VALUE(paths.WorkDir))
	fmt.Fprintf(w, "%s %s\n", styles.HEADING("Cache:    "), styles.VALUE(info.Path))

	if !info.Exists {
		fmt.Fprintf(w, "%s %s\n", styles.HEADING("Status:   "), "empty (the next completion will run the task runner)")
		return nil
	}

	fmt.Fprintf(w, "%s %d tasks, %s, updated %s\n",
		styles.HEADING("Status:   "),
		info.Records,
		humanize.Bytes(uint64(info.Size)),
		humanize.RelTime(info.ModTime, now, "ago", "from now"),
	)
	return nil
}

// printInit prints the registration line for ~/.bashrc.
func printInit(w io.Writer, exe, runner string) {
	fmt.Fprintf(w, "complete -C %s %s\n", shellQuote(exe), filepath.Base(runner))
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$`!*?[]{}()<>|&;#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// fatal reports err and exits. When a person ran the binary by hand and it
// is missing the completion variables, it also explains how to install it.
func fatal(err error) {
	fmt.Fprintln(os.Stderr, styles.ERROR("fab-complete: "+err.Error()))
	if errors.Is(err, shell.ErrEnvironment) && term.IsTerminal(int(os.Stderr.Fd())) {
		fmt.Fprintln(os.Stderr, "fab-complete is meant to be run by bash. Register it with:")
		fmt.Fprintln(os.Stderr, "  eval \"$(fab-complete -init)\"")
	}
	os.Exit(1)
}

func printUsage() {
	fmt.Println(styles.HEADING("Usage:") + " fab-complete [flags]")
	fmt.Println("\nTab completion for fab tasks, cached per directory.")
	fmt.Println()

	fmt.Println(styles.HEADING("Options:"))

	// Group aliases like -h and -help together
	printed := make(map[string]bool)

	flag.VisitAll(func(f *flag.Flag) {
		if printed[f.Name] {
			return
		}

		// Identify aliases based on shared usage strings.
		aliases := []string{f.Name}
		flag.VisitAll(func(p *flag.Flag) {
			if p.Name == f.Name {
				return
			}
			if p.Usage == f.Usage {
				aliases = append(aliases, p.Name)
				printed[p.Name] = true
			}
		})
		printed[f.Name] = true

		var shortFlags, longFlags []string
		for _, name := range aliases {
			if len(name) == 1 {
				shortFlags = append(shortFlags, "-"+name)
			} else {
				longFlags = append(longFlags, "-"+name)
			}
		}
		flagStr := strings.Join(append(shortFlags, longFlags...), ", ")

		argName, usage := flag.UnquoteUsage(f)
		if argName != "" {
			flagStr += " <" + argName + ">"
		}

		fmt.Printf("  %-28s %s\n", flagStr, usage)
	})

	fmt.Println()
	fmt.Println(styles.HEADING("Completion commands:"))
	fmt.Printf("  %-28s %s\n", "fab "+completion.ClearCacheToken+" <TAB>", "clear the cached task list (prints "+completion.CacheClearedNotice+")")
	fmt.Println()
	fmt.Println(styles.HINT("Install: eval \"$(fab-complete -init)\" in ~/.bashrc"))
}
