package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/himanishpuri/TapAlign/internal/annotation"
	"github.com/himanishpuri/TapAlign/internal/audio"
	"github.com/himanishpuri/TapAlign/internal/config"
	"github.com/himanishpuri/TapAlign/internal/export"
	"github.com/himanishpuri/TapAlign/pkg/logger"
	"github.com/himanishpuri/TapAlign/pkg/models"
	"github.com/himanishpuri/TapAlign/pkg/tapalign"
	"github.com/himanishpuri/TapAlign/pkg/utils"
)

var (
	cfg *config.Config

	// openService is closed by exit so the database is released on every
	// failure path.
	openService tapalign.Service
	osExit      = os.Exit
)

func init() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	cfg = config.Register(flag.CommandLine)
	flag.Usage = printUsage
}

// createService creates a new TapAlign service with configured options
func createService() (tapalign.Service, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	return tapalign.NewService(opts...)
}

func main() {
	flag.Parse()

	if err := cfg.ApplyLogLevel(); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	log := logger.GetLogger()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]
	log.Debugf("Executing command: %s", command)

	switch command {
	case "process":
		handleProcess(args)
	case "batch":
		handleBatch(args)
	case "list":
		handleList()
	case "show":
		handleShow(args)
	case "export":
		handleExport(args)
	case "delete":
		handleDelete(args)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// splitArgs separates a leading positional argument from the flags after it.
func splitArgs(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}

func fail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Printf("❌ %s\n", msg)
	logger.GetLogger().Errorf("%s", msg)
	exit(1)
}

// exit closes the open service, if any, and terminates with code.
func exit(code int) {
	if openService != nil {
		if err := openService.Close(); err != nil {
			logger.GetLogger().Warnf("Failed to close service: %v", err)
		}
		openService = nil
	}
	osExit(code)
}

func mustService() tapalign.Service {
	svc, err := createService()
	if err != nil {
		fail("Failed to create service: %v", err)
	}
	openService = svc
	return svc
}

func handleProcess(args []string) {
	audioPath, flagArgs := splitArgs(args)

	processCmd := flag.NewFlagSet("process", flag.ExitOnError)
	trialsPath := processCmd.String("trials", "", "Trial list (default: <audio>.trials.json)")
	subject := processCmd.String("subject", "", "Subject ID (default: parsed from the path)")
	group := processCmd.String("group", "", "Subject group label")
	condition := processCmd.String("condition", "", "Condition label")
	out := processCmd.String("out", "", "Append matches to this TSV file")
	processCmd.Parse(flagArgs)

	if audioPath == "" {
		fmt.Println("Usage: tapalign process <audio_file> [--trials <file>] [--subject <id> --group <label> --condition <label>] [--out <file>]")
		os.Exit(1)
	}

	job := tapalign.FileJob{AudioPath: audioPath, TrialsPath: *trialsPath, Key: absPath(audioPath)}
	if *subject != "" || *group != "" || *condition != "" {
		schema, err := cfg.Schema()
		if err != nil {
			fail("Invalid schema: %v", err)
		}
		name := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
		info, err := schema.Resolve(*subject, *group, *condition, name)
		if err != nil {
			fail("Invalid metadata: %v", err)
		}
		job.Info = &info
	}

	svc := mustService()
	defer svc.Close()

	fmt.Println("🎵 Processing recording...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res, err := svc.ProcessFile(ctx, job)
	if err != nil {
		fail("Failed to process %s: %v", audioPath, err)
	}

	fmt.Println("\n✅ Recording processed!")
	printRecording(res.Recording)
	printTrials(res.Trials)

	if *out != "" {
		if err := export.AppendFile(*out, res.Rows); err != nil {
			fail("Failed to write %s: %v", *out, err)
		}
		fmt.Printf("\n📝 Appended %d rows to %s\n", len(res.Rows), *out)
	}
}

func handleBatch(args []string) {
	root, flagArgs := splitArgs(args)

	batchCmd := flag.NewFlagSet("batch", flag.ExitOnError)
	out := batchCmd.String("out", "", "Append matches to this TSV file")
	batchCmd.Parse(flagArgs)

	if root == "" {
		fmt.Println("Usage: tapalign batch <directory> [--out <file>]")
		os.Exit(1)
	}

	paths, err := findRecordings(root)
	if err != nil {
		fail("Failed to scan %s: %v", root, err)
	}
	if len(paths) == 0 {
		fmt.Printf("\n📭 No recordings with a trial list under %s\n", root)
		return
	}

	jobs := make([]tapalign.FileJob, len(paths))
	for i, p := range paths {
		jobs[i] = tapalign.FileJob{AudioPath: p, Key: absPath(p)}
	}

	svc := mustService()
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("🎵 Processing %d recordings...\n", len(jobs))
	start := time.Now()
	results, err := svc.ProcessBatch(ctx, jobs)
	if err != nil {
		fmt.Printf("\n⚠️  Batch interrupted: %v\n", err)
	}

	var rows []models.MatchRow
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Printf("   ❌ %s: %v\n", r.Job.AudioPath, r.Err)
			continue
		}
		rows = append(rows, r.Rows...)
		fmt.Printf("   ✅ %s: %d trials, %d matches\n", r.Job.AudioPath, r.Recording.TrialCount, len(r.Rows))
	}

	fmt.Printf("\n📚 %d processed, %d failed, %s matches in %s\n",
		len(results)-failed, failed, humanize.Comma(int64(len(rows))), time.Since(start).Round(time.Millisecond))

	if *out != "" {
		if err := export.AppendFile(*out, rows); err != nil {
			fail("Failed to write %s: %v", *out, err)
		}
		fmt.Printf("📝 Appended %s rows to %s\n", humanize.Comma(int64(len(rows))), *out)
	}
	if failed > 0 {
		stop()
		exit(1)
	}
}

// findRecordings returns every audio file under root that has a trial list.
func findRecordings(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !audio.IsWav(path) {
			return nil
		}
		if !utils.FileExists(annotation.TrialsPathFor(path)) {
			logger.GetLogger().Debugf("Skipping %s: no trial list", path)
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	return paths, err
}

func handleList() {
	svc := mustService()
	defer svc.Close()

	recs, err := svc.ListRecordings()
	if err != nil {
		fail("Failed to list recordings: %v", err)
	}

	if len(recs) == 0 {
		fmt.Println("\n📭 No recordings in database")
		return
	}

	fmt.Printf("\n📚 Found %d recording(s):\n\n", len(recs))
	for i, rec := range recs {
		fmt.Printf("%d. %s  %s/%s/%s (ID: %s)\n", i+1, rec.File, rec.Subject, rec.Group, rec.Condition, rec.ID)
		fmt.Printf("   %d trials (%d skipped), %s matches | %s | processed %s\n",
			rec.TrialCount, rec.SkippedTrials, humanize.Comma(int64(rec.MatchCount)),
			humanize.Bytes(uint64(rec.SizeBytes)), humanize.Time(rec.CreatedAt))
	}
}

func handleShow(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: tapalign show <recording_id>")
		os.Exit(1)
	}
	id := args[0]

	svc := mustService()
	defer svc.Close()

	rec, err := svc.GetRecording(id)
	if err != nil {
		fail("Recording not found (ID: %s): %v", id, err)
	}
	rows, err := svc.GetMatches(id)
	if err != nil {
		fail("Failed to load matches: %v", err)
	}

	fmt.Println()
	printRecording(*rec)
	fmt.Println()
	if err := export.Write(os.Stdout, rows, true); err != nil {
		fail("Failed to print matches: %v", err)
	}
}

func handleExport(args []string) {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	out := exportCmd.String("out", "", "Output TSV file (default: stdout)")
	exportCmd.Parse(args)

	svc := mustService()
	defer svc.Close()

	rows, err := svc.ExportRows()
	if err != nil {
		fail("Failed to load matches: %v", err)
	}

	if *out == "" {
		if err := export.Write(os.Stdout, rows, true); err != nil {
			fail("Failed to write matches: %v", err)
		}
		return
	}
	if err := export.WriteFile(*out, rows); err != nil {
		fail("Failed to write %s: %v", *out, err)
	}
	fmt.Printf("📝 Exported %s rows to %s\n", humanize.Comma(int64(len(rows))), *out)
}

func handleDelete(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: tapalign delete <recording_id>")
		os.Exit(1)
	}
	id := args[0]

	svc := mustService()
	defer svc.Close()

	// Get recording info before deletion
	rec, err := svc.GetRecording(id)
	if err != nil {
		fail("Recording not found (ID: %s): %v", id, err)
	}

	if err := svc.DeleteRecording(id); err != nil {
		fail("Failed to delete recording: %v", err)
	}

	fmt.Printf("\n✅ Successfully deleted recording:\n")
	fmt.Printf("   ID:   %s\n", rec.ID)
	fmt.Printf("   File: %s\n", rec.Path)
}

func printRecording(rec models.Recording) {
	d := time.Duration(rec.DurationMs) * time.Millisecond
	fmt.Printf("   ID:        %s\n", rec.ID)
	fmt.Printf("   File:      %s\n", rec.Path)
	fmt.Printf("   Subject:   %s (group %s = %d)\n", rec.Subject, rec.Group, rec.GroupCode)
	fmt.Printf("   Condition: %s (%d)\n", rec.Condition, rec.ConditionCode)
	fmt.Printf("   Audio:     %d Hz, %s, %s\n", rec.SampleRate, d.Round(time.Millisecond), humanize.Bytes(uint64(rec.SizeBytes)))
	fmt.Printf("   Trials:    %d (%d skipped)\n", rec.TrialCount, rec.SkippedTrials)
	fmt.Printf("   Matches:   %d\n", rec.MatchCount)
}

func printTrials(trials []tapalign.TrialReport) {
	if len(trials) == 0 {
		return
	}
	fmt.Println("\n   Trial  Beats  Taps  Matched")
	for _, tr := range trials {
		if tr.Skipped != nil {
			fmt.Printf("   %5d  skipped: %v\n", tr.Trial.Ordinal, tr.Skipped)
			continue
		}
		fmt.Printf("   %5d  %5d  %4d  %7d\n", tr.Trial.Ordinal, len(tr.Beats), len(tr.Taps), tr.Matched)
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func printUsage() {
	fmt.Println("TapAlign - beat/tap alignment for sensorimotor synchronization recordings")
	fmt.Println("\nGlobal Options:")
	flag.PrintDefaults()
	fmt.Println("\nUsage:")
	fmt.Println("  tapalign [global-options] process <audio_file> [--trials <file>] [--subject <id> --group <label> --condition <label>] [--out <file>]")
	fmt.Println("  tapalign [global-options] batch <directory> [--out <file>]")
	fmt.Println("  tapalign [global-options] list")
	fmt.Println("  tapalign [global-options] show <recording_id>")
	fmt.Println("  tapalign [global-options] export [--out <file>]")
	fmt.Println("  tapalign [global-options] delete <recording_id>")
	fmt.Println("\nRecordings are expected under <Subject>-<Group>/<Condition>/<File>.wav with a")
	fmt.Println("<File>.trials.json list of {\"start\", \"end\", \"label\"} intervals next to them.")
	fmt.Println("\nExamples:")
	fmt.Println("  tapalign -beat-height 0.3 -beat-distance 0.25 -tap-height 0.2 -tap-distance 0.1 \\")
	fmt.Println("      batch data/Grp5 --out output.txt")
	fmt.Println("  tapalign export --out all.tsv")
}
