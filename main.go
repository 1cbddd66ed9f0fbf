// plugloc — Confluence plugin localization migrator: fetch, translate, export.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/minios-linux/plugloc/config"
	"github.com/minios-linux/plugloc/confluence"
	"github.com/minios-linux/plugloc/driver"
	"github.com/minios-linux/plugloc/export"
	"github.com/minios-linux/plugloc/i18n"
	"github.com/minios-linux/plugloc/ingest"
	"github.com/minios-linux/plugloc/keystore"
	"github.com/minios-linux/plugloc/langmeta"
	"github.com/minios-linux/plugloc/lockfile"
	"github.com/minios-linux/plugloc/propfile"
	"github.com/minios-linux/plugloc/runlog"
	"github.com/minios-linux/plugloc/settings"
	"github.com/minios-linux/plugloc/translate"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

var errNoGroups = errors.New("no groups given (name one or more groups, or use --all)")

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir    string
	dbPath     string
	configPath string
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "plugloc",
		Short: "Confluence plugin localization migrator",
		Long: `plugloc — Confluence plugin localization migrator.

Fetches plugin i18n keys from Confluence, keeps them in a local SQLite key
store, machine-translates pending keys with DeepL or Google Cloud
Translation, and exports Java .properties bundles.

Typical workflow:
  plugloc fetch acme-suite           Pull English source keys
  plugloc translate acme-suite       Translate pending keys (resumable)
  plugloc status acme-suite          Show progress
  plugloc export acme-suite          Write output/acme-suite/acme-suite_ru_RU.properties

Services:
  deepl          DeepL API (DEEPL_API_KEY)
  google         Google Cloud Translation v2 or v3`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "Key store database (default: $PLUGLOC_DB or db/translations.db)")
	root.PersistentFlags().StringVar(&configPath, "config", config.PluginsFileName, "Plugin groups file")

	root.AddCommand(
		newGroupsCmd(),
		newFetchCmd(),
		newImportCmd(),
		newImportTranslationsCmd(),
		newTranslateCmd(),
		newStatusCmd(),
		newExportCmd(),
		newConvertCmd(),
		newUnicodeCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("plugloc version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// groups
// ---------------------------------------------------------------------------

func newGroupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List configured and registered groups",
		Long: `List the plugin groups from plugins.yaml together with the groups
already registered in the key store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroups(cmd.Context())
		},
	}
}

func runGroups(ctx context.Context) error {
	pf, err := loadPlugins()
	if err != nil {
		return err
	}
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	registered, err := st.ListGroups(ctx)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(registered))
	keys := pf.Keys()
	for _, g := range registered {
		names[g.Key] = g.DisplayName
		keys = append(keys, g.Key)
	}
	keys = dedupe(keys)

	if len(keys) == 0 {
		logInfo(i18n.T("No groups configured in %s"), projectPath(configPath))
		return nil
	}

	fmt.Fprintf(os.Stderr, "%s%s%s\n", colorBlue, i18n.T("Translation Groups"), colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 72))
	fmt.Fprintf(os.Stderr, "%-24s %-26s %-8s %-8s %s\n", "Group", "Name", "Plugins", "Keys", "Done")
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 72))
	for _, key := range keys {
		name := names[key]
		plugins := "-"
		if g, ok := pf.Groups[key]; ok {
			name = g.Name
			plugins = fmt.Sprint(len(g.Plugins))
		}
		stats, err := st.Stats(ctx, key)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%-24s %-26s %-8s %-8d %5.1f%%\n", key, name, plugins, stats.Total, stats.Percentage)
	}
	fmt.Fprintln(os.Stderr)
	return nil
}

// ---------------------------------------------------------------------------
// fetch
// ---------------------------------------------------------------------------

type fetchArgs struct {
	all      bool
	url      string
	token    string
	noImport bool
}

func newFetchCmd() *cobra.Command {
	var a fetchArgs

	cmd := &cobra.Command{
		Use:   "fetch [group...]",
		Short: "Fetch source keys from Confluence",
		Long: `Fetch the English source keys of each group's plugins from the
Confluence i18n endpoint and import them into the key store.

Raw responses are kept under raw_data/. Keys that already have a
translation are never overwritten.

Examples:
  plugloc fetch acme-suite
  plugloc fetch --all
  plugloc fetch acme-suite --url https://wiki.example.com --no-import`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.Context(), args, a)
		},
	}

	cmd.Flags().BoolVar(&a.all, "all", false, "Fetch every group in plugins.yaml")
	cmd.Flags().StringVar(&a.url, "url", "", "Confluence base URL (or CONFLUENCE_URL)")
	cmd.Flags().StringVar(&a.token, "token", "", "Confluence bearer token (or CONFLUENCE_BEARER_TOKEN)")
	cmd.Flags().BoolVar(&a.noImport, "no-import", false, "Only save raw responses")

	return cmd
}

func runFetch(ctx context.Context, groups []string, a fetchArgs) error {
	pf, err := loadPlugins()
	if err != nil {
		return err
	}
	env, err := config.LoadEnv(rootDir)
	if err != nil {
		return err
	}
	if a.all {
		groups = pf.Keys()
	}
	if len(groups) == 0 {
		return errNoGroups
	}

	var storedURL string
	if info := settings.Get(settings.ServiceConfluence); info != nil {
		storedURL = info.BaseURL
	}
	client, err := confluence.New(confluence.Config{
		BaseURL: settings.Resolve(a.url, env.ConfluenceURL, storedURL),
		Token:   settings.ResolveKey(settings.ServiceConfluence, a.token, env.ConfluenceToken),
		RawDir:  projectPath(confluence.DefaultRawDir),
	})
	if err != nil {
		return err
	}

	var st *keystore.Store
	if !a.noImport {
		if st, _, err = openStore(); err != nil {
			return err
		}
		defer st.Close()
	}

	for _, group := range dedupe(groups) {
		g, err := pf.Group(group)
		if err != nil {
			return err
		}
		logInfo("%s: fetching %d plugins", group, len(g.Plugins))
		res, err := client.Fetch(ctx, g.Plugins, group)
		if err != nil {
			return fmt.Errorf("%s: %w", group, err)
		}
		logSuccess("%s: %s received, raw response saved to %s", group, keyCount(len(res.Keys)), res.RawPath)
		if res.Skipped > 0 {
			logWarning("%s: skipped %d non-string values", group, res.Skipped)
		}
		if st == nil {
			continue
		}
		counts, err := ingest.ImportEntries(ctx, st, group, g.Info(), res.Keys)
		if errors.Is(err, ingest.ErrEmpty) {
			logWarning("%s: nothing to import", group)
			continue
		}
		if err != nil {
			return err
		}
		logImportCounts(group, counts)
		if err := trackSources(ctx, st, group, res.Keys, true); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// import / import-translations
// ---------------------------------------------------------------------------

func newImportCmd() *cobra.Command {
	var file, properties string

	cmd := &cobra.Command{
		Use:   "import <group>",
		Short: "Import source keys from a JSON or .properties file",
		Long: `Import English source keys into a group.

Group metadata is taken from plugins.yaml when the group is configured.
Keys that already have a translation keep it.

Examples:
  plugloc import acme-suite --file raw_data/acme_suite_20240501_093000.json
  plugloc import acme-suite --properties message.properties`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case file != "" && properties != "":
				return errors.New("use either --file or --properties, not both")
			case file != "":
				return runImport(cmd.Context(), args[0], file, ingest.FormatJSON)
			case properties != "":
				return runImport(cmd.Context(), args[0], properties, ingest.FormatProperties)
			default:
				return errors.New("--file or --properties is required")
			}
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "JSON object of key to English text")
	cmd.Flags().StringVar(&properties, "properties", "", "Java .properties file")

	return cmd
}

func runImport(ctx context.Context, group, path string, format ingest.Format) error {
	pf, err := loadPlugins()
	if err != nil {
		return err
	}
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	var info keystore.GroupInfo
	if g, ok := pf.Groups[group]; ok {
		info = g.Info()
	}
	res, err := ingest.ImportSource(ctx, st, group, info, path, format)
	if err != nil {
		return err
	}
	if res.Skipped > 0 {
		logWarning("%s: skipped %d non-string values", group, res.Skipped)
	}
	logImportCounts(group, res.Counts)
	return trackSources(ctx, st, group, res.Entries, false)
}

func newImportTranslationsCmd() *cobra.Command {
	var targetLanguage string

	cmd := &cobra.Command{
		Use:   "import-translations <group> <file>",
		Short: "Import existing translations",
		Long: `Import existing translations from a JSON (or .properties) file.

Only values written in the target language's script are kept, so strings
that were never translated stay pending.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportTranslations(cmd.Context(), args[0], args[1], targetLanguage)
		},
	}

	cmd.Flags().StringVar(&targetLanguage, "target-language", "", "Target locale (default: $TARGET_LANGUAGE or ru_RU)")

	return cmd
}

func runImportTranslations(ctx context.Context, group, path, targetLanguage string) error {
	st, env, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	locale := targetLocale(targetLanguage, env)
	res, err := ingest.ImportTranslations(ctx, st, group, locale, path, ingest.FormatAuto)
	if err != nil {
		return err
	}
	if res.Kept == 0 {
		logWarning("%s: no values in %s found in %s", group, path, langmeta.Resolve(locale).Name)
		return nil
	}
	logSuccess("%s: imported %s, skipped %d not in %s", group, keyCount(res.Kept), res.Skipped, langmeta.Resolve(locale).Name)
	return nil
}

func logImportCounts(group string, c keystore.ImportCounts) {
	logSuccess("%s: %d new, %d updated, %d already translated", group, c.Inserted, c.Updated, c.Protected)
}

// trackSources compares entries with plugloc.lock, warns about translated
// keys whose source text changed, and records the new checksums. With
// prune set, keys missing from entries are forgotten.
func trackSources(ctx context.Context, st *keystore.Store, group string, entries map[string]string, prune bool) error {
	lf, err := lockfile.Load(rootDir)
	if err != nil {
		return err
	}

	var stale []string
	for _, key := range lf.Changed(group, entries) {
		rec, err := st.Get(ctx, group, key)
		if err != nil {
			if errors.Is(err, keystore.ErrNotFound) {
				continue
			}
			return err
		}
		if rec.Status == keystore.StatusTranslated {
			stale = append(stale, key)
		}
	}
	if len(stale) > 0 {
		logWarning("%s: source text changed for %s that keep their translation:", group, keyCount(len(stale)))
		for i, key := range stale {
			if i == 10 {
				logWarning("  ... %d more", len(stale)-i)
				break
			}
			logWarning("  %s", key)
		}
	}

	lf.Update(group, entries)
	if prune {
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		lf.Clean(group, keys)
	}
	return lf.Save()
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

type translateArgs struct {
	all            bool
	service        string
	targetLanguage string
	googleVersion  string
	apiKey         string
	baseURL        string
	batchSize      int
	maxConcurrent  int
	maxCooldowns   int
	keyDelay       time.Duration
	skipCheck      bool
	dryRun         bool
}

func newTranslateCmd() *cobra.Command {
	var a translateArgs

	cmd := &cobra.Command{
		Use:   "translate [group...]",
		Short: "Translate pending keys",
		Long: `Translate every pending key of the given groups.

Keys are processed in batches. Each result is saved as soon as it arrives,
so an interrupted run (Ctrl-C) resumes where it stopped. When the service
signals high load or an exhausted quota the run cools down and retries the
remaining keys.

A log of every run is written to logs/.

Examples:
  plugloc translate acme-suite
  plugloc translate --all --max-concurrent 2
  plugloc translate acme-suite --service google --google-api-version v2
  plugloc translate acme-suite --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd.Context(), args, a)
		},
	}

	cmd.Flags().BoolVar(&a.all, "all", false, "Translate every configured and registered group")
	cmd.Flags().StringVar(&a.service, "service", "", "Translation service: deepl, google (default: $TRANSLATION_SERVICE)")
	cmd.Flags().StringVar(&a.targetLanguage, "target-language", "", "Target locale (default: $TARGET_LANGUAGE or ru_RU)")
	cmd.Flags().StringVar(&a.googleVersion, "google-api-version", "", "Google Cloud Translation API: v2, v3 (default: $GOOGLE_TRANSLATE_API_VERSION)")
	cmd.Flags().StringVar(&a.apiKey, "api-key", "", "API key for the service")
	cmd.Flags().StringVar(&a.baseURL, "base-url", "", "Custom API base URL")
	cmd.Flags().IntVar(&a.batchSize, "batch-size", 0, "Keys per batch (default 100)")
	cmd.Flags().IntVar(&a.maxConcurrent, "max-concurrent", 1, "Groups translated at the same time")
	cmd.Flags().IntVar(&a.maxCooldowns, "max-cooldowns", 0, "Stop a group after this many high-load cooldowns (0 = never)")
	cmd.Flags().DurationVar(&a.keyDelay, "key-delay", 0, "Pause after each translated key (default 50ms, negative disables)")
	cmd.Flags().BoolVar(&a.skipCheck, "skip-check", false, "Skip the credentials and quota check")
	cmd.Flags().BoolVar(&a.dryRun, "dry-run", false, "Show what would be translated without calling the service")

	_ = cmd.Flags().MarkHidden("base-url")

	_ = cmd.RegisterFlagCompletionFunc("service", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{
			"deepl\tDeepL API",
			"google\tGoogle Cloud Translation",
		}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("google-api-version", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"v2\tBasic (API key)", "v3\tAdvanced (service account)"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runTranslate(ctx context.Context, args []string, a translateArgs) error {
	pf, err := loadPlugins()
	if err != nil {
		return err
	}
	st, env, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	groups, err := selectGroups(ctx, st, pf, args, a.all)
	if err != nil {
		return err
	}
	locale := targetLocale(a.targetLanguage, env)

	if a.dryRun {
		return runDryRun(ctx, st, groups, locale)
	}

	service := env.Service
	if a.service != "" {
		if service, err = translate.ParseBackend(a.service); err != nil {
			return err
		}
	}
	googleVersion := env.GoogleAPIVersion
	if a.googleVersion != "" {
		if googleVersion, err = translate.NormalizeGoogleVersion(a.googleVersion); err != nil {
			return err
		}
	}
	prov := resolveProvider(env, service, googleVersion, a.apiKey)
	if a.baseURL != "" {
		prov.BaseURL = a.baseURL
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := translate.New(ctx, prov)
	if err != nil {
		return err
	}

	logName := "all"
	if len(groups) == 1 {
		logName = groups[0]
	}
	rl, err := runlog.Open(logName, runlog.Options{
		Dir:     projectPath(runlog.DefaultDir),
		Console: consoleSink,
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	info := langmeta.Resolve(locale)
	rl.Info("Service: %s, target: %s %s, groups: %s", prov.Name, info.Name, info.Flag(), strings.Join(groups, ", "))

	bar := &progressView{enabled: len(groups) == 1}
	opts := driver.Options{
		TargetLocale: locale,
		BatchSize:    a.batchSize,
		KeyDelay:     a.keyDelay,
		MaxCooldowns: a.maxCooldowns,
		SkipCheck:    a.skipCheck,
		OnProgress:   bar.update,
		OnBatch: func(group string, b driver.BatchResult) {
			rl.Info("%s: batch %d/%d done, %d translated, %d errors", group, b.Number, b.Of, b.Translated, b.Errors)
			if b.HighLoad {
				rl.Warning("%s: %d high-load errors in batch %d", group, b.HighLoadErrors, b.Number)
			}
		},
		OnLog:   rl.Info,
		OnError: rl.Error,
	}
	summaries, runErr := driver.New(st, gw, opts).RunGroups(ctx, groups, a.maxConcurrent)
	bar.finish()

	for _, sum := range summaries {
		if sum != nil {
			reportSummary(rl, sum)
		}
	}
	if runErr != nil {
		return runErr
	}
	if ctx.Err() != nil {
		logWarning(i18n.T("Translation interrupted, progress saved. Run the same command to resume."))
		return nil
	}
	logSuccess(i18n.T("Translation complete"))
	logInfo(i18n.T("Log written to %s"), rl.Path())
	return nil
}

func runDryRun(ctx context.Context, st *keystore.Store, groups []string, locale string) error {
	logInfo(i18n.T("Dry run: nothing will be sent to the translation service"))
	var keys, chars int
	for _, group := range groups {
		recs, err := st.ListPending(ctx, group)
		if err != nil {
			return err
		}
		n := 0
		for _, r := range recs {
			n += len([]rune(r.OriginalText))
		}
		logInfo("%s: %s pending, %d characters -> %s", group, keyCount(len(recs)), n, locale)
		keys += len(recs)
		chars += n
	}
	logInfo("Total: %s, %d characters", keyCount(keys), chars)
	return nil
}

func reportSummary(rl *runlog.Log, s *driver.Summary) {
	rl.Info("%s: %d translated, %d errors (%d high load), %d batches (%d high load) in %s",
		s.Group, s.Translated, s.Errors, s.HighLoadErrors, s.Batches, s.HighLoadBatches, s.Duration.Round(time.Second))
	if s.Usage.Known {
		rl.Info("%s: %s quota used %d of %d characters", s.Group, s.Backend, s.Usage.Count, s.Usage.Limit)
	}
	fmt.Fprintf(os.Stderr, "  %-24s %s %d/%d\n", s.Group, percentBar(s.Stats.Percentage, 20), s.Stats.Translated, s.Stats.Total)
}

// consoleSink mirrors run log lines to the colored console helpers.
func consoleSink(level runlog.Level, msg string) {
	switch level {
	case runlog.LevelWarning:
		logWarning("%s", msg)
	case runlog.LevelError:
		logError("%s", msg)
	default:
		logInfo("%s", msg)
	}
}

// progressView draws a single progress bar for one-group runs.
type progressView struct {
	mu      sync.Mutex
	enabled bool
	bar     *progressbar.ProgressBar
	total   int
}

func (p *progressView) update(group string, done, total int) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.bar == nil:
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription(fmt.Sprintf("[cyan]%s[reset]", group)),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}))
		p.total = total
	case total != p.total:
		// A cooldown re-fetch shrinks the pending set.
		p.bar.Reset()
		p.bar.ChangeMax(total)
		p.total = total
	}
	_ = p.bar.Set(done)
}

func (p *progressView) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
}

// ---------------------------------------------------------------------------
// status
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [group]",
		Short: "Show translation progress",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group := ""
			if len(args) == 1 {
				group = args[0]
			}
			return runStatus(cmd.Context(), group)
		},
	}
}

func runStatus(ctx context.Context, group string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if group != "" {
		return showGroupStatus(ctx, st, group)
	}

	groups, err := st.ListGroups(ctx)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		logInfo(i18n.T("The key store is empty. Run 'plugloc fetch' or 'plugloc import' first."))
		return nil
	}

	fmt.Fprintf(os.Stderr, "%s%s%s\n", colorBlue, i18n.T("Translation Statistics"), colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 78))
	fmt.Fprintf(os.Stderr, "%-24s %-8s %-11s %-8s %-6s %s\n", "Group", "Total", "Translated", "Pending", "Error", "Progress")
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 78))
	var all keystore.Stats
	for _, g := range groups {
		s, err := st.Stats(ctx, g.Key)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%-24s %-8d %-11d %-8d %-6d %s\n", g.Key, s.Total, s.Translated, s.Pending, s.Error, percentBar(s.Percentage, 16))
		all.Total += s.Total
		all.Translated += s.Translated
		all.Pending += s.Pending
		all.Error += s.Error
	}
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 78))
	fmt.Fprintf(os.Stderr, "%-24s %-8d %-11d %-8d %-6d\n", "Total", all.Total, all.Translated, all.Pending, all.Error)
	fmt.Fprintln(os.Stderr)
	return nil
}

func showGroupStatus(ctx context.Context, st *keystore.Store, group string) error {
	g, err := st.GetGroup(ctx, group)
	if err != nil {
		return err
	}
	s, err := st.Stats(ctx, group)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%s%s%s (%s)\n", colorBlue, g.DisplayName, colorReset, g.Key)
	if g.Description != "" {
		fmt.Fprintf(os.Stderr, "  %s\n", g.Description)
	}
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 50))
	fmt.Fprintf(os.Stderr, "  %-12s %d\n", "Total:", s.Total)
	fmt.Fprintf(os.Stderr, "  %-12s %d\n", "Translated:", s.Translated)
	fmt.Fprintf(os.Stderr, "  %-12s %d\n", "Pending:", s.Pending)
	fmt.Fprintf(os.Stderr, "  %-12s %d\n", "Errors:", s.Error)
	fmt.Fprintf(os.Stderr, "  %-12s %s\n", "Progress:", percentBar(s.Percentage, 30))
	fmt.Fprintf(os.Stderr, "  %-12s %s\n", "Table:", g.TableName)
	fmt.Fprintf(os.Stderr, "  %-12s %s\n", "Created:", g.CreatedAt.Format(time.DateTime))
	fmt.Fprintln(os.Stderr)
	return nil
}

// percentBar renders a colored bar followed by the percentage.
func percentBar(percent float64, width int) string {
	percent = max(0, min(percent, 100))
	filled := int(percent * float64(width) / 100)
	color := colorRed
	switch {
	case percent >= 100:
		color = colorGreen
	case percent >= 50:
		color = colorYellow
	}
	return color + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + colorReset + fmt.Sprintf(" %5.1f%%", percent)
}

// ---------------------------------------------------------------------------
// export / convert / unicode
// ---------------------------------------------------------------------------

type exportArgs struct {
	output         string
	targetLanguage string
	chunked        bool
	chunkSize      int
	raw            bool
}

func newExportCmd() *cobra.Command {
	var a exportArgs

	cmd := &cobra.Command{
		Use:   "export <group>",
		Short: "Export translations to .properties",
		Long: `Export the translated keys of a group to a Java .properties file.

Values are written with \uXXXX escapes and verified by decoding them again.
With --raw the file is plain UTF-8. With --chunked the keys are split into
numbered files of --chunk-size keys each.

Examples:
  plugloc export acme-suite
  plugloc export acme-suite --chunked --chunk-size 300
  plugloc export acme-suite --raw -o acme.properties`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), args[0], a)
		},
	}

	cmd.Flags().StringVarP(&a.output, "output", "o", "", "Output file (directory with --chunked)")
	cmd.Flags().StringVar(&a.targetLanguage, "target-language", "", "Locale written to file names and headers")
	cmd.Flags().BoolVar(&a.chunked, "chunked", false, "Split into several files")
	cmd.Flags().IntVar(&a.chunkSize, "chunk-size", export.DefaultChunkSize, "Keys per file with --chunked")
	cmd.Flags().BoolVar(&a.raw, "raw", false, "Write UTF-8 instead of \\uXXXX escapes")

	return cmd
}

func runExport(ctx context.Context, group string, a exportArgs) error {
	st, env, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	locale := targetLocale(a.targetLanguage, env)
	opts := export.Options{Locale: locale, Raw: a.raw}

	var results []*export.Result
	if a.chunked {
		dir := a.output
		if dir == "" {
			dir = projectPath(filepath.Join(export.DefaultDir, group, "chunks"))
		}
		results, err = export.WriteChunks(ctx, st, group, dir, export.ChunkOptions{Options: opts, Size: a.chunkSize})
	} else {
		path := a.output
		if path == "" {
			path = projectPath(export.DefaultPath(group, locale))
		}
		var res *export.Result
		res, err = export.WriteFile(ctx, st, group, path, opts)
		if res != nil {
			results = append(results, res)
		}
	}
	if err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		logSuccess("%s: %s", res.Path, keyCount(res.Keys))
		for i, f := range res.Failures {
			if i == 10 {
				logWarning("... %d more", len(res.Failures)-i)
				break
			}
			logWarning("%s: %q does not decode back to %q", f.Key, f.Escaped, f.Original)
		}
		failed += len(res.Failures)
	}
	if failed > 0 {
		return fmt.Errorf("verification failed for %d values", failed)
	}
	if !a.raw {
		logInfo(i18n.T("All values verified"))
	}
	return nil
}

type convertArgs struct {
	output string
	locale string
	flat   bool
}

func newConvertCmd() *cobra.Command {
	var a convertArgs

	cmd := &cobra.Command{
		Use:   "convert <file.properties>",
		Short: "Convert a .properties file to JSON",
		Long: `Convert a .properties file to JSON for the frontend:

  {"locale": "ru-RU", "translation": {"key": "value", ...}}

The locale is detected from the file name (message_ru_RU.properties) unless
--locale is given. --flat writes a plain key/value object.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(args[0], a)
		},
	}

	cmd.Flags().StringVarP(&a.output, "output", "o", "", "Output file (default: json/<name>.json next to the input)")
	cmd.Flags().StringVar(&a.locale, "locale", "", "Locale written to the document (e.g. ru-RU)")
	cmd.Flags().BoolVar(&a.flat, "flat", false, "Write a flat key/value object")

	return cmd
}

func runConvert(in string, a convertArgs) error {
	out := a.output
	if out == "" {
		out = defaultJSONPath(in)
	}
	n, err := export.ConvertToJSON(in, out, a.locale, !a.flat)
	if err != nil {
		return err
	}
	logSuccess("%s: %s written", out, keyCount(n))
	return nil
}

// defaultJSONPath maps dir/name.properties to dir/json/name.json.
func defaultJSONPath(in string) string {
	stem := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	return filepath.Join(filepath.Dir(in), "json", stem+".json")
}

type unicodeArgs struct {
	decode     bool
	valuesOnly bool
	output     string
	inPlace    bool
}

func newUnicodeCmd() *cobra.Command {
	var a unicodeArgs

	cmd := &cobra.Command{
		Use:   "unicode <file>",
		Short: "Convert between UTF-8 and \\uXXXX escapes",
		Long: `Escape every non-ASCII character of a file as \uXXXX, or decode the
escapes back to UTF-8 with --decode.

--values-only parses the file as .properties and rewrites only the values;
comments and layout are kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnicode(cmd.OutOrStdout(), args[0], a)
		},
	}

	cmd.Flags().BoolVarP(&a.decode, "decode", "d", false, "Decode \\uXXXX escapes to UTF-8")
	cmd.Flags().BoolVar(&a.valuesOnly, "values-only", false, "Treat the file as .properties and convert values only")
	cmd.Flags().StringVarP(&a.output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVarP(&a.inPlace, "in-place", "i", false, "Overwrite the input file")

	return cmd
}

func runUnicode(stdout io.Writer, in string, a unicodeArgs) error {
	var data []byte
	if a.valuesOnly {
		f, err := propfile.ParseFile(in)
		if err != nil {
			return err
		}
		style := propfile.StyleUnicode
		if a.decode {
			style = propfile.StyleRaw
		}
		data = f.Marshal(style)
	} else {
		raw, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		if a.decode {
			data = []byte(propfile.UnescapeUnicode(string(raw)))
		} else {
			data = []byte(propfile.EscapeUnicode(string(raw)))
		}
	}

	out := a.output
	if a.inPlace {
		out = in
	}
	if out == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	logSuccess("Written %s", out)
	return nil
}

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage service credentials",
		Long: `Manage stored credentials for the translation services and Confluence.

Credentials are kept in ` + "`$XDG_DATA_HOME/plugloc/auth.json`" + ` (mode 0600).
Command-line flags and environment variables take precedence.

Services:
  deepl         DeepL API key
  google        Google API key (v2) or service account file (v3)
  confluence    Confluence base URL and bearer token

Examples:
  plugloc auth login --service deepl
  plugloc auth login --service google --credentials-file sa.json --project my-project
  plugloc auth login --service confluence --url https://wiki.example.com
  plugloc auth logout --service deepl
  plugloc auth list`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthListCmd(),
	)

	return cmd
}

var allServices = []struct {
	id   string
	name string
}{
	{settings.ServiceDeepL, "DeepL"},
	{settings.ServiceGoogle, "Google Cloud Translation"},
	{settings.ServiceConfluence, "Confluence"},
}

func completeServices(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	out := make([]string, 0, len(allServices))
	for _, s := range allServices {
		out = append(out, s.id+"\t"+s.name)
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

type loginArgs struct {
	service         string
	key             string
	credentialsFile string
	project         string
	url             string
}

func newAuthLoginCmd() *cobra.Command {
	var a loginArgs

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store credentials for a service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogin(cmd.InOrStdin(), a)
		},
	}

	cmd.Flags().StringVar(&a.service, "service", "", "Service: deepl, google, confluence (required)")
	cmd.Flags().StringVar(&a.key, "key", "", "API key or token (prompted when empty)")
	cmd.Flags().StringVar(&a.credentialsFile, "credentials-file", "", "Google service account JSON file")
	cmd.Flags().StringVar(&a.project, "project", "", "Google Cloud project ID")
	cmd.Flags().StringVar(&a.url, "url", "", "Confluence base URL")
	_ = cmd.MarkFlagRequired("service")
	_ = cmd.RegisterFlagCompletionFunc("service", completeServices)

	return cmd
}

func runAuthLogin(in io.Reader, a loginArgs) error {
	r := bufio.NewReader(in)
	var err error

	switch a.service {
	case settings.ServiceDeepL:
		if a.key == "" {
			if a.key, err = prompt(r, "DeepL API key: "); err != nil {
				return err
			}
		}
		err = settings.SetAPIKey(settings.ServiceDeepL, a.key)
	case settings.ServiceGoogle:
		if a.credentialsFile != "" {
			err = settings.SetServiceAccount(a.credentialsFile, a.project)
			break
		}
		if a.key == "" {
			if a.key, err = prompt(r, "Google API key: "); err != nil {
				return err
			}
		}
		err = settings.SetAPIKey(settings.ServiceGoogle, a.key)
	case settings.ServiceConfluence:
		if a.url == "" {
			if a.url, err = prompt(r, "Confluence URL: "); err != nil {
				return err
			}
		}
		if a.key == "" {
			if a.key, err = prompt(r, "Bearer token: "); err != nil {
				return err
			}
		}
		err = settings.SetBearer(settings.ServiceConfluence, a.key, strings.TrimRight(a.url, "/"))
	default:
		return fmt.Errorf("unknown service %q (want deepl, google or confluence)", a.service)
	}
	if err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	logSuccess("%s credentials saved to %s", a.service, settings.FilePath())
	return nil
}

func prompt(r *bufio.Reader, label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("%s empty input", strings.TrimSuffix(label, ": "))
	}
	return line, nil
}

func newAuthLogoutCmd() *cobra.Command {
	var service string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		Long:  `Remove stored credentials for one service, or all of them when --service is not given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if service == "" {
				if err := settings.RemoveAll(); err != nil {
					return err
				}
				logSuccess("All stored credentials removed")
				return nil
			}
			if err := settings.Remove(service); err != nil {
				return fmt.Errorf("removing %s credentials: %w", service, err)
			}
			logSuccess("%s credentials removed", service)
			return nil
		},
	}

	cmd.Flags().StringVar(&service, "service", "", "Service to log out (default: all)")
	_ = cmd.RegisterFlagCompletionFunc("service", completeServices)

	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := config.LoadEnv(rootDir)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "\n%sStored Credentials%s (%s)\n", colorBlue, colorReset, settings.FilePath())
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
			for _, s := range allServices {
				info := settings.Get(s.id)
				if info == nil {
					fmt.Fprintf(os.Stderr, "  %-12s %snot configured%s\n", s.id, colorRed, colorReset)
					continue
				}
				status := fmt.Sprintf("%sconfigured%s (%s", colorGreen, colorReset, info.Type)
				if info.Key != "" {
					status += ", key: " + settings.MaskKey(info.Key)
				}
				status += ")"
				if info.CredentialsFile != "" {
					status += fmt.Sprintf("\n  %12s file: %s", "", info.CredentialsFile)
				}
				if info.ProjectID != "" {
					status += fmt.Sprintf("\n  %12s project: %s", "", info.ProjectID)
				}
				if info.BaseURL != "" {
					status += fmt.Sprintf("\n  %12s endpoint: %s", "", info.BaseURL)
				}
				fmt.Fprintf(os.Stderr, "  %-12s %s\n", s.id, status)
			}

			fmt.Fprintf(os.Stderr, "\n  %sEnvironment Variables%s\n", colorYellow, colorReset)
			vars := []struct{ name, value string }{
				{settings.EnvVarForService(settings.ServiceDeepL), env.DeepLAPIKey},
				{settings.EnvVarForService(settings.ServiceGoogle), env.GoogleAPIKey},
				{"GOOGLE_APPLICATION_CREDENTIALS", env.GoogleCredentials},
				{settings.EnvVarForService(settings.ServiceConfluence), env.ConfluenceToken},
			}
			for _, v := range vars {
				if v.value == "" {
					fmt.Fprintf(os.Stderr, "  %-32s %snot set%s\n", v.name, colorRed, colorReset)
					continue
				}
				shown := settings.MaskKey(v.value)
				if strings.HasSuffix(v.name, "CREDENTIALS") {
					shown = v.value
				}
				fmt.Fprintf(os.Stderr, "  %-32s %s%s%s (overrides stored value)\n", v.name, colorGreen, shown, colorReset)
			}
			fmt.Fprintln(os.Stderr)
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

// projectPath resolves a relative path against --root.
func projectPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(rootDir, p)
}

func loadPlugins() (*config.PluginsFile, error) {
	return config.LoadPlugins(projectPath(configPath))
}

// openStore loads the environment and opens the key store named by --db,
// falling back to PLUGLOC_DB.
func openStore() (*keystore.Store, *config.Env, error) {
	env, err := config.LoadEnv(rootDir)
	if err != nil {
		return nil, nil, err
	}
	path := dbPath
	if path == "" {
		path = env.DBPath
	}
	if path == "" {
		path = keystore.DefaultPath
	}
	st, err := keystore.Open(projectPath(path))
	if err != nil {
		return nil, nil, err
	}
	return st, env, nil
}

func targetLocale(flag string, env *config.Env) string {
	for _, v := range []string{flag, env.TargetLanguage} {
		if l := langmeta.Canonicalize(v); l != "" {
			return l
		}
	}
	return langmeta.DefaultLocale
}

// resolveProvider fills the backend configuration from flags, environment
// and the credential store, in that order.
func resolveProvider(env *config.Env, service, googleVersion, apiKey string) translate.Provider {
	prov := env.Provider(service)
	switch service {
	case translate.BackendDeepL:
		prov.APIKey = settings.ResolveKey(settings.ServiceDeepL, apiKey, prov.APIKey)
	case translate.BackendGoogle:
		if googleVersion != "" {
			prov.APIVersion = googleVersion
		}
		prov.APIKey = settings.ResolveKey(settings.ServiceGoogle, apiKey, prov.APIKey)
		if info := settings.Get(settings.ServiceGoogle); info != nil {
			prov.CredentialsFile = settings.Resolve("", prov.CredentialsFile, info.CredentialsFile)
			prov.ProjectID = settings.Resolve("", prov.ProjectID, info.ProjectID)
		}
	}
	return prov
}

// selectGroups returns the groups named on the command line, or with all
// set every configured and registered group.
func selectGroups(ctx context.Context, st *keystore.Store, pf *config.PluginsFile, args []string, all bool) ([]string, error) {
	if !all {
		if len(args) == 0 {
			return nil, errNoGroups
		}
		for _, g := range args {
			if _, err := keystore.TableName(g); err != nil {
				return nil, err
			}
		}
		return dedupe(args), nil
	}
	keys := pf.Keys()
	registered, err := st.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	for _, g := range registered {
		keys = append(keys, g.Key)
	}
	keys = dedupe(keys)
	if len(keys) == 0 {
		return nil, errNoGroups
	}
	return keys, nil
}

// dedupe drops repeated entries, keeping first occurrences in order.
func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func keyCount(n int) string {
	return fmt.Sprintf(i18n.N("%d key", "%d keys", n), n)
}
