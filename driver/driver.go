// Package driver runs translation passes over a group of keys: it pulls the
// pending keys from the store, masks placeholders, calls the gateway, and
// records every outcome immediately so a run can stop at any point and be
// resumed by running it again.
//
// Pacing follows the backend's load signals. A batch in which any call was
// rate limited or hit a quota is a high-load batch; the driver then cools
// down, re-reads the pending list and starts numbering batches again.
package driver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minios-linux/plugloc/keystore"
	"github.com/minios-linux/plugloc/langmeta"
	"github.com/minios-linux/plugloc/placeholder"
	"github.com/minios-linux/plugloc/translate"
	"golang.org/x/sync/errgroup"
)

// Store is the part of the key store the driver needs.
type Store interface {
	ListPending(ctx context.Context, group string) ([]*keystore.Record, error)
	RecordSuccess(ctx context.Context, group, key, translatedText, method string) error
	RecordFailure(ctx context.Context, group, key, reason string) error
	Stats(ctx context.Context, group string) (keystore.Stats, error)
}

// Defaults for Options fields left at zero.
const (
	DefaultBatchSize    = 100
	DefaultKeyDelay     = 50 * time.Millisecond
	DefaultBatchPause   = 2 * time.Second
	DefaultCooldownBase = 30 * time.Second
	DefaultCooldownStep = 10 * time.Second
	DefaultCooldownMax  = 120 * time.Second

	// lowQuotaThreshold triggers a warning when less quota remains.
	lowQuotaThreshold = 10000
)

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Options controls a driver run.
type Options struct {
	// SourceLocale is the source language (default "en").
	SourceLocale string
	// TargetLocale is the canonical target locale (default ru_RU).
	TargetLocale string
	// BatchSize is the number of keys per batch.
	BatchSize int
	// KeyDelay is the pause after each successful call. Negative disables it.
	KeyDelay time.Duration
	// BatchPause is the pause between two batches without load signals.
	// Negative disables it.
	BatchPause time.Duration
	// CooldownBase, CooldownStep and CooldownMax shape the high-load sleep:
	// min(base + step*priorHighLoadBatches, max).
	CooldownBase time.Duration
	CooldownStep time.Duration
	CooldownMax  time.Duration
	// MaxCooldowns stops the run after this many high-load batches
	// (0 = keep going until everything is attempted or the run is cancelled).
	MaxCooldowns int
	// SkipCheck disables the gateway pre-flight check.
	SkipCheck bool

	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// Now is the clock used for run durations.
	Now func() time.Time

	// OnProgress is called after each attempted key.
	OnProgress func(group string, done, total int)
	// OnBatch is called after each batch completes.
	OnBatch func(group string, b BatchResult)
	// OnLog emits informational messages.
	OnLog func(format string, args ...any)
	// OnError emits per-key failures and warnings.
	OnError func(format string, args ...any)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) effectiveSourceLocale() string {
	if o.SourceLocale != "" {
		return o.SourceLocale
	}
	return translate.SourceLocale
}

func (o *Options) effectiveTargetLocale() string {
	if o.TargetLocale != "" {
		return langmeta.Canonicalize(o.TargetLocale)
	}
	return langmeta.DefaultLocale
}

func (o *Options) effectiveBatchSize() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return DefaultBatchSize
}

func durationOr(d, def time.Duration) time.Duration {
	switch {
	case d < 0:
		return 0
	case d == 0:
		return def
	default:
		return d
	}
}

// Cooldown returns the sleep after a high-load batch, given how many
// high-load batches came before it in this run.
func (o *Options) Cooldown(prior int) time.Duration {
	base := durationOr(o.CooldownBase, DefaultCooldownBase)
	step := durationOr(o.CooldownStep, DefaultCooldownStep)
	limit := durationOr(o.CooldownMax, DefaultCooldownMax)
	return min(base+step*time.Duration(prior), limit)
}

func (o *Options) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if o.Sleep != nil {
		return o.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}

func (o *Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ---------------------------------------------------------------------------
// Results
// ---------------------------------------------------------------------------

// BatchResult describes one completed (or interrupted) batch.
type BatchResult struct {
	// Number is 1-based and restarts after every cooldown.
	Number     int
	Of         int
	Size       int
	Translated int
	Errors     int
	// HighLoad is set when any call in the batch was rate limited or hit a
	// quota.
	HighLoad       bool
	HighLoadErrors int
}

// Summary is the outcome of one group run.
type Summary struct {
	Group           string
	Backend         string
	Translated      int
	Errors          int
	HighLoadErrors  int
	HighLoadBatches int
	Batches         int
	// Stats is read from the store after the run.
	Stats keystore.Stats
	// Usage is the quota reported by the pre-flight check, if any.
	Usage       translate.Usage
	Interrupted bool
	Duration    time.Duration
}

// ---------------------------------------------------------------------------
// Driver
// ---------------------------------------------------------------------------

// Driver translates pending keys through one gateway.
type Driver struct {
	store Store
	gw    translate.Gateway
	opts  Options
}

// New returns a driver for the given store and gateway.
func New(store Store, gw translate.Gateway, opts Options) *Driver {
	return &Driver{store: store, gw: gw, opts: opts}
}

// Run performs one full pass over group. Per-key failures are recorded and
// never returned; the error result is reserved for a failed pre-flight check
// and store failures. Cancelling ctx ends the run with Interrupted set and
// the in-flight key still pending.
func (d *Driver) Run(ctx context.Context, group string) (*Summary, error) {
	o := &d.opts
	start := o.now()
	sum := &Summary{Group: group, Backend: d.gw.Name()}
	finish := func() (*Summary, error) {
		sum.Interrupted = sum.Interrupted || ctx.Err() != nil
		stats, err := d.store.Stats(context.WithoutCancel(ctx), group)
		if err != nil {
			return sum, err
		}
		sum.Stats = stats
		sum.Duration = o.now().Sub(start)
		return sum, nil
	}

	if !o.SkipCheck {
		usage, err := d.check(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return finish()
			}
			return nil, err
		}
		sum.Usage = usage
	}

	for {
		pending, err := d.store.ListPending(ctx, group)
		if err != nil {
			if ctx.Err() != nil {
				return finish()
			}
			return nil, fmt.Errorf("listing pending keys of %s: %w", group, err)
		}
		if len(pending) == 0 {
			o.log("%s: nothing to translate", group)
			return finish()
		}

		batches := split(pending, o.effectiveBatchSize())
		o.log("%s: %d keys pending in %d batch(es)", group, len(pending), len(batches))

		cooled := false
		done := 0
		for i, batch := range batches {
			res, err := d.runBatch(ctx, group, batch, i+1, len(batches), &done, len(pending))
			sum.Batches++
			sum.Translated += res.Translated
			sum.Errors += res.Errors
			sum.HighLoadErrors += res.HighLoadErrors
			if o.OnBatch != nil {
				o.OnBatch(group, res)
			}
			if err != nil {
				if ctx.Err() != nil {
					return finish()
				}
				return sum, err
			}

			if res.HighLoad {
				wait := o.Cooldown(sum.HighLoadBatches)
				sum.HighLoadBatches++
				if o.MaxCooldowns > 0 && sum.HighLoadBatches >= o.MaxCooldowns {
					o.logError("%s: %d high-load batches, stopping; rerun later to continue", group, sum.HighLoadBatches)
					return finish()
				}
				o.logError("%s: batch %d/%d hit high load (%d errors), cooling down for %s",
					group, res.Number, res.Of, res.HighLoadErrors, wait)
				if err := o.sleep(ctx, wait); err != nil {
					return finish()
				}
				cooled = true
				break
			}

			if i < len(batches)-1 {
				if err := o.sleep(ctx, durationOr(o.BatchPause, DefaultBatchPause)); err != nil {
					return finish()
				}
			}
		}
		if !cooled {
			return finish()
		}
	}
}

// check runs the gateway pre-flight. An unreachable usage endpoint is only
// a warning; everything else aborts the run.
func (d *Driver) check(ctx context.Context) (translate.Usage, error) {
	o := &d.opts
	usage, err := d.gw.Check(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return usage, ctx.Err()
		}
		if translate.KindOf(err) == translate.KindUnreachable {
			o.logError("%s: usage check failed, continuing: %v", d.gw.Name(), err)
			return translate.Usage{}, nil
		}
		return usage, fmt.Errorf("%s pre-flight check: %w", d.gw.Name(), err)
	}
	if usage.Known {
		o.log("%s usage: %d/%d characters", d.gw.Name(), usage.Count, usage.Limit)
		if usage.Limit > 0 && usage.Remaining() < lowQuotaThreshold {
			o.logError("%s: only %d characters left in quota", d.gw.Name(), usage.Remaining())
		}
	}
	return usage, nil
}

func (d *Driver) runBatch(ctx context.Context, group string, batch []*keystore.Record, number, of int, done *int, total int) (BatchResult, error) {
	o := &d.opts
	res := BatchResult{Number: number, Of: of, Size: len(batch)}
	for _, rec := range batch {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		text, err := d.translateOne(ctx, rec.OriginalText)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			kind := translate.KindOf(err)
			res.Errors++
			if kind.HighLoad() {
				res.HighLoad = true
				res.HighLoadErrors++
			}
			if err := d.store.RecordFailure(ctx, group, rec.Key, err.Error()); err != nil {
				return res, fmt.Errorf("recording failure of %s: %w", rec.Key, err)
			}
			o.logError("%s: %s: %s: %v", group, rec.Key, kind, err)
			*done++
			if o.OnProgress != nil {
				o.OnProgress(group, *done, total)
			}
			continue
		}

		if err := d.store.RecordSuccess(ctx, group, rec.Key, text, d.gw.Name()); err != nil {
			return res, fmt.Errorf("recording translation of %s: %w", rec.Key, err)
		}
		res.Translated++
		*done++
		if o.OnProgress != nil {
			o.OnProgress(group, *done, total)
		}
		if err := o.sleep(ctx, durationOr(o.KeyDelay, DefaultKeyDelay)); err != nil {
			return res, err
		}
	}
	return res, nil
}

// translateOne masks placeholders, calls the gateway and restores them.
// Blank source text is returned unchanged without a call.
func (d *Driver) translateOne(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	masked, m := placeholder.Mask(text)
	out, err := d.gw.Translate(ctx, masked, d.opts.effectiveSourceLocale(), d.opts.effectiveTargetLocale())
	if err != nil {
		return "", err
	}
	return placeholder.Unmask(out, m), nil
}

func split(recs []*keystore.Record, size int) [][]*keystore.Record {
	var out [][]*keystore.Record
	for start := 0; start < len(recs); start += size {
		end := min(start+size, len(recs))
		out = append(out, recs[start:end])
	}
	return out
}

// ---------------------------------------------------------------------------
// Multiple groups
// ---------------------------------------------------------------------------

// RunGroups runs several groups with at most maxConcurrent running at once.
// Groups are independent partitions, so each has exactly one writer.
// Summaries are returned in the order of groups.
func (d *Driver) RunGroups(ctx context.Context, groups []string, maxConcurrent int) ([]*Summary, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	summaries := make([]*Summary, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			sum, err := d.Run(gctx, group)
			summaries[i] = sum
			if err != nil {
				return fmt.Errorf("group %s: %w", group, err)
			}
			return nil
		})
	}
	err := g.Wait()
	return summaries, err
}
