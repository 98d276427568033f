// Package main is the entry point for the askaround command line client.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/onnwee/askaround/internal/config"
	"github.com/onnwee/askaround/internal/feed"
	"github.com/onnwee/askaround/internal/geo"
	"github.com/onnwee/askaround/internal/geocode"
	"github.com/onnwee/askaround/internal/health"
	"github.com/onnwee/askaround/internal/middleware"
	"github.com/onnwee/askaround/internal/model"
	"github.com/onnwee/askaround/internal/query"
	"github.com/onnwee/askaround/internal/region"
)

const usage = `Askaround client

Usage: askaround [options] <command> [arguments]

Commands:
  feed                        list questions near a point (default)
  thread <question-id>        show a question and its responses
  answer <question-id> <text> post a response
  vote <question-id> <option> vote in a poll
  delete <question-id>        delete one of your questions
  where <lat> <lon>           reverse geocode a point
  places <text>               suggest places matching text
  status                      check the API and cache

Options:
`

// errUsage reports bad command line arguments.
var errUsage = errors.New("invalid arguments")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if err != errUsage {
			fmt.Fprintln(os.Stderr, "askaround:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("askaround", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML config file")
	help := fs.Bool("help", false, "display help message")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *help {
		fs.Usage()
		return nil
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(stderr, "config:", err)
		}
		return errors.New("invalid configuration")
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Debug("configuration loaded", "config", cfg.LogSummary())

	command, rest := "feed", fs.Args()
	if len(rest) > 0 {
		command, rest = rest[0], rest[1:]
	}
	switch command {
	case "feed", "thread", "answer", "vote", "delete", "where", "places", "status":
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		fs.Usage()
		return errUsage
	}

	a, err := newApp(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.shutdown(shutdownCtx)
	}()

	switch command {
	case "where":
		return runWhere(ctx, a, rest, stdout)
	case "places":
		return runPlaces(ctx, a, rest, stdout)
	case "status":
		return runStatus(ctx, a, stdout)
	}

	if _, err := a.start(ctx); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	switch command {
	case "feed":
		return runFeed(ctx, a, rest, stdout, stderr)
	case "thread":
		return runThread(ctx, a, rest, stdout)
	case "answer":
		return runAnswer(ctx, a, rest, stdout)
	case "vote":
		return runVote(ctx, a, rest, stdout)
	default:
		return runDelete(ctx, a, rest, stdout)
	}
}

func runFeed(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("feed", flag.ContinueOnError)
	fs.SetOutput(stderr)
	lat := fs.Float64("lat", geo.DefaultCenter.Latitude, "map center latitude")
	lon := fs.Float64("lon", geo.DefaultCenter.Longitude, "map center longitude")
	radius := fs.Float64("radius", 10, "feed radius in miles")
	filterType := fs.String("filter-type", "", "filter kind, e.g. category")
	filterValue := fs.String("filter-value", "", "filter value")
	pages := fs.Int("pages", 1, "number of pages to load")
	watch := fs.Bool("watch", false, "keep running and print every update")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	center := geo.Coordinates{Latitude: *lat, Longitude: *lon}
	if !center.Valid() {
		return fmt.Errorf("%w: %s is not a valid point", errUsage, center)
	}

	updates := make(chan query.State, 1)
	f := a.newFeed(ctx, *filterType, *filterValue, func(s query.State) {
		select {
		case updates <- s:
		default:
		}
	})
	defer f.Close()

	f.OnViewportChange(region.Viewport{
		Center:         center,
		LatitudeDelta:  geo.LatitudeDeltaForRadius(*radius),
		LongitudeDelta: geo.LatitudeDeltaForRadius(*radius),
	})

	select {
	case <-updates:
	case <-ctx.Done():
		return nil
	}
	for i := 1; i < *pages && f.State().HasMore; i++ {
		if err := f.FetchNextPage(ctx); err != nil {
			return err
		}
	}
	if err := feedError(f); err != nil {
		return err
	}
	printQuestions(stdout, f.Region(), f.Items())

	for *watch {
		select {
		case <-updates:
			printQuestions(stdout, f.Region(), f.Items())
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

func feedError(f *feed.Feed) error {
	if err := f.State().Err; err != nil {
		return fmt.Errorf("load feed: %w", err)
	}
	return nil
}

func printQuestions(w io.Writer, r geo.Region, qs []model.Question) {
	fmt.Fprintf(w, "%d questions within %s\n", len(qs), r)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, q := range qs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f mi\t%d responses\n", q.ID, q.Title, q.Category, q.DistanceMiles, q.NumResponses)
	}
	_ = tw.Flush()
}

func runThread(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: thread takes a question id", errUsage)
	}
	a.warmQuestions(ctx, args[0])
	t := feed.OpenThread(a.questions.Cache(), a.responses, args[0])
	defer t.Close()

	q, err := t.Question(ctx)
	if err != nil {
		return err
	}
	if err := t.Load(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s\n%s\n", q.Title, q.Body)
	if q.Poll != nil {
		for _, o := range q.Poll.Options {
			fmt.Fprintf(stdout, "  [%s] %s (%d)\n", o.ID, o.Label, o.NumVotes)
		}
	}
	fmt.Fprintln(stdout)
	for _, r := range t.Responses() {
		author := r.AuthorID
		if r.Author != nil {
			author = r.Author.Username
		}
		fmt.Fprintf(stdout, "%s: %s\n", author, r.Body)
	}
	return nil
}

func runAnswer(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: answer takes a question id and text", errUsage)
	}
	r, err := a.mutations.CreateResponse(ctx, &model.CreateResponseRequest{
		QuestionID: args[0],
		Body:       strings.Join(args[1:], " "),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "posted response %s\n", r.ID)
	return nil
}

func runVote(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: vote takes a question id and an option id", errUsage)
	}
	a.warmQuestions(ctx, args[0])
	if _, err := a.questions.Cache().Load(ctx, args[0]); err != nil {
		return err
	}
	poll, err := a.mutations.VotePoll(ctx, model.VotePollRequest{QuestionID: args[0], OptionID: args[1]})
	if err != nil {
		return err
	}
	for _, o := range poll.Options {
		fmt.Fprintf(stdout, "  [%s] %s (%d)\n", o.ID, o.Label, o.NumVotes)
	}
	return nil
}

func runDelete(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: delete takes a question id", errUsage)
	}
	if err := a.mutations.DeleteQuestion(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "deleted question %s\n", args[0])
	return nil
}

func runWhere(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	if err := a.cfg.RequireGeocoding(); err != nil {
		return err
	}
	if len(args) != 2 {
		return fmt.Errorf("%w: where takes a latitude and a longitude", errUsage)
	}
	lat, err1 := strconv.ParseFloat(args[0], 64)
	lon, err2 := strconv.ParseFloat(args[1], 64)
	if err := errors.Join(err1, err2); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	p := geocode.NewPicker(a.geocoder, geo.DefaultCenter, geocode.WithPickerLogger(a.logger))
	defer p.Close()
	p.Select(ctx, geo.Coordinates{Latitude: lat, Longitude: lon})
	p.Wait()

	sel := p.Selection()
	if sel.Err != nil {
		return sel.Err
	}
	fmt.Fprintf(stdout, "%s\n%s\n", sel.Address.Label(), sel.Address.Formatted)
	return nil
}

func runPlaces(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	if err := a.cfg.RequireGeocoding(); err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: places takes search text", errUsage)
	}
	preds, err := a.geocoder.Autocomplete(ctx, strings.Join(args, " "), geo.DefaultCenter)
	if err != nil {
		return err
	}
	for _, p := range preds {
		fmt.Fprintf(stdout, "%s\t%s\n", p.PlaceID, p.Description)
	}
	return nil
}

func runStatus(ctx context.Context, a *app, stdout io.Writer) error {
	report := health.Run(ctx, a.checkers(), 0)
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, res := range report {
		status := "ok"
		if res.Err != nil {
			status = res.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%dms\n", res.Name, status, res.Latency.Milliseconds())
	}
	_ = tw.Flush()
	return report.Err()
}
