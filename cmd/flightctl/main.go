package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/saviobatista/flightwatch/internal/config"
	"github.com/saviobatista/flightwatch/internal/db"
	"github.com/saviobatista/flightwatch/internal/directory"
	"github.com/saviobatista/flightwatch/internal/itinerary"
	"github.com/saviobatista/flightwatch/internal/nats"
	"github.com/saviobatista/flightwatch/internal/types"
)

const usage = `Usage: flightctl <command> [flags]

Commands:
  add      Add or replace a flight
  list     List stored flights
  update   Change notes or travellers of a flight
  remove   Remove a flight by key
  clear    Remove every flight
`

// Manager is the manual flight list; *itinerary.Manual
type Manager interface {
	Add(ctx context.Context, req itinerary.AddRequest) (string, error)
	List(ctx context.Context) ([]*types.ManualFlight, error)
	Update(ctx context.Context, flightKey string, u *db.ManualFlightUpdate) (bool, error)
	Remove(ctx context.Context, flightKey string) (bool, error)
	Clear(ctx context.Context) (int64, error)
}

// splitList turns "a, b,,c" into [a b c]
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return itinerary.NormalizeTravellers(strings.Split(s, ","))
}

func runAdd(ctx context.Context, m Manager, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(out)
	airline := fs.String("airline", "", "Airline IATA code (required)")
	number := fs.String("number", "", "Flight number (required)")
	dep := fs.String("dep", "", "Departure airport IATA code (required)")
	arr := fs.String("arr", "", "Arrival airport IATA code (required)")
	depTime := fs.String("dep-time", "", "Scheduled departure, ISO-8601; local to the airport without an offset (required)")
	arrTime := fs.String("arr-time", "", "Scheduled arrival, ISO-8601")
	travellers := fs.String("travellers", "", "Comma separated traveller names")
	notes := fs.String("notes", "", "Free text notes")
	aircraft := fs.String("aircraft", "", "Aircraft type")
	depTZ := fs.String("dep-tz", "", "Departure airport IANA zone")
	arrTZ := fs.String("arr-tz", "", "Arrival airport IANA zone")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := m.Add(ctx, itinerary.AddRequest{
		AirlineCode:        *airline,
		FlightNumber:       *number,
		DepAirport:         *dep,
		ArrAirport:         *arr,
		ScheduledDeparture: *depTime,
		ScheduledArrival:   *arrTime,
		Travellers:         splitList(*travellers),
		Notes:              *notes,
		AircraftType:       *aircraft,
		DepAirportTZ:       *depTZ,
		ArrAirportTZ:       *arrTZ,
	})
	if err != nil {
		return fmt.Errorf("failed to add flight: %w", err)
	}
	fmt.Fprintf(out, "Added %s\n", key)
	return nil
}

func runList(ctx context.Context, m Manager, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(out)
	asJSON := fs.Bool("json", false, "Print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	flights, err := m.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list flights: %w", err)
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if flights == nil {
			flights = []*types.ManualFlight{}
		}
		return enc.Encode(flights)
	}

	if len(flights) == 0 {
		fmt.Fprintln(out, "No flights")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tROUTE\tDEPARTURE (UTC)\tSTATE\tTRAVELLERS")
	for _, f := range flights {
		state := f.StatusState
		if state == "" {
			state = "-"
		}
		fmt.Fprintf(w, "%s\t%s-%s\t%s\t%s\t%s\n",
			f.FlightKey, f.DepAirport, f.ArrAirport,
			f.ScheduledDeparture.UTC().Format("2006-01-02 15:04"),
			state, strings.Join(f.Travellers, ", "))
	}
	return w.Flush()
}

func runUpdate(ctx context.Context, m Manager, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	fs.SetOutput(out)
	notes := fs.String("notes", "", "Replace notes")
	travellers := fs.String("travellers", "", "Replace travellers, comma separated")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("update needs exactly one flight key")
	}

	u := &db.ManualFlightUpdate{}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "notes":
			u.Notes = notes
		case "travellers":
			u.Travellers = splitList(*travellers)
			if u.Travellers == nil {
				u.Travellers = []string{}
			}
		}
	})
	if u.Empty() {
		return fmt.Errorf("nothing to update")
	}

	key := fs.Arg(0)
	ok, err := m.Update(ctx, key, u)
	if err != nil {
		return fmt.Errorf("failed to update flight: %w", err)
	}
	if !ok {
		return fmt.Errorf("flight %s not found", key)
	}
	fmt.Fprintf(out, "Updated %s\n", key)
	return nil
}

func runRemove(ctx context.Context, m Manager, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("remove needs at least one flight key")
	}
	for _, key := range args {
		ok, err := m.Remove(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to remove %s: %w", key, err)
		}
		if !ok {
			fmt.Fprintf(out, "Not found: %s\n", key)
			continue
		}
		fmt.Fprintf(out, "Removed %s\n", key)
	}
	return nil
}

func runClear(ctx context.Context, m Manager, out io.Writer) error {
	n, err := m.Clear(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear flights: %w", err)
	}
	fmt.Fprintf(out, "Removed %d flights\n", n)
	return nil
}

// run dispatches one command
func run(ctx context.Context, m Manager, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return fmt.Errorf("missing command")
	}

	switch args[0] {
	case "add":
		return runAdd(ctx, m, args[1:], out)
	case "list", "ls":
		return runList(ctx, m, args[1:], out)
	case "update":
		return runUpdate(ctx, m, args[1:], out)
	case "remove", "rm":
		return runRemove(ctx, m, args[1:], out)
	case "clear":
		return runClear(ctx, m, out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// newManager connects to the store. The NATS notifier is optional.
func newManager(cfg *config.Config) (*itinerary.Manual, func(), error) {
	if cfg.DBConnStr == "" {
		return nil, nil, fmt.Errorf("DB_CONN_STR is required")
	}
	dbClient, err := db.New(cfg.DBConnStr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dbClient.Ping(ctx); err != nil {
		_ = dbClient.Close()
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	dir := directory.New(directory.NewStatic(directory.ParseOverrides(cfg.AirportTZOverrides)), nil, cfg.DirectoryTTL)
	if cfg.AirportsFile != "" {
		of, err := directory.LoadOpenFlights(cfg.AirportsFile)
		if err != nil {
			log.Printf("Warning: failed to load %s: %v", cfg.AirportsFile, err)
		} else {
			dir.AddAirportSource(of)
		}
	}

	manual := itinerary.NewManual(dbClient)
	manual.SetTZResolver(dir)

	var natsClient *nats.Client
	if cfg.NATSURL != "" {
		natsClient, err = nats.New(cfg.NATSURL)
		if err != nil {
			log.Printf("Warning: failed to connect to NATS, tracker will not be notified: %v", err)
		} else {
			manual.SetNotifier(natsClient)
		}
	}

	closeFn := func() {
		if natsClient != nil {
			natsClient.Close()
		}
		if err := dbClient.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error closing dbClient: %v\n", err)
		}
	}
	return manual, closeFn, nil
}

func main() {
	log.SetFlags(0)

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Invalid configuration: %v", err)
		os.Exit(1)
	}

	manual, closeFn, err := newManager(cfg)
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	err = run(context.Background(), manual, os.Args[1:], os.Stdout)
	closeFn()
	if err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}
