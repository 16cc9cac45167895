package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"billexact/internal/billing"
	"billexact/internal/categorize"
	"billexact/internal/config"
	"billexact/internal/logging"
	"billexact/internal/store"
)

// Store is the persistence surface ingestion needs.
type Store interface {
	InsertEntry(ctx context.Context, entry billing.TimeEntry) (billing.TimeEntry, error)
	ListBindings(ctx context.Context) ([]billing.Binding, error)
	GetMatter(ctx context.Context, clientMatterID string) (billing.Matter, error)
	GetTimekeeper(ctx context.Context, id string) (billing.Timekeeper, error)
}

// Request scopes one ingestion run. ClientID and MatterID apply to
// activities no binding routes.
type Request struct {
	ClientID     string
	MatterID     string
	TimekeeperID string
}

// Summary counts what happened to each activity.
type Summary struct {
	Received   int `json:"received"`
	Focused    int `json:"focused"`
	Merged     int `json:"merged"`
	DoNotBill  int `json:"do_not_bill"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

// Service runs the ingestion pipeline.
type Service struct {
	store       Store
	categorizer *categorize.Service
	minFocus    time.Duration
	mergeWindow time.Duration
	ignoreApps  []string
	defaults    config.Billing
	logger      *slog.Logger
}

// NewService wires a pipeline from configuration.
func NewService(cfg *config.Config, st Store, categorizer *categorize.Service, logger *slog.Logger) *Service {
	return &Service{
		store:       st,
		categorizer: categorizer,
		minFocus:    time.Duration(cfg.Ingest.MinFocusSeconds) * time.Second,
		mergeWindow: time.Duration(cfg.Ingest.MergeWindowMinutes) * time.Minute,
		ignoreApps:  append([]string(nil), cfg.Ingest.IgnoreApps...),
		defaults:    cfg.Billing,
		logger:      logging.NewComponentLogger(logger, "ingest"),
	}
}

// Ingest filters, merges, routes, categorizes and stores activities.
func (s *Service) Ingest(ctx context.Context, activities []Activity, req Request) (Summary, error) {
	summary := Summary{Received: len(activities)}

	bindings, err := s.store.ListBindings(ctx)
	if err != nil {
		return summary, fmt.Errorf("load bindings: %w", err)
	}
	router, err := NewRouter(bindings)
	if err != nil {
		return summary, fmt.Errorf("compile bindings: %w", err)
	}
	cat, err := s.categorizer.Categorizer(ctx)
	if err != nil {
		return summary, fmt.Errorf("load keyword rules: %w", err)
	}

	focused := Filter(activities, s.minFocus, s.ignoreApps)
	summary.Focused = len(focused)
	merged := Merge(focused, s.mergeWindow)
	summary.Merged = len(merged)

	timekeeperID := req.TimekeeperID
	if timekeeperID == "" {
		timekeeperID = s.defaults.DefaultTimekeeperID
	}
	rate := s.rateFor(ctx, timekeeperID)
	clients := map[string]string{}

	for _, a := range merged {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		entry := billing.TimeEntry{
			WorkDate:      billing.DateOf(a.Start),
			ClientID:      req.ClientID,
			MatterID:      req.MatterID,
			TimekeeperID:  timekeeperID,
			DurationHours: hours(a.Duration()),
			Description:   a.Subject,
			Rate:          rate,
			Source:        billing.SourceActivityWatch,
			StartedAt:     a.Start,
		}
		if route, ok := router.Resolve(a); ok {
			if route.DoNotBill {
				summary.DoNotBill++
				continue
			}
			entry.MatterID = route.MatterID
			entry.ClientID = s.clientFor(ctx, clients, route.MatterID, req.ClientID)
		}
		if err := cat.Categorize(entry.Description).Apply(&entry); err != nil {
			return summary, fmt.Errorf("apply codes: %w", err)
		}

		if _, err := s.store.InsertEntry(ctx, entry); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				summary.Duplicates++
				continue
			}
			summary.Failed++
			logging.WarnWithContext(s.logger, "activity not stored", "ingest_insert_failed",
				logging.String("subject", a.Subject),
				logging.Error(err),
				logging.String(logging.FieldImpact, "activity dropped from this run"),
			)
			continue
		}
		summary.Inserted++
	}

	s.logger.Info("ingestion complete", logging.Args(
		logging.String(logging.FieldEventType, "ingest_complete"),
		logging.Int("received", summary.Received),
		logging.Int("merged", summary.Merged),
		logging.Int("inserted", summary.Inserted),
		logging.Int("duplicates", summary.Duplicates),
		logging.Int("do_not_bill", summary.DoNotBill),
	)...)
	return summary, nil
}

func (s *Service) rateFor(ctx context.Context, timekeeperID string) float64 {
	if timekeeperID == "" {
		return s.defaults.DefaultRate
	}
	tk, err := s.store.GetTimekeeper(ctx, timekeeperID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logging.WarnWithContext(s.logger, "timekeeper lookup failed", "ingest_timekeeper_lookup",
				logging.String("timekeeper_id", timekeeperID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "default rate applied"),
			)
		}
		return s.defaults.DefaultRate
	}
	if tk.Rate <= 0 {
		return s.defaults.DefaultRate
	}
	return tk.Rate
}

func (s *Service) clientFor(ctx context.Context, cache map[string]string, matterID, fallback string) string {
	if client, ok := cache[matterID]; ok {
		return client
	}
	client := fallback
	m, err := s.store.GetMatter(ctx, matterID)
	if err == nil && m.ClientID != "" {
		client = m.ClientID
	} else if err != nil {
		logging.WarnWithContext(s.logger, "bound matter not found", "ingest_matter_lookup",
			logging.String(logging.FieldMatterID, matterID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "seed matters before binding activity to them"),
			logging.String(logging.FieldImpact, "request client id applied"),
		)
	}
	cache[matterID] = client
	return client
}

// hours converts d to hours rounded to four places.
func hours(d time.Duration) float64 {
	return math.Round(d.Hours()*10000) / 10000
}
