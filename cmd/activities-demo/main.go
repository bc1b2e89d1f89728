package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/goliatone/go-activities/internal/di"
	"github.com/goliatone/go-activities/pkg/commands"
	"github.com/goliatone/go-activities/pkg/config"
	"github.com/goliatone/go-activities/pkg/domain"
	"github.com/goliatone/go-activities/pkg/interfaces/store"
	"github.com/goliatone/go-activities/pkg/mediators/events"
	"github.com/goliatone/go-activities/pkg/mediators/hatenablog"
)

//go:embed templates
var embedded embed.FS

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	envFile := flag.String("env", ".env", "dotenv file with ACTIVITIES_* overrides")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	tpl, err := fs.Sub(embedded, "templates")
	if err != nil {
		log.Fatal(err)
	}

	site := newSite()
	ctx := context.Background()
	container, err := di.New(ctx, di.Options{
		Config:     cfg,
		TemplateFS: tpl,
		Subjects:   site,
		Users:      site,
	})
	if err != nil {
		log.Fatalf("container: %v", err)
	}
	defer container.Close()

	if err := run(ctx, container, site); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(path, envFile string) (config.Config, error) {
	cfg := config.Defaults()
	if path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if len(cfg.Notifiers) == 0 {
		cfg.Notifiers = []config.NotifierConfig{
			{Name: "wall", Type: "console"},
			{Name: hatenablog.DefaultNotifier, Type: "console", Channel: "twitter"},
		}
		cfg.Notifications.DefaultNotifiers = []string{"wall"}
	}
	return config.FromEnv(cfg, envFile)
}

func run(ctx context.Context, c *di.Container, site *site) error {
	cmd := c.Commands
	start := time.Date(2026, 11, 3, 19, 0, 0, 0, time.UTC)
	jam := &events.Event{ID: 1, Title: "Kawaz Game Jam", PubState: events.PubStateDraft, PeriodStart: &start}
	site.put(jam)
	ref := commands.SubjectRef{SubjectType: events.SubjectType.String(), SubjectID: jam.SubjectID()}

	steps := []struct {
		label string
		exec  func() error
	}{
		{"save draft", func() error { return cmd.RecordSave.Execute(ctx, commands.RecordSave{SubjectRef: ref, Created: true}) }},
		{"publish", func() error {
			jam.PubState = events.PubStatePublic
			return cmd.RecordSave.Execute(ctx, commands.RecordSave{SubjectRef: ref})
		}},
		{"set place", func() error {
			jam.Place = "Sapporo"
			return cmd.RecordSave.Execute(ctx, commands.RecordSave{SubjectRef: ref})
		}},
		{"rename only", func() error {
			jam.Title = "Kawaz Game Jam 2026"
			return cmd.RecordSave.Execute(ctx, commands.RecordSave{SubjectRef: ref})
		}},
		{"attendees join", func() error {
			return cmd.RecordRelation.Execute(ctx, commands.RecordRelation{
				SubjectRef:  ref,
				Action:      "post_add",
				RelatedType: events.PersonaType,
				Keys:        []string{"7", "9"},
			})
		}},
		{"cancel", func() error { return cmd.RecordDelete.Execute(ctx, commands.RecordDelete{SubjectRef: ref}) }},
	}
	for _, step := range steps {
		fmt.Printf("== %s\n", step.label)
		if err := step.exec(); err != nil {
			return fmt.Errorf("%s: %w", step.label, err)
		}
	}

	entry := &hatenablog.Entry{URL: "https://kawazinfo.hateblo.jp/entry/1", Title: "Jam recap", MD5: "a1"}
	fmt.Println("== blog entry")
	if _, err := c.Activities.OnSave(ctx, entry, true); err != nil {
		return err
	}

	history, err := c.Activities.History(ctx, jam, store.ListOptions{})
	if err != nil {
		return err
	}
	fmt.Printf("== history of %s (%d)\n", jam.Title, history.Total)
	for _, a := range history.Items {
		fmt.Printf("%s  %-12s %q\n", a.CreatedAt.Format(time.RFC3339), a.Status, a.Remarks)
	}
	return nil
}

// site is a stand-in for the host's entity stores.
type site struct {
	events map[string]*events.Event
}

func newSite() *site {
	return &site{events: map[string]*events.Event{}}
}

func (s *site) put(e *events.Event) {
	s.events[e.SubjectID()] = e
}

func (s *site) Resolve(_ context.Context, subjectType domain.SubjectType, id string) (domain.Subject, error) {
	if subjectType != events.SubjectType {
		return nil, fmt.Errorf("demo: unknown type %s", subjectType)
	}
	e, ok := s.events[id]
	if !ok {
		return nil, errors.New("demo: event not found")
	}
	return e, nil
}

func (s *site) LookupUsers(_ context.Context, ids []string) ([]events.User, error) {
	users := make([]events.User, 0, len(ids))
	for _, id := range ids {
		users = append(users, events.User{ID: id, Username: "member" + id, Nickname: "Member " + id})
	}
	return users, nil
}
