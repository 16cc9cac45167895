package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"billexact/internal/billing"
	"billexact/internal/keywords"
	"billexact/internal/store"
	"billexact/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entry, err := st.InsertEntry(ctx, billing.TimeEntry{
		WorkDate:      billing.NewDate(2024, time.March, 4),
		MatterID:      "M-1",
		DurationHours: 1.5,
		Description:   "Draft motion to compel",
		Rate:          300,
	})
	if err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}
	if entry.ID == "" {
		t.Fatal("expected entry ID to be assigned")
	}
	if entry.Source != billing.SourceManual {
		t.Fatalf("expected manual source, got %q", entry.Source)
	}

	fetched, err := st.GetEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if fetched.Description != "Draft motion to compel" || fetched.WorkDate.String() != "2024-03-04" {
		t.Fatalf("unexpected fetched entry: %#v", fetched)
	}

	// Reopening must not re-run applied migrations.
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	reopened, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.GetEntry(ctx, entry.ID); err != nil {
		t.Fatalf("GetEntry after reopen failed: %v", err)
	}
}

func TestGetEntryNotFound(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if _, err := st.GetEntry(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertEntryRejectsInvalid(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	_, err := st.InsertEntry(context.Background(), billing.TimeEntry{DurationHours: -1})
	if !errors.Is(err, billing.ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry, got %v", err)
	}
}

func TestInsertEntryDuplicateCapture(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	started := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	entry := billing.TimeEntry{
		WorkDate:      billing.DateOf(started),
		DurationHours: 0.5,
		Description:   "Code - main.go",
		Source:        billing.SourceActivityWatch,
		StartedAt:     started,
	}
	if _, err := st.InsertEntry(ctx, entry); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if _, err := st.InsertEntry(ctx, entry); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Manual entries without a capture time never collide.
	manual := billing.TimeEntry{DurationHours: 1, Description: "Call with client"}
	testsupport.NewEntry(t, st, manual)
	testsupport.NewEntry(t, st, manual)
}

func TestListEntriesFiltersAndOrders(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	late := testsupport.NewEntry(t, st, billing.TimeEntry{WorkDate: billing.NewDate(2024, 3, 5), MatterID: "M-1", DurationHours: 1, Description: "late"})
	early := testsupport.NewEntry(t, st, billing.TimeEntry{WorkDate: billing.NewDate(2024, 3, 1), MatterID: "M-1", DurationHours: 1, Description: "early"})
	undated := testsupport.NewEntry(t, st, billing.TimeEntry{MatterID: "M-1", DurationHours: 1, Description: "undated"})
	testsupport.NewEntry(t, st, billing.TimeEntry{WorkDate: billing.NewDate(2024, 3, 2), MatterID: "M-2", DurationHours: 1, Description: "other"})

	got, err := st.ListEntries(ctx, store.EntryFilter{MatterID: "M-1"})
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	want := []string{early.ID, late.ID, undated.ID}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("entry %d: expected %s (%s), got %s", i, id, []string{"early", "late", "undated"}[i], got[i].Description)
		}
	}

	ranged, err := st.ListEntries(ctx, store.EntryFilter{From: billing.NewDate(2024, 3, 2), To: billing.NewDate(2024, 3, 5)})
	if err != nil {
		t.Fatalf("ListEntries range failed: %v", err)
	}
	if len(ranged) != 2 {
		t.Fatalf("expected 2 entries in range, got %d", len(ranged))
	}
}

func TestUpdateAndDeleteRespectArchive(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	entry := testsupport.NewEntry(t, st, billing.TimeEntry{MatterID: "M-1", DurationHours: 1, Description: "Review production"})
	if err := entry.SetCodes("l320", "a104", 0.8); err != nil {
		t.Fatalf("SetCodes failed: %v", err)
	}
	if err := st.UpdateEntry(ctx, entry); err != nil {
		t.Fatalf("UpdateEntry failed: %v", err)
	}
	fetched, err := st.GetEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if fetched.TaskCode != "L320" || fetched.ActivityCode != "A104" {
		t.Fatalf("codes not persisted: %#v", fetched)
	}

	n, err := st.ArchiveEntries(ctx, []string{entry.ID}, "INV-1")
	if err != nil || n != 1 {
		t.Fatalf("ArchiveEntries = %d, %v", n, err)
	}
	n, err = st.ArchiveEntries(ctx, []string{entry.ID}, "INV-2")
	if err != nil || n != 0 {
		t.Fatalf("second ArchiveEntries = %d, %v", n, err)
	}

	if err := st.UpdateEntry(ctx, fetched); !errors.Is(err, store.ErrArchived) {
		t.Fatalf("expected ErrArchived on update, got %v", err)
	}
	if err := st.DeleteEntry(ctx, entry.ID); !errors.Is(err, store.ErrArchived) {
		t.Fatalf("expected ErrArchived on delete, got %v", err)
	}

	visible, err := st.ListEntries(ctx, store.EntryFilter{})
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("archived entry should be hidden, got %d", len(visible))
	}
	all, err := st.ListEntries(ctx, store.EntryFilter{IncludeArchived: true})
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(all) != 1 || all[0].InvoiceNumber != "INV-1" {
		t.Fatalf("unexpected archived listing: %#v", all)
	}

	if err := st.DeleteEntry(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMattersAndTimekeepers(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	matter := billing.Matter{
		ClientID:       "ACME",
		ClientMatterID: "M-1",
		Description:    "Acme v. Widgets",
		BillingStart:   billing.NewDate(2024, 3, 1),
		BillingEnd:     billing.NewDate(2024, 3, 31),
	}
	if err := st.UpsertMatter(ctx, matter); err != nil {
		t.Fatalf("UpsertMatter failed: %v", err)
	}
	matter.Description = "Acme v. Widgets II"
	if err := st.UpsertMatter(ctx, matter); err != nil {
		t.Fatalf("UpsertMatter update failed: %v", err)
	}
	got, err := st.GetMatter(ctx, "M-1")
	if err != nil {
		t.Fatalf("GetMatter failed: %v", err)
	}
	if got.Description != "Acme v. Widgets II" || got.BillingEnd.String() != "2024-03-31" {
		t.Fatalf("unexpected matter: %#v", got)
	}
	if _, err := st.GetMatter(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := st.UpsertTimekeeper(ctx, billing.Timekeeper{ID: "TK1", Name: "Pat", Classification: "PT", Rate: 350}); err != nil {
		t.Fatalf("UpsertTimekeeper failed: %v", err)
	}
	if err := st.UpsertTimekeeper(ctx, billing.Timekeeper{ID: "TK0", Rate: -1}); err == nil {
		t.Fatal("expected negative rate to be rejected")
	}
	tks, err := st.ListTimekeepers(ctx)
	if err != nil {
		t.Fatalf("ListTimekeepers failed: %v", err)
	}
	if len(tks) != 1 || tks[0].Rate != 350 {
		t.Fatalf("unexpected timekeepers: %#v", tks)
	}
}

func TestKeywordBackend(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first, err := st.UpsertKeyword(ctx, keywords.KeywordRule{Phrase: "Deposition", TaskCode: "l330", ActivityCode: "a109", ConfidenceBoost: 0.8})
	if err != nil {
		t.Fatalf("UpsertKeyword failed: %v", err)
	}
	if first.Phrase != "deposition" || first.TaskCode != "L330" {
		t.Fatalf("rule not normalized: %#v", first)
	}
	if _, err := st.UpsertKeyword(ctx, keywords.KeywordRule{Phrase: "motion", TaskCode: "L250", ActivityCode: "A103", ConfidenceBoost: 0.7}); err != nil {
		t.Fatalf("UpsertKeyword failed: %v", err)
	}
	replaced, err := st.UpsertKeyword(ctx, keywords.KeywordRule{Phrase: "DEPOSITION", TaskCode: "L340", ActivityCode: "A101", ConfidenceBoost: 0.9})
	if err != nil {
		t.Fatalf("UpsertKeyword replace failed: %v", err)
	}
	if replaced.ID != first.ID {
		t.Fatalf("expected in-place update to keep ID %d, got %d", first.ID, replaced.ID)
	}

	rules, err := st.ListKeywords(ctx)
	if err != nil {
		t.Fatalf("ListKeywords failed: %v", err)
	}
	if len(rules) != 2 || rules[0].Phrase != "deposition" || rules[0].TaskCode != "L340" {
		t.Fatalf("unexpected keyword order: %#v", rules)
	}

	if err := st.DeleteKeyword(ctx, first.ID); err != nil {
		t.Fatalf("DeleteKeyword failed: %v", err)
	}
	if err := st.DeleteKeyword(ctx, first.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := st.UpsertOverride(ctx, keywords.OverrideRule{Phrase: "acme board", TaskCode: "L120", ActivityCode: "A106"}); err != nil {
		t.Fatalf("UpsertOverride failed: %v", err)
	}

	source := keywords.NewCachedSource(st, nil)
	snap, err := source.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Keywords()) != 1 || len(snap.Overrides()) != 1 {
		t.Fatalf("unexpected snapshot: %d keywords, %d overrides", len(snap.Keywords()), len(snap.Overrides()))
	}
}

func TestImportSeeds(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	seeds := keywords.DefaultSeeds()
	nk, no, err := st.ImportSeeds(ctx, seeds)
	if err != nil {
		t.Fatalf("ImportSeeds failed: %v", err)
	}
	if nk != len(seeds.Keywords) || no != len(seeds.Overrides) {
		t.Fatalf("unexpected counts %d/%d", nk, no)
	}
	// Importing twice is idempotent.
	if _, _, err := st.ImportSeeds(ctx, seeds); err != nil {
		t.Fatalf("second ImportSeeds failed: %v", err)
	}
	rules, err := st.ListKeywords(ctx)
	if err != nil {
		t.Fatalf("ListKeywords failed: %v", err)
	}
	if len(rules) != len(seeds.Keywords) {
		t.Fatalf("expected %d keywords, got %d", len(seeds.Keywords), len(rules))
	}
}

func TestBindings(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if _, err := st.AddBinding(ctx, billing.Binding{Kind: billing.BindingMatter, Pattern: "acme"}); !errors.Is(err, billing.ErrInvalidEntry) {
		t.Fatalf("expected missing target to fail, got %v", err)
	}
	if _, err := st.AddBinding(ctx, billing.Binding{Kind: billing.BindingDoNotBill, Pattern: "("}); err == nil {
		t.Fatal("expected invalid pattern to fail")
	}
	a, err := st.AddBinding(ctx, billing.Binding{Kind: billing.BindingDoNotBill, Pattern: "youtube"})
	if err != nil {
		t.Fatalf("AddBinding failed: %v", err)
	}
	b, err := st.AddBinding(ctx, billing.Binding{Kind: billing.BindingMatter, Pattern: "acme", Target: "M-1"})
	if err != nil {
		t.Fatalf("AddBinding failed: %v", err)
	}
	list, err := st.ListBindings(ctx)
	if err != nil {
		t.Fatalf("ListBindings failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID || list[1].Target != "M-1" {
		t.Fatalf("unexpected bindings: %#v", list)
	}
	if err := st.DeleteBinding(ctx, a.ID); err != nil {
		t.Fatalf("DeleteBinding failed: %v", err)
	}
}
