package app

import (
	"bytes"
	"context"
	"testing"

	"github.com/lomoval/plannr/internal/calsync"
	"github.com/lomoval/plannr/internal/errs"
	"github.com/lomoval/plannr/internal/export"
	"github.com/lomoval/plannr/internal/ingest"
	"github.com/lomoval/plannr/internal/model"
	"github.com/lomoval/plannr/internal/registry"
	"github.com/lomoval/plannr/internal/review"
	memorystorage "github.com/lomoval/plannr/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

type fakeIngester struct {
	events []model.Event
	err    error
}

func (f fakeIngester) Submit(context.Context, []byte, string) (ingest.Result, error) {
	return ingest.Result{Message: "Syllabus processed", Events: model.CopyEvents(f.events)}, f.err
}

// blockingSyncer commits through the registry once release is closed.
type blockingSyncer struct {
	entered chan struct{}
	release chan struct{}
	reg     *registry.Registry
}

func (b *blockingSyncer) Sync(ctx context.Context, src calsync.Source) (calsync.Report, error) {
	if b.entered != nil {
		close(b.entered)
		<-b.release
	}
	accepted := src.AcceptedSubset()
	if len(accepted) == 0 {
		return calsync.Report{}, errs.ErrNothingToSync
	}
	c := model.NewClass(src.Class().Name, src.Class().Schedule, src.DefaultColor(), accepted)
	return calsync.Report{Count: len(accepted), ClassID: c.ID}, b.reg.AddClass(ctx, c)
}

type recordingExporter struct {
	events []model.Event
}

func (r *recordingExporter) Export(ctx context.Context, events []model.Event, format export.Format, sink export.Sink) (export.Artifact, error) {
	r.events = events
	name := "events." + string(format)
	loc, err := sink.Save(ctx, name, []byte("data"))
	return export.Artifact{Format: format, Name: name, Location: loc, Size: 4}, err
}

func extracted() []model.Event {
	return []model.Event{
		model.NewEvent("Midterm Exam", "2026-03-15", "exam", "Chapters 1-5"),
		model.NewEvent("Homework 3", "2026-03-20", "homework", "Problems 1-10"),
	}
}

func newApp(t *testing.T, syncer Syncer) (*App, *recordingExporter, *bytes.Buffer) {
	t.Helper()
	reg := registry.New(context.Background(), memorystorage.New())
	if syncer == nil {
		syncer = &blockingSyncer{reg: reg}
	}
	exp := &recordingExporter{}
	buf := &bytes.Buffer{}
	return New(fakeIngester{events: extracted()}, syncer, exp, export.NewWriterSink(buf), reg), exp, buf
}

func TestUploadAndReview(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newApp(t, nil)

	_, err := a.Upload(ctx, []byte("%PDF"), "s.pdf", review.ClassInfo{})
	require.ErrorIs(t, err, errs.ErrValidation)

	view, err := a.Upload(ctx, []byte("%PDF"), "s.pdf", review.ClassInfo{Name: "Advanced Calculus", ColorHex: "ff9500"})
	require.NoError(t, err)
	require.Equal(t, "Syllabus processed", view.Message)
	require.Equal(t, review.Counts{Total: 2, Pending: 2}, view.Counts)
	require.Equal(t, "FF9500", view.DefaultColor)
	first := view.Events[0].ID

	view, err = a.Accept(view.ID, first)
	require.NoError(t, err)
	require.Equal(t, model.StatusAccepted, view.Events[0].Status)

	_, err = a.Accept(view.ID, "missing")
	require.ErrorIs(t, err, errs.ErrEventNotFound)
	_, err = a.Accept("missing", first)
	require.ErrorIs(t, err, ErrSessionNotFound)

	view, err = a.Edit(view.ID, first, review.Edit{Title: "Midterm", Date: "2026-03-16", Type: "exam", ColorHex: "FF3B30"})
	require.NoError(t, err)
	require.Equal(t, "Midterm", view.Events[0].Title)
	require.True(t, view.Events[0].Recolored)

	view, err = a.SetDefaultColor(view.ID, "5856D6")
	require.NoError(t, err)
	require.Equal(t, "FF3B30", view.Events[0].DisplayColor)
	require.Equal(t, "5856D6", view.Events[1].DisplayColor)

	view, err = a.DeclineAll(view.ID)
	require.NoError(t, err)
	require.Equal(t, 2, view.Counts.Declined)

	got, err := a.Session(view.ID)
	require.NoError(t, err)
	require.Equal(t, view, got)

	require.NoError(t, a.Discard(view.ID))
	require.ErrorIs(t, a.Discard(view.ID), errs.ErrNotFound)
	_, err = a.Session(view.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestUploadFailure(t *testing.T) {
	reg := registry.New(context.Background(), memorystorage.New())
	a := New(fakeIngester{err: errs.ErrNotSyllabus}, &blockingSyncer{reg: reg}, &recordingExporter{}, export.NewWriterSink(&bytes.Buffer{}), reg)

	_, err := a.Upload(context.Background(), []byte("x"), "x.pdf", review.ClassInfo{Name: "Physics"})
	require.ErrorIs(t, err, errs.ErrNotSyllabus)
	require.Empty(t, a.sessions)
}

func TestSyncAndClasses(t *testing.T) {
	ctx := context.Background()
	a, exp, _ := newApp(t, nil)

	view, err := a.Upload(ctx, nil, "s.pdf", review.ClassInfo{Name: "Advanced Calculus"})
	require.NoError(t, err)

	_, err = a.Sync(ctx, view.ID)
	require.ErrorIs(t, err, errs.ErrNothingToSync)

	_, err = a.AcceptAll(view.ID)
	require.NoError(t, err)
	report, err := a.Sync(ctx, view.ID)
	require.NoError(t, err)
	require.Equal(t, 2, report.Count)

	classes := a.Classes()
	require.Len(t, classes, 1)
	require.Equal(t, report.ClassID, classes[0].ID)

	updated, err := a.UpdateClass(ctx, model.Class{ID: report.ClassID, Name: "Calculus II", ColorHex: "#34c759"})
	require.NoError(t, err)
	require.Equal(t, "34C759", updated.ColorHex)
	require.Len(t, updated.Events, 2, "events are kept when none are sent")
	_, err = a.UpdateClass(ctx, model.Class{ID: report.ClassID})
	require.ErrorIs(t, err, errs.ErrValidation)

	ev := updated.Events[0]
	_, err = a.UpdateClassEvent(ctx, report.ClassID, ev.ID, review.Edit{Title: "Final Exam", Date: ev.Date, Type: ev.Type})
	require.NoError(t, err)
	require.NoError(t, a.RemoveClassEvent(ctx, report.ClassID, updated.Events[1].ID))

	artifact, err := a.ExportClass(ctx, report.ClassID, export.FormatICS)
	require.NoError(t, err)
	require.Equal(t, "events.ics", artifact.Name)
	require.Len(t, exp.events, 1)
	require.Equal(t, "Final Exam", exp.events[0].Title)

	require.NoError(t, a.RemoveClass(ctx, report.ClassID))
	require.Empty(t, a.Classes())
	_, err = a.ExportClass(ctx, report.ClassID, export.FormatICS)
	require.ErrorIs(t, err, errs.ErrClassNotFound)
}

func TestExportSession(t *testing.T) {
	ctx := context.Background()
	a, exp, buf := newApp(t, nil)
	view, err := a.Upload(ctx, nil, "s.pdf", review.ClassInfo{Name: "Physics"})
	require.NoError(t, err)
	_, err = a.Accept(view.ID, view.Events[1].ID)
	require.NoError(t, err)

	_, err = a.ExportSession(ctx, view.ID, export.FormatCSV, false)
	require.NoError(t, err)
	require.Len(t, exp.events, 2)
	require.Equal(t, "data", buf.String())

	_, err = a.ExportSession(ctx, view.ID, export.FormatCSV, true)
	require.NoError(t, err)
	require.Len(t, exp.events, 1)
	require.Equal(t, view.Events[1].ID, exp.events[0].ID)
}

func TestSyncBusy(t *testing.T) {
	ctx := context.Background()
	reg := registry.New(ctx, memorystorage.New())
	syncer := &blockingSyncer{entered: make(chan struct{}), release: make(chan struct{}), reg: reg}
	a, _, _ := newApp(t, syncer)

	view, err := a.Upload(ctx, nil, "s.pdf", review.ClassInfo{Name: "Physics"})
	require.NoError(t, err)
	_, err = a.AcceptAll(view.ID)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := a.Sync(ctx, view.ID)
		done <- err
	}()
	<-syncer.entered

	_, err = a.Sync(ctx, view.ID)
	require.ErrorIs(t, err, ErrBusy)
	_, err = a.ExportSession(ctx, view.ID, export.FormatICS, false)
	require.ErrorIs(t, err, ErrBusy)

	close(syncer.release)
	require.NoError(t, <-done)
	require.Len(t, reg.All(), 1)
}

func TestCommittedEventsStayAccepted(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newApp(t, nil)
	view, err := a.Upload(ctx, nil, "s.pdf", review.ClassInfo{Name: "Physics"})
	require.NoError(t, err)
	_, err = a.AcceptAll(view.ID)
	require.NoError(t, err)
	report, err := a.Sync(ctx, view.ID)
	require.NoError(t, err)

	class, err := a.Registry.Get(report.ClassID)
	require.NoError(t, err)
	stored := class.Events[0]
	require.Equal(t, model.StatusAccepted, stored.Status)

	t.Run("event edit keeps review state", func(t *testing.T) {
		edited, err := a.UpdateClassEvent(ctx, report.ClassID, stored.ID,
			review.Edit{Title: "Midterm (moved)", Date: "2026-03-18", Type: "exam"})
		require.NoError(t, err)
		require.Equal(t, stored.ID, edited.ID)
		require.Equal(t, "Midterm (moved)", edited.Title)
		require.Equal(t, model.StatusAccepted, edited.Status)
		require.True(t, edited.IsSyllabus)
		require.Equal(t, stored.ColorHex, edited.ColorHex)

		edited, err = a.UpdateClassEvent(ctx, report.ClassID, stored.ID,
			review.Edit{Title: "Midterm", Date: "2026-03-18", Type: "exam", ColorHex: "#ff3b30"})
		require.NoError(t, err)
		require.Equal(t, "FF3B30", edited.ColorHex)

		got, err := a.Registry.Get(report.ClassID)
		require.NoError(t, err)
		require.Equal(t, edited, got.Events[0])

		_, err = a.UpdateClassEvent(ctx, report.ClassID, "missing", review.Edit{Title: "x"})
		require.ErrorIs(t, err, errs.ErrEventNotFound)
	})

	t.Run("class update commits events as accepted", func(t *testing.T) {
		sent := []model.Event{
			{ID: stored.ID, Title: "Midterm", Date: "2026-03-19", Type: "exam"},
			{Title: "Extra credit", Date: "2026-04-01", Type: "homework", ColorHex: "34c759"},
		}
		updated, err := a.UpdateClass(ctx, model.Class{ID: report.ClassID, Name: "Physics", Events: sent})
		require.NoError(t, err)
		require.Len(t, updated.Events, 2)
		for _, e := range updated.Events {
			require.Equal(t, model.StatusAccepted, e.Status)
			require.True(t, e.IsSyllabus)
			require.NotEmpty(t, e.ID)
		}
		require.Equal(t, stored.ID, updated.Events[0].ID)
		require.Equal(t, "FF3B30", updated.Events[0].ColorHex)
		require.Equal(t, "34C759", updated.Events[1].ColorHex)
	})
}
