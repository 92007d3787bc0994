package render_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-domtpl/pkg/render"
	"github.com/goliatone/go-domtpl/pkg/scope"
)

func TestNewContextRequiresScope(t *testing.T) {
	t.Parallel()

	_, err := render.NewContext(render.New(render.WithTracker(render.NewTracker())))
	if !errors.Is(err, render.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	_, err = render.NewContext(nil, render.WithScope(scope.NewRoot("root", nil)))
	if !errors.Is(err, render.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for missing renderer, got %v", err)
	}
}

func TestSubContextIdentityAndInheritance(t *testing.T) {
	t.Parallel()

	rc := newRootContext(t, render.New(render.WithTracker(render.NewTracker())), render.WithMode(render.ModePrepend))
	rc.IgnoreDirective("repeat")

	first, err := rc.Sub()
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	second, err := rc.Sub(render.WithIgnoredDirectives(rc.IgnoredDirectives()...))
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}

	if first.ID() != rc.ID()+".1" || second.ID() != rc.ID()+".2" {
		t.Fatalf("unexpected ids %q %q", first.ID(), second.ID())
	}
	if first.Depth() != 1 || first.Parent() != rc || first.Root() != rc {
		t.Fatalf("unexpected ancestry for %q", first.ID())
	}
	if first.Mode() != render.ModePrepend || first.Scope() != rc.Scope() {
		t.Fatalf("expected inputs to be inherited")
	}
	if first.IsDirectiveIgnored("repeat") {
		t.Fatalf("ignored directives must not be inherited implicitly")
	}
	if !second.IsDirectiveIgnored("repeat") {
		t.Fatalf("expected explicit override to carry the deny-list")
	}
	if rc.Pending() != 2 {
		t.Fatalf("expected two pending children, got %d", rc.Pending())
	}

	clone, err := rc.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if clone.Parent() != nil || clone.Root() != clone || strings.HasPrefix(clone.ID(), rc.ID()) {
		t.Fatalf("clone must be an independent root")
	}
	if rc.Pending() != 2 {
		t.Fatalf("clone must not be owned by the source context")
	}
}

func TestReadyWaitsForChildrenAndRunsFinishersOnce(t *testing.T) {
	t.Parallel()

	rc := newRootContext(t, render.New(render.WithTracker(render.NewTracker())))
	child, err := rc.Sub()
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}

	var mu sync.Mutex
	var calls []string
	child.Finished(func(context.Context) {
		mu.Lock()
		calls = append(calls, "from-child")
		mu.Unlock()
	})

	ctx := context.Background()
	readyReturned := make(chan struct{})
	go func() {
		if err := rc.Ready(ctx); err != nil {
			t.Errorf("Ready: %v", err)
		}
		close(readyReturned)
	}()

	select {
	case <-readyReturned:
		t.Fatalf("root closed before its child")
	case <-time.After(20 * time.Millisecond):
	}

	if err := child.Ready(ctx); err != nil {
		t.Fatalf("child Ready: %v", err)
	}
	<-readyReturned

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rc.Ready(ctx); err != nil {
				t.Errorf("repeated Ready: %v", err)
			}
		}()
	}
	wg.Wait()

	if !rc.Closed() || rc.Pending() != 0 {
		t.Fatalf("expected closed root without pending children")
	}
	select {
	case <-child.TreeFinished():
	default:
		t.Fatalf("expected tree finished channel to be closed")
	}
	if diff := cmp.Diff([]string{"from-child"}, calls); diff != "" {
		t.Fatalf("finisher calls mismatch (-want +got):\n%s", diff)
	}
}

func TestConcurrentReadyWhileDraining(t *testing.T) {
	t.Parallel()

	rc := newRootContext(t, render.New(render.WithTracker(render.NewTracker())))
	child, err := rc.Sub()
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}

	var mu sync.Mutex
	runs := 0
	rc.Finished(func(context.Context) {
		mu.Lock()
		runs++
		mu.Unlock()
	})

	ctx := context.Background()
	const callers = 8
	errs := make(chan error, callers)
	var started, wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		started.Add(1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			errs <- rc.Ready(ctx)
		}()
	}
	started.Wait()

	time.Sleep(10 * time.Millisecond)
	if rc.Closed() {
		t.Fatalf("root closed while its child was still open")
	}
	if err := child.Ready(ctx); err != nil {
		t.Fatalf("child Ready: %v", err)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Ready: %v", err)
		}
	}
	if !rc.Closed() || rc.Pending() != 0 {
		t.Fatalf("expected closed root without pending children")
	}
	if runs != 1 {
		t.Fatalf("expected finishers to run once, ran %d times", runs)
	}
}

func TestReadyHonoursCancellationWhileDraining(t *testing.T) {
	t.Parallel()

	rc := newRootContext(t, render.New(render.WithTracker(render.NewTracker())))
	if _, err := rc.Sub(); err != nil {
		t.Fatalf("Sub: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rc.Ready(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if rc.Closed() {
		t.Fatalf("context must stay open while children are pending")
	}
}

func TestSkipFinishersIsIndependentOfIgnore(t *testing.T) {
	t.Parallel()

	ran := 0
	rc := newRootContext(t, render.New(render.WithTracker(render.NewTracker())))
	rc.Finished(func(context.Context) { ran++ })
	rc.Ignore()
	rc.SetSkipFinishers(true)
	if err := rc.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if ran != 0 {
		t.Fatalf("expected finishers to be skipped")
	}

	other := newRootContext(t, render.New(render.WithTracker(render.NewTracker())))
	other.Finished(func(context.Context) { ran++ })
	other.Ignore()
	if err := other.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if ran != 1 {
		t.Fatalf("ignore alone must not skip finishers, ran=%d", ran)
	}
}

func TestTrackerReportsLongLivedContexts(t *testing.T) {
	t.Parallel()

	tracker := render.NewTracker(render.WithLeakThresholds(time.Second, 10*time.Second))
	r := render.New(render.WithTracker(tracker))
	open := newRootContext(t, r)
	closed := newRootContext(t, r)
	if err := closed.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if tracker.Open() != 1 {
		t.Fatalf("expected one open context, got %d", tracker.Open())
	}

	report := tracker.Sweep(open.Created().Add(2 * time.Second))
	if report.Warned != 1 || report.Errored != 0 {
		t.Fatalf("unexpected warn report %+v", report)
	}
	report = tracker.Sweep(open.Created().Add(3 * time.Second))
	if report.Warned != 0 {
		t.Fatalf("warning must be reported once, got %+v", report)
	}
	report = tracker.Sweep(open.Created().Add(11 * time.Second))
	if report.Errored != 1 || report.Open != 1 {
		t.Fatalf("unexpected error report %+v", report)
	}
	if open.Closed() {
		t.Fatalf("tracker must never close contexts")
	}
}
