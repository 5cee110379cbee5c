package xlog4_test

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/trickstertwo/xlog4"
	"github.com/trickstertwo/xlog4/appender/list"
)

// gate blocks the appender on the event whose message is "gate" until
// release is called. entered receives once the consumer is parked.
type gate struct {
	entered chan struct{}
	open    chan struct{}
	once    sync.Once
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 1), open: make(chan struct{})}
}

func (g *gate) hook(_ context.Context, ev *xlog4.LogEvent) error {
	if ev.FormattedMessage() == "gate" {
		g.entered <- struct{}{}
		<-g.open
	}
	return nil
}

func (g *gate) release() { g.once.Do(func() { close(g.open) }) }

func (g *gate) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("consumer never reached the gate")
	}
}

func asyncRoot(app string) xlog4.LoggerSpec {
	return xlog4.LoggerSpec{Level: "TRACE", Async: true, AppenderRefs: []xlog4.AppenderRef{xlog4.Ref(app)}}
}

func TestAsyncPreservesProducerOrder(t *testing.T) {
	for _, kind := range []string{xlog4.QueueRing, xlog4.QueueChannel} {
		t.Run(kind, func(t *testing.T) {
			app := list.New("list", list.Options{})
			lc := start(t, xlog4.NewConfigurationBuilder("t").
				WithAsync(xlog4.AsyncOptions{Queue: kind, Capacity: 64}).
				AddAppender(app).
				Root(asyncRoot("list")))

			log := lc.Logger("seq")
			for i := 0; i < 1000; i++ {
				log.Info().Int("i", i).Msg("seq")
			}
			if !app.WaitFor(1000, 5*time.Second) {
				t.Fatalf("delivered %d of 1000", app.Len())
			}
			for i, r := range app.Records() {
				if !r.Background {
					t.Fatalf("event %d delivered on the producer", i)
				}
				got := r.Event.Message.(*xlog4.FieldsMessage).Fields[0].Int64
				if got != int64(i) {
					t.Fatalf("position %d holds %d", i, got)
				}
			}
		})
	}
}

func TestAsyncOrderPerProducerUnderContention(t *testing.T) {
	const producers, each = 4, 250
	app := list.New("list", list.Options{})
	lc := start(t, xlog4.NewConfigurationBuilder("t").
		WithAsync(xlog4.AsyncOptions{Capacity: 16}).
		AddAppender(app).
		Root(asyncRoot("list")))

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			log := lc.Logger("p" + strconv.Itoa(p))
			for i := 0; i < each; i++ {
				log.Info().Int("i", i).Msg("x")
			}
		}(p)
	}
	wg.Wait()
	if !app.WaitFor(producers*each, 5*time.Second) {
		t.Fatalf("delivered %d of %d", app.Len(), producers*each)
	}
	next := map[string]int64{}
	for _, ev := range app.Events() {
		i := ev.Message.(*xlog4.FieldsMessage).Fields[0].Int64
		if i != next[ev.LoggerName] {
			t.Fatalf("%s: got %d want %d", ev.LoggerName, i, next[ev.LoggerName])
		}
		next[ev.LoggerName]++
	}
}

func TestQueueFullDiscard(t *testing.T) {
	const capacity = 4
	g := newGate()
	app := list.New("list", list.Options{Hook: g.hook})
	lc := start(t, xlog4.NewConfigurationBuilder("t").
		WithAsync(xlog4.AsyncOptions{Capacity: capacity, Policy: xlog4.NewDiscardPolicy(xlog4.LevelOff, 0)}).
		AddAppender(app).
		Root(asyncRoot("list")))
	t.Cleanup(g.release)

	log := lc.Logger("app")
	log.Info().Msg("gate")
	g.waitEntered(t)
	for i := 0; i <= capacity; i++ {
		log.Info().Msgf("burst-%d", i)
	}
	d := lc.Configuration().AsyncDelegate()
	if got := d.DiscardCount(); got != 1 {
		t.Fatalf("discarded=%d want 1", got)
	}
	g.release()
	if !app.WaitFor(capacity+1, 2*time.Second) {
		t.Fatalf("delivered %d", app.Len())
	}
	msgs := app.Messages()
	for i := 0; i < capacity; i++ {
		if msgs[i+1] != fmt.Sprintf("burst-%d", i) {
			t.Fatalf("messages=%v", msgs)
		}
	}
}

func TestQueueFullSynchronous(t *testing.T) {
	const capacity = 4
	g := newGate()
	app := list.New("list", list.Options{Hook: g.hook})
	lc := start(t, xlog4.NewConfigurationBuilder("t").
		WithAsync(xlog4.AsyncOptions{Capacity: capacity, Policy: xlog4.SynchronousPolicy{}}).
		AddAppender(app).
		Root(asyncRoot("list")))
	t.Cleanup(g.release)

	log := lc.Logger("app")
	log.Info().Msg("gate")
	g.waitEntered(t)
	for i := 0; i <= capacity; i++ {
		log.Info().Msgf("burst-%d", i)
	}
	rs := app.Records()
	if len(rs) != 1 || rs[0].Background || rs[0].Event.FormattedMessage() != fmt.Sprintf("burst-%d", capacity) {
		t.Fatalf("before release: %d records, want only the overflow event on the producer", len(rs))
	}
	g.release()
	if !app.WaitFor(capacity+2, 2*time.Second) {
		t.Fatalf("delivered %d want %d", app.Len(), capacity+2)
	}
	producer := 0
	for _, r := range app.Records() {
		if !r.Background {
			producer++
		}
	}
	if producer != 1 {
		t.Fatalf("%d events ran on the producer want 1", producer)
	}
	if d := lc.Configuration().AsyncDelegate(); d.DiscardCount() != 0 {
		t.Fatalf("discarded=%d", d.DiscardCount())
	}
}

func TestQueueFullEnqueueBlocksProducer(t *testing.T) {
	g := newGate()
	app := list.New("list", list.Options{Hook: g.hook})
	lc := start(t, xlog4.NewConfigurationBuilder("t").
		WithAsync(xlog4.AsyncOptions{Capacity: 1, Policy: xlog4.EnqueuePolicy{}}).
		AddAppender(app).
		Root(asyncRoot("list")))
	t.Cleanup(g.release)

	log := lc.Logger("app")
	log.Info().Msg("gate")
	g.waitEntered(t)
	log.Info().Msg("fill")

	done := make(chan struct{})
	go func() {
		log.Info().Msg("blocked")
		close(done)
	}()
	select {
	case <-done:
		t.Fatalf("producer returned while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}
	g.release()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("producer still blocked after the consumer resumed")
	}
	if !app.WaitFor(3, 2*time.Second) {
		t.Fatalf("delivered %d", app.Len())
	}
	want := []string{"gate", "fill", "blocked"}
	for i, m := range app.Messages() {
		if m != want[i] {
			t.Fatalf("messages=%v want %v", app.Messages(), want)
		}
	}
}

func TestReentrantLoggingOnFullQueueDoesNotDeadlock(t *testing.T) {
	g := newGate()
	slow := list.New("slow", list.Options{Hook: g.hook})
	var lc *xlog4.LoggerContext
	reentrant := list.New("reentrant", list.Options{Hook: func(ctx context.Context, ev *xlog4.LogEvent) error {
		if ev.LoggerName == "trigger" {
			lc.Logger("app").Info().Ctx(ctx).Msg("nested")
		}
		return nil
	}})
	lc = start(t, xlog4.NewConfigurationBuilder("t").
		WithAsync(xlog4.AsyncOptions{Capacity: 1, Policy: xlog4.EnqueuePolicy{}}).
		AddAppender(slow).
		AddAppender(reentrant).
		Root(xlog4.LoggerSpec{Level: "TRACE", AppenderRefs: []xlog4.AppenderRef{xlog4.Ref("reentrant")}}).
		AddLogger(xlog4.LoggerSpec{Name: "app", Async: true, Additivity: ptr(false),
			AppenderRefs: []xlog4.AppenderRef{xlog4.Ref("slow")}}))
	t.Cleanup(g.release)

	app := lc.Logger("app")
	app.Info().Msg("gate")
	g.waitEntered(t)
	app.Info().Msg("fill")

	done := make(chan struct{})
	go func() {
		lc.Logger("trigger").Info().Msg("outer")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("nested logging call blocked on a full queue")
	}
	var nested *list.Record
	for _, r := range slow.Records() {
		if r.Event.FormattedMessage() == "nested" {
			r := r
			nested = &r
		}
	}
	if nested == nil || nested.Background {
		t.Fatalf("nested event not processed on the producer: %+v", nested)
	}
}

func TestSyncAndAsyncAppendersSplit(t *testing.T) {
	t.Run("async child of sync root", func(t *testing.T) {
		syncApp := list.New("sync", list.Options{})
		asyncApp := list.New("async", list.Options{})
		lc := start(t, xlog4.NewConfigurationBuilder("t").
			AddAppender(syncApp).
			AddAppender(asyncApp).
			Root(xlog4.LoggerSpec{Level: "INFO", AppenderRefs: []xlog4.AppenderRef{xlog4.Ref("sync")}}).
			AddLogger(xlog4.LoggerSpec{Name: "svc", Async: true, AppenderRefs: []xlog4.AppenderRef{xlog4.Ref("async")}}))

		lc.Logger("svc.handler").Info().Msg("x")
		rs := syncApp.Records()
		if len(rs) != 1 || rs[0].Background {
			t.Fatalf("sync appender records=%+v want one on the producer", rs)
		}
		if !asyncApp.WaitFor(1, 2*time.Second) {
			t.Fatalf("async appender never received the event")
		}
		if r := asyncApp.Records(); len(r) != 1 || !r[0].Background {
			t.Fatalf("async appender records=%+v want one on the consumer", r)
		}
	})
	t.Run("sync child of async root", func(t *testing.T) {
		syncApp := list.New("sync", list.Options{})
		asyncApp := list.New("async", list.Options{})
		lc := start(t, xlog4.NewConfigurationBuilder("t").
			AddAppender(syncApp).
			AddAppender(asyncApp).
			Root(xlog4.LoggerSpec{Level: "INFO", Async: true, AppenderRefs: []xlog4.AppenderRef{xlog4.Ref("async")}}).
			AddLogger(xlog4.LoggerSpec{Name: "svc", AppenderRefs: []xlog4.AppenderRef{xlog4.Ref("sync")}}))

		lc.Logger("svc").Warn().Msg("x")
		if rs := syncApp.Records(); len(rs) != 1 || rs[0].Background {
			t.Fatalf("sync appender records=%+v", rs)
		}
		if !asyncApp.WaitFor(1, 2*time.Second) {
			t.Fatalf("async appender never received the event")
		}
		if r := asyncApp.Records(); len(r) != 1 || !r[0].Background {
			t.Fatalf("async appender records=%+v", r)
		}
	})
}

func TestStopDrainsQueue(t *testing.T) {
	app := list.New("list", list.Options{})
	lc := start(t, xlog4.NewConfigurationBuilder("t").
		WithAsync(xlog4.AsyncOptions{Capacity: 256}).
		AddAppender(app).
		Root(asyncRoot("list")))

	for i := 0; i < 200; i++ {
		lc.Logger("app").Info().Msg("x")
	}
	if !lc.Stop(5 * time.Second) {
		t.Fatalf("Stop reported a drain timeout")
	}
	if n := app.Len(); n != 200 {
		t.Fatalf("delivered %d of 200 before Stop returned", n)
	}
	if lc.Configuration().AsyncDelegate().Running() {
		t.Fatalf("delegate still running after Stop")
	}
}

func TestStopTimeoutDiscardsRemainder(t *testing.T) {
	g := newGate()
	app := list.New("list", list.Options{Hook: g.hook})
	lc := start(t, xlog4.NewConfigurationBuilder("t").
		WithAsync(xlog4.AsyncOptions{Capacity: 8}).
		AddAppender(app).
		Root(asyncRoot("list")))
	t.Cleanup(g.release)

	log := lc.Logger("app")
	log.Info().Msg("gate")
	g.waitEntered(t)
	for i := 0; i < 3; i++ {
		log.Info().Msg("queued")
	}

	began := time.Now()
	if lc.Stop(50 * time.Millisecond) {
		t.Fatalf("Stop reported a clean drain with a stuck appender")
	}
	if took := time.Since(began); took > time.Second {
		t.Fatalf("Stop took %v", took)
	}
	d := lc.Configuration().AsyncDelegate()
	if got := d.DiscardCount(); got < 3 {
		t.Fatalf("discarded=%d want at least 3", got)
	}

	before := d.DiscardCount()
	log.Info().Msg("late")
	if got := d.DiscardCount(); got != before+1 {
		t.Fatalf("event after shutdown: discarded=%d want %d", got, before+1)
	}
}
