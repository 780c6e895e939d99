package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"statusninja/internal/storage"
	logx "statusninja/pkg/logx"
)

type fakeEndpoints struct {
	list []storage.Endpoint
	err  error
}

func (f *fakeEndpoints) ListEndpoints(ctx context.Context) ([]storage.Endpoint, error) {
	return f.list, f.err
}

type fakeProber struct {
	byURL map[string]ProbeResult
}

func (f *fakeProber) Probe(ctx context.Context, url string) ProbeResult {
	if res, ok := f.byURL[url]; ok {
		return res
	}
	return ProbeResult{Classification: ClassError}
}

type fakeResolver struct {
	byID   map[string][]int64
	errFor string
}

func (f *fakeResolver) ResolveSubscribers(ctx context.Context, endpointID string) ([]int64, error) {
	if endpointID == f.errFor {
		return nil, errors.New("resolver down")
	}
	return f.byID[endpointID], nil
}

type sentNotification struct {
	chatID int64
	name   string
	res    ProbeResult
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (f *fakeNotifier) NotifyStatus(ctx context.Context, chatID int64, endpointName, url string, res ProbeResult, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{chatID: chatID, name: endpointName, res: res})
}

func TestRunSweepNotifiesEverySubscriber(t *testing.T) {
	t.Parallel()
	endpoints := &fakeEndpoints{list: []storage.Endpoint{
		{ID: "a", Name: "api-a", URL: "http://a.test"},
		{ID: "b", Name: "api-b", URL: "http://b.test"},
	}}
	prober := &fakeProber{byURL: map[string]ProbeResult{
		"http://a.test": {Classification: ClassHealthy, StatusCode: 200},
		"http://b.test": {Classification: ClassUnhealthy, StatusCode: 503},
	}}
	resolver := &fakeResolver{byID: map[string][]int64{
		"a": {100, 200},
		"b": {100},
	}}
	notifier := &fakeNotifier{}

	s := NewSweeper(endpoints, prober, resolver, notifier, logx.Nop())
	s.RunSweep(context.Background())

	if len(notifier.sent) != 3 {
		t.Fatalf("sent %d notifications, want 3", len(notifier.sent))
	}
	for _, n := range notifier.sent {
		switch n.name {
		case "api-a":
			if n.res.Classification != ClassHealthy || n.res.StatusCode != 200 {
				t.Fatalf("api-a result = %+v", n.res)
			}
		case "api-b":
			if n.res.Classification != ClassUnhealthy || n.res.StatusCode != 503 {
				t.Fatalf("api-b result = %+v", n.res)
			}
		default:
			t.Fatalf("unexpected endpoint %q", n.name)
		}
	}
}

func TestRunSweepResolverFailureIsIsolated(t *testing.T) {
	t.Parallel()
	endpoints := &fakeEndpoints{list: []storage.Endpoint{
		{ID: "bad", Name: "api-bad", URL: "http://bad.test"},
		{ID: "good", Name: "api-good", URL: "http://good.test"},
	}}
	prober := &fakeProber{byURL: map[string]ProbeResult{
		"http://bad.test":  {Classification: ClassHealthy, StatusCode: 200},
		"http://good.test": {Classification: ClassHealthy, StatusCode: 200},
	}}
	resolver := &fakeResolver{
		byID:   map[string][]int64{"good": {42}},
		errFor: "bad",
	}
	notifier := &fakeNotifier{}

	s := NewSweeper(endpoints, prober, resolver, notifier, logx.Nop())
	s.RunSweep(context.Background())

	if len(notifier.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(notifier.sent))
	}
	if notifier.sent[0].name != "api-good" || notifier.sent[0].chatID != 42 {
		t.Fatalf("unexpected notification %+v", notifier.sent[0])
	}
}

func TestRunSweepListingFailureAborts(t *testing.T) {
	t.Parallel()
	endpoints := &fakeEndpoints{err: errors.New("db gone")}
	notifier := &fakeNotifier{}

	s := NewSweeper(endpoints, &fakeProber{}, &fakeResolver{}, notifier, logx.Nop())
	s.RunSweep(context.Background())

	if len(notifier.sent) != 0 {
		t.Fatalf("sent %d notifications, want 0", len(notifier.sent))
	}
}

func TestRunSweepErrorResultStillNotifies(t *testing.T) {
	t.Parallel()
	endpoints := &fakeEndpoints{list: []storage.Endpoint{
		{ID: "x", Name: "api-x", URL: "http://x.test"},
	}}
	prober := &fakeProber{} // unknown URL -> ClassError
	resolver := &fakeResolver{byID: map[string][]int64{"x": {7}}}
	notifier := &fakeNotifier{}

	s := NewSweeper(endpoints, prober, resolver, notifier, logx.Nop())
	s.RunSweep(context.Background())

	if len(notifier.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(notifier.sent))
	}
	if notifier.sent[0].res.Classification != ClassError {
		t.Fatalf("Classification = %s, want %s", notifier.sent[0].res.Classification, ClassError)
	}
	if notifier.sent[0].res.StatusCode != 0 {
		t.Fatalf("StatusCode = %d, want 0", notifier.sent[0].res.StatusCode)
	}
}
