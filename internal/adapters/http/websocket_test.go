package http

import (
	"errors"
	"sort"
	"testing"

	natsadapter "github.com/samirrijal/geoanalysis/internal/adapters/nats"
)

type fakeSub struct {
	unsubscribed bool
}

func (f *fakeSub) Unsubscribe() error {
	f.unsubscribed = true
	return nil
}

func newTestSubscriptionSet() (*subscriptionSet, map[string]*fakeSub) {
	created := map[string]*fakeSub{}
	set := newSubscriptionSet(func(subject string) (unsubscriber, error) {
		if subject == "geo.analysis.broken" {
			return nil, errors.New("nats down")
		}
		s := &fakeSub{}
		created[subject] = s
		return s, nil
	})
	return set, created
}

func activeSubjects(s *subscriptionSet) []string {
	out := make([]string, 0, len(s.subs))
	for subject := range s.subs {
		out = append(out, subject)
	}
	sort.Strings(out)
	return out
}

func TestSubscriptionSet_LayerReplacesWildcard(t *testing.T) {
	set, created := newTestSubscriptionSet()

	if _, err := set.add(natsadapter.AnalysisSubjects); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	replaced, err := set.add(wsSubject("stores"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(replaced) != 1 || replaced[0] != natsadapter.AnalysisSubjects {
		t.Errorf("expected wildcard replaced, got %v", replaced)
	}
	if !created[natsadapter.AnalysisSubjects].unsubscribed {
		t.Error("expected wildcard subscription to be closed")
	}
	if got := activeSubjects(set); len(got) != 1 || got[0] != "geo.analysis.stores" {
		t.Errorf("expected only the stores subject, got %v", got)
	}

	// A second layer adds to the first.
	replaced, err = set.add(wsSubject("schools"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replaced) != 0 {
		t.Errorf("expected nothing replaced, got %v", replaced)
	}
	if got := activeSubjects(set); len(got) != 2 {
		t.Errorf("expected 2 subjects, got %v", got)
	}
}

func TestSubscriptionSet_WildcardReplacesLayers(t *testing.T) {
	set, created := newTestSubscriptionSet()
	_, _ = set.add(wsSubject("stores"))
	_, _ = set.add(wsSubject("schools"))

	replaced, err := set.add(wsSubject(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replaced) != 2 {
		t.Errorf("expected 2 replaced subjects, got %v", replaced)
	}
	if !created["geo.analysis.stores"].unsubscribed || !created["geo.analysis.schools"].unsubscribed {
		t.Error("expected layer subscriptions to be closed")
	}
	if got := activeSubjects(set); len(got) != 1 || got[0] != natsadapter.AnalysisSubjects {
		t.Errorf("expected only the wildcard, got %v", got)
	}
}

func TestSubscriptionSet_Errors(t *testing.T) {
	set, created := newTestSubscriptionSet()
	_, _ = set.add(natsadapter.AnalysisSubjects)

	if _, err := set.add(natsadapter.AnalysisSubjects); !errors.Is(err, errAlreadySubscribed) {
		t.Errorf("expected errAlreadySubscribed, got %v", err)
	}
	if _, err := set.add("geo.analysis.broken"); err == nil {
		t.Error("expected subscribe failure")
	}
	// A failed subscribe keeps the existing feed.
	if created[natsadapter.AnalysisSubjects].unsubscribed {
		t.Error("wildcard must survive a failed subscribe")
	}
	if err := set.remove("geo.analysis.stores"); !errors.Is(err, errNotSubscribed) {
		t.Errorf("expected errNotSubscribed, got %v", err)
	}
	if err := set.remove(natsadapter.AnalysisSubjects); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	_, _ = set.add(wsSubject("stores"))
	set.closeAll()
	if len(set.subs) != 0 || !created["geo.analysis.stores"].unsubscribed {
		t.Error("expected closeAll to release every subscription")
	}
}
