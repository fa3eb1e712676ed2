package friendship

import (
	"context"
	"errors"
	"testing"

	"github.com/onnwee/campusconnect/internal/apperr"
	"github.com/onnwee/campusconnect/internal/identity"
)

type fixture struct {
	graph *Graph
	users map[string]string // username -> id
}

func newFixture(t *testing.T, usernames ...string) *fixture {
	t.Helper()
	userRepo := identity.NewInMemoryRepository()
	f := &fixture{graph: NewGraph(NewInMemoryRepository(), userRepo), users: make(map[string]string)}
	for _, name := range usernames {
		u := &identity.User{Username: name, Email: name + "@campus.edu"}
		if err := userRepo.Create(context.Background(), u); err != nil {
			t.Fatalf("create user %s: %v", name, err)
		}
		f.users[name] = u.ID
	}
	return f
}

func (f *fixture) befriend(t *testing.T, a, b string) {
	t.Helper()
	ctx := context.Background()
	req, _, err := f.graph.Request(ctx, f.users[a], f.users[b])
	if err != nil {
		t.Fatalf("Request(%s, %s) error = %v", a, b, err)
	}
	if _, _, err := f.graph.Respond(ctx, req.ID, f.users[b], true); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
}

func TestAcceptIsSymmetric(t *testing.T) {
	f := newFixture(t, "ana", "bea")
	ctx := context.Background()
	f.befriend(t, "ana", "bea")

	for _, pair := range [][2]string{{"ana", "bea"}, {"bea", "ana"}} {
		ok, err := f.graph.AreFriends(ctx, f.users[pair[0]], f.users[pair[1]])
		if err != nil || !ok {
			t.Errorf("AreFriends(%s, %s) = %v, %v", pair[0], pair[1], ok, err)
		}
	}

	friends, _ := f.graph.ListFriends(ctx, f.users["bea"])
	if len(friends) != 1 || friends[0].Username != "ana" {
		t.Errorf("ListFriends(bea) = %v", friends)
	}
}

func TestRequest_Conflicts(t *testing.T) {
	f := newFixture(t, "ana", "bea", "cal")
	ctx := context.Background()
	f.befriend(t, "ana", "bea")
	if _, _, err := f.graph.Request(ctx, f.users["ana"], f.users["cal"]); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		from, to string
		want     error
	}{
		{"already friends", "ana", "bea", ErrAlreadyFriends},
		{"already friends reversed", "bea", "ana", ErrAlreadyFriends},
		{"pending", "ana", "cal", ErrRequestPending},
		{"pending reversed", "cal", "ana", ErrRequestPending},
		{"self", "ana", "ana", ErrSelfRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.graph.Request(ctx, f.users[tt.from], f.users[tt.to])
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	if _, _, err := f.graph.Request(ctx, f.users["ana"], "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown target: got %v", err)
	}
}

func TestRespond(t *testing.T) {
	f := newFixture(t, "ana", "bea", "cal")
	ctx := context.Background()
	req, target, err := f.graph.Request(ctx, f.users["ana"], f.users["bea"])
	if err != nil {
		t.Fatal(err)
	}
	if target.Username != "bea" {
		t.Errorf("target = %q", target.Username)
	}

	if _, _, err := f.graph.Respond(ctx, req.ID, f.users["ana"], true); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("initiator accepting: got %v", err)
	}
	if _, _, err := f.graph.Respond(ctx, req.ID, f.users["cal"], true); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("third party accepting: got %v", err)
	}
	if _, _, err := f.graph.Respond(ctx, "nope", f.users["bea"], true); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing request: got %v", err)
	}

	_, requester, err := f.graph.Respond(ctx, req.ID, f.users["bea"], false)
	if err != nil {
		t.Fatalf("reject error = %v", err)
	}
	if requester.Username != "ana" {
		t.Errorf("requester = %q", requester.Username)
	}
	if ok, _ := f.graph.AreFriends(ctx, f.users["ana"], f.users["bea"]); ok {
		t.Error("rejected request must not create a friendship")
	}
	// rejection deletes the relation, so a new request is allowed
	if _, _, err := f.graph.Request(ctx, f.users["bea"], f.users["ana"]); err != nil {
		t.Errorf("request after rejection: %v", err)
	}
	if _, _, err := f.graph.Respond(ctx, req.ID, f.users["bea"], true); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("responding twice: got %v", err)
	}
}

func TestPending(t *testing.T) {
	f := newFixture(t, "ana", "bea", "cal")
	ctx := context.Background()
	f.graph.Request(ctx, f.users["bea"], f.users["ana"])
	f.graph.Request(ctx, f.users["ana"], f.users["cal"])

	received, _ := f.graph.PendingReceived(ctx, f.users["ana"])
	if len(received) != 1 || received[0].User.Username != "bea" {
		t.Errorf("PendingReceived = %+v", received)
	}
	sent, _ := f.graph.PendingSent(ctx, f.users["ana"])
	if len(sent) != 1 || sent[0].User.Username != "cal" {
		t.Errorf("PendingSent = %+v", sent)
	}
}

func TestSearch(t *testing.T) {
	f := newFixture(t, "ana", "bea", "cal", "dan", "eve")
	ctx := context.Background()
	f.befriend(t, "ana", "bea")
	f.graph.Request(ctx, f.users["ana"], f.users["cal"])
	f.graph.Request(ctx, f.users["dan"], f.users["ana"])

	results, err := f.graph.Search(ctx, f.users["ana"], "")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	got := make(map[string]RelationStatus)
	for _, r := range results {
		got[r.User.Username] = r.Relation
	}
	want := map[string]RelationStatus{
		"cal": RelationRequestSent,
		"dan": RelationRequestReceived,
		"eve": RelationCanAdd,
	}
	if len(got) != len(want) {
		t.Fatalf("Search() = %v, want %v", got, want)
	}
	for name, status := range want {
		if got[name] != status {
			t.Errorf("%s: status = %q, want %q", name, got[name], status)
		}
	}

	results, _ = f.graph.Search(ctx, f.users["ana"], "EV")
	if len(results) != 1 || results[0].User.Username != "eve" {
		t.Errorf("Search(EV) = %+v", results)
	}
}
