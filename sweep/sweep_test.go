package sweep

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/subgate/telegram"
	"github.com/onnwee/subgate/twitchapi"
)

type memRegistry struct {
	markers map[string]time.Time
	creds   map[string]bool
	deleted []string
}

func newMemRegistry(chatIDs ...string) *memRegistry {
	r := &memRegistry{markers: make(map[string]time.Time), creds: make(map[string]bool)}
	for _, id := range chatIDs {
		r.creds[id] = true
	}
	return r
}

func (r *memRegistry) GetMarker(_ context.Context, chatID string) (time.Time, bool, error) {
	t, ok := r.markers[chatID]
	return t, ok, nil
}

func (r *memRegistry) PutMarker(_ context.Context, chatID string, firstObserved time.Time) error {
	if _, ok := r.markers[chatID]; !ok {
		r.markers[chatID] = firstObserved
	}
	return nil
}

func (r *memRegistry) DeleteMarker(_ context.Context, chatID string) error {
	delete(r.markers, chatID)
	return nil
}

func (r *memRegistry) DeleteUser(_ context.Context, chatID string) error {
	delete(r.creds, chatID)
	delete(r.markers, chatID)
	r.deleted = append(r.deleted, chatID)
	return nil
}

func (r *memRegistry) CountCredentials(context.Context) (int, error) {
	return len(r.creds), nil
}

type slicePager struct {
	ids []string
	i   int
	err error
}

func (p *slicePager) Next(context.Context) (string, bool) {
	if p.i >= len(p.ids) {
		return "", false
	}
	id := p.ids[p.i]
	p.i++
	return id, true
}

func (p *slicePager) Err() error { return p.err }

type fakeOracle struct {
	users map[string]*twitchapi.User
	subs  map[string]*twitchapi.Subscription
	errs  map[string]error
}

func (f *fakeOracle) ResolveIdentity(_ context.Context, chatID string) (*twitchapi.User, error) {
	if err := f.errs[chatID]; err != nil {
		return nil, err
	}
	return f.users[chatID], nil
}

func (f *fakeOracle) CheckSubscription(_ context.Context, chatID, _ string) (*twitchapi.Subscription, error) {
	return f.subs[chatID], nil
}

type fakeGroup struct {
	revoked  []int64
	messages []string
	sendErr  error
}

func (g *fakeGroup) GetChatMember(_ context.Context, _, userID int64) (*telegram.ChatMember, error) {
	return &telegram.ChatMember{User: telegram.User{ID: userID, Username: "user" + strconv.FormatInt(userID, 10)}}, nil
}

func (g *fakeGroup) GetChatAdministrators(context.Context, int64) ([]telegram.ChatMember, error) {
	return []telegram.ChatMember{
		{Status: "administrator", User: telegram.User{LanguageCode: "it"}},
		{Status: "creator", User: telegram.User{LanguageCode: "en"}},
	}, nil
}

func (g *fakeGroup) RevokeMembership(_ context.Context, _, userID int64) error {
	g.revoked = append(g.revoked, userID)
	return nil
}

func (g *fakeGroup) SendMessage(_ context.Context, _ int64, text string, _ *telegram.SendOptions) (*telegram.Message, error) {
	if g.sendErr != nil {
		return nil, g.sendErr
	}
	g.messages = append(g.messages, text)
	return &telegram.Message{MessageID: 1}, nil
}

func testSweeper(reg *memRegistry, oracle Oracle, group *fakeGroup, now time.Time, ids ...string) *Sweeper {
	return &Sweeper{
		Registry:         reg,
		NewPager:         func() Pager { return &slicePager{ids: ids} },
		Oracle:           oracle,
		Group:            group,
		GroupID:          -100,
		BroadcasterLogin: "streamer",
		Grace:            72 * time.Hour,
		Now:              func() time.Time { return now },
	}
}

func TestSweeper_ActiveSubscriberClearsMarker(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	reg := newMemRegistry("100")
	reg.markers["100"] = now.Add(-24 * time.Hour) // lapsed last sweep, renewed since
	oracle := &fakeOracle{
		users: map[string]*twitchapi.User{"100": {ID: "u1"}},
		subs:  map[string]*twitchapi.Subscription{"100": {Tier: "1000"}},
	}
	group := &fakeGroup{}

	report, err := testSweeper(reg, oracle, group, now, "100").RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(report.Banned) != 0 || len(report.Warned) != 0 {
		t.Errorf("report = %+v, want empty", report)
	}
	if _, ok := reg.markers["100"]; ok {
		t.Error("marker should be cleared for an active subscriber")
	}
	if len(group.revoked) != 0 {
		t.Errorf("revoked = %v, want none", group.revoked)
	}
}

func TestSweeper_FirstLapseWarnsAndAnchorsMarker(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	reg := newMemRegistry("100")
	oracle := &fakeOracle{users: map[string]*twitchapi.User{"100": {ID: "u1"}}}
	group := &fakeGroup{}

	report, err := testSweeper(reg, oracle, group, now, "100").RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(report.Warned) != 1 || len(report.Banned) != 0 {
		t.Fatalf("report = %+v, want one warning", report)
	}
	if got := reg.markers["100"]; !got.Equal(now) {
		t.Errorf("marker = %v, want anchored at %v", got, now)
	}
}

func TestSweeper_WithinGraceStaysWarned(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	reg := newMemRegistry("100")
	reg.markers["100"] = now.Add(-71 * time.Hour)
	oracle := &fakeOracle{users: map[string]*twitchapi.User{"100": {ID: "u1"}}}
	group := &fakeGroup{}

	report, err := testSweeper(reg, oracle, group, now, "100").RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(report.Warned) != 1 || len(report.Banned) != 0 {
		t.Fatalf("report = %+v, want still warned within grace", report)
	}
	// the anchor must not move on repeat observations
	if got := reg.markers["100"]; !got.Equal(now.Add(-71 * time.Hour)) {
		t.Errorf("marker moved to %v", got)
	}
}

func TestSweeper_BeyondGraceBans(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	reg := newMemRegistry("100")
	reg.markers["100"] = now.Add(-73 * time.Hour)
	oracle := &fakeOracle{users: map[string]*twitchapi.User{"100": {ID: "u1"}}}
	group := &fakeGroup{}

	report, err := testSweeper(reg, oracle, group, now, "100").RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(report.Banned) != 1 || len(report.Warned) != 0 {
		t.Fatalf("report = %+v, want one ban", report)
	}
	if len(group.revoked) != 1 || group.revoked[0] != 100 {
		t.Errorf("revoked = %v, want [100]", group.revoked)
	}
	if len(reg.deleted) != 1 || reg.deleted[0] != "100" {
		t.Errorf("deleted = %v, want [100]", reg.deleted)
	}
	if reg.creds["100"] {
		t.Error("credentials should be gone after a ban")
	}
}

func TestSweeper_ExactGraceBoundaryIsNotBanned(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	reg := newMemRegistry("100")
	reg.markers["100"] = now.Add(-72 * time.Hour)
	oracle := &fakeOracle{users: map[string]*twitchapi.User{"100": {ID: "u1"}}}
	group := &fakeGroup{}

	report, err := testSweeper(reg, oracle, group, now, "100").RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(report.Banned) != 0 || len(report.Warned) != 1 {
		t.Errorf("report = %+v; exactly 72h elapsed is still within grace", report)
	}
}

func TestSweeper_UnlinkedProviderAccountTakesGracePath(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	reg := newMemRegistry("100")
	// identity resolves to no provider user at all
	oracle := &fakeOracle{}
	group := &fakeGroup{}

	report, err := testSweeper(reg, oracle, group, now, "100").RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(report.Warned) != 1 || len(report.Banned) != 0 {
		t.Fatalf("report = %+v, want grace, not immediate ban", report)
	}
	if _, ok := reg.markers["100"]; !ok {
		t.Error("marker should be anchored for a vanished provider account")
	}
}

func TestSweeper_IdentityErrorIsIsolated(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	reg := newMemRegistry("100", "200", "300")
	oracle := &fakeOracle{
		users: map[string]*twitchapi.User{
			"100": {ID: "u1"},
			"300": {ID: "u3"},
		},
		subs: map[string]*twitchapi.Subscription{
			"100": {Tier: "1000"},
		},
		errs: map[string]error{"200": errors.New("helix 500")},
	}
	group := &fakeGroup{}

	report, err := testSweeper(reg, oracle, group, now, "100", "200", "300").RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	// 100 is fine, 200 errored and is skipped, 300 lapsed and is warned
	if len(report.Warned) != 1 || report.Warned[0].ChatID != "300" {
		t.Errorf("warned = %+v, want only 300", report.Warned)
	}
	if _, ok := reg.markers["200"]; ok {
		t.Error("failing identity must not gain a marker")
	}
}

func TestSweeper_EmptyStoreSendsEmptyReport(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	reg := newMemRegistry()
	group := &fakeGroup{}

	report, err := testSweeper(reg, &fakeOracle{}, group, now).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(report.Banned) != 0 || len(report.Warned) != 0 {
		t.Errorf("report = %+v, want empty", report)
	}
	if len(group.revoked) != 0 {
		t.Errorf("revoked = %v, want none", group.revoked)
	}
	// the report still goes out, in the founder's locale
	if len(group.messages) != 1 || !strings.Contains(group.messages[0], "No one to ban today") {
		t.Errorf("messages = %v, want the empty-report text", group.messages)
	}
}

func TestSweeper_EnumerationFailureAborts(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	reg := newMemRegistry("100")
	group := &fakeGroup{}
	s := testSweeper(reg, &fakeOracle{}, group, now)
	s.NewPager = func() Pager { return &slicePager{err: errors.New("db gone")} }

	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("RunOnce() error = nil, want enumeration error")
	}
}
