package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"showfinder/parser"
	"showfinder/shows"
)

// Mock implementations for testing

type mockMessageSender struct {
	sentMessages []sentMessage
}

type sentMessage struct {
	chatID int64
	text   string
	html   bool
}

func (m *mockMessageSender) SendMessage(ctx context.Context, chatID int64, text string, html bool) (int64, error) {
	m.sentMessages = append(m.sentMessages, sentMessage{chatID, text, html})
	return int64(len(m.sentMessages)), nil
}

type mockProfileStore struct {
	profiles map[string]shows.Profile
	order    []string
}

func newMockProfileStore() *mockProfileStore {
	return &mockProfileStore{profiles: make(map[string]shows.Profile)}
}

func (m *mockProfileStore) AddProfile(ctx context.Context, p shows.Profile) error {
	if _, ok := m.profiles[p.Username]; ok {
		return ErrProfileExists
	}
	m.profiles[p.Username] = p
	m.order = append(m.order, p.Username)
	return nil
}

func (m *mockProfileStore) RemoveProfile(ctx context.Context, username string) error {
	if _, ok := m.profiles[username]; !ok {
		return ErrNotFound
	}
	delete(m.profiles, username)
	for i, u := range m.order {
		if u == username {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *mockProfileStore) UpdateNickname(ctx context.Context, username, nickname string) error {
	p, ok := m.profiles[username]
	if !ok {
		return ErrNotFound
	}
	p.Nickname = nickname
	m.profiles[username] = p
	return nil
}

func (m *mockProfileStore) ListProfiles(ctx context.Context) ([]shows.Profile, error) {
	list := make([]shows.Profile, 0, len(m.order))
	for _, u := range m.order {
		list = append(list, m.profiles[u])
	}
	return list, nil
}

type mockShowStore struct {
	list          []shows.Show
	byDate        map[string][]shows.Show
	requestedDate string
}

func (m *mockShowStore) ListShows(ctx context.Context) ([]shows.Show, error) {
	return m.list, nil
}

func (m *mockShowStore) ShowsOn(ctx context.Context, date string) ([]shows.Show, error) {
	m.requestedDate = date
	return m.byDate[date], nil
}

type mockSettingsStore struct {
	settings map[string]string
}

func newMockSettingsStore() *mockSettingsStore {
	return &mockSettingsStore{settings: make(map[string]string)}
}

func (m *mockSettingsStore) GetSetting(ctx context.Context, key string) (string, error) {
	if v, ok := m.settings[key]; ok {
		return v, nil
	}
	return "", ErrNotFound
}

func (m *mockSettingsStore) SetSetting(ctx context.Context, key, value string) error {
	m.settings[key] = value
	return nil
}

type mockSchedule struct {
	rescheduled string
	next        time.Time
	hasNext     bool
}

func (m *mockSchedule) Reschedule(timeStr string) error {
	m.rescheduled = timeStr
	return nil
}

func (m *mockSchedule) NextRun() (time.Time, bool) {
	return m.next, m.hasNext
}

type mockScanTrigger struct {
	triggered bool
}

func (m *mockScanTrigger) TriggerScan(ctx context.Context) error {
	m.triggered = true
	return nil
}

type mockScanHistory struct {
	scan *shows.Scan
}

func (m *mockScanHistory) LastScan(ctx context.Context) (*shows.Scan, error) {
	if m.scan == nil {
		return nil, ErrNotFound
	}
	return m.scan, nil
}

type mockPageScanner struct {
	text string
	err  error
	url  string
}

func (m *mockPageScanner) PageText(ctx context.Context, url string) (string, error) {
	m.url = url
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

// Tests

func TestHandleStartCommand(t *testing.T) {
	sender := &mockMessageSender{}
	settings := newMockSettingsStore()

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Settings: settings})
	ctx := context.Background()

	if err := handler.HandleStart(ctx, 12345); err != nil {
		t.Fatalf("HandleStart failed: %v", err)
	}

	// Should save chat_id
	chatID, err := settings.GetSetting(ctx, "chat_id")
	if err != nil {
		t.Fatalf("chat_id not saved: %v", err)
	}
	if chatID != "12345" {
		t.Errorf("chat_id = %q, want '12345'", chatID)
	}

	// Should send welcome message
	if len(sender.sentMessages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sender.sentMessages))
	}
	if sender.sentMessages[0].chatID != 12345 {
		t.Errorf("message sent to wrong chat: %d", sender.sentMessages[0].chatID)
	}
	if !strings.Contains(sender.sentMessages[0].text, "/add") {
		t.Errorf("welcome should list commands, got: %s", sender.sentMessages[0].text)
	}
}

func TestHandleAddCommand(t *testing.T) {
	sender := &mockMessageSender{}
	store := newMockProfileStore()

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Profiles: store})
	ctx := context.Background()

	if err := handler.HandleAdd(ctx, 12345, "thebluenote"); err != nil {
		t.Fatalf("HandleAdd failed: %v", err)
	}

	p, ok := store.profiles["thebluenote"]
	if !ok {
		t.Fatal("profile was not added")
	}
	if p.Link != "https://www.instagram.com/thebluenote/" {
		t.Errorf("link = %q, want canonical profile link", p.Link)
	}
	if p.AddedAt.IsZero() {
		t.Error("AddedAt should be set")
	}

	if len(sender.sentMessages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sender.sentMessages))
	}
	if !strings.Contains(sender.sentMessages[0].text, "@thebluenote") {
		t.Errorf("confirmation should name the profile, got: %s", sender.sentMessages[0].text)
	}
}

func TestHandleAddCommandLink(t *testing.T) {
	sender := &mockMessageSender{}
	store := newMockProfileStore()

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Profiles: store})
	ctx := context.Background()

	if err := handler.HandleAdd(ctx, 12345, "https://www.instagram.com/thebluenote"); err != nil {
		t.Fatalf("HandleAdd failed: %v", err)
	}

	if _, ok := store.profiles["thebluenote"]; !ok {
		t.Error("username should be extracted from the profile link")
	}
}

func TestHandleAddCommandDuplicate(t *testing.T) {
	sender := &mockMessageSender{}
	store := newMockProfileStore()
	store.profiles["thebluenote"] = shows.Profile{Username: "thebluenote"}
	store.order = append(store.order, "thebluenote")

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Profiles: store})
	ctx := context.Background()

	if err := handler.HandleAdd(ctx, 12345, "thebluenote"); err != nil {
		t.Fatalf("HandleAdd failed: %v", err)
	}

	if !strings.Contains(sender.sentMessages[0].text, "Already tracking") {
		t.Errorf("duplicate add should be reported, got: %s", sender.sentMessages[0].text)
	}
}

func TestHandleAddCommandInvalid(t *testing.T) {
	sender := &mockMessageSender{}
	store := newMockProfileStore()

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Profiles: store})
	ctx := context.Background()

	if err := handler.HandleAdd(ctx, 12345, "not a username!!"); err != nil {
		t.Fatalf("HandleAdd failed: %v", err)
	}

	if len(store.profiles) != 0 {
		t.Error("invalid input should not add a profile")
	}
	if len(sender.sentMessages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sender.sentMessages))
	}
}

func TestHandleAddCommandUsage(t *testing.T) {
	sender := &mockMessageSender{}

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Profiles: newMockProfileStore()})
	ctx := context.Background()

	if err := handler.HandleAdd(ctx, 12345, ""); err != nil {
		t.Fatalf("HandleAdd failed: %v", err)
	}

	if !strings.Contains(sender.sentMessages[0].text, "Usage") {
		t.Errorf("empty args should send usage, got: %s", sender.sentMessages[0].text)
	}
}

func TestHandleRemoveCommand(t *testing.T) {
	sender := &mockMessageSender{}
	store := newMockProfileStore()
	store.profiles["thebluenote"] = shows.Profile{Username: "thebluenote"}
	store.order = append(store.order, "thebluenote")

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Profiles: store})
	ctx := context.Background()

	if err := handler.HandleRemove(ctx, 12345, "@thebluenote"); err != nil {
		t.Fatalf("HandleRemove failed: %v", err)
	}

	if _, ok := store.profiles["thebluenote"]; ok {
		t.Error("profile should be removed")
	}
	if !strings.Contains(sender.sentMessages[0].text, "Stopped tracking") {
		t.Errorf("removal should be confirmed, got: %s", sender.sentMessages[0].text)
	}
}

func TestHandleRemoveCommandUnknown(t *testing.T) {
	sender := &mockMessageSender{}

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Profiles: newMockProfileStore()})
	ctx := context.Background()

	if err := handler.HandleRemove(ctx, 12345, "nobody"); err != nil {
		t.Fatalf("HandleRemove failed: %v", err)
	}

	if !strings.Contains(sender.sentMessages[0].text, "Not tracking") {
		t.Errorf("unknown profile should be reported, got: %s", sender.sentMessages[0].text)
	}
}

func TestHandleListCommand(t *testing.T) {
	sender := &mockMessageSender{}
	store := newMockProfileStore()
	store.profiles["bluenote"] = shows.Profile{Username: "bluenote", Nickname: "The Blue Note"}
	store.profiles["theact"] = shows.Profile{Username: "theact"}
	store.order = []string{"bluenote", "theact"}

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Profiles: store})
	ctx := context.Background()

	if err := handler.HandleList(ctx, 12345); err != nil {
		t.Fatalf("HandleList failed: %v", err)
	}

	msg := sender.sentMessages[0].text
	if !strings.Contains(msg, "@bluenote") || !strings.Contains(msg, "@theact") {
		t.Errorf("list should name both profiles, got: %s", msg)
	}
	if !strings.Contains(msg, "The Blue Note") {
		t.Errorf("list should show nicknames, got: %s", msg)
	}
}

func TestHandleListCommandEmpty(t *testing.T) {
	sender := &mockMessageSender{}

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Profiles: newMockProfileStore()})
	ctx := context.Background()

	if err := handler.HandleList(ctx, 12345); err != nil {
		t.Fatalf("HandleList failed: %v", err)
	}

	if !strings.Contains(sender.sentMessages[0].text, "No profiles") {
		t.Errorf("empty list should say so, got: %s", sender.sentMessages[0].text)
	}
}

func TestHandleNicknameCommand(t *testing.T) {
	sender := &mockMessageSender{}
	store := newMockProfileStore()
	store.profiles["bluenote"] = shows.Profile{Username: "bluenote"}
	store.order = append(store.order, "bluenote")

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Profiles: store})
	ctx := context.Background()

	if err := handler.HandleNickname(ctx, 12345, "@bluenote The Blue Note"); err != nil {
		t.Fatalf("HandleNickname failed: %v", err)
	}

	if store.profiles["bluenote"].Nickname != "The Blue Note" {
		t.Errorf("nickname = %q, want 'The Blue Note'", store.profiles["bluenote"].Nickname)
	}
}

func TestHandleNicknameCommandUsage(t *testing.T) {
	sender := &mockMessageSender{}

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Profiles: newMockProfileStore()})
	ctx := context.Background()

	if err := handler.HandleNickname(ctx, 12345, "bluenote"); err != nil {
		t.Fatalf("HandleNickname failed: %v", err)
	}

	if !strings.Contains(sender.sentMessages[0].text, "Usage") {
		t.Errorf("missing name should send usage, got: %s", sender.sentMessages[0].text)
	}
}

func TestHandleNicknameCommandUnknown(t *testing.T) {
	sender := &mockMessageSender{}

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Profiles: newMockProfileStore()})
	ctx := context.Background()

	if err := handler.HandleNickname(ctx, 12345, "nobody Some Name"); err != nil {
		t.Fatalf("HandleNickname failed: %v", err)
	}

	if !strings.Contains(sender.sentMessages[0].text, "Not tracking") {
		t.Errorf("unknown profile should be reported, got: %s", sender.sentMessages[0].text)
	}
}

func TestHandleShowsCommand(t *testing.T) {
	sender := &mockMessageSender{}
	showStore := &mockShowStore{
		list: []shows.Show{
			{DisplayName: "Blue Note NYC", Date: "2024-06-15", Location: "The Blue Note", Time: "7:00 PM", PostURL: "https://example.com/p/1"},
			{DisplayName: "The Act", Date: shows.Unknown, Location: "Warehouse 9", Time: shows.Unknown},
		},
	}

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Shows: showStore})
	ctx := context.Background()

	if err := handler.HandleShows(ctx, 12345, ""); err != nil {
		t.Fatalf("HandleShows failed: %v", err)
	}

	if len(sender.sentMessages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sender.sentMessages))
	}
	msg := sender.sentMessages[0]
	if !msg.html {
		t.Error("shows digest should be sent as HTML")
	}
	if !strings.Contains(msg.text, "Blue Note NYC") || !strings.Contains(msg.text, "The Act") {
		t.Errorf("digest should name both shows, got: %s", msg.text)
	}
	if !strings.Contains(msg.text, "Date unknown") {
		t.Errorf("undated shows should be grouped under a heading, got: %s", msg.text)
	}
}

func TestHandleShowsCommandEmpty(t *testing.T) {
	sender := &mockMessageSender{}

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Shows: &mockShowStore{}})
	ctx := context.Background()

	if err := handler.HandleShows(ctx, 12345, ""); err != nil {
		t.Fatalf("HandleShows failed: %v", err)
	}

	if !strings.Contains(sender.sentMessages[0].text, "No shows") {
		t.Errorf("empty store should say so, got: %s", sender.sentMessages[0].text)
	}
}

func TestHandleShowsCommandWithDate(t *testing.T) {
	sender := &mockMessageSender{}
	showStore := &mockShowStore{
		byDate: map[string][]shows.Show{
			"2024-06-15": {{DisplayName: "Blue Note NYC", Date: "2024-06-15", Location: "The Blue Note", Time: "7:00 PM"}},
		},
	}

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Shows: showStore})
	ctx := context.Background()

	if err := handler.HandleShows(ctx, 12345, "2024-06-15"); err != nil {
		t.Fatalf("HandleShows failed: %v", err)
	}

	if showStore.requestedDate != "2024-06-15" {
		t.Errorf("requested date = %q, want '2024-06-15'", showStore.requestedDate)
	}
	if !strings.Contains(sender.sentMessages[0].text, "Blue Note NYC") {
		t.Errorf("digest should name the show, got: %s", sender.sentMessages[0].text)
	}
}

func TestHandleShowsCommandBadDate(t *testing.T) {
	sender := &mockMessageSender{}

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Shows: &mockShowStore{}})
	ctx := context.Background()

	if err := handler.HandleShows(ctx, 12345, "whenever you like"); err != nil {
		t.Fatalf("HandleShows failed: %v", err)
	}

	if !strings.Contains(sender.sentMessages[0].text, "Couldn't read that date") {
		t.Errorf("bad date should be reported, got: %s", sender.sentMessages[0].text)
	}
}

func TestHandleScanCommandTriggersProfileScan(t *testing.T) {
	sender := &mockMessageSender{}
	trigger := &mockScanTrigger{}

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Scans: trigger})
	ctx := context.Background()

	if err := handler.HandleScan(ctx, 12345, ""); err != nil {
		t.Fatalf("HandleScan failed: %v", err)
	}

	if !trigger.triggered {
		t.Error("bare /scan should trigger a profile scan")
	}
	if !strings.Contains(sender.sentMessages[0].text, "Scanning") {
		t.Errorf("scan should be acknowledged, got: %s", sender.sentMessages[0].text)
	}
}

func TestHandleScanCommandPage(t *testing.T) {
	sender := &mockMessageSender{}
	pages := &mockPageScanner{text: "Live tonight at The Blue Note! Doors at 7:00 PM."}

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Pages: pages})
	ctx := context.Background()

	if err := handler.HandleScan(ctx, 12345, "https://venue.example.com/events 2024-06-10"); err != nil {
		t.Fatalf("HandleScan failed: %v", err)
	}

	if pages.url != "https://venue.example.com/events" {
		t.Errorf("scanned url = %q, want the given page", pages.url)
	}

	msg := sender.sentMessages[0].text
	if !strings.Contains(msg, "2024-06-10") {
		t.Errorf("tonight should resolve against the given date, got: %s", msg)
	}
	if !strings.Contains(msg, "The Blue Note") {
		t.Errorf("result should contain the location, got: %s", msg)
	}
	if !strings.Contains(msg, "7:00 PM") {
		t.Errorf("result should contain the time, got: %s", msg)
	}
}

func TestHandleScanCommandPageFetchError(t *testing.T) {
	sender := &mockMessageSender{}
	pages := &mockPageScanner{err: errors.New("connection refused")}

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Pages: pages})
	ctx := context.Background()

	if err := handler.HandleScan(ctx, 12345, "https://venue.example.com/events"); err != nil {
		t.Fatalf("HandleScan failed: %v", err)
	}

	if !strings.Contains(sender.sentMessages[0].text, "Couldn't fetch") {
		t.Errorf("fetch failure should be reported, got: %s", sender.sentMessages[0].text)
	}
}

func TestHandleScanCommandBadURL(t *testing.T) {
	sender := &mockMessageSender{}

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Pages: &mockPageScanner{}})
	ctx := context.Background()

	if err := handler.HandleScan(ctx, 12345, "gibberish"); err != nil {
		t.Fatalf("HandleScan failed: %v", err)
	}

	if !strings.Contains(sender.sentMessages[0].text, "Usage") {
		t.Errorf("non-url args should send usage, got: %s", sender.sentMessages[0].text)
	}
}

func TestHandleSettingsCommandDisplay(t *testing.T) {
	sender := &mockMessageSender{}
	settings := newMockSettingsStore()
	settings.settings["scan_time"] = "09:00"

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Settings: settings})
	ctx := context.Background()

	if err := handler.HandleSettings(ctx, 12345, ""); err != nil {
		t.Fatalf("HandleSettings failed: %v", err)
	}

	if !strings.Contains(sender.sentMessages[0].text, "09:00") {
		t.Errorf("settings should show the scan time, got: %s", sender.sentMessages[0].text)
	}
}

func TestHandleSettingsCommandUpdateTime(t *testing.T) {
	sender := &mockMessageSender{}
	settings := newMockSettingsStore()
	sched := &mockSchedule{}

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Settings: settings, Schedule: sched})
	ctx := context.Background()

	if err := handler.HandleSettings(ctx, 12345, "time 18:30"); err != nil {
		t.Fatalf("HandleSettings failed: %v", err)
	}

	// Should update setting
	newTime, _ := settings.GetSetting(ctx, "scan_time")
	if newTime != "18:30" {
		t.Errorf("scan_time = %q, want '18:30'", newTime)
	}

	// Should update scheduler
	if sched.rescheduled != "18:30" {
		t.Errorf("scheduler not updated with new time")
	}
}

func TestHandleSettingsCommandInvalidTime(t *testing.T) {
	sender := &mockMessageSender{}
	settings := newMockSettingsStore()

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Settings: settings})
	ctx := context.Background()

	if err := handler.HandleSettings(ctx, 12345, "time 25:00"); err != nil {
		t.Fatalf("HandleSettings failed: %v", err)
	}

	if len(sender.sentMessages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sender.sentMessages))
	}
	if _, ok := settings.settings["scan_time"]; ok {
		t.Error("invalid time should not be saved")
	}
}

func TestHandleStatusCommand(t *testing.T) {
	sender := &mockMessageSender{}
	store := newMockProfileStore()
	store.profiles["a"] = shows.Profile{Username: "a"}
	store.profiles["b"] = shows.Profile{Username: "b"}
	store.order = []string{"a", "b"}

	history := &mockScanHistory{scan: &shows.Scan{
		ID:         "scan-1",
		FinishedAt: time.Date(2024, 6, 15, 8, 1, 0, 0, time.UTC),
		Posts:      40,
		Shows:      4,
		Status:     shows.ScanStatusOK,
	}}
	sched := &mockSchedule{next: time.Date(2024, 6, 16, 8, 0, 0, 0, time.UTC), hasNext: true}

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, Profiles: store, History: history, Schedule: sched})
	ctx := context.Background()

	if err := handler.HandleStatus(ctx, 12345); err != nil {
		t.Fatalf("HandleStatus failed: %v", err)
	}

	msg := sender.sentMessages[0].text
	if !strings.Contains(msg, "Profiles tracked: 2") {
		t.Errorf("status should count profiles, got: %s", msg)
	}
	if !strings.Contains(msg, "40 posts") || !strings.Contains(msg, "4 shows") {
		t.Errorf("status should summarize the last scan, got: %s", msg)
	}
	if !strings.Contains(msg, "2024-06-16 08:00") {
		t.Errorf("status should show the next run, got: %s", msg)
	}
}

func TestHandleStatusCommandNoScans(t *testing.T) {
	sender := &mockMessageSender{}

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, History: &mockScanHistory{}})
	ctx := context.Background()

	if err := handler.HandleStatus(ctx, 12345); err != nil {
		t.Fatalf("HandleStatus failed: %v", err)
	}

	if !strings.Contains(sender.sentMessages[0].text, "never") {
		t.Errorf("status without scans should say never, got: %s", sender.sentMessages[0].text)
	}
}

func TestHandleStatusCommandFailedScan(t *testing.T) {
	sender := &mockMessageSender{}
	history := &mockScanHistory{scan: &shows.Scan{
		ID:         "scan-1",
		FinishedAt: time.Date(2024, 6, 15, 8, 1, 0, 0, time.UTC),
		Status:     shows.ScanStatusFailed,
		Error:      "fetch posts: timeout",
	}}

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender, History: history})
	ctx := context.Background()

	if err := handler.HandleStatus(ctx, 12345); err != nil {
		t.Fatalf("HandleStatus failed: %v", err)
	}

	if !strings.Contains(sender.sentMessages[0].text, "failed: fetch posts: timeout") {
		t.Errorf("failed scan should surface its error, got: %s", sender.sentMessages[0].text)
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	sender := &mockMessageSender{}

	handler := NewCommandHandler(parser.New(), Deps{Sender: sender})
	ctx := context.Background()

	if err := handler.Dispatch(ctx, 12345, "frobnicate", ""); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if !strings.Contains(sender.sentMessages[0].text, "Unknown command") {
		t.Errorf("unknown commands should get a hint, got: %s", sender.sentMessages[0].text)
	}
}

func TestFormatShowsMessage(t *testing.T) {
	list := []shows.Show{
		{DisplayName: "The Act", Date: shows.Unknown, Location: "Warehouse 9", Time: shows.Unknown},
		{DisplayName: "Rock & Roll Revue", Date: "2024-06-15", Location: "Grand <Music> Hall", Time: "8:00 PM", PostURL: "https://example.com/p/2"},
	}

	msg := FormatShowsMessage(list)

	// HTML in names and locations must be escaped
	if strings.Contains(msg, "<Music>") {
		t.Error("location HTML should be escaped")
	}
	if !strings.Contains(msg, "Rock &amp; Roll Revue") {
		t.Error("display name should have escaped entities")
	}

	// Dated group first, undated last
	dated := strings.Index(msg, "Saturday, June 15")
	unknown := strings.Index(msg, "Date unknown")
	if dated == -1 || unknown == -1 {
		t.Fatalf("expected both group headings, got: %s", msg)
	}
	if dated > unknown {
		t.Error("undated group should come last")
	}

	if !strings.Contains(msg, `<a href="https://example.com/p/2">Post</a>`) {
		t.Error("shows with a post link should carry it")
	}
}

func TestFormatShowsMessageEmpty(t *testing.T) {
	if msg := FormatShowsMessage(nil); !strings.Contains(msg, "No shows") {
		t.Errorf("empty list should produce a fallback, got: %s", msg)
	}
}
