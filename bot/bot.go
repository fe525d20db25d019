// Package bot implements the Telegram command surface: tracking profiles,
// browsing found shows, scanning pages, and tuning the daily scan.
package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"showfinder/instagram"
	"showfinder/parser"
	"showfinder/shows"
)

// Sentinel errors dependency implementations return to the handlers.
var (
	ErrNotFound      = errors.New("not found")
	ErrProfileExists = errors.New("profile already tracked")
)

// MessageSender sends messages to Telegram.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string, html bool) (int64, error)
}

// ProfileStore manages the tracked profiles. AddProfile returns
// ErrProfileExists for duplicates; RemoveProfile and UpdateNickname return
// ErrNotFound for untracked usernames.
type ProfileStore interface {
	AddProfile(ctx context.Context, p shows.Profile) error
	RemoveProfile(ctx context.Context, username string) error
	UpdateNickname(ctx context.Context, username, nickname string) error
	ListProfiles(ctx context.Context) ([]shows.Profile, error)
}

// ShowStore reads the shows found by past scans.
type ShowStore interface {
	ListShows(ctx context.Context) ([]shows.Show, error)
	ShowsOn(ctx context.Context, date string) ([]shows.Show, error)
}

// SettingsStore manages persistent settings.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// ScheduleUpdater moves the daily scan and reports the next run.
type ScheduleUpdater interface {
	Reschedule(timeStr string) error
	NextRun() (time.Time, bool)
}

// ScanTrigger starts a scan cycle over the tracked profiles. The scan may
// run in the background; results arrive through the usual digest message.
type ScanTrigger interface {
	TriggerScan(ctx context.Context) error
}

// ScanHistory looks up past scan records. LastScan returns ErrNotFound when
// no scan has run yet.
type ScanHistory interface {
	LastScan(ctx context.Context) (*shows.Scan, error)
}

// PageScanner fetches a web page and returns its readable text.
type PageScanner interface {
	PageText(ctx context.Context, url string) (string, error)
}

var timeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

const defaultScanTime = "08:00"

const commandList = "Commands:\n" +
	"/add <link or username> - Track a profile\n" +
	"/remove <username> - Stop tracking a profile\n" +
	"/list - Show tracked profiles\n" +
	"/nickname <username> <name> - Set a display name\n" +
	"/shows [date] - List found shows\n" +
	"/scan - Scan tracked profiles now\n" +
	"/scan <url> [date] - Pull show details from a web page\n" +
	"/settings - View or change the scan time\n" +
	"/status - Scan history and schedule\n" +
	"/help - This message"

// Deps holds the injectable dependencies of the command handlers. Any of
// them may be nil; the commands that need a missing one degrade to a no-op.
type Deps struct {
	Sender   MessageSender
	Profiles ProfileStore
	Shows    ShowStore
	Settings SettingsStore
	Schedule ScheduleUpdater
	Scans    ScanTrigger
	History  ScanHistory
	Pages    PageScanner
}

// CommandHandler handles bot commands.
type CommandHandler struct {
	parser   *parser.Parser
	sender   MessageSender
	profiles ProfileStore
	shows    ShowStore
	settings SettingsStore
	schedule ScheduleUpdater
	scans    ScanTrigger
	history  ScanHistory
	pages    PageScanner
}

// NewCommandHandler creates a command handler around the extraction engine
// and its dependencies.
func NewCommandHandler(p *parser.Parser, deps Deps) *CommandHandler {
	return &CommandHandler{
		parser:   p,
		sender:   deps.Sender,
		profiles: deps.Profiles,
		shows:    deps.Shows,
		settings: deps.Settings,
		schedule: deps.Schedule,
		scans:    deps.Scans,
		history:  deps.History,
		pages:    deps.Pages,
	}
}

// Dispatch routes a command (without the leading slash) to its handler.
// Unknown commands get a short hint instead of an error.
func (h *CommandHandler) Dispatch(ctx context.Context, chatID int64, command, args string) error {
	switch command {
	case "start":
		return h.HandleStart(ctx, chatID)
	case "help":
		return h.HandleHelp(ctx, chatID)
	case "add":
		return h.HandleAdd(ctx, chatID, args)
	case "remove":
		return h.HandleRemove(ctx, chatID, args)
	case "list":
		return h.HandleList(ctx, chatID)
	case "nickname":
		return h.HandleNickname(ctx, chatID, args)
	case "shows":
		return h.HandleShows(ctx, chatID, args)
	case "scan":
		return h.HandleScan(ctx, chatID, args)
	case "settings":
		return h.HandleSettings(ctx, chatID, args)
	case "status":
		return h.HandleStatus(ctx, chatID)
	default:
		_, err := h.sender.SendMessage(ctx, chatID, "Unknown command. /help lists what I can do.", false)
		return err
	}
}

// HandleStart handles the /start command.
func (h *CommandHandler) HandleStart(ctx context.Context, chatID int64) error {
	// The chat ID is where scan digests go from now on
	if h.settings != nil {
		if err := h.settings.SetSetting(ctx, "chat_id", strconv.FormatInt(chatID, 10)); err != nil {
			return fmt.Errorf("save chat_id: %w", err)
		}
	}

	msg := "Welcome to Show Finder! 🎸\n\n" +
		"I watch Instagram profiles for show announcements and turn them into a calendar.\n\n" +
		commandList

	_, err := h.sender.SendMessage(ctx, chatID, msg, false)
	return err
}

// HandleHelp handles the /help command.
func (h *CommandHandler) HandleHelp(ctx context.Context, chatID int64) error {
	_, err := h.sender.SendMessage(ctx, chatID, commandList, false)
	return err
}

// HandleAdd handles the /add command.
func (h *CommandHandler) HandleAdd(ctx context.Context, chatID int64, args string) error {
	args = strings.TrimSpace(args)
	if args == "" {
		_, err := h.sender.SendMessage(ctx, chatID, "Usage: /add <profile link or username>", false)
		return err
	}

	username, err := instagram.ParseProfileRef(args)
	if err != nil {
		_, err := h.sender.SendMessage(ctx, chatID, "That doesn't look like a profile link or username.", false)
		return err
	}

	profile := shows.Profile{
		Username: username,
		Link:     "https://www.instagram.com/" + username + "/",
		AddedAt:  time.Now(),
	}
	if err := h.profiles.AddProfile(ctx, profile); err != nil {
		if errors.Is(err, ErrProfileExists) {
			_, err := h.sender.SendMessage(ctx, chatID, fmt.Sprintf("Already tracking @%s.", username), false)
			return err
		}
		return fmt.Errorf("add profile: %w", err)
	}

	msg := fmt.Sprintf("Now tracking @%s. New shows will appear after the next scan.", username)
	_, err = h.sender.SendMessage(ctx, chatID, msg, false)
	return err
}

// HandleRemove handles the /remove command.
func (h *CommandHandler) HandleRemove(ctx context.Context, chatID int64, args string) error {
	args = strings.TrimSpace(args)
	if args == "" {
		_, err := h.sender.SendMessage(ctx, chatID, "Usage: /remove <username>", false)
		return err
	}

	username, err := instagram.ParseProfileRef(args)
	if err != nil {
		_, err := h.sender.SendMessage(ctx, chatID, "That doesn't look like a profile link or username.", false)
		return err
	}

	if err := h.profiles.RemoveProfile(ctx, username); err != nil {
		if errors.Is(err, ErrNotFound) {
			_, err := h.sender.SendMessage(ctx, chatID, fmt.Sprintf("Not tracking @%s.", username), false)
			return err
		}
		return fmt.Errorf("remove profile: %w", err)
	}

	_, err = h.sender.SendMessage(ctx, chatID, fmt.Sprintf("Stopped tracking @%s.", username), false)
	return err
}

// HandleList handles the /list command.
func (h *CommandHandler) HandleList(ctx context.Context, chatID int64) error {
	profiles, err := h.profiles.ListProfiles(ctx)
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}

	if len(profiles) == 0 {
		_, err := h.sender.SendMessage(ctx, chatID, "No profiles tracked yet. Add one with /add <link or username>.", false)
		return err
	}

	var sb strings.Builder
	sb.WriteString("Tracked profiles:\n")
	for _, p := range profiles {
		sb.WriteString("• @" + html.EscapeString(p.Username))
		if p.Nickname != "" {
			sb.WriteString(" (" + html.EscapeString(p.Nickname) + ")")
		}
		sb.WriteString("\n")
	}

	_, err = h.sender.SendMessage(ctx, chatID, sb.String(), true)
	return err
}

// HandleNickname handles the /nickname command.
func (h *CommandHandler) HandleNickname(ctx context.Context, chatID int64, args string) error {
	parts := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if len(parts) < 2 || parts[0] == "" {
		_, err := h.sender.SendMessage(ctx, chatID, "Usage: /nickname <username> <display name>", false)
		return err
	}

	username := strings.TrimPrefix(parts[0], "@")
	nickname := strings.TrimSpace(parts[1])

	if err := h.profiles.UpdateNickname(ctx, username, nickname); err != nil {
		if errors.Is(err, ErrNotFound) {
			_, err := h.sender.SendMessage(ctx, chatID, fmt.Sprintf("Not tracking @%s. Add it first with /add.", username), false)
			return err
		}
		return fmt.Errorf("update nickname: %w", err)
	}

	msg := fmt.Sprintf("Got it. @%s now shows as %s.", username, nickname)
	_, err := h.sender.SendMessage(ctx, chatID, msg, false)
	return err
}

// HandleShows handles the /shows command. Without arguments it lists every
// stored show; with a date argument it lists that day only.
func (h *CommandHandler) HandleShows(ctx context.Context, chatID int64, args string) error {
	args = strings.TrimSpace(args)

	if args == "" {
		list, err := h.shows.ListShows(ctx)
		if err != nil {
			return fmt.Errorf("list shows: %w", err)
		}
		if len(list) == 0 {
			_, err := h.sender.SendMessage(ctx, chatID, "No shows found yet. Track a profile with /add, then /scan.", false)
			return err
		}
		_, err = h.sender.SendMessage(ctx, chatID, FormatShowsMessage(list), true)
		return err
	}

	day, err := dateparse.ParseAny(args)
	if err != nil {
		_, err := h.sender.SendMessage(ctx, chatID, "Couldn't read that date. Try a format like 2024-06-15 or June 15.", false)
		return err
	}
	date := day.Format(shows.DateLayout)

	list, err := h.shows.ShowsOn(ctx, date)
	if err != nil {
		return fmt.Errorf("shows on %s: %w", date, err)
	}
	if len(list) == 0 {
		_, err := h.sender.SendMessage(ctx, chatID, fmt.Sprintf("No shows on %s.", formatDateHeading(date)), false)
		return err
	}

	_, err = h.sender.SendMessage(ctx, chatID, FormatShowsMessage(list), true)
	return err
}

// HandleScan handles the /scan command. Bare /scan triggers a profile scan;
// /scan <url> [date] runs the extraction rules over a web page, resolving
// relative dates against the given date instead of today.
func (h *CommandHandler) HandleScan(ctx context.Context, chatID int64, args string) error {
	fields := strings.Fields(args)

	if len(fields) == 0 {
		if h.scans == nil {
			return nil
		}
		if _, err := h.sender.SendMessage(ctx, chatID, "Scanning tracked profiles now. I'll post what I find.", false); err != nil {
			return err
		}
		return h.scans.TriggerScan(ctx)
	}

	rawURL := fields[0]
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		msg := "Usage:\n/scan - Scan tracked profiles now\n/scan <url> [date] - Pull show details from a web page"
		_, err := h.sender.SendMessage(ctx, chatID, msg, false)
		return err
	}

	ref := time.Now()
	if len(fields) > 1 {
		parsed, err := dateparse.ParseAny(strings.Join(fields[1:], " "))
		if err != nil {
			_, err := h.sender.SendMessage(ctx, chatID, "Couldn't read that date. Try a format like 2024-06-15 or June 15.", false)
			return err
		}
		ref = parsed
	}

	if h.pages == nil {
		return nil
	}
	text, err := h.pages.PageText(ctx, rawURL)
	if err != nil {
		_, err := h.sender.SendMessage(ctx, chatID, "Couldn't fetch that page. Check the link and try again.", false)
		return err
	}

	res := h.parser.Extract(text, ref)
	_, err = h.sender.SendMessage(ctx, chatID, formatScanResult(res), true)
	return err
}

// HandleSettings handles the /settings command.
func (h *CommandHandler) HandleSettings(ctx context.Context, chatID int64, args string) error {
	args = strings.TrimSpace(args)

	if args == "" {
		return h.displaySettings(ctx, chatID)
	}

	parts := strings.SplitN(args, " ", 2)
	if len(parts) < 2 || strings.ToLower(parts[0]) != "time" {
		return h.sendSettingsUsage(ctx, chatID)
	}

	return h.updateScanTime(ctx, chatID, strings.TrimSpace(parts[1]))
}

func (h *CommandHandler) displaySettings(ctx context.Context, chatID int64) error {
	scanTime := defaultScanTime
	if h.settings != nil {
		if t, err := h.settings.GetSetting(ctx, "scan_time"); err == nil {
			scanTime = t
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Current settings:\n\n📅 Daily scan time: %s\n", scanTime)
	if h.schedule != nil {
		if next, ok := h.schedule.NextRun(); ok {
			fmt.Fprintf(&sb, "Next scan: %s\n", next.Format("2006-01-02 15:04"))
		}
	}
	sb.WriteString("\nUpdate with:\n/settings time HH:MM")

	_, err := h.sender.SendMessage(ctx, chatID, sb.String(), false)
	return err
}

func (h *CommandHandler) updateScanTime(ctx context.Context, chatID int64, timeStr string) error {
	if !timeRegex.MatchString(timeStr) {
		_, err := h.sender.SendMessage(ctx, chatID, "Invalid time format. Use HH:MM (e.g., 08:00, 18:30)", false)
		return err
	}

	if h.settings != nil {
		if err := h.settings.SetSetting(ctx, "scan_time", timeStr); err != nil {
			return fmt.Errorf("save scan_time: %w", err)
		}
	}

	if h.schedule != nil {
		if err := h.schedule.Reschedule(timeStr); err != nil {
			return fmt.Errorf("reschedule scan: %w", err)
		}
	}

	msg := fmt.Sprintf("✅ Daily scan moved to %s", timeStr)
	_, err := h.sender.SendMessage(ctx, chatID, msg, false)
	return err
}

func (h *CommandHandler) sendSettingsUsage(ctx context.Context, chatID int64) error {
	msg := "Usage:\n" +
		"/settings - Show current settings\n" +
		"/settings time HH:MM - Move the daily scan"
	_, err := h.sender.SendMessage(ctx, chatID, msg, false)
	return err
}

// HandleStatus handles the /status command.
func (h *CommandHandler) HandleStatus(ctx context.Context, chatID int64) error {
	var sb strings.Builder

	if h.profiles != nil {
		profiles, err := h.profiles.ListProfiles(ctx)
		if err != nil {
			return fmt.Errorf("list profiles: %w", err)
		}
		fmt.Fprintf(&sb, "Profiles tracked: %d\n", len(profiles))
	}

	if h.history != nil {
		last, err := h.history.LastScan(ctx)
		switch {
		case errors.Is(err, ErrNotFound):
			sb.WriteString("Last scan: never\n")
		case err != nil:
			return fmt.Errorf("last scan: %w", err)
		case last.Status == shows.ScanStatusOK:
			fmt.Fprintf(&sb, "Last scan: %s (ok, %d posts, %d shows)\n",
				last.FinishedAt.Format("2006-01-02 15:04"), last.Posts, last.Shows)
		default:
			fmt.Fprintf(&sb, "Last scan: %s (failed: %s)\n",
				last.FinishedAt.Format("2006-01-02 15:04"), last.Error)
		}
	}

	if h.schedule != nil {
		if next, ok := h.schedule.NextRun(); ok {
			fmt.Fprintf(&sb, "Next scan: %s\n", next.Format("2006-01-02 15:04"))
		} else {
			sb.WriteString("Next scan: not scheduled\n")
		}
	}

	_, err := h.sender.SendMessage(ctx, chatID, strings.TrimRight(sb.String(), "\n"), false)
	return err
}

// FormatShowsMessage formats shows for Telegram, grouped by date with the
// undated group last. The result uses HTML markup.
func FormatShowsMessage(list []shows.Show) string {
	if len(list) == 0 {
		return "No shows found."
	}

	groups := shows.GroupByDate(list)
	var sb strings.Builder
	for i, date := range shows.SortedDates(groups) {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "📅 <b>%s</b>\n", formatDateHeading(date))
		for _, s := range groups[date] {
			sb.WriteString("🎤 <b>" + html.EscapeString(s.DisplayName) + "</b>")
			if s.Location != shows.Unknown {
				sb.WriteString(" at " + html.EscapeString(s.Location))
			}
			if s.Time != shows.Unknown {
				sb.WriteString(" | " + html.EscapeString(s.Time))
			}
			sb.WriteString("\n")
			if s.PostURL != "" {
				fmt.Fprintf(&sb, "<a href=%q>Post</a>\n", s.PostURL)
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatDateHeading(date string) string {
	if date == shows.Unknown {
		return "Date unknown"
	}
	t, err := time.Parse(shows.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("Monday, January 2")
}

func formatScanResult(res parser.Result) string {
	if res.Date.IsZero() && res.Location == "" && res.Time == "" {
		return "No show details found on that page."
	}

	var sb strings.Builder
	sb.WriteString("Found on the page:\n")
	if res.Date.IsZero() {
		sb.WriteString("📅 Date: not found\n")
	} else {
		sb.WriteString("📅 Date: " + res.Date.Format(shows.DateLayout) + "\n")
	}
	if res.Location == "" {
		sb.WriteString("📍 Location: not found\n")
	} else {
		sb.WriteString("📍 Location: " + html.EscapeString(res.Location) + "\n")
	}
	if res.Time == "" {
		sb.WriteString("🕐 Time: not found")
	} else {
		sb.WriteString("🕐 Time: " + html.EscapeString(res.Time))
	}
	return sb.String()
}
