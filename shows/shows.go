// Package shows turns social posts into normalized show records. The
// caption is the primary source; text recovered from the post image fills
// gaps the caption leaves open.
package shows

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"showfinder/parser"
)

// Unknown marks a field no source could fill.
const Unknown = "Unknown"

// DateLayout is the format show dates are stored and grouped in.
const DateLayout = "2006-01-02"

// Post is one social post as fetched from a profile feed.
type Post struct {
	Username  string
	Caption   string
	PostURL   string
	Timestamp time.Time
	ImageURL  string // empty when the post has no recoverable image
}

// Show is a normalized show record ready for storage and presentation.
type Show struct {
	PostURL     string
	Username    string
	DisplayName string
	Caption     string
	Date        string // DateLayout or Unknown
	Location    string
	Time        string
}

// Profile is a tracked account.
type Profile struct {
	Username string
	Link     string
	Nickname string
	AddedAt  time.Time
}

// TextRecovery pulls text out of a post image, typically through OCR.
type TextRecovery interface {
	RecoverText(ctx context.Context, imageRef string) (string, error)
}

// NicknameSource resolves a username to its display nickname. An empty
// nickname means none is set.
type NicknameSource interface {
	Nickname(ctx context.Context, username string) (string, error)
}

// MergeSources classifies and extracts the caption, then fills gaps from
// image text. The image is consulted only when the caption leaves the date
// or the location open; a missing time alone is not worth the trouble.
// Caption fields are never overwritten, and image text is never classified.
func MergeSources(p *parser.Parser, caption, imageText string, ref time.Time) parser.Result {
	return merge(p, caption, ref, func() (string, bool) {
		return imageText, imageText != ""
	})
}

// merge implements the recovery rules over a callback so callers that have
// to pay for image text (download, OCR) only do so when a gap exists.
func merge(p *parser.Parser, caption string, ref time.Time, image func() (string, bool)) parser.Result {
	res := p.Parse(caption, ref)
	if !res.IsShow {
		return res
	}
	if !res.Date.IsZero() && res.Location != "" {
		return res
	}
	text, ok := image()
	if !ok {
		return res
	}
	rec := p.Extract(text, ref)
	if res.Date.IsZero() {
		res.Date = rec.Date
	}
	if res.Location == "" {
		res.Location = rec.Location
	}
	if res.Time == "" {
		res.Time = rec.Time
	}
	return res
}

// Processor batches posts into show records.
type Processor struct {
	parser    *parser.Parser
	recovery  TextRecovery
	nicknames NicknameSource
	workers   int
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithWorkers sets how many posts are processed at once.
func WithWorkers(n int) ProcessorOption {
	return func(pr *Processor) {
		if n > 0 {
			pr.workers = n
		}
	}
}

// NewProcessor creates a processor. recovery and nicknames may be nil, in
// which case image recovery is skipped and usernames stand in for display
// names.
func NewProcessor(p *parser.Parser, recovery TextRecovery, nicknames NicknameSource, opts ...ProcessorOption) *Processor {
	pr := &Processor{
		parser:    p,
		recovery:  recovery,
		nicknames: nicknames,
		workers:   4,
	}
	for _, opt := range opts {
		opt(pr)
	}
	return pr
}

// Process classifies and extracts every post and returns the resulting
// shows in the posts' order. Records without a date and without a location
// are dropped; remaining open fields read Unknown.
func (pr *Processor) Process(ctx context.Context, posts []Post) []Show {
	if len(posts) == 0 {
		return nil
	}

	// extraction fans out across workers; indexed slots keep post order
	results := make([]parser.Result, len(posts))
	jobs := make(chan int)
	workers := pr.workers
	if workers > len(posts) {
		workers = len(posts)
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = pr.extract(ctx, posts[idx])
			}
		}()
	}
	for i := range posts {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var found []Show
	for i, post := range posts {
		res := results[i]
		if !res.IsShow {
			continue
		}
		show := pr.newShow(ctx, post, res)
		if show.Date == Unknown && show.Location == Unknown {
			continue
		}
		found = append(found, show)
	}
	return found
}

// extract merges caption and image sources for one post. Recovery failures
// degrade to an absent image: the caption result stands on its own.
func (pr *Processor) extract(ctx context.Context, post Post) parser.Result {
	return merge(pr.parser, post.Caption, post.Timestamp, func() (string, bool) {
		if pr.recovery == nil || post.ImageURL == "" {
			return "", false
		}
		text, err := pr.recovery.RecoverText(ctx, post.ImageURL)
		if err != nil {
			slog.Warn("image text recovery failed", "post", post.PostURL, "error", err)
			return "", false
		}
		return text, text != ""
	})
}

func (pr *Processor) newShow(ctx context.Context, post Post, res parser.Result) Show {
	show := Show{
		PostURL:     post.PostURL,
		Username:    post.Username,
		DisplayName: pr.displayName(ctx, post.Username),
		Caption:     post.Caption,
		Date:        Unknown,
		Location:    Unknown,
		Time:        Unknown,
	}
	if !res.Date.IsZero() {
		show.Date = res.Date.Format(DateLayout)
	}
	if res.Location != "" {
		show.Location = res.Location
	}
	if res.Time != "" {
		show.Time = res.Time
	}
	return show
}

func (pr *Processor) displayName(ctx context.Context, username string) string {
	if pr.nicknames == nil {
		return username
	}
	nick, err := pr.nicknames.Nickname(ctx, username)
	if err != nil {
		slog.Warn("nickname lookup failed", "username", username, "error", err)
		return username
	}
	if nick == "" {
		return username
	}
	return nick
}
