package forum

import (
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"forum_bot/internal/model"
	"forum_bot/internal/snippet"
)

// MaxMessageLen is Telegram's hard per-message limit, counted here over
// the whole string including markup.
const MaxMessageLen = 4096

// snippetStep is how much the snippet budget shrinks per retry when an
// assembled message does not fit.
const snippetStep = 200

// Moscow time for the forum's audience; falls back to a fixed offset if
// the tz database is unavailable.
var moscow = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}()

// Options configures announcement building for one author.
type Options struct {
	BaseURL       string        // forum base URL, no trailing slash
	DisplayName   string        // author name shown in the message header
	MaxSnippetLen int           // initial visible-length budget for the snippet
	StaleCutoff   time.Duration // posts older than this are recorded but not announced; 0 disables
	Now           time.Time     // reference time for the stale check
}

// Posts extracts the post records from a response, resolving each post's
// discussion slug from the sideloaded discussion resources, and returns
// them sorted oldest first. A nil or shapeless response yields nil.
func Posts(resp *PostsResponse) []model.Post {
	if resp == nil || len(resp.Data) == 0 {
		return nil
	}

	slugByID := make(map[string]string)
	for _, inc := range resp.Included {
		if inc.Type != "discussions" {
			continue
		}
		slug := inc.Attributes.Slug
		if slug == "" {
			slug = inc.ID
		}
		slugByID[inc.ID] = slug
	}

	posts := make([]model.Post, 0, len(resp.Data))
	for _, pr := range resp.Data {
		p := model.Post{
			ID:           pr.ID,
			ContentHTML:  pr.Attributes.ContentHTML,
			DiscussionID: pr.Relationships.Discussion.Data.ID,
			Number:       pr.Attributes.Number,
		}
		if p.DiscussionID != "" {
			if slug, ok := slugByID[p.DiscussionID]; ok {
				p.Slug = slug
			} else {
				p.Slug = p.DiscussionID
			}
		}
		if t, err := time.Parse(time.RFC3339, pr.Attributes.CreatedAt); err == nil {
			p.CreatedAt = t
			p.CreatedAtOK = true
		}
		posts = append(posts, p)
	}

	// Oldest first, so messages reach the channel in the order the
	// posts were written and the ledger evicts the true oldest IDs.
	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].CreatedAtOK || !posts[j].CreatedAtOK {
			return false
		}
		return posts[i].CreatedAt.Before(posts[j].CreatedAt)
	})
	return posts
}

// BuildAnnouncements renders announcements for every post in resp that is
// not already in known. Stale posts and posts that cannot fit even at
// zero snippet budget produce no announcement but still contribute their
// ID to newIDs, in the same oldest-first order as processing.
func BuildAnnouncements(resp *PostsResponse, known map[string]struct{}, opts Options) (anns []model.Announcement, newIDs []string) {
	for _, p := range Posts(resp) {
		if _, ok := known[p.ID]; ok {
			continue
		}

		if opts.StaleCutoff > 0 && (!p.CreatedAtOK || opts.Now.Sub(p.CreatedAt) > opts.StaleCutoff) {
			newIDs = append(newIDs, p.ID)
			continue
		}

		text, fits := renderMessage(&p, opts)
		if fits {
			anns = append(anns, model.Announcement{
				Author:       opts.DisplayName,
				PostID:       p.ID,
				DiscussionID: p.DiscussionID,
				Link:         postLink(&p, opts.BaseURL),
				Text:         text,
				CreatedAt:    p.CreatedAt,
			})
		}
		newIDs = append(newIDs, p.ID)
	}
	return anns, newIDs
}

// renderMessage assembles the full message text for one post, shrinking
// the snippet budget until the result fits in MaxMessageLen. fits is
// false when even a zero budget is not enough.
func renderMessage(p *model.Post, opts Options) (text string, fits bool) {
	header := "<b>" + snippet.Escape(opts.DisplayName) + "</b>\n" + headerDate(p) + "\n\n"
	link := postLink(p, opts.BaseURL)

	budget := opts.MaxSnippetLen
	for {
		text = header + snippet.Render(p.ContentHTML, budget)
		if link != "" {
			text += "\n\n" + link
		}
		if utf8.RuneCountInString(text) <= MaxMessageLen || budget <= 0 {
			break
		}
		budget -= snippetStep
		if budget < 0 {
			budget = 0
		}
	}
	if utf8.RuneCountInString(text) > MaxMessageLen {
		return "", false
	}

	if block := imageBlock(p.ContentHTML); block != "" {
		if utf8.RuneCountInString(text)+utf8.RuneCountInString(block) <= MaxMessageLen {
			text += block
		}
	}
	return text, true
}

func headerDate(p *model.Post) string {
	if !p.CreatedAtOK {
		return ""
	}
	return p.CreatedAt.In(moscow).Format("02.01.2006, 15:04:05")
}

func postLink(p *model.Post, baseURL string) string {
	if !p.HasDiscussion() {
		return ""
	}
	return baseURL + "/d/" + p.DiscussionID + "-" + p.Slug + "/" + strconv.Itoa(p.Number)
}

// imageBlock renders the post's image URLs as self-referential links, or
// "" when the post has none.
func imageBlock(contentHTML string) string {
	urls := snippet.ImageURLs(contentHTML)
	if len(urls) == 0 {
		return ""
	}
	links := make([]string, len(urls))
	for i, u := range urls {
		esc := snippet.Escape(u)
		links[i] = `<a href="` + esc + `">` + esc + `</a>`
	}
	return "\n\nImage: " + strings.Join(links, "\n")
}
