package bot

import (
	"fmt"
	"strings"

	"forum_bot/internal/model"
)

// FormatAuthorList renders the tracked-author list for command replies.
func FormatAuthorList(authors []string) string {
	if len(authors) == 0 {
		return "(none)"
	}
	return strings.Join(authors, ", ")
}

// FormatHistory renders recent archived announcements, newest first.
func FormatHistory(anns []model.Announcement) string {
	if len(anns) == 0 {
		return "No announcements recorded yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Last %d announcement(s):\n", len(anns))
	for _, a := range anns {
		fmt.Fprintf(&b, "\n%s — post %s", a.Author, a.PostID)
		if !a.SentAt.IsZero() {
			fmt.Fprintf(&b, " at %s", a.SentAt.Format("2006-01-02 15:04 UTC"))
		}
		if a.Link != "" {
			b.WriteString("\n" + a.Link)
		}
	}
	return b.String()
}
