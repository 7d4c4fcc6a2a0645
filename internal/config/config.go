// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultAuthors is the built-in set of tracked forum authors, used until
// the state file or an admin command overrides it.
var DefaultAuthors = []string{
	"Marxont", "dolgodoomal", "zubzalinaza", "Kommynist", "Mediocree", "ZIV",
	"Furgon", "pinkDog", "Slyshashchii", "barmeh34", "normist", "_Emelasha_",
	"ooveronika", "6eximmortal", "AngryKitty", "grin_d", "nastexe",
	"Erildorian", "litrkerasina", "psychosociaI",
}

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	ChannelIDs       []int64
	ForumBaseURL     string
	PollInterval     time.Duration
	AuthorDelay      time.Duration
	SendDelay        time.Duration
	StateFilePath    string
	DatabasePath     string
	PostsPerAuthor   int
	MaxSnippetLen    int
	StaleCutoff      time.Duration
	AdminUserIDs     []int64
	LogLevel         string
	HealthPort       string
	TrackedAuthors   []string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	channelIDs, err := parseIDList(os.Getenv("TELEGRAM_CHANNEL_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHANNEL_IDS: %w", err)
	}
	adminIDs, err := parseIDList(os.Getenv("ADMIN_USER_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_USER_IDS: %w", err)
	}

	baseURL := os.Getenv("FORUM_BASE_URL")
	if baseURL == "" {
		baseURL = "https://forum.exbo.ru"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	stateFile := os.Getenv("LAST_SEEN_STATE_FILE")
	if stateFile == "" {
		stateFile = "last-seen-posts.json"
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/bot.db"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	authors := DefaultAuthors
	if raw := os.Getenv("TRACKED_AUTHORS"); raw != "" {
		authors = splitList(raw)
	}

	return &Config{
		TelegramBotToken: token,
		ChannelIDs:       channelIDs,
		ForumBaseURL:     baseURL,
		PollInterval:     clampMillis("POLL_INTERVAL_MS", 300_000, 60_000, 86_400_000),
		AuthorDelay:      clampMillis("AUTHOR_REQUEST_DELAY_MS", 1000, 100, 60_000),
		SendDelay:        clampMillis("TELEGRAM_SEND_DELAY_MS", 500, 0, 60_000),
		StateFilePath:    stateFile,
		DatabasePath:     dbPath,
		PostsPerAuthor:   clampInt("POSTS_PER_AUTHOR", 5, 1, 50),
		MaxSnippetLen:    clampInt("MAX_SNIPPET_LEN", 1000, 100, 4000),
		StaleCutoff:      staleCutoff(),
		AdminUserIDs:     adminIDs,
		LogLevel:         logLevel,
		HealthPort:       os.Getenv("HEALTH_PORT"),
		TrackedAuthors:   authors,
	}, nil
}

// IsUserAllowed checks whether a user ID is in the admin allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AdminUserIDs) == 0 {
		return true
	}
	for _, id := range c.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// clampInt reads an integer env var, falling back to def when unset or
// unparsable, and clamping the result into [min, max].
func clampInt(key string, def, min, max int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return min
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

func clampMillis(key string, def, min, max int) time.Duration {
	return time.Duration(clampInt(key, def, min, max)) * time.Millisecond
}

// staleCutoff handles SKIP_SEND_POST_OLDER_THAN_MS, where an explicit 0
// disables the stale check entirely.
func staleCutoff() time.Duration {
	raw := os.Getenv("SKIP_SEND_POST_OLDER_THAN_MS")
	if raw == "" {
		return time.Hour
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return time.Hour
	}
	if n == 0 {
		return 0
	}
	if n < 60_000 {
		n = 60_000
	}
	if n > 86_400_000 {
		n = 86_400_000
	}
	return time.Duration(n) * time.Millisecond
}

func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ID %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
