package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ad/go-telegram-levelquiz/internal/models"
)

// MaxMessageLength is Telegram's limit for one text message, in characters.
const MaxMessageLength = 4096

type Filter string

const (
	FilterAll       Filter = "all"
	FilterCompleted Filter = "completed"
	FilterActive    Filter = "active"
)

func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FilterAll:
		return FilterAll, nil
	case FilterCompleted, FilterActive:
		return f, nil
	}
	return "", fmt.Errorf("unknown filter %q (use all, completed or active)", s)
}

type ProgressLister interface {
	ListAll(ctx context.Context) ([]models.UserProgress, error)
	ListByCompleted(ctx context.Context, completed bool) ([]models.UserProgress, error)
}

type Report struct {
	TotalUsers     int
	CompletedUsers int
	Filter         Filter
	Entries        []models.UserProgress
}

type StatisticsService struct {
	repo ProgressLister
}

func NewStatisticsService(repo ProgressLister) *StatisticsService {
	return &StatisticsService{repo: repo}
}

// Build counts every identity and lists the ones matching filter.
func (s *StatisticsService) Build(ctx context.Context, filter Filter) (*Report, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}

	report := &Report{TotalUsers: len(all), Filter: filter}
	for _, up := range all {
		if up.Progress.Completed {
			report.CompletedUsers++
		}
	}

	switch filter {
	case FilterCompleted, FilterActive:
		report.Entries, err = s.repo.ListByCompleted(ctx, filter == FilterCompleted)
		if err != nil {
			return nil, fmt.Errorf("list progress: %w", err)
		}
	default:
		report.Entries = all
	}
	return report, nil
}

func FormatReport(r *Report) string {
	if r.TotalUsers == 0 {
		return "No users are registered yet."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Total Users: %d\n", r.TotalUsers)
	fmt.Fprintf(&sb, "Total Levels Completed: %d\n", r.CompletedUsers)
	if r.Filter != "" && r.Filter != FilterAll {
		fmt.Fprintf(&sb, "Showing: %s (%d)\n", r.Filter, len(r.Entries))
	}
	sb.WriteString("\nUser Details:\n")

	for _, up := range r.Entries {
		sb.WriteString(formatEntry(up))
	}
	return sb.String()
}

func formatEntry(up models.UserProgress) string {
	name := strings.TrimSpace(up.User.FirstName + " " + up.User.LastName)
	if name == "" {
		name = "—"
	}
	username := "N/A"
	if up.User.Username != "" {
		username = "@" + up.User.Username
	}
	contact := up.Progress.ContactInfo
	if contact == "" {
		contact = "Not provided"
	}
	levels := models.DisplayLevel(up.Progress.Level)
	if levels < 0 {
		levels = 0
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\nName: %s\n", name)
	fmt.Fprintf(&sb, "Username: %s\n", username)
	fmt.Fprintf(&sb, "Telegram ID: %d\n", up.User.ID)
	fmt.Fprintf(&sb, "Contact: %s\n", contact)
	fmt.Fprintf(&sb, "Levels Completed: %d", levels)
	if up.Progress.Completed {
		sb.WriteString(" ✅")
	}
	sb.WriteString("\n")
	if !up.User.CreatedAt.IsZero() {
		fmt.Fprintf(&sb, "Joined: %s\n", FormatDateTime(up.User.CreatedAt))
	}
	sb.WriteString("-------------------------\n")
	return sb.String()
}

// SplitMessage cuts text into chunks of at most limit characters, preferring line breaks.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || text == "" {
		return nil
	}

	var chunks []string
	for utf8.RuneCountInString(text) > limit {
		cut := byteOffset(text, limit)
		if nl := strings.LastIndexByte(text[:cut], '\n'); nl > 0 {
			cut = nl + 1
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// byteOffset returns the byte index just past the first n runes of s.
func byteOffset(s string, n int) int {
	i := 0
	for n > 0 && i < len(s) {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		n--
	}
	return i
}
