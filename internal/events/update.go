package events

import (
	"context"
	"regexp"
	"strings"

	"github.com/bissquit/incident-relay/internal/domain"
	"github.com/bissquit/incident-relay/internal/pkg/ctxlog"
	"github.com/bissquit/incident-relay/internal/record"
)

// trailingBlankLines matches a run of two or more newline-led blank segments
// at the very end of a comment.
var trailingBlankLines = regexp.MustCompile(`(\n\s*){2,}$`)

// ExtractUpdate returns the update timeline entry for a record, or nil.
// Only update operations that add a customer-visible comment which is
// non-empty after cleaning produce an entry. A whitespace-only comment is
// not empty and is sent as is.
func ExtractUpdate(ctx context.Context, rec record.Record) *domain.EventUpdate {
	logger := ctxlog.FromContext(ctx)

	if !rec.Operation().IsUpdate() {
		logger.Debug("new incident detected")
		return nil
	}

	if !rec.Changed(domain.FieldComments) {
		logger.Debug("incident update detected with no customer visible comments")
		return nil
	}

	entry := rec.JournalEntry(domain.FieldComments, 1)
	if entry == "" {
		logger.Debug("comments changed but the last comment could not be acquired")
		return nil
	}
	logger.Debug("customer visible comment found", "comment", entry)

	cleaned := CleanComment(entry)
	if cleaned == "" {
		logger.Debug("last customer visible comment is empty after cleaning, skipping update")
		return nil
	}
	logger.Debug("last customer visible comment cleaned", "comment", cleaned)

	return domain.NewEventUpdate(cleaned)
}

// CleanComment strips the journal header line (author and timestamp) the
// platform prepends, then trailing blank lines.
func CleanComment(entry string) string {
	if _, rest, ok := strings.Cut(entry, "\n"); ok {
		entry = rest
	}
	return trailingBlankLines.ReplaceAllString(entry, "")
}
