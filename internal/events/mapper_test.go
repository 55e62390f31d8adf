package events

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/bissquit/incident-relay/internal/config"
	"github.com/bissquit/incident-relay/internal/domain"
	"github.com/bissquit/incident-relay/internal/pkg/ctxlog"
	"github.com/stretchr/testify/assert"
)

func TestMapper_MapStatus(t *testing.T) {
	ctx := context.Background()
	mapper := NewMapper(config.DefaultStatusMapping(), config.DefaultSeverityMapping())

	for state, status := range config.DefaultStatusMapping() {
		t.Run(state, func(t *testing.T) {
			assert.Equal(t, domain.EventStatus(status), mapper.MapStatus(ctx, state))
		})
	}

	t.Run("unlisted state", func(t *testing.T) {
		assert.Equal(t, domain.EventStatus(domain.Unknown), mapper.MapStatus(ctx, "Awaiting Vendor"))
	})

	t.Run("lookup is exact", func(t *testing.T) {
		assert.Equal(t, domain.EventStatus(domain.Unknown), mapper.MapStatus(ctx, "new"))
		assert.Equal(t, domain.EventStatus(domain.Unknown), mapper.MapStatus(ctx, ""))
	})
}

func TestMapper_MapSeverity(t *testing.T) {
	ctx := context.Background()
	mapper := NewMapper(config.DefaultStatusMapping(), config.DefaultSeverityMapping())

	tests := []struct {
		impact   string
		expected domain.Severity
	}{
		{impact: "1 - High", expected: "High"},
		{impact: "2 - Medium", expected: "Medium"},
		{impact: "3 - Low", expected: "Low"},
		{impact: "4 - Minor", expected: domain.Severity(domain.Unknown)},
		{impact: "", expected: domain.Severity(domain.Unknown)},
	}

	for _, tt := range tests {
		t.Run(tt.impact, func(t *testing.T) {
			assert.Equal(t, tt.expected, mapper.MapSeverity(ctx, tt.impact))
		})
	}
}

func TestMapper_CustomTables(t *testing.T) {
	ctx := context.Background()
	mapper := NewMapper(
		map[string]string{"Work in Progress": "identified"},
		map[string]string{"Critical": string(domain.SeverityMajorOutage)},
	)

	assert.Equal(t, domain.EventStatusIdentified, mapper.MapStatus(ctx, "Work in Progress"))
	assert.Equal(t, domain.EventStatus(domain.Unknown), mapper.MapStatus(ctx, "New"))
	assert.Equal(t, domain.SeverityMajorOutage, mapper.MapSeverity(ctx, "Critical"))
}

func TestNewMapper_CopiesTables(t *testing.T) {
	ctx := context.Background()
	status := map[string]string{"New": "investigating"}
	mapper := NewMapper(status, nil)

	status["New"] = "resolved"

	assert.Equal(t, domain.EventStatusInvestigating, mapper.MapStatus(ctx, "New"))
	assert.Equal(t, domain.Severity(domain.Unknown), mapper.MapSeverity(ctx, "1 - High"))
}

func TestMapper_MissLogsWithContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := ctxlog.With(ctxlog.WithLogger(context.Background(), logger), "delivery_id", "d-1")

	mapper := NewMapper(nil, nil)
	mapper.MapStatus(ctx, "Awaiting Vendor")
	mapper.MapSeverity(ctx, "4 - Minor")

	out := buf.String()
	assert.Contains(t, out, "no status mapping for state")
	assert.Contains(t, out, "no severity mapping for impact")
	assert.Equal(t, 2, strings.Count(out, "delivery_id=d-1"))
}
