package dashboard

import (
	"sync/atomic"
	"testing"

	"github.com/loykin/botpanel/internal/logbuf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRunStatus(t *testing.T) {
	tests := map[string]RunStatus{
		"running":         StatusRunning,
		"stopped":         StatusStopped,
		"error":           StatusError,
		"not_initialized": StatusUnknown,
		"RUNNING":         StatusUnknown,
		"":                StatusUnknown,
	}
	for in, want := range tests {
		if got := ParseRunStatus(in); got != want {
			t.Errorf("ParseRunStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRunStatusPresentation(t *testing.T) {
	assert.Equal(t, "running", StatusRunning.Indicator())
	assert.Equal(t, "error", StatusError.Indicator())
	assert.Equal(t, "stopped", StatusStopped.Indicator())
	assert.Equal(t, "stopped", StatusUnknown.Indicator())
	assert.Equal(t, "Unknown", RunStatus("paused").Label())
	assert.True(t, StatusRunning.Running())
	assert.False(t, StatusError.Running())
}

func TestPanelMissingElements(t *testing.T) {
	p := NewPanel(ElementStatus)
	assert.True(t, p.SetText(ElementStatus, "Running"))
	assert.False(t, p.SetText(ElementLastPost, "Never"))
	assert.False(t, p.RenderLog(ElementLogContainer, nil))
	assert.False(t, p.ShowAlert(ElementAlert, Alert{ID: "a"}))

	snap := p.Snapshot()
	assert.Len(t, snap.Widgets, 1)
	assert.Equal(t, Widget{}, snap.Widget(ElementLastPost))
}

func TestPanelLoading(t *testing.T) {
	p := NewPanel()
	p.SetLoading(ElementManualPost, true)
	w := p.Snapshot().Widget(ElementManualPost)
	assert.True(t, w.Loading)
	assert.True(t, w.Disabled)

	p.SetDisabled(ElementManualPost, false)
	assert.True(t, p.Snapshot().Widget(ElementManualPost).Disabled, "stays disabled while loading")

	p.SetLoading(ElementManualPost, false)
	w = p.Snapshot().Widget(ElementManualPost)
	assert.False(t, w.Loading)
	assert.False(t, w.Disabled)
}

func TestPanelClearAlertMatchesID(t *testing.T) {
	p := NewPanel()
	p.ShowAlert(ElementAlert, Alert{ID: "b", Message: "second"})
	p.ClearAlert(ElementAlert, "a")
	require.NotNil(t, p.Snapshot().Alert)
	p.ClearAlert(ElementAlert, "b")
	assert.Nil(t, p.Snapshot().Alert)
}

func TestPanelOnChangeAndCopies(t *testing.T) {
	p := NewPanel()
	var changes atomic.Int32
	p.OnChange(func() {
		// the callback may read the panel
		_ = p.Snapshot()
		changes.Add(1)
	})

	p.RenderLog(ElementLogContainer, []logbuf.Entry{{Stamp: "10:00:00", Message: "a"}})
	p.SetText(ElementStatus, "Running")
	p.SetText(ElementLastPost, "x")
	assert.Equal(t, int32(3), changes.Load())

	snap := p.Snapshot()
	snap.Log[0].Message = "mutated"
	snap.Widgets[ElementStatus] = Widget{Text: "mutated"}
	again := p.Snapshot()
	assert.Equal(t, "a", again.Log[0].Message)
	assert.Equal(t, "Running", again.Widget(ElementStatus).Text)
}
