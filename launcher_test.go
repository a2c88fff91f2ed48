package snag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgeHTML_DisabledByDefault(t *testing.T) {
	e := newTestEngine(t)
	assert.Empty(t, e.BadgeHTML())
}

func TestBadgeHTML_RendersTrigger(t *testing.T) {
	e := newTestEngine(t, func(c *Config) {
		c.Launcher = LauncherConfig{Enabled: true, Position: PositionTopLeft}
	})

	fragment := e.BadgeHTML()
	require.NotEmpty(t, fragment)
	assert.Contains(t, fragment, "data-snag-ui")
	assert.Contains(t, fragment, "top:16px;left:16px")
	assert.Contains(t, fragment, badgeLabel)
}

func TestCornerCSS(t *testing.T) {
	tests := []struct {
		pos  Position
		want string
	}{
		{PositionTopLeft, "top:16px;left:16px"},
		{PositionTopRight, "top:16px;right:16px"},
		{PositionBottomLeft, "bottom:16px;left:16px"},
		{PositionBottomRight, "bottom:16px;right:16px"},
		{Position(""), "bottom:16px;right:16px"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cornerCSS(tt.pos), "position %q", tt.pos)
	}
}

func TestShowDialog_BeforeInit(t *testing.T) {
	e, err := New(testConfig())
	require.NoError(t, err)
	assert.ErrorIs(t, e.ShowDialog(t.Context()), ErrNotInitialized)
}
