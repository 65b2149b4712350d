package render

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svgfit/svgfit/internal/scene"
)

func TestPageURLWrapsDocument(t *testing.T) {
	u := pageURL(Canvas{Width: 80, Height: 60}, []byte("<svg></svg>"))
	require.True(t, strings.HasPrefix(u, "data:text/html;charset=utf-8,"))

	page, err := url.PathUnescape(strings.TrimPrefix(u, "data:text/html;charset=utf-8,"))
	require.NoError(t, err)
	assert.Contains(t, page, "<svg></svg>")
	assert.Contains(t, page, "width:80px")
	assert.Contains(t, page, "height:60px")
	assert.Contains(t, page, "margin:0")
}

func TestNewChromeRejectsBadCanvas(t *testing.T) {
	_, err := NewChrome(Canvas{Width: 100, Height: -1})
	assert.Error(t, err)
}

func TestChromeRejectsInvalidSceneBeforeLaunch(t *testing.T) {
	c, err := NewChrome(Canvas{Width: 100, Height: 100})
	require.NoError(t, err)

	s := testScene()
	s.CornerRadius.RX = -1

	// Validation fails before any browser starts, so this runs anywhere.
	_, err = c.Render(context.Background(), s)
	require.Error(t, err)

	var invalid *scene.InvalidParametersError
	assert.ErrorAs(t, err, &invalid)
}
