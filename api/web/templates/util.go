package templates

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"github.com/bogband/website/navigation"
)

const defaultPlayerHeight = 120

func sectionURL(section navigation.Section) string {
	return fmt.Sprintf("/sections/%s", url.PathEscape(string(section)))
}

func slideAlt(title string, index int) string {
	return fmt.Sprintf("%s Press %d", title, index+1)
}

func eventsURL(sessionID string) string {
	return "/slideshow/events?" + url.Values{"sid": {sessionID}}.Encode()
}

// sessionHeaders is the hx-headers value that makes every htmx request from the page
// carry its session id.
func sessionHeaders(sessionID string) string {
	return fmt.Sprintf(`{"X-Session-Id":%s}`, strconv.Quote(sessionID))
}

func playerHeight(height int) string {
	if height <= 0 {
		height = defaultPlayerHeight
	}
	return strconv.Itoa(height)
}

// RenderString renders a component into a string, used for SSE payloads.
func RenderString(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
