package driver

import (
	"context"
	"fmt"
)

// SetBlockedURLPatterns makes the browser fail any request whose URL matches
// one of the given patterns ("*" wildcards allowed). An empty slice clears
// the block list.
func (d *Driver) SetBlockedURLPatterns(ctx context.Context, patterns []string) error {
	session, err := d.requireSession()
	if err != nil {
		return err
	}
	if patterns == nil {
		patterns = []string{}
	}
	if _, err := session.Send(ctx, "Network.setBlockedURLs", map[string]any{"urls": patterns}); err != nil {
		return fmt.Errorf("driver: set blocked urls: %w", err)
	}
	return nil
}
