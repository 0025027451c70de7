package wandb

import "context"

// Projects lists the project names under the configured entity.
func (c *Client) Projects(ctx context.Context) ([]string, error) {
	var projects []string
	err := c.call(ctx, "list projects", func(ctx context.Context) error {
		var err error
		projects, err = c.backend.ListProjects(ctx, c.config.Entity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return projects, nil
}
