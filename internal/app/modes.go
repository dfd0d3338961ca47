package app

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WatchMode runs only the polling engine. Alerts and expiry notices are still
// delivered, but commands are not consumed.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode")
	return deps.Engine.Run(ctx)
}

// BotMode runs only the Telegram command surface. Useful when the polling
// engine runs in a separate process.
func (a *App) BotMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting bot mode")
	return deps.Bot.Run(ctx)
}

// FullMode runs the engine and the bot together; either failing stops both.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return deps.Engine.Run(ctx)
	})
	g.Go(func() error {
		return deps.Bot.Run(ctx)
	})
	return g.Wait()
}
