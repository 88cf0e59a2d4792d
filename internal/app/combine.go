package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"quantscraper/internal/merge"
	"quantscraper/internal/publish"
	"quantscraper/internal/service"
)

// Combine merges two tables already published on disk. Without an output
// path the result is published as the combined artifact.
func (a *App) Combine(ctx context.Context, opts CombineOptions) error {
	if opts.Primary == "" {
		opts.Primary = a.Config.Combine.Primary
	}
	if opts.Secondary == "" {
		opts.Secondary = a.Config.Combine.Secondary
	}
	if opts.Primary == opts.Secondary {
		return errors.New("--primary and --secondary must differ")
	}

	primary, err := publish.ReadTable(a.fs, a.tablePath(opts.Primary))
	if err != nil {
		return err
	}
	secondary, err := publish.ReadTable(a.fs, a.tablePath(opts.Secondary))
	if err != nil {
		return err
	}
	merged := merge.Merge(primary, secondary)

	if opts.Out == "" {
		publisher, err := a.newPublisher(nil)
		if err != nil {
			return err
		}
		out := publisher.PublishTable(ctx, service.CombinedName, merged)
		if out.Err != nil {
			return out.Err
		}
		a.Logger.Info().Str("path", out.Artifact.Path).Int("rows", out.Rows).Msg("combined table published")
		return nil
	}

	format, err := publish.ParseFormat(strings.TrimPrefix(filepath.Ext(opts.Out), "."))
	if err != nil {
		return err
	}
	body, err := publish.Encode(format, merged.View())
	if err != nil {
		return err
	}
	if err := publish.NewWriter(a.fs).WriteFile(opts.Out, body); err != nil {
		return err
	}
	a.Logger.Info().Str("path", opts.Out).Int("rows", len(merged)).Msg("combined table written")
	return nil
}
