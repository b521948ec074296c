package release

import (
	"context"
	"errors"
	"fmt"

	"github.com/embydev/embytools/internal/config"
	"github.com/embydev/embytools/internal/platform"
	"github.com/embydev/embytools/internal/toolspec"
)

// Resolver picks the download for a tool on a platform.
type Resolver struct {
	client *Client
	logger config.Logger
}

// NewResolver creates a Resolver. A nil client queries the public API.
func NewResolver(client *Client, logger config.Logger) *Resolver {
	if client == nil {
		client = NewClient(nil, "")
	}
	return &Resolver{
		client: client,
		logger: config.LoggerOrNoop(logger),
	}
}

// Resolve returns the asset to install. Static specs never touch the
// network; dynamic specs make at most one metadata request.
func (r *Resolver) Resolve(ctx context.Context, spec toolspec.Spec, desc platform.Descriptor) (*Resolved, error) {
	switch spec.Resolution {
	case toolspec.ResolutionStatic:
		resolved, err := RenderStatic(spec, desc)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("resolved static asset", "tool", spec.Name, "url", resolved.URL)
		return resolved, nil
	case toolspec.ResolutionDynamic:
		return r.resolveDynamic(ctx, spec, desc)
	default:
		return nil, fmt.Errorf("%w: unknown resolution %q for %s", ErrMetadata, spec.Resolution, spec.Name)
	}
}

func (r *Resolver) resolveDynamic(ctx context.Context, spec toolspec.Spec, desc platform.Descriptor) (*Resolved, error) {
	if !spec.Supports(desc.Family) {
		return nil, fmt.Errorf("%w: %s does not support %s", ErrUnsupportedPlatform, spec.Name, desc.Family)
	}

	pattern, err := AssetPattern(spec.AssetPattern, desc.Family)
	if err != nil {
		return nil, err
	}
	if desc.Family == platform.FamilyDarwin {
		r.logger.Warn("no native macOS asset; using the portable Linux build", "tool", spec.Name, "pattern", pattern)
	}

	r.logger.Info("fetching latest release", "tool", spec.Name, "url", r.client.LatestReleaseURL(spec.Owner, spec.Repo))

	meta, err := r.client.LatestRelease(ctx, spec.Owner, spec.Repo)
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			r.logger.Error("release API request failed", "tool", spec.Name, "status", httpErr.StatusCode, "body", httpErr.Body)
		}
		return nil, err
	}

	asset, ok := SelectAsset(meta.Assets, pattern)
	if !ok {
		return nil, &NoMatchError{
			Repository: spec.Repository(),
			Tag:        meta.TagName,
			Pattern:    pattern,
			Available:  meta.AssetNames(),
		}
	}
	r.logger.Debug("selected asset", "tool", spec.Name, "tag", meta.TagName, "asset", asset.Name)

	return &Resolved{
		Tool:     spec.Name,
		URL:      asset.BrowserDownloadURL,
		FileName: asset.Name,
		Version:  meta.TagName,
		Size:     asset.Size,
	}, nil
}
