package hg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/crashscope/crashscope/internal/logging"
)

// channelAliases maps build channel names (as reported by crash metadata)
// onto the repository channels we keep local clones for. Beta builds ship
// from the release clone history, and esr point releases collapse onto the
// esr115 clone.
var channelAliases = map[string]string{
	"beta":            "release",
	"esr":             "esr115",
	"esr115":          "esr115",
	"release":         "release",
	"nightly":         "nightly",
	"default":         "nightly",
	"aurora":          "nightly",
	"mozilla-central": "nightly",
}

// MapChannel normalizes a build channel onto a repository channel. Unknown
// channels fall back to nightly, where every landing appears first.
func MapChannel(channel string) string {
	if mapped, ok := channelAliases[strings.ToLower(strings.TrimSpace(channel))]; ok {
		return mapped
	}
	return "nightly"
}

// RepoSet holds the local clones, one per repository channel, and resolves
// revisions across them.
type RepoSet struct {
	repos map[string]Repo
	order []string
	log   *logging.Logger
}

// NewRepoSet validates each configured clone path and skips (with a warning)
// any path that is not a Mercurial repository. At least one valid clone is
// required.
func NewRepoSet(paths map[string]string, log *logging.Logger) (*RepoSet, error) {
	rs := &RepoSet{repos: make(map[string]Repo), log: log}
	// Deterministic scan order: nightly first, it has every landing.
	for _, channel := range []string{"nightly", "release", "esr115"} {
		path, ok := paths[channel]
		if !ok {
			continue
		}
		if info, err := os.Stat(filepath.Join(path, ".hg")); err != nil || !info.IsDir() {
			log.Warn("skipping repository without .hg directory", "channel", channel, "path", path)
			continue
		}
		rs.repos[channel] = Repo{Path: path, Channel: channel}
		rs.order = append(rs.order, channel)
	}
	for channel, path := range paths {
		if _, ok := rs.repos[channel]; ok {
			continue
		}
		if _, known := channelAliases[channel]; known {
			continue
		}
		if info, err := os.Stat(filepath.Join(path, ".hg")); err != nil || !info.IsDir() {
			log.Warn("skipping repository without .hg directory", "channel", channel, "path", path)
			continue
		}
		rs.repos[channel] = Repo{Path: path, Channel: channel}
		rs.order = append(rs.order, channel)
	}
	if len(rs.repos) == 0 {
		return nil, fmt.Errorf("no usable mercurial repositories among %d configured paths", len(paths))
	}
	return rs, nil
}

// Channels returns the usable repository channels in scan order.
func (rs *RepoSet) Channels() []string {
	out := make([]string, len(rs.order))
	copy(out, rs.order)
	return out
}

// Repo returns the clone for a repository channel.
func (rs *RepoSet) Repo(channel string) (Repo, bool) {
	repo, ok := rs.repos[MapChannel(channel)]
	return repo, ok
}

// Find locates the clone containing a revision, trying the preferred channel
// first and then the remaining clones in scan order. Returns
// ErrRevisionNotFound when no clone has it.
func (rs *RepoSet) Find(ctx context.Context, revision, preferredChannel string) (Repo, error) {
	tried := make(map[string]bool)
	if preferred, ok := rs.Repo(preferredChannel); ok {
		tried[preferred.Channel] = true
		if preferred.HasRevision(ctx, revision) {
			return preferred, nil
		}
	}
	for _, channel := range rs.order {
		if tried[channel] {
			continue
		}
		repo := rs.repos[channel]
		if repo.HasRevision(ctx, revision) {
			rs.log.Debug("revision found outside preferred channel",
				"revision", revision, "channel", channel, "preferred", preferredChannel)
			return repo, nil
		}
	}
	return Repo{}, fmt.Errorf("%w: %s", ErrRevisionNotFound, revision)
}

// FileDiffAny returns the diff a revision introduced for a file, scanning
// clones until one both contains the revision and reports a non-empty diff.
func (rs *RepoSet) FileDiffAny(ctx context.Context, revision, filename, preferredChannel string) (string, Repo, error) {
	repo, err := rs.Find(ctx, revision, preferredChannel)
	if err != nil {
		return "", Repo{}, err
	}
	diff, err := repo.FileDiff(ctx, revision, filename)
	if err != nil {
		return "", repo, err
	}
	return diff, repo, nil
}
