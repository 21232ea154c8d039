package dataset

import (
	"context"
	"errors"
	"strings"

	"github.com/Sumatoshi-tech/faultline/pkg/gitlib"
)

// TagResolver resolves tag names to commits.
type TagResolver interface {
	ResolveTag(ctx context.Context, name string) (gitlib.Hash, error)
}

// DefaultTagPrefixes returns the project-specific prefixes tried when no
// others are configured.
func DefaultTagPrefixes(project string) []string {
	return []string{strings.ToLower(project) + "-"}
}

// TagCandidates lists the tag names tried for a release, in order: the exact
// name, v<name>, release-<name>, then each prefix followed by the name.
func TagCandidates(name string, prefixes []string) []string {
	candidates := []string{name, "v" + name, "release-" + name}
	for _, p := range prefixes {
		candidates = append(candidates, p+name)
	}

	return candidates
}

// ResolveRelease returns the commit of the first candidate tag that exists.
// It returns gitlib.ErrTagNotFound when none does.
func ResolveRelease(ctx context.Context, tags TagResolver, name string, prefixes []string) (gitlib.Hash, string, error) {
	for _, candidate := range TagCandidates(name, prefixes) {
		hash, err := tags.ResolveTag(ctx, candidate)
		if err == nil {
			return hash, candidate, nil
		}

		if !errors.Is(err, gitlib.ErrTagNotFound) {
			return gitlib.Hash{}, "", err
		}
	}

	return gitlib.Hash{}, "", gitlib.ErrTagNotFound
}
