package gitlib

import (
	"errors"
	"time"

	git2go "github.com/libgit2/git2go/v34"
)

// Sentinel errors returned by repository operations.
var (
	ErrTagNotFound  = errors.New("tag not found")
	ErrFileNotFound = errors.New("file not found at commit")
	ErrNoParent     = errors.New("commit has no parent")
)

// Signature identifies a commit author.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

func signatureFrom(sig *git2go.Signature) Signature {
	if sig == nil {
		return Signature{}
	}

	return Signature{Name: sig.Name, Email: sig.Email, When: sig.When}
}

// CommitInfo is the detached view of a commit handed to analysis code.
type CommitInfo struct {
	Hash    Hash
	Author  Signature
	Message string
	Parents []Hash
}

// IsRoot reports whether the commit has no parents.
func (c CommitInfo) IsRoot() bool {
	return len(c.Parents) == 0
}
