package commands

import "github.com/Sumatoshi-tech/faultline/pkg/framework"

// SetOpener replaces the repository opener used by the commands.
func SetOpener(o *GlobalOptions, fn framework.RepositoryOpener) {
	o.opener = fn
}
