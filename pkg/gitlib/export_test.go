package gitlib

// HunkFromNative exposes hunk header conversion to tests.
var HunkFromNative = hunkFromNative
