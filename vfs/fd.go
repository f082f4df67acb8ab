package vfs

import swordvfs "github.com/sword-emu/swordvfs"

// FileDescriptor is a process-wide open-file handle (§3): a vnode
// reference, the flags it was opened with, and the byte position the
// next read/write/seek advances. Advancing it is the exclusive privilege
// of a successful read/write/seek call.
type FileDescriptor struct {
	VNode    *VNode
	Flags    swordvfs.IOFlags
	Position int
	open     bool
}

// DirStream is the directory-iteration counterpart of FileDescriptor: its
// cursor is the next #DIRNO readdir will return, not a byte offset.
type DirStream struct {
	VNode *VNode
	Next  uint8
	open  bool
}
