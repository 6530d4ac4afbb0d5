package fuse

import (
	"context"
	"strconv"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// LogDir exposes the current branch's recent commits as files.
// Layout: log/HEAD (commit id), log/0 (newest commit JSON), log/1, ...
type LogDir struct {
	fs.Inode
	view *view
}

var _ = (fs.NodeLookuper)((*LogDir)(nil))
var _ = (fs.NodeReaddirer)((*LogDir)(nil))
var _ = (fs.NodeGetattrer)((*LogDir)(nil))

func (d *LogDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = stableIno("log")
	return fs.OK
}

func (d *LogDir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries := []fuse.DirEntry{
		{Name: "HEAD", Mode: syscall.S_IFREG, Ino: stableIno("log/HEAD")},
	}
	for i := range d.view.history(maxLogEntries) {
		name := strconv.Itoa(i)
		entries = append(entries, fuse.DirEntry{
			Name: name,
			Mode: syscall.S_IFREG,
			Ino:  stableIno("log/" + name),
		})
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (d *LogDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	path := "log/" + name
	var content func() []byte
	if name == "HEAD" {
		content = d.view.head
	} else {
		// Entries are positional; a commit or checkout shifts what log/<n> shows.
		if _, ok := d.view.logEntry(name); !ok {
			return nil, syscall.ENOENT
		}
		content = func() []byte {
			data, _ := d.view.logEntry(name)
			return data
		}
	}
	child := d.NewInode(ctx, &textFile{path: path, content: content}, fs.StableAttr{
		Mode: syscall.S_IFREG,
		Ino:  stableIno(path),
	})
	return child, fs.OK
}
