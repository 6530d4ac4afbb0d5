package fuse

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// RootNode is the mountpoint directory. Contains "graph", "current",
// "branches/" and "log/".
type RootNode struct {
	fs.Inode
	view *view
}

var _ = (fs.NodeOnAdder)((*RootNode)(nil))
var _ = (fs.NodeGetattrer)((*RootNode)(nil))

func (r *RootNode) OnAdd(ctx context.Context) {
	for name, content := range map[string]func() []byte{
		"graph":   r.view.graph,
		"current": r.view.current,
	} {
		f := &textFile{path: name, content: content}
		r.AddChild(name, r.NewPersistentInode(ctx, f, fs.StableAttr{
			Mode: syscall.S_IFREG,
			Ino:  stableIno(name),
		}), true)
	}

	branchesInode := r.NewPersistentInode(ctx, &BranchesDir{view: r.view}, fs.StableAttr{
		Mode: syscall.S_IFDIR,
		Ino:  stableIno("branches"),
	})
	r.AddChild("branches", branchesInode, true)

	logInode := r.NewPersistentInode(ctx, &LogDir{view: r.view}, fs.StableAttr{
		Mode: syscall.S_IFDIR,
		Ino:  stableIno("log"),
	})
	r.AddChild("log", logInode, true)
}

func (r *RootNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = stableIno("/")
	return fs.OK
}

// BranchesDir lists one JSON file per branch, named by branch id.
type BranchesDir struct {
	fs.Inode
	view *view
}

var _ = (fs.NodeLookuper)((*BranchesDir)(nil))
var _ = (fs.NodeReaddirer)((*BranchesDir)(nil))
var _ = (fs.NodeGetattrer)((*BranchesDir)(nil))

func (d *BranchesDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = stableIno("branches")
	return fs.OK
}

func (d *BranchesDir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	ids := d.view.branchIDs()
	entries := make([]fuse.DirEntry, len(ids))
	for i, id := range ids {
		entries[i] = fuse.DirEntry{
			Name: id,
			Mode: syscall.S_IFREG,
			Ino:  stableIno("branches/" + id),
		}
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (d *BranchesDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if _, ok := d.view.branch(name); !ok {
		return nil, syscall.ENOENT
	}
	path := "branches/" + name
	f := &textFile{path: path, content: func() []byte {
		data, ok := d.view.branch(name)
		if !ok {
			return nil
		}
		return data
	}}
	child := d.NewInode(ctx, f, fs.StableAttr{
		Mode: syscall.S_IFREG,
		Ino:  stableIno(path),
	})
	return child, fs.OK
}
