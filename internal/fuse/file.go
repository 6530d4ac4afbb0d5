package fuse

import (
	"context"
	"hash/fnv"
	"io"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// textFile is a read-only file whose contents are produced on every access.
type textFile struct {
	fs.Inode
	path    string
	content func() []byte
}

var _ = (fs.NodeGetattrer)((*textFile)(nil))
var _ = (fs.NodeReader)((*textFile)(nil))
var _ = (fs.NodeOpener)((*textFile)(nil))

func (f *textFile) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0444
	out.Size = uint64(len(f.content()))
	out.Ino = stableIno(f.path)
	return fs.OK
}

// Open disables the page cache: the workspace changes underneath the mount.
func (f *textFile) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}
	return nil, fuse.FOPEN_DIRECT_IO, fs.OK
}

func (f *textFile) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data := f.content()
	if off >= int64(len(data)) {
		return fuse.ReadResultData(nil), fs.OK
	}
	end := off + int64(len(dest))
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return fuse.ReadResultData(data[off:end]), fs.OK
}

// stableIno derives an inode number from a path inside the mount.
func stableIno(path string) uint64 {
	h := fnv.New64a()
	io.WriteString(h, path)
	return h.Sum64()
}
