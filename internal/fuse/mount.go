package fuse

import (
	"context"

	"github.com/hanwen/go-fuse/v2/fs"
	gofuse "github.com/hanwen/go-fuse/v2/fuse"

	"github.com/systemshift/memex-workspace/internal/workspace"
)

// Source is the workspace a mount reads from. Reload is called before every
// read so writes made by other processes show up in the mount.
type Source interface {
	Reload(ctx context.Context) error
	State() *workspace.State
}

// MountFS mounts a read-only view of src at mountpoint. maxDepth bounds the
// graph drawing. Returns the server (call server.Wait() to block,
// server.Unmount() to stop).
func MountFS(mountpoint string, src Source, maxDepth int, debug bool) (*gofuse.Server, error) {
	root := &RootNode{view: &view{src: src, maxDepth: maxDepth}}

	opts := &fs.Options{
		MountOptions: gofuse.MountOptions{
			FsName:        "mxws",
			Name:          "mxws",
			DisableXAttrs: true,
			Debug:         debug,
		},
	}

	server, err := fs.Mount(mountpoint, root, opts)
	if err != nil {
		return nil, err
	}
	return server, nil
}
